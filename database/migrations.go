/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

var errNotInitialized = errors.New("database not initialized")

// Migration is the row recorded in schema_migrations once a step has run.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// MigrationManager creates the tables of the registered models and, when
// auto_init_on_migration is set, seeds them from SQL files.
type MigrationManager struct {
	db      *bun.DB
	logger  Logger
	migrate DataMigrateConfig
	init    DataInitConfig
}

func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{
		db:     db,
		logger: logger,
		init:   DefaultConfig().DataInitConfig,
	}
}

func (mm *MigrationManager) SetMigrateConfig(cfg DataMigrateConfig) {
	mm.migrate = cfg
}

// SetInitConfig keeps the current path and environment for empty fields.
func (mm *MigrationManager) SetInitConfig(cfg DataInitConfig) {
	if cfg.Filepath != "" {
		mm.init.Filepath = cfg.Filepath
	}
	if cfg.Environment != "" {
		mm.init.Environment = cfg.Environment
	}
	mm.init.AutoInitOnMigration = cfg.AutoInitOnMigration
}

func (mm *MigrationManager) steps() []MigrationItem {
	steps := []MigrationItem{{
		Version:     "001",
		Name:        "create_base_tables",
		Description: "Create base table structure",
		Up:          mm.createBaseTables,
	}}
	if mm.init.AutoInitOnMigration {
		steps = append(steps, MigrationItem{
			Version:     "002",
			Name:        "seed_initial_data",
			Description: "Seed initial data",
			Up:          mm.seedInitialData,
		})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps
}

// RunMigrations applies every step missing from schema_migrations, each in
// its own transaction together with its record.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return errNotInitialized
	}
	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := mm.appliedVersions(ctx)
	if err != nil {
		return err
	}
	for _, step := range mm.steps() {
		if applied[step.Version] {
			continue
		}
		if err := mm.apply(ctx, step); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", step.Version, err)
		}
		mm.logger.Info("Migration executed successfully", "version", step.Version, "name", step.Name)
	}
	mm.logger.Info("Database migrations completed!")
	return nil
}

func (mm *MigrationManager) appliedVersions(ctx context.Context) (map[string]bool, error) {
	var versions []string
	if err := mm.db.NewSelect().Model((*Migration)(nil)).Column("version").Scan(ctx, &versions); err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	set := make(map[string]bool, len(versions))
	for _, v := range versions {
		set[v] = true
	}
	return set, nil
}

func (mm *MigrationManager) apply(ctx context.Context, step MigrationItem) error {
	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := step.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&Migration{
			Version:     step.Version,
			Name:        step.Name,
			AppliedAt:   time.Now(),
			Description: step.Description,
		}).Exec(ctx)
		return err
	})
}

// foreignKeys returns nil when foreign keys are disabled.
func (mm *MigrationManager) foreignKeys() (ForeignKeys, error) {
	if !mm.migrate.EnableForeignKey {
		return nil, nil
	}
	fks := resolveForeignKeys(mm.migrate.ForeignKeyFile, mm.logger)
	if errs := fks.Validate(); len(errs) > 0 {
		for _, err := range errs {
			mm.logger.Debug("Foreign key constraint validation failed", "error", err.Error())
		}
		return nil, fmt.Errorf("foreign key constraint validation failed, %d errors in total", len(errs))
	}
	return fks, nil
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	fks, err := mm.foreignKeys()
	if err != nil {
		return err
	}
	for _, model := range RegisteredModelInstances() {
		table := mm.db.Table(modelType(model)).Name
		query := db.NewCreateTable().Model(model).IfNotExists()
		for _, fk := range fks.ForTable(table) {
			query = fk.Apply(query)
		}
		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
		mm.logger.Debug("Table ready", "table", table)
	}
	return nil
}

// AddForeignKeys adds the configured constraints to tables created before
// foreign keys were enabled. SQLite cannot alter constraints and is skipped.
func (mm *MigrationManager) AddForeignKeys(ctx context.Context, db bun.IDB) error {
	if db.Dialect().Name() == dialect.SQLite {
		return nil
	}
	fks, err := mm.foreignKeys()
	if err != nil {
		return err
	}
	fks.AddAll(ctx, db, mm.logger)
	return nil
}

// DropTables drops every registered table, referencing tables first, then
// the migration records.
func (mm *MigrationManager) DropTables(ctx context.Context) error {
	registered := RegisteredModelInstances()
	drop := make([]interface{}, 0, len(registered)+1)
	for i := len(registered) - 1; i >= 0; i-- {
		drop = append(drop, registered[i])
	}
	drop = append(drop, (*Migration)(nil))
	for _, model := range drop {
		if _, err := mm.db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", mm.db.Table(modelType(model)).Name, err)
		}
	}
	return nil
}

func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return errNotInitialized
	}
	return mm.seedInitialData(ctx, mm.db)
}

func (mm *MigrationManager) seedInitialData(ctx context.Context, db bun.IDB) error {
	seeds := NewSQLInitManager(db, mm.init.Environment)
	seeds.SetSQLRootPath(mm.init.Filepath)
	seeds.SetLogger(mm.logger)
	if err := seeds.ExecuteInitialization(ctx); err != nil {
		return fmt.Errorf("SQL file initialization failed: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().Model(&migrations).Order("version ASC").Scan(ctx)
	return migrations, err
}

func modelType(model interface{}) reflect.Type {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
