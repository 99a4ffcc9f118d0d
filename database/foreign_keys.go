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
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

var registeredForeignKeys struct {
	sync.Mutex
	list ForeignKeys
}

// RegisterForeignKey adds a code-defined constraint, used when no YAML file is configured.
func RegisterForeignKey(fk ForeignKeyConstraint) {
	registeredForeignKeys.Lock()
	defer registeredForeignKeys.Unlock()
	registeredForeignKeys.list = append(registeredForeignKeys.list, fk)
}

// RegisteredForeignKeys returns a copy of the code-defined constraints.
func RegisteredForeignKeys() ForeignKeys {
	registeredForeignKeys.Lock()
	defer registeredForeignKeys.Unlock()
	return append(ForeignKeys(nil), registeredForeignKeys.list...)
}

// ForeignKeyConstraint is one member.team_id -> team.id style reference.
// OnDelete and OnUpdate take CASCADE, RESTRICT, SET NULL or NO ACTION.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
	Description     string `yaml:"description,omitempty"`
}

// Name returns the explicit constraint name or fk_<table>_<column>.
func (fk ForeignKeyConstraint) Name() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return "fk_" + fk.Table + "_" + fk.Column
}

func (fk ForeignKeyConstraint) actions() string {
	var b strings.Builder
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + strings.ToUpper(fk.OnDelete))
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + strings.ToUpper(fk.OnUpdate))
	}
	return b.String()
}

// AlterSQL returns the statement that adds the constraint to an existing table.
func (fk ForeignKeyConstraint) AlterSQL() string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)%s",
		fk.Table, fk.Name(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn, fk.actions())
}

// Apply adds the constraint to a CREATE TABLE query. SQLite only accepts foreign
// keys in this form.
func (fk ForeignKeyConstraint) Apply(q *bun.CreateTableQuery) *bun.CreateTableQuery {
	return q.ForeignKey("(?) REFERENCES ? (?)"+fk.actions(),
		bun.Ident(fk.Column), bun.Ident(fk.ReferenceTable), bun.Ident(fk.ReferenceColumn))
}

func validAction(action string) bool {
	switch strings.ToUpper(action) {
	case "", "CASCADE", "RESTRICT", "SET NULL", "NO ACTION":
		return true
	}
	return false
}

func (fk ForeignKeyConstraint) validate() []error {
	var errs []error
	switch {
	case fk.Table == "":
		errs = append(errs, errors.New("table name cannot be empty"))
	case fk.Column == "":
		errs = append(errs, fmt.Errorf("column name cannot be empty: %s", fk.Table))
	}
	if fk.ReferenceTable == "" {
		errs = append(errs, fmt.Errorf("reference table name cannot be empty: %s.%s", fk.Table, fk.Column))
	}
	if fk.ReferenceColumn == "" {
		errs = append(errs, fmt.Errorf("reference column name cannot be empty: %s.%s", fk.Table, fk.Column))
	}
	if !validAction(fk.OnDelete) {
		errs = append(errs, fmt.Errorf("invalid delete policy %q on %s", fk.OnDelete, fk.Name()))
	}
	if !validAction(fk.OnUpdate) {
		errs = append(errs, fmt.Errorf("invalid update policy %q on %s", fk.OnUpdate, fk.Name()))
	}
	return errs
}

// ForeignKeys is the constraint set the migration manager applies.
type ForeignKeys []ForeignKeyConstraint

type foreignKeyFile struct {
	ForeignKeys ForeignKeys `yaml:"foreign_keys"`
}

// LoadForeignKeys reads the foreign_keys list of a YAML file.
func LoadForeignKeys(path string) (ForeignKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign key file: %w", err)
	}
	var file foreignKeyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file %s: %w", path, err)
	}
	return file.ForeignKeys, nil
}

// resolveForeignKeys prefers the YAML file and falls back to the registered
// constraints when it is unset or unreadable.
func resolveForeignKeys(path string, logger Logger) ForeignKeys {
	if path == "" {
		return RegisteredForeignKeys()
	}
	fks, err := LoadForeignKeys(path)
	if err != nil {
		if logger != nil {
			logger.Debug("Using registered foreign keys", "error", err.Error(), "config_path", path)
		}
		return RegisteredForeignKeys()
	}
	return fks
}

// ForTable returns the constraints declared on table, ignoring case.
func (s ForeignKeys) ForTable(table string) ForeignKeys {
	var out ForeignKeys
	for _, fk := range s {
		if strings.EqualFold(fk.Table, table) {
			out = append(out, fk)
		}
	}
	return out
}

// Validate collects every problem of every constraint.
func (s ForeignKeys) Validate() []error {
	var errs []error
	for _, fk := range s {
		errs = append(errs, fk.validate()...)
	}
	return errs
}

// AddAll runs ALTER TABLE for each constraint. A constraint that already
// exists fails on most databases, so failures are logged and skipped.
func (s ForeignKeys) AddAll(ctx context.Context, db bun.IDB, logger Logger) {
	for _, fk := range s {
		_, err := db.ExecContext(ctx, fk.AlterSQL())
		if logger == nil {
			continue
		}
		if err != nil {
			logger.Debug("Failed to add foreign key constraint", "constraint", fk.Name(), "error", err.Error())
		} else {
			logger.Debug("Added foreign key constraint", "constraint", fk.Name())
		}
	}
}

// WriteFile stores the set in the format LoadForeignKeys reads.
func (s ForeignKeys) WriteFile(path string) error {
	out := make(ForeignKeys, len(s))
	for i, fk := range s {
		if fk.Description == "" {
			fk.Description = fmt.Sprintf("%s.%s -> %s.%s", fk.Table, fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
		}
		out[i] = fk
	}
	data, err := yaml.Marshal(foreignKeyFile{ForeignKeys: out})
	if err != nil {
		return fmt.Errorf("failed to serialize foreign keys: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
