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
	"fmt"

	"github.com/uptrace/bun"
)

// OpenOption customises the factory before it connects.
type OpenOption func(f *BaseDatabaseFactory)

// WithLogger replaces the package logger for the opened database.
func WithLogger(logger Logger) OpenOption {
	return func(f *BaseDatabaseFactory) { f.logger = logger }
}

// WithQueryHook installs a query hook that survives reconnects.
func WithQueryHook(hook bun.QueryHook) OpenOption {
	return func(f *BaseDatabaseFactory) { f.hooks = append(f.hooks, hook) }
}

// Open connects to the configured database, creates the schema when
// enable_migrate_on_startup is set and returns the owning factory.
func Open(ctx context.Context, cfg *Config, opts ...OpenOption) (*BaseDatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	for _, opt := range opts {
		opt(factory)
	}
	manager, err := factory.CreateFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	for _, hook := range factory.hooks {
		manager.AddQueryHook(hook)
	}
	if err := factory.InitializeDatabase(ctx, cfg.DataMigrateConfig.EnableMigrateOnStartup); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return factory, nil
}
