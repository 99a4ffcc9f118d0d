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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWhenFilesMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 20, cfg.Web.Pageable.DefaultPageSize)
	assert.Equal(t, 2000, cfg.Web.Pageable.MaxPageSize)
	assert.False(t, cfg.Web.Pageable.OneIndexedParameters)
	assert.Equal(t, 100, cfg.Seed.Members)
	assert.Equal(t, "sqlite", cfg.Database.ConnectionConfig.Type)
	assert.True(t, cfg.Database.DataMigrateConfig.EnableMigrateOnStartup)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "application.yaml", `
server:
  port: 9090
  mode: debug
  read_timeout: 5s
log:
  level: debug
  format: json
web:
  pageable:
    default_page_size: 10
    max_page_size: 50
    one_indexed_parameters: true
seed:
  members: 3
database:
  connection_config:
    type: postgres
    host: db
    port: 5432
    slow_query_time: 500ms
  data_migrate_config:
    enable_foreign_key: false
`)
	cfg, err := Load(path, filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":9090", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Web.Pageable.DefaultPageSize)
	assert.True(t, cfg.Web.Pageable.OneIndexedParameters)
	assert.Equal(t, 3, cfg.Seed.Members)

	conn := cfg.Database.ConnectionConfig
	assert.Equal(t, "postgres", conn.Type)
	assert.Equal(t, "db", conn.Host)
	assert.Equal(t, 500*time.Millisecond, conn.SlowQueryTime)
	assert.Equal(t, 100, conn.MaxOpenConns, "unset keys keep their defaults")
	assert.False(t, cfg.Database.DataMigrateConfig.EnableForeignKey)
	assert.True(t, cfg.Database.DataMigrateConfig.EnableMigrateOnStartup)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "application.yaml", "server:\n  port: 9090\nseed:\n  members: 3\n")
	envFile := writeFile(t, ".env", "SERVER_PORT=7070\nLOG_LEVEL=WARN\nSEED_MEMBERS=7\n")
	t.Setenv("SEED_MEMBERS", "0")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, ".env overrides the file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 0, cfg.Seed.Members, "process environment wins over .env")
}

func TestLoadRejectsInvalid(t *testing.T) {
	noEnv := filepath.Join(t.TempDir(), "none.env")
	cases := map[string]string{
		"mode":      "server:\n  mode: fast\n",
		"port":      "server:\n  port: 70000\n",
		"format":    "log:\n  format: xml\n",
		"page size": "web:\n  pageable:\n    default_page_size: 30\n    max_page_size: 10\n",
		"seed":      "seed:\n  members: -1\n",
		"yaml":      "server: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "application.yaml", content), noEnv)
			assert.Error(t, err)
		})
	}
}
