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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tomoncle/datajpa/database"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "configs/application.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"` // debug, release, test
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

// PageableConfig holds the global pagination bounds of list endpoints.
type PageableConfig struct {
	DefaultPageSize      int  `yaml:"default_page_size"`
	MaxPageSize          int  `yaml:"max_page_size"`
	OneIndexedParameters bool `yaml:"one_indexed_parameters"`
}

type WebConfig struct {
	Pageable PageableConfig `yaml:"pageable"`
}

// SeedConfig controls the members created on startup; Members 0 disables it.
type SeedConfig struct {
	Members int `yaml:"members"`
}

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      LogConfig       `yaml:"log"`
	Web      WebConfig       `yaml:"web"`
	Seed     SeedConfig      `yaml:"seed"`
	Database database.Config `yaml:"database"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Mode:            gin.ReleaseMode,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Web: WebConfig{Pageable: PageableConfig{
			DefaultPageSize: 20,
			MaxPageSize:     2000,
		}},
		Seed:     SeedConfig{Members: 100},
		Database: *database.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the YAML file at path, the
// given .env files and finally the process environment. A missing file is
// skipped; an empty path means DefaultPath.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}

	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	values := make(map[string]string)
	for _, file := range files {
		env, err := godotenv.Read(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		for k, v := range env {
			if _, seen := values[k]; !seen {
				values[k] = v
			}
		}
	}
	return values, nil
}

// applyEnv overrides the server, log and seed settings. The DB_* variables
// are applied by the database factory when it connects.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("GIN_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := getenv("SEED_MEMBERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Seed.Members = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("invalid server mode: %q", c.Server.Mode)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}
	p := c.Web.Pageable
	if p.DefaultPageSize < 1 || p.MaxPageSize < 1 {
		return fmt.Errorf("page sizes must be positive: default=%d max=%d", p.DefaultPageSize, p.MaxPageSize)
	}
	if p.DefaultPageSize > p.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", p.DefaultPageSize, p.MaxPageSize)
	}
	if c.Seed.Members < 0 {
		return fmt.Errorf("invalid seed member count: %d", c.Seed.Members)
	}
	return nil
}
