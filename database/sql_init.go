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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/uptrace/bun"
)

const unorderedFile = 999

// SQLInitManager runs the seed files of one environment. Files under
// common/ come first, then environments/<environment>/; inside each group
// they run by their numeric prefix ("1_teams.sql"), then by name.
type SQLInitManager struct {
	db          bun.IDB
	environment string
	root        string
	fsys        fs.FS
	logger      Logger
}

type SQLFileInfo struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

func NewSQLInitManager(db bun.IDB, environment string) *SQLInitManager {
	return &SQLInitManager{
		db:          db,
		environment: environment,
		root:        "configs/sql",
		logger:      GetLogger(),
	}
}

func (s *SQLInitManager) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetSQLRootPath reads the files from a directory on disk.
func (s *SQLInitManager) SetSQLRootPath(root string) {
	s.root = root
	s.fsys = nil
}

// SetFS reads the files from fsys, for example an embed.FS.
func (s *SQLInitManager) SetFS(fsys fs.FS) {
	s.fsys = fsys
}

func (s *SQLInitManager) source() fs.FS {
	if s.fsys != nil {
		return s.fsys
	}
	return os.DirFS(s.root)
}

// ExecuteInitialization runs every file in its own transaction and stops at
// the first failure.
func (s *SQLInitManager) ExecuteInitialization(ctx context.Context) error {
	s.logger.Info("Starting SQL initialization", "environment", s.environment, "sql_path", s.root)

	files, err := s.GetSQLFiles()
	if err != nil {
		return fmt.Errorf("failed to get SQL files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No SQL files found to execute")
		return nil
	}

	for _, file := range files {
		start := time.Now()
		rows, err := s.executeFile(ctx, file)
		if err != nil {
			s.logger.Error("SQL file execution failed", "file", file.Path, "error", err.Error())
			return fmt.Errorf("SQL file execution failed %s: %w", file.Path, err)
		}
		s.logger.Info("SQL file executed successfully", "file", file.Path, "duration", time.Since(start).String(), "rows_affected", rows)
	}
	s.logger.Info("SQL initialization completed", "total_files", len(files), "environment", s.environment)
	return nil
}

// GetSQLFiles lists the files in execution order.
func (s *SQLInitManager) GetSQLFiles() ([]SQLFileInfo, error) {
	fsys := s.source()
	groups := []struct{ dir, environment string }{
		{"common", "common"},
		{path.Join("environments", s.environment), s.environment},
	}

	var files []SQLFileInfo
	for _, g := range groups {
		found, err := s.filesIn(fsys, g.dir, g.environment)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s SQL files: %w", g.environment, err)
		}
		sort.SliceStable(found, func(i, j int) bool {
			if found[i].Order != found[j].Order {
				return found[i].Order < found[j].Order
			}
			return found[i].Name < found[j].Name
		})
		files = append(files, found...)
	}
	return files, nil
}

func (s *SQLInitManager) filesIn(fsys fs.FS, dir, environment string) ([]SQLFileInfo, error) {
	if _, err := fs.Stat(fsys, dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var files []SQLFileInfo
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(d.Name()), ".sql") {
			return nil
		}
		files = append(files, SQLFileInfo{
			Path:        p,
			Name:        d.Name(),
			Order:       s.parseFileOrder(d.Name()),
			Environment: environment,
		})
		return nil
	})
	return files, err
}

func (s *SQLInitManager) parseFileOrder(filename string) int {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return unorderedFile
	}
	order, err := strconv.Atoi(prefix)
	if err != nil || order < 0 {
		return unorderedFile
	}
	return order
}

func (s *SQLInitManager) executeFile(ctx context.Context, file SQLFileInfo) (int64, error) {
	content, err := fs.ReadFile(s.source(), file.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)
	if strings.Contains(text, "{{") {
		if text, err = s.render(text); err != nil {
			return 0, err
		}
	}
	statements := s.splitSQLStatements(text)
	if len(statements) == 0 {
		return 0, nil
	}

	var rows int64
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range statements {
			res, err := tx.ExecContext(ctx, stmt)
			if err != nil {
				return fmt.Errorf("failed to execute SQL statement: %s, error: %w", stmt, err)
			}
			n, _ := res.RowsAffected()
			rows += n
		}
		return nil
	})
	return rows, err
}

// render expands {{.NAME}} with the process environment plus ENVIRONMENT
// and TIMESTAMP.
func (s *SQLInitManager) render(content string) (string, error) {
	tmpl, err := template.New("sql").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	vars["ENVIRONMENT"] = s.environment
	vars["TIMESTAMP"] = time.Now().Format("2006-01-02 15:04:05")

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// splitSQLStatements joins lines until one ends with ';'. Blank lines and
// "--" comment lines are dropped; a trailing statement may omit the ';'.
func (s *SQLInitManager) splitSQLStatements(content string) []string {
	var statements, current []string
	flush := func() {
		if len(current) > 0 {
			statements = append(statements, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current = append(current, line)
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return statements
}
