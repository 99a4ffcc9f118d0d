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
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// opener creates the pool and the matching dialect for one database type.
type opener func(c *ConnectionConfig) (*sql.DB, schema.Dialect, error)

var openers = map[string]opener{
	"mysql":      openMySQL,
	"postgres":   openPostgres,
	"postgresql": openPostgres,
	"sqlite":     openSQLite,
	"sqlite3":    openSQLite,
}

// SupportedTypes lists the accepted values of connection_config.type.
func SupportedTypes() []string {
	types := make([]string, 0, len(openers))
	for t := range openers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func openMySQL(c *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = c.ConnectTimeout
	mc.ReadTimeout = c.ReadTimeout
	mc.WriteTimeout = c.WriteTimeout

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, err
	}
	return sql.OpenDB(connector), mysqldialect.New(), nil
}

func openPostgres(c *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.DBName,
		RawQuery: url.Values{
			"sslmode":         {sslMode},
			"connect_timeout": {strconv.Itoa(int(c.ConnectTimeout.Seconds()))},
		}.Encode(),
	}
	connector, err := pq.NewConnector(dsn.String())
	if err != nil {
		return nil, nil, err
	}
	return sql.OpenDB(connector), pgdialect.New(), nil
}

func openSQLite(c *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	dsn := c.DBName + ".db"
	if c.IsMemory() {
		// a named shared-cache database lives as long as one connection stays open
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, sqlitedialect.New(), nil
}

// connectionManager is the Manager behind every factory. When
// health_check_interval is set a watcher pings the database and reconnects
// up to max_reconnect_tries times in a row.
type connectionManager struct {
	cfg    *Config
	conn   *ConnectionConfig
	logger Logger

	mu        sync.RWMutex
	db        *bun.DB
	sqlDB     *sql.DB
	hooks     []bun.QueryHook
	connected bool
	lastErr   error

	stop chan struct{}
	done chan struct{}
}

var _ Manager = (*connectionManager)(nil)

// NewManager returns a Manager for cfg; nil means DefaultConfig.
func NewManager(cfg *Config) Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &connectionManager{cfg: cfg, conn: &cfg.ConnectionConfig, logger: GetLogger()}
}

func (m *connectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return nil
	}
	if err := m.connectLocked(ctx); err != nil {
		return err
	}
	if m.conn.HealthCheckInterval > 0 && m.stop == nil {
		m.stop, m.done = make(chan struct{}), make(chan struct{})
		go m.watch(m.stop, m.done)
	}
	m.logger.Info("Database connected successfully", "type", m.conn.Type, "host", m.conn.Host, "dbname", m.conn.DBName)
	return nil
}

func (m *connectionManager) connectLocked(ctx context.Context) error {
	open, ok := openers[m.conn.Type]
	if !ok {
		return fmt.Errorf("unsupported database type: %s", m.conn.Type)
	}
	if m.conn.ConnectTimeout <= 0 {
		m.conn.ConnectTimeout = 30 * time.Second
	}
	sqlDB, dialect, err := open(m.conn)
	if err != nil {
		m.lastErr = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	m.configurePool(sqlDB)

	db := bun.NewDB(sqlDB, dialect)
	db.RegisterModel(RegisteredModelInstances()...)
	for _, hook := range m.queryHooks() {
		db.AddQueryHook(hook)
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.conn.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		m.lastErr = err
		return fmt.Errorf("database connection test failed: %w", err)
	}
	m.db, m.sqlDB = db, sqlDB
	m.connected = true
	m.lastErr = nil
	return nil
}

// queryHooks returns the configured logging hooks followed by the ones added
// with AddQueryHook.
func (m *connectionManager) queryHooks() []bun.QueryHook {
	var hooks []bun.QueryHook
	if m.conn.EnableQueryLog {
		if m.conn.QueryLogStyle == "color" {
			hooks = append(hooks, NewQueryHook(WithVerbose(true), FromEnv("BUNDEBUG")))
		} else {
			hooks = append(hooks, bundebug.NewQueryHook(bundebug.WithVerbose(true), bundebug.FromEnv("BUNDEBUG")))
		}
	}
	if m.conn.SlowQueryTime > 0 {
		hooks = append(hooks, NewSlowQueryHook(m.conn.SlowQueryTime, m.logger))
	}
	return append(hooks, m.hooks...)
}

// configurePool pins a private in-memory database to one connection.
func (m *connectionManager) configurePool(sqlDB *sql.DB) {
	if m.conn.IsMemory() {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
		return
	}
	sqlDB.SetMaxIdleConns(m.conn.MaxIdleConns)
	sqlDB.SetMaxOpenConns(m.conn.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(m.conn.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(m.conn.ConnMaxIdleTime)
}

// AddQueryHook installs hook on the current connection and on every reconnect.
func (m *connectionManager) AddQueryHook(hook bun.QueryHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
	if m.db != nil {
		m.db.AddQueryHook(hook)
	}
}

func (m *connectionManager) closeLocked() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	m.connected = false
	return err
}

// Disconnect stops the watcher and closes the pool.
func (m *connectionManager) Disconnect() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	if err := m.closeLocked(); err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	m.logger.Info("Database connection closed")
	return nil
}

// Reconnect replaces the pool; the watcher keeps running.
func (m *connectionManager) Reconnect(ctx context.Context) error {
	m.logger.Info("Attempting to reconnect to the database")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.closeLocked(); err != nil {
		m.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	return m.connectLocked(ctx)
}

func (m *connectionManager) watch(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.conn.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		status := m.HealthCheck(ctx)
		cancel()
		if status.Healthy {
			failures = 0
			continue
		}
		if !m.conn.EnableReconnect {
			continue
		}
		if failures >= m.conn.MaxReconnectTries {
			m.logger.Error("Max reconnect attempts reached, waiting for the database", "tries", failures)
			continue
		}

		failures++
		m.logger.Info("Starting database reconnect", "try", failures)
		select {
		case <-stop:
			return
		case <-time.After(m.conn.ReconnectInterval):
		}
		ctx, cancel = context.WithTimeout(context.Background(), m.conn.ConnectTimeout)
		err := m.Reconnect(ctx)
		cancel()
		if err != nil {
			m.logger.Error("Reconnect failed", "error", err, "try", failures)
			continue
		}
		failures = 0
		m.logger.Info("Reconnect succeeded")
	}
}

func (m *connectionManager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (m *connectionManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *connectionManager) GetSQLDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// HealthCheck pings with a five second budget and reports pool usage.
func (m *connectionManager) HealthCheck(ctx context.Context) *HealthStatus {
	m.mu.RLock()
	db, sqlDB, lastErr := m.db, m.sqlDB, m.lastErr
	m.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	if db == nil {
		status.LastError = "Database not initialized"
		if lastErr != nil {
			status.LastError = lastErr.Error()
		}
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}

	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	m.mu.Lock()
	if m.db == db {
		m.lastErr = err
	}
	m.mu.Unlock()
	return status
}

func (m *connectionManager) GetStats() *DBStats {
	sqlDB := m.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (m *connectionManager) migrations() (*MigrationManager, error) {
	db := m.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	mm := NewMigrationManager(db, m.logger)
	mm.SetMigrateConfig(m.cfg.DataMigrateConfig)
	mm.SetInitConfig(m.cfg.DataInitConfig)
	return mm, nil
}

func (m *connectionManager) RunMigrations(ctx context.Context) error {
	mm, err := m.migrations()
	if err != nil {
		return err
	}
	return mm.RunMigrations(ctx)
}

func (m *connectionManager) InitData(ctx context.Context) error {
	mm, err := m.migrations()
	if err != nil {
		return err
	}
	return mm.InitData(ctx)
}

func (m *connectionManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}
