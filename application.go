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

// Package datajpa wires the member and team repositories, their controllers
// and the HTTP router from one configuration.
package datajpa

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tomoncle/datajpa/config"
	"github.com/tomoncle/datajpa/controller"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/utils"
)

// LoggerName is the registry name of the application logger.
const LoggerName = "APP"

var ErrClosed = errors.New("application is closed")

// Application resolves every component on first use and caches it.
// Components share one database factory and one metrics registry.
type Application struct {
	cfg      *config.Config
	logger   *utils.Logger
	registry *prometheus.Registry

	mu     sync.Mutex
	closed bool

	dbOnce  sync.Once
	factory *database.BaseDatabaseFactory
	dbErr   error

	repoOnce      sync.Once
	members       *repository.MemberRepository
	teams         *repository.TeamRepository
	memberQueries *repository.MemberQueryRepository
	repoErr       error

	routerOnce sync.Once
	router     *gin.Engine
	routerErr  error
}

// New configures logging and returns an application that has not connected yet.
func New(cfg *config.Config) *Application {
	if cfg == nil {
		cfg = config.Default()
	}
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	utils.ConfigureLogLevel(cfg.Log.Level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Application{
		cfg:      cfg,
		logger:   utils.NewLogger(LoggerName),
		registry: reg,
	}
}

func (a *Application) Config() *config.Config { return a.cfg }

// Registry holds the database, HTTP and runtime collectors of this application.
func (a *Application) Registry() *prometheus.Registry { return a.registry }

// Database connects on first call and creates the schema when configured.
func (a *Application) Database(ctx context.Context) (*database.BaseDatabaseFactory, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	a.dbOnce.Do(func() {
		hook, err := database.NewMetricsHook(a.registry)
		if err != nil {
			a.dbErr = fmt.Errorf("failed to register database metrics: %w", err)
			return
		}
		a.factory, a.dbErr = database.Open(ctx, &a.cfg.Database, database.WithQueryHook(hook))
		if a.dbErr == nil {
			conn := a.cfg.Database.ConnectionConfig
			a.logger.WithField("type", conn.Type).WithField("dbname", conn.DBName).Info("Database ready")
		}
	})
	return a.factory, a.dbErr
}

func (a *Application) repositories(ctx context.Context) error {
	a.repoOnce.Do(func() {
		factory, err := a.Database(ctx)
		if err != nil {
			a.repoErr = err
			return
		}
		if a.members, err = repository.NewMemberRepositoryFrom(factory); err != nil {
			a.repoErr = fmt.Errorf("failed to create member repository: %w", err)
			return
		}
		if a.teams, err = repository.NewTeamRepositoryFrom(factory); err != nil {
			a.repoErr = fmt.Errorf("failed to create team repository: %w", err)
			return
		}
		if a.memberQueries, err = repository.NewMemberQueryRepositoryFrom(factory); err != nil {
			a.repoErr = fmt.Errorf("failed to create member query repository: %w", err)
		}
	})
	return a.repoErr
}

func (a *Application) Members(ctx context.Context) (*repository.MemberRepository, error) {
	if err := a.repositories(ctx); err != nil {
		return nil, err
	}
	return a.members, nil
}

func (a *Application) Teams(ctx context.Context) (*repository.TeamRepository, error) {
	if err := a.repositories(ctx); err != nil {
		return nil, err
	}
	return a.teams, nil
}

func (a *Application) MemberQueries(ctx context.Context) (*repository.MemberQueryRepository, error) {
	if err := a.repositories(ctx); err != nil {
		return nil, err
	}
	return a.memberQueries, nil
}

// Router builds the gin engine with every controller and seeds the member
// table the first time it is called.
func (a *Application) Router(ctx context.Context) (*gin.Engine, error) {
	a.routerOnce.Do(func() {
		a.router, a.routerErr = a.buildRouter(ctx)
	})
	return a.router, a.routerErr
}

func (a *Application) buildRouter(ctx context.Context) (*gin.Engine, error) {
	if err := a.repositories(ctx); err != nil {
		return nil, err
	}
	metrics, err := controller.NewHTTPMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}

	webLogger := utils.NewLogger(controller.LoggerName)
	members := controller.NewMemberController(a.members, controller.NewPageableResolver(a.cfg.Web.Pageable), webLogger)
	if err := members.Seed(ctx, a.cfg.Seed.Members); err != nil {
		return nil, err
	}
	return controller.NewRouter(a.cfg.Server.Mode, webLogger, metrics,
		members,
		controller.NewTeamController(a.teams),
		controller.NewHealthController(a.factory),
		controller.NewMetricsController(a.registry),
	), nil
}

func (a *Application) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close disconnects the database. Calling it again is a no-op.
func (a *Application) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.factory == nil {
		return nil
	}
	if err := a.factory.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	a.logger.Info("Database closed")
	return nil
}
