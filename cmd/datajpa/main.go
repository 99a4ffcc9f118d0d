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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomoncle/datajpa"
	"github.com/tomoncle/datajpa/config"
	"github.com/tomoncle/datajpa/utils"
)

func main() {
	configPath := flag.String("config", utils.EnvDefaultString("CONFIG_PATH", config.DefaultPath), "Path of the YAML configuration")
	envFile := flag.String("env-file", ".env", "Path of the .env file")
	flag.Parse()

	logger := utils.NewLogger(datajpa.LoggerName)
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	app := datajpa.New(cfg)
	defer func() {
		if err := app.Close(); err != nil {
			logger.WithError(err).Error("Failed to close application")
		}
	}()

	ctx := context.Background()
	router, err := app.Router(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to build application")
		return
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server stopped")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Server exited")
}
