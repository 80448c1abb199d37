// Copyright 2026 The Redscope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redscope/redscope/internal/config"
	"github.com/redscope/redscope/internal/devserver"
	"github.com/redscope/redscope/internal/observability/logger"
	"github.com/redscope/redscope/internal/observability/tracing"
	"github.com/redscope/redscope/internal/store/postgres"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName + "-dev",
	})
	slog.Info("starting redscope dev auth server")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName + "-dev",
		ServiceVersion: cfg.Observability.ServiceVersion,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Pick the user store. Without a database URL everything lives in
	// memory and is reseeded on every start.
	var users devserver.UserStore
	var seed func(hasher *devserver.PasswordHasher) error

	if cfg.Dev.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.Dev.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
			slog.Error("failed to run migrations", logger.Error(err))
			os.Exit(1)
		}
		slog.Info("connected to database")

		store := postgres.NewUserStore(db)
		users = store
		seed = func(hasher *devserver.PasswordHasher) error {
			return store.Seed(ctx, hasher)
		}
	} else {
		store := devserver.NewMemoryUserStore()
		users = store
		seed = func(hasher *devserver.PasswordHasher) error {
			return devserver.SeedUsers(store, hasher)
		}
	}

	srv := devserver.New(cfg.Dev, users, slog.Default())
	defer srv.Close()

	if err := seed(srv.Hasher()); err != nil {
		slog.Error("failed to seed users", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("seeded dev accounts", slog.String("password", "redscope"))

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Dev.Host, cfg.Dev.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Dev.ReadTimeout,
		WriteTimeout: cfg.Dev.WriteTimeout,
		IdleTimeout:  cfg.Dev.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("devserver"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
