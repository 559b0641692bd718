// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package main is the entry point for the Begripp server.
//
// Begripp mirrors operational data from the Gripp CRM API (employees,
// contracts, projects, worked hours, absences, invoices) into a local
// DuckDB store and serves it to the dashboard through a two-tier cache.
//
// Startup order:
//
//  1. Configuration: defaults, config.yaml, environment (Koanf v2)
//  2. Database: DuckDB mirror store with schema bootstrap
//  3. Cache: in-memory fast tier plus BadgerDB durable tier
//  4. Sync engine: Gripp client, circuit breaker, periodic manager
//  5. HTTP server: chi router with the dashboard API
//  6. Supervisor: suture tree running sync and HTTP under restart policy
//
// Shutdown on SIGINT/SIGTERM cancels the supervisor context, which
// drains the sync loop and gracefully closes the HTTP server before
// the stores are closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/flipmoo/begripp-sub003/internal/api"
	"github.com/flipmoo/begripp-sub003/internal/cache"
	"github.com/flipmoo/begripp-sub003/internal/config"
	"github.com/flipmoo/begripp-sub003/internal/database"
	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/supervisor"
	syncengine "github.com/flipmoo/begripp-sub003/internal/sync"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting Begripp server")

	db, err := database.New(&cfg.Database, cfg.Sync.BatchSize)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close database")
		}
	}()

	cacheLayer, err := cache.New(cache.Config{
		DefaultTTL: cfg.Cache.DefaultTTL,
		Path:       cfg.Cache.Path,
		InMemory:   cfg.Cache.InMemory,
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := cacheLayer.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close cache")
		}
	}()

	client := syncengine.NewBreakerClient(syncengine.NewClient(&cfg.Gripp))
	manager := syncengine.NewManager(&cfg.Sync, client, db, cacheLayer)

	handlers := api.NewHandlers(manager, db, cacheLayer, cfg.Cache.DefaultTTL)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, &cfg.Server),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(supervisor.NewSyncService(manager))
	tree.AddAPIService(supervisor.NewHTTPService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
