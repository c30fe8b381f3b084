// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package main is the entry point for the Bookfinder API server.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Store: Supabase REST or a local DuckDB file
//  3. Catalog: Open Library client with rate limiting, circuit breaker and BadgerDB cache
//  4. Events (optional): NATS publisher for recommendations.updated
//  5. Batch: recommendation generator used by the scheduler and the refresh endpoint
//  6. HTTP Server: chi router with JWT-protected /me routes
//  7. Supervisor tree: HTTP server and batch scheduler under suture v4
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// Required:
//   - SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY (store.driver=supabase)
//   - SUPABASE_JWT_SECRET: verifies user access tokens on /api/v1/me routes
//
// Optional:
//   - BATCH_INTERVAL: run the batch on a schedule (0 disables it)
//   - NATS_URL: publish recommendations.updated events
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
// in-flight requests for server.shutdown_timeout and a running batch stops
// dispatching new users.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tomtom215/bookfinder/docs" // Import generated swagger docs
	"github.com/tomtom215/bookfinder/internal/api"
	"github.com/tomtom215/bookfinder/internal/auth"
	"github.com/tomtom215/bookfinder/internal/catalog"
	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/events"
	"github.com/tomtom215/bookfinder/internal/logging"
	"github.com/tomtom215/bookfinder/internal/recommend"
	"github.com/tomtom215/bookfinder/internal/store"
	"github.com/tomtom215/bookfinder/internal/supervisor"
	"github.com/tomtom215/bookfinder/internal/supervisor/services"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().Msg("Starting Bookfinder with supervisor tree")
	logging.Info().
		Str("store_driver", cfg.Store.Driver).
		Str("catalog_url", cfg.Catalog.BaseURL).
		Dur("batch_interval", cfg.Batch.Interval).
		Bool("events_enabled", cfg.Events.NATSURL != "").
		Msg("Configuration loaded")

	st, err := store.Open(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	catalogClient, err := catalog.New(&cfg.Catalog)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create catalog client")
	}
	defer func() { _ = catalogClient.Close() }()

	jwtManager, err := auth.NewJWTManager(cfg.Supabase.JWTSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create JWT manager")
	}

	batch, err := recommend.NewBatch(st, st, recommend.BatchConfig{
		Workers:     cfg.Batch.Workers,
		StalePolicy: recommend.StalePolicy(cfg.Batch.StalePolicy),
		UserTimeout: cfg.Batch.UserTimeout,
	}, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation batch")
	}

	if cfg.Events.NATSURL != "" {
		publisher, perr := events.NewNATSPublisher(&cfg.Events)
		if perr != nil {
			logging.Warn().Err(perr).Msg("Event publishing disabled")
		} else {
			defer func() { _ = publisher.Close() }()
			batch.SetNotifier(publisher)
			logging.Info().Str("subject", publisher.Topic()).Msg("Event publishing enabled")
		}
	}

	router := api.NewRouter(api.NewHandler(st, catalogClient, batch), jwtManager, &api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitRequests,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})

	// === SUPERVISOR TREE ===

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	if cfg.Batch.Interval > 0 {
		tree.AddJobService(services.NewBatchService(batch, services.BatchServiceConfig{
			Interval:     cfg.Batch.Interval,
			RunOnStartup: cfg.Batch.RunOnStartup,
		}, logging.Logger()))
		logging.Info().Dur("interval", cfg.Batch.Interval).Msg("Batch scheduler service added")
	}

	server := services.NewHTTPServer(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), router)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(sigCtx)

	select {
	case <-sigCtx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Bookfinder stopped gracefully")
}
