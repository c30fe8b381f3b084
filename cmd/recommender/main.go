// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package main is the one-shot recommendation batch job.
//
// It recomputes the stored recommendations of every user that has reading
// history, printing one progress line per user and a final total to stdout.
// Structured logs go to stderr.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (defaults, config.yaml, environment).
// With the default supabase store the job needs:
//   - SUPABASE_URL
//   - SUPABASE_SERVICE_ROLE_KEY
//
// Optional:
//   - BATCH_WORKERS, BATCH_STALE_POLICY (retain|clear), BATCH_USER_TIMEOUT
//   - NATS_URL: publish a recommendations.updated event per written user
//   - METRICS_PUSHGATEWAY_URL: push run metrics when the job finishes
//
// # Exit Codes
//
// 0 when the run completed (individual user failures included), 1 when the
// configuration is invalid, the store is unreachable, or the user list could
// not be read. SIGINT/SIGTERM stop dispatching new users; the partial total is
// printed and the job exits 1.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/events"
	"github.com/tomtom215/bookfinder/internal/logging"
	"github.com/tomtom215/bookfinder/internal/metrics"
	"github.com/tomtom215/bookfinder/internal/recommend"
	"github.com/tomtom215/bookfinder/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	fmt.Println("Starting recommendation engine...")
	fmt.Printf("Timestamp: %s\n", time.Now().Format(time.RFC3339))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open store")
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		return 1
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close store")
		}
	}()

	batch, err := recommend.NewBatch(st, st, recommend.BatchConfig{
		Workers:     cfg.Batch.Workers,
		StalePolicy: recommend.StalePolicy(cfg.Batch.StalePolicy),
		UserTimeout: cfg.Batch.UserTimeout,
	}, logging.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		return 1
	}
	batch.SetReporter(recommend.NewReporter(os.Stdout))

	if cfg.Events.NATSURL != "" {
		publisher, perr := events.NewNATSPublisher(&cfg.Events)
		if perr != nil {
			// Events are best-effort; the batch still runs without them.
			logging.Warn().Err(perr).Msg("Event publishing disabled")
		} else {
			defer func() { _ = publisher.Close() }()
			batch.SetNotifier(publisher)
		}
	}

	summary, runErr := batch.Run(ctx)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName); err != nil {
			logging.Warn().Err(err).Msg("Failed to push metrics")
		}
		cancel()
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) && summary != nil {
			logging.Warn().Int("skipped", summary.Skipped).Msg("Batch interrupted")
			return 1
		}
		logging.Error().Err(runErr).Msg("Batch run failed")
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", runErr)
		return 1
	}

	logging.Info().
		Str("run_id", summary.RunID).
		Int("users", summary.Users).
		Int("failed", summary.Failed).
		Int("total", summary.Total).
		Dur("duration", summary.Duration).
		Msg("Batch run complete")
	return 0
}
