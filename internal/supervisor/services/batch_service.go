// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package services provides suture service wrappers for the server.
package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookfinder/internal/recommend"
)

// BatchRunner runs one full recommendation batch.
type BatchRunner interface {
	Run(ctx context.Context) (*recommend.Summary, error)
}

// BatchServiceConfig configures the scheduled batch.
type BatchServiceConfig struct {
	// Interval between runs. Must be positive.
	Interval time.Duration

	// RunOnStartup triggers a run as soon as the service starts.
	RunOnStartup bool

	// RunTimeout bounds a single run. Zero means one Interval.
	RunTimeout time.Duration
}

// BatchService runs the recommendation batch on a fixed schedule.
//
// A failed run (e.g. the user list could not be read) is logged and retried
// at the next tick; it never returns an error to the supervisor. Runs never
// overlap because they execute on the service goroutine.
type BatchService struct {
	runner BatchRunner
	config BatchServiceConfig
	logger zerolog.Logger
	runs   atomic.Int64
}

// NewBatchService creates a scheduled batch service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBatchService(runner BatchRunner, cfg BatchServiceConfig, logger zerolog.Logger) *BatchService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = cfg.Interval
	}
	return &BatchService{
		runner: runner,
		config: cfg,
		logger: logger.With().Str("service", "batch").Logger(),
	}
}

// Serve implements suture.Service.
func (s *BatchService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("interval", s.config.Interval).
		Msg("Batch scheduler starting")

	if s.config.RunOnStartup {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Batch scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// Runs returns how many runs have been attempted.
func (s *BatchService) Runs() int64 {
	return s.runs.Load()
}

func (s *BatchService) run(ctx context.Context) {
	s.runs.Add(1)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	summary, err := s.runner.Run(runCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled batch run failed")
		return
	}

	s.logger.Info().
		Str("run_id", summary.RunID).
		Int("users", summary.Users).
		Int("generated", summary.Generated).
		Int("failed", summary.Failed).
		Int("total", summary.Total).
		Bool("interrupted", summary.Interrupted).
		Dur("duration", summary.Duration).
		Msg("Scheduled batch run complete")
}

// String returns the service name for logging.
func (s *BatchService) String() string {
	return "batch-scheduler"
}
