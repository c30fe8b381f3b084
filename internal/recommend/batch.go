// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/bookfinder/internal/logging"
	"github.com/tomtom215/bookfinder/internal/metrics"
)

// StalePolicy decides what happens to stored recommendations of a user
// whose run produced none.
type StalePolicy string

const (
	// StaleRetain leaves the previous set in place.
	StaleRetain StalePolicy = "retain"
	// StaleClear deletes the previous set.
	StaleClear StalePolicy = "clear"
)

// BatchConfig configures a Batch.
type BatchConfig struct {
	// Workers is the number of users processed concurrently.
	// Default: 1
	Workers int

	// StalePolicy applies to users who produce no recommendations.
	// Default: StaleRetain
	StalePolicy StalePolicy

	// UserTimeout bounds one user's processing. Zero disables it.
	UserTimeout time.Duration

	// Limit is the number of recommendations kept per user.
	// Default: DefaultLimit
	Limit int
}

// OutcomeKind classifies a processed user.
type OutcomeKind int

const (
	// OutcomeGenerated means recommendations were written.
	OutcomeGenerated OutcomeKind = iota
	// OutcomeEmpty means nothing was produced and nothing was written
	// (or the stored set was cleared under StaleClear).
	OutcomeEmpty
	// OutcomeFailed means the user's processing failed.
	OutcomeFailed
)

// String returns the metrics label for the outcome.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeGenerated:
		return metrics.OutcomeGenerated
	case OutcomeEmpty:
		return metrics.OutcomeEmpty
	case OutcomeFailed:
		return metrics.OutcomeFailed
	default:
		return "unknown"
	}
}

// UserOutcome is the result of processing one user.
type UserOutcome struct {
	UserID   string
	Kind     OutcomeKind
	Count    int
	Err      *UserProcessingError
	Duration time.Duration
}

// Summary aggregates one batch run.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Users     int
	Generated int
	Empty     int
	Failed    int

	// Skipped counts users never dispatched because the run was cancelled.
	Skipped int

	// Total is the number of recommendation rows written.
	Total int

	// Failures lists every per-user failure in completion order.
	Failures []*UserProcessingError

	// Interrupted is set when the context was cancelled mid-run.
	Interrupted bool
}

func (s *Summary) record(o UserOutcome) {
	switch o.Kind {
	case OutcomeGenerated:
		s.Generated++
		s.Total += o.Count
	case OutcomeEmpty:
		s.Empty++
	case OutcomeFailed:
		s.Failed++
		s.Failures = append(s.Failures, o.Err)
	}
}

// Batch recomputes recommendations for every known user.
//
// A user is processed by at most one goroutine at a time, whether it comes
// from Run or RunUser, so no two writers ever touch the same user's rows. A user's failure is recorded and never cancels the
// other workers.
type Batch struct {
	history   HistoryStore
	writer    RecommendationWriter
	generator *Generator
	notifier  Notifier
	reporter  *Reporter
	locks     *userLocks
	cfg       BatchConfig
	logger    zerolog.Logger
}

// NewBatch creates a batch over the given store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBatch(history HistoryStore, writer RecommendationWriter, cfg BatchConfig, logger zerolog.Logger) (*Batch, error) {
	if history == nil || writer == nil {
		return nil, ErrNilStore
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.StalePolicy == "" {
		cfg.StalePolicy = StaleRetain
	}
	if cfg.StalePolicy != StaleRetain && cfg.StalePolicy != StaleClear {
		return nil, fmt.Errorf("unknown stale policy %q", cfg.StalePolicy)
	}

	generator, err := NewGenerator(history, cfg.Limit, logger)
	if err != nil {
		return nil, err
	}

	return &Batch{
		history:   history,
		writer:    writer,
		generator: generator,
		reporter:  NewReporter(nil),
		locks:     newUserLocks(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "batch").Logger(),
	}, nil
}

// SetReporter sets where progress lines are written.
func (b *Batch) SetReporter(r *Reporter) {
	if r != nil {
		b.reporter = r
	}
}

// SetNotifier sets the change notifier. Notification failures are logged
// and never fail a user.
func (b *Batch) SetNotifier(n Notifier) {
	b.notifier = n
}

// Run processes every user once.
//
// A failure to list users aborts the run before any per-user work and is
// returned as *DataAccessError. Per-user failures are reported in the
// Summary and do not make Run return an error. If ctx is cancelled no new
// users are dispatched; Run then returns the partial Summary with ctx.Err().
func (b *Batch) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := b.logger.With().Str("run_id", summary.RunID).Logger()

	users, err := b.history.ListUserIDs(ctx)
	if err != nil {
		metrics.RecordBatchRun(time.Since(summary.StartedAt), true)
		return nil, &DataAccessError{Op: "list_users", Err: err}
	}
	summary.Users = len(users)

	logger.Info().Int("users", len(users)).Int("workers", b.cfg.Workers).
		Str("stale_policy", string(b.cfg.StalePolicy)).Msg("Batch run starting")
	b.reporter.Start(len(users))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)

	dispatched := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			outcome := b.process(ctx, summary.RunID, userID)

			mu.Lock()
			summary.record(outcome)
			mu.Unlock()

			b.reporter.Outcome(outcome)
			return nil
		})
	}
	_ = g.Wait()

	summary.Skipped = len(users) - dispatched
	summary.Duration = time.Since(summary.StartedAt)
	summary.Interrupted = ctx.Err() != nil

	b.reporter.Finish(summary)
	metrics.RecordBatchRun(summary.Duration, false)

	logger.Info().
		Int("generated", summary.Generated).
		Int("empty", summary.Empty).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("total", summary.Total).
		Dur("duration", summary.Duration).
		Msg("Batch run finished")

	if summary.Interrupted {
		return summary, fmt.Errorf("batch interrupted: %w", ctx.Err())
	}
	return summary, nil
}

// RunUser processes a single user outside a full batch run.
func (b *Batch) RunUser(ctx context.Context, userID string) UserOutcome {
	return b.process(ctx, uuid.NewString(), userID)
}

// process handles one user start to finish and never panics.
func (b *Batch) process(ctx context.Context, runID, userID string) (outcome UserOutcome) {
	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	logger := b.logger.With().
		Str("run_id", runID).
		Str("user_id", userID).
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			outcome = failed(userID, fmt.Errorf("panic: %v", r))
		}
		outcome.Duration = time.Since(start)
		metrics.RecordUserOutcome(outcome.Kind.String(), outcome.Count, outcome.Duration)
		if outcome.Kind == OutcomeFailed {
			logger.Error().Err(outcome.Err.Err).Msg("Error generating recommendations")
		}
	}()

	if b.cfg.UserTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.UserTimeout)
		defer cancel()
	}

	release, err := b.locks.acquire(ctx, userID)
	if err != nil {
		return failed(userID, err)
	}
	defer release()

	recs, err := b.generator.Generate(ctx, userID)
	if err != nil {
		return failed(userID, err)
	}

	if len(recs) == 0 {
		if b.cfg.StalePolicy == StaleClear {
			if err := b.writer.ClearRecommendations(ctx, userID); err != nil {
				return failed(userID, &DataAccessError{Op: "clear_recommendations", Err: err})
			}
			b.notify(ctx, logger, userID, 0, runID)
		}
		return UserOutcome{UserID: userID, Kind: OutcomeEmpty}
	}

	if err := b.writer.ReplaceRecommendations(ctx, userID, recs); err != nil {
		return failed(userID, &DataAccessError{Op: "replace_recommendations", Err: err})
	}
	b.notify(ctx, logger, userID, len(recs), runID)

	return UserOutcome{UserID: userID, Kind: OutcomeGenerated, Count: len(recs)}
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (b *Batch) notify(ctx context.Context, logger zerolog.Logger, userID string, count int, runID string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.RecommendationsUpdated(ctx, userID, count, runID); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish recommendation update")
	}
}

func failed(userID string, err error) UserOutcome {
	return UserOutcome{
		UserID: userID,
		Kind:   OutcomeFailed,
		Err:    &UserProcessingError{UserID: userID, Err: err},
	}
}
