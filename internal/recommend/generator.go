// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookfinder/internal/logging"
)

// Generator produces one user's recommendations from the shared history.
type Generator struct {
	history HistoryStore
	limit   int
	logger  zerolog.Logger
}

// NewGenerator creates a generator. limit <= 0 uses DefaultLimit.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewGenerator(history HistoryStore, limit int, logger zerolog.Logger) (*Generator, error) {
	if history == nil {
		return nil, ErrNilStore
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Generator{
		history: history,
		limit:   limit,
		logger:  logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Generate returns userID's ranked recommendations.
//
// A user without viewed events yields no recommendations and no neighbor
// query is issued. Store failures are returned as *DataAccessError.
func (g *Generator) Generate(ctx context.Context, userID string) ([]Recommendation, error) {
	events, err := g.history.ViewHistory(ctx, userID)
	if err != nil {
		return nil, &DataAccessError{Op: "view_history", Err: err}
	}
	if len(events) == 0 {
		return nil, nil
	}

	target := newBookSet(events)
	neighbors, err := g.history.ViewHistoryForBooks(ctx, distinctBookIDs(events), userID)
	if err != nil {
		return nil, &DataAccessError{Op: "view_history_for_books", Err: err}
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	candidates := aggregate(target, neighbors)
	recs := Rank(userID, candidates.list(), g.limit)

	g.log(ctx).Debug().
		Str("user_id", userID).
		Int("history", len(events)).
		Int("neighbor_events", len(neighbors)).
		Int("candidates", candidates.Len()).
		Int("recommendations", len(recs)).
		Msg("Generated recommendations")

	return recs, nil
}

func (g *Generator) log(ctx context.Context) *zerolog.Logger {
	logger := g.logger
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With().Str("correlation_id", id).Logger()
	}
	return &logger
}
