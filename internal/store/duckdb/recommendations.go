// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package duckdb

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/bookfinder/internal/recommend"
)

const defaultRecommendationLimit = 10

// ReplaceRecommendations swaps userID's stored set for recs in one
// transaction. Readers see either the old set or the new one.
func (s *Store) ReplaceRecommendations(ctx context.Context, userID string, recs []recommend.Recommendation) error {
	return s.observe("replace_recommendations", func() error {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("delete recommendations: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recommendations (
				user_id, recommended_book_id, recommended_book_title,
				recommended_book_author, recommended_book_cover_url,
				score, reason, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer closeQuietly(stmt)

		now := time.Now().UTC()
		for i := range recs {
			r := &recs[i]
			if _, err := stmt.ExecContext(ctx,
				userID, r.RecommendedBookID, r.RecommendedBookTitle,
				nullable(r.RecommendedBookAuthor), nullable(r.RecommendedBookCoverURL),
				r.Score, r.Reason, now); err != nil {
				return fmt.Errorf("insert recommendation %s: %w", r.RecommendedBookID, err)
			}
		}

		return tx.Commit()
	})
}

// ClearRecommendations deletes userID's stored set.
func (s *Store) ClearRecommendations(ctx context.Context, userID string) error {
	return s.observe("clear_recommendations", func() error {
		_, err := s.conn.ExecContext(ctx, `DELETE FROM recommendations WHERE user_id = ?`, userID)
		return err
	})
}

// Recommendations returns userID's stored set, highest score first.
func (s *Store) Recommendations(ctx context.Context, userID string, limit int) ([]recommend.Recommendation, error) {
	if limit <= 0 {
		limit = defaultRecommendationLimit
	}

	var recs []recommend.Recommendation
	err := s.observe("recommendations", func() error {
		rows, err := s.conn.QueryContext(ctx, `
			SELECT user_id, recommended_book_id, recommended_book_title,
				COALESCE(recommended_book_author, ''), COALESCE(recommended_book_cover_url, ''),
				score, reason
			FROM recommendations
			WHERE user_id = ?
			ORDER BY score DESC, recommended_book_id
			LIMIT ?`, userID, limit)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		for rows.Next() {
			var r recommend.Recommendation
			if err := rows.Scan(&r.UserID, &r.RecommendedBookID, &r.RecommendedBookTitle,
				&r.RecommendedBookAuthor, &r.RecommendedBookCoverURL, &r.Score, &r.Reason); err != nil {
				return fmt.Errorf("scan recommendation: %w", err)
			}
			recs = append(recs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}
