// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

/*
schema.go - Database Schema Management

Tables mirror the hosted schema in supabase/migrations:
  - profiles: one row per known user; the batch iterates these ids
  - reading_history: viewed/saved/read entries, unique per
    (user_id, book_id, action_type)
  - recommendations: the current recommendation set per user

Timestamps are stored as UTC TIMESTAMP values written by the application.
recommendations carries no unique constraint: a set is replaced with a
delete and insert of the same keys inside one transaction. No secondary
indexes are created; DuckDB zone maps cover the filtered scans.
*/

package duckdb

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func (s *Store) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR PRIMARY KEY,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reading_history (
			user_id VARCHAR NOT NULL,
			book_id VARCHAR NOT NULL,
			book_title VARCHAR NOT NULL,
			book_author VARCHAR,
			book_cover_url VARCHAR,
			action_type VARCHAR NOT NULL CHECK (action_type IN ('viewed', 'saved', 'read')),
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, book_id, action_type)
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			user_id VARCHAR NOT NULL,
			recommended_book_id VARCHAR NOT NULL,
			recommended_book_title VARCHAR NOT NULL,
			recommended_book_author VARCHAR,
			recommended_book_cover_url VARCHAR,
			score DOUBLE NOT NULL,
			reason VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
