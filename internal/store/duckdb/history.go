// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/bookfinder/internal/recommend"
)

const (
	viewColumns = `user_id, book_id, book_title, COALESCE(book_author, ''),
		COALESCE(book_cover_url, ''), created_at`

	defaultHistoryLimit = 50
)

// ListUserIDs returns every profile id in ascending order.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.observe("list_users", func() error {
		rows, err := s.conn.QueryContext(ctx, `SELECT id FROM profiles ORDER BY id`)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan profile: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ViewHistory returns userID's viewed events, oldest first.
func (s *Store) ViewHistory(ctx context.Context, userID string) ([]recommend.ViewEvent, error) {
	var events []recommend.ViewEvent
	err := s.observe("view_history", func() error {
		var err error
		events, err = s.queryViews(ctx, `
			SELECT `+viewColumns+`
			FROM reading_history
			WHERE user_id = ? AND action_type = 'viewed'
			ORDER BY created_at, book_id`, userID)
		return err
	})
	return events, err
}

// ViewHistoryForBooks returns the full viewed streams of every other user
// who viewed one of bookIDs.
func (s *Store) ViewHistoryForBooks(ctx context.Context, bookIDs []string, excludeUserID string) ([]recommend.ViewEvent, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + viewColumns + `
		FROM reading_history
		WHERE action_type = 'viewed'
		  AND user_id IN (
			SELECT DISTINCT user_id
			FROM reading_history
			WHERE action_type = 'viewed'
			  AND user_id <> ?
			  AND book_id IN (` + placeholders(len(bookIDs)) + `)
		  )
		ORDER BY created_at, user_id, book_id`

	args := append([]any{excludeUserID}, stringArgs(bookIDs)...)

	var events []recommend.ViewEvent
	err := s.observe("view_history_for_books", func() error {
		var err error
		events, err = s.queryViews(ctx, query, args...)
		return err
	})
	return events, err
}

func (s *Store) queryViews(ctx context.Context, query string, args ...any) ([]recommend.ViewEvent, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)

	var events []recommend.ViewEvent
	for rows.Next() {
		var e recommend.ViewEvent
		if err := rows.Scan(&e.UserID, &e.BookID, &e.BookTitle, &e.BookAuthor, &e.BookCoverURL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan view event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RecordInteraction upserts one reading history entry and registers the
// user's profile.
func (s *Store) RecordInteraction(ctx context.Context, in recommend.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	return s.observe("record_interaction", func() error {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (id, created_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
			in.UserID, in.CreatedAt); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reading_history (
				user_id, book_id, book_title, book_author, book_cover_url, action_type, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, book_id, action_type) DO UPDATE SET
				book_title = EXCLUDED.book_title,
				book_author = EXCLUDED.book_author,
				book_cover_url = EXCLUDED.book_cover_url,
				created_at = EXCLUDED.created_at`,
			in.UserID, in.BookID, in.BookTitle, nullable(in.BookAuthor), nullable(in.BookCoverURL),
			string(in.ActionType), in.CreatedAt); err != nil {
			return fmt.Errorf("upsert reading history: %w", err)
		}

		return tx.Commit()
	})
}

// RemoveInteraction deletes one reading history entry.
func (s *Store) RemoveInteraction(ctx context.Context, userID, bookID string, action recommend.ActionType) error {
	return s.observe("remove_interaction", func() error {
		_, err := s.conn.ExecContext(ctx,
			`DELETE FROM reading_history WHERE user_id = ? AND book_id = ? AND action_type = ?`,
			userID, bookID, string(action))
		return err
	})
}

// ReadingHistory returns userID's entries newest first. An empty action
// returns every action type.
func (s *Store) ReadingHistory(ctx context.Context, userID string, action recommend.ActionType, limit int) ([]recommend.Interaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := `
		SELECT user_id, book_id, book_title, COALESCE(book_author, ''),
			COALESCE(book_cover_url, ''), action_type, created_at
		FROM reading_history
		WHERE user_id = ?`
	args := []any{userID}
	if action != "" {
		query += ` AND action_type = ?`
		args = append(args, string(action))
	}
	query += ` ORDER BY created_at DESC, book_id LIMIT ?`
	args = append(args, limit)

	var out []recommend.Interaction
	err := s.observe("reading_history", func() error {
		rows, err := s.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		for rows.Next() {
			var in recommend.Interaction
			var kind string
			if err := rows.Scan(&in.UserID, &in.BookID, &in.BookTitle, &in.BookAuthor,
				&in.BookCoverURL, &kind, &in.CreatedAt); err != nil {
				return fmt.Errorf("scan interaction: %w", err)
			}
			in.ActionType = recommend.ActionType(kind)
			out = append(out, in)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
