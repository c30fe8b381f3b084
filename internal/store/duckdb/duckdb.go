// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package duckdb implements the recommendation store on an embedded DuckDB
// database. It backs local development, tests and single-node deployments
// that do not use a hosted Supabase project.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/bookfinder/internal/logging"
	"github.com/tomtom215/bookfinder/internal/metrics"
	"github.com/tomtom215/bookfinder/internal/recommend"
)

const driverName = "duckdb"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var _ recommend.Store = (*Store)(nil)

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn *sql.DB
	path string
}

// New opens the database at path, creating parent directories and the
// schema when needed.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("duckdb: path is required")
	}

	if path != MemoryPath {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", path).Msg("DuckDB store opened")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *Store) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStoreRequest(driverName, op, time.Since(start), err)
	return err
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// closeQuietly closes a resource, ignoring errors.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
