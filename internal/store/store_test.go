// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package store

import (
	"errors"
	"testing"

	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/store/duckdb"
	"github.com/tomtom215/bookfinder/internal/store/supabase"
)

func TestOpen(t *testing.T) {
	t.Run("duckdb", func(t *testing.T) {
		s, err := Open(&config.Config{Store: config.StoreConfig{Driver: config.DriverDuckDB, DuckDBPath: duckdb.MemoryPath}})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer s.Close()
		if _, ok := s.(*duckdb.Store); !ok {
			t.Errorf("Open() = %T, want *duckdb.Store", s)
		}
	})

	t.Run("supabase", func(t *testing.T) {
		s, err := Open(&config.Config{
			Store:    config.StoreConfig{Driver: config.DriverSupabase},
			Supabase: config.SupabaseConfig{URL: "https://x.supabase.co", ServiceRoleKey: "k"},
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer s.Close()
		if _, ok := s.(*supabase.Client); !ok {
			t.Errorf("Open() = %T, want *supabase.Client", s)
		}
	})

	t.Run("supabase without credentials", func(t *testing.T) {
		_, err := Open(&config.Config{Store: config.StoreConfig{Driver: config.DriverSupabase}})
		var cfgErr *config.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("Open() error = %v, want ConfigurationError", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		if _, err := Open(&config.Config{Store: config.StoreConfig{Driver: "mongo"}}); err == nil {
			t.Error("expected error for unknown driver")
		}
	})
}
