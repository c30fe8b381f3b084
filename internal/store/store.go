// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package store selects and opens the configured recommendation store.
package store

import (
	"fmt"

	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/recommend"
	"github.com/tomtom215/bookfinder/internal/store/duckdb"
	"github.com/tomtom215/bookfinder/internal/store/supabase"
)

// Open returns the store selected by cfg.Store.Driver. The caller owns the
// returned handle and must Close it.
func Open(cfg *config.Config) (recommend.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSupabase, "":
		c, err := supabase.New(&cfg.Supabase)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.DriverDuckDB:
		s, err := duckdb.New(cfg.Store.DuckDBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
