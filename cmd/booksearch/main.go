// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package main is a command-line front end to the catalog search.
//
// Usage:
//
//	booksearch [-type title|author|isbn] [-limit N] QUERY...
//
// The search result is printed to stdout as JSON. A failed search prints the
// failure object and exits 1.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookfinder/internal/catalog"
	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("booksearch", flag.ContinueOnError)
	mode := fs.String("type", string(catalog.ModeTitle), "search type: title, author or isbn")
	limit := fs.Int("limit", catalog.DefaultLimit, "maximum number of results (isbn searches always return at most 5)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
		Output:    os.Stderr,
	})

	client, err := catalog.New(&cfg.Catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := client.Search(ctx, catalog.Mode(*mode), strings.Join(fs.Args(), " "), *limit)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if _, ok := result.(*catalog.Failure); ok {
		return 1
	}
	return 0
}
