// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

/*
openlibrary.go - Open Library Search Client

This file implements the search wrapper over https://openlibrary.org/search.json.

Request Configuration:
  - title and author searches default to 20 results
  - isbn searches always request 5 results
  - a token bucket limiter and a circuit breaker guard the provider
  - successful responses are cached in BadgerDB when a cache is configured

Provider errors (transport failures, non-2xx statuses, undecodable bodies)
become a Failure of kind KindProvider. They never escape as Go errors.
*/

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/bookfinder/internal/breaker"
	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/logging"
	"github.com/tomtom215/bookfinder/internal/metrics"
)

const (
	defaultBaseURL = "https://openlibrary.org"
	searchPath     = "/search.json"

	// DefaultLimit applies to title and author searches.
	DefaultLimit = 20
	isbnLimit    = 5

	maxResponseBody = 8 << 20
)

// Search outcome labels for metrics.
const (
	outcomeSuccess  = "success"
	outcomeInvalid  = "invalid"
	outcomeProvider = "provider_error"
)

// statusError is a non-2xx response from the provider.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openlibrary returned status %d", e.code)
}

// Client searches Open Library.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker.Breaker
	cache      *Cache
}

// New creates a client from cfg. A positive CacheTTL opens a response cache
// that Close releases.
func New(cfg *config.CatalogConfig) (*Client, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		breaker: breaker.New("openlibrary", breaker.Settings{
			IsSuccessful: func(err error) bool {
				var se *statusError
				if errors.As(err, &se) {
					return se.code < 500 && se.code != http.StatusTooManyRequests
				}
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}

	if cfg.CacheTTL > 0 {
		cache, err := OpenCache(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

// Close releases the response cache.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// Search runs a catalog search. limit <= 0 uses DefaultLimit; isbn searches
// always use 5.
func (c *Client) Search(ctx context.Context, mode Mode, query string, limit int) Result {
	if strings.TrimSpace(query) == "" {
		metrics.RecordCatalogSearch(string(mode), outcomeInvalid)
		return &Failure{Kind: KindInvalidQuery, Message: "Search query cannot be empty"}
	}
	if !mode.Valid() {
		metrics.RecordCatalogSearch("unknown", outcomeInvalid)
		return &Failure{Kind: KindInvalidMode, Message: fmt.Sprintf("Invalid search type: %s", mode)}
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if mode == ModeISBN {
		limit = isbnLimit
	}

	resp, err := c.fetch(ctx, mode, query, limit)
	if err != nil {
		metrics.RecordCatalogSearch(string(mode), outcomeProvider)
		logging.Ctx(ctx).Warn().Err(err).Str("mode", string(mode)).Msg("Catalog search failed")
		return &Failure{
			Kind:    KindProvider,
			Message: fmt.Sprintf("Failed to search by %s: %v", mode.label(), err),
		}
	}

	metrics.RecordCatalogSearch(string(mode), outcomeSuccess)
	return normalize(resp)
}

func (c *Client) fetch(ctx context.Context, mode Mode, query string, limit int) (*searchResponse, error) {
	key := string(mode) + ":" + strconv.Itoa(limit) + ":" + query

	body, cached := c.cachedBody(key)
	if !cached {
		var err error
		body, err = breaker.Execute(c.breaker, func() ([]byte, error) {
			return c.get(ctx, mode, query, limit)
		})
		if err != nil {
			return nil, err
		}
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !cached && c.cache != nil {
		if err := c.cache.Set(key, body); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to cache catalog response")
		}
	}
	return &resp, nil
}

func (c *Client) cachedBody(key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok := c.cache.Get(key)
	if ok {
		metrics.CatalogCacheHits.Inc()
	} else {
		metrics.CatalogCacheMisses.Inc()
	}
	return body, ok
}

func (c *Client) get(ctx context.Context, mode Mode, query string, limit int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set(string(mode), query)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchPath+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "bookfinder (+https://github.com/tomtom215/bookfinder)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
