// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

/*
client.go - Supabase PostgREST Client

This file implements the HTTP plumbing shared by every store operation
against a hosted Supabase project.

Request Configuration:
  - Authentication: apikey and Authorization: Bearer headers carry the
    service role key on every request
  - Throttling: a token bucket limiter gates each attempt
  - Resilience: every logical request runs through a circuit breaker
  - Retries: HTTP 429 and 5xx responses are retried with exponential
    backoff, honoring Retry-After when the server sends it

PostgREST error bodies ({code, message, details, hint}) are decoded into
APIError. Client errors other than 429 do not count against the breaker.
*/

package supabase

import (
	"bytes"
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
	driverName = "supabase"

	// defaultPageSize matches the PostgREST max-rows default.
	defaultPageSize = 1000

	// maxFilterValues bounds the size of one in.(...) filter so that
	// request URLs stay well under common proxy limits.
	maxFilterValues = 100

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// APIError is a non-2xx response from PostgREST.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("supabase returned status %d", e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase returned status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a Supabase-backed recommend.Store.
type Client struct {
	restURL    string
	key        string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker.Breaker

	maxRetries int
	retryDelay time.Duration
	pageSize   int
}

// New creates a client for the project at cfg.URL.
func New(cfg *config.SupabaseConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("supabase: config is nil")
	}
	var missing []string
	if cfg.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if cfg.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if len(missing) > 0 {
		return nil, &config.ConfigurationError{Missing: missing}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		restURL:    strings.TrimSuffix(cfg.URL, "/") + "/rest/v1",
		key:        cfg.ServiceRoleKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		breaker: breaker.New(driverName, breaker.Settings{
			IsSuccessful: isBreakerSuccess,
		}),
		maxRetries: cfg.MaxRetries,
		retryDelay: 500 * time.Millisecond,
		pageSize:   defaultPageSize,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// isBreakerSuccess treats caller mistakes as healthy responses so that bad
// requests cannot open the circuit.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Retryable()
	}
	return false
}

// requestConfig describes one PostgREST call.
type requestConfig struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	prefer string
}

// do executes req through the breaker and decodes a JSON response into out.
// out may be nil when no response body is expected.
func (c *Client) do(ctx context.Context, req requestConfig, out any) error {
	start := time.Now()
	err := c.breaker.Do(func() error {
		return c.doWithRetry(ctx, req, out)
	})
	metrics.RecordStoreRequest(driverName, req.op, time.Since(start), err)
	return err
}

func (c *Client) doWithRetry(ctx context.Context, req requestConfig, out any) error {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryAfter, err := c.attempt(ctx, req, payload, out)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		retryable := ctx.Err() == nil && (!errors.As(err, &apiErr) || apiErr.Retryable())
		if !retryable || attempt >= c.maxRetries {
			return err
		}

		delay := c.retryDelay * time.Duration(1<<attempt)
		if retryAfter >= 0 {
			delay = retryAfter
		}

		logging.Ctx(ctx).Warn().
			Err(err).
			Str("op", req.op).
			Int("attempt", attempt+1).
			Int("max_retries", c.maxRetries).
			Dur("retry_delay", delay).
			Msg("Supabase request failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// attempt performs one HTTP round trip. The returned duration is the
// server's Retry-After hint, or -1 when absent.
func (c *Client) attempt(ctx context.Context, req requestConfig, payload []byte, out any) (time.Duration, error) {
	reqURL := c.restURL + req.path
	if len(req.query) > 0 {
		reqURL += "?" + req.query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL, body)
	if err != nil {
		return -1, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("apikey", c.key)
	httpReq.Header.Set("Authorization", "Bearer "+c.key)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return -1, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseRetryAfter(resp.Header.Get("Retry-After")), decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return -1, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return -1, fmt.Errorf("decode response: %w", err)
	}
	return -1, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return -1
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds < 0 {
		return -1
	}
	return time.Duration(seconds) * time.Second
}

// getAll pages through a GET collection using limit/offset until a short
// page is returned.
func getAll[T any](ctx context.Context, c *Client, req requestConfig) ([]T, error) {
	var all []T
	for offset := 0; ; offset += c.pageSize {
		q := url.Values{}
		for k, v := range req.query {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		page := req
		page.method = http.MethodGet
		page.query = q

		var rows []T
		if err := c.do(ctx, page, &rows); err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < c.pageSize {
			return all, nil
		}
	}
}

// eq builds a PostgREST equality filter value.
func eq(v string) string {
	return "eq." + v
}

// in builds a PostgREST membership filter value.
func inList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

// quote wraps values containing PostgREST reserved characters in double
// quotes. Open Library keys such as "/works/OL1W" pass through unchanged.
func quote(v string) string {
	if !strings.ContainsAny(v, `,.:()"\ `) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

// chunks splits values into slices of at most size elements.
func chunks(values []string, size int) [][]string {
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
