// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigurationError reports required settings that are absent.
// It is fatal: callers abort before any processing starts.
type ConfigurationError struct {
	// Missing holds the environment variable names of the absent settings.
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing Supabase credentials: " + strings.Join(e.Missing, ", ")
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverSupabase:
		return c.validateSupabase()
	case DriverDuckDB:
		if c.Store.DuckDBPath == "" {
			return fmt.Errorf("DUCKDB_PATH is required when STORE_DRIVER=duckdb")
		}
		return nil
	default:
		return fmt.Errorf("STORE_DRIVER must be %s or %s, got: %q", DriverSupabase, DriverDuckDB, c.Store.Driver)
	}
}

// validateSupabase enforces the two credentials the hosted store needs.
func (c *Config) validateSupabase() error {
	var missing []string
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	if err := validateHTTPURL(c.Supabase.URL, "SUPABASE_URL"); err != nil {
		return fmt.Errorf("SUPABASE_URL is invalid: %w", err)
	}
	if c.Supabase.Timeout <= 0 {
		return fmt.Errorf("SUPABASE_TIMEOUT must be positive, got: %v", c.Supabase.Timeout)
	}
	if c.Supabase.MaxRetries < 0 {
		return fmt.Errorf("SUPABASE_MAX_RETRIES must be >= 0, got: %d", c.Supabase.MaxRetries)
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Workers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got: %d", c.Batch.Workers)
	}
	if c.Batch.StalePolicy != StaleRetain && c.Batch.StalePolicy != StaleClear {
		return fmt.Errorf("STALE_POLICY must be %s or %s, got: %q", StaleRetain, StaleClear, c.Batch.StalePolicy)
	}
	if c.Batch.Interval < 0 {
		return fmt.Errorf("BATCH_INTERVAL must be >= 0, got: %v", c.Batch.Interval)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if err := validateHTTPURL(c.Catalog.BaseURL, "OPENLIBRARY_URL"); err != nil {
		return fmt.Errorf("OPENLIBRARY_URL is invalid: %w", err)
	}
	if c.Catalog.CacheTTL < 0 {
		return fmt.Errorf("CATALOG_CACHE_TTL must be >= 0, got: %v", c.Catalog.CacheTTL)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.NATSURL == "" {
		return nil
	}
	if err := validateNATSURL(c.Events.NATSURL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.Events.Subject == "" {
		return fmt.Errorf("EVENTS_SUBJECT is required when NATS_URL is set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 0, got: %d", c.Server.RateLimitRequests)
	}
	return nil
}

func (c *Config) validateLogging() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL validates that a URL is a bare http(s) base URL.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

// validateNATSURL accepts nats://, tls://, ws:// and wss:// URLs with a host.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
