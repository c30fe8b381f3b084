// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package config loads Bookfinder configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import "time"

// Store drivers.
const (
	DriverSupabase = "supabase"
	DriverDuckDB   = "duckdb"
)

// Stale recommendation policies for users whose run produced nothing.
const (
	// StaleRetain leaves previously stored recommendations untouched.
	StaleRetain = "retain"
	// StaleClear deletes previously stored recommendations.
	StaleClear = "clear"
)

// Config holds all application configuration.
type Config struct {
	Supabase SupabaseConfig `koanf:"supabase"`
	Store    StoreConfig    `koanf:"store"`
	Batch    BatchConfig    `koanf:"batch"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Events   EventsConfig   `koanf:"events"`
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// SupabaseConfig holds the hosted data store connection settings.
type SupabaseConfig struct {
	// URL is the project URL, e.g. https://abc.supabase.co.
	// Env: SUPABASE_URL
	URL string `koanf:"url"`

	// ServiceRoleKey is the privileged key used by the batch job.
	// Env: SUPABASE_SERVICE_ROLE_KEY
	ServiceRoleKey string `koanf:"service_role_key"`

	// JWTSecret verifies user access tokens on the HTTP API.
	// Env: SUPABASE_JWT_SECRET
	JWTSecret string `koanf:"jwt_secret"`

	// Timeout bounds a single REST request.
	// Default: 30s
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the steady request rate against the REST API (req/s).
	// Default: 20
	RateLimit float64 `koanf:"rate_limit"`

	// RateBurst is the limiter burst size.
	// Default: 40
	RateBurst int `koanf:"rate_burst"`

	// MaxRetries is the retry budget for 429 and 5xx responses.
	// Default: 3
	MaxRetries int `koanf:"max_retries"`
}

// StoreConfig selects the data store driver.
type StoreConfig struct {
	Driver     string `koanf:"driver"`
	DuckDBPath string `koanf:"duckdb_path"`
}

// BatchConfig controls the recommendation batch run.
type BatchConfig struct {
	// Workers is the number of users processed concurrently.
	// Default: 1
	Workers int `koanf:"workers"`

	// StalePolicy is retain or clear.
	// Default: retain
	StalePolicy string `koanf:"stale_policy"`

	// Interval schedules repeated runs in server mode. Zero disables the schedule.
	Interval time.Duration `koanf:"interval"`

	// RunOnStartup runs a batch immediately when the scheduler starts.
	RunOnStartup bool `koanf:"run_on_startup"`

	// UserTimeout bounds one user's processing. Zero means no timeout.
	UserTimeout time.Duration `koanf:"user_timeout"`
}

// CatalogConfig configures the Open Library search client.
type CatalogConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`

	// CacheDir is the badger directory for cached responses; empty keeps the cache in memory.
	CacheDir string `koanf:"cache_dir"`

	// CacheTTL is how long a search response is reused. Zero disables caching.
	// Default: 1h
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// EventsConfig configures recommendation change notifications.
type EventsConfig struct {
	// NATSURL enables publishing when set.
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// ServerConfig configures the HTTP API used in server mode.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures metric export for one-shot runs.
type MetricsConfig struct {
	PushgatewayURL string `koanf:"pushgateway_url"`
	JobName        string `koanf:"job_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
