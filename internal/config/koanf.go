// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bookfinder/config.yaml",
	"/etc/bookfinder/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Supabase: SupabaseConfig{
			Timeout:    30 * time.Second,
			RateLimit:  20,
			RateBurst:  40,
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Driver:     DriverSupabase,
			DuckDBPath: "/data/bookfinder.duckdb",
		},
		Batch: BatchConfig{
			Workers:     1,
			StalePolicy: StaleRetain,
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://openlibrary.org",
			Timeout:   15 * time.Second,
			RateLimit: 5,
			CacheTTL:  time.Hour,
		},
		Events: EventsConfig{
			Subject: "recommendations.updated",
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			CORSOrigins:       []string{},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
		Metrics: MetricsConfig{
			JobName: "bookfinder_recommender",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration using Koanf with layered sources:
//
//  1. Defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// The returned error wraps *ConfigurationError when required credentials are missing.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadCatalog loads the same layered sources as Load but validates only the
// catalog and logging sections. Tools that never touch the store use it so
// they do not need Supabase credentials.
func LoadCatalog() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if err := cfg.validateCatalog(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := cfg.validateLogging(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"supabase_url":              "supabase.url",
	"supabase_service_role_key": "supabase.service_role_key",
	"supabase_jwt_secret":       "supabase.jwt_secret",
	"supabase_timeout":          "supabase.timeout",
	"supabase_rate_limit":       "supabase.rate_limit",
	"supabase_rate_burst":       "supabase.rate_burst",
	"supabase_max_retries":      "supabase.max_retries",

	"store_driver": "store.driver",
	"duckdb_path":  "store.duckdb_path",

	"batch_workers":        "batch.workers",
	"stale_policy":         "batch.stale_policy",
	"batch_interval":       "batch.interval",
	"batch_run_on_startup": "batch.run_on_startup",
	"batch_user_timeout":   "batch.user_timeout",

	"openlibrary_url":    "catalog.base_url",
	"catalog_timeout":    "catalog.timeout",
	"catalog_rate_limit": "catalog.rate_limit",
	"catalog_cache_dir":  "catalog.cache_dir",
	"catalog_cache_ttl":  "catalog.cache_ttl",

	"nats_url":       "events.nats_url",
	"events_subject": "events.subject",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"shutdown_timeout":    "server.shutdown_timeout",

	"pushgateway_url":  "metrics.pushgateway_url",
	"metrics_job_name": "metrics.job_name",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped.
//
// Examples:
//   - SUPABASE_URL -> supabase.url
//   - BATCH_WORKERS -> batch.workers
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
