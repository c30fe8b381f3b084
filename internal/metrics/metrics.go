// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package metrics holds the Prometheus instrumentation for Bookfinder:
// batch outcomes, store latency, circuit breakers, catalog search, change
// events and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// User outcome labels.
const (
	OutcomeGenerated = "generated"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

var (
	// Batch Metrics
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_batch_runs_total",
			Help: "Total number of recommendation batch runs",
		},
		[]string{"result"}, // "completed", "aborted"
	)

	BatchUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_batch_users_total",
			Help: "Users processed by recommendation batches, by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookfinder_recommendations_written_total",
			Help: "Total number of recommendation rows written",
		},
	)

	BatchUserDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookfinder_batch_user_duration_seconds",
			Help:    "Time spent generating and writing one user's recommendations",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookfinder_batch_duration_seconds",
			Help:    "Duration of a full recommendation batch run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	BatchLastCompletion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookfinder_batch_last_completion_timestamp_seconds",
			Help: "Unix time of the last completed batch run",
		},
	)

	// Store Metrics
	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookfinder_store_request_duration_seconds",
			Help:    "Duration of data store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)

	StoreRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_store_request_errors_total",
			Help: "Total number of failed data store operations",
		},
		[]string{"driver", "operation"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Catalog Metrics
	CatalogSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_catalog_searches_total",
			Help: "Catalog searches by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: "success", "invalid", "provider_error"
	)

	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookfinder_catalog_cache_hits_total",
			Help: "Catalog searches served from cache",
		},
	)

	CatalogCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookfinder_catalog_cache_misses_total",
			Help: "Catalog searches that went to the provider",
		},
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_events_published_total",
			Help: "Recommendation change events published",
		},
		[]string{"result"}, // "success", "failure"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookfinder_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordUserOutcome records one processed user.
func RecordUserOutcome(outcome string, written int, duration time.Duration) {
	BatchUsersTotal.WithLabelValues(outcome).Inc()
	BatchUserDuration.Observe(duration.Seconds())
	if written > 0 {
		RecommendationsWrittenTotal.Add(float64(written))
	}
}

// RecordBatchRun records a finished batch run. aborted is true when the
// run could not start, e.g. because the user list was unavailable.
func RecordBatchRun(duration time.Duration, aborted bool) {
	BatchDuration.Observe(duration.Seconds())
	if aborted {
		BatchRunsTotal.WithLabelValues("aborted").Inc()
		return
	}
	BatchRunsTotal.WithLabelValues("completed").Inc()
	BatchLastCompletion.Set(float64(time.Now().Unix()))
}

// RecordStoreRequest records a data store operation.
func RecordStoreRequest(driver, operation string, duration time.Duration, err error) {
	StoreRequestDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
	if err != nil {
		StoreRequestErrors.WithLabelValues(driver, operation).Inc()
	}
}

// RecordCatalogSearch records a catalog search result.
func RecordCatalogSearch(mode, outcome string) {
	CatalogSearchesTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordEventPublish records a change event publish attempt.
func RecordEventPublish(err error) {
	if err != nil {
		EventsPublishedTotal.WithLabelValues("failure").Inc()
		return
	}
	EventsPublishedTotal.WithLabelValues("success").Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
