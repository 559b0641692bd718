// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package metrics exposes Prometheus collectors for the sync pipeline,
// the upstream Gripp client and the two-tier cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync pipeline

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "begripp_sync_duration_seconds",
			Help:    "Duration of one entity-type sync run in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"entity"},
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_sync_records_total",
			Help: "Records handled per entity type and disposition (persisted, skipped, duplicate)",
		},
		[]string{"entity", "disposition"},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_sync_runs_total",
			Help: "Sync runs per entity type and outcome",
		},
		[]string{"entity", "outcome"},
	)

	SyncWindowsAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_sync_windows_abandoned_total",
			Help: "Date windows abandoned after exhausting retries",
		},
		[]string{"entity"},
	)

	// Upstream Gripp client

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_upstream_requests_total",
			Help: "Gripp API requests per method and result (ok, error, rate_limited)",
		},
		[]string{"method", "result"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "begripp_upstream_request_duration_seconds",
			Help:    "Gripp API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_upstream_retries_total",
			Help: "Retry attempts against the Gripp API per method",
		},
		[]string{"method"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "begripp_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Two-tier cache

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_cache_hits_total",
			Help: "Cache hits per tier (fast, durable)",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "begripp_cache_misses_total",
			Help: "Cache misses across both tiers",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "begripp_cache_evictions_total",
			Help: "Cache entries removed per reason (expired, deleted, prefix, flush)",
		},
		[]string{"reason"},
	)

	// HTTP API

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "begripp_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)

// RecordSyncRun records the terminal metrics of one entity-type sync.
func RecordSyncRun(entity string, duration time.Duration, outcome string) {
	SyncDuration.WithLabelValues(entity).Observe(duration.Seconds())
	SyncRuns.WithLabelValues(entity, outcome).Inc()
}

// RecordUpstreamRequest records one Gripp API call.
func RecordUpstreamRequest(method, result string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(method, result).Inc()
	UpstreamRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
