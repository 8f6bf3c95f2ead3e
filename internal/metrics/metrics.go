// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Package metrics provides Prometheus instrumentation for Golazod:
// fixture cache efficiency, upstream fetch latency, persistence batching,
// image resolution queue behavior, and WebSocket fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fixture cache metrics

	FixtureCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fixture_cache_hits_total",
			Help: "Total fixture cache reads answered from a valid entry",
		},
	)

	FixtureCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fixture_cache_misses_total",
			Help: "Total fixture cache reads that triggered a fetch",
		},
	)

	FixtureCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fixture_cache_entries",
			Help: "Current number of fixture cache entries in memory",
		},
	)

	FixtureCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fixture_cache_evictions_total",
			Help: "Total fixture cache entries evicted by pruning",
		},
	)

	// Upstream fetch metrics

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fixture_fetch_duration_seconds",
			Help:    "Duration of upstream fixture fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"priority"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixture_fetch_errors_total",
			Help: "Total upstream fixture fetch failures",
		},
		[]string{"priority"},
	)

	PrefetchSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fixture_prefetch_sweeps_total",
			Help: "Total prefetch sweeps executed",
		},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "football_rate_limit_rejections_total",
			Help: "Total requests short-circuited by the rate-limit backoff window",
		},
	)

	// Circuit breaker state: 0 = closed, 1 = half-open, 2 = open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Persistence metrics

	PersistBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persist_batches_total",
			Help: "Total debounced persistence flushes",
		},
	)

	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "persist_batch_duration_seconds",
			Help:    "Duration of batched persistence writes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persist_errors_total",
			Help: "Total persistence failures (best-effort, swallowed)",
		},
	)

	// Image resolution metrics

	ImageCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_cache_hits_total",
			Help: "Total image resolutions answered without a network lookup",
		},
		[]string{"source"}, // "memo", "store", "direct"
	)

	ImageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_cache_misses_total",
			Help: "Total image resolutions that required a network lookup",
		},
	)

	ImageQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_queue_depth",
			Help: "Current number of queued image lookups",
		},
	)

	ImageConcurrencyLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_concurrency_limit",
			Help: "Current adaptive concurrency limit of the image lookup queue",
		},
	)

	ImageCoolDowns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_cool_downs_total",
			Help: "Total identities placed in cool-down after failed resolution",
		},
	)

	// WebSocket metrics

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_broadcasts_total",
			Help: "Total messages broadcast to WebSocket clients",
		},
	)
)
