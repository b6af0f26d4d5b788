// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package metrics registers the Prometheus instruments for the ranking
// pipeline. The scheduler wrapper that invokes cmd/updater decides what to
// do with the registry; the pipeline only records.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream HTTP metrics, labelled by host (www / nvapi / snapshot).
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicoranking_upstream_requests_total",
			Help: "Total upstream HTTP requests by host and outcome",
		},
		[]string{"host", "outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nicoranking_upstream_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host"},
	)

	// Circuit breaker state: 0 = closed, 1 = half-open, 2 = open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nicoranking_circuit_breaker_state",
			Help: "Circuit breaker state per upstream host (0=closed, 1=half-open, 2=open)",
		},
		[]string{"host"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicoranking_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions per upstream host",
		},
		[]string{"host", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicoranking_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by host and result",
		},
		[]string{"host", "result"},
	)

	// RateLimiterWaits counts admissions that had to block, by host.
	RateLimiterWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicoranking_rate_limiter_waits_total",
			Help: "Rate limiter admissions that blocked before proceeding",
		},
		[]string{"host"},
	)

	RateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nicoranking_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for rate limiter admission",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"host"},
	)

	// KV store metrics.
	KVWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicoranking_kv_writes_total",
			Help: "KV store writes by outcome",
		},
		[]string{"outcome"},
	)

	KVWriteBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nicoranking_kv_write_bytes_total",
			Help: "Compressed bytes written to the KV store",
		},
	)

	// Pipeline metrics.
	CombinationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicoranking_combinations_total",
			Help: "Processed (genre, period) combinations by outcome",
		},
		[]string{"outcome"},
	)

	ItemsFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nicoranking_ng_filtered_items_total",
			Help: "Items removed by the NG filter",
		},
	)

	DerivedNGIDs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nicoranking_ng_derived_ids_total",
			Help: "Video ids newly added to the derived NG list",
		},
	)
)
