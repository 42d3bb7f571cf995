// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package metrics exposes Prometheus collectors for the ingestion pipeline,
// the geolocation resolver, the bounded store, and the API surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed fetch metrics
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcanvas_feed_fetch_total",
			Help: "Total feed fetch attempts by feed and result",
		},
		[]string{"feed", "result"}, // result: "ok", "http_error", "network_error"
	)

	FeedIPsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcanvas_feed_ips_parsed_total",
			Help: "Total syntactically valid IPv4 addresses parsed per feed",
		},
		[]string{"feed"},
	)

	// Geolocation metrics
	GeoBatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcanvas_geo_batch_requests_total",
			Help: "Total geolocation batch requests by provider and result",
		},
		[]string{"provider", "result"}, // result: "ok", "error", "rejected"
	)

	GeoCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatcanvas_geo_cache_hits_total",
			Help: "Total geolocation cache hits",
		},
	)

	GeoCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatcanvas_geo_cache_misses_total",
			Help: "Total geolocation cache misses (absent or expired)",
		},
	)

	GeoCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatcanvas_geo_cache_entries",
			Help: "Current number of geolocation cache entries",
		},
	)

	// Store metrics
	StorePoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatcanvas_store_points",
			Help: "Current number of retained points",
		},
	)

	StoreFlows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatcanvas_store_flows",
			Help: "Current number of retained flows",
		},
	)

	StoreEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcanvas_store_evictions_total",
			Help: "Total oldest-first evictions by kind",
		},
		[]string{"kind"}, // "point", "flow"
	)

	// Ingest cycle metrics
	IngestCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcanvas_ingest_cycles_total",
			Help: "Total fetch cycles by result",
		},
		[]string{"result"}, // "ok", "empty", "panic"
	)

	IngestCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "threatcanvas_ingest_cycle_duration_seconds",
			Help:    "Duration of fetch cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Delta stream metrics
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatcanvas_stream_subscribers",
			Help: "Current number of connected delta stream subscribers",
		},
	)

	StreamDeltasSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatcanvas_stream_deltas_sent_total",
			Help: "Total non-empty delta messages written to subscribers",
		},
	)

	StreamKeepAlives = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatcanvas_stream_keepalives_sent_total",
			Help: "Total keep-alive messages written to subscribers",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcanvas_api_requests_total",
			Help: "Total API requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatcanvas_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threatcanvas_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcanvas_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
