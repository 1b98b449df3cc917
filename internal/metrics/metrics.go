// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package metrics exposes Prometheus collectors for the gateway:
// HTTP latency, cache efficiency, upstream attempt outcomes, and token
// refresh activity. All collectors register via promauto at package
// load and are served on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosterline_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rosterline_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// Gateway cache metrics, labeled by namespace ("success" or "error")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterline_cache_hits_total",
			Help: "Total number of roster cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterline_cache_misses_total",
			Help: "Total number of roster cache misses (including stale hits)",
		},
		[]string{"namespace"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rosterline_cache_entries",
			Help: "Current number of entries in the roster cache",
		},
	)

	// Terminal gateway outcomes (ok, empty, unauthorized, error)
	GatewayOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterline_gateway_outcomes_total",
			Help: "Terminal fetch-roster outcomes by status",
		},
		[]string{"status"},
	)

	// Upstream metrics
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterline_upstream_attempts_total",
			Help: "Upstream HTTP attempts by path variant and status class",
		},
		[]string{"variant", "status_class"},
	)

	UpstreamAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosterline_upstream_attempt_duration_seconds",
			Help:    "Duration of individual upstream attempts in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"variant"},
	)

	// Token lifecycle metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterline_token_refreshes_total",
			Help: "Credential refresh exchanges by result",
		},
		[]string{"result"},
	)

	TokenRefreshesDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rosterline_token_refreshes_deduped_total",
			Help: "Refresh calls coalesced by the per-user in-flight guard",
		},
	)
)

// StatusClass buckets an HTTP status code for the attempt counter
// ("2xx", "4xx", "5xx"); 0 (network error) maps to "error".
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}
