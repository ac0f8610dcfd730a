/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WeatherFetchesTotal counts external weather API calls by outcome.
	WeatherFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nooku_weather_fetches_total",
		Help: "External weather API calls by outcome.",
	}, []string{"outcome"})

	// WeatherCacheHitsTotal counts weather reads served from the cooldown cache.
	WeatherCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nooku_weather_cache_hits_total",
		Help: "Weather reads served without an external call.",
	})

	// TrackSwapsTotal counts active track replacements by trigger.
	TrackSwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nooku_track_swaps_total",
		Help: "Active track replacements by trigger (prime, hour, weather).",
	}, []string{"trigger"})

	// DecodeFailuresTotal counts failed decode operations.
	DecodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nooku_decode_failures_total",
		Help: "Failed track decode operations.",
	})

	// CatalogMissesTotal counts selection keys absent from the catalog.
	CatalogMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nooku_catalog_misses_total",
		Help: "Selection keys with no catalog entry.",
	})

	// PrefetchHitsTotal counts swaps served from the look-ahead buffer.
	PrefetchHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nooku_prefetch_hits_total",
		Help: "Swaps served from the look-ahead buffer.",
	})

	// PrefetchMissesTotal counts swaps that needed a synchronous decode.
	PrefetchMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nooku_prefetch_misses_total",
		Help: "Swaps that fell back to a synchronous decode.",
	})

	// RoomsActive tracks the number of live rotation sessions.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nooku_rooms_active",
		Help: "Live rotation sessions.",
	})

	// APIRequestsTotal counts HTTP API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nooku_api_requests_total",
		Help: "HTTP API requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP API latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nooku_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nooku_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
