package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Search submission duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search submissions by outcome",
		},
		[]string{"status"},
	)

	SuggestLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggest_lookups_total",
			Help: "Total number of autocomplete lookups by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SuggestSupersededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggest_superseded_total",
			Help: "Autocomplete responses discarded because a newer lookup was issued",
		},
		[]string{"kind"},
	)

	GeocodeResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_resolutions_total",
			Help: "Reverse geocoding resolutions by outcome",
		},
		[]string{"outcome"},
	)

	DirectoryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_request_duration_seconds",
			Help:    "Directory backend request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"endpoint", "status"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_hits_total",
			Help: "Total number of Redis cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_misses_total",
			Help: "Total number of Redis cache misses",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowQueryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_query_total",
			Help: "Total number of slow search submissions",
		},
		[]string{"severity"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_sessions_active",
			Help: "Number of live search sessions",
		},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_sessions_total",
			Help: "Session lifecycle events",
		},
		[]string{"event"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "requests_rate_limited_total",
			Help: "Requests rejected by the concurrency limiter",
		},
	)
)
