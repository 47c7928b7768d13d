package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backend request and search pipeline Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrank",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend requests",
		},
		[]string{"backend", "operation", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsrank",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "operation"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrank",
			Name:      "search_requests_total",
			Help:      "Total number of executed plans",
		},
		[]string{"intent", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsrank",
			Name:      "search_duration_seconds",
			Help:      "End-to-end plan execution duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"intent"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrank",
			Name:      "search_fallbacks_total",
			Help:      "Searches degraded to recency listings for lack of an embedding",
		},
		[]string{"intent"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers backend and search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchFallbacksTotal)
	searchMetricsRegistered = true
}
