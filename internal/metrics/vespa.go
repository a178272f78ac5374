package metrics

import "github.com/prometheus/client_golang/prometheus"

// Document store (Vespa) Prometheus metrics.
var (
	VespaRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vespa_requests_total",
			Help:      "Total number of requests sent to Vespa",
		},
		[]string{"op", "status"}, // op: upsert/search/health, status: HTTP code or "error"
	)

	VespaRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vespa_request_duration_seconds",
			Help:      "Vespa request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)
)
