package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Feed and detect pipeline metrics.
var (
	FeedFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_files_total",
			Help:      "Files processed by the feed pipeline by outcome",
		},
		[]string{"doc_type", "status"},
	)

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Detection verdicts by category",
		},
		[]string{"doc_type", "category"},
	)

	VerdictConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verdict_confidence",
			Help:      "Mean hit relevance of detections that returned hits",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		},
		[]string{"doc_type"},
	)
)

var registerOnce sync.Once

// Register registers every collector of this package on the default registry.
// Must be called once from main; repeated calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			VespaRequestsTotal,
			VespaRequestDuration,
			FeedFilesTotal,
			VerdictsTotal,
			VerdictConfidence,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
