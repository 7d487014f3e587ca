package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EngagementOperations counts engagement API calls by operation and outcome.
	EngagementOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiningstars_engagement_operations_total",
		Help: "Total number of engagement operations by operation and result",
	}, []string{"operation", "result"})

	// PostViews counts views that were actually recorded on a post.
	PostViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shiningstars_post_views_total",
		Help: "Total number of post views recorded",
	})

	// StoreOperationLatency records post store latency by operation.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shiningstars_store_operation_seconds",
		Help:    "Post store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// TrackStore returns a function that records the latency of a store operation
// when called (e.g. defer).
func TrackStore(operation string) func() {
	start := time.Now()
	return func() {
		StoreOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// RecordEngagement increments the engagement counter for operation.
func RecordEngagement(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EngagementOperations.WithLabelValues(operation, result).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
