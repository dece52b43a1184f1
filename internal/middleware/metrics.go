package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framefind_http_requests_total",
			Help: "Total number of HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framefind_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BreakerState exports each circuit breaker's state:
	// 0=CLOSED, 1=OPEN, 2=HALF_OPEN.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "framefind_circuit_breaker_state",
			Help: "Circuit breaker state per search client method (0=closed, 1=open, 2=half-open).",
		},
		[]string{"method"},
	)

	// RetryQueueDepth exports pending retry-queue rows by kind.
	RetryQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "framefind_retry_queue_pending",
			Help: "Pending retry queue rows by kind.",
		},
		[]string{"kind"},
	)
)

// Prometheus collects request count and latency metrics. Unmatched routes are
// all recorded under the single path label "unmatched" rather than their raw
// path, so scanners cannot cause a label explosion.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}
