// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// requestsTotal counts HTTP requests by method, route and status
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xorcism_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// requestDuration tracks request latency
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xorcism_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"route"})

	// bytesMunged counts bytes passed through a munger by operation
	bytesMunged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xorcism_bytes_munged_total",
		Help: "Total bytes munged by operation",
	}, []string{"operation"})

	// streamErrors counts munge streams that ended with an error
	streamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xorcism_stream_errors_total",
		Help: "Total munge streams that failed by operation",
	}, []string{"operation"})
)

// ObserveRequest records one finished HTTP request
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// AddMunged records n bytes munged by operation
func AddMunged(operation string, n int64) {
	if n > 0 {
		bytesMunged.WithLabelValues(operation).Add(float64(n))
	}
}

// StreamFailed records a failed munge stream
func StreamFailed(operation string) {
	streamErrors.WithLabelValues(operation).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
