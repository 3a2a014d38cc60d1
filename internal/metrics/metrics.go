package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total inbound API requests",
		},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Inbound API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Upstream (exchange) metrics
	UpstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total calls to the exchange API",
		},
		[]string{"operation", "status"},
	)
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Exchange API call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Recommendation metrics
	RecommendationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveUpstream records one exchange call. status is the HTTP status code
// as text, or "error" when the call never got a response.
func ObserveUpstream(operation, status string, start time.Time) {
	UpstreamRequestTotal.WithLabelValues(operation, status).Inc()
	UpstreamRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
