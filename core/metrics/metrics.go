// Package metrics holds the prometheus collectors for upstream review calls.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_upstream_requests_total",
			Help: "Upstream HTTP attempts by provider and status class",
		},
		[]string{"provider", "status"},
	)
	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_upstream_request_duration_seconds",
			Help:    "Upstream HTTP attempt duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)
	KeyFailoversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_key_failovers_total",
			Help: "Key failovers within a single review by pool and upstream status",
		},
		[]string{"pool", "status"},
	)
	ReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_requests_total",
			Help: "Review calls by provider and outcome (ok or error kind)",
		},
		[]string{"provider", "outcome"},
	)
)

var registerOnce sync.Once

// InitMetrics registers the collectors with the default registry.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(UpstreamRequestsTotal)
		prometheus.MustRegister(UpstreamRequestDuration)
		prometheus.MustRegister(KeyFailoversTotal)
		prometheus.MustRegister(ReviewsTotal)
	})
}

// StatusLabel collapses an HTTP status into the label used by UpstreamRequestsTotal.
// Zero means the request never got a response.
func StatusLabel(status int) string {
	switch {
	case status == 0:
		return "transport_error"
	case status >= 200 && status < 300:
		return "2xx"
	case status == 401, status == 403, status == 404, status == 405, status == 429:
		return strconv.Itoa(status)
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

