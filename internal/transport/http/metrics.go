package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "irrigation",
			Subsystem: "gateway",
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the gateway.",
		},
		[]string{"route", "method", "status"},
	)
	requestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "irrigation",
			Subsystem: "gateway",
			Name:      "http_request_duration_seconds",
			Help:      "Gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	readingCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "irrigation",
			Subsystem: "gateway",
			Name:      "reading_service_calls_total",
			Help:      "ReadingService calls made by the gateway, by gRPC code.",
		},
		[]string{"method", "code"},
	)
	readingCallSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "irrigation",
			Subsystem: "gateway",
			Name:      "reading_service_call_duration_seconds",
			Help:      "ReadingService call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	pageItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "irrigation",
			Subsystem: "gateway",
			Name:      "readings_page_items",
			Help:      "Readings returned per page.",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500},
		},
	)
)

func observeHTTPRequest(r *http.Request, status int, dur time.Duration) {
	route := routeLabel(r.URL.Path)
	requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	requestSeconds.WithLabelValues(route).Observe(dur.Seconds())
}

func observeUpstreamGRPC(method, code string, dur time.Duration) {
	readingCallsTotal.WithLabelValues(method, code).Inc()
	readingCallSeconds.WithLabelValues(method).Observe(dur.Seconds())
}

func observePage(items int) {
	pageItems.Observe(float64(items))
}

// routeLabel keeps label cardinality bounded.
func routeLabel(path string) string {
	switch path {
	case "/api/readings":
		return "api_readings"
	case "/api/commands":
		return "api_commands"
	case "/healthz":
		return "healthz"
	case "/metrics":
		return "metrics"
	default:
		return "other"
	}
}
