// Package httpapi implements the HTTP façade: a thin echo-based CRUD
// surface over the Catalog Store plus the hybrid search endpoint.
package httpapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus collectors for the HTTP façade, the
// ingestion pipeline and the model gateway. The façade records request
// counts and latency and search latency; the ingestion and gateway
// collectors are registered and exported, but nothing updates them.
type metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	searchDuration prometheus.Histogram

	ingestProcessedTotal prometheus.Counter
	ingestFailedTotal    prometheus.Counter

	gatewayCallDuration *prometheus.HistogramVec
	gatewayRetryTotal   *prometheus.CounterVec
}

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// newMetrics builds a fresh Prometheus registry per Server rather than
// using prometheus.DefaultRegisterer, so multiple Servers (as in tests)
// never collide over duplicate metric names.
func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	m := &metrics{registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screenmemory_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screenmemory_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method and route.",
			Buckets: durationBuckets,
		}, []string{"method", "route"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screenmemory_search_duration_seconds",
			Help:    "Hybrid search duration in seconds.",
			Buckets: durationBuckets,
		}),
		ingestProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screenmemory_ingest_processed_total",
			Help: "Files successfully processed by the ingestion pipeline.",
		}),
		ingestFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screenmemory_ingest_failed_total",
			Help: "Files that failed ingestion after all retries.",
		}),
		gatewayCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screenmemory_gateway_call_duration_seconds",
			Help:    "Model Gateway call duration in seconds by backend.",
			Buckets: durationBuckets,
		}, []string{"backend"}),
		gatewayRetryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screenmemory_gateway_retry_total",
			Help: "Model Gateway call retries by backend.",
		}, []string{"backend"}),
	}
	registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.searchDuration,
		m.ingestProcessedTotal, m.ingestFailedTotal,
		m.gatewayCallDuration, m.gatewayRetryTotal,
	)
	return m
}

// middleware returns an echo middleware recording request count and latency.
func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unknown"
			}
			status := c.Response().Status
			m.requestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
