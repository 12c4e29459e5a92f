package portal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export outcomes.
const (
	exportSuccess      = "success"
	exportBadRequest   = "bad_request"
	exportUnauthorized = "unauthorized"
	exportFailed       = "failed"
)

// Metrics holds the portal's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	exportsTotal        *prometheus.CounterVec
	upstreamDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the portal metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_exports_total",
				Help: "Total number of invoice PDF exports by outcome",
			},
			[]string{"outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_api_request_duration_seconds",
				Help:    "Duration of billing API calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "status"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.exportsTotal,
		m.upstreamDuration,
	)
	return m
}

// ObserveUpstream records one billing API call. Its signature matches
// billing.Observer. A status of 0 means no response was received.
func (m *Metrics) ObserveUpstream(op string, status int, elapsed time.Duration) {
	m.upstreamDuration.WithLabelValues(op, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeExport(outcome string) {
	m.exportsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments every request, labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				handler = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(handler, r.Method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(handler, r.Method).Observe(time.Since(start).Seconds())
	})
}
