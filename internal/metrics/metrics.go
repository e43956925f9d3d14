package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry with the gate's decision and HTTP metrics
type Metrics struct {
	reg           *prometheus.Registry
	decisions     *prometheus.CounterVec
	decisionTime  *prometheus.HistogramVec
	storageErrors *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_login_decisions_total",
			Help: "Total number of login decisions by outcome.",
		}, []string{"decision"}),
		decisionTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatekeeper_login_decision_seconds",
			Help:    "Time taken to reach a login decision.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"decision"}),
		storageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_storage_errors_total",
			Help: "Total number of requests that failed on storage.",
		}, []string{"operation"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_http_requests_total",
			Help: "Total number of HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}
}

// RecordDecision counts a login decision and observes its latency
func (m *Metrics) RecordDecision(decision models.Decision, elapsed time.Duration) {
	m.decisions.WithLabelValues(decision.String()).Inc()
	m.decisionTime.WithLabelValues(decision.String()).Observe(elapsed.Seconds())
}

// RecordStorageError counts a request that failed on storage
func (m *Metrics) RecordStorageError(operation string) {
	m.storageErrors.WithLabelValues(operation).Inc()
}

// Middleware counts requests by chi route pattern so path parameters do not
// explode label cardinality
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// Handler exposes the registry in Prometheus text or OpenMetrics format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
