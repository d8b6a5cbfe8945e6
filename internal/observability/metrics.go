package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	documentsTotal  *prometheus.CounterVec
	conversionsTotal *prometheus.CounterVec
	sequenceRetries *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmorbit_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmorbit_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmorbit_documents_created_total",
		Help: "Commercial documents created by type.",
	}, []string{"type"})
	conversions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmorbit_conversions_total",
		Help: "Completed document conversions by pair.",
	}, []string{"pair"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmorbit_sequence_allocation_retries_total",
		Help: "Document number allocations retried after a collision.",
	}, []string{"type"})
	registry.MustRegister(requests, duration, documents, conversions, retries)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		documentsTotal:   documents,
		conversionsTotal: conversions,
		sequenceRetries:  retries,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// DocumentCreated increments the creation counter for a document type.
func (m *Metrics) DocumentCreated(docType string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(docType).Inc()
}

// ConversionCompleted increments the conversion counter for a pair such as
// "QT->INV".
func (m *Metrics) ConversionCompleted(pair string) {
	if m == nil {
		return
	}
	m.conversionsTotal.WithLabelValues(pair).Inc()
}

// SequenceRetry increments the allocation retry counter.
func (m *Metrics) SequenceRetry(docType string) {
	if m == nil {
		return
	}
	m.sequenceRetries.WithLabelValues(docType).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
