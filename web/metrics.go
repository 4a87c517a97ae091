package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solpipe/solana-relay/relay"
)

const METRICS_NAMESPACE = "relay"

// Metrics owns a private registry; it also records relay stage transitions.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	stages    *prometheus.CounterVec
}

func CreateMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: METRICS_NAMESPACE,
		Name:      "http_requests_total",
		Help:      "HTTP requests served by the relay.",
	}, []string{"route", "method", "status"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: METRICS_NAMESPACE,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	stages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: METRICS_NAMESPACE,
		Name:      "stage_total",
		Help:      "Relay requests reaching each stage.",
	}, []string{"stage"})
	registry.MustRegister(requests, durations, stages)
	return &Metrics{
		registry:  registry,
		requests:  requests,
		durations: durations,
		stages:    stages,
	}
}

func (m *Metrics) Observe(stage relay.Stage) {
	m.stages.WithLabelValues(stage.String()).Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); 0 < len(pattern) {
				route = pattern
			}
		}
		m.requests.WithLabelValues(route, r.Method, http.StatusText(recorder.status)).Inc()
		m.durations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
