package gateway

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the gateway's Prometheus registry and collectors. Each
// Gateway instance carries its own registry so tests never collide on
// duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	factSaves prometheus.Counter
	searches  prometheus.Counter
	contexts  prometheus.Counter
}

// NewMetrics creates and registers the gateway collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "gateway",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
		factSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "fact_saves_total",
			Help:      "Fact upserts accepted through the API.",
		}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "searches_total",
			Help:      "Hybrid search requests served.",
		}),
		contexts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "context_requests_total",
			Help:      "Conversation context assemblies served.",
		}),
	}
	m.registry.MustRegister(m.requests, m.factSaves, m.searches, m.contexts)
	return m
}

// RecordFactSave increments the fact upsert counter.
func (m *Metrics) RecordFactSave() { m.factSaves.Inc() }

// RecordSearch increments the hybrid search counter.
func (m *Metrics) RecordSearch() { m.searches.Inc() }

// RecordContext increments the context assembly counter.
func (m *Metrics) RecordContext() { m.contexts.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware counts every request by method and final status code.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		m.requests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
