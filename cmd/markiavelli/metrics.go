package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the server's prometheus collectors. A nil *metrics records nothing.
type metrics struct {
	registry         *prometheus.Registry
	trainedDocuments *prometheus.CounterVec
	generations      *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		trainedDocuments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markiavelli_trained_documents_total",
				Help: "Total number of documents trained into each model",
			},
			[]string{"model"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markiavelli_generations_total",
				Help: "Total number of texts generated from each model",
			},
			[]string{"model"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "markiavelli_http_request_duration_seconds",
				Help:    "Duration of API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "code"},
		),
	}
	m.registry.MustRegister(
		m.trainedDocuments,
		m.generations,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observeTraining(model string, documents int) {
	if m == nil {
		return
	}
	m.trainedDocuments.WithLabelValues(model).Add(float64(documents))
}

func (m *metrics) observeGeneration(model string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(model).Inc()
}

// Handler serves the collected metrics in the prometheus exposition format.
func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records the duration of every request under its route pattern.
func (m *metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
