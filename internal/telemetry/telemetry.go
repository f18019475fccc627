// Package telemetry provides the observability surface: structured logging
// setup and the Prometheus counters the HTTP layer exposes at /metrics.
package telemetry

import (
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewLogger returns the process-wide structured logger: one JSON handler
// writing to stdout, installed once at main.
func NewLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Metrics holds the core's Prometheus collectors. The HTTP layer updates
// RequestsTotal, RequestDuration and AnswerKindTotal on every /chat call;
// SessionsActive is registered but no server code sets it.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AnswerKindTotal *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
}

// NewMetrics constructs and registers the core's request counters against
// reg. Pass prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer for the real /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "requests_total",
			Help:      "Total /chat requests, labeled by outcome.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Name:      "request_duration_seconds",
			Help:      "Latency of /chat requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		AnswerKindTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "answer_kind_total",
			Help:      "Terminal AnswerArtifact kinds returned, labeled by kind.",
		}, []string{"kind"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragcore",
			Name:      "sessions_active",
			Help:      "Number of live (not yet swept) sessions.",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.AnswerKindTotal, m.SessionsActive)
	return m
}

// ObserveRequest records one /chat request's outcome and latency.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveAnswerKind records one terminal artifact's answer kind.
func (m *Metrics) ObserveAnswerKind(kind string) {
	m.AnswerKindTotal.WithLabelValues(kind).Inc()
}
