// Package httpapi is the HTTP surface: session lifecycle endpoints, /chat,
// /chat-config, and the operational /healthz and /metrics endpoints, routed
// with the stdlib net/http.ServeMux method+path patterns (Go 1.22+).
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragcore/ragcore/internal/facade"
	"github.com/ragcore/ragcore/internal/telemetry"
)

// Server wires the facade into the fixed HTTP surface.
type Server struct {
	facade   *facade.Facade
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewServer constructs the HTTP surface over f. metrics/gatherer/log may be
// nil: a fresh registry backs both metrics and /metrics, and slog.Default()
// is used for logging. Callers that construct their own Metrics against a
// specific registry (serve.go does, so the process's /metrics reflects the
// same collectors ObserveRequest/ObserveAnswerKind update) must pass that
// registry as gatherer too.
func NewServer(f *facade.Facade, metrics *telemetry.Metrics, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		reg := prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(reg)
		if gatherer == nil {
			gatherer = reg
		}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{facade: f, metrics: metrics, gatherer: gatherer, log: log}
}

// Handler returns the fully-routed mux, ready to pass to http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/extend", s.handleExtendSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleEndSession)
	mux.HandleFunc("GET /sessions/{id}/diagnostics", s.handleSessionDiagnostics)

	mux.HandleFunc("POST /chat", s.handleChat)

	mux.HandleFunc("GET /chat-config", s.handleGetConfig)
	mux.HandleFunc("POST /chat-config", s.handleUpdateConfig)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
