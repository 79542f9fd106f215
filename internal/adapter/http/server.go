package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuracity/risk-index-service/internal/batch"
	"github.com/neuracity/risk-index-service/internal/risk"
	"github.com/neuracity/risk-index-service/internal/storage"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ConfigProvider resolves named calculation configs.
type ConfigProvider interface {
	Get(name string) (risk.Config, bool)
}

// Deps holds the collaborators the API routes serve from.
type Deps struct {
	Store   storage.Store
	Driver  *batch.Driver
	Configs ConfigProvider
	Ready   ReadinessChecker
}

// Server exposes the block risk API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	store      storage.Store
	driver     *batch.Driver
	configs    ConfigProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /api/v1 routes and the
// /healthz, /readyz, and /metrics operational routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:   deps.Store,
		driver:  deps.Driver,
		configs: deps.Configs,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/blocks", s.handleListBlocks)
	mux.HandleFunc("GET /api/v1/blocks/bounds", s.handleBlocksInBounds)
	mux.HandleFunc("GET /api/v1/blocks/{block_id}", s.handleGetBlock)
	mux.HandleFunc("GET /api/v1/factors", s.handleListFactors)
	mux.HandleFunc("GET /api/v1/history/{block_id}", s.handleHistory)
	mux.HandleFunc("GET /api/v1/configs/{name}", s.handleGetConfig)
	mux.HandleFunc("POST /api/v1/recalculate", s.handleRecalculate)
	mux.HandleFunc("POST /api/v1/recalculate-all", s.handleRecalculateAll)
	mux.HandleFunc("GET /api/v1/statistics", s.handleStatistics)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
