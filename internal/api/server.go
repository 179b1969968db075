// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/api/handler"
	"github.com/newthinker/chartgen/internal/api/job"
	"github.com/newthinker/chartgen/internal/api/middleware"
	"github.com/newthinker/chartgen/internal/storage/archive"
	"github.com/newthinker/chartgen/internal/symbol"
)

// Server is the HTTP front end for on-demand chart runs.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	jobs       *handler.JobsHandler
	cancel     context.CancelFunc
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	APIKey  string
	JobTTL  time.Duration
	MaxJobs int
}

// Dependencies are the components the handlers serve.
type Dependencies struct {
	Runner         handler.Runner
	History        handler.RunHistory // nil disables the run endpoints
	Artifacts      archive.Storage
	Gatherer       prometheus.Gatherer // nil disables /metrics
	DefaultSymbols []symbol.Raw
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil || deps.Artifacts == nil {
		return nil, fmt.Errorf("runner and artifact storage are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      middleware.Logging(logger)(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
		jobs:   handler.NewJobsHandler(runCtx, job.NewStore(cfg.MaxJobs, cfg.JobTTL), deps.Runner, deps.DefaultSymbols, logger),
		cancel: cancel,
	}

	s.setupRoutes(cfg, deps)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	auth := middleware.APIKeyAuth(cfg.APIKey)
	runs := handler.NewRunsHandler(deps.History)
	charts := handler.NewChartsHandler(deps.Artifacts)

	s.mux.Handle("POST /api/v1/jobs", auth(http.HandlerFunc(s.jobs.Create)))
	s.mux.Handle("GET /api/v1/jobs", auth(http.HandlerFunc(s.jobs.List)))
	s.mux.Handle("GET /api/v1/jobs/{id}", auth(http.HandlerFunc(s.jobs.Get)))
	s.mux.Handle("GET /api/v1/runs", auth(http.HandlerFunc(runs.List)))
	s.mux.Handle("GET /api/v1/symbols/{symbol}/history", auth(http.HandlerFunc(runs.SymbolHistory)))
	s.mux.Handle("GET /api/v1/charts", auth(http.HandlerFunc(charts.List)))
	s.mux.Handle("GET /api/v1/charts/{name}", auth(http.HandlerFunc(charts.Get)))
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels a running chart job and waits
// for it to record its outcome.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
