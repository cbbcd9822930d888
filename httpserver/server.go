package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/venvbox/config"
	"github.com/isdmx/venvbox/observability"
	"github.com/isdmx/venvbox/venv"
)

// Version is the reported service version.
const Version = "1.0.0"

// CodeExecutor is the orchestration surface the server drives.
type CodeExecutor interface {
	Execute(ctx context.Context, req venv.Request) venv.Result
}

// ExecuteRequest is the JSON body of POST /execute.
type ExecuteRequest struct {
	Code string   `json:"code"`
	Lib  []string `json:"lib,omitempty"`
	Name string   `json:"name,omitempty"`
}

// ExecuteResponse is the JSON body answered by POST /execute.
type ExecuteResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

// Server is the HTTP server for the execution API.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	executor CodeExecutor
	metrics  *observability.Metrics
	router   chi.Router
	http     *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, logger *zap.Logger, executor CodeExecutor, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		executor: executor,
		metrics:  metrics,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	r.Post("/execute", s.handleExecute)
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Python Code Execution API",
		"version":  Version,
		"endpoint": "/execute",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.Code == "" {
		s.writeError(w, http.StatusBadRequest, "code must not be empty")
		return
	}

	// Names become directory and metadata file names; unsafe ones never
	// reach the core.
	if req.Name != "" && !venv.ValidName(req.Name) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid environment name: %q", req.Name))
		return
	}

	s.logger.Info("code execution requested",
		zap.String("name", req.Name),
		zap.Int("dependencies", len(req.Lib)))

	result := s.executor.Execute(r.Context(), venv.Request{
		Code:      req.Code,
		Libraries: req.Lib,
		Name:      req.Name,
	})

	// User-code failure is routine and reported in-band; the HTTP call
	// itself succeeded.
	s.writeJSON(w, http.StatusOK, ExecuteResponse{
		Output: result.Output,
		Error:  result.Error,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ExecuteResponse{Error: msg})
}

// Start begins listening on the configured port. It blocks until the server
// stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
