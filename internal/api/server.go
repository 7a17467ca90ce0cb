// Package api exposes the worker pool and job registry over HTTP: worker
// lifecycle under /v1/workers, job listing under /v1/jobs, plus health and
// Prometheus metrics endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/runner"
	"github.com/joistio/joist/internal/worker"
)

// Server handles HTTP API requests.
type Server struct {
	port   int
	server *http.Server
	router *http.ServeMux
	logger *logging.Logger

	pool     *worker.WorkerPool
	jobs     *runner.JobStore
	gatherer prometheus.Gatherer
}

// New creates the API server. The gatherer backs /metrics; pass nil to use
// the default registry.
func New(port int, pool *worker.WorkerPool, jobs *runner.JobStore, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		port:     port,
		logger:   logging.GetLogger("api"),
		router:   http.NewServeMux(),
		pool:     pool,
		jobs:     jobs,
		gatherer: gatherer,
	}

	s.registerHandlers()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.corsMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("/healthz", s.withMethod(http.MethodGet, s.handleHealth))
	s.router.HandleFunc("/readyz", s.withMethod(http.MethodGet, s.handleReady))
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.HandleFunc("/v1/workers", s.withMethod(http.MethodGet, s.handleListWorkers))
	s.router.HandleFunc("/v1/workers/start", s.withMethod(http.MethodPost, s.handleStartWorker))
	s.router.HandleFunc("/v1/workers/stop", s.withMethod(http.MethodPost, s.handleStopWorker))
	s.router.HandleFunc("/v1/jobs", s.withMethod(http.MethodGet, s.handleListJobs))
}

// withMethod rejects requests with the wrong HTTP method.
func (s *Server) withMethod(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			s.handleMethodNotAllowed(w, r)
			return
		}
		handler(w, r)
	}
}

// corsMiddleware adds CORS headers to allow browser access.
// For local development only - allows all origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start implements the lifecycle.Component interface.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server listening on port %d", s.port)
	return nil
}

// Stop implements the lifecycle.Component interface.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")

	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("HTTP server shutdown error: %v", err)
			return err
		}
		s.logger.Info("API server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("API server shutdown timeout")
		return ctx.Err()
	}
}

// Name implements the lifecycle.Component interface.
func (s *Server) Name() string {
	return "API Server"
}

// GetPort returns the port the server listens on.
func (s *Server) GetPort() int {
	return s.port
}
