// Package httpserver provides the HTTP REST API for the SRA metadata service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/seqcore/sra-metadata-service/internal/database"
	"github.com/seqcore/sra-metadata-service/internal/domain"
	"github.com/seqcore/sra-metadata-service/internal/repository"
	"github.com/seqcore/sra-metadata-service/internal/workflow"
)

// ExtractionService drives extraction jobs and dataset searches.
// *workflow.Orchestrator satisfies it.
type ExtractionService interface {
	SubmitJob(ctx context.Context, db domain.Database, entrezIDs []int64, query string) (*domain.ExtractionJob, error)
	ProcessJob(ctx context.Context, job *domain.ExtractionJob) error
	FindDatasets(ctx context.Context, req workflow.DatasetSearch) ([]int64, error)
}

// HealthReporter reports database connectivity for readiness checks.
// *database.DB satisfies it.
type HealthReporter interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP REST API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	extractions ExtractionService
	store       repository.MetadataRepository
	jobs        repository.JobRepository
	health      HealthReporter
	logger      zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath is the Prometheus scrape endpoint; empty disables it.
	MetricsPath string
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	extractions ExtractionService,
	store repository.MetadataRepository,
	jobs repository.JobRepository,
	health HealthReporter,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		extractions: extractions,
		store:       store,
		jobs:        jobs,
		health:      health,
		logger:      logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter(cfg.MetricsPath)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter(metricsPath string) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	// Health and metrics endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	if metricsPath != "" {
		r.Method(http.MethodGet, metricsPath, promhttp.Handler())
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/extractions", s.startExtraction)
		r.Get("/extractions/{jobID}", s.getExtractionJob)
		r.Get("/experiments/{accession}", s.getExperiment)
		r.Post("/datasets/search", s.searchDatasets)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status. The process being able to
// answer is the signal; dependencies are checked by readiness.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": "unconfigured",
		})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
