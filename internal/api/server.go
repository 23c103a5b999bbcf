package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-lending/gavel/internal/batch"
	"github.com/opensource-lending/gavel/internal/domain"
	"github.com/opensource-lending/gavel/internal/policy"
	"github.com/opensource-lending/gavel/internal/sol"
	"github.com/opensource-lending/gavel/internal/stats"
	"github.com/opensource-lending/gavel/internal/timeline"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, ruleStore domain.RuleStore, calculator *sol.Calculator, projector *timeline.Projector, policies *policy.Engine, runner *batch.Runner, statsSvc *stats.Service, version string) *Server {
	handler := NewHandler(repo, cache, ruleStore, calculator, projector, policies, runner, statsSvc, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// SOL evaluation
		r.Post("/sol/evaluate", handler.EvaluateSOL)
		r.Get("/sol/results/{loanId}", handler.GetSOLResult)

		// Foreclosure timeline projection
		r.Post("/timeline/project", handler.ProjectTimeline)

		// Loan legal state
		r.Post("/loans", handler.SaveLoan)
		r.Get("/loans/{loanId}", handler.GetLoan)

		// Jurisdiction rule management
		r.Get("/jurisdictions", handler.ListJurisdictions)
		r.Get("/jurisdictions/{code}", handler.GetJurisdiction)
		r.Post("/jurisdictions", handler.CreateJurisdiction)
		r.Post("/jurisdictions/reload", handler.ReloadJurisdictions)

		// Portfolio operations
		r.Post("/batch/run", handler.RunBatch)
		r.Get("/stats/risk", handler.RiskStats)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
