package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/transferscan/internal/api/handlers"
	"github.com/eshaffer321/transferscan/internal/api/middleware"
	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/infrastructure/metrics"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	review     *review.Service
	metrics    *metrics.Collector
}

// NewServer creates a new API server. collector may be nil, in which case
// /metrics is not served.
func NewServer(cfg Config, repo storage.Repository, svc *review.Service, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  logger,
		repo:    repo,
		review:  svc,
		metrics: collector,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	// CORS
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging and metrics
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check and metrics (no /api prefix - for load balancers and scrapers)
	healthHandler := handlers.NewHealthHandler(s.repo)
	s.router.Get("/health", healthHandler.ServeHTTP)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Per-scope progress, checked range and preferences
		scopesHandler := handlers.NewScopesHandler(s.repo, s.review)
		cyclesHandler := handlers.NewCyclesHandler(s.review)
		r.Route("/scopes/{scope}", func(r chi.Router) {
			r.Get("/status", scopesHandler.Status)
			r.Post("/checked-range", scopesHandler.CommitRange)
			r.Get("/preferences", scopesHandler.GetPreferences)
			r.Put("/preferences", scopesHandler.PutPreferences)
			r.Post("/cycles", cyclesHandler.Start)
		})

		// Review cycles
		r.Get("/cycles/{id}", cyclesHandler.Get)
		r.Post("/cycles/{id}/decisions", cyclesHandler.Decide)
		r.Delete("/cycles/{id}", cyclesHandler.Abandon)

		// Ad-hoc scan
		scanHandler := handlers.NewScanHandler(s.review)
		r.Post("/scan", scanHandler.Scan)

		// Scan cycle history
		runsHandler := handlers.NewRunsHandler(s.repo)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Starting a cycle scans a whole chunk
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
