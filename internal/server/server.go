package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/omaralj/propwatch/internal/server/handler"
	"github.com/omaralj/propwatch/internal/server/middleware"
	"github.com/omaralj/propwatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Analytics *handler.AnalyticsHandler
	Alerts    *handler.AlertHandler
	Sources   *handler.SourceHandler
	Ingest    *handler.IngestHandler
	Archives  *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API for the listing tracker.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Dashboard overview.
	mux.HandleFunc("GET /api/overview", handlers.Analytics.Overview)

	// Analytics endpoints.
	mux.HandleFunc("GET /api/analytics/price-tracker", handlers.Analytics.PriceTracker)
	mux.HandleFunc("GET /api/analytics/listing-velocity", handlers.Analytics.Velocity)
	mux.HandleFunc("GET /api/analytics/heat-map", handlers.Analytics.HeatMap)
	mux.HandleFunc("GET /api/analytics/competitor-comparison", handlers.Analytics.SourceComparison)

	// Listing endpoints.
	mux.HandleFunc("GET /api/listings", handlers.Analytics.Listings)

	// Alert endpoints.
	mux.HandleFunc("GET /api/alerts", handlers.Alerts.ListAlerts)
	mux.HandleFunc("GET /api/alerts/{id}", handlers.Alerts.GetAlert)
	mux.HandleFunc("PATCH /api/alerts/{id}/acknowledge", handlers.Alerts.AcknowledgeAlert)

	// Source endpoints.
	mux.HandleFunc("GET /api/sources", handlers.Sources.ListSources)
	mux.HandleFunc("GET /api/sources/scrape-jobs", handlers.Sources.ListScrapeJobs)

	// Manual collection trigger.
	mux.HandleFunc("POST /api/ingest/trigger", handlers.Ingest.TriggerIngest)

	// Archive listing.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
