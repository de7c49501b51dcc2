// Package api provides the HTTP gateway in front of the TMB transit API.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmbmaps/tmbmaps/internal/api/handler"
	"github.com/tmbmaps/tmbmaps/internal/api/middleware"
	"github.com/tmbmaps/tmbmaps/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger

	// Metrics is optional; nil disables HTTP metrics.
	Metrics *middleware.Metrics

	// TracerProvider is optional; nil uses the global provider.
	TracerProvider trace.TracerProvider

	// Transit serves the metro and bus endpoints.
	Transit handler.TransitProvider

	// Registry reports provider health for the ops endpoints.
	Registry *resilience.Registry

	CORSOrigins []string
	RequireTLS  bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)                     // Generate/propagate request ID first
	r.Use(middleware.Tracing(cfg.TracerProvider))   // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))            // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))          // Panic recovery
	r.Use(chimiddleware.RealIP)                     // Real IP extraction
	r.Use(middleware.CORS(cfg.CORSOrigins))         // Browser map clients
	r.Use(middleware.SecurityHeaders)               // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))    // TLS enforcement
	r.Use(middleware.ContentTypeJSON)               // JSON content type
	r.Use(middleware.NoStore)                       // Live data, never cached

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	transitHandler := handler.NewTransitHandler(cfg.Transit)

	upstreamRateLimit := middleware.RateLimitByIP(middleware.UpstreamRateLimit) // 60 req/min
	bulkRateLimit := middleware.RateLimitByIP(middleware.BulkRateLimit)         // 20 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metro/lines", func(r chi.Router) {
			r.Use(upstreamRateLimit)
			r.Get("/", transitHandler.ListSubwayLines)
			r.Get("/{lineCode}/stations", transitHandler.ListLineStations)
		})

		r.Route("/bus/stops", func(r chi.Router) {
			// Full stop list is several MB upstream
			r.With(bulkRateLimit).Get("/", transitHandler.ListBusStops)
			r.With(upstreamRateLimit).Get("/{stopCode}/times", transitHandler.GetBusStopTimes)
		})
	})

	return r
}
