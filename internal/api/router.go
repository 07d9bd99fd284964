// Package api provides the HTTP API for Swasthya Setu.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/api/handler"
	"github.com/swasthyasetu/swasthyasetu/internal/api/middleware"
	"github.com/swasthyasetu/swasthyasetu/internal/dispatch"
	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/featureflags"
	"github.com/swasthyasetu/swasthyasetu/internal/notify"
	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Engine    *dispatch.Engine // required
	Store     *notify.Store    // required
	Feed      *notify.Feed     // required
	Broker    *events.Broker   // required
	Providers *resilience.Registry

	// FeatureFlagService should be the engine's, so admin edits take effect.
	FeatureFlagService *featureflags.Service

	// Selector serves /v1/routes:select. Nil disables ad-hoc routing.
	Selector handler.RouteSelector
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "swasthyasetu-api"
	}

	flags := cfg.FeatureFlagService
	if flags == nil {
		flags = featureflags.NewService(featureflags.ServiceConfig{Logger: cfg.Logger})
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type
	r.Use(middleware.RequireJSON)                // Reject non-JSON request bodies

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Engine:    cfg.Engine,
		Broker:    cfg.Broker,
		Flags:     flags,
		Providers: cfg.Providers,
	})
	profileHandler := handler.NewProfileHandler(cfg.Engine)
	emergencyHandler := handler.NewEmergencyHandler(cfg.Engine, cfg.Logger)
	notificationsHandler := handler.NewNotificationsHandler(cfg.Store, cfg.Feed)
	facilitiesHandler := handler.NewFacilitiesHandler(cfg.Engine.Registry(), cfg.Engine.Profile().Location)
	routesHandler := handler.NewRoutesHandler(cfg.Selector, cfg.Logger)
	streamHandler := handler.NewStreamHandler(cfg.Broker, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(flags, cfg.Logger)

	// Rate limits per endpoint category
	triggerRateLimit := middleware.TriggerRateLimit.ByClient()
	expensiveRateLimit := middleware.ExpensiveRateLimit.ByIP()
	standardRateLimit := middleware.StandardRateLimit.ByIP()

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/profile", profileHandler.GetProfile)

		// Emergency lifecycle - per-device limits on state changes
		r.Route("/emergency", func(r chi.Router) {
			r.Get("/", emergencyHandler.GetEmergency)
			r.With(triggerRateLimit).Post("/", emergencyHandler.StartEmergency)
			r.With(triggerRateLimit).Delete("/", emergencyHandler.CancelEmergency)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", notificationsHandler.ListNotifications)
			r.Delete("/", notificationsHandler.ClearNotifications)
			r.Delete("/{notificationId}", notificationsHandler.DismissNotification)
		})

		r.With(standardRateLimit).Get("/updates", notificationsHandler.ListUpdates)

		r.Route("/facilities", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", facilitiesHandler.ListFacilities)
			r.Get("/nearest", facilitiesHandler.NearestFacility)
		})

		// Routes endpoint - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:select", routesHandler.SelectRoute)

		// Event stream (WebSocket)
		r.Get("/stream", streamHandler.Stream)

		// Admin endpoints - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(standardRateLimit)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
