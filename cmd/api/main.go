// Package main provides the entrypoint for the Swasthya Setu API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/api"
	"github.com/swasthyasetu/swasthyasetu/internal/api/handler"
	"github.com/swasthyasetu/swasthyasetu/internal/api/middleware"
	"github.com/swasthyasetu/swasthyasetu/internal/config"
	"github.com/swasthyasetu/swasthyasetu/internal/dispatch"
	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/facility"
	"github.com/swasthyasetu/swasthyasetu/internal/featureflags"
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
	"github.com/swasthyasetu/swasthyasetu/internal/notify"
	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
	"github.com/swasthyasetu/swasthyasetu/internal/routing/setup"
	"github.com/swasthyasetu/swasthyasetu/internal/telemetry"
	"github.com/swasthyasetu/swasthyasetu/internal/timeline"
	"github.com/swasthyasetu/swasthyasetu/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// warmupInterval is how often the route cache is refreshed when warm-up is on.
const warmupInterval = 4 * time.Minute

func main() {
	const serviceName = "swasthyasetu-api"

	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting Swasthya Setu API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	dispatchMetrics, err := dispatch.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dispatch metrics")
	}

	// Routing providers report their health here.
	providers := resilience.NewRegistry()
	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	selector, err := setup.NewSelector(cfg, setup.Options{
		Registry: providers,
		Observer: providerMetrics,
		Logger:   log,
	})
	if err != nil {
		if !errors.Is(err, setup.ErrDisabled) {
			log.Fatal().Err(err).Msg("failed to initialize routing")
		}
		log.Warn().Err(err).Msg("route lookup disabled")
	}

	// Facility reference data
	seed := facility.DefaultSeed()
	if cfg.FacilitySeedPath != "" {
		seed, err = facility.LoadSeed(cfg.FacilitySeedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.FacilitySeedPath).Msg("failed to load facility seed")
		}
	}
	registry, err := facility.NewRegistry(facility.RegistryConfig{Seed: seed, Logger: log})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid facility seed")
	}

	// Notification store, live feed and the timeline that drives them
	broker := events.NewBroker(events.DefaultBuffer)
	store := notify.NewStore(notify.StoreConfig{
		TTL:       cfg.NotificationTTL,
		Publisher: broker,
		Logger:    log,
	})
	feed := notify.NewFeed(notify.FeedConfig{Publisher: broker, Logger: log})
	orch := timeline.NewOrchestrator(timeline.Config{
		Notifications: store,
		Updates:       feed,
		Publisher:     broker,
		Logger:        log,
	})

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Logger:   log,
		CacheTTL: 1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	engineCfg := dispatch.Config{
		Registry:            registry,
		Orchestrator:        orch,
		Flags:               ffService,
		Publisher:           broker,
		Metrics:             dispatchMetrics,
		LowBalanceThreshold: cfg.LowBalanceThreshold,
		DonorMatchLimit:     cfg.DonorMatchLimit,
		Logger:              log,
	}
	// Assigned only when set so a nil *Selector never becomes a non-nil interface.
	var routeSelector handler.RouteSelector
	if selector != nil {
		engineCfg.Router = selector
		routeSelector = selector
	}
	engine, err := dispatch.NewEngine(engineCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create dispatch engine")
	}
	log.Info().
		Bool("low_balance", engine.LowBalance()).
		Msg("dispatch engine initialized")

	// Warm the route cache towards every hospital
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if cfg.RouteWarmup && selector != nil {
		warmup := worker.DefaultWarmupConfig()
		warmup.Concurrency = cfg.RouteWarmupConcurrency
		warmup.Destinations = hospitalLocations(registry)
		job := worker.NewWarmupJob(worker.WarmupJobConfig{
			Config:   warmup,
			Selector: selector,
			Logger:   log,
		})
		go job.Start(workerCtx, warmupInterval)
		log.Info().
			Int("pairs", warmup.TotalPairs()).
			Msg("route warm-up started")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		RequireTLS:         cfg.RequireTLS,
		Engine:             engine,
		Store:              store,
		Feed:               feed,
		Broker:             broker,
		Providers:          providers,
		FeatureFlagService: ffService,
		Selector:           routeSelector,
	})

	// Create HTTP server. WriteTimeout stays zero so /v1/stream connections
	// are not cut off.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopWorkers()
	if engine.Cancel() {
		log.Info().Msg("active emergency session cancelled")
	}
	// Notifications of a completed session still hold expiry timers.
	store.Clear()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func hospitalLocations(registry *facility.Registry) []geo.Coordinate {
	hospitals := registry.Hospitals()
	locations := make([]geo.Coordinate, 0, len(hospitals))
	for _, h := range hospitals {
		locations = append(locations, h.Location)
	}
	return locations
}
