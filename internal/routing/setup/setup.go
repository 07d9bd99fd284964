// Package setup builds the route selector for the configured provider.
package setup

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/config"
	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
	"github.com/swasthyasetu/swasthyasetu/internal/routing/mapbox"
	"github.com/swasthyasetu/swasthyasetu/internal/routing/openrouteservice"
)

// ErrDisabled is returned when no routing provider is configured.
var ErrDisabled = errors.New("route lookup disabled")

// Options holds the dependencies shared by every provider.
type Options struct {
	// Registry receives provider health (optional).
	Registry *resilience.Registry

	// Observer sees cache and provider outcomes (optional).
	Observer routing.Observer

	Logger zerolog.Logger
}

// NewProvider returns the routing provider named by cfg.RoutingProvider.
func NewProvider(cfg config.Config, opts Options) (routing.Provider, error) {
	switch cfg.RoutingProvider {
	case config.ProviderOpenRouteService:
		if cfg.ORSAPIKey == "" {
			return nil, fmt.Errorf("%w: ORS_API_KEY not set", ErrDisabled)
		}
		return openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.ORSAPIKey,
			BaseURL:  cfg.RoutingBaseURL,
			Timeout:  cfg.RouteTimeout,
			Registry: opts.Registry,
			Logger:   opts.Logger,
		}), nil
	case config.ProviderMapbox:
		if cfg.MapboxToken == "" {
			return nil, fmt.Errorf("%w: MAPBOX_TOKEN not set", ErrDisabled)
		}
		return mapbox.NewClient(mapbox.ClientConfig{
			AccessToken: cfg.MapboxToken,
			BaseURL:     cfg.RoutingBaseURL,
			Timeout:     cfg.RouteTimeout,
			Registry:    opts.Registry,
			Logger:      opts.Logger,
		}), nil
	case config.ProviderNone:
		return nil, fmt.Errorf("%w: ROUTING_PROVIDER=none", ErrDisabled)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.RoutingProvider)
	}
}

// NewSelector wraps the configured provider in a caching service and a
// selector. Errors wrap ErrDisabled when routing is switched off.
func NewSelector(cfg config.Config, opts Options) (*routing.Selector, error) {
	provider, err := NewProvider(cfg, opts)
	if err != nil {
		return nil, err
	}

	service := routing.NewService(routing.ServiceConfig{
		Provider: provider,
		Logger:   opts.Logger,
		CacheTTL: cfg.RouteCacheTTL,
		Observer: opts.Observer,
	})
	opts.Logger.Info().
		Str("provider", service.ProviderName()).
		Dur("cache_ttl", cfg.RouteCacheTTL).
		Msg("routing service initialized")

	return routing.NewSelector(routing.SelectorConfig{
		Source:  service,
		Timeout: cfg.RouteTimeout,
		Logger:  opts.Logger,
	}), nil
}
