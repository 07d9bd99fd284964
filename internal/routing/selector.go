package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

// Select picks the route with the shortest duration; ties go to the shorter
// distance and then to the earliest in provider order. The remaining routes
// are returned as alternates in provider order.
func Select(routes []Route) (Selection, error) {
	if len(routes) == 0 {
		return Selection{}, ErrNoRouteFound
	}

	best := 0
	for i := 1; i < len(routes); i++ {
		if better(routes[i], routes[best]) {
			best = i
		}
	}

	alternates := make([]Route, 0, len(routes)-1)
	for i, r := range routes {
		if i != best {
			alternates = append(alternates, r)
		}
	}

	return Selection{Best: routes[best], Alternates: alternates}, nil
}

// better reports whether a strictly beats b.
func better(a, b Route) bool {
	if a.DurationSeconds != b.DurationSeconds {
		return a.DurationSeconds < b.DurationSeconds
	}
	return a.DistanceMeters < b.DistanceMeters
}

// DirectionsSource is satisfied by both a Provider and the caching Service.
type DirectionsSource interface {
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
}

// SelectorConfig holds configuration for the route selector.
type SelectorConfig struct {
	// Source supplies directions (usually a caching Service).
	Source DirectionsSource

	// Profile is the routing profile (default: driving).
	Profile RouteProfile

	// MaxAlternatives is forwarded to the provider (default: 2).
	MaxAlternatives int

	// Timeout bounds a single lookup (default: 10 seconds).
	Timeout time.Duration

	// Logger for selector operations.
	Logger zerolog.Logger
}

// Selector fetches routes and applies the selection rule.
type Selector struct {
	source          DirectionsSource
	profile         RouteProfile
	maxAlternatives int
	timeout         time.Duration
	logger          zerolog.Logger
}

// NewSelector creates a route selector.
func NewSelector(cfg SelectorConfig) *Selector {
	profile := cfg.Profile
	if profile == "" {
		profile = ProfileDriving
	}

	maxAlts := cfg.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 2
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Selector{
		source:          cfg.Source,
		profile:         profile,
		maxAlternatives: maxAlts,
		timeout:         timeout,
		logger:          cfg.Logger,
	}
}

// SelectRoute fetches routes from origin to destination and returns the best
// one with its alternates. It blocks on provider I/O; callers that must not
// block run it on their own goroutine.
//
// Errors: ErrInvalidCoordinates for out-of-range input, ErrNoRouteFound when
// the provider answered with zero routes, and a *Error wrapping
// ErrProviderUnavailable, ErrRateLimitExceeded or ErrMalformedResponse when
// the provider failed.
func (s *Selector) SelectRoute(ctx context.Context, origin, destination geo.Coordinate) (*Selection, error) {
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("origin: %w: %w", ErrInvalidCoordinates, err)
	}
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w: %w", ErrInvalidCoordinates, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.source.GetDirections(ctx, DirectionsRequest{
		Origin:          origin,
		Destination:     destination,
		Profile:         s.profile,
		MaxAlternatives: s.maxAlternatives,
	})
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil {
		return nil, &Error{Code: "EMPTY_RESPONSE", Message: "routing provider returned no response", Err: ErrMalformedResponse}
	}

	sel, err := Select(resp.Routes)
	if err != nil {
		return nil, err
	}
	sel.Provider = resp.Provider
	sel.FetchedAt = resp.FetchedAt

	s.logger.Debug().
		Str("origin", origin.String()).
		Str("destination", destination.String()).
		Str("provider", resp.Provider).
		Int("route_count", len(resp.Routes)).
		Float64("best_duration_s", sel.Best.DurationSeconds).
		Float64("best_distance_m", sel.Best.DistanceMeters).
		Msg("route selected")

	return &sel, nil
}

// classify maps any provider failure that is not already one of the routing
// sentinels onto ErrProviderUnavailable.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrNoRouteFound),
		errors.Is(err, ErrInvalidCoordinates),
		IsProviderError(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: "TIMEOUT", Message: "routing lookup did not complete", Err: fmt.Errorf("%w: %w", ErrProviderUnavailable, err)}
	}
	return &Error{Code: "PROVIDER_ERROR", Message: "routing provider failed", Err: fmt.Errorf("%w: %w", ErrProviderUnavailable, err)}
}
