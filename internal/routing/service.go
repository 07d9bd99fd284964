package routing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig configures a Service. Provider is required.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
	Observer Observer

	// CacheTTL is how long a route is served without asking the provider
	// (default 5m).
	CacheTTL time.Duration
	// CacheGridSize is the cell size in degrees that endpoints are snapped
	// to (default 0.001, about 110 m).
	CacheGridSize float64
	// StaleIfErrorTTL is how long after fetching a route may still stand
	// in for a failing provider (default 15m).
	StaleIfErrorTTL time.Duration
	// CleanupInterval spaces sweeps of dead entries (default 5m).
	CleanupInterval time.Duration

	Now func() time.Time
}

// Observer is told about cache lookups and provider calls.
// middleware.ProviderMetrics satisfies it.
type Observer interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

type nopObserver struct{}

func (nopObserver) RecordRequest(string, string, time.Duration, error) {}
func (nopObserver) RecordCacheHit(string, string)                      {}
func (nopObserver) RecordCacheMiss(string, string)                     {}

const opDirections = "directions"

// cachePolicy is the resolved form of the ServiceConfig cache settings.
type cachePolicy struct {
	ttl   time.Duration
	grid  float64
	stale time.Duration
	sweep time.Duration
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Service fronts a Provider with a grid-quantised cache. It satisfies
// DirectionsSource so a Selector can use it directly.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	observer Observer
	policy   cachePolicy
	now      func() time.Time

	flights   singleflight.Group
	mu        sync.RWMutex
	entries   map[string]*cacheEntry
	lastSweep time.Time
}

type cacheEntry struct {
	response  *DirectionsResponse
	fetchedAt time.Time
	expiresAt time.Time
}

// usableUntil is the last moment the entry may stand in for a failing
// provider.
func (e *cacheEntry) usableUntil(stale time.Duration) time.Time {
	return e.fetchedAt.Add(stale)
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		now:      cfg.Now,
		entries:  make(map[string]*cacheEntry),
		policy: cachePolicy{
			ttl:   durationOr(cfg.CacheTTL, 5*time.Minute),
			grid:  cfg.CacheGridSize,
			stale: durationOr(cfg.StaleIfErrorTTL, 15*time.Minute),
			sweep: durationOr(cfg.CleanupInterval, 5*time.Minute),
		},
	}
	if s.policy.grid <= 0 {
		s.policy.grid = 0.001
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GetDirections returns routes between two points, from cache when fresh.
// Concurrent misses for the same grid cell share one provider call. That
// call is detached from the caller that started it, so a caller giving up
// returns ctx.Err() without failing the others. Empty answers are not
// cached so a later request can retry the provider.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: ErrInvalidCoordinates}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: ErrInvalidCoordinates}
	}

	key := s.cacheKey(req)
	if resp, ok := s.fresh(key); ok {
		s.observer.RecordCacheHit(s.provider.Name(), opDirections)
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
		return resp, nil
	}
	s.observer.RecordCacheMiss(s.provider.Name(), opDirections)

	flight := s.flights.DoChan(key, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx), req, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DirectionsResponse), nil
	}
}

func (s *Service) fresh(key string) (*DirectionsResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok && s.now().Before(e.expiresAt) {
		return e.response, true
	}
	return nil, false
}

func (s *Service) fetch(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	// A flight that finished since the caller's lookup may have filled the entry.
	if resp, ok := s.fresh(key); ok {
		return resp, nil
	}

	name := s.provider.Name()
	log := s.logger.With().
		Str("provider", name).
		Str("profile", string(req.Profile)).
		Stringer("origin", req.Origin).
		Stringer("destination", req.Destination).
		Logger()

	started := s.now()
	resp, err := s.provider.GetDirections(ctx, req)
	if err == nil && resp == nil {
		err = &Error{Provider: name, Code: "EMPTY_RESPONSE", Message: "provider returned no response", Err: ErrMalformedResponse}
	}
	s.observer.RecordRequest(name, opDirections, s.now().Sub(started), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	if err != nil {
		prev, ok := s.entries[key]
		if !ok || !IsProviderError(err) || !now.Before(prev.usableUntil(s.policy.stale)) {
			log.Error().Err(err).Msg("directions lookup failed")
			return nil, err
		}
		log.Warn().Err(err).Time("fetched_at", prev.fetchedAt).Msg("provider failing, serving stale directions")
		return prev.response, nil
	}

	if len(resp.Routes) > 0 {
		s.entries[key] = &cacheEntry{response: resp, fetchedAt: now, expiresAt: now.Add(s.policy.ttl)}
		log.Debug().Int("routes", len(resp.Routes)).Msg("directions cached")
	}
	s.sweep(now)
	return resp, nil
}

// cacheKey snaps both endpoints to the grid, as
// profile:originLat,originLng:destLat,destLng.
func (s *Service) cacheKey(req DirectionsRequest) string {
	snap := func(v float64) float64 {
		return math.Floor(v/s.policy.grid) * s.policy.grid
	}
	return fmt.Sprintf("%s:%.4f,%.4f:%.4f,%.4f", req.Profile,
		snap(req.Origin.Lat), snap(req.Origin.Lng),
		snap(req.Destination.Lat), snap(req.Destination.Lng))
}

// sweep drops entries too old to serve even as stale. Callers hold s.mu.
func (s *Service) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.policy.sweep {
		return
	}
	s.lastSweep = now

	dropped := 0
	for key, e := range s.entries {
		if now.After(e.usableUntil(s.policy.stale)) {
			delete(s.entries, key)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug().Int("dropped", dropped).Msg("swept routing cache")
	}
}

// InvalidateCache clears all cached routes.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.entries = make(map[string]*cacheEntry)
	s.mu.Unlock()
}

// CacheStats counts cache entries by freshness.
type CacheStats struct {
	TotalEntries int    `json:"totalEntries"`
	FreshEntries int    `json:"freshEntries"`
	StaleEntries int    `json:"staleEntries"`
	Provider     string `json:"provider"`
}

func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	stats := CacheStats{TotalEntries: len(s.entries), Provider: s.provider.Name()}
	for _, e := range s.entries {
		switch {
		case now.Before(e.expiresAt):
			stats.FreshEntries++
		case now.Before(e.usableUntil(s.policy.stale)):
			stats.StaleEntries++
		}
	}
	return stats
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}
