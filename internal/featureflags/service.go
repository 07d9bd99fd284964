package featureflags

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig configures a Service. Zero values select an in-memory
// repository, DefaultFlags and a one-minute cache.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration
	DefaultFlags map[string]*Flag

	// Now overrides the clock used for cache expiry.
	Now func() time.Time
}

// Service evaluates flags from a cached snapshot of the repository layered
// over the defaults. The snapshot is replaced, never edited, so maps handed
// out by it stay consistent.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	ttl      time.Duration
	defaults map[string]*Flag
	now      func() time.Time

	mu       sync.Mutex
	snapshot map[string]*Flag
	loadedAt time.Time
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		ttl:      cfg.CacheTTL,
		defaults: cfg.DefaultFlags,
		now:      cfg.Now,
	}
	if s.repo == nil {
		s.repo = NewMemoryRepository(nil)
	}
	if s.ttl <= 0 {
		s.ttl = time.Minute
	}
	if s.defaults == nil {
		s.defaults = DefaultFlags()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// flags returns the current snapshot, reloading it once the TTL has passed.
// When the repository fails the previous snapshot is kept, or the defaults
// are served if there is none.
func (s *Service) flags(ctx context.Context) map[string]*Flag {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.snapshot != nil && now.Sub(s.loadedAt) < s.ttl {
		return s.snapshot
	}

	stored, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load feature flags, serving last known values")
		if s.snapshot != nil {
			return s.snapshot
		}
		return s.defaults
	}

	merged := make(map[string]*Flag, len(s.defaults)+len(stored))
	for k, v := range s.defaults {
		merged[k] = v
	}
	for k, v := range stored {
		merged[k] = v
	}
	s.snapshot, s.loadedAt = merged, now
	return merged
}

// GetFlag returns the flag stored under key, or nil for an unknown key.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	return s.flags(ctx)[key]
}

// GetAllFlags returns a copy of every flag, stored values over defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	current := s.flags(ctx)
	out := make(map[string]*Flag, len(current))
	for k, v := range current {
		out[k] = v
	}
	return out
}

// List returns every flag sorted by key.
func (s *Service) List(ctx context.Context) FlagList {
	current := s.flags(ctx)
	items := make([]Flag, 0, len(current))
	for _, f := range current {
		items = append(items, *f)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return FlagList{Items: items}
}

// SetFlag stores one flag. The change is visible to the next read.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	return s.SetFlags(ctx, []*Flag{flag})
}

// SetFlags stores flags in one repository call and drops the snapshot.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := s.now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}
	if err := s.repo.Store(ctx, flags); err != nil {
		return err
	}
	s.InvalidateCache()
	return nil
}

// Apply validates and stores an admin update, logging each change with
// the stated reason.
func (s *Service) Apply(ctx context.Context, req FlagUpdateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	flags := make([]*Flag, len(req.Updates))
	for i, u := range req.Updates {
		flags[i] = &Flag{Key: u.Key, Value: u.Value}
	}
	if err := s.SetFlags(ctx, flags); err != nil {
		return err
	}

	for _, f := range flags {
		s.logger.Info().
			Str("flag", f.Key).
			Interface("value", f.Value).
			Str("reason", req.Reason).
			Msg("feature flag updated")
	}
	return nil
}

// InvalidateCache drops the snapshot so the next read goes to the repository.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// IsEnabled reports whether the flag is truthy. Unknown flags are off.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// IsDisabled is the inverse of IsEnabled.
func (s *Service) IsDisabled(ctx context.Context, key string) bool {
	return !s.IsEnabled(ctx, key)
}

// Convenience methods for well-known flags.

// RouteLookupDisabled reports whether the route lookup is switched off.
func (s *Service) RouteLookupDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableRouteLookup)
}

// ForceLowBalanceMode reports whether every session runs the low-balance path.
func (s *Service) ForceLowBalanceMode(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagForceLowBalanceMode)
}

// DonorMatchingDisabled reports whether donor matching is switched off.
func (s *Service) DonorMatchingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableDonorMatching)
}

// AmbulanceTrackingDisabled reports whether the ambulance tracker is off.
func (s *Service) AmbulanceTrackingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableAmbulanceTracking)
}

// AmbulanceTrackingPoints returns the tracker resolution.
func (s *Service) AmbulanceTrackingPoints(ctx context.Context) int {
	n := s.GetFlag(ctx, FlagAmbulanceTrackingPoints).IntValue(DefaultTrackingPoints)
	if n < 2 {
		return DefaultTrackingPoints
	}
	return n
}
