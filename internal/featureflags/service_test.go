package featureflags_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/featureflags"
)

// clock is a settable time source for cache expiry.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(repo featureflags.Repository, ttl time.Duration) (*featureflags.Service, *clock) {
	c := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   ttl,
		Now:        c.Now,
	}), c
}

// outOfBand writes straight to the repository, behind the service's back.
func outOfBand(t *testing.T, repo featureflags.Repository, key string, value interface{}) {
	t.Helper()
	if err := repo.Store(context.Background(), []*featureflags.Flag{{Key: key, Value: value}}); err != nil {
		t.Fatalf("store %s: %v", key, err)
	}
}

func TestService_Defaults(t *testing.T) {
	service, _ := newService(featureflags.NewMemoryRepository(nil), time.Minute)
	ctx := context.Background()

	switches := map[string]bool{
		"route lookup disabled":      service.RouteLookupDisabled(ctx),
		"low balance forced":         service.ForceLowBalanceMode(ctx),
		"donor matching disabled":    service.DonorMatchingDisabled(ctx),
		"ambulance tracking stopped": service.AmbulanceTrackingDisabled(ctx),
	}
	for name, on := range switches {
		if on {
			t.Errorf("%s by default", name)
		}
	}
	if got := service.AmbulanceTrackingPoints(ctx); got != featureflags.DefaultTrackingPoints {
		t.Errorf("tracking points = %d, want %d", got, featureflags.DefaultTrackingPoints)
	}
	if !service.IsDisabled(ctx, featureflags.FlagDisableRouteLookup) {
		t.Error("IsDisabled should invert IsEnabled")
	}
	if service.GetFlag(ctx, "enable_time_travel") != nil {
		t.Error("unknown key should have no flag")
	}
}

func TestService_EmptyRepositoryServesDefaults(t *testing.T) {
	service, _ := newService(featureflags.NewMemoryRepository(map[string]*featureflags.Flag{}), time.Minute)

	flag := service.GetFlag(context.Background(), featureflags.FlagAmbulanceTrackingPoints)
	if flag == nil {
		t.Fatal("expected the default flag")
	}
	if flag.IntValue(0) != featureflags.DefaultTrackingPoints {
		t.Errorf("IntValue = %d, want %d", flag.IntValue(0), featureflags.DefaultTrackingPoints)
	}
}

func TestService_SetFlagIsVisibleImmediately(t *testing.T) {
	service, c := newService(featureflags.NewMemoryRepository(nil), time.Hour)
	ctx := context.Background()

	_ = service.ForceLowBalanceMode(ctx)
	if err := service.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagForceLowBalanceMode, Value: true}); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}

	flag := service.GetFlag(ctx, featureflags.FlagForceLowBalanceMode)
	if !flag.BoolValue(false) {
		t.Error("write should drop the cached snapshot")
	}
	if !flag.UpdatedAt.Equal(c.now) {
		t.Errorf("UpdatedAt = %v, want %v", flag.UpdatedAt, c.now)
	}
}

func TestService_Apply(t *testing.T) {
	service, _ := newService(featureflags.NewMemoryRepository(nil), time.Minute)
	ctx := context.Background()

	err := service.Apply(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagDisableDonorMatching, Value: true},
			{Key: featureflags.FlagAmbulanceTrackingPoints, Value: float64(40)},
		},
		Reason: "blood bank drill",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !service.DonorMatchingDisabled(ctx) {
		t.Error("donor matching should be disabled")
	}
	if got := service.AmbulanceTrackingPoints(ctx); got != 40 {
		t.Errorf("tracking points = %d, want 40", got)
	}
}

func TestService_ApplyRejectsInvalidUpdates(t *testing.T) {
	tests := []struct {
		name    string
		updates []featureflags.FlagUpdate
	}{
		{"empty request", nil},
		{"unknown key", []featureflags.FlagUpdate{{Key: "enable_time_travel", Value: true}}},
		{"bool flag given string", []featureflags.FlagUpdate{{Key: featureflags.FlagDisableRouteLookup, Value: "yes"}}},
		{"count given bool", []featureflags.FlagUpdate{{Key: featureflags.FlagAmbulanceTrackingPoints, Value: true}}},
		{"count too small", []featureflags.FlagUpdate{{Key: featureflags.FlagAmbulanceTrackingPoints, Value: float64(1)}}},
		{"count fractional", []featureflags.FlagUpdate{{Key: featureflags.FlagAmbulanceTrackingPoints, Value: 12.5}}},
		{"one bad among good", []featureflags.FlagUpdate{
			{Key: featureflags.FlagForceLowBalanceMode, Value: true},
			{Key: featureflags.FlagDisableRouteLookup, Value: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newService(featureflags.NewMemoryRepository(nil), time.Minute)
			ctx := context.Background()

			err := service.Apply(ctx, featureflags.FlagUpdateRequest{Updates: tt.updates})
			if !errors.Is(err, featureflags.ErrInvalidFlag) {
				t.Fatalf("err = %v, want ErrInvalidFlag", err)
			}
			if service.ForceLowBalanceMode(ctx) {
				t.Error("a rejected request must not store any update")
			}
		})
	}
}

func TestService_ListIsSorted(t *testing.T) {
	service, _ := newService(featureflags.NewMemoryRepository(nil), time.Minute)

	list := service.List(context.Background())
	want := []string{
		featureflags.FlagAmbulanceTrackingPoints,
		featureflags.FlagDisableAmbulanceTracking,
		featureflags.FlagDisableDonorMatching,
		featureflags.FlagDisableRouteLookup,
		featureflags.FlagForceLowBalanceMode,
	}
	if len(list.Items) != len(want) {
		t.Fatalf("got %d flags, want %d", len(list.Items), len(want))
	}
	for i, key := range want {
		if list.Items[i].Key != key {
			t.Errorf("item %d = %q, want %q", i, list.Items[i].Key, key)
		}
	}
}

func TestService_SnapshotLifetime(t *testing.T) {
	tests := []struct {
		name    string
		refresh func(*featureflags.Service, *clock)
		fresh   bool
	}{
		{"within ttl", func(*featureflags.Service, *clock) {}, false},
		{"after ttl", func(_ *featureflags.Service, c *clock) { c.now = c.now.Add(2 * time.Minute) }, true},
		{"invalidated", func(s *featureflags.Service, _ *clock) { s.InvalidateCache() }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := featureflags.NewMemoryRepository(nil)
			service, c := newService(repo, time.Minute)
			ctx := context.Background()

			_ = service.RouteLookupDisabled(ctx)
			outOfBand(t, repo, featureflags.FlagDisableRouteLookup, true)
			tt.refresh(service, c)

			if got := service.RouteLookupDisabled(ctx); got != tt.fresh {
				t.Errorf("RouteLookupDisabled = %v, want %v", got, tt.fresh)
			}
		})
	}
}

func TestService_GetAllFlagsIsACopy(t *testing.T) {
	service, _ := newService(featureflags.NewMemoryRepository(nil), time.Minute)
	ctx := context.Background()

	all := service.GetAllFlags(ctx)
	delete(all, featureflags.FlagDisableRouteLookup)

	if service.GetFlag(ctx, featureflags.FlagDisableRouteLookup) == nil {
		t.Error("mutating the returned map must not touch the snapshot")
	}
}

// flakyRepository fails loads while down.
type flakyRepository struct {
	*featureflags.MemoryRepository
	mu   sync.Mutex
	down bool
}

func (r *flakyRepository) setDown(down bool) {
	r.mu.Lock()
	r.down = down
	r.mu.Unlock()
}

func (r *flakyRepository) Load(ctx context.Context) (map[string]*featureflags.Flag, error) {
	r.mu.Lock()
	down := r.down
	r.mu.Unlock()
	if down {
		return nil, errors.New("flag store unreachable")
	}
	return r.MemoryRepository.Load(ctx)
}

func TestService_RepositoryFailure(t *testing.T) {
	repo := &flakyRepository{MemoryRepository: featureflags.NewMemoryRepository(nil), down: true}
	service, c := newService(repo, time.Minute)
	ctx := context.Background()

	if service.ForceLowBalanceMode(ctx) {
		t.Fatal("nothing loaded yet: want the default")
	}

	repo.setDown(false)
	outOfBand(t, repo, featureflags.FlagForceLowBalanceMode, true)
	if !service.ForceLowBalanceMode(ctx) {
		t.Fatal("want the stored value once the repository is back")
	}

	repo.setDown(true)
	c.now = c.now.Add(5 * time.Minute)
	if !service.ForceLowBalanceMode(ctx) {
		t.Error("an expired snapshot should outlive a failed reload")
	}
}

func TestFlag_Values(t *testing.T) {
	tests := []struct {
		name     string
		flag     *featureflags.Flag
		wantBool bool
		wantInt  int
	}{
		{"nil flag", nil, true, 7},
		{"true", &featureflags.Flag{Value: true}, true, 7},
		{"false", &featureflags.Flag{Value: false}, false, 7},
		{"json number", &featureflags.Flag{Value: float64(100)}, true, 100},
		{"fraction truncates", &featureflags.Flag{Value: 42.9}, true, 42},
		{"zero", &featureflags.Flag{Value: 0}, false, 0},
		{"string", &featureflags.Flag{Value: "on"}, true, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flag.BoolValue(true); got != tt.wantBool {
				t.Errorf("BoolValue = %v, want %v", got, tt.wantBool)
			}
			if got := tt.flag.IntValue(7); got != tt.wantInt {
				t.Errorf("IntValue = %d, want %d", got, tt.wantInt)
			}
		})
	}
}

func TestDefaultFlags_AreValid(t *testing.T) {
	for key, flag := range featureflags.DefaultFlags() {
		if flag.Key != key {
			t.Errorf("flag under %q has key %q", key, flag.Key)
		}
		if err := featureflags.ValidateValue(key, flag.Value); err != nil {
			t.Errorf("default for %s is invalid: %v", key, err)
		}
	}
}
