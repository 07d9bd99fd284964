package featureflags

import (
	"context"
	"sync"
)

// Repository stores flags for the Service. The Service only ever reads the
// whole set, so that is all a repository has to provide.
type Repository interface {
	// Load returns copies of every stored flag.
	Load(ctx context.Context) (map[string]*Flag, error)

	// Store writes all flags or none.
	Store(ctx context.Context, flags []*Flag) error
}

// MemoryRepository keeps flags in process memory; they reset on restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewMemoryRepository returns a repository holding copies of seed, or the
// defaults when seed is nil.
func NewMemoryRepository(seed map[string]*Flag) *MemoryRepository {
	if seed == nil {
		seed = DefaultFlags()
	}
	r := &MemoryRepository{flags: make(map[string]*Flag, len(seed))}
	for key, f := range seed {
		r.flags[key] = f.clone()
	}
	return r
}

func (f *Flag) clone() *Flag {
	c := *f
	return &c
}

func (r *MemoryRepository) Load(context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Flag, len(r.flags))
	for key, f := range r.flags {
		out[key] = f.clone()
	}
	return out, nil
}

func (r *MemoryRepository) Store(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range flags {
		r.flags[f.Key] = f.clone()
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
