package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status is the rolled-up health of one provider or of all of them.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// statusOf maps a breaker state to provider health.
func statusOf(state gobreaker.State) Status {
	switch state {
	case gobreaker.StateOpen:
		return StatusUnhealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name          string           `json:"name"`
	Status        Status           `json:"status"`
	Circuit       string           `json:"circuit"`
	Counts        gobreaker.Counts `json:"-"`
	LastSuccessAt *time.Time       `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time       `json:"last_failure_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
}

// Registry tracks provider clients and the outcome of their last calls.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	client      *Client
	lastSuccess *time.Time
	lastFailure *time.Time
	lastError   string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry), now: time.Now}
}

// Register tracks client under name, replacing an earlier registration.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	r.entries[name] = &entry{client: client}
	r.mu.Unlock()
}

// RecordSuccess notes a successful lookup. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(e *entry, now time.Time) { e.lastSuccess = &now })
}

// RecordFailure notes a failed lookup. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(e *entry, now time.Time) {
		e.lastFailure = &now
		if err != nil {
			e.lastError = err.Error()
		}
	})
}

func (r *Registry) update(name string, apply func(*entry, time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		apply(e, r.now())
	}
}

// Health returns one provider's health, or nil when it is not registered.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[name]; ok {
		return e.health(name)
	}
	return nil
}

// Snapshot returns every provider's health, sorted by name.
func (r *Registry) Snapshot() []*ProviderHealth {
	r.mu.RLock()
	out := make([]*ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.health(name))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists the registered providers, sorted.
func (r *Registry) Names() []string {
	snapshot := r.Snapshot()
	names := make([]string, len(snapshot))
	for i, h := range snapshot {
		names[i] = h.Name
	}
	return names
}

// Overall is unhealthy when every provider's circuit is open and degraded
// when any circuit is not closed. With no provider registered, routing is
// simply off, which counts as healthy.
func (r *Registry) Overall() Status {
	snapshot := r.Snapshot()
	open := 0
	overall := StatusHealthy
	for _, h := range snapshot {
		if h.Status == StatusUnhealthy {
			open++
		}
		if h.Status != StatusHealthy {
			overall = StatusDegraded
		}
	}
	if len(snapshot) > 0 && open == len(snapshot) {
		return StatusUnhealthy
	}
	return overall
}

func (e *entry) health(name string) *ProviderHealth {
	state := e.client.State()
	return &ProviderHealth{
		Name:          name,
		Status:        statusOf(state),
		Circuit:       state.String(),
		Counts:        e.client.Counts(),
		LastSuccessAt: e.lastSuccess,
		LastFailureAt: e.lastFailure,
		LastError:     e.lastError,
	}
}
