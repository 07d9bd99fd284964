package schedule

import (
	"sync"
	"time"
)

// Group owns a set of timers that are cancelled together. A cancelled group
// refuses new timers, and callbacks of a cancelled group never run even if
// the underlying timer had already been dispatched.
type Group struct {
	clock Clock

	mu        sync.Mutex
	nextID    uint64
	timers    map[uint64]Timer
	cancelled bool
}

// NewGroup creates an empty group on the given clock.
func NewGroup(clock Clock) *Group {
	return &Group{
		clock:  clock,
		timers: make(map[uint64]Timer),
	}
}

// AfterFunc schedules f to run after d unless the group is cancelled first.
// It returns false if the group is already cancelled.
func (g *Group) AfterFunc(d time.Duration, f func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelled {
		return false
	}

	g.nextID++
	id := g.nextID
	g.timers[id] = g.clock.AfterFunc(d, func() {
		g.mu.Lock()
		if g.cancelled {
			g.mu.Unlock()
			return
		}
		delete(g.timers, id)
		g.mu.Unlock()

		f()
	})
	return true
}

// Cancel stops every pending timer and marks the group cancelled.
// It returns the number of timers that were still pending.
func (g *Group) Cancel() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelled {
		return 0
	}
	g.cancelled = true

	pending := len(g.timers)
	for id, t := range g.timers {
		t.Stop()
		delete(g.timers, id)
	}
	return pending
}

// Cancelled reports whether Cancel has been called.
func (g *Group) Cancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

// Pending returns the number of timers that have neither fired nor been cancelled.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}

// Now returns the group's clock time.
func (g *Group) Now() time.Time {
	return g.clock.Now()
}
