// Package schedule provides the timer abstraction used by the emergency timeline
// and the notification store: a clock that can be swapped for a simulated one,
// and cancellable groups of timers.
package schedule

import (
	"container/heap"
	"sync"
	"time"
)

// Timer is a pending callback registered with a Clock.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the callback
	// already fired or the timer was already stopped.
	Stop() bool
}

// Clock supplies the current time and delayed callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// System returns a Clock backed by the runtime timer facility.
// Callbacks run on their own goroutine, as with time.AfterFunc.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manual is a simulated Clock. Time only moves when Advance is called, and due
// callbacks run synchronously on the goroutine calling Advance, ordered by
// deadline and then by registration order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers timerHeap
}

// NewManual creates a simulated clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the simulated time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers f to run once the simulated time reaches Now()+d.
// A non-positive d fires on the next Advance call, including Advance(0).
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{
		clock:    m,
		deadline: m.now.Add(d),
		seq:      m.seq,
		fn:       f,
	}
	heap.Push(&m.timers, t)
	return t
}

// Advance moves simulated time forward by d, firing every callback whose
// deadline falls within the window. Callbacks registered while advancing are
// fired too if they become due before the new time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)

	for len(m.timers) > 0 && !m.timers[0].deadline.After(target) {
		t := heap.Pop(&m.timers).(*manualTimer)
		t.fired = true
		if t.deadline.After(m.now) {
			m.now = t.deadline
		}

		// Release the lock so the callback can use the clock.
		m.mu.Unlock()
		t.fn()
		m.mu.Lock()
	}

	m.now = target
	m.mu.Unlock()
}

// Pending returns the number of registered callbacks that have not yet fired
// or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

type manualTimer struct {
	clock    *Manual
	deadline time.Time
	seq      uint64
	fn       func()
	index    int
	fired    bool
	stopped  bool
}

func (t *manualTimer) Stop() bool {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	heap.Remove(&m.timers, t.index)
	return true
}

type timerHeap []*manualTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
