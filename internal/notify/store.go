package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/schedule"
)

// StoreConfig holds configuration for the notification store.
type StoreConfig struct {
	// Clock drives expiry timers (default: system clock).
	Clock schedule.Clock

	// TTL is how long each notification lives (default: 12 seconds).
	TTL time.Duration

	// Publisher receives created/expired/cleared events (optional).
	Publisher events.Publisher

	// Logger for store operations.
	Logger zerolog.Logger
}

// Store keeps notifications newest first and removes each one when its TTL elapses.
type Store struct {
	clock     schedule.Clock
	ttl       time.Duration
	publisher events.Publisher
	logger    zerolog.Logger

	mu     sync.Mutex
	items  []Notification
	timers map[ID]schedule.Timer
	lastID ID
}

// NewStore creates an empty notification store.
func NewStore(cfg StoreConfig) *Store {
	clock := cfg.Clock
	if clock == nil {
		clock = schedule.System()
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Discard
	}

	return &Store{
		clock:     clock,
		ttl:       ttl,
		publisher: publisher,
		logger:    cfg.Logger,
		timers:    make(map[ID]schedule.Timer),
	}
}

// Push adds a notification at the head of the list and schedules its expiry.
func (s *Store) Push(message string, severity Severity) Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	id := ID(now.UnixMilli())
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	n := Notification{
		ID:        id,
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.items = append(s.items, Notification{})
	copy(s.items[1:], s.items)
	s.items[0] = n

	s.timers[id] = s.clock.AfterFunc(s.ttl, func() { s.expire(id) })

	s.logger.Debug().
		Int64("notification_id", int64(id)).
		Str("severity", string(severity)).
		Str("message", message).
		Msg("notification pushed")

	s.publisher.Publish(events.Event{Type: events.NotificationCreated, At: now, Data: n})
	return n
}

// expire removes exactly the notification with the given id. A timer that
// outlived a Clear finds no entry in the timer map and does nothing.
func (s *Store) expire(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[id]; !ok {
		return
	}
	delete(s.timers, id)

	for i := range s.items {
		if s.items[i].ID == id {
			n := s.items[i]
			s.items = append(s.items[:i], s.items[i+1:]...)

			s.logger.Debug().
				Int64("notification_id", int64(id)).
				Msg("notification expired")
			s.publisher.Publish(events.Event{Type: events.NotificationExpired, At: s.clock.Now(), Data: n})
			return
		}
	}
}

// Dismiss removes one notification before its TTL elapses.
// It returns false if no notification with that id is present.
func (s *Store) Dismiss(id ID) bool {
	s.mu.Lock()
	t, ok := s.timers[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.Stop()
	// Reuse the expiry path so the event stream stays uniform.
	s.expire(id)
	return true
}

// Clear removes every notification and cancels every pending expiry.
// IDs keep increasing across clears. It returns the number removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	removed := len(s.items)
	s.items = nil

	s.logger.Debug().Int("removed", removed).Msg("notifications cleared")
	s.publisher.Publish(events.Event{Type: events.NotificationsCleared, At: s.clock.Now(), Data: removed})
	return removed
}

// List returns a copy of the current notifications, newest first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of visible notifications.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// PendingExpiries returns the number of expiry timers still armed.
func (s *Store) PendingExpiries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
