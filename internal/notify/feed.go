package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/schedule"
)

// FeedConfig holds configuration for the live-update feed.
type FeedConfig struct {
	Clock     schedule.Clock
	Publisher events.Publisher
	Logger    zerolog.Logger
}

// Feed is the append-only live-update log. Entries never expire.
type Feed struct {
	clock     schedule.Clock
	publisher events.Publisher
	logger    zerolog.Logger

	mu      sync.Mutex
	entries []Entry
	nextID  int64
}

// NewFeed creates an empty feed.
func NewFeed(cfg FeedConfig) *Feed {
	clock := cfg.Clock
	if clock == nil {
		clock = schedule.System()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Discard
	}
	return &Feed{
		clock:     clock,
		publisher: publisher,
		logger:    cfg.Logger,
	}
}

// Append records a new entry.
func (f *Feed) Append(message string, severity Severity) Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	e := Entry{
		ID:        f.nextID,
		Message:   message,
		Severity:  severity,
		CreatedAt: f.clock.Now(),
	}
	f.entries = append(f.entries, e)

	f.logger.Debug().
		Int64("update_id", e.ID).
		Str("message", message).
		Msg("live update appended")
	f.publisher.Publish(events.Event{Type: events.UpdateAppended, At: e.CreatedAt, Data: e})
	return e
}

// List returns the entries newest first.
func (f *Feed) List() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Entry, len(f.entries))
	for i, e := range f.entries {
		out[len(f.entries)-1-i] = e
	}
	return out
}

// Len returns the number of entries.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Clear empties the feed. Entry ids keep increasing.
func (f *Feed) Clear() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := len(f.entries)
	f.entries = nil
	f.publisher.Publish(events.Event{Type: events.UpdatesCleared, At: f.clock.Now(), Data: removed})
	return removed
}
