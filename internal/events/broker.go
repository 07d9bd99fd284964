// Package events fans engine state changes out to presentation subscribers.
package events

import (
	"strings"
	"sync"
	"time"
)

// Event types published by the engine.
const (
	NotificationCreated  = "notification.created"
	NotificationExpired  = "notification.expired"
	NotificationsCleared = "notification.cleared"
	UpdateAppended       = "update.appended"
	UpdatesCleared       = "update.cleared"
	SessionStarted       = "session.started"
	SessionEnded         = "session.ended"
	RouteSelected        = "route.selected"
	RouteFailed          = "route.failed"
	AmbulancePosition    = "ambulance.position"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 32

// Event is a single state change.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// Topic returns the part of the event type before the first dot.
func (e Event) Topic() string {
	topic, _, _ := strings.Cut(e.Type, ".")
	return topic
}

// Publisher is implemented by anything that accepts events.
type Publisher interface {
	Publish(evt Event)
}

// Broker delivers published events to every matching subscriber.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan Event]map[string]struct{}
	buffer int
}

// NewBroker creates a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[chan Event]map[string]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for the given topics ("notification",
// "update", "session", "route", "ambulance"). No topics means every event.
// The returned function unsubscribes and closes the channel.
func (b *Broker) Subscribe(topics ...string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	var filter map[string]struct{}
	if len(topics) > 0 {
		filter = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			filter[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[ch] = filter
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers evt to every subscriber interested in its topic.
func (b *Broker) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	topic := evt.Topic()

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, filter := range b.subs {
		if filter != nil {
			if _, ok := filter[topic]; !ok {
				continue
			}
		}
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
