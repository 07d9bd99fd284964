package dispatch

import (
	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
	"github.com/swasthyasetu/swasthyasetu/internal/timeline"
	"github.com/swasthyasetu/swasthyasetu/pkg/polyline"
)

// startTracker moves the ambulance along geometry in points evenly spaced
// samples, one every tracker interval. The samples are tied to the session
// and stop with it. The caller holds e.mu.
func (e *Engine) startTracker(session *timeline.Session, geometry []geo.Coordinate, points int) {
	if len(geometry) == 0 {
		return
	}
	path := routing.FromPolyline(polyline.Resample(routing.ToPolyline(geometry), points))

	var step func(i int)
	step = func(i int) {
		if !e.emitPosition(session, path, i) {
			return
		}
		if i+1 < len(path) {
			session.AfterFunc(e.interval, func() { step(i + 1) })
		}
	}
	session.AfterFunc(0, func() { step(0) })
}

// emitPosition records sample i as the ambulance position. It reports false
// once a newer dispatch has replaced the session.
func (e *Engine) emitPosition(session *timeline.Session, path []geo.Coordinate, i int) bool {
	pos := Position{
		SessionID: session.ID(),
		Location:  path[i],
		Index:     i,
		Total:     len(path),
		At:        e.clock.Now(),
	}

	e.mu.Lock()
	if e.state == nil || e.state.sessionID != session.ID() {
		e.mu.Unlock()
		return false
	}
	e.state.position = &pos
	e.mu.Unlock()

	e.metrics.AmbulancePosition()
	e.publisher.Publish(events.Event{Type: events.AmbulancePosition, At: pos.At, Data: pos})
	return true
}
