// Package timeline runs the scripted emergency session: a single-session
// state machine whose scheduled steps are cancelled together when the
// session ends.
package timeline

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/notify"
	"github.com/swasthyasetu/swasthyasetu/internal/schedule"
)

// ErrAlreadyActive is returned when a session is started while another is live.
var ErrAlreadyActive = errors.New("emergency session already active")

// Status is the orchestrator state.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
)

// EndReason records why a session left the Active state.
type EndReason string

const (
	EndCompleted  EndReason = "completed"
	EndCancelled  EndReason = "cancelled"
	EndSuperseded EndReason = "superseded"
)

// SessionInfo is a point-in-time copy of a session's state.
type SessionInfo struct {
	ID             uuid.UUID  `json:"id"`
	Status         Status     `json:"status"`
	LowBalanceMode bool       `json:"lowBalanceMode"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	EndReason      EndReason  `json:"endReason,omitempty"`
	StepsFired     int        `json:"stepsFired"`
	StepsTotal     int        `json:"stepsTotal"`
}

// Notifier receives scripted notifications. Clear drops them along with
// their pending expiries when a session is cancelled or superseded.
type Notifier interface {
	Push(message string, severity notify.Severity) notify.Notification
	Clear() int
}

// UpdateSink receives scripted live-update entries.
type UpdateSink interface {
	Append(message string, severity notify.Severity) notify.Entry
}

// Config holds configuration for the orchestrator.
type Config struct {
	// Clock schedules the script (default: system clock).
	Clock schedule.Clock

	// Notifications and Updates receive the emitted messages (required).
	Notifications Notifier
	Updates       UpdateSink

	// Publisher receives session.started/session.ended events (optional).
	Publisher events.Publisher

	Logger zerolog.Logger
}

// Orchestrator owns at most one live session.
type Orchestrator struct {
	clock         schedule.Clock
	notifications Notifier
	updates       UpdateSink
	publisher     events.Publisher
	logger        zerolog.Logger

	mu      sync.Mutex
	current *Session
	last    *SessionInfo
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = schedule.System()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Discard
	}
	return &Orchestrator{
		clock:         clock,
		notifications: cfg.Notifications,
		updates:       cfg.Updates,
		publisher:     publisher,
		logger:        cfg.Logger,
	}
}

// Session is one run of a script. All of its timers live in one group.
type Session struct {
	orch  *Orchestrator
	group *schedule.Group
	done  chan struct{}

	// guarded by orch.mu
	info SessionInfo
}

// Info returns a copy of the session state.
func (s *Session) Info() SessionInfo {
	s.orch.mu.Lock()
	defer s.orch.mu.Unlock()
	return s.info
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID {
	return s.info.ID
}

// Done is closed when the session ends for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// AfterFunc attaches an extra task to the session. The task is cancelled
// with the session's scripted steps and never starts after the session has
// ended. It reports false if the session is already over. f runs without
// the orchestrator lock held.
func (s *Session) AfterFunc(d time.Duration, f func()) bool {
	return s.group.AfterFunc(d, func() {
		if !s.live() {
			return
		}
		f()
	})
}

func (s *Session) live() bool {
	s.orch.mu.Lock()
	defer s.orch.mu.Unlock()
	return s.orch.current == s
}

// StartEmergency starts a session running script. Offset-zero steps are
// emitted before it returns. It fails with ErrAlreadyActive while another
// session is live.
func (o *Orchestrator) StartEmergency(lowBalance bool, script Script) (*Session, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		return nil, ErrAlreadyActive
	}
	return o.startLocked(lowBalance, script), nil
}

// Supersede ends the live session, if any, and starts a new one in the same
// critical section. No step of the old session fires afterwards.
func (o *Orchestrator) Supersede(lowBalance bool, script Script) (*Session, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.endLocked(o.current, EndSuperseded)
	}
	return o.startLocked(lowBalance, script), nil
}

// Cancel ends the live session. It returns the ended session's final state,
// or false when nothing was active.
func (o *Orchestrator) Cancel() (SessionInfo, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		return SessionInfo{}, false
	}
	s := o.current
	o.endLocked(s, EndCancelled)
	return s.info, true
}

// Status reports whether a session is live.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		return StatusActive
	}
	return StatusInactive
}

// Current returns the live session, or nil.
func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Last returns the live session's state, or the most recently ended one.
// It reports false before the first session.
func (o *Orchestrator) Last() (SessionInfo, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		return o.current.info, true
	}
	if o.last != nil {
		return *o.last, true
	}
	return SessionInfo{}, false
}

func (o *Orchestrator) startLocked(lowBalance bool, script Script) *Session {
	phases := script.phases(lowBalance)

	total := 0
	for _, p := range phases {
		total += len(p.steps)
	}

	s := &Session{
		orch:  o,
		group: schedule.NewGroup(o.clock),
		done:  make(chan struct{}),
		info: SessionInfo{
			ID:             uuid.New(),
			Status:         StatusActive,
			LowBalanceMode: lowBalance,
			StartedAt:      o.clock.Now(),
			StepsTotal:     total,
		},
	}
	o.current = s

	o.logger.Info().
		Str("session_id", s.info.ID.String()).
		Bool("low_balance", lowBalance).
		Int("steps", total).
		Msg("emergency session started")
	o.publisher.Publish(events.Event{Type: events.SessionStarted, At: s.info.StartedAt, Data: s.info})

	for _, p := range phases {
		if p.offset == 0 {
			o.firePhaseLocked(s, p)
			continue
		}
		p := p
		s.group.AfterFunc(p.offset, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if o.current != s {
				return
			}
			o.firePhaseLocked(s, p)
		})
	}
	return s
}

func (o *Orchestrator) firePhaseLocked(s *Session, p phase) {
	for _, step := range p.steps {
		// An ending step earlier in this phase stops the rest.
		if o.current != s {
			return
		}
		if step.Notification != nil && o.notifications != nil {
			o.notifications.Push(step.Notification.Text, step.Notification.Severity)
		}
		if step.Update != nil && o.updates != nil {
			o.updates.Append(step.Update.Text, step.Update.Severity)
		}
		s.info.StepsFired++

		o.logger.Debug().
			Str("session_id", s.info.ID.String()).
			Dur("offset", p.offset).
			Int("step", s.info.StepsFired).
			Msg("timeline step fired")

		if step.Ends {
			o.endLocked(s, EndCompleted)
		}
	}
}

func (o *Orchestrator) endLocked(s *Session, reason EndReason) {
	pending := s.group.Cancel()

	now := o.clock.Now()
	s.info.Status = StatusInactive
	s.info.EndedAt = &now
	s.info.EndReason = reason
	close(s.done)

	info := s.info
	o.last = &info
	o.current = nil

	// A completed session leaves its notifications to expire on their own.
	cleared := 0
	if reason != EndCompleted && o.notifications != nil {
		cleared = o.notifications.Clear()
	}

	o.logger.Info().
		Str("session_id", s.info.ID.String()).
		Str("reason", string(reason)).
		Int("cancelled_timers", pending).
		Int("cleared_notifications", cleared).
		Msg("emergency session ended")
	o.publisher.Publish(events.Event{Type: events.SessionEnded, At: now, Data: info})
}
