package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/facility"
	"github.com/swasthyasetu/swasthyasetu/internal/featureflags"
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
	"github.com/swasthyasetu/swasthyasetu/internal/schedule"
	"github.com/swasthyasetu/swasthyasetu/internal/timeline"
)

// RouteSelector picks the best route between two points.
type RouteSelector interface {
	SelectRoute(ctx context.Context, origin, destination geo.Coordinate) (*routing.Selection, error)
}

// RouteStatus tracks the background route lookup of a dispatch.
type RouteStatus string

const (
	RouteNone     RouteStatus = ""
	RoutePending  RouteStatus = "pending"
	RouteSelected RouteStatus = "selected"
	RouteFailed   RouteStatus = "failed"
	RouteSkipped  RouteStatus = "skipped"
)

// Position is one ambulance tracker sample.
type Position struct {
	SessionID uuid.UUID      `json:"sessionId"`
	Location  geo.Coordinate `json:"location"`
	Index     int            `json:"index"`
	Total     int            `json:"total"`
	At        time.Time      `json:"at"`
}

// RouteEvent is the payload of route.selected and route.failed events.
type RouteEvent struct {
	SessionID uuid.UUID          `json:"sessionId"`
	Selection *routing.Selection `json:"selection,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Snapshot is the state presentation renders.
type Snapshot struct {
	Status            timeline.Status                     `json:"status"`
	Session           *timeline.SessionInfo               `json:"session,omitempty"`
	Patient           geo.Coordinate                      `json:"patient"`
	Hospital          *facility.Match[facility.Hospital]  `json:"hospital,omitempty"`
	Volunteer         *facility.Match[facility.Volunteer] `json:"volunteer,omitempty"`
	Ambulance         *facility.Match[facility.Ambulance] `json:"ambulance,omitempty"`
	Donors            []facility.Match[facility.Donor]    `json:"donors,omitempty"`
	RouteStatus       RouteStatus                         `json:"routeStatus,omitempty"`
	Route             *routing.Selection                  `json:"route,omitempty"`
	RouteError        string                              `json:"routeError,omitempty"`
	AmbulancePosition *Position                           `json:"ambulancePosition,omitempty"`
	Warnings          []string                            `json:"warnings,omitempty"`
}

// TriggerRequest carries the options of an SOS press.
type TriggerRequest struct {
	// LowBalance overrides the balance-derived mode when set.
	LowBalance *bool

	// Supersede replaces a live session instead of failing.
	Supersede bool
}

// Config holds configuration for the dispatch engine.
type Config struct {
	Registry     *facility.Registry     // required
	Orchestrator *timeline.Orchestrator // required

	// Router selects the patient-to-hospital route. Nil disables the lookup.
	Router RouteSelector

	Flags     *featureflags.Service
	Publisher events.Publisher
	Metrics   *Metrics

	Profile             Profile
	LowBalanceThreshold float64       // default: 10
	DonorMatchLimit     int           // default: 2
	TrackInterval       time.Duration // default: 100ms

	// Clock stamps tracker positions (default: system clock).
	Clock schedule.Clock

	Logger zerolog.Logger
}

// Engine runs the emergency workflow for one patient.
type Engine struct {
	registry  *facility.Registry
	orch      *timeline.Orchestrator
	router    RouteSelector
	flags     *featureflags.Service
	publisher events.Publisher
	metrics   *Metrics
	profile   Profile
	threshold float64
	donors    int
	interval  time.Duration
	clock     schedule.Clock
	logger    zerolog.Logger

	mu    sync.Mutex
	state *dispatchState
}

// dispatchState is what the engine knows about the latest session.
type dispatchState struct {
	sessionID   uuid.UUID
	hospital    *facility.Match[facility.Hospital]
	volunteer   *facility.Match[facility.Volunteer]
	ambulance   *facility.Match[facility.Ambulance]
	donors      []facility.Match[facility.Donor]
	routeStatus RouteStatus
	route       *routing.Selection
	routeErr    string
	position    *Position
	warnings    []string
	details     timeline.Details
}

// NewEngine creates a dispatch engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, errors.New("dispatch: registry is required")
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("dispatch: orchestrator is required")
	}

	flags := cfg.Flags
	if flags == nil {
		flags = featureflags.NewService(featureflags.ServiceConfig{Logger: cfg.Logger})
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Discard
	}

	metrics := cfg.Metrics
	if metrics == nil {
		m, err := NewMetrics(nil)
		if err != nil {
			return nil, fmt.Errorf("dispatch metrics: %w", err)
		}
		metrics = m
	}

	profile := cfg.Profile
	if profile.Name == "" {
		profile = DefaultProfile()
	}

	threshold := cfg.LowBalanceThreshold
	if threshold <= 0 {
		threshold = DefaultLowBalanceThreshold
	}

	donors := cfg.DonorMatchLimit
	if donors <= 0 {
		donors = 2
	}

	interval := cfg.TrackInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	clock := cfg.Clock
	if clock == nil {
		clock = schedule.System()
	}

	return &Engine{
		registry:  cfg.Registry,
		orch:      cfg.Orchestrator,
		router:    cfg.Router,
		flags:     flags,
		publisher: publisher,
		metrics:   metrics,
		profile:   profile,
		threshold: threshold,
		donors:    donors,
		interval:  interval,
		clock:     clock,
		logger:    cfg.Logger,
	}, nil
}

// Profile returns the patient profile.
func (e *Engine) Profile() Profile { return e.profile }

// LowBalance reports the balance-derived mode for the patient.
func (e *Engine) LowBalance() bool { return e.profile.LowBalance(e.threshold) }

// LowBalanceThreshold is the balance below which sessions take the
// low-balance path.
func (e *Engine) LowBalanceThreshold() float64 { return e.threshold }

// Registry returns the facility registry.
func (e *Engine) Registry() *facility.Registry { return e.registry }

// Trigger starts an emergency session. It looks up the nearest facilities,
// folds them into the script, starts the timeline and launches the route
// lookup in the background. It returns timeline.ErrAlreadyActive while a
// session is live unless req.Supersede is set.
func (e *Engine) Trigger(ctx context.Context, req TriggerRequest) (Snapshot, error) {
	if !req.Supersede && e.orch.Status() == timeline.StatusActive {
		return Snapshot{}, timeline.ErrAlreadyActive
	}

	lowBalance := e.resolveLowBalance(ctx, req.LowBalance)
	st := e.lookup(ctx)

	routeEnabled := e.router != nil && st.hospital != nil && !e.flags.RouteLookupDisabled(ctx)
	if routeEnabled {
		st.routeStatus = RoutePending
	} else {
		st.routeStatus = RouteSkipped
	}

	script := timeline.DefaultScript(st.details)

	var (
		session *timeline.Session
		err     error
	)
	if req.Supersede {
		session, err = e.orch.Supersede(lowBalance, script)
	} else {
		session, err = e.orch.StartEmergency(lowBalance, script)
	}
	if err != nil {
		return Snapshot{}, err
	}
	st.sessionID = session.ID()

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()

	e.metrics.SessionStarted(lowBalance)
	e.logger.Info().
		Str("session_id", session.ID().String()).
		Bool("low_balance", lowBalance).
		Strs("warnings", st.warnings).
		Msg("emergency dispatched")

	// The lookup outlives the request; it stops when the session ends.
	routeCtx, cancel := context.WithCancel(context.Background())
	go e.watch(session, cancel)
	if routeEnabled {
		go e.lookupRoute(routeCtx, session, st.hospital.Facility.Location)
	}

	return e.Snapshot(), nil
}

// Cancel ends the live session. It reports false when nothing was active.
func (e *Engine) Cancel() bool {
	_, ok := e.orch.Cancel()
	return ok
}

// Snapshot returns the current dispatch state.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Status:  timeline.StatusInactive,
		Patient: e.profile.Location,
	}
	if info, ok := e.orch.Last(); ok {
		snap.Status = info.Status
		snap.Session = &info
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	if st == nil {
		return snap
	}
	snap.Hospital = st.hospital
	snap.Volunteer = st.volunteer
	snap.Ambulance = st.ambulance
	snap.Donors = append([]facility.Match[facility.Donor](nil), st.donors...)
	snap.RouteStatus = st.routeStatus
	snap.Route = st.route
	snap.RouteError = st.routeErr
	if st.position != nil {
		p := *st.position
		snap.AmbulancePosition = &p
	}
	snap.Warnings = append([]string(nil), st.warnings...)
	return snap
}

func (e *Engine) resolveLowBalance(ctx context.Context, override *bool) bool {
	switch {
	case override != nil:
		return *override
	case e.flags.ForceLowBalanceMode(ctx):
		return true
	default:
		return e.LowBalance()
	}
}

// lookup runs the nearest-facility queries. An empty pool degrades the
// script text and is recorded as a warning.
func (e *Engine) lookup(ctx context.Context) *dispatchState {
	origin := e.profile.Location
	st := &dispatchState{}
	d := timeline.Details{BloodGroup: e.profile.BloodGroup}

	warn := func(err error) {
		e.logger.Warn().Err(err).Msg("facility lookup degraded")
		st.warnings = append(st.warnings, err.Error())
	}

	if m, err := e.registry.NearestHospital(origin); err != nil {
		warn(err)
	} else {
		st.hospital = &m
		d.Hospital = m.Facility.Name
	}

	if m, err := e.registry.NearestVolunteer(origin); err != nil {
		warn(err)
	} else {
		st.volunteer = &m
		d.Volunteer = m.Facility.Name
		d.VolunteerETA = m.Facility.ResponseTime
	}

	if m, err := e.registry.NearestAmbulance(origin); err != nil {
		warn(err)
	} else {
		st.ambulance = &m
		d.AmbulanceETA = m.Facility.ETA
		d.Ambulance = m.Facility.Name
		if m.Facility.Registration != "" {
			d.Ambulance = "Ambulance #" + m.Facility.Registration
		}
		if m.Fallback {
			st.warnings = append(st.warnings,
				fmt.Sprintf("no ambulance available; %s is %s", m.Facility.Name, m.Facility.Status))
		}
	}

	if e.flags.DonorMatchingDisabled(ctx) {
		st.warnings = append(st.warnings, "donor matching disabled")
	} else if matches, err := e.registry.MatchDonors(origin, e.profile.BloodGroup, e.donors); err != nil {
		warn(err)
	} else {
		st.donors = matches
		d.DonorCount = len(matches)
	}

	st.details = d
	return st
}

// watch releases the session's background work once it ends.
func (e *Engine) watch(session *timeline.Session, cancel context.CancelFunc) {
	<-session.Done()
	cancel()

	info := session.Info()
	e.metrics.SessionEnded(info.EndReason)
	e.logger.Debug().
		Str("session_id", info.ID.String()).
		Str("reason", string(info.EndReason)).
		Msg("dispatch released")
}

func (e *Engine) lookupRoute(ctx context.Context, session *timeline.Session, hospital geo.Coordinate) {
	start := time.Now()
	sel, err := e.router.SelectRoute(ctx, e.profile.Location, hospital)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	if st == nil || st.sessionID != session.ID() {
		e.metrics.RouteLookup("stale", elapsed)
		return
	}

	if err != nil && ctx.Err() != nil {
		// The session ended first; nobody is waiting for the route.
		e.metrics.RouteLookup("cancelled", elapsed)
		st.routeStatus = RouteSkipped
		return
	}

	if err != nil {
		outcome := "provider_error"
		switch {
		case errors.Is(err, routing.ErrNoRouteFound):
			outcome = "no_route"
		case errors.Is(err, routing.ErrInvalidCoordinates):
			outcome = "invalid"
		}
		e.metrics.RouteLookup(outcome, elapsed)

		st.routeStatus = RouteFailed
		st.routeErr = err.Error()
		e.logger.Warn().Err(err).Str("outcome", outcome).Msg("route lookup failed, timeline continues")
		e.publisher.Publish(events.Event{
			Type: events.RouteFailed,
			Data: RouteEvent{SessionID: session.ID(), Error: err.Error()},
		})
		return
	}

	e.metrics.RouteLookup("selected", elapsed)
	st.routeStatus = RouteSelected
	st.route = sel
	e.publisher.Publish(events.Event{
		Type: events.RouteSelected,
		Data: RouteEvent{SessionID: session.ID(), Selection: sel},
	})

	if e.flags.AmbulanceTrackingDisabled(ctx) {
		return
	}
	points := e.flags.AmbulanceTrackingPoints(ctx)
	e.startTracker(session, sel.Best.Geometry, points)
}
