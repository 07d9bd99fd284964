package timeline_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/notify"
	"github.com/swasthyasetu/swasthyasetu/internal/schedule"
	"github.com/swasthyasetu/swasthyasetu/internal/timeline"
)

type harness struct {
	clock *schedule.Manual
	store *notify.Store
	feed  *notify.Feed
	orch  *timeline.Orchestrator
}

func newHarness(t *testing.T, publisher events.Publisher) *harness {
	t.Helper()
	clock := schedule.NewManual(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	// A long TTL keeps every emitted notification visible for assertions.
	store := notify.NewStore(notify.StoreConfig{Clock: clock, TTL: time.Hour, Logger: zerolog.Nop()})
	feed := notify.NewFeed(notify.FeedConfig{Clock: clock, Logger: zerolog.Nop()})
	orch := timeline.NewOrchestrator(timeline.Config{
		Clock:         clock,
		Notifications: store,
		Updates:       feed,
		Publisher:     publisher,
		Logger:        zerolog.Nop(),
	})
	return &harness{clock: clock, store: store, feed: feed, orch: orch}
}

func updateTexts(feed *notify.Feed) []string {
	entries := feed.List()
	out := make([]string, len(entries))
	// oldest first reads like the script
	for i, e := range entries {
		out[len(entries)-1-i] = e.Message
	}
	return out
}

func TestStartEmergency_OffsetZeroFiresImmediately(t *testing.T) {
	h := newHarness(t, nil)

	session, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)

	assert.Equal(t, timeline.StatusActive, h.orch.Status())
	assert.Equal(t, []string{"Emergency SOS activated - location shared"}, updateTexts(h.feed))

	notes := h.store.List()
	require.Len(t, notes, 1)
	assert.Equal(t, "SOS alert triggered", notes[0].Message)
	assert.Equal(t, notify.SeverityEmergency, notes[0].Severity)

	info := session.Info()
	assert.Equal(t, 1, info.StepsFired)
	assert.Equal(t, 9, info.StepsTotal)
	assert.False(t, info.LowBalanceMode)
}

func TestFullTimeline_MainPath(t *testing.T) {
	h := newHarness(t, nil)

	session, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{
		Hospital:   "Kaushalya Hospital",
		DonorCount: 2,
		BloodGroup: "O+",
	}))
	require.NoError(t, err)

	h.clock.Advance(34 * time.Second)
	assert.Equal(t, timeline.StatusActive, h.orch.Status())
	assert.Equal(t, 8, h.feed.Len())

	h.clock.Advance(time.Second)
	assert.Equal(t, timeline.StatusInactive, h.orch.Status())
	assert.Equal(t, 9, h.feed.Len())
	assert.Equal(t, 9, h.store.Len())
	assert.Equal(t, 0, h.clock.Pending()-h.store.PendingExpiries(), "no timeline timers left")

	updates := updateTexts(h.feed)
	assert.Equal(t, "Emergency SOS activated - location shared", updates[0])
	assert.Equal(t, "Patient being transferred to Kaushalya Hospital", updates[7])
	assert.Equal(t, "Emergency response completed successfully", updates[8])

	select {
	case <-session.Done():
	default:
		t.Fatal("session done channel not closed")
	}

	info, ok := h.orch.Last()
	require.True(t, ok)
	assert.Equal(t, timeline.EndCompleted, info.EndReason)
	assert.Equal(t, 9, info.StepsFired)
	require.NotNil(t, info.EndedAt)
	assert.Equal(t, 35*time.Second, info.EndedAt.Sub(info.StartedAt))
}

func TestFullTimeline_LowBalancePath(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.StartEmergency(true, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)

	// Low-balance steps at offset zero come first, in script order.
	assert.Equal(t, []string{
		"Emergency mode activated - free services enabled",
		"Low balance detected - using emergency SMS gateway",
		"Emergency SOS activated - location shared",
	}, updateTexts(h.feed))

	h.clock.Advance(2 * time.Second)
	updates := updateTexts(h.feed)
	require.Len(t, updates, 5)
	assert.Equal(t, "Family and emergency services alerted", updates[3])
	assert.Equal(t, "Nearest hospital contacted - ambulance dispatching", updates[4])

	h.clock.Advance(2 * time.Second)
	updates = updateTexts(h.feed)
	require.Len(t, updates, 7)
	assert.Equal(t, "Hospital emergency department informed", updates[5])
	assert.Equal(t, "Ambulance #MH02-AB-1234 en route", updates[6])

	h.clock.Advance(31 * time.Second)
	assert.Equal(t, timeline.StatusInactive, h.orch.Status())
	assert.Equal(t, 13, h.feed.Len())
	assert.Equal(t, 13, h.store.Len(), "completion keeps notifications until they expire")
}

func TestCancelBeforeSecondPhase(t *testing.T) {
	h := newHarness(t, nil)

	session, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)

	h.clock.Advance(1999 * time.Millisecond)
	info, ok := h.orch.Cancel()
	require.True(t, ok)
	assert.Equal(t, timeline.EndCancelled, info.EndReason)
	assert.Equal(t, session.ID(), info.ID)

	h.clock.Advance(time.Minute)

	assert.Equal(t, timeline.StatusInactive, h.orch.Status())
	assert.Equal(t, 1, h.feed.Len())
	assert.Equal(t, 1, session.Info().StepsFired)
}

func TestCancel_ClearsNotifications(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)
	h.clock.Advance(3 * time.Second)
	require.Equal(t, 2, h.store.Len())

	_, ok := h.orch.Cancel()
	require.True(t, ok)

	assert.Zero(t, h.store.Len())
	assert.Zero(t, h.store.PendingExpiries())
	assert.Zero(t, h.clock.Pending(), "no timer of any kind left armed")
}

func TestCompletion_KeepsNotificationsUntilExpiry(t *testing.T) {
	clock := schedule.NewManual(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	store := notify.NewStore(notify.StoreConfig{Clock: clock, TTL: 12 * time.Second, Logger: zerolog.Nop()})
	orch := timeline.NewOrchestrator(timeline.Config{Clock: clock, Notifications: store, Logger: zerolog.Nop()})

	_, err := orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)

	clock.Advance(35 * time.Second)
	require.Equal(t, timeline.StatusInactive, orch.Status())
	// Pushed at 25s and 35s; everything earlier has expired.
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 2, store.PendingExpiries())

	clock.Advance(12 * time.Second)
	assert.Zero(t, store.Len())
}

func TestCancel_NothingActive(t *testing.T) {
	h := newHarness(t, nil)

	_, ok := h.orch.Cancel()
	assert.False(t, ok)

	_, ok = h.orch.Last()
	assert.False(t, ok)
}

func TestStartEmergency_AlreadyActive(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)

	_, err = h.orch.StartEmergency(true, timeline.DefaultScript(timeline.Details{}))
	assert.ErrorIs(t, err, timeline.ErrAlreadyActive)
	assert.Equal(t, 1, h.feed.Len(), "rejected start must not emit anything")
}

func TestSupersede_CancelsPreviousSession(t *testing.T) {
	h := newHarness(t, nil)

	first, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{Hospital: "First Hospital"}))
	require.NoError(t, err)

	h.clock.Advance(5 * time.Second) // phases at 2s and 4s fired
	require.Equal(t, 3, h.feed.Len())

	second, err := h.orch.Supersede(false, timeline.DefaultScript(timeline.Details{Hospital: "Second Hospital"}))
	require.NoError(t, err)
	notes := h.store.List()
	require.Len(t, notes, 1)
	assert.Equal(t, "SOS alert triggered", notes[0].Message)
	assert.Equal(t, 1, h.store.PendingExpiries())
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, timeline.EndSuperseded, first.Info().EndReason)

	h.clock.Advance(time.Minute)

	for _, u := range updateTexts(h.feed) {
		assert.NotEqual(t, "Patient being transferred to First Hospital", u)
	}
	assert.Equal(t, 3+9, h.feed.Len())
	assert.Equal(t, 9, h.store.Len(), "only the new session's notifications remain")
	for _, n := range h.store.List() {
		assert.NotEqual(t, "Hospital notified: First Hospital", n.Message)
	}
	assert.Equal(t, 3, first.Info().StepsFired)
	assert.Equal(t, 9, second.Info().StepsFired)
	assert.Equal(t, timeline.StatusInactive, h.orch.Status())
}

func TestSupersede_WhenIdleJustStarts(t *testing.T) {
	h := newHarness(t, nil)

	s, err := h.orch.Supersede(true, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)
	assert.True(t, s.Info().LowBalanceMode)
	assert.Equal(t, 3, h.feed.Len())
}

func TestSession_AfterFuncCancelledWithSession(t *testing.T) {
	h := newHarness(t, nil)

	session, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)

	var ticks int
	var tick func()
	tick = func() {
		ticks++
		session.AfterFunc(100*time.Millisecond, tick)
	}
	require.True(t, session.AfterFunc(100*time.Millisecond, tick))

	h.clock.Advance(time.Second)
	assert.Equal(t, 10, ticks)

	h.orch.Cancel()
	h.clock.Advance(time.Second)
	assert.Equal(t, 10, ticks)
	assert.False(t, session.AfterFunc(time.Millisecond, tick))
}

func TestSession_AfterFuncStopsAtCompletion(t *testing.T) {
	h := newHarness(t, nil)

	session, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)

	fired := false
	session.AfterFunc(40*time.Second, func() { fired = true })

	h.clock.Advance(time.Minute)
	assert.False(t, fired)
}

func TestOrchestrator_PublishesSessionEvents(t *testing.T) {
	broker := events.NewBroker(8)
	ch, unsubscribe := broker.Subscribe("session")
	defer unsubscribe()

	h := newHarness(t, broker)
	_, err := h.orch.StartEmergency(false, timeline.DefaultScript(timeline.Details{}))
	require.NoError(t, err)
	h.orch.Cancel()

	started := <-ch
	assert.Equal(t, events.SessionStarted, started.Type)
	ended := <-ch
	assert.Equal(t, events.SessionEnded, ended.Type)
	info, ok := ended.Data.(timeline.SessionInfo)
	require.True(t, ok)
	assert.Equal(t, timeline.EndCancelled, info.EndReason)
}

func TestStartEmergency_InvalidScript(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.StartEmergency(false, nil)
	assert.ErrorIs(t, err, timeline.ErrInvalidScript)
	assert.Equal(t, timeline.StatusInactive, h.orch.Status())
}

func TestCustomScript_EndsAtOffsetZero(t *testing.T) {
	h := newHarness(t, nil)

	script := timeline.Script{
		{Offset: 0, Update: &timeline.Message{Text: "only", Severity: notify.SeverityInfo}, Ends: true},
	}
	session, err := h.orch.StartEmergency(false, script)
	require.NoError(t, err)

	assert.Equal(t, timeline.StatusInactive, h.orch.Status())
	assert.Equal(t, timeline.EndCompleted, session.Info().EndReason)
	assert.Equal(t, 0, h.clock.Pending())
}
