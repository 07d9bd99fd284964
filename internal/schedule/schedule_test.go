package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func TestManual_FiresInDeadlineThenRegistrationOrder(t *testing.T) {
	clock := NewManual(epoch)
	var order []string

	clock.AfterFunc(2*time.Second, func() { order = append(order, "b1") })
	clock.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	clock.AfterFunc(2*time.Second, func() { order = append(order, "b2") })
	clock.AfterFunc(5*time.Second, func() { order = append(order, "late") })

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b1", "b2"}, order)
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b1", "b2", "late"}, order)
	assert.Zero(t, clock.Pending())
}

func TestManual_CallbackSeesItsDeadline(t *testing.T) {
	clock := NewManual(epoch)
	var seen time.Time

	clock.AfterFunc(3*time.Second, func() { seen = clock.Now() })
	clock.Advance(10 * time.Second)

	assert.Equal(t, epoch.Add(3*time.Second), seen)
	assert.Equal(t, epoch.Add(10*time.Second), clock.Now())
}

func TestManual_TimersRegisteredDuringAdvance(t *testing.T) {
	clock := NewManual(epoch)
	var fired []time.Duration

	clock.AfterFunc(time.Second, func() {
		fired = append(fired, clock.Now().Sub(epoch))
		clock.AfterFunc(time.Second, func() {
			fired = append(fired, clock.Now().Sub(epoch))
		})
	})

	clock.Advance(5 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fired)
}

func TestManual_Stop(t *testing.T) {
	clock := NewManual(epoch)
	var called bool

	timer := clock.AfterFunc(time.Second, func() { called = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop must report false")

	clock.Advance(time.Minute)
	assert.False(t, called)

	fired := clock.AfterFunc(time.Second, func() {})
	clock.Advance(time.Second)
	assert.False(t, fired.Stop(), "stop after firing must report false")
}

func TestManual_ZeroDelayFiresOnAdvanceZero(t *testing.T) {
	clock := NewManual(epoch)
	var called bool

	clock.AfterFunc(-time.Second, func() { called = true })
	clock.Advance(0)
	assert.True(t, called)
}

func TestGroup_CancelStopsEverything(t *testing.T) {
	clock := NewManual(epoch)
	group := NewGroup(clock)
	var count atomic.Int32

	for i := 1; i <= 5; i++ {
		require.True(t, group.AfterFunc(time.Duration(i)*time.Second, func() { count.Add(1) }))
	}

	clock.Advance(2 * time.Second)
	assert.Equal(t, int32(2), count.Load())
	assert.Equal(t, 3, group.Pending())

	assert.Equal(t, 3, group.Cancel())
	assert.True(t, group.Cancelled())
	assert.Zero(t, group.Pending())
	assert.Zero(t, clock.Pending(), "cancel must stop the underlying timers")

	clock.Advance(time.Minute)
	assert.Equal(t, int32(2), count.Load())

	assert.False(t, group.AfterFunc(time.Second, func() { count.Add(1) }), "cancelled group must refuse new timers")
	assert.Zero(t, group.Cancel(), "second cancel is a no-op")
}

func TestGroup_CancelFromInsideCallback(t *testing.T) {
	clock := NewManual(epoch)
	group := NewGroup(clock)
	var later bool

	group.AfterFunc(time.Second, func() { group.Cancel() })
	group.AfterFunc(time.Second, func() { later = true })

	clock.Advance(time.Second)
	assert.False(t, later, "same-deadline callback registered after the canceller must not run")
}

func TestGroup_SystemClock(t *testing.T) {
	group := NewGroup(System())
	done := make(chan struct{})

	require.True(t, group.AfterFunc(time.Millisecond, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("system clock timer did not fire")
	}
}
