package drives

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newActiveTracker(idleTimeout time.Duration) *Tracker {
	tracker := NewTracker("sda", idleTimeout, t0)
	tracker.RecordQueryResult(t0, PowerStateActive)
	return tracker
}

func TestTracker_InitialState(t *testing.T) {
	// WHEN
	tracker := NewTracker("sda", time.Minute, t0)

	// THEN
	assert.Equal(t, "sda", tracker.Id())
	assert.Equal(t, PowerStateUnknown, tracker.State())
	assert.Equal(t, t0, tracker.LastActivity())
	assert.True(t, tracker.ShouldQuery())
	assert.False(t, tracker.DueForSpinDown(t0.Add(time.Hour)))
}

func TestTracker_DueForSpinDown_ExactlyAtIdleTimeout(t *testing.T) {
	// GIVEN
	interval := 20 * time.Second
	idleTimeout := 10 * time.Minute
	tracker := newActiveTracker(idleTimeout)

	// THEN
	assert.False(t, tracker.DueForSpinDown(t0.Add(idleTimeout-interval)))
	assert.True(t, tracker.DueForSpinDown(t0.Add(idleTimeout)))
}

func TestTracker_DueForSpinDown_Disabled(t *testing.T) {
	// GIVEN
	tracker := newActiveTracker(0)

	// THEN
	assert.False(t, tracker.SpinDownEnabled())
	assert.False(t, tracker.DueForSpinDown(t0.Add(24*time.Hour)))
	_, ok := tracker.SpinDownDeadline()
	assert.False(t, ok)
}

func TestTracker_SpinDownDeadline(t *testing.T) {
	// GIVEN
	tracker := newActiveTracker(5 * time.Minute)

	// WHEN
	deadline, ok := tracker.SpinDownDeadline()

	// THEN
	assert.True(t, ok)
	assert.Equal(t, t0.Add(5*time.Minute), deadline)
}

func TestTracker_SpinDownOnlyOncePerActivity(t *testing.T) {
	// GIVEN
	idleTimeout := time.Minute
	tracker := newActiveTracker(idleTimeout)
	now := t0.Add(idleTimeout)
	assert.True(t, tracker.DueForSpinDown(now))

	// WHEN
	tracker.MarkSpinDownIssued()

	// THEN
	assert.Equal(t, PowerStateStandby, tracker.State())
	assert.False(t, tracker.ShouldQuery())
	assert.False(t, tracker.DueForSpinDown(now.Add(time.Hour)))
	_, ok := tracker.SpinDownDeadline()
	assert.False(t, ok)
}

func TestTracker_SpinDownNotEffective_RollsBackWithoutRepeating(t *testing.T) {
	// GIVEN
	idleTimeout := time.Minute
	tracker := newActiveTracker(idleTimeout)
	now := t0.Add(idleTimeout)
	tracker.MarkSpinDownIssued()

	// WHEN
	tracker.RecordQueryResult(now.Add(20*time.Second), PowerStateActive)

	// THEN
	assert.Equal(t, PowerStateActive, tracker.State())
	assert.True(t, tracker.ShouldQuery())
	assert.Equal(t, t0, tracker.LastActivity())
	assert.False(t, tracker.DueForSpinDown(now.Add(time.Hour)))
}

func TestTracker_SpinDownAgainAfterActivity(t *testing.T) {
	// GIVEN
	idleTimeout := time.Minute
	tracker := newActiveTracker(idleTimeout)
	tracker.MarkSpinDownIssued()
	tracker.RecordQueryResult(t0.Add(2*time.Minute), PowerStateStandby)

	// WHEN
	wakeUp := t0.Add(10 * time.Minute)
	tracker.RecordQueryResult(wakeUp, PowerStateActive)

	// THEN
	assert.Equal(t, PowerStateActive, tracker.State())
	assert.Equal(t, wakeUp, tracker.LastActivity())
	assert.False(t, tracker.DueForSpinDown(wakeUp.Add(30*time.Second)))
	assert.True(t, tracker.DueForSpinDown(wakeUp.Add(idleTimeout)))
}

func TestTracker_UnknownQueryResultKeepsState(t *testing.T) {
	// GIVEN
	tracker := newActiveTracker(time.Minute)

	// WHEN
	tracker.RecordQueryResult(t0.Add(time.Second), PowerStateUnknown)

	// THEN
	assert.Equal(t, PowerStateActive, tracker.State())
}

func TestTracker_StandbySafeProbe(t *testing.T) {
	// GIVEN
	tracker := NewTracker("sda", time.Minute, t0).WithStandbySafeProbe(true)

	// WHEN
	tracker.RecordQueryResult(t0, PowerStateStandby)

	// THEN
	assert.Equal(t, PowerStateStandby, tracker.State())
	assert.True(t, tracker.ShouldQuery())
}

func TestTracker_ObserveIoCounters(t *testing.T) {
	// GIVEN
	tracker := newActiveTracker(time.Minute)

	// WHEN
	first := tracker.ObserveIoCounters(t0.Add(10*time.Second), IoCounters{Reads: 10, Writes: 5})
	unchanged := tracker.ObserveIoCounters(t0.Add(20*time.Second), IoCounters{Reads: 10, Writes: 5})

	// THEN
	assert.False(t, first)
	assert.False(t, unchanged)
	assert.Equal(t, t0, tracker.LastActivity())

	// WHEN
	changedAt := t0.Add(30 * time.Second)
	changed := tracker.ObserveIoCounters(changedAt, IoCounters{Reads: 10, Writes: 6})

	// THEN
	assert.True(t, changed)
	assert.Equal(t, changedAt, tracker.LastActivity())
}

func TestTracker_IoActivityWakesStandbyDrive(t *testing.T) {
	// GIVEN
	tracker := newActiveTracker(time.Minute)
	tracker.ObserveIoCounters(t0, IoCounters{Reads: 1})
	tracker.MarkSpinDownIssued()

	// WHEN
	now := t0.Add(5 * time.Minute)
	tracker.ObserveIoCounters(now, IoCounters{Reads: 2})

	// THEN
	assert.Equal(t, PowerStateActive, tracker.State())
	assert.True(t, tracker.DueForSpinDown(now.Add(time.Minute)))
}
