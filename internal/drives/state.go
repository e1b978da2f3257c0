package drives

import (
	"time"
)

// Tracker keeps the last known power state and activity of a single drive and decides
// whether it may be queried and whether it is due for spin down.
//
// Activity is counted in generations: every observed activity increments activityGen,
// issuing a spin down stores the current generation in requestedGen. A spin down is only
// ever requested once per generation.
type Tracker struct {
	id          string
	idleTimeout time.Duration
	standbySafe bool

	state PowerState
	// standbyConfirmed is true if the standby state was reported by the drive itself,
	// rather than assumed after issuing a spin down
	standbyConfirmed bool
	lastActivity     time.Time
	activityGen      uint64
	requestedGen     uint64

	lastCounters *IoCounters
}

// NewTracker creates a tracker for a drive in an unknown power state.
// An idleTimeout <= 0 disables spin down monitoring.
func NewTracker(id string, idleTimeout time.Duration, now time.Time) *Tracker {
	return &Tracker{
		id:           id,
		idleTimeout:  idleTimeout,
		state:        PowerStateUnknown,
		lastActivity: now,
		activityGen:  1,
		requestedGen: 0,
	}
}

// WithStandbySafeProbe marks the drive as being able to report its temperature while in standby
func (t *Tracker) WithStandbySafeProbe(standbySafe bool) *Tracker {
	t.standbySafe = standbySafe
	return t
}

func (t *Tracker) Id() string {
	return t.id
}

func (t *Tracker) State() PowerState {
	return t.state
}

func (t *Tracker) LastActivity() time.Time {
	return t.lastActivity
}

func (t *Tracker) SpinDownEnabled() bool {
	return t.idleTimeout > 0
}

// SpinDownDeadline returns the point in time at which the drive becomes due for spin down,
// if spin down monitoring is enabled and the drive is not in standby.
func (t *Tracker) SpinDownDeadline() (time.Time, bool) {
	if !t.SpinDownEnabled() || t.state == PowerStateStandby {
		return time.Time{}, false
	}
	return t.lastActivity.Add(t.idleTimeout), true
}

// ShouldQuery reports whether the temperature of the drive may be read without spinning it up
func (t *Tracker) ShouldQuery() bool {
	return t.state != PowerStateStandby || t.standbySafe
}

// RecordQueryResult updates the tracker with a power state reported by the drive
func (t *Tracker) RecordQueryResult(now time.Time, state PowerState) {
	switch state {
	case PowerStateStandby:
		t.state = PowerStateStandby
		t.standbyConfirmed = true
	case PowerStateActive:
		if t.state == PowerStateStandby && t.standbyConfirmed {
			// woken up by someone else
			t.RecordActivity(now)
			return
		}
		// either it was never asleep, or a spin down we issued did not take effect
		t.state = PowerStateActive
		t.standbyConfirmed = false
	}
}

// RecordActivity records an observed access to the drive
func (t *Tracker) RecordActivity(now time.Time) {
	t.lastActivity = now
	t.activityGen++
	t.state = PowerStateActive
	t.standbyConfirmed = false
}

// ObserveIoCounters compares the given block device counters with the previous observation and
// records activity if they changed. Returns true if activity was recorded.
func (t *Tracker) ObserveIoCounters(now time.Time, counters IoCounters) bool {
	previous := t.lastCounters
	t.lastCounters = &counters
	if previous == nil || *previous == counters {
		return false
	}
	t.RecordActivity(now)
	return true
}

// DueForSpinDown reports whether the drive has been idle for at least the idle timeout
// and no spin down has been requested since the last activity.
func (t *Tracker) DueForSpinDown(now time.Time) bool {
	if !t.SpinDownEnabled() || t.state != PowerStateActive {
		return false
	}
	if t.requestedGen >= t.activityGen {
		return false
	}
	return now.Sub(t.lastActivity) >= t.idleTimeout
}

// MarkSpinDownIssued transitions the drive to standby after a successful spin down command
func (t *Tracker) MarkSpinDownIssued() {
	t.state = PowerStateStandby
	t.standbyConfirmed = false
	t.requestedGen = t.activityGen
}
