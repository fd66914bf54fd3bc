package game

import "time"

const (
	// DriftWindow is how long local extrapolation is trusted without a server sync.
	DriftWindow = 5 * time.Second
	// LowWaterSeconds triggers a refresh near expiry so the next turn arrives promptly.
	LowWaterSeconds = 3
)

func (t TimerState) Sync(remaining int, running bool, at time.Time) TimerState {
	if remaining < 0 {
		remaining = 0
	}
	t.Remaining = remaining
	t.Running = running && !t.Paused
	t.LastSyncAt = at
	t.SyncSeq++
	return t
}

// Tick advances a running timer by one second. refresh is true when the
// local value is stale or close to expiry.
func (t TimerState) Tick(at time.Time) (next TimerState, refresh bool) {
	if !t.Running || t.Paused {
		return t, false
	}
	if t.Remaining > 0 {
		t.Remaining--
	}
	stale := !t.LastSyncAt.IsZero() && at.Sub(t.LastSyncAt) > DriftWindow
	return t, stale || t.Remaining <= LowWaterSeconds
}
