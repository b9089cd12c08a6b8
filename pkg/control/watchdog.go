package control

import "time"

// Watchdog tracks the time of the last velocity computation.
//
// It is only evaluated when a tick runs, so a render loop that stops
// completely also stops the watchdog. The bridge's CommandTimeout covers
// that case on the robot side.
type Watchdog struct {
	timeout time.Duration
	last    time.Time
}

// NewWatchdog creates a watchdog armed at start.
func NewWatchdog(timeout time.Duration, start time.Time) *Watchdog {
	return &Watchdog{timeout: timeout, last: start}
}

// Expired reports whether more than the timeout elapsed since the last refresh.
func (w *Watchdog) Expired(now time.Time) bool {
	return now.Sub(w.last) > w.timeout
}

// Refresh records a velocity computation at now.
func (w *Watchdog) Refresh(now time.Time) {
	w.last = now
}

// Last returns the time of the last refresh.
func (w *Watchdog) Last() time.Time {
	return w.last
}
