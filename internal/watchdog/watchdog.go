// Package watchdog implements a restartable single-shot idle timer.
//
// A Watchdog is armed with a window; unless it is restarted or
// cancelled before the window elapses it delivers exactly one value on
// its Expired channel.  Restarting discards the pending expiry and
// opens a fresh window, so an owner that restarts on every unit of
// activity only sees an expiry after a full window of silence.
package watchdog

import (
	"sync"
	"time"

	"remoteserver/internal/clock"
)

// DefaultTimeout is the idle window used when none is configured.
const DefaultTimeout = 30 * time.Second

// Watchdog is safe for concurrent use.
type Watchdog struct {
	clock           clock.Clock
	defaultDuration time.Duration

	mu       sync.Mutex
	duration time.Duration
	deadline time.Time
	armed    bool
	gen      uint64 // bumped on every arm/cancel; stale callbacks compare against it
	timer    *clock.Timer
	expired  chan struct{}
}

// New returns a disarmed Watchdog.  A nil clock means the real clock;
// a non-positive defaultDuration means [DefaultTimeout].
func New(clk clock.Clock, defaultDuration time.Duration) *Watchdog {
	if clk == nil {
		clk = clock.Real()
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultTimeout
	}
	return &Watchdog{
		clock:           clk,
		defaultDuration: defaultDuration,
		expired:         make(chan struct{}, 1),
	}
}

// Expired delivers one value per window that elapsed without a
// Restart or Cancel.
func (w *Watchdog) Expired() <-chan struct{} { return w.expired }

// Arm schedules an expiry d from now, replacing any pending one.
// A non-positive d uses the default duration.
func (w *Watchdog) Arm(d time.Duration) {
	if d <= 0 {
		d = w.defaultDuration
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armLocked(d)
}

// Restart re-arms with the duration of the last Arm.  On a watchdog
// that was never armed it behaves like Arm with the default duration.
func (w *Watchdog) Restart() {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := w.duration
	if d <= 0 {
		d = w.defaultDuration
	}
	w.armLocked(d)
}

// Cancel disarms the watchdog.  No expiry is delivered after Cancel
// returns, including one that was already pending on the channel.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// Armed reports whether an expiry is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Deadline returns the instant the pending expiry fires at.  The bool
// is false when the watchdog is not armed.
func (w *Watchdog) Deadline() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deadline, w.armed
}

// Duration returns the window used by Restart.
func (w *Watchdog) Duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.duration <= 0 {
		return w.defaultDuration
	}
	return w.duration
}

func (w *Watchdog) armLocked(d time.Duration) {
	w.stopLocked()

	w.duration = d
	w.deadline = w.clock.Now().Add(d)
	w.armed = true
	gen := w.gen
	w.timer = w.clock.AfterFunc(d, func() { w.fire(gen) })
}

func (w *Watchdog) stopLocked() {
	w.gen++
	w.armed = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	select {
	case <-w.expired:
	default:
	}
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.armed || gen != w.gen {
		return
	}
	w.armed = false
	w.timer = nil
	select {
	case w.expired <- struct{}{}:
	default:
	}
}
