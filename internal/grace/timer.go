// Package grace provides the single-shot, cancelable timer that decides whether
// a trigger release still counts as a tap.
package grace

import "time"

// Stopper cancels a pending clock callback. It reports whether the call stopped it.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. time.AfterFunc semantics: f runs on its own goroutine.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Timer is a one-shot timer whose expiry callback is delivered through post,
// typically dispatch.Loop.Post, so it runs on the same goroutine as the code
// that starts and cancels the timer.
//
// Start and Cancel must be called from that goroutine. The generation counter
// is only read and written there, which makes a late expiry racing a Cancel
// harmless: the stale generation is detected and the callback is dropped.
type Timer struct {
	clock   Clock
	post    func(func()) error
	pending Stopper
	gen     uint64
}

// NewTimer creates an idle timer.
func NewTimer(clock Clock, post func(func()) error) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	return &Timer{clock: clock, post: post}
}

// Start cancels any armed timer and arms a new one that calls onExpire once after delay.
func (t *Timer) Start(delay time.Duration, onExpire func()) {
	t.Cancel()

	gen := t.gen
	t.pending = t.clock.AfterFunc(delay, func() {
		// Clock goroutine: only the immutable post func is used here.
		_ = t.post(func() {
			if t.gen != gen {
				return
			}
			t.gen++
			t.pending = nil
			onExpire()
		})
	})
}

// Cancel disarms the timer. It is safe to call when idle or after expiry.
func (t *Timer) Cancel() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// Armed reports whether an expiry is still pending.
func (t *Timer) Armed() bool {
	return t.pending != nil
}
