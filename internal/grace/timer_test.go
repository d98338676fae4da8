package grace

import (
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (f *fakeTimer) Stop() bool {
	if f.stopped || f.fired {
		return false
	}
	f.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, ft)
	return ft
}

// Advance fires every due timer, including ones that were stopped too late to
// matter, which models a Stop racing an expiry already in flight.
func (c *fakeClock) Advance(d time.Duration, includeStopped bool) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, ft := range c.timers {
		if ft.fired || ft.at > c.now {
			continue
		}
		if ft.stopped && !includeStopped {
			continue
		}
		ft.fired = true
		due = append(due, ft)
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, ft := range due {
		ft.f()
	}
}

// queue stands in for the dispatch loop.
type queue struct {
	tasks []func()
}

func (q *queue) post(fn func()) error {
	q.tasks = append(q.tasks, fn)
	return nil
}

func (q *queue) drain() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
}

func TestTimerFiresOnceAfterDelay(t *testing.T) {
	clock := &fakeClock{}
	q := &queue{}
	timer := NewTimer(clock, q.post)

	fired := 0
	timer.Start(1500*time.Millisecond, func() { fired++ })

	clock.Advance(time.Second, false)
	q.drain()
	if fired != 0 {
		t.Fatalf("timer fired early")
	}
	if !timer.Armed() {
		t.Fatalf("expected timer to be armed")
	}

	clock.Advance(time.Second, false)
	q.drain()
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if timer.Armed() {
		t.Fatalf("expected timer to be idle after expiry")
	}

	clock.Advance(5*time.Second, true)
	q.drain()
	if fired != 1 {
		t.Fatalf("timer fired more than once: %d", fired)
	}
}

func TestTimerCancelPreventsCallback(t *testing.T) {
	clock := &fakeClock{}
	q := &queue{}
	timer := NewTimer(clock, q.post)

	fired := false
	timer.Start(time.Second, func() { fired = true })
	timer.Cancel()

	clock.Advance(2*time.Second, true)
	q.drain()
	if fired {
		t.Fatalf("canceled timer fired")
	}
}

func TestTimerCancelAfterExpiryQueuedDropsCallback(t *testing.T) {
	clock := &fakeClock{}
	q := &queue{}
	timer := NewTimer(clock, q.post)

	fired := false
	timer.Start(time.Second, func() { fired = true })

	// Expiry reaches the queue, then the owner cancels before it runs.
	clock.Advance(2*time.Second, false)
	timer.Cancel()
	q.drain()

	if fired {
		t.Fatalf("expiry queued before Cancel must be dropped")
	}
}

func TestTimerRestartSupersedesPrevious(t *testing.T) {
	clock := &fakeClock{}
	q := &queue{}
	timer := NewTimer(clock, q.post)

	var calls []string
	timer.Start(time.Second, func() { calls = append(calls, "first") })
	clock.Advance(500*time.Millisecond, false)
	timer.Start(time.Second, func() { calls = append(calls, "second") })

	clock.Advance(3*time.Second, true)
	q.drain()

	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("calls = %v, want [second]", calls)
	}
}

func TestCancelIdleIsSafe(t *testing.T) {
	timer := NewTimer(&fakeClock{}, (&queue{}).post)
	timer.Cancel()
	timer.Cancel()
	if timer.Armed() {
		t.Fatalf("idle timer reports armed")
	}
}

func TestSystemClockFires(t *testing.T) {
	posted := make(chan func(), 1)
	timer := NewTimer(nil, func(fn func()) error {
		posted <- fn
		return nil
	})

	fired := false
	timer.Start(time.Millisecond, func() { fired = true })

	// The expiry runs here, on the goroutine that owns the timer.
	select {
	case fn := <-posted:
		fn()
	case <-time.After(time.Second):
		t.Fatalf("system clock timer did not fire")
	}
	if !fired {
		t.Fatalf("expiry callback did not run")
	}
	if timer.Armed() {
		t.Fatalf("timer still armed after expiry")
	}
}
