// Package dispatch runs closures one at a time on a single goroutine.
//
// The Hyperkey state machine lives entirely on one Loop: tap callbacks, timer
// expiries and configuration pushes are all delivered through it, so the
// machine's fields never need a lock.
package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrStopped is returned when work is submitted to a loop that is not running.
var ErrStopped = errors.New("dispatch loop stopped")

const defaultQueue = 64

// Loop is a serial executor.
type Loop struct {
	tasks    chan func()
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a loop. Submitted work is queued until Run is called.
func New() *Loop {
	return &Loop{
		tasks:   make(chan func(), defaultQueue),
		stopped: make(chan struct{}),
	}
}

// Run executes queued work until ctx is canceled. It must be called at most once.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Errorf("dispatch: task panicked\n%s", debug.Stack())
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

// Post queues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.stopped:
		return ErrStopped
	}
}

// Call queues fn and blocks until it has run. Calling it from inside a task
// deadlocks; tasks already own the loop and may touch state directly.
func (l *Loop) Call(fn func()) error {
	done := make(chan struct{})
	err := l.Post(func() {
		defer close(done)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The task may have been queued behind the stop; it will never run.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}
