// Package inject posts modifier ramps and toggles Caps Lock through an
// OS-specific actuator. It makes no decisions of its own.
package inject

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"hyperkey/internal/modifier"
)

// DefaultStepDelay separates two posted flag events. Consumers sample modifier
// state per event; a faster burst can be coalesced and leave modifiers stuck.
const DefaultStepDelay = 5 * time.Millisecond

var (
	// ErrLockUnavailable means the input-state service could not be opened.
	ErrLockUnavailable = errors.New("caps lock service unavailable")
	// ErrLockRead means the current Caps Lock state could not be read.
	ErrLockRead = errors.New("caps lock state read failed")
	// ErrLockWrite means the new Caps Lock state could not be written.
	ErrLockWrite = errors.New("caps lock state write failed")
)

// Poster synthesizes a single "flags changed" event carrying flags.
type Poster interface {
	PostFlags(flags modifier.Flags) error
}

// LockHandle is an open connection to the OS input-state service.
type LockHandle interface {
	CapsLock() (bool, error)
	SetCapsLock(on bool) error
	Close() error
}

// LockService opens LockHandles.
type LockService interface {
	OpenLock() (LockHandle, error)
}

// Actuator is what an OS backend provides.
type Actuator interface {
	Poster
	LockService
}

// Injector turns ramps into posted events.
type Injector struct {
	poster    Poster
	locks     LockService
	stepDelay time.Duration
	sleep     func(time.Duration)
}

// Option customizes an Injector.
type Option func(*Injector)

// WithSleep replaces time.Sleep, for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(i *Injector) { i.sleep = sleep }
}

// New creates an injector on top of the given actuator.
func New(act Actuator, opts ...Option) *Injector {
	i := &Injector{
		poster:    act,
		locks:     act,
		stepDelay: DefaultStepDelay,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inject posts every step of the down ramp (keyDown) or the up ramp followed by
// an explicit all-clear. A failed step is logged and skipped; the returned
// error joins every step failure.
func (i *Injector) Inject(ramps modifier.Ramps, keyDown bool) error {
	ramp := ramps.Up
	if keyDown {
		ramp = ramps.Down
	}

	var errs []error
	for n, flags := range ramp {
		if err := i.poster.PostFlags(flags); err != nil {
			log.WithError(err).Warnf("inject: step %d (%s) failed", n, flags)
			errs = append(errs, fmt.Errorf("step %d (%s): %w", n, flags, err))
		}
		i.sleep(i.stepDelay)
	}

	if !keyDown {
		// The up ramp may have been rebuilt with a different tail; always end clear.
		if err := i.poster.PostFlags(modifier.None); err != nil {
			log.WithError(err).Warn("inject: final clear failed")
			errs = append(errs, fmt.Errorf("final clear: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ToggleCapsLock reads the Caps Lock state and writes back its negation.
// It returns the new state on success.
func (i *Injector) ToggleCapsLock() (bool, error) {
	h, err := i.locks.OpenLock()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			log.WithError(cerr).Debug("inject: closing caps lock handle")
		}
	}()

	on, err := h.CapsLock()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockRead, err)
	}
	if err := h.SetCapsLock(!on); err != nil {
		return on, fmt.Errorf("%w: %v", ErrLockWrite, err)
	}
	return !on, nil
}
