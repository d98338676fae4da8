// Package hyper is the Hyperkey state machine: it decides, event by event,
// whether the tap suppresses or passes a key, and drives modifier injection
// and the Caps Lock grace window from trigger-key transitions.
package hyper

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"hyperkey/internal/dispatch"
	"hyperkey/internal/grace"
	"hyperkey/internal/modifier"
	"hyperkey/internal/status"
	"hyperkey/internal/tap"
)

// DefaultGraceDelay is how long after pressing the trigger a release still
// toggles Caps Lock. Longer holds only drive the modifier sequence.
const DefaultGraceDelay = 1500 * time.Millisecond

// Actuator performs the side effects the machine decides on.
type Actuator interface {
	Inject(ramps modifier.Ramps, keyDown bool) error
	ToggleCapsLock() (bool, error)
}

// Options configures a Machine.
type Options struct {
	// Loop is the execution context that owns all machine state. Required.
	Loop *dispatch.Loop
	// Actuator injects ramps and toggles Caps Lock. Required.
	Actuator Actuator
	Status   status.Sink
	Clock    grace.Clock
	// GraceDelay defaults to DefaultGraceDelay.
	GraceDelay time.Duration
	// Modifiers is the initial enabled set; nil means all four.
	Modifiers modifier.Set
	// Disabled starts the machine in passthrough mode.
	Disabled bool
}

type eventID struct {
	keycode uint16
	kind    tap.Kind
	valid   bool
}

// Machine is the Hyperkey state machine. Every field below the loop is owned
// by the loop goroutine; public methods hop onto it.
type Machine struct {
	loop       *dispatch.Loop
	act        Actuator
	status     status.Sink
	timer      *grace.Timer
	graceDelay time.Duration

	enabled    bool
	trigger    uint16
	hasTrigger bool
	mods       modifier.Set
	flags      modifier.Flags
	ramps      modifier.Ramps
	active     bool
	graceReady bool
	last       eventID
}

// Snapshot is a copy of the machine state.
type Snapshot struct {
	Enabled    bool
	Trigger    uint16
	HasTrigger bool
	Modifiers  []modifier.Modifier
	Ramps      modifier.Ramps
	Active     bool
	GraceReady bool
}

// New creates a machine with no trigger key; it passes everything through
// until SetTrigger is called.
func New(opts Options) (*Machine, error) {
	if opts.Loop == nil {
		return nil, errors.New("hyper: loop is required")
	}
	if opts.Actuator == nil {
		return nil, errors.New("hyper: actuator is required")
	}
	if opts.Status == nil {
		opts.Status = status.Discard
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = DefaultGraceDelay
	}
	mods := opts.Modifiers
	if mods == nil {
		mods = modifier.All()
	}

	m := &Machine{
		loop:       opts.Loop,
		act:        opts.Actuator,
		status:     opts.Status,
		timer:      grace.NewTimer(opts.Clock, opts.Loop.Post),
		graceDelay: opts.GraceDelay,
		enabled:    !opts.Disabled,
	}
	m.setModifiers(mods)
	return m, nil
}

// Handle is the tap callback. It never fails: if the loop is gone or a step
// panics, the event passes through unchanged.
func (m *Machine) Handle(ev tap.Event) (tap.Event, bool) {
	out, pass := ev, true
	if err := m.loop.Call(func() { out, pass = m.handle(ev) }); err != nil {
		log.WithError(err).Debug("hyper: passing event through")
		return ev, true
	}
	return out, pass
}

func (m *Machine) handle(ev tap.Event) (tap.Event, bool) {
	if !m.enabled {
		return ev, true
	}

	isTrigger := m.hasTrigger && ev.Keycode == m.trigger
	if isTrigger {
		if m.last.valid && m.last.keycode == ev.Keycode && m.last.kind == ev.Kind {
			log.Debugf("hyper: dropping repeated %s of trigger %d", ev.Kind, ev.Keycode)
			return ev, false
		}
		switch ev.Kind {
		case tap.KeyDown:
			m.last = eventID{keycode: ev.Keycode, kind: ev.Kind, valid: true}
			m.triggerDown()
			return ev, false
		case tap.KeyUp:
			m.last = eventID{keycode: ev.Keycode, kind: ev.Kind, valid: true}
			m.triggerUp()
			return ev, false
		}
	}

	if ev.Kind == tap.KeyDown {
		// Typing while the trigger is held is a chord, not a tap.
		m.timer.Cancel()
		m.graceReady = false
	}
	if m.active {
		ev.Flags |= m.flags
	}
	return ev, true
}

func (m *Machine) triggerDown() {
	m.timer.Start(m.graceDelay, func() { m.graceReady = false })
	m.graceReady = true

	if m.active {
		return
	}
	m.inject(true)
	m.active = true
	m.report(status.SequenceActivated, m.flags.String(), nil)
}

func (m *Machine) triggerUp() {
	m.timer.Cancel()
	if m.graceReady {
		m.toggleCapsLock()
	}
	m.graceReady = false
	m.release()
}

// release drops the modifier sequence. It runs even when the down ramp or the
// Caps Lock toggle failed.
func (m *Machine) release() {
	m.active = false
	m.inject(false)
	m.report(status.SequenceDeactivated, "", nil)
}

func (m *Machine) inject(keyDown bool) {
	err := m.guard(func() error { return m.act.Inject(m.ramps, keyDown) })
	if err != nil {
		dir := "up"
		if keyDown {
			dir = "down"
		}
		m.report(status.InjectionFailed, dir+" ramp", err)
	}
}

func (m *Machine) toggleCapsLock() {
	m.report(status.CapsLockAttempted, "", nil)
	var on bool
	err := m.guard(func() error {
		var err error
		on, err = m.act.ToggleCapsLock()
		return err
	})
	if err != nil {
		m.report(status.CapsLockFailed, "", err)
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	m.report(status.CapsLockToggled, state, nil)
}

// guard turns an actuator panic into an error so key-up handling carries on.
func (m *Machine) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actuator panic: %v", r)
		}
	}()
	return fn()
}

func (m *Machine) report(kind status.Kind, detail string, err error) {
	m.status.Report(status.Event{Kind: kind, Detail: detail, Err: err})
}

func (m *Machine) setModifiers(set modifier.Set) {
	m.mods = modifier.NewSet(set.List()...)
	m.flags = m.mods.Flags()
	m.ramps = modifier.Build(m.mods)
}

// reset ends any press cycle in progress, releasing held modifiers.
func (m *Machine) reset() {
	m.timer.Cancel()
	m.graceReady = false
	m.last = eventID{}
	if m.active {
		m.release()
	}
}

// SetTrigger selects the keycode treated as the trigger.
func (m *Machine) SetTrigger(keycode uint16) error {
	return m.loop.Call(func() {
		if m.hasTrigger && m.trigger == keycode {
			return
		}
		m.reset()
		m.trigger = keycode
		m.hasTrigger = true
		log.Infof("hyper: trigger keycode %d", keycode)
	})
}

// ClearTrigger removes the trigger; the machine then passes everything through.
func (m *Machine) ClearTrigger() error {
	return m.loop.Call(func() {
		m.reset()
		m.hasTrigger = false
		m.trigger = 0
		log.Info("hyper: trigger cleared")
	})
}

// SetModifiers replaces the enabled set and rebuilds both ramps before the
// next event is handled.
func (m *Machine) SetModifiers(set modifier.Set) error {
	return m.loop.Call(func() {
		m.setModifiers(set)
		log.Infof("hyper: modifiers %s", m.flags)
	})
}

// SetEnabled switches suppression on or off. Disabling releases any held
// modifiers first; trigger and modifier configuration are kept.
func (m *Machine) SetEnabled(enabled bool) error {
	return m.loop.Call(func() {
		if m.enabled == enabled {
			return
		}
		if !enabled {
			m.reset()
		}
		m.enabled = enabled
		if enabled {
			m.report(status.TapEnabled, "", nil)
		} else {
			m.report(status.TapDisabled, "", nil)
		}
	})
}

// State returns a snapshot of the machine.
func (m *Machine) State() (Snapshot, error) {
	var s Snapshot
	err := m.loop.Call(func() {
		s = Snapshot{
			Enabled:    m.enabled,
			Trigger:    m.trigger,
			HasTrigger: m.hasTrigger,
			Modifiers:  m.mods.List(),
			Ramps:      m.ramps,
			Active:     m.active,
			GraceReady: m.graceReady,
		}
	})
	return s, err
}
