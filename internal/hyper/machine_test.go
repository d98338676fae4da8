package hyper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hyperkey/internal/dispatch"
	"hyperkey/internal/grace"
	"hyperkey/internal/modifier"
	"hyperkey/internal/status"
	"hyperkey/internal/tap"
)

const (
	triggerCode uint16 = 79 // F18
	keyA        uint16 = 0
)

type injectCall struct {
	keyDown bool
	ramp    modifier.Ramp
}

type fakeActuator struct {
	injects   []injectCall
	toggles   int
	injectErr error
	toggleErr error
	panicOn   string
}

func (f *fakeActuator) Inject(ramps modifier.Ramps, keyDown bool) error {
	if f.panicOn == "inject" && keyDown {
		panic("post failed hard")
	}
	ramp := ramps.Up
	if keyDown {
		ramp = ramps.Down
	}
	f.injects = append(f.injects, injectCall{keyDown: keyDown, ramp: append(modifier.Ramp(nil), ramp...)})
	if keyDown {
		return f.injectErr
	}
	return nil
}

func (f *fakeActuator) ToggleCapsLock() (bool, error) {
	if f.panicOn == "toggle" {
		panic("io service gone")
	}
	f.toggles++
	return f.toggles%2 == 1, f.toggleErr
}

func (f *fakeActuator) count(keyDown bool) int {
	n := 0
	for _, c := range f.injects {
		if c.keyDown == keyDown {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) grace.Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type recordedStatus struct {
	mu     sync.Mutex
	events []status.Event
}

func (r *recordedStatus) Report(e status.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordedStatus) has(k status.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == k {
			return true
		}
	}
	return false
}

type harness struct {
	m      *Machine
	act    *fakeActuator
	clock  *fakeClock
	status *recordedStatus
}

func newHarness(t *testing.T, mods modifier.Set) *harness {
	t.Helper()
	loop := dispatch.New()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	h := &harness{act: &fakeActuator{}, clock: &fakeClock{}, status: &recordedStatus{}}
	m, err := New(Options{
		Loop:      loop,
		Actuator:  h.act,
		Status:    h.status,
		Clock:     h.clock,
		Modifiers: mods,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.m = m
	return h
}

func (h *harness) send(t *testing.T, code uint16, kind tap.Kind) (tap.Event, bool) {
	t.Helper()
	return h.m.Handle(tap.Event{Keycode: code, Kind: kind})
}

func (h *harness) state(t *testing.T) Snapshot {
	t.Helper()
	s, err := h.m.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	return s
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Actuator: &fakeActuator{}}); err == nil {
		t.Fatalf("expected error without loop")
	}
	if _, err := New(Options{Loop: dispatch.New()}); err == nil {
		t.Fatalf("expected error without actuator")
	}
}

func TestScenarioQuickTapTogglesCapsLock(t *testing.T) {
	h := newHarness(t, modifier.All())
	if err := h.m.SetTrigger(triggerCode); err != nil {
		t.Fatalf("SetTrigger() error = %v", err)
	}

	if _, pass := h.send(t, triggerCode, tap.KeyDown); pass {
		t.Fatalf("trigger key-down must be consumed")
	}
	if !h.state(t).Active {
		t.Fatalf("expected sequence to be active after trigger down")
	}
	h.clock.Advance(500 * time.Millisecond)
	if _, pass := h.send(t, triggerCode, tap.KeyUp); pass {
		t.Fatalf("trigger key-up must be consumed")
	}

	if len(h.act.injects) != 2 {
		t.Fatalf("injects = %d, want 2", len(h.act.injects))
	}
	if down := h.act.injects[0]; !down.keyDown || len(down.ramp) != 4 {
		t.Fatalf("first inject = %+v, want 4-step down ramp", down)
	}
	if up := h.act.injects[1]; up.keyDown || len(up.ramp) != 5 || up.ramp.Last() != modifier.None {
		t.Fatalf("second inject = %+v, want 5-step up ramp ending empty", up)
	}
	if h.act.toggles != 1 {
		t.Fatalf("toggles = %d, want 1", h.act.toggles)
	}
	s := h.state(t)
	if s.Active || s.GraceReady {
		t.Fatalf("expected idle state after release, got %+v", s)
	}
	if !h.status.has(status.CapsLockToggled) {
		t.Fatalf("expected caps lock toggled status")
	}
}

func TestScenarioLongHoldSkipsCapsLock(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	h.clock.Advance(2 * time.Second)
	if h.state(t).GraceReady {
		t.Fatalf("grace window should have elapsed")
	}
	h.send(t, triggerCode, tap.KeyUp)

	if h.act.count(true) != 1 || h.act.count(false) != 1 {
		t.Fatalf("expected one down and one up ramp, got %+v", h.act.injects)
	}
	if h.act.toggles != 0 {
		t.Fatalf("toggles = %d, want 0", h.act.toggles)
	}
}

func TestScenarioChordSkipsCapsLockAndMergesFlags(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	out, pass := h.send(t, keyA, tap.KeyDown)
	if !pass {
		t.Fatalf("unrelated key must pass through")
	}
	want := modifier.FlagMeta | modifier.FlagAlt | modifier.FlagControl | modifier.FlagShift
	if out.Flags != want {
		t.Fatalf("A key-down flags = %v, want %v", out.Flags, want)
	}
	h.send(t, keyA, tap.KeyUp)
	h.send(t, triggerCode, tap.KeyUp)

	if h.act.count(true) != 1 || h.act.count(false) != 1 {
		t.Fatalf("expected one down and one up ramp, got %+v", h.act.injects)
	}
	if h.act.toggles != 0 {
		t.Fatalf("toggles = %d, want 0", h.act.toggles)
	}
}

func TestScenarioNoModifiersStillTogglesCapsLock(t *testing.T) {
	h := newHarness(t, modifier.NewSet())
	_ = h.m.SetTrigger(triggerCode)

	if _, pass := h.send(t, triggerCode, tap.KeyDown); pass {
		t.Fatalf("trigger must be consumed even without modifiers")
	}
	h.send(t, triggerCode, tap.KeyUp)

	if len(h.act.injects) != 2 {
		t.Fatalf("injects = %d, want 2", len(h.act.injects))
	}
	for _, c := range h.act.injects {
		if len(c.ramp) != 1 || c.ramp[0] != modifier.None {
			t.Fatalf("expected degenerate single empty ramp, got %v", c.ramp)
		}
	}
	if h.act.toggles != 1 {
		t.Fatalf("toggles = %d, want 1", h.act.toggles)
	}
}

func TestDuplicateTriggerEventsAreDropped(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	if _, pass := h.send(t, triggerCode, tap.KeyDown); pass {
		t.Fatalf("duplicate trigger down must be consumed")
	}
	if h.act.count(true) != 1 {
		t.Fatalf("down ramp injected %d times, want 1", h.act.count(true))
	}

	h.send(t, triggerCode, tap.KeyUp)
	h.send(t, triggerCode, tap.KeyUp)
	if h.act.count(false) != 1 {
		t.Fatalf("up ramp injected %d times, want 1", h.act.count(false))
	}
	if h.act.toggles != 1 {
		t.Fatalf("toggles = %d, want 1", h.act.toggles)
	}
}

func TestNextPressAfterReleaseIsNotADuplicate(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	for i := 0; i < 3; i++ {
		h.send(t, triggerCode, tap.KeyDown)
		h.send(t, triggerCode, tap.KeyUp)
	}
	if h.act.count(true) != 3 || h.act.count(false) != 3 {
		t.Fatalf("expected 3 full cycles, got %+v", h.act.injects)
	}
	if h.act.toggles != 3 {
		t.Fatalf("toggles = %d, want 3", h.act.toggles)
	}
}

func TestNoTriggerIsPurePassthrough(t *testing.T) {
	h := newHarness(t, modifier.All())

	for _, ev := range []tap.Event{
		{Keycode: triggerCode, Kind: tap.KeyDown},
		{Keycode: keyA, Kind: tap.KeyDown, Flags: modifier.FlagShift},
		{Keycode: 56, Kind: tap.FlagsChanged, Flags: modifier.FlagShift},
		{Keycode: triggerCode, Kind: tap.KeyUp},
	} {
		out, pass := h.m.Handle(ev)
		if !pass || out != ev {
			t.Fatalf("event %+v came back as %+v, pass=%v", ev, out, pass)
		}
	}
	if len(h.act.injects) != 0 || h.act.toggles != 0 {
		t.Fatalf("passthrough machine must not touch the actuator")
	}
}

func TestReleaseFiresEvenWhenDownRampFails(t *testing.T) {
	h := newHarness(t, modifier.All())
	h.act.injectErr = errors.New("partial ramp")
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	h.send(t, triggerCode, tap.KeyUp)

	if h.act.count(false) != 1 {
		t.Fatalf("up ramp injected %d times, want 1", h.act.count(false))
	}
	if !h.status.has(status.InjectionFailed) {
		t.Fatalf("expected injection failure to be reported")
	}
}

func TestReleaseFiresWhenCapsLockPanics(t *testing.T) {
	h := newHarness(t, modifier.All())
	h.act.panicOn = "toggle"
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	h.send(t, triggerCode, tap.KeyUp)

	if h.act.count(false) != 1 {
		t.Fatalf("up ramp injected %d times, want 1", h.act.count(false))
	}
	if !h.status.has(status.CapsLockFailed) {
		t.Fatalf("expected caps lock failure to be reported")
	}
	if h.state(t).Active {
		t.Fatalf("expected sequence to be released")
	}
}

func TestCapsLockErrorIsReported(t *testing.T) {
	h := newHarness(t, modifier.All())
	h.act.toggleErr = errors.New("write failed")
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	h.send(t, triggerCode, tap.KeyUp)

	if !h.status.has(status.CapsLockAttempted) || !h.status.has(status.CapsLockFailed) {
		t.Fatalf("expected attempted and failed status events")
	}
	if h.act.count(false) != 1 {
		t.Fatalf("up ramp must still be injected")
	}
}

func TestFlagsChangedDoesNotCancelGrace(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	out, pass := h.m.Handle(tap.Event{Keycode: 56, Kind: tap.FlagsChanged})
	if !pass || out.Flags == modifier.None {
		t.Fatalf("flags-changed must pass with merged flags, got %+v pass=%v", out, pass)
	}
	h.send(t, triggerCode, tap.KeyUp)
	if h.act.toggles != 1 {
		t.Fatalf("toggles = %d, want 1", h.act.toggles)
	}
}

func TestFlagsAreNotMergedWhenIdle(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	out, _ := h.send(t, keyA, tap.KeyDown)
	if out.Flags != modifier.None {
		t.Fatalf("idle machine merged flags %v", out.Flags)
	}
}

func TestSetModifiersRebuildsRamps(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)
	if err := h.m.SetModifiers(modifier.NewSet(modifier.Control)); err != nil {
		t.Fatalf("SetModifiers() error = %v", err)
	}

	h.send(t, triggerCode, tap.KeyDown)
	out, _ := h.send(t, keyA, tap.KeyDown)
	if out.Flags != modifier.FlagControl {
		t.Fatalf("merged flags = %v, want control", out.Flags)
	}
	h.send(t, triggerCode, tap.KeyUp)

	down := h.act.injects[0].ramp
	if len(down) != 2 || down.Last() != modifier.FlagControl {
		t.Fatalf("down ramp = %v, want [none control]", down)
	}
}

func TestDisableReleasesAndPassesThrough(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	if err := h.m.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if h.act.count(false) != 1 {
		t.Fatalf("disabling while active must release modifiers")
	}
	if !h.status.has(status.TapDisabled) {
		t.Fatalf("expected tap disabled status")
	}

	ev := tap.Event{Keycode: triggerCode, Kind: tap.KeyDown}
	if out, pass := h.m.Handle(ev); !pass || out != ev {
		t.Fatalf("disabled machine must pass trigger through")
	}

	s := h.state(t)
	if !s.HasTrigger || s.Trigger != triggerCode || len(s.Modifiers) != 4 {
		t.Fatalf("disabling must keep configuration, got %+v", s)
	}

	_ = h.m.SetEnabled(true)
	if !h.status.has(status.TapEnabled) {
		t.Fatalf("expected tap enabled status")
	}
	if _, pass := h.send(t, triggerCode, tap.KeyDown); pass {
		t.Fatalf("re-enabled machine must consume trigger")
	}
}

func TestChangingTriggerReleasesActiveSequence(t *testing.T) {
	h := newHarness(t, modifier.All())
	_ = h.m.SetTrigger(triggerCode)

	h.send(t, triggerCode, tap.KeyDown)
	_ = h.m.SetTrigger(80)
	if h.act.count(false) != 1 {
		t.Fatalf("changing trigger while held must release modifiers")
	}
	if _, pass := h.send(t, triggerCode, tap.KeyUp); !pass {
		t.Fatalf("old trigger must now pass through")
	}

	_ = h.m.ClearTrigger()
	if _, pass := h.send(t, 80, tap.KeyDown); !pass {
		t.Fatalf("cleared trigger must pass through")
	}
}

func TestHandleAfterLoopStopsPassesThrough(t *testing.T) {
	loop := dispatch.New()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	m, err := New(Options{Loop: loop, Actuator: &fakeActuator{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = m.SetTrigger(triggerCode)
	cancel()
	<-loop.Done()

	ev := tap.Event{Keycode: triggerCode, Kind: tap.KeyDown}
	if out, pass := m.Handle(ev); !pass || out != ev {
		t.Fatalf("stopped machine must pass events through")
	}
}
