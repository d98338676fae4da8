//go:build linux

package input

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	evdev "github.com/holoplot/go-evdev"
	log "github.com/sirupsen/logrus"

	"hyperkey/internal/inject"
	"hyperkey/internal/modifier"
	"hyperkey/internal/tap"
)

const sysfsRoot = "/sys/class"

// modifierKeys are the keys the virtual keyboard holds for each modifier.
var modifierKeys = map[modifier.Modifier]evdev.EvCode{
	modifier.Meta:    evdev.KEY_LEFTMETA,
	modifier.Alt:     evdev.KEY_LEFTALT,
	modifier.Control: evdev.KEY_LEFTCTRL,
	modifier.Shift:   evdev.KEY_LEFTSHIFT,
}

// keyModifiers maps a modifier key code back to its modifier.
var keyModifiers = func() map[evdev.EvCode]modifier.Modifier {
	out := make(map[evdev.EvCode]modifier.Modifier, len(modifierKeys))
	for m, code := range modifierKeys {
		out[code] = m
	}
	return out
}()

type keyChange struct {
	code  evdev.EvCode
	value int32
}

// modifierDiff lists the key presses and releases that move the held set
// from held to target, presses in press order, releases in reverse.
func modifierDiff(held, target modifier.Flags) []keyChange {
	var out []keyChange
	for i := len(modifier.Order) - 1; i >= 0; i-- {
		m := modifier.Order[i]
		if held.Contains(m.Flag()) && !target.Contains(m.Flag()) {
			out = append(out, keyChange{code: modifierKeys[m], value: 0})
		}
	}
	for _, m := range modifier.Order {
		if target.Contains(m.Flag()) && !held.Contains(m.Flag()) {
			out = append(out, keyChange{code: modifierKeys[m], value: 1})
		}
	}
	return out
}

// withoutPhysical drops changes to keys the user holds on a real keyboard:
// those keys are already down and must stay down until the user lets go.
func withoutPhysical(changes []keyChange, physical map[evdev.EvCode]bool) []keyChange {
	out := changes[:0:0]
	for _, c := range changes {
		if !physical[c.code] {
			out = append(out, c)
		}
	}
	return out
}

// capsLockSequence lists the key groups, each followed by a sync, that tap
// Caps Lock as a plain key: held modifiers are released first and pressed
// again afterwards.
func capsLockSequence(held modifier.Flags, physical map[evdev.EvCode]bool) [][]keyChange {
	var groups [][]keyChange
	if release := withoutPhysical(modifierDiff(held, modifier.None), physical); len(release) > 0 {
		groups = append(groups, release)
	}
	groups = append(groups,
		[]keyChange{{code: evdev.KEY_CAPSLOCK, value: 1}},
		[]keyChange{{code: evdev.KEY_CAPSLOCK, value: 0}},
	)
	if restore := withoutPhysical(modifierDiff(modifier.None, held), physical); len(restore) > 0 {
		groups = append(groups, restore)
	}
	return groups
}

// linuxDevice is a uinput keyboard. It carries the ramps, the Caps Lock taps,
// and everything the tap lets through from grabbed keyboards.
type linuxDevice struct {
	mu        sync.Mutex
	dev       *evdev.InputDevice
	held      modifier.Flags
	// physical tracks modifier keys down on grabbed keyboards.
	physical  map[evdev.EvCode]bool
	sysfsRoot string
}

func newDevice() (Device, error) {
	caps := map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keyboardCodes(),
		evdev.EV_MSC: {evdev.MSC_SCAN},
		evdev.EV_LED: {evdev.LED_NUML, evdev.LED_CAPSL, evdev.LED_SCROLLL},
	}
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1209,
		Product: 0x4859,
		Version: 1,
	}
	dev, err := evdev.CreateDevice(tap.VirtualDeviceName, id, caps)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: /dev/uinput", tap.ErrPermission)
		}
		return nil, fmt.Errorf("create uinput keyboard: %w", err)
	}
	log.WithField("path", dev.Path()).Info("input: virtual keyboard created")
	return &linuxDevice{dev: dev, physical: make(map[evdev.EvCode]bool), sysfsRoot: sysfsRoot}, nil
}

// keyboardCodes covers KEY_ESC through KEY_MICMUTE, the range of ordinary
// keyboard keys.
func keyboardCodes() []evdev.EvCode {
	codes := make([]evdev.EvCode, 0, int(evdev.KEY_MICMUTE))
	for c := evdev.EvCode(evdev.KEY_ESC); c <= evdev.KEY_MICMUTE; c++ {
		codes = append(codes, c)
	}
	return codes
}

var errClosed = errors.New("virtual keyboard closed")

func (d *linuxDevice) write(typ evdev.EvType, code evdev.EvCode, value int32) error {
	if d.dev == nil {
		return errClosed
	}
	ev := evdev.InputEvent{Type: typ, Code: code, Value: value}
	return d.dev.WriteOne(&ev)
}

func (d *linuxDevice) syn() error {
	return d.write(evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

// PostFlags presses and releases modifier keys until exactly flags are held.
func (d *linuxDevice) PostFlags(flags modifier.Flags) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.postLocked(flags)
}

func (d *linuxDevice) postLocked(flags modifier.Flags) error {
	for _, c := range withoutPhysical(modifierDiff(d.held, flags), d.physical) {
		if err := d.write(evdev.EV_KEY, c.code, c.value); err != nil {
			return fmt.Errorf("write key %d: %w", c.code, err)
		}
	}
	if err := d.syn(); err != nil {
		return fmt.Errorf("write sync: %w", err)
	}
	d.held = flags
	return nil
}

// WriteRaw re-emits an event from a grabbed keyboard. Modifier keys the
// virtual keyboard already holds are tracked but not forwarded, so a
// physical release cannot drop a held modifier.
func (d *linuxDevice) WriteRaw(typ, code uint16, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.trackPhysical(evdev.EvType(typ), evdev.EvCode(code), value) {
		return nil
	}
	return d.write(evdev.EvType(typ), evdev.EvCode(code), value)
}

// trackPhysical records modifier key state and reports whether the event
// should reach the virtual keyboard.
func (d *linuxDevice) trackPhysical(typ evdev.EvType, code evdev.EvCode, value int32) bool {
	if typ != evdev.EV_KEY {
		return true
	}
	m, ok := keyModifiers[code]
	if !ok {
		return true
	}
	d.physical[code] = value != 0
	return !d.held.Contains(m.Flag())
}

func (d *linuxDevice) OpenLock() (inject.LockHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil, errClosed
	}
	return &ledLock{dev: d}, nil
}

// Close releases held modifiers and destroys the uinput device.
func (d *linuxDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.postLocked(modifier.None)
	err = errors.Join(err, d.dev.Close())
	d.dev = nil
	return err
}

// tapCapsLock presses and releases Caps Lock on its own; the compositor
// flips the lock. Held modifiers are lifted around the tap so no chord is seen.
func (d *linuxDevice) tapCapsLock() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, group := range capsLockSequence(d.held, d.physical) {
		for _, c := range group {
			if err := d.write(evdev.EV_KEY, c.code, c.value); err != nil {
				return err
			}
		}
		if err := d.syn(); err != nil {
			return err
		}
	}
	return nil
}

// capsLockLEDs returns the brightness files of Caps Lock LEDs, the virtual
// keyboard's own first.
func (d *linuxDevice) capsLockLEDs() []string {
	d.mu.Lock()
	var path string
	if d.dev != nil {
		path = d.dev.Path()
	}
	d.mu.Unlock()

	var files []string
	if path != "" {
		event := filepath.Base(path)
		own, _ := filepath.Glob(filepath.Join(d.sysfsRoot, "input", event, "device", "*::capslock", "brightness"))
		files = append(files, own...)
	}
	all, _ := filepath.Glob(filepath.Join(d.sysfsRoot, "leds", "*::capslock", "brightness"))
	return append(files, all...)
}

// ledLock reads the lock state from sysfs LEDs. uinput devices get their LED
// state from the compositor, so the LED is the only place the state is visible.
type ledLock struct {
	dev *linuxDevice
}

func (l *ledLock) CapsLock() (bool, error) {
	return readLED(l.dev.capsLockLEDs())
}

func (l *ledLock) SetCapsLock(on bool) error {
	current, err := l.CapsLock()
	if err == nil && current == on {
		return nil
	}
	return l.dev.tapCapsLock()
}

func (l *ledLock) Close() error { return nil }

func readLED(files []string) (bool, error) {
	if len(files) == 0 {
		return false, errors.New("no caps lock LED in sysfs")
	}
	var lastErr error
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			lastErr = err
			continue
		}
		return strings.TrimSpace(string(data)) != "0", nil
	}
	return false, lastErr
}
