//go:build linux

package input

import (
	"os"
	"path/filepath"
	"testing"

	evdev "github.com/holoplot/go-evdev"

	"hyperkey/internal/modifier"
)

func TestModifierDiffPressesInOrder(t *testing.T) {
	all := modifier.All().Flags()
	got := modifierDiff(modifier.None, all)
	want := []evdev.EvCode{evdev.KEY_LEFTMETA, evdev.KEY_LEFTALT, evdev.KEY_LEFTCTRL, evdev.KEY_LEFTSHIFT}
	if len(got) != len(want) {
		t.Fatalf("got %d changes, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.code != want[i] || c.value != 1 {
			t.Fatalf("change %d = %+v, want press of %d", i, c, want[i])
		}
	}
}

func TestModifierDiffReleasesInReverse(t *testing.T) {
	held := modifier.FlagMeta | modifier.FlagAlt | modifier.FlagShift
	got := modifierDiff(held, modifier.FlagMeta)
	if len(got) != 2 {
		t.Fatalf("got %+v, want two releases", got)
	}
	if got[0].code != evdev.KEY_LEFTSHIFT || got[1].code != evdev.KEY_LEFTALT {
		t.Fatalf("releases out of order: %+v", got)
	}
	for _, c := range got {
		if c.value != 0 {
			t.Fatalf("expected release, got %+v", c)
		}
	}
}

func TestModifierDiffNoChange(t *testing.T) {
	if got := modifierDiff(modifier.FlagControl, modifier.FlagControl); len(got) != 0 {
		t.Fatalf("expected no changes, got %+v", got)
	}
}

func writeLED(t *testing.T, dir, name, value string) string {
	t.Helper()
	path := filepath.Join(dir, "leds", name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(path, "brightness")
	if err := os.WriteFile(file, []byte(value+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestCapsLockFromSysfsLED(t *testing.T) {
	root := t.TempDir()
	writeLED(t, root, "input3::capslock", "1")
	d := &linuxDevice{sysfsRoot: root}

	on, err := readLED(d.capsLockLEDs())
	if err != nil {
		t.Fatalf("readLED() error = %v", err)
	}
	if !on {
		t.Fatalf("expected caps lock on")
	}
}

func TestCapsLockOffAndMissing(t *testing.T) {
	root := t.TempDir()
	d := &linuxDevice{sysfsRoot: root}
	if _, err := readLED(d.capsLockLEDs()); err == nil {
		t.Fatalf("expected error without LEDs")
	}

	writeLED(t, root, "input7::capslock", "0")
	on, err := readLED(d.capsLockLEDs())
	if err != nil || on {
		t.Fatalf("readLED() = %v, %v; want off", on, err)
	}
}

func TestCapsLockSequenceLiftsHeldModifiers(t *testing.T) {
	held := modifier.All().Flags()
	groups := capsLockSequence(held, nil)
	if len(groups) != 4 {
		t.Fatalf("got %d groups, want release, caps down, caps up, restore: %+v", len(groups), groups)
	}

	release := groups[0]
	if len(release) != 4 {
		t.Fatalf("release group = %+v", release)
	}
	for _, c := range release {
		if c.value != 0 {
			t.Fatalf("first group must only release, got %+v", c)
		}
	}
	if release[0].code != evdev.KEY_LEFTSHIFT || release[3].code != evdev.KEY_LEFTMETA {
		t.Fatalf("releases out of order: %+v", release)
	}

	if c := groups[1]; len(c) != 1 || c[0].code != evdev.KEY_CAPSLOCK || c[0].value != 1 {
		t.Fatalf("caps down group = %+v", c)
	}
	if c := groups[2]; len(c) != 1 || c[0].code != evdev.KEY_CAPSLOCK || c[0].value != 0 {
		t.Fatalf("caps up group = %+v", c)
	}

	restore := groups[3]
	want := []evdev.EvCode{evdev.KEY_LEFTMETA, evdev.KEY_LEFTALT, evdev.KEY_LEFTCTRL, evdev.KEY_LEFTSHIFT}
	for i, c := range restore {
		if c.code != want[i] || c.value != 1 {
			t.Fatalf("restore %d = %+v, want press of %d", i, c, want[i])
		}
	}
}

func TestCapsLockSequenceWithoutModifiers(t *testing.T) {
	groups := capsLockSequence(modifier.None, nil)
	if len(groups) != 2 {
		t.Fatalf("expected a bare caps lock tap, got %+v", groups)
	}
}

func TestCapsLockSequenceKeepsPhysicalKeys(t *testing.T) {
	physical := map[evdev.EvCode]bool{evdev.KEY_LEFTSHIFT: true}
	groups := capsLockSequence(modifier.FlagShift|modifier.FlagControl, physical)
	for _, g := range groups {
		for _, c := range g {
			if c.code == evdev.KEY_LEFTSHIFT {
				t.Fatalf("a shift the user holds must not be touched: %+v", groups)
			}
		}
	}
}

func TestWithoutPhysicalSkipsHeldKeys(t *testing.T) {
	physical := map[evdev.EvCode]bool{evdev.KEY_LEFTSHIFT: true, evdev.KEY_LEFTALT: false}
	got := withoutPhysical(modifierDiff(modifier.All().Flags(), modifier.None), physical)
	if len(got) != 3 {
		t.Fatalf("got %+v, want every release except shift", got)
	}
	for _, c := range got {
		if c.code == evdev.KEY_LEFTSHIFT {
			t.Fatalf("shift release not dropped: %+v", got)
		}
	}
}

func TestTrackPhysicalModifiers(t *testing.T) {
	d := &linuxDevice{physical: make(map[evdev.EvCode]bool)}

	// Idle: modifier keys pass and are tracked.
	if !d.trackPhysical(evdev.EV_KEY, evdev.KEY_LEFTSHIFT, 1) || !d.physical[evdev.KEY_LEFTSHIFT] {
		t.Fatalf("idle shift press should forward and be tracked")
	}

	// While Hyperkey holds shift, the user's release stays on our side.
	d.held = modifier.FlagShift
	if d.trackPhysical(evdev.EV_KEY, evdev.KEY_LEFTSHIFT, 0) {
		t.Fatalf("release of a held modifier must not be forwarded")
	}
	if d.physical[evdev.KEY_LEFTSHIFT] {
		t.Fatalf("release not tracked")
	}

	if !d.trackPhysical(evdev.EV_KEY, evdev.KEY_A, 1) {
		t.Fatalf("ordinary keys always forward")
	}
	if !d.trackPhysical(evdev.EV_SYN, evdev.SYN_REPORT, 0) {
		t.Fatalf("sync events always forward")
	}
}

func TestClosedDeviceRefusesLock(t *testing.T) {
	d := &linuxDevice{physical: make(map[evdev.EvCode]bool)}
	if _, err := d.OpenLock(); err == nil {
		t.Fatalf("expected error from a closed device")
	}
	if err := d.PostFlags(modifier.FlagMeta); err == nil {
		t.Fatalf("expected error posting to a closed device")
	}
}
