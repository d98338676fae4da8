// Package keys is the catalog of keys that can act as the Hyperkey trigger.
//
// Every key carries the codes needed to address it on each platform: the HID
// keyboard usage (page 0x07) used for remapping, the macOS virtual keycode used
// by the event tap, and the Linux evdev code.
package keys

import (
	"sort"
	"strings"
)

// Key is a logical key identifier as stored in the config file.
type Key string

const (
	KeyCapsLock     Key = "caps_lock"
	KeyEscape       Key = "escape"
	KeyTab          Key = "tab"
	KeyReturn       Key = "return"
	KeyGrave        Key = "grave"
	KeySection      Key = "section"
	KeyRightCommand Key = "right_command"
	KeyRightOption  Key = "right_option"
	KeyRightControl Key = "right_control"
	KeyRightShift   Key = "right_shift"
	KeyF13          Key = "f13"
	KeyF14          Key = "f14"
	KeyF15          Key = "f15"
	KeyF16          Key = "f16"
	KeyF17          Key = "f17"
	KeyF18          Key = "f18"
	KeyF19          Key = "f19"
	KeyF20          Key = "f20"
)

// Entry holds the hardware codes of one catalog key.
type Entry struct {
	Key   Key
	Label string
	// Usage is the HID keyboard page usage ID. Zero means the key cannot be remapped.
	Usage uint16
	// MacKeycode is the Carbon virtual keycode (kVK_*).
	MacKeycode uint16
	// EvdevCode is the Linux input event code (KEY_*).
	EvdevCode uint16
}

// usagePageKeyboard is the HID usage page for keyboard keys.
const usagePageKeyboard = 0x07

var catalog = map[Key]Entry{
	KeyCapsLock:     {Key: KeyCapsLock, Label: "Caps Lock", Usage: 0x39, MacKeycode: 0x39, EvdevCode: 58},
	KeyEscape:       {Key: KeyEscape, Label: "Escape", Usage: 0x29, MacKeycode: 0x35, EvdevCode: 1},
	KeyTab:          {Key: KeyTab, Label: "Tab", Usage: 0x2B, MacKeycode: 0x30, EvdevCode: 15},
	KeyReturn:       {Key: KeyReturn, Label: "Return", Usage: 0x28, MacKeycode: 0x24, EvdevCode: 28},
	KeyGrave:        {Key: KeyGrave, Label: "` (Grave)", Usage: 0x35, MacKeycode: 0x32, EvdevCode: 41},
	KeySection:      {Key: KeySection, Label: "§ (Section)", Usage: 0x64, MacKeycode: 0x0A, EvdevCode: 86},
	KeyRightCommand: {Key: KeyRightCommand, Label: "Right Command", Usage: 0xE7, MacKeycode: 0x36, EvdevCode: 126},
	KeyRightOption:  {Key: KeyRightOption, Label: "Right Option", Usage: 0xE6, MacKeycode: 0x3D, EvdevCode: 100},
	KeyRightControl: {Key: KeyRightControl, Label: "Right Control", Usage: 0xE4, MacKeycode: 0x3E, EvdevCode: 97},
	KeyRightShift:   {Key: KeyRightShift, Label: "Right Shift", Usage: 0xE5, MacKeycode: 0x3C, EvdevCode: 54},
	KeyF13:          {Key: KeyF13, Label: "F13", Usage: 0x68, MacKeycode: 0x69, EvdevCode: 183},
	KeyF14:          {Key: KeyF14, Label: "F14", Usage: 0x69, MacKeycode: 0x6B, EvdevCode: 184},
	KeyF15:          {Key: KeyF15, Label: "F15", Usage: 0x6A, MacKeycode: 0x71, EvdevCode: 185},
	KeyF16:          {Key: KeyF16, Label: "F16", Usage: 0x6B, MacKeycode: 0x6A, EvdevCode: 186},
	KeyF17:          {Key: KeyF17, Label: "F17", Usage: 0x6C, MacKeycode: 0x40, EvdevCode: 187},
	KeyF18:          {Key: KeyF18, Label: "F18", Usage: 0x6D, MacKeycode: 0x4F, EvdevCode: 188},
	KeyF19:          {Key: KeyF19, Label: "F19", Usage: 0x6E, MacKeycode: 0x50, EvdevCode: 189},
	KeyF20:          {Key: KeyF20, Label: "F20", Usage: 0x6F, MacKeycode: 0x5A, EvdevCode: 190},
}

// Lookup returns the catalog entry for k.
func Lookup(k Key) (Entry, bool) {
	e, ok := catalog[k]
	return e, ok
}

// Parse normalizes a config string ("Caps Lock", "caps-lock", "CAPS_LOCK") into a Key.
// An empty string parses to the empty Key, meaning "no trigger".
func Parse(s string) (Key, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return "", true
	}
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	k := Key(norm)
	_, ok := catalog[k]
	return k, ok
}

// UsageCode returns the HID usage in the form hidutil expects: the usage page in
// the upper 32 bits, the usage ID in the lower ones (0x700000039 for Caps Lock).
func UsageCode(k Key) (uint64, bool) {
	e, ok := catalog[k]
	if !ok || e.Usage == 0 {
		return 0, false
	}
	return uint64(usagePageKeyboard)<<32 | uint64(e.Usage), true
}

// MacKeycode returns the macOS virtual keycode of k.
func MacKeycode(k Key) (uint16, bool) {
	e, ok := catalog[k]
	return e.MacKeycode, ok
}

// EvdevCode returns the Linux evdev code of k.
func EvdevCode(k Key) (uint16, bool) {
	e, ok := catalog[k]
	return e.EvdevCode, ok
}

// All returns the catalog sorted by label, for pickers.
func All() []Entry {
	out := make([]Entry, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Label < out[j].Label
	})
	return out
}

// String returns the display label, falling back to the raw identifier.
func (k Key) String() string {
	if e, ok := catalog[k]; ok {
		return e.Label
	}
	if k == "" {
		return "none"
	}
	return string(k)
}

// NativeModifier reports whether macOS delivers k as a flags-changed event
// instead of key-down/key-up. Such keys have to be remapped before they can act
// as the trigger.
func NativeModifier(k Key) bool {
	switch k {
	case KeyCapsLock, KeyRightCommand, KeyRightOption, KeyRightControl, KeyRightShift:
		return true
	}
	return false
}
