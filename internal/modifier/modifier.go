// Package modifier describes the four Hyperkey modifiers and builds the flag
// ramps injected when the trigger key goes down and up.
package modifier

import (
	"fmt"
	"strings"
)

// Modifier is one of the standard modifiers as named in the config file.
type Modifier string

const (
	Meta    Modifier = "meta" // Command / Super / Win
	Alt     Modifier = "alt"  // Option
	Control Modifier = "control"
	Shift   Modifier = "shift"
)

// Flags is a platform-neutral modifier flag set.
type Flags uint8

const (
	FlagShift Flags = 1 << iota
	FlagControl
	FlagAlt
	FlagMeta
)

// None is the empty flag set.
const None Flags = 0

// Order is the fixed order in which modifiers are pressed.
var Order = []Modifier{Meta, Alt, Control, Shift}

// Flag returns the flag bit of m, or None for an unknown modifier.
func (m Modifier) Flag() Flags {
	switch m {
	case Meta:
		return FlagMeta
	case Alt:
		return FlagAlt
	case Control:
		return FlagControl
	case Shift:
		return FlagShift
	}
	return None
}

// Parse accepts the config spelling of a modifier plus common aliases.
func Parse(s string) (Modifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "meta", "cmd", "command", "super", "win":
		return Meta, nil
	case "alt", "option", "opt":
		return Alt, nil
	case "control", "ctrl":
		return Control, nil
	case "shift":
		return Shift, nil
	}
	return "", fmt.Errorf("unknown modifier %q", s)
}

// Set is a subset of the four modifiers.
type Set map[Modifier]struct{}

// NewSet builds a set from a list; unknown modifiers are ignored.
func NewSet(mods ...Modifier) Set {
	s := make(Set, len(mods))
	for _, m := range mods {
		if m.Flag() == None {
			continue
		}
		s[m] = struct{}{}
	}
	return s
}

// All returns the set of all four modifiers.
func All() Set {
	return NewSet(Order...)
}

// Has reports whether m is in the set.
func (s Set) Has(m Modifier) bool {
	_, ok := s[m]
	return ok
}

// Flags returns the union of the flags of every modifier in the set.
func (s Set) Flags() Flags {
	var f Flags
	for m := range s {
		f |= m.Flag()
	}
	return f
}

// List returns the members in press order.
func (s Set) List() []Modifier {
	out := make([]Modifier, 0, len(s))
	for _, m := range Order {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// Contains reports whether every flag in other is also in f.
func (f Flags) Contains(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	if f == None {
		return "none"
	}
	parts := make([]string, 0, 4)
	for _, m := range Order {
		if f.Contains(m.Flag()) {
			parts = append(parts, string(m))
		}
	}
	return strings.Join(parts, "+")
}
