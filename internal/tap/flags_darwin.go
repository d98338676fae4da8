//go:build darwin

package tap

import "hyperkey/internal/modifier"

// CGEventFlags device-independent modifier masks.
const (
	cgFlagShift     uint64 = 0x00020000
	cgFlagControl   uint64 = 0x00040000
	cgFlagAlternate uint64 = 0x00080000
	cgFlagCommand   uint64 = 0x00100000
)

// SyntheticMarker is stored in kCGEventSourceUserData of every event Hyperkey
// posts, so the tap lets its own ramps through untouched.
const SyntheticMarker int64 = 0x4859504b

// CGFlags converts modifier flags to a CGEventFlags mask.
func CGFlags(f modifier.Flags) uint64 {
	var out uint64
	if f.Contains(modifier.FlagShift) {
		out |= cgFlagShift
	}
	if f.Contains(modifier.FlagControl) {
		out |= cgFlagControl
	}
	if f.Contains(modifier.FlagAlt) {
		out |= cgFlagAlternate
	}
	if f.Contains(modifier.FlagMeta) {
		out |= cgFlagCommand
	}
	return out
}

// FromCGFlags extracts the four modifier bits from a CGEventFlags mask.
func FromCGFlags(cg uint64) modifier.Flags {
	var f modifier.Flags
	if cg&cgFlagShift != 0 {
		f |= modifier.FlagShift
	}
	if cg&cgFlagControl != 0 {
		f |= modifier.FlagControl
	}
	if cg&cgFlagAlternate != 0 {
		f |= modifier.FlagAlt
	}
	if cg&cgFlagCommand != 0 {
		f |= modifier.FlagMeta
	}
	return f
}
