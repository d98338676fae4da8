package modifier

// Ramp is an ordered, duplicate-free list of flag sets posted one after another.
type Ramp []Flags

// Ramps holds the two sequences derived from one enabled set.
type Ramps struct {
	// Down is cumulative: every element contains the previous one.
	Down Ramp
	// Up mirrors Down and ends with the empty set.
	Up Ramp
}

// Build computes the key-down and key-up ramps for the enabled modifiers.
//
// The down ramp is meta, meta+alt, meta+alt+control, meta+alt+control+shift,
// with disabled modifiers contributing nothing, so consecutive steps can be
// equal and collapse during deduplication. An empty set yields a single
// empty step in both ramps.
func Build(enabled Set) Ramps {
	var (
		m = enabled.contribution(Meta)
		a = enabled.contribution(Alt)
		c = enabled.contribution(Control)
		s = enabled.contribution(Shift)
	)

	down := Ramp{m, m | a, m | a | c, m | a | c | s}

	up := make(Ramp, 0, len(down)+1)
	for i := len(down) - 1; i >= 0; i-- {
		up = append(up, down[i])
	}
	up = append(up, None)

	return Ramps{Down: down.dedupe(), Up: up.dedupe()}
}

func (s Set) contribution(m Modifier) Flags {
	if s.Has(m) {
		return m.Flag()
	}
	return None
}

// dedupe drops any repeated flag set, keeping the first occurrence.
func (r Ramp) dedupe() Ramp {
	seen := make(map[Flags]struct{}, len(r))
	out := make(Ramp, 0, len(r))
	for _, f := range r {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Last returns the final element, or None for an empty ramp.
func (r Ramp) Last() Flags {
	if len(r) == 0 {
		return None
	}
	return r[len(r)-1]
}
