package tap

import (
	"fmt"

	"hyperkey/internal/modifier"
)

// Kind is the type of a keyboard event seen by the tap.
type Kind int

const (
	KeyDown Kind = iota
	KeyUp
	FlagsChanged
)

func (k Kind) String() string {
	switch k {
	case KeyDown:
		return "key-down"
	case KeyUp:
		return "key-up"
	case FlagsChanged:
		return "flags-changed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is the platform-neutral view of one intercepted event.
type Event struct {
	Keycode uint16
	Kind    Kind
	Flags   modifier.Flags
}

// Handler decides the fate of an event. It returns the (possibly modified)
// event and whether it should continue to the rest of the system.
type Handler func(Event) (Event, bool)

// Passthrough lets every event through untouched.
func Passthrough(ev Event) (Event, bool) {
	return ev, true
}
