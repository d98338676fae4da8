// Package status carries fire-and-forget notifications from the Hyperkey core
// to whoever displays or logs them.
package status

import log "github.com/sirupsen/logrus"

// Kind identifies a status event.
type Kind int

const (
	TapInstalled Kind = iota
	TapInstallFailed
	TapEnabled
	TapDisabled
	TapReenabled
	SequenceActivated
	SequenceDeactivated
	InjectionFailed
	CapsLockAttempted
	CapsLockToggled
	CapsLockFailed
	UnknownKey
)

var kindNames = map[Kind]string{
	TapInstalled:        "tap installed",
	TapInstallFailed:    "tap installation failed",
	TapEnabled:          "tap enabled",
	TapDisabled:         "tap disabled",
	TapReenabled:        "tap re-enabled by watchdog",
	SequenceActivated:   "modifier sequence activated",
	SequenceDeactivated: "modifier sequence deactivated",
	InjectionFailed:     "modifier injection failed",
	CapsLockAttempted:   "caps lock toggle attempted",
	CapsLockToggled:     "caps lock toggled",
	CapsLockFailed:      "caps lock toggle failed",
	UnknownKey:          "unknown key configured",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown status"
}

// Failure reports whether the kind describes something going wrong.
func (k Kind) Failure() bool {
	switch k {
	case TapInstallFailed, InjectionFailed, CapsLockFailed, UnknownKey:
		return true
	}
	return false
}

// Event is one status notification.
type Event struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sink receives status events. Implementations must not block.
type Sink interface {
	Report(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Report calls f.
func (f SinkFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans events out to several sinks.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Report forwards e to every registered sink.
func (m *Multi) Report(e Event) {
	for _, s := range m.sinks {
		s.Report(e)
	}
}

// Logger writes every event to logrus: failures at warn, the rest at info,
// and the chatty per-press kinds at debug.
type Logger struct{}

// Report logs e.
func (Logger) Report(e Event) {
	entry := log.WithField("status", e.Kind.String())
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}
	switch {
	case e.Kind.Failure():
		entry.Warn(e.Detail)
	case e.Kind == SequenceActivated, e.Kind == SequenceDeactivated,
		e.Kind == CapsLockAttempted, e.Kind == CapsLockToggled:
		entry.Debug(e.Detail)
	default:
		entry.Info(e.Detail)
	}
}
