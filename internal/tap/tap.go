// Package tap attaches to the global keyboard event stream and hands every key
// event to a Handler, which may consume it or let it through modified.
package tap

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hyperkey/internal/keys"
	"hyperkey/internal/status"
)

var (
	// ErrPermission means the OS refused access to the event stream
	// (Accessibility/Input Monitoring on macOS, /dev/input or /dev/uinput on Linux).
	ErrPermission = errors.New("tap: permission denied")
	// ErrUnsupported is returned on platforms without a tap backend.
	ErrUnsupported = errors.New("tap: unsupported platform")
	// ErrNoDevices means no keyboard could be opened.
	ErrNoDevices = errors.New("tap: no keyboard devices")
)

// Output re-emits raw events that the tap lets through. It is needed where
// the tap grabs devices exclusively (Linux), so passed events would otherwise vanish.
type Output interface {
	WriteRaw(typ, code uint16, value int32) error
}

// Options configures Run.
type Options struct {
	Handler Handler
	Status  status.Sink
	// Device restricts the Linux tap to a single evdev path.
	Device string
	// Output receives passed events on Linux. Required there.
	Output Output
}

// Run installs the tap and blocks until ctx is canceled or the tap fails.
// A successful install is reported as status.TapInstalled before Run blocks.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		opts.Handler = Passthrough
	}
	if opts.Status == nil {
		opts.Status = status.Discard
	}
	return run(ctx, opts)
}

// Keycode returns the code the tap reports for k on this platform.
func Keycode(k keys.Key) (uint16, bool) {
	return keycode(k)
}

// safeHandle calls h and turns a panic into passthrough.
func safeHandle(h Handler, ev Event) (out Event, pass bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("tap: handler panic on %s %d: %v", ev.Kind, ev.Keycode, r)
			out, pass = ev, true
		}
	}()
	return h(ev)
}

func installFailed(sink status.Sink, err error) error {
	sink.Report(status.Event{Kind: status.TapInstallFailed, Err: err})
	return fmt.Errorf("install tap: %w", err)
}
