// Package input is the OS backend of the injector: it posts synthetic
// modifier events and reaches the Caps Lock state.
package input

import (
	"errors"

	"hyperkey/internal/inject"
)

// ErrUnsupported is returned on platforms without an input backend.
var ErrUnsupported = errors.New("input: unsupported platform")

// Device posts flag events and opens the Caps Lock service.
type Device interface {
	inject.Poster
	inject.LockService
	// Close releases held modifiers and frees OS resources.
	Close() error
}

// New creates the platform Device.
func New() (Device, error) {
	return newDevice()
}
