//go:build !darwin

package remap

import (
	"errors"

	"hyperkey/internal/keys"
)

// Grabbed evdev keyboards deliver every key as a plain key event.
func platformNeeds(keys.Key) bool {
	return false
}

var errUnsupported = errors.New("remap: not supported on this platform")

func platformGetter() ([]Mapping, error) {
	return nil, errUnsupported
}

func platformRunner(string) error {
	return errUnsupported
}
