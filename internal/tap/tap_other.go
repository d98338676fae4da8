//go:build !darwin && !linux

package tap

import (
	"context"

	"hyperkey/internal/keys"
)

func keycode(keys.Key) (uint16, bool) {
	return 0, false
}

func run(_ context.Context, opts Options) error {
	return installFailed(opts.Status, ErrUnsupported)
}
