//go:build !darwin && !linux

package input

func newDevice() (Device, error) {
	return nil, ErrUnsupported
}
