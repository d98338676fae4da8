//go:build linux

package tap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	evdev "github.com/holoplot/go-evdev"
	log "github.com/sirupsen/logrus"

	"hyperkey/internal/keys"
	"hyperkey/internal/status"
)

// VirtualDeviceName is the name of the uinput keyboard Hyperkey writes to.
// Devices with this name are never grabbed.
const VirtualDeviceName = "hyperkey virtual keyboard"

func keycode(k keys.Key) (uint16, bool) {
	return keys.EvdevCode(k)
}

type linuxTap struct {
	handler Handler
	out     Output
	// mu keeps one device's key event and its forwarded copy together.
	mu sync.Mutex
}

func run(ctx context.Context, opts Options) error {
	if opts.Output == nil {
		return installFailed(opts.Status, errors.New("no output device"))
	}

	devices, err := openKeyboards(opts.Device)
	if err != nil {
		return installFailed(opts.Status, err)
	}

	grabbed := make([]*evdev.InputDevice, 0, len(devices))
	release := func() {
		for _, dev := range grabbed {
			_ = dev.Ungrab()
		}
		for _, dev := range devices {
			_ = dev.Close()
		}
	}
	for _, dev := range devices {
		if err := dev.Grab(); err != nil {
			release()
			return installFailed(opts.Status, fmt.Errorf("grab %s: %w", dev.Path(), err))
		}
		grabbed = append(grabbed, dev)
		name, _ := dev.Name()
		log.WithFields(log.Fields{"path": dev.Path(), "name": name}).Info("tap: grabbed keyboard")
	}

	t := &linuxTap{handler: opts.Handler, out: opts.Output}
	opts.Status.Report(status.Event{Kind: status.TapInstalled})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, dev := range devices {
		wg.Add(1)
		go func(dev *evdev.InputDevice) {
			defer wg.Done()
			t.readLoop(dev, stop)
		}(dev)
	}

	allGone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allGone)
	}()

	select {
	case <-ctx.Done():
		close(stop)
		<-allGone
		release()
		return ctx.Err()
	case <-allGone:
		release()
		return fmt.Errorf("tap: %w: every keyboard went away", ErrNoDevices)
	}
}

func (t *linuxTap) readLoop(dev *evdev.InputDevice, stop <-chan struct{}) {
	path := dev.Path()
	for {
		select {
		case <-stop:
			return
		default:
		}

		events, err := dev.ReadSlice(64)
		if err != nil {
			if isDeviceClosedError(err) {
				log.WithField("path", path).Warn("tap: keyboard removed")
				return
			}
			if isWouldBlockError(err) {
				if !sleepWithStop(stop, 5*time.Millisecond) {
					return
				}
				continue
			}
			log.WithError(err).WithField("path", path).Warn("tap: read failed")
			if !sleepWithStop(stop, 100*time.Millisecond) {
				return
			}
			continue
		}

		for i := range events {
			t.process(&events[i])
		}
	}
}

func (t *linuxTap) process(ev *evdev.InputEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case evdev.EV_KEY:
	case evdev.EV_SYN, evdev.EV_MSC:
		t.write(uint16(ev.Type), uint16(ev.Code), ev.Value)
		return
	default:
		return
	}

	kind := KeyDown
	if ev.Value == 0 {
		kind = KeyUp
	}
	in := Event{Keycode: uint16(ev.Code), Kind: kind}
	if _, pass := safeHandle(t.handler, in); !pass {
		return
	}
	// Held modifiers live on the output device, so the original event is
	// forwarded as is and arrives modified.
	t.write(uint16(ev.Type), uint16(ev.Code), ev.Value)
}

func (t *linuxTap) write(typ, code uint16, value int32) {
	if err := t.out.WriteRaw(typ, code, value); err != nil {
		log.WithError(err).Debugf("tap: forward %d/%d failed", typ, code)
	}
}

// openKeyboards opens path, or every physical keyboard when path is empty.
func openKeyboards(path string) ([]*evdev.InputDevice, error) {
	if path != "" {
		dev, err := openDevice(path)
		if err != nil {
			return nil, err
		}
		if len(dev.CapableEvents(evdev.EV_KEY)) == 0 {
			_ = dev.Close()
			return nil, fmt.Errorf("%s does not expose key events", path)
		}
		return []*evdev.InputDevice{dev}, nil
	}

	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	var (
		devices []*evdev.InputDevice
		denied  bool
	)
	for _, p := range paths {
		dev, err := openDevice(p.Path)
		if err != nil {
			if errors.Is(err, ErrPermission) {
				denied = true
			}
			continue
		}
		name := p.Name
		if actual, err := dev.Name(); err == nil && actual != "" {
			name = actual
		}
		if !isKeyboard(dev) || isVirtual(dev, name) {
			_ = dev.Close()
			continue
		}
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		if denied {
			return nil, ErrPermission
		}
		return nil, ErrNoDevices
	}
	return devices, nil
}

func openDevice(path string) (*evdev.InputDevice, error) {
	dev, err := evdev.OpenWithFlags(path, os.O_RDONLY)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermission, path)
		}
		return nil, err
	}
	if err := dev.NonBlock(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("set nonblocking mode for %s: %w", path, err)
	}
	return dev, nil
}

// isKeyboard requires key and repeat events plus a letter key, which rules
// out mice, power buttons and media remotes.
func isKeyboard(dev *evdev.InputDevice) bool {
	types := dev.CapableTypes()
	if !slices.Contains(types, evdev.EV_KEY) || !slices.Contains(types, evdev.EV_REP) {
		return false
	}
	return slices.Contains(dev.CapableEvents(evdev.EV_KEY), evdev.KEY_A)
}

func isVirtual(dev *evdev.InputDevice, name string) bool {
	if name == VirtualDeviceName {
		return true
	}
	id, err := dev.InputID()
	if err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	lower := strings.ToLower(name)
	for _, token := range []string{"uinput", "ydotool", "virtual"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func sleepWithStop(stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

func isDeviceClosedError(err error) bool {
	return errors.Is(err, syscall.EBADF) || errors.Is(err, syscall.ENODEV) || errors.Is(err, os.ErrClosed)
}

func isWouldBlockError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
