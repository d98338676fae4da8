//go:build darwin

package input

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework IOKit -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>
#include <IOKit/IOKitLib.h>
#include <IOKit/hidsystem/IOHIDLib.h>
#include <IOKit/hidsystem/IOHIDParameter.h>
#include <stdbool.h>
#include <stdint.h>

static int postFlags(uint64_t flags, int64_t marker) {
    CGEventRef event = CGEventCreate(NULL);
    if (event == NULL) {
        return -1;
    }
    CGEventSetType(event, kCGEventFlagsChanged);
    CGEventSetFlags(event, (CGEventFlags)flags);
    CGEventSetIntegerValueField(event, kCGEventSourceUserData, marker);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
    return 0;
}

static kern_return_t openHIDSystem(io_connect_t *conn) {
    io_service_t service = IOServiceGetMatchingService(MACH_PORT_NULL, IOServiceMatching(kIOHIDSystemClass));
    if (service == IO_OBJECT_NULL) {
        return KERN_FAILURE;
    }
    kern_return_t kr = IOServiceOpen(service, mach_task_self(), kIOHIDParamConnectType, conn);
    IOObjectRelease(service);
    return kr;
}

static kern_return_t getCapsLock(io_connect_t conn, bool *state) {
    return IOHIDGetModifierLockState(conn, kIOHIDCapsLockState, state);
}

static kern_return_t setCapsLock(io_connect_t conn, bool state) {
    return IOHIDSetModifierLockState(conn, kIOHIDCapsLockState, state);
}

static kern_return_t closeHIDSystem(io_connect_t conn) {
    return IOServiceClose(conn);
}
*/
import "C"

import (
	"errors"
	"fmt"

	"hyperkey/internal/inject"
	"hyperkey/internal/modifier"
	"hyperkey/internal/tap"
)

type darwinDevice struct{}

func newDevice() (Device, error) {
	return &darwinDevice{}, nil
}

// PostFlags posts one flags-changed event at the HID level, tagged so the
// tap does not merge flags into it.
func (d *darwinDevice) PostFlags(flags modifier.Flags) error {
	if C.postFlags(C.uint64_t(tap.CGFlags(flags)), C.int64_t(tap.SyntheticMarker)) != 0 {
		return errors.New("CGEventCreate returned NULL")
	}
	return nil
}

func (d *darwinDevice) OpenLock() (inject.LockHandle, error) {
	var conn C.io_connect_t
	if kr := C.openHIDSystem(&conn); kr != C.KERN_SUCCESS {
		return nil, fmt.Errorf("IOServiceOpen(IOHIDSystem): kern_return %d", int(kr))
	}
	return &hidLock{conn: conn}, nil
}

// Close drops every modifier the device may have left asserted.
func (d *darwinDevice) Close() error {
	return d.PostFlags(modifier.None)
}

type hidLock struct {
	conn C.io_connect_t
}

func (h *hidLock) CapsLock() (bool, error) {
	var state C.bool
	if kr := C.getCapsLock(h.conn, &state); kr != C.KERN_SUCCESS {
		return false, fmt.Errorf("IOHIDGetModifierLockState: kern_return %d", int(kr))
	}
	return bool(state), nil
}

func (h *hidLock) SetCapsLock(on bool) error {
	if kr := C.setCapsLock(h.conn, C.bool(on)); kr != C.KERN_SUCCESS {
		return fmt.Errorf("IOHIDSetModifierLockState: kern_return %d", int(kr))
	}
	return nil
}

func (h *hidLock) Close() error {
	if kr := C.closeHIDSystem(h.conn); kr != C.KERN_SUCCESS {
		return fmt.Errorf("IOServiceClose: kern_return %d", int(kr))
	}
	return nil
}
