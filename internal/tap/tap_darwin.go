//go:build darwin

package tap

/*
#cgo darwin CFLAGS: -x objective-c
#cgo darwin LDFLAGS: -framework CoreGraphics -framework ApplicationServices -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

extern CGEventRef goTapEvent(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *userInfo);

static Boolean hkTrusted(void) {
	const void *keys[] = { kAXTrustedCheckOptionPrompt };
	const void *values[] = { kCFBooleanTrue };
	CFDictionaryRef options = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 1,
	                                             &kCFTypeDictionaryKeyCallBacks,
	                                             &kCFTypeDictionaryValueCallBacks);
	Boolean trusted = AXIsProcessTrustedWithOptions(options);
	CFRelease(options);
	return trusted;
}

static CFMachPortRef hkCreateTap(uintptr_t handle) {
	CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
	                   CGEventMaskBit(kCGEventKeyUp) |
	                   CGEventMaskBit(kCGEventFlagsChanged);
	return CGEventTapCreate(kCGSessionEventTap,
	                        kCGHeadInsertEventTap,
	                        kCGEventTapOptionDefault,
	                        mask,
	                        goTapEvent,
	                        (void *)handle);
}

static int hkTapValid(CFMachPortRef tap) {
	return tap != NULL;
}

static CFRunLoopSourceRef hkAttach(CFMachPortRef tap, CFRunLoopRef loop) {
	CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
	CFRunLoopAddSource(loop, source, kCFRunLoopCommonModes);
	CGEventTapEnable(tap, true);
	return source;
}

static void hkDetach(CFMachPortRef tap, CFRunLoopSourceRef source, CFRunLoopRef loop) {
	CGEventTapEnable(tap, false);
	CFRunLoopRemoveSource(loop, source, kCFRunLoopCommonModes);
	CFMachPortInvalidate(tap);
	CFRelease(source);
	CFRelease(tap);
}

static void hkEnable(CFMachPortRef tap) {
	CGEventTapEnable(tap, true);
}

static int64_t hkKeycode(CGEventRef event) {
	return CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
}

static int64_t hkUserData(CGEventRef event) {
	return CGEventGetIntegerValueField(event, kCGEventSourceUserData);
}

static uint64_t hkGetFlags(CGEventRef event) {
	return (uint64_t)CGEventGetFlags(event);
}

static void hkSetFlags(CGEventRef event, uint64_t flags) {
	CGEventSetFlags(event, (CGEventFlags)flags);
}

static CGEventRef hkConsume(void) {
	return NULL;
}
*/
import "C"

import (
	"context"
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	log "github.com/sirupsen/logrus"

	"hyperkey/internal/keys"
	"hyperkey/internal/status"
)

type darwinTap struct {
	handler Handler
	status  status.Sink
	port    C.CFMachPortRef
}

func keycode(k keys.Key) (uint16, bool) {
	return keys.MacKeycode(k)
}

func run(ctx context.Context, opts Options) error {
	if C.hkTrusted() == C.Boolean(0) {
		return installFailed(opts.Status, ErrPermission)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t := &darwinTap{handler: opts.Handler, status: opts.Status}
	handle := cgo.NewHandle(t)
	defer handle.Delete()

	port := C.hkCreateTap(C.uintptr_t(handle))
	if C.hkTapValid(port) == 0 {
		// CGEventTapCreate returns NULL without Input Monitoring access.
		return installFailed(opts.Status, ErrPermission)
	}
	t.port = port

	loop := C.CFRunLoopGetCurrent()
	source := C.hkAttach(port, loop)
	defer C.hkDetach(port, source, loop)

	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { C.CFRunLoopStop(loop) }) }
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	opts.Status.Report(status.Event{Kind: status.TapInstalled})
	log.Info("tap: event tap installed")

	C.CFRunLoopRun()
	return ctx.Err()
}

//export goTapEvent
func goTapEvent(_ C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, userInfo unsafe.Pointer) C.CGEventRef {
	t, ok := cgo.Handle(uintptr(userInfo)).Value().(*darwinTap)
	if !ok {
		return event
	}

	var kind Kind
	switch eventType {
	case C.kCGEventTapDisabledByTimeout, C.kCGEventTapDisabledByUserInput:
		// The OS turns the tap off if a callback runs too long.
		C.hkEnable(t.port)
		t.status.Report(status.Event{Kind: status.TapReenabled})
		return event
	case C.kCGEventKeyDown:
		kind = KeyDown
	case C.kCGEventKeyUp:
		kind = KeyUp
	case C.kCGEventFlagsChanged:
		kind = FlagsChanged
	default:
		return event
	}

	if int64(C.hkUserData(event)) == SyntheticMarker {
		return event
	}

	raw := uint64(C.hkGetFlags(event))
	in := Event{
		Keycode: uint16(C.hkKeycode(event)),
		Kind:    kind,
		Flags:   FromCGFlags(raw),
	}
	out, pass := safeHandle(t.handler, in)
	if !pass {
		return C.hkConsume()
	}
	if out.Flags != in.Flags {
		C.hkSetFlags(event, C.uint64_t(raw|CGFlags(out.Flags)))
	}
	return event
}
