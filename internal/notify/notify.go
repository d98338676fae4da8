// Package notify shows desktop notifications for Hyperkey failures.
package notify

import (
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	log "github.com/sirupsen/logrus"

	"hyperkey/internal/i18n"
	"hyperkey/internal/status"
)

const appName = "Hyperkey"

// Cooldown is the minimum gap between two notifications of the same kind.
const Cooldown = 30 * time.Second

// Notifier sends system notifications. It is a status.Sink that reacts to
// failure events only.
type Notifier struct {
	mu      sync.Mutex
	enabled bool
	last    map[status.Kind]time.Time
	now     func() time.Time
	send    func(title, message string) error
}

// New creates a new Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		last:    make(map[status.Kind]time.Time),
		now:     time.Now,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Report shows a notification for failure events. It never blocks the caller.
func (n *Notifier) Report(e status.Event) {
	if !e.Kind.Failure() {
		return
	}
	message := failureMessage(e.Kind)
	if e.Detail != "" {
		message += ": " + e.Detail
	}
	if !n.allow(e.Kind) {
		return
	}
	go n.notify(i18n.T("notify_error"), message)
}

// Error shows msg regardless of kind cooldowns.
func (n *Notifier) Error(msg string) {
	n.mu.Lock()
	enabled := n.enabled
	n.mu.Unlock()
	if enabled {
		go n.notify(i18n.T("notify_error"), msg)
	}
}

func (n *Notifier) allow(kind status.Kind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.enabled {
		return false
	}
	now := n.now()
	if last, ok := n.last[kind]; ok && now.Sub(last) < Cooldown {
		return false
	}
	n.last[kind] = now
	return true
}

func failureMessage(kind status.Kind) string {
	switch kind {
	case status.TapInstallFailed:
		return i18n.T("notify_tap_failed")
	case status.CapsLockFailed:
		return i18n.T("notify_caps_failed")
	case status.InjectionFailed:
		return i18n.T("notify_injection_failed")
	case status.UnknownKey:
		return i18n.T("notify_unknown_key")
	}
	return kind.String()
}

func (n *Notifier) notify(title, message string) {
	// Notification errors are not critical
	if err := n.send(appName+": "+title, message); err != nil {
		log.WithError(err).Debug("notify: failed to show notification")
	}
}
