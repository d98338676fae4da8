package notify

import (
	"strings"
	"testing"
	"time"

	"hyperkey/internal/status"
)

func newTestNotifier(enabled bool) (*Notifier, chan string, *time.Time) {
	sent := make(chan string, 8)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	n := New(enabled)
	n.now = func() time.Time { return now }
	n.send = func(title, message string) error {
		sent <- title + "|" + message
		return nil
	}
	return n, sent, &now
}

func expectSent(t *testing.T, sent chan string) string {
	t.Helper()
	select {
	case s := <-sent:
		return s
	case <-time.After(time.Second):
		t.Fatalf("expected a notification")
	}
	return ""
}

func expectNone(t *testing.T, sent chan string) {
	t.Helper()
	select {
	case s := <-sent:
		t.Fatalf("unexpected notification %q", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReportOnlyFailures(t *testing.T) {
	n, sent, _ := newTestNotifier(true)

	n.Report(status.Event{Kind: status.CapsLockToggled})
	expectNone(t, sent)

	n.Report(status.Event{Kind: status.CapsLockFailed, Detail: "write"})
	got := expectSent(t, sent)
	if !strings.HasPrefix(got, "Hyperkey: ") || !strings.Contains(got, "write") {
		t.Fatalf("unexpected notification %q", got)
	}
}

func TestCooldownPerKind(t *testing.T) {
	n, sent, now := newTestNotifier(true)

	n.Report(status.Event{Kind: status.InjectionFailed})
	expectSent(t, sent)
	n.Report(status.Event{Kind: status.InjectionFailed})
	expectNone(t, sent)

	n.Report(status.Event{Kind: status.TapInstallFailed})
	expectSent(t, sent)

	*now = now.Add(Cooldown + time.Second)
	n.Report(status.Event{Kind: status.InjectionFailed})
	expectSent(t, sent)
}

func TestDisabledIsSilent(t *testing.T) {
	n, sent, _ := newTestNotifier(false)
	n.Report(status.Event{Kind: status.TapInstallFailed})
	n.Error("boom")
	expectNone(t, sent)

	n.SetEnabled(true)
	n.Error("boom")
	expectSent(t, sent)
}
