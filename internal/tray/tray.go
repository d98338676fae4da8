// Package tray provides the system tray icon and menu.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"hyperkey/embedded"
	"hyperkey/internal/i18n"
	"hyperkey/internal/modifier"
	"hyperkey/internal/status"
)

// State is what the tray icon shows.
type State int

const (
	StateReady State = iota
	StateHeld
	StateDisabled
	StateFailed
	StateNoTrigger
)

// Next returns the state after e. Events that say nothing about the icon
// leave cur unchanged.
func Next(cur State, e status.Event) State {
	switch e.Kind {
	case status.TapInstallFailed:
		return StateFailed
	case status.TapInstalled, status.TapReenabled:
		if cur == StateFailed {
			return StateReady
		}
	case status.TapEnabled:
		if cur == StateDisabled {
			return StateReady
		}
	case status.TapDisabled:
		if cur != StateFailed {
			return StateDisabled
		}
	case status.SequenceActivated:
		if cur == StateReady {
			return StateHeld
		}
	case status.SequenceDeactivated:
		if cur == StateHeld {
			return StateReady
		}
	case status.UnknownKey:
		if cur != StateFailed && cur != StateDisabled {
			return StateNoTrigger
		}
	}
	return cur
}

// Callbacks holds the menu handlers.
type Callbacks struct {
	OnEnabledToggle       func() bool
	OnRetry               func()
	OnTriggerClick        func()
	OnModifierToggle      func(modifier.Modifier) bool
	OnModifiersClick      func()
	OnNotificationsToggle func() bool
	OnLanguageChange      func(i18n.Language)
	OnQuit                func()
}

// Initial is the menu state at start-up.
type Initial struct {
	Enabled       bool
	Modifiers     modifier.Set
	Notifications bool
}

// Tray manages the tray icon. It is a status.Sink: events update the icon
// without blocking the reporter.
type Tray struct {
	callbacks Callbacks
	initial   Initial

	mu      sync.Mutex
	state   State
	ready   bool
	changed chan struct{}

	status   *systray.MenuItem
	enabled  *systray.MenuItem
	retry    *systray.MenuItem
	trigger  *systray.MenuItem
	mods     *systray.MenuItem
	modItems map[modifier.Modifier]*systray.MenuItem
	modsPick *systray.MenuItem
	notifyOn *systray.MenuItem
	language *systray.MenuItem
	langs    map[i18n.Language]*systray.MenuItem
	quitBtn  *systray.MenuItem
}

// New creates a new Tray.
func New(callbacks Callbacks, initial Initial) *Tray {
	state := StateReady
	if !initial.Enabled {
		state = StateDisabled
	}
	return &Tray{
		callbacks: callbacks,
		initial:   initial,
		state:     state,
		changed:   make(chan struct{}, 1),
		modItems:  make(map[modifier.Modifier]*systray.MenuItem),
		langs:     make(map[i18n.Language]*systray.MenuItem),
	}
}

// Run starts the tray. It blocks until Quit.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.onReady()
		if onReady != nil {
			onReady()
		}
	}, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("")
	systray.SetTooltip(i18n.T("app_tooltip"))

	t.status = systray.AddMenuItem("", "")
	t.status.Disable()

	systray.AddSeparator()

	t.enabled = systray.AddMenuItemCheckbox(i18n.T("tray_enabled"), i18n.T("tray_enabled_hint"), t.initial.Enabled)
	t.retry = systray.AddMenuItem(i18n.T("tray_retry"), i18n.T("tray_retry_hint"))
	t.retry.Hide()

	systray.AddSeparator()

	t.trigger = systray.AddMenuItem(i18n.T("tray_trigger"), i18n.T("tray_trigger_hint"))
	t.mods = systray.AddMenuItem(i18n.T("tray_modifiers"), i18n.T("tray_modifiers_hint"))
	for _, m := range modifier.Order {
		item := t.mods.AddSubMenuItemCheckbox(i18n.T("mod_"+string(m)), "", t.initial.Modifiers.Has(m))
		t.modItems[m] = item
		go t.watchModifier(m, item)
	}
	t.modsPick = t.mods.AddSubMenuItem(i18n.T("tray_pick_mods"), i18n.T("tray_pick_mods_hint"))

	t.notifyOn = systray.AddMenuItemCheckbox(i18n.T("tray_notifications"), i18n.T("tray_notifications_hint"), t.initial.Notifications)

	t.language = systray.AddMenuItem(i18n.T("tray_language"), "")
	for _, lang := range i18n.AvailableLanguages() {
		item := t.language.AddSubMenuItemCheckbox(i18n.LanguageName(lang), "", lang == i18n.GetLanguage())
		t.langs[lang] = item
		go t.watchLanguage(lang, item)
	}

	systray.AddSeparator()

	t.quitBtn = systray.AddMenuItem(i18n.T("tray_quit"), i18n.T("tray_quit_hint"))

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()
	t.apply()

	go t.handleMenuEvents()
	go t.applyLoop()
}

func (t *Tray) handleMenuEvents() {
	for {
		select {
		case <-t.enabled.ClickedCh:
			if t.callbacks.OnEnabledToggle != nil {
				setChecked(t.enabled, t.callbacks.OnEnabledToggle())
			}

		case <-t.retry.ClickedCh:
			if t.callbacks.OnRetry != nil {
				t.callbacks.OnRetry()
			}

		case <-t.trigger.ClickedCh:
			if t.callbacks.OnTriggerClick != nil {
				t.callbacks.OnTriggerClick()
			}

		case <-t.modsPick.ClickedCh:
			if t.callbacks.OnModifiersClick != nil {
				t.callbacks.OnModifiersClick()
			}

		case <-t.notifyOn.ClickedCh:
			if t.callbacks.OnNotificationsToggle != nil {
				setChecked(t.notifyOn, t.callbacks.OnNotificationsToggle())
			}

		case <-t.quitBtn.ClickedCh:
			if t.callbacks.OnQuit != nil {
				t.callbacks.OnQuit()
			}
			systray.Quit()
			return
		}
	}
}

func (t *Tray) watchModifier(m modifier.Modifier, item *systray.MenuItem) {
	for range item.ClickedCh {
		if t.callbacks.OnModifierToggle != nil {
			setChecked(item, t.callbacks.OnModifierToggle(m))
		}
	}
}

func (t *Tray) watchLanguage(lang i18n.Language, item *systray.MenuItem) {
	for range item.ClickedCh {
		if t.callbacks.OnLanguageChange != nil {
			t.callbacks.OnLanguageChange(lang)
		}
		t.RefreshUI()
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// Report updates the icon for e.
func (t *Tray) Report(e status.Event) {
	t.mu.Lock()
	next := Next(t.state, e)
	if next == t.state {
		t.mu.Unlock()
		return
	}
	t.state = next
	t.mu.Unlock()
	t.signal()
}

// SetState sets the shown state directly.
func (t *Tray) SetState(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
	t.signal()
}

// State returns the shown state.
func (t *Tray) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetEnabledChecked syncs the Enabled checkbox after an outside change
// (hotkey, config reload).
func (t *Tray) SetEnabledChecked(on bool) {
	if t.enabled != nil {
		setChecked(t.enabled, on)
	}
}

// SetModifiersChecked syncs the modifier checkboxes.
func (t *Tray) SetModifiersChecked(set modifier.Set) {
	for m, item := range t.modItems {
		setChecked(item, set.Has(m))
	}
}

// SetNotificationsChecked syncs the Notifications checkbox.
func (t *Tray) SetNotificationsChecked(on bool) {
	if t.notifyOn != nil {
		setChecked(t.notifyOn, on)
	}
}

// signal wakes applyLoop; pending updates coalesce.
func (t *Tray) signal() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}

func (t *Tray) applyLoop() {
	for range t.changed {
		t.apply()
	}
}

func (t *Tray) apply() {
	t.mu.Lock()
	state, ready := t.state, t.ready
	t.mu.Unlock()
	if !ready {
		return
	}

	systray.SetIcon(icon(state))
	systray.SetTooltip(i18n.T("app_name") + " - " + statusText(state))
	t.status.SetTitle(statusText(state))
	if state == StateFailed {
		t.retry.Show()
	} else {
		t.retry.Hide()
	}
}

func icon(state State) []byte {
	switch state {
	case StateHeld:
		return embedded.IconHeld
	case StateDisabled, StateNoTrigger:
		return embedded.IconDisabled
	case StateFailed:
		return embedded.IconFailed
	}
	return embedded.IconReady
}

func statusText(state State) string {
	switch state {
	case StateHeld:
		return i18n.T("status_held")
	case StateDisabled:
		return i18n.T("status_disabled")
	case StateFailed:
		return i18n.T("status_failed")
	case StateNoTrigger:
		return i18n.T("status_no_trigger")
	}
	return i18n.T("status_ready")
}

func (t *Tray) onExit() {}

// Quit closes the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// RefreshUI re-reads every menu text in the current language.
func (t *Tray) RefreshUI() {
	t.mu.Lock()
	ready := t.ready
	t.mu.Unlock()
	if !ready {
		return
	}

	t.enabled.SetTitle(i18n.T("tray_enabled"))
	t.enabled.SetTooltip(i18n.T("tray_enabled_hint"))
	t.retry.SetTitle(i18n.T("tray_retry"))
	t.retry.SetTooltip(i18n.T("tray_retry_hint"))
	t.trigger.SetTitle(i18n.T("tray_trigger"))
	t.trigger.SetTooltip(i18n.T("tray_trigger_hint"))
	t.mods.SetTitle(i18n.T("tray_modifiers"))
	t.mods.SetTooltip(i18n.T("tray_modifiers_hint"))
	for m, item := range t.modItems {
		item.SetTitle(i18n.T("mod_" + string(m)))
	}
	t.modsPick.SetTitle(i18n.T("tray_pick_mods"))
	t.modsPick.SetTooltip(i18n.T("tray_pick_mods_hint"))
	t.notifyOn.SetTitle(i18n.T("tray_notifications"))
	t.notifyOn.SetTooltip(i18n.T("tray_notifications_hint"))
	t.language.SetTitle(i18n.T("tray_language"))
	for lang, item := range t.langs {
		setChecked(item, lang == i18n.GetLanguage())
	}
	t.quitBtn.SetTitle(i18n.T("tray_quit"))
	t.quitBtn.SetTooltip(i18n.T("tray_quit_hint"))

	t.apply()
}
