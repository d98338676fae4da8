// Package config holds the Hyperkey settings and persists them to a YAML file.
// Changes made through setters or picked up from disk are pushed to
// registered callbacks.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"hyperkey/internal/keys"
	"hyperkey/internal/modifier"
)

// EnvPath overrides the config file location.
const EnvPath = "HYPERKEY_CONFIG"

// ErrUnknownModifier is reported for modifier names outside the fixed four.
var ErrUnknownModifier = errors.New("unknown modifier")

// HotkeyConfig is a key combination such as ctrl+alt+f12.
type HotkeyConfig struct {
	Modifiers []modifier.Modifier
	Key       string
}

// IsZero reports whether no hotkey is configured.
func (h HotkeyConfig) IsZero() bool {
	return h.Key == ""
}

// String returns the combination in config spelling.
func (h HotkeyConfig) String() string {
	parts := make([]string, 0, len(h.Modifiers)+1)
	for _, m := range h.Modifiers {
		parts = append(parts, string(m))
	}
	if h.Key != "" {
		parts = append(parts, h.Key)
	}
	return strings.Join(parts, "+")
}

// ParseHotkey parses "ctrl+alt+f12". The last part is the key.
func ParseHotkey(s string) (HotkeyConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return HotkeyConfig{}, nil
	}
	parts := strings.Split(strings.ToLower(s), "+")
	hk := HotkeyConfig{Key: strings.TrimSpace(parts[len(parts)-1])}
	if hk.Key == "" {
		return HotkeyConfig{}, fmt.Errorf("hotkey %q has no key", s)
	}
	for _, p := range parts[:len(parts)-1] {
		m, err := modifier.Parse(p)
		if err != nil {
			return HotkeyConfig{}, fmt.Errorf("hotkey %q: %w", s, err)
		}
		hk.Modifiers = append(hk.Modifiers, m)
	}
	return hk, nil
}

// configData is the on-disk layout. Pointers tell a missing field from a zero one.
type configData struct {
	Enabled       *bool    `yaml:"enabled"`
	TriggerKey    *string  `yaml:"trigger_key"`
	Modifiers     []string `yaml:"modifiers"`
	Notifications *bool    `yaml:"notifications"`
	UILanguage    string   `yaml:"ui_language,omitempty"`
	LogLevel      string   `yaml:"log_level,omitempty"`
	ToggleHotkey  string   `yaml:"toggle_hotkey,omitempty"`
	Device        string   `yaml:"device,omitempty"`
}

type values struct {
	enabled       bool
	triggerKey    keys.Key
	modifiers     modifier.Set
	notifications bool
	uiLanguage    string
	logLevel      string
	toggleHotkey  HotkeyConfig
	device        string
}

func defaults() values {
	return values{
		enabled:       true,
		triggerKey:    keys.KeyCapsLock,
		modifiers:     modifier.All(),
		notifications: true,
		uiLanguage:    "en",
		logLevel:      "info",
	}
}

// Config holds the application settings.
type Config struct {
	mu   sync.RWMutex
	v    values
	path string

	onTriggerKeyChange func(keys.Key)
	onModifiersChange  func(modifier.Set)
	onEnabledChange    func(bool)
	onHotkeyChange     func(HotkeyConfig)
	onNotifications    func(bool)
	onUILanguage       func(string)
}

// DefaultPath returns $HYPERKEY_CONFIG or $UserConfigDir/hyperkey/config.yaml.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			log.WithError(err).Warn("config: no config directory, using temp dir")
			return filepath.Join(os.TempDir(), "hyperkey", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "hyperkey", "config.yaml")
}

// New loads the config at path, or DefaultPath when path is empty. A missing
// file is created with defaults; an unreadable one leaves defaults in place.
func New(path string) *Config {
	if path == "" {
		path = DefaultPath()
	}
	c := &Config{v: defaults(), path: path}

	v, err := c.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.save()
	case err != nil:
		log.WithError(err).Warnf("config: using defaults, cannot load %s", path)
	default:
		c.v = v
	}
	return c
}

// Path returns the config file location.
func (c *Config) Path() string {
	return c.path
}

// read parses the file on top of defaults.
func (c *Config) read() (values, error) {
	v := defaults()
	data, err := os.ReadFile(c.path)
	if err != nil {
		return v, err
	}
	var raw configData
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return v, fmt.Errorf("parse %s: %w", c.path, err)
	}

	if raw.Enabled != nil {
		v.enabled = *raw.Enabled
	}
	if raw.TriggerKey != nil {
		// Unknown names are kept; the app reports them once.
		k, _ := keys.Parse(*raw.TriggerKey)
		v.triggerKey = k
	}
	if raw.Modifiers != nil {
		mods, err := parseModifiers(raw.Modifiers)
		if err != nil {
			log.WithError(err).Warn("config: ignoring modifiers")
		}
		v.modifiers = mods
	}
	if raw.Notifications != nil {
		v.notifications = *raw.Notifications
	}
	if raw.UILanguage != "" {
		v.uiLanguage = raw.UILanguage
	}
	if raw.LogLevel != "" {
		v.logLevel = raw.LogLevel
	}
	if raw.ToggleHotkey != "" {
		hk, err := ParseHotkey(raw.ToggleHotkey)
		if err != nil {
			log.WithError(err).Warn("config: ignoring toggle hotkey")
		} else {
			v.toggleHotkey = hk
		}
	}
	v.device = raw.Device
	return v, nil
}

// parseModifiers keeps the known names and joins an error for each unknown one.
func parseModifiers(names []string) (modifier.Set, error) {
	var (
		mods []modifier.Modifier
		errs []error
	)
	for _, n := range names {
		m, err := modifier.Parse(n)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownModifier, n))
			continue
		}
		mods = append(mods, m)
	}
	return modifier.NewSet(mods...), errors.Join(errs...)
}

// save writes the file. Callers hold c.mu.
func (c *Config) save() {
	enabled := c.v.enabled
	notifications := c.v.notifications
	trigger := string(c.v.triggerKey)
	raw := configData{
		Enabled:       &enabled,
		TriggerKey:    &trigger,
		Modifiers:     []string{},
		Notifications: &notifications,
		UILanguage:    c.v.uiLanguage,
		LogLevel:      c.v.logLevel,
		ToggleHotkey:  c.v.toggleHotkey.String(),
		Device:        c.v.device,
	}
	for _, m := range c.v.modifiers.List() {
		raw.Modifiers = append(raw.Modifiers, string(m))
	}

	data, err := yaml.Marshal(&raw)
	if err != nil {
		log.WithError(err).Warn("config: marshal failed")
		return
	}
	if err := atomicWrite(c.path, data); err != nil {
		log.WithError(err).Warn("config: save failed")
	}
}

// atomicWrite writes through a temp file in the same directory and renames it
// into place, so readers never see a half-written file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Reload re-reads the file and fires callbacks for fields that changed.
func (c *Config) Reload() error {
	v, err := c.read()
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.v
	c.v = v
	onTrigger, onMods, onEnabled, onHotkey := c.onTriggerKeyChange, c.onModifiersChange, c.onEnabledChange, c.onHotkeyChange
	onNotifications, onUILanguage := c.onNotifications, c.onUILanguage
	c.mu.Unlock()

	if old.triggerKey != v.triggerKey && onTrigger != nil {
		onTrigger(v.triggerKey)
	}
	if !sameModifiers(old.modifiers, v.modifiers) && onMods != nil {
		onMods(cloneSet(v.modifiers))
	}
	if old.enabled != v.enabled && onEnabled != nil {
		onEnabled(v.enabled)
	}
	if old.toggleHotkey.String() != v.toggleHotkey.String() && onHotkey != nil {
		onHotkey(v.toggleHotkey)
	}
	if old.notifications != v.notifications && onNotifications != nil {
		onNotifications(v.notifications)
	}
	if old.uiLanguage != v.uiLanguage && onUILanguage != nil {
		onUILanguage(v.uiLanguage)
	}
	return nil
}

func sameModifiers(a, b modifier.Set) bool {
	return slices.Equal(a.List(), b.List())
}

func cloneSet(s modifier.Set) modifier.Set {
	return modifier.NewSet(s.List()...)
}

// Enabled reports whether the tap suppresses the trigger key.
func (c *Config) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.enabled
}

// SetEnabled switches Hyperkey on or off.
func (c *Config) SetEnabled(enabled bool) {
	c.mu.Lock()
	changed := c.v.enabled != enabled
	c.v.enabled = enabled
	c.save()
	callback := c.onEnabledChange
	c.mu.Unlock()

	if changed && callback != nil {
		callback(enabled)
	}
}

// ToggleEnabled flips Enabled and returns the new value.
func (c *Config) ToggleEnabled() bool {
	enabled := !c.Enabled()
	c.SetEnabled(enabled)
	return enabled
}

// TriggerKey returns the configured trigger, empty when unset.
func (c *Config) TriggerKey() keys.Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.triggerKey
}

// SetTriggerKey selects the trigger key; the empty key unsets it.
func (c *Config) SetTriggerKey(k keys.Key) {
	c.mu.Lock()
	changed := c.v.triggerKey != k
	c.v.triggerKey = k
	c.save()
	callback := c.onTriggerKeyChange
	c.mu.Unlock()

	if changed && callback != nil {
		callback(k)
	}
}

// Modifiers returns a copy of the enabled modifier set.
func (c *Config) Modifiers() modifier.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSet(c.v.modifiers)
}

// SetModifiers replaces the enabled modifier set.
func (c *Config) SetModifiers(set modifier.Set) {
	set = cloneSet(set)
	c.mu.Lock()
	changed := !sameModifiers(c.v.modifiers, set)
	c.v.modifiers = set
	c.save()
	callback := c.onModifiersChange
	c.mu.Unlock()

	if changed && callback != nil {
		callback(cloneSet(set))
	}
}

// ToggleModifier adds or removes m and returns whether it is now enabled.
func (c *Config) ToggleModifier(m modifier.Modifier) bool {
	set := c.Modifiers()
	on := !set.Has(m)
	if on {
		set[m] = struct{}{}
	} else {
		delete(set, m)
	}
	c.SetModifiers(set)
	return on
}

// NotificationsEnabled reports whether failure notifications are shown.
func (c *Config) NotificationsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.notifications
}

// SetNotifications turns notifications on or off.
func (c *Config) SetNotifications(enabled bool) {
	c.mu.Lock()
	changed := c.v.notifications != enabled
	c.v.notifications = enabled
	c.save()
	callback := c.onNotifications
	c.mu.Unlock()

	if changed && callback != nil {
		callback(enabled)
	}
}

// ToggleNotifications flips notifications and returns the new value.
func (c *Config) ToggleNotifications() bool {
	enabled := !c.NotificationsEnabled()
	c.SetNotifications(enabled)
	return enabled
}

// UILanguage returns the interface language.
func (c *Config) UILanguage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.uiLanguage
}

// SetUILanguage sets the interface language.
func (c *Config) SetUILanguage(lang string) {
	c.mu.Lock()
	changed := c.v.uiLanguage != lang
	c.v.uiLanguage = lang
	c.save()
	callback := c.onUILanguage
	c.mu.Unlock()

	if changed && callback != nil {
		callback(lang)
	}
}

// LogLevel returns the configured log level name.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.logLevel
}

// ToggleHotkey returns the hotkey that flips Enabled; IsZero when none.
func (c *Config) ToggleHotkey() HotkeyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.toggleHotkey
}

// Device returns the evdev path to intercept on Linux, empty for all keyboards.
func (c *Config) Device() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.device
}

// OnTriggerKeyChange registers the trigger key callback.
func (c *Config) OnTriggerKeyChange(fn func(keys.Key)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTriggerKeyChange = fn
}

// OnModifiersChange registers the modifier set callback.
func (c *Config) OnModifiersChange(fn func(modifier.Set)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onModifiersChange = fn
}

// OnEnabledChange registers the on/off callback.
func (c *Config) OnEnabledChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnabledChange = fn
}

// OnNotificationsChange registers the notifications callback.
func (c *Config) OnNotificationsChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotifications = fn
}

// OnUILanguageChange registers the interface language callback.
func (c *Config) OnUILanguageChange(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUILanguage = fn
}

// OnHotkeyChange registers the toggle hotkey callback.
func (c *Config) OnHotkeyChange(fn func(HotkeyConfig)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHotkeyChange = fn
}
