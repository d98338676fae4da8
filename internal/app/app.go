// Package app wires the Hyperkey components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"hyperkey/internal/config"
	"hyperkey/internal/dialog"
	"hyperkey/internal/dispatch"
	"hyperkey/internal/hotkey"
	"hyperkey/internal/hyper"
	"hyperkey/internal/i18n"
	"hyperkey/internal/inject"
	"hyperkey/internal/input"
	"hyperkey/internal/keys"
	"hyperkey/internal/modifier"
	"hyperkey/internal/notify"
	"hyperkey/internal/remap"
	"hyperkey/internal/status"
	"hyperkey/internal/tap"
	"hyperkey/internal/tray"
)

// errNoDevice is returned by the actuator before the OS backend is open.
var errNoDevice = errors.New("input device not open")

// Options configures the application.
type Options struct {
	// ConfigPath overrides config.DefaultPath.
	ConfigPath string
}

// App is the running application.
type App struct {
	config   *config.Config
	watcher  *config.Watcher
	loop     *dispatch.Loop
	machine  *hyper.Machine
	act      *actuator
	remapper *remap.Remapper
	notifier *notify.Notifier
	tray     *tray.Tray
	hotkey   *hotkey.Handler
	sink     *status.Multi

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	dev       input.Device
	installed bool
	tapCancel context.CancelFunc
	tapDone   chan struct{}
	closeOnce sync.Once
}

// New loads the configuration and builds every component. Nothing touches
// the keyboard until Run.
func New(opts Options) (*App, error) {
	cfg := config.New(opts.ConfigPath)
	ConfigureLogging(cfg.LogLevel())

	if uiLang := cfg.UILanguage(); uiLang != "" {
		i18n.SetLanguage(i18n.Language(uiLang))
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config:   cfg,
		loop:     dispatch.New(),
		act:      &actuator{},
		remapper: remap.New(),
		notifier: notify.New(cfg.NotificationsEnabled()),
		ctx:      ctx,
		cancel:   cancel,
	}
	go app.loop.Run(ctx)

	app.tray = tray.New(tray.Callbacks{
		OnEnabledToggle:       cfg.ToggleEnabled,
		OnRetry:               app.install,
		OnTriggerClick:        app.chooseTrigger,
		OnModifierToggle:      cfg.ToggleModifier,
		OnModifiersClick:      app.chooseModifiers,
		OnNotificationsToggle: cfg.ToggleNotifications,
		OnLanguageChange: func(lang i18n.Language) {
			cfg.SetUILanguage(string(lang))
		},
		OnQuit: app.Close,
	}, tray.Initial{
		Enabled:       cfg.Enabled(),
		Modifiers:     cfg.Modifiers(),
		Notifications: cfg.NotificationsEnabled(),
	})

	app.sink = status.NewMulti(status.Logger{}, app.notifier, app.tray, status.SinkFunc(app.track))

	machine, err := hyper.New(hyper.Options{
		Loop:      app.loop,
		Actuator:  app.act,
		Status:    app.sink,
		Modifiers: cfg.Modifiers(),
		Disabled:  !cfg.Enabled(),
	})
	if err != nil {
		cancel()
		return nil, err
	}
	app.machine = machine

	app.hotkey = hotkey.New(func() { cfg.ToggleEnabled() })

	cfg.OnEnabledChange(app.onEnabledChange)
	cfg.OnTriggerKeyChange(app.applyTrigger)
	cfg.OnModifiersChange(app.onModifiersChange)
	cfg.OnHotkeyChange(app.registerHotkey)
	cfg.OnNotificationsChange(app.onNotificationsChange)
	cfg.OnUILanguageChange(app.onUILanguageChange)

	return app, nil
}

// Run shows the tray and installs the tap. It blocks until Quit.
func (a *App) Run() {
	a.tray.Run(func() {
		a.applyTrigger(a.config.TriggerKey())
		a.registerHotkey(a.config.ToggleHotkey())

		w, err := config.Watch(a.config)
		if err != nil {
			log.WithError(err).Warn("app: config live reload unavailable")
		} else {
			a.mu.Lock()
			a.watcher = w
			a.mu.Unlock()
		}

		go a.install()
	})
}

// install (re)attaches to the keyboard. It is also the tray's retry action.
func (a *App) install() {
	a.stopTap()

	dev, err := a.device()
	if err != nil {
		a.sink.Report(status.Event{Kind: status.TapInstallFailed, Detail: "input device", Err: err})
		a.onInstallError(err)
		return
	}

	ctx, cancel := context.WithCancel(a.ctx)
	done := make(chan struct{})
	a.mu.Lock()
	a.tapCancel = cancel
	a.tapDone = done
	a.installed = false
	a.mu.Unlock()

	out, _ := dev.(tap.Output)
	go func() {
		defer close(done)
		err := tap.Run(ctx, tap.Options{
			Handler: a.machine.Handle,
			Status:  a.sink,
			Device:  a.config.Device(),
			Output:  out,
		})
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		a.mu.Lock()
		wasInstalled := a.installed
		a.installed = false
		a.mu.Unlock()
		if wasInstalled {
			// Installed taps end only when the OS takes the keyboard away.
			a.sink.Report(status.Event{Kind: status.TapInstallFailed, Detail: "tap stopped", Err: err})
		}
		a.onInstallError(err)
	}()
}

// device opens the OS input backend once.
func (a *App) device() (input.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dev != nil {
		return a.dev, nil
	}
	dev, err := input.New()
	if err != nil {
		return nil, err
	}
	a.dev = dev
	a.act.set(inject.New(dev))
	return dev, nil
}

func (a *App) onInstallError(err error) {
	log.WithError(err).Error("app: keyboard tap not installed")
	if errors.Is(err, tap.ErrPermission) || errors.Is(err, tap.ErrUnsupported) {
		go dialog.ShowPermissionHelp()
	}
}

// stopTap cancels a running tap and waits for it to let go of the keyboard.
func (a *App) stopTap() {
	a.mu.Lock()
	cancel, done := a.tapCancel, a.tapDone
	a.tapCancel, a.tapDone = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// track follows installation state for the retry logic.
func (a *App) track(e status.Event) {
	if e.Kind != status.TapInstalled {
		return
	}
	a.mu.Lock()
	a.installed = true
	a.mu.Unlock()
}

// applyTrigger resolves k to the keycode the tap matches and hands it to the
// machine. Unknown or empty names leave the machine without a trigger.
func (a *App) applyTrigger(k keys.Key) {
	code, err := resolveTrigger(k, a.remapper)
	switch {
	case err == nil:
		if err := a.machine.SetTrigger(code); err != nil {
			log.WithError(err).Warn("app: set trigger")
			return
		}
		if a.tray.State() == tray.StateNoTrigger {
			a.tray.SetState(a.readyState())
		}
	case errors.Is(err, errNoTrigger):
		_ = a.machine.ClearTrigger()
		a.tray.SetState(tray.StateNoTrigger)
	case errors.Is(err, errRemap):
		_ = a.machine.ClearTrigger()
		log.WithError(err).Error("app: trigger key not usable")
		a.notifier.Error(err.Error())
		a.tray.SetState(tray.StateNoTrigger)
	default:
		_ = a.machine.ClearTrigger()
		a.sink.Report(status.Event{Kind: status.UnknownKey, Detail: string(k), Err: err})
	}
}

func (a *App) readyState() tray.State {
	if !a.config.Enabled() {
		return tray.StateDisabled
	}
	return tray.StateReady
}

var (
	errNoTrigger = errors.New("no trigger key")
	errRemap     = errors.New("remap failed")
)

// remapper is the part of remap.Remapper resolveTrigger needs.
type remapper interface {
	Apply(k keys.Key) (keys.Key, error)
}

// resolveTrigger maps a catalog key to the platform keycode, remapping it
// first where the OS would not deliver it as a plain key.
func resolveTrigger(k keys.Key, r remapper) (uint16, error) {
	if k == "" {
		if _, err := r.Apply(""); err != nil {
			log.WithError(err).Warn("app: clear key mapping")
		}
		return 0, errNoTrigger
	}
	if _, ok := keys.Lookup(k); !ok {
		return 0, fmt.Errorf("unknown trigger key %q", k)
	}
	effective, err := r.Apply(k)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", i18n.T("error_remap"), errRemap, err)
	}
	code, ok := tap.Keycode(effective)
	if !ok {
		return 0, fmt.Errorf("no keycode for %q on this platform", effective)
	}
	return code, nil
}

func (a *App) onEnabledChange(enabled bool) {
	if err := a.machine.SetEnabled(enabled); err != nil {
		log.WithError(err).Warn("app: set enabled")
	}
	a.tray.SetEnabledChecked(enabled)
	if enabled && a.config.TriggerKey() == "" {
		a.tray.SetState(tray.StateNoTrigger)
	}
}

func (a *App) onModifiersChange(set modifier.Set) {
	if err := a.machine.SetModifiers(set); err != nil {
		log.WithError(err).Warn("app: set modifiers")
	}
	a.tray.SetModifiersChecked(set)
}

func (a *App) registerHotkey(hk config.HotkeyConfig) {
	if err := a.hotkey.Register(hk); err != nil {
		log.WithError(err).Warn("app: toggle hotkey")
		a.notifier.Error(i18n.T("error_hotkey_register") + ": " + hk.String())
	}
}

func (a *App) chooseTrigger() {
	k, err := dialog.SelectTriggerKey(a.config.TriggerKey())
	if err != nil {
		return // cancelled
	}
	a.config.SetTriggerKey(k)
}

func (a *App) chooseModifiers() {
	set, err := dialog.SelectModifiers(a.config.Modifiers())
	if err != nil {
		return // cancelled
	}
	a.config.SetModifiers(set)
}

func (a *App) onNotificationsChange(enabled bool) {
	a.notifier.SetEnabled(enabled)
	a.tray.SetNotificationsChecked(enabled)
}

func (a *App) onUILanguageChange(lang string) {
	i18n.SetLanguage(i18n.Language(lang))
	a.tray.RefreshUI()
}

// Close releases held modifiers, removes the key mapping and lets go of the
// keyboard. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if err := a.hotkey.Unregister(); err != nil {
			log.WithError(err).Debug("app: unregister hotkey")
		}
		a.mu.Lock()
		w := a.watcher
		a.mu.Unlock()
		if w != nil {
			_ = w.Close()
		}

		a.stopTap()
		if err := a.machine.SetEnabled(false); err != nil {
			log.WithError(err).Debug("app: release on shutdown")
		}
		if err := a.remapper.Clear(); err != nil {
			log.WithError(err).Warn("app: clear key mapping")
		}
		a.cancel()
		<-a.loop.Done()

		a.mu.Lock()
		dev := a.dev
		a.dev = nil
		a.mu.Unlock()
		if dev != nil {
			if err := dev.Close(); err != nil {
				log.WithError(err).Warn("app: close input device")
			}
		}
		log.Info("app: stopped")
	})
}

// actuator forwards to the injector once the device is open.
type actuator struct {
	mu  sync.RWMutex
	inj *inject.Injector
}

func (a *actuator) set(inj *inject.Injector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inj = inj
}

func (a *actuator) current() *inject.Injector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.inj
}

func (a *actuator) Inject(ramps modifier.Ramps, keyDown bool) error {
	inj := a.current()
	if inj == nil {
		return errNoDevice
	}
	return inj.Inject(ramps, keyDown)
}

func (a *actuator) ToggleCapsLock() (bool, error) {
	inj := a.current()
	if inj == nil {
		return false, fmt.Errorf("%w: %v", inject.ErrLockUnavailable, errNoDevice)
	}
	return inj.ToggleCapsLock()
}

// Quit closes the tray, which makes Run return.
func (a *App) Quit() {
	a.tray.Quit()
}
