// Package i18n provides internationalization support.
package i18n

import "sync"

// Language represents a UI language.
type Language string

const (
	RU Language = "ru"
	EN Language = "en"
)

var (
	mu      sync.RWMutex
	current = EN // Default language
)

// Translations for all supported languages.
var translations = map[Language]map[string]string{
	EN: {
		// App
		"app_name":    "Hyperkey",
		"app_tooltip": "Hyperkey - one key for all modifiers",

		// Tray status line
		"status_ready":      "Ready",
		"status_held":       "Hyperkey held",
		"status_disabled":   "Disabled",
		"status_failed":     "Not installed: access required",
		"status_no_trigger": "No trigger key selected",

		// Tray menu
		"tray_enabled":            "Enabled",
		"tray_enabled_hint":       "Turn the trigger key into Hyperkey",
		"tray_retry":              "Retry install",
		"tray_retry_hint":         "Attach to the keyboard again after granting access",
		"tray_trigger":            "Trigger key...",
		"tray_trigger_hint":       "Choose the key that acts as Hyperkey",
		"tray_modifiers":          "Modifiers",
		"tray_modifiers_hint":     "Modifiers held while the trigger key is down",
		"tray_pick_mods":          "Choose modifiers…",
		"tray_pick_mods_hint":     "Pick every modifier at once",
		"tray_notifications":      "Notifications",
		"tray_notifications_hint": "Show a notification when something fails",
		"tray_language":           "Language",
		"tray_quit":               "Quit",
		"tray_quit_hint":          "Close Hyperkey",

		// Modifier names
		"mod_meta":    "Command / Super",
		"mod_alt":     "Option / Alt",
		"mod_control": "Control",
		"mod_shift":   "Shift",

		// Notifications
		"notify_error":            "Error",
		"notify_tap_failed":       "Could not attach to the keyboard",
		"notify_caps_failed":      "Caps Lock could not be toggled",
		"notify_injection_failed": "Modifier keys could not be sent",
		"notify_unknown_key":      "Unknown trigger key in config",

		// Dialogs
		"dialog_permission_title":  "Hyperkey needs access",
		"dialog_permission_darwin": "Grant Hyperkey Accessibility and Input Monitoring access in System Settings > Privacy & Security, then choose Retry install.",
		"dialog_permission_linux":  "Hyperkey needs read access to /dev/input and write access to /dev/uinput. Add your user to the input group, then choose Retry install.",
		"dialog_permission_other":  "Hyperkey does not support this system.",
		"dialog_trigger_title":     "Trigger key",
		"dialog_trigger_text":      "Select the key that acts as Hyperkey:",
		"dialog_trigger_none":      "None",
		"dialog_modifiers_title":   "Modifiers",
		"dialog_modifiers_text":    "Select the modifiers held with the trigger key:",

		// Errors
		"error_hotkey_register": "Could not register the toggle hotkey",
		"error_remap":           "Could not remap the trigger key",
	},
	RU: {
		// App
		"app_name":    "Hyperkey",
		"app_tooltip": "Hyperkey - одна клавиша для всех модификаторов",

		// Tray status line
		"status_ready":      "Готов к работе",
		"status_held":       "Hyperkey нажат",
		"status_disabled":   "Выключен",
		"status_failed":     "Не установлен: нужен доступ",
		"status_no_trigger": "Клавиша не выбрана",

		// Tray menu
		"tray_enabled":            "Включён",
		"tray_enabled_hint":       "Превратить клавишу в Hyperkey",
		"tray_retry":              "Повторить установку",
		"tray_retry_hint":         "Снова подключиться к клавиатуре после выдачи доступа",
		"tray_trigger":            "Клавиша...",
		"tray_trigger_hint":       "Выбрать клавишу, которая станет Hyperkey",
		"tray_modifiers":          "Модификаторы",
		"tray_modifiers_hint":     "Модификаторы, зажатые вместе с клавишей",
		"tray_pick_mods":          "Выбрать модификаторы…",
		"tray_pick_mods_hint":     "Выбрать все модификаторы сразу",
		"tray_notifications":      "Уведомления",
		"tray_notifications_hint": "Показывать уведомление при ошибке",
		"tray_language":           "Язык",
		"tray_quit":               "Выход",
		"tray_quit_hint":          "Закрыть Hyperkey",

		// Modifier names
		"mod_meta":    "Command / Super",
		"mod_alt":     "Option / Alt",
		"mod_control": "Control",
		"mod_shift":   "Shift",

		// Notifications
		"notify_error":            "Ошибка",
		"notify_tap_failed":       "Не удалось подключиться к клавиатуре",
		"notify_caps_failed":      "Не удалось переключить Caps Lock",
		"notify_injection_failed": "Не удалось отправить модификаторы",
		"notify_unknown_key":      "Неизвестная клавиша в конфигурации",

		// Dialogs
		"dialog_permission_title":  "Hyperkey нужен доступ",
		"dialog_permission_darwin": "Выдайте Hyperkey доступ к Универсальному доступу и Мониторингу ввода в Системных настройках > Конфиденциальность и безопасность, затем выберите «Повторить установку».",
		"dialog_permission_linux":  "Hyperkey нужен доступ на чтение /dev/input и на запись /dev/uinput. Добавьте пользователя в группу input и выберите «Повторить установку».",
		"dialog_permission_other":  "Hyperkey не поддерживает эту систему.",
		"dialog_trigger_title":     "Клавиша",
		"dialog_trigger_text":      "Выберите клавишу для Hyperkey:",
		"dialog_trigger_none":      "Нет",
		"dialog_modifiers_title":   "Модификаторы",
		"dialog_modifiers_text":    "Выберите модификаторы, зажимаемые вместе с клавишей:",

		// Errors
		"error_hotkey_register": "Не удалось зарегистрировать горячую клавишу",
		"error_remap":           "Не удалось переназначить клавишу",
	},
}

// T returns the translation for the given key.
func T(key string) string {
	mu.RLock()
	defer mu.RUnlock()

	if strings, ok := translations[current]; ok {
		if s, ok := strings[key]; ok {
			return s
		}
	}
	// Fallback to key itself
	return key
}

// SetLanguage sets the current UI language. Unknown languages are ignored.
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := translations[lang]; ok {
		current = lang
	}
}

// GetLanguage returns the current UI language.
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// AvailableLanguages returns list of supported languages.
func AvailableLanguages() []Language {
	return []Language{EN, RU}
}

// LanguageName returns display name for a language.
func LanguageName(lang Language) string {
	switch lang {
	case RU:
		return "Русский"
	case EN:
		return "English"
	default:
		return string(lang)
	}
}
