// Package dialog provides the GUI dialogs used to configure Hyperkey.
package dialog

import (
	"runtime"

	"github.com/ncruces/zenity"

	"hyperkey/internal/i18n"
	"hyperkey/internal/keys"
	"hyperkey/internal/modifier"
)

// ModifierLabel returns the display name of m.
func ModifierLabel(m modifier.Modifier) string {
	return i18n.T("mod_" + string(m))
}

// triggerOptions lists "None" followed by every catalog key.
func triggerOptions() ([]string, []keys.Key) {
	entries := keys.All()
	labels := make([]string, 0, len(entries)+1)
	values := make([]keys.Key, 0, len(entries)+1)
	labels = append(labels, i18n.T("dialog_trigger_none"))
	values = append(values, "")
	for _, e := range entries {
		labels = append(labels, e.Label)
		values = append(values, e.Key)
	}
	return labels, values
}

// SelectTriggerKey asks for the trigger key.
// It returns current and an error if the user cancels.
func SelectTriggerKey(current keys.Key) (keys.Key, error) {
	labels, values := triggerOptions()

	var defaults []string
	for i, v := range values {
		if v == current {
			defaults = append(defaults, labels[i])
		}
	}

	selected, err := zenity.List(
		i18n.T("dialog_trigger_text"),
		labels,
		zenity.Title(i18n.T("dialog_trigger_title")),
		zenity.DefaultItems(defaults...),
	)
	if err != nil {
		return current, err // cancelled
	}
	for i, l := range labels {
		if l == selected {
			return values[i], nil
		}
	}
	return current, zenity.ErrCanceled
}

// SelectModifiers asks which modifiers the trigger key holds. An empty
// selection is allowed: the key is then consumed without effect.
func SelectModifiers(current modifier.Set) (modifier.Set, error) {
	labels := make([]string, 0, len(modifier.Order))
	var defaults []string
	for _, m := range modifier.Order {
		labels = append(labels, ModifierLabel(m))
		if current.Has(m) {
			defaults = append(defaults, ModifierLabel(m))
		}
	}

	selected, err := zenity.ListMultiple(
		i18n.T("dialog_modifiers_text"),
		labels,
		zenity.Title(i18n.T("dialog_modifiers_title")),
		zenity.DefaultItems(defaults...),
	)
	if err != nil {
		return current, err
	}
	return modifiersFromLabels(selected), nil
}

func modifiersFromLabels(selected []string) modifier.Set {
	set := modifier.NewSet()
	for _, s := range selected {
		for _, m := range modifier.Order {
			if s == ModifierLabel(m) {
				set[m] = struct{}{}
			}
		}
	}
	return set
}

// ShowPermissionHelp explains how to grant the access the tap needs.
func ShowPermissionHelp() {
	var msg string
	switch runtime.GOOS {
	case "darwin":
		msg = i18n.T("dialog_permission_darwin")
	case "linux":
		msg = i18n.T("dialog_permission_linux")
	default:
		msg = i18n.T("dialog_permission_other")
	}
	ShowError(i18n.T("dialog_permission_title"), msg)
}

// ShowError shows an error message.
func ShowError(title, message string) {
	zenity.Error(message, zenity.Title(title), zenity.ErrorIcon)
}
