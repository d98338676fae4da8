//go:build linux

package hotkey

import (
	"golang.design/x/hotkey"

	"hyperkey/internal/modifier"
)

var modifierMap = map[modifier.Modifier]hotkey.Modifier{
	modifier.Control: hotkey.ModCtrl,
	modifier.Shift:   hotkey.ModShift,
	modifier.Alt:     hotkey.Mod1, // Alt is Mod1 on X11
	modifier.Meta:    hotkey.Mod4, // Super is Mod4 on X11
}
