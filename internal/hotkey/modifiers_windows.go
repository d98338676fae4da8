//go:build windows

package hotkey

import (
	"golang.design/x/hotkey"

	"hyperkey/internal/modifier"
)

var modifierMap = map[modifier.Modifier]hotkey.Modifier{
	modifier.Control: hotkey.ModCtrl,
	modifier.Shift:   hotkey.ModShift,
	modifier.Alt:     hotkey.ModAlt,
	modifier.Meta:    hotkey.ModWin,
}
