// Package xkb translates evdev key codes into modifiers, text and key
// names. It uses libxkbcommon when the library can be loaded and falls
// back to a builtin US layout otherwise.
package xkb

import (
	"log/slog"

	"github.com/1broseidon/swa/internal/platform"
)

// RuleNames selects an XKB keymap. Empty fields use the library defaults.
type RuleNames struct {
	Rules   string
	Model   string
	Layout  string
	Variant string
	Options string
}

// State tracks the keyboard state of a seat.
type State interface {
	// Key feeds a press or release and returns the text it produces.
	Key(code platform.Keycode, pressed bool) string
	Modifiers() platform.Modifiers
	KeyName(code platform.Keycode) string
	// Repeats reports whether the key autorepeats in this keymap.
	Repeats(code platform.Keycode) bool
	Close()
}

// New builds a keyboard state for names.
func New(names RuleNames, logger *slog.Logger) State {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := newXKBCommon(names)
	if err == nil {
		return st
	}
	logger.Warn("libxkbcommon unavailable, using builtin us keymap", "error", err)
	return NewBuiltin()
}
