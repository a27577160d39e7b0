package xkb

import (
	"strings"

	"github.com/1broseidon/swa/internal/platform"
)

type builtinKey struct {
	name  string
	lower string
	upper string
}

var usLayout = map[platform.Keycode]builtinKey{
	1: {name: "Escape"}, 14: {name: "BackSpace"}, 15: {name: "Tab", lower: "\t", upper: "\t"},
	28: {name: "Return", lower: "\r", upper: "\r"}, 57: {name: "space", lower: " ", upper: " "},
	12: {"minus", "-", "_"}, 13: {"equal", "=", "+"}, 26: {"bracketleft", "[", "{"},
	27: {"bracketright", "]", "}"}, 39: {"semicolon", ";", ":"}, 40: {"apostrophe", "'", "\""},
	41: {"grave", "`", "~"}, 43: {"backslash", "\\", "|"}, 51: {"comma", ",", "<"},
	52: {"period", ".", ">"}, 53: {"slash", "/", "?"},
	29: {name: "Control_L"}, 97: {name: "Control_R"}, 42: {name: "Shift_L"}, 54: {name: "Shift_R"},
	56: {name: "Alt_L"}, 100: {name: "Alt_R"}, 125: {name: "Super_L"}, 126: {name: "Super_R"},
	58: {name: "Caps_Lock"}, 69: {name: "Num_Lock"},
	102: {name: "Home"}, 103: {name: "Up"}, 104: {name: "Prior"}, 105: {name: "Left"},
	106: {name: "Right"}, 107: {name: "End"}, 108: {name: "Down"}, 109: {name: "Next"},
	110: {name: "Insert"}, 111: {name: "Delete"}, 96: {name: "KP_Enter"},
	87: {name: "F11"}, 88: {name: "F12"},
}

func init() {
	rows := []struct {
		first platform.Keycode
		keys  string
	}{
		{16, "qwertyuiop"},
		{30, "asdfghjkl"},
		{44, "zxcvbnm"},
	}
	for _, row := range rows {
		for i, r := range row.keys {
			s := string(r)
			usLayout[row.first+platform.Keycode(i)] = builtinKey{name: s, lower: s, upper: strings.ToUpper(s)}
		}
	}
	digits := "1234567890"
	shifted := "!@#$%^&*()"
	for i := range digits {
		usLayout[platform.Keycode(2+i)] = builtinKey{name: digits[i : i+1], lower: digits[i : i+1], upper: shifted[i : i+1]}
	}
	for i := 0; i < 10; i++ {
		name := "F" + digits[i:i+1]
		if i == 9 {
			name = "F10"
		}
		usLayout[platform.KeyF1+platform.Keycode(i)] = builtinKey{name: name}
	}
}

// Builtin is a US QWERTY keyboard state that needs no system libraries.
type Builtin struct {
	down   map[platform.Keycode]bool
	capsOn bool
	numOn  bool
}

func NewBuiltin() *Builtin {
	return &Builtin{down: make(map[platform.Keycode]bool)}
}

func (b *Builtin) Key(code platform.Keycode, pressed bool) string {
	wasDown := b.down[code]
	if pressed {
		b.down[code] = true
	} else {
		delete(b.down, code)
	}
	if !pressed {
		return ""
	}
	switch code {
	case platform.KeyCapsLock:
		if !wasDown {
			b.capsOn = !b.capsOn
		}
		return ""
	case platform.KeyNumLock:
		if !wasDown {
			b.numOn = !b.numOn
		}
		return ""
	}

	mods := b.Modifiers()
	if mods&(platform.ModCtrl|platform.ModAlt|platform.ModSuper) != 0 {
		return ""
	}
	k, ok := usLayout[code]
	if !ok || k.lower == "" {
		return ""
	}
	shift := mods&platform.ModShift != 0
	if b.capsOn && len(k.lower) == 1 && k.lower[0] >= 'a' && k.lower[0] <= 'z' {
		shift = !shift
	}
	if shift {
		return printable(k.upper)
	}
	return printable(k.lower)
}

func (b *Builtin) Modifiers() platform.Modifiers {
	var mods platform.Modifiers
	if b.down[platform.KeyLeftShift] || b.down[platform.KeyRightShift] {
		mods |= platform.ModShift
	}
	if b.down[platform.KeyLeftCtrl] || b.down[platform.KeyRightCtrl] {
		mods |= platform.ModCtrl
	}
	if b.down[platform.KeyLeftAlt] || b.down[platform.KeyRightAlt] {
		mods |= platform.ModAlt
	}
	if b.down[platform.KeyLeftMeta] || b.down[platform.KeyRightMeta] {
		mods |= platform.ModSuper
	}
	if b.capsOn {
		mods |= platform.ModCapsLock
	}
	if b.numOn {
		mods |= platform.ModNumLock
	}
	return mods
}

func (b *Builtin) KeyName(code platform.Keycode) string {
	return usLayout[code].name
}

// Repeats is false for modifier and lock keys.
func (b *Builtin) Repeats(code platform.Keycode) bool {
	switch code {
	case platform.KeyLeftShift, platform.KeyRightShift, platform.KeyLeftCtrl, platform.KeyRightCtrl,
		platform.KeyLeftAlt, platform.KeyRightAlt, platform.KeyLeftMeta, platform.KeyRightMeta,
		platform.KeyCapsLock, platform.KeyNumLock:
		return false
	}
	return true
}

func (b *Builtin) Close() {}
