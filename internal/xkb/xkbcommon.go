package xkb

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/1broseidon/swa/internal/platform"
)

const (
	xkbKeyUp              = 0
	xkbKeyDown            = 1
	xkbStateModsEffective = 1 << 3

	// evdev codes are offset by 8 in XKB.
	evdevOffset = 8
)

var (
	libOnce sync.Once
	libErr  error
	lib     uintptr

	xkbContextNew           func(flags int32) uintptr
	xkbContextUnref         func(ctx uintptr)
	xkbKeymapNewFromNames   func(ctx uintptr, names unsafe.Pointer, flags int32) uintptr
	xkbKeymapUnref          func(keymap uintptr)
	xkbKeymapKeyRepeats     func(keymap uintptr, key uint32) int32
	xkbStateNew             func(keymap uintptr) uintptr
	xkbStateUnref           func(state uintptr)
	xkbStateUpdateKey       func(state uintptr, key uint32, direction int32) int32
	xkbStateKeyGetOneSym    func(state uintptr, key uint32) uint32
	xkbStateKeyGetUTF8      func(state uintptr, key uint32, buf *byte, size uintptr) int32
	xkbStateModNameIsActive func(state uintptr, name string, typ int32) int32
	xkbKeysymGetName        func(sym uint32, buf *byte, size uintptr) int32
)

func loadLib() error {
	libOnce.Do(func() {
		lib, libErr = purego.Dlopen("libxkbcommon.so.0", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if libErr != nil {
			return
		}
		purego.RegisterLibFunc(&xkbContextNew, lib, "xkb_context_new")
		purego.RegisterLibFunc(&xkbContextUnref, lib, "xkb_context_unref")
		purego.RegisterLibFunc(&xkbKeymapNewFromNames, lib, "xkb_keymap_new_from_names")
		purego.RegisterLibFunc(&xkbKeymapUnref, lib, "xkb_keymap_unref")
		purego.RegisterLibFunc(&xkbKeymapKeyRepeats, lib, "xkb_keymap_key_repeats")
		purego.RegisterLibFunc(&xkbStateNew, lib, "xkb_state_new")
		purego.RegisterLibFunc(&xkbStateUnref, lib, "xkb_state_unref")
		purego.RegisterLibFunc(&xkbStateUpdateKey, lib, "xkb_state_update_key")
		purego.RegisterLibFunc(&xkbStateKeyGetOneSym, lib, "xkb_state_key_get_one_sym")
		purego.RegisterLibFunc(&xkbStateKeyGetUTF8, lib, "xkb_state_key_get_utf8")
		purego.RegisterLibFunc(&xkbStateModNameIsActive, lib, "xkb_state_mod_name_is_active")
		purego.RegisterLibFunc(&xkbKeysymGetName, lib, "xkb_keysym_get_name")
	})
	return libErr
}

// ruleNames mirrors struct xkb_rule_names.
type ruleNames struct {
	rules, model, layout, variant, options *byte
}

func cstr(s string) *byte {
	if s == "" {
		return nil
	}
	b := append([]byte(s), 0)
	return &b[0]
}

type xkbCommon struct {
	ctx    uintptr
	keymap uintptr
	state  uintptr
}

func newXKBCommon(names RuleNames) (*xkbCommon, error) {
	if err := loadLib(); err != nil {
		return nil, err
	}
	ctx := xkbContextNew(0)
	if ctx == 0 {
		return nil, errors.New("xkb_context_new failed")
	}

	rn := ruleNames{
		rules:   cstr(names.Rules),
		model:   cstr(names.Model),
		layout:  cstr(names.Layout),
		variant: cstr(names.Variant),
		options: cstr(names.Options),
	}
	keymap := xkbKeymapNewFromNames(ctx, unsafe.Pointer(&rn), 0)
	runtime.KeepAlive(&rn)
	if keymap == 0 {
		xkbContextUnref(ctx)
		return nil, fmt.Errorf("compile keymap %+v", names)
	}
	state := xkbStateNew(keymap)
	if state == 0 {
		xkbKeymapUnref(keymap)
		xkbContextUnref(ctx)
		return nil, errors.New("xkb_state_new failed")
	}
	return &xkbCommon{ctx: ctx, keymap: keymap, state: state}, nil
}

func (x *xkbCommon) Key(code platform.Keycode, pressed bool) string {
	key := uint32(code) + evdevOffset
	var text string
	if pressed {
		var buf [64]byte
		n := xkbStateKeyGetUTF8(x.state, key, &buf[0], uintptr(len(buf)))
		if n > 0 && int(n) < len(buf) {
			text = string(buf[:n])
		}
	}
	dir := int32(xkbKeyUp)
	if pressed {
		dir = xkbKeyDown
	}
	xkbStateUpdateKey(x.state, key, dir)
	return printable(text)
}

func (x *xkbCommon) Modifiers() platform.Modifiers {
	var mods platform.Modifiers
	for name, mod := range map[string]platform.Modifiers{
		"Shift":   platform.ModShift,
		"Control": platform.ModCtrl,
		"Mod1":    platform.ModAlt,
		"Mod4":    platform.ModSuper,
		"Lock":    platform.ModCapsLock,
		"Mod2":    platform.ModNumLock,
	} {
		if xkbStateModNameIsActive(x.state, name, xkbStateModsEffective) > 0 {
			mods |= mod
		}
	}
	return mods
}

func (x *xkbCommon) KeyName(code platform.Keycode) string {
	sym := xkbStateKeyGetOneSym(x.state, uint32(code)+evdevOffset)
	if sym == 0 {
		return ""
	}
	var buf [64]byte
	n := xkbKeysymGetName(sym, &buf[0], uintptr(len(buf)))
	if n <= 0 || int(n) >= len(buf) {
		return ""
	}
	return string(buf[:n])
}

func (x *xkbCommon) Repeats(code platform.Keycode) bool {
	return xkbKeymapKeyRepeats(x.keymap, uint32(code)+evdevOffset) != 0
}

func (x *xkbCommon) Close() {
	if x.state != 0 {
		xkbStateUnref(x.state)
		xkbKeymapUnref(x.keymap)
		xkbContextUnref(x.ctx)
		x.state, x.keymap, x.ctx = 0, 0, 0
	}
}

// printable drops control characters so only real text reaches listeners.
func printable(s string) string {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return ""
		}
	}
	return s
}
