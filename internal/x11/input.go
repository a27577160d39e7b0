package x11

import (
	"unicode"
	"unicode/utf8"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/keybind"

	"github.com/1broseidon/swa/internal/platform"
)

// X keycodes are evdev codes offset by 8.
const keycodeOffset = 8

// xButtons maps core pointer buttons to mouse buttons. 4..7 are wheel
// steps and handled separately.
var xButtons = map[xproto.Button]platform.MouseButton{
	1: platform.ButtonLeft,
	2: platform.ButtonMiddle,
	3: platform.ButtonRight,
	8: platform.ButtonBack,
	9: platform.ButtonForward,
}

// wheelSteps maps wheel buttons to scroll deltas; positive DY scrolls down.
var wheelSteps = map[xproto.Button][2]float64{
	4: {0, -1},
	5: {0, 1},
	6: {-1, 0},
	7: {1, 0},
}

func evdevKeycode(kc xproto.Keycode) platform.Keycode {
	return platform.Keycode(kc) - keycodeOffset
}

func modifiers(state uint16) platform.Modifiers {
	var mods platform.Modifiers
	if state&xproto.ModMaskShift != 0 {
		mods |= platform.ModShift
	}
	if state&xproto.ModMaskControl != 0 {
		mods |= platform.ModCtrl
	}
	if state&xproto.ModMask1 != 0 {
		mods |= platform.ModAlt
	}
	if state&xproto.ModMask4 != 0 {
		mods |= platform.ModSuper
	}
	if state&xproto.ModMaskLock != 0 {
		mods |= platform.ModCapsLock
	}
	if state&xproto.ModMask2 != 0 {
		mods |= platform.ModNumLock
	}
	return mods
}

// keyText turns a keysym name from keybind into the text it types.
func keyText(name string, mods platform.Modifiers) string {
	if mods&(platform.ModCtrl|platform.ModAlt|platform.ModSuper) != 0 {
		return ""
	}
	if name == "space" {
		return " "
	}
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || size != len(name) || !unicode.IsPrint(r) {
		return ""
	}
	return name
}

// seat tracks keyboard and pointer state for the connection.
type seat struct {
	keys    [platform.MaxKeycode/64 + 1]uint64
	mods    platform.Modifiers
	buttons uint32
	x, y    int
	serial  uint32

	over  *Window
	focus *Window
}

func (s *seat) pressed(code platform.Keycode) bool {
	if code > platform.MaxKeycode {
		return false
	}
	return s.keys[code/64]&(1<<(code%64)) != 0
}

func (s *seat) setKey(code platform.Keycode, down bool) {
	if code > platform.MaxKeycode {
		return
	}
	if down {
		s.keys[code/64] |= 1 << (code % 64)
	} else {
		s.keys[code/64] &^= 1 << (code % 64)
	}
}

func (s *seat) setButton(b platform.MouseButton, down bool) {
	if down {
		s.buttons |= 1 << uint(b)
	} else {
		s.buttons &^= 1 << uint(b)
	}
}

func (d *Display) keyPress(ev xproto.KeyPressEvent, repeated bool) {
	code := evdevKeycode(ev.Detail)
	d.seat.mods = modifiers(ev.State)
	d.seat.setKey(code, true)
	w := d.windows[ev.Event]
	if w == nil {
		return
	}
	text := ""
	if d.conn != nil {
		text = keyText(keybind.LookupString(d.conn.XUtil, ev.State, ev.Detail), d.seat.mods)
	}
	w.listener.FireKey(w, platform.KeyEvent{
		Keycode:   code,
		Pressed:   true,
		Repeated:  repeated,
		Modifiers: d.seat.mods,
		Text:      text,
	})
}

func (d *Display) keyRelease(ev xproto.KeyReleaseEvent) {
	code := evdevKeycode(ev.Detail)
	d.seat.mods = modifiers(ev.State)
	d.seat.setKey(code, false)
	if w := d.windows[ev.Event]; w != nil {
		w.listener.FireKey(w, platform.KeyEvent{Keycode: code, Modifiers: d.seat.mods})
	}
}

func (d *Display) buttonEvent(win xproto.Window, detail xproto.Button, x, y int16, pressed bool) {
	w := d.windows[win]
	d.seat.x, d.seat.y = int(x), int(y)
	if step, ok := wheelSteps[detail]; ok {
		if pressed && w != nil {
			w.listener.FireMouseWheel(w, platform.MouseWheelEvent{DX: step[0], DY: step[1]})
		}
		return
	}
	b, ok := xButtons[detail]
	if !ok {
		return
	}
	d.seat.setButton(b, pressed)
	d.seat.serial++
	if w == nil {
		return
	}
	w.listener.FireMouseButton(w, platform.MouseButtonEvent{
		Button:  b,
		Pressed: pressed,
		X:       int(x),
		Y:       int(y),
		Token:   platform.EventToken{Serial: d.seat.serial, Button: b, X: int(x), Y: int(y)},
	})
}

func (d *Display) motion(ev xproto.MotionNotifyEvent) {
	x, y := int(ev.EventX), int(ev.EventY)
	dx, dy := x-d.seat.x, y-d.seat.y
	d.seat.x, d.seat.y = x, y
	if dx == 0 && dy == 0 {
		return
	}
	if w := d.windows[ev.Event]; w != nil {
		w.listener.FireMouseMove(w, platform.MouseMoveEvent{X: x, Y: y, DX: dx, DY: dy})
	}
}

func (d *Display) crossing(win xproto.Window, x, y int16, entered bool) {
	w := d.windows[win]
	if w == nil {
		return
	}
	d.seat.x, d.seat.y = int(x), int(y)
	if entered {
		d.seat.over = w
	} else if d.seat.over == w {
		d.seat.over = nil
	}
	w.listener.FireMouseCross(w, platform.MouseCrossEvent{Entered: entered, X: int(x), Y: int(y)})
}

func (d *Display) focusChange(win xproto.Window, gained bool) {
	w := d.windows[win]
	if w == nil {
		return
	}
	if gained {
		d.seat.focus = w
	} else if d.seat.focus == w {
		d.seat.focus = nil
		// Keys held while focus leaves are never released to us.
		clear(d.seat.keys[:])
	}
	w.listener.FireFocus(w, gained)
}
