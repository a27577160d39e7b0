package kms

import (
	"errors"
	"math/bits"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/swa/internal/evdev"
	"github.com/1broseidon/swa/internal/platform"
	"github.com/1broseidon/swa/internal/reactor"
	"github.com/1broseidon/swa/internal/udev"
	"github.com/1broseidon/swa/internal/xkb"
)

var evdevButtons = map[uint16]platform.MouseButton{
	evdev.BtnLeft:   platform.ButtonLeft,
	evdev.BtnRight:  platform.ButtonRight,
	evdev.BtnMiddle: platform.ButtonMiddle,
	evdev.BtnSide:   platform.ButtonBack,
	evdev.BtnExtra:  platform.ButtonForward,
}

type touchPhase uint8

const (
	touchIdle touchPhase = iota
	touchBegan
	touchMoved
	touchEnded
)

type touchSlot struct {
	id    int
	x, y  int
	phase touchPhase
	live  bool
}

// inputDevice accumulates the events of one evdev node until SYN_REPORT.
type inputDevice struct {
	dev   *evdev.Device
	path  string
	class evdev.Class
	absX  evdev.AbsInfo
	absY  evdev.AbsInfo

	dx, dy     int
	abs        bool
	ax, ay     int32
	slot       int
	slots      map[int]*touchSlot
	touchDirty bool
}

func newInputDevice(path string, class evdev.Class, absX, absY evdev.AbsInfo) *inputDevice {
	return &inputDevice{
		path:  path,
		class: class,
		absX:  absX,
		absY:  absY,
		slots: make(map[int]*touchSlot),
	}
}

// seat is the keyboard, pointer and touch state shared by all windows.
type seat struct {
	d   *Display
	xkb xkb.State

	keys    [platform.MaxKeycode/64 + 1]uint64
	buttons uint32
	x, y    int
	serial  uint32

	over  *Window
	focus *Window

	devices map[string]*inputDevice
	monitor *udev.Monitor
}

func newSeat(d *Display, state xkb.State) *seat {
	return &seat{d: d, xkb: state, devices: make(map[string]*inputDevice)}
}

// open enumerates input devices and starts watching for hot-plug.
func (s *seat) open() {
	paths, err := udev.InputDevices()
	if err != nil {
		s.d.logger.Warn("enumerate input devices", "error", err)
	}
	for _, p := range paths {
		s.addDevice(p)
	}
	m, err := udev.NewMonitor()
	if err != nil {
		s.d.logger.Warn("input hot-plug disabled", "error", err)
		return
	}
	if err := s.d.reactor.Add(m.Fd(), reactor.Readable, func(uint32) {
		if err := m.Receive(s.uevent); err != nil {
			s.d.logger.Warn("read uevents", "error", err)
		}
	}); err != nil {
		m.Close()
		s.d.logger.Warn("input hot-plug disabled", "error", err)
		return
	}
	s.monitor = m
}

func (s *seat) uevent(ev udev.Uevent) {
	if !ev.IsInputEvent() {
		return
	}
	switch ev.Action {
	case "add":
		s.addDevice(ev.Node())
	case "remove":
		s.removeDevice(ev.Node())
	}
}

func (s *seat) addDevice(path string) {
	if _, ok := s.devices[path]; ok {
		return
	}
	dev, err := evdev.Open(path)
	if err != nil {
		s.d.logger.Debug("skipping input device", "path", path, "error", err)
		return
	}
	if dev.Class() == 0 {
		dev.Close()
		return
	}
	in := newInputDevice(path, dev.Class(), dev.AbsX(), dev.AbsY())
	in.dev = dev
	if err := s.d.reactor.Add(dev.Fd(), reactor.Readable, func(events uint32) {
		err := dev.Read(func(ev evdev.Event) { s.handle(in, ev) })
		if errors.Is(err, unix.ENODEV) || (err == nil && events&reactor.HangUp != 0) {
			s.removeDevice(path)
		} else if err != nil {
			s.d.logger.Warn("read input device", "path", path, "error", err)
		}
	}); err != nil {
		dev.Close()
		s.d.logger.Warn("watch input device", "path", path, "error", err)
		return
	}
	s.devices[path] = in
	s.d.logger.Debug("input device added", "path", path, "name", dev.Name(), "class", dev.Class())
}

func (s *seat) removeDevice(path string) {
	in, ok := s.devices[path]
	if !ok {
		return
	}
	delete(s.devices, path)
	if in.dev != nil {
		s.d.reactor.Remove(in.dev.Fd())
		in.dev.Close()
	}
	s.d.logger.Debug("input device removed", "path", path)
}

func (s *seat) close() {
	for path := range s.devices {
		s.removeDevice(path)
	}
	if s.monitor != nil {
		s.d.reactor.Remove(s.monitor.Fd())
		s.monitor.Close()
		s.monitor = nil
	}
	if s.xkb != nil {
		s.xkb.Close()
	}
}

// handle drops everything but the touch slot index while the VT belongs to
// another session; the devices are still read so their queues drain.
func (s *seat) handle(in *inputDevice, ev evdev.Event) {
	if !s.d.session.active {
		if ev.Type == evdev.EvAbs && ev.Code == evdev.AbsMTSlot {
			in.slot = int(ev.Value)
		}
		return
	}
	switch ev.Type {
	case evdev.EvKey:
		if b, ok := evdevButtons[ev.Code]; ok {
			s.button(b, ev.Value != 0)
		} else if ev.Code < 0x100 || ev.Code >= 0x160 {
			s.key(platform.Keycode(ev.Code), ev.Value)
		}
	case evdev.EvRel:
		switch ev.Code {
		case evdev.RelX:
			in.dx += int(ev.Value)
		case evdev.RelY:
			in.dy += int(ev.Value)
		case evdev.RelWheel:
			s.wheel(0, -float64(ev.Value))
		case evdev.RelHWheel:
			s.wheel(float64(ev.Value), 0)
		}
	case evdev.EvAbs:
		if in.class&evdev.ClassTouch != 0 {
			s.touchAbs(in, ev)
			return
		}
		switch ev.Code {
		case evdev.AbsX:
			in.ax, in.abs = ev.Value, true
		case evdev.AbsY:
			in.ay, in.abs = ev.Value, true
		}
	case evdev.EvSyn:
		switch ev.Code {
		case evdev.SynReport:
			s.frame(in)
		case evdev.SynDropped:
			s.cancelTouch(in)
		}
	}
}

// frame flushes motion and touch changes collected since the last report.
func (s *seat) frame(in *inputDevice) {
	if in.dx != 0 || in.dy != 0 {
		s.moveTo(s.x+in.dx, s.y+in.dy)
		in.dx, in.dy = 0, 0
	}
	if in.abs {
		w, h := s.bounds()
		s.moveTo(evdev.ScaleAbs(in.absX, in.ax, w), evdev.ScaleAbs(in.absY, in.ay, h))
		in.abs = false
	}
	if in.touchDirty {
		s.flushTouch(in)
	}
}

// bounds is the size of the output the pointer lives on.
func (s *seat) bounds() (int, int) {
	if w := s.pointerWindow(); w != nil && w.out != nil {
		return w.out.width(), w.out.height()
	}
	if len(s.d.outputs) > 0 {
		return s.d.outputs[0].width(), s.d.outputs[0].height()
	}
	return 1, 1
}

func (s *seat) pointerWindow() *Window {
	if s.over != nil {
		return s.over
	}
	return s.focus
}

func (s *seat) moveTo(x, y int) {
	w, h := s.bounds()
	x = min(max(x, 0), w-1)
	y = min(max(y, 0), h-1)
	dx, dy := x-s.x, y-s.y
	if dx == 0 && dy == 0 {
		return
	}
	s.x, s.y = x, y
	win := s.pointerWindow()
	if win == nil {
		return
	}
	if win.out != nil {
		if err := s.d.moveCursor(win.out); err != nil {
			s.d.logger.Debug("move cursor", "error", err)
		}
	}
	win.listener.FireMouseMove(win, platform.MouseMoveEvent{X: x, Y: y, DX: dx, DY: dy})
}

func (s *seat) button(b platform.MouseButton, pressed bool) {
	bit := uint32(1) << uint(b)
	if pressed == (s.buttons&bit != 0) {
		return
	}
	if pressed {
		s.buttons |= bit
	} else {
		s.buttons &^= bit
	}
	s.serial++
	win := s.pointerWindow()
	if win == nil {
		return
	}
	win.listener.FireMouseButton(win, platform.MouseButtonEvent{
		Button:  b,
		Pressed: pressed,
		X:       s.x,
		Y:       s.y,
		Token:   platform.EventToken{Serial: s.serial, Button: b, X: s.x, Y: s.y},
	})
}

func (s *seat) wheel(dx, dy float64) {
	if win := s.pointerWindow(); win != nil {
		win.listener.FireMouseWheel(win, platform.MouseWheelEvent{DX: dx, DY: dy})
	}
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

// key handles an evdev key event: 0 release, 1 press, 2 autorepeat.
func (s *seat) key(code platform.Keycode, value int32) {
	pressed := value != 0
	repeat := value == 2
	if repeat && !s.xkb.Repeats(code) {
		return
	}

	if pressed && !repeat {
		mods := s.xkb.Modifiers()
		if n := platform.FunctionKeyIndex(code); n > 0 && mods&platform.ModCtrl != 0 && mods&platform.ModAlt != 0 {
			s.d.session.switchTo(n)
			return
		}
	}
	if !pressed && !s.pressed(code) {
		// Release of a key whose press was consumed or happened before
		// the session became active.
		return
	}

	s.setKey(code, pressed)
	text := s.xkb.Key(code, pressed)
	if s.focus == nil {
		return
	}
	s.focus.listener.FireKey(s.focus, platform.KeyEvent{
		Keycode:   code,
		Pressed:   pressed,
		Repeated:  repeat,
		Modifiers: s.xkb.Modifiers(),
		Text:      text,
	})
}

func (s *seat) touchAbs(in *inputDevice, ev evdev.Event) {
	switch ev.Code {
	case evdev.AbsMTSlot:
		in.slot = int(ev.Value)
		return
	}
	t, ok := in.slots[in.slot]
	if !ok {
		t = &touchSlot{}
		in.slots[in.slot] = t
	}
	w, h := s.bounds()
	switch ev.Code {
	case evdev.AbsMTTrackingID:
		if ev.Value < 0 {
			if t.live {
				t.phase = touchEnded
			}
		} else {
			t.id, t.live, t.phase = int(ev.Value), true, touchBegan
		}
	case evdev.AbsMTPositionX:
		t.x = evdev.ScaleAbs(in.absX, ev.Value, w)
		if t.phase == touchIdle {
			t.phase = touchMoved
		}
	case evdev.AbsMTPositionY:
		t.y = evdev.ScaleAbs(in.absY, ev.Value, h)
		if t.phase == touchIdle {
			t.phase = touchMoved
		}
	default:
		return
	}
	in.touchDirty = true
}

func (s *seat) flushTouch(in *inputDevice) {
	in.touchDirty = false
	win := s.focus
	for _, t := range in.slots {
		phase := t.phase
		t.phase = touchIdle
		if win == nil || (!t.live && phase != touchEnded) {
			continue
		}
		ev := platform.TouchEvent{ID: t.id, X: t.x, Y: t.y}
		switch phase {
		case touchBegan:
			win.listener.FireTouchBegin(win, ev)
		case touchMoved:
			win.listener.FireTouchUpdate(win, ev)
		case touchEnded:
			t.live = false
			win.listener.FireTouchEnd(win, ev)
		}
	}
}

func (s *seat) cancelTouch(in *inputDevice) {
	if len(in.slots) == 0 {
		return
	}
	clear(in.slots)
	in.touchDirty = false
	if s.focus != nil {
		s.focus.listener.FireTouchCancel(s.focus)
	}
}

// reset releases everything held, used when the VT is switched away.
func (s *seat) reset() {
	for i, word := range s.keys {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			word &^= 1 << bit
			s.xkb.Key(platform.Keycode(i*64+bit), false)
		}
		s.keys[i] = 0
	}
	s.buttons = 0
	for _, in := range s.devices {
		clear(in.slots)
		in.dx, in.dy, in.abs, in.touchDirty = 0, 0, false, false
	}
}

// windowAdded gives the first window keyboard and pointer focus.
func (s *seat) windowAdded(w *Window) {
	if s.focus == nil {
		s.focus = w
		w.listener.FireFocus(w, true)
	}
	if s.over == nil {
		s.over = w
		w.listener.FireMouseCross(w, platform.MouseCrossEvent{Entered: true, X: s.x, Y: s.y})
	}
}

// windowRemoved moves focus off w to the most recent remaining window.
func (s *seat) windowRemoved(w *Window) {
	var next *Window
	for i := len(s.d.windows) - 1; i >= 0; i-- {
		if s.d.windows[i] != w {
			next = s.d.windows[i]
			break
		}
	}
	if s.focus == w {
		s.focus = nil
		if next != nil {
			s.focus = next
			next.listener.FireFocus(next, true)
		}
	}
	if s.over == w {
		s.over = nil
		if next != nil {
			s.over = next
			next.listener.FireMouseCross(next, platform.MouseCrossEvent{Entered: true, X: s.x, Y: s.y})
		}
	}
}
