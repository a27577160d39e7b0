package kms

import (
	"testing"

	"github.com/1broseidon/swa/internal/evdev"
	"github.com/1broseidon/swa/internal/platform"
)

var zeroAbs = evdev.AbsInfo{}

func keyEvent(code platform.Keycode, value int32) evdev.Event {
	return evdev.Event{Type: evdev.EvKey, Code: uint16(code), Value: value}
}

func syn() evdev.Event { return evdev.Event{Type: evdev.EvSyn, Code: evdev.SynReport} }

func TestSeat_KeyboardStateAndText(t *testing.T) {
	td := newTestDisplay(t, nil)
	var events []platform.KeyEvent
	w := td.bufferWindow(t, &platform.Listener{
		Key: func(_ platform.Window, ev platform.KeyEvent) { events = append(events, ev) },
	})
	defer td.Close()
	defer w.Close()

	kbd := newInputDevice("kbd", evdev.ClassKeyboard, zeroAbs, zeroAbs)
	td.seat.handle(kbd, keyEvent(platform.KeyLeftShift, 1))
	td.seat.handle(kbd, keyEvent(30, 1)) // KEY_A
	td.seat.handle(kbd, keyEvent(30, 2))
	td.seat.handle(kbd, keyEvent(platform.KeyLeftShift, 2)) // modifiers do not repeat

	if !td.KeyPressed(30) || !td.KeyPressed(platform.KeyLeftShift) {
		t.Fatalf("key state not tracked")
	}
	if td.Modifiers()&platform.ModShift == 0 {
		t.Fatalf("shift modifier not reported")
	}
	td.seat.handle(kbd, keyEvent(30, 0))
	if td.KeyPressed(30) {
		t.Fatalf("released key still pressed")
	}

	if len(events) != 4 {
		t.Fatalf("expected 4 key events, got %d: %+v", len(events), events)
	}
	if events[1].Text != "A" || events[1].Repeated {
		t.Fatalf("unexpected press %+v", events[1])
	}
	if !events[2].Repeated || events[2].Text != "A" {
		t.Fatalf("unexpected repeat %+v", events[2])
	}
	if events[3].Pressed || events[3].Text != "" {
		t.Fatalf("unexpected release %+v", events[3])
	}
}

func TestSeat_PointerMotionAndButtons(t *testing.T) {
	td := newTestDisplay(t, nil)
	var moves []platform.MouseMoveEvent
	var buttons []platform.MouseButtonEvent
	var wheel []platform.MouseWheelEvent
	w := td.bufferWindow(t, &platform.Listener{
		MouseMove:   func(_ platform.Window, ev platform.MouseMoveEvent) { moves = append(moves, ev) },
		MouseButton: func(_ platform.Window, ev platform.MouseButtonEvent) { buttons = append(buttons, ev) },
		MouseWheel:  func(_ platform.Window, ev platform.MouseWheelEvent) { wheel = append(wheel, ev) },
	})
	defer td.Close()
	defer w.Close()

	mouse := newInputDevice("mouse", evdev.ClassPointer, zeroAbs, zeroAbs)
	rel := func(code uint16, v int32) {
		td.seat.handle(mouse, evdev.Event{Type: evdev.EvRel, Code: code, Value: v})
	}

	rel(evdev.RelX, 10)
	rel(evdev.RelY, 5)
	td.seat.handle(mouse, syn())
	// Moving against the top-left corner produces no delta.
	rel(evdev.RelX, -100)
	rel(evdev.RelY, -100)
	td.seat.handle(mouse, syn())
	rel(evdev.RelX, -100)
	td.seat.handle(mouse, syn())
	rel(evdev.RelX, 5000)
	td.seat.handle(mouse, syn())

	if len(moves) != 3 {
		t.Fatalf("expected 3 move events, got %+v", moves)
	}
	if moves[0] != (platform.MouseMoveEvent{X: 10, Y: 5, DX: 10, DY: 5}) {
		t.Fatalf("unexpected first move %+v", moves[0])
	}
	if moves[2].X != 639 {
		t.Fatalf("pointer not clamped to output: %+v", moves[2])
	}
	if x, y := td.MousePosition(); x != 639 || y != 0 {
		t.Fatalf("unexpected position %d,%d", x, y)
	}

	td.seat.handle(mouse, evdev.Event{Type: evdev.EvKey, Code: evdev.BtnRight, Value: 1})
	if !td.MouseButtonPressed(platform.ButtonRight) || td.MouseButtonPressed(platform.ButtonLeft) {
		t.Fatalf("button state not tracked")
	}
	td.seat.handle(mouse, evdev.Event{Type: evdev.EvKey, Code: evdev.BtnRight, Value: 0})
	if len(buttons) != 2 || buttons[0].Button != platform.ButtonRight || !buttons[0].Pressed || buttons[1].Pressed {
		t.Fatalf("unexpected button events %+v", buttons)
	}
	if buttons[0].Token.Serial == buttons[1].Token.Serial {
		t.Fatalf("event tokens must differ")
	}

	rel(evdev.RelWheel, 1)
	rel(evdev.RelHWheel, -2)
	if len(wheel) != 2 || wheel[0].DY != -1 || wheel[1].DX != -2 {
		t.Fatalf("unexpected wheel events %+v", wheel)
	}
	if len(buttons) != 2 {
		t.Fatalf("wheel must not produce button events")
	}
}

func TestSeat_AbsolutePointerScalesToOutput(t *testing.T) {
	td := newTestDisplay(t, nil)
	var last platform.MouseMoveEvent
	w := td.bufferWindow(t, &platform.Listener{
		MouseMove: func(_ platform.Window, ev platform.MouseMoveEvent) { last = ev },
	})
	defer td.Close()
	defer w.Close()

	info := evdev.AbsInfo{Min: 0, Max: 1000}
	tablet := newInputDevice("tablet", evdev.ClassAbsPointer, info, info)
	td.seat.handle(tablet, evdev.Event{Type: evdev.EvAbs, Code: evdev.AbsX, Value: 1000})
	td.seat.handle(tablet, evdev.Event{Type: evdev.EvAbs, Code: evdev.AbsY, Value: 500})
	td.seat.handle(tablet, syn())

	if last.X != 639 || last.Y != 239 {
		t.Fatalf("unexpected scaled position %+v", last)
	}
}

func TestSeat_TouchLifecycle(t *testing.T) {
	td := newTestDisplay(t, nil)
	var log []string
	record := func(kind string) func(platform.Window, platform.TouchEvent) {
		return func(_ platform.Window, ev platform.TouchEvent) {
			log = append(log, kind)
			if ev.ID != 7 {
				t.Fatalf("unexpected touch id %d", ev.ID)
			}
		}
	}
	w := td.bufferWindow(t, &platform.Listener{
		TouchBegin:  record("begin"),
		TouchUpdate: record("update"),
		TouchEnd:    record("end"),
		TouchCancel: func(platform.Window) { log = append(log, "cancel") },
	})
	defer td.Close()
	defer w.Close()

	info := evdev.AbsInfo{Max: 4095}
	touch := newInputDevice("touch", evdev.ClassTouch, info, info)
	abs := func(code uint16, v int32) {
		td.seat.handle(touch, evdev.Event{Type: evdev.EvAbs, Code: code, Value: v})
	}

	abs(evdev.AbsMTSlot, 0)
	abs(evdev.AbsMTTrackingID, 7)
	abs(evdev.AbsMTPositionX, 100)
	abs(evdev.AbsMTPositionY, 100)
	td.seat.handle(touch, syn())
	abs(evdev.AbsMTPositionX, 200)
	td.seat.handle(touch, syn())
	abs(evdev.AbsMTTrackingID, -1)
	td.seat.handle(touch, syn())

	abs(evdev.AbsMTTrackingID, 7)
	td.seat.handle(touch, syn())
	td.seat.handle(touch, evdev.Event{Type: evdev.EvSyn, Code: evdev.SynDropped})

	want := []string{"begin", "update", "end", "begin", "cancel"}
	if len(log) != len(want) {
		t.Fatalf("got %v want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v want %v", log, want)
		}
	}
}

func TestSeat_FocusMovesWhenWindowCloses(t *testing.T) {
	td := newTestDisplay(t, func(o *Options) {
		dev := o.Device.(*fakeDevice)
		dev.addOutput(11, 21, 31, 51, 41, 800, 600)
	})
	defer td.Close()

	a := td.bufferWindow(t, nil)
	b := td.bufferWindow(t, nil)
	if td.KeyboardFocus() != platform.Window(a) || td.MouseOver() != platform.Window(a) {
		t.Fatalf("first window should hold focus")
	}
	if b.out == a.out {
		t.Fatalf("windows must bind distinct outputs")
	}
	if _, err := td.CreateWindow(platform.WindowSettings{Surface: platform.SurfaceBuffer}); err == nil {
		t.Fatalf("expected no free output for a third window")
	}

	a.Close()
	if td.KeyboardFocus() != platform.Window(b) {
		t.Fatalf("focus did not move to the remaining window")
	}
	b.Close()
	if td.KeyboardFocus() != nil || td.MouseOver() != nil {
		t.Fatalf("focus must clear when the last window closes")
	}
}
