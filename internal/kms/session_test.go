package kms

import (
	"errors"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/evdev"
	"github.com/1broseidon/swa/internal/platform"
	"github.com/1broseidon/swa/internal/vt"
)

func TestSession_HandOffOrdering(t *testing.T) {
	td := newTestDisplay(t, nil)
	listener := &platform.Listener{
		Focus: func(_ platform.Window, gained bool) {
			if gained {
				td.log.add("focus-gained")
			} else {
				td.log.add("focus-lost")
			}
		},
		Draw: func(platform.Window) { td.log.add("draw") },
	}
	w := td.bufferWindow(t, listener)
	td.Dispatch(false)
	td.log.reset()

	td.signals <- vt.ReleaseSignal
	td.dispatchUntil(t, func() bool { return !td.session.active })
	want := []string{"focus-lost", "drop-master", "ack-release"}
	if !slices.Equal(td.log.calls, want) {
		t.Fatalf("release order: got %v want %v", td.log.calls, want)
	}

	w.GetBuffer()
	if err := w.ApplyBuffer(); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
	w.Refresh()
	td.Dispatch(false)
	if slices.Contains(td.log.calls, "draw") {
		t.Fatalf("draw ran while the session was inactive: %v", td.log.calls)
	}

	td.log.reset()
	td.signals <- vt.AcquireSignal
	td.dispatchUntil(t, func() bool { return td.session.active })
	td.Dispatch(false)
	want = []string{"ack-acquire", "set-master", "focus-gained", "draw"}
	if !slices.Equal(td.log.calls, want) {
		t.Fatalf("acquire order: got %v want %v", td.log.calls, want)
	}

	w.GetBuffer()
	if err := w.ApplyBuffer(); err != nil {
		t.Fatalf("apply after acquire: %v", err)
	}
	if f := td.dev.lastCommit().flags; f&drm.AllowModeset == 0 {
		t.Fatalf("first commit after acquire must allow a modeset, flags %#x", f)
	}
	td.dev.flip(30)
	td.Dispatch(false)
	w.Close()
	td.Close()
	if !td.term.closed {
		t.Fatalf("terminal not restored on close")
	}
}

func TestSession_TerminationRequestsQuit(t *testing.T) {
	td := newTestDisplay(t, nil)
	defer td.Close()

	if !td.Dispatch(false) {
		t.Fatalf("dispatch failed before quit")
	}
	td.signals <- syscall.SIGTERM
	td.dispatchUntil(t, func() bool { return td.session.quit })
	if td.Dispatch(false) {
		t.Fatalf("dispatch should report quit")
	}
}

func TestSession_VTHotkeyIsConsumed(t *testing.T) {
	td := newTestDisplay(t, nil)
	var keys []platform.Keycode
	w := td.bufferWindow(t, &platform.Listener{
		Key: func(_ platform.Window, ev platform.KeyEvent) {
			if ev.Pressed {
				keys = append(keys, ev.Keycode)
			}
		},
	})
	defer td.Close()
	defer w.Close()

	kbd := newInputDevice("kbd", 0, zeroAbs, zeroAbs)
	press := func(code platform.Keycode, value int32) {
		td.seat.handle(kbd, keyEvent(code, value))
	}
	press(platform.KeyLeftCtrl, 1)
	press(platform.KeyLeftAlt, 1)
	press(platform.KeyF1+2, 1) // F3
	press(platform.KeyF1+2, 0)

	if !slices.Equal(td.term.switched, []int{3}) {
		t.Fatalf("expected switch to vt 3, got %v", td.term.switched)
	}
	want := []platform.Keycode{platform.KeyLeftCtrl, platform.KeyLeftAlt}
	if !slices.Equal(keys, want) {
		t.Fatalf("hotkey reached the application: %v", keys)
	}
	if td.KeyPressed(platform.KeyF1 + 2) {
		t.Fatalf("consumed key recorded as pressed")
	}

	// Ctrl+Alt+F1 on the current VT is still consumed but does not switch.
	press(platform.KeyF1, 1)
	if len(td.term.switched) != 1 || len(keys) != 2 {
		t.Fatalf("unexpected switch %v keys %v", td.term.switched, keys)
	}
}

func TestSession_InputDroppedWhileReleased(t *testing.T) {
	td := newTestDisplay(t, nil)
	var keys []platform.KeyEvent
	var moves []platform.MouseMoveEvent
	var touches int
	w := td.bufferWindow(t, &platform.Listener{
		Key:        func(_ platform.Window, ev platform.KeyEvent) { keys = append(keys, ev) },
		MouseMove:  func(_ platform.Window, ev platform.MouseMoveEvent) { moves = append(moves, ev) },
		TouchBegin: func(platform.Window, platform.TouchEvent) { touches++ },
		TouchEnd:   func(platform.Window, platform.TouchEvent) { touches++ },
	})
	defer td.Close()
	defer w.Close()
	td.Dispatch(false)

	kbd := newInputDevice("kbd", evdev.ClassKeyboard, zeroAbs, zeroAbs)
	mouse := newInputDevice("mouse", evdev.ClassPointer, zeroAbs, zeroAbs)
	info := evdev.AbsInfo{Max: 4095}
	touch := newInputDevice("touch", evdev.ClassTouch, info, info)
	rel := func(code uint16, v int32) {
		td.seat.handle(mouse, evdev.Event{Type: evdev.EvRel, Code: code, Value: v})
	}
	abs := func(code uint16, v int32) {
		td.seat.handle(touch, evdev.Event{Type: evdev.EvAbs, Code: code, Value: v})
	}

	td.signals <- vt.ReleaseSignal
	td.dispatchUntil(t, func() bool { return !td.session.active })

	// Typing on the other VT, including its own switch hotkey.
	td.seat.handle(kbd, keyEvent(30, 1))
	td.seat.handle(kbd, keyEvent(30, 0))
	td.seat.handle(kbd, keyEvent(platform.KeyLeftCtrl, 1))
	td.seat.handle(kbd, keyEvent(platform.KeyLeftAlt, 1))
	td.seat.handle(kbd, keyEvent(platform.KeyF1, 1))
	rel(evdev.RelX, 40)
	td.seat.handle(mouse, syn())
	rel(evdev.RelY, 7) // left without a report
	abs(evdev.AbsMTSlot, 0)
	abs(evdev.AbsMTTrackingID, 3)
	abs(evdev.AbsMTPositionX, 100)
	td.seat.handle(touch, syn())

	if len(keys) != 0 || len(moves) != 0 || touches != 0 {
		t.Fatalf("input delivered while released: keys=%v moves=%v touches=%d", keys, moves, touches)
	}
	if len(td.term.switched) != 0 {
		t.Fatalf("hotkey from another vt switched: %v", td.term.switched)
	}
	if td.KeyPressed(platform.KeyLeftCtrl) || td.KeyPressed(30) {
		t.Fatalf("keys pressed on another vt recorded")
	}

	td.signals <- vt.AcquireSignal
	td.dispatchUntil(t, func() bool { return td.session.active })

	x, y := td.MousePosition()
	rel(evdev.RelX, 5)
	td.seat.handle(mouse, syn())
	if len(moves) != 1 || moves[0].X != x+5 || moves[0].Y != y || moves[0].DY != 0 {
		t.Fatalf("stale motion leaked past acquire: %+v (from %d,%d)", moves, x, y)
	}
	td.seat.handle(kbd, keyEvent(30, 1))
	if len(keys) != 1 || keys[0].Keycode != 30 || keys[0].Modifiers&platform.ModCtrl != 0 {
		t.Fatalf("unexpected keys after acquire: %+v", keys)
	}
	td.seat.handle(kbd, keyEvent(30, 0))

	w.GetBuffer()
	w.ApplyBuffer()
	td.dev.flip(30)
	td.Dispatch(false)
}

func TestSession_AcquireWaitsForPendingFlip(t *testing.T) {
	td := newTestDisplay(t, nil)
	draws, pendingDraws := 0, 0
	w := td.bufferWindow(t, &platform.Listener{
		Draw: func(pw platform.Window) {
			draws++
			if pw.(*Window).surface.pending() {
				pendingDraws++
			}
		},
	})
	defer td.Close()
	defer w.Close()
	td.Dispatch(false)

	w.GetBuffer()
	if err := w.ApplyBuffer(); err != nil {
		t.Fatalf("apply: %v", err)
	}
	draws = 0

	td.signals <- vt.ReleaseSignal
	td.dispatchUntil(t, func() bool { return !td.session.active })
	td.signals <- vt.AcquireSignal
	td.dispatchUntil(t, func() bool { return td.session.active })
	td.Dispatch(false)
	if draws != 0 {
		t.Fatalf("draw ran with the old flip still pending (%d draws)", draws)
	}

	td.dev.flip(30)
	td.Dispatch(false)
	if draws != 1 || pendingDraws != 0 {
		t.Fatalf("after flip: draws=%d with pending flip=%d, want 1 and 0", draws, pendingDraws)
	}
}

func TestClaimVT_CatchesSwitchSignalsFirst(t *testing.T) {
	orig := openVT
	t.Cleanup(func() { openVT = orig })

	term := &fakeTerminal{log: &callLog{}, num: 4}
	openVT = func(num int) (Terminal, error) {
		if num != 4 {
			t.Fatalf("opened vt %d, want 4", num)
		}
		// A switch request arriving right as process mode is enabled.
		if err := syscall.Kill(os.Getpid(), vt.ReleaseSignal); err != nil {
			t.Fatalf("kill: %v", err)
		}
		return term, nil
	}
	got, signals, err := claimVT(4)
	if err != nil {
		t.Fatalf("claim vt: %v", err)
	}
	defer signal.Stop(signals)
	if got != term {
		t.Fatalf("unexpected terminal %v", got)
	}
	select {
	case sig := <-signals:
		if sig != vt.ReleaseSignal {
			t.Fatalf("got signal %v, want %v", sig, vt.ReleaseSignal)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("release signal not delivered")
	}

	openVT = func(int) (Terminal, error) { return nil, errors.New("no tty") }
	if _, _, err := claimVT(4); err == nil {
		t.Fatalf("expected open error")
	}
}
