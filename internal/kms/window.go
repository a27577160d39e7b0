package kms

import (
	"errors"
	"fmt"

	"github.com/1broseidon/swa/internal/platform"
)

// surface is the per-type part of a window. Exactly one implementation
// exists per platform.SurfaceType except SurfaceNone, which has none.
type surface interface {
	kind() platform.SurfaceType
	// pending reports an outstanding present.
	pending() bool
	// flipped advances the surface after a page flip on its CRTC.
	flipped()
	destroy()
}

// ErrSessionInactive is returned when presenting while the VT is switched
// away.
var ErrSessionInactive = errors.New("kms: session inactive")

type Window struct {
	d           *Display
	out         *output
	listener    *platform.Listener
	title       string
	transparent bool
	cursor      platform.Cursor

	surface surface

	// redraw is set when a draw was requested while a present was pending.
	redraw     bool
	drawQueued bool
	closed     bool
}

var _ platform.Window = (*Window)(nil)

func (w *Window) Capabilities() platform.WindowCap {
	return platform.WindowCapCursor
}

func (w *Window) unsupported(op string) error {
	w.d.logger.Warn("window operation not supported", "op", op)
	return fmt.Errorf("%s: %w", op, platform.ErrUnsupported)
}

func (w *Window) SetMinSize(int, int) error     { return w.unsupported("set min size") }
func (w *Window) SetMaxSize(int, int) error     { return w.unsupported("set max size") }
func (w *Window) Show(bool) error               { return w.unsupported("show") }
func (w *Window) SetSize(int, int) error        { return w.unsupported("set size") }
func (w *Window) SetPosition(int, int) error    { return w.unsupported("set position") }
func (w *Window) SetTitle(string) error         { return w.unsupported("set title") }
func (w *Window) SetIcon(*platform.Image) error { return w.unsupported("set icon") }
func (w *Window) IsClientDecorated() bool       { return false }

func (w *Window) SetState(platform.WindowState) error {
	return w.unsupported("set state")
}

func (w *Window) BeginMove(platform.EventToken) error {
	return w.unsupported("begin move")
}

func (w *Window) BeginResize(platform.EventToken, platform.Edges) error {
	return w.unsupported("begin resize")
}

func (w *Window) SetCursor(c platform.Cursor) error {
	img, err := w.d.cursorImage(c)
	if err != nil {
		return err
	}
	w.cursor = c
	if w.out == nil {
		return nil
	}
	return w.d.showCursor(w.out, img)
}

// Refresh schedules a draw. While a present is pending the request is
// remembered and served once when it completes.
func (w *Window) Refresh() {
	if w.closed {
		return
	}
	if w.surface != nil && w.surface.pending() {
		w.redraw = true
		return
	}
	w.scheduleDraw()
}

func (w *Window) scheduleDraw() {
	if w.drawQueued || w.closed {
		return
	}
	w.drawQueued = true
	w.d.reactor.Defer(func() {
		w.drawQueued = false
		if w.closed {
			return
		}
		if !w.d.session.active {
			w.redraw = true
			return
		}
		w.listener.FireDraw(w)
	})
}

// frameCompleted runs after a present finished and serves a coalesced
// redraw request synchronously.
func (w *Window) frameCompleted() {
	if !w.redraw || w.closed {
		return
	}
	w.redraw = false
	w.listener.FireDraw(w)
}

func (w *Window) SurfaceFrame() {
	if s, ok := w.surface.(*vkSurface); ok {
		s.frame()
	}
}

// restore re-arms the window after the session was re-acquired.
func (w *Window) restore() {
	w.redraw = false
	w.Refresh()
	if w.out == nil {
		return
	}
	img, err := w.d.cursorImage(w.cursor)
	if err != nil {
		return
	}
	if err := w.d.showCursor(w.out, img); err != nil {
		w.d.logger.Debug("restore cursor", "error", err)
	}
}

// present commits fb on the window's output.
func (w *Window) present(fb uint32, width, height int) error {
	if !w.d.session.active {
		return ErrSessionInactive
	}
	return w.out.commit(w.d.dev, fb, width, height)
}

func (w *Window) GetBuffer() (platform.Image, error) {
	s, ok := w.surface.(*bufferSurface)
	if !ok {
		return platform.Image{}, platform.ErrWrongSurface
	}
	img, err := s.get()
	if err != nil {
		w.d.logger.Warn("get buffer", "error", err)
	}
	return img, err
}

func (w *Window) ApplyBuffer() error {
	s, ok := w.surface.(*bufferSurface)
	if !ok {
		return platform.ErrWrongSurface
	}
	if err := s.apply(); err != nil {
		w.d.logger.Warn("apply buffer", "error", err)
		return err
	}
	return nil
}

func (w *Window) GLMakeCurrent() error {
	s, ok := w.surface.(*glSurface)
	if !ok {
		return platform.ErrWrongSurface
	}
	return s.srf.MakeCurrent()
}

func (w *Window) GLSwapBuffers() error {
	s, ok := w.surface.(*glSurface)
	if !ok {
		return platform.ErrWrongSurface
	}
	if err := s.swap(); err != nil {
		w.d.logger.Warn("gl swap buffers", "error", err)
		return err
	}
	return nil
}

func (w *Window) GLSetSwapInterval(interval int) error {
	s, ok := w.surface.(*glSurface)
	if !ok {
		return platform.ErrWrongSurface
	}
	return s.srf.SetSwapInterval(interval)
}

func (w *Window) VulkanSurface() (uint64, error) {
	s, ok := w.surface.(*vkSurface)
	if !ok {
		return 0, platform.ErrWrongSurface
	}
	return s.handle()
}

func (w *Window) Display() platform.Display { return w.d }

// Close destroys the window. Closing while a page flip is pending is a
// programming error.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	if w.surface != nil && w.surface.kind() != platform.SurfaceVulkan && w.surface.pending() {
		panic("kms: window closed with a page flip pending")
	}
	w.closed = true
	if w.surface != nil {
		w.surface.destroy()
		w.listener.FireSurfaceDestroyed(w)
		w.surface = nil
	}
	if w.out != nil {
		if w.out.cursor != nil {
			w.d.showCursor(w.out, nil)
		}
		w.out.window = nil
		w.out = nil
	}
	w.d.removeWindow(w)
	w.listener.FireDestroyed(w)
	return nil
}
