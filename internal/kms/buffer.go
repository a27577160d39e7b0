package kms

import (
	"fmt"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/platform"
)

const bufferCount = 3

type bufferState uint8

const (
	bufferFree bufferState = iota
	bufferActive
	bufferPending
	bufferDisplayed
)

func (s bufferState) String() string {
	switch s {
	case bufferActive:
		return "active"
	case bufferPending:
		return "pending"
	case bufferDisplayed:
		return "displayed"
	default:
		return "free"
	}
}

type dumbBuffer struct {
	dumb  *drm.Dumb
	fb    uint32
	state bufferState
}

// bufferSurface rotates three dumb buffers. At most one is active or
// pending at any time; pending only advances on a page-flip event.
type bufferSurface struct {
	w      *Window
	bufs   [bufferCount]dumbBuffer
	active int
	queued int
	shown  int
}

func newBufferSurface(w *Window) (*bufferSurface, error) {
	s := &bufferSurface{w: w, active: -1, queued: -1, shown: -1}
	dev := w.d.dev
	width, height := uint32(w.out.width()), uint32(w.out.height())
	for i := range s.bufs {
		d, err := dev.CreateDumb(width, height, 32)
		if err != nil {
			s.destroy()
			return nil, err
		}
		fb, err := dev.AddFB2(width, height, drm.FormatXRGB8888,
			[4]uint32{d.Handle}, [4]uint32{d.Pitch}, [4]uint32{})
		if err != nil {
			dev.DestroyDumb(d)
			s.destroy()
			return nil, fmt.Errorf("add framebuffer: %w", err)
		}
		s.bufs[i] = dumbBuffer{dumb: d, fb: fb}
	}
	return s, nil
}

func (s *bufferSurface) kind() platform.SurfaceType { return platform.SurfaceBuffer }

func (s *bufferSurface) pending() bool { return s.queued >= 0 }

func (s *bufferSurface) get() (platform.Image, error) {
	if s.active >= 0 {
		return platform.Image{}, platform.ErrBufferActive
	}
	if s.queued >= 0 {
		return platform.Image{}, platform.ErrFlipPending
	}
	for i := range s.bufs {
		b := &s.bufs[i]
		if b.dumb == nil || b.state != bufferFree {
			continue
		}
		b.state = bufferActive
		s.active = i
		return platform.Image{
			Width:  int(b.dumb.Width),
			Height: int(b.dumb.Height),
			Stride: int(b.dumb.Pitch),
			Format: platform.WordFormat(platform.FormatXRGB32),
			Data:   b.dumb.Data,
		}, nil
	}
	return platform.Image{}, platform.ErrNoFreeBuffer
}

func (s *bufferSurface) apply() error {
	if s.active < 0 {
		return platform.ErrNoActiveBuffer
	}
	b := &s.bufs[s.active]
	if err := s.w.present(b.fb, int(b.dumb.Width), int(b.dumb.Height)); err != nil {
		b.state = bufferFree
		s.active = -1
		return err
	}
	b.state = bufferPending
	s.queued, s.active = s.active, -1
	return nil
}

func (s *bufferSurface) flipped() {
	if s.queued < 0 {
		return
	}
	if s.shown >= 0 {
		s.bufs[s.shown].state = bufferFree
	}
	s.bufs[s.queued].state = bufferDisplayed
	s.shown, s.queued = s.queued, -1
}

func (s *bufferSurface) states() [bufferCount]bufferState {
	var out [bufferCount]bufferState
	for i, b := range s.bufs {
		out[i] = b.state
	}
	return out
}

func (s *bufferSurface) destroy() {
	dev := s.w.d.dev
	for i := range s.bufs {
		b := &s.bufs[i]
		if b.fb != 0 {
			dev.RmFB(b.fb)
		}
		if b.dumb != nil {
			if err := dev.DestroyDumb(b.dumb); err != nil {
				s.w.d.logger.Warn("destroy dumb buffer", "error", err)
			}
		}
		*b = dumbBuffer{}
	}
	s.active, s.queued, s.shown = -1, -1, -1
}
