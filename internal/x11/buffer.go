package x11

import (
	"image"

	"github.com/BurntSushi/xgbutil/xgraphics"

	"github.com/1broseidon/swa/internal/platform"
)

// bufferSurface is a client-side BGRA image painted onto the window.
// The X server copies it synchronously, so a present completes on the
// next dispatch.
type bufferSurface struct {
	w       *Window
	img     *xgraphics.Image
	active  bool
	pending bool
}

func (s *bufferSurface) get() (platform.Image, error) {
	switch {
	case s.active:
		return platform.Image{}, platform.ErrBufferActive
	case s.pending:
		return platform.Image{}, platform.ErrFlipPending
	}
	if err := s.ensure(); err != nil {
		return platform.Image{}, err
	}
	s.active = true
	b := s.img.Rect
	return platform.Image{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: s.img.Stride,
		Format: platform.FormatBGRA32,
		Data:   s.img.Pix,
	}, nil
}

// ensure (re)creates the image when the window size changed.
func (s *bufferSurface) ensure() error {
	width, height := s.w.width, s.w.height
	if s.img != nil && s.img.Rect.Dx() == width && s.img.Rect.Dy() == height {
		return nil
	}
	if s.img != nil {
		s.img.Destroy()
		s.img = nil
	}
	img := xgraphics.New(s.w.d.conn.XUtil, image.Rect(0, 0, width, height))
	if err := img.XSurfaceSet(s.w.id); err != nil {
		img.Destroy()
		return err
	}
	s.img = img
	return nil
}

func (s *bufferSurface) apply() error {
	if !s.active {
		return platform.ErrNoActiveBuffer
	}
	s.active = false
	s.img.XDraw()
	s.img.XPaint(s.w.id)
	s.pending = true
	s.w.d.later(func() {
		s.pending = false
		s.w.frameCompleted()
	})
	return nil
}

func (s *bufferSurface) destroy() {
	if s.img != nil {
		s.img.Destroy()
		s.img = nil
	}
}
