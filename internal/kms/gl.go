package kms

import (
	"fmt"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/egl"
	"github.com/1broseidon/swa/internal/gbm"
	"github.com/1broseidon/swa/internal/platform"
)

// GLDriver creates GL surfaces whose front buffers can be scanned out.
type GLDriver interface {
	CreateSurface(width, height int, format uint32, settings platform.GLSettings) (GLSurface, error)
	ProcAddr(name string) uintptr
	Close()
}

// GLSurface is a rendering target backed by a chain of buffer objects.
type GLSurface interface {
	MakeCurrent() error
	SwapBuffers() error
	SetSwapInterval(interval int) error
	// LockFront locks the buffer produced by the last SwapBuffers.
	LockFront() (BufferObject, error)
	Release(bo BufferObject)
	Destroy()
}

// BufferObject describes a locked GBM buffer.
type BufferObject struct {
	ID     uintptr
	Handle uint32
	Stride uint32
	Width  uint32
	Height uint32
	Format uint32
}

// NewGLDriver sets up GBM and EGL on a DRM fd.
func NewGLDriver(fd int) (GLDriver, error) {
	dev, err := gbm.CreateDevice(fd)
	if err != nil {
		return nil, err
	}
	dpy, err := egl.OpenGBM(dev.Pointer())
	if err != nil {
		dev.Destroy()
		return nil, err
	}
	return &gbmDriver{dev: dev, dpy: dpy}, nil
}

type gbmDriver struct {
	dev *gbm.Device
	dpy *egl.Display
}

func (g *gbmDriver) CreateSurface(width, height int, format uint32, s platform.GLSettings) (GLSurface, error) {
	srf, err := g.dev.CreateSurface(uint32(width), uint32(height), format, gbm.BoUseScanout|gbm.BoUseRendering)
	if err != nil {
		return nil, err
	}
	win, err := g.dpy.CreateWindow(srf.Pointer(), egl.Config{
		GLES:        s.API == platform.GLAPIGLES,
		Major:       s.Major,
		Minor:       s.Minor,
		Core:        !s.Compat,
		Debug:       s.Debug,
		DepthBits:   s.DepthBits,
		StencilBits: s.StencilBits,
		Samples:     s.Samples,
		SRGB:        s.SRGB,
		Alpha:       format == drm.FormatARGB8888,
		Format:      format,
	})
	if err != nil {
		srf.Destroy()
		return nil, err
	}
	return &gbmSurface{srf: srf, win: win, locked: make(map[uintptr]*gbm.BO)}, nil
}

func (g *gbmDriver) ProcAddr(name string) uintptr { return g.dpy.ProcAddress(name) }

func (g *gbmDriver) Close() {
	g.dpy.Terminate()
	g.dev.Destroy()
}

type gbmSurface struct {
	srf    *gbm.Surface
	win    *egl.Window
	locked map[uintptr]*gbm.BO
}

func (s *gbmSurface) MakeCurrent() error          { return s.win.MakeCurrent() }
func (s *gbmSurface) SwapBuffers() error          { return s.win.SwapBuffers() }
func (s *gbmSurface) SetSwapInterval(i int) error { return s.win.SwapInterval(i) }

func (s *gbmSurface) LockFront() (BufferObject, error) {
	bo, err := s.srf.LockFront()
	if err != nil {
		return BufferObject{}, err
	}
	s.locked[bo.Pointer()] = bo
	return BufferObject{
		ID:     bo.Pointer(),
		Handle: bo.Handle(),
		Stride: bo.Stride(),
		Width:  bo.Width(),
		Height: bo.Height(),
		Format: bo.Format(),
	}, nil
}

func (s *gbmSurface) Release(b BufferObject) {
	if bo, ok := s.locked[b.ID]; ok {
		s.srf.Release(bo)
		delete(s.locked, b.ID)
	}
}

func (s *gbmSurface) Destroy() {
	for id, bo := range s.locked {
		s.srf.Release(bo)
		delete(s.locked, id)
	}
	s.win.Destroy()
	s.srf.Destroy()
}

// glSurface presents GBM front buffers. The buffer on screen stays locked
// until the next flip completes.
type glSurface struct {
	w      *Window
	srf    GLSurface
	fbs    map[uintptr]uint32
	front  *BufferObject
	queued *BufferObject
}

func newGLSurface(w *Window, settings platform.GLSettings) (*glSurface, error) {
	drv, err := w.d.glDriver()
	if err != nil {
		return nil, err
	}
	format := uint32(drm.FormatXRGB8888)
	if w.transparent {
		format = drm.FormatARGB8888
	}
	srf, err := drv.CreateSurface(w.out.width(), w.out.height(), format, settings)
	if err != nil {
		return nil, fmt.Errorf("create gl surface: %w", err)
	}
	return &glSurface{w: w, srf: srf, fbs: make(map[uintptr]uint32)}, nil
}

func (s *glSurface) kind() platform.SurfaceType { return platform.SurfaceGL }

func (s *glSurface) pending() bool { return s.queued != nil }

func (s *glSurface) swap() error {
	if s.queued != nil {
		return platform.ErrFlipPending
	}
	if err := s.srf.SwapBuffers(); err != nil {
		return err
	}
	bo, err := s.srf.LockFront()
	if err != nil {
		return err
	}
	fb, err := s.framebuffer(bo)
	if err != nil {
		s.srf.Release(bo)
		return err
	}
	if err := s.w.present(fb, int(bo.Width), int(bo.Height)); err != nil {
		s.srf.Release(bo)
		return err
	}
	s.queued = &bo
	return nil
}

func (s *glSurface) framebuffer(bo BufferObject) (uint32, error) {
	if fb, ok := s.fbs[bo.ID]; ok {
		return fb, nil
	}
	fb, err := s.w.d.dev.AddFB2(bo.Width, bo.Height, bo.Format,
		[4]uint32{bo.Handle}, [4]uint32{bo.Stride}, [4]uint32{})
	if err != nil {
		return 0, fmt.Errorf("add framebuffer for gbm bo: %w", err)
	}
	s.fbs[bo.ID] = fb
	return fb, nil
}

func (s *glSurface) flipped() {
	if s.queued == nil {
		return
	}
	if s.front != nil {
		s.srf.Release(*s.front)
	}
	s.front, s.queued = s.queued, nil
}

func (s *glSurface) destroy() {
	if s.front != nil {
		s.srf.Release(*s.front)
		s.front = nil
	}
	for id, fb := range s.fbs {
		s.w.d.dev.RmFB(fb)
		delete(s.fbs, id)
	}
	s.srf.Destroy()
}
