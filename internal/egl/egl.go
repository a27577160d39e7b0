// Package egl binds libEGL for GL contexts on GBM surfaces.
package egl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

const (
	none             = 0x3038
	surfaceType      = 0x3033
	windowBit        = 0x0004
	redSize          = 0x3024
	greenSize        = 0x3023
	blueSize         = 0x3022
	alphaSize        = 0x3021
	depthSize        = 0x3025
	stencilSize      = 0x3026
	samples          = 0x3031
	renderableType   = 0x3040
	nativeVisualID   = 0x302e
	openGLBit        = 0x0008
	openGLES2Bit     = 0x0004
	openGLES3Bit     = 0x0040
	openGLAPI        = 0x30a2
	openGLESAPI      = 0x30a0
	platformGBMKHR   = 0x31d7
	contextMajor     = 0x3098
	contextMinor     = 0x30fb
	contextProfile   = 0x30fd
	contextDebug     = 0x31b0
	coreProfileBit   = 0x1
	compatProfileBit = 0x2
	colorspace       = 0x309d
	colorspaceSRGB   = 0x3089
)

var (
	libOnce sync.Once
	libErr  error
	lib     uintptr

	eglGetProcAddress        func(name string) uintptr
	eglGetDisplay            func(native uintptr) uintptr
	eglInitialize            func(dpy uintptr, major, minor *int32) uint32
	eglTerminate             func(dpy uintptr) uint32
	eglBindAPI               func(api uint32) uint32
	eglChooseConfig          func(dpy uintptr, attribs *int32, configs *uintptr, size int32, num *int32) uint32
	eglGetConfigAttrib       func(dpy, cfg uintptr, attr int32, value *int32) uint32
	eglCreateContext         func(dpy, cfg, share uintptr, attribs *int32) uintptr
	eglDestroyContext        func(dpy, ctx uintptr) uint32
	eglCreateWindowSurface   func(dpy, cfg, win uintptr, attribs *int32) uintptr
	eglDestroySurface        func(dpy, surface uintptr) uint32
	eglMakeCurrent           func(dpy, draw, read, ctx uintptr) uint32
	eglSwapBuffers           func(dpy, surface uintptr) uint32
	eglSwapInterval          func(dpy uintptr, interval int32) uint32
	eglGetError              func() int32
	eglGetPlatformDisplayEXT func(platform uint32, native uintptr, attribs *int32) uintptr
)

func Load() error {
	libOnce.Do(func() {
		lib, libErr = purego.Dlopen("libEGL.so.1", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if libErr != nil {
			return
		}
		purego.RegisterLibFunc(&eglGetProcAddress, lib, "eglGetProcAddress")
		purego.RegisterLibFunc(&eglGetDisplay, lib, "eglGetDisplay")
		purego.RegisterLibFunc(&eglInitialize, lib, "eglInitialize")
		purego.RegisterLibFunc(&eglTerminate, lib, "eglTerminate")
		purego.RegisterLibFunc(&eglBindAPI, lib, "eglBindAPI")
		purego.RegisterLibFunc(&eglChooseConfig, lib, "eglChooseConfig")
		purego.RegisterLibFunc(&eglGetConfigAttrib, lib, "eglGetConfigAttrib")
		purego.RegisterLibFunc(&eglCreateContext, lib, "eglCreateContext")
		purego.RegisterLibFunc(&eglDestroyContext, lib, "eglDestroyContext")
		purego.RegisterLibFunc(&eglCreateWindowSurface, lib, "eglCreateWindowSurface")
		purego.RegisterLibFunc(&eglDestroySurface, lib, "eglDestroySurface")
		purego.RegisterLibFunc(&eglMakeCurrent, lib, "eglMakeCurrent")
		purego.RegisterLibFunc(&eglSwapBuffers, lib, "eglSwapBuffers")
		purego.RegisterLibFunc(&eglSwapInterval, lib, "eglSwapInterval")
		purego.RegisterLibFunc(&eglGetError, lib, "eglGetError")
		if p := eglGetProcAddress("eglGetPlatformDisplayEXT"); p != 0 {
			purego.RegisterFunc(&eglGetPlatformDisplayEXT, p)
		}
	})
	return libErr
}

func lastError(op string) error {
	return fmt.Errorf("%s failed: egl error %#x", op, eglGetError())
}

// Display is an initialized EGLDisplay on a GBM device.
type Display struct {
	dpy uintptr
}

// OpenGBM initializes EGL on a gbm_device pointer.
func OpenGBM(gbmDevice uintptr) (*Display, error) {
	if err := Load(); err != nil {
		return nil, fmt.Errorf("load libEGL: %w", err)
	}
	var dpy uintptr
	if eglGetPlatformDisplayEXT != nil {
		dpy = eglGetPlatformDisplayEXT(platformGBMKHR, gbmDevice, nil)
	} else {
		dpy = eglGetDisplay(gbmDevice)
	}
	if dpy == 0 {
		return nil, errors.New("no EGL display for gbm device")
	}
	var major, minor int32
	if eglInitialize(dpy, &major, &minor) == 0 {
		return nil, lastError("eglInitialize")
	}
	return &Display{dpy: dpy}, nil
}

func (d *Display) ProcAddress(name string) uintptr {
	return eglGetProcAddress(name)
}

func (d *Display) Terminate() {
	if d.dpy != 0 {
		eglTerminate(d.dpy)
		d.dpy = 0
	}
}

// Config requests an EGL framebuffer configuration and context.
type Config struct {
	GLES        bool
	Major       int
	Minor       int
	Core        bool
	Debug       bool
	DepthBits   int
	StencilBits int
	Samples     int
	SRGB        bool
	Alpha       bool
	// Format is the GBM/DRM fourcc the config's native visual must match.
	Format uint32
}

// Window is a context plus window surface on a GBM surface.
type Window struct {
	d   *Display
	ctx uintptr
	srf uintptr
}

func (d *Display) CreateWindow(nativeWindow uintptr, cfg Config) (*Window, error) {
	api, bit := uint32(openGLAPI), int32(openGLBit)
	if cfg.GLES {
		api, bit = openGLESAPI, openGLES2Bit
		if cfg.Major >= 3 {
			bit = openGLES3Bit
		}
	}
	if eglBindAPI(api) == 0 {
		return nil, lastError("eglBindAPI")
	}

	alpha := int32(0)
	if cfg.Alpha {
		alpha = 8
	}
	attribs := []int32{
		surfaceType, windowBit,
		renderableType, bit,
		redSize, 8, greenSize, 8, blueSize, 8, alphaSize, alpha,
		depthSize, int32(cfg.DepthBits),
		stencilSize, int32(cfg.StencilBits),
		samples, int32(cfg.Samples),
		none,
	}
	configs := make([]uintptr, 64)
	var n int32
	if eglChooseConfig(d.dpy, &attribs[0], &configs[0], int32(len(configs)), &n) == 0 || n == 0 {
		return nil, lastError("eglChooseConfig")
	}
	config := configs[0]
	for _, c := range configs[:n] {
		var id int32
		if eglGetConfigAttrib(d.dpy, c, nativeVisualID, &id) != 0 && uint32(id) == cfg.Format {
			config = c
			break
		}
	}

	ctxAttribs := []int32{}
	if cfg.Major > 0 {
		ctxAttribs = append(ctxAttribs, contextMajor, int32(cfg.Major), contextMinor, int32(cfg.Minor))
	}
	if !cfg.GLES && cfg.Major >= 3 {
		profile := int32(compatProfileBit)
		if cfg.Core {
			profile = coreProfileBit
		}
		ctxAttribs = append(ctxAttribs, contextProfile, profile)
	}
	if cfg.Debug {
		ctxAttribs = append(ctxAttribs, contextDebug, 1)
	}
	ctxAttribs = append(ctxAttribs, none)

	ctx := eglCreateContext(d.dpy, config, 0, &ctxAttribs[0])
	if ctx == 0 {
		return nil, lastError("eglCreateContext")
	}

	srfAttribs := []int32{none}
	if cfg.SRGB {
		srfAttribs = []int32{colorspace, colorspaceSRGB, none}
	}
	srf := eglCreateWindowSurface(d.dpy, config, nativeWindow, &srfAttribs[0])
	if srf == 0 {
		err := lastError("eglCreateWindowSurface")
		eglDestroyContext(d.dpy, ctx)
		return nil, err
	}
	return &Window{d: d, ctx: ctx, srf: srf}, nil
}

func (w *Window) MakeCurrent() error {
	if eglMakeCurrent(w.d.dpy, w.srf, w.srf, w.ctx) == 0 {
		return lastError("eglMakeCurrent")
	}
	return nil
}

func (w *Window) SwapBuffers() error {
	if eglSwapBuffers(w.d.dpy, w.srf) == 0 {
		return lastError("eglSwapBuffers")
	}
	return nil
}

func (w *Window) SwapInterval(interval int) error {
	if eglSwapInterval(w.d.dpy, int32(interval)) == 0 {
		return lastError("eglSwapInterval")
	}
	return nil
}

func (w *Window) Destroy() {
	if w.ctx == 0 {
		return
	}
	eglMakeCurrent(w.d.dpy, 0, 0, 0)
	eglDestroySurface(w.d.dpy, w.srf)
	eglDestroyContext(w.d.dpy, w.ctx)
	w.ctx, w.srf = 0, 0
}
