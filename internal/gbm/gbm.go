// Package gbm binds the parts of libgbm needed to scan out GL rendering.
package gbm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

const (
	BoUseScanout   = 1 << 0
	BoUseRendering = 1 << 2
)

var (
	libOnce sync.Once
	libErr  error
	lib     uintptr

	gbmCreateDevice           func(fd int32) uintptr
	gbmDeviceDestroy          func(dev uintptr)
	gbmSurfaceCreate          func(dev uintptr, width, height, format, flags uint32) uintptr
	gbmSurfaceDestroy         func(surface uintptr)
	gbmSurfaceLockFrontBuffer func(surface uintptr) uintptr
	gbmSurfaceReleaseBuffer   func(surface, bo uintptr)
	gbmSurfaceHasFreeBuffers  func(surface uintptr) int32
	gbmBoGetHandle            func(bo uintptr) uint64
	gbmBoGetStride            func(bo uintptr) uint32
	gbmBoGetWidth             func(bo uintptr) uint32
	gbmBoGetHeight            func(bo uintptr) uint32
	gbmBoGetFormat            func(bo uintptr) uint32
)

// Load opens libgbm. It is safe to call repeatedly.
func Load() error {
	libOnce.Do(func() {
		lib, libErr = purego.Dlopen("libgbm.so.1", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if libErr != nil {
			return
		}
		purego.RegisterLibFunc(&gbmCreateDevice, lib, "gbm_create_device")
		purego.RegisterLibFunc(&gbmDeviceDestroy, lib, "gbm_device_destroy")
		purego.RegisterLibFunc(&gbmSurfaceCreate, lib, "gbm_surface_create")
		purego.RegisterLibFunc(&gbmSurfaceDestroy, lib, "gbm_surface_destroy")
		purego.RegisterLibFunc(&gbmSurfaceLockFrontBuffer, lib, "gbm_surface_lock_front_buffer")
		purego.RegisterLibFunc(&gbmSurfaceReleaseBuffer, lib, "gbm_surface_release_buffer")
		purego.RegisterLibFunc(&gbmSurfaceHasFreeBuffers, lib, "gbm_surface_has_free_buffers")
		purego.RegisterLibFunc(&gbmBoGetHandle, lib, "gbm_bo_get_handle")
		purego.RegisterLibFunc(&gbmBoGetStride, lib, "gbm_bo_get_stride")
		purego.RegisterLibFunc(&gbmBoGetWidth, lib, "gbm_bo_get_width")
		purego.RegisterLibFunc(&gbmBoGetHeight, lib, "gbm_bo_get_height")
		purego.RegisterLibFunc(&gbmBoGetFormat, lib, "gbm_bo_get_format")
	})
	return libErr
}

// Device wraps struct gbm_device created on a DRM fd.
type Device struct {
	ptr uintptr
}

func CreateDevice(fd int) (*Device, error) {
	if err := Load(); err != nil {
		return nil, fmt.Errorf("load libgbm: %w", err)
	}
	p := gbmCreateDevice(int32(fd))
	if p == 0 {
		return nil, errors.New("gbm_create_device failed")
	}
	return &Device{ptr: p}, nil
}

// Pointer returns the native gbm_device pointer.
func (d *Device) Pointer() uintptr { return d.ptr }

func (d *Device) Destroy() {
	if d.ptr != 0 {
		gbmDeviceDestroy(d.ptr)
		d.ptr = 0
	}
}

type Surface struct {
	ptr uintptr
}

func (d *Device) CreateSurface(width, height, format, flags uint32) (*Surface, error) {
	p := gbmSurfaceCreate(d.ptr, width, height, format, flags)
	if p == 0 {
		return nil, fmt.Errorf("gbm_surface_create %dx%d failed", width, height)
	}
	return &Surface{ptr: p}, nil
}

// Pointer returns the native gbm_surface pointer, used as EGL native window.
func (s *Surface) Pointer() uintptr { return s.ptr }

// LockFront locks the buffer just rendered by eglSwapBuffers.
func (s *Surface) LockFront() (*BO, error) {
	p := gbmSurfaceLockFrontBuffer(s.ptr)
	if p == 0 {
		return nil, errors.New("gbm_surface_lock_front_buffer failed")
	}
	return &BO{ptr: p}, nil
}

func (s *Surface) Release(bo *BO) {
	if bo != nil && bo.ptr != 0 {
		gbmSurfaceReleaseBuffer(s.ptr, bo.ptr)
	}
}

func (s *Surface) HasFreeBuffers() bool {
	return gbmSurfaceHasFreeBuffers(s.ptr) != 0
}

func (s *Surface) Destroy() {
	if s.ptr != 0 {
		gbmSurfaceDestroy(s.ptr)
		s.ptr = 0
	}
}

// BO is a locked gbm_bo.
type BO struct {
	ptr uintptr
}

func (b *BO) Pointer() uintptr { return b.ptr }
func (b *BO) Handle() uint32   { return uint32(gbmBoGetHandle(b.ptr)) }
func (b *BO) Stride() uint32   { return gbmBoGetStride(b.ptr) }
func (b *BO) Width() uint32    { return gbmBoGetWidth(b.ptr) }
func (b *BO) Height() uint32   { return gbmBoGetHeight(b.ptr) }
func (b *BO) Format() uint32   { return gbmBoGetFormat(b.ptr) }
