// Package vulkan binds the VK_KHR_display subset used to present directly
// on a DRM connector, plus the display-event fences used for frame pacing.
//
// Handles created by the application (instance, physical device, device)
// are passed in as raw values; this package never creates them.
package vulkan

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	success = 0
	timeout = 2

	structDisplaySurfaceCreateInfo = 1000002001
	structDisplayEventInfo         = 1000091002

	transformIdentity = 0x1
	alphaOpaque       = 0x1

	displayEventFirstPixelOut = 0
)

// InstanceExtensions lists the extensions an instance must enable before
// a display surface can be created.
var InstanceExtensions = []string{
	"VK_KHR_surface",
	"VK_KHR_display",
	"VK_EXT_direct_mode_display",
	"VK_EXT_acquire_drm_display",
}

// DeviceExtensions lists device extensions needed for frame pacing.
var DeviceExtensions = []string{"VK_EXT_display_control"}

var (
	libOnce sync.Once
	libErr  error
	lib     uintptr

	vkGetInstanceProcAddr func(instance uintptr, name string) uintptr
)

func Load() error {
	libOnce.Do(func() {
		lib, libErr = purego.Dlopen("libvulkan.so.1", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if libErr != nil {
			return
		}
		purego.RegisterLibFunc(&vkGetInstanceProcAddr, lib, "vkGetInstanceProcAddr")
	})
	return libErr
}

// Result is a failed VkResult.
type Result int32

func (r Result) Error() string {
	return fmt.Sprintf("vulkan result %d", int32(r))
}

func check(op string, r int32) error {
	if r == success {
		return nil
	}
	return fmt.Errorf("%s: %w", op, Result(r))
}

type displayProperties struct {
	display              uint64
	name                 uintptr
	physWidth            uint32
	physHeight           uint32
	resWidth             uint32
	resHeight            uint32
	supportedTransforms  uint32
	planeReorderPossible uint32
	persistentContent    uint32
	_                    uint32
}

type displayPlaneProperties struct {
	currentDisplay    uint64
	currentStackIndex uint32
	_                 uint32
}

// ModeProperties mirrors VkDisplayModePropertiesKHR.
type ModeProperties struct {
	Mode    uint64
	Width   uint32
	Height  uint32
	Refresh uint32 // mHz
	_       uint32
}

type displaySurfaceCreateInfo struct {
	sType           uint32
	pNext           uintptr
	flags           uint32
	displayMode     uint64
	planeIndex      uint32
	planeStackIndex uint32
	transform       uint32
	globalAlpha     float32
	alphaMode       uint32
	width           uint32
	height          uint32
}

type displayEventInfo struct {
	sType        uint32
	pNext        uintptr
	displayEvent uint32
}

// Instance holds the instance-level entry points for one VkInstance.
type Instance struct {
	handle uintptr

	enumeratePhysicalDevices        func(inst uintptr, count *uint32, out unsafe.Pointer) int32
	getDisplayProperties            func(phys uintptr, count *uint32, out unsafe.Pointer) int32
	getDisplayPlaneProperties       func(phys uintptr, count *uint32, out unsafe.Pointer) int32
	getDisplayPlaneSupportedDisplay func(phys uintptr, plane uint32, count *uint32, out unsafe.Pointer) int32
	getDisplayModeProperties        func(phys uintptr, display uint64, count *uint32, out unsafe.Pointer) int32
	createDisplayPlaneSurface       func(inst uintptr, info unsafe.Pointer, alloc uintptr, out *uint64) int32
	destroySurface                  func(inst uintptr, surface uint64, alloc uintptr)
	getDrmDisplay                   func(phys uintptr, fd int32, connector uint32, out *uint64) int32
	acquireDrmDisplay               func(phys uintptr, fd int32, display uint64) int32
	getDeviceProcAddr               func(device uintptr, name string) uintptr
}

// WrapInstance resolves entry points on an application instance.
func WrapInstance(handle uintptr) (*Instance, error) {
	if handle == 0 {
		return nil, errors.New("nil VkInstance")
	}
	if err := Load(); err != nil {
		return nil, fmt.Errorf("load libvulkan: %w", err)
	}
	in := &Instance{handle: handle}
	required := []struct {
		name string
		fn   any
	}{
		{"vkEnumeratePhysicalDevices", &in.enumeratePhysicalDevices},
		{"vkGetPhysicalDeviceDisplayPropertiesKHR", &in.getDisplayProperties},
		{"vkGetPhysicalDeviceDisplayPlanePropertiesKHR", &in.getDisplayPlaneProperties},
		{"vkGetDisplayPlaneSupportedDisplaysKHR", &in.getDisplayPlaneSupportedDisplay},
		{"vkGetDisplayModePropertiesKHR", &in.getDisplayModeProperties},
		{"vkCreateDisplayPlaneSurfaceKHR", &in.createDisplayPlaneSurface},
		{"vkDestroySurfaceKHR", &in.destroySurface},
		{"vkGetDeviceProcAddr", &in.getDeviceProcAddr},
	}
	for _, r := range required {
		p := vkGetInstanceProcAddr(handle, r.name)
		if p == 0 {
			return nil, fmt.Errorf("%s not available, is VK_KHR_display enabled?", r.name)
		}
		purego.RegisterFunc(r.fn, p)
	}
	if p := vkGetInstanceProcAddr(handle, "vkGetDrmDisplayEXT"); p != 0 {
		purego.RegisterFunc(&in.getDrmDisplay, p)
	}
	if p := vkGetInstanceProcAddr(handle, "vkAcquireDrmDisplayEXT"); p != 0 {
		purego.RegisterFunc(&in.acquireDrmDisplay, p)
	}
	return in, nil
}

func (in *Instance) Handle() uintptr { return in.handle }

func (in *Instance) PhysicalDevices() ([]uintptr, error) {
	var n uint32
	if err := check("vkEnumeratePhysicalDevices", in.enumeratePhysicalDevices(in.handle, &n, nil)); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	devs := make([]uintptr, n)
	if err := check("vkEnumeratePhysicalDevices", in.enumeratePhysicalDevices(in.handle, &n, unsafe.Pointer(&devs[0]))); err != nil {
		return nil, err
	}
	return devs[:n], nil
}

// DrmDisplay returns the VkDisplayKHR driving a DRM connector and acquires
// it for direct use. Without VK_EXT_acquire_drm_display it falls back to
// the first display whose resolution matches width x height.
func (in *Instance) DrmDisplay(phys uintptr, drmFd int, connector uint32, width, height uint32) (uint64, error) {
	if in.getDrmDisplay != nil {
		var display uint64
		if err := check("vkGetDrmDisplayEXT", in.getDrmDisplay(phys, int32(drmFd), connector, &display)); err != nil {
			return 0, err
		}
		if in.acquireDrmDisplay != nil {
			if err := check("vkAcquireDrmDisplayEXT", in.acquireDrmDisplay(phys, int32(drmFd), display)); err != nil {
				return 0, err
			}
		}
		return display, nil
	}

	var n uint32
	if err := check("vkGetPhysicalDeviceDisplayPropertiesKHR", in.getDisplayProperties(phys, &n, nil)); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("physical device exposes no displays")
	}
	props := make([]displayProperties, n)
	if err := check("vkGetPhysicalDeviceDisplayPropertiesKHR", in.getDisplayProperties(phys, &n, unsafe.Pointer(&props[0]))); err != nil {
		return 0, err
	}
	for _, p := range props[:n] {
		if p.resWidth == width && p.resHeight == height {
			return p.display, nil
		}
	}
	return props[0].display, nil
}

// Modes lists the modes a display supports.
func (in *Instance) Modes(phys uintptr, display uint64) ([]ModeProperties, error) {
	var n uint32
	if err := check("vkGetDisplayModePropertiesKHR", in.getDisplayModeProperties(phys, display, &n, nil)); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	modes := make([]ModeProperties, n)
	if err := check("vkGetDisplayModePropertiesKHR", in.getDisplayModeProperties(phys, display, &n, unsafe.Pointer(&modes[0]))); err != nil {
		return nil, err
	}
	return modes[:n], nil
}

// PlaneFor returns the first plane able to show display, and its stack index.
func (in *Instance) PlaneFor(phys uintptr, display uint64) (plane, stack uint32, err error) {
	var n uint32
	if err := check("vkGetPhysicalDeviceDisplayPlanePropertiesKHR", in.getDisplayPlaneProperties(phys, &n, nil)); err != nil {
		return 0, 0, err
	}
	if n == 0 {
		return 0, 0, errors.New("no display planes")
	}
	planes := make([]displayPlaneProperties, n)
	if err := check("vkGetPhysicalDeviceDisplayPlanePropertiesKHR", in.getDisplayPlaneProperties(phys, &n, unsafe.Pointer(&planes[0]))); err != nil {
		return 0, 0, err
	}
	for i := uint32(0); i < n; i++ {
		if planes[i].currentDisplay != 0 && planes[i].currentDisplay != display {
			continue
		}
		var m uint32
		if in.getDisplayPlaneSupportedDisplay(phys, i, &m, nil) != success || m == 0 {
			continue
		}
		supported := make([]uint64, m)
		if in.getDisplayPlaneSupportedDisplay(phys, i, &m, unsafe.Pointer(&supported[0])) != success {
			continue
		}
		for _, d := range supported[:m] {
			if d == display {
				return i, planes[i].currentStackIndex, nil
			}
		}
	}
	return 0, 0, errors.New("no plane supports the display")
}

// SelectMode picks the mode matching width x height with the highest
// refresh rate, or the first mode when nothing matches.
func SelectMode(modes []ModeProperties, width, height uint32) (ModeProperties, bool) {
	if len(modes) == 0 {
		return ModeProperties{}, false
	}
	best, found := modes[0], false
	for _, m := range modes {
		if m.Width != width || m.Height != height {
			continue
		}
		if !found || m.Refresh > best.Refresh {
			best, found = m, true
		}
	}
	return best, true
}

// CreateDisplaySurface creates a VkSurfaceKHR scanning out on plane.
func (in *Instance) CreateDisplaySurface(mode ModeProperties, plane, stack uint32) (uint64, error) {
	info := displaySurfaceCreateInfo{
		sType:           structDisplaySurfaceCreateInfo,
		displayMode:     mode.Mode,
		planeIndex:      plane,
		planeStackIndex: stack,
		transform:       transformIdentity,
		globalAlpha:     1,
		alphaMode:       alphaOpaque,
		width:           mode.Width,
		height:          mode.Height,
	}
	var surface uint64
	if err := check("vkCreateDisplayPlaneSurfaceKHR", in.createDisplayPlaneSurface(in.handle, unsafe.Pointer(&info), 0, &surface)); err != nil {
		return 0, err
	}
	return surface, nil
}

func (in *Instance) DestroySurface(surface uint64) {
	if surface != 0 {
		in.destroySurface(in.handle, surface, 0)
	}
}

// Device holds the device-level entry points used for display events.
type Device struct {
	handle uintptr

	registerDisplayEvent func(dev uintptr, display uint64, info unsafe.Pointer, alloc uintptr, fence *uint64) int32
	waitForFences        func(dev uintptr, count uint32, fences *uint64, waitAll uint32, timeout uint64) int32
	destroyFence         func(dev uintptr, fence uint64, alloc uintptr)
}

// WrapDevice resolves device entry points. It fails when the device was
// created without VK_EXT_display_control.
func (in *Instance) WrapDevice(handle uintptr) (*Device, error) {
	if handle == 0 {
		return nil, errors.New("nil VkDevice")
	}
	d := &Device{handle: handle}
	for _, r := range []struct {
		name string
		fn   any
	}{
		{"vkRegisterDisplayEventEXT", &d.registerDisplayEvent},
		{"vkWaitForFences", &d.waitForFences},
		{"vkDestroyFence", &d.destroyFence},
	} {
		p := in.getDeviceProcAddr(handle, r.name)
		if p == 0 {
			return nil, fmt.Errorf("%s not available", r.name)
		}
		purego.RegisterFunc(r.fn, p)
	}
	return d, nil
}

// FirstPixelOut registers a fence signalled when the next frame starts
// scanning out on display.
func (d *Device) FirstPixelOut(display uint64) (uint64, error) {
	info := displayEventInfo{sType: structDisplayEventInfo, displayEvent: displayEventFirstPixelOut}
	var fence uint64
	if err := check("vkRegisterDisplayEventEXT", d.registerDisplayEvent(d.handle, display, unsafe.Pointer(&info), 0, &fence)); err != nil {
		return 0, err
	}
	return fence, nil
}

// Wait blocks until fence is signalled or the timeout elapses.
func (d *Device) Wait(fence uint64, limit time.Duration) (bool, error) {
	switch r := d.waitForFences(d.handle, 1, &fence, 1, uint64(limit.Nanoseconds())); r {
	case success:
		return true, nil
	case timeout:
		return false, nil
	default:
		return false, check("vkWaitForFences", r)
	}
}

func (d *Device) DestroyFence(fence uint64) {
	if fence != 0 {
		d.destroyFence(d.handle, fence, 0)
	}
}
