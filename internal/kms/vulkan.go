package kms

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/1broseidon/swa/internal/platform"
	"github.com/1broseidon/swa/internal/reactor"
	"github.com/1broseidon/swa/internal/vulkan"
)

// frameTimeout bounds a single fence wait so the waiter can notice
// teardown.
const frameTimeout = 100 * time.Millisecond

// VulkanTarget identifies the connector a Vulkan surface scans out on.
type VulkanTarget struct {
	DrmFd     int
	Connector uint32
	Width     int
	Height    int
}

// VulkanDriver creates display-plane surfaces on application instances.
type VulkanDriver interface {
	Extensions() []string
	CreateSurface(settings platform.VulkanSettings, target VulkanTarget) (VulkanSurface, error)
}

type VulkanSurface interface {
	Handle() uint64
	// NextFrame registers a fence for the next first-pixel-out event. It
	// returns nil when frame pacing is unavailable.
	NextFrame() (FrameFence, error)
	Destroy()
}

type FrameFence interface {
	// Wait blocks for at most timeout and reports whether the fence fired.
	Wait(timeout time.Duration) (bool, error)
	Destroy()
}

// NewVulkanDriver returns the driver backed by libvulkan.
func NewVulkanDriver() VulkanDriver { return displayDriver{} }

type displayDriver struct{}

func (displayDriver) Extensions() []string {
	return append([]string(nil), vulkan.InstanceExtensions...)
}

func (displayDriver) CreateSurface(s platform.VulkanSettings, t VulkanTarget) (VulkanSurface, error) {
	in, err := vulkan.WrapInstance(s.Instance)
	if err != nil {
		return nil, err
	}
	phys := s.PhysicalDevice
	if phys == 0 {
		devs, err := in.PhysicalDevices()
		if err != nil {
			return nil, err
		}
		if len(devs) == 0 {
			return nil, errors.New("no vulkan physical devices")
		}
		phys = devs[0]
	}

	display, err := in.DrmDisplay(phys, t.DrmFd, t.Connector, uint32(t.Width), uint32(t.Height))
	if err != nil {
		return nil, err
	}
	modes, err := in.Modes(phys, display)
	if err != nil {
		return nil, err
	}
	mode, ok := vulkan.SelectMode(modes, uint32(t.Width), uint32(t.Height))
	if !ok {
		return nil, errors.New("display has no modes")
	}
	plane, stack, err := in.PlaneFor(phys, display)
	if err != nil {
		return nil, err
	}
	handle, err := in.CreateDisplaySurface(mode, plane, stack)
	if err != nil {
		return nil, err
	}

	out := &displaySurface{in: in, display: display, handle: handle}
	if s.Device != 0 {
		if out.dev, err = in.WrapDevice(s.Device); err != nil {
			out.dev = nil
		}
	}
	return out, nil
}

type displaySurface struct {
	in      *vulkan.Instance
	dev     *vulkan.Device
	display uint64
	handle  uint64
}

func (s *displaySurface) Handle() uint64 { return s.handle }

func (s *displaySurface) NextFrame() (FrameFence, error) {
	if s.dev == nil {
		return nil, nil
	}
	fence, err := s.dev.FirstPixelOut(s.display)
	if err != nil {
		return nil, err
	}
	return &displayFence{dev: s.dev, fence: fence}, nil
}

func (s *displaySurface) Destroy() {
	s.in.DestroySurface(s.handle)
	s.handle = 0
}

type displayFence struct {
	dev   *vulkan.Device
	fence uint64
}

func (f *displayFence) Wait(timeout time.Duration) (bool, error) {
	return f.dev.Wait(f.fence, timeout)
}

func (f *displayFence) Destroy() { f.dev.DestroyFence(f.fence) }

// vkSurface paces Vulkan frames. A waiter goroutine blocks on the frame
// fence and reports back through a reactor notifier.
type vkSurface struct {
	w        *Window
	drv      VulkanDriver
	settings platform.VulkanSettings
	srf      VulkanSurface

	outstanding bool
	notifier    *reactor.Notifier
	frames      chan FrameFence
	done        chan struct{}
	wg          sync.WaitGroup

	mu      sync.Mutex
	waitErr error
}

func newVkSurface(w *Window, settings platform.VulkanSettings) (*vkSurface, error) {
	if w.d.vk == nil {
		return nil, platform.ErrUnsupported
	}
	if settings.Instance == 0 {
		return nil, errors.New("vulkan surface requires an instance")
	}
	s := &vkSurface{
		w:        w,
		drv:      w.d.vk,
		settings: settings,
		frames:   make(chan FrameFence, 1),
		done:     make(chan struct{}),
	}
	n, err := w.d.reactor.NewNotifier(s.frameDone)
	if err != nil {
		return nil, err
	}
	s.notifier = n
	s.wg.Add(1)
	go s.waitFrames()
	return s, nil
}

func (s *vkSurface) kind() platform.SurfaceType { return platform.SurfaceVulkan }

func (s *vkSurface) pending() bool { return s.outstanding }

// flipped is a no-op: Vulkan presents never produce DRM flip events.
func (s *vkSurface) flipped() {}

func (s *vkSurface) handle() (uint64, error) {
	if s.srf == nil {
		o := s.w.out
		srf, err := s.drv.CreateSurface(s.settings, VulkanTarget{
			DrmFd:     s.w.d.dev.Fd(),
			Connector: o.connector,
			Width:     o.width(),
			Height:    o.height(),
		})
		if err != nil {
			return 0, fmt.Errorf("create vulkan display surface: %w", err)
		}
		s.srf = srf
	}
	return s.srf.Handle(), nil
}

// frame is called after the application queued a present.
func (s *vkSurface) frame() {
	if s.outstanding {
		s.w.d.logger.Warn("vulkan frame already outstanding", "window", s.w.title)
		return
	}
	var fence FrameFence
	if s.srf != nil {
		f, err := s.srf.NextFrame()
		if err != nil {
			s.w.d.logger.Debug("register display event failed", "error", err)
		}
		fence = f
	}
	if fence == nil {
		s.w.scheduleDraw()
		return
	}
	s.outstanding = true
	s.frames <- fence
}

func (s *vkSurface) waitFrames() {
	defer s.wg.Done()
	for {
		var fence FrameFence
		select {
		case fence = <-s.frames:
		case <-s.done:
			return
		}
		for {
			ok, err := fence.Wait(frameTimeout)
			if err != nil {
				s.mu.Lock()
				s.waitErr = err
				s.mu.Unlock()
				break
			}
			if ok {
				break
			}
			select {
			case <-s.done:
				fence.Destroy()
				return
			default:
			}
		}
		fence.Destroy()
		s.notifier.Notify()
	}
}

func (s *vkSurface) frameDone() {
	s.mu.Lock()
	err := s.waitErr
	s.waitErr = nil
	s.mu.Unlock()
	if err != nil {
		s.w.d.logger.Warn("waiting for vulkan frame", "error", err)
	}
	if !s.outstanding {
		return
	}
	s.outstanding = false
	s.w.frameCompleted()
}

func (s *vkSurface) destroy() {
	close(s.done)
	s.wg.Wait()
	select {
	case f := <-s.frames:
		f.Destroy()
	default:
	}
	s.outstanding = false
	s.notifier.Close()
	if s.srf != nil {
		s.srf.Destroy()
		s.srf = nil
	}
}
