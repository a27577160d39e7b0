package kms

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/platform"
)

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
}

func TestDisplay_WakeupUnblocksDispatch(t *testing.T) {
	td := newTestDisplay(t, nil)
	defer td.Close()
	td.Dispatch(false)

	go func() {
		time.Sleep(20 * time.Millisecond)
		td.Wakeup()
	}()
	start := time.Now()
	if !td.Dispatch(true) {
		t.Fatalf("dispatch reported failure")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("wakeup did not unblock dispatch")
	}
}

func TestDisplay_CapabilitiesFollowDrivers(t *testing.T) {
	td := newTestDisplay(t, nil)
	caps := td.Capabilities()
	td.Close()
	if !caps.Has(platform.CapBufferSurface | platform.CapKeyboard | platform.CapMouse) {
		t.Fatalf("missing base capabilities: %b", caps)
	}
	if caps.Has(platform.CapGL) || caps.Has(platform.CapVulkan) {
		t.Fatalf("gl and vulkan need drivers: %b", caps)
	}

	td = newTestDisplay(t, func(o *Options) {
		o.GL = func(int) (GLDriver, error) { return &fakeGL{}, nil }
		o.Vulkan = &fakeVulkan{}
	})
	defer td.Close()
	caps = td.Capabilities()
	if !caps.Has(platform.CapGL) || !caps.Has(platform.CapVulkan) {
		t.Fatalf("expected gl and vulkan: %b", caps)
	}
	if got := td.VulkanExtensions(); !slices.Equal(got, []string{"VK_KHR_display"}) {
		t.Fatalf("unexpected extensions %v", got)
	}
	if td.GLProcAddr("glClear") != 0x1234 {
		t.Fatalf("proc address not forwarded")
	}
}

func TestDisplay_CloseRequiresClosedWindows(t *testing.T) {
	td := newTestDisplay(t, nil)
	w := td.bufferWindow(t, nil)
	expectPanic(t, func() { td.Close() })

	w.GetBuffer()
	if err := w.ApplyBuffer(); err != nil {
		t.Fatalf("apply: %v", err)
	}
	expectPanic(t, func() { w.Close() })

	td.dev.flip(30)
	td.Dispatch(false)
	if err := w.Close(); err != nil {
		t.Fatalf("close window: %v", err)
	}
	if err := td.Close(); err != nil {
		t.Fatalf("close display: %v", err)
	}
	if !slices.Contains(td.log.calls, "close-device") {
		t.Fatalf("device not closed: %v", td.log.calls)
	}
	if len(td.dev.blobs) != 0 {
		t.Fatalf("mode blobs leaked: %v", td.dev.blobs)
	}
	if _, err := td.CreateWindow(platform.WindowSettings{}); !errors.Is(err, platform.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if td.Dispatch(false) {
		t.Fatalf("dispatch after close must fail")
	}
}

func TestDisplay_UnsupportedWindowOperations(t *testing.T) {
	td := newTestDisplay(t, nil)
	defer td.Close()
	w := td.bufferWindow(t, nil)
	defer w.Close()

	for name, err := range map[string]error{
		"title":    w.SetTitle("x"),
		"size":     w.SetSize(10, 10),
		"position": w.SetPosition(1, 1),
		"state":    w.SetState(platform.StateMaximized),
		"move":     w.BeginMove(platform.EventToken{}),
	} {
		if !errors.Is(err, platform.ErrUnsupported) {
			t.Fatalf("%s: expected ErrUnsupported, got %v", name, err)
		}
	}
	if _, err := td.Clipboard(); !errors.Is(err, platform.ErrUnsupported) {
		t.Fatalf("clipboard: %v", err)
	}
	if w.Capabilities() != platform.WindowCapCursor {
		t.Fatalf("unexpected window caps %b", w.Capabilities())
	}
}

func TestDisplay_BufferScenario(t *testing.T) {
	td := newTestDisplay(t, nil)
	defer td.Close()

	var w *Window
	draws, resized := 0, false
	listener := &platform.Listener{
		Resize: func(_ platform.Window, width, height int) {
			resized = width == 640 && height == 480
		},
		Draw: func(platform.Window) {
			draws++
			img, err := w.GetBuffer()
			if err != nil {
				t.Fatalf("get buffer: %v", err)
			}
			for i := range img.Data {
				img.Data[i] = byte(draws)
			}
			if err := w.ApplyBuffer(); err != nil {
				t.Fatalf("apply buffer: %v", err)
			}
		},
	}
	w = td.bufferWindow(t, listener)
	if !resized {
		t.Fatalf("window not sized to the output")
	}
	for frame := 1; frame <= 5; frame++ {
		td.Dispatch(false)
		if draws != frame {
			t.Fatalf("frame %d: %d draws", frame, draws)
		}
		w.Refresh()
		td.dev.flip(30)
		td.Dispatch(false)
	}
	if n := len(td.dev.commits); n < 5 {
		t.Fatalf("expected at least 5 commits, got %d", n)
	}
	for i, c := range td.dev.commits {
		allow := c.flags&drm.AllowModeset != 0
		if allow != (i == 0) {
			t.Fatalf("commit %d: modeset flag %v", i, allow)
		}
	}
	for w.surface.pending() {
		td.dev.flip(30)
		td.Dispatch(false)
	}
	w.Close()
}

type fakeGL struct {
	surfaces []*fakeGLSurface
}

func (f *fakeGL) CreateSurface(width, height int, format uint32, _ platform.GLSettings) (GLSurface, error) {
	s := &fakeGLSurface{width: uint32(width), height: uint32(height), format: format, locked: map[uintptr]bool{}}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

func (f *fakeGL) ProcAddr(string) uintptr { return 0x1234 }
func (f *fakeGL) Close()                  {}

type fakeGLSurface struct {
	width, height, format uint32
	next                  uintptr
	locked                map[uintptr]bool
	destroyed             bool
}

func (s *fakeGLSurface) MakeCurrent() error        { return nil }
func (s *fakeGLSurface) SwapBuffers() error        { return nil }
func (s *fakeGLSurface) SetSwapInterval(int) error { return nil }

func (s *fakeGLSurface) LockFront() (BufferObject, error) {
	s.next = s.next%3 + 1
	if s.locked[s.next] {
		return BufferObject{}, errors.New("bo already locked")
	}
	s.locked[s.next] = true
	return BufferObject{ID: s.next, Handle: uint32(s.next), Stride: s.width * 4,
		Width: s.width, Height: s.height, Format: s.format}, nil
}

func (s *fakeGLSurface) Release(bo BufferObject) { delete(s.locked, bo.ID) }
func (s *fakeGLSurface) Destroy()                { s.destroyed = true }

func TestGL_SwapFlipRelease(t *testing.T) {
	gl := &fakeGL{}
	td := newTestDisplay(t, func(o *Options) {
		o.GL = func(int) (GLDriver, error) { return gl, nil }
	})
	defer td.Close()

	win, err := td.CreateWindow(platform.WindowSettings{Surface: platform.SurfaceGL})
	if err != nil {
		t.Fatalf("create gl window: %v", err)
	}
	w := win.(*Window)
	srf := gl.surfaces[0]
	if srf.width != 640 || srf.format != drm.FormatXRGB8888 {
		t.Fatalf("unexpected gl surface %+v", srf)
	}
	if _, err := w.GetBuffer(); !errors.Is(err, platform.ErrWrongSurface) {
		t.Fatalf("expected ErrWrongSurface, got %v", err)
	}

	if err := w.GLSwapBuffers(); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if err := w.GLSwapBuffers(); !errors.Is(err, platform.ErrFlipPending) {
		t.Fatalf("expected ErrFlipPending, got %v", err)
	}
	td.dev.flip(30)
	td.Dispatch(false)

	if err := w.GLSwapBuffers(); err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if len(srf.locked) != 2 {
		t.Fatalf("front and queued must stay locked: %v", srf.locked)
	}
	td.dev.flip(30)
	td.Dispatch(false)
	if len(srf.locked) != 1 || !srf.locked[2] {
		t.Fatalf("previous front not released: %v", srf.locked)
	}

	w.Close()
	if !srf.destroyed || len(srf.locked) != 0 {
		t.Fatalf("gl surface not torn down")
	}
	if len(td.dev.fbs) != 0 {
		t.Fatalf("framebuffers leaked: %v", td.dev.fbs)
	}
}

type fakeVulkan struct {
	surface *fakeVkSurface
}

func (f *fakeVulkan) Extensions() []string { return []string{"VK_KHR_display"} }

func (f *fakeVulkan) CreateSurface(_ platform.VulkanSettings, t VulkanTarget) (VulkanSurface, error) {
	f.surface = &fakeVkSurface{target: t, fences: make(chan *fakeFence, 4)}
	return f.surface, nil
}

type fakeVkSurface struct {
	target    VulkanTarget
	fences    chan *fakeFence
	destroyed bool
}

func (s *fakeVkSurface) Handle() uint64 { return 0xabc }

func (s *fakeVkSurface) NextFrame() (FrameFence, error) {
	f := &fakeFence{fired: make(chan struct{})}
	s.fences <- f
	return f, nil
}

func (s *fakeVkSurface) Destroy() { s.destroyed = true }

type fakeFence struct {
	fired chan struct{}
}

func (f *fakeFence) Wait(timeout time.Duration) (bool, error) {
	select {
	case <-f.fired:
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (f *fakeFence) Destroy() {}

func TestVulkan_FramePacing(t *testing.T) {
	vk := &fakeVulkan{}
	td := newTestDisplay(t, func(o *Options) { o.Vulkan = vk })
	defer td.Close()

	draws := 0
	listener := &platform.Listener{Draw: func(platform.Window) { draws++ }}
	if _, err := td.CreateWindow(platform.WindowSettings{Surface: platform.SurfaceVulkan, Listener: listener}); err == nil {
		t.Fatalf("vulkan window without an instance must fail")
	}
	win, err := td.CreateWindow(platform.WindowSettings{
		Surface:  platform.SurfaceVulkan,
		Vulkan:   platform.VulkanSettings{Instance: 1},
		Listener: listener,
	})
	if err != nil {
		t.Fatalf("create vulkan window: %v", err)
	}
	w := win.(*Window)
	handle, err := w.VulkanSurface()
	if err != nil || handle != 0xabc {
		t.Fatalf("surface handle %#x, %v", handle, err)
	}
	if vk.surface.target.Connector != 10 || vk.surface.target.Width != 640 {
		t.Fatalf("unexpected target %+v", vk.surface.target)
	}
	td.Dispatch(false)
	if draws != 1 {
		t.Fatalf("expected the initial draw, got %d", draws)
	}

	w.SurfaceFrame()
	w.Refresh()
	td.Dispatch(false)
	if draws != 1 {
		t.Fatalf("draw ran before the frame fence fired")
	}
	fence := <-vk.surface.fences
	close(fence.fired)
	td.dispatchUntil(t, func() bool { return draws == 2 })
	if w.surface.pending() {
		t.Fatalf("frame still outstanding")
	}

	w.SurfaceFrame()
	if err := w.Close(); err != nil {
		t.Fatalf("close with outstanding vulkan frame: %v", err)
	}
	if !vk.surface.destroyed {
		t.Fatalf("surface not destroyed")
	}
}

func TestCursor_ImageAndHidden(t *testing.T) {
	t.Setenv("XCURSOR_PATH", t.TempDir())
	td := newTestDisplay(t, nil)
	defer td.Close()
	w := td.bufferWindow(t, nil)
	defer w.Close()

	if td.dev.cursor.handle == 0 || td.dev.cursor.width != 64 {
		t.Fatalf("default cursor not shown: %+v", td.dev.cursor)
	}
	arrow := td.cursors[platform.CursorDefault]
	if arrow == nil {
		t.Fatalf("fallback arrow not cached")
	}
	if err := w.SetCursor(platform.Cursor{Type: platform.CursorHand}); err != nil {
		t.Fatalf("set hand cursor: %v", err)
	}
	if td.cursors[platform.CursorHand] != arrow {
		t.Fatalf("missing named cursor should reuse the default")
	}

	img := platform.NewImage(8, 8, platform.FormatRGBA32)
	if err := w.SetCursor(platform.Cursor{Type: platform.CursorImage, Image: img, HotspotX: 4, HotspotY: 4}); err != nil {
		t.Fatalf("set image cursor: %v", err)
	}
	if td.dev.cursor.x != -4 || td.dev.cursor.y != -4 {
		t.Fatalf("hotspot not applied: %+v", td.dev.cursor)
	}
	if err := w.SetCursor(platform.Cursor{Type: platform.CursorImage}); err == nil {
		t.Fatalf("image cursor without image must fail")
	}

	if err := w.SetCursor(platform.Cursor{Type: platform.CursorNone}); err != nil {
		t.Fatalf("hide cursor: %v", err)
	}
	if td.dev.cursor.handle != 0 {
		t.Fatalf("cursor not hidden")
	}
}
