package platform

// DisplayCap is a bitset of features a display backend supports.
type DisplayCap uint32

const (
	CapGL DisplayCap = 1 << iota
	CapVulkan
	CapBufferSurface
	CapClientDecoration
	CapServerDecoration
	CapKeyboard
	CapMouse
	CapTouch
	CapDataOffer
	CapDnD
	CapKeyboardText
)

// Has reports whether every bit of c is set.
func (d DisplayCap) Has(c DisplayCap) bool { return d&c == c }

// WindowCap is a bitset of operations a window supports.
type WindowCap uint32

const (
	WindowCapSize WindowCap = 1 << iota
	WindowCapPosition
	WindowCapMinSize
	WindowCapMaxSize
	WindowCapCursor
	WindowCapTitle
	WindowCapIcon
	WindowCapVisibility
	WindowCapFullscreen
	WindowCapMaximize
	WindowCapMinimize
	WindowCapBeginMove
	WindowCapBeginResize
)

func (w WindowCap) Has(c WindowCap) bool { return w&c == c }

// OutputInfo describes a physical output driven by a display.
type OutputInfo struct {
	ID      int
	Name    string
	X       int
	Y       int
	Width   int
	Height  int
	Refresh int // mHz, 0 when unknown
}

// Display abstracts a connection to a window system.
//
// All methods except Wakeup must be called from the goroutine that calls
// Dispatch. Listener callbacks run inside Dispatch.
type Display interface {
	Capabilities() DisplayCap
	// Dispatch reads and handles pending events. With block set it waits
	// until at least one event source fired or Wakeup was called.
	// It returns false once the display hit a fatal error or a quit was
	// requested.
	Dispatch(block bool) bool
	// Wakeup interrupts a blocked Dispatch. Safe from any goroutine.
	Wakeup()
	CreateWindow(settings WindowSettings) (Window, error)

	KeyPressed(key Keycode) bool
	KeyName(key Keycode) string
	Modifiers() Modifiers
	MouseButtonPressed(button MouseButton) bool
	MousePosition() (x, y int)
	MouseOver() Window
	KeyboardFocus() Window

	Clipboard() (DataOffer, error)
	SetClipboard(src DataSource) error
	StartDnD(src DataSource) error

	GLProcAddr(name string) uintptr
	VulkanExtensions() []string

	Close() error
}

// OutputLister is implemented by displays that can enumerate outputs.
type OutputLister interface {
	Outputs() []OutputInfo
}

// Window is a top-level surface created by a Display.
type Window interface {
	Capabilities() WindowCap
	SetMinSize(width, height int) error
	SetMaxSize(width, height int) error
	Show(visible bool) error
	SetSize(width, height int) error
	SetPosition(x, y int) error
	SetCursor(cursor Cursor) error
	// Refresh requests a Draw callback. Multiple requests before the draw
	// runs are coalesced.
	Refresh()
	// SurfaceFrame signals that a frame was submitted through an external
	// API (GL or Vulkan) so the backend can throttle the next Draw.
	SurfaceFrame()
	SetState(state WindowState) error
	BeginMove(trigger EventToken) error
	BeginResize(trigger EventToken, edges Edges) error
	SetTitle(title string) error
	SetIcon(icon *Image) error
	IsClientDecorated() bool

	GetBuffer() (Image, error)
	ApplyBuffer() error

	GLMakeCurrent() error
	GLSwapBuffers() error
	GLSetSwapInterval(interval int) error

	VulkanSurface() (uint64, error)

	Display() Display
	Close() error
}
