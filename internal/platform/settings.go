package platform

// SurfaceType selects how a window's contents are produced.
type SurfaceType int

const (
	SurfaceNone SurfaceType = iota
	SurfaceBuffer
	SurfaceGL
	SurfaceVulkan
)

func (s SurfaceType) String() string {
	switch s {
	case SurfaceBuffer:
		return "buffer"
	case SurfaceGL:
		return "gl"
	case SurfaceVulkan:
		return "vulkan"
	default:
		return "none"
	}
}

type WindowState int

const (
	StateNormal WindowState = iota
	StateMaximized
	StateFullscreen
	StateMinimized
)

func (s WindowState) String() string {
	switch s {
	case StateMaximized:
		return "maximized"
	case StateFullscreen:
		return "fullscreen"
	case StateMinimized:
		return "minimized"
	default:
		return "normal"
	}
}

type Decoration int

const (
	DecorationAny Decoration = iota
	DecorationClient
	DecorationServer
)

// Edges is a bitset of window edges used for interactive resizing.
type Edges uint8

const (
	EdgeTop Edges = 1 << iota
	EdgeBottom
	EdgeLeft
	EdgeRight
)

type GLAPI int

const (
	GLAPIGL GLAPI = iota
	GLAPIGLES
)

// GLSettings requests the properties of a GL context.
type GLSettings struct {
	Major       int
	Minor       int
	API         GLAPI
	Debug       bool
	Compat      bool
	DepthBits   int
	StencilBits int
	Samples     int
	SRGB        bool
}

// VulkanSettings carries the application's Vulkan handles. Device is
// optional; when set, and it enabled VK_EXT_display_control, frames are
// paced on first-pixel-out display events.
type VulkanSettings struct {
	Instance       uintptr
	PhysicalDevice uintptr
	Device         uintptr
}

// WindowSettings describes a window to create. Zero sizes let the backend
// pick a default.
type WindowSettings struct {
	Width      int
	Height     int
	X          int
	Y          int
	Positioned bool

	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int

	Title   string
	AppName string
	Cursor  Cursor

	Surface SurfaceType
	GL      GLSettings
	Vulkan  VulkanSettings

	Transparent bool
	Hidden      bool
	State       WindowState
	Decoration  Decoration

	// Listener is owned by the caller and must outlive the window.
	Listener *Listener
}
