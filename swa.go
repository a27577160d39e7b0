// Package swa is a windowing and input abstraction. A Display wraps one
// window system backend (X11, or direct KMS/DRM on a Linux console) and
// creates Windows whose contents come from a raster buffer, OpenGL or
// Vulkan.
//
// A Display and its windows are used from one goroutine, the one calling
// Dispatch. Listener callbacks run inside Dispatch.
package swa

import "github.com/1broseidon/swa/internal/platform"

type (
	Display      = platform.Display
	Window       = platform.Window
	OutputLister = platform.OutputLister
	OutputInfo   = platform.OutputInfo

	DisplayCap = platform.DisplayCap
	WindowCap  = platform.WindowCap

	WindowSettings = platform.WindowSettings
	SurfaceType    = platform.SurfaceType
	GLSettings     = platform.GLSettings
	GLAPI          = platform.GLAPI
	VulkanSettings = platform.VulkanSettings
	WindowState    = platform.WindowState
	Decoration     = platform.Decoration
	Edges          = platform.Edges
	Listener       = platform.Listener

	Cursor     = platform.Cursor
	CursorType = platform.CursorType
	Image      = platform.Image
	Format     = platform.Format

	Keycode          = platform.Keycode
	Modifiers        = platform.Modifiers
	MouseButton      = platform.MouseButton
	KeyEvent         = platform.KeyEvent
	MouseMoveEvent   = platform.MouseMoveEvent
	MouseButtonEvent = platform.MouseButtonEvent
	MouseWheelEvent  = platform.MouseWheelEvent
	MouseCrossEvent  = platform.MouseCrossEvent
	TouchEvent       = platform.TouchEvent
	EventToken       = platform.EventToken

	DataOffer  = platform.DataOffer
	DataSource = platform.DataSource
	TextData   = platform.TextData
)

var (
	ErrUnsupported    = platform.ErrUnsupported
	ErrBufferActive   = platform.ErrBufferActive
	ErrFlipPending    = platform.ErrFlipPending
	ErrNoActiveBuffer = platform.ErrNoActiveBuffer
	ErrNoFreeBuffer   = platform.ErrNoFreeBuffer
	ErrNoOutput       = platform.ErrNoOutput
	ErrNoBackend      = platform.ErrNoBackend
	ErrClosed         = platform.ErrClosed
	ErrWrongSurface   = platform.ErrWrongSurface
)

const (
	SurfaceNone   = platform.SurfaceNone
	SurfaceBuffer = platform.SurfaceBuffer
	SurfaceGL     = platform.SurfaceGL
	SurfaceVulkan = platform.SurfaceVulkan
)

const (
	CapGL               = platform.CapGL
	CapVulkan           = platform.CapVulkan
	CapBufferSurface    = platform.CapBufferSurface
	CapClientDecoration = platform.CapClientDecoration
	CapServerDecoration = platform.CapServerDecoration
	CapKeyboard         = platform.CapKeyboard
	CapMouse            = platform.CapMouse
	CapTouch            = platform.CapTouch
	CapDataOffer        = platform.CapDataOffer
	CapDnD              = platform.CapDnD
	CapKeyboardText     = platform.CapKeyboardText
)

const (
	StateNormal     = platform.StateNormal
	StateMaximized  = platform.StateMaximized
	StateFullscreen = platform.StateFullscreen
	StateMinimized  = platform.StateMinimized
)

const (
	ButtonLeft    = platform.ButtonLeft
	ButtonRight   = platform.ButtonRight
	ButtonMiddle  = platform.ButtonMiddle
	ButtonBack    = platform.ButtonBack
	ButtonForward = platform.ButtonForward
)

const (
	ModShift    = platform.ModShift
	ModCtrl     = platform.ModCtrl
	ModAlt      = platform.ModAlt
	ModSuper    = platform.ModSuper
	ModCapsLock = platform.ModCapsLock
	ModNumLock  = platform.ModNumLock
)

// A few evdev key codes; any KEY_* value is a valid Keycode.
const (
	KeyEsc   = platform.KeyEsc
	KeyEnter = platform.KeyEnter
	KeySpace = platform.KeySpace
	KeyF11   = platform.KeyF11
)

const (
	FormatA8     = platform.FormatA8
	FormatRGBA32 = platform.FormatRGBA32
	FormatARGB32 = platform.FormatARGB32
	FormatXRGB32 = platform.FormatXRGB32
	FormatRGB24  = platform.FormatRGB24
	FormatABGR32 = platform.FormatABGR32
	FormatBGRA32 = platform.FormatBGRA32
	FormatBGRX32 = platform.FormatBGRX32
	FormatBGR24  = platform.FormatBGR24
)

// NewImage allocates a tightly packed image.
func NewImage(width, height int, format Format) *Image {
	return platform.NewImage(width, height, format)
}

// Convert copies src into dst, converting the pixel format.
func Convert(dst, src *Image) error { return platform.Convert(dst, src) }
