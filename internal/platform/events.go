package platform

// Keycode is a Linux evdev key code (KEY_* in linux/input-event-codes.h).
type Keycode uint32

const (
	KeyEsc        Keycode = 1
	KeyBackspace  Keycode = 14
	KeyTab        Keycode = 15
	KeyEnter      Keycode = 28
	KeyLeftCtrl   Keycode = 29
	KeyLeftShift  Keycode = 42
	KeyRightShift Keycode = 54
	KeyLeftAlt    Keycode = 56
	KeySpace      Keycode = 57
	KeyCapsLock   Keycode = 58
	KeyF1         Keycode = 59
	KeyF10        Keycode = 68
	KeyNumLock    Keycode = 69
	KeyF11        Keycode = 87
	KeyF12        Keycode = 88
	KeyRightCtrl  Keycode = 97
	KeyRightAlt   Keycode = 100
	KeyLeftMeta   Keycode = 125
	KeyRightMeta  Keycode = 126

	// MaxKeycode bounds the keyboard state bitset (KEY_MAX).
	MaxKeycode Keycode = 0x2ff
)

// FunctionKeyIndex maps KeyF1..KeyF12 to 1..12 and anything else to 0.
func FunctionKeyIndex(k Keycode) int {
	switch {
	case k >= KeyF1 && k <= KeyF10:
		return int(k-KeyF1) + 1
	case k == KeyF11:
		return 11
	case k == KeyF12:
		return 12
	}
	return 0
}

type Modifiers uint32

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
	ModCapsLock
	ModNumLock
)

type MouseButton int

const (
	ButtonNone MouseButton = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
	ButtonBack
	ButtonForward
	buttonCount
)

// Valid reports whether b names a tracked button.
func (b MouseButton) Valid() bool { return b > ButtonNone && b < buttonCount }

type KeyEvent struct {
	Keycode   Keycode
	Pressed   bool
	Repeated  bool
	Modifiers Modifiers
	// Text is the UTF-8 produced by the press, if any.
	Text string
}

type MouseMoveEvent struct {
	X, Y   int
	DX, DY int
}

type MouseButtonEvent struct {
	Button  MouseButton
	Pressed bool
	X, Y    int
	Token   EventToken
}

type MouseWheelEvent struct {
	DX, DY float64
}

type MouseCrossEvent struct {
	Entered bool
	X, Y    int
}

type TouchEvent struct {
	ID   int
	X, Y int
}

// EventToken identifies the input event that triggered an interactive
// move or resize.
type EventToken struct {
	Serial uint32
	Button MouseButton
	X, Y   int
}

// DataOffer is data offered by another client (clipboard or drag and drop).
type DataOffer interface {
	Formats() []string
	Data(format string) ([]byte, error)
}

// DataSource is data this client offers to others.
type DataSource interface {
	Formats() []string
	Data(format string) ([]byte, error)
}

// TextData offers a UTF-8 string as text/plain.
type TextData string

func (t TextData) Formats() []string {
	return []string{"text/plain;charset=utf-8", "text/plain"}
}

func (t TextData) Data(format string) ([]byte, error) {
	for _, f := range t.Formats() {
		if f == format {
			return []byte(t), nil
		}
	}
	return nil, ErrUnsupported
}
