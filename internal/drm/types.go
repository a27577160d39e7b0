package drm

import (
	"bytes"
	"fmt"
	"unsafe"
)

// Capabilities for Card.Capability.
const (
	CapDumbBuffer   = 0x1
	CapCursorWidth  = 0x8
	CapCursorHeight = 0x9
)

// Client capabilities for Card.SetClientCap.
const (
	ClientCapUniversalPlanes = 2
	ClientCapAtomic          = 3
)

// Object types for Card.ObjectProperties.
const (
	ObjectCrtc      = 0xcccccccc
	ObjectConnector = 0xc0c0c0c0
	ObjectEncoder   = 0xe0e0e0e0
	ObjectPlane     = 0xeeeeeeee
)

// Atomic commit flags.
const (
	PageFlipEvent  = 0x01
	AtomicTestOnly = 0x0100
	AtomicNonblock = 0x0200
	AllowModeset   = 0x0400
)

// Plane "type" property values.
const (
	PlaneTypeOverlay = 0
	PlaneTypePrimary = 1
	PlaneTypeCursor  = 2
)

const (
	ConnectorConnected    = 1
	ConnectorDisconnected = 2
)

// Pixel formats (fourcc).
const (
	FormatXRGB8888 = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
	FormatARGB8888 = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
)

const (
	propNameLen = 32
	modeNameLen = 32
)

// ModeInfo mirrors struct drm_mode_modeinfo.
type ModeInfo struct {
	Clock                                         uint32
	Hdisplay, HsyncStart, HsyncEnd, Htotal, Hskew uint16
	Vdisplay, VsyncStart, VsyncEnd, Vtotal, Vscan uint16
	Vrefresh                                      uint32
	Flags                                         uint32
	Type                                          uint32
	Name                                          [modeNameLen]byte
}

// Bytes returns the kernel representation, suitable for a MODE_ID blob.
func (m *ModeInfo) Bytes() []byte {
	b := unsafe.Slice((*byte)(unsafe.Pointer(m)), unsafe.Sizeof(*m))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (m *ModeInfo) String() string {
	return fmt.Sprintf("%s@%d", cstring(m.Name[:]), m.Vrefresh)
}

// RefreshMilliHz computes the refresh rate from the timings.
func (m *ModeInfo) RefreshMilliHz() int {
	if m.Htotal == 0 || m.Vtotal == 0 {
		return int(m.Vrefresh) * 1000
	}
	return int((uint64(m.Clock)*1000000/uint64(m.Htotal) + uint64(m.Vtotal)/2) / uint64(m.Vtotal))
}

type Resources struct {
	FBs        []uint32
	Crtcs      []uint32
	Connectors []uint32
	Encoders   []uint32
	MinWidth   uint32
	MaxWidth   uint32
	MinHeight  uint32
	MaxHeight  uint32
}

type Connector struct {
	ID         uint32
	EncoderID  uint32
	Type       uint32
	TypeID     uint32
	Connection uint32
	WidthMM    uint32
	HeightMM   uint32
	Modes      []ModeInfo
	Encoders   []uint32
}

var connectorTypeNames = map[uint32]string{
	0: "Unknown", 1: "VGA", 2: "DVI-I", 3: "DVI-D", 4: "DVI-A", 5: "Composite",
	6: "SVIDEO", 7: "LVDS", 8: "Component", 9: "DIN", 10: "DP", 11: "HDMI-A",
	12: "HDMI-B", 13: "TV", 14: "eDP", 15: "Virtual", 16: "DSI", 17: "DPI",
	18: "Writeback", 19: "SPI", 20: "USB",
}

// Name returns the conventional connector name such as "HDMI-A-1".
func (c *Connector) Name() string {
	t, ok := connectorTypeNames[c.Type]
	if !ok {
		t = "Unknown"
	}
	return fmt.Sprintf("%s-%d", t, c.TypeID)
}

type Encoder struct {
	ID             uint32
	Type           uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

type Crtc struct {
	ID        uint32
	FBID      uint32
	X, Y      uint32
	GammaSize uint32
	ModeValid bool
	Mode      ModeInfo
}

type Plane struct {
	ID            uint32
	CrtcID        uint32
	FBID          uint32
	PossibleCrtcs uint32
	GammaSize     uint32
	Formats       []uint32
}

type Property struct {
	ID    uint32
	Name  string
	Flags uint32
}

// PropertyValue pairs a property ID with an object's current value.
type PropertyValue struct {
	ID    uint32
	Value uint64
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// kernel structs

type getCap struct {
	Capability uint64
	Value      uint64
}

type cardRes struct {
	FBIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFBs       uint32
	CountCrtcs     uint32
	CountConns     uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

type modeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FBID             uint32
	X, Y             uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             ModeInfo
}

type modeCursor struct {
	Flags  uint32
	CrtcID uint32
	X, Y   int32
	Width  uint32
	Height uint32
	Handle uint32
}

type getEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

type getConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MMWidth         uint32
	MMHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type getProperty struct {
	ValuesPtr      uint64
	EnumBlobPtr    uint64
	PropID         uint32
	Flags          uint32
	Name           [propNameLen]byte
	CountValues    uint32
	CountEnumBlobs uint32
}

type createDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type mapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type getPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
	Pad         uint32
}

type getPlane struct {
	PlaneID          uint32
	CrtcID           uint32
	FBID             uint32
	PossibleCrtcs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

type fbCmd2 struct {
	FBID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [4]uint32
	Pitches     [4]uint32
	Offsets     [4]uint32
	Pad         uint32
	Modifier    [4]uint64
}

type objGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
	Pad           uint32
}

type atomicReq struct {
	Flags         uint32
	CountObjs     uint32
	ObjsPtr       uint64
	CountPropsPtr uint64
	PropsPtr      uint64
	PropValuesPtr uint64
	Reserved      uint64
	UserData      uint64
}

type createBlob struct {
	Data   uint64
	Length uint32
	BlobID uint32
}
