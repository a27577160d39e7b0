package drm

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Card is an open DRM device node.
type Card struct {
	fd   int
	path string
}

// Open opens a DRM card node for reading and writing. The descriptor is
// non-blocking so events can be read from a reactor.
func Open(path string) (*Card, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Card{fd: fd, path: path}, nil
}

// Cards lists /dev/dri/card* nodes in name order.
func Cards() ([]string, error) {
	matches, err := filepath.Glob("/dev/dri/card[0-9]*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (c *Card) Fd() int      { return c.fd }
func (c *Card) Path() string { return c.path }

func (c *Card) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func (c *Card) Capability(capability uint64) (uint64, error) {
	arg := getCap{Capability: capability}
	if err := ioctl(c.fd, ioctlGetCap, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("get cap %#x: %w", capability, err)
	}
	return arg.Value, nil
}

func (c *Card) SetClientCap(capability, value uint64) error {
	arg := getCap{Capability: capability, Value: value}
	if err := ioctl(c.fd, ioctlSetClientCap, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("set client cap %d: %w", capability, err)
	}
	return nil
}

func (c *Card) SetMaster() error {
	if err := ioctl(c.fd, ioctlSetMaster, nil); err != nil {
		return fmt.Errorf("set master: %w", err)
	}
	return nil
}

func (c *Card) DropMaster() error {
	if err := ioctl(c.fd, ioctlDropMaster, nil); err != nil {
		return fmt.Errorf("drop master: %w", err)
	}
	return nil
}

func (c *Card) Resources() (*Resources, error) {
	for {
		var arg cardRes
		if err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&arg)); err != nil {
			return nil, fmt.Errorf("get resources: %w", err)
		}

		res := &Resources{
			FBs:        make([]uint32, arg.CountFBs),
			Crtcs:      make([]uint32, arg.CountCrtcs),
			Connectors: make([]uint32, arg.CountConns),
			Encoders:   make([]uint32, arg.CountEncoders),
		}
		counts := arg
		arg.FBIDPtr = ptr(res.FBs)
		arg.CrtcIDPtr = ptr(res.Crtcs)
		arg.ConnectorIDPtr = ptr(res.Connectors)
		arg.EncoderIDPtr = ptr(res.Encoders)
		err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&arg))
		runtime.KeepAlive(res)
		if err != nil {
			return nil, fmt.Errorf("get resources: %w", err)
		}
		// Hotplug between the two calls changes the counts; try again.
		if arg.CountFBs > counts.CountFBs || arg.CountCrtcs > counts.CountCrtcs ||
			arg.CountConns > counts.CountConns || arg.CountEncoders > counts.CountEncoders {
			continue
		}

		res.FBs = res.FBs[:arg.CountFBs]
		res.Crtcs = res.Crtcs[:arg.CountCrtcs]
		res.Connectors = res.Connectors[:arg.CountConns]
		res.Encoders = res.Encoders[:arg.CountEncoders]
		res.MinWidth, res.MaxWidth = arg.MinWidth, arg.MaxWidth
		res.MinHeight, res.MaxHeight = arg.MinHeight, arg.MaxHeight
		return res, nil
	}
}

func (c *Card) Connector(id uint32) (*Connector, error) {
	for {
		arg := getConnector{ConnectorID: id}
		if err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&arg)); err != nil {
			return nil, fmt.Errorf("get connector %d: %w", id, err)
		}

		modes := make([]ModeInfo, arg.CountModes)
		encoders := make([]uint32, arg.CountEncoders)
		props := make([]uint32, arg.CountProps)
		values := make([]uint64, arg.CountProps)
		counts := arg

		arg.ModesPtr = ptr(modes)
		arg.EncodersPtr = ptr(encoders)
		arg.PropsPtr = ptr(props)
		arg.PropValuesPtr = ptr(values)
		err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&arg))
		runtime.KeepAlive(modes)
		runtime.KeepAlive(encoders)
		runtime.KeepAlive(props)
		runtime.KeepAlive(values)
		if err != nil {
			return nil, fmt.Errorf("get connector %d: %w", id, err)
		}
		if arg.CountModes > counts.CountModes || arg.CountEncoders > counts.CountEncoders ||
			arg.CountProps > counts.CountProps {
			continue
		}

		return &Connector{
			ID:         arg.ConnectorID,
			EncoderID:  arg.EncoderID,
			Type:       arg.ConnectorType,
			TypeID:     arg.ConnectorTypeID,
			Connection: arg.Connection,
			WidthMM:    arg.MMWidth,
			HeightMM:   arg.MMHeight,
			Modes:      modes[:arg.CountModes],
			Encoders:   encoders[:arg.CountEncoders],
		}, nil
	}
}

func (c *Card) Encoder(id uint32) (*Encoder, error) {
	arg := getEncoder{EncoderID: id}
	if err := ioctl(c.fd, ioctlModeGetEncoder, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("get encoder %d: %w", id, err)
	}
	return &Encoder{
		ID:             arg.EncoderID,
		Type:           arg.EncoderType,
		CrtcID:         arg.CrtcID,
		PossibleCrtcs:  arg.PossibleCrtcs,
		PossibleClones: arg.PossibleClones,
	}, nil
}

func (c *Card) Crtc(id uint32) (*Crtc, error) {
	arg := modeCrtc{CrtcID: id}
	if err := ioctl(c.fd, ioctlModeGetCrtc, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("get crtc %d: %w", id, err)
	}
	return &Crtc{
		ID:        arg.CrtcID,
		FBID:      arg.FBID,
		X:         arg.X,
		Y:         arg.Y,
		GammaSize: arg.GammaSize,
		ModeValid: arg.ModeValid != 0,
		Mode:      arg.Mode,
	}, nil
}

func (c *Card) PlaneResources() ([]uint32, error) {
	var arg getPlaneRes
	if err := ioctl(c.fd, ioctlModeGetPlaneRes, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("get plane resources: %w", err)
	}
	ids := make([]uint32, arg.CountPlanes)
	arg.PlaneIDPtr = ptr(ids)
	err := ioctl(c.fd, ioctlModeGetPlaneRes, unsafe.Pointer(&arg))
	runtime.KeepAlive(ids)
	if err != nil {
		return nil, fmt.Errorf("get plane resources: %w", err)
	}
	return ids[:min(int(arg.CountPlanes), len(ids))], nil
}

func (c *Card) Plane(id uint32) (*Plane, error) {
	arg := getPlane{PlaneID: id}
	if err := ioctl(c.fd, ioctlModeGetPlane, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("get plane %d: %w", id, err)
	}
	formats := make([]uint32, arg.CountFormatTypes)
	arg.FormatTypePtr = ptr(formats)
	err := ioctl(c.fd, ioctlModeGetPlane, unsafe.Pointer(&arg))
	runtime.KeepAlive(formats)
	if err != nil {
		return nil, fmt.Errorf("get plane %d: %w", id, err)
	}
	return &Plane{
		ID:            arg.PlaneID,
		CrtcID:        arg.CrtcID,
		FBID:          arg.FBID,
		PossibleCrtcs: arg.PossibleCrtcs,
		GammaSize:     arg.GammaSize,
		Formats:       formats[:min(int(arg.CountFormatTypes), len(formats))],
	}, nil
}

// ObjectProperties returns the property IDs and current values of an object.
func (c *Card) ObjectProperties(objID, objType uint32) ([]PropertyValue, error) {
	for {
		arg := objGetProperties{ObjID: objID, ObjType: objType}
		if err := ioctl(c.fd, ioctlModeObjGetProps, unsafe.Pointer(&arg)); err != nil {
			return nil, fmt.Errorf("get properties of object %d: %w", objID, err)
		}
		count := arg.CountProps
		ids := make([]uint32, count)
		values := make([]uint64, count)
		arg.PropsPtr = ptr(ids)
		arg.PropValuesPtr = ptr(values)
		err := ioctl(c.fd, ioctlModeObjGetProps, unsafe.Pointer(&arg))
		runtime.KeepAlive(ids)
		runtime.KeepAlive(values)
		if err != nil {
			return nil, fmt.Errorf("get properties of object %d: %w", objID, err)
		}
		if arg.CountProps > count {
			continue
		}

		out := make([]PropertyValue, arg.CountProps)
		for i := range out {
			out[i] = PropertyValue{ID: ids[i], Value: values[i]}
		}
		return out, nil
	}
}

func (c *Card) Property(id uint32) (*Property, error) {
	arg := getProperty{PropID: id}
	if err := ioctl(c.fd, ioctlModeGetProperty, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("get property %d: %w", id, err)
	}
	return &Property{ID: arg.PropID, Name: cstring(arg.Name[:]), Flags: arg.Flags}, nil
}

func (c *Card) CreateBlob(data []byte) (uint32, error) {
	arg := createBlob{Data: ptr(data), Length: uint32(len(data))}
	err := ioctl(c.fd, ioctlModeCreateBlob, unsafe.Pointer(&arg))
	runtime.KeepAlive(data)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	return arg.BlobID, nil
}

func (c *Card) DestroyBlob(id uint32) error {
	arg := id
	if err := ioctl(c.fd, ioctlModeDestroyBlob, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("destroy blob %d: %w", id, err)
	}
	return nil
}

func (c *Card) AddFB2(width, height, format uint32, handles, pitches, offsets [4]uint32) (uint32, error) {
	arg := fbCmd2{
		Width:       width,
		Height:      height,
		PixelFormat: format,
		Handles:     handles,
		Pitches:     pitches,
		Offsets:     offsets,
	}
	if err := ioctl(c.fd, ioctlModeAddFB2, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("add framebuffer %dx%d: %w", width, height, err)
	}
	return arg.FBID, nil
}

func (c *Card) RmFB(id uint32) error {
	arg := id
	if err := ioctl(c.fd, ioctlModeRmFB, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("remove framebuffer %d: %w", id, err)
	}
	return nil
}

const (
	cursorBO   = 0x01
	cursorMove = 0x02
)

// SetCursor shows the buffer object handle as the CRTC's hardware cursor.
// A zero handle hides the cursor.
func (c *Card) SetCursor(crtcID, handle, width, height uint32) error {
	arg := modeCursor{Flags: cursorBO, CrtcID: crtcID, Width: width, Height: height, Handle: handle}
	if err := ioctl(c.fd, ioctlModeCursor, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("set cursor on crtc %d: %w", crtcID, err)
	}
	return nil
}

func (c *Card) MoveCursor(crtcID uint32, x, y int) error {
	arg := modeCursor{Flags: cursorMove, CrtcID: crtcID, X: int32(x), Y: int32(y)}
	if err := ioctl(c.fd, ioctlModeCursor, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("move cursor on crtc %d: %w", crtcID, err)
	}
	return nil
}

// Commit submits an atomic request. userData is echoed back in the
// page-flip event when PageFlipEvent is set.
func (c *Card) Commit(req *AtomicReq, flags uint32, userData uint64) error {
	objs, counts, props, values := req.flatten()
	arg := atomicReq{
		Flags:         flags,
		CountObjs:     uint32(len(objs)),
		ObjsPtr:       ptr(objs),
		CountPropsPtr: ptr(counts),
		PropsPtr:      ptr(props),
		PropValuesPtr: ptr(values),
		UserData:      userData,
	}
	err := ioctl(c.fd, ioctlModeAtomic, unsafe.Pointer(&arg))
	runtime.KeepAlive(objs)
	runtime.KeepAlive(counts)
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	if err != nil {
		return fmt.Errorf("atomic commit: %w", err)
	}
	return nil
}
