// Package evdev reads Linux input devices (/dev/input/event*).
package evdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event types.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03
	evMax = 0x1f
)

// Codes used by the seat.
const (
	SynReport  = 0x00
	SynDropped = 0x03

	RelX      = 0x00
	RelY      = 0x01
	RelHWheel = 0x06
	RelWheel  = 0x08

	AbsX            = 0x00
	AbsY            = 0x01
	AbsMTSlot       = 0x2f
	AbsMTPositionX  = 0x35
	AbsMTPositionY  = 0x36
	AbsMTTrackingID = 0x39
	absMax          = 0x3f

	KeyA      = 30
	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112
	BtnSide   = 0x113
	BtnExtra  = 0x114
	BtnTouch  = 0x14a
	keyMax    = 0x2ff
)

// Event is one decoded struct input_event.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is sizeof(struct input_event) on this platform.
const EventSize = int(unsafe.Sizeof(inputEvent{}))

// Parse decodes whole events from buf and returns the number of bytes used.
func Parse(buf []byte, fn func(Event)) int {
	off := 0
	for ; off+EventSize <= len(buf); off += EventSize {
		rec := buf[off : off+EventSize]
		tail := rec[EventSize-8:]
		fn(Event{
			Type:  binary.NativeEndian.Uint16(tail[0:2]),
			Code:  binary.NativeEndian.Uint16(tail[2:4]),
			Value: int32(binary.NativeEndian.Uint32(tail[4:8])),
		})
	}
	return off
}

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// Class describes what kind of input a device produces.
type Class uint8

const (
	ClassKeyboard Class = 1 << iota
	ClassPointer
	ClassAbsPointer
	ClassTouch
)

// Device is an open event device node.
type Device struct {
	fd    int
	path  string
	name  string
	class Class
	absX  AbsInfo
	absY  AbsInfo
	buf   []byte
}

// Open opens path non-blocking and probes its capabilities.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	d := &Device{fd: fd, path: path, buf: make([]byte, 64*EventSize)}

	var name [256]byte
	if err := ioctl(fd, ioc(iocRead, 0x06, uintptr(len(name))), unsafe.Pointer(&name[0])); err == nil {
		d.name = cstring(name[:])
	}

	d.class, err = d.probe()
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return d, nil
}

func (d *Device) probe() (Class, error) {
	var evBits [evMax/8 + 1]byte
	if err := ioctl(d.fd, eviocgbit(0, len(evBits)), unsafe.Pointer(&evBits[0])); err != nil {
		return 0, err
	}
	var keyBits [keyMax/8 + 1]byte
	var relBits [1]byte
	var absBits [absMax/8 + 1]byte
	if testBit(evBits[:], EvKey) {
		_ = ioctl(d.fd, eviocgbit(EvKey, len(keyBits)), unsafe.Pointer(&keyBits[0]))
	}
	if testBit(evBits[:], EvRel) {
		_ = ioctl(d.fd, eviocgbit(EvRel, len(relBits)), unsafe.Pointer(&relBits[0]))
	}
	if testBit(evBits[:], EvAbs) {
		_ = ioctl(d.fd, eviocgbit(EvAbs, len(absBits)), unsafe.Pointer(&absBits[0]))
	}

	var class Class
	if testBit(keyBits[:], KeyA) {
		class |= ClassKeyboard
	}
	if testBit(relBits[:], RelX) && testBit(relBits[:], RelY) {
		class |= ClassPointer
	}
	switch {
	case testBit(absBits[:], AbsMTSlot) && testBit(absBits[:], AbsMTPositionX):
		class |= ClassTouch
		d.absX, _ = d.AbsInfo(AbsMTPositionX)
		d.absY, _ = d.AbsInfo(AbsMTPositionY)
	case testBit(absBits[:], AbsX) && testBit(absBits[:], AbsY) &&
		(testBit(keyBits[:], BtnLeft) || testBit(keyBits[:], BtnTouch)):
		class |= ClassAbsPointer
		d.absX, _ = d.AbsInfo(AbsX)
		d.absY, _ = d.AbsInfo(AbsY)
	}
	return class, nil
}

func (d *Device) Fd() int         { return d.fd }
func (d *Device) Path() string    { return d.path }
func (d *Device) Name() string    { return d.name }
func (d *Device) Class() Class    { return d.class }
func (d *Device) AbsX() AbsInfo   { return d.absX }
func (d *Device) AbsY() AbsInfo   { return d.absY }
func (d *Device) Is(c Class) bool { return d.class&c != 0 }

func (d *Device) AbsInfo(code int) (AbsInfo, error) {
	var info AbsInfo
	req := ioc(iocRead, uintptr(0x40+code), unsafe.Sizeof(info))
	if err := ioctl(d.fd, req, unsafe.Pointer(&info)); err != nil {
		return AbsInfo{}, err
	}
	return info, nil
}

// Read drains pending events. It returns unix.ENODEV once the device is
// unplugged.
func (d *Device) Read(fn func(Event)) error {
	for {
		n, err := unix.Read(d.fd, d.buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return nil
			}
			return err
		}
		if n <= 0 {
			return nil
		}
		Parse(d.buf[:n], fn)
	}
}

func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// ScaleAbs maps an absolute axis value onto [0, size).
func ScaleAbs(info AbsInfo, value int32, size int) int {
	span := int64(info.Max) - int64(info.Min)
	if span <= 0 || size <= 0 {
		return 0
	}
	v := (int64(value) - int64(info.Min)) * int64(size-1) / span
	return int(min(max(v, 0), int64(size-1)))
}

const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'E'<<8 | nr
}

func eviocgbit(ev, size int) uintptr {
	return ioc(iocRead, uintptr(0x20+ev), uintptr(size))
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func testBit(bits []byte, bit int) bool {
	return bit/8 < len(bits) && bits[bit/8]&(1<<(bit%8)) != 0
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
