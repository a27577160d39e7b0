// Package vt drives a Linux virtual terminal for a graphical session:
// graphics mode, keyboard mute and process-controlled VT switching.
package vt

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	kdSetMode  = 0x4b3a
	kdGetMode  = 0x4b3b
	kdGKbMode  = 0x4b44
	kdSKbMode  = 0x4b45
	kdText     = 0x00
	kdGraphics = 0x01
	kOff       = 0x04

	vtOpenQry   = 0x5600
	vtGetMode   = 0x5601
	vtSetMode   = 0x5602
	vtGetState  = 0x5603
	vtRelDisp   = 0x5605
	vtActivate  = 0x5606
	vtWaitActiv = 0x5607

	vtAuto    = 0x00
	vtProcess = 0x01
	vtAckAcq  = 0x02

	ttyMajor = 4
)

type vtMode struct {
	Mode   int8
	Waitv  int8
	Relsig int16
	Acqsig int16
	Frsig  int16
}

type vtStat struct {
	Active uint16
	Signal uint16
	State  uint16
}

// Signals the kernel sends on a VT switch request.
var (
	ReleaseSignal = unix.SIGUSR1
	AcquireSignal = unix.SIGUSR2
)

// Terminal is an open virtual terminal in graphics mode.
type Terminal struct {
	f         *os.File
	num       int
	kbMode    int
	termState *term.State
}

// Open switches to VT num (0 picks one, see Detect), puts it into graphics
// mode, mutes the keyboard and takes over VT switching.
func Open(num int) (*Terminal, error) {
	if num <= 0 {
		var err error
		if num, err = Detect(); err != nil {
			return nil, err
		}
	}

	path := fmt.Sprintf("/dev/tty%d", num)
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	t := &Terminal{f: f, num: num}

	if err := t.activate(); err != nil {
		f.Close()
		return nil, err
	}

	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		if st, err := term.GetState(fd); err == nil {
			t.termState = st
		}
	}

	if t.kbMode, err = unix.IoctlGetInt(fd, kdGKbMode); err != nil {
		f.Close()
		return nil, fmt.Errorf("get keyboard mode: %w", err)
	}
	if err := unix.IoctlSetInt(fd, kdSKbMode, kOff); err != nil {
		f.Close()
		return nil, fmt.Errorf("mute keyboard: %w", err)
	}
	if err := unix.IoctlSetInt(fd, kdSetMode, kdGraphics); err != nil {
		t.restoreKeyboard()
		f.Close()
		return nil, fmt.Errorf("set graphics mode: %w", err)
	}

	mode := vtMode{Mode: vtProcess, Relsig: int16(ReleaseSignal), Acqsig: int16(AcquireSignal)}
	if err := vtIoctl(fd, vtSetMode, unsafe.Pointer(&mode)); err != nil {
		unix.IoctlSetInt(fd, kdSetMode, kdText)
		t.restoreKeyboard()
		f.Close()
		return nil, fmt.Errorf("set vt mode: %w", err)
	}
	return t, nil
}

func (t *Terminal) activate() error {
	fd := int(t.f.Fd())
	var st vtStat
	if err := vtIoctl(fd, vtGetState, unsafe.Pointer(&st)); err != nil {
		return fmt.Errorf("get vt state: %w", err)
	}
	if int(st.Active) == t.num {
		return nil
	}
	if err := unix.IoctlSetInt(fd, vtActivate, t.num); err != nil {
		return fmt.Errorf("activate vt %d: %w", t.num, err)
	}
	if err := unix.IoctlSetInt(fd, vtWaitActiv, t.num); err != nil {
		return fmt.Errorf("wait for vt %d: %w", t.num, err)
	}
	return nil
}

// Number returns the VT number.
func (t *Terminal) Number() int { return t.num }

// AckRelease allows a pending switch away from this VT.
func (t *Terminal) AckRelease() error {
	if err := unix.IoctlSetInt(int(t.f.Fd()), vtRelDisp, 1); err != nil {
		return fmt.Errorf("release vt: %w", err)
	}
	return nil
}

// AckAcquire acknowledges a switch back to this VT.
func (t *Terminal) AckAcquire() error {
	if err := unix.IoctlSetInt(int(t.f.Fd()), vtRelDisp, vtAckAcq); err != nil {
		return fmt.Errorf("acquire vt: %w", err)
	}
	return nil
}

// Switch requests a change to VT num. The switch completes asynchronously
// through the release signal.
func (t *Terminal) Switch(num int) error {
	if num == t.num {
		return nil
	}
	if err := unix.IoctlSetInt(int(t.f.Fd()), vtActivate, num); err != nil {
		return fmt.Errorf("switch to vt %d: %w", num, err)
	}
	return nil
}

// Close restores text mode, the keyboard and automatic VT switching.
func (t *Terminal) Close() error {
	if t.f == nil {
		return nil
	}
	fd := int(t.f.Fd())
	var errs []error

	mode := vtMode{Mode: vtAuto}
	if err := vtIoctl(fd, vtSetMode, unsafe.Pointer(&mode)); err != nil {
		errs = append(errs, fmt.Errorf("restore vt mode: %w", err))
	}
	if err := unix.IoctlSetInt(fd, kdSetMode, kdText); err != nil {
		errs = append(errs, fmt.Errorf("restore text mode: %w", err))
	}
	if err := t.restoreKeyboard(); err != nil {
		errs = append(errs, err)
	}
	if t.termState != nil {
		if err := term.Restore(fd, t.termState); err != nil {
			errs = append(errs, fmt.Errorf("restore termios: %w", err))
		}
	}
	errs = append(errs, t.f.Close())
	t.f = nil
	return errors.Join(errs...)
}

func (t *Terminal) restoreKeyboard() error {
	if err := unix.IoctlSetInt(int(t.f.Fd()), kdSKbMode, t.kbMode); err != nil {
		return fmt.Errorf("restore keyboard mode: %w", err)
	}
	return nil
}

// Detect picks the VT for a new session: $SWA_TTY when set, the VT that
// stdin is attached to, or the first free VT.
func Detect() (int, error) {
	if s := strings.TrimSpace(os.Getenv("SWA_TTY")); s != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "/dev/tty"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid SWA_TTY %q", s)
		}
		return n, nil
	}

	if n, ok := stdinVT(); ok {
		return n, nil
	}

	f, err := os.OpenFile("/dev/tty0", os.O_WRONLY|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("open /dev/tty0: %w", err)
	}
	defer f.Close()
	var n int32
	if err := vtIoctl(int(f.Fd()), vtOpenQry, unsafe.Pointer(&n)); err != nil {
		return 0, fmt.Errorf("query free vt: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("no free vt")
	}
	return int(n), nil
}

func stdinVT() (int, bool) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return 0, false
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, false
	}
	return parseVTRdev(uint64(st.Rdev))
}

// parseVTRdev maps a character device number to a VT number. Only
// /dev/tty1../dev/tty63 qualify.
func parseVTRdev(rdev uint64) (int, bool) {
	if unix.Major(rdev) != ttyMajor {
		return 0, false
	}
	minor := int(unix.Minor(rdev))
	if minor < 1 || minor > 63 {
		return 0, false
	}
	return minor, true
}

func vtIoctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
