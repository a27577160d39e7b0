// Package udev finds input devices and watches kernel uevents for hot-plug.
package udev

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// Uevent is a parsed kernel uevent message.
type Uevent struct {
	Action    string
	DevPath   string
	Subsystem string
	DevName   string
	Env       map[string]string
}

// Node returns the /dev path of the device, if any.
func (u Uevent) Node() string {
	if u.DevName == "" {
		return ""
	}
	if strings.HasPrefix(u.DevName, "/") {
		return u.DevName
	}
	return "/dev/" + u.DevName
}

// IsInputEvent reports whether u concerns an evdev node.
func (u Uevent) IsInputEvent() bool {
	return u.Subsystem == "input" && strings.HasPrefix(u.DevName, "input/event")
}

// ParseUevent decodes a NUL separated "action@devpath\0KEY=VALUE\0..." message.
func ParseUevent(msg []byte) (Uevent, error) {
	fields := bytes.Split(bytes.TrimRight(msg, "\x00"), []byte{0})
	if len(fields) == 0 || !bytes.Contains(fields[0], []byte("@")) {
		return Uevent{}, errors.New("malformed uevent header")
	}
	ev := Uevent{Env: make(map[string]string, len(fields))}
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(string(f), "=")
		if !ok {
			continue
		}
		ev.Env[k] = v
	}
	ev.Action = ev.Env["ACTION"]
	ev.DevPath = ev.Env["DEVPATH"]
	ev.Subsystem = ev.Env["SUBSYSTEM"]
	ev.DevName = ev.Env["DEVNAME"]
	if ev.Action == "" {
		head := string(fields[0])
		ev.Action, ev.DevPath, _ = strings.Cut(head, "@")
	}
	return ev, nil
}

// Monitor receives kernel uevents over netlink.
type Monitor struct {
	fd  int
	buf []byte
}

const kernelGroup = 1

func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("netlink socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind netlink: %w", err)
	}
	return &Monitor{fd: fd, buf: make([]byte, 16*1024)}, nil
}

func (m *Monitor) Fd() int { return m.fd }

// Receive drains queued uevents.
func (m *Monitor) Receive(fn func(Uevent)) error {
	for {
		n, _, err := unix.Recvfrom(m.fd, m.buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return nil
			}
			return fmt.Errorf("receive uevent: %w", err)
		}
		ev, err := ParseUevent(m.buf[:n])
		if err != nil {
			continue
		}
		fn(ev)
	}
}

func (m *Monitor) Close() error {
	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}

// InputDevices lists the evdev nodes present now.
func InputDevices() ([]string, error) {
	return globSorted("/dev/input/event[0-9]*")
}

func globSorted(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	return matches, nil
}
