package drm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Dumb is a CPU-mapped dumb buffer.
type Dumb struct {
	Handle uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Size   uint64
	Data   []byte
}

// CreateDumb allocates a dumb buffer and maps it into memory.
func (c *Card) CreateDumb(width, height, bpp uint32) (*Dumb, error) {
	arg := createDumb{Width: width, Height: height, Bpp: bpp}
	if err := ioctl(c.fd, ioctlModeCreateDumb, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("create dumb buffer %dx%d: %w", width, height, err)
	}
	d := &Dumb{Handle: arg.Handle, Width: width, Height: height, Pitch: arg.Pitch, Size: arg.Size}

	m := mapDumb{Handle: arg.Handle}
	if err := ioctl(c.fd, ioctlModeMapDumb, unsafe.Pointer(&m)); err != nil {
		c.destroyHandle(d.Handle)
		return nil, fmt.Errorf("map dumb buffer: %w", err)
	}
	data, err := unix.Mmap(c.fd, int64(m.Offset), int(arg.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		c.destroyHandle(d.Handle)
		return nil, fmt.Errorf("mmap dumb buffer: %w", err)
	}
	d.Data = data
	return d, nil
}

// DestroyDumb unmaps and frees d.
func (c *Card) DestroyDumb(d *Dumb) error {
	if d.Data != nil {
		if err := unix.Munmap(d.Data); err != nil {
			return fmt.Errorf("munmap dumb buffer: %w", err)
		}
		d.Data = nil
	}
	return c.destroyHandle(d.Handle)
}

func (c *Card) destroyHandle(handle uint32) error {
	arg := handle
	if err := ioctl(c.fd, ioctlModeDestroyDumb, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("destroy dumb buffer %d: %w", handle, err)
	}
	return nil
}
