// Package drm issues Linux DRM/KMS ioctls on a card file descriptor.
package drm

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	iocWrite = 1
	iocRead  = 2
	drmBase  = 'd'
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | drmBase<<8 | nr
}

func iowr(nr uintptr, size uintptr) uintptr { return ioc(iocRead|iocWrite, nr, size) }
func iow(nr uintptr, size uintptr) uintptr  { return ioc(iocWrite, nr, size) }

var (
	ioctlGetCap           = iowr(0x0c, unsafe.Sizeof(getCap{}))
	ioctlSetClientCap     = iow(0x0d, unsafe.Sizeof(getCap{}))
	ioctlSetMaster        = ioc(0, 0x1e, 0)
	ioctlDropMaster       = ioc(0, 0x1f, 0)
	ioctlModeGetResources = iowr(0xa0, unsafe.Sizeof(cardRes{}))
	ioctlModeGetCrtc      = iowr(0xa1, unsafe.Sizeof(modeCrtc{}))
	ioctlModeCursor       = iowr(0xa3, unsafe.Sizeof(modeCursor{}))
	ioctlModeGetEncoder   = iowr(0xa6, unsafe.Sizeof(getEncoder{}))
	ioctlModeGetConnector = iowr(0xa7, unsafe.Sizeof(getConnector{}))
	ioctlModeGetProperty  = iowr(0xaa, unsafe.Sizeof(getProperty{}))
	ioctlModeRmFB         = iowr(0xaf, unsafe.Sizeof(uint32(0)))
	ioctlModeCreateDumb   = iowr(0xb2, unsafe.Sizeof(createDumb{}))
	ioctlModeMapDumb      = iowr(0xb3, unsafe.Sizeof(mapDumb{}))
	ioctlModeDestroyDumb  = iowr(0xb4, unsafe.Sizeof(uint32(0)))
	ioctlModeGetPlaneRes  = iowr(0xb5, unsafe.Sizeof(getPlaneRes{}))
	ioctlModeGetPlane     = iowr(0xb6, unsafe.Sizeof(getPlane{}))
	ioctlModeAddFB2       = iowr(0xb8, unsafe.Sizeof(fbCmd2{}))
	ioctlModeObjGetProps  = iowr(0xb9, unsafe.Sizeof(objGetProperties{}))
	ioctlModeAtomic       = iowr(0xbc, unsafe.Sizeof(atomicReq{}))
	ioctlModeCreateBlob   = iowr(0xbd, unsafe.Sizeof(createBlob{}))
	ioctlModeDestroyBlob  = iowr(0xbe, unsafe.Sizeof(uint32(0)))
)

// ioctl retries on EINTR and EAGAIN the way libdrm's drmIoctl does.
func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errors.Is(errno, unix.EINTR) || errors.Is(errno, unix.EAGAIN) {
			continue
		}
		return errno
	}
}

func ptr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}
