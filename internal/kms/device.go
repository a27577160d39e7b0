// Package kms drives displays directly through the Linux DRM/KMS API,
// without a display server. It owns the VT, reads input devices itself and
// presents raster, GL and Vulkan surfaces on already-active outputs.
package kms

import (
	"github.com/1broseidon/swa/internal/drm"
)

// Device is the DRM card the backend drives. *drm.Card implements it.
type Device interface {
	Fd() int
	Path() string
	Close() error

	Capability(capability uint64) (uint64, error)
	SetClientCap(capability, value uint64) error
	SetMaster() error
	DropMaster() error

	Resources() (*drm.Resources, error)
	Connector(id uint32) (*drm.Connector, error)
	Encoder(id uint32) (*drm.Encoder, error)
	Crtc(id uint32) (*drm.Crtc, error)
	PlaneResources() ([]uint32, error)
	Plane(id uint32) (*drm.Plane, error)
	ObjectProperties(objID, objType uint32) ([]drm.PropertyValue, error)
	Property(id uint32) (*drm.Property, error)

	CreateBlob(data []byte) (uint32, error)
	DestroyBlob(id uint32) error
	CreateDumb(width, height, bpp uint32) (*drm.Dumb, error)
	DestroyDumb(d *drm.Dumb) error
	AddFB2(width, height, format uint32, handles, pitches, offsets [4]uint32) (uint32, error)
	RmFB(id uint32) error

	SetCursor(crtcID, handle, width, height uint32) error
	MoveCursor(crtcID uint32, x, y int) error

	Commit(req *drm.AtomicReq, flags uint32, userData uint64) error
	ReadEvents(fn func(drm.Event)) error
}

// Terminal is the VT the display runs on. *vt.Terminal implements it.
type Terminal interface {
	Number() int
	AckRelease() error
	AckAcquire() error
	Switch(num int) error
	Close() error
}

var _ Device = (*drm.Card)(nil)
