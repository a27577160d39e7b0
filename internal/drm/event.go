package drm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	EventVblank        = 0x01
	EventFlipComplete  = 0x02
	EventCrtcSequence  = 0x03
	eventHeaderSize    = 8
	vblankEventSize    = 32
	maxEventBufferSize = 1024
)

// Event is a decoded vblank or page-flip completion event.
type Event struct {
	Type     uint32
	UserData uint64
	Time     time.Duration
	Sequence uint32
	CrtcID   uint32
}

// ReadEvents drains pending events from the card and calls fn for each.
func (c *Card) ReadEvents(fn func(Event)) error {
	buf := make([]byte, maxEventBufferSize)
	for {
		n, err := unix.Read(c.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return nil
			}
			return fmt.Errorf("read drm events: %w", err)
		}
		if n == 0 {
			return nil
		}
		if err := ParseEvents(buf[:n], fn); err != nil {
			return err
		}
	}
}

// ParseEvents decodes a buffer of struct drm_event records. Unknown event
// types are skipped.
func ParseEvents(buf []byte, fn func(Event)) error {
	for len(buf) > 0 {
		if len(buf) < eventHeaderSize {
			return fmt.Errorf("short drm event header: %d bytes", len(buf))
		}
		typ := binary.NativeEndian.Uint32(buf[0:4])
		length := int(binary.NativeEndian.Uint32(buf[4:8]))
		if length < eventHeaderSize || length > len(buf) {
			return fmt.Errorf("invalid drm event length %d", length)
		}
		rec := buf[:length]
		buf = buf[length:]

		if (typ == EventVblank || typ == EventFlipComplete) && len(rec) >= vblankEventSize {
			sec := binary.NativeEndian.Uint32(rec[16:20])
			usec := binary.NativeEndian.Uint32(rec[20:24])
			fn(Event{
				Type:     typ,
				UserData: binary.NativeEndian.Uint64(rec[8:16]),
				Time:     time.Duration(sec)*time.Second + time.Duration(usec)*time.Microsecond,
				Sequence: binary.NativeEndian.Uint32(rec[24:28]),
				CrtcID:   binary.NativeEndian.Uint32(rec[28:32]),
			})
		}
	}
	return nil
}

// EncodeFlipEvent builds a page-flip record as the kernel would deliver it.
func EncodeFlipEvent(crtcID, sequence uint32, userData uint64) []byte {
	rec := make([]byte, vblankEventSize)
	binary.NativeEndian.PutUint32(rec[0:4], EventFlipComplete)
	binary.NativeEndian.PutUint32(rec[4:8], vblankEventSize)
	binary.NativeEndian.PutUint64(rec[8:16], userData)
	binary.NativeEndian.PutUint32(rec[24:28], sequence)
	binary.NativeEndian.PutUint32(rec[28:32], crtcID)
	return rec
}
