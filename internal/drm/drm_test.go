package drm

import (
	"testing"
	"unsafe"
)

func TestKernelStructSizes(t *testing.T) {
	cases := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"modeinfo", unsafe.Sizeof(ModeInfo{}), 68},
		{"card_res", unsafe.Sizeof(cardRes{}), 64},
		{"crtc", unsafe.Sizeof(modeCrtc{}), 104},
		{"cursor", unsafe.Sizeof(modeCursor{}), 28},
		{"get_connector", unsafe.Sizeof(getConnector{}), 80},
		{"get_property", unsafe.Sizeof(getProperty{}), 64},
		{"create_dumb", unsafe.Sizeof(createDumb{}), 32},
		{"map_dumb", unsafe.Sizeof(mapDumb{}), 16},
		{"plane_res", unsafe.Sizeof(getPlaneRes{}), 16},
		{"get_plane", unsafe.Sizeof(getPlane{}), 32},
		{"fb_cmd2", unsafe.Sizeof(fbCmd2{}), 104},
		{"obj_get_properties", unsafe.Sizeof(objGetProperties{}), 32},
		{"atomic", unsafe.Sizeof(atomicReq{}), 56},
		{"create_blob", unsafe.Sizeof(createBlob{}), 16},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: expected size %d, got %d", tc.name, tc.want, tc.got)
		}
	}
}

func TestIoctlNumbers(t *testing.T) {
	if ioctlModeAtomic != 0xc03864bc {
		t.Fatalf("unexpected atomic ioctl %#x", ioctlModeAtomic)
	}
	if ioctlModeCreateDumb != 0xc02064b2 {
		t.Fatalf("unexpected create dumb ioctl %#x", ioctlModeCreateDumb)
	}
	if ioctlSetMaster != 0x641e || ioctlDropMaster != 0x641f {
		t.Fatalf("unexpected master ioctls %#x %#x", ioctlSetMaster, ioctlDropMaster)
	}
	if ioctlSetClientCap != 0x4010640d {
		t.Fatalf("unexpected set client cap ioctl %#x", ioctlSetClientCap)
	}
}

func TestAtomicReq_GroupsByObject(t *testing.T) {
	req := NewAtomicReq()
	req.Add(30, 1, 10)
	req.Add(10, 2, 20)
	req.Add(30, 3, 30)
	req.Add(10, 0, 99) // ignored
	req.Add(30, 1, 11) // overrides

	objs, counts, props, values := req.flatten()
	if len(objs) != 2 || objs[0] != 10 || objs[1] != 30 {
		t.Fatalf("unexpected objects %v", objs)
	}
	if counts[0] != 1 || counts[1] != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if props[0] != 2 || props[1] != 1 || props[2] != 3 {
		t.Fatalf("unexpected props %v", props)
	}
	if values[1] != 11 {
		t.Fatalf("expected override to win, got %d", values[1])
	}
	if v, ok := req.Lookup(30, 1); !ok || v != 11 {
		t.Fatalf("lookup: got %d %v", v, ok)
	}
}

func TestParseEvents(t *testing.T) {
	buf := append(EncodeFlipEvent(41, 7, 99), EncodeFlipEvent(42, 8, 100)...)
	unknown := make([]byte, 12)
	unknown[0] = 0x80
	unknown[4] = 12
	buf = append(buf, unknown...)

	var got []Event
	if err := ParseEvents(buf, func(ev Event) { got = append(got, ev) }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].CrtcID != 41 || got[0].Sequence != 7 || got[0].UserData != 99 || got[0].Type != EventFlipComplete {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[1].CrtcID != 42 {
		t.Fatalf("unexpected second event %+v", got[1])
	}

	if err := ParseEvents([]byte{1, 0, 0, 0, 4, 0, 0, 0}, func(Event) {}); err == nil {
		t.Fatalf("expected error for invalid length")
	}
}

func TestModeInfoBytes(t *testing.T) {
	m := ModeInfo{Clock: 148500, Hdisplay: 1920, Htotal: 2200, Vdisplay: 1080, Vtotal: 1125, Vrefresh: 60}
	copy(m.Name[:], "1920x1080")
	if b := m.Bytes(); len(b) != 68 {
		t.Fatalf("expected 68 bytes, got %d", len(b))
	}
	if got := m.RefreshMilliHz(); got != 60000 {
		t.Fatalf("expected 60000 mHz, got %d", got)
	}
	if m.String() != "1920x1080@60" {
		t.Fatalf("unexpected mode string %q", m.String())
	}
}
