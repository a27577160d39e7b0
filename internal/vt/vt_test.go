package vt

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestParseVTRdev(t *testing.T) {
	cases := []struct {
		rdev uint64
		want int
		ok   bool
	}{
		{unix.Mkdev(4, 2), 2, true},
		{unix.Mkdev(4, 63), 63, true},
		{unix.Mkdev(4, 0), 0, false},
		{unix.Mkdev(4, 64), 0, false},
		{unix.Mkdev(136, 3), 0, false},
	}
	for _, tc := range cases {
		got, ok := parseVTRdev(tc.rdev)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("rdev %#x: expected (%d,%v), got (%d,%v)", tc.rdev, tc.want, tc.ok, got, ok)
		}
	}
}

func TestDetect_UsesEnvironment(t *testing.T) {
	t.Setenv("SWA_TTY", "/dev/tty7")
	n, err := Detect()
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected vt 7, got %d", n)
	}

	t.Setenv("SWA_TTY", "abc")
	if _, err := Detect(); err == nil {
		t.Fatalf("expected error for invalid SWA_TTY")
	}
}

func TestVTModeLayout(t *testing.T) {
	if unsafe.Sizeof(vtMode{}) != 8 {
		t.Fatalf("unexpected vt_mode size %d", unsafe.Sizeof(vtMode{}))
	}
	if unsafe.Sizeof(vtStat{}) != 6 {
		t.Fatalf("unexpected vt_stat size %d", unsafe.Sizeof(vtStat{}))
	}
}
