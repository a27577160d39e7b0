package evdev

import (
	"encoding/binary"
	"testing"
)

func encode(evs ...Event) []byte {
	buf := make([]byte, 0, len(evs)*EventSize)
	for _, ev := range evs {
		rec := make([]byte, EventSize)
		tail := rec[EventSize-8:]
		binary.NativeEndian.PutUint16(tail[0:2], ev.Type)
		binary.NativeEndian.PutUint16(tail[2:4], ev.Code)
		binary.NativeEndian.PutUint32(tail[4:8], uint32(ev.Value))
		buf = append(buf, rec...)
	}
	return buf
}

func TestParse_DecodesWholeEvents(t *testing.T) {
	in := []Event{
		{Type: EvRel, Code: RelX, Value: -3},
		{Type: EvKey, Code: BtnLeft, Value: 1},
		{Type: EvSyn, Code: SynReport},
	}
	buf := encode(in...)
	buf = append(buf, 1, 2, 3) // partial trailing record

	var got []Event
	used := Parse(buf, func(ev Event) { got = append(got, ev) })
	if used != 3*EventSize {
		t.Fatalf("expected %d bytes used, got %d", 3*EventSize, used)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, in[i], got[i])
		}
	}
}

func TestScaleAbs(t *testing.T) {
	info := AbsInfo{Min: 0, Max: 4095}
	cases := []struct {
		value int32
		want  int
	}{
		{0, 0},
		{4095, 1919},
		{2048, 959},
		{-10, 0},
		{9000, 1919},
	}
	for _, tc := range cases {
		if got := ScaleAbs(info, tc.value, 1920); got != tc.want {
			t.Fatalf("value %d: expected %d, got %d", tc.value, tc.want, got)
		}
	}
	if got := ScaleAbs(AbsInfo{}, 5, 100); got != 0 {
		t.Fatalf("expected 0 for empty range, got %d", got)
	}
}

func TestTestBit(t *testing.T) {
	bits := []byte{0x02, 0x80}
	if !testBit(bits, 1) || !testBit(bits, 15) || testBit(bits, 0) || testBit(bits, 16) {
		t.Fatalf("unexpected bit results")
	}
}
