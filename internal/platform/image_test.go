package platform

import (
	"image/color"
	"testing"
)

func fillPattern(im *Image) {
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			im.Set(x, y, color.NRGBA{
				R: uint8(x * 17),
				G: uint8(y * 31),
				B: uint8(x*y + 5),
				A: uint8(200 - x - y),
			})
		}
	}
}

func TestConvert_RoundTripPreservesCarriedChannels(t *testing.T) {
	formats := []Format{
		FormatA8, FormatRGBA32, FormatARGB32, FormatXRGB32, FormatRGB24,
		FormatABGR32, FormatBGRA32, FormatBGRX32, FormatBGR24,
	}

	for _, a := range formats {
		for _, b := range formats {
			src := NewImage(5, 4, a)
			fillPattern(src)

			mid := NewImage(5, 4, b)
			if err := Convert(mid, src); err != nil {
				t.Fatalf("%s->%s: %v", a, b, err)
			}
			back := NewImage(5, 4, a)
			if err := Convert(back, mid); err != nil {
				t.Fatalf("%s->%s: %v", b, a, err)
			}

			for y := 0; y < 4; y++ {
				for x := 0; x < 5; x++ {
					want := src.pixel(x, y)
					if !b.hasAlpha() && a.hasAlpha() {
						want.A = 0xff
					}
					if !b.hasColor() && a.hasColor() {
						want.R, want.G, want.B = 0, 0, 0
					}
					got := back.pixel(x, y)
					if got != want {
						t.Fatalf("%s->%s->%s at (%d,%d): got %v want %v", a, b, a, x, y, got, want)
					}
				}
			}
		}
	}
}

func TestConvert_HonorsStrideAndClips(t *testing.T) {
	src := &Image{Width: 2, Height: 2, Stride: 12, Format: FormatRGBA32, Data: make([]byte, 24)}
	src.Set(1, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 4})

	dst := NewImage(1, 2, FormatBGRA32)
	if err := Convert(dst, src); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(dst.Data) != 8 {
		t.Fatalf("unexpected dst size %d", len(dst.Data))
	}

	dst2 := NewImage(3, 3, FormatBGRA32)
	if err := Convert(dst2, src); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got := dst2.Data[dst2.Stride+4 : dst2.Stride+8]; got[0] != 3 || got[1] != 2 || got[2] != 1 || got[3] != 4 {
		t.Fatalf("unexpected pixel bytes %v", got)
	}
	if got := dst2.At(2, 2).(color.NRGBA); got != (color.NRGBA{}) {
		t.Fatalf("expected pixel outside src to be untouched, got %v", got)
	}
}

func TestFormat_ReverseIsInvolution(t *testing.T) {
	for f := FormatNone; f <= FormatBGR24; f++ {
		if f.Reverse().Reverse() != f {
			t.Fatalf("reverse not an involution for %s", f)
		}
		if f.Reverse().Size() != f.Size() {
			t.Fatalf("reverse changed size for %s", f)
		}
	}
}

func TestWordFormat(t *testing.T) {
	got := WordFormat(FormatXRGB32)
	want := FormatXRGB32
	if littleEndian {
		want = FormatBGRX32
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestConvert_RejectsNone(t *testing.T) {
	if err := Convert(NewImage(1, 1, FormatRGBA32), &Image{Width: 1, Height: 1}); err == nil {
		t.Fatalf("expected error for FormatNone source")
	}
}
