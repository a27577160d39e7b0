package platform

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// Format describes the in-memory byte order of a pixel. FormatRGBA32
// stores R first, FormatBGRA32 stores B first, and so on.
type Format int

const (
	FormatNone Format = iota
	FormatA8
	FormatRGBA32
	FormatARGB32
	FormatXRGB32
	FormatRGB24

	FormatABGR32
	FormatBGRA32
	FormatBGRX32
	FormatBGR24
)

type channel uint8

const (
	chR channel = iota
	chG
	chB
	chA
	chX
)

var formatLayouts = map[Format][]channel{
	FormatA8:     {chA},
	FormatRGBA32: {chR, chG, chB, chA},
	FormatARGB32: {chA, chR, chG, chB},
	FormatXRGB32: {chX, chR, chG, chB},
	FormatRGB24:  {chR, chG, chB},
	FormatABGR32: {chA, chB, chG, chR},
	FormatBGRA32: {chB, chG, chR, chA},
	FormatBGRX32: {chB, chG, chR, chX},
	FormatBGR24:  {chB, chG, chR},
}

var formatNames = map[Format]string{
	FormatNone:   "none",
	FormatA8:     "a8",
	FormatRGBA32: "rgba32",
	FormatARGB32: "argb32",
	FormatXRGB32: "xrgb32",
	FormatRGB24:  "rgb24",
	FormatABGR32: "abgr32",
	FormatBGRA32: "bgra32",
	FormatBGRX32: "bgrx32",
	FormatBGR24:  "bgr24",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Size returns the number of bytes per pixel.
func (f Format) Size() int {
	return len(formatLayouts[f])
}

// Reverse returns the format with the opposite byte order.
func (f Format) Reverse() Format {
	switch f {
	case FormatRGBA32:
		return FormatABGR32
	case FormatABGR32:
		return FormatRGBA32
	case FormatARGB32:
		return FormatBGRA32
	case FormatBGRA32:
		return FormatARGB32
	case FormatXRGB32:
		return FormatBGRX32
	case FormatBGRX32:
		return FormatXRGB32
	case FormatRGB24:
		return FormatBGR24
	case FormatBGR24:
		return FormatRGB24
	}
	return f
}

var littleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// WordFormat converts a format expressed as a native-endian word, the way
// DRM fourcc codes and Xlib visuals describe pixels, into byte order.
func WordFormat(word Format) Format {
	if littleEndian {
		return word.Reverse()
	}
	return word
}

func (f Format) hasColor() bool {
	return f != FormatA8 && f != FormatNone
}

func (f Format) hasAlpha() bool {
	for _, c := range formatLayouts[f] {
		if c == chA {
			return true
		}
	}
	return false
}

// Image is a raw pixel buffer. Data may be memory owned by a backend, in
// which case it is only valid until the buffer is applied.
type Image struct {
	Width  int
	Height int
	Stride int
	Format Format
	Data   []byte
}

// NewImage allocates a tightly packed image.
func NewImage(width, height int, format Format) *Image {
	stride := width * format.Size()
	return &Image{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Data:   make([]byte, stride*height),
	}
}

func (im *Image) ColorModel() color.Model { return color.NRGBAModel }

func (im *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, im.Width, im.Height)
}

func (im *Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(im.Bounds())) {
		return color.NRGBA{}
	}
	return im.pixel(x, y)
}

func (im *Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(im.Bounds())) {
		return
	}
	im.setPixel(x, y, color.NRGBAModel.Convert(c).(color.NRGBA))
}

func (im *Image) offset(x, y int) int {
	return y*im.Stride + x*im.Format.Size()
}

func (im *Image) pixel(x, y int) color.NRGBA {
	layout := formatLayouts[im.Format]
	off := im.offset(x, y)
	px := color.NRGBA{A: 0xff}
	for i, ch := range layout {
		v := im.Data[off+i]
		switch ch {
		case chR:
			px.R = v
		case chG:
			px.G = v
		case chB:
			px.B = v
		case chA:
			px.A = v
		}
	}
	return px
}

func (im *Image) setPixel(x, y int, px color.NRGBA) {
	layout := formatLayouts[im.Format]
	off := im.offset(x, y)
	for i, ch := range layout {
		var v uint8
		switch ch {
		case chR:
			v = px.R
		case chG:
			v = px.G
		case chB:
			v = px.B
		case chA:
			v = px.A
		case chX:
			v = 0xff
		}
		im.Data[off+i] = v
	}
}

// Convert copies src into dst, converting the pixel format. The copied
// region is the intersection of both images. Channels missing in src are
// filled with 0 for color and 0xff for alpha.
func Convert(dst, src *Image) error {
	if dst.Format.Size() == 0 || src.Format.Size() == 0 {
		return fmt.Errorf("convert %s to %s: %w", src.Format, dst.Format, ErrUnsupported)
	}
	w := min(dst.Width, src.Width)
	h := min(dst.Height, src.Height)
	if src.Format == dst.Format {
		n := w * src.Format.Size()
		for y := 0; y < h; y++ {
			copy(dst.Data[y*dst.Stride:y*dst.Stride+n], src.Data[y*src.Stride:y*src.Stride+n])
		}
		return nil
	}

	srcColor := src.Format.hasColor()
	srcAlpha := src.Format.hasAlpha()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := src.pixel(x, y)
			if !srcColor {
				px.R, px.G, px.B = 0, 0, 0
			}
			if !srcAlpha {
				px.A = 0xff
			}
			dst.setPixel(x, y, px)
		}
	}
	return nil
}
