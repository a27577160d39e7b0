// Package xcursor loads cursor images from Xcursor themes.
package xcursor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

const (
	magic         = "Xcur"
	fileHeaderLen = 16
	tocEntryLen   = 12
	chunkImage    = 0xfffd0002
	imageHeader   = 36
	maxImageSize  = 0x7fff
)

// Image is one frame of a cursor at a nominal size.
type Image struct {
	Size   int // nominal size
	Width  int
	Height int
	XHot   int
	YHot   int
	Delay  int // ms, for animated cursors
	// Pixels holds premultiplied ARGB words in row-major order.
	Pixels []uint32
}

var errFormat = errors.New("xcursor: invalid file")

// Decode parses every image chunk of an Xcursor file.
func Decode(data []byte) ([]Image, error) {
	if len(data) < fileHeaderLen || string(data[:4]) != magic {
		return nil, errFormat
	}
	le := binary.LittleEndian
	hdr := int(le.Uint32(data[4:8]))
	ntoc := int(le.Uint32(data[12:16]))
	if hdr < fileHeaderLen || hdr+ntoc*tocEntryLen > len(data) {
		return nil, errFormat
	}

	var images []Image
	for i := 0; i < ntoc; i++ {
		entry := data[hdr+i*tocEntryLen:]
		if le.Uint32(entry[0:4]) != chunkImage {
			continue
		}
		pos := int(le.Uint32(entry[8:12]))
		im, err := decodeImage(data, pos)
		if err != nil {
			return nil, fmt.Errorf("xcursor: image %d: %w", i, err)
		}
		images = append(images, im)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("xcursor: no images")
	}
	return images, nil
}

func decodeImage(data []byte, pos int) (Image, error) {
	le := binary.LittleEndian
	if pos < 0 || pos+imageHeader > len(data) {
		return Image{}, errFormat
	}
	c := data[pos:]
	if le.Uint32(c[0:4]) != imageHeader || le.Uint32(c[4:8]) != chunkImage {
		return Image{}, errFormat
	}
	im := Image{
		Size:   int(le.Uint32(c[8:12])),
		Width:  int(le.Uint32(c[16:20])),
		Height: int(le.Uint32(c[20:24])),
		XHot:   int(le.Uint32(c[24:28])),
		YHot:   int(le.Uint32(c[28:32])),
		Delay:  int(le.Uint32(c[32:36])),
	}
	if im.Width <= 0 || im.Height <= 0 || im.Width > maxImageSize || im.Height > maxImageSize ||
		im.XHot > im.Width || im.YHot > im.Height {
		return Image{}, errFormat
	}
	n := im.Width * im.Height
	px := c[imageHeader:]
	if len(px) < 4*n {
		return Image{}, errFormat
	}
	im.Pixels = make([]uint32, n)
	for i := range im.Pixels {
		im.Pixels[i] = le.Uint32(px[4*i:])
	}
	return im, nil
}

// Best returns the first frame whose nominal size is closest to size.
func Best(images []Image, size int) *Image {
	var best *Image
	bestDist := -1
	for i := range images {
		d := images[i].Size - size
		if d < 0 {
			d = -d
		}
		if best == nil || d < bestDist {
			best, bestDist = &images[i], d
		}
	}
	return best
}

// RGBA converts the frame into a premultiplied image.
func (im *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			p := im.Pixels[y*im.Width+x]
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(p >> 16),
				G: uint8(p >> 8),
				B: uint8(p),
				A: uint8(p >> 24),
			})
		}
	}
	return out
}

// Fit scales the frame down so it fits in max x max pixels, adjusting the
// hotspot. Frames that already fit are returned unchanged.
func (im *Image) Fit(max int) *Image {
	if im.Width <= max && im.Height <= max {
		return im
	}
	w, h := im.Width, im.Height
	if w >= h {
		w, h = max, im.Height*max/im.Width
	} else {
		w, h = im.Width*max/im.Height, max
	}
	w, h = maxInt(w, 1), maxInt(h, 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), im.RGBA(), image.Rect(0, 0, im.Width, im.Height), xdraw.Src, nil)

	out := &Image{
		Size:   im.Size * w / im.Width,
		Width:  w,
		Height: h,
		XHot:   im.XHot * w / im.Width,
		YHot:   im.YHot * h / im.Height,
		Delay:  im.Delay,
		Pixels: make([]uint32, w*h),
	}
	for i := range out.Pixels {
		p := dst.Pix[4*i : 4*i+4]
		out.Pixels[i] = uint32(p[3])<<24 | uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
