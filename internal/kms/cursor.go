package kms

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/platform"
	"github.com/1broseidon/swa/internal/xcursor"
)

const defaultCursorSize = 64

// cursorImage is a premultiplied ARGB image ready for a cursor plane.
type cursorImage struct {
	img        *platform.Image
	hotX, hotY int
}

// hwCursor is the persistent cursor buffer of one output.
type hwCursor struct {
	dumb   *drm.Dumb
	width  int
	height int
	image  *cursorImage
}

var cursorFormat = platform.WordFormat(platform.FormatARGB32)

func newCursorImage(width, height int) *cursorImage {
	return &cursorImage{img: platform.NewImage(width, height, cursorFormat)}
}

func (c *cursorImage) setWord(x, y int, argb uint32) {
	off := y*c.img.Stride + x*4
	binary.NativeEndian.PutUint32(c.img.Data[off:off+4], argb)
}

func fromXcursor(im *xcursor.Image) *cursorImage {
	c := newCursorImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			c.setWord(x, y, im.Pixels[y*im.Width+x])
		}
	}
	c.hotX, c.hotY = im.XHot, im.YHot
	return c
}

// fromImage premultiplies a caller supplied cursor image.
func fromImage(im *platform.Image, hotX, hotY int) *cursorImage {
	c := newCursorImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			p := color.NRGBAModel.Convert(im.At(x, y)).(color.NRGBA)
			a := uint32(p.A)
			r := uint32(p.R) * a / 0xff
			g := uint32(p.G) * a / 0xff
			b := uint32(p.B) * a / 0xff
			c.setWord(x, y, a<<24|r<<16|g<<8|b)
		}
	}
	c.hotX, c.hotY = hotX, hotY
	return c
}

var arrowShape = []string{
	"X",
	"XX",
	"X.X",
	"X..X",
	"X...X",
	"X....X",
	"X.....X",
	"X......X",
	"X.......X",
	"X........X",
	"X.....XXXXX",
	"X..X..X",
	"X.X X..X",
	"XX  X..X",
	"X    X..X",
	"     X..X",
	"      XX",
}

// arrowCursor is used when no cursor theme can be found.
func arrowCursor() *cursorImage {
	c := newCursorImage(11, len(arrowShape))
	for y, row := range arrowShape {
		for x, ch := range row {
			switch ch {
			case 'X':
				c.setWord(x, y, 0xff000000)
			case '.':
				c.setWord(x, y, 0xffffffff)
			}
		}
	}
	return c
}

// cursorImage resolves c, caching named cursors per type. It returns nil
// for a hidden cursor.
func (d *Display) cursorImage(c platform.Cursor) (*cursorImage, error) {
	switch c.Type {
	case platform.CursorNone:
		return nil, nil
	case platform.CursorImage:
		if c.Image == nil {
			return nil, errors.New("image cursor without image")
		}
		return fromImage(c.Image, c.HotspotX, c.HotspotY), nil
	}

	if img, ok := d.cursors[c.Type]; ok {
		return img, nil
	}
	img, err := d.loadNamedCursor(c.Type)
	switch {
	case err == nil:
	case c.Type != platform.CursorDefault:
		d.logger.Debug("cursor not in theme, using default", "cursor", c.Type, "error", err)
		if img, err = d.cursorImage(platform.Cursor{Type: platform.CursorDefault}); err != nil {
			return nil, err
		}
	default:
		d.logger.Debug("no cursor theme, using builtin arrow", "error", err)
		img = arrowCursor()
	}
	d.cursors[c.Type] = img
	return img, nil
}

func (d *Display) loadNamedCursor(t platform.CursorType) (*cursorImage, error) {
	names := platform.CursorNames(t)
	if len(names) == 0 {
		return nil, fmt.Errorf("no theme name for cursor %d", t)
	}
	if d.theme == nil {
		d.theme = xcursor.LoadTheme(d.cfg.Cursor.Theme)
	}
	im, err := d.theme.Load(d.cfg.Cursor.Size, names...)
	if err != nil {
		return nil, err
	}
	return fromXcursor(im.Fit(d.cursorSize())), nil
}

func (d *Display) cursorSize() int {
	size := defaultCursorSize
	if v, err := d.dev.Capability(drm.CapCursorWidth); err == nil && v > 0 {
		size = int(v)
	}
	return size
}

func (d *Display) hwCursor(o *output) (*hwCursor, error) {
	if o.cursor != nil {
		return o.cursor, nil
	}
	w, h := defaultCursorSize, defaultCursorSize
	if v, err := d.dev.Capability(drm.CapCursorWidth); err == nil && v > 0 {
		w = int(v)
	}
	if v, err := d.dev.Capability(drm.CapCursorHeight); err == nil && v > 0 {
		h = int(v)
	}
	dumb, err := d.dev.CreateDumb(uint32(w), uint32(h), 32)
	if err != nil {
		return nil, fmt.Errorf("create cursor buffer: %w", err)
	}
	o.cursor = &hwCursor{dumb: dumb, width: w, height: h}
	return o.cursor, nil
}

// showCursor renders img into the output's cursor buffer and shows it.
// A nil img hides the cursor.
func (d *Display) showCursor(o *output, img *cursorImage) error {
	if !d.session.active {
		return nil
	}
	if img == nil {
		if o.cursor != nil {
			o.cursor.image = nil
		}
		return d.dev.SetCursor(o.crtc, 0, 0, 0)
	}
	hw, err := d.hwCursor(o)
	if err != nil {
		return err
	}
	if hw.image != img {
		clear(hw.dumb.Data)
		dst := &platform.Image{
			Width:  hw.width,
			Height: hw.height,
			Stride: int(hw.dumb.Pitch),
			Format: cursorFormat,
			Data:   hw.dumb.Data,
		}
		if err := platform.Convert(dst, img.img); err != nil {
			return err
		}
		hw.image = img
	}
	if err := d.dev.SetCursor(o.crtc, hw.dumb.Handle, uint32(hw.width), uint32(hw.height)); err != nil {
		return fmt.Errorf("set cursor on %s: %w", o.name, err)
	}
	return d.moveCursor(o)
}

func (d *Display) moveCursor(o *output) error {
	if !d.session.active || o.cursor == nil || o.cursor.image == nil {
		return nil
	}
	img := o.cursor.image
	return d.dev.MoveCursor(o.crtc, d.seat.x-img.hotX, d.seat.y-img.hotY)
}

func (d *Display) destroyCursors() {
	for _, o := range d.outputs {
		if o.cursor == nil {
			continue
		}
		if err := d.dev.DestroyDumb(o.cursor.dumb); err != nil {
			d.logger.Warn("destroy cursor buffer", "output", o.name, "error", err)
		}
		o.cursor = nil
	}
}
