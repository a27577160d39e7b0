package x11

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xcursor"

	"github.com/1broseidon/swa/internal/platform"
)

// fontGlyphs maps cursor types to glyphs of the core X cursor font
// (X11/cursorfont.h).
var fontGlyphs = map[platform.CursorType]uint16{
	platform.CursorDefault:         68,  // left_ptr
	platform.CursorLeftPtr:         68,  // left_ptr
	platform.CursorLoad:            150, // watch
	platform.CursorLoadPtr:         150, // watch
	platform.CursorRightPtr:        94,  // right_ptr
	platform.CursorHand:            60,  // hand2
	platform.CursorGrab:            58,  // hand1
	platform.CursorGrabbing:        52,  // fleur
	platform.CursorText:            152, // xterm
	platform.CursorMove:            52,  // fleur
	platform.CursorCrosshair:       34,  // crosshair
	platform.CursorHelp:            92,  // question_arrow
	platform.CursorNotAllowed:      24,  // circle
	platform.CursorSizeTop:         138, // top_side
	platform.CursorSizeBottom:      16,  // bottom_side
	platform.CursorSizeLeft:        70,  // left_side
	platform.CursorSizeRight:       96,  // right_side
	platform.CursorSizeTopLeft:     134, // top_left_corner
	platform.CursorSizeTopRight:    136, // top_right_corner
	platform.CursorSizeBottomLeft:  12,  // bottom_left_corner
	platform.CursorSizeBottomRight: 14,  // bottom_right_corner
}

// cursor resolves c to a server cursor. Named cursors (and the invisible
// one) are cached per type; image cursors are owned by the caller and
// reported through owned.
func (d *Display) cursor(c platform.Cursor) (cur xproto.Cursor, owned bool, err error) {
	if c.Type == platform.CursorImage {
		if c.Image == nil {
			return 0, false, errors.New("image cursor without image")
		}
		cur, err := d.imageCursor(c.Image, c.HotspotX, c.HotspotY)
		return cur, true, err
	}
	if cur, ok := d.cursors[c.Type]; ok {
		return cur, false, nil
	}

	if c.Type == platform.CursorNone {
		cur, err = d.imageCursor(platform.NewImage(1, 1, platform.FormatRGBA32), 0, 0)
	} else {
		glyph, ok := fontGlyphs[c.Type]
		if !ok {
			glyph = fontGlyphs[platform.CursorDefault]
		}
		cur, err = xcursor.CreateCursor(d.conn.XUtil, glyph)
	}
	if err != nil {
		return 0, false, fmt.Errorf("create cursor %d: %w", c.Type, err)
	}
	d.cursors[c.Type] = cur
	return cur, false, nil
}

// imageCursor uploads im as a premultiplied ARGB picture and turns it into
// a cursor through the RENDER extension.
func (d *Display) imageCursor(im *platform.Image, hotX, hotY int) (xproto.Cursor, error) {
	if !d.conn.hasRender {
		return 0, fmt.Errorf("render: %w", platform.ErrUnsupported)
	}
	format, err := d.argbFormat()
	if err != nil {
		return 0, err
	}
	c := d.conn.Conn()
	w, h := uint16(im.Width), uint16(im.Height)

	pix, err := xproto.NewPixmapId(c)
	if err != nil {
		return 0, err
	}
	if err := xproto.CreatePixmapChecked(c, 32, pix, xproto.Drawable(d.conn.Root), w, h).Check(); err != nil {
		return 0, fmt.Errorf("create cursor pixmap: %w", err)
	}
	defer xproto.FreePixmap(c, pix)

	gc, err := xproto.NewGcontextId(c)
	if err != nil {
		return 0, err
	}
	xproto.CreateGC(c, gc, xproto.Drawable(pix), 0, nil)
	defer xproto.FreeGC(c, gc)
	xproto.PutImage(c, xproto.ImageFormatZPixmap, xproto.Drawable(pix), gc, w, h, 0, 0, 0, 32, premultiplied(im))

	pic, err := render.NewPictureId(c)
	if err != nil {
		return 0, err
	}
	render.CreatePicture(c, pic, xproto.Drawable(pix), format, 0, nil)
	defer render.FreePicture(c, pic)

	cur, err := xproto.NewCursorId(c)
	if err != nil {
		return 0, err
	}
	if err := render.CreateCursorChecked(c, cur, pic, uint16(hotX), uint16(hotY)).Check(); err != nil {
		return 0, fmt.Errorf("create image cursor: %w", err)
	}
	return cur, nil
}

// argbFormat finds the 32-bit ARGB picture format.
func (d *Display) argbFormat() (render.Pictformat, error) {
	if d.pictARGB != 0 {
		return d.pictARGB, nil
	}
	reply, err := render.QueryPictFormats(d.conn.Conn()).Reply()
	if err != nil {
		return 0, fmt.Errorf("query picture formats: %w", err)
	}
	for _, f := range reply.Formats {
		if isARGB32(f) {
			d.pictARGB = f.Id
			return f.Id, nil
		}
	}
	return 0, errors.New("render: no ARGB32 picture format")
}

func isARGB32(f render.Pictforminfo) bool {
	df := f.Direct
	return f.Type == render.PictTypeDirect && f.Depth == 32 &&
		df.AlphaShift == 24 && df.AlphaMask == 0xff &&
		df.RedShift == 16 && df.RedMask == 0xff &&
		df.GreenShift == 8 && df.GreenMask == 0xff &&
		df.BlueShift == 0 && df.BlueMask == 0xff
}

// premultiplied returns im as little-endian premultiplied ARGB words.
func premultiplied(im *platform.Image) []byte {
	out := make([]byte, im.Width*im.Height*4)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			p := color.NRGBAModel.Convert(im.At(x, y)).(color.NRGBA)
			a := uint32(p.A)
			i := (y*im.Width + x) * 4
			out[i+0] = byte(uint32(p.B) * a / 0xff)
			out[i+1] = byte(uint32(p.G) * a / 0xff)
			out[i+2] = byte(uint32(p.R) * a / 0xff)
			out[i+3] = byte(a)
		}
	}
	return out
}

func (d *Display) freeCursors() {
	for t, cur := range d.cursors {
		xproto.FreeCursor(d.conn.Conn(), cur)
		delete(d.cursors, t)
	}
}
