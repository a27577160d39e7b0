package x11

import (
	"fmt"
	"image/color"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"

	"github.com/1broseidon/swa/internal/platform"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
)

// _NET_WM_STATE actions.
const (
	stateRemove = 0
	stateAdd    = 1
)

// _NET_WM_MOVERESIZE directions.
const (
	moveResizeTopLeft = iota
	moveResizeTop
	moveResizeTopRight
	moveResizeRight
	moveResizeBottomRight
	moveResizeBottom
	moveResizeBottomLeft
	moveResizeLeft
	moveResizeMove
)

const eventMask = xproto.EventMaskExposure | xproto.EventMaskStructureNotify |
	xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease |
	xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
	xproto.EventMaskPointerMotion | xproto.EventMaskEnterWindow |
	xproto.EventMaskLeaveWindow | xproto.EventMaskFocusChange |
	xproto.EventMaskPropertyChange

type Window struct {
	d        *Display
	id       xproto.Window
	listener *platform.Listener
	title    string

	x, y          int
	width, height int
	positioned    bool
	minW, minH    int
	maxW, maxH    int

	surface     *bufferSurface
	cursor      xproto.Cursor
	ownedCursor bool

	state  platform.WindowState
	mapped bool

	redraw     bool
	drawQueued bool
	closed     bool
}

var _ platform.Window = (*Window)(nil)

func (d *Display) CreateWindow(s platform.WindowSettings) (platform.Window, error) {
	if d.closed {
		return nil, platform.ErrClosed
	}
	switch s.Surface {
	case platform.SurfaceGL, platform.SurfaceVulkan:
		d.logger.Warn("surface type not supported", "surface", s.Surface)
		return nil, fmt.Errorf("create %s surface: %w", s.Surface, platform.ErrUnsupported)
	}
	if s.Transparent {
		d.logger.Debug("transparent windows not supported, creating an opaque one")
	}

	w := &Window{
		d:          d,
		listener:   s.Listener,
		title:      s.Title,
		width:      s.Width,
		height:     s.Height,
		positioned: s.Positioned,
		minW:       s.MinWidth,
		minH:       s.MinHeight,
		maxW:       s.MaxWidth,
		maxH:       s.MaxHeight,
	}
	if w.width <= 0 || w.height <= 0 {
		w.width, w.height = defaultWidth, defaultHeight
	}
	if s.Positioned {
		w.x, w.y = s.X, s.Y
	} else {
		w.x, w.y = center(d.conn.placementArea(), w.width, w.height)
	}

	cur, owned, err := d.cursor(s.Cursor)
	if err != nil {
		d.logger.Warn("load cursor", "error", err)
	}

	c := d.conn.Conn()
	id, err := xproto.NewWindowId(c)
	if err != nil {
		return nil, fmt.Errorf("allocate window id: %w", err)
	}
	screen := d.conn.XUtil.Screen()
	values := []uint32{screen.BlackPixel, eventMask}
	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	if cur != 0 {
		mask |= xproto.CwCursor
		values = append(values, uint32(cur))
	}
	if err := xproto.CreateWindowChecked(c, screen.RootDepth, id, d.conn.Root,
		int16(w.x), int16(w.y), uint16(w.width), uint16(w.height), 0,
		xproto.WindowClassInputOutput, screen.RootVisual, mask, values).Check(); err != nil {
		if owned {
			xproto.FreeCursor(c, cur)
		}
		return nil, fmt.Errorf("create window: %w", err)
	}
	w.id = id
	w.cursor, w.ownedCursor = cur, owned

	xu := d.conn.XUtil
	if err := icccm.WmProtocolsSet(xu, id, []string{"WM_DELETE_WINDOW"}); err != nil {
		d.logger.Warn("set WM_PROTOCOLS", "error", err)
	}
	w.setTitle(s.Title)
	if s.AppName != "" {
		icccm.WmClassSet(xu, id, &icccm.WmClass{Instance: s.AppName, Class: s.AppName})
	}
	w.setNormalHints()

	if s.Surface == platform.SurfaceBuffer {
		w.surface = &bufferSurface{w: w}
	}
	d.windows[id] = w

	if !s.Hidden {
		xproto.MapWindow(c, id)
	}
	if s.State != platform.StateNormal {
		if err := w.SetState(s.State); err != nil {
			d.logger.Warn("set initial state", "state", s.State, "error", err)
		}
	}
	w.listener.FireResize(w, w.width, w.height)
	w.scheduleDraw()
	return w, nil
}

func (w *Window) Capabilities() platform.WindowCap {
	return platform.WindowCapSize | platform.WindowCapPosition | platform.WindowCapMinSize |
		platform.WindowCapMaxSize | platform.WindowCapCursor | platform.WindowCapTitle |
		platform.WindowCapIcon | platform.WindowCapVisibility | platform.WindowCapFullscreen |
		platform.WindowCapMaximize | platform.WindowCapMinimize | platform.WindowCapBeginMove |
		platform.WindowCapBeginResize
}

func (w *Window) setNormalHints() {
	hints := &icccm.NormalHints{}
	if w.positioned {
		hints.Flags |= icccm.SizeHintUSPosition
		hints.X, hints.Y = w.x, w.y
	}
	if w.minW > 0 || w.minH > 0 {
		hints.Flags |= icccm.SizeHintPMinSize
		hints.MinWidth, hints.MinHeight = uint(w.minW), uint(w.minH)
	}
	if w.maxW > 0 || w.maxH > 0 {
		hints.Flags |= icccm.SizeHintPMaxSize
		hints.MaxWidth, hints.MaxHeight = uint(w.maxW), uint(w.maxH)
	}
	if err := icccm.WmNormalHintsSet(w.d.conn.XUtil, w.id, hints); err != nil {
		w.d.logger.Warn("set WM_NORMAL_HINTS", "error", err)
	}
}

func (w *Window) SetMinSize(width, height int) error {
	w.minW, w.minH = width, height
	w.setNormalHints()
	return nil
}

func (w *Window) SetMaxSize(width, height int) error {
	w.maxW, w.maxH = width, height
	w.setNormalHints()
	return nil
}

func (w *Window) Show(visible bool) error {
	if visible {
		if err := xproto.MapWindowChecked(w.d.conn.Conn(), w.id).Check(); err != nil {
			return err
		}
		// Ask the window manager to raise and focus it.
		const sourceIndication = 1
		return w.d.conn.SendRootMessage(w.id, "_NET_ACTIVE_WINDOW", sourceIndication, xproto.TimeCurrentTime)
	}
	return xproto.UnmapWindowChecked(w.d.conn.Conn(), w.id).Check()
}

func (w *Window) SetSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", width, height)
	}
	return xproto.ConfigureWindowChecked(w.d.conn.Conn(), w.id,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(width), uint32(height)}).Check()
}

func (w *Window) SetPosition(x, y int) error {
	return xproto.ConfigureWindowChecked(w.d.conn.Conn(), w.id,
		xproto.ConfigWindowX|xproto.ConfigWindowY,
		[]uint32{uint32(int32(x)), uint32(int32(y))}).Check()
}

// configured records the geometry from a ConfigureNotify.
func (w *Window) configured(x, y, width, height int) {
	w.x, w.y = x, y
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	w.listener.FireResize(w, width, height)
	w.Refresh()
}

func (w *Window) SetCursor(c platform.Cursor) error {
	cur, owned, err := w.d.cursor(c)
	if err != nil {
		return err
	}
	if err := xproto.ChangeWindowAttributesChecked(w.d.conn.Conn(), w.id,
		xproto.CwCursor, []uint32{uint32(cur)}).Check(); err != nil {
		if owned {
			xproto.FreeCursor(w.d.conn.Conn(), cur)
		}
		return fmt.Errorf("set cursor: %w", err)
	}
	w.releaseCursor()
	w.cursor, w.ownedCursor = cur, owned
	return nil
}

func (w *Window) releaseCursor() {
	if w.ownedCursor {
		xproto.FreeCursor(w.d.conn.Conn(), w.cursor)
	}
	w.cursor, w.ownedCursor = 0, false
}

// Refresh schedules a draw, or remembers the request while a buffer is
// being presented.
func (w *Window) Refresh() {
	if w.closed {
		return
	}
	if w.surface != nil && w.surface.pending {
		w.redraw = true
		return
	}
	w.scheduleDraw()
}

func (w *Window) scheduleDraw() {
	if w.drawQueued || w.closed {
		return
	}
	w.drawQueued = true
	w.d.later(func() {
		w.drawQueued = false
		if !w.closed {
			w.listener.FireDraw(w)
		}
	})
}

func (w *Window) frameCompleted() {
	if !w.redraw || w.closed {
		return
	}
	w.redraw = false
	w.listener.FireDraw(w)
}

// SurfaceFrame has nothing to pace: X11 windows only have buffer surfaces.
func (w *Window) SurfaceFrame() {}

func (w *Window) SetState(state platform.WindowState) error {
	const (
		maxHorz    = "_NET_WM_STATE_MAXIMIZED_HORZ"
		maxVert    = "_NET_WM_STATE_MAXIMIZED_VERT"
		fullscreen = "_NET_WM_STATE_FULLSCREEN"
	)
	switch state {
	case platform.StateNormal:
		if err := w.wmState(stateRemove, fullscreen, ""); err != nil {
			return err
		}
		if err := w.wmState(stateRemove, maxHorz, maxVert); err != nil {
			return err
		}
		if !w.mapped {
			xproto.MapWindow(w.d.conn.Conn(), w.id)
		}
		return nil
	case platform.StateMaximized:
		if err := w.wmState(stateRemove, fullscreen, ""); err != nil {
			return err
		}
		return w.wmState(stateAdd, maxHorz, maxVert)
	case platform.StateFullscreen:
		return w.wmState(stateAdd, fullscreen, "")
	case platform.StateMinimized:
		const iconicState = 3
		return w.d.conn.SendRootMessage(w.id, "WM_CHANGE_STATE", iconicState)
	}
	return fmt.Errorf("unknown window state %d", state)
}

// wmState sends a _NET_WM_STATE request for up to two properties.
func (w *Window) wmState(action uint32, first, second string) error {
	a1, err := w.d.conn.Atom(first)
	if err != nil {
		return err
	}
	var a2 xproto.Atom
	if second != "" {
		if a2, err = w.d.conn.Atom(second); err != nil {
			return err
		}
	}
	const sourceIndication = 1 // normal application
	return w.d.conn.SendRootMessage(w.id, "_NET_WM_STATE", action, uint32(a1), uint32(a2), sourceIndication)
}

// stateChanged re-reads _NET_WM_STATE and reports a changed state.
func (w *Window) stateChanged() {
	states, err := ewmh.WmStateGet(w.d.conn.XUtil, w.id)
	if err != nil {
		return
	}
	state := windowState(states)
	if state != w.state {
		w.state = state
		w.listener.FireState(w, state)
	}
}

func windowState(states []string) platform.WindowState {
	var horz, vert bool
	for _, s := range states {
		switch s {
		case "_NET_WM_STATE_HIDDEN":
			return platform.StateMinimized
		case "_NET_WM_STATE_FULLSCREEN":
			return platform.StateFullscreen
		case "_NET_WM_STATE_MAXIMIZED_HORZ":
			horz = true
		case "_NET_WM_STATE_MAXIMIZED_VERT":
			vert = true
		}
	}
	if horz && vert {
		return platform.StateMaximized
	}
	return platform.StateNormal
}

func (w *Window) BeginMove(trigger platform.EventToken) error {
	return w.moveResize(trigger, moveResizeMove)
}

func (w *Window) BeginResize(trigger platform.EventToken, edges platform.Edges) error {
	dir, ok := resizeDirection(edges)
	if !ok {
		return fmt.Errorf("invalid resize edges %b", edges)
	}
	return w.moveResize(trigger, dir)
}

func resizeDirection(e platform.Edges) (uint32, bool) {
	switch e {
	case platform.EdgeTop | platform.EdgeLeft:
		return moveResizeTopLeft, true
	case platform.EdgeTop:
		return moveResizeTop, true
	case platform.EdgeTop | platform.EdgeRight:
		return moveResizeTopRight, true
	case platform.EdgeRight:
		return moveResizeRight, true
	case platform.EdgeBottom | platform.EdgeRight:
		return moveResizeBottomRight, true
	case platform.EdgeBottom:
		return moveResizeBottom, true
	case platform.EdgeBottom | platform.EdgeLeft:
		return moveResizeBottomLeft, true
	case platform.EdgeLeft:
		return moveResizeLeft, true
	}
	return 0, false
}

// xButton is the core button number of b.
func xButton(b platform.MouseButton) uint32 {
	for x, mb := range xButtons {
		if mb == b {
			return uint32(x)
		}
	}
	return 1
}

// moveResize hands the pointer grab to the window manager.
func (w *Window) moveResize(trigger platform.EventToken, direction uint32) error {
	c := w.d.conn.Conn()
	pos, err := xproto.TranslateCoordinates(c, w.id, w.d.conn.Root,
		int16(trigger.X), int16(trigger.Y)).Reply()
	if err != nil {
		return fmt.Errorf("translate coordinates: %w", err)
	}
	xproto.UngrabPointer(c, xproto.TimeCurrentTime)
	const sourceIndication = 1
	return w.d.conn.SendRootMessage(w.id, "_NET_WM_MOVERESIZE",
		uint32(int32(pos.DstX)), uint32(int32(pos.DstY)), direction, xButton(trigger.Button), sourceIndication)
}

func (w *Window) setTitle(title string) {
	if err := ewmh.WmNameSet(w.d.conn.XUtil, w.id, title); err != nil {
		w.d.logger.Warn("set _NET_WM_NAME", "error", err)
	}
	icccm.WmNameSet(w.d.conn.XUtil, w.id, title)
}

func (w *Window) SetTitle(title string) error {
	w.title = title
	w.setTitle(title)
	return nil
}

func (w *Window) SetIcon(icon *platform.Image) error {
	if icon == nil {
		atom, err := w.d.conn.Atom("_NET_WM_ICON")
		if err != nil {
			return err
		}
		return xproto.DeletePropertyChecked(w.d.conn.Conn(), w.id, atom).Check()
	}
	return ewmh.WmIconSet(w.d.conn.XUtil, w.id, []ewmh.WmIcon{iconData(icon)})
}

// iconData packs icon as non-premultiplied ARGB words.
func iconData(icon *platform.Image) ewmh.WmIcon {
	data := make([]uint, 0, icon.Width*icon.Height)
	for y := 0; y < icon.Height; y++ {
		for x := 0; x < icon.Width; x++ {
			p := color.NRGBAModel.Convert(icon.At(x, y)).(color.NRGBA)
			data = append(data, uint(p.A)<<24|uint(p.R)<<16|uint(p.G)<<8|uint(p.B))
		}
	}
	return ewmh.WmIcon{Width: uint(icon.Width), Height: uint(icon.Height), Data: data}
}

func (w *Window) IsClientDecorated() bool { return false }

func (w *Window) GetBuffer() (platform.Image, error) {
	if w.surface == nil {
		return platform.Image{}, platform.ErrWrongSurface
	}
	img, err := w.surface.get()
	if err != nil {
		w.d.logger.Warn("get buffer", "error", err)
	}
	return img, err
}

func (w *Window) ApplyBuffer() error {
	if w.surface == nil {
		return platform.ErrWrongSurface
	}
	if err := w.surface.apply(); err != nil {
		w.d.logger.Warn("apply buffer", "error", err)
		return err
	}
	return nil
}

func (w *Window) GLMakeCurrent() error           { return platform.ErrWrongSurface }
func (w *Window) GLSwapBuffers() error           { return platform.ErrWrongSurface }
func (w *Window) GLSetSwapInterval(int) error    { return platform.ErrWrongSurface }
func (w *Window) VulkanSurface() (uint64, error) { return 0, platform.ErrWrongSurface }
func (w *Window) Display() platform.Display      { return w.d }

func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.surface != nil {
		w.surface.destroy()
		w.listener.FireSurfaceDestroyed(w)
		w.surface = nil
	}
	var err error
	if w.d.conn != nil {
		w.releaseCursor()
		err = xproto.DestroyWindowChecked(w.d.conn.Conn(), w.id).Check()
	}
	delete(w.d.windows, w.id)
	if w.d.seat.focus == w {
		w.d.seat.focus = nil
	}
	if w.d.seat.over == w {
		w.d.seat.over = nil
	}
	w.listener.FireDestroyed(w)
	if err != nil {
		return fmt.Errorf("destroy window: %w", err)
	}
	return nil
}
