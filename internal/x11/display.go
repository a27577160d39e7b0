package x11

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/keybind"

	"github.com/1broseidon/swa/internal/platform"
)

// event is one item read by the pump goroutine.
type event struct {
	ev  xgb.Event
	err xgb.Error
}

// Display is the X11 backend. A goroutine pumps X events into a channel;
// everything else runs on the goroutine calling Dispatch.
type Display struct {
	conn   *Connection
	logger *slog.Logger

	windows map[xproto.Window]*Window
	seat    seat

	cursors  map[platform.CursorType]xproto.Cursor
	pictARGB render.Pictformat

	wmProtocols xproto.Atom
	wmDelete    xproto.Atom
	netWmState  xproto.Atom

	events    chan event
	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	deferred  []func()
	lookahead *event

	fatal  bool
	closed bool
}

var (
	_ platform.Display      = (*Display)(nil)
	_ platform.OutputLister = (*Display)(nil)
)

// Open connects to the X server named by display ("" uses $DISPLAY).
func Open(display string, logger *slog.Logger) (*Display, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	d := newDisplay(conn, logger)
	for name, dst := range map[string]*xproto.Atom{
		"WM_PROTOCOLS":     &d.wmProtocols,
		"WM_DELETE_WINDOW": &d.wmDelete,
		"_NET_WM_STATE":    &d.netWmState,
	} {
		if *dst, err = conn.Atom(name); err != nil {
			conn.Close()
			return nil, err
		}
	}
	d.wg.Add(1)
	go d.pump()
	return d, nil
}

func newDisplay(conn *Connection, logger *slog.Logger) *Display {
	return &Display{
		conn:    conn,
		logger:  logger.With("backend", "x11"),
		windows: make(map[xproto.Window]*Window),
		cursors: make(map[platform.CursorType]xproto.Cursor),
		events:  make(chan event, 64),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// pump forwards events until the connection closes.
func (d *Display) pump() {
	defer d.wg.Done()
	defer close(d.events)
	for {
		ev, err := d.conn.Conn().WaitForEvent()
		if ev == nil && err == nil {
			return
		}
		select {
		case d.events <- event{ev: ev, err: err}:
		case <-d.done:
			return
		}
	}
}

func (d *Display) Capabilities() platform.DisplayCap {
	return platform.CapBufferSurface | platform.CapServerDecoration | platform.CapKeyboard |
		platform.CapMouse | platform.CapKeyboardText | platform.CapDataOffer
}

// later queues fn to run at the start of the next Dispatch.
func (d *Display) later(fn func()) {
	d.deferred = append(d.deferred, fn)
}

func (d *Display) runDeferred() int {
	queue := d.deferred
	d.deferred = nil
	for _, fn := range queue {
		fn()
	}
	return len(queue)
}

func (d *Display) Dispatch(block bool) bool {
	if d.closed || d.fatal {
		return false
	}
	ran := d.runDeferred()
	if block && ran == 0 && len(d.deferred) == 0 && d.lookahead == nil {
		select {
		case e, ok := <-d.events:
			if !ok {
				d.lost()
				return false
			}
			d.handle(e)
		case <-d.wake:
		}
	}
	for !d.fatal {
		e, ok := d.poll()
		if !ok {
			break
		}
		d.handle(e)
	}
	return !d.fatal
}

// poll returns the next queued event without blocking.
func (d *Display) poll() (event, bool) {
	if d.lookahead != nil {
		e := *d.lookahead
		d.lookahead = nil
		return e, true
	}
	select {
	case e, ok := <-d.events:
		if !ok {
			d.lost()
			return event{}, false
		}
		return e, true
	default:
		return event{}, false
	}
}

func (d *Display) lost() {
	if !d.fatal {
		d.logger.Error("X server connection lost")
	}
	d.fatal = true
}

func (d *Display) Wakeup() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Display) handle(e event) {
	if e.err != nil {
		d.logger.Warn("X protocol error", "error", e.err)
		return
	}
	switch ev := e.ev.(type) {
	case xproto.KeyPressEvent:
		d.keyPress(ev, d.seat.pressed(evdevKeycode(ev.Detail)))
	case xproto.KeyReleaseEvent:
		// Server autorepeat arrives as a release immediately followed by a
		// press with the same timestamp.
		if next, ok := d.poll(); ok {
			if p, isPress := next.ev.(xproto.KeyPressEvent); isPress && p.Detail == ev.Detail && p.Time == ev.Time {
				d.keyPress(p, true)
				return
			}
			d.lookahead = &next
		}
		d.keyRelease(ev)
	case xproto.ButtonPressEvent:
		d.buttonEvent(ev.Event, ev.Detail, ev.EventX, ev.EventY, true)
	case xproto.ButtonReleaseEvent:
		d.buttonEvent(ev.Event, ev.Detail, ev.EventX, ev.EventY, false)
	case xproto.MotionNotifyEvent:
		d.motion(ev)
	case xproto.EnterNotifyEvent:
		d.crossing(ev.Event, ev.EventX, ev.EventY, true)
	case xproto.LeaveNotifyEvent:
		d.crossing(ev.Event, ev.EventX, ev.EventY, false)
	case xproto.FocusInEvent:
		d.focusChange(ev.Event, true)
	case xproto.FocusOutEvent:
		d.focusChange(ev.Event, false)
	case xproto.ExposeEvent:
		if w := d.windows[ev.Window]; w != nil && ev.Count == 0 {
			w.scheduleDraw()
		}
	case xproto.ConfigureNotifyEvent:
		if w := d.windows[ev.Window]; w != nil {
			w.configured(int(ev.X), int(ev.Y), int(ev.Width), int(ev.Height))
		}
	case xproto.ClientMessageEvent:
		w := d.windows[ev.Window]
		if w != nil && ev.Type == d.wmProtocols && ev.Format == 32 &&
			len(ev.Data.Data32) > 0 && xproto.Atom(ev.Data.Data32[0]) == d.wmDelete {
			w.listener.FireClose(w)
		}
	case xproto.PropertyNotifyEvent:
		if w := d.windows[ev.Window]; w != nil && ev.Atom == d.netWmState {
			w.stateChanged()
		}
	case xproto.MapNotifyEvent:
		if w := d.windows[ev.Window]; w != nil {
			w.mapped = true
		}
	case xproto.UnmapNotifyEvent:
		if w := d.windows[ev.Window]; w != nil {
			w.mapped = false
		}
	}
}

func (d *Display) KeyPressed(key platform.Keycode) bool { return d.seat.pressed(key) }

func (d *Display) KeyName(key platform.Keycode) string {
	if d.conn == nil {
		return ""
	}
	return keybind.LookupString(d.conn.XUtil, 0, xproto.Keycode(key+keycodeOffset))
}

func (d *Display) Modifiers() platform.Modifiers { return d.seat.mods }

func (d *Display) MouseButtonPressed(b platform.MouseButton) bool {
	return b.Valid() && d.seat.buttons&(1<<uint(b)) != 0
}

func (d *Display) MousePosition() (int, int) { return d.seat.x, d.seat.y }

func (d *Display) MouseOver() platform.Window {
	if d.seat.over == nil {
		return nil
	}
	return d.seat.over
}

func (d *Display) KeyboardFocus() platform.Window {
	if d.seat.focus == nil {
		return nil
	}
	return d.seat.focus
}

func (d *Display) StartDnD(platform.DataSource) error { return platform.ErrUnsupported }

// GLProcAddr is always 0: the pure-Go connection has no Xlib display to
// bind a GLX or EGL context to.
func (d *Display) GLProcAddr(string) uintptr { return 0 }

func (d *Display) VulkanExtensions() []string { return nil }

func (d *Display) Outputs() []platform.OutputInfo {
	outputs, err := d.conn.Outputs()
	if err != nil {
		d.logger.Warn("list outputs", "error", err)
		return nil
	}
	return outputs
}

// Close disconnects. All windows must be closed first.
func (d *Display) Close() error {
	if d.closed {
		return nil
	}
	if len(d.windows) > 0 {
		panic(fmt.Sprintf("x11: display closed with %d open windows", len(d.windows)))
	}
	d.closed = true
	close(d.done)
	if d.conn != nil {
		d.freeCursors()
		d.conn.Close()
	}
	d.wg.Wait()
	return nil
}
