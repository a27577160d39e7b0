// Package x11 implements the display backend for X11 servers.
package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	hasRandR  bool
	hasRender bool
	atoms     map[string]xproto.Atom
}

// NewConnection connects to the named display ("" uses $DISPLAY) and
// initializes the extensions the backend uses.
func NewConnection(display string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, err
	}

	// Keysym tables for key event translation.
	keybind.Initialize(xu)

	return &Connection{
		XUtil:     xu,
		Root:      xu.RootWin(),
		hasRandR:  randr.Init(xu.Conn()) == nil,
		hasRender: render.Init(xu.Conn()) == nil,
		atoms:     make(map[string]xproto.Atom),
	}, nil
}

func (c *Connection) Conn() *xgb.Conn { return c.XUtil.Conn() }

// Atom interns name, caching the result.
func (c *Connection) Atom(name string) (xproto.Atom, error) {
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(c.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	c.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// SendRootMessage sends a 32-bit client message about win to the root
// window, the way EWMH requests reach the window manager.
// The message is built by hand because the xgbutil ewmh request helpers
// panic on this library version (uint vs int type assertion).
func (c *Connection) SendRootMessage(win xproto.Window, atom string, data ...uint32) error {
	typ, err := c.Atom(atom)
	if err != nil {
		return err
	}
	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   typ,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}
	return xproto.SendEventChecked(
		c.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
