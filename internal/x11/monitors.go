package x11

import (
	"fmt"
	"slices"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/1broseidon/swa/internal/platform"
)

// rect is a rectangle in root window coordinates.
type rect struct {
	X, Y          int
	Width, Height int
}

func (r rect) contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// intersect returns the overlap of r and o, or the zero rect.
func (r rect) intersect(o rect) rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return rect{}
	}
	return rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (r rect) empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Outputs lists the active RandR CRTCs.
func (c *Connection) Outputs() ([]platform.OutputInfo, error) {
	if !c.hasRandR {
		return nil, fmt.Errorf("randr: %w", platform.ErrUnsupported)
	}
	resources, err := randr.GetScreenResources(c.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}
	modes := make(map[uint32]randr.ModeInfo, len(resources.Modes))
	for _, m := range resources.Modes {
		modes[m.Id] = m
	}

	var outputs []platform.OutputInfo
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(c.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		// Skip disabled CRTCs
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(c.Conn(), info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}
		outputs = append(outputs, platform.OutputInfo{
			ID:      i,
			Name:    name,
			X:       int(info.X),
			Y:       int(info.Y),
			Width:   int(info.Width),
			Height:  int(info.Height),
			Refresh: refreshMilliHz(modes[uint32(info.Mode)]),
		})
	}
	return outputs, nil
}

func refreshMilliHz(m randr.ModeInfo) int {
	total := uint64(m.Htotal) * uint64(m.Vtotal)
	if total == 0 {
		return 0
	}
	return int(uint64(m.DotClock) * 1000 / total)
}

// placementArea returns the usable area of the monitor under the pointer:
// its geometry minus dock struts, or the EWMH work area when no dock
// reserves space.
func (c *Connection) placementArea() rect {
	root := c.rootRect()
	outputs, err := c.Outputs()
	if err != nil || len(outputs) == 0 {
		return root
	}
	mon := rect{outputs[0].X, outputs[0].Y, outputs[0].Width, outputs[0].Height}
	if p, err := xproto.QueryPointer(c.Conn(), c.Root).Reply(); err == nil {
		for _, o := range outputs {
			r := rect{o.X, o.Y, o.Width, o.Height}
			if r.contains(int(p.RootX), int(p.RootY)) {
				mon = r
				break
			}
		}
	}

	if area, ok := c.applyDockStruts(mon, root); ok {
		return area
	}
	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return mon
	}
	desktop := 0
	if cur, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(cur) < len(workArea) {
		desktop = int(cur)
	}
	wa := workArea[desktop]
	if isect := mon.intersect(rect{int(wa.X), int(wa.Y), int(wa.Width), int(wa.Height)}); !isect.empty() {
		return isect
	}
	return mon
}

func (c *Connection) rootRect() rect {
	s := c.XUtil.Screen()
	return rect{Width: int(s.WidthInPixels), Height: int(s.HeightInPixels)}
}

// struts is the space docks reserve along each edge of a monitor.
type struts struct {
	left, right, top, bottom int
}

func (c *Connection) applyDockStruts(mon, root rect) (rect, bool) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return mon, false
	}
	var acc struts
	for _, win := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
		if err != nil || !slices.Contains(types, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}
		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, win); err == nil {
			acc.add(mon, root, sp)
			continue
		}
		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, win); err == nil {
			acc.add(mon, root, &ewmh.WmStrutPartial{
				Left:         s.Left,
				Right:        s.Right,
				Top:          s.Top,
				Bottom:       s.Bottom,
				LeftEndY:     uint(root.Height - 1),
				RightEndY:    uint(root.Height - 1),
				TopEndX:      uint(root.Width - 1),
				BottomEndX:   uint(root.Width - 1),
				LeftStartY:   0,
				RightStartY:  0,
				TopStartX:    0,
				BottomStartX: 0,
			})
		}
	}
	return acc.shrink(mon)
}

// add folds the parts of sp that overlap mon into s.
func (s *struts) add(mon, root rect, sp *ewmh.WmStrutPartial) {
	if sp.Top > 0 {
		r := mon.intersect(rect{int(sp.TopStartX), 0, int(sp.TopEndX) - int(sp.TopStartX) + 1, int(sp.Top)})
		s.top = max(s.top, r.Height)
	}
	if sp.Bottom > 0 {
		r := mon.intersect(rect{int(sp.BottomStartX), root.Height - int(sp.Bottom),
			int(sp.BottomEndX) - int(sp.BottomStartX) + 1, int(sp.Bottom)})
		s.bottom = max(s.bottom, r.Height)
	}
	if sp.Left > 0 {
		r := mon.intersect(rect{0, int(sp.LeftStartY), int(sp.Left), int(sp.LeftEndY) - int(sp.LeftStartY) + 1})
		s.left = max(s.left, r.Width)
	}
	if sp.Right > 0 {
		r := mon.intersect(rect{root.Width - int(sp.Right), int(sp.RightStartY),
			int(sp.Right), int(sp.RightEndY) - int(sp.RightStartY) + 1})
		s.right = max(s.right, r.Width)
	}
}

func (s struts) shrink(mon rect) (rect, bool) {
	if s == (struts{}) {
		return mon, false
	}
	mon.X += s.left
	mon.Y += s.top
	mon.Width = max(mon.Width-(s.left+s.right), 1)
	mon.Height = max(mon.Height-(s.top+s.bottom), 1)
	return mon, true
}

// center places a width x height window in the middle of area.
func center(area rect, width, height int) (int, int) {
	return area.X + (area.Width-width)/2, area.Y + (area.Height-height)/2
}
