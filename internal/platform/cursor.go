package platform

// CursorType names a system cursor.
type CursorType int

const (
	CursorDefault CursorType = iota
	CursorNone
	CursorLeftPtr
	CursorLoad
	CursorLoadPtr
	CursorRightPtr
	CursorHand
	CursorGrab
	CursorGrabbing
	CursorText
	CursorMove
	CursorCrosshair
	CursorHelp
	CursorNotAllowed
	CursorSizeTop
	CursorSizeBottom
	CursorSizeLeft
	CursorSizeRight
	CursorSizeTopLeft
	CursorSizeTopRight
	CursorSizeBottomLeft
	CursorSizeBottomRight
	// CursorImage uses Cursor.Image and the hotspot.
	CursorImage
)

// Cursor selects either a named system cursor or a custom image.
type Cursor struct {
	Type     CursorType
	Image    *Image
	HotspotX int
	HotspotY int
}

var cursorNames = map[CursorType][]string{
	CursorDefault:         {"left_ptr", "default"},
	CursorLeftPtr:         {"left_ptr", "default"},
	CursorLoad:            {"watch", "wait"},
	CursorLoadPtr:         {"left_ptr_watch", "progress"},
	CursorRightPtr:        {"right_ptr"},
	CursorHand:            {"hand2", "pointer", "hand1"},
	CursorGrab:            {"grab", "openhand", "hand1"},
	CursorGrabbing:        {"grabbing", "closedhand", "fleur"},
	CursorText:            {"xterm", "text", "ibeam"},
	CursorMove:            {"fleur", "move", "all-scroll"},
	CursorCrosshair:       {"crosshair", "cross"},
	CursorHelp:            {"question_arrow", "help"},
	CursorNotAllowed:      {"not-allowed", "crossed_circle", "circle"},
	CursorSizeTop:         {"top_side", "n-resize"},
	CursorSizeBottom:      {"bottom_side", "s-resize"},
	CursorSizeLeft:        {"left_side", "w-resize"},
	CursorSizeRight:       {"right_side", "e-resize"},
	CursorSizeTopLeft:     {"top_left_corner", "nw-resize"},
	CursorSizeTopRight:    {"top_right_corner", "ne-resize"},
	CursorSizeBottomLeft:  {"bottom_left_corner", "sw-resize"},
	CursorSizeBottomRight: {"bottom_right_corner", "se-resize"},
}

// CursorNames returns the Xcursor theme names to try for t, most specific
// first. It returns nil for CursorNone and CursorImage.
func CursorNames(t CursorType) []string {
	return cursorNames[t]
}
