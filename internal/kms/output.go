package kms

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/platform"
)

// output is one active connector -> encoder -> CRTC -> primary plane chain.
type output struct {
	index     int
	name      string
	connector uint32
	crtc      uint32
	plane     uint32

	connProps  objectProps
	crtcProps  objectProps
	planeProps objectProps

	mode     drm.ModeInfo
	modeBlob uint32
	x, y     int

	// needsModeset is set for newly adopted outputs and after a VT
	// switch; the next commit then allows a full modeset.
	needsModeset bool

	window *Window
	cursor *hwCursor
}

func (o *output) width() int  { return int(o.mode.Hdisplay) }
func (o *output) height() int { return int(o.mode.Vdisplay) }

func (o *output) info() platform.OutputInfo {
	return platform.OutputInfo{
		ID:      int(o.connector),
		Name:    o.name,
		X:       o.x,
		Y:       o.y,
		Width:   o.width(),
		Height:  o.height(),
		Refresh: o.mode.RefreshMilliHz(),
	}
}

// enumerateOutputs adopts every output that already scans out a
// framebuffer. Outputs failing any step are skipped.
func enumerateOutputs(dev Device, logger *slog.Logger) ([]*output, error) {
	res, err := dev.Resources()
	if err != nil {
		return nil, fmt.Errorf("get resources: %w", err)
	}
	planes, err := dev.PlaneResources()
	if err != nil {
		return nil, fmt.Errorf("get plane resources: %w", err)
	}

	scanner := newPropScanner(dev)
	claimed := make(map[uint32]bool)
	var outputs []*output
	for _, id := range res.Connectors {
		o, err := adoptOutput(dev, scanner, id, planes, claimed)
		if err != nil {
			logger.Warn("skipping output", "connector", id, "error", err)
			continue
		}
		o.index = len(outputs)
		claimed[o.crtc] = true
		claimed[o.plane] = true
		outputs = append(outputs, o)
		logger.Info("adopted output",
			"name", o.name,
			"mode", fmt.Sprintf("%dx%d", o.width(), o.height()),
			"refresh_mhz", o.mode.RefreshMilliHz(),
			"crtc", o.crtc,
			"plane", o.plane,
		)
	}
	if len(outputs) == 0 {
		return nil, platform.ErrNoOutput
	}
	return outputs, nil
}

var errInactiveCrtc = errors.New("crtc has no framebuffer bound")

func adoptOutput(dev Device, scanner *propScanner, connID uint32, planes []uint32, claimed map[uint32]bool) (*output, error) {
	conn, err := dev.Connector(connID)
	if err != nil {
		return nil, err
	}
	if conn.Connection != drm.ConnectorConnected {
		return nil, errors.New("connector not connected")
	}
	if conn.EncoderID == 0 {
		return nil, errors.New("connector has no encoder attached")
	}
	enc, err := dev.Encoder(conn.EncoderID)
	if err != nil {
		return nil, err
	}
	if enc.CrtcID == 0 || claimed[enc.CrtcID] {
		return nil, errors.New("encoder has no usable crtc")
	}
	crtc, err := dev.Crtc(enc.CrtcID)
	if err != nil {
		return nil, err
	}
	if crtc.FBID == 0 || !crtc.ModeValid {
		return nil, errInactiveCrtc
	}

	o := &output{
		name:         conn.Name(),
		connector:    conn.ID,
		crtc:         crtc.ID,
		mode:         crtc.Mode,
		x:            int(crtc.X),
		y:            int(crtc.Y),
		needsModeset: true,
	}

	if o.plane, o.planeProps, err = primaryPlane(dev, scanner, crtc, planes, claimed); err != nil {
		return nil, err
	}
	if o.connProps, err = scanner.scan(conn.ID, drm.ObjectConnector, connectorProps); err != nil {
		return nil, err
	}
	if o.crtcProps, err = scanner.scan(crtc.ID, drm.ObjectCrtc, crtcProps); err != nil {
		return nil, err
	}
	if o.modeBlob, err = dev.CreateBlob(crtc.Mode.Bytes()); err != nil {
		return nil, fmt.Errorf("create mode blob: %w", err)
	}
	return o, nil
}

// primaryPlane finds the primary plane currently showing crtc's
// framebuffer. The kernel has no direct CRTC to plane mapping.
func primaryPlane(dev Device, scanner *propScanner, crtc *drm.Crtc, planes []uint32, claimed map[uint32]bool) (uint32, objectProps, error) {
	for _, id := range planes {
		if claimed[id] {
			continue
		}
		p, err := dev.Plane(id)
		if err != nil {
			continue
		}
		if p.CrtcID != crtc.ID || p.FBID != crtc.FBID {
			continue
		}
		props, err := scanner.scan(id, drm.ObjectPlane, planeProps)
		if err != nil {
			return 0, nil, err
		}
		if props.value("type") == drm.PlaneTypePrimary {
			return id, props, nil
		}
	}
	return 0, nil, fmt.Errorf("no primary plane for crtc %d", crtc.ID)
}

// commit presents fb on the output with a non-blocking atomic commit that
// reports completion as a page-flip event carrying the CRTC id.
func (o *output) commit(dev Device, fb uint32, width, height int) error {
	req := drm.NewAtomicReq()
	req.Add(o.connector, o.connProps.id("CRTC_ID"), uint64(o.crtc))
	req.Add(o.crtc, o.crtcProps.id("MODE_ID"), uint64(o.modeBlob))
	req.Add(o.crtc, o.crtcProps.id("ACTIVE"), 1)

	req.Add(o.plane, o.planeProps.id("FB_ID"), uint64(fb))
	req.Add(o.plane, o.planeProps.id("CRTC_ID"), uint64(o.crtc))
	req.Add(o.plane, o.planeProps.id("SRC_X"), 0)
	req.Add(o.plane, o.planeProps.id("SRC_Y"), 0)
	req.Add(o.plane, o.planeProps.id("SRC_W"), uint64(width)<<16)
	req.Add(o.plane, o.planeProps.id("SRC_H"), uint64(height)<<16)
	req.Add(o.plane, o.planeProps.id("CRTC_X"), 0)
	req.Add(o.plane, o.planeProps.id("CRTC_Y"), 0)
	req.Add(o.plane, o.planeProps.id("CRTC_W"), uint64(o.width()))
	req.Add(o.plane, o.planeProps.id("CRTC_H"), uint64(o.height()))

	flags := uint32(drm.PageFlipEvent | drm.AtomicNonblock)
	if o.needsModeset {
		flags |= drm.AllowModeset
	}
	if err := dev.Commit(req, flags, uint64(o.crtc)); err != nil {
		return fmt.Errorf("atomic commit on %s: %w", o.name, err)
	}
	o.needsModeset = false
	return nil
}
