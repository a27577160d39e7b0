package kms

import (
	"errors"
	"testing"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/platform"
)

func TestEnumerateOutputs_AdoptsOnlyActiveChains(t *testing.T) {
	dev := newFakeDevice(t, &callLog{})
	dev.addOutput(10, 20, 30, 50, 40, 1920, 1080)
	// Inactive CRTC: no framebuffer bound.
	dev.addOutput(11, 21, 31, 51, 0, 1280, 720)
	// Disconnected connector.
	dev.addOutput(12, 22, 32, 52, 42, 800, 600)
	dev.connectors[12].Connection = drm.ConnectorDisconnected
	// Connector without encoder.
	dev.addOutput(13, 23, 33, 53, 43, 800, 600)
	dev.connectors[13].EncoderID = 0
	// Overlay plane showing the framebuffer is not a primary plane.
	dev.addOutput(14, 24, 34, 54, 44, 800, 600)
	dev.props[54][0].Value = drm.PlaneTypeOverlay

	outputs, err := enumerateOutputs(dev, discardLogger())
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	o := outputs[0]
	if o.connector != 10 || o.crtc != 30 || o.plane != 50 {
		t.Fatalf("unexpected chain %d/%d/%d", o.connector, o.crtc, o.plane)
	}
	if o.width() != 1920 || o.height() != 1080 {
		t.Fatalf("unexpected mode %dx%d", o.width(), o.height())
	}
	if !o.needsModeset {
		t.Fatalf("new outputs must need a modeset")
	}
	if o.name != "HDMI-A-1" {
		t.Fatalf("unexpected name %q", o.name)
	}
	blob, ok := dev.blobs[o.modeBlob]
	if !ok || len(blob) != len(o.mode.Bytes()) {
		t.Fatalf("mode blob not created")
	}
	if o.planeProps.id("FB_ID") != propPlaneFbID || o.connProps.id("CRTC_ID") != propConnCrtcID {
		t.Fatalf("property ids not resolved: %+v", o.planeProps)
	}
}

func TestEnumerateOutputs_SkipsObjectsMissingProperties(t *testing.T) {
	dev := newFakeDevice(t, &callLog{})
	dev.addOutput(10, 20, 30, 50, 40, 640, 480)
	dev.props[30] = dev.props[30][:1] // no ACTIVE

	_, err := enumerateOutputs(dev, discardLogger())
	if !errors.Is(err, platform.ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
}

func TestEnumerateOutputs_NoOutputsIsFatal(t *testing.T) {
	dev := newFakeDevice(t, &callLog{})
	dev.addOutput(10, 20, 30, 50, 0, 640, 480)

	if _, err := New(Options{Device: dev, Logger: discardLogger()}); !errors.Is(err, platform.ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
}

func TestOutputCommit_AllowsModesetOnlyWhenNeeded(t *testing.T) {
	dev := newFakeDevice(t, &callLog{})
	dev.addOutput(10, 20, 30, 50, 40, 640, 480)
	outputs, err := enumerateOutputs(dev, discardLogger())
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	o := outputs[0]

	if err := o.commit(dev, 77, 640, 480); err != nil {
		t.Fatalf("commit: %v", err)
	}
	c := dev.lastCommit()
	if c.flags != drm.PageFlipEvent|drm.AtomicNonblock|drm.AllowModeset {
		t.Fatalf("unexpected first commit flags %#x", c.flags)
	}
	if v, _ := c.req.Lookup(50, propPlaneFbID); v != 77 {
		t.Fatalf("expected FB_ID 77, got %d", v)
	}
	if v, _ := c.req.Lookup(50, propPlaneSrcW); v != 640<<16 {
		t.Fatalf("expected 16.16 SRC_W, got %#x", v)
	}
	if v, _ := c.req.Lookup(30, propCrtcModeID); v != uint64(o.modeBlob) {
		t.Fatalf("expected MODE_ID blob %d, got %d", o.modeBlob, v)
	}

	if err := o.commit(dev, 78, 640, 480); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if f := dev.lastCommit().flags; f&drm.AllowModeset != 0 {
		t.Fatalf("second commit should not allow modeset, flags %#x", f)
	}
}
