package kms

import (
	"fmt"

	"github.com/1broseidon/swa/internal/drm"
)

var (
	connectorProps = []string{"CRTC_ID"}
	crtcProps      = []string{"MODE_ID", "ACTIVE"}
	planeProps     = []string{
		"type", "FB_ID", "CRTC_ID",
		"SRC_X", "SRC_Y", "SRC_W", "SRC_H",
		"CRTC_X", "CRTC_Y", "CRTC_W", "CRTC_H",
	}
)

type prop struct {
	id    uint32
	value uint64
}

// objectProps maps property names of one DRM object to their IDs and the
// values read during the scan. IDs differ between drivers.
type objectProps map[string]prop

func (p objectProps) id(name string) uint32 { return p[name].id }

func (p objectProps) value(name string) uint64 { return p[name].value }

// propScanner resolves property names, caching names by property ID.
type propScanner struct {
	dev   Device
	names map[uint32]string
}

func newPropScanner(dev Device) *propScanner {
	return &propScanner{dev: dev, names: make(map[uint32]string)}
}

func (s *propScanner) name(id uint32) (string, error) {
	if n, ok := s.names[id]; ok {
		return n, nil
	}
	p, err := s.dev.Property(id)
	if err != nil {
		return "", err
	}
	s.names[id] = p.Name
	return p.Name, nil
}

// scan reads the properties of an object and fails if any of required is
// missing.
func (s *propScanner) scan(objID, objType uint32, required []string) (objectProps, error) {
	values, err := s.dev.ObjectProperties(objID, objType)
	if err != nil {
		return nil, fmt.Errorf("get properties of %s %d: %w", objectTypeName(objType), objID, err)
	}
	want := make(map[string]bool, len(required))
	for _, n := range required {
		want[n] = true
	}

	props := make(objectProps, len(required))
	for _, v := range values {
		name, err := s.name(v.ID)
		if err != nil {
			return nil, fmt.Errorf("get property %d: %w", v.ID, err)
		}
		if want[name] {
			props[name] = prop{id: v.ID, value: v.Value}
		}
	}
	for _, n := range required {
		if _, ok := props[n]; !ok {
			return nil, fmt.Errorf("%s %d has no %q property", objectTypeName(objType), objID, n)
		}
	}
	return props, nil
}

func objectTypeName(t uint32) string {
	switch t {
	case drm.ObjectConnector:
		return "connector"
	case drm.ObjectCrtc:
		return "crtc"
	case drm.ObjectPlane:
		return "plane"
	}
	return "object"
}
