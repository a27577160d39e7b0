package kms

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/platform"
	"github.com/1broseidon/swa/internal/xkb"
)

// callLog records calls across fakes so tests can check ordering.
type callLog struct {
	calls []string
}

func (l *callLog) add(s string) { l.calls = append(l.calls, s) }

func (l *callLog) reset() { l.calls = nil }

const (
	propConnCrtcID = 100 + iota
	propCrtcModeID
	propCrtcActive
	propPlaneType
	propPlaneFbID
	propPlaneCrtcID
	propPlaneSrcX
	propPlaneSrcY
	propPlaneSrcW
	propPlaneSrcH
	propPlaneCrtcX
	propPlaneCrtcY
	propPlaneCrtcW
	propPlaneCrtcH
)

var fakePropNames = map[uint32]string{
	propConnCrtcID:  "CRTC_ID",
	propCrtcModeID:  "MODE_ID",
	propCrtcActive:  "ACTIVE",
	propPlaneType:   "type",
	propPlaneFbID:   "FB_ID",
	propPlaneCrtcID: "CRTC_ID",
	propPlaneSrcX:   "SRC_X",
	propPlaneSrcY:   "SRC_Y",
	propPlaneSrcW:   "SRC_W",
	propPlaneSrcH:   "SRC_H",
	propPlaneCrtcX:  "CRTC_X",
	propPlaneCrtcY:  "CRTC_Y",
	propPlaneCrtcW:  "CRTC_W",
	propPlaneCrtcH:  "CRTC_H",
}

type fakeCommit struct {
	req   *drm.AtomicReq
	flags uint32
}

type fakeCursor struct {
	crtc, handle, width, height uint32
	x, y                        int
}

// fakeDevice is an in-memory DRM card. Its fd is an eventfd that becomes
// readable when a flip event is queued.
type fakeDevice struct {
	t   *testing.T
	log *callLog
	fd  int

	res        drm.Resources
	connectors map[uint32]*drm.Connector
	encoders   map[uint32]*drm.Encoder
	crtcs      map[uint32]*drm.Crtc
	planes     map[uint32]*drm.Plane
	props      map[uint32][]drm.PropertyValue
	planeIDs   []uint32

	nextID    uint32
	blobs     map[uint32][]byte
	fbs       map[uint32]bool
	dumbs     int
	commits   []fakeCommit
	commitErr error
	cursor    fakeCursor
	events    []byte
	seq       uint32
	caps      map[uint64]uint64
}

func newFakeDevice(t *testing.T, log *callLog) *fakeDevice {
	t.Helper()
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		t.Fatalf("eventfd: %v", err)
	}
	return &fakeDevice{
		t:          t,
		log:        log,
		fd:         fd,
		connectors: make(map[uint32]*drm.Connector),
		encoders:   make(map[uint32]*drm.Encoder),
		crtcs:      make(map[uint32]*drm.Crtc),
		planes:     make(map[uint32]*drm.Plane),
		props:      make(map[uint32][]drm.PropertyValue),
		nextID:     1000,
		blobs:      make(map[uint32][]byte),
		fbs:        make(map[uint32]bool),
		caps:       map[uint64]uint64{drm.CapCursorWidth: 64, drm.CapCursorHeight: 64},
	}
}

func testMode(w, h uint16) drm.ModeInfo {
	m := drm.ModeInfo{
		Clock:    25175,
		Hdisplay: w, HsyncStart: w + 16, HsyncEnd: w + 112, Htotal: w + 160,
		Vdisplay: h, VsyncStart: h + 10, VsyncEnd: h + 12, Vtotal: h + 45,
		Vrefresh: 60,
	}
	copy(m.Name[:], "test")
	return m
}

// addOutput wires connector -> encoder -> crtc -> primary plane. A zero fb
// leaves the CRTC inactive.
func (f *fakeDevice) addOutput(conn, enc, crtc, plane, fb uint32, w, h uint16) {
	f.res.Connectors = append(f.res.Connectors, conn)
	f.res.Encoders = append(f.res.Encoders, enc)
	f.res.Crtcs = append(f.res.Crtcs, crtc)
	f.connectors[conn] = &drm.Connector{
		ID: conn, EncoderID: enc, Type: 11, TypeID: uint32(len(f.connectors) + 1),
		Connection: drm.ConnectorConnected, Encoders: []uint32{enc},
	}
	f.encoders[enc] = &drm.Encoder{ID: enc, CrtcID: crtc}
	f.crtcs[crtc] = &drm.Crtc{ID: crtc, FBID: fb, ModeValid: fb != 0, Mode: testMode(w, h)}
	f.addPlane(plane, crtc, fb, drm.PlaneTypePrimary)

	f.props[conn] = []drm.PropertyValue{{ID: propConnCrtcID, Value: uint64(crtc)}}
	f.props[crtc] = []drm.PropertyValue{{ID: propCrtcModeID}, {ID: propCrtcActive, Value: 1}}
}

func (f *fakeDevice) addPlane(id, crtc, fb uint32, typ uint64) {
	f.planeIDs = append(f.planeIDs, id)
	f.planes[id] = &drm.Plane{ID: id, CrtcID: crtc, FBID: fb}
	f.props[id] = []drm.PropertyValue{
		{ID: propPlaneType, Value: typ},
		{ID: propPlaneFbID, Value: uint64(fb)},
		{ID: propPlaneCrtcID, Value: uint64(crtc)},
		{ID: propPlaneSrcX}, {ID: propPlaneSrcY}, {ID: propPlaneSrcW}, {ID: propPlaneSrcH},
		{ID: propPlaneCrtcX}, {ID: propPlaneCrtcY}, {ID: propPlaneCrtcW}, {ID: propPlaneCrtcH},
	}
}

func (f *fakeDevice) id() uint32 {
	f.nextID++
	return f.nextID
}

func (f *fakeDevice) Fd() int      { return f.fd }
func (f *fakeDevice) Path() string { return "/dev/dri/fake" }

func (f *fakeDevice) Close() error {
	f.log.add("close-device")
	return unix.Close(f.fd)
}

func (f *fakeDevice) Capability(c uint64) (uint64, error) {
	if v, ok := f.caps[c]; ok {
		return v, nil
	}
	return 0, unix.EINVAL
}

func (f *fakeDevice) SetClientCap(uint64, uint64) error { return nil }

func (f *fakeDevice) SetMaster() error {
	f.log.add("set-master")
	return nil
}

func (f *fakeDevice) DropMaster() error {
	f.log.add("drop-master")
	return nil
}

func (f *fakeDevice) Resources() (*drm.Resources, error) {
	res := f.res
	return &res, nil
}

func (f *fakeDevice) Connector(id uint32) (*drm.Connector, error) {
	if c, ok := f.connectors[id]; ok {
		return c, nil
	}
	return nil, unix.ENOENT
}

func (f *fakeDevice) Encoder(id uint32) (*drm.Encoder, error) {
	if e, ok := f.encoders[id]; ok {
		return e, nil
	}
	return nil, unix.ENOENT
}

func (f *fakeDevice) Crtc(id uint32) (*drm.Crtc, error) {
	if c, ok := f.crtcs[id]; ok {
		return c, nil
	}
	return nil, unix.ENOENT
}

func (f *fakeDevice) PlaneResources() ([]uint32, error) { return f.planeIDs, nil }

func (f *fakeDevice) Plane(id uint32) (*drm.Plane, error) {
	if p, ok := f.planes[id]; ok {
		return p, nil
	}
	return nil, unix.ENOENT
}

func (f *fakeDevice) ObjectProperties(objID, _ uint32) ([]drm.PropertyValue, error) {
	return f.props[objID], nil
}

func (f *fakeDevice) Property(id uint32) (*drm.Property, error) {
	name, ok := fakePropNames[id]
	if !ok {
		return nil, unix.ENOENT
	}
	return &drm.Property{ID: id, Name: name}, nil
}

func (f *fakeDevice) CreateBlob(data []byte) (uint32, error) {
	id := f.id()
	f.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

func (f *fakeDevice) DestroyBlob(id uint32) error {
	delete(f.blobs, id)
	return nil
}

func (f *fakeDevice) CreateDumb(w, h, bpp uint32) (*drm.Dumb, error) {
	f.dumbs++
	pitch := w * bpp / 8
	return &drm.Dumb{
		Handle: f.id(),
		Width:  w,
		Height: h,
		Pitch:  pitch,
		Size:   uint64(pitch * h),
		Data:   make([]byte, pitch*h),
	}, nil
}

func (f *fakeDevice) DestroyDumb(*drm.Dumb) error {
	f.dumbs--
	return nil
}

func (f *fakeDevice) AddFB2(w, h, format uint32, handles, pitches, offsets [4]uint32) (uint32, error) {
	id := f.id()
	f.fbs[id] = true
	return id, nil
}

func (f *fakeDevice) RmFB(id uint32) error {
	delete(f.fbs, id)
	return nil
}

func (f *fakeDevice) SetCursor(crtc, handle, w, h uint32) error {
	f.cursor.crtc, f.cursor.handle, f.cursor.width, f.cursor.height = crtc, handle, w, h
	return nil
}

func (f *fakeDevice) MoveCursor(crtc uint32, x, y int) error {
	f.cursor.x, f.cursor.y = x, y
	return nil
}

func (f *fakeDevice) Commit(req *drm.AtomicReq, flags uint32, userData uint64) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.log.add("commit")
	f.commits = append(f.commits, fakeCommit{req: req, flags: flags})
	return nil
}

func (f *fakeDevice) ReadEvents(fn func(drm.Event)) error {
	var buf [8]byte
	unix.Read(f.fd, buf[:])
	events := f.events
	f.events = nil
	return drm.ParseEvents(events, fn)
}

// flip queues a page-flip completion for crtc.
func (f *fakeDevice) flip(crtc uint32) {
	f.seq++
	f.events = append(f.events, drm.EncodeFlipEvent(crtc, f.seq, uint64(crtc))...)
	var one [8]byte
	one[0] = 1
	if _, err := unix.Write(f.fd, one[:]); err != nil {
		f.t.Fatalf("signal fake drm fd: %v", err)
	}
}

func (f *fakeDevice) lastCommit() fakeCommit {
	f.t.Helper()
	if len(f.commits) == 0 {
		f.t.Fatalf("no commit recorded")
	}
	return f.commits[len(f.commits)-1]
}

type fakeTerminal struct {
	log      *callLog
	num      int
	switched []int
	closed   bool
}

func (f *fakeTerminal) Number() int { return f.num }

func (f *fakeTerminal) AckRelease() error {
	f.log.add("ack-release")
	return nil
}

func (f *fakeTerminal) AckAcquire() error {
	f.log.add("ack-acquire")
	return nil
}

func (f *fakeTerminal) Switch(num int) error {
	f.switched = append(f.switched, num)
	return nil
}

func (f *fakeTerminal) Close() error {
	f.closed = true
	return nil
}

var errCommitFailed = errors.New("commit failed")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDisplay struct {
	*Display
	dev     *fakeDevice
	term    *fakeTerminal
	log     *callLog
	signals chan os.Signal
}

// newTestDisplay builds a display with one active 640x480 output on CRTC 30.
func newTestDisplay(t *testing.T, mutate func(o *Options)) *testDisplay {
	t.Helper()
	log := &callLog{}
	dev := newFakeDevice(t, log)
	dev.addOutput(10, 20, 30, 50, 40, 640, 480)
	term := &fakeTerminal{log: log, num: 1}
	signals := make(chan os.Signal, 4)

	opts := Options{
		Device:   dev,
		Terminal: term,
		Signals:  signals,
		Keyboard: xkb.NewBuiltin(),
		Logger:   discardLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	d, err := New(opts)
	if err != nil {
		t.Fatalf("new display: %v", err)
	}
	log.reset()
	return &testDisplay{Display: d, dev: dev, term: term, log: log, signals: signals}
}

// dispatchUntil runs Dispatch(true) until cond holds or a deadline passes.
func (td *testDisplay) dispatchUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached")
		}
		stop := time.AfterFunc(200*time.Millisecond, td.Wakeup)
		td.Dispatch(true)
		stop.Stop()
	}
}

func (td *testDisplay) bufferWindow(t *testing.T, l *platform.Listener) *Window {
	t.Helper()
	w, err := td.CreateWindow(platform.WindowSettings{Surface: platform.SurfaceBuffer, Listener: l})
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	return w.(*Window)
}

func (w *Window) bufferStates() [bufferCount]bufferState {
	return w.surface.(*bufferSurface).states()
}
