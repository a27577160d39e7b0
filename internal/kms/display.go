package kms

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/1broseidon/swa/internal/config"
	"github.com/1broseidon/swa/internal/drm"
	"github.com/1broseidon/swa/internal/platform"
	"github.com/1broseidon/swa/internal/reactor"
	"github.com/1broseidon/swa/internal/vt"
	"github.com/1broseidon/swa/internal/xcursor"
	"github.com/1broseidon/swa/internal/xkb"
)

// Options assembles a display from its parts. Open fills them with the
// real devices; tests pass fakes.
type Options struct {
	Device   Device
	Terminal Terminal
	// Signals delivers VT release/acquire and termination signals.
	Signals <-chan os.Signal
	// GL creates the GL driver on first use. Nil disables GL surfaces.
	GL     func(fd int) (GLDriver, error)
	Vulkan VulkanDriver
	// Keyboard defaults to xkb.New with the configured rule names.
	Keyboard xkb.State
	// Input enables reading /dev/input devices.
	Input  bool
	Config *config.Config
	Logger *slog.Logger
}

// Display is the KMS backend display.
type Display struct {
	dev     Device
	reactor *reactor.Reactor
	outputs []*output
	windows []*Window
	session *session
	seat    *seat
	logger  *slog.Logger
	cfg     *config.Config

	glFactory func(fd int) (GLDriver, error)
	gl        GLDriver
	vk        VulkanDriver

	theme   *xcursor.Theme
	cursors map[platform.CursorType]*cursorImage

	fatal  bool
	closed bool
}

var _ platform.Display = (*Display)(nil)

// New takes ownership of opts.Device and opts.Terminal on success.
func New(opts Options) (*Display, error) {
	if opts.Device == nil {
		return nil, errors.New("kms: no drm device")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("backend", "kms")
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	dev := opts.Device

	if err := dev.SetClientCap(drm.ClientCapUniversalPlanes, 1); err != nil {
		return nil, fmt.Errorf("enable universal planes: %w", err)
	}
	if err := dev.SetClientCap(drm.ClientCapAtomic, 1); err != nil {
		return nil, fmt.Errorf("enable atomic modesetting: %w", err)
	}
	if err := dev.SetMaster(); err != nil {
		logger.Debug("set drm master", "error", err)
	}

	outputs, err := enumerateOutputs(dev, logger)
	if err != nil {
		return nil, err
	}

	d := &Display{
		dev:       dev,
		outputs:   outputs,
		logger:    logger,
		cfg:       cfg,
		glFactory: opts.GL,
		vk:        opts.Vulkan,
		cursors:   make(map[platform.CursorType]*cursorImage),
	}
	if d.reactor, err = reactor.New(); err != nil {
		d.destroyOutputs()
		return nil, err
	}
	if err := d.reactor.Add(dev.Fd(), reactor.Readable, d.readDRM); err != nil {
		d.reactor.Close()
		d.destroyOutputs()
		return nil, err
	}
	if d.session, err = newSession(d, opts.Terminal, opts.Signals); err != nil {
		d.reactor.Close()
		d.destroyOutputs()
		return nil, err
	}

	keyboard := opts.Keyboard
	if keyboard == nil {
		keyboard = xkb.New(xkb.RuleNames{
			Rules:   cfg.XKB.Rules,
			Model:   cfg.XKB.Model,
			Layout:  cfg.XKB.Layout,
			Variant: cfg.XKB.Variant,
			Options: cfg.XKB.Options,
		}, logger)
	}
	d.seat = newSeat(d, keyboard)
	if opts.Input {
		d.seat.open()
	}
	return d, nil
}

var openVT = func(num int) (Terminal, error) {
	t, err := vt.Open(num)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// claimVT catches the switch signals before the VT is put in process mode;
// an uncaught SIGUSR1 would kill the process with the console in graphics
// mode.
func claimVT(num int) (Terminal, chan os.Signal, error) {
	signals := make(chan os.Signal, 8)
	signal.Notify(signals, vt.ReleaseSignal, vt.AcquireSignal, syscall.SIGINT, syscall.SIGTERM)
	term, err := openVT(num)
	if err != nil {
		signal.Stop(signals)
		return nil, nil, err
	}
	return term, signals, nil
}

// Open creates a display on the configured or first usable DRM card,
// taking over a VT.
func Open(cfg *config.Config, logger *slog.Logger) (*Display, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	num := cfg.TTY
	if num == 0 {
		n, err := vt.Detect()
		if err != nil {
			return nil, fmt.Errorf("find vt: %w", err)
		}
		num = n
	}
	term, signals, err := claimVT(num)
	if err != nil {
		return nil, err
	}

	paths := []string{cfg.KMS.Device}
	if cfg.KMS.Device == "" {
		if paths, err = drm.Cards(); err != nil || len(paths) == 0 {
			signal.Stop(signals)
			term.Close()
			return nil, fmt.Errorf("no drm devices: %w", errors.Join(err, platform.ErrNoOutput))
		}
	}

	var lastErr error
	for _, path := range paths {
		card, err := drm.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		d, err := New(Options{
			Device:   card,
			Terminal: term,
			Signals:  signals,
			GL:       NewGLDriver,
			Vulkan:   NewVulkanDriver(),
			Input:    cfg.KMS.Input,
			Config:   cfg,
			Logger:   logger,
		})
		if err != nil {
			card.Close()
			logger.Debug("drm device unusable", "path", path, "error", err)
			lastErr = err
			continue
		}
		d.session.stopSignals = func() { signal.Stop(signals) }
		logger.Info("kms display opened", "device", path, "vt", term.Number(), "outputs", len(d.outputs))
		return d, nil
	}
	signal.Stop(signals)
	term.Close()
	return nil, fmt.Errorf("open kms display: %w", lastErr)
}

func (d *Display) readDRM(uint32) {
	if err := d.dev.ReadEvents(func(ev drm.Event) {
		if ev.Type == drm.EventFlipComplete {
			d.pageFlipped(ev.CrtcID)
		}
	}); err != nil {
		d.logger.Error("read drm events", "error", err)
		d.fatal = true
	}
}

// pageFlipped advances the window bound to the CRTC. Events for unknown
// or windowless CRTCs are expected while windows are torn down.
func (d *Display) pageFlipped(crtc uint32) {
	var o *output
	for _, cand := range d.outputs {
		if cand.crtc == crtc {
			o = cand
			break
		}
	}
	if o == nil {
		d.logger.Debug("page flip for unknown crtc", "crtc", crtc)
		return
	}
	w := o.window
	if w == nil || w.surface == nil {
		d.logger.Debug("page flip for output without window", "output", o.name)
		return
	}
	w.surface.flipped()
	w.frameCompleted()
}

func (d *Display) Capabilities() platform.DisplayCap {
	caps := platform.CapBufferSurface | platform.CapKeyboard | platform.CapMouse |
		platform.CapTouch | platform.CapKeyboardText
	if d.glFactory != nil {
		caps |= platform.CapGL
	}
	if d.vk != nil {
		caps |= platform.CapVulkan
	}
	return caps
}

func (d *Display) Dispatch(block bool) bool {
	if d.closed || d.fatal || d.session.quit {
		return false
	}
	if _, err := d.reactor.Dispatch(block); err != nil {
		d.logger.Error("dispatch", "error", err)
		d.fatal = true
	}
	return !d.fatal && !d.session.quit
}

func (d *Display) Wakeup() { d.reactor.Wakeup() }

// CreateWindow binds a new window to the first output without one.
// Windows always cover the whole output.
func (d *Display) CreateWindow(s platform.WindowSettings) (platform.Window, error) {
	if d.closed {
		return nil, platform.ErrClosed
	}
	w := &Window{
		d:           d,
		listener:    s.Listener,
		title:       s.Title,
		transparent: s.Transparent,
		cursor:      s.Cursor,
	}
	if s.Surface != platform.SurfaceNone {
		for _, o := range d.outputs {
			if o.window == nil {
				w.out = o
				break
			}
		}
		if w.out == nil {
			return nil, platform.ErrNoOutput
		}
	}

	var err error
	switch s.Surface {
	case platform.SurfaceBuffer:
		w.surface, err = newBufferSurface(w)
	case platform.SurfaceGL:
		w.surface, err = newGLSurface(w, s.GL)
	case platform.SurfaceVulkan:
		w.surface, err = newVkSurface(w, s.Vulkan)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s surface: %w", s.Surface, err)
	}

	if w.out != nil {
		w.out.window = w
		if s.Width != 0 && s.Height != 0 && (s.Width != w.out.width() || s.Height != w.out.height()) {
			d.logger.Debug("window size fixed to output mode",
				"requested", fmt.Sprintf("%dx%d", s.Width, s.Height), "output", w.out.name)
		}
	}
	d.windows = append(d.windows, w)
	d.seat.windowAdded(w)

	if w.out != nil {
		w.listener.FireResize(w, w.out.width(), w.out.height())
		if img, err := d.cursorImage(w.cursor); err != nil {
			d.logger.Warn("load cursor", "error", err)
		} else if err := d.showCursor(w.out, img); err != nil {
			d.logger.Warn("show cursor", "error", err)
		}
	}
	w.scheduleDraw()
	return w, nil
}

func (d *Display) removeWindow(w *Window) {
	d.seat.windowRemoved(w)
	if i := slices.Index(d.windows, w); i >= 0 {
		d.windows = slices.Delete(d.windows, i, i+1)
	}
}

func (d *Display) glDriver() (GLDriver, error) {
	if d.gl != nil {
		return d.gl, nil
	}
	if d.glFactory == nil {
		return nil, platform.ErrUnsupported
	}
	drv, err := d.glFactory(d.dev.Fd())
	if err != nil {
		return nil, fmt.Errorf("init gl: %w", err)
	}
	d.gl = drv
	return drv, nil
}

func (d *Display) KeyPressed(key platform.Keycode) bool { return d.seat.pressed(key) }

func (d *Display) KeyName(key platform.Keycode) string { return d.seat.xkb.KeyName(key) }

func (d *Display) Modifiers() platform.Modifiers { return d.seat.xkb.Modifiers() }

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

func (d *Display) Clipboard() (platform.DataOffer, error) {
	return nil, platform.ErrUnsupported
}

func (d *Display) SetClipboard(platform.DataSource) error { return platform.ErrUnsupported }

func (d *Display) StartDnD(platform.DataSource) error { return platform.ErrUnsupported }

func (d *Display) GLProcAddr(name string) uintptr {
	drv, err := d.glDriver()
	if err != nil {
		return 0
	}
	return drv.ProcAddr(name)
}

func (d *Display) VulkanExtensions() []string {
	if d.vk == nil {
		return nil
	}
	return d.vk.Extensions()
}

func (d *Display) Outputs() []platform.OutputInfo {
	out := make([]platform.OutputInfo, len(d.outputs))
	for i, o := range d.outputs {
		out[i] = o.info()
	}
	return out
}

// Close tears the display down. All windows must be closed first.
func (d *Display) Close() error {
	if d.closed {
		return nil
	}
	if len(d.windows) > 0 {
		panic(fmt.Sprintf("kms: display closed with %d open windows", len(d.windows)))
	}
	d.closed = true
	d.seat.close()
	if d.gl != nil {
		d.gl.Close()
		d.gl = nil
	}
	d.destroyCursors()
	d.destroyOutputs()
	d.session.close()
	errs := []error{d.reactor.Close(), d.dev.Close()}
	return errors.Join(errs...)
}

func (d *Display) destroyOutputs() {
	for _, o := range d.outputs {
		if o.modeBlob != 0 {
			d.dev.DestroyBlob(o.modeBlob)
			o.modeBlob = 0
		}
	}
}
