package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/1broseidon/swa"
	"github.com/1broseidon/swa/internal/config"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "info":
		os.Exit(runInfo(os.Args[2:]))
	case "demo":
		os.Exit(runDemo(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "swa - simple window abstraction")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  swa info [--backend NAME] [--path PATH]")
	fmt.Fprintln(w, "  swa demo [--backend NAME] [--path PATH] [--width N] [--height N]")
	fmt.Fprintln(w, "  swa config validate [--path PATH]")
	fmt.Fprintln(w, "  swa config print [--path PATH] [--defaults]")
	fmt.Fprintln(w, "  swa config explain [--path PATH] <yaml.path>")
	fmt.Fprintln(w, "  swa config env")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Backends (in auto order): %s\n", strings.Join(swa.Backends(), ", "))
}

// displayFlags are shared by the commands that open a display.
type displayFlags struct {
	backend *string
	path    *string
}

func addDisplayFlags(fs *flag.FlagSet) displayFlags {
	return displayFlags{
		backend: fs.String("backend", "", "Backend to open (default: config backend setting)"),
		path:    fs.String("path", "", "Config file path (default: ~/.config/swa/config.yaml)"),
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadFromPath(path)
}

func openDisplay(f displayFlags) (swa.Display, *slog.Logger, error) {
	res, err := loadConfig(*f.path)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: res.Config.SlogLevel()}))
	opts := []swa.Option{swa.WithLogger(logger), swa.WithConfig(res.Config)}
	var d swa.Display
	if *f.backend != "" {
		d, err = swa.CreateBackend(*f.backend, opts...)
	} else {
		d, err = swa.CreateDisplay(opts...)
	}
	if err != nil {
		return nil, nil, err
	}
	return d, logger, nil
}

var capNames = []struct {
	cap  swa.DisplayCap
	name string
}{
	{swa.CapBufferSurface, "buffer"},
	{swa.CapGL, "gl"},
	{swa.CapVulkan, "vulkan"},
	{swa.CapClientDecoration, "client-decoration"},
	{swa.CapServerDecoration, "server-decoration"},
	{swa.CapKeyboard, "keyboard"},
	{swa.CapKeyboardText, "keyboard-text"},
	{swa.CapMouse, "mouse"},
	{swa.CapTouch, "touch"},
	{swa.CapDataOffer, "clipboard"},
	{swa.CapDnD, "dnd"},
}

func formatCaps(caps swa.DisplayCap) string {
	var names []string
	for _, c := range capNames {
		if caps.Has(c.cap) {
			names = append(names, c.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}

func formatRefresh(mhz int) string {
	if mhz <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d.%02d Hz", mhz/1000, (mhz%1000)/10)
}

func runInfo(args []string) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	f := addDisplayFlags(fs)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	d, _, err := openDisplay(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer d.Close()

	fmt.Printf("capabilities: %s\n", formatCaps(d.Capabilities()))
	if d.Capabilities().Has(swa.CapVulkan) {
		fmt.Printf("vulkan extensions: %s\n", strings.Join(d.VulkanExtensions(), " "))
	}
	lister, ok := d.(swa.OutputLister)
	if !ok {
		return 0
	}
	outputs := lister.Outputs()
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].ID < outputs[j].ID })
	fmt.Printf("outputs: %d\n", len(outputs))
	for _, o := range outputs {
		fmt.Printf("  %-12s %dx%d+%d+%d @ %s\n", o.Name, o.Width, o.Height, o.X, o.Y, formatRefresh(o.Refresh))
	}
	return 0
}

// demo draws a scrolling gradient into a buffer window until it is closed
// or Escape is pressed. F11 toggles fullscreen.
type demo struct {
	logger *slog.Logger
	frame  int
	src    *swa.Image
	state  swa.WindowState
	quit   bool
}

func (m *demo) draw(w swa.Window) {
	buf, err := w.GetBuffer()
	if err != nil {
		m.logger.Warn("get buffer", "error", err)
		return
	}
	if m.src == nil || m.src.Width != buf.Width || m.src.Height != buf.Height {
		m.src = swa.NewImage(buf.Width, buf.Height, swa.FormatRGBA32)
	}
	fillGradient(m.src, m.frame)
	if err := swa.Convert(&buf, m.src); err != nil {
		m.logger.Warn("convert", "error", err)
	}
	if err := w.ApplyBuffer(); err != nil {
		m.logger.Warn("apply buffer", "error", err)
		return
	}
	m.frame++
	w.Refresh()
}

func (m *demo) key(w swa.Window, ev swa.KeyEvent) {
	if !ev.Pressed || ev.Repeated {
		return
	}
	switch ev.Keycode {
	case swa.KeyEsc:
		m.quit = true
	case swa.KeyF11:
		next := swa.StateFullscreen
		if m.state == swa.StateFullscreen {
			next = swa.StateNormal
		}
		if err := w.SetState(next); err != nil {
			m.logger.Debug("set state", "state", next, "error", err)
		}
	}
}

func fillGradient(img *swa.Image, frame int) {
	for y := 0; y < img.Height; y++ {
		row := img.Data[y*img.Stride:]
		for x := 0; x < img.Width; x++ {
			p := row[x*4 : x*4+4]
			p[0] = byte((x + frame) * 255 / max(img.Width, 1))
			p[1] = byte(y * 255 / max(img.Height, 1))
			p[2] = byte(frame)
			p[3] = 0xff
		}
	}
}

func runDemo(args []string) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	f := addDisplayFlags(fs)
	width := fs.Int("width", 640, "Window width (ignored on kms)")
	height := fs.Int("height", 480, "Window height (ignored on kms)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	d, logger, err := openDisplay(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer d.Close()

	m := &demo{logger: logger}
	listener := &swa.Listener{
		Draw:  m.draw,
		Close: func(swa.Window) { m.quit = true },
		Key:   m.key,
		State: func(_ swa.Window, s swa.WindowState) { m.state = s },
		Resize: func(_ swa.Window, w, h int) {
			logger.Debug("resize", "width", w, "height", h)
		},
	}
	w, err := d.CreateWindow(swa.WindowSettings{
		Width:    *width,
		Height:   *height,
		Title:    "swa demo",
		AppName:  "swa",
		Surface:  swa.SurfaceBuffer,
		Listener: listener,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	interrupted := make(chan struct{})
	go func() {
		if _, ok := <-sigCh; ok {
			close(interrupted)
			d.Wakeup()
		}
	}()

	status := 0
	for !m.quit {
		if !d.Dispatch(true) {
			break
		}
		select {
		case <-interrupted:
			m.quit = true
		default:
		}
	}
	if err := w.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		status = 1
	}
	logger.Info("demo finished", "frames", m.frame)
	return status
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  swa config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  swa config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  swa config explain [--path PATH] <yaml.path>")
		fmt.Fprintln(os.Stderr, "  swa config env")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/swa/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/swa/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			if res.File != "" {
				fmt.Printf("# file: %s\n", res.File)
			}
			cfg = res.Config
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/swa/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, err := lookupPath(res.Config, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(res.Sources[queryPath]))
		fmt.Printf("value:\n%s", string(out))
		return 0

	case "env":
		for _, name := range config.EnvNames() {
			v, ok := os.LookupEnv(name)
			if !ok || v == "" {
				fmt.Printf("%s\n", name)
				continue
			}
			fmt.Printf("%s=%s\n", name, v)
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", args[0])
		return 2
	}
}

// lookupPath walks a dotted YAML path through the marshaled config.
func lookupPath(cfg *config.Config, path string) (any, error) {
	data, err := config.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown config path %q", path)
		}
		if cur, ok = m[part]; !ok {
			return nil, fmt.Errorf("unknown config path %q", path)
		}
	}
	return cur, nil
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		return fmt.Sprintf("%s:%d:%d", src.File, src.Line, src.Column)
	case config.SourceEnv:
		return "env " + src.Name
	default:
		return "default"
	}
}
