package swa

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/swa/internal/config"
	"github.com/1broseidon/swa/internal/x11"
)

// backend is one entry of the static backend list.
type backend struct {
	name string
	// usable reports whether the backend is worth trying in auto mode.
	usable func() bool
	open   func(cfg *config.Config, logger *slog.Logger) (Display, error)
}

// backends is tried in order by CreateDisplay.
var backends = append([]backend{{
	name:   config.BackendX11,
	usable: func() bool { return os.Getenv("DISPLAY") != "" },
	open: func(_ *config.Config, logger *slog.Logger) (Display, error) {
		d, err := x11.Open("", logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
}}, systemBackends()...)

// Backends lists the compiled-in backends in the order they are tried.
func Backends() []string {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.name
	}
	return names
}

type options struct {
	logger     *slog.Logger
	cfg        *config.Config
	configPath string
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig uses cfg instead of loading the config file.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigPath loads the config from path instead of the default location.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

func resolve(opts []Option) (*options, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.cfg != nil {
		return o, nil
	}
	if o.configPath != "" {
		res, err := config.LoadFromPath(o.configPath)
		if err != nil {
			return nil, err
		}
		o.cfg = res.Config
		return o, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return o, nil
}

// CreateDisplay opens the backend named by the config, or the first usable
// one from Backends.
func CreateDisplay(opts ...Option) (Display, error) {
	o, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	if o.cfg.Backend != "" && o.cfg.Backend != config.BackendAuto {
		return open(o.cfg.Backend, o)
	}

	var errs []error
	for _, b := range backends {
		if !b.usable() {
			o.logger.Debug("backend not usable", "backend", b.name)
			continue
		}
		d, err := b.open(o.cfg, o.logger)
		if err == nil {
			return d, nil
		}
		o.logger.Debug("backend failed", "backend", b.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
	}
	if len(errs) == 0 {
		return nil, ErrNoBackend
	}
	return nil, fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}

// CreateBackend opens the named backend regardless of the config setting.
func CreateBackend(name string, opts ...Option) (Display, error) {
	o, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	return open(name, o)
}

func open(name string, o *options) (Display, error) {
	for _, b := range backends {
		if b.name == name {
			d, err := b.open(o.cfg, o.logger)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return d, nil
		}
	}
	return nil, fmt.Errorf("unknown backend %q: %w", name, ErrNoBackend)
}
