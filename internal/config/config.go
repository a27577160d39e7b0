package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Backend names accepted by the backend setting.
const (
	BackendAuto = "auto"
	BackendKMS  = "kms"
	BackendX11  = "x11"
)

// Config holds display and input settings shared by all backends.
type Config struct {
	Backend  string       `yaml:"backend"`
	LogLevel string       `yaml:"log_level"`
	TTY      int          `yaml:"tty"` // 0 = detect
	KMS      KMSConfig    `yaml:"kms"`
	Cursor   CursorConfig `yaml:"cursor"`
	XKB      XKBConfig    `yaml:"xkb"`
}

// KMSConfig tunes the direct rendering backend.
type KMSConfig struct {
	// Device is a /dev/dri/card* path. Empty picks the first card with an
	// active output.
	Device string `yaml:"device"`
	Input  bool   `yaml:"input"`
}

type CursorConfig struct {
	Theme string `yaml:"theme"`
	Size  int    `yaml:"size"`
}

// XKBConfig holds the XKB rule names used to build the keymap.
type XKBConfig struct {
	Rules   string `yaml:"rules"`
	Model   string `yaml:"model"`
	Layout  string `yaml:"layout"`
	Variant string `yaml:"variant"`
	Options string `yaml:"options"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:  BackendAuto,
		LogLevel: "info",
		KMS: KMSConfig{
			Input: true,
		},
		Cursor: CursorConfig{
			Theme: "default",
			Size:  24,
		},
	}
}

// Validate checks the config for values no backend can honor.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendKMS, BackendX11:
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: auto, kms, x11")}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.TTY < 0 || c.TTY > 63 {
		return &ValidationError{Path: "tty", Err: fmt.Errorf("tty must be between 0 and 63")}
	}
	if c.KMS.Device != "" && !filepath.IsAbs(c.KMS.Device) {
		return &ValidationError{Path: "kms.device", Err: fmt.Errorf("kms.device must be an absolute path")}
	}
	if c.Cursor.Size <= 0 || c.Cursor.Size > 256 {
		return &ValidationError{Path: "cursor.size", Err: fmt.Errorf("cursor.size must be between 1 and 256")}
	}
	if strings.TrimSpace(c.Cursor.Theme) == "" {
		return &ValidationError{Path: "cursor.theme", Err: fmt.Errorf("cursor.theme must not be empty")}
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	return ParseLogLevel(c.LogLevel)
}

// ParseLogLevel converts a string to a slog level.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidationError points at the config path, and the file position when
// known, of an invalid value.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	case e.Source.Kind == SourceEnv:
		return fmt.Sprintf("$%s: %s: %v", e.Source.Name, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }
