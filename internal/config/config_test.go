package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if !cfg.KMS.Input {
		t.Fatalf("expected kms input enabled by default")
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := loadFromPath(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != "" {
		t.Fatalf("expected no file, got %q", res.File)
	}
	if res.Config.Backend != BackendAuto {
		t.Fatalf("expected backend auto, got %q", res.Config.Backend)
	}
}

func TestLoadFromPath_ReadsNestedKeys(t *testing.T) {
	path := writeConfig(t,
		"backend: kms",
		"kms:",
		"  device: /dev/dri/card1",
		"  input: false",
		"xkb:",
		"  layout: de",
	)
	res, err := loadFromPath(path, noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Backend != BackendKMS || cfg.KMS.Device != "/dev/dri/card1" || cfg.KMS.Input {
		t.Fatalf("unexpected kms config %+v", cfg)
	}
	if cfg.XKB.Layout != "de" {
		t.Fatalf("expected layout de, got %q", cfg.XKB.Layout)
	}
	if cfg.Cursor.Size != 24 {
		t.Fatalf("expected untouched default cursor size, got %d", cfg.Cursor.Size)
	}
	if src := res.Sources["kms.device"]; src.Kind != SourceFile || src.Line != 3 {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestLoadFromPath_UnknownKeyFails(t *testing.T) {
	path := writeConfig(t, "backend: kms", "bogus: 1")
	if _, err := loadFromPath(path, noEnv); err == nil {
		t.Fatalf("expected unknown key to fail")
	}
}

func TestLoadFromPath_ValidationErrorHasPosition(t *testing.T) {
	path := writeConfig(t, "log_level: info", "backend: wayland")
	_, err := loadFromPath(path, noEnv)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Path != "backend" || verr.Source.Line != 2 {
		t.Fatalf("unexpected error context %+v", verr)
	}
	if !strings.Contains(err.Error(), path+":2:") {
		t.Fatalf("expected file position in %q", err.Error())
	}
}

func TestLoadFromPath_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend: kms", "cursor:", "  size: 32")
	res, err := loadFromPath(path, envMap(map[string]string{
		"SWA_BACKEND":        "X11",
		"XCURSOR_SIZE":       "48",
		"XKB_DEFAULT_LAYOUT": "fr",
		"SWA_TTY":            "/dev/tty3",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Backend != BackendX11 {
		t.Fatalf("expected env backend x11, got %q", cfg.Backend)
	}
	if cfg.Cursor.Size != 48 || cfg.XKB.Layout != "fr" || cfg.TTY != 3 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if src := res.Sources["cursor.size"]; src.Kind != SourceEnv || src.Name != "XCURSOR_SIZE" {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestLoadFromPath_BadEnvironmentValue(t *testing.T) {
	_, err := loadFromPath(filepath.Join(t.TempDir(), "x.yaml"), envMap(map[string]string{"XCURSOR_SIZE": "big"}))
	if err == nil || !strings.Contains(err.Error(), "$XCURSOR_SIZE") {
		t.Fatalf("expected env error, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"tty":          func(c *Config) { c.TTY = 64 },
		"kms.device":   func(c *Config) { c.KMS.Device = "card0" },
		"cursor.size":  func(c *Config) { c.Cursor.Size = 0 },
		"cursor.theme": func(c *Config) { c.Cursor.Theme = " " },
		"log_level":    func(c *Config) { c.LogLevel = "loud" },
	}
	for path, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		err := cfg.Validate()
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Path != path {
			t.Fatalf("%s: expected validation error, got %v", path, err)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("DEBUG") != slog.LevelDebug || ParseLogLevel("warning") != slog.LevelWarn ||
		ParseLogLevel("nope") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}

func TestMarshal_RoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.XKB.Layout = "us"
	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := writeConfig(t, string(data))
	res, err := loadFromPath(path, noEnv)
	if err != nil {
		t.Fatalf("load marshalled config: %v", err)
	}
	if *res.Config != *cfg {
		t.Fatalf("expected %+v, got %+v", cfg, res.Config)
	}
}
