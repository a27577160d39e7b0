package config

import (
	"fmt"
	"strconv"
	"strings"
)

// envBinding ties an environment variable to a config path.
type envBinding struct {
	name  string
	path  string
	apply func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"SWA_BACKEND", "backend", func(c *Config, v string) error { c.Backend = strings.ToLower(v); return nil }},
	{"SWA_LOG_LEVEL", "log_level", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"SWA_TTY", "tty", func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimPrefix(v, "/dev/tty"))
		if err != nil {
			return fmt.Errorf("not a vt number: %q", v)
		}
		c.TTY = n
		return nil
	}},
	{"SWA_DRM_DEVICE", "kms.device", func(c *Config, v string) error { c.KMS.Device = v; return nil }},
	{"XCURSOR_THEME", "cursor.theme", func(c *Config, v string) error { c.Cursor.Theme = v; return nil }},
	{"XCURSOR_SIZE", "cursor.size", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		c.Cursor.Size = n
		return nil
	}},
	{"XKB_DEFAULT_RULES", "xkb.rules", func(c *Config, v string) error { c.XKB.Rules = v; return nil }},
	{"XKB_DEFAULT_MODEL", "xkb.model", func(c *Config, v string) error { c.XKB.Model = v; return nil }},
	{"XKB_DEFAULT_LAYOUT", "xkb.layout", func(c *Config, v string) error { c.XKB.Layout = v; return nil }},
	{"XKB_DEFAULT_VARIANT", "xkb.variant", func(c *Config, v string) error { c.XKB.Variant = v; return nil }},
	{"XKB_DEFAULT_OPTIONS", "xkb.options", func(c *Config, v string) error { c.XKB.Options = v; return nil }},
}

// EnvNames lists the environment variables that override config values.
func EnvNames() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = b.name
	}
	return names
}

func applyEnv(c *Config, getenv func(string) string, sources map[string]Source) error {
	for _, b := range envBindings {
		v := strings.TrimSpace(getenv(b.name))
		if v == "" {
			continue
		}
		src := Source{Kind: SourceEnv, Name: b.name}
		if err := b.apply(c, v); err != nil {
			return &ValidationError{Path: b.path, Source: src, Err: err}
		}
		sources[b.path] = src
	}
	return nil
}
