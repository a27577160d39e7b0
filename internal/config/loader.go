package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

type Source struct {
	Kind   SourceKind
	Name   string // environment variable for SourceEnv
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML path -> last writer
	File    string            // loaded file, empty when none existed
}

func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "swa", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "swa", "config.yaml"), nil
}

// Load reads the config from the standard location and applies environment
// overrides.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	res, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadFromPath loads path (a missing file means defaults), then applies
// environment overrides and validates the result.
func LoadFromPath(path string) (*LoadResult, error) {
	return loadFromPath(path, os.Getenv)
}

func loadFromPath(path string, getenv func(string) string) (*LoadResult, error) {
	cfg := DefaultConfig()
	sources := map[string]Source{}
	res := &LoadResult{Config: cfg, Sources: sources}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeStrictYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err == nil {
			for k, v := range collectSources(&doc, path) {
				sources[k] = v
			}
		}
		res.File = path
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(cfg, getenv, sources); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, sources)
	}
	return res, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	if doc == nil {
		return out
	}
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	collectSourcesRec(node, file, "", out)
	return out
}

func collectSourcesRec(node *yaml.Node, file string, prefix string, out map[string]Source) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		path := keyNode.Value
		if prefix != "" {
			path = prefix + "." + keyNode.Value
		}
		out[path] = Source{
			Kind:   SourceFile,
			File:   file,
			Line:   valNode.Line,
			Column: valNode.Column,
		}
		collectSourcesRec(valNode, file, path, out)
	}
}

func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
