package xcursor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultSearchPath = "~/.local/share/icons:~/.icons:/usr/share/icons:/usr/share/pixmaps:/usr/X11R6/lib/X11/icons"

// maxInherit bounds the Inherits= chain.
const maxInherit = 16

// Theme resolves cursor names within a theme and the themes it inherits.
type Theme struct {
	Name  string
	dirs  []string
	cache map[string][]Image
}

// LoadTheme prepares name for lookups. The search path comes from
// $XCURSOR_PATH when set.
func LoadTheme(name string) *Theme {
	if name == "" {
		name = "default"
	}
	return &Theme{Name: name, dirs: SearchPath(), cache: make(map[string][]Image)}
}

// SearchPath returns the icon directories searched for themes.
func SearchPath() []string {
	raw := os.Getenv("XCURSOR_PATH")
	if raw == "" {
		raw = defaultSearchPath
	}
	home, _ := os.UserHomeDir()
	var dirs []string
	for _, d := range strings.Split(raw, ":") {
		if d == "" {
			continue
		}
		if strings.HasPrefix(d, "~/") && home != "" {
			d = filepath.Join(home, d[2:])
		}
		dirs = append(dirs, d)
	}
	return dirs
}

// Load returns the frame closest to size for the first of names found in
// the theme chain.
func (t *Theme) Load(size int, names ...string) (*Image, error) {
	for _, name := range names {
		images, ok := t.cache[name]
		if !ok {
			images = t.find(name)
			t.cache[name] = images
		}
		if len(images) > 0 {
			return Best(images, size), nil
		}
	}
	return nil, fmt.Errorf("cursor %v not found in theme %q", names, t.Name)
}

func (t *Theme) find(name string) []Image {
	seen := make(map[string]bool)
	queue := []string{t.Name}
	for depth := 0; len(queue) > 0 && depth < maxInherit; depth++ {
		theme := queue[0]
		queue = queue[1:]
		if seen[theme] {
			continue
		}
		seen[theme] = true

		for _, dir := range t.dirs {
			data, err := os.ReadFile(filepath.Join(dir, theme, "cursors", name))
			if err != nil {
				continue
			}
			if images, err := Decode(data); err == nil {
				return images
			}
		}
		for _, dir := range t.dirs {
			queue = append(queue, inherits(filepath.Join(dir, theme, "index.theme"))...)
		}
	}
	return nil
}

// inherits reads the Inherits= key of an index.theme file.
func inherits(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) != "Inherits" {
			continue
		}
		for _, name := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
			out = append(out, name)
		}
	}
	return out
}
