// Package prefs persists the viewer settings a user changes from inside the
// UI, such as the colour theme and whether the log panel follows new output.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/pipeview/internal/config"
)

const (
	defaultPrefsPath = "~/.config/pipeview/prefs.toml"
	defaultTheme     = "Nightfox"
)

// Prefs is the on-disk preference document.
type Prefs struct {
	Theme string `toml:"theme"`
	// Follow keeps the log panel scrolled to the newest block.
	Follow bool `toml:"follow"`
}

// Default returns the preferences used when nothing is stored.
func Default() Prefs {
	return Prefs{Theme: defaultTheme, Follow: true}
}

// DefaultPath returns the unexpanded default location.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from path. A missing or unreadable file is not an
// error: the viewer starts with defaults and keys absent from the file keep
// their default values.
func Load(path string) (Prefs, error) {
	out := Default()

	file, err := location(path)
	if err != nil {
		return out, nil
	}
	raw, err := os.ReadFile(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return out, nil
	case err != nil:
		slog.Debug("prefs unreadable, using defaults", "path", file, "error", err)
		return out, nil
	}

	if err := toml.Unmarshal(raw, &out); err != nil {
		slog.Debug("prefs malformed, using defaults", "path", file, "error", err)
		return Default(), nil
	}
	if strings.TrimSpace(out.Theme) == "" {
		out.Theme = defaultTheme
	}
	return out, nil
}

// Save stores p at path. The file is written next to its final name and
// renamed into place so a crash never leaves a truncated document.
func Save(path string, p Prefs) error {
	file, err := location(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	encoded, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

func location(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPrefsPath
	}
	return config.ExpandPath(path)
}
