// Package manifest handles fx.toml configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/pixfx/fx"
)

// FileName is the name of the configuration file.
const FileName = "fx.toml"

// Manifest represents an fx.toml configuration.
type Manifest struct {
	Engine Engine `toml:"engine"`
	Random Random `toml:"random"`
	Log    Log    `toml:"log"`
	Output Output `toml:"output"`

	// Dir is the directory containing the fx.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine configures evaluation.
type Engine struct {
	Threads  int    `toml:"threads"`
	MaxSteps int    `toml:"max-steps"`
	Channels string `toml:"channels"`
}

// Random configures rand().
type Random struct {
	Seed   uint64 `toml:"seed"`
	Shared bool   `toml:"shared"`
}

// Log configures the commonlog backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Output configures image output.
type Output struct {
	Format string `toml:"format"`
}

var formats = map[string]bool{"png": true, "tiff": true}

// Default returns the configuration used when no fx.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Output.Format == "" {
		m.Output.Format = "png"
	}
	m.Output.Format = strings.ToLower(m.Output.Format)
	if m.Output.Format == "tif" {
		m.Output.Format = "tiff"
	}
}

// Load parses an fx.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("manifest: unknown key %q in %s", undecoded[0].String(), path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest: cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an fx.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Write stores m as fx.toml in dir. An existing file is not replaced.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("manifest: encode %s: %w", path, err)
	}
	return f.Close()
}

// Validate checks value ranges.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Engine.Threads < 0 {
		errs = append(errs, fmt.Errorf("engine.threads must not be negative"))
	}
	if m.Engine.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("engine.max-steps must not be negative"))
	}
	if _, err := fx.ParseChannels(m.Engine.Channels); err != nil {
		errs = append(errs, fmt.Errorf("engine.channels: %w", err))
	}
	if !formats[m.Output.Format] {
		errs = append(errs, fmt.Errorf("output.format %q is not png or tiff", m.Output.Format))
	}
	return errors.Join(errs...)
}

// Options converts the manifest into evaluation options.
func (m *Manifest) Options() (fx.Options, error) {
	channels, err := fx.ParseChannels(m.Engine.Channels)
	if err != nil {
		return fx.Options{}, fmt.Errorf("manifest: %w", err)
	}
	return fx.Options{
		Threads:      m.Engine.Threads,
		Channels:     channels,
		MaxSteps:     m.Engine.MaxSteps,
		Seed:         m.Random.Seed,
		SharedRandom: m.Random.Shared,
	}, nil
}

// LogPath returns the log file path resolved against Dir, or nil for
// stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
