package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/pixfx/pkg/imaging"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[engine]
threads = 4
max-steps = 5000
channels = "rgba"

[random]
seed = 42
shared = true

[log]
verbosity = 2
file = "fx.log"

[output]
format = "TIF"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Engine.Threads != 4 {
		t.Errorf("threads = %d, want 4", m.Engine.Threads)
	}
	if m.Engine.MaxSteps != 5000 {
		t.Errorf("max-steps = %d, want 5000", m.Engine.MaxSteps)
	}
	if m.Random.Seed != 42 || !m.Random.Shared {
		t.Errorf("random = %+v, want seed 42 shared", m.Random)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.Output.Format != "tiff" {
		t.Errorf("output format = %q, want tiff", m.Output.Format)
	}
	if p := m.LogPath(); p == nil || *p != filepath.Join(m.Dir, "fx.log") {
		t.Errorf("LogPath() = %v", p)
	}

	opts, err := m.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.Threads != 4 || opts.MaxSteps != 5000 || opts.Seed != 42 || !opts.SharedRandom {
		t.Errorf("options = %+v", opts)
	}
	if len(opts.Channels) != 4 || opts.Channels[3] != imaging.AlphaChannel {
		t.Errorf("channels = %v, want rgba", opts.Channels)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[engine]\nthreads = 2\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Output.Format != "png" {
		t.Errorf("default format = %q, want png", m.Output.Format)
	}
	if m.LogPath() != nil {
		t.Error("default log path should be nil")
	}
	opts, _ := m.Options()
	if opts.Channels != nil {
		t.Errorf("default channels = %v, want nil", opts.Channels)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[engine\n", "parse error"},
		{"unknown key", "[engine]\nthread = 2\n", "unknown key"},
		{"negative threads", "[engine]\nthreads = -1\n", "engine.threads"},
		{"bad channels", "[engine]\nchannels = \"hue\"\n", "engine.channels"},
		{"bad format", "[output]\nformat = \"gif\"\n", "output.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[random]\nseed = 9\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Random.Seed != 9 {
		t.Errorf("seed = %d, want 9", m.Random.Seed)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no fx.toml exists")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Default()
	m.Engine.Threads = 3
	m.Engine.Channels = "rgb"
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Engine.Threads != 3 || loaded.Engine.Channels != "rgb" || loaded.Output.Format != "png" {
		t.Errorf("loaded = %+v", loaded)
	}
	if err := Write(dir, m); err == nil {
		t.Error("Write should not replace an existing file")
	}
}
