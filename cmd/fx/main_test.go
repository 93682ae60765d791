package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/tiff"
)

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 100), B: 200, A: 255})
		}
	}
	path := filepath.Join(dir, "in.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func runFx(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestPrint(t *testing.T) {
	code, out, errOut := runFx(t, "-print", "-e", "1 + 2 * 3")
	if code != 0 {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}
	if strings.TrimSpace(out) != "7" {
		t.Errorf("stdout = %q, want 7", out)
	}
}

func TestCurrentImage(t *testing.T) {
	a := writePNG(t, t.TempDir())
	b := writePNG(t, t.TempDir())
	tests := []struct {
		current string
		want    string
	}{
		{"0", "0"},
		{"1", "1"},
		{"-1", "1"},
		{"4", "0"},
	}
	for _, tt := range tests {
		code, out, errOut := runFx(t, "-current", tt.current, "-print", "-e", "t", a, b)
		if code != 0 {
			t.Fatalf("-current %s: code = %d, stderr = %q", tt.current, code, errOut)
		}
		if strings.TrimSpace(out) != tt.want {
			t.Errorf("-current %s: t = %q, want %s", tt.current, out, tt.want)
		}
	}

	// Without inputs the single placeholder image is always current.
	if code, out, _ := runFx(t, "-current", "3", "-print", "-e", "t"); code != 0 || strings.TrimSpace(out) != "0" {
		t.Errorf("code = %d, stdout = %q, want 0", code, out)
	}
}

func TestConfigDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fx.toml"), []byte("[random]\nseed = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, errOut := runFx(t, "-config", dir, "-print", "-e", "1"); code != 0 {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}

	// -config names a directory that must hold fx.toml.
	code, _, errOut := runFx(t, "-config", t.TempDir(), "-print", "-e", "1")
	if code != 1 || !strings.Contains(errOut, "fx.toml") {
		t.Errorf("code = %d, stderr = %q", code, errOut)
	}
}

func TestApplyWritesImage(t *testing.T) {
	dir := t.TempDir()
	in := writePNG(t, dir)
	out := filepath.Join(dir, "out.png")

	code, _, errOut := runFx(t, "-e", "1 - u", "-threads", "2", "-o", out, in)
	if code != 0 {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	r, _, b, _ := img.At(1, 0).RGBA()
	if r>>8 != 255-60 || b>>8 != 55 {
		t.Errorf("pixel = %d, %d, want inverted", r>>8, b>>8)
	}
}

func TestTIFFOutput(t *testing.T) {
	dir := t.TempDir()
	in := writePNG(t, dir)
	out := filepath.Join(dir, "out.tif")
	if code, _, errOut := runFx(t, "-e", "u", "-o", out, in); code != 0 {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := tiff.Decode(f); err != nil {
		t.Errorf("output is not a TIFF: %v", err)
	}
}

func TestSaveLoadDisasm(t *testing.T) {
	dir := t.TempDir()
	prog := filepath.Join(dir, "prog.fxc")
	if code, _, errOut := runFx(t, "-e", "a = 2; a * 21", "-save", prog); code != 0 {
		t.Fatalf("save: code = %d, stderr = %q", code, errOut)
	}
	code, out, errOut := runFx(t, "-load", prog, "-print", "-disasm")
	if code != 0 {
		t.Fatalf("load: code = %d, stderr = %q", code, errOut)
	}
	if !strings.Contains(out, "a = 2; a * 21") {
		t.Errorf("disassembly missing expression: %q", out)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "42") {
		t.Errorf("stdout = %q, want result 42", out)
	}
}

func TestExpressionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "e.fx")
	if err := os.WriteFile(path, []byte("max(3, 4)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runFx(t, "-print", "-e", "@"+path)
	if code != 0 || strings.TrimSpace(out) != "4" {
		t.Errorf("code = %d, stdout = %q, stderr = %q", code, out, errOut)
	}
}

func TestCompileErrorShowsSnippet(t *testing.T) {
	code, _, errOut := runFx(t, "-print", "-e", "(1+2")
	if code != 1 {
		t.Fatalf("code = %d", code)
	}
	if !strings.Contains(errOut, "fx error at") || !strings.Contains(errOut, "^") {
		t.Errorf("stderr = %q, want caret snippet", errOut)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no output", []string{"-e", "u"}, 2, "no output"},
		{"no inputs", []string{"-e", "u", "-o", "x.png"}, 2, "input image"},
		{"no expression", []string{"-print"}, 1, "no expression"},
		{"both sources", []string{"-print", "-e", "1", "-load", "p"}, 1, "mutually exclusive"},
		{"bad channels", []string{"-print", "-e", "1", "-channels", "hue"}, 1, "unknown channel"},
		{"bad flag", []string{"-nope"}, 2, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runFx(t, tt.args...)
			if code != tt.code || !strings.Contains(errOut, tt.want) {
				t.Errorf("code = %d, stderr = %q, want %d and %q", code, errOut, tt.code, tt.want)
			}
		})
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]string{
		"a.png":  "png",
		"a.TIF":  "tiff",
		"a.tiff": "tiff",
		"a.out":  "png",
	}
	for path, want := range tests {
		if got := formatFor(path, "png"); got != want {
			t.Errorf("formatFor(%q) = %q, want %q", path, got, want)
		}
	}
}
