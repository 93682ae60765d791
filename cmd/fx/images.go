package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chazu/pixfx/pkg/imaging"
)

// loadImage decodes an image file and records the metadata the
// expression language can read.
func loadImage(path string) (*imaging.Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	m := imaging.FromImage(src)

	meta := m.Metadata()
	meta.Depth = depthOf(src)
	if st, err := f.Stat(); err == nil {
		meta.Extent = st.Size()
	}
	meta.Page = imaging.Rectangle{Width: m.Columns(), Height: m.Rows()}
	m.SetMetadata(meta)
	m.SetProperty("filename", filepath.Base(path))
	m.SetProperty("format", format)
	return m, nil
}

func depthOf(img image.Image) int {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return 16
	}
	return 8
}

// formatFor picks the output format from the file extension, falling
// back to def.
func formatFor(path, def string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".tif", ".tiff":
		return "tiff"
	}
	return def
}

// saveImage encodes m to path in the given format.
func saveImage(path, format string, m *imaging.Memory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	img := m.ToImage()
	switch format {
	case "tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
