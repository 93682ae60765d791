package imaging

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Rectangle is a page geometry: offset plus extent.
type Rectangle struct {
	X, Y          int
	Width, Height int
}

// Metadata carries the image attributes the expression language can read.
type Metadata struct {
	Depth       int     // bits per sample
	Quality     int     // compression quality, 0 when unknown
	ResolutionX float64 // pixels per unit
	ResolutionY float64
	Page        Rectangle
	Extent      int64 // encoded size in bytes, 0 when unknown
}

// Image is read-only access to pixel storage and image metadata.
type Image interface {
	Columns() int
	Rows() int
	Colorspace() Colorspace
	HasAlpha() bool

	// At returns the authentic pixel at (x, y). Callers guarantee that the
	// coordinates are in bounds.
	At(x, y int) Pixel

	Metadata() Metadata
	Property(name string) (string, bool)
}

// Memory is an in-memory float image.
type Memory struct {
	columns    int
	rows       int
	colorspace Colorspace
	alpha      bool
	pix        []float64
	meta       Metadata
	properties map[string]string
}

// NewMemory allocates a zeroed image. Alpha slots start opaque.
func NewMemory(columns, rows int, cs Colorspace) *Memory {
	if columns < 0 || rows < 0 {
		panic(fmt.Sprintf("imaging: negative image size %dx%d", columns, rows))
	}
	m := &Memory{
		columns:    columns,
		rows:       rows,
		colorspace: cs,
		pix:        make([]float64, columns*rows*PixelChannels),
		meta: Metadata{
			Depth:       16,
			ResolutionX: 72,
			ResolutionY: 72,
			Page:        Rectangle{Width: columns, Height: rows},
		},
		properties: make(map[string]string),
	}
	for i := int(AlphaChannel); i < len(m.pix); i += PixelChannels {
		m.pix[i] = 1
	}
	return m
}

// Columns returns the image width.
func (m *Memory) Columns() int { return m.columns }

// Rows returns the image height.
func (m *Memory) Rows() int { return m.rows }

// Colorspace returns how the stored slots are interpreted.
func (m *Memory) Colorspace() Colorspace { return m.colorspace }

// HasAlpha reports whether the alpha slot is meaningful.
func (m *Memory) HasAlpha() bool { return m.alpha }

// SetAlpha toggles the alpha slot.
func (m *Memory) SetAlpha(alpha bool) { m.alpha = alpha }

// Metadata returns the image attributes.
func (m *Memory) Metadata() Metadata { return m.meta }

// SetMetadata replaces the image attributes.
func (m *Memory) SetMetadata(meta Metadata) { m.meta = meta }

// Property returns an image property, as used by %[name] in expressions.
func (m *Memory) Property(name string) (string, bool) {
	v, ok := m.properties[name]
	return v, ok
}

// SetProperty sets an image property.
func (m *Memory) SetProperty(name, value string) {
	m.properties[name] = value
}

// At returns the pixel at (x, y).
func (m *Memory) At(x, y int) Pixel {
	var p Pixel
	off := (y*m.columns + x) * PixelChannels
	copy(p[:], m.pix[off:off+PixelChannels])
	return p
}

// Set stores the pixel at (x, y).
func (m *Memory) Set(x, y int, p Pixel) {
	off := (y*m.columns + x) * PixelChannels
	copy(m.pix[off:off+PixelChannels], p[:])
}

// SetChannel stores one slot of the pixel at (x, y).
func (m *Memory) SetChannel(x, y int, c Channel, v float64) {
	m.pix[(y*m.columns+x)*PixelChannels+int(c)] = v
}

// Clone returns a deep copy of the image, properties included.
func (m *Memory) Clone() *Memory {
	c := *m
	c.pix = append([]float64(nil), m.pix...)
	c.properties = make(map[string]string, len(m.properties))
	for k, v := range m.properties {
		c.properties[k] = v
	}
	return &c
}

// FromImage converts a decoded Go image. Gray and CMYK sources keep their
// colorspace; everything else is converted through NRGBA64.
func FromImage(src image.Image) *Memory {
	b := src.Bounds()
	switch s := src.(type) {
	case *image.Gray, *image.Gray16:
		m := NewMemory(b.Dx(), b.Dy(), GrayColorspace)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g := color.Gray16Model.Convert(s.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				v := float64(g.Y) / 0xffff
				m.Set(x, y, Pixel{v, v, v, 0, 1})
			}
		}
		return m
	case *image.CMYK:
		m := NewMemory(b.Dx(), b.Dy(), CMYKColorspace)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := s.CMYKAt(b.Min.X+x, b.Min.Y+y)
				m.Set(x, y, Pixel{
					float64(c.C) / 0xff,
					float64(c.M) / 0xff,
					float64(c.Y) / 0xff,
					float64(c.K) / 0xff,
					1,
				})
			}
		}
		m.meta.Depth = 8
		return m
	}

	rgba := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	m := NewMemory(b.Dx(), b.Dy(), RGBColorspace)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := rgba.NRGBA64At(x, y)
			if c.A != 0xffff {
				m.alpha = true
			}
			m.Set(x, y, Pixel{
				float64(c.R) / 0xffff,
				float64(c.G) / 0xffff,
				float64(c.B) / 0xffff,
				0,
				float64(c.A) / 0xffff,
			})
		}
	}
	return m
}

// ToImage converts the image for encoding: gray without alpha becomes
// Gray16, CMYK becomes CMYK, everything else NRGBA64.
func (m *Memory) ToImage() image.Image {
	r := image.Rect(0, 0, m.columns, m.rows)
	switch {
	case m.colorspace == GrayColorspace && !m.alpha:
		dst := image.NewGray16(r)
		for y := 0; y < m.rows; y++ {
			for x := 0; x < m.columns; x++ {
				dst.SetGray16(x, y, color.Gray16{Y: quantum16(m.At(x, y)[GrayChannel])})
			}
		}
		return dst
	case m.colorspace == CMYKColorspace:
		dst := image.NewCMYK(r)
		for y := 0; y < m.rows; y++ {
			for x := 0; x < m.columns; x++ {
				p := m.At(x, y)
				dst.SetCMYK(x, y, color.CMYK{
					C: quantum8(p[CyanChannel]),
					M: quantum8(p[MagentaChannel]),
					Y: quantum8(p[YellowChannel]),
					K: quantum8(p[BlackChannel]),
				})
			}
		}
		return dst
	}
	dst := image.NewNRGBA64(r)
	for y := 0; y < m.rows; y++ {
		for x := 0; x < m.columns; x++ {
			p := m.At(x, y)
			if m.colorspace == GrayColorspace {
				p[GreenChannel], p[BlueChannel] = p[GrayChannel], p[GrayChannel]
			}
			a := uint16(0xffff)
			if m.alpha {
				a = quantum16(p[AlphaChannel])
			}
			dst.SetNRGBA64(x, y, color.NRGBA64{
				R: quantum16(p[RedChannel]),
				G: quantum16(p[GreenChannel]),
				B: quantum16(p[BlueChannel]),
				A: a,
			})
		}
	}
	return dst
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func quantum16(v float64) uint16 { return uint16(clamp01(v)*0xffff + 0.5) }

func quantum8(v float64) uint8 { return uint8(clamp01(v)*0xff + 0.5) }
