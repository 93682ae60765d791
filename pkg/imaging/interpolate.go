package imaging

import "math"

// VirtualPixel returns the pixel at (x, y), extending edge pixels for
// coordinates outside the image.
func VirtualPixel(img Image, x, y int) Pixel {
	cols, rows := img.Columns(), img.Rows()
	if cols == 0 || rows == 0 {
		return Pixel{}
	}
	if x < 0 {
		x = 0
	} else if x >= cols {
		x = cols - 1
	}
	if y < 0 {
		y = 0
	} else if y >= rows {
		y = rows - 1
	}
	return img.At(x, y)
}

// Interpolate samples the image at a fractional coordinate with bilinear
// interpolation over virtual pixels. Integral coordinates return the pixel
// itself.
func Interpolate(img Image, x, y float64) Pixel {
	fx, fy := math.Floor(x), math.Floor(y)
	dx, dy := x-fx, y-fy
	ix, iy := int(fx), int(fy)
	if dx == 0 && dy == 0 {
		return VirtualPixel(img, ix, iy)
	}
	p00 := VirtualPixel(img, ix, iy)
	p10 := VirtualPixel(img, ix+1, iy)
	p01 := VirtualPixel(img, ix, iy+1)
	p11 := VirtualPixel(img, ix+1, iy+1)
	var out Pixel
	for c := range out {
		top := p00[c]*(1-dx) + p10[c]*dx
		bottom := p01[c]*(1-dx) + p11[c]*dx
		out[c] = top*(1-dy) + bottom*dy
	}
	return out
}
