package imaging

import "github.com/lucasb-eyer/go-colorful"

// RGBToHSL converts normalised RGB to hue, saturation and lightness, all
// in [0,1].
func RGBToHSL(r, g, b float64) (h, s, l float64) {
	h, s, l = colorful.Color{R: clamp01(r), G: clamp01(g), B: clamp01(b)}.Hsl()
	return h / 360, s, l
}

// HSLToRGB is the inverse of RGBToHSL.
func HSLToRGB(h, s, l float64) (r, g, b float64) {
	c := colorful.Hsl(h*360, s, l)
	return c.R, c.G, c.B
}

// Intensity is the Rec. 601 weighted sum of the colour slots.
func Intensity(p Pixel) float64 {
	return 0.298839*p[RedChannel] + 0.586811*p[GreenChannel] + 0.114350*p[BlueChannel]
}

// Luma is the Rec. 709 weighted sum of the colour slots.
func Luma(p Pixel) float64 {
	return 0.212656*p[RedChannel] + 0.715158*p[GreenChannel] + 0.072186*p[BlueChannel]
}

// ChannelValue reads a stored or derived channel from a pixel of an image
// in the given colorspace. The second result is false when the channel
// does not exist in that colorspace (black outside CMYK).
func ChannelValue(p Pixel, cs Colorspace, hasAlpha bool, c Channel) (float64, bool) {
	switch c {
	case RedChannel, GreenChannel, BlueChannel:
		if cs == GrayColorspace {
			return p[GrayChannel], true
		}
		return p[c], true
	case BlackChannel:
		if cs != CMYKColorspace {
			return 0, false
		}
		return p[BlackChannel], true
	case AlphaChannel:
		if !hasAlpha {
			return 1, true
		}
		return p[AlphaChannel], true
	case CompositeChannel:
		if cs == GrayColorspace {
			return p[GrayChannel], true
		}
		return (p[RedChannel] + p[GreenChannel] + p[BlueChannel]) / 3, true
	}

	rgb := p
	if cs == GrayColorspace {
		rgb[GreenChannel], rgb[BlueChannel] = p[GrayChannel], p[GrayChannel]
	} else if cs == CMYKColorspace {
		k := p[BlackChannel]
		rgb[RedChannel] = (1 - p[CyanChannel]) * (1 - k)
		rgb[GreenChannel] = (1 - p[MagentaChannel]) * (1 - k)
		rgb[BlueChannel] = (1 - p[YellowChannel]) * (1 - k)
	}
	switch c {
	case HueChannel:
		h, _, _ := RGBToHSL(rgb[RedChannel], rgb[GreenChannel], rgb[BlueChannel])
		return h, true
	case SaturationChannel:
		_, s, _ := RGBToHSL(rgb[RedChannel], rgb[GreenChannel], rgb[BlueChannel])
		return s, true
	case LightnessChannel:
		_, _, l := RGBToHSL(rgb[RedChannel], rgb[GreenChannel], rgb[BlueChannel])
		return l, true
	case IntensityChannel:
		return Intensity(rgb), true
	case LumaChannel, LuminanceChannel:
		return Luma(rgb), true
	}
	return 0, false
}
