package imaging

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Color is a resolved colour literal in normalised sRGB.
type Color struct {
	Red, Green, Blue float64
	Alpha            float64
}

// Value returns the colour's component for a stored channel: the three
// colour slots, zero for black and the alpha value for alpha.
func (c Color) Value(ch Channel) float64 {
	switch ch {
	case RedChannel:
		return c.Red
	case GreenChannel:
		return c.Green
	case BlueChannel:
		return c.Blue
	case AlphaChannel:
		return c.Alpha
	case BlackChannel:
		return 0
	}
	v, _ := ChannelValue(c.Pixel(), RGBColorspace, true, ch)
	return v
}

// Pixel returns the colour as an RGB pixel.
func (c Color) Pixel() Pixel {
	return Pixel{c.Red, c.Green, c.Blue, 0, c.Alpha}
}

// ParseColor resolves a colour specification: "#rgb" style hex of 3, 4,
// 6, 8, 12 or 16 digits, an X11/SVG colour name, grayN, none/transparent,
// or a functional form such as rgb(255,0,0), hsl(120,50%,50%),
// cmyk(0,0,0,255), lab(50,20,-30) or device-gray(0.5).
func ParseColor(spec string) (Color, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return Color{}, fmt.Errorf("imaging: empty colour")
	}
	if s[0] == '#' {
		return parseHex(s[1:])
	}
	if s == "none" || s == "transparent" {
		return Color{}, nil
	}
	if open := strings.IndexByte(s, '('); open > 0 {
		if !strings.HasSuffix(s, ")") {
			return Color{}, fmt.Errorf("imaging: unterminated colour %q", spec)
		}
		return parseFunctional(s[:open], strings.Split(s[open+1:len(s)-1], ","))
	}
	if c, ok := colornames.Map[s]; ok {
		return Color{
			Red:   float64(c.R) / 0xff,
			Green: float64(c.G) / 0xff,
			Blue:  float64(c.B) / 0xff,
			Alpha: float64(c.A) / 0xff,
		}, nil
	}
	for _, prefix := range []string{"gray", "grey"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			n, err := strconv.ParseFloat(rest, 64)
			if err != nil || n < 0 || n > 100 {
				break
			}
			v := n / 100
			return Color{v, v, v, 1}, nil
		}
	}
	return Color{}, fmt.Errorf("imaging: unrecognized colour %q", spec)
}

// IsColorFunction reports whether name introduces a functional colour.
func IsColorFunction(name string) bool {
	switch strings.ToLower(name) {
	case "rgb", "rgba", "srgb", "srgba", "hsl", "hsla", "gray", "graya",
		"grey", "greya", "cmyk", "cmyka", "lab", "device-rgb", "device-gray",
		"device-cmyk":
		return true
	}
	return false
}

func parseHex(digits string) (Color, error) {
	for _, r := range digits {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return Color{}, fmt.Errorf("imaging: bad hex colour #%s", digits)
		}
	}
	var width int
	switch len(digits) {
	case 3, 4:
		width = 1
	case 6, 8:
		width = 2
	case 12, 16:
		width = 4
	default:
		return Color{}, fmt.Errorf("imaging: hex colour #%s has %d digits", digits, len(digits))
	}
	scale := math.Pow(16, float64(width)) - 1
	var v [4]float64
	v[3] = scale
	for i := 0; i*width < len(digits); i++ {
		n, _ := strconv.ParseUint(digits[i*width:(i+1)*width], 16, 64)
		v[i] = float64(n)
	}
	return Color{v[0] / scale, v[1] / scale, v[2] / scale, v[3] / scale}, nil
}

func parseFunctional(name string, args []string) (Color, error) {
	device := strings.HasPrefix(name, "device-")
	name = strings.TrimPrefix(name, "device-")

	nums := make([]float64, len(args))
	percent := make([]bool, len(args))
	for i, a := range args {
		a = strings.TrimSpace(a)
		if p, ok := strings.CutSuffix(a, "%"); ok {
			a, percent[i] = p, true
		}
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return Color{}, fmt.Errorf("imaging: bad %s() argument %q", name, args[i])
		}
		nums[i] = f
	}
	sample := func(i int) float64 {
		switch {
		case percent[i]:
			return nums[i] / 100
		case device:
			return nums[i]
		}
		return nums[i] / 255
	}
	fraction := func(i int) float64 {
		if percent[i] {
			return nums[i] / 100
		}
		return nums[i]
	}
	want := func(n ...int) error {
		for _, k := range n {
			if len(nums) == k {
				return nil
			}
		}
		return fmt.Errorf("imaging: %s() takes %v arguments, got %d", name, n, len(nums))
	}
	alpha := func(i int) float64 {
		if len(nums) > i {
			return fraction(i)
		}
		return 1
	}

	switch name {
	case "rgb", "rgba", "srgb", "srgba":
		if err := want(3, 4); err != nil {
			return Color{}, err
		}
		return Color{sample(0), sample(1), sample(2), alpha(3)}, nil
	case "gray", "graya", "grey", "greya":
		if err := want(1, 2); err != nil {
			return Color{}, err
		}
		v := sample(0)
		return Color{v, v, v, alpha(1)}, nil
	case "hsl", "hsla":
		if err := want(3, 4); err != nil {
			return Color{}, err
		}
		h := math.Mod(nums[0], 360) / 360
		if h < 0 {
			h++
		}
		r, g, b := HSLToRGB(h, fraction(1), fraction(2))
		return Color{r, g, b, alpha(3)}, nil
	case "cmyk", "cmyka":
		if err := want(4, 5); err != nil {
			return Color{}, err
		}
		k := sample(3)
		return Color{
			(1 - sample(0)) * (1 - k),
			(1 - sample(1)) * (1 - k),
			(1 - sample(2)) * (1 - k),
			alpha(4),
		}, nil
	case "lab":
		if err := want(3, 4); err != nil {
			return Color{}, err
		}
		r, g, b := labToRGB(nums[0], nums[1], nums[2])
		return Color{r, g, b, alpha(3)}, nil
	}
	return Color{}, fmt.Errorf("imaging: unknown colour function %q", name)
}

// labToRGB converts CIE L*a*b* (D65) to gamma-encoded sRGB, clamping
// out-of-gamut colours.
func labToRGB(l, a, b float64) (float64, float64, float64) {
	c := colorful.Lab(l/100, a/100, b/100).Clamped()
	return c.R, c.G, c.B
}
