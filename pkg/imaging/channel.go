// Package imaging holds the pixel-side collaborators of the fx engine:
// in-memory float images, image lists, interpolation, channel statistics,
// colour parsing and HSL conversion.
//
// Samples are normalised to [0,1]. A pixel always carries five slots, laid
// out the way the evaluator addresses them: red (cyan, gray), green
// (magenta), blue (yellow), black and alpha.
package imaging

import "fmt"

// Channel selects one component of a pixel, or one derived quantity that
// the expression language can name as a qualifier.
type Channel int

const (
	// UndefinedChannel means "the channel currently being evaluated".
	UndefinedChannel Channel = -1

	RedChannel   Channel = 0
	GreenChannel Channel = 1
	BlueChannel  Channel = 2
	BlackChannel Channel = 3
	AlphaChannel Channel = 4

	// CompositeChannel is the "all" qualifier: an average over the colour
	// channels for pixels, the composite entry for statistics.
	CompositeChannel Channel = 5

	HueChannel        Channel = 6
	SaturationChannel Channel = 7
	LightnessChannel  Channel = 8
	IntensityChannel  Channel = 9
	LumaChannel       Channel = 10
	LuminanceChannel  Channel = 11

	CyanChannel    = RedChannel
	MagentaChannel = GreenChannel
	YellowChannel  = BlueChannel
	GrayChannel    = RedChannel
)

// PixelChannels is the number of stored slots per pixel.
const PixelChannels = 5

var channelNames = map[Channel]string{
	UndefinedChannel:  "this",
	RedChannel:        "red",
	GreenChannel:      "green",
	BlueChannel:       "blue",
	BlackChannel:      "black",
	AlphaChannel:      "alpha",
	CompositeChannel:  "all",
	HueChannel:        "hue",
	SaturationChannel: "saturation",
	LightnessChannel:  "lightness",
	IntensityChannel:  "intensity",
	LumaChannel:       "luma",
	LuminanceChannel:  "luminance",
}

// String returns the canonical qualifier name of the channel.
func (c Channel) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Stored reports whether the channel is one of the five stored slots.
func (c Channel) Stored() bool {
	return c >= RedChannel && c <= AlphaChannel
}

// Derived reports whether the channel is computed from the colour slots
// (hue, saturation, lightness, intensity, luma, luminance).
func (c Channel) Derived() bool {
	return c >= HueChannel && c <= LuminanceChannel
}

// channelQualifiers maps every accepted qualifier spelling to its channel.
var channelQualifiers = map[string]Channel{
	"r": RedChannel, "red": RedChannel,
	"c": CyanChannel, "cyan": CyanChannel,
	"gray": GrayChannel, "grey": GrayChannel,
	"g": GreenChannel, "green": GreenChannel,
	"m": MagentaChannel, "magenta": MagentaChannel,
	"b": BlueChannel, "blue": BlueChannel,
	"y": YellowChannel, "yellow": YellowChannel,
	"k": BlackChannel, "black": BlackChannel,
	"a": AlphaChannel, "alpha": AlphaChannel,
	"o": AlphaChannel, "opacity": AlphaChannel,
	"all":        CompositeChannel,
	"this":       UndefinedChannel,
	"hue":        HueChannel,
	"saturation": SaturationChannel,
	"lightness":  LightnessChannel,
	"intensity":  IntensityChannel,
	"luma":       LumaChannel,
	"luminance":  LuminanceChannel,
}

// LookupChannel resolves a channel qualifier name.
func LookupChannel(name string) (Channel, bool) {
	c, ok := channelQualifiers[name]
	return c, ok
}

// ChannelQualifierNames returns every accepted qualifier spelling.
func ChannelQualifierNames() []string {
	names := make([]string, 0, len(channelQualifiers))
	for name := range channelQualifiers {
		names = append(names, name)
	}
	return names
}

// Colorspace describes how the stored slots of an image are interpreted.
type Colorspace int

const (
	RGBColorspace Colorspace = iota
	GrayColorspace
	CMYKColorspace
)

func (cs Colorspace) String() string {
	switch cs {
	case RGBColorspace:
		return "RGB"
	case GrayColorspace:
		return "Gray"
	case CMYKColorspace:
		return "CMYK"
	default:
		return fmt.Sprintf("Colorspace(%d)", int(cs))
	}
}

// Pixel is one normalised sample vector, indexed by stored Channel.
type Pixel [PixelChannels]float64

// Opaque returns a pixel with the given colour slots and full alpha.
func Opaque(r, g, b float64) Pixel {
	return Pixel{r, g, b, 0, 1}
}
