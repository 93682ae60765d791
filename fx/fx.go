// Package fx applies compiled expressions to images.
//
// An expression is compiled once. Apply then evaluates it for every pixel
// and channel of the current image on a bounded set of goroutines, each
// owning one bytecode.Runtime, and writes the results into a new image.
package fx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/pixfx/compiler"
	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pixfx.fx")

// Options configure an evaluation.
type Options struct {
	// Threads bounds the number of workers; 0 means GOMAXPROCS.
	Threads int

	// Channels lists the channels to evaluate. Empty means the stored
	// channels of the current image.
	Channels []imaging.Channel

	// MaxSteps bounds the jumps per pixel evaluation; 0 means
	// bytecode.DefaultMaxSteps.
	MaxSteps int

	// Seed seeds rand(). Each worker gets its own stream unless
	// SharedRandom is set, in which case all workers draw from one
	// locked generator.
	Seed         uint64
	SharedRandom bool

	// Monitor is called after every completed row with the number of rows
	// done. Returning false cancels the run. Calls are serialized.
	Monitor func(done, total int) bool

	// DebugWriter receives debug() output. Defaults to stderr.
	DebugWriter io.Writer

	// Colors overrides colour name resolution.
	Colors func(spec string) (imaging.Color, error)
}

func (o Options) compilerOptions(list *imaging.List) compiler.Options {
	opts := compiler.Options{Colors: o.Colors}
	if list != nil {
		img := list.Image(list.Current())
		opts.Properties = img.Property
	}
	return opts
}

func (o Options) runtimeOptions(stream uint64, shared bytecode.Random) []bytecode.RuntimeOption {
	opts := []bytecode.RuntimeOption{bytecode.WithMaxSteps(o.MaxSteps)}
	if shared != nil {
		opts = append(opts, bytecode.WithRandom(shared))
	} else {
		opts = append(opts, bytecode.WithSeed(o.Seed, stream))
	}
	if o.DebugWriter != nil {
		opts = append(opts, bytecode.WithDebugWriter(o.DebugWriter))
	}
	return opts
}

// Compile compiles an expression against the current image of list, which
// supplies %[property] values. list may be nil.
func Compile(list *imaging.List, expression string, opts Options) (*bytecode.Program, error) {
	return compiler.Compile(expression, opts.compilerOptions(list))
}

// Evaluate compiles expression and evaluates it once on the gray channel
// at (0,0). With a nil list the expression sees a single black pixel.
func Evaluate(list *imaging.List, expression string, opts Options) (float64, error) {
	if list == nil {
		var err error
		list, err = imaging.NewList(imaging.NewMemory(1, 1, imaging.RGBColorspace))
		if err != nil {
			return 0, err
		}
	}
	p, err := Compile(list, expression, opts)
	if err != nil {
		return 0, err
	}
	return EvaluateProgram(list, p, opts)
}

// EvaluateProgram is Evaluate for an already compiled program.
func EvaluateProgram(list *imaging.List, p *bytecode.Program, opts Options) (float64, error) {
	rt := bytecode.NewRuntime(p, list, opts.runtimeOptions(0, nil)...)
	v, err := rt.Execute(imaging.GrayChannel, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("fx: evaluate: %w", err)
	}
	return v, nil
}

// LoadExpression returns the expression text. An argument starting with
// '@' names a file to read it from.
func LoadExpression(arg string) (string, error) {
	name, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("fx: read expression: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

var channelLetters = map[rune]imaging.Channel{
	'r': imaging.RedChannel,
	'c': imaging.CyanChannel,
	'g': imaging.GreenChannel,
	'm': imaging.MagentaChannel,
	'b': imaging.BlueChannel,
	'y': imaging.YellowChannel,
	'k': imaging.BlackChannel,
	'a': imaging.AlphaChannel,
	'o': imaging.AlphaChannel,
}

// ParseChannels parses a channel list: either letters ("rgba", "cmyk") or
// comma separated names ("red,alpha"). Only stored channels are allowed.
func ParseChannels(s string) ([]imaging.Channel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	var out []imaging.Channel
	seen := make(map[imaging.Channel]bool)
	add := func(c imaging.Channel) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if !strings.Contains(s, ",") {
		letters := true
		for _, r := range s {
			c, ok := channelLetters[r]
			if !ok {
				letters = false
				break
			}
			add(c)
		}
		if letters {
			return out, nil
		}
		out, seen = nil, make(map[imaging.Channel]bool)
	}
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		c, ok := imaging.LookupChannel(name)
		if !ok || !c.Stored() {
			return nil, fmt.Errorf("fx: unknown channel %q", name)
		}
		add(c)
	}
	return out, nil
}

// defaultChannels returns the stored channels of img.
func defaultChannels(img imaging.Image) []imaging.Channel {
	var out []imaging.Channel
	switch img.Colorspace() {
	case imaging.GrayColorspace:
		out = []imaging.Channel{imaging.GrayChannel}
	case imaging.CMYKColorspace:
		out = []imaging.Channel{imaging.CyanChannel, imaging.MagentaChannel, imaging.YellowChannel, imaging.BlackChannel}
	default:
		out = []imaging.Channel{imaging.RedChannel, imaging.GreenChannel, imaging.BlueChannel}
	}
	if img.HasAlpha() {
		out = append(out, imaging.AlphaChannel)
	}
	return out
}
