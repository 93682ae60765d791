package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"
)

// siPrefixes maps magnitude prefixes to powers of ten.
var siPrefixes = map[byte]int{
	'h': 2,
	'k': 3,
	'K': 3,
	'M': 6,
	'G': 9,
	'T': 12,
	'P': 15,
	'E': 18,
	'Z': 21,
	'Y': 24,
}

// number compiles a numeric literal: decimal with optional fraction and
// exponent, or 0x hexadecimal, followed by an optional magnitude prefix
// (2k, 1.5M, 4Ki) and an optional B or P unit suffix.
func (c *compiler) number() error {
	start := c.lex.Pos()
	s := c.lex.input[start:]
	i := 0

	var v float64
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') && isHexDigit(s[2]) {
		i = 2
		for i < len(s) && isHexDigit(s[i]) {
			i++
		}
		n, err := strconv.ParseUint(s[2:i], 16, 64)
		if err != nil {
			return c.errorAt(start, fmt.Sprintf("bad number %q", s[:i]))
		}
		v = float64(n)
	} else {
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i < len(s) && s[i] == '.' {
			i++
			for i < len(s) && isDigit(s[i]) {
				i++
			}
		}
		if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
			j := i + 1
			if j < len(s) && (s[j] == '+' || s[j] == '-') {
				j++
			}
			if j < len(s) && isDigit(s[j]) {
				for j < len(s) && isDigit(s[j]) {
					j++
				}
				i = j
			}
		}
		f, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return c.errorAt(start, fmt.Sprintf("bad number %q", s[:i]))
		}
		v = f
	}

	if i < len(s) {
		if e, ok := siPrefixes[s[i]]; ok {
			if i+1 < len(s) && s[i+1] == 'i' {
				v *= math.Pow(2, float64(e)*10/3)
				i += 2
			} else {
				v *= math.Pow(10, float64(e))
				i++
			}
		}
	}
	if i < len(s) && (s[i] == 'B' || s[i] == 'P') {
		i++
	}
	c.lex.Advance(i)
	c.emitNumber(v)
	return nil
}

// property compiles %[name], an image property whose value must be
// numeric.
func (c *compiler) property() error {
	start := c.lex.Pos()
	c.lex.Advance(2)
	rest := c.lex.input[c.lex.Pos():]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return c.errorAt(start, "unterminated property reference")
	}
	name := rest[:end]
	c.lex.Advance(end + 1)
	if c.opts.Properties == nil {
		return c.errorAt(start, fmt.Sprintf("unknown property %q", name))
	}
	text, ok := c.opts.Properties(name)
	if !ok {
		return c.errorAt(start, fmt.Sprintf("unknown property %q", name))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return c.errorAt(start, fmt.Sprintf("property %q is not a number: %q", name, text))
	}
	c.emitNumber(v)
	return nil
}

// hexColor compiles #rgb style colour literals.
func (c *compiler) hexColor() error {
	start := c.lex.Pos()
	n := 1
	for isHexDigit(c.lex.At(n)) {
		n++
	}
	spec := c.lex.Slice(start, start+n)
	c.lex.Advance(n)
	color, err := c.opts.Colors(spec)
	if err != nil {
		return c.errorAt(start, fmt.Sprintf("bad colour %q", spec))
	}
	return c.color(color)
}

// colorName compiles a named colour or a functional colour such as
// rgb(255,0,0). Names that are not colours are undefined variables.
func (c *compiler) colorName(name string, start int) error {
	c.lex.Advance(len(name))
	spec := name
	functional := false
	if c.lex.At(0) == '(' && imaging.IsColorFunction(name) {
		end, ok := c.matchingParen()
		if !ok {
			return c.errorAt(start, fmt.Sprintf("unterminated colour %q", name))
		}
		spec = c.lex.Slice(start, end+1)
		c.lex.Seek(end + 1)
		functional = true
	}
	color, err := c.opts.Colors(spec)
	if err != nil {
		if functional {
			return c.errorAt(start, fmt.Sprintf("bad colour %q", spec))
		}
		return c.errorAt(start, fmt.Sprintf("undefined variable %q", name))
	}
	return c.color(color)
}

// matchingParen returns the offset of the ')' that closes the '(' at the
// cursor.
func (c *compiler) matchingParen() (int, bool) {
	depth := 0
	for i := c.lex.Pos(); i < len(c.lex.input); i++ {
		switch c.lex.input[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// color emits a colour literal. A channel qualifier selects one component
// at compile time.
func (c *compiler) color(color imaging.Color) error {
	ch, err := c.channelQualifier()
	if err != nil {
		return err
	}
	if ch != imaging.UndefinedChannel {
		c.emitNumber(color.Value(ch))
		return nil
	}
	e := bytecode.NewElement(bytecode.OpColor)
	e.Value = color.Red
	e.Value1 = color.Green
	e.Value2 = color.Blue
	c.emit(e)
	return nil
}
