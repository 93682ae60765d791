package bytecode

import (
	"fmt"
	"math"

	"github.com/chazu/pixfx/pkg/imaging"
)

// Execute evaluates the program for one channel of the pixel at (x, y).
//
// The element list is scanned once from the start. Each element pops its
// operands into registers in push order (the first pushed operand is
// register 0), computes, and pushes its result if it has one. Controls
// move the scan position. Exactly one value must remain at the end.
func (r *Runtime) Execute(channel imaging.Channel, x, y int) (float64, error) {
	elements := r.program.Elements
	stack := r.stack[:0]
	steps := 0
	var regs [5]float64

	for pc := 0; pc < len(elements); pc++ {
		e := &elements[pc]

		n := e.ArgCount
		if n > len(stack) {
			return 0, &RuntimeError{Index: pc, Op: e.Op, Err: ErrStackUnderflow}
		}
		base := len(stack) - n
		copy(regs[:n], stack[base:])
		stack = stack[:base]

		var result float64
		switch e.Kind {
		case KindOperator:
			v, err := operate(e.Op, regs[0], regs[1])
			if err != nil {
				return 0, &RuntimeError{Index: pc, Op: e.Op, Err: err}
			}
			result = v

		case KindNumber:
			result = e.Value

		case KindColor:
			result = colorValue(e, channel)

		case KindConstant:
			result = ConstantValue(e.Op)

		case KindFunction:
			v, err := r.call(e, channel, x, y, &regs)
			if err != nil {
				return 0, &RuntimeError{Index: pc, Op: e.Op, Err: err}
			}
			result = v

		case KindAttribute:
			if r.source == nil {
				return 0, &RuntimeError{Index: pc, Op: e.Op, Err: ErrNoSuchImage}
			}
			result = r.attribute(e.Op, r.source.Current(), e.Channel, channel)

		case KindSymbol:
			v, err := r.symbol(e, channel, x, y)
			if err != nil {
				return 0, &RuntimeError{Index: pc, Op: e.Op, Err: err}
			}
			result = v

		case KindControl:
			jump := false
			switch e.Op {
			case CtlGoto:
				jump = true
			case CtlIfZeroGoto:
				jump = math.Abs(regs[0]) < Epsilon
			case CtlIfNotZeroGoto:
				jump = math.Abs(regs[0]) >= Epsilon
			case CtlCopyFrom:
				result = r.values[e.Slot]
			case CtlCopyTo:
				r.values[e.Slot] = regs[0]
				result = regs[0]
			case CtlZeroStack:
				if e.Depth < len(stack) {
					stack = stack[:e.Depth]
				}
			}
			if jump {
				if e.Target < 0 || e.Target > len(elements) {
					return 0, &RuntimeError{Index: pc, Op: e.Op, Err: ErrBadAddress}
				}
				steps++
				if steps > r.maxSteps {
					return 0, &RuntimeError{Index: pc, Op: e.Op, Err: ErrStepLimit}
				}
				pc = e.Target - 1
			}

		default:
			return 0, &RuntimeError{Index: pc, Op: e.Op, Err: ErrUnknownOpcode}
		}

		if e.Push {
			if len(stack) >= r.program.MaxStack {
				return 0, &RuntimeError{Index: pc, Op: e.Op, Err: ErrStackOverflow}
			}
			stack = append(stack, result)
		}
	}

	if len(stack) != 1 {
		last := len(elements) - 1
		return 0, &RuntimeError{Index: last, Op: elements[last].Op, Err: fmt.Errorf("%w: %d values", ErrUnbalancedStack, len(stack))}
	}
	return stack[0], nil
}

func truthy(v float64) bool { return math.Abs(v) >= Epsilon }

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// roundIndex converts to an integer the way bitwise operands are rounded.
func roundIndex(v float64) int64 { return int64(v + 0.5) }

func operate(op Opcode, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSubtract:
		return a - b, nil
	case OpMultiply:
		return a * b, nil
	case OpDivide:
		if b == 0 {
			return a, nil
		}
		return a / b, nil
	case OpModulus:
		m := math.Abs(math.Floor(b + 0.5))
		if m == 0 {
			return a, nil
		}
		return math.Mod(a, m), nil
	case OpPower:
		return math.Pow(a, b), nil
	case OpPlus:
		return a, nil
	case OpNegate:
		return -a, nil
	case OpLeftShift, OpRightShift:
		n := roundIndex(b)
		if n < 0 || n >= 64 {
			return 0, ErrShiftOverflow
		}
		v := uint64(roundIndex(a))
		if op == OpLeftShift {
			return float64(v << n), nil
		}
		return float64(v >> n), nil
	case OpLess:
		return boolean(a < b), nil
	case OpLessEqual:
		return boolean(a <= b), nil
	case OpGreater:
		return boolean(a > b), nil
	case OpGreaterEqual:
		return boolean(a >= b), nil
	case OpEqual:
		return boolean(math.Abs(a-b) < Epsilon), nil
	case OpNotEqual:
		return boolean(math.Abs(a-b) >= Epsilon), nil
	case OpBitAnd:
		return float64(uint64(roundIndex(a)) & uint64(roundIndex(b))), nil
	case OpBitOr:
		return float64(uint64(roundIndex(a)) | uint64(roundIndex(b))), nil
	case OpLogicalAnd:
		return boolean(truthy(a) && truthy(b)), nil
	case OpLogicalOr:
		return boolean(truthy(a) || truthy(b)), nil
	case OpLogicalNot:
		return boolean(!truthy(a)), nil
	case OpBitNot:
		return float64(^uint64(roundIndex(a))), nil
	}
	return 0, ErrUnknownOpcode
}

func colorValue(e *Element, channel imaging.Channel) float64 {
	if e.Channel != imaging.UndefinedChannel {
		channel = e.Channel
	}
	c := imaging.Color{Red: e.Value, Green: e.Value1, Blue: e.Value2, Alpha: 1}
	return c.Value(channel)
}

// pixelAt returns the authentic pixel of image index at (x, y), reusing
// the last lookup when it matches.
func (r *Runtime) pixelAt(index, x, y int) imaging.Pixel {
	if r.cached && r.cacheIndex == index && r.cacheX == x && r.cacheY == y {
		return r.cachedPixel
	}
	r.cachedPixel = r.source.Pixel(index, float64(x), float64(y))
	r.cached, r.cacheIndex, r.cacheX, r.cacheY = true, index, x, y
	return r.cachedPixel
}

func (r *Runtime) wrap(index int) int {
	n := r.source.Len()
	index %= n
	if index < 0 {
		index += n
	}
	return index
}

// channelOf reads channel c (or the evaluated channel when c is
// undefined) from a pixel of image index.
func (r *Runtime) channelOf(p imaging.Pixel, index int, c, evaluated imaging.Channel) (float64, error) {
	if c == imaging.UndefinedChannel {
		c = evaluated
	}
	img := r.source.Image(index)
	v, ok := imaging.ChannelValue(p, img.Colorspace(), img.HasAlpha(), c)
	if !ok {
		return 0, ErrColorSeparatedImageRequired
	}
	return v, nil
}

// imageAccess evaluates u, v, s and u[n]: an attribute of the image when
// the element carries an attribute qualifier, otherwise its pixel at the
// current coordinate.
func (r *Runtime) imageAccess(e *Element, index int, channel imaging.Channel, x, y int) (float64, error) {
	if r.source == nil || r.source.Len() == 0 {
		return 0, ErrNoSuchImage
	}
	index = r.wrap(index)
	if e.Attribute != OpNull {
		return r.attribute(e.Attribute, index, e.Channel, channel), nil
	}
	return r.channelOf(r.pixelAt(index, x, y), index, e.Channel, channel)
}

func (r *Runtime) symbol(e *Element, channel imaging.Channel, x, y int) (float64, error) {
	switch e.Op {
	case SymI:
		return float64(x), nil
	case SymJ:
		return float64(y), nil
	case SymU:
		return r.imageAccess(e, 0, channel, x, y)
	case SymV:
		return r.imageAccess(e, 1, channel, x, y)
	case SymS:
		if r.source == nil {
			return 0, ErrNoSuchImage
		}
		return r.imageAccess(e, r.source.Current(), channel, x, y)
	}

	if r.source == nil || r.source.Len() == 0 {
		return 0, ErrNoSuchImage
	}
	var c imaging.Channel
	switch e.Op {
	case SymR, SymC:
		c = imaging.RedChannel
	case SymG, SymM:
		c = imaging.GreenChannel
	case SymB, SymY:
		c = imaging.BlueChannel
	case SymK:
		c = imaging.BlackChannel
	case SymA, SymO:
		c = imaging.AlphaChannel
	case SymHue:
		c = imaging.HueChannel
	case SymSaturation:
		c = imaging.SaturationChannel
	case SymLightness:
		c = imaging.LightnessChannel
	case SymIntensity:
		c = imaging.IntensityChannel
	case SymLuma:
		c = imaging.LumaChannel
	case SymLuminance:
		c = imaging.LuminanceChannel
	default:
		return 0, ErrUnknownOpcode
	}
	index := r.source.Current()
	return r.channelOf(r.pixelAt(index, x, y), index, c, channel)
}

// attribute evaluates an image attribute of image index. Statistics use
// the qualifier channel, or the evaluated channel when there is none.
func (r *Runtime) attribute(op Opcode, index int, qualifier, evaluated imaging.Channel) float64 {
	img := r.source.Image(index)
	meta := img.Metadata()
	if op.IsStatistic() {
		c := qualifier
		if c == imaging.UndefinedChannel {
			c = evaluated
		}
		s := r.source.Statistics(index).Channel(c)
		switch op {
		case AttrKurtosis:
			return s.Kurtosis
		case AttrMaxima:
			return s.Maxima
		case AttrMean:
			return s.Mean
		case AttrMedian:
			return s.Median
		case AttrMinima:
			return s.Minima
		case AttrSkewness:
			return s.Skewness
		case AttrStandardDeviation:
			return s.StandardDeviation
		}
	}
	switch op {
	case AttrDepth, AttrZ:
		return float64(meta.Depth)
	case AttrExtent:
		return float64(meta.Extent)
	case AttrPageX:
		return float64(meta.Page.X)
	case AttrPageY:
		return float64(meta.Page.Y)
	case AttrPageWidth:
		return float64(meta.Page.Width)
	case AttrPageHeight:
		return float64(meta.Page.Height)
	case AttrPrintsizeX:
		return float64(img.Columns()) * PerceptibleReciprocal(meta.ResolutionX)
	case AttrPrintsizeY:
		return float64(img.Rows()) * PerceptibleReciprocal(meta.ResolutionY)
	case AttrQuality:
		return float64(meta.Quality)
	case AttrResolutionX:
		return meta.ResolutionX
	case AttrResolutionY:
		return meta.ResolutionY
	case AttrH:
		return float64(img.Rows())
	case AttrW:
		return float64(img.Columns())
	case AttrN:
		return float64(r.source.Len())
	case AttrT:
		return float64(r.wrap(index))
	}
	return 0
}
