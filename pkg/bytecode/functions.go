package bytecode

import (
	"fmt"
	"math"
	"time"

	"github.com/chazu/pixfx/pkg/imaging"
)

// PerceptibleReciprocal returns 1/x, saturating at 1/Epsilon in magnitude
// for x near zero.
func PerceptibleReciprocal(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	if sign*x >= Epsilon {
		return 1 / x
	}
	return sign / Epsilon
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// call evaluates a function element. Operands are in regs in push order.
func (r *Runtime) call(e *Element, channel imaging.Channel, x, y int, regs *[5]float64) (float64, error) {
	a, b := regs[0], regs[1]
	switch e.Op {
	case FnAbs:
		return math.Abs(a), nil
	case FnAcos:
		return math.Acos(a), nil
	case FnAcosh:
		return math.Acosh(a), nil
	case FnAiry:
		if a == 0 {
			return 1, nil
		}
		g := 2 * math.J1(math.Pi*a) / (math.Pi * a)
		return g * g, nil
	case FnAlt:
		if int64(a)&1 != 0 {
			return -1, nil
		}
		return 1, nil
	case FnAsin:
		return math.Asin(a), nil
	case FnAsinh:
		return math.Asinh(a), nil
	case FnAtan:
		return math.Atan(a), nil
	case FnAtan2:
		return math.Atan2(a, b), nil
	case FnAtanh:
		return math.Atanh(a), nil
	case FnCeil:
		return math.Ceil(a), nil
	case FnChannel:
		c := channel
		if e.Channel != imaging.UndefinedChannel {
			c = e.Channel
		}
		if !c.Stored() {
			return 0, nil
		}
		return regs[c], nil
	case FnClamp:
		switch {
		case a < 0:
			return 0, nil
		case a > 1:
			return 1, nil
		}
		return a, nil
	case FnCos:
		return math.Cos(a), nil
	case FnCosh:
		return math.Cosh(a), nil
	case FnDebug:
		if r.debug != nil {
			fmt.Fprintf(r.debug, "fx[%d,%d].%s: %s=%.*g\n", x, y, channel, e.Text, 15, a)
		}
		return a, nil
	case FnDrc:
		return a / (b*(a-1) + 1), nil
	case FnErf:
		return math.Erf(a), nil
	case FnExp:
		return math.Exp(a), nil
	case FnFloor, FnInt:
		return math.Floor(a), nil
	case FnGauss:
		return math.Exp(-a*a/2) / math.Sqrt(2*math.Pi), nil
	case FnGcd:
		return float64(gcd(roundIndex(a), roundIndex(b))), nil
	case FnHypot:
		return math.Hypot(a, b), nil
	case FnIsnan:
		return boolean(math.IsNaN(a)), nil
	case FnJ0:
		return math.J0(a), nil
	case FnJ1:
		return math.J1(a), nil
	case FnJinc:
		if a == 0 {
			return 1, nil
		}
		return 2 * math.J1(math.Pi*a) / (math.Pi * a), nil
	case FnLn:
		return math.Log(a), nil
	case FnLog:
		return math.Log10(a), nil
	case FnLogtwo:
		return math.Log2(a), nil
	case FnMagicktime:
		return float64(time.Now().UnixNano()) / 1e9, nil
	case FnMax:
		return math.Max(a, b), nil
	case FnMin:
		return math.Min(a, b), nil
	case FnMod:
		return a - math.Floor(a*PerceptibleReciprocal(b))*b, nil
	case FnNot:
		return boolean(!truthy(a)), nil
	case FnPow:
		return math.Pow(a, b), nil
	case FnRand:
		return r.random.Float64(), nil
	case FnRound:
		return math.Floor(a + 0.5), nil
	case FnSign:
		if a < 0 {
			return -1, nil
		}
		return 1, nil
	case FnSin:
		return math.Sin(a), nil
	case FnSinc:
		if a == 0 {
			return 1, nil
		}
		return math.Sin(math.Pi*a) / (math.Pi * a), nil
	case FnSinh:
		return math.Sinh(a), nil
	case FnSqrt:
		return math.Sqrt(a), nil
	case FnSquish:
		return 1 / (1 + math.Exp(-a)), nil
	case FnTan:
		return math.Tan(a), nil
	case FnTanh:
		return math.Tanh(a), nil
	case FnTrunc:
		return math.Trunc(a), nil

	case FnU:
		return r.imageAccess(e, int(math.Floor(a+0.5)), channel, x, y)
	case FnUP:
		return r.pixelFunction(e, int(math.Floor(a+0.5)), b, regs[2], channel, x, y)
	case FnP:
		if r.source == nil {
			return 0, ErrNoSuchImage
		}
		return r.pixelFunction(e, r.source.Current(), a, b, channel, x, y)
	}
	return 0, ErrUnknownOpcode
}

// pixelFunction reads image index at a relative or absolute, possibly
// fractional, coordinate.
func (r *Runtime) pixelFunction(e *Element, index int, px, py float64, channel imaging.Channel, x, y int) (float64, error) {
	if r.source == nil || r.source.Len() == 0 {
		return 0, ErrNoSuchImage
	}
	index = r.wrap(index)
	if e.Relative {
		px += float64(x)
		py += float64(y)
	}
	var p imaging.Pixel
	if px == math.Trunc(px) && py == math.Trunc(py) {
		p = r.pixelAt(index, int(px), int(py))
	} else {
		p = r.source.Pixel(index, px, py)
	}
	return r.channelOf(p, index, e.Channel, channel)
}
