package bytecode

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/pixfx/pkg/imaging"
)

// Helpers to build programs by hand.
func num(v float64) Element {
	e := NewElement(OpNumber)
	e.Value = v
	return e
}

func op(o Opcode) Element { return NewElement(o) }

func jump(o Opcode, target int) Element {
	e := NewElement(o)
	e.Target = target
	return e
}

func slot(o Opcode, s int) Element {
	e := NewElement(o)
	e.Slot = s
	return e
}

func programOf(elems ...Element) *Program {
	p := NewProgram("")
	for _, e := range elems {
		p.Emit(e)
	}
	p.MaxStack = 8
	return p
}

func run(t *testing.T, p *Program, src PixelSource) float64 {
	t.Helper()
	v, err := NewRuntime(p, src).Execute(imaging.RedChannel, 0, 0)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	return v
}

func testList(t *testing.T) *imaging.List {
	t.Helper()
	a := imaging.NewMemory(2, 2, imaging.RGBColorspace)
	a.Set(0, 0, imaging.Opaque(0.1, 0.2, 0.3))
	a.Set(1, 0, imaging.Opaque(0.5, 0.6, 0.7))
	a.Set(0, 1, imaging.Opaque(0.9, 0.8, 0.7))
	a.Set(1, 1, imaging.Opaque(0.3, 0.3, 0.3))
	b := imaging.NewMemory(3, 1, imaging.GrayColorspace)
	b.Set(0, 0, imaging.Pixel{0.25})
	l, err := imaging.NewList(a, b)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestOperators(t *testing.T) {
	tests := []struct {
		a, b float64
		op   Opcode
		want float64
	}{
		{5, 3, OpSubtract, 2},
		{3, 5, OpLess, 1},
		{5, 3, OpLess, 0},
		{7, 2, OpDivide, 3.5},
		{1, 0, OpDivide, 1},
		{7, 3, OpModulus, 1},
		{7, 0.2, OpModulus, 7},
		{-7, 3, OpModulus, -1},
		{2, 3, OpPower, 8},
		{1, 3, OpLeftShift, 8},
		{8, 1, OpRightShift, 4},
		{5, 3, OpBitAnd, 1},
		{5, 3, OpBitOr, 7},
		{4.6, 1, OpBitAnd, 1},
		{1, 1 + 1e-13, OpEqual, 1},
		{1, 1 + 1e-13, OpNotEqual, 0},
		{1, 0, OpLogicalAnd, 0},
		{0, 1e-13, OpLogicalOr, 0},
		{0.5, -2, OpLogicalAnd, 1},
		{2, 2, OpGreaterEqual, 1},
		{2, 2, OpGreater, 0},
		{2, 3, OpLessEqual, 1},
	}
	for _, tt := range tests {
		got := run(t, programOf(num(tt.a), num(tt.b), op(tt.op)), nil)
		if got != tt.want {
			t.Errorf("%v %s %v = %v, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}
}

func TestUnaryOperators(t *testing.T) {
	tests := []struct {
		a    float64
		op   Opcode
		want float64
	}{
		{3, OpNegate, -3},
		{3, OpPlus, 3},
		{0, OpLogicalNot, 1},
		{2, OpLogicalNot, 0},
		{0, OpBitNot, math.MaxUint64},
	}
	for _, tt := range tests {
		if got := run(t, programOf(num(tt.a), op(tt.op)), nil); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.op, tt.a, got, tt.want)
		}
	}
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		args []float64
		op   Opcode
		want float64
	}{
		{[]float64{-2}, FnAbs, 2},
		{[]float64{3}, FnAlt, -1},
		{[]float64{4}, FnAlt, 1},
		{[]float64{0}, FnSinc, 1},
		{[]float64{0}, FnJinc, 1},
		{[]float64{0}, FnAiry, 1},
		{[]float64{1.5}, FnClamp, 1},
		{[]float64{-0.5}, FnClamp, 0},
		{[]float64{12, 18}, FnGcd, 6},
		{[]float64{3, 4}, FnHypot, 5},
		{[]float64{-2.5}, FnInt, -3},
		{[]float64{-2.5}, FnTrunc, -2},
		{[]float64{2.5}, FnRound, 3},
		{[]float64{-1}, FnSign, -1},
		{[]float64{0}, FnSign, 1},
		{[]float64{0}, FnSquish, 0.5},
		{[]float64{8}, FnLogtwo, 3},
		{[]float64{100}, FnLog, 2},
		{[]float64{7, 3}, FnMod, 1},
		{[]float64{-1, 3}, FnMod, 2},
		{[]float64{0}, FnNot, 1},
		{[]float64{0.5, 0}, FnDrc, 0.5},
		{[]float64{2, 10}, FnPow, 1024},
		{[]float64{2, 10}, FnMin, 2},
		{[]float64{1, 2, 3, 4, 5}, FnChannel, 1},
	}
	for _, tt := range tests {
		var elems []Element
		for _, a := range tt.args {
			elems = append(elems, num(a))
		}
		elems = append(elems, op(tt.op))
		got := run(t, programOf(elems...), nil)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s%v = %v, want %v", tt.op, tt.args, got, tt.want)
		}
	}
}

func TestChannelFunctionSelectsByChannel(t *testing.T) {
	p := programOf(num(1), num(2), num(3), num(4), num(5), op(FnChannel))
	rt := NewRuntime(p, nil)
	for c, want := range []float64{1, 2, 3, 4, 5} {
		got, err := rt.Execute(imaging.Channel(c), 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("channel(...) on %s = %v, want %v", imaging.Channel(c), got, want)
		}
	}
}

func TestTernaryLayout(t *testing.T) {
	// cond; IfZeroGoto else; 10; Goto end; else: 20; end:
	for cond, want := range map[float64]float64{1: 10, 0: 20, 1e-13: 20} {
		p := programOf(num(cond), jump(CtlIfZeroGoto, 4), num(10), jump(CtlGoto, 5), num(20))
		if got := run(t, p, nil); got != want {
			t.Errorf("%v ? 10 : 20 = %v, want %v", cond, got, want)
		}
	}
}

func TestStepLimit(t *testing.T) {
	p := programOf(num(1), jump(CtlGoto, 1))
	_, err := NewRuntime(p, nil, WithMaxSteps(100)).Execute(imaging.RedChannel, 0, 0)
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("err = %v, want ErrStepLimit", err)
	}
	var rerr *RuntimeError
	if !errors.As(err, &rerr) || rerr.Index != 1 {
		t.Errorf("RuntimeError = %+v, want index 1", rerr)
	}
}

func TestStackErrors(t *testing.T) {
	if _, err := NewRuntime(programOf(op(OpAdd)), nil).Execute(imaging.RedChannel, 0, 0); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("err = %v, want ErrStackUnderflow", err)
	}
	if _, err := NewRuntime(programOf(num(1), num(2)), nil).Execute(imaging.RedChannel, 0, 0); !errors.Is(err, ErrUnbalancedStack) {
		t.Errorf("err = %v, want ErrUnbalancedStack", err)
	}
	p := programOf(num(1), num(2), num(3))
	p.MaxStack = 2
	if _, err := NewRuntime(p, nil).Execute(imaging.RedChannel, 0, 0); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("err = %v, want ErrStackOverflow", err)
	}
	if _, err := NewRuntime(programOf(num(1), num(64), op(OpLeftShift)), nil).Execute(imaging.RedChannel, 0, 0); !errors.Is(err, ErrShiftOverflow) {
		t.Errorf("err = %v, want ErrShiftOverflow", err)
	}
}

func TestZeroStack(t *testing.T) {
	zs := op(CtlZeroStack)
	zs.Depth = 0
	p := programOf(num(1), num(2), zs, num(3))
	if got := run(t, p, nil); got != 3 {
		t.Errorf("got %v, want 3", got)
	}
}

func TestVariablesPersistAcrossEvaluations(t *testing.T) {
	// n = n + 1
	p := programOf(slot(CtlCopyFrom, 0), num(1), op(OpAdd), slot(CtlCopyTo, 0))
	p.Variables = []Variable{{Name: "n"}}
	rt := NewRuntime(p, nil)
	for i := 1; i <= 3; i++ {
		got, err := rt.Execute(imaging.RedChannel, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got != float64(i) {
			t.Errorf("evaluation %d = %v", i, got)
		}
	}
	if v, ok := rt.Variable("n"); !ok || v != 3 {
		t.Errorf("n = %v, %v", v, ok)
	}
	rt.Reset()
	if v, _ := rt.Variable("n"); v != 0 {
		t.Errorf("after Reset n = %v", v)
	}
}

func TestPixelSymbols(t *testing.T) {
	l := testList(t)
	green := op(SymU)
	green.Channel = imaging.GreenChannel
	rt := NewRuntime(programOf(green), l)
	if got, _ := rt.Execute(imaging.RedChannel, 1, 0); got != 0.6 {
		t.Errorf("u.g at (1,0) = %v, want 0.6", got)
	}

	rt = NewRuntime(programOf(op(SymR)), l)
	if got, _ := rt.Execute(imaging.BlueChannel, 0, 1); got != 0.9 {
		t.Errorf("r at (0,1) = %v, want 0.9", got)
	}

	rt = NewRuntime(programOf(op(SymU)), l)
	if got, _ := rt.Execute(imaging.BlueChannel, 0, 1); got != 0.7 {
		t.Errorf("u on blue at (0,1) = %v, want 0.7", got)
	}

	rt = NewRuntime(programOf(op(SymV)), l)
	if got, _ := rt.Execute(imaging.BlueChannel, 0, 0); got != 0.25 {
		t.Errorf("v on gray image = %v, want 0.25", got)
	}

	rt = NewRuntime(programOf(op(SymI), op(SymJ), op(OpAdd)), l)
	if got, _ := rt.Execute(imaging.RedChannel, 1, 1); got != 2 {
		t.Errorf("i+j = %v, want 2", got)
	}

	if _, err := NewRuntime(programOf(op(SymK)), l).Execute(imaging.RedChannel, 0, 0); !errors.Is(err, ErrColorSeparatedImageRequired) {
		t.Errorf("k on RGB image: err = %v", err)
	}
	if _, err := NewRuntime(programOf(op(SymR)), nil).Execute(imaging.RedChannel, 0, 0); !errors.Is(err, ErrNoSuchImage) {
		t.Errorf("r without images: err = %v", err)
	}
}

func TestPixelFunctions(t *testing.T) {
	l := testList(t)

	rel := op(FnP)
	rel.Relative = true
	rt := NewRuntime(programOf(num(1), num(0), rel), l)
	if got, _ := rt.Execute(imaging.RedChannel, 0, 0); got != 0.5 {
		t.Errorf("p[1,0] = %v, want 0.5", got)
	}
	if got, _ := rt.Execute(imaging.RedChannel, 1, 1); got != 0.3 {
		t.Errorf("p[1,0] at right edge = %v, want 0.3", got)
	}

	abs := op(FnP)
	rt = NewRuntime(programOf(num(0.5), num(0), abs), l)
	if got, _ := rt.Execute(imaging.RedChannel, 1, 1); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("p{0.5,0} = %v, want 0.3", got)
	}

	up := op(FnUP)
	up.Channel = imaging.GrayChannel
	rt = NewRuntime(programOf(num(1), num(0), num(0), up), l)
	if got, _ := rt.Execute(imaging.BlueChannel, 1, 0); got != 0.25 {
		t.Errorf("v.p{0,0} = %v, want 0.25", got)
	}

	rt = NewRuntime(programOf(num(3), op(FnU)), l)
	if got, _ := rt.Execute(imaging.RedChannel, 0, 0); got != 0.25 {
		t.Errorf("u[3] should wrap to image 1, got %v", got)
	}
}

func TestAttributes(t *testing.T) {
	l := testList(t)
	tests := []struct {
		e    Element
		args []float64
		want float64
	}{
		{op(AttrW), nil, 2},
		{op(AttrH), nil, 2},
		{op(AttrN), nil, 2},
		{op(AttrT), nil, 0},
		{op(AttrMinima), nil, 0.1},
		{op(AttrMaxima), nil, 0.9},
		{func() Element { e := op(SymV); e.Attribute = AttrW; return e }(), nil, 3},
		{func() Element { e := op(FnU); e.Attribute = AttrT; return e }(), []float64{-1}, 1},
		{func() Element { e := op(AttrMean); e.Channel = imaging.BlueChannel; return e }(), nil, 0.5},
		{op(AttrResolutionX), nil, 72},
		{op(AttrPrintsizeX), nil, 2.0 / 72},
	}
	for _, tt := range tests {
		var elems []Element
		for _, a := range tt.args {
			elems = append(elems, num(a))
		}
		elems = append(elems, tt.e)
		got := run(t, programOf(elems...), l)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s.%s = %v, want %v", tt.e.Op, tt.e.Attribute, got, tt.want)
		}
	}
}

func TestColorLiteral(t *testing.T) {
	c := op(OpColor)
	c.Value, c.Value1, c.Value2 = 0.1, 0.2, 0.3
	rt := NewRuntime(programOf(c), nil)
	for ch, want := range map[imaging.Channel]float64{
		imaging.RedChannel:   0.1,
		imaging.GreenChannel: 0.2,
		imaging.BlueChannel:  0.3,
		imaging.BlackChannel: 0,
		imaging.AlphaChannel: 1,
	} {
		if got, _ := rt.Execute(ch, 0, 0); got != want {
			t.Errorf("colour on %s = %v, want %v", ch, got, want)
		}
	}
}

func TestRandomSources(t *testing.T) {
	p := programOf(op(FnRand))
	a := NewRuntime(p, nil, WithSeed(42, 1))
	b := NewRuntime(p, nil, WithSeed(42, 1))
	for i := 0; i < 5; i++ {
		va, _ := a.Execute(imaging.RedChannel, 0, 0)
		vb, _ := b.Execute(imaging.RedChannel, 0, 0)
		if va != vb || va < 0 || va >= 1 {
			t.Fatalf("draw %d: %v vs %v", i, va, vb)
		}
	}

	shared := NewSharedRandom(7)
	c := NewRuntime(p, nil, WithRandom(shared))
	d := NewRuntime(p, nil, WithRandom(shared))
	vc, _ := c.Execute(imaging.RedChannel, 0, 0)
	vd, _ := d.Execute(imaging.RedChannel, 0, 0)
	if vc == vd {
		t.Errorf("shared generator returned the same value twice: %v", vc)
	}
}

func TestDebugWritesExcerpt(t *testing.T) {
	e := op(FnDebug)
	e.Text = "u.r"
	var buf bytes.Buffer
	rt := NewRuntime(programOf(num(0.5), e), nil, WithDebugWriter(&buf))
	got, err := rt.Execute(imaging.GreenChannel, 3, 4)
	if err != nil || got != 0.5 {
		t.Fatalf("debug(0.5) = %v, %v", got, err)
	}
	if out := buf.String(); !strings.Contains(out, "[3,4].green: u.r=0.5") {
		t.Errorf("debug output = %q", out)
	}
}
