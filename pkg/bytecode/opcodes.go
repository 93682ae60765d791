package bytecode

import (
	"fmt"
	"math"
	"sort"
)

// Opcode identifies what an element does. A single increasing enumeration
// covers every kind of element; the ranges below are contiguous so an
// opcode's Kind is one range check.
type Opcode uint16

const (
	OpNull Opcode = iota

	// ========================================================================
	// Operators
	// ========================================================================

	OpAdd          // a + b
	OpSubtract     // a - b
	OpMultiply     // a * b
	OpDivide       // a / b, dividend unchanged when b is exactly 0
	OpModulus      // fmod(a, |round(b)|), dividend unchanged when that is 0
	OpPower        // a ^ b, also spelled **
	OpPlus         // unary +
	OpNegate       // unary -
	OpLeftShift    // round(a) << round(b)
	OpRightShift   // round(a) >> round(b)
	OpLess         // a < b
	OpLessEqual    // a <= b
	OpGreater      // a > b
	OpGreaterEqual // a >= b
	OpEqual        // |a - b| < epsilon
	OpNotEqual     // |a - b| >= epsilon
	OpBitAnd       // round(a) & round(b)
	OpBitOr        // round(a) | round(b)
	OpLogicalAnd   // a && b
	OpLogicalOr    // a || b
	OpLogicalNot   // !a
	OpBitNot       // ~round(a)

	// ========================================================================
	// Literals
	// ========================================================================

	OpNumber // push Value
	OpColor  // push Value, Value1 or Value2 by channel

	// ========================================================================
	// Named constants
	// ========================================================================

	ConstEpsilon
	ConstE
	ConstOpaque
	ConstPhi
	ConstPi
	ConstQuantumRange
	ConstQuantumScale
	ConstTransparent
	ConstMaxRGB

	// ========================================================================
	// Functions
	// ========================================================================

	FnAbs
	FnAcos
	FnAcosh
	FnAiry
	FnAlt
	FnAsin
	FnAsinh
	FnAtan
	FnAtan2
	FnAtanh
	FnCeil
	FnChannel
	FnClamp
	FnCos
	FnCosh
	FnDebug
	FnDrc
	FnErf
	FnExp
	FnFloor
	FnGauss
	FnGcd
	FnHypot
	FnInt
	FnIsnan
	FnJ0
	FnJ1
	FnJinc
	FnLn
	FnLog
	FnLogtwo
	FnMagicktime
	FnMax
	FnMin
	FnMod
	FnNot
	FnPow
	FnRand
	FnRound
	FnSign
	FnSin
	FnSinc
	FnSinh
	FnSqrt
	FnSquish
	FnTan
	FnTanh
	FnTrunc
	FnU  // u[n]: image n at the current coordinate
	FnUP // u.p[dx,dy] and friends: image, x, y
	FnP  // p[dx,dy] / p{x,y} on the current image

	// Control-flow pseudo functions. They are lowered to control elements
	// by the compiler and never appear in a program.
	FnIf
	FnWhile
	FnDo
	FnFor

	// ========================================================================
	// Image attributes
	// ========================================================================

	AttrDepth
	AttrExtent
	AttrKurtosis
	AttrMaxima
	AttrMean
	AttrMedian
	AttrMinima
	AttrPageX
	AttrPageY
	AttrPageWidth
	AttrPageHeight
	AttrPrintsizeX
	AttrPrintsizeY
	AttrQuality
	AttrResolutionX
	AttrResolutionY
	AttrSkewness
	AttrStandardDeviation
	AttrH
	AttrN
	AttrT
	AttrW
	AttrZ

	// ========================================================================
	// Pixel symbols
	// ========================================================================

	SymI // current column
	SymJ // current row
	SymA
	SymB
	SymC
	SymG
	SymK
	SymM
	SymO
	SymR
	SymY
	SymHue
	SymSaturation
	SymLightness
	SymIntensity
	SymLuma
	SymLuminance
	SymU // image 0 at the current coordinate
	SymV // image 1
	SymS // current image

	// ========================================================================
	// Controls
	// ========================================================================

	CtlGoto          // jump to Target
	CtlIfZeroGoto    // pop; jump to Target when |a| < epsilon
	CtlIfNotZeroGoto // pop; jump to Target when |a| >= epsilon
	CtlCopyFrom      // push variable Slot
	CtlCopyTo        // pop; store into variable Slot; push
	CtlZeroStack     // truncate the operand stack to Depth

	opcodeCount
)

// Kind groups opcodes by element kind.
type Kind uint8

const (
	KindNull Kind = iota
	KindOperator
	KindNumber
	KindColor
	KindConstant
	KindFunction
	KindAttribute
	KindSymbol
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindOperator:
		return "operator"
	case KindNumber:
		return "number"
	case KindColor:
		return "color"
	case KindConstant:
		return "constant"
	case KindFunction:
		return "function"
	case KindAttribute:
		return "attribute"
	case KindSymbol:
		return "symbol"
	case KindControl:
		return "control"
	default:
		return "null"
	}
}

// Kind returns the element kind of the opcode.
func (op Opcode) Kind() Kind {
	switch {
	case op >= OpAdd && op <= OpBitNot:
		return KindOperator
	case op == OpNumber:
		return KindNumber
	case op == OpColor:
		return KindColor
	case op >= ConstEpsilon && op <= ConstMaxRGB:
		return KindConstant
	case op >= FnAbs && op <= FnFor:
		return KindFunction
	case op >= AttrDepth && op <= AttrZ:
		return KindAttribute
	case op >= SymI && op <= SymS:
		return KindSymbol
	case op >= CtlGoto && op < opcodeCount:
		return KindControl
	}
	return KindNull
}

// OpcodeInfo provides metadata about each opcode.
type OpcodeInfo struct {
	Name       string // Source spelling (operators) or identifier
	Args       int    // Operands consumed from the stack
	Precedence int    // Binding strength, operators only
}

// Operator precedences; higher binds tighter.
const (
	PrecedenceTernary        = 4
	PrecedenceLogicalOr      = 5
	PrecedenceLogicalAnd     = 6
	PrecedenceBitOr          = 7
	PrecedenceBitAnd         = 8
	PrecedenceEquality       = 9
	PrecedenceRelational     = 10
	PrecedenceShift          = 11
	PrecedenceAdditive       = 12
	PrecedenceMultiplicative = 13
	PrecedenceUnary          = 14
	PrecedencePower          = 15
	PrecedenceNot            = 16
)

var opcodeInfoTable = [opcodeCount]OpcodeInfo{
	OpNull: {"null", 0, 0},

	OpAdd:          {"+", 2, PrecedenceAdditive},
	OpSubtract:     {"-", 2, PrecedenceAdditive},
	OpMultiply:     {"*", 2, PrecedenceMultiplicative},
	OpDivide:       {"/", 2, PrecedenceMultiplicative},
	OpModulus:      {"%", 2, PrecedenceMultiplicative},
	OpPower:        {"^", 2, PrecedencePower},
	OpPlus:         {"+", 1, PrecedenceUnary},
	OpNegate:       {"-", 1, PrecedenceUnary},
	OpLeftShift:    {"<<", 2, PrecedenceShift},
	OpRightShift:   {">>", 2, PrecedenceShift},
	OpLess:         {"<", 2, PrecedenceRelational},
	OpLessEqual:    {"<=", 2, PrecedenceRelational},
	OpGreater:      {">", 2, PrecedenceRelational},
	OpGreaterEqual: {">=", 2, PrecedenceRelational},
	OpEqual:        {"==", 2, PrecedenceEquality},
	OpNotEqual:     {"!=", 2, PrecedenceEquality},
	OpBitAnd:       {"&", 2, PrecedenceBitAnd},
	OpBitOr:        {"|", 2, PrecedenceBitOr},
	OpLogicalAnd:   {"&&", 2, PrecedenceLogicalAnd},
	OpLogicalOr:    {"||", 2, PrecedenceLogicalOr},
	OpLogicalNot:   {"!", 1, PrecedenceNot},
	OpBitNot:       {"~", 1, PrecedenceNot},

	OpNumber: {"number", 0, 0},
	OpColor:  {"color", 0, 0},

	ConstEpsilon:      {"epsilon", 0, 0},
	ConstE:            {"e", 0, 0},
	ConstOpaque:       {"opaque", 0, 0},
	ConstPhi:          {"phi", 0, 0},
	ConstPi:           {"pi", 0, 0},
	ConstQuantumRange: {"quantumrange", 0, 0},
	ConstQuantumScale: {"quantumscale", 0, 0},
	ConstTransparent:  {"transparent", 0, 0},
	ConstMaxRGB:       {"maxrgb", 0, 0},

	FnAbs:        {"abs", 1, 0},
	FnAcos:       {"acos", 1, 0},
	FnAcosh:      {"acosh", 1, 0},
	FnAiry:       {"airy", 1, 0},
	FnAlt:        {"alt", 1, 0},
	FnAsin:       {"asin", 1, 0},
	FnAsinh:      {"asinh", 1, 0},
	FnAtan:       {"atan", 1, 0},
	FnAtan2:      {"atan2", 2, 0},
	FnAtanh:      {"atanh", 1, 0},
	FnCeil:       {"ceil", 1, 0},
	FnChannel:    {"channel", 5, 0},
	FnClamp:      {"clamp", 1, 0},
	FnCos:        {"cos", 1, 0},
	FnCosh:       {"cosh", 1, 0},
	FnDebug:      {"debug", 1, 0},
	FnDrc:        {"drc", 2, 0},
	FnErf:        {"erf", 1, 0},
	FnExp:        {"exp", 1, 0},
	FnFloor:      {"floor", 1, 0},
	FnGauss:      {"gauss", 1, 0},
	FnGcd:        {"gcd", 2, 0},
	FnHypot:      {"hypot", 2, 0},
	FnInt:        {"int", 1, 0},
	FnIsnan:      {"isnan", 1, 0},
	FnJ0:         {"j0", 1, 0},
	FnJ1:         {"j1", 1, 0},
	FnJinc:       {"jinc", 1, 0},
	FnLn:         {"ln", 1, 0},
	FnLog:        {"log", 1, 0},
	FnLogtwo:     {"logtwo", 1, 0},
	FnMagicktime: {"magicktime", 0, 0},
	FnMax:        {"max", 2, 0},
	FnMin:        {"min", 2, 0},
	FnMod:        {"mod", 2, 0},
	FnNot:        {"not", 1, 0},
	FnPow:        {"pow", 2, 0},
	FnRand:       {"rand", 0, 0},
	FnRound:      {"round", 1, 0},
	FnSign:       {"sign", 1, 0},
	FnSin:        {"sin", 1, 0},
	FnSinc:       {"sinc", 1, 0},
	FnSinh:       {"sinh", 1, 0},
	FnSqrt:       {"sqrt", 1, 0},
	FnSquish:     {"squish", 1, 0},
	FnTan:        {"tan", 1, 0},
	FnTanh:       {"tanh", 1, 0},
	FnTrunc:      {"trunc", 1, 0},
	FnU:          {"u", 1, 0},
	FnUP:         {"up", 3, 0},
	FnP:          {"p", 2, 0},
	FnIf:         {"if", 3, 0},
	FnWhile:      {"while", 2, 0},
	FnDo:         {"do", 2, 0},
	FnFor:        {"for", 4, 0},

	AttrDepth:             {"depth", 0, 0},
	AttrExtent:            {"extent", 0, 0},
	AttrKurtosis:          {"kurtosis", 0, 0},
	AttrMaxima:            {"maxima", 0, 0},
	AttrMean:              {"mean", 0, 0},
	AttrMedian:            {"median", 0, 0},
	AttrMinima:            {"minima", 0, 0},
	AttrPageX:             {"page.x", 0, 0},
	AttrPageY:             {"page.y", 0, 0},
	AttrPageWidth:         {"page.width", 0, 0},
	AttrPageHeight:        {"page.height", 0, 0},
	AttrPrintsizeX:        {"printsize.x", 0, 0},
	AttrPrintsizeY:        {"printsize.y", 0, 0},
	AttrQuality:           {"quality", 0, 0},
	AttrResolutionX:       {"resolution.x", 0, 0},
	AttrResolutionY:       {"resolution.y", 0, 0},
	AttrSkewness:          {"skewness", 0, 0},
	AttrStandardDeviation: {"standard_deviation", 0, 0},
	AttrH:                 {"h", 0, 0},
	AttrN:                 {"n", 0, 0},
	AttrT:                 {"t", 0, 0},
	AttrW:                 {"w", 0, 0},
	AttrZ:                 {"z", 0, 0},

	SymI:          {"i", 0, 0},
	SymJ:          {"j", 0, 0},
	SymA:          {"a", 0, 0},
	SymB:          {"b", 0, 0},
	SymC:          {"c", 0, 0},
	SymG:          {"g", 0, 0},
	SymK:          {"k", 0, 0},
	SymM:          {"m", 0, 0},
	SymO:          {"o", 0, 0},
	SymR:          {"r", 0, 0},
	SymY:          {"y", 0, 0},
	SymHue:        {"hue", 0, 0},
	SymSaturation: {"saturation", 0, 0},
	SymLightness:  {"lightness", 0, 0},
	SymIntensity:  {"intensity", 0, 0},
	SymLuma:       {"luma", 0, 0},
	SymLuminance:  {"luminance", 0, 0},
	SymU:          {"u", 0, 0},
	SymV:          {"v", 0, 0},
	SymS:          {"s", 0, 0},

	CtlGoto:          {"goto", 0, 0},
	CtlIfZeroGoto:    {"ifzerogoto", 1, 0},
	CtlIfNotZeroGoto: {"ifnotzerogoto", 1, 0},
	CtlCopyFrom:      {"copyfrom", 0, 0},
	CtlCopyTo:        {"copyto", 1, 0},
	CtlZeroStack:     {"zerostack", 0, 0},
}

// Constant values, normalised the same way as pixel samples.
const (
	Epsilon      = 1.0e-12
	Phi          = 1.61803398874989484820
	QuantumRange = 65535.0
	QuantumScale = 1.0 / QuantumRange
)

var constantValues = map[Opcode]float64{
	ConstEpsilon:      Epsilon,
	ConstE:            math.E,
	ConstOpaque:       1,
	ConstPhi:          Phi,
	ConstPi:           math.Pi,
	ConstQuantumRange: QuantumRange,
	ConstQuantumScale: QuantumScale,
	ConstTransparent:  0,
	ConstMaxRGB:       QuantumRange,
}

// ConstantValue returns the value of a named constant opcode.
func ConstantValue(op Opcode) float64 {
	return constantValues[op]
}

// Name lookup tables, built once from opcodeInfoTable.
var (
	constantsByName  map[string]Opcode
	functionsByName  map[string]Opcode
	attributesByName map[string]Opcode
	symbolsByName    map[string]Opcode
)

func init() {
	constantsByName = make(map[string]Opcode)
	functionsByName = make(map[string]Opcode)
	attributesByName = make(map[string]Opcode)
	symbolsByName = make(map[string]Opcode)
	for op := OpNull; op < opcodeCount; op++ {
		name := opcodeInfoTable[op].Name
		switch op.Kind() {
		case KindConstant:
			constantsByName[name] = op
		case KindFunction:
			if op != FnUP && op != FnU && op != FnP {
				functionsByName[name] = op
			}
		case KindAttribute:
			attributesByName[name] = op
		case KindSymbol:
			symbolsByName[name] = op
		}
	}
}

// LookupConstant finds a named constant by lower-case name.
func LookupConstant(name string) (Opcode, bool) {
	op, ok := constantsByName[name]
	return op, ok
}

// LookupFunction finds a built-in function by lower-case name. Pixel
// access forms (u[], p[], p{}) are handled by the compiler and are not
// found here.
func LookupFunction(name string) (Opcode, bool) {
	op, ok := functionsByName[name]
	return op, ok
}

// LookupAttribute finds an image attribute by lower-case name, including
// the dotted forms such as "page.x".
func LookupAttribute(name string) (Opcode, bool) {
	op, ok := attributesByName[name]
	return op, ok
}

// LookupSymbol finds a pixel symbol by lower-case name.
func LookupSymbol(name string) (Opcode, bool) {
	op, ok := symbolsByName[name]
	return op, ok
}

// GetOpcodeInfo returns metadata for an opcode.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op < opcodeCount {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", uint16(op))}
}

// String returns the name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Args returns the number of operands the opcode consumes.
func (op Opcode) Args() int {
	return GetOpcodeInfo(op).Args
}

// Precedence returns the binding strength of an operator, 0 otherwise.
func (op Opcode) Precedence() int {
	return GetOpcodeInfo(op).Precedence
}

// IsJump returns true if this opcode transfers control.
func (op Opcode) IsJump() bool {
	return op >= CtlGoto && op <= CtlIfNotZeroGoto
}

// IsStatistic returns true for the attributes derived from channel
// statistics.
func (op Opcode) IsStatistic() bool {
	switch op {
	case AttrKurtosis, AttrMaxima, AttrMean, AttrMedian, AttrMinima,
		AttrSkewness, AttrStandardDeviation:
		return true
	}
	return false
}

// Builtin describes a name the expression language predefines.
type Builtin struct {
	Name string
	Op   Opcode
}

// Builtins lists every predefined constant, function, attribute and
// symbol name in alphabetical order, for completion and documentation.
func Builtins() []Builtin {
	var out []Builtin
	for _, m := range []map[string]Opcode{constantsByName, functionsByName, attributesByName, symbolsByName} {
		for name, op := range m {
			out = append(out, Builtin{Name: name, Op: op})
		}
	}
	out = append(out, Builtin{Name: "p", Op: FnP})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Op < out[j].Op
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AllOpcodes returns every defined opcode in order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, opcodeCount)
	for op := OpNull; op < opcodeCount; op++ {
		ops = append(ops, op)
	}
	return ops
}
