// Package compiler translates fx expressions into bytecode programs.
//
// The translator is a single-pass recursive-descent parser with a small
// operator stack per expression. Jumps for the ternary operator and the
// control-flow functions are emitted with unset targets and patched once
// the destination is known.
package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"
	"github.com/tliron/commonlog"
)

// MaxElements bounds the size of a compiled program.
const MaxElements = 1 << 20

var log = commonlog.GetLogger("pixfx.compiler")

// Options configure compilation.
type Options struct {
	// Colors resolves colour names, #hex literals and functional colours
	// such as rgb(...). Defaults to imaging.ParseColor.
	Colors func(spec string) (imaging.Color, error)

	// Properties resolves %[name] references. Without it every property
	// reference is an error.
	Properties func(name string) (string, bool)
}

// Compile translates an expression into a validated program.
func Compile(expression string, opts Options) (*bytecode.Program, error) {
	if opts.Colors == nil {
		opts.Colors = imaging.ParseColor
	}
	c := &compiler{
		lex:  NewLexer(expression),
		prog: bytecode.NewProgram(expression),
		opts: opts,
	}
	if c.lex.AtEnd() {
		return nil, c.errorAt(0, "empty expression")
	}
	if err := c.statementList(); err != nil {
		return nil, err
	}
	if !c.lex.AtEnd() {
		return nil, c.errorf("unexpected %q", string(c.lex.Peek()))
	}
	if c.depth != 1 {
		return nil, c.errorAt(0, fmt.Sprintf("internal error: expression leaves %d values", c.depth))
	}
	if len(c.prog.Elements) > MaxElements {
		return nil, c.errorAt(0, fmt.Sprintf("program too large (%d elements)", len(c.prog.Elements)))
	}
	if err := c.prog.Validate(); err != nil {
		return nil, c.errorAt(0, err.Error())
	}
	log.Debugf("compiled %q: %d elements, %d variables, max stack %d",
		expression, len(c.prog.Elements), len(c.prog.Variables), c.prog.MaxStack)
	return c.prog, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expression string) *bytecode.Program {
	p, err := Compile(expression, Options{})
	if err != nil {
		panic(err)
	}
	return p
}

// compiler holds the state of one translation.
type compiler struct {
	lex   *Lexer
	prog  *bytecode.Program
	opts  Options
	depth int // operand stack depth after the last emitted element
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// emit appends an element and tracks the static stack depth.
func (c *compiler) emit(e bytecode.Element) int {
	if e.Op == bytecode.CtlZeroStack {
		c.depth = e.Depth
	} else {
		c.depth -= e.ArgCount
		if e.Push {
			c.depth++
		}
	}
	if c.depth > c.prog.MaxStack {
		c.prog.MaxStack = c.depth
	}
	return c.prog.Emit(e)
}

func (c *compiler) emitOp(op bytecode.Opcode) int {
	return c.emit(bytecode.NewElement(op))
}

func (c *compiler) emitNumber(v float64) int {
	e := bytecode.NewElement(bytecode.OpNumber)
	e.Value = v
	return c.emit(e)
}

func (c *compiler) emitJump(op bytecode.Opcode) int {
	return c.emitOp(op)
}

func (c *compiler) emitZeroStack(depth int) {
	e := bytecode.NewElement(bytecode.CtlZeroStack)
	e.Depth = depth
	c.emit(e)
}

func (c *compiler) emitSlot(op bytecode.Opcode, slot int) {
	e := bytecode.NewElement(op)
	e.Slot = slot
	c.emit(e)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func (c *compiler) errorAt(offset int, msg string) *Error {
	return &Error{
		Pos:     c.lex.Position(offset),
		Message: msg,
		Excerpt: c.lex.Excerpt(offset),
		source:  c.lex.input,
	}
}

func (c *compiler) errorf(format string, args ...any) *Error {
	c.lex.SkipSpace()
	return c.errorAt(c.lex.Pos(), fmt.Sprintf(format, args...))
}

// expect consumes ch or fails.
func (c *compiler) expect(ch byte) error {
	if c.lex.Peek() != ch {
		if c.lex.AtEnd() {
			return c.errorf("expected %q before end of expression", string(ch))
		}
		return c.errorf("expected %q", string(ch))
	}
	c.lex.Advance(1)
	return nil
}

// ---------------------------------------------------------------------------
// Statements and expressions
// ---------------------------------------------------------------------------

// atStatementEnd reports whether the cursor is at the end of input or at
// a delimiter that closes the enclosing construct.
func (c *compiler) atStatementEnd() bool {
	switch c.lex.Peek() {
	case 0, ')', ']', '}', ',', ':', ';':
		return true
	}
	return false
}

// statementList compiles statements separated by ';'. The value of every
// statement but the last is discarded; the list leaves one value.
func (c *compiler) statementList() error {
	base := c.depth
	for {
		if err := c.expression(); err != nil {
			return err
		}
		if c.lex.Peek() != ';' {
			return nil
		}
		c.lex.Advance(1)
		if c.atStatementEnd() {
			return nil
		}
		c.emitZeroStack(base)
	}
}

// expression compiles an operand followed by any number of binary
// operators and operands. Operators wait on a local stack until an
// operator of lower precedence arrives.
func (c *compiler) expression() error {
	var ops []bytecode.Opcode
	flush := func(prec int) {
		for len(ops) > 0 && ops[len(ops)-1].Precedence() >= prec {
			c.emitOp(ops[len(ops)-1])
			ops = ops[:len(ops)-1]
		}
	}
	for {
		for {
			op, ok := c.prefixOperator()
			if !ok {
				break
			}
			ops = append(ops, op)
		}
		if err := c.operand(); err != nil {
			return err
		}
		op, n, err := c.binaryOperator()
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		c.lex.Advance(n)
		if op == bytecode.OpNull {
			flush(0)
			return c.ternary()
		}
		flush(op.Precedence())
		ops = append(ops, op)
	}
	flush(0)
	return nil
}

// prefixOperator consumes a unary operator.
func (c *compiler) prefixOperator() (bytecode.Opcode, bool) {
	var op bytecode.Opcode
	switch c.lex.Peek() {
	case '+':
		op = bytecode.OpPlus
	case '-':
		op = bytecode.OpNegate
	case '!':
		op = bytecode.OpLogicalNot
	case '~':
		op = bytecode.OpBitNot
	default:
		return bytecode.OpNull, false
	}
	c.lex.Advance(1)
	return op, true
}

var twoCharOperators = []struct {
	text string
	op   bytecode.Opcode
}{
	{"**", bytecode.OpPower},
	{"<<", bytecode.OpLeftShift},
	{">>", bytecode.OpRightShift},
	{"<=", bytecode.OpLessEqual},
	{">=", bytecode.OpGreaterEqual},
	{"==", bytecode.OpEqual},
	{"!=", bytecode.OpNotEqual},
	{"&&", bytecode.OpLogicalAnd},
	{"||", bytecode.OpLogicalOr},
}

var oneCharOperators = map[byte]bytecode.Opcode{
	'+': bytecode.OpAdd,
	'-': bytecode.OpSubtract,
	'*': bytecode.OpMultiply,
	'/': bytecode.OpDivide,
	'%': bytecode.OpModulus,
	'^': bytecode.OpPower,
	'<': bytecode.OpLess,
	'>': bytecode.OpGreater,
	'&': bytecode.OpBitAnd,
	'|': bytecode.OpBitOr,
}

// binaryOperator identifies the operator at the cursor without consuming
// it and returns its length. A zero length means the expression ends here.
// The ternary '?' is reported as OpNull with length 1.
func (c *compiler) binaryOperator() (bytecode.Opcode, int, error) {
	ch := c.lex.Peek()
	switch ch {
	case 0, ')', ']', '}', ',', ':', ';':
		return bytecode.OpNull, 0, nil
	case '?':
		return bytecode.OpNull, 1, nil
	case '=':
		if c.lex.At(1) != '=' {
			return bytecode.OpNull, 0, c.errorf("assignment to non-variable")
		}
	}
	for _, t := range twoCharOperators {
		if c.lex.HasPrefix(t.text) {
			if c.lex.At(2) == '=' && (t.text == "<<" || t.text == ">>" || t.text == "**") {
				return bytecode.OpNull, 0, c.errorf("assignment to non-variable")
			}
			return t.op, 2, nil
		}
	}
	if op, ok := oneCharOperators[ch]; ok {
		if c.lex.At(1) == '=' && ch != '<' && ch != '>' {
			return bytecode.OpNull, 0, c.errorf("assignment to non-variable")
		}
		if (ch == '+' || ch == '-') && c.lex.At(1) == ch {
			return bytecode.OpNull, 0, c.errorf("%q applies only to variables", strings.Repeat(string(ch), 2))
		}
		return op, 1, nil
	}
	return bytecode.OpNull, 0, c.errorf("expected operator, found %q", string(ch))
}

// ternary compiles "? then : else" with the condition already emitted.
func (c *compiler) ternary() error {
	base := c.depth - 1
	jElse := c.emitJump(bytecode.CtlIfZeroGoto)
	if err := c.expression(); err != nil {
		return err
	}
	if c.lex.Peek() != ':' {
		return c.errorf("'?' without matching ':'")
	}
	c.lex.Advance(1)
	jEnd := c.emitJump(bytecode.CtlGoto)
	c.prog.PatchJump(jElse)
	c.depth = base
	if err := c.expression(); err != nil {
		return err
	}
	c.prog.PatchJump(jEnd)
	return nil
}
