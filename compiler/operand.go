package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"
)

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// operand compiles one value: a parenthesized statement list, a literal,
// a name or a call.
func (c *compiler) operand() error {
	ch := c.lex.Peek()
	switch {
	case ch == '(':
		c.lex.Advance(1)
		if err := c.statementList(); err != nil {
			return err
		}
		return c.expect(')')
	case ch == '#':
		return c.hexColor()
	case isDigit(ch) || ch == '.' && isDigit(c.lex.At(1)):
		return c.number()
	case ch == '%' && c.lex.At(1) == '[':
		return c.property()
	case isLetter(ch):
		return c.identifier()
	case ch == 0:
		return c.errorf("unexpected end of expression")
	case ch == '?':
		return c.errorf("'?' without a condition")
	case ch == ':':
		return c.errorf("':' without matching '?'")
	}
	return c.errorf("expected operand, found %q", string(ch))
}

// identifier resolves a name. Existing variables come first, then a new
// variable introduced by a plain '=', then built-in constants, functions,
// attributes and symbols, and finally colour names.
func (c *compiler) identifier() error {
	start := c.lex.Pos()
	name := c.lex.Token()
	if len(name) > MaxTokenLen {
		return c.errorAt(start, fmt.Sprintf("name longer than %d characters", MaxTokenLen))
	}

	if slot, ok := c.prog.LookupVariable(name); ok {
		c.lex.Advance(len(name))
		return c.variable(slot)
	}
	if c.assignmentFollows(len(name)) {
		slot := c.prog.AddVariable(name, start)
		c.lex.Advance(len(name))
		return c.variable(slot)
	}

	lower := strings.ToLower(name)
	if op, ok := bytecode.LookupConstant(lower); ok {
		c.lex.Advance(len(name))
		c.emitOp(op)
		return nil
	}
	if op, ok := bytecode.LookupFunction(lower); ok {
		c.lex.Advance(len(name))
		return c.call(op)
	}
	if ok, err := c.attribute(lower, start); ok || err != nil {
		return err
	}
	switch lower {
	case "u", "v", "s":
		op, _ := bytecode.LookupSymbol(lower)
		c.lex.Advance(len(name))
		return c.imageReference(op)
	case "p":
		c.lex.Advance(len(name))
		return c.pixelReference()
	}
	if op, ok := bytecode.LookupSymbol(lower); ok {
		c.lex.Advance(len(name))
		c.symbol(op)
		return nil
	}
	return c.colorName(name, start)
}

// assignmentFollows reports whether the n-byte name at the cursor is
// followed by a plain '=' rather than '=='.
func (c *compiler) assignmentFollows(n int) bool {
	i := n
	for isSpace(c.lex.At(i)) {
		i++
	}
	return c.lex.At(i) == '=' && c.lex.At(i+1) != '='
}

var compoundAssignments = []struct {
	text string
	op   bytecode.Opcode
}{
	{"**=", bytecode.OpPower},
	{"<<=", bytecode.OpLeftShift},
	{">>=", bytecode.OpRightShift},
	{"+=", bytecode.OpAdd},
	{"-=", bytecode.OpSubtract},
	{"*=", bytecode.OpMultiply},
	{"/=", bytecode.OpDivide},
	{"%=", bytecode.OpModulus},
	{"^=", bytecode.OpPower},
	{"&=", bytecode.OpBitAnd},
	{"|=", bytecode.OpBitOr},
}

// variable compiles a reference to a user variable, including plain,
// compound and increment assignments.
func (c *compiler) variable(slot int) error {
	if c.lex.Peek() == '=' && c.lex.At(1) != '=' {
		c.lex.Advance(1)
		if err := c.expression(); err != nil {
			return err
		}
		c.emitSlot(bytecode.CtlCopyTo, slot)
		return nil
	}
	for _, a := range compoundAssignments {
		if c.lex.Accept(a.text) {
			c.emitSlot(bytecode.CtlCopyFrom, slot)
			if err := c.expression(); err != nil {
				return err
			}
			c.emitOp(a.op)
			c.emitSlot(bytecode.CtlCopyTo, slot)
			return nil
		}
	}
	for _, inc := range []struct {
		text string
		op   bytecode.Opcode
	}{{"++", bytecode.OpAdd}, {"--", bytecode.OpSubtract}} {
		if !c.lex.HasPrefix(inc.text) {
			continue
		}
		c.lex.Advance(len(inc.text))
		if !c.atStatementEnd() {
			return c.errorf("%q must be the last operator of a statement", inc.text)
		}
		c.emitSlot(bytecode.CtlCopyFrom, slot)
		c.emitNumber(1)
		c.emitOp(inc.op)
		c.emitSlot(bytecode.CtlCopyTo, slot)
		return nil
	}
	c.emitSlot(bytecode.CtlCopyFrom, slot)
	return nil
}

// symbol emits a one-letter pixel symbol or a derived channel name.
func (c *compiler) symbol(op bytecode.Opcode) {
	switch op {
	case bytecode.SymHue, bytecode.SymSaturation, bytecode.SymLightness:
		c.prog.Flags |= bytecode.FlagNeedsHSL
	}
	c.emitOp(op)
}

// ---------------------------------------------------------------------------
// Attributes and qualifiers
// ---------------------------------------------------------------------------

// dottedAttributes are attributes whose name continues after a '.'.
var dottedAttributes = map[string]bool{
	"page":       true,
	"resolution": true,
	"printsize":  true,
}

// attributeName returns the attribute named at the cursor and its length
// in bytes, joining the dotted forms such as page.width.
func (c *compiler) attributeName() (bytecode.Opcode, int) {
	tok := c.lex.Token()
	lower := strings.ToLower(tok)
	n := len(tok)
	if dottedAttributes[lower] && c.lex.At(n) == '.' && isLetter(c.lex.At(n+1)) {
		pos := c.lex.Pos()
		c.lex.Advance(n + 1)
		sub := c.lex.Token()
		c.lex.Seek(pos)
		lower += "." + strings.ToLower(sub)
		n += 1 + len(sub)
	}
	op, ok := bytecode.LookupAttribute(lower)
	if !ok {
		return bytecode.OpNull, 0
	}
	return op, n
}

// attribute compiles a bare image attribute of the current image, such as
// w, mean or page.x, with an optional channel qualifier. It reports false
// when the name at the cursor is not an attribute.
func (c *compiler) attribute(lower string, start int) (bool, error) {
	op, n := c.attributeName()
	if op == bytecode.OpNull {
		if dottedAttributes[lower] && c.lex.At(len(lower)) == '.' {
			return true, c.errorAt(start, "unknown attribute")
		}
		return false, nil
	}
	c.lex.Advance(n)
	e := bytecode.NewElement(op)
	ch, err := c.channelQualifier()
	if err != nil {
		return true, err
	}
	if ch.Derived() {
		return true, c.errorAt(start, fmt.Sprintf("channel %s not allowed on attribute %s", ch, op))
	}
	e.Channel = ch
	if op.IsStatistic() {
		c.prog.Flags |= bytecode.FlagNeedsStatistics
	}
	c.emit(e)
	return true, nil
}

// channelQualifier consumes an optional ".channel" suffix.
func (c *compiler) channelQualifier() (imaging.Channel, error) {
	if c.lex.At(0) != '.' || !isLetter(c.lex.At(1)) {
		return imaging.UndefinedChannel, nil
	}
	c.lex.Advance(1)
	tok := c.lex.Token()
	ch, ok := imaging.LookupChannel(strings.ToLower(tok))
	if !ok {
		return imaging.UndefinedChannel, c.errorf("unknown channel qualifier %q", tok)
	}
	c.lex.Advance(len(tok))
	if ch.Derived() {
		c.prog.Flags |= bytecode.FlagNeedsHSL
	}
	return ch, nil
}

// qualifiers consumes the ".channel", ".attribute" or
// ".attribute.channel" suffix of an image reference.
func (c *compiler) qualifiers(e *bytecode.Element) error {
	if c.lex.At(0) != '.' || !isLetter(c.lex.At(1)) {
		return nil
	}
	dot := c.lex.Pos()
	c.lex.Advance(1)
	tok := c.lex.Token()
	if ch, ok := imaging.LookupChannel(strings.ToLower(tok)); ok {
		c.lex.Advance(len(tok))
		if ch.Derived() {
			c.prog.Flags |= bytecode.FlagNeedsHSL
		}
		e.Channel = ch
		return nil
	}
	op, n := c.attributeName()
	if op == bytecode.OpNull {
		return c.errorAt(dot, fmt.Sprintf("unknown qualifier %q", tok))
	}
	c.lex.Advance(n)
	e.Attribute = op
	if op.IsStatistic() {
		c.prog.Flags |= bytecode.FlagNeedsStatistics
	}
	ch, err := c.channelQualifier()
	if err != nil {
		return err
	}
	if ch.Derived() {
		return c.errorAt(dot, fmt.Sprintf("channel %s not allowed on attribute %s", ch, op))
	}
	e.Channel = ch
	return nil
}

// ---------------------------------------------------------------------------
// Image and pixel references
// ---------------------------------------------------------------------------

// imageReference compiles u, v, s and u[n] with their qualifiers, and
// the coordinate forms u.p[dx,dy], v.p{x,y}, u[n].p[...] and s.p[...].
func (c *compiler) imageReference(op bytecode.Opcode) error {
	indexed := false
	if op == bytecode.SymU && c.lex.At(0) == '[' {
		c.lex.Advance(1)
		if err := c.statementList(); err != nil {
			return err
		}
		if err := c.expect(']'); err != nil {
			return err
		}
		indexed = true
	}

	if c.lex.At(0) == '.' && (c.lex.At(1) == 'p' || c.lex.At(1) == 'P') &&
		(c.lex.At(2) == '[' || c.lex.At(2) == '{') {
		c.lex.Advance(2)
		fn := bytecode.FnUP
		switch {
		case op == bytecode.SymS:
			fn = bytecode.FnP
		case indexed:
		case op == bytecode.SymV:
			c.emitNumber(1)
		default:
			c.emitNumber(0)
		}
		return c.coordinates(fn)
	}

	e := bytecode.NewElement(op)
	if indexed {
		e = bytecode.NewElement(bytecode.FnU)
	}
	if err := c.qualifiers(&e); err != nil {
		return err
	}
	c.emit(e)
	return nil
}

// pixelReference compiles p[dx,dy], p{x,y} and a bare p, which is the
// current pixel.
func (c *compiler) pixelReference() error {
	if c.lex.At(0) == '[' || c.lex.At(0) == '{' {
		return c.coordinates(bytecode.FnP)
	}
	e := bytecode.NewElement(bytecode.SymS)
	ch, err := c.channelQualifier()
	if err != nil {
		return err
	}
	e.Channel = ch
	c.emit(e)
	return nil
}

// coordinates compiles "[dx,dy]" (relative) or "{x,y}" (absolute) and the
// pixel function fn, followed by an optional channel qualifier.
func (c *compiler) coordinates(fn bytecode.Opcode) error {
	open := c.lex.At(0)
	closer := byte(']')
	if open == '{' {
		closer = '}'
	}
	c.lex.Advance(1)
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.expect(','); err != nil {
		return err
	}
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.expect(closer); err != nil {
		return err
	}

	e := bytecode.NewElement(fn)
	e.Relative = open == '['
	if c.lex.At(0) == '.' && isLetter(c.lex.At(1)) {
		if op, _ := c.peekAttributeQualifier(); op != bytecode.OpNull {
			return c.errorf("attribute qualifier not allowed on pixel access")
		}
	}
	ch, err := c.channelQualifier()
	if err != nil {
		return err
	}
	e.Channel = ch
	c.emit(e)
	return nil
}

// peekAttributeQualifier looks for an attribute after the '.' at the
// cursor without consuming anything.
func (c *compiler) peekAttributeQualifier() (bytecode.Opcode, int) {
	pos := c.lex.Pos()
	c.lex.Advance(1)
	op, n := c.attributeName()
	c.lex.Seek(pos)
	return op, n
}

// ---------------------------------------------------------------------------
// Function calls
// ---------------------------------------------------------------------------

// call compiles a built-in function call. Control-flow functions are
// lowered to jumps.
func (c *compiler) call(op bytecode.Opcode) error {
	switch op {
	case bytecode.FnIf:
		return c.ifCall()
	case bytecode.FnWhile:
		return c.whileCall()
	case bytecode.FnDo:
		return c.doCall()
	case bytecode.FnFor:
		return c.forCall()
	case bytecode.FnChannel:
		return c.channelCall()
	case bytecode.FnDebug:
		return c.debugCall()
	}

	if op.Args() == 0 {
		if c.lex.Peek() == '(' {
			n, err := c.arguments()
			if err != nil {
				return err
			}
			if n != 0 {
				return c.errorf("%s() takes no arguments", op)
			}
		}
		if op == bytecode.FnRand {
			c.prog.Flags |= bytecode.FlagUsesRandom
		}
		c.emitOp(op)
		return nil
	}

	start := c.lex.Pos()
	n, err := c.arguments()
	if err != nil {
		return err
	}
	if n != op.Args() {
		return c.errorAt(start, fmt.Sprintf("wrong number of arguments: %s() takes %d, got %d", op, op.Args(), n))
	}
	c.emitOp(op)
	return nil
}

// arguments compiles a parenthesized, comma separated list of statement
// lists and returns how many there were.
func (c *compiler) arguments() (int, error) {
	if err := c.expect('('); err != nil {
		return 0, err
	}
	if c.lex.Peek() == ')' {
		c.lex.Advance(1)
		return 0, nil
	}
	n := 0
	for {
		if err := c.statementList(); err != nil {
			return n, err
		}
		n++
		if c.lex.Peek() != ',' {
			break
		}
		c.lex.Advance(1)
	}
	return n, c.expect(')')
}

// channelCall compiles channel(r[,g[,b[,k[,a]]]]). Missing arguments are
// zero.
func (c *compiler) channelCall() error {
	start := c.lex.Pos()
	n, err := c.arguments()
	if err != nil {
		return err
	}
	if n < 1 || n > bytecode.FnChannel.Args() {
		return c.errorAt(start, fmt.Sprintf("wrong number of arguments: channel() takes 1 to %d, got %d", bytecode.FnChannel.Args(), n))
	}
	for ; n < bytecode.FnChannel.Args(); n++ {
		c.emitNumber(0)
	}
	c.emitOp(bytecode.FnChannel)
	return nil
}

// debugCall compiles debug(expr). The argument's source text is kept for
// the report.
func (c *compiler) debugCall() error {
	if err := c.expect('('); err != nil {
		return err
	}
	c.lex.SkipSpace()
	start := c.lex.Pos()
	if err := c.statementList(); err != nil {
		return err
	}
	end := c.lex.Pos()
	if err := c.expect(')'); err != nil {
		return err
	}
	e := bytecode.NewElement(bytecode.FnDebug)
	e.Text = strings.TrimSpace(c.lex.Slice(start, end))
	c.prog.Flags |= bytecode.FlagUsesDebug
	c.emit(e)
	return nil
}
