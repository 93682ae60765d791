package compiler

import (
	"github.com/chazu/pixfx/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Control flow: if, while, do and for lowered to jumps
// ---------------------------------------------------------------------------

// separator consumes the ',' between the arguments of a control function.
func (c *compiler) separator(name string, want int) error {
	if c.lex.Peek() != ',' {
		return c.errorf("wrong number of arguments: %s() takes %d", name, want)
	}
	c.lex.Advance(1)
	return nil
}

// closeCall consumes the ')' ending a control function.
func (c *compiler) closeCall(name string, want int) error {
	if c.lex.Peek() == ',' {
		return c.errorf("wrong number of arguments: %s() takes %d", name, want)
	}
	return c.expect(')')
}

// ifCall compiles if(cond, then, else):
//
//	cond; IfZeroGoto else; then; Goto end; else: else; end:
func (c *compiler) ifCall() error {
	if err := c.expect('('); err != nil {
		return err
	}
	base := c.depth
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.separator("if", 3); err != nil {
		return err
	}
	jElse := c.emitJump(bytecode.CtlIfZeroGoto)
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.separator("if", 3); err != nil {
		return err
	}
	jEnd := c.emitJump(bytecode.CtlGoto)
	c.prog.PatchJump(jElse)
	c.depth = base
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.closeCall("if", 3); err != nil {
		return err
	}
	c.prog.PatchJump(jEnd)
	return nil
}

// whileCall compiles while(cond, body). The loop's value is the last
// body value, or 0 when the body never ran:
//
//	0; head: cond; IfZeroGoto end; ZeroStack; body; Goto head; end:
func (c *compiler) whileCall() error {
	if err := c.expect('('); err != nil {
		return err
	}
	base := c.depth
	c.emitNumber(0)
	head := c.prog.CurrentOffset()
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.separator("while", 2); err != nil {
		return err
	}
	jEnd := c.emitJump(bytecode.CtlIfZeroGoto)
	c.emitZeroStack(base)
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.closeCall("while", 2); err != nil {
		return err
	}
	back := c.emitJump(bytecode.CtlGoto)
	c.prog.PatchJumpTo(back, head)
	c.prog.PatchJump(jEnd)
	return nil
}

// doCall compiles do(body, cond), which runs body at least once and
// repeats while cond is non-zero:
//
//	head: ZeroStack; body; cond; IfNotZeroGoto head
func (c *compiler) doCall() error {
	if err := c.expect('('); err != nil {
		return err
	}
	base := c.depth
	head := c.prog.CurrentOffset()
	c.emitZeroStack(base)
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.separator("do", 2); err != nil {
		return err
	}
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.closeCall("do", 2); err != nil {
		return err
	}
	back := c.emitJump(bytecode.CtlIfNotZeroGoto)
	c.prog.PatchJumpTo(back, head)
	return nil
}

// forCall compiles for(init, cond, body) and for(init, cond, step, body):
//
//	init; ZeroStack; 0; head: cond; IfZeroGoto end;
//	ZeroStack; body; [ZeroStack; step;] Goto head; end:
//
// The step is written before the body but runs after it, so its code is
// moved behind the body once both are compiled. With a step the loop's
// value is the last step value.
func (c *compiler) forCall() error {
	if err := c.expect('('); err != nil {
		return err
	}
	base := c.depth
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.separator("for", 3); err != nil {
		return err
	}
	c.emitZeroStack(base)
	c.emitNumber(0)
	head := c.prog.CurrentOffset()
	if err := c.statementList(); err != nil {
		return err
	}
	if err := c.separator("for", 3); err != nil {
		return err
	}
	jEnd := c.emitJump(bytecode.CtlIfZeroGoto)
	c.emitZeroStack(base)

	third := c.prog.CurrentOffset()
	if err := c.statementList(); err != nil {
		return err
	}
	if c.lex.Peek() == ',' {
		c.lex.Advance(1)
		step := c.prog.CurrentOffset()
		c.emitZeroStack(base)
		if err := c.statementList(); err != nil {
			return err
		}
		// [step][ZeroStack body] becomes [body][ZeroStack step].
		c.moveAfter(third, step, step+1, c.prog.CurrentOffset())
	}
	if err := c.closeCall("for", 4); err != nil {
		return err
	}
	back := c.emitJump(bytecode.CtlGoto)
	c.prog.PatchJumpTo(back, head)
	c.prog.PatchJump(jEnd)
	return nil
}

// moveAfter reorders the elements [a,b) [b,m) [m,e) into [m,e) [b,m)
// [a,b), relocating jump targets. Each block is self-contained: its jumps
// only land inside it or at its end.
func (c *compiler) moveAfter(a, b, m, e int) {
	els := c.prog.Elements
	first := append([]bytecode.Element(nil), els[a:b]...)
	mid := append([]bytecode.Element(nil), els[b:m]...)
	last := append([]bytecode.Element(nil), els[m:e]...)

	relocate := func(block []bytecode.Element, from, to, shift int) {
		for i := range block {
			t := block[i].Target
			if block[i].Op.IsJump() && t >= from && t <= to {
				block[i].Target = t + shift
			}
		}
	}
	relocate(first, a, b, e-b)
	relocate(mid, b, m, (a+len(last))-b)
	relocate(last, m, e, a-m)

	n := copy(els[a:], last)
	n += copy(els[a+n:], mid)
	copy(els[a+n:], first)
}
