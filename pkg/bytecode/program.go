package bytecode

import (
	"fmt"

	"github.com/chazu/pixfx/pkg/imaging"
)

// ProgramVersion is the current program format version.
// Increment when making incompatible changes to Element or Program.
const ProgramVersion uint16 = 1

// NullAddress marks an unset jump target.
const NullAddress = -1

// ProgramFlags records what a program needs from its environment.
type ProgramFlags uint16

const (
	// FlagNeedsStatistics indicates the program reads channel statistics.
	FlagNeedsStatistics ProgramFlags = 1 << 0

	// FlagNeedsHSL indicates the program reads hue, saturation or lightness.
	FlagNeedsHSL ProgramFlags = 1 << 1

	// FlagUsesRandom indicates the program calls rand().
	FlagUsesRandom ProgramFlags = 1 << 2

	// FlagUsesDebug indicates the program calls debug().
	FlagUsesDebug ProgramFlags = 1 << 3
)

// Element is one instruction of a compiled program.
type Element struct {
	Kind     Kind
	Op       Opcode
	Value    float64 // number literal, or the first colour value
	Value1   float64 // second colour value
	Value2   float64 // third colour value
	ArgCount int     // operands consumed from the stack

	Target int // jump destination (controls only), NullAddress if unset
	Slot   int // variable slot (CopyFrom, CopyTo)
	Depth  int // stack depth restored by ZeroStack

	Channel   imaging.Channel // channel qualifier, UndefinedChannel if none
	Attribute Opcode          // attribute qualifier on u, v, s and u[n]
	Push      bool            // whether the result is pushed
	Relative  bool            // p[dx,dy] rather than p{x,y}

	Text string // source excerpt, debug() only
}

// Variable is a user variable. Its index in Program.Variables is its slot
// in every runtime.
type Variable struct {
	Name   string
	Offset int // byte offset of the first assignment in the source
}

// Program is a compiled expression. It is immutable once compiled and
// shared read-only by every runtime.
type Program struct {
	Version    uint16
	Flags      ProgramFlags
	Expression string
	Elements   []Element
	Variables  []Variable
	MaxStack   int
}

// NewProgram creates an empty program for the given source.
func NewProgram(expression string) *Program {
	return &Program{
		Version:    ProgramVersion,
		Expression: expression,
		Elements:   make([]Element, 0, 32),
	}
}

// NewElement returns an element for op with its table arity and the
// default qualifiers. Everything except controls pushes a result.
func NewElement(op Opcode) Element {
	e := Element{
		Kind:      op.Kind(),
		Op:        op,
		ArgCount:  op.Args(),
		Target:    NullAddress,
		Channel:   imaging.UndefinedChannel,
		Attribute: OpNull,
		Push:      true,
	}
	switch op {
	case CtlGoto, CtlIfZeroGoto, CtlIfNotZeroGoto, CtlZeroStack:
		e.Push = false
	}
	return e
}

// Emit appends an element and returns its index.
func (p *Program) Emit(e Element) int {
	p.Elements = append(p.Elements, e)
	return len(p.Elements) - 1
}

// PatchJump patches a jump to go to the next element to be emitted.
func (p *Program) PatchJump(index int) {
	p.Elements[index].Target = len(p.Elements)
}

// PatchJumpTo patches a jump to go to a specific element.
func (p *Program) PatchJumpTo(index, target int) {
	p.Elements[index].Target = target
}

// CurrentOffset returns the index the next element will get.
func (p *Program) CurrentOffset() int {
	return len(p.Elements)
}

// AddVariable registers a user variable and returns its slot.
// If the name already exists, returns the existing slot.
func (p *Program) AddVariable(name string, offset int) int {
	if slot, ok := p.LookupVariable(name); ok {
		return slot
	}
	p.Variables = append(p.Variables, Variable{Name: name, Offset: offset})
	return len(p.Variables) - 1
}

// LookupVariable returns the slot of a user variable.
func (p *Program) LookupVariable(name string) (int, bool) {
	for i, v := range p.Variables {
		if v.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Validate checks the structural invariants a program must satisfy before
// it can run: every element's arity matches its opcode, jump targets and
// variable slots are in range, and the stack bound fits the program.
func (p *Program) Validate() error {
	if p.Version > ProgramVersion {
		return fmt.Errorf("bytecode: program version %d is newer than supported version %d", p.Version, ProgramVersion)
	}
	if len(p.Elements) == 0 {
		return fmt.Errorf("bytecode: empty program")
	}
	if p.MaxStack < 1 {
		return fmt.Errorf("bytecode: invalid stack bound %d", p.MaxStack)
	}
	// Every element pushes at most one value.
	if p.MaxStack > len(p.Elements)+1 {
		return fmt.Errorf("bytecode: stack bound %d exceeds program size %d", p.MaxStack, len(p.Elements))
	}
	for i, e := range p.Elements {
		kind := e.Op.Kind()
		if kind == KindNull || e.Kind != kind {
			return fmt.Errorf("bytecode: element %d: bad opcode %d", i, e.Op)
		}
		if e.ArgCount != e.Op.Args() {
			return fmt.Errorf("bytecode: element %d (%s): %d operands, want %d", i, e.Op, e.ArgCount, e.Op.Args())
		}
		switch e.Op {
		case FnIf, FnWhile, FnDo, FnFor:
			return fmt.Errorf("bytecode: element %d: unlowered %s", i, e.Op)
		case CtlGoto, CtlIfZeroGoto, CtlIfNotZeroGoto:
			if e.Target < 0 || e.Target > len(p.Elements) {
				return fmt.Errorf("bytecode: element %d (%s): target %d out of range", i, e.Op, e.Target)
			}
		case CtlCopyFrom, CtlCopyTo:
			if e.Slot < 0 || e.Slot >= len(p.Variables) {
				return fmt.Errorf("bytecode: element %d (%s): slot %d out of range", i, e.Op, e.Slot)
			}
		case CtlZeroStack:
			if e.Depth < 0 || e.Depth > p.MaxStack {
				return fmt.Errorf("bytecode: element %d: depth %d out of range", i, e.Depth)
			}
		}
		if e.Attribute != OpNull && e.Attribute.Kind() != KindAttribute {
			return fmt.Errorf("bytecode: element %d: bad attribute qualifier %d", i, e.Attribute)
		}
	}
	return nil
}
