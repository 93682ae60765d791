package bytecode

import (
	"fmt"
	"strings"

	"github.com/chazu/pixfx/pkg/imaging"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; fx program v%d\n", p.Version))
	sb.WriteString(fmt.Sprintf("; Flags: 0x%04X", p.Flags))
	if p.Flags&FlagNeedsStatistics != 0 {
		sb.WriteString(" [STATISTICS]")
	}
	if p.Flags&FlagNeedsHSL != 0 {
		sb.WriteString(" [HSL]")
	}
	if p.Flags&FlagUsesRandom != 0 {
		sb.WriteString(" [RANDOM]")
	}
	if p.Flags&FlagUsesDebug != 0 {
		sb.WriteString(" [DEBUG]")
	}
	sb.WriteString("\n")
	if p.Expression != "" {
		sb.WriteString(fmt.Sprintf("; Expression: %s\n", p.Expression))
	}
	sb.WriteString(fmt.Sprintf("; Max stack: %d\n", p.MaxStack))

	// Variables
	if len(p.Variables) > 0 {
		sb.WriteString(fmt.Sprintf("; Variables (%d): ", len(p.Variables)))
		for i, v := range p.Variables {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.Name)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for i := range p.Elements {
		sb.WriteString(p.DisassembleElement(i))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleElement formats a single element.
func (p *Program) DisassembleElement(index int) string {
	e := p.Elements[index]
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%04d  %-10s ", index, e.Kind))

	switch e.Kind {
	case KindNumber:
		sb.WriteString(fmt.Sprintf("%-14g", e.Value))
	case KindColor:
		sb.WriteString(fmt.Sprintf("color(%g,%g,%g)", e.Value, e.Value1, e.Value2))
	case KindControl:
		switch e.Op {
		case CtlGoto, CtlIfZeroGoto, CtlIfNotZeroGoto:
			sb.WriteString(fmt.Sprintf("%-14s -> %04d", e.Op, e.Target))
		case CtlCopyFrom, CtlCopyTo:
			name := fmt.Sprintf("#%d", e.Slot)
			if e.Slot >= 0 && e.Slot < len(p.Variables) {
				name = p.Variables[e.Slot].Name
			}
			sb.WriteString(fmt.Sprintf("%-14s %s", e.Op, name))
		case CtlZeroStack:
			sb.WriteString(fmt.Sprintf("%-14s depth=%d", e.Op, e.Depth))
		default:
			sb.WriteString(e.Op.String())
		}
	default:
		name := e.Op.String()
		switch e.Op {
		case FnP, FnUP:
			if e.Relative {
				name += "[]"
			} else {
				name += "{}"
			}
		}
		sb.WriteString(name)
		if e.Attribute != OpNull {
			sb.WriteString("." + e.Attribute.String())
		}
		if e.Channel != imaging.UndefinedChannel {
			sb.WriteString("." + e.Channel.String())
		}
		if e.ArgCount > 0 {
			sb.WriteString(fmt.Sprintf("  (%d args)", e.ArgCount))
		}
		if e.Text != "" {
			sb.WriteString(fmt.Sprintf("  ; %q", e.Text))
		}
	}
	if !e.Push && e.Kind != KindControl {
		sb.WriteString("  [no push]")
	}
	return strings.TrimRight(sb.String(), " ")
}
