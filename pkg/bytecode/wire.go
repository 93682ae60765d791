package bytecode

import (
	"fmt"

	"github.com/chazu/pixfx/pkg/imaging"
	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so equal programs encode to equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireProgram is the serialized form of a Program.
type wireProgram struct {
	Version    uint16         `cbor:"1,keyasint"`
	Flags      uint16         `cbor:"2,keyasint,omitempty"`
	Expression string         `cbor:"3,keyasint,omitempty"`
	Elements   []wireElement  `cbor:"4,keyasint"`
	Variables  []wireVariable `cbor:"5,keyasint,omitempty"`
	MaxStack   int            `cbor:"6,keyasint"`
}

type wireElement struct {
	Op        uint16  `cbor:"1,keyasint"`
	Value     float64 `cbor:"2,keyasint,omitempty"`
	Value1    float64 `cbor:"3,keyasint,omitempty"`
	Value2    float64 `cbor:"4,keyasint,omitempty"`
	ArgCount  int     `cbor:"5,keyasint,omitempty"`
	Target    int     `cbor:"6,keyasint,omitempty"`
	Slot      int     `cbor:"7,keyasint,omitempty"`
	Depth     int     `cbor:"8,keyasint,omitempty"`
	Channel   int     `cbor:"9,keyasint,omitempty"`
	Attribute uint16  `cbor:"10,keyasint,omitempty"`
	NoPush    bool    `cbor:"11,keyasint,omitempty"`
	Relative  bool    `cbor:"12,keyasint,omitempty"`
	Text      string  `cbor:"13,keyasint,omitempty"`
}

type wireVariable struct {
	Name   string `cbor:"1,keyasint"`
	Offset int    `cbor:"2,keyasint,omitempty"`
}

// MarshalProgram serializes a Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	w := wireProgram{
		Version:    p.Version,
		Flags:      uint16(p.Flags),
		Expression: p.Expression,
		Elements:   make([]wireElement, len(p.Elements)),
		MaxStack:   p.MaxStack,
	}
	for i, e := range p.Elements {
		// Target and Channel are stored off by one so their unset values
		// encode as zero and are omitted.
		w.Elements[i] = wireElement{
			Op:        uint16(e.Op),
			Value:     e.Value,
			Value1:    e.Value1,
			Value2:    e.Value2,
			ArgCount:  e.ArgCount,
			Target:    e.Target + 1,
			Slot:      e.Slot,
			Depth:     e.Depth,
			Channel:   int(e.Channel) + 1,
			Attribute: uint16(e.Attribute),
			NoPush:    !e.Push,
			Relative:  e.Relative,
			Text:      e.Text,
		}
	}
	for _, v := range p.Variables {
		w.Variables = append(w.Variables, wireVariable{Name: v.Name, Offset: v.Offset})
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalProgram deserializes and validates a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var w wireProgram
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	p := &Program{
		Version:    w.Version,
		Flags:      ProgramFlags(w.Flags),
		Expression: w.Expression,
		Elements:   make([]Element, len(w.Elements)),
		MaxStack:   w.MaxStack,
	}
	for i, we := range w.Elements {
		op := Opcode(we.Op)
		p.Elements[i] = Element{
			Kind:      op.Kind(),
			Op:        op,
			Value:     we.Value,
			Value1:    we.Value1,
			Value2:    we.Value2,
			ArgCount:  we.ArgCount,
			Target:    we.Target - 1,
			Slot:      we.Slot,
			Depth:     we.Depth,
			Channel:   imaging.Channel(we.Channel - 1),
			Attribute: Opcode(we.Attribute),
			Push:      !we.NoPush,
			Relative:  we.Relative,
			Text:      we.Text,
		}
	}
	for _, v := range w.Variables {
		p.Variables = append(p.Variables, Variable{Name: v.Name, Offset: v.Offset})
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
