package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	// Ensure every defined opcode has metadata
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode %d has no metadata", op)
		}
		if op != OpNull && op.Kind() == KindNull {
			t.Errorf("Opcode %s has no kind", op)
		}
	}
	if got := GetOpcodeInfo(opcodeCount + 3).Name; !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("out of range opcode name = %q", got)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	order := [][]Opcode{
		{OpLogicalOr},
		{OpLogicalAnd},
		{OpBitOr},
		{OpBitAnd},
		{OpEqual, OpNotEqual},
		{OpLess, OpLessEqual, OpGreater, OpGreaterEqual},
		{OpLeftShift, OpRightShift},
		{OpAdd, OpSubtract},
		{OpMultiply, OpDivide, OpModulus},
		{OpPlus, OpNegate},
		{OpPower},
		{OpLogicalNot, OpBitNot},
	}
	prev := PrecedenceTernary
	for _, level := range order {
		p := level[0].Precedence()
		if p <= prev {
			t.Errorf("%s precedence %d should exceed %d", level[0], p, prev)
		}
		for _, op := range level[1:] {
			if op.Precedence() != p {
				t.Errorf("%s precedence %d, want %d", op, op.Precedence(), p)
			}
		}
		prev = p
	}
}

func TestKindRanges(t *testing.T) {
	tests := []struct {
		op   Opcode
		want Kind
	}{
		{OpAdd, KindOperator},
		{OpBitNot, KindOperator},
		{OpNumber, KindNumber},
		{OpColor, KindColor},
		{ConstPi, KindConstant},
		{FnAbs, KindFunction},
		{FnFor, KindFunction},
		{AttrMean, KindAttribute},
		{SymLuminance, KindSymbol},
		{CtlZeroStack, KindControl},
		{opcodeCount, KindNull},
	}
	for _, tt := range tests {
		if got := tt.op.Kind(); got != tt.want {
			t.Errorf("%s.Kind() = %s, want %s", tt.op, got, tt.want)
		}
	}
}

func TestLookups(t *testing.T) {
	if op, ok := LookupFunction("atan2"); !ok || op != FnAtan2 || op.Args() != 2 {
		t.Errorf("LookupFunction(atan2) = %v, %v", op, ok)
	}
	if _, ok := LookupFunction("u"); ok {
		t.Error("u should not resolve as a plain function")
	}
	if op, ok := LookupSymbol("u"); !ok || op != SymU {
		t.Errorf("LookupSymbol(u) = %v, %v", op, ok)
	}
	if op, ok := LookupAttribute("page.width"); !ok || op != AttrPageWidth {
		t.Errorf("LookupAttribute(page.width) = %v, %v", op, ok)
	}
	if op, ok := LookupConstant("quantumrange"); !ok || ConstantValue(op) != 65535 {
		t.Errorf("LookupConstant(quantumrange) = %v, %v", op, ok)
	}
	if ConstantValue(ConstPhi) != Phi {
		t.Errorf("phi = %v", ConstantValue(ConstPhi))
	}
	if !AttrStandardDeviation.IsStatistic() || AttrW.IsStatistic() {
		t.Error("IsStatistic misclassifies attributes")
	}
}

func TestBuiltinsSorted(t *testing.T) {
	b := Builtins()
	if len(b) < 100 {
		t.Fatalf("only %d builtins", len(b))
	}
	for i := 1; i < len(b); i++ {
		if b[i-1].Name > b[i].Name {
			t.Fatalf("builtins not sorted at %q, %q", b[i-1].Name, b[i].Name)
		}
	}
}
