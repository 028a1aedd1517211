package ir

import (
	"strings"
	"testing"
)

func TestOperandBytes(t *testing.T) {
	tests := []struct {
		name  string
		op    Operand
		width int
		want  int
	}{
		{"ud vector simd8", Reg(0, TypeUD), 8, 32},
		{"ud vector simd16", Reg(0, TypeUD), 16, 64},
		{"ul vector simd16", Reg(0, TypeUL), 16, 128},
		{"uw scalar", Scalar(0, TypeUW), 16, 2},
		{"payload of three", Payload(0, TypeUD, 3), 8, 96},
		{"payload part", PayloadPart(0, TypeUD, 2, 1), 16, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Bytes(tt.width); got != tt.want {
				t.Errorf("Bytes(%d) = %d, want %d", tt.width, got, tt.want)
			}
		})
	}
}

// TestKernelRegisters tests sequential numbering and Emit bookkeeping
func TestKernelRegisters(t *testing.T) {
	k := NewKernel("k", 8)
	a := k.NewRegister()
	b := k.NewRegister()
	if a != 0 || b != 1 {
		t.Fatalf("Expected registers 0 and 1, got %d and %d", a, b)
	}

	k.Emit(Instruction{Op: OpMov, Dst: Reg(9, TypeUD), Src: []Operand{Imm(1, TypeUD)}})
	if c := k.NewRegister(); c != 10 {
		t.Errorf("Expected Emit to advance numbering past %%9, got %s", c)
	}

	clone := k.CloneEmpty()
	if len(clone.Instructions) != 0 || clone.NumRegisters() != k.NumRegisters() {
		t.Errorf("Unexpected clone: %d instructions, %d registers", len(clone.Instructions), clone.NumRegisters())
	}
}

func TestInstructionString(t *testing.T) {
	in := Instruction{Op: OpAdd, Dst: Reg(2, TypeD), Src: []Operand{Reg(0, TypeD), Imm(4, TypeD)}, Predicated: true}
	if got := in.String(); got != "(+f0) add %2:d, %0:d, 0x4:d" {
		t.Errorf("Unexpected %q", got)
	}
	k := NewKernel("dump", 16)
	k.Emit(in)
	if !strings.Contains(k.String(), "kernel dump simd16") {
		t.Errorf("Unexpected dump %q", k.String())
	}
}

func TestAtomicOperands(t *testing.T) {
	if AtomicInc.Operands() != 0 || AtomicAdd.Operands() != 1 || AtomicCmpXchg.Operands() != 2 {
		t.Error("Unexpected atomic operand counts")
	}
	if !OpMad.IsThreeSource() || OpAdd.IsThreeSource() {
		t.Error("Unexpected three-source classification")
	}
}
