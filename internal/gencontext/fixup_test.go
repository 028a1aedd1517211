package gencontext

import (
	"testing"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// encoderFor returns an encoder holding the words of p
func encoderFor(t *testing.T, p *Program) *encoder.Encoder {
	t.Helper()
	e, err := encoder.New(p.Generation, p.SIMDWidth, nil)
	if err != nil {
		t.Fatal(err)
	}
	e.SetWords(p.Words)
	return e
}

// storeKernel jumps over an untyped store when the flag is set
func storeKernel(backward bool) *ir.Kernel {
	k := ir.NewKernel("store", 8)
	addr, val := k.NewRegister(), k.NewRegister()
	k.Emit(ir.Instruction{Op: ir.OpMov, Dst: ir.Reg(addr, ir.TypeUD), Src: []ir.Operand{ir.Imm(64, ir.TypeUD)}})
	k.Emit(ir.Instruction{Op: ir.OpMov, Dst: ir.Reg(val, ir.TypeUD), Src: []ir.Operand{ir.Imm(5, ir.TypeUD)}})
	if backward {
		k.Emit(ir.Instruction{Op: ir.OpLabel, Label: 7})
	} else {
		k.Emit(ir.Instruction{Op: ir.OpJmpi, Label: 7, Predicated: true})
	}
	k.Emit(ir.Instruction{Op: ir.OpStore, Src: []ir.Operand{ir.Reg(addr, ir.TypeUD), ir.Reg(val, ir.TypeUD)}, BTI: 1})
	if backward {
		k.Emit(ir.Instruction{Op: ir.OpJmpi, Label: 7, Predicated: true})
	} else {
		k.Emit(ir.Instruction{Op: ir.OpLabel, Label: 7})
	}
	k.Emit(ir.Instruction{Op: ir.OpEOT})
	return k
}

func findOp(ds []isa.Decoded, op isa.Opcode) int {
	for i, d := range ds {
		if d.Opcode == op {
			return i
		}
	}
	return -1
}

// TestGen6FenceWorkaround tests that every data port write is followed by a
// fence on Gen6 only and that jumps still land on the same instruction
func TestGen6FenceWorkaround(t *testing.T) {
	tests := []struct {
		name     string
		gen      engine.Generation
		backward bool
		fenced   bool
	}{
		{"gen6 forward", engine.Gen6, false, true},
		{"gen6 backward", engine.Gen6, true, true},
		{"gen7 forward", engine.Gen7, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := compile(t, tt.gen, storeKernel(tt.backward))
			ds := decodeAll(t, p)
			e := encoderFor(t, p)

			store := -1
			for i, w := range p.Words {
				if e.WritesMemory(w) {
					store = i
				}
			}
			if store < 0 {
				t.Fatalf("Expected an untyped write in\n%s", p.Disassemble())
			}
			next := ds[store+1]
			isFence := next.Opcode == isa.OpSend && next.SFID == isa.SFIDDataportRender && next.Desc.Function>>14&0xf == 7
			if isFence != tt.fenced {
				t.Fatalf("Fence after the write = %v, want %v\n%s", isFence, tt.fenced, p.Disassemble())
			}

			jmpi := findOp(ds, isa.OpJmpi)
			if jmpi < 0 {
				t.Fatal("Expected a jump")
			}
			want := store + 1
			if tt.fenced {
				want++
			}
			if tt.backward {
				// the label sits in front of the payload moves of the store
				want = store - 2
			}
			if got := e.JumpTarget(jmpi); got != want {
				t.Errorf("Expected the jump to reach word %d, got %d\n%s", want, got, p.Disassemble())
			}
		})
	}
}

func TestFenceDataPortWritesRemap(t *testing.T) {
	c := newContext(t, engine.Gen6, addKernel(8))
	e, err := encoder.New(engine.Gen6, 8, nil)
	if err != nil {
		t.Fatal(err)
	}
	e.Curr.NoMask = true
	e.Nop()
	e.UntypedWrite(isa.UD8GRF(4, 0), 1, 1)
	e.ScratchWrite(isa.UD8GRF(10, 0), 0, 1)
	e.Nop()
	out, remap := fenceDataPortWrites(c, e, e.Words())
	if len(out) != 6 {
		t.Fatalf("Expected two fences inserted, got %d words", len(out))
	}
	want := []int{0, 1, 3, 5, 6}
	for i, w := range want {
		if remap[i] != w {
			t.Errorf("remap[%d] = %d, want %d", i, remap[i], w)
		}
	}
}

// TestSplitThreeSource tests the leftover split on a hand widened word
func TestSplitThreeSource(t *testing.T) {
	tests := []struct {
		gen   engine.Generation
		split bool
	}{
		{engine.Gen7, true},
		{engine.Gen9, false},
	}
	for _, tt := range tests {
		t.Run(tt.gen.String(), func(t *testing.T) {
			c := newContext(t, tt.gen, addKernel(8))
			e, err := encoder.New(tt.gen, 8, nil)
			if err != nil {
				t.Fatal(err)
			}
			e.Mad(isa.F8GRF(10, 0), isa.F8GRF(12, 0), isa.F8GRF(14, 0), isa.F8GRF(16, 0))
			words := e.Words()
			l := e.Layout()
			exec16, _ := isa.EncodeExecSize(16)
			l.ExecSize.Set(&words[0], exec16)

			out, remap := splitThreeSource(c, e, words)
			if got := len(out) == 2; got != tt.split {
				t.Fatalf("Split = %v, want %v", got, tt.split)
			}
			if remap[1] != len(out) {
				t.Errorf("Expected the end to map to %d, got %d", len(out), remap[1])
			}
			if !tt.split {
				return
			}
			d, err := l.Decode(out[1])
			if err != nil {
				t.Fatal(err)
			}
			if d.ExecSize != 8 || d.Quarter != isa.QuarterQ2 || d.Dst.Nr != 11 || d.Src[2].Nr != 17 {
				t.Errorf("Unexpected second half %s", d)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	a := []int{0, 2, 3, 4}
	b := []int{0, 1, 2, 4, 5}
	want := []int{0, 2, 4, 5}
	got := compose(a, b)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("compose[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
