// Completion: 100% - ALU and control flow helpers complete
package encoder

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// ALU helpers return the index of the (first) emitted word, or -1 when the
// operands break an encoding rule. The error is kept in Err.

// Mov generates MOV dst, src
func (e *Encoder) Mov(dst, src isa.Register) int { return e.alu1(isa.OpMov, dst, src) }

// Not generates NOT dst, src
func (e *Encoder) Not(dst, src isa.Register) int { return e.alu1(isa.OpNot, dst, src) }

// Add generates ADD dst, src0, src1
func (e *Encoder) Add(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpAdd, dst, src0, src1) }

// Mul generates MUL dst, src0, src1
func (e *Encoder) Mul(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpMul, dst, src0, src1) }

// And generates AND dst, src0, src1
func (e *Encoder) And(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpAnd, dst, src0, src1) }

// Or generates OR dst, src0, src1
func (e *Encoder) Or(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpOr, dst, src0, src1) }

// Xor generates XOR dst, src0, src1
func (e *Encoder) Xor(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpXor, dst, src0, src1) }

// Shl generates SHL dst, src0, src1
func (e *Encoder) Shl(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpShl, dst, src0, src1) }

// Shr generates SHR dst, src0, src1 (logical)
func (e *Encoder) Shr(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpShr, dst, src0, src1) }

// Asr generates ASR dst, src0, src1 (arithmetic)
func (e *Encoder) Asr(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpAsr, dst, src0, src1) }

// Sel generates SEL dst, src0, src1. Lanes whose predicate is set take src0.
func (e *Encoder) Sel(dst, src0, src1 isa.Register) int { return e.alu2(isa.OpSel, dst, src0, src1) }

// Cmp generates CMP.cond dst, src0, src1 and writes the flag of the current state
func (e *Encoder) Cmp(cond uint32, dst, src0, src1 isa.Register) int {
	w, err := e.build(isa.OpCmp, func(w *isa.Word) error {
		if cond == isa.CondNone || cond > isa.CondLE {
			return diag.Encoding("invalid compare condition %d", cond)
		}
		e.layout.CondMod.Set(w, cond)
		if err := e.setDst(w, dst); err != nil {
			return err
		}
		if err := e.setSrc0(w, src0); err != nil {
			return err
		}
		return e.setSrc1(w, src1)
	})
	return e.commit(w, err)
}

// Mad generates MAD dst, src0, src1, src2 (dst = src0 + src1*src2)
func (e *Encoder) Mad(dst, src0, src1, src2 isa.Register) int {
	return e.alu3(isa.OpMad, dst, src0, src1, src2)
}

// Lrp generates LRP dst, src0, src1, src2 (dst = src0*src1 + (1-src0)*src2)
func (e *Encoder) Lrp(dst, src0, src1, src2 isa.Register) int {
	return e.alu3(isa.OpLrp, dst, src0, src1, src2)
}

// Nop generates NOP
func (e *Encoder) Nop() int {
	w, err := e.build(isa.OpNop, func(*isa.Word) error { return nil })
	return e.commit(w, err)
}

// Jmpi generates a single-lane unmasked JMPI under the current predicate.
// distance is in bytes from the next instruction; PatchJmpi fixes it once
// the target is known.
func (e *Encoder) Jmpi(distance int32) int {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 1
	e.Curr.NoMask = true
	return e.alu2(isa.OpJmpi, isa.IP(), isa.IP(), isa.ImmD(distance))
}

// PatchJmpi points the JMPI at word index idx to the word index target
func (e *Encoder) PatchJmpi(idx, target int) error {
	if idx < 0 || idx >= len(e.words) {
		return diag.Encoding("jump index %d is outside the program", idx)
	}
	w := &e.words[idx]
	if op := isa.Opcode(e.layout.Opcode.Get(w)); op != isa.OpJmpi {
		return diag.Encoding("word %d is %s, not jmpi", idx, op)
	}
	distance := int32(target-(idx+1)) * isa.WordSize
	e.layout.Imm32.Set(w, uint32(distance))
	return nil
}

// JumpTarget returns the word index the JMPI at idx jumps to
func (e *Encoder) JumpTarget(idx int) int {
	distance := int32(e.layout.Imm32.Get(&e.words[idx]))
	return idx + 1 + int(distance/isa.WordSize)
}
