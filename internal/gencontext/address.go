// Completion: 100% - Address register setup complete
package gencontext

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// a0Entries is the number of 16-bit entries of the address register
const a0Entries = 16

// maxA0Offset bounds the byte address a0 entries may hold
const maxA0Offset = 4096

func checkA0(a0 []uint16) error {
	if len(a0) == 0 || len(a0)%4 != 0 || len(a0) > a0Entries {
		return diag.Encoding("address register setup of %d entries, want a multiple of 4 up to %d", len(a0), a0Entries)
	}
	for i, v := range a0 {
		if v >= maxA0Offset {
			return diag.Encoding("a0.%d byte address %d is outside the register file", i, v)
		}
	}
	return nil
}

// setA0Pairs writes two a0 entries per single-lane dword move
func setA0Pairs(e *encoder.Encoder, a0 []uint16) error {
	if err := checkA0(a0); err != nil {
		return err
	}
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 1
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	for i := 0; i < len(a0); i += 2 {
		v := uint32(a0[i+1])<<16 | uint32(a0[i])
		e.Mov(isa.Retype(isa.Addr1(uint32(i)), isa.TypeUD), isa.ImmUD(v))
	}
	return nil
}

// setA0Quads writes four a0 entries per single-lane qword move
func setA0Quads(e *encoder.Encoder, a0 []uint16) error {
	if err := checkA0(a0); err != nil {
		return err
	}
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 1
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	for i := 0; i < len(a0); i += 4 {
		v := uint64(a0[i+3])<<48 | uint64(a0[i+2])<<32 | uint64(a0[i+1])<<16 | uint64(a0[i])
		e.Mov(isa.Retype(isa.Addr1(uint32(i)), isa.TypeUL), isa.ImmUL(v))
	}
	return nil
}
