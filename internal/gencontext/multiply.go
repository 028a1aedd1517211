// Completion: 100% - 64-bit multiply emulation complete
package gencontext

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

func lowUD(r isa.Register) isa.Register  { return isa.UnpackedUD(r, 0) }
func highUD(r isa.Register) isa.Register { return isa.UnpackedUD(r, 1) }

// emitI64Mul computes dst = src0*src1 mod 2^64 from dword products. With
// a = ah*2^32 + al and b = bh*2^32 + bl only al*bl, al*bh and ah*bl reach
// the low 64 bits. tmp holds each cross product in turn. Operands are qword
// vectors of at most eight lanes.
func emitI64Mul(e *encoder.Encoder, dst, src0, src1, tmp isa.Register) {
	dst = isa.Retype(dst, isa.TypeUL)
	tmp = isa.Retype(tmp, isa.TypeUL)
	s0l, s1l := lowUD(src0), lowUD(src1)

	e.Mul(dst, s0l, s1l)

	s1h := lowUD(tmp)
	e.Mov(s1h, highUD(src1))
	e.Mul(tmp, s0l, s1h)
	e.Shl(tmp, tmp, isa.ImmUD(32))
	e.Add(dst, dst, tmp)

	s0h := lowUD(tmp)
	e.Mov(s0h, highUD(src0))
	e.Mul(tmp, s0h, s1l)
	e.Shl(tmp, tmp, isa.ImmUD(32))
	e.Add(dst, dst, tmp)
}

// emitFullMul computes the 128-bit product of two unsigned qword vectors
// into dstH:dstL from the four dword products. t0 and t1 are qword
// temporaries; the high halves of the sources are staged in t0 and dstL
// while those are still free.
func emitFullMul(e *encoder.Encoder, src0, src1, dstH, dstL, t0, t1 isa.Register) {
	dstH = isa.Retype(dstH, isa.TypeUL)
	dstL = isa.Retype(dstL, isa.TypeUL)
	t0 = isa.Retype(t0, isa.TypeUL)
	t1 = isa.Retype(t1, isa.TypeUL)
	s0l, s1l := lowUD(src0), lowUD(src1)
	s0h, s1h := lowUD(t0), lowUD(dstL)

	e.Mov(s0h, highUD(src0))
	e.Mov(s1h, highUD(src1))

	e.Mul(dstH, s0h, s1h) // hh
	e.Mul(t1, s0h, s1l)   // hl
	e.Mul(t0, s0l, s1h)   // lh
	e.Mul(dstL, s0l, s1l) // ll

	// middle = hl + lo(lh) + hi(ll), dstH += hi(lh) + hi(middle)
	e.Add(t1, t1, lowUD(t0))
	e.Shr(t0, t0, isa.ImmUD(32))
	e.Add(dstH, dstH, lowUD(t0))
	e.Mov(lowUD(t0), highUD(dstL))
	e.Add(t1, t1, lowUD(t0))

	e.Shl(t0, t1, isa.ImmUD(32))
	e.Mov(highUD(dstL), highUD(t0))
	e.Shr(t0, t1, isa.ImmUD(32))
	e.Add(dstH, dstH, t0)
}
