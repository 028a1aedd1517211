// Completion: 100% - Stack pointer setup complete
package gencontext

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// threadID is r0.5 of the thread payload; its low nine bits number the
// hardware thread
var threadID = isa.UD1GRF(0, 20)

const threadIDMask = 0x1ff

// laneIDs are the signed nibbles 0..7 of a V immediate
const laneIDs = 0x76543210

// emitLaneID loads 0..simd-1 into the dword vector lane
func emitLaneID(e *encoder.Encoder, lane isa.Register, simd int) {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	lane = isa.Retype(lane, isa.TypeUD)
	e.Mov(lane, isa.ImmV(laneIDs))
	if simd == 16 {
		e.Add(isa.Offset(lane, 1, 0), lane, isa.ImmUD(8))
	}
}

// emitStackPointer computes sp = (threadID*simd + laneID) * stackSize for
// every lane. tmp is a scalar dword and lane a dword vector, both
// clobbered. With qword pointers the product is widened into sp last.
func emitStackPointer(e *encoder.Encoder, simd int, stackSize uint32, sp, tmp, lane isa.Register, qword bool) {
	emitLaneID(e, lane, simd)

	e.Push()
	defer e.Pop()
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	tmp = isa.Retype(isa.Scalar(tmp), isa.TypeUD)
	lane = isa.Retype(lane, isa.TypeUD)

	e.Curr.ExecWidth = 1
	e.And(tmp, threadID, isa.ImmUD(threadIDMask))
	e.Mul(tmp, tmp, isa.ImmUW(uint16(simd)))

	e.Curr.ExecWidth = simd
	e.Add(lane, lane, tmp)

	e.Curr.ExecWidth = 1
	e.Mov(tmp, isa.ImmUD(stackSize))

	e.Curr.ExecWidth = simd
	if !qword {
		e.Mul(isa.Retype(sp, isa.TypeUD), tmp, isa.UnpackedUW(lane))
		return
	}
	e.Mul(lane, tmp, isa.UnpackedUW(lane))
	e.Curr.ExecWidth = 8
	sp = isa.Retype(sp, isa.TypeUL)
	for q := 0; q < simd/8; q++ {
		e.Curr.Quarter = uint32(q)
		e.Mov(isa.Qn(sp, uint32(q)), isa.Qn(lane, uint32(q)))
	}
}
