// Completion: 100% - Barrier sequences complete
package gencontext

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// Barrier id bits of r0.2
const (
	barrierIDMask     = 0x0f000000
	wideBarrierIDMask = 0x8f000000
)

// barrierID is r0.2 of the thread payload
var barrierID = isa.UD1GRF(0, 8)

// emitFence orders memory and waits for the commit by reading it back
func emitFence(e *encoder.Encoder, fence isa.Register, flushRW bool) {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	e.Fence(fence, fence, flushRW)
	e.Mov(fence, fence)
}

// emitBarrierWait signals the gateway with this thread's barrier id and
// blocks until every thread of the group arrived. Only payload.2 is read so
// SIMD8 is enough.
func emitBarrierWait(e *encoder.Encoder, payload isa.Register, mask uint32) {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	e.And(payload, barrierID, isa.ImmUD(mask))
	e.Barrier(payload)
	e.Curr.ExecWidth = 1
	e.Wait()
}

func emitSamplerFlush(e *encoder.Encoder, fence isa.Register) {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	e.FlushSamplerCache(fence, fence)
	e.Mov(fence, fence)
}

// emitCombinedBarrier fences global memory, flushing the read-write image
// cache in the same message when image memory is synchronized too. An
// image-only barrier relies on the sampler flush alone.
func emitCombinedBarrier(e *encoder.Encoder, fence, payload isa.Register, flags ir.BarrierFlags, mask uint32) {
	image := flags&ir.FenceImage != 0
	if flags&ir.FenceGlobal != 0 {
		emitFence(e, fence, image)
	}
	emitBarrierWait(e, payload, mask)
	if image {
		emitSamplerFlush(e, fence)
	}
}

// emitSplitBarrier fences global and image memory in separate steps
func emitSplitBarrier(e *encoder.Encoder, fence, payload isa.Register, flags ir.BarrierFlags, mask uint32) {
	image := flags&ir.FenceImage != 0
	if flags&ir.FenceGlobal != 0 {
		emitFence(e, fence, false)
	}
	if image {
		emitFence(e, fence, true)
	}
	emitBarrierWait(e, payload, mask)
	if image {
		emitSamplerFlush(e, fence)
	}
}
