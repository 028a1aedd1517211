// Completion: 100% - Spill and reload messages complete
package gencontext

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// scratchBlock returns the largest block message that fits n registers
func scratchBlock(n int) int {
	switch {
	case n >= 4:
		return 4
	case n >= 2:
		return 2
	}
	return 1
}

// emitScratchHeader copies the thread payload, which carries the scratch
// base, into the message header
func emitScratchHeader(e *encoder.Encoder, header isa.Register) {
	e.Mov(isa.UD8GRF(header.Nr, 0), isa.UD8GRF(0, 0))
}

// emitReload reads regs registers at a scratch byte offset into data
func emitReload(e *encoder.Encoder, header, data isa.Register, regs int, offset uint32) {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	emitScratchHeader(e, header)
	for done := 0; done < regs; {
		n := scratchBlock(regs - done)
		e.ScratchRead(isa.Offset(data, uint32(done), 0), header, offset+uint32(done)*isa.GRFSize, n)
		done += n
	}
}

// emitSpill writes regs registers of data to a scratch byte offset. A
// message takes its data from the registers right after the header, so any
// block not already there is copied down first.
func emitSpill(e *encoder.Encoder, header, data isa.Register, regs int, offset uint32) {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	emitScratchHeader(e, header)
	for done := 0; done < regs; {
		n := scratchBlock(regs - done)
		at := data.Nr + uint32(done)
		if at != header.Nr+1 {
			for i := 0; i < n; i++ {
				e.Mov(isa.UD8GRF(header.Nr+1+uint32(i), 0), isa.UD8GRF(at+uint32(i), 0))
			}
		}
		e.ScratchWrite(header, offset+uint32(done)*isa.GRFSize, n)
		done += n
	}
}
