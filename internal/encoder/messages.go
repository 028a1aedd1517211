// Completion: 100% - Message sends complete
package encoder

import (
	"fmt"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// Function control layouts of the messages below.
//
// Data port:  7:0 binding table index, 13:8 message control, 17:14 message type
// Scratch:    18 scratch category, 17 write, 13:12 block size, 11:0 offset in GRFs
// Gateway:    2:0 sub-function, 15:14 notify
// Sampler:    7:0 binding table index, 11:8 sampler, 16:12 message type, 18:17 SIMD mode
// Motion:     7:0 binding table index, 14:13 message type
const (
	dpControlShift = 8
	dpTypeShift    = 14

	// data cache 0 and the Gen6 render cache
	dc0UntypedRead  = 5
	dc0UntypedAtom  = 6
	dc0Fence        = 7
	dc0UntypedWrite = 13

	// data cache 1
	dc1UntypedRead  = 1
	dc1UntypedAtom  = 2
	dc1UntypedWrite = 9

	fenceCommit  = 1 << 5 // message control bits
	fenceFlushRW = 1 << 4
	atomicSIMD8  = 1 << 4
	atomicReturn = 1 << 5

	scratchCategory = 1 << 18
	scratchWrite    = 1 << 17
	scratchBlock    = 12

	gatewayBarrier = 4
	gatewayNotify  = 1 << 14

	samplerCacheFlush = 0x1f << 12
	samplerSIMD32     = 3 << 17

	spawnerEOT = 0x10 // resource select, end of thread

	motionTypeShift = 13
	motionSIC       = 1
	motionIME       = 2
	motionFBR       = 3
	motionRlen      = 7
)

// MaxScratchOffset is the largest scratch byte offset a block message reaches
const MaxScratchOffset = 0xfff * isa.GRFSize

// setDescriptor writes the SFID and the immediate descriptor of a SEND
func (e *Encoder) setDescriptor(w *isa.Word, sfid isa.SFID, d isa.Descriptor) error {
	l := e.layout
	switch {
	case d.Mlen == 0 || !l.DescMlen.Fits(d.Mlen):
		return diag.Encoding("message length %d out of range", d.Mlen)
	case !l.DescRlen.Fits(d.Rlen):
		return diag.Encoding("response length %d out of range", d.Rlen)
	case !l.DescFunction.Fits(d.Function):
		return diag.Encoding("function control 0x%x does not fit %d bits", d.Function, l.DescFunction.Width())
	}
	ud, _ := l.ImmTypeCode(isa.TypeUD)
	l.CondMod.Set(w, uint32(sfid))
	l.Src1File.Set(w, uint32(isa.FileIMM))
	l.Src1Type.Set(w, ud)
	l.Imm32.Set(w, 0)
	l.DescFunction.Set(w, d.Function)
	l.DescHeader.Set(w, b2u(d.Header))
	l.DescRlen.Set(w, d.Rlen)
	l.DescMlen.Set(w, d.Mlen)
	l.DescEOT.Set(w, b2u(d.EOT))
	return nil
}

// Send generates SEND dst, payload with an immediate descriptor
func (e *Encoder) Send(sfid isa.SFID, dst, payload isa.Register, d isa.Descriptor) int {
	w, err := e.build(isa.OpSend, func(w *isa.Word) error {
		if payload.File != isa.FileGRF && payload.File != isa.FileMRF {
			return diag.Encoding("message payload must live in the register file, got %s", payload.File)
		}
		if err := e.setDst(w, dst); err != nil {
			return err
		}
		if err := e.setSrc0(w, payload); err != nil {
			return err
		}
		return e.setDescriptor(w, sfid, d)
	})
	return e.commit(w, err)
}

func nullUW() isa.Register {
	return isa.Retype(isa.Null(), isa.TypeUW)
}

func (e *Encoder) simd16() bool {
	return e.Curr.ExecWidth == 16
}

func (e *Encoder) lanesRegs() uint32 {
	if e.simd16() {
		return 2
	}
	return 1
}

// Barrier tells the message gateway this thread reached the barrier whose
// id sits in the payload header
func (e *Encoder) Barrier(payload isa.Register) int {
	return e.Send(isa.SFIDMessageGateway, isa.Null(), payload, isa.Descriptor{
		Function: gatewayBarrier | gatewayNotify,
		Mlen:     1,
	})
}

// Wait blocks until the notification register is signaled
func (e *Encoder) Wait() int {
	n0 := isa.Notification0(0)
	return e.alu1(isa.OpWait, n0, n0)
}

// Fence orders earlier memory accesses. With a null dst nothing is written
// back; otherwise dst receives the commit once the fence completes. flushRW
// also flushes the read-write image cache.
func (e *Encoder) Fence(dst, payload isa.Register, flushRW bool) int {
	control := uint32(0)
	rlen := uint32(0)
	if !dst.IsNull() {
		control |= fenceCommit
		rlen = 1
	}
	if flushRW {
		control |= fenceFlushRW
	}
	return e.Send(e.v.dataPort(), dst, payload, isa.Descriptor{
		Function: dc0Fence<<dpTypeShift | control<<dpControlShift,
		Header:   true,
		Mlen:     1,
		Rlen:     rlen,
	})
}

// FlushSamplerCache invalidates the sampler cache, dst receives the completion
func (e *Encoder) FlushSamplerCache(dst, payload isa.Register) int {
	return e.Send(isa.SFIDSampler, dst, payload, isa.Descriptor{
		Function: samplerCacheFlush | samplerSIMD32,
		Header:   true,
		Mlen:     1,
		Rlen:     1,
	})
}

func (e *Encoder) untypedType(dc0, dc1 uint32) uint32 {
	if e.v.untypedPort() == isa.SFIDDataportData1 {
		return dc1
	}
	return dc0
}

// Atomic performs an untyped atomic on surface bti. payload holds the
// addresses followed by the data operands, mlen registers in total. A null
// dst discards the old values.
func (e *Encoder) Atomic(function uint32, dst, payload isa.Register, bti uint8, mlen uint32) int {
	if function == 0 || function > 0xf {
		e.fail(diag.Encoding("invalid atomic function %d", function))
		return -1
	}
	control := function
	rlen := uint32(0)
	if !dst.IsNull() {
		control |= atomicReturn
		rlen = e.lanesRegs()
	}
	if !e.simd16() {
		control |= atomicSIMD8
	}
	return e.Send(e.v.untypedPort(), dst, payload, isa.Descriptor{
		Function: uint32(bti) | control<<dpControlShift | e.untypedType(dc0UntypedAtom, dc1UntypedAtom)<<dpTypeShift,
		Mlen:     mlen,
		Rlen:     rlen,
	})
}

// untypedControl enables the first elems channels and selects the SIMD mode
func (e *Encoder) untypedControl(elems int) (uint32, error) {
	if elems < 1 || elems > 4 {
		return 0, diag.Unimplemented("untyped access of %d elements", elems)
	}
	mode := uint32(2) // SIMD8
	if e.simd16() {
		mode = 1
	}
	return uint32(0xf&^(1<<elems-1)) | mode<<4, nil
}

// UntypedRead loads elems dwords per lane from surface bti at the addresses in addr
func (e *Encoder) UntypedRead(dst, addr isa.Register, bti uint8, elems int) int {
	control, err := e.untypedControl(elems)
	if err != nil {
		e.fail(err)
		return -1
	}
	return e.Send(e.v.untypedPort(), dst, addr, isa.Descriptor{
		Function: uint32(bti) | control<<dpControlShift | e.untypedType(dc0UntypedRead, dc1UntypedRead)<<dpTypeShift,
		Mlen:     e.lanesRegs(),
		Rlen:     uint32(elems) * e.lanesRegs(),
	})
}

// UntypedWrite stores elems dwords per lane; payload holds the addresses
// followed by the data
func (e *Encoder) UntypedWrite(payload isa.Register, bti uint8, elems int) int {
	control, err := e.untypedControl(elems)
	if err != nil {
		e.fail(err)
		return -1
	}
	return e.Send(e.v.untypedPort(), nullUW(), payload, isa.Descriptor{
		Function: uint32(bti) | control<<dpControlShift | e.untypedType(dc0UntypedWrite, dc1UntypedWrite)<<dpTypeShift,
		Mlen:     uint32(1+elems) * e.lanesRegs(),
	})
}

func scratchFunction(write bool, offset uint32, regs int) (uint32, error) {
	var block uint32
	switch regs {
	case 1:
		block = 0
	case 2:
		block = 1
	case 4:
		block = 3
	default:
		return 0, diag.Unimplemented("scratch block of %d registers", regs)
	}
	if offset%isa.GRFSize != 0 || offset > MaxScratchOffset {
		return 0, diag.Encoding("scratch offset %d is not a reachable register boundary", offset)
	}
	fc := scratchCategory | block<<scratchBlock | offset/isa.GRFSize
	if write {
		fc |= scratchWrite
	}
	return fc, nil
}

// ScratchRead reads regs registers (1, 2 or 4) at a scratch byte offset into dst
func (e *Encoder) ScratchRead(dst, header isa.Register, offset uint32, regs int) int {
	fc, err := scratchFunction(false, offset, regs)
	if err != nil {
		e.fail(err)
		return -1
	}
	return e.Send(e.v.dataPort(), isa.Retype(dst, isa.TypeUW), header, isa.Descriptor{
		Function: fc,
		Header:   true,
		Mlen:     1,
		Rlen:     uint32(regs),
	})
}

// ScratchWrite writes the regs registers that follow header to a scratch byte offset
func (e *Encoder) ScratchWrite(header isa.Register, offset uint32, regs int) int {
	fc, err := scratchFunction(true, offset, regs)
	if err != nil {
		e.fail(err)
		return -1
	}
	return e.Send(e.v.dataPort(), nullUW(), header, isa.Descriptor{
		Function: fc,
		Header:   true,
		Mlen:     uint32(1 + regs),
	})
}

// MotionEstimate sends a SIC, IME or FBR message to the motion estimation
// engine of surface bti. The caller stages the payload, whose first register
// is the header; dst receives the seven register writeback.
func (e *Encoder) MotionEstimate(msg uint32, dst, payload isa.Register, bti uint8) int {
	var mlen uint32
	switch msg {
	case motionSIC, motionFBR:
		mlen = 8
	case motionIME:
		mlen = 6
	default:
		e.fail(diag.Encoding("invalid motion estimation message %d", msg))
		return -1
	}
	if !engine.Supports(e.gen, engine.FeatureMotionEstimation) {
		e.fail(diag.Unsupported("motion estimation", e.gen.String()))
		return -1
	}
	return e.Send(isa.SFIDCheckRefine, isa.Retype(dst, isa.TypeUW), payload, isa.Descriptor{
		Function: uint32(bti) | msg<<motionTypeShift,
		Header:   true,
		Mlen:     mlen,
		Rlen:     motionRlen,
	})
}

// EOT copies the thread payload header to the last register and ends the thread
func (e *Encoder) EOT() int {
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	last := isa.UD8GRF(isa.MaxGRF-1, 0)
	if e.Mov(last, isa.UD8GRF(0, 0)) < 0 {
		return -1
	}
	return e.Send(isa.SFIDThreadSpawner, isa.Null(), last, isa.Descriptor{
		Function: spawnerEOT,
		Mlen:     1,
		EOT:      true,
	})
}

// WritesMemory reports whether w is a data port message that stores to
// memory or performs an atomic
func (e *Encoder) WritesMemory(w isa.Word) bool {
	l := e.layout
	if isa.Opcode(l.Opcode.Get(&w)) != isa.OpSend {
		return false
	}
	sfid := isa.SFID(l.CondMod.Get(&w))
	if sfid != e.v.dataPort() && sfid != e.v.untypedPort() {
		return false
	}
	fc := l.DescFunction.Get(&w)
	if fc&scratchCategory != 0 {
		return fc&scratchWrite != 0
	}
	switch fc >> dpTypeShift & 0xf {
	case dc0UntypedWrite, dc0UntypedAtom:
		return sfid != isa.SFIDDataportData1
	case dc1UntypedWrite, dc1UntypedAtom:
		return sfid == isa.SFIDDataportData1
	}
	return false
}

// String describes the encoder for diagnostics
func (e *Encoder) String() string {
	return fmt.Sprintf("%s encoder (%d words)", e.v.name(), len(e.words))
}
