// Completion: 100% - Selection and legalization complete
package gencontext

import (
	"fmt"
	"slices"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// selector rewrites the input stream into one every instruction of which
// the emitter can encode for the context's generation
type selector struct {
	c   *Context
	out *ir.Kernel
}

// Select returns a legalized copy of the kernel. Features the generation
// lacks are rejected; 64-bit multiplies, atomics, stores and the stack
// pointer are expanded into the forms emission knows. The input kernel is
// not modified.
func (c *Context) Select() (*ir.Kernel, error) {
	k := c.kernel
	out := k.CloneEmpty()
	out.SIMDWidth = c.SIMDWidth
	s := &selector{c: c, out: out}

	if err := s.checkPointers(); err != nil {
		return nil, err
	}
	if k.StackSize > 0 && k.StackPointer != ir.NoRegister {
		s.stackSetup()
	}
	for pos := range k.Instructions {
		in := k.Instructions[pos]
		in.Src = slices.Clone(in.Src)
		in.A0 = slices.Clone(in.A0)
		if in.ExecWidth > c.SIMDWidth {
			in.ExecWidth = c.SIMDWidth
		}
		if err := s.checkTypes(&in); err != nil {
			return nil, atInstruction(err, pos)
		}
		if err := s.lower(in); err != nil {
			return nil, atInstruction(err, pos)
		}
	}
	return out, nil
}

func (s *selector) unsupported(feature string) diag.CompilerError {
	return diag.Unsupported(feature, s.c.Gen.String())
}

func (s *selector) checkPointers() error {
	switch s.out.PointerSize {
	case 4:
		return nil
	case 8:
		if !s.c.Supports(engine.FeatureQwordPointers) {
			return s.unsupported("64-bit pointers")
		}
		return nil
	}
	return diag.Config("pointer size %d is not supported", s.out.PointerSize).
		WithSuggestion("use 4 or 8 byte pointers")
}

func (s *selector) checkType(t ir.Type, imm bool) error {
	switch {
	case t.IsInt64() && !s.c.Supports(engine.FeatureInt64):
		return s.unsupported("64-bit integer operands")
	case t == ir.TypeDF && !s.c.Supports(engine.FeatureFP64):
		return s.unsupported("double precision operands")
	case t == ir.TypeDF && imm && !s.c.Supports(engine.FeatureImm64):
		return s.unsupported("double precision immediates")
	case t == ir.TypeHF && !s.c.Gen.IsGen8Family():
		return s.unsupported("half precision operands")
	}
	return nil
}

func (s *selector) checkTypes(in *ir.Instruction) error {
	if in.Dst.Kind != ir.KindNone {
		if err := s.checkType(in.Dst.Type, false); err != nil {
			return err
		}
	}
	for _, src := range in.Src {
		if err := s.checkType(src.Type, src.IsImm()); err != nil {
			return err
		}
	}
	return nil
}

// stackStart returns the block the first instruction belongs to
func (s *selector) stackStart() int {
	if len(s.c.kernel.Instructions) == 0 {
		return 0
	}
	return s.c.kernel.Instructions[0].Block
}

// stackSetup computes the stack pointer before anything else runs
func (s *selector) stackSetup() {
	t := ir.TypeUD
	if s.out.PointerSize == 8 {
		t = ir.TypeUL
	}
	tmp, lane := s.fresh(), s.fresh()
	s.out.Emit(ir.Instruction{
		Op:    ir.OpStackSetup,
		Dst:   ir.Reg(s.out.StackPointer, t),
		Src:   []ir.Operand{ir.Scalar(tmp, ir.TypeUD), ir.Reg(lane, ir.TypeUD)},
		Block: s.stackStart(),
	})
}

// fresh hands out a register, skipping the stack pointer when the front end
// did not number it through the kernel
func (s *selector) fresh() ir.Register {
	r := s.out.NewRegister()
	if r == s.out.StackPointer {
		r = s.out.NewRegister()
	}
	return r
}

func (s *selector) emit(in ir.Instruction) {
	s.out.Emit(in)
}

// vector returns o as a vector register, moving immediates and scalars into
// a fresh one first
func (s *selector) vector(o ir.Operand, in *ir.Instruction) ir.Operand {
	if o.IsReg() && !o.Scalar && o.Spans() == 1 {
		return o
	}
	v := ir.Reg(s.fresh(), o.Type)
	s.emit(ir.Instruction{Op: ir.OpMov, Dst: v, Src: []ir.Operand{o}, ExecWidth: in.ExecWidth, Block: in.Block})
	return v
}

// scalar returns o as a register, moving an immediate into a scalar one
func (s *selector) scalar(o ir.Operand, in *ir.Instruction) ir.Operand {
	if !o.IsImm() {
		return o
	}
	v := ir.Scalar(s.fresh(), o.Type)
	s.emit(ir.Instruction{Op: ir.OpMov, Dst: v, Src: []ir.Operand{o}, ExecWidth: 1, Block: in.Block})
	return v
}

func (s *selector) temp(t ir.Type) ir.Operand {
	return ir.Reg(s.fresh(), t)
}

func wantSources(in *ir.Instruction, n int) error {
	if len(in.Src) != n {
		return diag.Encoding("%s takes %d sources, got %d", in.Op, n, len(in.Src))
	}
	return nil
}

var sourceCounts = map[ir.Opcode]int{
	ir.OpMov: 1, ir.OpNot: 1,
	ir.OpAdd: 2, ir.OpMul: 2, ir.OpMulHi: 2, ir.OpAnd: 2, ir.OpOr: 2, ir.OpXor: 2,
	ir.OpShl: 2, ir.OpShr: 2, ir.OpAsr: 2, ir.OpCmp: 2, ir.OpSel: 2,
	ir.OpMad: 3, ir.OpLrp: 3,
	ir.OpLoad: 1, ir.OpStore: 2, ir.OpIndirectMov: 1,
	ir.OpNop: 0, ir.OpLabel: 0, ir.OpJmpi: 0, ir.OpEOT: 0,
}

func (s *selector) lower(in ir.Instruction) error {
	if n, ok := sourceCounts[in.Op]; ok {
		if err := wantSources(&in, n); err != nil {
			return err
		}
	}
	switch in.Op {
	case ir.OpMul:
		if in.Dst.Type.IsInt64() && !s.c.Supports(engine.FeatureNativeInt64Mul) {
			return s.lowerI64Mul(in)
		}
	case ir.OpMulHi:
		return s.lowerMulHi(in)
	case ir.OpMad, ir.OpLrp:
		return s.lowerThreeSource(in)
	case ir.OpAtomic:
		return s.lowerAtomic(in)
	case ir.OpLoad:
		return s.lowerLoad(in)
	case ir.OpStore:
		return s.lowerStore(in)
	case ir.OpIndirectMov:
		return s.checkIndirect(in)
	case ir.OpBarrier:
		s.lowerBarrier(in)
		return nil
	case ir.OpIme:
		return s.lowerIme(in)
	case ir.OpCmp:
		if in.Cond < ir.CondEQ || in.Cond > ir.CondLE {
			return diag.Encoding("compare condition %d is invalid", in.Cond)
		}
	case ir.OpI64Mul, ir.OpI64MulHi, ir.OpAtomicMsg, ir.OpStoreMsg, ir.OpStackSetup, ir.OpReload, ir.OpSpill, ir.OpImeMsg:
		return diag.Encoding("%s is produced by selection and allocation, not accepted as input", in.Op)
	}
	if _, ok := sourceCounts[in.Op]; !ok {
		return diag.Unimplemented("selection of %s", in.Op)
	}
	s.emit(in)
	return nil
}

// aliased reports whether the destination of in is also one of its sources
func aliased(in *ir.Instruction) bool {
	return in.Dst.IsReg() && in.Reads(in.Dst.Reg)
}

// lowerI64Mul rewrites a 64-bit multiply into the dword product sequence.
// The sequence writes its destination before it is done reading the
// sources, so an aliased destination goes through a temporary.
func (s *selector) lowerI64Mul(in ir.Instruction) error {
	a := s.vector(in.Src[0], &in)
	b := s.vector(in.Src[1], &in)
	dst := in.Dst
	if aliased(&in) {
		dst = s.temp(in.Dst.Type)
	}
	s.emit(ir.Instruction{
		Op:         ir.OpI64Mul,
		Dst:        dst,
		Src:        []ir.Operand{a, b, s.temp(ir.TypeUL)},
		ExecWidth:  in.ExecWidth,
		Block:      in.Block,
		Predicated: in.Predicated,
	})
	s.copyBack(in, dst)
	return nil
}

// lowerMulHi expands the high half of an unsigned 64-bit product
func (s *selector) lowerMulHi(in ir.Instruction) error {
	if in.Dst.Type != ir.TypeUL {
		return diag.Unimplemented("mul_hi with a %s destination", in.Dst.Type).
			WithHelp("only the unsigned 64-bit high product is implemented")
	}
	a := s.vector(in.Src[0], &in)
	b := s.vector(in.Src[1], &in)
	dst := in.Dst
	if aliased(&in) {
		dst = s.temp(ir.TypeUL)
	}
	s.emit(ir.Instruction{
		Op:         ir.OpI64MulHi,
		Dst:        dst,
		Src:        []ir.Operand{a, b, s.temp(ir.TypeUL), s.temp(ir.TypeUL), s.temp(ir.TypeUL)},
		ExecWidth:  in.ExecWidth,
		Block:      in.Block,
		Predicated: in.Predicated,
	})
	s.copyBack(in, dst)
	return nil
}

func (s *selector) copyBack(in ir.Instruction, tmp ir.Operand) {
	if tmp.Reg == in.Dst.Reg {
		return
	}
	s.emit(ir.Instruction{
		Op:         ir.OpMov,
		Dst:        in.Dst,
		Src:        []ir.Operand{tmp},
		ExecWidth:  in.ExecWidth,
		Block:      in.Block,
		Predicated: in.Predicated,
	})
}

func (s *selector) lowerThreeSource(in ir.Instruction) error {
	if !s.c.v.threeSource(in.Dst.Type) {
		return s.unsupported(fmt.Sprintf("%s with %s operands", in.Op, in.Dst.Type))
	}
	for i := range in.Src {
		in.Src[i] = s.scalar(in.Src[i], &in)
	}
	s.emit(in)
	return nil
}

// lowerAtomic packs the address and data operands into one message payload
func (s *selector) lowerAtomic(in ir.Instruction) error {
	t := in.Dst.Type
	if in.Dst.Kind == ir.KindNone && len(in.Src) > 0 {
		t = in.Src[0].Type
	}
	if t.Is64() {
		if !s.c.Supports(engine.FeatureAtomicInt64) {
			return s.unsupported("64-bit atomics")
		}
		return diag.Unimplemented("64-bit atomic %s", in.Atomic)
	}
	if !s.c.v.atomicSupported(in.Atomic) {
		return s.unsupported(fmt.Sprintf("atomic %s", in.Atomic))
	}
	width := in.Width(s.out)
	if width != 8 && width != 16 {
		return diag.Encoding("atomics run at SIMD8 or SIMD16, not SIMD%d", width)
	}
	if err := wantSources(&in, 1+in.Atomic.Operands()); err != nil {
		return err
	}
	span := len(in.Src)
	p := s.fresh()
	for i, src := range in.Src {
		if src.Type.Size() != 4 {
			return diag.Unimplemented("atomic operand of type %s", src.Type)
		}
		s.emit(ir.Instruction{
			Op:        ir.OpMov,
			Dst:       ir.PayloadPart(p, src.Type, span, i),
			Src:       []ir.Operand{src},
			ExecWidth: in.ExecWidth,
			Block:     in.Block,
		})
	}
	s.emit(ir.Instruction{
		Op:         ir.OpAtomicMsg,
		Dst:        in.Dst,
		Src:        []ir.Operand{ir.Payload(p, ir.TypeUD, span)},
		ExecWidth:  in.ExecWidth,
		Block:      in.Block,
		Predicated: in.Predicated,
		Atomic:     in.Atomic,
		BTI:        in.BTI,
	})
	return nil
}

func (s *selector) lowerLoad(in ir.Instruction) error {
	if in.Dst.Type.Size() != 4 || in.Src[0].Type.Size() != 4 {
		return diag.Unimplemented("untyped load of %s from a %s address", in.Dst.Type, in.Src[0].Type)
	}
	in.Src[0] = s.vector(in.Src[0], &in)
	s.emit(in)
	return nil
}

// lowerStore builds the address and value payload of an untyped write
func (s *selector) lowerStore(in ir.Instruction) error {
	addr, val := in.Src[0], in.Src[1]
	if addr.Type.Size() != 4 || val.Type.Size() != 4 {
		return diag.Unimplemented("untyped store of %s to a %s address", val.Type, addr.Type)
	}
	p := s.fresh()
	for i, src := range []ir.Operand{addr, val} {
		s.emit(ir.Instruction{
			Op:        ir.OpMov,
			Dst:       ir.PayloadPart(p, src.Type, 2, i),
			Src:       []ir.Operand{src},
			ExecWidth: in.ExecWidth,
			Block:     in.Block,
		})
	}
	s.emit(ir.Instruction{
		Op:         ir.OpStoreMsg,
		Src:        []ir.Operand{ir.Payload(p, ir.TypeUD, 2)},
		ExecWidth:  in.ExecWidth,
		Block:      in.Block,
		Predicated: in.Predicated,
		BTI:        in.BTI,
	})
	return nil
}

func (s *selector) checkIndirect(in ir.Instruction) error {
	src := in.Src[0]
	if !src.IsReg() || src.Scalar {
		return diag.Encoding("indirect move needs a vector register source")
	}
	width := in.Width(s.out)
	if len(in.A0) != width || width > a0Entries {
		return diag.Encoding("indirect move at SIMD%d has %d address offsets", width, len(in.A0))
	}
	if width > 8 && (src.Type.Is64() || in.Dst.Type.Is64()) {
		return diag.Unimplemented("SIMD%d indirect move of 64-bit data", width)
	}
	s.emit(in)
	return nil
}

// lowerIme gives a motion estimation its payload and writeback registers.
// Sources are payload dwords in order; every one is read as a scalar.
func (s *selector) lowerIme(in ir.Instruction) error {
	if !s.c.Supports(engine.FeatureMotionEstimation) {
		return s.unsupported("motion estimation")
	}
	regs := in.Motion.PayloadRegs()
	if regs == 0 {
		return diag.Encoding("invalid motion estimation message %d", in.Motion)
	}
	if width := in.Width(s.out); width != 16 {
		return diag.Unimplemented("motion estimation at SIMD%d", width)
	}
	if !in.Dst.IsReg() {
		return diag.Encoding("motion estimation needs a writeback register")
	}
	if err := wantSources(&in, regs*8); err != nil {
		return err
	}
	for _, src := range in.Src {
		if src.Type.Size() != 4 {
			return diag.Encoding("motion estimation payload of type %s", src.Type)
		}
	}
	// two registers per part at SIMD16
	response := ir.Payload(in.Dst.Reg, ir.TypeUD, (ir.MotionResponseRegs+1)/2)
	payload := ir.Payload(s.fresh(), ir.TypeUD, regs/2)
	s.emit(ir.Instruction{
		Op:        ir.OpImeMsg,
		Dst:       response,
		Src:       append([]ir.Operand{payload}, in.Src...),
		ExecWidth: in.ExecWidth,
		Block:     in.Block,
		BTI:       in.BTI,
		Motion:    in.Motion,
	})
	return nil
}

// lowerBarrier gives the barrier its fence and payload registers
func (s *selector) lowerBarrier(in ir.Instruction) {
	in.ExecWidth = 8
	if !in.Dst.IsReg() {
		in.Dst = s.temp(ir.TypeUD)
	}
	if len(in.Src) == 0 || !in.Src[0].IsReg() {
		in.Src = []ir.Operand{s.temp(ir.TypeUD)}
	}
	s.emit(in)
}
