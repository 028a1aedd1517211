// Completion: 100% - Emission and branch patching complete
package gencontext

import (
	"math"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/regalloc"
)

// imeThreadByte is the r0 byte a motion estimation header carries over
const imeThreadByte = 20

type jump struct {
	word  int // JMPI word index before fixups
	label int
	pos   int
}

// emitter turns the allocated stream into words
type emitter struct {
	c      *Context
	e      *encoder.Encoder
	a      *regalloc.Allocation
	k      *ir.Kernel
	labels map[int]int // label id -> word index before fixups
	jumps  []jump
}

type (
	unaryFn   func(e *encoder.Encoder, dst, src isa.Register) int
	binaryFn  func(e *encoder.Encoder, dst, src0, src1 isa.Register) int
	ternaryFn func(e *encoder.Encoder, dst, src0, src1, src2 isa.Register) int
)

var unaryOps = map[ir.Opcode]unaryFn{
	ir.OpMov: (*encoder.Encoder).Mov,
	ir.OpNot: (*encoder.Encoder).Not,
}

var binaryOps = map[ir.Opcode]binaryFn{
	ir.OpAdd: (*encoder.Encoder).Add,
	ir.OpMul: (*encoder.Encoder).Mul,
	ir.OpAnd: (*encoder.Encoder).And,
	ir.OpOr:  (*encoder.Encoder).Or,
	ir.OpXor: (*encoder.Encoder).Xor,
	ir.OpShl: (*encoder.Encoder).Shl,
	ir.OpShr: (*encoder.Encoder).Shr,
	ir.OpAsr: (*encoder.Encoder).Asr,
	ir.OpSel: (*encoder.Encoder).Sel,
}

var ternaryOps = map[ir.Opcode]ternaryFn{
	ir.OpMad: (*encoder.Encoder).Mad,
	ir.OpLrp: (*encoder.Encoder).Lrp,
}

// emit encodes the allocated kernel, runs the generation's fixups and
// resolves the jumps against the final word positions
func (c *Context) emit(a *regalloc.Allocation) ([]isa.Word, error) {
	e, err := encoder.New(c.Gen, c.SIMDWidth, c.trace)
	if err != nil {
		return nil, err
	}
	m := &emitter{c: c, e: e, a: a, k: a.Kernel, labels: make(map[int]int)}
	for pos := range m.k.Instructions {
		if err := m.instruction(pos, &m.k.Instructions[pos]); err != nil {
			return nil, atInstruction(err, pos)
		}
		if err := e.Err(); err != nil {
			return nil, atInstruction(err, pos)
		}
	}
	if e.Depth() != 0 {
		return nil, diag.Encoding("%d encoder states left pushed", e.Depth())
	}

	words := e.Words()
	remap := identity(len(words))
	for _, f := range c.v.fixups() {
		var r []int
		words, r = f(c, e, words)
		remap = compose(remap, r)
	}
	e.SetWords(words)

	for _, j := range m.jumps {
		target, ok := m.labels[j.label]
		if !ok {
			return nil, diag.Encoding("jump to undefined label L%d", j.label).AtInstruction(j.pos)
		}
		if err := e.PatchJmpi(remap[j.word], remap[target]); err != nil {
			return nil, atInstruction(err, j.pos)
		}
	}
	c.trace.Printf("emitted %d words", len(words))
	return e.Words(), nil
}

func (m *emitter) instruction(pos int, in *ir.Instruction) error {
	e := m.e
	width := in.Width(m.k)
	e.Push()
	defer e.Pop()
	e.Curr.ExecWidth = width
	if in.Predicated {
		e.Curr.Predicate = isa.PredicateNormal
	}

	if fn, ok := unaryOps[in.Op]; ok {
		return m.alu(in, width, func(d isa.Register, s []isa.Register) { fn(e, d, s[0]) })
	}
	if fn, ok := binaryOps[in.Op]; ok {
		if in.Op == ir.OpSel {
			e.Curr.Predicate = isa.PredicateNormal
		}
		return m.alu(in, width, func(d isa.Register, s []isa.Register) { fn(e, d, s[0], s[1]) })
	}
	if fn, ok := ternaryOps[in.Op]; ok {
		return m.alu(in, width, func(d isa.Register, s []isa.Register) { fn(e, d, s[0], s[1], s[2]) })
	}

	switch in.Op {
	case ir.OpNop:
		e.Nop()
	case ir.OpCmp:
		return m.alu(in, width, func(d isa.Register, s []isa.Register) { e.Cmp(uint32(in.Cond), d, s[0], s[1]) })
	case ir.OpLabel:
		if _, dup := m.labels[in.Label]; dup {
			return diag.Encoding("label L%d defined twice", in.Label)
		}
		m.labels[in.Label] = e.Len()
	case ir.OpJmpi:
		if idx := e.Jmpi(0); idx >= 0 {
			m.jumps = append(m.jumps, jump{word: idx, label: in.Label, pos: pos})
		}
	case ir.OpEOT:
		e.EOT()
	case ir.OpBarrier:
		return m.barrier(in)
	case ir.OpAtomicMsg:
		return m.atomic(in, width)
	case ir.OpLoad:
		return m.load(in, width)
	case ir.OpStoreMsg:
		payload, err := m.reg(in.Src[0], width)
		if err != nil {
			return err
		}
		e.UntypedWrite(payload, in.BTI, 1)
	case ir.OpIndirectMov:
		return m.indirect(in, width)
	case ir.OpI64Mul:
		return m.i64Mul(in, width)
	case ir.OpI64MulHi:
		return m.i64MulHi(in, width)
	case ir.OpStackSetup:
		return m.stack(in, width)
	case ir.OpReload, ir.OpSpill:
		return m.scratch(in)
	case ir.OpImeMsg:
		return m.ime(in, width)
	default:
		return diag.Encoding("%s reached emission without being lowered", in.Op)
	}
	return nil
}

// wide reports whether a SIMD16 instruction touches qword data and so has
// to be split into quarters to stay within two registers per operand
func wide(in *ir.Instruction, width int) bool {
	if width <= 8 {
		return false
	}
	if in.Dst.Kind != ir.KindNone && in.Dst.Type.Is64() {
		return true
	}
	for _, s := range in.Src {
		if s.Type.Is64() {
			return true
		}
	}
	return false
}

// quarter selects the lanes of quarter q of a mapped operand
func quarter(r isa.Register, q uint32) isa.Register {
	if q == 0 || r.File != isa.FileGRF || r.Indirect {
		return r
	}
	return isa.Qn(r, q)
}

// quarters runs fn once per eight lanes when width exceeds eight, with the
// quarter control set, and once otherwise
func (m *emitter) quarters(width int, fn func(q uint32)) {
	if width <= 8 {
		fn(0)
		return
	}
	m.e.Curr.ExecWidth = 8
	for q := 0; q < width/8; q++ {
		m.e.Curr.Quarter = uint32(q)
		fn(uint32(q))
	}
}

func (m *emitter) alu(in *ir.Instruction, width int, fn func(dst isa.Register, src []isa.Register)) error {
	src, err := m.sources(in, width)
	if err != nil {
		return err
	}
	t := in.Dst.Type
	if in.Dst.Kind == ir.KindNone && len(in.Src) > 0 {
		t = in.Src[0].Type
	}
	dst, err := m.dst(in.Dst, t, width)
	if err != nil {
		return err
	}
	if !wide(in, width) {
		fn(dst, src)
		return nil
	}
	m.quarters(width, func(q uint32) {
		qs := make([]isa.Register, len(src))
		for i, s := range src {
			qs[i] = quarter(s, q)
		}
		fn(quarter(dst, q), qs)
	})
	return nil
}

func (m *emitter) sources(in *ir.Instruction, width int) ([]isa.Register, error) {
	out := make([]isa.Register, len(in.Src))
	for i, s := range in.Src {
		r, err := m.reg(s, width)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// dst maps a destination, a missing one becomes the null register of type t
func (m *emitter) dst(o ir.Operand, t ir.Type, width int) (isa.Register, error) {
	if o.Kind == ir.KindNone {
		return isa.Retype(isa.Null(), isa.FromIR(t)), nil
	}
	return m.reg(o, width)
}

// reg maps an operand onto its allocated register file bytes. Vectors are
// described one register row at a time; a scalar or a single lane
// instruction reads a single element.
func (m *emitter) reg(o ir.Operand, width int) (isa.Register, error) {
	switch o.Kind {
	case ir.KindImmediate:
		return immediate(o)
	case ir.KindNone:
		return isa.Null(), nil
	}
	off, ok := m.a.Offset(o.Reg)
	if !ok {
		return isa.Register{}, diag.Allocation(int64(o.Reg), "%s has no register", o.Reg)
	}
	size := o.Type.Size()
	lanes := width
	if o.Scalar {
		lanes = 1
	}
	off += uint32(o.Part * size * lanes)
	t := isa.FromIR(o.Type)
	nr, sub := off/isa.GRFSize, off%isa.GRFSize

	var r isa.Register
	if o.Scalar || width == 1 {
		r = isa.Vec1(nr, sub, t)
	} else {
		n := min(width, isa.GRFSize/size)
		r = isa.Vec(nr, sub, t, n, n, 1)
	}
	r.Neg = o.Neg
	r.Abs = o.Abs
	return r, nil
}

// immediate encodes an immediate operand, folding a negate modifier into
// the value
func immediate(o ir.Operand) (isa.Register, error) {
	v := o.Imm
	if o.Neg {
		switch {
		case o.Type == ir.TypeF:
			v ^= 1 << 31
		case o.Type == ir.TypeDF:
			v ^= 1 << 63
		default:
			v = -v
		}
	}
	switch o.Type {
	case ir.TypeUD:
		return isa.ImmUD(uint32(v)), nil
	case ir.TypeD:
		return isa.ImmD(int32(v)), nil
	case ir.TypeUW, ir.TypeUB:
		return isa.ImmUW(uint16(v)), nil
	case ir.TypeW:
		return isa.ImmW(int16(v)), nil
	case ir.TypeB:
		return isa.ImmW(int16(int8(v))), nil
	case ir.TypeF:
		return isa.ImmF(math.Float32frombits(uint32(v))), nil
	case ir.TypeDF:
		return isa.ImmDF(math.Float64frombits(v)), nil
	case ir.TypeUL:
		return isa.ImmUL(v), nil
	case ir.TypeL:
		return isa.ImmL(int64(v)), nil
	}
	return isa.Register{}, diag.Unimplemented("%s immediates", o.Type)
}

func (m *emitter) barrier(in *ir.Instruction) error {
	fence, err := m.reg(in.Dst, 8)
	if err != nil {
		return err
	}
	payload, err := m.reg(in.Src[0], 8)
	if err != nil {
		return err
	}
	m.c.v.barrier(m.e, isa.Retype(fence, isa.TypeUD), isa.Retype(payload, isa.TypeUD), in.Barrier)
	return nil
}

// ime fills the payload one dword at a time, highest dword of each register
// first, copies the r0 byte the engine identifies the thread by and sends
func (m *emitter) ime(in *ir.Instruction, width int) error {
	dst, err := m.reg(in.Dst, width)
	if err != nil {
		return err
	}
	payload, err := m.reg(in.Src[0], width)
	if err != nil {
		return err
	}
	if payload.Subnr != 0 {
		return diag.Encoding("motion estimation payload at r%d.%d is not register aligned", payload.Nr, payload.Subnr)
	}

	e := m.e
	e.Push()
	e.Curr.ExecWidth = 1
	e.Curr.NoMask = true
	e.Curr.Predicate = isa.PredicateNone
	for i, s := range in.Src[1:] {
		val, err := m.reg(s, 1)
		if err != nil {
			e.Pop()
			return err
		}
		e.Mov(isa.UD1GRF(payload.Nr+uint32(i/8), uint32(7-i%8)*4), val)
	}
	e.Mov(isa.UB1GRF(payload.Nr, imeThreadByte), isa.UB1GRF(0, imeThreadByte))
	e.Pop()

	e.MotionEstimate(uint32(in.Motion), dst, payload, in.BTI)
	return nil
}

func (m *emitter) atomic(in *ir.Instruction, width int) error {
	dst, err := m.dst(in.Dst, ir.TypeUD, width)
	if err != nil {
		return err
	}
	payload, err := m.reg(in.Src[0], width)
	if err != nil {
		return err
	}
	mlen := uint32(in.Src[0].Spans() * width / 8)
	m.e.Atomic(uint32(in.Atomic), dst, payload, in.BTI, mlen)
	return nil
}

func (m *emitter) load(in *ir.Instruction, width int) error {
	dst, err := m.reg(in.Dst, width)
	if err != nil {
		return err
	}
	addr, err := m.reg(in.Src[0], width)
	if err != nil {
		return err
	}
	m.e.UntypedRead(isa.Retype(dst, isa.TypeUD), addr, in.BTI, 1)
	return nil
}

// indirect loads a0 with the byte address of every lane's element and
// moves through it
func (m *emitter) indirect(in *ir.Instruction, width int) error {
	src := in.Src[0]
	base, ok := m.a.Offset(src.Reg)
	if !ok {
		return diag.Allocation(int64(src.Reg), "%s has no register", src.Reg)
	}
	base += uint32(src.Part * src.Type.Size() * width)
	a0 := make([]uint16, 0, a0Entries)
	for _, off := range in.A0 {
		a0 = append(a0, uint16(base)+off)
	}
	for len(a0)%4 != 0 {
		a0 = append(a0, a0[len(a0)-1])
	}
	if err := m.c.v.setA0(m.e, a0); err != nil {
		return err
	}
	dst, err := m.reg(in.Dst, width)
	if err != nil {
		return err
	}
	ind := isa.Indirect(isa.FromIR(src.Type), 0, 0)
	ind.Neg, ind.Abs = src.Neg, src.Abs
	m.e.Mov(dst, ind)
	return nil
}

func (m *emitter) i64Mul(in *ir.Instruction, width int) error {
	dst, err := m.reg(in.Dst, width)
	if err != nil {
		return err
	}
	src, err := m.sources(in, width)
	if err != nil {
		return err
	}
	m.quarters(width, func(q uint32) {
		emitI64Mul(m.e, quarter(dst, q), quarter(src[0], q), quarter(src[1], q), quarter(src[2], q))
	})
	return nil
}

func (m *emitter) i64MulHi(in *ir.Instruction, width int) error {
	dst, err := m.reg(in.Dst, width)
	if err != nil {
		return err
	}
	src, err := m.sources(in, width)
	if err != nil {
		return err
	}
	m.quarters(width, func(q uint32) {
		emitFullMul(m.e, quarter(src[0], q), quarter(src[1], q), quarter(dst, q),
			quarter(src[2], q), quarter(src[3], q), quarter(src[4], q))
	})
	return nil
}

func (m *emitter) stack(in *ir.Instruction, width int) error {
	sp, err := m.reg(in.Dst, width)
	if err != nil {
		return err
	}
	src, err := m.sources(in, width)
	if err != nil {
		return err
	}
	emitStackPointer(m.e, width, m.k.StackSize, sp, src[0], src[1], in.Dst.Type.Is64())
	return nil
}

func (m *emitter) scratch(in *ir.Instruction) error {
	if !m.a.HasSpills() {
		return diag.Encoding("%s without a scratch header", in.Op)
	}
	header := isa.UD8GRF(m.a.HeaderOffset/isa.GRFSize, 0)
	op := in.Dst
	if in.Op == ir.OpSpill {
		op = in.Src[0]
	}
	data, err := m.reg(op, 8)
	if err != nil {
		return err
	}
	if in.Op == ir.OpReload {
		emitReload(m.e, header, data, op.Spans(), in.Offset)
	} else {
		emitSpill(m.e, header, data, op.Spans(), in.Offset)
	}
	return nil
}
