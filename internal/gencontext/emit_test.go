package gencontext

import (
	"errors"
	"math"
	"math/bits"
	"testing"
	"testing/quick"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// pinned operands live well above anything the allocator hands out first
const (
	pinA = 64 * isa.GRFSize
	pinB = 72 * isa.GRFSize
)

// qwordEdges are the operands multiply emulation gets wrong first: carries
// out of the low dword and out of the whole qword
var qwordEdges = []uint64{
	0, 1, 2, 0xffffffff, 0x100000000, 0x1ffffffff, 0xffffffff00000000,
	0x7fffffffffffffff, 0x8000000000000000, math.MaxUint64,
}

// edgePairs returns every pair of qwordEdges, chunked into width lanes
func edgePairs(width int) (as, bs [][]uint64) {
	var a, b []uint64
	for _, x := range qwordEdges {
		for _, y := range qwordEdges {
			a, b = append(a, x), append(b, y)
			if len(a) == width {
				as, bs = append(as, a), append(bs, b)
				a, b = nil, nil
			}
		}
	}
	if len(a) > 0 {
		for len(a) < width {
			a, b = append(a, math.MaxUint64), append(b, math.MaxUint64)
		}
		as, bs = append(as, a), append(bs, b)
	}
	return as, bs
}

// binaryKernel computes dst = a op b on two pinned qword vectors
func binaryKernel(op ir.Opcode, width int) (*ir.Kernel, ir.Register) {
	k := ir.NewKernel("mul", width)
	a, b, dst := k.NewRegister(), k.NewRegister(), k.NewRegister()
	k.Pin(a, pinA)
	k.Pin(b, pinB)
	k.Emit(ir.Instruction{Op: op, Dst: ir.Reg(dst, ir.TypeUL), Src: []ir.Operand{ir.Reg(a, ir.TypeUL), ir.Reg(b, ir.TypeUL)}})
	k.Emit(ir.Instruction{Op: ir.OpEOT})
	return k, dst
}

// binaryRunner compiles a binary kernel once and runs it on operand vectors
type binaryRunner struct {
	p   *Program
	dst uint32
}

func newBinaryRunner(t *testing.T, g engine.Generation, op ir.Opcode, width int) binaryRunner {
	t.Helper()
	k, dst := binaryKernel(op, width)
	p := compile(t, g, k)
	off, ok := p.Allocation.Offset(dst)
	if !ok {
		t.Fatal("Expected the result to be allocated")
	}
	return binaryRunner{p: p, dst: off}
}

func (r binaryRunner) run(t *testing.T, a, b []uint64) []uint64 {
	t.Helper()
	var m machine
	for i := range a {
		m.setUL(pinA+uint32(8*i), a[i])
		m.setUL(pinB+uint32(8*i), b[i])
	}
	m.run(t, r.p.Generation, r.p.Words)
	got := make([]uint64, len(a))
	for i := range got {
		got[i] = m.ul(r.dst + uint32(8*i))
	}
	return got
}

// checkProduct runs r over the edge pairs and random vectors, comparing every
// lane with half of the full 128-bit product
func checkProduct(t *testing.T, r binaryRunner, width int, high bool) {
	t.Helper()
	product := func(x, y uint64) uint64 {
		hi, lo := bits.Mul64(x, y)
		if high {
			return hi
		}
		return lo
	}
	lanes := func(a, b []uint64) bool {
		got := r.run(t, a, b)
		ok := true
		for i := range a {
			if want := product(a[i], b[i]); got[i] != want {
				t.Errorf("SIMD%d lane %d: 0x%x * 0x%x = 0x%x, got 0x%x", width, i, a[i], b[i], want, got[i])
				ok = false
			}
		}
		return ok
	}

	as, bs := edgePairs(width)
	for i := range as {
		lanes(as[i], bs[i])
	}

	random := func(a, b [16]uint64) bool {
		return lanes(a[:width], b[:width])
	}
	if err := quick.Check(random, &quick.Config{MaxCount: 64}); err != nil {
		t.Error(err)
	}
}

func TestI64Mul(t *testing.T) {
	tests := []struct {
		gen      engine.Generation
		width    int
		emulated bool
	}{
		{engine.GenCHV, 8, true},
		{engine.GenCHV, 16, true},
		{engine.GenBXT, 16, true},
		{engine.Gen9, 16, false},
		{engine.Gen8, 8, false},
	}
	for _, tt := range tests {
		t.Run(tt.gen.String(), func(t *testing.T) {
			k, _ := binaryKernel(ir.OpMul, tt.width)
			sel, err := newContext(t, tt.gen, k).Select()
			if err != nil {
				t.Fatal(err)
			}
			if got := sel.Instructions[0].Op == ir.OpI64Mul; got != tt.emulated {
				t.Fatalf("Emulated = %v, want %v\n%s", got, tt.emulated, sel)
			}
			checkProduct(t, newBinaryRunner(t, tt.gen, ir.OpMul, tt.width), tt.width, false)
		})
	}
}

func TestI64MulHi(t *testing.T) {
	tests := []struct {
		gen   engine.Generation
		width int
	}{
		{engine.GenCHV, 8},
		{engine.GenCHV, 16},
		{engine.GenBXT, 16},
		{engine.Gen9, 8},
		{engine.Gen9, 16},
	}
	for _, tt := range tests {
		t.Run(tt.gen.String(), func(t *testing.T) {
			checkProduct(t, newBinaryRunner(t, tt.gen, ir.OpMulHi, tt.width), tt.width, true)
		})
	}
}

func TestStackPointer(t *testing.T) {
	tests := []struct {
		gen     engine.Generation
		width   int
		pointer int
	}{
		{engine.Gen7, 8, 4},
		{engine.Gen7, 16, 4},
		{engine.GenCHV, 16, 8},
		{engine.Gen9, 8, 8},
	}
	const (
		tid       = 0x2a5 // only the low nine bits count
		stackSize = 256
	)
	for _, tt := range tests {
		t.Run(tt.gen.String(), func(t *testing.T) {
			k := ir.NewKernel("stack", tt.width)
			k.StackSize = stackSize
			k.PointerSize = tt.pointer
			k.StackPointer = k.NewRegister()
			k.Emit(ir.Instruction{Op: ir.OpEOT})
			p := compile(t, tt.gen, k)

			var m machine
			m.setUD(20, tid)
			m.run(t, p.Generation, p.Words)
			off, ok := p.Allocation.Offset(k.StackPointer)
			if !ok {
				t.Fatal("Expected the stack pointer to be allocated")
			}
			for i := 0; i < tt.width; i++ {
				want := uint64(((tid&threadIDMask)*tt.width + i) * stackSize)
				var got uint64
				if tt.pointer == 8 {
					got = m.ul(off + uint32(8*i))
				} else {
					got = uint64(m.ud(off + uint32(4*i)))
				}
				if got != want {
					t.Errorf("Lane %d: expected stack pointer %d, got %d", i, want, got)
				}
			}
		})
	}
}

func TestIndirectMov(t *testing.T) {
	tests := []struct {
		gen   engine.Generation
		width int
		moves int // a0 writes
	}{
		{engine.Gen7, 8, 4},
		{engine.Gen75, 16, 8},
		{engine.Gen8, 8, 2},
		{engine.Gen8, 16, 4},
		{engine.GenCHV, 8, 4},
	}
	for _, tt := range tests {
		t.Run(tt.gen.String(), func(t *testing.T) {
			k := ir.NewKernel("gather", tt.width)
			src, dst := k.NewRegister(), k.NewRegister()
			k.Pin(src, pinA)
			a0 := make([]uint16, tt.width)
			for i := range a0 {
				a0[i] = uint16(4 * (tt.width - 1 - i))
			}
			k.Emit(ir.Instruction{Op: ir.OpIndirectMov, Dst: ir.Reg(dst, ir.TypeUD), Src: []ir.Operand{ir.Reg(src, ir.TypeUD)}, A0: a0})
			k.Emit(ir.Instruction{Op: ir.OpEOT})
			p := compile(t, tt.gen, k)

			writes := 0
			for _, d := range decodeAll(t, p) {
				if d.Opcode == isa.OpMov && d.Dst.File == isa.FileARF {
					writes++
				}
			}
			if writes != tt.moves {
				t.Errorf("Expected %d address register writes, got %d\n%s", tt.moves, writes, p.Disassemble())
			}

			var m machine
			for i := 0; i < tt.width; i++ {
				m.setUD(pinA+uint32(4*i), uint32(100+i))
			}
			m.run(t, p.Generation, p.Words)
			off, _ := p.Allocation.Offset(dst)
			for i := 0; i < tt.width; i++ {
				if got, want := m.ud(off+uint32(4*i)), uint32(100+tt.width-1-i); got != want {
					t.Errorf("Lane %d: expected %d, got %d", i, want, got)
				}
			}
		})
	}
}

func TestSetA0Bounds(t *testing.T) {
	tests := []struct {
		name string
		a0   []uint16
	}{
		{"empty", nil},
		{"ragged", []uint16{0, 4, 8}},
		{"too many", make([]uint16, 20)},
		{"outside", []uint16{0, 4, 8, 4096}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := encoder.New(engine.Gen8, 8, nil)
			if err != nil {
				t.Fatal(err)
			}
			for _, set := range []func(*encoder.Encoder, []uint16) error{setA0Pairs, setA0Quads} {
				if err := set(e, tt.a0); !errors.Is(err, diag.ErrEncoding) {
					t.Errorf("Expected an encoding error, got %v", err)
				}
			}
			if e.Len() != 0 {
				t.Errorf("Expected nothing emitted, got %d words", e.Len())
			}
		})
	}
}

// barrierKernel is a single barrier with the given fences
func barrierKernel(flags ir.BarrierFlags) *ir.Kernel {
	k := ir.NewKernel("barrier", 16)
	k.Emit(ir.Instruction{Op: ir.OpBarrier, Barrier: flags})
	k.Emit(ir.Instruction{Op: ir.OpEOT})
	return k
}

type step struct {
	op   isa.Opcode
	sfid isa.SFID
}

func TestBarrierSequences(t *testing.T) {
	send := func(s isa.SFID) step { return step{isa.OpSend, s} }
	var (
		mov  = step{op: isa.OpMov}
		and  = step{op: isa.OpAnd}
		wait = step{op: isa.OpWait}
		gw   = send(isa.SFIDMessageGateway)
	)
	tests := []struct {
		name  string
		gen   engine.Generation
		flags ir.BarrierFlags
		want  []step
		mask  uint32
	}{
		{"gen6 global", engine.Gen6, ir.FenceGlobal | ir.FenceImage,
			[]step{send(isa.SFIDDataportRender), mov, and, gw, wait}, barrierIDMask},
		{"gen7 local", engine.Gen7, ir.FenceLocal,
			[]step{and, gw, wait}, barrierIDMask},
		{"gen7 image", engine.Gen7, ir.FenceGlobal | ir.FenceImage,
			[]step{send(isa.SFIDDataportData), mov, and, gw, wait, send(isa.SFIDSampler), mov}, barrierIDMask},
		{"gen9 image", engine.Gen9, ir.FenceGlobal | ir.FenceImage,
			[]step{send(isa.SFIDDataportData), mov, send(isa.SFIDDataportData), mov, and, gw, wait, send(isa.SFIDSampler), mov}, wideBarrierIDMask},
		{"gen7 image only", engine.Gen7, ir.FenceImage,
			[]step{and, gw, wait, send(isa.SFIDSampler), mov}, barrierIDMask},
		{"bxt global", engine.GenBXT, ir.FenceGlobal,
			[]step{send(isa.SFIDDataportData), mov, and, gw, wait}, wideBarrierIDMask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := compile(t, tt.gen, barrierKernel(tt.flags))
			ds := decodeAll(t, p)
			// the thread end adds a mov and a send
			if len(ds) != len(tt.want)+2 {
				t.Fatalf("Expected %d words, got %d\n%s", len(tt.want)+2, len(ds), p.Disassemble())
			}
			for i, w := range tt.want {
				d := ds[i]
				if d.Opcode != w.op || (w.op == isa.OpSend && d.SFID != w.sfid) {
					t.Errorf("Word %d: expected %s %s, got %s", i, w.op, w.sfid, d)
				}
				if d.Opcode == isa.OpAnd && uint32(d.Src[1].Imm) != tt.mask {
					t.Errorf("Expected barrier id mask 0x%x, got 0x%x", tt.mask, d.Src[1].Imm)
				}
				if d.Opcode == isa.OpWait && d.ExecSize != 1 {
					t.Errorf("Expected a single lane wait, got SIMD%d", d.ExecSize)
				}
			}
		})
	}
}

func TestCombinedBarrierFlush(t *testing.T) {
	tests := []struct {
		name  string
		gen   engine.Generation
		flags ir.BarrierFlags
		flush bool
	}{
		{"gen7 global", engine.Gen7, ir.FenceGlobal, false},
		{"gen75 global and image", engine.Gen75, ir.FenceGlobal | ir.FenceImage, true},
		{"gen8 global and local", engine.Gen8, ir.FenceGlobal | ir.FenceLocal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decodeAll(t, compile(t, tt.gen, barrierKernel(tt.flags)))[0]
			if d.Opcode != isa.OpSend || d.SFID != isa.SFIDDataportData {
				t.Fatalf("Expected a fence first, got %s", d)
			}
			if got := d.Desc.Function>>8&0x10 != 0; got != tt.flush {
				t.Errorf("Flush RW = %v, want %v", got, tt.flush)
			}
		})
	}
}

func TestEmitReload(t *testing.T) {
	e, err := encoder.New(engine.Gen7, 8, nil)
	if err != nil {
		t.Fatal(err)
	}
	emitReload(e, isa.UD8GRF(100, 0), isa.UD8GRF(20, 0), 7, 64)
	if err := e.Err(); err != nil {
		t.Fatal(err)
	}
	ds := decodeWords(t, e)
	want := []struct {
		dst    uint32
		rlen   uint32
		offset uint32
	}{{20, 4, 2}, {24, 2, 6}, {26, 1, 8}}
	if len(ds) != 1+len(want) || ds[0].Opcode != isa.OpMov {
		t.Fatalf("Expected a header move and %d reads, got %d words", len(want), len(ds))
	}
	for i, w := range want {
		d := ds[i+1]
		if d.Dst.Nr != w.dst || d.Desc.Rlen != w.rlen || d.Desc.Function&0xfff != w.offset {
			t.Errorf("Read %d: expected r%d rlen %d at %d, got %s", i, w.dst, w.rlen, w.offset, d)
		}
	}
}

func TestEmitSpill(t *testing.T) {
	tests := []struct {
		name string
		data uint32
		regs int
		want []isa.Opcode
	}{
		{"in place", 101, 4, []isa.Opcode{isa.OpMov, isa.OpSend}},
		{"copied", 40, 3, []isa.Opcode{isa.OpMov, isa.OpMov, isa.OpMov, isa.OpSend, isa.OpMov, isa.OpSend}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := encoder.New(engine.Gen8, 8, nil)
			if err != nil {
				t.Fatal(err)
			}
			emitSpill(e, isa.UD8GRF(100, 0), isa.UD8GRF(tt.data, 0), tt.regs, 0)
			ds := decodeWords(t, e)
			got := opcodes(ds)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Word %d: expected %s, got %s", i, tt.want[i], got[i])
				}
				if got[i] == isa.OpSend && !e.WritesMemory(e.Words()[i]) {
					t.Errorf("Word %d: expected a scratch write", i)
				}
			}
		})
	}
}

func decodeWords(t *testing.T, e *encoder.Encoder) []isa.Decoded {
	t.Helper()
	var out []isa.Decoded
	for i, w := range e.Words() {
		d, err := e.Layout().Decode(w)
		if err != nil {
			t.Fatalf("Word %d does not decode: %v", i, err)
		}
		out = append(out, d)
	}
	return out
}

// pressureKernel keeps n vectors live at once
func pressureKernel(n int) *ir.Kernel {
	k := ir.NewKernel("pressure", 8)
	regs := make([]ir.Register, n)
	for i := range regs {
		regs[i] = k.NewRegister()
		k.Emit(ir.Instruction{Op: ir.OpMov, Dst: ir.Reg(regs[i], ir.TypeUD), Src: []ir.Operand{ir.Imm(uint64(i), ir.TypeUD)}})
	}
	sum := k.NewRegister()
	k.Emit(ir.Instruction{Op: ir.OpAdd, Dst: ir.Reg(sum, ir.TypeUD), Src: []ir.Operand{ir.Reg(regs[0], ir.TypeUD), ir.Reg(regs[1], ir.TypeUD)}})
	for _, r := range regs[2:] {
		k.Emit(ir.Instruction{Op: ir.OpAdd, Dst: ir.Reg(sum, ir.TypeUD), Src: []ir.Operand{ir.Reg(sum, ir.TypeUD), ir.Reg(r, ir.TypeUD)}})
	}
	k.Emit(ir.Instruction{Op: ir.OpEOT})
	return k
}

func TestCompileSpills(t *testing.T) {
	p := compile(t, engine.Gen7, pressureKernel(140))
	if !p.Allocation.HasSpills() || p.ScratchSize == 0 {
		t.Fatalf("Expected spills, got %s", p)
	}
	e := encoderFor(t, p)
	reads, writes := 0, 0
	for i, d := range decodeAll(t, p) {
		if d.Opcode != isa.OpSend || d.Desc.Function&(1<<18) == 0 {
			continue
		}
		if e.WritesMemory(p.Words[i]) {
			writes++
		} else {
			reads++
		}
	}
	if reads == 0 || writes == 0 {
		t.Errorf("Expected scratch reads and writes, got %d and %d", reads, writes)
	}

	opts := engine.DefaultOptions()
	opts.SpillPolicy = engine.SpillNever
	c, err := New(engine.Gen7, pressureKernel(140), &opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compile(); !errors.Is(err, diag.ErrAllocation) {
		t.Errorf("Expected an allocation error without spilling, got %v", err)
	}
}
