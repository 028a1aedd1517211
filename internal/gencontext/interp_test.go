package gencontext

import (
	"encoding/binary"
	"testing"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// machine executes the ALU subset of decoded words over a register file so
// emission sequences can be checked by value. Sends are skipped.
type machine struct {
	grf  [isa.MaxGRF * isa.GRFSize]byte
	a0   [2 * a0Entries]byte
	flag uint32
}

func (m *machine) setUD(off uint32, v uint32) {
	binary.LittleEndian.PutUint32(m.grf[off:], v)
}

func (m *machine) setUL(off uint32, v uint64) {
	binary.LittleEndian.PutUint64(m.grf[off:], v)
}

func (m *machine) ud(off uint32) uint32 {
	return binary.LittleEndian.Uint32(m.grf[off:])
}

func (m *machine) ul(off uint32) uint64 {
	return binary.LittleEndian.Uint64(m.grf[off:])
}

func (m *machine) a0Entry(i uint32) uint32 {
	return uint32(binary.LittleEndian.Uint16(m.a0[2*i:]))
}

func signed(t isa.Type) bool {
	switch t {
	case isa.TypeB, isa.TypeW, isa.TypeD, isa.TypeL:
		return true
	}
	return false
}

// extend widens raw bits of type t to 64 bits
func extend(v uint64, t isa.Type) uint64 {
	bitsN := uint(t.Size() * 8)
	if bitsN == 64 {
		return v
	}
	v &= 1<<bitsN - 1
	if signed(t) && v>>(bitsN-1) == 1 {
		v |= ^uint64(0) << bitsN
	}
	return v
}

func (m *machine) load(addr uint32, size int) uint64 {
	var buf [8]byte
	copy(buf[:size], m.grf[addr:addr+uint32(size)])
	return binary.LittleEndian.Uint64(buf[:])
}

// src reads lane i of a source operand, extended to 64 bits
func (m *machine) src(r isa.Register, i int) uint64 {
	if r.File == isa.FileIMM {
		if r.Type == isa.TypeV {
			n := r.Imm >> (4 * uint(i%8)) & 0xf
			return uint64(int64(n<<60) >> 60)
		}
		return extend(r.Imm, r.Type)
	}
	size := r.Type.Size()
	var addr uint32
	if r.Indirect {
		addr = uint32(int32(m.a0Entry(r.A0Subnr+uint32(i))) + r.AddrImm)
	} else {
		vs, hs := isa.StrideElems(r.VStride), isa.StrideElems(r.HStride)
		w := 1 << r.Width
		row, col := i/w, i%w
		addr = r.Nr*isa.GRFSize + r.Subnr + uint32((row*vs+col*hs)*size)
	}
	v := extend(m.load(addr, size), r.Type)
	if r.Neg {
		v = -v
	}
	return v
}

func (m *machine) store(r isa.Register, i int, v uint64) {
	size := r.Type.Size()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	off := r.Subnr + uint32(i*isa.StrideElems(r.HStride)*size)
	switch {
	case r.File == isa.FileGRF:
		copy(m.grf[r.Nr*isa.GRFSize+off:], buf[:size])
	case r.File == isa.FileARF && r.Nr == isa.ARFAddress:
		copy(m.a0[off:], buf[:size])
	}
}

func (m *machine) enabled(d isa.Decoded, i int) bool {
	if d.Predicate == isa.PredicateNone {
		return true
	}
	bit := m.flag>>(uint(d.Quarter)*8+uint(i))&1 == 1
	return bit != d.PredInv
}

func shiftMask(d isa.Decoded) uint64 {
	if d.Dst.Type.Is64() || d.Src[0].Type.Is64() {
		return 63
	}
	return 31
}

func (m *machine) step(t *testing.T, d isa.Decoded) {
	t.Helper()
	switch d.Opcode {
	case isa.OpSend, isa.OpWait, isa.OpNop, isa.OpJmpi:
		return
	}
	results := make([]uint64, d.ExecSize)
	for i := 0; i < d.ExecSize; i++ {
		a := m.src(d.Src[0], i)
		var b uint64
		if d.NumSrc > 1 {
			b = m.src(d.Src[1], i)
		}
		switch d.Opcode {
		case isa.OpMov:
			results[i] = a
		case isa.OpNot:
			results[i] = ^a
		case isa.OpAdd:
			results[i] = a + b
		case isa.OpMul:
			results[i] = a * b
		case isa.OpAnd:
			results[i] = a & b
		case isa.OpOr:
			results[i] = a | b
		case isa.OpXor:
			results[i] = a ^ b
		case isa.OpShl:
			results[i] = a << (b & shiftMask(d))
		case isa.OpShr:
			bitsN := uint(d.Src[0].Type.Size() * 8)
			if bitsN < 64 {
				a &= 1<<bitsN - 1
			}
			results[i] = a >> (b & shiftMask(d))
		case isa.OpAsr:
			results[i] = uint64(int64(a) >> (b & shiftMask(d)))
		case isa.OpSel:
			if m.enabled(d, i) {
				results[i] = a
			} else {
				results[i] = b
			}
		case isa.OpCmp:
			var hit bool
			switch d.CondMod {
			case isa.CondZ:
				hit = a == b
			case isa.CondNZ:
				hit = a != b
			case isa.CondL:
				hit = int64(a) < int64(b)
			case isa.CondG:
				hit = int64(a) > int64(b)
			}
			bit := uint32(1) << (uint(d.Quarter)*8 + uint(i))
			if hit {
				m.flag |= bit
			} else {
				m.flag &^= bit
			}
		default:
			t.Fatalf("Interpreter does not execute %s", d.Opcode)
		}
	}
	if d.Opcode == isa.OpCmp || d.Dst.IsNull() {
		return
	}
	for i, v := range results {
		if d.Opcode == isa.OpSel || m.enabled(d, i) {
			m.store(d.Dst, i, v)
		}
	}
}

// run executes words in order, ignoring control flow
func (m *machine) run(t *testing.T, g engine.Generation, words []isa.Word) {
	t.Helper()
	l := isa.LayoutFor(g)
	for i, w := range words {
		d, err := l.Decode(w)
		if err != nil {
			t.Fatalf("Word %d does not decode: %v", i, err)
		}
		m.step(t, d)
	}
}
