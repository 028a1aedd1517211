// Completion: 100% - Allocation driver and spill rewriting complete
package regalloc

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// maxSpillRounds bounds how often spill code is inserted and the sweep rerun
const maxSpillRounds = 4

// Allocation is the final register assignment of a kernel
type Allocation struct {
	Kernel       *ir.Kernel // the stream to encode, with spill code inserted
	Offsets      *RegisterMap
	ScratchSize  uint32 // spill bytes per thread
	Spills       int
	HoleReuses   int
	HeaderOffset uint32 // byte offset of the scratch message header, Unmapped without spills
}

// Offset returns the register file byte offset of r
func (a *Allocation) Offset(r ir.Register) (uint32, bool) {
	return a.Offsets.Lookup(r)
}

// RegisterAt returns the register last placed at a byte offset
func (a *Allocation) RegisterAt(offset uint32) (ir.Register, bool) {
	return a.Offsets.GetReverse(offset)
}

// HasSpills reports whether spill code was inserted
func (a *Allocation) HasSpills() bool {
	return a.HeaderOffset != Unmapped
}

// Allocate places every virtual register of k. The first sweep uses the whole
// register file. If it spills, the top of the file is reserved for a scratch
// message header and per-instruction temporaries, spilled registers are
// rewritten to reload and spill through those temporaries, and the sweep is
// repeated on the rewritten stream.
func Allocate(k *ir.Kernel, cfg Config) (*Allocation, error) {
	lv := BuildIntervals(k)
	res, err := Sweep(k, lv, cfg, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(res.Spilled) == 0 {
		return &Allocation{
			Kernel:       k,
			Offsets:      res.Offsets,
			HoleReuses:   res.HoleReuses,
			HeaderOffset: Unmapped,
		}, nil
	}

	reserve := alignUp(engine.GRFSize+uint32(lv.MaxOperands)*lv.MaxRegSize, engine.GRFSize)
	header := cfg.FileSize - reserve
	cfg.Tracer.Printf("%d spills without reserve, reserving %d bytes at %d", len(res.Spilled), reserve, header)

	cur := k
	var scratch uint32
	spills := 0
	for round := 0; round < maxSpillRounds; round++ {
		res, err = Sweep(cur, lv, cfg, reserve, scratch)
		if err != nil {
			return nil, err
		}
		if len(res.Spilled) == 0 {
			return &Allocation{
				Kernel:       cur,
				Offsets:      res.Offsets,
				ScratchSize:  scratch,
				Spills:       spills,
				HoleReuses:   res.HoleReuses,
				HeaderOffset: header,
			}, nil
		}
		spills += len(res.Spilled)
		scratch = res.ScratchSize
		cur, err = rewriteSpills(cur, lv, res, header, reserve)
		if err != nil {
			return nil, err
		}
		lv = BuildIntervals(cur)
	}
	return nil, diag.Allocation(int64(res.Spilled[0]), "%s still spills after %d rounds of spill code", res.Spilled[0], maxSpillRounds)
}

type spillTemp struct {
	reg    ir.Register
	slot   uint32 // scratch byte offset
	size   uint32
	reload bool
	store  bool
}

// rewriteSpills replaces every access to a spilled register with a fresh
// temporary pinned into the reserve. Sources are reloaded before the
// instruction; destinations are written back after it, and reloaded first
// when the instruction does not overwrite all of them. A destination temporary
// always sits right after the header so header and data form one message.
func rewriteSpills(k *ir.Kernel, lv *Liveness, res *Result, header, reserve uint32) (*ir.Kernel, error) {
	out := k.CloneEmpty()
	dataBase := header + engine.GRFSize
	limit := header + reserve

	spilled := make(map[ir.Register]bool, len(res.Spilled))
	for _, r := range res.Spilled {
		spilled[r] = true
	}
	if spilled[k.StackPointer] {
		out.StackPointer = ir.NoRegister
	}

	for pos := range k.Instructions {
		in := k.Instructions[pos]
		width := in.Width(k)
		temps := make(map[ir.Register]*spillTemp)
		var order []ir.Register
		cursor := dataBase

		newTemp := func(r ir.Register) (*spillTemp, error) {
			iv := lv.IntervalOf(r)
			size := max(slotSize(iv.Size), engine.GRFSize)
			if cursor+size > limit {
				return nil, diag.Allocation(int64(r), "spill temporaries of instruction %d do not fit the %d byte reserve", pos, reserve).
					AtInstruction(pos)
			}
			slot, _ := res.Scratch.Lookup(r)
			t := &spillTemp{reg: out.NewRegister(), slot: slot, size: size}
			out.Pin(t.reg, cursor)
			cursor += size
			temps[r] = t
			order = append(order, r)
			return t, nil
		}

		used := reserveInUse(k, &in, dataBase, limit)
		if in.Dst.IsReg() && spilled[in.Dst.Reg] {
			if used > dataBase {
				return nil, diag.Allocation(int64(in.Dst.Reg), "spilled destination %s collides with earlier spill code", in.Dst.Reg).
					AtInstruction(pos)
			}
			t, err := newTemp(in.Dst.Reg)
			if err != nil {
				return nil, err
			}
			t.store = true
			t.reload = !fullDefinition(k, &in, width) || in.Dst.Spans() > 1
		}
		cursor = max(cursor, used)
		src := make([]ir.Operand, len(in.Src))
		copy(src, in.Src)
		for i := range src {
			if !src[i].IsReg() || !spilled[src[i].Reg] {
				continue
			}
			t, ok := temps[src[i].Reg]
			if !ok {
				var err error
				if t, err = newTemp(src[i].Reg); err != nil {
					return nil, err
				}
			}
			t.reload = true
		}
		in.Src = src

		for _, r := range order {
			if t := temps[r]; t.reload {
				out.Emit(reloadOf(t, in.Block))
			}
		}
		if in.Dst.IsReg() {
			if t, ok := temps[in.Dst.Reg]; ok {
				in.Dst.Reg = t.reg
			}
		}
		for i := range in.Src {
			if in.Src[i].IsReg() {
				if t, ok := temps[in.Src[i].Reg]; ok {
					in.Src[i].Reg = t.reg
				}
			}
		}
		out.Emit(in)
		for _, r := range order {
			if t := temps[r]; t.store {
				out.Emit(spillOf(t, in.Block))
			}
		}
	}
	return out, nil
}

// reserveInUse returns the end of the highest reserve slot already pinned to
// an operand of in, or dataBase when there is none
func reserveInUse(k *ir.Kernel, in *ir.Instruction, dataBase, limit uint32) uint32 {
	end := dataBase
	in.Operands(func(op *ir.Operand, _ bool) {
		if off, ok := k.Pinned[op.Reg]; ok && off >= dataBase && off < limit {
			end = max(end, off+uint32(op.Bytes(in.Width(k))))
		}
	})
	return alignUp(end, engine.GRFSize)
}

func messageOperand(t *spillTemp) ir.Operand {
	return ir.Payload(t.reg, ir.TypeUD, int(t.size/engine.GRFSize))
}

func reloadOf(t *spillTemp, block int) ir.Instruction {
	return ir.Instruction{
		Op:        ir.OpReload,
		Dst:       messageOperand(t),
		ExecWidth: 8,
		Block:     block,
		Offset:    t.slot,
	}
}

func spillOf(t *spillTemp, block int) ir.Instruction {
	return ir.Instruction{
		Op:        ir.OpSpill,
		Src:       []ir.Operand{messageOperand(t)},
		ExecWidth: 8,
		Block:     block,
		Offset:    t.slot,
	}
}
