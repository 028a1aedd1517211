// Completion: 100% - Liveness construction complete
package regalloc

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// Liveness is the interval store built from one instruction stream plus the
// per-register index into it
type Liveness struct {
	Store       *Store
	index       []int // register -> store index, -1 when unused
	MaxOperands int   // register operands of the busiest instruction
	MaxRegSize  uint32
	Holes       int
}

// IntervalOf returns the live interval of r, or nil when r is unused
func (lv *Liveness) IntervalOf(r ir.Register) *Interval {
	if int(r) >= len(lv.index) || lv.index[r] < 0 {
		return nil
	}
	return lv.Store.At(lv.index[r])
}

func (lv *Liveness) indexOf(r ir.Register) int {
	if int(r) >= len(lv.index) {
		return -1
	}
	return lv.index[r]
}

// slotSize rounds a register size up to what the register file hands out:
// powers of two below one GRF, whole GRFs above.
func slotSize(size uint32) uint32 {
	if size == 0 {
		return bankSize
	}
	if size >= bankSize {
		return alignUp(size, bankSize)
	}
	p := uint32(1)
	for p < size {
		p <<= 1
	}
	return p
}

// alignmentOf returns the byte alignment an interval must be placed at
func alignmentOf(iv *Interval) uint32 {
	align := min(slotSize(iv.Size), bankSize)
	if iv.TripleOpAlign && align < 16 {
		align = 16
	}
	return align
}

// BuildIntervals walks k once and records, for every register, the span of
// program points it is accessed at together with its size, block and
// 3-source constraints. A register fully redefined in the same block as its
// previous access leaves a hole between the two points. Registers live at
// the header of a loop are kept alive up to its backward jump.
func BuildIntervals(k *ir.Kernel) *Liveness {
	n := registerBound(k)
	lv := &Liveness{
		Store: NewStore(n + n/4),
		index: make([]int, n),
	}
	for i := range lv.index {
		lv.index[i] = -1
	}
	lastAccess := make([]int, n)
	lastBlock := make([]int, n)
	multiBlock := make([]bool, n)

	var holes []Interval

	for pos := range k.Instructions {
		in := &k.Instructions[pos]
		width := in.Width(k)
		operands := 0
		triple := in.Op.IsThreeSource()

		if in.Dst.IsReg() && lv.index[in.Dst.Reg] >= 0 {
			r := in.Dst.Reg
			q := lastAccess[r]
			_, pinned := k.Pinned[r]
			if !pinned && r != k.StackPointer && fullDefinition(k, in, width) &&
				lastBlock[r] == in.Block && pos-q > 1 {
				hole := NewInterval(r)
				hole.MinPoint = q
				hole.MaxPoint = pos
				hole.BlockID = in.Block
				hole.IsHole = true
				holes = append(holes, hole)
			}
		}

		in.Operands(func(op *ir.Operand, isDst bool) {
			operands++
			r := op.Reg
			idx := lv.index[r]
			if idx < 0 {
				idx = lv.Store.Add(NewInterval(r))
				lv.index[r] = idx
				lastBlock[r] = in.Block
			} else if lastBlock[r] != in.Block {
				multiBlock[r] = true
			}
			iv := lv.Store.At(idx)
			iv.Observe(pos)
			if size := uint32(op.Bytes(width)); size > iv.Size {
				iv.Size = size
			}
			if triple {
				iv.TripleOpAlign = true
			}
			lastAccess[r] = pos
			lastBlock[r] = in.Block
		})

		if triple && len(in.Src) == 3 && in.Src[1].IsReg() && in.Src[2].IsReg() {
			a, b := in.Src[1].Reg, in.Src[2].Reg
			if a != b {
				if iv := lv.Store.At(lv.index[a]); iv.ConflictReg == ir.NoRegister {
					iv.ConflictReg = b
				}
				if iv := lv.Store.At(lv.index[b]); iv.ConflictReg == ir.NoRegister {
					iv.ConflictReg = a
				}
			}
		}

		lv.MaxOperands = max(lv.MaxOperands, operands)
	}

	last := len(k.Instructions) - 1
	for r := range lv.index {
		idx := lv.index[r]
		if idx < 0 {
			continue
		}
		iv := lv.Store.At(idx)
		if !multiBlock[r] {
			iv.BlockID = lastBlock[r]
		}
		if ir.Register(r) == k.StackPointer && last >= 0 {
			iv.MinPoint = min(iv.MinPoint, 0)
			iv.MaxPoint = max(iv.MaxPoint, last)
			iv.BlockID = NoBlock
		}
		lv.MaxRegSize = max(lv.MaxRegSize, slotSize(iv.Size))
	}

	loops := backEdges(k)
	extendOverLoops(k, lv, loops)

	for _, h := range holes {
		if spansBackEdge(&h, loops) {
			continue
		}
		lv.Store.Add(h)
		lv.Holes++
	}
	lv.Store.SortByStart()
	lv.Store.SortByEnd()
	return lv
}

// loop is a backward jump at End to the label at Header
type loop struct {
	Header, End int
}

// backEdges returns every jmpi whose target label comes before it
func backEdges(k *ir.Kernel) []loop {
	labels := make(map[int]int)
	for pos := range k.Instructions {
		if in := &k.Instructions[pos]; in.Op == ir.OpLabel {
			labels[in.Label] = pos
		}
	}
	var loops []loop
	for pos := range k.Instructions {
		in := &k.Instructions[pos]
		if in.Op != ir.OpJmpi {
			continue
		}
		if l, ok := labels[in.Label]; ok && l < pos {
			loops = append(loops, loop{Header: l, End: pos})
		}
	}
	return loops
}

// liveIn returns the registers a loop body reads before fully defining them.
// Their values come around the back edge from the previous iteration.
func liveIn(k *ir.Kernel, l loop) map[ir.Register]bool {
	in := make(map[ir.Register]bool)
	defined := make(map[ir.Register]bool)
	for pos := l.Header; pos <= l.End; pos++ {
		inst := &k.Instructions[pos]
		for _, s := range inst.Src {
			if s.IsReg() && !defined[s.Reg] {
				in[s.Reg] = true
			}
		}
		if inst.Dst.IsReg() {
			r := inst.Dst.Reg
			if !defined[r] && !fullDefinition(k, inst, inst.Width(k)) {
				in[r] = true
			}
			defined[r] = true
		}
	}
	return in
}

// extendOverLoops stretches every interval live at a loop header to the
// loop's backward jump. Extending one interval can make it live at the
// header of an enclosing loop, so this runs until nothing changes.
func extendOverLoops(k *ir.Kernel, lv *Liveness, loops []loop) {
	if len(loops) == 0 {
		return
	}
	exposed := make([]map[ir.Register]bool, len(loops))
	for i, l := range loops {
		exposed[i] = liveIn(k, l)
	}
	for changed := true; changed; {
		changed = false
		for i, l := range loops {
			for r, idx := range lv.index {
				if idx < 0 {
					continue
				}
				iv := lv.Store.At(idx)
				across := iv.MinPoint < l.Header && iv.MaxPoint >= l.Header
				if !across && !exposed[i][ir.Register(r)] {
					continue
				}
				if iv.MaxPoint < l.End || iv.MinPoint > l.Header {
					iv.MaxPoint = max(iv.MaxPoint, l.End)
					iv.MinPoint = min(iv.MinPoint, l.Header)
					iv.BlockID = NoBlock
					changed = true
				}
			}
		}
	}
}

// spansBackEdge reports whether a hole covers a backward jump. The owner's
// dead value there may still be read on the next iteration.
func spansBackEdge(h *Interval, loops []loop) bool {
	for _, l := range loops {
		if h.MinPoint < l.End && l.End < h.MaxPoint {
			return true
		}
	}
	return false
}

// registerBound returns one past the highest register the kernel mentions
func registerBound(k *ir.Kernel) int {
	n := k.NumRegisters()
	for i := range k.Instructions {
		k.Instructions[i].Operands(func(op *ir.Operand, _ bool) {
			n = max(n, int(op.Reg)+1)
		})
	}
	if k.StackPointer != ir.NoRegister {
		n = max(n, int(k.StackPointer)+1)
	}
	return n
}

// fullDefinition reports whether in overwrites every byte of its destination
func fullDefinition(k *ir.Kernel, in *ir.Instruction, width int) bool {
	if in.Predicated || in.Reads(in.Dst.Reg) || in.Dst.Spans() > 1 {
		return false
	}
	return in.Dst.Scalar || width >= k.SIMDWidth
}
