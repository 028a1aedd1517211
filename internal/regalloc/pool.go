// Completion: 100% - Free space pool complete
package regalloc

import (
	"github.com/google/btree"
)

// bankSize is the register file interleave between the two banks
const bankSize = 32

// noBank means no bank preference
const noBank = -1

type block struct {
	offset uint32
	size   uint32
}

func (b block) end() uint32 {
	return b.offset + b.size
}

// pool tracks the free bytes of a register file window as disjoint blocks
// ordered by offset. Adjacent blocks are merged on release.
type pool struct {
	free  *btree.BTreeG[block]
	base  uint32
	limit uint32
}

func newPool(base, limit uint32) *pool {
	p := &pool{
		free:  btree.NewG[block](8, func(a, b block) bool { return a.offset < b.offset }),
		base:  base,
		limit: limit,
	}
	if limit > base {
		p.free.ReplaceOrInsert(block{offset: base, size: limit - base})
	}
	return p
}

func bankOf(offset uint32) int {
	return int(offset/bankSize) & 1
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

// contains reports whether [offset, offset+size) is inside the managed window
func (p *pool) contains(offset, size uint32) bool {
	return offset >= p.base && offset+size <= p.limit
}

// available returns the total free bytes
func (p *pool) available() uint32 {
	var total uint32
	p.free.Ascend(func(b block) bool {
		total += b.size
		return true
	})
	return total
}

// allocate carves size bytes at the lowest offset aligned to align. With
// avoidBank set, a slot starting in the other bank is preferred; when none
// exists the lowest slot is taken anyway.
func (p *pool) allocate(size, align uint32, avoidBank int) (uint32, bool) {
	if avoidBank != noBank {
		if off, ok := p.find(size, align, avoidBank); ok {
			p.take(off, size)
			return off, true
		}
	}
	off, ok := p.find(size, align, noBank)
	if !ok {
		return 0, false
	}
	p.take(off, size)
	return off, true
}

func (p *pool) find(size, align uint32, avoidBank int) (uint32, bool) {
	var found uint32
	ok := false
	p.free.Ascend(func(b block) bool {
		for start := alignUp(b.offset, align); start+size <= b.end(); {
			if avoidBank == noBank || bankOf(start) != avoidBank {
				found, ok = start, true
				return false
			}
			start = alignUp((start/bankSize+1)*bankSize, align)
		}
		return true
	})
	return found, ok
}

// claim takes exactly [offset, offset+size) if it is entirely free
func (p *pool) claim(offset, size uint32) bool {
	var host block
	hit := false
	p.free.DescendLessOrEqual(block{offset: offset}, func(b block) bool {
		host, hit = b, true
		return false
	})
	if !hit || offset+size > host.end() {
		return false
	}
	p.take(offset, size)
	return true
}

// take removes [offset, offset+size) from the free block holding it
func (p *pool) take(offset, size uint32) {
	var host block
	p.free.DescendLessOrEqual(block{offset: offset}, func(b block) bool {
		host = b
		return false
	})
	p.free.Delete(host)
	if offset > host.offset {
		p.free.ReplaceOrInsert(block{offset: host.offset, size: offset - host.offset})
	}
	if end := offset + size; end < host.end() {
		p.free.ReplaceOrInsert(block{offset: end, size: host.end() - end})
	}
}

// release returns [offset, offset+size) and merges it with free neighbours
func (p *pool) release(offset, size uint32) {
	b := block{offset: offset, size: size}

	var prev block
	hasPrev := false
	p.free.DescendLessOrEqual(block{offset: offset}, func(x block) bool {
		prev, hasPrev = x, true
		return false
	})
	if hasPrev && prev.end() == b.offset {
		p.free.Delete(prev)
		b = block{offset: prev.offset, size: prev.size + b.size}
	}

	var next block
	hasNext := false
	p.free.AscendGreaterOrEqual(block{offset: b.end()}, func(x block) bool {
		next, hasNext = x, true
		return false
	})
	if hasNext && next.offset == b.end() {
		p.free.Delete(next)
		b.size += next.size
	}

	p.free.ReplaceOrInsert(b)
}
