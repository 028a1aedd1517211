// Completion: 100% - Register map complete
package regalloc

import (
	"github.com/google/btree"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// Unmapped is returned by Get for registers that have no offset
const Unmapped = ^uint32(0)

// reverseEntryBytes approximates one reverse index entry including tree overhead
const reverseEntryBytes = 24

type reverseEntry struct {
	offset uint32
	reg    ir.Register
}

func lessReverse(a, b reverseEntry) bool {
	return a.offset < b.offset
}

// RegisterMap maps virtual registers to offsets through a dense slice indexed
// by register id. An ordered reverse index from offset to register can be
// enabled for the rare lookups in the other direction.
type RegisterMap struct {
	offsets []uint32
	count   int
	reverse *btree.BTreeG[reverseEntry]
}

// NewRegisterMap returns a map with room for n registers
func NewRegisterMap(n int) *RegisterMap {
	m := &RegisterMap{}
	if n > 0 {
		m.grow(n - 1)
	}
	return m
}

// EnableReverseMap turns on the offset to register index. Registers already
// inserted are indexed too.
func (m *RegisterMap) EnableReverseMap() {
	if m.reverse != nil {
		return
	}
	m.reverse = btree.NewG[reverseEntry](8, lessReverse)
	for r, off := range m.offsets {
		if off != Unmapped {
			m.reverse.ReplaceOrInsert(reverseEntry{offset: off, reg: ir.Register(r)})
		}
	}
}

// HasReverseMap reports whether reverse lookups are available
func (m *RegisterMap) HasReverseMap() bool {
	return m.reverse != nil
}

func (m *RegisterMap) grow(idx int) {
	n := max(idx+1, 2*len(m.offsets))
	offsets := make([]uint32, n)
	copy(offsets, m.offsets)
	for i := len(m.offsets); i < n; i++ {
		offsets[i] = Unmapped
	}
	m.offsets = offsets
}

// Insert maps r to offset, overwriting any previous offset
func (m *RegisterMap) Insert(r ir.Register, offset uint32) {
	idx := int(r)
	if idx >= len(m.offsets) {
		m.grow(idx)
	}
	old := m.offsets[idx]
	if old == Unmapped {
		m.count++
	} else if m.reverse != nil {
		m.dropReverse(old, r)
	}
	m.offsets[idx] = offset
	if m.reverse != nil {
		m.reverse.ReplaceOrInsert(reverseEntry{offset: offset, reg: r})
	}
}

// Get returns the offset of r or Unmapped
func (m *RegisterMap) Get(r ir.Register) uint32 {
	if int(r) >= len(m.offsets) {
		return Unmapped
	}
	return m.offsets[r]
}

// Lookup returns the offset of r and whether it is mapped
func (m *RegisterMap) Lookup(r ir.Register) (uint32, bool) {
	off := m.Get(r)
	return off, off != Unmapped
}

// Contains reports whether r has an offset
func (m *RegisterMap) Contains(r ir.Register) bool {
	return m.Get(r) != Unmapped
}

// Erase removes r. Missing registers are ignored.
func (m *RegisterMap) Erase(r ir.Register) {
	if !m.Contains(r) {
		return
	}
	old := m.offsets[r]
	m.offsets[r] = Unmapped
	m.count--
	if m.reverse != nil {
		m.dropReverse(old, r)
	}
}

// dropReverse removes the reverse entry for offset only while it still
// names r; a later insert may have claimed the offset for another register.
func (m *RegisterMap) dropReverse(offset uint32, r ir.Register) {
	if e, ok := m.reverse.Get(reverseEntry{offset: offset}); ok && e.reg == r {
		m.reverse.Delete(e)
	}
}

// GetReverse returns the register most recently mapped to offset
func (m *RegisterMap) GetReverse(offset uint32) (ir.Register, bool) {
	if m.reverse == nil {
		return ir.NoRegister, false
	}
	e, ok := m.reverse.Get(reverseEntry{offset: offset})
	if !ok {
		return ir.NoRegister, false
	}
	return e.reg, true
}

// AscendReverse visits reverse entries by increasing offset until fn returns false
func (m *RegisterMap) AscendReverse(fn func(offset uint32, r ir.Register) bool) {
	if m.reverse == nil {
		return
	}
	m.reverse.Ascend(func(e reverseEntry) bool {
		return fn(e.offset, e.reg)
	})
}

// Len returns the number of mapped registers
func (m *RegisterMap) Len() int {
	return m.count
}

// Capacity returns the number of register ids addressable without growth
func (m *RegisterMap) Capacity() int {
	return len(m.offsets)
}

// Clear unmaps every register and keeps capacity
func (m *RegisterMap) Clear() {
	for i := range m.offsets {
		m.offsets[i] = Unmapped
	}
	m.count = 0
	if m.reverse != nil {
		m.reverse.Clear(false)
	}
}

// MemoryUsage estimates the bytes held by the map
func (m *RegisterMap) MemoryUsage() int {
	usage := cap(m.offsets) * 4
	if m.reverse != nil {
		usage += m.reverse.Len() * reverseEntryBytes
	}
	return usage
}
