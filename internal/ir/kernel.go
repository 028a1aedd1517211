// Completion: 100% - Kernel container complete
package ir

import (
	"fmt"
	"strings"
)

// Kernel is one compilation unit: an ordered instruction stream plus the
// registers whose location is fixed by the hardware thread payload.
type Kernel struct {
	Name         string
	SIMDWidth    int
	StackSize    uint32   // per-lane stack bytes, zero when the kernel has no stack
	StackPointer Register // NoRegister when the kernel has no stack
	PointerSize  int      // 4 or 8
	Instructions []Instruction
	Pinned       map[Register]uint32 // register -> fixed register file byte offset
	next         Register
}

// NewKernel creates an empty kernel
func NewKernel(name string, simdWidth int) *Kernel {
	return &Kernel{
		Name:         name,
		SIMDWidth:    simdWidth,
		StackPointer: NoRegister,
		PointerSize:  4,
		Pinned:       make(map[Register]uint32),
	}
}

// NewRegister hands out the next virtual register
func (k *Kernel) NewRegister() Register {
	r := k.next
	k.next++
	return r
}

// NumRegisters returns how many virtual registers have been handed out
func (k *Kernel) NumRegisters() int {
	return int(k.next)
}

// Pin fixes r at a register file byte offset
func (k *Kernel) Pin(r Register, offset uint32) {
	k.Pinned[r] = offset
}

// Emit appends an instruction and returns its position
func (k *Kernel) Emit(in Instruction) int {
	k.Instructions = append(k.Instructions, in)
	k.noteRegisters(&k.Instructions[len(k.Instructions)-1])
	return len(k.Instructions) - 1
}

// noteRegisters keeps next above every register the stream mentions
func (k *Kernel) noteRegisters(in *Instruction) {
	in.Operands(func(op *Operand, _ bool) {
		if op.Reg >= k.next {
			k.next = op.Reg + 1
		}
	})
}

// CloneEmpty returns a kernel with the same header and register numbering
// but no instructions
func (k *Kernel) CloneEmpty() *Kernel {
	c := &Kernel{
		Name:         k.Name,
		SIMDWidth:    k.SIMDWidth,
		StackSize:    k.StackSize,
		StackPointer: k.StackPointer,
		PointerSize:  k.PointerSize,
		Instructions: make([]Instruction, 0, len(k.Instructions)),
		Pinned:       make(map[Register]uint32, len(k.Pinned)),
		next:         k.next,
	}
	for r, off := range k.Pinned {
		c.Pinned[r] = off
	}
	return c
}

// MaxBlock returns the highest block id used
func (k *Kernel) MaxBlock() int {
	m := 0
	for i := range k.Instructions {
		if k.Instructions[i].Block > m {
			m = k.Instructions[i].Block
		}
	}
	return m
}

func (k *Kernel) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kernel %s simd%d", k.Name, k.SIMDWidth)
	if k.StackSize > 0 {
		fmt.Fprintf(&sb, " stack %d", k.StackSize)
	}
	sb.WriteString("\n")
	for i := range k.Instructions {
		fmt.Fprintf(&sb, "%4d: %s\n", i, k.Instructions[i].String())
	}
	return sb.String()
}
