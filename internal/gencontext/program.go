// Completion: 100% - Program output complete
package gencontext

import (
	"fmt"
	"strings"

	units "github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/regalloc"
)

// Program is a compiled kernel variant
type Program struct {
	Kernel      string
	Generation  engine.Generation
	Variant     uuid.UUID
	SIMDWidth   int
	Words       []isa.Word
	ScratchSize uint32 // per thread, aligned for the generation
	StackSize   uint32 // per lane
	Allocation  *regalloc.Allocation
}

// Bytes returns the instruction stream as the device fetches it
func (p *Program) Bytes() []byte {
	b := make([]byte, 0, len(p.Words)*isa.WordSize)
	for _, w := range p.Words {
		b = w.AppendBytes(b)
	}
	return b
}

// Disassemble renders one decoded instruction per line
func (p *Program) Disassemble() string {
	l := isa.LayoutFor(p.Generation)
	var sb strings.Builder
	for i, w := range p.Words {
		d, err := l.Decode(w)
		if err != nil {
			fmt.Fprintf(&sb, "%4d: %s (%v)\n", i, w, err)
			continue
		}
		fmt.Fprintf(&sb, "%4d: %s\n", i, d)
	}
	return sb.String()
}

func (p *Program) String() string {
	return fmt.Sprintf("%s for %s: %d instructions, SIMD%d, %s scratch, %s stack per lane",
		p.Kernel, p.Generation, len(p.Words), p.SIMDWidth,
		units.BytesSize(float64(p.ScratchSize)), units.BytesSize(float64(p.StackSize)))
}
