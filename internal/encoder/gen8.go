// Completion: 100% - Gen8 family encoding rules complete
package encoder

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// gen8 covers Broadwell and everything newer. The 3-source ALU gains
// doubles, immediates may be 64 bits wide and indirect offsets carry their
// sign bit in a separate field.
type gen8 struct {
	gen engine.Generation
}

func (v gen8) name() string { return v.gen.String() }

func (gen8) flag(s State) (uint32, uint32, error) { return twoFlags(s) }

func (gen8) threeSource(t isa.Type) bool {
	switch t {
	case isa.TypeF, isa.TypeD, isa.TypeUD, isa.TypeDF:
		return true
	}
	return false
}

func (gen8) dataPort() isa.SFID { return isa.SFIDDataportData }
func (gen8) untypedPort() isa.SFID { return isa.SFIDDataportData1 }
