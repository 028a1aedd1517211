// Completion: 100% - Gen7 and Gen7.5 encoding rules complete
package encoder

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// gen7 covers Ivy Bridge and Haswell. Haswell moves untyped atomics to the
// second data cache port.
type gen7 struct {
	gen engine.Generation
}

func (v gen7) name() string { return v.gen.String() }

func (gen7) flag(s State) (uint32, uint32, error) { return twoFlags(s) }

func (gen7) threeSource(t isa.Type) bool {
	switch t {
	case isa.TypeF, isa.TypeD, isa.TypeUD:
		return true
	}
	return false
}

func (gen7) dataPort() isa.SFID { return isa.SFIDDataportData }

func (v gen7) untypedPort() isa.SFID {
	if engine.Supports(v.gen, engine.FeatureDataCache1) {
		return isa.SFIDDataportData1
	}
	return isa.SFIDDataportData
}
