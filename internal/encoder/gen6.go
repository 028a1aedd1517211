// Completion: 100% - Gen6 encoding rules complete
package encoder

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// gen6 is Sandy Bridge: one flag register, a float-only 3-source ALU and
// every data port message routed through the render cache
type gen6 struct{}

func (gen6) name() string { return "gen6" }

func (gen6) flag(s State) (uint32, uint32, error) {
	if s.Flag != 0 {
		return 0, 0, diag.Encoding("gen6 has a single flag register, f%d requested", s.Flag)
	}
	if s.SubFlag > 1 {
		return 0, 0, diag.Encoding("flag f0.%d does not exist", s.SubFlag)
	}
	return 0, s.SubFlag, nil
}

func (gen6) threeSource(t isa.Type) bool {
	return t == isa.TypeF
}

func (gen6) dataPort() isa.SFID { return isa.SFIDDataportRender }
func (gen6) untypedPort() isa.SFID { return isa.SFIDDataportRender }
