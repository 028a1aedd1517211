// Completion: 100% - Generation variants complete
package encoder

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// variant holds what differs between generations beyond the bit layout
type variant interface {
	name() string
	// flag validates the flag register the state selects
	flag(s State) (flag, sub uint32, err error)
	// threeSource reports whether the 3-source ALU accepts type t
	threeSource(t isa.Type) bool
	// dataPort is the shared function of fences and scratch messages
	dataPort() isa.SFID
	// untypedPort is the shared function of untyped surface reads, writes and atomics
	untypedPort() isa.SFID
}

func variantFor(g engine.Generation) (variant, error) {
	switch {
	case g == engine.Gen6:
		return gen6{}, nil
	case g == engine.Gen7 || g == engine.Gen75:
		return gen7{gen: g}, nil
	case g.IsGen8Family():
		return gen8{gen: g}, nil
	}
	return nil, diag.Unimplemented("no encoder for generation %s", g)
}

func twoFlags(s State) (uint32, uint32, error) {
	if s.Flag > 1 || s.SubFlag > 1 {
		return 0, 0, diag.Encoding("flag f%d.%d does not exist", s.Flag, s.SubFlag)
	}
	return s.Flag, s.SubFlag, nil
}
