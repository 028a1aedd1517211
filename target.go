// Completion: 100% - Targets complete
package beignet

import (
	"github.com/xyproto/env/v2"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
)

// Target is a compilation target: a generation and the device resources
// kernels compiled for it may use
type Target struct {
	Gen    engine.Generation
	Device engine.Device
}

// NewTarget returns the target of generation g
func NewTarget(g engine.Generation) (Target, error) {
	dev, err := engine.DeviceFor(g)
	if err != nil {
		return Target{}, diag.Unimplemented("%v", err)
	}
	return Target{Gen: g, Device: dev}, nil
}

// String returns the generation name, such as "gen9"
func (t Target) String() string {
	return t.Gen.String()
}

// FullString names the generation and the device, such as "gen9 (Skylake GT2)"
func (t Target) FullString() string {
	return t.Gen.String() + " (" + t.Device.Name + ")"
}

// IsGen8Family reports whether the target uses the Gen8 instruction layout
func (t Target) IsGen8Family() bool {
	return t.Gen.IsGen8Family()
}

// Features returns every feature the target supports
func (t Target) Features() []engine.Feature {
	return engine.FeaturesOf(t.Gen)
}

// defaultGeneration is used when GBE_GEN is not set
const defaultGeneration = engine.Gen9

// DefaultTarget returns the target named by GBE_GEN, Gen9 when unset
func DefaultTarget() (Target, error) {
	env.Load()
	name := env.Str("GBE_GEN")
	if name == "" {
		return NewTarget(defaultGeneration)
	}
	g, err := engine.ParseGeneration(name)
	if err != nil {
		return Target{}, err
	}
	return NewTarget(g)
}
