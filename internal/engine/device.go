// Completion: 100% - Device descriptors complete
package engine

import (
	"fmt"

	units "github.com/docker/go-units"
)

// GRFSize is the size in bytes of one general register
const GRFSize = 32

// Device describes the fixed resources of one generation.
// Values are read-only configuration shared by all kernels.
type Device struct {
	Gen               Generation
	Name              string
	EUCount           int
	ThreadsPerEU      int
	RegisterFileBytes uint32 // per hardware thread
	LocalMemBytes     uint32
	ScratchPerThread  uint32 // upper bound on spill plus stack scratch
	MaxSIMD           int
}

// Registers returns the number of general registers per thread
func (d Device) Registers() int {
	return int(d.RegisterFileBytes / GRFSize)
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s, %d EUs x %d threads, %d GRFs, %s scratch/thread)",
		d.Name, d.Gen, d.EUCount, d.ThreadsPerEU, d.Registers(),
		units.BytesSize(float64(d.ScratchPerThread)))
}

const (
	kib = 1024
	mib = 1024 * kib
)

var devices = map[Generation]Device{
	Gen6:   {Gen6, "Sandy Bridge GT2", 12, 5, 4096, 64 * kib, 12 * kib, 16},
	Gen7:   {Gen7, "Ivy Bridge GT2", 16, 8, 4096, 64 * kib, 12 * kib, 16},
	Gen75:  {Gen75, "Haswell GT2", 20, 7, 4096, 64 * kib, 2 * mib, 16},
	Gen8:   {Gen8, "Broadwell GT2", 24, 7, 4096, 64 * kib, 2 * mib, 16},
	GenCHV: {GenCHV, "Cherryview", 16, 7, 4096, 64 * kib, 2 * mib, 16},
	Gen9:   {Gen9, "Skylake GT2", 24, 7, 4096, 64 * kib, 2 * mib, 16},
	GenBXT: {GenBXT, "Broxton", 18, 6, 4096, 64 * kib, 2 * mib, 16},
	GenKBL: {GenKBL, "Kaby Lake GT2", 24, 7, 4096, 64 * kib, 2 * mib, 16},
	GenGLK: {GenGLK, "Gemini Lake", 18, 6, 4096, 64 * kib, 2 * mib, 16},
}

// DeviceFor returns the descriptor of generation g
func DeviceFor(g Generation) (Device, error) {
	d, ok := devices[g]
	if !ok {
		return Device{}, fmt.Errorf("no device descriptor for generation %s", g)
	}
	return d, nil
}

// AlignScratchSize rounds a per-thread scratch requirement up to what the
// generation can program: 1KiB multiples up to Gen7, powers of two of at
// least 1KiB from Gen7.5 on.
func AlignScratchSize(g Generation, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	if g <= Gen7 {
		return (size + kib - 1) &^ (kib - 1)
	}
	aligned := uint32(kib)
	for aligned < size {
		aligned <<= 1
	}
	return aligned
}
