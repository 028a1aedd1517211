// Completion: 100% - Options complete
package engine

import (
	"fmt"
	"io"
	"os"
	"strings"

	units "github.com/docker/go-units"
	"github.com/xyproto/env/v2"
)

// SpillPolicy selects what the allocator does when the register file is full
type SpillPolicy int

const (
	// SpillLongest evicts the interval with the longest remaining live range
	SpillLongest SpillPolicy = iota
	// SpillNever reports allocation exhaustion instead of spilling
	SpillNever
)

func (p SpillPolicy) String() string {
	switch p {
	case SpillLongest:
		return "longest"
	case SpillNever:
		return "never"
	default:
		return "unknown"
	}
}

// ParseSpillPolicy parses a spill policy name
func ParseSpillPolicy(s string) (SpillPolicy, error) {
	switch strings.ToLower(s) {
	case "", "longest", "default":
		return SpillLongest, nil
	case "never", "none", "off":
		return SpillNever, nil
	default:
		return 0, fmt.Errorf("unsupported spill policy: %s (supported: longest, never)", s)
	}
}

// Options configures one compilation. The value is immutable once handed to a
// compilation and may be shared between concurrent compilations.
type Options struct {
	Verbose      bool        // trace allocation and fixup decisions to Log
	HoleReuse    bool        // let short intervals borrow the slot of a dead value
	SpillPolicy  SpillPolicy // what to do when the register file is full
	SIMDWidth    int         // 0 keeps the kernel's width
	MaxStackSize uint32      // per-lane stack bytes a kernel may declare
	Log          io.Writer   // destination of verbose traces
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		HoleReuse:    true,
		SpillPolicy:  SpillLongest,
		MaxStackSize: 8 * kib,
		Log:          os.Stderr,
	}
}

// OptionsFromEnv starts from DefaultOptions and applies the GBE_* environment
// variables:
//
//	GBE_VERBOSE=1          trace allocation decisions
//	GBE_NO_HOLE_REUSE=1    disable hole reuse
//	GBE_SPILL_POLICY=never fail instead of spilling
//	GBE_SIMD_WIDTH=8|16    force a SIMD width
//	GBE_MAX_STACK_SIZE=4KiB
//
// The environment is read afresh on every call.
func OptionsFromEnv() (Options, error) {
	env.Load()
	opts := DefaultOptions()
	opts.Verbose = env.Bool("GBE_VERBOSE")
	if env.Bool("GBE_NO_HOLE_REUSE") {
		opts.HoleReuse = false
	}

	policy, err := ParseSpillPolicy(env.Str("GBE_SPILL_POLICY", "longest"))
	if err != nil {
		return opts, err
	}
	opts.SpillPolicy = policy

	switch width := env.Int("GBE_SIMD_WIDTH", 0); width {
	case 0, 8, 16:
		opts.SIMDWidth = width
	default:
		return opts, fmt.Errorf("invalid GBE_SIMD_WIDTH %d (supported: 8, 16)", width)
	}

	if env.Has("GBE_MAX_STACK_SIZE") {
		size, err := units.RAMInBytes(env.Str("GBE_MAX_STACK_SIZE"))
		if err != nil {
			return opts, fmt.Errorf("invalid GBE_MAX_STACK_SIZE: %w", err)
		}
		if size < 0 || size > 1*mib {
			return opts, fmt.Errorf("invalid GBE_MAX_STACK_SIZE: %s is out of range", units.BytesSize(float64(size)))
		}
		opts.MaxStackSize = uint32(size)
	}
	return opts, nil
}
