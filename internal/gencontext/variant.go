// Completion: 100% - Per-generation variants complete
package gencontext

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// variant is the generation specific part of a context. Shared sequences
// live in free functions the variants pick from.
type variant interface {
	name() string
	barrier(e *encoder.Encoder, fence, payload isa.Register, flags ir.BarrierFlags)
	setA0(e *encoder.Encoder, a0 []uint16) error
	atomicSupported(op ir.AtomicOp) bool
	threeSource(t ir.Type) bool
	fixups() []fixup
}

func variantFor(g engine.Generation) (variant, error) {
	switch g {
	case engine.Gen6:
		return gen6Context{}, nil
	case engine.Gen7, engine.Gen75:
		return gen7Context{}, nil
	case engine.Gen8:
		return gen8Context{}, nil
	case engine.GenCHV:
		return chvContext{}, nil
	case engine.Gen9, engine.GenKBL:
		return gen9Context{}, nil
	case engine.GenBXT, engine.GenGLK:
		return bxtContext{}, nil
	}
	return nil, diag.Unimplemented("no generation context for %s", g)
}

// gen6Context: Sandy Bridge. One render cache fence, float-only 3-source,
// and every data port write followed by a fence.
type gen6Context struct{}

func (gen6Context) name() string { return "gen6" }

func (gen6Context) barrier(e *encoder.Encoder, fence, payload isa.Register, flags ir.BarrierFlags) {
	if flags&(ir.FenceGlobal|ir.FenceImage) != 0 {
		emitFence(e, fence, false)
	}
	emitBarrierWait(e, payload, barrierIDMask)
}

func (gen6Context) setA0(e *encoder.Encoder, a0 []uint16) error { return setA0Pairs(e, a0) }

func (gen6Context) atomicSupported(op ir.AtomicOp) bool {
	switch op {
	case ir.AtomicRevSub, ir.AtomicUMax, ir.AtomicUMin:
		return false
	}
	return op >= ir.AtomicAnd && op <= ir.AtomicCmpXchg
}

func (gen6Context) threeSource(t ir.Type) bool { return t == ir.TypeF }

func (gen6Context) fixups() []fixup {
	return []fixup{splitThreeSource, fenceDataPortWrites}
}

// gen7Context: Ivy Bridge and Haswell
type gen7Context struct{}

func (gen7Context) name() string { return "gen7" }

func (gen7Context) barrier(e *encoder.Encoder, fence, payload isa.Register, flags ir.BarrierFlags) {
	emitCombinedBarrier(e, fence, payload, flags, barrierIDMask)
}

func (gen7Context) setA0(e *encoder.Encoder, a0 []uint16) error { return setA0Pairs(e, a0) }

func (gen7Context) atomicSupported(op ir.AtomicOp) bool {
	return op >= ir.AtomicAnd && op <= ir.AtomicCmpXchg
}

func (gen7Context) threeSource(t ir.Type) bool {
	return t == ir.TypeF || t == ir.TypeD || t == ir.TypeUD
}

func (gen7Context) fixups() []fixup { return []fixup{splitThreeSource} }

// gen8Context: Broadwell. 64-bit immediates let a0 be written four entries
// at a time.
type gen8Context struct{ gen7Context }

func (gen8Context) name() string { return "gen8" }

func (gen8Context) setA0(e *encoder.Encoder, a0 []uint16) error { return setA0Quads(e, a0) }

func (gen8Context) threeSource(t ir.Type) bool {
	return t == ir.TypeF || t == ir.TypeD || t == ir.TypeUD || t == ir.TypeDF
}

// chvContext: Cherryview writes a0 in pairs
type chvContext struct{ gen8Context }

func (chvContext) name() string { return "chv" }

func (chvContext) setA0(e *encoder.Encoder, a0 []uint16) error { return setA0Pairs(e, a0) }

// gen9Context: Skylake and Kaby Lake split the fences and widen the barrier id
type gen9Context struct{ gen8Context }

func (gen9Context) name() string { return "gen9" }

func (gen9Context) barrier(e *encoder.Encoder, fence, payload isa.Register, flags ir.BarrierFlags) {
	emitSplitBarrier(e, fence, payload, flags, wideBarrierIDMask)
}

// bxtContext: Broxton and Gemini Lake, the low power Gen9 parts
type bxtContext struct{ gen9Context }

func (bxtContext) name() string { return "bxt" }

func (bxtContext) setA0(e *encoder.Encoder, a0 []uint16) error { return setA0Pairs(e, a0) }
