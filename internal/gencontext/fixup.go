// Completion: 100% - Post-emission fixups complete
package gencontext

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/encoder"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// fixup rewrites the emitted words. remap has len(words)+1 entries and gives
// the new index of every old word; the last entry maps the end of the program.
type fixup func(c *Context, e *encoder.Encoder, words []isa.Word) (out []isa.Word, remap []int)

func identity(n int) []int {
	m := make([]int, n+1)
	for i := range m {
		m[i] = i
	}
	return m
}

// splitThreeSource breaks any SIMD16 3-source word left in the stream into
// two SIMD8 halves. The encoder splits on emission, so this only catches
// words assembled elsewhere.
func splitThreeSource(c *Context, e *encoder.Encoder, words []isa.Word) ([]isa.Word, []int) {
	l := e.Layout()
	remap := make([]int, len(words)+1)
	out := make([]isa.Word, 0, len(words))
	split := 0
	for i, w := range words {
		remap[i] = len(out)
		if !c.Supports(engine.FeatureThreeSrcSIMD16) {
			if q1, q2, ok := l.SplitThreeSource(w); ok {
				out = append(out, q1, q2)
				split++
				continue
			}
		}
		out = append(out, w)
	}
	remap[len(words)] = len(out)
	if split > 0 {
		c.trace.Printf("split %d SIMD16 3-source instructions", split)
	}
	return out, remap
}

// fenceDataPortWrites follows every data port write and atomic with a
// render cache fence. Gen6 does not keep its render cache coherent with
// later reads otherwise.
func fenceDataPortWrites(c *Context, e *encoder.Encoder, words []isa.Word) ([]isa.Word, []int) {
	fence, err := fenceWord(c)
	if err != nil {
		e.ClearErr()
		c.trace.Printf("fence workaround skipped: %v", err)
		return words, identity(len(words))
	}
	remap := make([]int, len(words)+1)
	out := make([]isa.Word, 0, len(words))
	inserted := 0
	for i, w := range words {
		remap[i] = len(out)
		out = append(out, w)
		if e.WritesMemory(w) {
			out = append(out, fence)
			inserted++
		}
	}
	remap[len(words)] = len(out)
	if inserted > 0 {
		c.trace.Printf("inserted %d render cache fences", inserted)
	}
	return out, remap
}

// fenceWord encodes the fence the Gen6 workaround inserts. It reuses r0 as
// the header and waits for nothing.
func fenceWord(c *Context) (isa.Word, error) {
	e, err := encoder.New(c.Gen, 8, nil)
	if err != nil {
		return isa.Word{}, err
	}
	e.Curr.NoMask = true
	e.Fence(isa.Null(), isa.UD8GRF(0, 0), false)
	if err := e.Err(); err != nil {
		return isa.Word{}, err
	}
	return e.Words()[0], nil
}

// compose maps indices through a then b
func compose(a, b []int) []int {
	out := make([]int, len(a))
	for i, v := range a {
		out[i] = b[v]
	}
	return out
}
