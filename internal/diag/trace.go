// Completion: 100% - Tracing complete
package diag

import (
	"fmt"
	"io"
)

// Tracer prints verbose-mode progress lines. The zero value and a nil
// *Tracer are both silent.
type Tracer struct {
	w      io.Writer
	prefix string
}

// NewTracer returns a tracer writing to w when enabled is set
func NewTracer(w io.Writer, enabled bool) *Tracer {
	if !enabled || w == nil {
		return &Tracer{}
	}
	return &Tracer{w: w}
}

// Enabled reports whether trace lines are written
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// With returns a tracer that prefixes every line
func (t *Tracer) With(prefix string) *Tracer {
	if !t.Enabled() {
		return t
	}
	return &Tracer{w: t.w, prefix: t.prefix + prefix + ": "}
}

// Printf writes one trace line
func (t *Tracer) Printf(format string, args ...any) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "DEBUG: "+t.prefix+format+"\n", args...)
}
