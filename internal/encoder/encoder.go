// Completion: 100% - Encoder core complete
package encoder

import (
	"fmt"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
)

// State is the part of an instruction header that stays the same across a
// run of instructions. Emission code changes it between Push and Pop.
type State struct {
	ExecWidth        int
	Quarter          uint32
	NoMask           bool
	Predicate        uint32
	InversePredicate bool
	Flag             uint32
	SubFlag          uint32
	Saturate         bool
	AccWrEnable      bool
	NibControl       bool
}

// Encoder transcribes physical operands into instruction words for one
// generation. It never allocates registers. The first encoding error is kept
// and every later instruction is still attempted so callers can check Err
// once per emission routine.
type Encoder struct {
	Curr State

	gen    engine.Generation
	layout *isa.Layout
	v      variant
	stack  []State
	words  []isa.Word
	err    error
	trace  *diag.Tracer
}

// New returns an encoder for generation g whose default execution width is
// simdWidth
func New(g engine.Generation, simdWidth int, trace *diag.Tracer) (*Encoder, error) {
	v, err := variantFor(g)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		Curr:   State{ExecWidth: simdWidth},
		gen:    g,
		layout: isa.LayoutFor(g),
		v:      v,
		trace:  trace.With("encode " + v.name()),
	}, nil
}

// Generation returns the target generation
func (e *Encoder) Generation() engine.Generation {
	return e.gen
}

// Layout returns the bit layout words are encoded with
func (e *Encoder) Layout() *isa.Layout {
	return e.layout
}

// Push saves the current state
func (e *Encoder) Push() {
	e.stack = append(e.stack, e.Curr)
}

// Pop restores the state saved by the matching Push
func (e *Encoder) Pop() {
	if len(e.stack) == 0 {
		e.fail(diag.Encoding("state pop without a matching push"))
		return
	}
	e.Curr = e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
}

// Depth returns the number of saved states
func (e *Encoder) Depth() int {
	return len(e.stack)
}

// Words returns the encoded program
func (e *Encoder) Words() []isa.Word {
	return e.words
}

// SetWords replaces the encoded program, used by fixups that insert or split words
func (e *Encoder) SetWords(ws []isa.Word) {
	e.words = ws
}

// Len returns the number of words emitted so far
func (e *Encoder) Len() int {
	return len(e.words)
}

// Err returns the first encoding error
func (e *Encoder) Err() error {
	return e.err
}

// ClearErr drops a recorded error
func (e *Encoder) ClearErr() {
	e.err = nil
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
	e.trace.Printf("error: %v", err)
}

// commit appends w unless building it failed. It returns the word index or -1.
func (e *Encoder) commit(w isa.Word, err error) int {
	if err != nil {
		e.fail(err)
		return -1
	}
	e.words = append(e.words, w)
	idx := len(e.words) - 1
	if e.trace.Enabled() {
		if d, derr := e.layout.Decode(w); derr == nil {
			e.trace.Printf("%4d: %s  %s", idx, w, d)
		} else {
			e.trace.Printf("%4d: %s", idx, w)
		}
	}
	return idx
}

// build starts a word for op, fills the header and hands it to fill
func (e *Encoder) build(op isa.Opcode, fill func(w *isa.Word) error) (isa.Word, error) {
	var w isa.Word
	e.layout.Opcode.Set(&w, uint32(op))
	if err := e.setHeader(&w, op); err != nil {
		return w, err
	}
	return w, fill(&w)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (e *Encoder) setHeader(w *isa.Word, op isa.Opcode) error {
	l := e.layout
	switch e.Curr.ExecWidth {
	case 1, 4, 8, 16:
	default:
		return diag.Unimplemented("SIMD%d execution is not implemented on %s", e.Curr.ExecWidth, e.gen)
	}
	code, _ := isa.EncodeExecSize(e.Curr.ExecWidth)
	l.ExecSize.Set(w, code)
	l.AccWrEnable.Set(w, b2u(e.Curr.AccWrEnable))
	l.QtrControl.Set(w, e.Curr.Quarter)
	l.NibControl.Set(w, b2u(e.Curr.NibControl))
	l.MaskControl.Set(w, b2u(e.Curr.NoMask))

	flag, sub, err := e.v.flag(e.Curr)
	if err != nil {
		return err
	}
	if op.IsThreeSource() {
		l.T3FlagReg.Set(w, flag)
		l.T3FlagSubreg.Set(w, sub)
	} else {
		l.FlagReg.Set(w, flag)
		l.FlagSubreg.Set(w, sub)
	}
	if e.Curr.Predicate != isa.PredicateNone {
		l.PredControl.Set(w, e.Curr.Predicate)
		l.PredInv.Set(w, b2u(e.Curr.InversePredicate))
	}
	l.Saturate.Set(w, b2u(e.Curr.Saturate))
	return nil
}

// regType returns the register type code of t, checking the generation has it
func (e *Encoder) regType(t isa.Type) (uint32, error) {
	if err := e.checkType(t); err != nil {
		return 0, err
	}
	code, ok := e.layout.RegTypeCode(t)
	if !ok {
		return 0, diag.Unsupported(fmt.Sprintf("%s register operands", t), e.gen.String())
	}
	return code, nil
}

func (e *Encoder) checkType(t isa.Type) error {
	switch t {
	case isa.TypeDF:
		if !engine.Supports(e.gen, engine.FeatureFP64) {
			return diag.Unsupported("double precision operands", e.gen.String())
		}
	case isa.TypeUL, isa.TypeL:
		if !engine.Supports(e.gen, engine.FeatureInt64) {
			return diag.Unsupported("64-bit integer operands", e.gen.String())
		}
	}
	return nil
}

// defaultHStride keeps byte and word destinations naturally aligned
func defaultHStride(t isa.Type) uint8 {
	switch t.Size() {
	case 1:
		return isa.HStride4
	case 2:
		return isa.HStride2
	}
	return isa.HStride1
}

func checkGRF(what string, r isa.Register) error {
	if r.File == isa.FileARF || r.Indirect {
		return nil
	}
	if r.Nr >= isa.MaxGRF {
		return diag.Encoding("%s register r%d is out of range (%d registers)", what, r.Nr, isa.MaxGRF)
	}
	if r.Subnr >= isa.GRFSize {
		return diag.Encoding("%s sub-register byte %d is out of range", what, r.Subnr)
	}
	return nil
}

func (e *Encoder) setDst(w *isa.Word, r isa.Register) error {
	l := e.layout
	if r.File == isa.FileIMM {
		return diag.Encoding("immediate destination")
	}
	if err := checkGRF("destination", r); err != nil {
		return err
	}
	code, err := e.regType(r.Type)
	if err != nil {
		return err
	}
	l.DstFile.Set(w, uint32(r.File))
	l.DstType.Set(w, code)
	h := r.HStride
	if h == isa.HStride0 {
		h = defaultHStride(r.Type)
	}
	l.DstHStride.Set(w, uint32(h))
	if r.Indirect {
		if !l.DstIndirect.FitsSigned(r.AddrImm) {
			return diag.Encoding("destination indirect offset %d does not fit %d bits", r.AddrImm, l.DstIndirect.Width())
		}
		l.DstAddrMode.Set(w, 1)
		l.DstA0Subreg.Set(w, r.A0Subnr)
		l.DstIndirect.SetSigned(w, r.AddrImm)
		return nil
	}
	l.DstNr.Set(w, r.Nr)
	l.DstSubreg.Set(w, r.Subnr)
	return nil
}

// region returns the region of a source; a single-lane instruction reading a
// width-1 operand always uses <0;1,0>
func (e *Encoder) region(r isa.Register) (v, wd, h uint8) {
	if r.Width == isa.Width1 && e.Curr.ExecWidth == 1 {
		return isa.VStride0, isa.Width1, isa.HStride0
	}
	return r.VStride, r.Width, r.HStride
}

func (e *Encoder) setSrc0(w *isa.Word, r isa.Register) error {
	l := e.layout
	if r.File == isa.FileIMM {
		return e.setImmediate(w, r)
	}
	if err := checkGRF("source 0", r); err != nil {
		return err
	}
	code, err := e.regType(r.Type)
	if err != nil {
		return err
	}
	l.Src0File.Set(w, uint32(r.File))
	l.Src0Type.Set(w, code)
	l.Src0Abs.Set(w, b2u(r.Abs))
	l.Src0Neg.Set(w, b2u(r.Neg))
	if r.Indirect {
		if !l.Src0Indirect.FitsSigned(r.AddrImm) {
			return diag.Encoding("source 0 indirect offset %d does not fit %d bits", r.AddrImm, l.Src0Indirect.Width())
		}
		l.Src0AddrMode.Set(w, 1)
		l.Src0A0Subreg.Set(w, r.A0Subnr)
		l.Src0Indirect.SetSigned(w, r.AddrImm)
		l.Src0VStride.Set(w, uint32(r.VStride))
		l.Src0Width.Set(w, uint32(r.Width))
		l.Src0HStride.Set(w, uint32(r.HStride))
		return nil
	}
	l.Src0Nr.Set(w, r.Nr)
	l.Src0Subreg.Set(w, r.Subnr)
	v, wd, h := e.region(r)
	l.Src0VStride.Set(w, uint32(v))
	l.Src0Width.Set(w, uint32(wd))
	l.Src0HStride.Set(w, uint32(h))
	return nil
}

// setImmediate stores a source 0 immediate. The source 1 type bits declare
// the immediate type, except for 64-bit immediates that occupy both upper
// dwords on the Gen8 family.
func (e *Encoder) setImmediate(w *isa.Word, r isa.Register) error {
	l := e.layout
	if err := e.checkType(r.Type); err != nil {
		return err
	}
	code, ok := l.ImmTypeCode(r.Type)
	if !ok {
		return diag.Unsupported(fmt.Sprintf("%s immediates", r.Type), e.gen.String())
	}
	l.Src0File.Set(w, uint32(isa.FileIMM))
	l.Src0Type.Set(w, code)
	if r.Type.Is64() {
		l.Imm64Low.Set(w, uint32(r.Imm))
		l.Imm32.Set(w, uint32(r.Imm>>32))
		return nil
	}
	l.Imm32.Set(w, uint32(r.Imm))
	l.Src1File.Set(w, uint32(isa.FileARF))
	l.Src1Type.Set(w, code)
	return nil
}

func (e *Encoder) setSrc1(w *isa.Word, r isa.Register) error {
	l := e.layout
	if isa.RegFile(l.Src0File.Get(w)) == isa.FileIMM {
		if r.File == isa.FileIMM {
			return diag.Encoding("two immediate sources")
		}
		return diag.Encoding("source 1 with an immediate source 0")
	}
	if r.File == isa.FileIMM {
		if r.Type.Is64() {
			return diag.Encoding("64-bit immediate in source 1")
		}
		code, ok := l.ImmTypeCode(r.Type)
		if !ok {
			return diag.Unsupported(fmt.Sprintf("%s immediates", r.Type), e.gen.String())
		}
		l.Src1File.Set(w, uint32(isa.FileIMM))
		l.Src1Type.Set(w, code)
		l.Imm32.Set(w, uint32(r.Imm))
		return nil
	}
	if r.Indirect {
		return diag.Encoding("source 1 must be directly addressed")
	}
	if err := checkGRF("source 1", r); err != nil {
		return err
	}
	code, err := e.regType(r.Type)
	if err != nil {
		return err
	}
	l.Src1File.Set(w, uint32(r.File))
	l.Src1Type.Set(w, code)
	l.Src1Abs.Set(w, b2u(r.Abs))
	l.Src1Neg.Set(w, b2u(r.Neg))
	l.Src1Nr.Set(w, r.Nr)
	l.Src1Subreg.Set(w, r.Subnr)
	v, wd, h := e.region(r)
	l.Src1VStride.Set(w, uint32(v))
	l.Src1Width.Set(w, uint32(wd))
	l.Src1HStride.Set(w, uint32(h))
	return nil
}

func (e *Encoder) alu1(op isa.Opcode, dst, src isa.Register) int {
	w, err := e.build(op, func(w *isa.Word) error {
		if err := e.setDst(w, dst); err != nil {
			return err
		}
		return e.setSrc0(w, src)
	})
	return e.commit(w, err)
}

func (e *Encoder) alu2(op isa.Opcode, dst, src0, src1 isa.Register) int {
	w, err := e.build(op, func(w *isa.Word) error {
		if err := e.setDst(w, dst); err != nil {
			return err
		}
		if err := e.setSrc0(w, src0); err != nil {
			return err
		}
		return e.setSrc1(w, src1)
	})
	return e.commit(w, err)
}

func check3Src(what string, r isa.Register) error {
	if r.File != isa.FileGRF || r.Indirect {
		return diag.Encoding("3-source %s must be a directly addressed GRF", what)
	}
	if r.Nr >= isa.MaxGRF {
		return diag.Encoding("3-source %s register r%d is out of range", what, r.Nr)
	}
	if r.Subnr%4 != 0 || r.Subnr >= isa.GRFSize {
		return diag.Encoding("3-source %s sub-register byte %d is not dword aligned", what, r.Subnr)
	}
	return nil
}

// alu3 encodes a 3-source instruction in the align16 layout. A SIMD16
// request on a generation without 3-source SIMD16 becomes two SIMD8 words.
// It returns the index of the first word.
func (e *Encoder) alu3(op isa.Opcode, dst, src0, src1, src2 isa.Register) int {
	l := e.layout
	src := [3]isa.Register{src0, src1, src2}
	w, err := e.build(op, func(w *isa.Word) error {
		if err := check3Src("destination", dst); err != nil {
			return err
		}
		if !e.v.threeSource(dst.Type) {
			return diag.Unsupported(fmt.Sprintf("3-source %s operands", dst.Type), e.gen.String())
		}
		dcode, ok := l.ThreeSrcTypeCode(dst.Type)
		if !ok {
			return diag.Unsupported(fmt.Sprintf("3-source %s operands", dst.Type), e.gen.String())
		}
		st := src0.Type
		for i, s := range src {
			if err := check3Src(fmt.Sprintf("source %d", i), s); err != nil {
				return err
			}
			if s.Type != st {
				return diag.Encoding("3-source sources mix %s and %s", st, s.Type)
			}
		}
		if !e.v.threeSource(st) {
			return diag.Unsupported(fmt.Sprintf("3-source %s operands", st), e.gen.String())
		}
		scode, ok := l.ThreeSrcTypeCode(st)
		if !ok {
			return diag.Unsupported(fmt.Sprintf("3-source %s operands", st), e.gen.String())
		}

		l.AccessMode.Set(w, isa.Align16)
		l.T3DstFile.Set(w, 0)
		l.T3DstType.Set(w, dcode)
		l.T3SrcType.Set(w, scode)
		l.T3DstNr.Set(w, dst.Nr)
		l.T3DstSubreg.Set(w, dst.Subnr/4)
		l.T3DstWritemask.Set(w, isa.WritemaskXYZW)
		for i, s := range src {
			l.T3Nr[i].Set(w, s.Nr)
			l.T3Subreg[i].Set(w, s.Subnr/4)
			l.T3Swizzle[i].Set(w, isa.NoSwizzle)
			l.T3SrcAbs[i].Set(w, b2u(s.Abs))
			l.T3SrcNeg[i].Set(w, b2u(s.Neg))
			l.T3RepCtrl[i].Set(w, b2u(s.VStride == isa.VStride0))
		}
		return nil
	})
	if err != nil {
		return e.commit(w, err)
	}
	if e.Curr.ExecWidth == 16 && !engine.Supports(e.gen, engine.FeatureThreeSrcSIMD16) {
		q1, q2, _ := l.SplitThreeSource(w)
		first := e.commit(q1, nil)
		e.commit(q2, nil)
		return first
	}
	return e.commit(w, nil)
}
