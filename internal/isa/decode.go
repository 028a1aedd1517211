// Completion: 100% - Word decoding complete
package isa

import (
	"fmt"
	"strings"
)

// Descriptor is the message descriptor of a SEND
type Descriptor struct {
	Function uint32 // shared function specific control, 19 bits
	Header   bool
	Rlen     uint32 // response length in registers
	Mlen     uint32 // message length in registers
	EOT      bool
}

// Decoded is the field-level view of one instruction word
type Decoded struct {
	Opcode     Opcode
	ExecSize   int
	AccessMode uint32
	Quarter    uint32
	NoMask     bool
	Predicate  uint32
	PredInv    bool
	Flag       uint32
	SubFlag    uint32
	CondMod    uint32
	Saturate   bool
	Dst        Register
	Writemask  uint32
	Src        [3]Register
	NumSrc     int
	SFID       SFID
	Desc       Descriptor
}

// Decode reads w through the layout. It is the inverse of the encoder for
// every operand shape the encoder produces.
func (l *Layout) Decode(w Word) (Decoded, error) {
	d := Decoded{
		Opcode:     Opcode(l.Opcode.Get(&w)),
		ExecSize:   DecodeExecSize(l.ExecSize.Get(&w)),
		AccessMode: l.AccessMode.Get(&w),
		Quarter:    l.QtrControl.Get(&w),
		NoMask:     l.MaskControl.Get(&w) == 1,
		Predicate:  l.PredControl.Get(&w),
		PredInv:    l.PredInv.Get(&w) == 1,
		CondMod:    l.CondMod.Get(&w),
		Saturate:   l.Saturate.Get(&w) == 1,
	}
	if d.Opcode.IsThreeSource() {
		return d, l.decodeThreeSource(&w, &d)
	}
	d.Flag = l.FlagReg.Get(&w)
	d.SubFlag = l.FlagSubreg.Get(&w)
	if d.AccessMode == Align16 {
		return d, fmt.Errorf("align16 decoding is only supported for 3-source instructions")
	}

	var err error
	if d.Dst, err = l.decodeDst(&w); err != nil {
		return d, err
	}
	d.NumSrc = d.Opcode.Sources()
	if d.NumSrc == 0 {
		return d, nil
	}
	if d.Src[0], err = l.decodeSrc0(&w); err != nil {
		return d, err
	}
	if d.Opcode == OpSend {
		d.SFID = SFID(d.CondMod)
		d.CondMod = 0
		d.Desc = Descriptor{
			Function: l.DescFunction.Get(&w),
			Header:   l.DescHeader.Get(&w) == 1,
			Rlen:     l.DescRlen.Get(&w),
			Mlen:     l.DescMlen.Get(&w),
			EOT:      l.DescEOT.Get(&w) == 1,
		}
		d.NumSrc = 1
		return d, nil
	}
	if d.NumSrc > 1 {
		if d.Src[0].File == FileIMM {
			return d, fmt.Errorf("%s with an immediate source 0 has no source 1", d.Opcode)
		}
		if d.Src[1], err = l.decodeSrc1(&w); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (l *Layout) decodeDst(w *Word) (Register, error) {
	r := Register{File: RegFile(l.DstFile.Get(w))}
	t, ok := l.RegType(l.DstType.Get(w))
	if !ok {
		return r, fmt.Errorf("invalid destination type code %d", l.DstType.Get(w))
	}
	r.Type = t
	r.HStride = uint8(l.DstHStride.Get(w))
	if l.DstAddrMode.Get(w) == 1 {
		r.Indirect = true
		r.A0Subnr = l.DstA0Subreg.Get(w)
		r.AddrImm = l.DstIndirect.GetSigned(w)
		return r, nil
	}
	r.Nr = l.DstNr.Get(w)
	r.Subnr = l.DstSubreg.Get(w)
	return r, nil
}

func (l *Layout) decodeSrc0(w *Word) (Register, error) {
	r := Register{File: RegFile(l.Src0File.Get(w))}
	if r.File == FileIMM {
		t, ok := l.ImmType(l.Src0Type.Get(w))
		if !ok {
			return r, fmt.Errorf("invalid immediate type code %d", l.Src0Type.Get(w))
		}
		r.Type = t
		r.Imm = uint64(l.Imm32.Get(w))
		if t.Is64() && l.HasImm64() {
			r.Imm = uint64(l.Imm64Low.Get(w)) | r.Imm<<32
		}
		return r, nil
	}
	t, ok := l.RegType(l.Src0Type.Get(w))
	if !ok {
		return r, fmt.Errorf("invalid source 0 type code %d", l.Src0Type.Get(w))
	}
	r.Type = t
	r.Abs = l.Src0Abs.Get(w) == 1
	r.Neg = l.Src0Neg.Get(w) == 1
	r.VStride = uint8(l.Src0VStride.Get(w))
	r.Width = uint8(l.Src0Width.Get(w))
	r.HStride = uint8(l.Src0HStride.Get(w))
	if l.Src0AddrMode.Get(w) == 1 {
		r.Indirect = true
		r.A0Subnr = l.Src0A0Subreg.Get(w)
		r.AddrImm = l.Src0Indirect.GetSigned(w)
		return r, nil
	}
	r.Nr = l.Src0Nr.Get(w)
	r.Subnr = l.Src0Subreg.Get(w)
	return r, nil
}

func (l *Layout) decodeSrc1(w *Word) (Register, error) {
	r := Register{File: RegFile(l.Src1File.Get(w))}
	if r.File == FileIMM {
		t, ok := l.ImmType(l.Src1Type.Get(w))
		if !ok {
			return r, fmt.Errorf("invalid immediate type code %d", l.Src1Type.Get(w))
		}
		r.Type = t
		r.Imm = uint64(l.Imm32.Get(w))
		return r, nil
	}
	t, ok := l.RegType(l.Src1Type.Get(w))
	if !ok {
		return r, fmt.Errorf("invalid source 1 type code %d", l.Src1Type.Get(w))
	}
	r.Type = t
	r.Abs = l.Src1Abs.Get(w) == 1
	r.Neg = l.Src1Neg.Get(w) == 1
	r.VStride = uint8(l.Src1VStride.Get(w))
	r.Width = uint8(l.Src1Width.Get(w))
	r.HStride = uint8(l.Src1HStride.Get(w))
	r.Nr = l.Src1Nr.Get(w)
	r.Subnr = l.Src1Subreg.Get(w)
	return r, nil
}

func (l *Layout) decodeThreeSource(w *Word, d *Decoded) error {
	d.Flag = l.T3FlagReg.Get(w)
	d.SubFlag = l.T3FlagSubreg.Get(w)
	st, ok := l.ThreeSrcType(l.T3SrcType.Get(w))
	if !ok {
		return fmt.Errorf("invalid 3-source type code %d", l.T3SrcType.Get(w))
	}
	dt, ok := l.ThreeSrcType(l.T3DstType.Get(w))
	if !ok {
		dt = st
	}
	d.Dst = Vec8(l.T3DstNr.Get(w), l.T3DstSubreg.Get(w)*4, dt)
	d.Writemask = l.T3DstWritemask.Get(w)
	d.NumSrc = 3
	for i := 0; i < 3; i++ {
		r := Vec8(l.T3Nr[i].Get(w), l.T3Subreg[i].Get(w)*4, st)
		if l.T3RepCtrl[i].Get(w) == 1 {
			r = Scalar(r)
		}
		r.Abs = l.T3SrcAbs[i].Get(w) == 1
		r.Neg = l.T3SrcNeg[i].Get(w) == 1
		d.Src[i] = r
	}
	return nil
}

// String renders the instruction in a compact assembly form
func (d Decoded) String() string {
	var sb strings.Builder
	if d.Predicate != PredicateNone {
		inv := ""
		if d.PredInv {
			inv = "-"
		}
		fmt.Fprintf(&sb, "(%sf%d.%d) ", inv, d.Flag, d.SubFlag)
	}
	fmt.Fprintf(&sb, "%s(%d)", d.Opcode, d.ExecSize)
	if d.Quarter != QuarterQ1 {
		fmt.Fprintf(&sb, " Q%d", d.Quarter+1)
	}
	if d.Opcode == OpNop {
		return sb.String()
	}
	fmt.Fprintf(&sb, " %s", d.Dst)
	for i := 0; i < d.NumSrc; i++ {
		fmt.Fprintf(&sb, ", %s", d.Src[i])
	}
	if d.Opcode == OpSend {
		fmt.Fprintf(&sb, " %s mlen %d rlen %d fc 0x%05x", d.SFID, d.Desc.Mlen, d.Desc.Rlen, d.Desc.Function)
		if d.Desc.EOT {
			sb.WriteString(" EOT")
		}
	}
	if d.NoMask {
		sb.WriteString(" {NoMask}")
	}
	return sb.String()
}
