// Completion: 100% - Gen7 and Gen8 family layouts complete
package isa

import (
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
)

// Family groups generations sharing one bit layout
type Family uint8

const (
	FamilyGen7 Family = iota // Gen6, Gen7, Gen7.5
	FamilyGen8               // Gen8, CHV, Gen9, BXT, KBL, GLK
)

func (f Family) String() string {
	if f == FamilyGen8 {
		return "gen8"
	}
	return "gen7"
}

// MaxGRF is the number of general registers every generation addresses
const MaxGRF = 128

// Layout is the set of fields of one family. The same 128 bits are read
// through different fields depending on the access mode (align1 or align16),
// the address mode (direct or indirect), whether src0 is an immediate, and
// whether the opcode is a SEND or a 3-source instruction.
type Layout struct {
	Family Family

	// Header
	Opcode        Field
	AccessMode    Field
	MaskControl   Field
	DepControl    Field
	QtrControl    Field
	NibControl    Field
	ThreadControl Field
	PredControl   Field
	PredInv       Field
	ExecSize      Field
	CondMod       Field // SFID for SEND
	AccWrEnable   Field
	CmptControl   Field
	DebugControl  Field
	Saturate      Field
	FlagReg       Field
	FlagSubreg    Field

	// Register files and types
	DstFile, DstType   Field
	Src0File, Src0Type Field
	Src1File, Src1Type Field

	// Destination, align1 direct / indirect, align16 direct
	DstAddrMode  Field
	DstNr        Field
	DstSubreg    Field
	DstHStride   Field
	DstIndirect  SplitField
	DstA0Subreg  Field
	DstWritemask Field
	DstSubreg16  Field

	// Source 0
	Src0Nr       Field
	Src0Subreg   Field
	Src0Abs      Field
	Src0Neg      Field
	Src0AddrMode Field
	Src0HStride  Field
	Src0Width    Field
	Src0VStride  Field
	Src0Indirect SplitField
	Src0A0Subreg Field

	// Source 1, direct only
	Src1Nr       Field
	Src1Subreg   Field
	Src1Abs      Field
	Src1Neg      Field
	Src1AddrMode Field
	Src1HStride  Field
	Src1Width    Field
	Src1VStride  Field

	// Immediates
	Imm32    Field
	Imm64Low Field // not present on the Gen7 family

	// SEND message descriptor, in place of source 1
	DescFunction Field
	DescHeader   Field
	DescRlen     Field
	DescMlen     Field
	DescEOT      Field

	// 3-source, align16 only
	T3DstFile      Field
	T3FlagReg      Field
	T3FlagSubreg   Field
	T3SrcType      Field
	T3DstType      Field
	T3DstWritemask Field
	T3DstSubreg    Field // dword units
	T3DstNr        Field
	T3SrcAbs       [3]Field
	T3SrcNeg       [3]Field
	T3RepCtrl      [3]Field
	T3Swizzle      [3]Field
	T3Subreg       [3]Field // dword units
	T3Nr           [3]Field

	regTypes map[Type]uint32
	immTypes map[Type]uint32
	t3Types  map[Type]uint32
}

func commonLayout() Layout {
	return Layout{
		Opcode:        bits(6, 0),
		AccessMode:    bit(8),
		QtrControl:    bits(13, 12),
		ThreadControl: bits(15, 14),
		PredControl:   bits(19, 16),
		PredInv:       bit(20),
		ExecSize:      bits(23, 21),
		CondMod:       bits(27, 24),
		AccWrEnable:   bit(28),
		CmptControl:   bit(29),
		DebugControl:  bit(30),
		Saturate:      bit(31),

		DstAddrMode:  bit(63),
		DstNr:        bits(60, 53),
		DstSubreg:    bits(52, 48),
		DstHStride:   bits(62, 61),
		DstWritemask: bits(51, 48),
		DstSubreg16:  bit(52),

		Src0Nr:       bits(76, 69),
		Src0Subreg:   bits(68, 64),
		Src0Abs:      bit(77),
		Src0Neg:      bit(78),
		Src0AddrMode: bit(79),
		Src0HStride:  bits(81, 80),
		Src0Width:    bits(84, 82),
		Src0VStride:  bits(88, 85),

		Src1Nr:       bits(108, 101),
		Src1Subreg:   bits(100, 96),
		Src1Abs:      bit(109),
		Src1Neg:      bit(110),
		Src1AddrMode: bit(111),
		Src1HStride:  bits(113, 112),
		Src1Width:    bits(116, 114),
		Src1VStride:  bits(120, 117),

		Imm32:    bits(127, 96),
		Imm64Low: none,

		DescFunction: bits(114, 96),
		DescHeader:   bit(115),
		DescRlen:     bits(120, 116),
		DescMlen:     bits(124, 121),
		DescEOT:      bit(127),

		T3DstWritemask: bits(52, 49),
		T3DstSubreg:    bits(55, 53),
		T3DstNr:        bits(63, 56),
		T3RepCtrl:      [3]Field{bit(64), bit(85), bit(106)},
		T3Swizzle:      [3]Field{bits(72, 65), bits(93, 86), bits(114, 107)},
		T3Subreg:       [3]Field{bits(75, 73), bits(96, 94), bits(117, 115)},
		T3Nr:           [3]Field{bits(83, 76), bits(104, 97), bits(125, 118)},
	}
}

var gen7Layout = func() *Layout {
	l := commonLayout()
	l.Family = FamilyGen7
	l.MaskControl = bit(9)
	l.DepControl = bits(11, 10)
	l.NibControl = bit(47)
	l.FlagSubreg = bit(89)
	l.FlagReg = bit(90)

	l.DstFile, l.DstType = bits(33, 32), bits(36, 34)
	l.Src0File, l.Src0Type = bits(38, 37), bits(41, 39)
	l.Src1File, l.Src1Type = bits(43, 42), bits(46, 44)

	l.DstIndirect = SplitField{Low: bits(57, 48), High: none}
	l.DstA0Subreg = bits(60, 58)
	l.Src0Indirect = SplitField{Low: bits(73, 64), High: none}
	l.Src0A0Subreg = bits(76, 74)

	l.T3DstFile = bit(32)
	l.T3FlagSubreg = bit(33)
	l.T3FlagReg = bit(34)
	l.T3SrcAbs = [3]Field{bit(36), bit(38), bit(40)}
	l.T3SrcNeg = [3]Field{bit(37), bit(39), bit(41)}
	l.T3SrcType = bits(43, 42)
	l.T3DstType = bits(45, 44)

	l.regTypes = map[Type]uint32{TypeUD: 0, TypeD: 1, TypeUW: 2, TypeW: 3, TypeUB: 4, TypeB: 5, TypeDF: 6, TypeF: 7}
	l.immTypes = map[Type]uint32{TypeUD: 0, TypeD: 1, TypeUW: 2, TypeW: 3, TypeV: 6, TypeF: 7}
	l.t3Types = map[Type]uint32{TypeF: 0, TypeD: 1, TypeUD: 2, TypeDF: 3}
	return &l
}()

var gen8Layout = func() *Layout {
	l := commonLayout()
	l.Family = FamilyGen8
	l.MaskControl = bit(34)
	l.DepControl = bits(10, 9)
	l.NibControl = bit(11)
	l.FlagSubreg = bit(32)
	l.FlagReg = bit(33)

	l.DstFile, l.DstType = bits(36, 35), bits(40, 37)
	l.Src0File, l.Src0Type = bits(42, 41), bits(46, 43)
	l.Src1File, l.Src1Type = bits(90, 89), bits(94, 91)

	l.DstIndirect = SplitField{Low: bits(56, 48), High: bit(47)}
	l.DstA0Subreg = bits(60, 57)
	l.Src0Indirect = SplitField{Low: bits(72, 64), High: bit(95)}
	l.Src0A0Subreg = bits(76, 73)

	l.Imm64Low = bits(95, 64)

	l.T3DstFile = none
	l.T3FlagSubreg = bit(32)
	l.T3FlagReg = bit(33)
	l.T3SrcAbs = [3]Field{bit(37), bit(39), bit(41)}
	l.T3SrcNeg = [3]Field{bit(38), bit(40), bit(42)}
	l.T3SrcType = bits(45, 43)
	l.T3DstType = bits(48, 46)

	l.regTypes = map[Type]uint32{
		TypeUD: 0, TypeD: 1, TypeUW: 2, TypeW: 3, TypeUB: 4, TypeB: 5,
		TypeDF: 6, TypeF: 7, TypeUL: 8, TypeL: 9, TypeHF: 10,
	}
	l.immTypes = map[Type]uint32{
		TypeUD: 0, TypeD: 1, TypeUW: 2, TypeW: 3, TypeV: 6, TypeF: 7,
		TypeUL: 8, TypeL: 9, TypeDF: 10, TypeHF: 11,
	}
	l.t3Types = map[Type]uint32{TypeF: 0, TypeD: 1, TypeUD: 2, TypeDF: 3, TypeHF: 4}
	return &l
}()

// LayoutFor returns the layout generation g encodes with
func LayoutFor(g engine.Generation) *Layout {
	if g.IsGen8Family() {
		return gen8Layout
	}
	return gen7Layout
}

// HasImm64 reports whether a source 0 immediate may be 64 bits wide
func (l *Layout) HasImm64() bool {
	return l.Imm64Low.Present()
}

// RegTypeCode returns the code of a register operand type
func (l *Layout) RegTypeCode(t Type) (uint32, bool) {
	c, ok := l.regTypes[t]
	return c, ok
}

// ImmTypeCode returns the code of an immediate type
func (l *Layout) ImmTypeCode(t Type) (uint32, bool) {
	c, ok := l.immTypes[t]
	return c, ok
}

// ThreeSrcTypeCode returns the code of a 3-source operand type
func (l *Layout) ThreeSrcTypeCode(t Type) (uint32, bool) {
	c, ok := l.t3Types[t]
	return c, ok
}

func reverse(m map[Type]uint32, code uint32) (Type, bool) {
	for t, c := range m {
		if c == code {
			return t, true
		}
	}
	return 0, false
}

// RegType maps a register type code back to its type
func (l *Layout) RegType(code uint32) (Type, bool) { return reverse(l.regTypes, code) }

// ImmType maps an immediate type code back to its type
func (l *Layout) ImmType(code uint32) (Type, bool) { return reverse(l.immTypes, code) }

// ThreeSrcType maps a 3-source type code back to its type
func (l *Layout) ThreeSrcType(code uint32) (Type, bool) { return reverse(l.t3Types, code) }

// Fields returns every field of the layout by name, for validation and dumps
func (l *Layout) Fields() map[string]Field {
	m := map[string]Field{
		"opcode": l.Opcode, "access_mode": l.AccessMode, "mask_control": l.MaskControl,
		"dep_control": l.DepControl, "qtr_control": l.QtrControl, "nib_control": l.NibControl,
		"thread_control": l.ThreadControl, "pred_control": l.PredControl, "pred_inv": l.PredInv,
		"exec_size": l.ExecSize, "cond_mod": l.CondMod, "acc_wr": l.AccWrEnable,
		"cmpt": l.CmptControl, "debug": l.DebugControl, "saturate": l.Saturate,
		"flag_reg": l.FlagReg, "flag_subreg": l.FlagSubreg,
		"dst_file": l.DstFile, "dst_type": l.DstType, "src0_file": l.Src0File,
		"src0_type": l.Src0Type, "src1_file": l.Src1File, "src1_type": l.Src1Type,
		"dst_addr_mode": l.DstAddrMode, "dst_nr": l.DstNr, "dst_subreg": l.DstSubreg,
		"dst_hstride": l.DstHStride, "dst_ia_low": l.DstIndirect.Low, "dst_ia_high": l.DstIndirect.High,
		"dst_a0_subreg": l.DstA0Subreg, "dst_writemask": l.DstWritemask, "dst_subreg16": l.DstSubreg16,
		"src0_nr": l.Src0Nr, "src0_subreg": l.Src0Subreg, "src0_abs": l.Src0Abs, "src0_neg": l.Src0Neg,
		"src0_addr_mode": l.Src0AddrMode, "src0_hstride": l.Src0HStride, "src0_width": l.Src0Width,
		"src0_vstride": l.Src0VStride, "src0_ia_low": l.Src0Indirect.Low, "src0_ia_high": l.Src0Indirect.High,
		"src0_a0_subreg": l.Src0A0Subreg,
		"src1_nr": l.Src1Nr, "src1_subreg": l.Src1Subreg, "src1_abs": l.Src1Abs, "src1_neg": l.Src1Neg,
		"src1_addr_mode": l.Src1AddrMode, "src1_hstride": l.Src1HStride, "src1_width": l.Src1Width,
		"src1_vstride": l.Src1VStride, "imm32": l.Imm32, "imm64_low": l.Imm64Low,
		"desc_function": l.DescFunction, "desc_header": l.DescHeader, "desc_rlen": l.DescRlen,
		"desc_mlen": l.DescMlen, "desc_eot": l.DescEOT,
		"t3_dst_file": l.T3DstFile, "t3_flag_reg": l.T3FlagReg, "t3_flag_subreg": l.T3FlagSubreg,
		"t3_src_type": l.T3SrcType, "t3_dst_type": l.T3DstType, "t3_dst_writemask": l.T3DstWritemask,
		"t3_dst_subreg": l.T3DstSubreg, "t3_dst_nr": l.T3DstNr,
	}
	for i := 0; i < 3; i++ {
		n := string(rune('0' + i))
		m["t3_src"+n+"_abs"] = l.T3SrcAbs[i]
		m["t3_src"+n+"_neg"] = l.T3SrcNeg[i]
		m["t3_src"+n+"_rep"] = l.T3RepCtrl[i]
		m["t3_src"+n+"_swizzle"] = l.T3Swizzle[i]
		m["t3_src"+n+"_subreg"] = l.T3Subreg[i]
		m["t3_src"+n+"_nr"] = l.T3Nr[i]
	}
	return m
}
