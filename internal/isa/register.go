// Completion: 100% - Physical operand model complete
package isa

import (
	"fmt"
	"math"
	"strings"
)

// GRFSize is the size in bytes of one general register
const GRFSize = 32

// Architecture register numbers
const (
	ARFNull         = 0x00
	ARFAddress      = 0x10
	ARFAccumulator  = 0x20
	ARFFlag         = 0x30
	ARFMask         = 0x40
	ARFState        = 0x70
	ARFControl      = 0x80
	ARFNotification = 0x90
	ARFIP           = 0xa0
	ARFTimestamp    = 0xc0
)

// Register is a fully allocated physical operand. Subnr is a byte offset
// inside register Nr. Region fields hold the hardware codes of types.go.
type Register struct {
	File    RegFile
	Type    Type
	Nr      uint32
	Subnr   uint32
	VStride uint8
	Width   uint8
	HStride uint8
	Neg     bool
	Abs     bool

	Indirect bool
	A0Subnr  uint32 // address register entry holding the base byte address
	AddrImm  int32  // byte offset added to the address register

	Imm uint64 // immediate bits, FileIMM only
}

// Vec builds a GRF operand with the region <vstride;width,hstride> given as
// element counts
func Vec(nr, subnr uint32, t Type, vstride, width, hstride int) Register {
	v, _ := EncodeVStride(vstride)
	w, _ := EncodeWidth(width)
	h, _ := EncodeHStride(hstride)
	return Register{File: FileGRF, Type: t, Nr: nr, Subnr: subnr, VStride: v, Width: w, HStride: h}
}

// Vec1 is a scalar region <0;1,0>
func Vec1(nr, subnr uint32, t Type) Register {
	return Vec(nr, subnr, t, 0, 1, 0)
}

// Vec8 is an eight-lane region <8;8,1>
func Vec8(nr, subnr uint32, t Type) Register {
	return Vec(nr, subnr, t, 8, 8, 1)
}

// Vec16 is a sixteen-lane region. Dword and wider types are compressed
// over consecutive registers with <8;8,1>, words and bytes use <16;16,1>.
func Vec16(nr, subnr uint32, t Type) Register {
	if t.Size() >= 4 {
		return Vec(nr, subnr, t, 8, 8, 1)
	}
	return Vec(nr, subnr, t, 16, 16, 1)
}

func UD8GRF(nr, subnr uint32) Register  { return Vec8(nr, subnr, TypeUD) }
func UD16GRF(nr, subnr uint32) Register { return Vec16(nr, subnr, TypeUD) }
func UW8GRF(nr, subnr uint32) Register  { return Vec8(nr, subnr, TypeUW) }
func UW16GRF(nr, subnr uint32) Register { return Vec16(nr, subnr, TypeUW) }
func UL8GRF(nr, subnr uint32) Register  { return Vec8(nr, subnr, TypeUL) }
func UL16GRF(nr, subnr uint32) Register { return Vec16(nr, subnr, TypeUL) }
func F8GRF(nr, subnr uint32) Register   { return Vec8(nr, subnr, TypeF) }
func UD1GRF(nr, subnr uint32) Register  { return Vec1(nr, subnr, TypeUD) }
func UW1GRF(nr, subnr uint32) Register  { return Vec1(nr, subnr, TypeUW) }
func UB1GRF(nr, subnr uint32) Register  { return Vec1(nr, subnr, TypeUB) }

// Unpacked views a register as every other element of half the width,
// <16;8,2>, so that a dword or word sits in the low half of each wider lane
func Unpacked(r Register, t Type) Register {
	r.Type = t
	r.VStride, _ = EncodeVStride(16)
	r.Width, _ = EncodeWidth(8)
	r.HStride, _ = EncodeHStride(2)
	return r
}

// UnpackedUD views the low (part 0) or high (part 1) dwords of a qword register
func UnpackedUD(r Register, part uint32) Register {
	u := Unpacked(r, TypeUD)
	u.Subnr += 4 * part
	return u
}

// UnpackedUW views the low words of a dword register
func UnpackedUW(r Register) Register {
	return Unpacked(r, TypeUW)
}

func imm(t Type, v uint64) Register {
	return Register{File: FileIMM, Type: t, Imm: v}
}

func ImmUD(v uint32) Register { return imm(TypeUD, uint64(v)) }
func ImmD(v int32) Register   { return imm(TypeD, uint64(uint32(v))) }
func ImmUL(v uint64) Register { return imm(TypeUL, v) }
func ImmL(v int64) Register   { return imm(TypeL, uint64(v)) }
func ImmV(v uint32) Register  { return imm(TypeV, uint64(v)) }
func ImmF(v float32) Register { return imm(TypeF, uint64(math.Float32bits(v))) }

// ImmDF is a double immediate, Gen8 family only
func ImmDF(v float64) Register { return imm(TypeDF, math.Float64bits(v)) }

// ImmUW replicates the word into both halves of the immediate dword
func ImmUW(v uint16) Register { return imm(TypeUW, uint64(v)|uint64(v)<<16) }

// ImmW replicates the word into both halves of the immediate dword
func ImmW(v int16) Register { return imm(TypeW, uint64(uint16(v))|uint64(uint16(v))<<16) }

func arf(nr, subnr uint32, t Type) Register {
	r := Vec1(nr, subnr, t)
	r.File = FileARF
	return r
}

// Null is the null destination
func Null() Register {
	r := Vec8(ARFNull, 0, TypeUD)
	r.File = FileARF
	return r
}

// Addr1 is one word of the address register a0
func Addr1(subnr uint32) Register {
	return arf(ARFAddress, subnr*2, TypeUW)
}

// Addr8 is eight words of a0 starting at the given entry
func Addr8(subnr uint32) Register {
	r := Vec8(ARFAddress, subnr*2, TypeUW)
	r.File = FileARF
	return r
}

// Notification0 is the notification register the WAIT instruction blocks on
func Notification0(subnr uint32) Register {
	return arf(ARFNotification, subnr, TypeUD)
}

// IP is the instruction pointer
func IP() Register {
	return arf(ARFIP, 0, TypeUD)
}

// Indirect builds a VxH source that fetches each lane from the byte address
// held by its own a0 entry plus imm
func Indirect(t Type, a0subnr uint32, imm int32) Register {
	return Register{
		File:     FileGRF,
		Type:     t,
		Indirect: true,
		A0Subnr:  a0subnr,
		AddrImm:  imm,
		VStride:  VStrideVxH,
		Width:    Width1,
		HStride:  HStride0,
	}
}

// Retype returns r with another element type
func Retype(r Register, t Type) Register {
	r.Type = t
	return r
}

// Negate returns r with the negate modifier flipped
func Negate(r Register) Register {
	if r.File == FileIMM {
		return r
	}
	r.Neg = !r.Neg
	return r
}

// Offset moves r by nr registers and subnr bytes
func Offset(r Register, nr, subnr uint32) Register {
	r.Subnr += subnr
	r.Nr += nr + r.Subnr/GRFSize
	r.Subnr %= GRFSize
	return r
}

// Suboffset moves r by a number of elements
func Suboffset(r Register, elems uint32) Register {
	if r.IsScalar() {
		return r
	}
	return Offset(r, 0, elems*uint32(r.Type.Size())*uint32(max(StrideElems(r.HStride), 1)))
}

// Qn selects the eight-lane quarter q of a vector register
func Qn(r Register, q uint32) Register {
	if r.IsScalar() {
		return r
	}
	return Suboffset(r, 8*q)
}

// Scalar turns r into a <0;1,0> region
func Scalar(r Register) Register {
	r.VStride, r.Width, r.HStride = VStride0, Width1, HStride0
	return r
}

// IsScalar reports whether every lane reads the same element
func (r Register) IsScalar() bool {
	return r.File != FileIMM && !r.Indirect && r.VStride == VStride0 && r.Width == Width1 && r.HStride == HStride0
}

// IsNull reports whether r is the null register
func (r Register) IsNull() bool {
	return r.File == FileARF && r.Nr == ARFNull
}

// ByteOffset returns the register file byte address of a direct GRF operand
func (r Register) ByteOffset() uint32 {
	return r.Nr*GRFSize + r.Subnr
}

func (r Register) String() string {
	var sb strings.Builder
	if r.Neg {
		sb.WriteString("-")
	}
	if r.Abs {
		sb.WriteString("(abs)")
	}
	switch {
	case r.File == FileIMM:
		fmt.Fprintf(&sb, "0x%x:%s", r.Imm, r.Type)
		return sb.String()
	case r.Indirect:
		fmt.Fprintf(&sb, "r[a0.%d,%d]<VxH>:%s", r.A0Subnr, r.AddrImm, r.Type)
		return sb.String()
	case r.IsNull():
		sb.WriteString("null")
	case r.File == FileARF:
		fmt.Fprintf(&sb, "arf0x%02x.%d", r.Nr, r.Subnr)
	default:
		fmt.Fprintf(&sb, "%s%d.%d", map[RegFile]string{FileGRF: "r", FileMRF: "m"}[r.File], r.Nr, r.Subnr/uint32(max(r.Type.Size(), 1)))
	}
	if r.VStride == VStrideVxH {
		sb.WriteString("<VxH>")
	} else {
		fmt.Fprintf(&sb, "<%d;%d,%d>", StrideElems(r.VStride), 1<<r.Width, StrideElems(r.HStride))
	}
	fmt.Fprintf(&sb, ":%s", r.Type)
	return sb.String()
}
