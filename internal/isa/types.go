// Completion: 100% - Register files, types and region encodings complete
package isa

import (
	"fmt"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// RegFile is the register file an operand lives in
type RegFile uint8

const (
	FileARF RegFile = 0 // architecture registers
	FileGRF RegFile = 1
	FileMRF RegFile = 2 // message registers, Gen6 only
	FileIMM RegFile = 3
)

var fileNames = [...]string{"arf", "grf", "mrf", "imm"}

func (f RegFile) String() string {
	if int(f) < len(fileNames) {
		return fileNames[f]
	}
	return fmt.Sprintf("file(%d)", uint8(f))
}

// Type is an operand element type as the hardware sees it. The numeric
// codes written into a word depend on the layout family.
type Type uint8

const (
	TypeUD Type = iota
	TypeD
	TypeUW
	TypeW
	TypeUB
	TypeB
	TypeF
	TypeDF
	TypeUL
	TypeL
	TypeHF
	TypeV // packed 8 x 4-bit signed immediate vector
	numTypes
)

var typeNames = [numTypes]string{"UD", "D", "UW", "W", "UB", "B", "F", "DF", "UL", "L", "HF", "V"}

var typeSizes = [numTypes]int{4, 4, 2, 2, 1, 1, 4, 8, 8, 8, 2, 4}

func (t Type) String() string {
	if t < numTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Size returns the element size in bytes
func (t Type) Size() int {
	if t < numTypes {
		return typeSizes[t]
	}
	return 0
}

// Is64 reports whether the type is eight bytes wide
func (t Type) Is64() bool {
	return t.Size() == 8
}

// FromIR maps an IR element type
func FromIR(t ir.Type) Type {
	switch t {
	case ir.TypeUD:
		return TypeUD
	case ir.TypeD:
		return TypeD
	case ir.TypeUW:
		return TypeUW
	case ir.TypeW:
		return TypeW
	case ir.TypeUB:
		return TypeUB
	case ir.TypeB:
		return TypeB
	case ir.TypeF:
		return TypeF
	case ir.TypeDF:
		return TypeDF
	case ir.TypeUL:
		return TypeUL
	case ir.TypeL:
		return TypeL
	case ir.TypeHF:
		return TypeHF
	}
	return TypeUD
}

// Region encodings
const (
	VStride0   = 0
	VStride1   = 1
	VStride2   = 2
	VStride4   = 3
	VStride8   = 4
	VStride16  = 5
	VStride32  = 6
	VStrideVxH = 0xf // one address register entry per row, indirect only

	Width1  = 0
	Width2  = 1
	Width4  = 2
	Width8  = 3
	Width16 = 4

	HStride0 = 0
	HStride1 = 1
	HStride2 = 2
	HStride4 = 3
)

// encodeCount maps 1, 2, 4, 8, 16, 32 to 0..5
func encodeCount(n int) (uint32, bool) {
	code := uint32(0)
	for v := 1; v <= 32; v <<= 1 {
		if v == n {
			return code, true
		}
		code++
	}
	return 0, false
}

// EncodeExecSize returns the execution size code of a SIMD width
func EncodeExecSize(width int) (uint32, bool) {
	return encodeCount(width)
}

// DecodeExecSize is the inverse of EncodeExecSize
func DecodeExecSize(code uint32) int {
	return 1 << code
}

// EncodeWidth returns the region width code of an element count
func EncodeWidth(n int) (uint8, bool) {
	c, ok := encodeCount(n)
	return uint8(c), ok && n <= 16
}

// EncodeVStride returns the vertical stride code of an element distance
func EncodeVStride(n int) (uint8, bool) {
	if n == 0 {
		return VStride0, true
	}
	c, ok := encodeCount(n)
	return uint8(c + 1), ok
}

// EncodeHStride returns the horizontal stride code of an element distance
func EncodeHStride(n int) (uint8, bool) {
	switch n {
	case 0:
		return HStride0, true
	case 1:
		return HStride1, true
	case 2:
		return HStride2, true
	case 4:
		return HStride4, true
	}
	return 0, false
}

// StrideElems returns the element distance of a vertical or horizontal
// stride code; zero stays zero
func StrideElems(code uint8) int {
	if code == 0 {
		return 0
	}
	return 1 << (code - 1)
}

// Quarter controls
const (
	QuarterQ1 = 0
	QuarterQ2 = 1
	QuarterQ3 = 2
	QuarterQ4 = 3
)

// Access modes
const (
	Align1  = 0
	Align16 = 1
)

// Predicate controls
const (
	PredicateNone   = 0
	PredicateNormal = 1
)

// NoSwizzle is the identity xyzw swizzle of align16 operands
const NoSwizzle = 0<<0 | 1<<2 | 2<<4 | 3<<6

// WritemaskXYZW enables every channel of an align16 destination
const WritemaskXYZW = 0xf
