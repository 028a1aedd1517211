// Completion: 100% - Type model complete
package ir

import (
	"fmt"
	"math"
)

// Register is a virtual register. Identifiers are dense and sequential,
// starting at zero, so they double as array indices.
type Register uint32

// NoRegister is the invalid register
const NoRegister Register = math.MaxUint32

func (r Register) String() string {
	if r == NoRegister {
		return "%none"
	}
	return fmt.Sprintf("%%%d", uint32(r))
}

// Type is the element type of an operand
type Type uint8

const (
	TypeUD Type = iota // unsigned dword
	TypeD              // signed dword
	TypeUW             // unsigned word
	TypeW              // signed word
	TypeUB             // unsigned byte
	TypeB              // signed byte
	TypeF              // float
	TypeDF             // double
	TypeUL             // unsigned qword
	TypeL              // signed qword
	TypeHF             // half float
)

var typeNames = [...]string{"ud", "d", "uw", "w", "ub", "b", "f", "df", "ul", "l", "hf"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "?"
}

// Size returns the element size in bytes
func (t Type) Size() int {
	switch t {
	case TypeUB, TypeB:
		return 1
	case TypeUW, TypeW, TypeHF:
		return 2
	case TypeDF, TypeUL, TypeL:
		return 8
	default:
		return 4
	}
}

// Is64 reports whether t is a qword type
func (t Type) Is64() bool {
	return t.Size() == 8
}

// IsInt64 reports whether t is a 64-bit integer type
func (t Type) IsInt64() bool {
	return t == TypeUL || t == TypeL
}

// IsFloat reports whether t is a floating point type
func (t Type) IsFloat() bool {
	return t == TypeF || t == TypeDF || t == TypeHF
}

// OperandKind tells how an Operand is interpreted
type OperandKind uint8

const (
	KindNone OperandKind = iota
	KindRegister
	KindImmediate
)

// Operand is a typed reference to a virtual register or an immediate.
// A vector register holds one element per lane; a scalar one holds a single
// element broadcast to every lane. Span > 1 makes the register a run of Span
// consecutive vectors (message payloads); Part selects one of them.
type Operand struct {
	Kind   OperandKind
	Reg    Register
	Type   Type
	Scalar bool
	Span   int
	Part   int
	Imm    uint64
	Neg    bool
	Abs    bool
}

// Reg returns a vector register operand
func Reg(r Register, t Type) Operand {
	return Operand{Kind: KindRegister, Reg: r, Type: t}
}

// Scalar returns a scalar register operand
func Scalar(r Register, t Type) Operand {
	return Operand{Kind: KindRegister, Reg: r, Type: t, Scalar: true}
}

// Payload returns the whole of a multi-vector register
func Payload(r Register, t Type, span int) Operand {
	return Operand{Kind: KindRegister, Reg: r, Type: t, Span: span}
}

// PayloadPart returns vector part of a span-long register
func PayloadPart(r Register, t Type, span, part int) Operand {
	return Operand{Kind: KindRegister, Reg: r, Type: t, Span: span, Part: part}
}

// Imm returns an immediate operand
func Imm(v uint64, t Type) Operand {
	return Operand{Kind: KindImmediate, Reg: NoRegister, Type: t, Imm: v, Scalar: true}
}

// IsReg reports whether the operand names a register
func (o Operand) IsReg() bool {
	return o.Kind == KindRegister && o.Reg != NoRegister
}

// IsImm reports whether the operand is an immediate
func (o Operand) IsImm() bool {
	return o.Kind == KindImmediate
}

// Spans returns the number of vectors the register covers, at least one
func (o Operand) Spans() int {
	if o.Span < 1 {
		return 1
	}
	return o.Span
}

// Bytes returns the register storage the operand needs at the given width
func (o Operand) Bytes(width int) int {
	lanes := width
	if o.Scalar {
		lanes = 1
	}
	return o.Type.Size() * lanes * o.Spans()
}

func (o Operand) String() string {
	switch o.Kind {
	case KindRegister:
		s := o.Reg.String()
		if o.Span > 1 {
			s += fmt.Sprintf("[%d/%d]", o.Part, o.Span)
		}
		if o.Scalar {
			s += "<0>"
		}
		s += ":" + o.Type.String()
		if o.Abs {
			s = "(abs)" + s
		}
		if o.Neg {
			s = "-" + s
		}
		return s
	case KindImmediate:
		return fmt.Sprintf("0x%x:%s", o.Imm, o.Type)
	default:
		return "_"
	}
}
