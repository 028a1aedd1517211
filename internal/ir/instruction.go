// Completion: 100% - Instruction stream complete
package ir

import (
	"fmt"
	"strings"
)

// Opcode is a selected device-level operation
type Opcode uint8

const (
	OpNop Opcode = iota
	OpMov
	OpNot
	OpAdd
	OpMul
	OpMulHi // high 64 bits of a 64x64 unsigned product
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpAsr
	OpMad
	OpLrp
	OpBarrier
	OpAtomic
	OpLoad  // untyped surface read: Dst <- [Src0]
	OpStore // untyped surface write: [Src0] <- Src1
	OpIndirectMov
	OpLabel
	OpJmpi
	OpEOT
	OpCmp // f0.0 <- Src0 Cond Src1, Dst optional
	OpSel // Dst <- f0.0 ? Src0 : Src1
	OpIme // motion estimation: Dst <- response, Src the payload dwords

	// Produced by lowering and allocation, never by the front end.
	OpI64Mul      // Dst = Src0*Src1 mod 2^64 through 32-bit products, Src2 scratch
	OpI64MulHi    // Dst = high half of Src0*Src1, Src2 to Src4 scratch
	OpAtomicMsg   // atomic on a prepared payload
	OpStoreMsg    // untyped write of a prepared payload
	OpStackSetup  // compute the per-lane stack pointer into Dst
	OpReload      // Dst <- scratch[Offset]
	OpSpill       // scratch[Offset] <- Src0
	OpImeMsg      // motion estimation on a payload staged from Src1 onwards
)

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpMov: "mov", OpNot: "not", OpAdd: "add", OpMul: "mul", OpMulHi: "mul_hi",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpShl: "shl", OpShr: "shr", OpAsr: "asr",
	OpMad: "mad", OpLrp: "lrp", OpBarrier: "barrier", OpAtomic: "atomic", OpLoad: "load",
	OpStore: "store", OpIndirectMov: "mov_indirect", OpLabel: "label", OpJmpi: "jmpi",
	OpEOT: "eot", OpCmp: "cmp", OpSel: "sel", OpI64Mul: "i64_mul", OpI64MulHi: "i64_mul_hi",
	OpAtomicMsg: "atomic_msg", OpStoreMsg: "store_msg", OpStackSetup: "stack_setup",
	OpReload: "reload", OpSpill: "spill", OpIme: "ime", OpImeMsg: "ime_msg",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// IsThreeSource reports whether op takes three sources on the 3-source ALU
func (op Opcode) IsThreeSource() bool {
	return op == OpMad || op == OpLrp
}

// BarrierFlags selects the memory fences a barrier performs first
type BarrierFlags uint8

const (
	FenceLocal BarrierFlags = 1 << iota
	FenceGlobal
	FenceImage
)

// AtomicOp is an untyped atomic operation
type AtomicOp uint8

const (
	AtomicAnd AtomicOp = iota + 1
	AtomicOr
	AtomicXor
	AtomicXchg
	AtomicInc
	AtomicDec
	AtomicAdd
	AtomicSub
	AtomicRevSub
	AtomicIMax
	AtomicIMin
	AtomicUMax
	AtomicUMin
	AtomicCmpXchg
)

var atomicNames = map[AtomicOp]string{
	AtomicAnd: "and", AtomicOr: "or", AtomicXor: "xor", AtomicXchg: "xchg", AtomicInc: "inc",
	AtomicDec: "dec", AtomicAdd: "add", AtomicSub: "sub", AtomicRevSub: "revsub",
	AtomicIMax: "imax", AtomicIMin: "imin", AtomicUMax: "umax", AtomicUMin: "umin",
	AtomicCmpXchg: "cmpxchg",
}

func (a AtomicOp) String() string {
	if name, ok := atomicNames[a]; ok {
		return name
	}
	return "unknown"
}

// Operands returns how many data operands the atomic takes besides the address
func (a AtomicOp) Operands() int {
	switch a {
	case AtomicInc, AtomicDec:
		return 0
	case AtomicCmpXchg:
		return 2
	default:
		return 1
	}
}

// MotionMessage selects the video motion estimation operation of an OpIme
type MotionMessage uint8

const (
	// skip and intra check
	MotionSIC MotionMessage = iota + 1
	// integer motion estimation
	MotionIME
	// fractional and bidirectional refinement
	MotionFBR
)

// MotionResponseRegs is the size of every motion estimation writeback
const MotionResponseRegs = 7

func (m MotionMessage) String() string {
	switch m {
	case MotionSIC:
		return "sic"
	case MotionIME:
		return "ime"
	case MotionFBR:
		return "fbr"
	}
	return "unknown"
}

// PayloadRegs returns how many registers the message payload occupies, or 0
// for an unknown message
func (m MotionMessage) PayloadRegs() int {
	switch m {
	case MotionSIC, MotionFBR:
		return 8
	case MotionIME:
		return 6
	}
	return 0
}

// Condition is the comparison of an OpCmp
type Condition uint8

const (
	CondEQ Condition = iota + 1
	CondNE
	CondGT
	CondGE
	CondLT
	CondLE
)

var conditionNames = [...]string{"", "eq", "ne", "gt", "ge", "lt", "le"}

func (c Condition) String() string {
	if int(c) < len(conditionNames) && c != 0 {
		return conditionNames[c]
	}
	return "?"
}

// Instruction is one selected operation. Positions in Kernel.Instructions are
// the program points liveness is measured in.
type Instruction struct {
	Op         Opcode
	Dst        Operand
	Src        []Operand
	ExecWidth  int // 0 means the kernel SIMD width
	Block      int // basic block id
	Predicated bool
	Barrier    BarrierFlags
	Atomic     AtomicOp
	Cond       Condition
	BTI        uint8
	Label      int      // OpLabel id or OpJmpi target
	A0         []uint16 // OpIndirectMov per-lane byte offsets from the base register
	Offset     uint32   // scratch byte offset for OpReload and OpSpill
	Motion     MotionMessage
}

// Width returns the execution width of in inside kernel k
func (in *Instruction) Width(k *Kernel) int {
	if in.ExecWidth > 0 {
		return in.ExecWidth
	}
	return k.SIMDWidth
}

// Operands calls fn for the destination then every source register operand.
// The bool argument is true for the destination.
func (in *Instruction) Operands(fn func(op *Operand, isDst bool)) {
	if in.Dst.IsReg() {
		fn(&in.Dst, true)
	}
	for i := range in.Src {
		if in.Src[i].IsReg() {
			fn(&in.Src[i], false)
		}
	}
}

// Reads reports whether in reads register r
func (in *Instruction) Reads(r Register) bool {
	for _, s := range in.Src {
		if s.IsReg() && s.Reg == r {
			return true
		}
	}
	return false
}

func (in *Instruction) String() string {
	var sb strings.Builder
	if in.Predicated {
		sb.WriteString("(+f0) ")
	}
	sb.WriteString(in.Op.String())
	if in.ExecWidth > 0 {
		fmt.Fprintf(&sb, "(%d)", in.ExecWidth)
	}
	switch in.Op {
	case OpLabel:
		fmt.Fprintf(&sb, " L%d", in.Label)
		return sb.String()
	case OpJmpi:
		fmt.Fprintf(&sb, " L%d", in.Label)
		return sb.String()
	case OpAtomic, OpAtomicMsg:
		fmt.Fprintf(&sb, ".%s bti%d", in.Atomic, in.BTI)
	case OpCmp:
		fmt.Fprintf(&sb, ".%s", in.Cond)
	case OpIme, OpImeMsg:
		fmt.Fprintf(&sb, ".%s bti%d", in.Motion, in.BTI)
	case OpReload, OpSpill:
		fmt.Fprintf(&sb, " @%d", in.Offset)
	}
	if in.Dst.Kind != KindNone {
		sb.WriteString(" ")
		sb.WriteString(in.Dst.String())
	}
	for _, s := range in.Src {
		sb.WriteString(", ")
		sb.WriteString(s.String())
	}
	return sb.String()
}
