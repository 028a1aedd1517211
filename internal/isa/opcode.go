// Completion: 100% - Opcodes and message targets complete
package isa

import "fmt"

// Opcode is the 7-bit hardware opcode in bits 6:0
type Opcode uint8

const (
	OpMov  Opcode = 1
	OpSel  Opcode = 2
	OpNot  Opcode = 4
	OpAnd  Opcode = 5
	OpOr   Opcode = 6
	OpXor  Opcode = 7
	OpShr  Opcode = 8
	OpShl  Opcode = 9
	OpAsr  Opcode = 12
	OpCmp  Opcode = 16
	OpJmpi Opcode = 32
	OpWait Opcode = 48
	OpSend Opcode = 49
	OpAdd  Opcode = 64
	OpMul  Opcode = 65
	OpMad  Opcode = 91
	OpLrp  Opcode = 92
	OpNop  Opcode = 126
)

var opcodeNames = map[Opcode]string{
	OpMov: "mov", OpSel: "sel", OpNot: "not", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpShr: "shr", OpShl: "shl", OpAsr: "asr", OpCmp: "cmp", OpJmpi: "jmpi", OpWait: "wait",
	OpSend: "send", OpAdd: "add", OpMul: "mul", OpMad: "mad", OpLrp: "lrp", OpNop: "nop",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// IsThreeSource reports whether op uses the 3-source layout
func (op Opcode) IsThreeSource() bool {
	return op == OpMad || op == OpLrp
}

// Sources returns how many source operands op reads
func (op Opcode) Sources() int {
	switch op {
	case OpMov, OpNot, OpWait:
		return 1
	case OpMad, OpLrp:
		return 3
	case OpNop:
		return 0
	}
	return 2
}

// Conditional modifiers (bits 27:24 of non-send instructions)
const (
	CondNone = 0
	CondZ    = 1
	CondNZ   = 2
	CondG    = 3
	CondGE   = 4
	CondL    = 5
	CondLE   = 6
)

// SFID is the shared function a SEND addresses, stored in the
// conditional modifier bits
type SFID uint8

const (
	SFIDNull             SFID = 0
	SFIDSampler          SFID = 2
	SFIDMessageGateway   SFID = 3
	SFIDDataportSampler  SFID = 4
	SFIDDataportRender   SFID = 5
	SFIDURB              SFID = 6
	SFIDThreadSpawner    SFID = 7
	SFIDDataportConstant SFID = 9
	SFIDDataportData     SFID = 10 // data cache 0
	SFIDDataportData1    SFID = 12 // data cache 1, Gen7.5 and newer
	SFIDCheckRefine      SFID = 13 // video motion estimation check and refinement
)

var sfidNames = map[SFID]string{
	SFIDNull: "null", SFIDSampler: "sampler", SFIDMessageGateway: "gateway",
	SFIDDataportSampler: "dp_sampler", SFIDDataportRender: "dp_render", SFIDURB: "urb",
	SFIDThreadSpawner: "spawner", SFIDDataportConstant: "dp_const",
	SFIDDataportData: "dp_dc0", SFIDDataportData1: "dp_dc1", SFIDCheckRefine: "cre",
}

func (s SFID) String() string {
	if name, ok := sfidNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sfid(%d)", uint8(s))
}
