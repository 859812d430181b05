package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies a single machine instruction.
type Opcode byte

// Data movement
const (
	OpMOV  Opcode = 0x00 // move between registers and storage
	OpPUSH Opcode = 0x01 // push register onto the stack
	OpPOP  Opcode = 0x02 // pop stack top into register
)

// Arithmetic
const (
	OpADD  Opcode = 0x10 // dst += src
	OpSUB  Opcode = 0x11 // dst -= src
	OpMULT Opcode = 0x12 // dst *= src
	OpDIV  Opcode = 0x13 // dst /= src, remainder into R4
	OpEXP  Opcode = 0x14 // dst = dst ^ src
	OpNEG  Opcode = 0x15 // dst = -dst
)

// Shifts
const (
	OpSAR Opcode = 0x20 // arithmetic right shift
	OpSAL Opcode = 0x21 // arithmetic left shift
	OpSLR Opcode = 0x22 // logical right shift
	OpSLL Opcode = 0x23 // logical left shift
)

// Comparison and logic
const (
	OpCMP  Opcode = 0x30 // flags from lhs - rhs
	OpTEST Opcode = 0x31 // flags from lhs & rhs
	OpAND  Opcode = 0x32
	OpOR   Opcode = 0x33
	OpXOR  Opcode = 0x34
)

// Jumps (relative to the current instruction)
const (
	OpJMP Opcode = 0x40
	OpJL  Opcode = 0x41 // SF != OF
	OpJLE Opcode = 0x42 // ZF or SF != OF
	OpJG  Opcode = 0x43 // !ZF and SF == OF
	OpJGE Opcode = 0x44 // SF == OF
	OpJE  Opcode = 0x45 // ZF
	OpJNE Opcode = 0x46 // !ZF
)

// Set on condition
const (
	OpSETL  Opcode = 0x50
	OpSETLE Opcode = 0x51
	OpSETG  Opcode = 0x52
	OpSETGE Opcode = 0x53
	OpSETE  Opcode = 0x54
	OpSETNE Opcode = 0x55
)

// Console
const (
	OpPRNT Opcode = 0x60 // print register to the output sink
	OpCLR  Opcode = 0x61 // clear the output sink
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo describes an opcode for validation and disassembly.
type OpcodeInfo struct {
	Name     string
	Operands int // operand count
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpMOV:  {"MOV", 2},
	OpPUSH: {"PUSH", 1},
	OpPOP:  {"POP", 1},

	OpADD:  {"ADD", 2},
	OpSUB:  {"SUB", 2},
	OpMULT: {"MULT", 2},
	OpDIV:  {"DIV", 2},
	OpEXP:  {"EXP", 2},
	OpNEG:  {"NEG", 1},

	OpSAR: {"SAR", 2},
	OpSAL: {"SAL", 2},
	OpSLR: {"SLR", 2},
	OpSLL: {"SLL", 2},

	OpCMP:  {"CMP", 2},
	OpTEST: {"TEST", 2},
	OpAND:  {"AND", 2},
	OpOR:   {"OR", 2},
	OpXOR:  {"XOR", 2},

	OpJMP: {"JMP", 1},
	OpJL:  {"JL", 1},
	OpJLE: {"JLE", 1},
	OpJG:  {"JG", 1},
	OpJGE: {"JGE", 1},
	OpJE:  {"JE", 1},
	OpJNE: {"JNE", 1},

	OpSETL:  {"SETL", 1},
	OpSETLE: {"SETLE", 1},
	OpSETG:  {"SETG", 1},
	OpSETGE: {"SETGE", 1},
	OpSETE:  {"SETE", 1},
	OpSETNE: {"SETNE", 1},

	OpPRNT: {"PRNT", 1},
	OpCLR:  {"CLR", 0},
}

// Info returns metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

func (op Opcode) String() string {
	return op.Name()
}

// OpcodeByName looks up an opcode by mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	for op, info := range opcodeTable {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}

// isJump reports whether op transfers control.
func (op Opcode) isJump() bool {
	return op >= OpJMP && op <= OpJNE
}
