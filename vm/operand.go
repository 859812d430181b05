package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

// RegID names a machine register.
type RegID uint8

const (
	SP RegID = iota // stack pointer
	BP              // base pointer
	IP              // instruction pointer
	R1              // accumulator
	R2
	R3
	R4 // DIV remainder
	R5
	R6
	R7
	R8

	numRegisters
)

var regNames = [numRegisters]string{"SP", "BP", "IP", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8"}

// RemainderRegister receives the remainder of every DIV.
const RemainderRegister = R4

func (r RegID) Valid() bool { return r < numRegisters }

func (r RegID) String() string {
	if r.Valid() {
		return regNames[r]
	}
	return fmt.Sprintf("R?%d", r)
}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// OperandKind tags the variant held by an Operand.
type OperandKind uint8

const (
	OperandImmInt OperandKind = iota + 1
	OperandImmBool
	OperandImmStr
	OperandRegister
	OperandSymbol
)

// Operand is a tagged union. Only the fields belonging to Kind are
// meaningful. Symbol references carry the referenced type and byte offset.
type Operand struct {
	Kind   OperandKind
	Int    int32
	Bool   bool
	Str    string
	Reg    RegID
	Type   DataType // symbol references only
	Offset int      // symbol references only
}

// Imm returns an immediate integer operand.
func Imm(v int32) Operand { return Operand{Kind: OperandImmInt, Int: v} }

// ImmBool returns an immediate boolean operand.
func ImmBool(v bool) Operand { return Operand{Kind: OperandImmBool, Bool: v} }

// ImmStr returns an immediate string operand.
func ImmStr(s string) Operand { return Operand{Kind: OperandImmStr, Str: s} }

// Reg returns a register operand.
func Reg(id RegID) Operand { return Operand{Kind: OperandRegister, Reg: id} }

// Ref returns a storage reference to a declared symbol.
func Ref(sym Symbol) Operand {
	return Operand{Kind: OperandSymbol, Type: sym.Type, Offset: sym.Offset}
}

// DataType returns the operand's type tag: the immediate type, TypeRegister,
// or the referenced symbol's type.
func (o Operand) DataType() DataType {
	switch o.Kind {
	case OperandImmInt:
		return TypeImmInt4
	case OperandImmBool:
		return TypeImmBool
	case OperandImmStr:
		return TypeImmStr
	case OperandRegister:
		return TypeRegister
	case OperandSymbol:
		return o.Type
	}
	return TypeEmpty
}

// IsReference reports whether the operand addresses variable storage.
func (o Operand) IsReference() bool { return o.Kind == OperandSymbol }

// IsImmediate reports whether the operand is a literal.
func (o Operand) IsImmediate() bool {
	return o.Kind == OperandImmInt || o.Kind == OperandImmBool || o.Kind == OperandImmStr
}

// Writable reports whether the operand may be a destination.
func (o Operand) Writable() bool {
	return o.Kind == OperandRegister || o.Kind == OperandSymbol
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandImmInt:
		return "#" + strconv.FormatInt(int64(o.Int), 10)
	case OperandImmBool:
		return "#" + strconv.FormatBool(o.Bool)
	case OperandImmStr:
		return strconv.Quote(o.Str)
	case OperandRegister:
		return o.Reg.String()
	case OperandSymbol:
		return fmt.Sprintf("[%d]:%s", o.Offset, o.Type)
	}
	return "<invalid>"
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is one opcode with its operands.
type Instruction struct {
	Op       Opcode
	Operands []Operand
}

func (in Instruction) String() string {
	if len(in.Operands) == 0 {
		return in.Op.Name()
	}
	parts := make([]string, len(in.Operands))
	for i, o := range in.Operands {
		parts[i] = o.String()
	}
	return in.Op.Name() + " " + strings.Join(parts, ",")
}

// Program is a linear instruction list ready to load into a Machine.
// StorageSize is the number of variable storage bytes the program's
// symbol references expect to exist.
type Program struct {
	Instructions []Instruction
	StorageSize  int
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Instructions) }

// Disassemble renders a program listing, one instruction per line.
func Disassemble(p *Program) string {
	var b strings.Builder
	for i, in := range p.Instructions {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%04d  %s", i, in)
		if in.Op.isJump() && len(in.Operands) == 1 && in.Operands[0].Kind == OperandImmInt {
			fmt.Fprintf(&b, " (-> %04d)", i+int(in.Operands[0].Int))
		}
	}
	return b.String()
}
