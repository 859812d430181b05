package vm

import "github.com/pkg/errors"

// ---------------------------------------------------------------------------
// Builder: assembles instructions into ordered code segments
// ---------------------------------------------------------------------------

// Builder appends instructions to the active code segment. Segment 0 is
// active by default. Invalid operand forms do not panic: the first one is
// remembered and returned by Commit.
type Builder struct {
	segments [][]Instruction
	active   int
	err      error
}

// NewBuilder returns a builder with a single, active, empty segment.
func NewBuilder() *Builder {
	return &Builder{segments: [][]Instruction{nil}}
}

// ActiveSegment returns the id of the segment receiving instructions.
func (b *Builder) ActiveSegment() int { return b.active }

// CreateSegment appends a new empty segment and returns its id. The active
// segment does not change.
func (b *Builder) CreateSegment() int {
	b.segments = append(b.segments, nil)
	return len(b.segments) - 1
}

// SetActiveSegment directs subsequent instructions to segment id.
func (b *Builder) SetActiveSegment(id int) error {
	if id < 0 || id >= len(b.segments) {
		return errors.Errorf("builder: no code segment %d", id)
	}
	b.active = id
	return nil
}

// Segment returns a copy of one segment's instructions.
func (b *Builder) Segment(id int) []Instruction {
	if id < 0 || id >= len(b.segments) {
		return nil
	}
	out := make([]Instruction, len(b.segments[id]))
	copy(out, b.segments[id])
	return out
}

// Len returns the number of instructions across all segments.
func (b *Builder) Len() int {
	n := 0
	for _, seg := range b.segments {
		n += len(seg)
	}
	return n
}

// Err returns the first operand error recorded, if any.
func (b *Builder) Err() error { return b.err }

// Commit flattens every segment, in id order, into one program.
func (b *Builder) Commit() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	prog := &Program{Instructions: make([]Instruction, 0, b.Len())}
	for _, seg := range b.segments {
		prog.Instructions = append(prog.Instructions, seg...)
	}
	return prog, nil
}

func (b *Builder) emit(op Opcode, operands ...Operand) *Builder {
	b.segments[b.active] = append(b.segments[b.active], Instruction{Op: op, Operands: operands})
	return b
}

func (b *Builder) fail(op Opcode, format string, args ...interface{}) *Builder {
	if b.err == nil {
		b.err = errors.Wrapf(errors.Errorf(format, args...), "builder: %s", op)
	}
	return b
}

func (b *Builder) reg(op Opcode, operands ...RegID) bool {
	for _, r := range operands {
		if !r.Valid() {
			b.fail(op, "invalid register %d", r)
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Data movement
// ---------------------------------------------------------------------------

// MOV copies src into dst. dst must be a register or a symbol reference.
// Storage-to-storage and literal-to-storage moves are rejected; they have to
// pass through a register.
func (b *Builder) MOV(dst, src Operand) *Builder {
	switch {
	case !dst.Writable():
		return b.fail(OpMOV, "destination %s is not writable", dst)
	case dst.IsReference() && src.Kind != OperandRegister:
		return b.fail(OpMOV, "storage destination needs a register source, got %s", src)
	case src.Kind == 0:
		return b.fail(OpMOV, "missing source operand")
	}
	return b.emit(OpMOV, dst, src)
}

func (b *Builder) PUSH(src RegID) *Builder {
	if !b.reg(OpPUSH, src) {
		return b
	}
	return b.emit(OpPUSH, Reg(src))
}

func (b *Builder) POP(dst RegID) *Builder {
	if !b.reg(OpPOP, dst) {
		return b
	}
	return b.emit(OpPOP, Reg(dst))
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func (b *Builder) binary(op Opcode, dst, src RegID) *Builder {
	if !b.reg(op, dst, src) {
		return b
	}
	return b.emit(op, Reg(dst), Reg(src))
}

func (b *Builder) ADD(dst, src RegID) *Builder { return b.binary(OpADD, dst, src) }
func (b *Builder) SUB(dst, src RegID) *Builder { return b.binary(OpSUB, dst, src) }
func (b *Builder) MUL(dst, src RegID) *Builder { return b.binary(OpMULT, dst, src) }

// DIV leaves the quotient in dst and the remainder in R4.
func (b *Builder) DIV(dst, src RegID) *Builder { return b.binary(OpDIV, dst, src) }
func (b *Builder) EXP(dst, src RegID) *Builder { return b.binary(OpEXP, dst, src) }

func (b *Builder) NEG(dst RegID) *Builder {
	if !b.reg(OpNEG, dst) {
		return b
	}
	return b.emit(OpNEG, Reg(dst))
}

// ---------------------------------------------------------------------------
// Shifts
// ---------------------------------------------------------------------------

func (b *Builder) shift(op Opcode, dst RegID, count int32) *Builder {
	if !b.reg(op, dst) {
		return b
	}
	if count < 0 {
		return b.fail(op, "negative shift count %d", count)
	}
	return b.emit(op, Reg(dst), Imm(count))
}

func (b *Builder) SAR(dst RegID, count int32) *Builder { return b.shift(OpSAR, dst, count) }
func (b *Builder) SAL(dst RegID, count int32) *Builder { return b.shift(OpSAL, dst, count) }
func (b *Builder) SLR(dst RegID, count int32) *Builder { return b.shift(OpSLR, dst, count) }
func (b *Builder) SLL(dst RegID, count int32) *Builder { return b.shift(OpSLL, dst, count) }

// ---------------------------------------------------------------------------
// Comparison and logic
// ---------------------------------------------------------------------------

func (b *Builder) CMP(lhs, rhs RegID) *Builder { return b.binary(OpCMP, lhs, rhs) }

func (b *Builder) logical(op Opcode, dst RegID, src Operand) *Builder {
	if !b.reg(op, dst) {
		return b
	}
	if src.Kind != OperandRegister && src.Kind != OperandImmInt {
		return b.fail(op, "source must be a register or integer immediate, got %s", src)
	}
	return b.emit(op, Reg(dst), src)
}

func (b *Builder) TEST(lhs RegID, rhs Operand) *Builder { return b.logical(OpTEST, lhs, rhs) }
func (b *Builder) AND(dst RegID, src Operand) *Builder  { return b.logical(OpAND, dst, src) }
func (b *Builder) OR(dst RegID, src Operand) *Builder   { return b.logical(OpOR, dst, src) }
func (b *Builder) XOR(dst RegID, src Operand) *Builder  { return b.logical(OpXOR, dst, src) }

// ---------------------------------------------------------------------------
// Jumps and set-on-condition
// ---------------------------------------------------------------------------

// Jump offsets are relative to the jump instruction itself.
func (b *Builder) JMP(offset int32) *Builder { return b.emit(OpJMP, Imm(offset)) }
func (b *Builder) JL(offset int32) *Builder  { return b.emit(OpJL, Imm(offset)) }
func (b *Builder) JLE(offset int32) *Builder { return b.emit(OpJLE, Imm(offset)) }
func (b *Builder) JG(offset int32) *Builder  { return b.emit(OpJG, Imm(offset)) }
func (b *Builder) JGE(offset int32) *Builder { return b.emit(OpJGE, Imm(offset)) }
func (b *Builder) JE(offset int32) *Builder  { return b.emit(OpJE, Imm(offset)) }
func (b *Builder) JNE(offset int32) *Builder { return b.emit(OpJNE, Imm(offset)) }

func (b *Builder) set(op Opcode, dst RegID) *Builder {
	if !b.reg(op, dst) {
		return b
	}
	return b.emit(op, Reg(dst))
}

func (b *Builder) SETL(dst RegID) *Builder  { return b.set(OpSETL, dst) }
func (b *Builder) SETLE(dst RegID) *Builder { return b.set(OpSETLE, dst) }
func (b *Builder) SETG(dst RegID) *Builder  { return b.set(OpSETG, dst) }
func (b *Builder) SETGE(dst RegID) *Builder { return b.set(OpSETGE, dst) }
func (b *Builder) SETE(dst RegID) *Builder  { return b.set(OpSETE, dst) }
func (b *Builder) SETNE(dst RegID) *Builder { return b.set(OpSETNE, dst) }

// ---------------------------------------------------------------------------
// Console
// ---------------------------------------------------------------------------

// PRINT writes a register to the output sink.
func (b *Builder) PRINT(src Operand) *Builder {
	if src.Kind != OperandRegister {
		return b.fail(OpPRNT, "source must be a register, got %s", src)
	}
	return b.emit(OpPRNT, src)
}

// CLEAR clears the output sink and resets the accumulator.
func (b *Builder) CLEAR() *Builder { return b.emit(OpCLR) }
