package vm

import (
	"math"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("tinyscript.vm")

// DefaultStackGrow is the number of slots the stack grows by when full.
const DefaultStackGrow = 10

// Flags are the condition flags written by arithmetic, compare and logic
// instructions and read by conditional jumps and SETcc.
type Flags struct {
	ZF bool // zero
	SF bool // sign
	OF bool // overflow
}

func (f Flags) less() bool           { return f.SF != f.OF }
func (f Flags) lessOrEqual() bool    { return f.ZF || f.SF != f.OF }
func (f Flags) greater() bool        { return !f.ZF && f.SF == f.OF }
func (f Flags) greaterOrEqual() bool { return f.SF == f.OF }

// ---------------------------------------------------------------------------
// Machine: register file, flags, stack and dispatch loop
// ---------------------------------------------------------------------------

// Machine executes a Program against a variable Storage, writing PRINT and
// CLR output to an Output. It is single-threaded.
type Machine struct {
	regs      [numRegisters]Register
	flags     Flags
	stack     []Register
	stackGrow int

	program *Program
	storage *Storage
	out     Output

	maxSteps int
	steps    int
}

// NewMachine creates a machine bound to storage and out.
func NewMachine(storage *Storage, out Output) *Machine {
	m := &Machine{
		storage:   storage,
		out:       out,
		stackGrow: DefaultStackGrow,
	}
	m.Reset()
	return m
}

// SetStackGrow sets how many stack slots are added each time the stack
// fills. Values below 1 restore the default.
func (m *Machine) SetStackGrow(n int) {
	if n < 1 {
		n = DefaultStackGrow
	}
	m.stackGrow = n
}

// SetMaxSteps bounds the number of instructions a single Run may execute.
// Zero means unbounded.
func (m *Machine) SetMaxSteps(n int) {
	if n < 0 {
		n = 0
	}
	m.maxSteps = n
}

// SetOutput replaces the output sink.
func (m *Machine) SetOutput(out Output) { m.out = out }

// Reset clears registers, flags and the stack. SP and BP start at -1.
func (m *Machine) Reset() {
	for i := range m.regs {
		m.regs[i] = Register{Type: TypeEmpty}
	}
	m.regs[SP] = Register{Value: IntValue(-1), Type: TypeImmInt4}
	m.regs[BP] = Register{Value: IntValue(-1), Type: TypeImmInt4}
	m.regs[IP] = Register{Value: IntValue(0), Type: TypeImmInt4}
	m.flags = Flags{}
	m.stack = make([]Register, m.stackGrow)
	m.steps = 0
}

// Load installs a program and points IP at its first instruction.
// Registers keep their values so the accumulator survives between loads.
func (m *Machine) Load(p *Program) {
	m.program = p
	m.setIP(0)
	m.steps = 0
	if p != nil {
		m.storage.EnsureSize(p.StorageSize)
	}
}

// Register returns a copy of one register.
func (m *Machine) Register(id RegID) Register {
	if !id.Valid() {
		return Register{}
	}
	return m.regs[id]
}

// Accumulator returns R1.
func (m *Machine) Accumulator() Register { return m.regs[R1] }

// Flags returns the current condition flags.
func (m *Machine) Flags() Flags { return m.flags }

// Steps returns the number of instructions executed since the last Load.
func (m *Machine) Steps() int { return m.steps }

// StackDepth returns the number of occupied stack slots.
func (m *Machine) StackDepth() int { return int(m.sp()) + 1 }

func (m *Machine) ip() int {
	v, _ := m.regs[IP].Int()
	return int(v)
}

func (m *Machine) setIP(ip int) {
	m.regs[IP] = Register{Value: IntValue(int32(ip)), Type: TypeImmInt4}
}

func (m *Machine) sp() int32 {
	v, _ := m.regs[SP].Int()
	return v
}

// Halted reports whether IP has run off the end of the loaded program.
func (m *Machine) Halted() bool {
	return m.program == nil || m.ip() < 0 || m.ip() >= len(m.program.Instructions)
}

// Run executes until IP leaves the program, a fault occurs, or the step
// limit is reached.
func (m *Machine) Run() error {
	for !m.Halted() {
		if m.maxSteps > 0 && m.steps >= m.maxSteps {
			return errors.Wrapf(ErrStepLimit, "after %d instructions", m.steps)
		}
		if _, err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes one instruction. It reports whether the machine halted.
func (m *Machine) Step() (halted bool, err error) {
	if m.Halted() {
		return true, nil
	}
	ip := m.ip()
	in := m.program.Instructions[ip]

	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(faultSignal); ok {
				err = &Fault{IP: ip, Op: in.Op, Msg: sig.msg}
			} else {
				err = errors.Errorf("vm: %v @ip=%d %s", r, ip, in)
			}
			log.Debugf("%s", err)
		}
	}()

	if !m.exec(ip, in) {
		m.setIP(ip + 1)
	}
	m.steps++
	return m.Halted(), nil
}

// ---------------------------------------------------------------------------
// Operand access
// ---------------------------------------------------------------------------

func (m *Machine) operand(in Instruction, i int) Operand {
	if i >= len(in.Operands) {
		faultf("missing operand %d", i)
	}
	return in.Operands[i]
}

func (m *Machine) register(o Operand) *Register {
	if o.Kind != OperandRegister || !o.Reg.Valid() {
		faultf("expected register operand, got %s", o)
	}
	return &m.regs[o.Reg]
}

func (m *Machine) int4(r *Register, what string) int32 {
	v, ok := r.Int()
	if r.Type != TypeInt4 || !ok {
		faultf("%s: unsupported type %s", what, r.Type)
	}
	return v
}

func (m *Machine) setResultFlags(v int32, overflow bool) {
	m.flags.ZF = v == 0
	m.flags.SF = v < 0
	m.flags.OF = overflow
}

func (m *Machine) jumpTarget(ip int, in Instruction) int {
	o := m.operand(in, 0)
	if o.Kind != OperandImmInt {
		faultf("jump offset must be an integer immediate, got %s", o)
	}
	return ip + int(o.Int)
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// exec runs one instruction and reports whether it jumped.
func (m *Machine) exec(ip int, in Instruction) bool {
	switch in.Op {
	case OpMOV:
		m.mov(m.operand(in, 0), m.operand(in, 1))

	case OpPUSH:
		src := m.register(m.operand(in, 0))
		m.push(*src)

	case OpPOP:
		dst := m.register(m.operand(in, 0))
		*dst = m.pop()

	case OpADD, OpSUB, OpMULT:
		dst := m.register(m.operand(in, 0))
		src := m.register(m.operand(in, 1))
		if dst.Type != src.Type {
			faultf("operand types differ: %s, %s", dst.Type, src.Type)
		}
		a, b := int64(m.int4(dst, in.Op.Name())), int64(m.int4(src, in.Op.Name()))
		var wide int64
		switch in.Op {
		case OpADD:
			wide = a + b
		case OpSUB:
			wide = a - b
		default:
			wide = a * b
		}
		res := int32(wide)
		m.setResultFlags(res, int64(res) != wide)
		dst.Value = IntValue(res)

	case OpDIV:
		dst := m.register(m.operand(in, 0))
		src := m.register(m.operand(in, 1))
		a, b := m.int4(dst, "DIV"), m.int4(src, "DIV")
		if b == 0 {
			faultf("division by zero")
		}
		q, r := a/b, a%b
		m.setResultFlags(q, false)
		dst.Value = IntValue(q)
		m.regs[RemainderRegister] = Register{Value: IntValue(r), Type: TypeInt4}

	case OpEXP:
		dst := m.register(m.operand(in, 0))
		src := m.register(m.operand(in, 1))
		base, exp := m.int4(dst, "EXP"), m.int4(src, "EXP")
		dst.Value = IntValue(truncToInt32(math.Pow(float64(base), float64(exp))))

	case OpNEG:
		dst := m.register(m.operand(in, 0))
		dst.Value = IntValue(-m.int4(dst, "NEG"))

	case OpSAR, OpSAL, OpSLR, OpSLL:
		dst := m.register(m.operand(in, 0))
		count := m.operand(in, 1)
		if count.Kind != OperandImmInt {
			faultf("shift count must be an integer immediate, got %s", count)
		}
		v := m.int4(dst, in.Op.Name())
		n := uint(count.Int) & 31
		var res int32
		switch in.Op {
		case OpSAR:
			res = v >> n
		case OpSLR:
			res = int32(uint32(v) >> n)
		default:
			res = v << n
		}
		dst.Value = IntValue(res)

	case OpCMP:
		lhs := m.register(m.operand(in, 0))
		rhs := m.register(m.operand(in, 1))
		if lhs.Type != rhs.Type {
			faultf("operand types differ: %s, %s", lhs.Type, rhs.Type)
		}
		wide := int64(m.int4(lhs, "CMP")) - int64(m.int4(rhs, "CMP"))
		res := int32(wide)
		m.setResultFlags(res, int64(res) != wide)

	case OpTEST, OpAND, OpOR, OpXOR:
		dst := m.register(m.operand(in, 0))
		a := m.int4(dst, in.Op.Name())
		var b int32
		switch src := m.operand(in, 1); src.Kind {
		case OperandRegister:
			b = m.int4(m.register(src), in.Op.Name())
		case OperandImmInt:
			b = src.Int
		default:
			faultf("unsupported source operand %s", src)
		}
		var res int32
		switch in.Op {
		case OpTEST, OpAND:
			res = a & b
		case OpOR:
			res = a | b
		default:
			res = a ^ b
		}
		m.setResultFlags(res, false)
		if in.Op != OpTEST {
			dst.Value = IntValue(res)
		}

	case OpJMP, OpJL, OpJLE, OpJG, OpJGE, OpJE, OpJNE:
		target := m.jumpTarget(ip, in)
		if m.condition(in.Op) {
			m.setIP(target)
			return true
		}

	case OpSETL, OpSETLE, OpSETG, OpSETGE, OpSETE, OpSETNE:
		dst := m.register(m.operand(in, 0))
		var v int32
		if m.condition(in.Op) {
			v = 1
		}
		*dst = Register{Value: IntValue(v), Type: TypeInt4}

	case OpPRNT:
		src := m.register(m.operand(in, 0))
		switch src.Type {
		case TypeInt4, TypeImmStr:
			if m.out != nil {
				m.out.Write(StdOut, src.Value.String())
			}
		default:
			faultf("PRINT not supported for type %s", src.Type)
		}

	case OpCLR:
		if m.out != nil {
			m.out.Clear()
		}
		m.regs[R1] = Register{Value: StrValue(""), Type: TypeImmStr}

	default:
		faultf("unknown opcode 0x%02X", byte(in.Op))
	}
	return false
}

func (m *Machine) condition(op Opcode) bool {
	f := m.flags
	switch op {
	case OpJMP:
		return true
	case OpJL, OpSETL:
		return f.less()
	case OpJLE, OpSETLE:
		return f.lessOrEqual()
	case OpJG, OpSETG:
		return f.greater()
	case OpJGE, OpSETGE:
		return f.greaterOrEqual()
	case OpJE, OpSETE:
		return f.ZF
	case OpJNE, OpSETNE:
		return !f.ZF
	}
	return false
}

func (m *Machine) mov(dst, src Operand) {
	switch dst.Kind {
	case OperandRegister:
		d := m.register(dst)
		switch src.Kind {
		case OperandRegister:
			*d = *m.register(src)
		case OperandImmInt:
			*d = Register{Value: IntValue(src.Int), Type: TypeInt4}
		case OperandImmStr:
			*d = Register{Value: StrValue(src.Str), Type: TypeImmStr}
		case OperandImmBool:
			*d = Register{Value: BoolValue(src.Bool), Type: TypeBool}
		case OperandSymbol:
			v, err := m.storage.Load(src.Type, src.Offset)
			if err != nil {
				faultf("%v", err)
			}
			*d = Register{Value: v, Type: src.Type}
		default:
			faultf("unsupported source %s", src)
		}

	case OperandSymbol:
		if src.Kind != OperandRegister {
			faultf("storage destination needs a register source, got %s", src)
		}
		s := m.register(src)
		if s.Type != dst.Type {
			faultf("cannot store %s into %s variable", s.Type, dst.Type)
		}
		if err := m.storage.Store(s.Value, dst.Type, dst.Offset); err != nil {
			faultf("%v", err)
		}

	default:
		faultf("destination %s is not writable", dst)
	}
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

// push grows the stack upward. SP indexes the top slot.
func (m *Machine) push(r Register) {
	sp := int(m.sp()) + 1
	for sp >= len(m.stack) {
		m.stack = append(m.stack, make([]Register, m.stackGrow)...)
	}
	m.stack[sp] = r
	m.regs[SP] = Register{Value: IntValue(int32(sp)), Type: TypeImmInt4}
}

func (m *Machine) pop() Register {
	sp := m.sp()
	if sp < 0 {
		faultf("stack underflow")
	}
	r := m.stack[sp]
	m.stack[sp] = Register{}
	m.regs[SP] = Register{Value: IntValue(sp - 1), Type: TypeImmInt4}
	return r
}

// truncToInt32 truncates toward zero. NaN becomes 0 and values outside the
// int32 range saturate.
func truncToInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}
