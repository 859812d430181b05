package vm

import "strconv"

// ---------------------------------------------------------------------------
// Runtime values
// ---------------------------------------------------------------------------

// Value is the closed set of things a register, stack slot or storage codec
// can hold. Consumers switch on the concrete type; there are no other
// implementations outside this file.
type Value interface {
	isValue()
	String() string
}

// IntValue is a 32-bit signed integer.
type IntValue int32

// StrValue is an immediate string.
type StrValue string

// BoolValue is a boolean.
type BoolValue bool

// CharValue is a single byte character.
type CharValue byte

func (IntValue) isValue()  {}
func (StrValue) isValue()  {}
func (BoolValue) isValue() {}
func (CharValue) isValue() {}

func (v IntValue) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v StrValue) String() string  { return string(v) }
func (v BoolValue) String() string { return strconv.FormatBool(bool(v)) }
func (v CharValue) String() string { return string(rune(v)) }

// Register is one slot of the register file or the stack: a value and
// the type tag it was written with.
type Register struct {
	Value Value
	Type  DataType
}

// Int returns the register's integer payload. ok is false when the
// register does not hold an IntValue.
func (r Register) Int() (int32, bool) {
	v, ok := r.Value.(IntValue)
	return int32(v), ok
}

func (r Register) String() string {
	if r.Value == nil {
		return r.Type.String() + ":<empty>"
	}
	if r.Type == TypeImmStr {
		return r.Type.String() + ":" + strconv.Quote(r.Value.String())
	}
	return r.Type.String() + ":" + r.Value.String()
}
