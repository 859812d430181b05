package vm

import "fmt"

// ---------------------------------------------------------------------------
// Data types
// ---------------------------------------------------------------------------

// DataType tags every value the compiler reasons about and every value the
// machine holds in a register. Equality is tag equality.
type DataType uint8

const (
	TypeEmpty DataType = iota
	TypeChar
	TypeBool
	TypeInt4
	TypeImmBool
	TypeImmInt4
	TypeImmStr
	TypeRegister
)

// sizeIndeterminate marks types that never live in variable storage.
const sizeIndeterminate = -1

type dataTypeInfo struct {
	name string
	size int
}

var dataTypeTable = map[DataType]dataTypeInfo{
	TypeEmpty:    {"void", 0},
	TypeChar:     {"char", 1},
	TypeBool:     {"bool", 2},
	TypeInt4:     {"int4", 4},
	TypeImmBool:  {"imm_bool", 2},
	TypeImmInt4:  {"imm_int4", 4},
	TypeImmStr:   {"imm_string", sizeIndeterminate},
	TypeRegister: {"reg", 8},
}

// Size returns the number of storage bytes a value of this type occupies,
// or -1 for immediate strings.
func (t DataType) Size() int {
	if info, ok := dataTypeTable[t]; ok {
		return info.size
	}
	return 0
}

// Storable reports whether values of this type can be placed in the byte store.
func (t DataType) Storable() bool {
	return t.Size() > 0
}

// IsImmediate reports whether the type denotes a literal operand.
func (t DataType) IsImmediate() bool {
	return t == TypeImmBool || t == TypeImmInt4 || t == TypeImmStr
}

func (t DataType) String() string {
	if info, ok := dataTypeTable[t]; ok {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", t)
}

// ParseDataType maps a declared type name to its DataType. Unknown names
// map to TypeEmpty.
func ParseDataType(name string) DataType {
	switch name {
	case "char":
		return TypeChar
	case "bool":
		return TypeBool
	case "int4":
		return TypeInt4
	}
	return TypeEmpty
}
