// Package dist reads and writes compiled tinyscript programs as
// content-addressed CBOR images. An image carries the source text, its
// hash, the code-generation tree hash and the instruction listing, so a
// receiver can recompile the source and check it matches.
package dist

// ImageVersion is bumped whenever the encoded layout changes.
const ImageVersion = 1

// Mode records how the source was parsed.
type Mode uint8

const (
	ModeScript      Mode = 0
	ModeCommandLine Mode = 1
)

// Image is a compiled program on disk.
type Image struct {
	Version      uint8         `cbor:"1,keyasint"`
	SourceHash   [32]byte      `cbor:"2,keyasint"`
	TreeHash     [32]byte      `cbor:"3,keyasint"`
	Mode         Mode          `cbor:"4,keyasint"`
	Source       string        `cbor:"5,keyasint"`
	StorageSize  int           `cbor:"6,keyasint"`
	Symbols      []Symbol      `cbor:"7,keyasint,omitempty"`
	Instructions []Instruction `cbor:"8,keyasint"`
}

// Symbol is one declared variable, in declaration order.
type Symbol struct {
	Name   string `cbor:"1,keyasint"`
	Type   uint8  `cbor:"2,keyasint"`
	Offset int    `cbor:"3,keyasint"`
}

// Instruction is the wire form of vm.Instruction.
type Instruction struct {
	Op       uint8     `cbor:"1,keyasint"`
	Operands []Operand `cbor:"2,keyasint,omitempty"`
}

// Operand is the wire form of vm.Operand. Only the fields for Kind are
// set.
type Operand struct {
	Kind   uint8  `cbor:"1,keyasint"`
	Int    int32  `cbor:"2,keyasint,omitempty"`
	Bool   bool   `cbor:"3,keyasint,omitempty"`
	Str    string `cbor:"4,keyasint,omitempty"`
	Reg    uint8  `cbor:"5,keyasint,omitempty"`
	Type   uint8  `cbor:"6,keyasint,omitempty"`
	Offset int    `cbor:"7,keyasint,omitempty"`
}
