package dist

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/chazu/tinyscript/vm"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// cborEncMode uses canonical options so equal images encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// HashSource returns the content hash of a source text.
func HashSource(src string) [32]byte {
	return sha256.Sum256([]byte(src))
}

// NewImage captures prog, compiled from src, together with the symbols it
// was compiled against.
func NewImage(src string, mode Mode, treeHash [32]byte, prog *vm.Program, symbols []vm.Symbol) *Image {
	img := &Image{
		Version:     ImageVersion,
		SourceHash:  HashSource(src),
		TreeHash:    treeHash,
		Mode:        mode,
		Source:      src,
		StorageSize: prog.StorageSize,
	}
	for _, s := range symbols {
		img.Symbols = append(img.Symbols, Symbol{Name: s.Name, Type: uint8(s.Type), Offset: s.Offset})
	}
	img.Instructions = make([]Instruction, len(prog.Instructions))
	for i, in := range prog.Instructions {
		w := Instruction{Op: uint8(in.Op)}
		for _, o := range in.Operands {
			w.Operands = append(w.Operands, Operand{
				Kind:   uint8(o.Kind),
				Int:    o.Int,
				Bool:   o.Bool,
				Str:    o.Str,
				Reg:    uint8(o.Reg),
				Type:   uint8(o.Type),
				Offset: o.Offset,
			})
		}
		img.Instructions[i] = w
	}
	return img
}

// Program decodes the instruction listing, rejecting unknown opcodes,
// operand kinds and registers.
func (img *Image) Program() (*vm.Program, error) {
	prog := &vm.Program{
		Instructions: make([]vm.Instruction, len(img.Instructions)),
		StorageSize:  img.StorageSize,
	}
	for i, w := range img.Instructions {
		op := vm.Opcode(w.Op)
		if !op.Valid() {
			return nil, errors.Errorf("dist: instruction %d: unknown opcode 0x%02X", i, w.Op)
		}
		in := vm.Instruction{Op: op}
		for _, wo := range w.Operands {
			o := vm.Operand{
				Kind:   vm.OperandKind(wo.Kind),
				Int:    wo.Int,
				Bool:   wo.Bool,
				Str:    wo.Str,
				Reg:    vm.RegID(wo.Reg),
				Type:   vm.DataType(wo.Type),
				Offset: wo.Offset,
			}
			switch o.Kind {
			case vm.OperandImmInt, vm.OperandImmBool, vm.OperandImmStr, vm.OperandSymbol:
			case vm.OperandRegister:
				if !o.Reg.Valid() {
					return nil, errors.Errorf("dist: instruction %d: invalid register %d", i, wo.Reg)
				}
			default:
				return nil, errors.Errorf("dist: instruction %d: unknown operand kind %d", i, wo.Kind)
			}
			in.Operands = append(in.Operands, o)
		}
		prog.Instructions[i] = in
	}
	return prog, nil
}

// Restore declares the image's symbols into ctx, which must be empty or
// hold the same symbols at the same offsets.
func (img *Image) Restore(ctx *vm.Context) error {
	for _, s := range img.Symbols {
		sym, err := ctx.Symbols.Declare(s.Name, vm.DataType(s.Type))
		if err != nil {
			return errors.Wrapf(err, "dist: restore %s", s.Name)
		}
		if sym.Offset != s.Offset || sym.Type != vm.DataType(s.Type) {
			return errors.Errorf("dist: symbol %s is %s@%d, image has %s@%d",
				s.Name, sym.Type, sym.Offset, vm.DataType(s.Type), s.Offset)
		}
	}
	ctx.Storage.EnsureSize(img.StorageSize)
	return nil
}

// MarshalImage serializes an Image to CBOR bytes.
func MarshalImage(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an Image from CBOR bytes.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("dist: unmarshal image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("dist: image version %d, want %d", img.Version, ImageVersion)
	}
	return &img, nil
}

// Verify checks the source hash and, when compile is non-nil, recompiles
// the source and compares the tree hash.
//
// compile is injected so this package does not depend on the compiler.
func Verify(img *Image, compile func(source string, mode Mode) ([32]byte, error)) error {
	if got := HashSource(img.Source); got != img.SourceHash {
		return fmt.Errorf("dist: source hash mismatch: declared %x, computed %x", img.SourceHash, got)
	}
	if compile == nil {
		return nil
	}
	computed, err := compile(img.Source, img.Mode)
	if err != nil {
		return fmt.Errorf("dist: compile failed: %w", err)
	}
	if computed != img.TreeHash {
		return fmt.Errorf("dist: tree hash mismatch: declared %x, computed %x", img.TreeHash, computed)
	}
	return nil
}

// WriteFile encodes img to path.
func WriteFile(path string, img *Image) error {
	data, err := MarshalImage(img)
	if err != nil {
		return errors.Wrap(err, "dist: marshal image")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "dist: write %s", path)
	}
	return nil
}

// ReadFile decodes the image at path and checks its source hash.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dist: read %s", path)
	}
	img, err := UnmarshalImage(data)
	if err != nil {
		return nil, errors.Wrapf(err, "dist: %s", path)
	}
	if err := Verify(img, nil); err != nil {
		return nil, errors.Wrapf(err, "dist: %s", path)
	}
	return img, nil
}
