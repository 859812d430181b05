package hash

import (
	"encoding/binary"

	"github.com/chazu/tinyscript/compiler"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of a code-generation tree.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int32=4B, uint16=2B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child nodes: serialized inline (flat), preceded by a uint32 count
//     where the count varies
//
// Variables are written as the index of their first appearance in the
// tree, so renaming a variable does not change the serialization. Token
// positions are never written.
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a tree.
func Serialize(tree *compiler.Tree) []byte {
	s := &serializer{buf: make([]byte, 0, 256), vars: make(map[int]uint16)}
	s.writeByte(HashVersion)
	if tree != nil && tree.Root != compiler.NoNode {
		s.serializeNode(tree, tree.Root)
	}
	return s.buf
}

type serializer struct {
	buf  []byte
	vars map[int]uint16 // storage offset -> first-appearance index
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt32(v int32) {
	s.writeUint32(uint32(v))
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) varIndex(offset int) uint16 {
	if idx, ok := s.vars[offset]; ok {
		return idx
	}
	idx := uint16(len(s.vars))
	s.vars[offset] = idx
	return idx
}

func (s *serializer) children(tree *compiler.Tree, n *compiler.Node) {
	for _, c := range n.Children {
		s.serializeNode(tree, c)
	}
}

func (s *serializer) serializeNode(tree *compiler.Tree, id compiler.NodeID) {
	n := tree.Node(id)
	switch n.Kind {
	case compiler.NodeInt:
		s.writeByte(TagIntLiteral)
		s.writeInt32(n.Int)

	case compiler.NodeString:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Str)

	case compiler.NodeBool:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Bool)

	case compiler.NodeVar:
		s.writeByte(TagVarRef)
		s.writeUint16(s.varIndex(n.Symbol.Offset))

	case compiler.NodeBinary:
		s.writeByte(TagBinary)
		s.writeByte(byte(n.Op))
		s.children(tree, n)

	case compiler.NodeNeg:
		s.writeByte(TagNeg)
		s.children(tree, n)

	case compiler.NodeAssign:
		s.writeByte(TagAssignment)
		s.writeUint16(s.varIndex(n.Symbol.Offset))
		s.children(tree, n)

	case compiler.NodePrint:
		s.writeByte(TagPrint)
		s.writeUint32(uint32(len(n.Children)))
		s.children(tree, n)

	case compiler.NodeClear:
		s.writeByte(TagClear)

	case compiler.NodeBlock:
		s.writeByte(TagBlock)
		s.writeUint32(uint32(len(n.Children)))
		s.children(tree, n)
	}
}
