package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the tree serialization format.
//
// These tags are FROZEN. Once assigned, a tag byte must never change
// meaning. Adding new tags is fine; changing existing ones breaks every
// previously recorded tree hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing tree hashes.
const HashVersion byte = 1

// Node tags. Each tag uniquely identifies a node kind in the serialized
// byte stream.
const (
	TagReservedZero byte = 0x00

	// Literals
	TagIntLiteral    byte = 0x01
	TagStringLiteral byte = 0x03
	TagBoolLiteral   byte = 0x07

	// Variables, numbered by first appearance
	TagVarRef byte = 0x0B

	// Operators
	TagBinary byte = 0x11
	TagNeg    byte = 0x12

	// Statements / structure
	TagAssignment byte = 0x14
	TagBlock      byte = 0x16
	TagPrint      byte = 0x1E
	TagClear      byte = 0x1F
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagStringLiteral, TagBoolLiteral,
	TagVarRef,
	TagBinary, TagNeg,
	TagAssignment, TagBlock, TagPrint, TagClear,
}
