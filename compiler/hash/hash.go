package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/tinyscript/compiler"
)

// HashTree computes the SHA-256 content hash of a code-generation tree.
//
// The hash is computed over Serialize's deterministic encoding. Two
// programs that differ only in variable names, layout or comments produce
// the same hash.
func HashTree(tree *compiler.Tree) [32]byte {
	return sha256.Sum256(Serialize(tree))
}

// String returns the hex form of HashTree.
func String(tree *compiler.Tree) string {
	h := HashTree(tree)
	return hex.EncodeToString(h[:])
}
