package tree

import (
	"crypto/sha256"
	"encoding/hex"
)

// idLength is the number of hex characters kept from the structural hash.
// Collisions are theoretically possible in the truncated space but are not
// guarded against; realistic repository sizes stay far below the birthday
// bound.
const idLength = 12

// AssignIDs walks the tree depth-first and assigns every node a
// deterministic identifier derived from its structural path: the chain of
// (type, name) pairs from the root. Content changes do not affect IDs, so
// identifiers issued before an edit stay valid after an in-place re-parse.
// Returns a flat lookup table from ID to node.
func AssignIDs(root *CodeNode) map[string]*CodeNode {
	lookup := make(map[string]*CodeNode)
	var walk func(n *CodeNode, path string)
	walk = func(n *CodeNode, path string) {
		n.NodeID = structuralID(path)
		lookup[n.NodeID] = n
		for _, c := range n.Children {
			walk(c, path+"|"+string(c.Type)+":"+c.Name)
		}
	}
	// The root contributes only its name, so the same project scanned from
	// different absolute locations keeps the same IDs.
	walk(root, root.Name)
	return lookup
}

// structuralID hashes a structural path and truncates it to idLength hex
// characters.
func structuralID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:idLength]
}
