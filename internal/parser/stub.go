//go:build !cgo

package parser

import "codedocent/internal/tree"

// ParseSource builds a file node without structural extraction.
// Non-CGO builds have no tree-sitter, so files become leaf nodes.
func ParseSource(path, language, source string) *tree.CodeNode {
	return newFileNode(path, language, source)
}
