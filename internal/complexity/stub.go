//go:build !cgo

package complexity

import "context"

// Analyzer computes cyclomatic complexity from tree-sitter ASTs.
// This is a stub implementation for non-CGO builds.
type Analyzer struct{}

// NewAnalyzer creates a new complexity analyzer.
// Returns nil when CGO is disabled.
func NewAnalyzer() *Analyzer {
	return nil
}

// AnalyzeSource analyzes source code bytes.
// Stub implementation returns an error.
func (a *Analyzer) AnalyzeSource(ctx context.Context, source []byte, lang Language) (*Result, error) {
	return nil, ErrNoCGO
}

// CountParameters returns the parameter count of the first function.
// Stub implementation returns an error.
func (a *Analyzer) CountParameters(ctx context.Context, source []byte, lang Language) (int, error) {
	return 0, ErrNoCGO
}

// IsAvailable returns whether complexity analysis is available.
// Returns false when CGO is disabled.
func IsAvailable() bool {
	return false
}
