// Package tree defines the CodeNode hierarchy that every other component
// annotates: directories contain files, files contain classes and functions,
// classes contain methods.
package tree

import "sort"

// NodeType identifies the kind of a CodeNode.
type NodeType string

const (
	NodeDirectory NodeType = "directory"
	NodeFile      NodeType = "file"
	NodeClass     NodeType = "class"
	NodeFunction  NodeType = "function"
	NodeMethod    NodeType = "method"
)

// Quality is the heuristic quality rank of a node.
// Empty string means "not yet scored".
type Quality string

const (
	QualityClean   Quality = "clean"
	QualityComplex Quality = "complex"
	QualityWarning Quality = "warning"
)

var qualitySeverity = map[Quality]int{
	QualityClean:   0,
	QualityComplex: 1,
	QualityWarning: 2,
}

// Severity returns the severity rank of a quality label.
// Unscored ("") sorts below clean.
func (q Quality) Severity() int {
	if s, ok := qualitySeverity[q]; ok {
		return s
	}
	return -1
}

// Worst returns the more severe of two quality labels.
func Worst(a, b Quality) Quality {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// CodeNode is a single entry in the code map: a directory, file, class,
// function, or method. The parser produces file subtrees, the core builds
// directory nodes above them, and the scorer/summarizer/editor mutate
// nodes in place.
type CodeNode struct {
	Name      string   `json:"name"`
	Type      NodeType `json:"node_type"`
	Language  string   `json:"language,omitempty"`
	Filepath  string   `json:"filepath,omitempty"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	LineCount int      `json:"line_count"`

	// Source is the exact substring of the originating file for this node.
	// Excluded from tree serialization; the server returns it only from
	// the per-node endpoints.
	Source string `json:"-"`

	Children []*CodeNode `json:"children"`
	Imports  []string    `json:"imports,omitempty"`

	// Filled in by the analyzer; empty means "not yet analyzed".
	Summary    string   `json:"summary,omitempty"`
	Pseudocode string   `json:"pseudocode,omitempty"`
	Quality    Quality  `json:"quality,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`

	// NodeID is the deterministic 12-hex identifier assigned by AssignIDs.
	NodeID string `json:"node_id,omitempty"`
}

// Analyzed reports whether the node already carries an AI (or synthesized)
// summary.
func (n *CodeNode) Analyzed() bool {
	return n.Summary != ""
}

// FlatNode pairs a node with its depth below the root.
type FlatNode struct {
	Node  *CodeNode
	Depth int
}

// Flatten returns all nodes in the subtree rooted at n, depth-first,
// each paired with its depth (root = 0).
func Flatten(n *CodeNode) []FlatNode {
	var out []FlatNode
	var walk func(node *CodeNode, depth int)
	walk = func(node *CodeNode, depth int) {
		out = append(out, FlatNode{Node: node, Depth: depth})
		for _, c := range node.Children {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return out
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func CountNodes(n *CodeNode) int {
	total := 1
	for _, c := range n.Children {
		total += CountNodes(c)
	}
	return total
}

// SortChildren orders children recursively: inside directories, directories
// sort before files and then alphabetically; inside files and classes,
// children sort by start line.
func SortChildren(n *CodeNode) {
	if n.Type == NodeDirectory {
		sort.SliceStable(n.Children, func(i, j int) bool {
			a, b := n.Children[i], n.Children[j]
			aDir := a.Type == NodeDirectory
			bDir := b.Type == NodeDirectory
			if aDir != bDir {
				return aDir
			}
			return a.Name < b.Name
		})
	} else {
		sort.SliceStable(n.Children, func(i, j int) bool {
			return n.Children[i].StartLine < n.Children[j].StartLine
		})
	}
	for _, c := range n.Children {
		SortChildren(c)
	}
}

// AccumulateLineCounts sets each directory's line count to the recursive
// sum of its descendants' line counts and returns the subtree total.
func AccumulateLineCounts(n *CodeNode) int {
	if n.Type != NodeDirectory {
		return n.LineCount
	}
	total := 0
	for _, c := range n.Children {
		total += AccumulateLineCounts(c)
	}
	n.LineCount = total
	return total
}

// ClearAnalysis resets all analyzer-written fields so the node is
// re-analyzed on next request.
func (n *CodeNode) ClearAnalysis() {
	n.Summary = ""
	n.Pseudocode = ""
	n.Quality = ""
	n.Warnings = nil
}
