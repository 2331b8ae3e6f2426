// Package parser turns source files into CodeNode subtrees and assembles
// whole-repository trees from scanner output. Extraction uses tree-sitter
// and is gated on cgo; without it, files still become leaf nodes.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codedocent/internal/scanner"
	"codedocent/internal/tree"
)

// countLines counts lines the way an editor displays them: a trailing
// newline does not start an extra line.
func countLines(source string) int {
	if source == "" {
		return 0
	}
	n := strings.Count(source, "\n")
	if !strings.HasSuffix(source, "\n") {
		n++
	}
	return n
}

// newFileNode builds the file-level node all extraction hangs under.
func newFileNode(path, language, source string) *tree.CodeNode {
	lines := countLines(source)
	return &tree.CodeNode{
		Name:      filepath.Base(path),
		Type:      tree.NodeFile,
		Language:  language,
		Filepath:  path,
		StartLine: 1,
		EndLine:   lines,
		LineCount: lines,
		Source:    source,
		Children:  []*tree.CodeNode{},
	}
}

// ParseFile reads a source file from disk and parses it into a file node.
func ParseFile(path, language string) (*tree.CodeNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseSource(path, language, string(data)), nil
}

// ParseDirectory builds the full repository tree from scanner output:
// directory nodes for every path segment, parsed file nodes beneath them,
// children ordered and line counts accumulated. File nodes carry paths
// relative to root.
func ParseDirectory(root string, files []scanner.ScannedFile) (*tree.CodeNode, error) {
	rootPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	rootName := filepath.Base(rootPath)
	if rootName == string(filepath.Separator) || rootName == "." {
		rootName = rootPath
	}

	rootNode := &tree.CodeNode{
		Name:     rootName,
		Type:     tree.NodeDirectory,
		Filepath: rootPath,
		Children: []*tree.CodeNode{},
	}
	dirNodes := map[string]*tree.CodeNode{"": rootNode}

	for _, sf := range files {
		parts := strings.Split(sf.Filepath, "/")

		// Materialize intermediate directory nodes.
		for i := 0; i < len(parts)-1; i++ {
			dirKey := strings.Join(parts[:i+1], "/")
			if _, ok := dirNodes[dirKey]; ok {
				continue
			}
			parentKey := strings.Join(parts[:i], "/")
			d := &tree.CodeNode{
				Name:     parts[i],
				Type:     tree.NodeDirectory,
				Filepath: filepath.Join(rootPath, filepath.FromSlash(dirKey)),
				Children: []*tree.CodeNode{},
			}
			dirNodes[parentKey].Children = append(dirNodes[parentKey].Children, d)
			dirNodes[dirKey] = d
		}

		absPath := filepath.Join(rootPath, filepath.FromSlash(sf.Filepath))
		fileNode, err := ParseFile(absPath, sf.Language)
		if err != nil {
			return nil, err
		}
		for _, fn := range tree.Flatten(fileNode) {
			fn.Node.Filepath = sf.Filepath
		}

		parentKey := strings.Join(parts[:len(parts)-1], "/")
		dirNodes[parentKey].Children = append(dirNodes[parentKey].Children, fileNode)
	}

	tree.SortChildren(rootNode)
	tree.AccumulateLineCounts(rootNode)
	return rootNode, nil
}
