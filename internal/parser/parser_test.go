//go:build cgo

package parser

import (
	"os"
	"path/filepath"
	"testing"

	"codedocent/internal/scanner"
	"codedocent/internal/tree"
)

const pythonSource = `import os
from collections import defaultdict

def top_level(x):
    return x * 2

class Greeter:
    def __init__(self, name):
        self.name = name

    def greet(self):
        return f"hi {self.name}"
`

func TestParseSource_Python(t *testing.T) {
	node := ParseSource("greeter.py", "python", pythonSource)

	if node.Type != tree.NodeFile || node.Name != "greeter.py" {
		t.Fatalf("unexpected file node: %+v", node)
	}
	if node.LineCount != 12 {
		t.Errorf("expected 12 lines, got %d", node.LineCount)
	}
	if len(node.Imports) != 2 || node.Imports[0] != "os" || node.Imports[1] != "collections" {
		t.Errorf("unexpected imports: %v", node.Imports)
	}

	if len(node.Children) != 2 {
		t.Fatalf("expected 2 top-level children, got %d", len(node.Children))
	}

	fn := node.Children[0]
	if fn.Name != "top_level" || fn.Type != tree.NodeFunction {
		t.Errorf("unexpected first child: %s %s", fn.Name, fn.Type)
	}
	if fn.StartLine != 4 || fn.EndLine != 5 {
		t.Errorf("unexpected function lines: %d-%d", fn.StartLine, fn.EndLine)
	}

	class := node.Children[1]
	if class.Name != "Greeter" || class.Type != tree.NodeClass {
		t.Fatalf("unexpected second child: %s %s", class.Name, class.Type)
	}
	if len(class.Children) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(class.Children))
	}
	if class.Children[0].Name != "__init__" || class.Children[0].Type != tree.NodeMethod {
		t.Errorf("unexpected method: %+v", class.Children[0])
	}
	if class.Children[1].Name != "greet" {
		t.Errorf("unexpected method: %+v", class.Children[1])
	}
}

func TestParseSource_TypeScriptArrowFunctions(t *testing.T) {
	source := `import { api } from "./api";

const fetchUser = async (id: string) => {
	return api.get(id);
};

function plain() {
	return 1;
}

class Store {
	load() {
		return [];
	}
}
`
	node := ParseSource("store.ts", "typescript", source)

	if len(node.Imports) != 1 || node.Imports[0] != "./api" {
		t.Errorf("unexpected imports: %v", node.Imports)
	}
	if len(node.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(node.Children))
	}

	// Sorted by start line: arrow first, then plain, then class.
	if node.Children[0].Name != "fetchUser" || node.Children[0].Type != tree.NodeFunction {
		t.Errorf("unexpected first child: %+v", node.Children[0])
	}
	if node.Children[1].Name != "plain" {
		t.Errorf("unexpected second child: %+v", node.Children[1])
	}
	class := node.Children[2]
	if class.Name != "Store" || class.Type != tree.NodeClass {
		t.Fatalf("unexpected third child: %+v", class)
	}
	if len(class.Children) != 1 || class.Children[0].Name != "load" {
		t.Errorf("unexpected methods: %v", class.Children)
	}
}

func TestParseSource_Go(t *testing.T) {
	source := `package store

import (
	"fmt"
	"strings"
)

func Open(path string) error {
	return nil
}

func (s *Store) Close() error {
	return fmt.Errorf("closed %s", strings.ToUpper("x"))
}
`
	node := ParseSource("store.go", "go", source)

	if len(node.Imports) != 2 || node.Imports[0] != "fmt" || node.Imports[1] != "strings" {
		t.Errorf("unexpected imports: %v", node.Imports)
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(node.Children))
	}
	if node.Children[0].Name != "Open" || node.Children[0].Type != tree.NodeFunction {
		t.Errorf("unexpected first child: %+v", node.Children[0])
	}
	if node.Children[1].Name != "Close" || node.Children[1].Type != tree.NodeMethod {
		t.Errorf("unexpected second child: %+v", node.Children[1])
	}
}

func TestParseSource_UnsupportedLanguage(t *testing.T) {
	node := ParseSource("style.css", "css", "body { color: red; }\n")

	if node.Type != tree.NodeFile {
		t.Errorf("expected file node, got %s", node.Type)
	}
	if len(node.Children) != 0 {
		t.Errorf("expected no children, got %d", len(node.Children))
	}
	if node.LineCount != 1 {
		t.Errorf("expected 1 line, got %d", node.LineCount)
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("main.py", "def main():\n    pass\n")
	write("pkg/util.py", "def helper():\n    pass\n")

	root, err := ParseDirectory(dir, []scanner.ScannedFile{
		{Filepath: "main.py", Language: "python", Extension: ".py"},
		{Filepath: "pkg/util.py", Language: "python", Extension: ".py"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if root.Type != tree.NodeDirectory {
		t.Fatalf("expected directory root, got %s", root.Type)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}

	// Directories sort before files.
	pkg := root.Children[0]
	if pkg.Name != "pkg" || pkg.Type != tree.NodeDirectory {
		t.Fatalf("expected pkg directory first, got %+v", pkg)
	}
	main := root.Children[1]
	if main.Name != "main.py" || main.Filepath != "main.py" {
		t.Errorf("unexpected file node: %+v", main)
	}

	if len(pkg.Children) != 1 || pkg.Children[0].Filepath != "pkg/util.py" {
		t.Errorf("unexpected pkg children: %v", pkg.Children)
	}

	// Function children inherit the relative path.
	if len(main.Children) != 1 || main.Children[0].Filepath != "main.py" {
		t.Errorf("expected function child with relative path, got %v", main.Children)
	}

	if root.LineCount != 4 {
		t.Errorf("expected accumulated line count 4, got %d", root.LineCount)
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		source string
		want   int
	}{
		{"", 0},
		{"one line", 1},
		{"one line\n", 1},
		{"a\nb\nc\n", 3},
		{"a\nb", 2},
	}
	for _, tt := range tests {
		if got := countLines(tt.source); got != tt.want {
			t.Errorf("countLines(%q) = %d, want %d", tt.source, got, tt.want)
		}
	}
}
