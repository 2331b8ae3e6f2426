// Package render turns a CodeNode tree into HTML: a self-contained static
// page for one-shot analysis, or the interactive page served by the local
// server.
package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"codedocent/internal/tree"
)

//go:embed templates/*.html
var templateFS embed.FS

// LanguageColors maps a language name to the hex color used for its nodes.
var LanguageColors = map[string]string{
	"python":     "#3572A5",
	"javascript": "#F0DB4F",
	"typescript": "#F0DB4F",
	"tsx":        "#F0DB4F",
	"c":          "#2E8B57",
	"cpp":        "#2E8B57",
	"rust":       "#DEA584",
	"go":         "#00ADD8",
	"html":       "#E34C26",
	"css":        "#563D7C",
	"json":       "#999999",
	"yaml":       "#999999",
	"toml":       "#999999",
}

// DefaultColor is used for nodes with no language or an unmapped one.
const DefaultColor = "#CCCCCC"

// NodeIcons maps a node type to its display icon.
var NodeIcons = map[tree.NodeType]string{
	tree.NodeDirectory: "\U0001F4C1",
	tree.NodeFile:      "\U0001F4C4",
	tree.NodeClass:     "\U0001F537",
	tree.NodeFunction:  "⚡",
	tree.NodeMethod:    "⚡",
}

// ColorFor returns the hex color for a node based on its language.
func ColorFor(n *tree.CodeNode) string {
	if n.Language == "" {
		return DefaultColor
	}
	if c, ok := LanguageColors[n.Language]; ok {
		return c
	}
	return DefaultColor
}

// IconFor returns the display icon for a node, or "" for unknown types.
func IconFor(n *tree.CodeNode) string {
	return NodeIcons[n.Type]
}

// NodeMap serializes a node to a JSON-safe map. Source is excluded unless
// includeSource is set; it is too large for the initial page load and the
// server returns it from the per-node endpoints instead. Children is always
// present, as an empty list for leaves.
func NodeMap(n *tree.CodeNode, includeSource bool) map[string]any {
	children := make([]map[string]any, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, NodeMap(c, includeSource))
	}
	m := map[string]any{
		"name":       n.Name,
		"node_type":  string(n.Type),
		"language":   n.Language,
		"filepath":   n.Filepath,
		"start_line": n.StartLine,
		"end_line":   n.EndLine,
		"line_count": n.LineCount,
		"node_id":    n.NodeID,
		"imports":    n.Imports,
		"summary":    n.Summary,
		"pseudocode": n.Pseudocode,
		"quality":    string(n.Quality),
		"warnings":   n.Warnings,
		"color":      ColorFor(n),
		"icon":       IconFor(n),
		"children":   children,
	}
	if includeSource {
		m["source"] = n.Source
	}
	return m
}

// nodeView adapts a CodeNode for the static template.
type nodeView struct {
	Name      string
	Type      string
	Language  string
	Filepath  string
	StartLine int
	EndLine   int
	LineCount int
	Summary   string
	Quality   string
	Warnings  []string
	Color     string
	Icon      string
	Children  []*nodeView
}

func buildView(n *tree.CodeNode) *nodeView {
	v := &nodeView{
		Name:      n.Name,
		Type:      string(n.Type),
		Language:  n.Language,
		Filepath:  n.Filepath,
		StartLine: n.StartLine,
		EndLine:   n.EndLine,
		LineCount: n.LineCount,
		Summary:   n.Summary,
		Quality:   string(n.Quality),
		Warnings:  n.Warnings,
		Color:     ColorFor(n),
		Icon:      IconFor(n),
	}
	for _, c := range n.Children {
		v.Children = append(v.Children, buildView(c))
	}
	return v
}

// Render writes root as a self-contained static HTML page at outputPath,
// creating parent directories as needed.
func Render(root *tree.CodeNode, outputPath string) error {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	var buf strings.Builder
	data := struct {
		Root  *nodeView
		Title string
	}{Root: buildView(root), Title: root.Name}
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte(buf.String()), 0o644)
}

// RenderInteractive returns the interactive page as a string. The tree is
// embedded as JSON for client-side rendering, the CSRF token for the
// page's API calls.
func RenderInteractive(root *tree.CodeNode, csrfToken string) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/interactive.html")
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	treeJSON, err := json.Marshal(NodeMap(root, false))
	if err != nil {
		return "", fmt.Errorf("encode tree: %w", err)
	}
	var buf strings.Builder
	data := struct {
		Title    string
		TreeJSON template.JS
		Token    string
	}{Title: root.Name, TreeJSON: template.JS(treeJSON), Token: csrfToken}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}
