//go:build cgo

package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codedocent/internal/tree"
)

// rule maps a tree-sitter node type to the produced node kind and the
// child type holding its name.
type rule struct {
	kind      tree.NodeType
	nameChild string
}

var pythonRules = map[string]rule{
	"function_definition": {tree.NodeFunction, "identifier"},
	"class_definition":    {tree.NodeClass, "identifier"},
}

var jsRules = map[string]rule{
	"function_declaration": {tree.NodeFunction, "identifier"},
	"class_declaration":    {tree.NodeClass, "identifier"},
}

var goRules = map[string]rule{
	"function_declaration": {tree.NodeFunction, "identifier"},
	"method_declaration":   {tree.NodeMethod, "field_identifier"},
}

// classBodyTypes names the node type holding a class's members.
var classBodyTypes = map[string]string{
	"python":     "block",
	"javascript": "class_body",
	"typescript": "class_body",
	"tsx":        "class_body",
}

// methodRules maps method node types inside class bodies to name child types.
var methodRules = map[string]map[string]string{
	"python":     {"function_definition": "identifier"},
	"javascript": {"method_definition": "property_identifier"},
	"typescript": {"method_definition": "property_identifier"},
	"tsx":        {"method_definition": "property_identifier"},
}

func rulesFor(language string) map[string]rule {
	switch language {
	case "python":
		return pythonRules
	case "javascript", "typescript", "tsx":
		return jsRules
	case "go":
		return goRules
	}
	return nil
}

func grammarFor(language string) *sitter.Language {
	switch language {
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "tsx":
		return tsx.GetLanguage()
	case "go":
		return golang.GetLanguage()
	}
	return nil
}

// ParseSource parses source text into a file node with class, function,
// and method children. Unsupported languages and parse failures degrade
// to a childless file node.
func ParseSource(path, language, source string) *tree.CodeNode {
	fileNode := newFileNode(path, language, source)

	rules := rulesFor(language)
	grammar := grammarFor(language)
	if rules == nil || grammar == nil {
		return fileNode
	}

	p := sitter.NewParser()
	p.SetLanguage(grammar)
	parsed, err := p.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil {
		return fileNode
	}
	root := parsed.RootNode()
	src := []byte(source)

	fileNode.Imports = extractImports(root, src, language)

	for i := uint32(0); i < root.ChildCount(); i++ {
		child := root.Child(int(i))
		if child == nil {
			continue
		}
		r, ok := rules[child.Type()]
		if !ok {
			continue
		}
		node := makeNode(child, src, r.kind, findChildText(child, src, r.nameChild), language, path)
		if r.kind == tree.NodeClass {
			node.Children = extractMethods(child, src, language, path)
		}
		fileNode.Children = append(fileNode.Children, node)
	}

	fileNode.Children = append(fileNode.Children, extractArrowFunctions(root, src, language, path)...)

	tree.SortChildren(fileNode)
	return fileNode
}

func makeNode(n *sitter.Node, src []byte, kind tree.NodeType, name, language, path string) *tree.CodeNode {
	startLine := int(n.StartPoint().Row) + 1
	endLine := int(n.EndPoint().Row) + 1
	return &tree.CodeNode{
		Name:      name,
		Type:      kind,
		Language:  language,
		Filepath:  path,
		StartLine: startLine,
		EndLine:   endLine,
		LineCount: endLine - startLine + 1,
		Source:    string(src[n.StartByte():n.EndByte()]),
		Children:  []*tree.CodeNode{},
	}
}

// findChildText returns the text of the first child with the given type,
// or "<anonymous>" when absent.
func findChildText(n *sitter.Node, src []byte, childType string) string {
	for i := uint32(0); i < n.ChildCount(); i++ {
		c := n.Child(int(i))
		if c != nil && c.Type() == childType {
			return string(src[c.StartByte():c.EndByte()])
		}
	}
	return "<anonymous>"
}

// extractMethods pulls method nodes out of a class body.
func extractMethods(classNode *sitter.Node, src []byte, language, path string) []*tree.CodeNode {
	bodyType := classBodyTypes[language]
	rules := methodRules[language]
	if bodyType == "" || rules == nil {
		return []*tree.CodeNode{}
	}

	var body *sitter.Node
	for i := uint32(0); i < classNode.ChildCount(); i++ {
		c := classNode.Child(int(i))
		if c != nil && c.Type() == bodyType {
			body = c
			break
		}
	}
	if body == nil {
		return []*tree.CodeNode{}
	}

	methods := []*tree.CodeNode{}
	for i := uint32(0); i < body.ChildCount(); i++ {
		c := body.Child(int(i))
		if c == nil {
			continue
		}
		nameType, ok := rules[c.Type()]
		if !ok {
			continue
		}
		methods = append(methods, makeNode(c, src, tree.NodeMethod, findChildText(c, src, nameType), language, path))
	}
	return methods
}

// extractArrowFunctions finds top-level `const name = () => ...`
// declarations in JS-family sources.
func extractArrowFunctions(root *sitter.Node, src []byte, language, path string) []*tree.CodeNode {
	switch language {
	case "javascript", "typescript", "tsx":
	default:
		return nil
	}

	var results []*tree.CodeNode
	for i := uint32(0); i < root.ChildCount(); i++ {
		decl := root.Child(int(i))
		if decl == nil || decl.Type() != "lexical_declaration" {
			continue
		}
		for j := uint32(0); j < decl.ChildCount(); j++ {
			v := decl.Child(int(j))
			if v == nil || v.Type() != "variable_declarator" {
				continue
			}
			var name string
			hasArrow := false
			for k := uint32(0); k < v.ChildCount(); k++ {
				part := v.Child(int(k))
				if part == nil {
					continue
				}
				switch part.Type() {
				case "identifier":
					name = string(src[part.StartByte():part.EndByte()])
				case "arrow_function":
					hasArrow = true
				}
			}
			if name != "" && hasArrow {
				results = append(results, makeNode(decl, src, tree.NodeFunction, name, language, path))
			}
		}
	}
	return results
}

// extractImports collects module names (Python/Go) or module paths (JS
// family) from top-level import statements.
func extractImports(root *sitter.Node, src []byte, language string) []string {
	var imports []string

	text := func(n *sitter.Node) string {
		return string(src[n.StartByte():n.EndByte()])
	}

	for i := uint32(0); i < root.ChildCount(); i++ {
		child := root.Child(int(i))
		if child == nil {
			continue
		}
		switch language {
		case "python":
			switch child.Type() {
			case "import_statement":
				for j := uint32(0); j < child.ChildCount(); j++ {
					if gc := child.Child(int(j)); gc != nil && gc.Type() == "dotted_name" {
						imports = append(imports, text(gc))
					}
				}
			case "import_from_statement":
				for j := uint32(0); j < child.ChildCount(); j++ {
					if gc := child.Child(int(j)); gc != nil && gc.Type() == "dotted_name" {
						imports = append(imports, text(gc))
						break // module name only, not imported symbols
					}
				}
			}
		case "javascript", "typescript", "tsx":
			if child.Type() == "import_statement" {
				for j := uint32(0); j < child.ChildCount(); j++ {
					if gc := child.Child(int(j)); gc != nil && gc.Type() == "string" {
						imports = append(imports, strings.Trim(text(gc), `'"`))
					}
				}
			}
		case "go":
			if child.Type() == "import_declaration" {
				for _, spec := range findDescendants(child, "import_spec") {
					for j := uint32(0); j < spec.ChildCount(); j++ {
						if gc := spec.Child(int(j)); gc != nil && gc.Type() == "interpreted_string_literal" {
							imports = append(imports, strings.Trim(text(gc), `"`))
						}
					}
				}
			}
		}
	}
	return imports
}

func findDescendants(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Type() == typ {
			out = append(out, node)
		}
		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)))
		}
	}
	walk(n)
	return out
}
