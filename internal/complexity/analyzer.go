//go:build cgo

package complexity

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Analyzer computes cyclomatic complexity from tree-sitter ASTs.
type Analyzer struct {
	parser *Parser
}

// NewAnalyzer creates a new complexity analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		parser: NewParser(),
	}
}

// AnalyzeSource computes complexity metrics for every function in a source
// snippet. The snippet does not need to be a whole file; a single function
// body parses fine for all supported grammars.
func (a *Analyzer) AnalyzeSource(ctx context.Context, source []byte, lang Language) (*Result, error) {
	root, err := a.parser.Parse(ctx, source, lang)
	if err != nil {
		return nil, fmt.Errorf("parsing %s source: %w", lang, err)
	}

	result := &Result{Language: lang}

	fnTypes := functionNodeTypes(lang)
	if fnTypes == nil {
		return nil, fmt.Errorf("no function node types for language %s", lang)
	}

	for _, fn := range findNodes(root, fnTypes) {
		score := cyclomaticComplexity(fn, source, lang)
		startLine := int(fn.StartPoint().Row) + 1
		endLine := int(fn.EndPoint().Row) + 1
		result.Functions = append(result.Functions, FunctionComplexity{
			Name:       functionName(fn, source),
			StartLine:  startLine,
			EndLine:    endLine,
			Lines:      endLine - startLine + 1,
			Cyclomatic: score,
			Grade:      GradeForScore(score),
		})
	}

	result.aggregate()
	return result, nil
}

// CountParameters returns the number of formal parameters of the first
// function found in the snippet. Python's self/cls and Go method receivers
// are not counted. Returns 0 when the snippet holds no function.
func (a *Analyzer) CountParameters(ctx context.Context, source []byte, lang Language) (int, error) {
	root, err := a.parser.Parse(ctx, source, lang)
	if err != nil {
		return 0, fmt.Errorf("parsing %s source: %w", lang, err)
	}

	fns := findNodes(root, functionNodeTypes(lang))
	if len(fns) == 0 {
		return 0, nil
	}

	params := fns[0].ChildByFieldName("parameters")
	if params == nil {
		for _, t := range parameterContainerTypes(lang) {
			if params = firstChildOfType(fns[0], t); params != nil {
				break
			}
		}
	}
	if params == nil {
		return 0, nil
	}

	count := 0
	for i := uint32(0); i < params.NamedChildCount(); i++ {
		child := params.NamedChild(int(i))
		if child == nil || child.Type() == "comment" {
			continue
		}
		if lang == LangPython {
			name := string(source[child.StartByte():child.EndByte()])
			if name == "self" || name == "cls" {
				continue
			}
		}
		count++
	}

	// Go parameter_list entries can declare several names with one type.
	if lang == LangGo {
		count = 0
		for i := uint32(0); i < params.NamedChildCount(); i++ {
			decl := params.NamedChild(int(i))
			if decl == nil || decl.Type() != "parameter_declaration" {
				continue
			}
			names := 0
			for j := uint32(0); j < decl.NamedChildCount(); j++ {
				if c := decl.NamedChild(int(j)); c != nil && c.Type() == "identifier" {
					names++
				}
			}
			if names == 0 {
				names = 1 // unnamed parameter
			}
			count += names
		}
	}

	return count, nil
}

// cyclomaticComplexity counts decision points within a function node,
// skipping nested function definitions so each function is scored on its
// own body only.
func cyclomaticComplexity(fn *sitter.Node, source []byte, lang Language) int {
	decisionTypes := decisionNodeTypes(lang)
	fnTypes := functionNodeTypes(lang)

	score := 1 // base path

	var walk func(node *sitter.Node, top bool)
	walk = func(node *sitter.Node, top bool) {
		if node == nil {
			return
		}
		if !top && contains(fnTypes, node.Type()) {
			return // nested function scored separately
		}
		if contains(decisionTypes, node.Type()) {
			switch node.Type() {
			case "binary_expression", "boolean_operator":
				if isBooleanOperator(node, source, lang) {
					score++
				}
			default:
				score++
			}
		}
		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)), false)
		}
	}

	walk(fn, true)
	return score
}

// IsAvailable returns whether complexity analysis is available.
func IsAvailable() bool {
	return true
}

func firstChildOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		if c := node.NamedChild(int(i)); c != nil && c.Type() == typ {
			return c
		}
	}
	return nil
}
