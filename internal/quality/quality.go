// Package quality scores code nodes with static heuristics and rolls the
// results up through the tree. A node is "clean", "complex", or "warning";
// directories are never scored directly, only via rollup.
package quality

import (
	"context"
	"fmt"
	"strings"

	"codedocent/internal/complexity"
	"codedocent/internal/tree"
)

// ParamThreshold is the number of significant parameters above which a
// function is flagged. Implicit receivers (self, cls) do not count.
const ParamThreshold = 5

// Scorer runs the heuristic quality checks over individual nodes.
type Scorer struct {
	analyzer *complexity.Analyzer
}

// NewScorer creates a Scorer. Complexity grading is skipped when the
// tree-sitter analyzer is unavailable (non-CGO builds).
func NewScorer() *Scorer {
	return &Scorer{analyzer: complexity.NewAnalyzer()}
}

// Score computes the quality rank and warning list for a single node.
// Directory nodes return ("", nil); they are scored by DirectorySummary.
// Scorer failures degrade to clean with no warning, never an error.
func (s *Scorer) Score(ctx context.Context, node *tree.CodeNode) (tree.Quality, []string) {
	if node.Type == tree.NodeDirectory {
		return "", nil
	}

	quality := tree.QualityClean
	var warnings []string

	if q, w := s.scoreComplexity(ctx, node); q != "" {
		quality = tree.Worst(quality, q)
		if w != "" {
			warnings = append(warnings, w)
		}
	}
	if q, w := s.scoreParamCount(ctx, node); q != "" {
		quality = tree.Worst(quality, q)
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	return quality, warnings
}

// Apply scores a node and writes the result onto it.
func (s *Scorer) Apply(ctx context.Context, node *tree.CodeNode) {
	q, w := s.Score(ctx, node)
	node.Quality = q
	node.Warnings = w
}

// scoreComplexity grades the worst cyclomatic complexity in the node's
// source. Unsupported languages and parse failures score clean.
func (s *Scorer) scoreComplexity(ctx context.Context, node *tree.CodeNode) (tree.Quality, string) {
	if s.analyzer == nil || node.Source == "" {
		return tree.QualityClean, ""
	}
	lang, ok := complexity.FromName(node.Language)
	if !ok {
		return tree.QualityClean, ""
	}

	res, err := s.analyzer.AnalyzeSource(ctx, []byte(node.Source), lang)
	if err != nil || len(res.Functions) == 0 {
		return tree.QualityClean, ""
	}

	return gradeResult(res.WorstGrade, res.MaxCyclomatic)
}

// scoreParamCount flags functions and methods with too many parameters.
func (s *Scorer) scoreParamCount(ctx context.Context, node *tree.CodeNode) (tree.Quality, string) {
	if node.Type != tree.NodeFunction && node.Type != tree.NodeMethod {
		return tree.QualityClean, ""
	}
	if s.analyzer == nil || node.Source == "" {
		return tree.QualityClean, ""
	}
	lang, ok := complexity.FromName(node.Language)
	if !ok {
		return tree.QualityClean, ""
	}

	count, err := s.analyzer.CountParameters(ctx, []byte(node.Source), lang)
	if err != nil {
		return tree.QualityClean, ""
	}
	if count > ParamThreshold {
		return tree.QualityComplex, "Many parameters: consider grouping"
	}
	return tree.QualityClean, ""
}

// gradeResult maps a complexity grade to a quality rank and warning.
// Grades A through C are clean, D is complex, E and F are warnings.
func gradeResult(grade complexity.Grade, score int) (tree.Quality, string) {
	switch grade {
	case complexity.GradeA, complexity.GradeB, complexity.GradeC:
		return tree.QualityClean, ""
	case complexity.GradeD:
		return tree.QualityComplex, fmt.Sprintf("High complexity (grade %s, score %d)", grade, score)
	default:
		return tree.QualityWarning, fmt.Sprintf("Severe complexity (grade %s, score %d)", grade, score)
	}
}

// childQualityCounts returns the worst child quality plus the number of
// complex and warning children.
func childQualityCounts(children []*tree.CodeNode) (tree.Quality, int, int) {
	worst := tree.QualityClean
	complexCount := 0
	warningCount := 0
	for _, child := range children {
		q := child.Quality
		if q == "" {
			q = tree.QualityClean
		}
		worst = tree.Worst(worst, q)
		switch child.Quality {
		case tree.QualityComplex:
			complexCount++
		case tree.QualityWarning:
			warningCount++
		}
	}
	return worst, complexCount, warningCount
}

// rollupWarnings builds the synthesized warning lines from child counts.
func rollupWarnings(complexCount, warningCount int, singular, plural string) []string {
	var warnings []string
	if warningCount > 0 {
		lbl := plural
		if warningCount == 1 {
			lbl = singular
		}
		warnings = append(warnings, fmt.Sprintf("Contains %d high-risk %s", warningCount, lbl))
	}
	if complexCount > 0 {
		lbl := plural
		if complexCount == 1 {
			lbl = singular
		}
		warnings = append(warnings, fmt.Sprintf("%d complex %s inside", complexCount, lbl))
	}
	return warnings
}

// Rollup lifts child quality into a file or class node. The node's quality
// becomes the worse of its own and the worst child's; warning lines are
// appended for complex and high-risk children. Children must already be
// scored.
func Rollup(node *tree.CodeNode) {
	if len(node.Children) == 0 {
		return
	}

	own := node.Quality
	if own == "" {
		own = tree.QualityClean
	}
	worst, complexCount, warningCount := childQualityCounts(node.Children)
	node.Quality = tree.Worst(own, worst)
	node.Warnings = append(node.Warnings, rollupWarnings(complexCount, warningCount, "function", "functions")...)
}

// DirectorySummary synthesizes a directory's summary from its immediate
// children and applies the quality rollup with generic child labels. No AI
// involved.
func DirectorySummary(node *tree.CodeNode) {
	if node.Type != tree.NodeDirectory {
		return
	}

	var fileNames, dirNames []string
	for _, child := range node.Children {
		switch child.Type {
		case tree.NodeFile:
			fileNames = append(fileNames, child.Name)
		case tree.NodeDirectory:
			dirNames = append(dirNames, child.Name)
		}
	}

	var parts []string
	if len(fileNames) > 0 {
		parts = append(parts, fmt.Sprintf("%d files: %s", len(fileNames), strings.Join(fileNames, ", ")))
	}
	if len(dirNames) > 0 {
		parts = append(parts, fmt.Sprintf("%d directories: %s", len(dirNames), strings.Join(dirNames, ", ")))
	}

	if len(parts) > 0 {
		node.Summary = "Contains " + strings.Join(parts, "; ")
	} else {
		node.Summary = "Empty directory"
	}

	worst, complexCount, warningCount := childQualityCounts(node.Children)
	node.Quality = worst
	node.Warnings = rollupWarnings(complexCount, warningCount, "child", "children")
}
