// Package complexity provides language-agnostic cyclomatic complexity
// grading and parameter counting via tree-sitter.
package complexity

import "errors"

// ErrNoCGO is returned when complexity analysis is unavailable due to missing CGO.
var ErrNoCGO = errors.New("complexity analysis requires CGO (tree-sitter)")

// Language represents a supported programming language.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
)

// FromName returns the Language for a scanner/parser language tag.
func FromName(name string) (Language, bool) {
	switch name {
	case "go", "javascript", "typescript", "tsx", "python", "rust", "java":
		return Language(name), true
	default:
		return "", false
	}
}

// Grade is a letter rank for cyclomatic complexity, following the bands
// radon popularized: A (1-5), B (6-10), C (11-20), D (21-30), E (31-40),
// F (41+).
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
	GradeF Grade = "F"
)

// GradeForScore maps a cyclomatic complexity score to its letter grade.
func GradeForScore(score int) Grade {
	switch {
	case score <= 5:
		return GradeA
	case score <= 10:
		return GradeB
	case score <= 20:
		return GradeC
	case score <= 30:
		return GradeD
	case score <= 40:
		return GradeE
	default:
		return GradeF
	}
}

// FunctionComplexity holds metrics for a single function or method.
type FunctionComplexity struct {
	Name       string `json:"name"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	Lines      int    `json:"lines"`
	Cyclomatic int    `json:"cyclomatic"`
	Grade      Grade  `json:"grade"`
}

// Result holds complexity metrics for a source snippet.
type Result struct {
	Language  Language             `json:"language"`
	Functions []FunctionComplexity `json:"functions"`

	// MaxCyclomatic is the worst score across all functions, 0 when the
	// snippet contains none.
	MaxCyclomatic int `json:"maxCyclomatic"`

	// WorstGrade is the grade for MaxCyclomatic; empty when the snippet
	// contains no functions.
	WorstGrade Grade `json:"worstGrade,omitempty"`
}

// aggregate computes the max score and worst grade from function results.
func (r *Result) aggregate() {
	for _, f := range r.Functions {
		if f.Cyclomatic > r.MaxCyclomatic {
			r.MaxCyclomatic = f.Cyclomatic
		}
	}
	if len(r.Functions) > 0 {
		r.WorstGrade = GradeForScore(r.MaxCyclomatic)
	}
}
