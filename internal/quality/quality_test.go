package quality

import (
	"strings"
	"testing"

	"codedocent/internal/complexity"
	"codedocent/internal/tree"
)

func TestGradeResult(t *testing.T) {
	tests := []struct {
		grade   complexity.Grade
		score   int
		quality tree.Quality
		warning string
	}{
		{complexity.GradeA, 3, tree.QualityClean, ""},
		{complexity.GradeB, 8, tree.QualityClean, ""},
		{complexity.GradeC, 15, tree.QualityClean, ""},
		{complexity.GradeD, 25, tree.QualityComplex, "High complexity (grade D, score 25)"},
		{complexity.GradeE, 35, tree.QualityWarning, "Severe complexity (grade E, score 35)"},
		{complexity.GradeF, 50, tree.QualityWarning, "Severe complexity (grade F, score 50)"},
	}

	for _, tt := range tests {
		q, w := gradeResult(tt.grade, tt.score)
		if q != tt.quality {
			t.Errorf("grade %s: expected quality %s, got %s", tt.grade, tt.quality, q)
		}
		if w != tt.warning {
			t.Errorf("grade %s: expected warning %q, got %q", tt.grade, tt.warning, w)
		}
	}
}

func TestRollup_WorstChildWins(t *testing.T) {
	file := &tree.CodeNode{
		Name:    "app.py",
		Type:    tree.NodeFile,
		Quality: tree.QualityClean,
		Children: []*tree.CodeNode{
			{Name: "ok", Type: tree.NodeFunction, Quality: tree.QualityClean},
			{Name: "messy", Type: tree.NodeFunction, Quality: tree.QualityComplex},
			{Name: "scary", Type: tree.NodeFunction, Quality: tree.QualityWarning},
		},
	}

	Rollup(file)

	if file.Quality != tree.QualityWarning {
		t.Errorf("expected quality warning, got %s", file.Quality)
	}
	if len(file.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(file.Warnings), file.Warnings)
	}
	if file.Warnings[0] != "Contains 1 high-risk function" {
		t.Errorf("unexpected warning: %q", file.Warnings[0])
	}
	if file.Warnings[1] != "1 complex function inside" {
		t.Errorf("unexpected warning: %q", file.Warnings[1])
	}
}

func TestRollup_PluralLabels(t *testing.T) {
	file := &tree.CodeNode{
		Name: "app.py",
		Type: tree.NodeFile,
		Children: []*tree.CodeNode{
			{Name: "a", Type: tree.NodeFunction, Quality: tree.QualityComplex},
			{Name: "b", Type: tree.NodeFunction, Quality: tree.QualityComplex},
		},
	}

	Rollup(file)

	if file.Quality != tree.QualityComplex {
		t.Errorf("expected quality complex, got %s", file.Quality)
	}
	if len(file.Warnings) != 1 || file.Warnings[0] != "2 complex functions inside" {
		t.Errorf("unexpected warnings: %v", file.Warnings)
	}
}

func TestRollup_KeepsOwnWorseQuality(t *testing.T) {
	file := &tree.CodeNode{
		Name:     "app.py",
		Type:     tree.NodeFile,
		Quality:  tree.QualityWarning,
		Warnings: []string{"Severe complexity (grade F, score 44)"},
		Children: []*tree.CodeNode{
			{Name: "ok", Type: tree.NodeFunction, Quality: tree.QualityClean},
		},
	}

	Rollup(file)

	if file.Quality != tree.QualityWarning {
		t.Errorf("expected own warning quality retained, got %s", file.Quality)
	}
	if len(file.Warnings) != 1 {
		t.Errorf("expected own warning retained with no additions, got %v", file.Warnings)
	}
}

func TestRollup_NoChildren(t *testing.T) {
	fn := &tree.CodeNode{Name: "lone", Type: tree.NodeFunction, Quality: tree.QualityClean}
	Rollup(fn)
	if fn.Quality != tree.QualityClean || fn.Warnings != nil {
		t.Errorf("rollup of childless node changed it: %s %v", fn.Quality, fn.Warnings)
	}
}

func TestDirectorySummary(t *testing.T) {
	dir := &tree.CodeNode{
		Name: "src",
		Type: tree.NodeDirectory,
		Children: []*tree.CodeNode{
			{Name: "a.py", Type: tree.NodeFile, Quality: tree.QualityClean},
			{Name: "b.py", Type: tree.NodeFile, Quality: tree.QualityComplex},
			{Name: "sub", Type: tree.NodeDirectory, Quality: tree.QualityClean},
		},
	}

	DirectorySummary(dir)

	want := "Contains 2 files: a.py, b.py; 1 directories: sub"
	if dir.Summary != want {
		t.Errorf("expected summary %q, got %q", want, dir.Summary)
	}
	if dir.Quality != tree.QualityComplex {
		t.Errorf("expected quality complex, got %s", dir.Quality)
	}
	if len(dir.Warnings) != 1 || dir.Warnings[0] != "1 complex child inside" {
		t.Errorf("unexpected warnings: %v", dir.Warnings)
	}
}

func TestDirectorySummary_Empty(t *testing.T) {
	dir := &tree.CodeNode{Name: "empty", Type: tree.NodeDirectory}

	DirectorySummary(dir)

	if dir.Summary != "Empty directory" {
		t.Errorf("expected %q, got %q", "Empty directory", dir.Summary)
	}
	if dir.Quality != tree.QualityClean {
		t.Errorf("expected quality clean, got %s", dir.Quality)
	}
	if dir.Warnings != nil {
		t.Errorf("expected no warnings, got %v", dir.Warnings)
	}
}

func TestDirectorySummary_GenericLabels(t *testing.T) {
	dir := &tree.CodeNode{
		Name: "pkg",
		Type: tree.NodeDirectory,
		Children: []*tree.CodeNode{
			{Name: "x.py", Type: tree.NodeFile, Quality: tree.QualityWarning},
			{Name: "y.py", Type: tree.NodeFile, Quality: tree.QualityWarning},
		},
	}

	DirectorySummary(dir)

	if len(dir.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", dir.Warnings)
	}
	if !strings.Contains(dir.Warnings[0], "2 high-risk children") {
		t.Errorf("expected generic children label, got %q", dir.Warnings[0])
	}
}

func TestDirectorySummary_NonDirectoryUntouched(t *testing.T) {
	file := &tree.CodeNode{Name: "a.py", Type: tree.NodeFile}
	DirectorySummary(file)
	if file.Summary != "" {
		t.Errorf("non-directory node got a summary: %q", file.Summary)
	}
}
