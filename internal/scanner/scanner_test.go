package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_RecognizesLanguages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.py"), []byte("print('hi')\n"))
	writeFile(t, filepath.Join(dir, "lib", "util.ts"), []byte("export const x = 1;\n"))
	writeFile(t, filepath.Join(dir, "README.nope"), []byte("unknown ext\n"))

	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
	if files[0].Filepath != "app.py" || files[0].Language != "python" {
		t.Errorf("unexpected first file: %+v", files[0])
	}
	if files[1].Filepath != "lib/util.ts" || files[1].Language != "typescript" {
		t.Errorf("unexpected second file: %+v", files[1])
	}
}

func TestScan_SkipsBuildAndHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), []byte("package main\n"))
	writeFile(t, filepath.Join(dir, "node_modules", "dep.js"), []byte("x\n"))
	writeFile(t, filepath.Join(dir, "__pycache__", "m.py"), []byte("x\n"))
	writeFile(t, filepath.Join(dir, ".hidden", "s.py"), []byte("x\n"))
	writeFile(t, filepath.Join(dir, "pkg.egg-info", "i.py"), []byte("x\n"))

	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(files) != 1 || files[0].Filepath != "main.go" {
		t.Errorf("expected only main.go, got %v", files)
	}
}

func TestScan_SkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data.py"), []byte("x = 1\x00\x01\x02"))
	writeFile(t, filepath.Join(dir, "code.py"), []byte("x = 1\n"))

	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(files) != 1 || files[0].Filepath != "code.py" {
		t.Errorf("expected only code.py, got %v", files)
	}
}

func TestScan_HonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), []byte("# comment\n*.gen.py\nsecrets/\n"))
	writeFile(t, filepath.Join(dir, "app.py"), []byte("x\n"))
	writeFile(t, filepath.Join(dir, "model.gen.py"), []byte("x\n"))
	writeFile(t, filepath.Join(dir, "secrets", "keys.py"), []byte("x\n"))

	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(files) != 1 || files[0].Filepath != "app.py" {
		t.Errorf("expected only app.py, got %v", files)
	}
}

func TestScan_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "single.py")
	writeFile(t, file, []byte("x\n"))

	if _, err := Scan(file); err == nil {
		t.Error("expected error when scanning a file")
	}
}

func TestLanguageForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		lang string
		ok   bool
	}{
		{".py", "python", true},
		{".PY", "python", true},
		{".jsx", "tsx", true},
		{".exe", "", false},
	}

	for _, tt := range tests {
		lang, ok := LanguageForExtension(tt.ext)
		if lang != tt.lang || ok != tt.ok {
			t.Errorf("LanguageForExtension(%q) = %q, %v; want %q, %v", tt.ext, lang, ok, tt.lang, tt.ok)
		}
	}
}
