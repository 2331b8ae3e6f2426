// Package scanner walks a directory tree and identifies source files by
// language. Hidden and build directories are pruned, binary files and
// gitignored paths are skipped.
package scanner

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// extensionMap maps lowercase file extensions to language tags.
var extensionMap = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".jsx":  "tsx",
	".tsx":  "tsx",
	".c":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".h":    "c",
	".hpp":  "cpp",
	".hxx":  "cpp",
	".rs":   "rust",
	".go":   "go",
	".java": "java",
	".rb":   "ruby",
	".html": "html",
	".htm":  "html",
	".css":  "css",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".md":   "markdown",
	".sh":   "bash",
	".bash": "bash",
	".sql":  "sql",
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"__pycache__":   true,
	".venv":         true,
	"venv":          true,
	".env":          true,
	"dist":          true,
	"build":         true,
	".egg-info":     true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".tox":          true,
}

const binarySampleSize = 8192

// ScannedFile is a source file discovered during directory scanning.
// Filepath is relative to the scanned root.
type ScannedFile struct {
	Filepath  string
	Language  string
	Extension string
}

// LanguageForExtension returns the language tag for a file extension.
func LanguageForExtension(ext string) (string, bool) {
	lang, ok := extensionMap[strings.ToLower(ext)]
	return lang, ok
}

func shouldSkipDir(name string) bool {
	if skipDirs[name] {
		return true
	}
	if strings.HasSuffix(name, ".egg-info") {
		return true
	}
	return strings.HasPrefix(name, ".")
}

// isBinary sniffs the first 8KB for NUL bytes. Unreadable files are
// treated as binary and skipped.
func isBinary(filepath string) bool {
	f, err := os.Open(filepath)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, binarySampleSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// loadGitignore reads .gitignore patterns from the root directory.
// Returns nil when no .gitignore exists.
func loadGitignore(root string) []string {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// matchesGitignore checks a slash-separated relative path against the
// loaded patterns. Supports glob patterns, bare names matched against any
// path segment, and trailing-slash directory patterns.
func matchesGitignore(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			dir := strings.TrimSuffix(pattern, "/")
			for _, part := range strings.Split(filepath.Dir(relPath), "/") {
				if ok, _ := filepath.Match(dir, part); ok {
					return true
				}
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Scan walks a directory and returns all recognized source files, sorted
// by relative path for deterministic output.
func Scan(path string) ([]ScannedFile, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", path)
	}

	gitignore := loadGitignore(root)
	var results []ScannedFile

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if p != root && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if matchesGitignore(relPath, gitignore) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		lang, ok := extensionMap[ext]
		if !ok {
			return nil
		}
		if isBinary(p) {
			return nil
		}

		results = append(results, ScannedFile{
			Filepath:  relPath,
			Language:  lang,
			Extension: ext,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Filepath < results[j].Filepath
	})
	return results, nil
}
