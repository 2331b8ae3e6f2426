// Package editor performs validated, atomic line-range replacement in
// source files: timestamped backups, external-modification detection, and
// preservation of the file's line-ending convention.
package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const backupAttempts = 100

// beforeWriteCheck widens the read-to-write race window in tests.
var beforeWriteCheck func(path string)

// Result describes the outcome of a replacement. Error is a structured
// message; Replace never panics or returns a Go error to the caller.
type Result struct {
	Success     bool   `json:"success"`
	LinesBefore int    `json:"lines_before,omitempty"`
	LinesAfter  int    `json:"lines_after,omitempty"`
	Error       string `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Replace substitutes lines startLine through endLine (1-indexed,
// inclusive) of the file with newSource, re-emitted in the file's own
// line-ending convention. The original is backed up first; a concurrent
// external edit between read and write aborts the operation.
func Replace(path string, startLine, endLine int, newSource string) Result {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return failure("File not found: %s", path)
	}
	if startLine < 1 || endLine < 1 || startLine > endLine {
		return failure("Invalid line range: %d-%d", startLine, endLine)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return failure("Could not read file: %v", err)
	}
	mtime := info.ModTime()

	if !utf8.Valid(raw) {
		return failure("File is not valid UTF-8: %s", path)
	}
	content := string(raw)

	// The file's dominant convention wins over the replacement's, but only
	// for the replaced lines. Untouched lines keep their own terminators.
	crlf := strings.Count(content, "\r\n")
	lf := strings.Count(content, "\n") - crlf
	eol := "\n"
	if crlf > lf {
		eol = "\r\n"
	}

	lines := splitKeepEnds(content)

	if endLine > len(lines) {
		return failure("end_line %d exceeds file length (%d lines)", endLine, len(lines))
	}

	newLines := splitLines(strings.ReplaceAll(newSource, "\r\n", "\n"))

	var b strings.Builder
	for _, line := range lines[:startLine-1] {
		b.WriteString(line)
	}
	if len(newLines) > 0 {
		b.WriteString(strings.Join(newLines, eol))
		if strings.HasSuffix(lines[endLine-1], "\n") {
			b.WriteString(eol)
		}
	}
	for _, line := range lines[endLine:] {
		b.WriteString(line)
	}
	output := b.String()

	if beforeWriteCheck != nil {
		beforeWriteCheck(path)
	}

	// Refuse to clobber edits made since we read the file.
	current, err := os.Stat(path)
	if err != nil {
		return failure("File not found: %s", path)
	}
	if !current.ModTime().Equal(mtime) {
		return failure("File was modified externally; reload and retry")
	}

	backupPath, err := writeBackup(path, raw)
	if err != nil {
		return failure("Could not create backup: %v", err)
	}
	if _, err := os.Stat(backupPath); err != nil {
		return failure("Backup verification failed: %v", err)
	}

	if err := atomicWrite(path, []byte(output), info.Mode().Perm()); err != nil {
		return failure("Could not write file: %v", err)
	}

	return Result{
		Success:     true,
		LinesBefore: endLine - startLine + 1,
		LinesAfter:  len(newLines),
	}
}

// splitKeepEnds breaks text into lines that retain their own terminators.
// A trailing newline does not produce an empty final line.
func splitKeepEnds(text string) []string {
	var lines []string
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
	}
	return lines
}

// splitLines breaks text into logical lines without terminators. A
// trailing newline does not produce an empty final line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// writeBackup copies the original bytes to <path>.bak.<unix-ts> with
// exclusive-create semantics, falling back to numbered suffixes when the
// name is taken.
func writeBackup(path string, original []byte) (string, error) {
	base := fmt.Sprintf("%s.bak.%d", path, time.Now().Unix())

	for i := 0; i < backupAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s.%d", base, i)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(original); err != nil {
			f.Close()
			os.Remove(candidate)
			return "", err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(candidate)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no free backup name for %s", path)
}

// atomicWrite lands the new content via a same-directory temp file and
// rename, so readers never observe a partial write.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
