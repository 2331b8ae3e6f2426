// Package cache persists AI analysis results between runs. Entries are
// content-addressed, so any edit to a node's source invalidates its entry,
// and the whole store is discarded when the active model changes.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"codedocent/internal/tree"
)

// FileName is the cache file written into the analyzed root directory.
const FileName = ".codedocent_cache.json"

// FormatVersion is bumped when the on-disk layout changes; older files are
// discarded rather than migrated.
const FormatVersion = 1

// Entry is one cached analysis result.
type Entry struct {
	Summary    string `json:"summary"`
	Pseudocode string `json:"pseudocode"`
}

// record is the on-disk layout.
type record struct {
	Version int              `json:"version"`
	Model   string           `json:"model"`
	Entries map[string]Entry `json:"entries"`
}

// Store is a persisted analysis cache. All access goes through one mutex:
// batch workers read and write entries concurrently.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.Mutex
	rec record
}

// Key builds the content-addressed cache key for a node:
// {filepath}::{name}::{md5(source)}.
func Key(n *tree.CodeNode) string {
	sum := md5.Sum([]byte(n.Source))
	return n.Filepath + "::" + n.Name + "::" + hex.EncodeToString(sum[:])
}

// Load reads the cache at path, returning a fresh empty store on a missing
// file, unreadable JSON, or version mismatch. A stored model identifier that
// differs from model discards all entries: summaries written by one model
// must never be served as another's.
func Load(path, model string, logger *slog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
		rec:    record{Version: FormatVersion, Model: model, Entries: map[string]Entry{}},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.Warn("cache file unreadable, starting fresh", "path", path, "error", err)
		return s
	}
	if rec.Version != FormatVersion {
		logger.Warn("cache version mismatch, starting fresh",
			"path", path, "found", rec.Version, "want", FormatVersion)
		return s
	}
	if rec.Model != model {
		logger.Info("cache invalidated by model change",
			"cached", rec.Model, "active", model, "dropped", len(rec.Entries))
		return s
	}
	if rec.Entries == nil {
		rec.Entries = map[string]Entry{}
	}
	s.rec = rec
	return s
}

// Get returns the cached entry for a node, if any.
func (s *Store) Get(n *tree.CodeNode) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rec.Entries[Key(n)]
	return e, ok
}

// Put stores an analysis result for a node.
func (s *Store) Put(n *tree.CodeNode, summary, pseudocode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Entries[Key(n)] = Entry{Summary: summary, Pseudocode: pseudocode}
}

// Remove drops the entry under key, if present.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rec.Entries, key)
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rec.Entries)
}

// Model returns the model identifier the store is bound to.
func (s *Store) Model() string {
	return s.rec.Model
}

// Save writes the cache durably and atomically: a temp file in the same
// directory is flushed, synced, then renamed over the destination. A save
// failure is logged and returned, but callers treat it as non-fatal — a lost
// cache only costs re-analysis.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.rec, "", "  ")
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("could not encode cache", "error", err)
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".codedocent_cache-*.tmp")
	if err != nil {
		s.logger.Warn("could not save cache", "path", s.path, "error", err)
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpPath, s.path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		s.logger.Warn("could not save cache", "path", s.path, "error", err)
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}
