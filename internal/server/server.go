// Package server implements the interactive localhost server: it serves the
// rendered code map, analyzes nodes lazily on demand, and applies source
// replacements back to disk.
package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"codedocent/internal/analyze"
	"codedocent/internal/cache"
	"codedocent/internal/editor"
	"codedocent/internal/parser"
	"codedocent/internal/render"
	"codedocent/internal/tree"
)

const (
	// IdleTimeout is how long the server runs with no requests before
	// shutting itself down.
	IdleTimeout = 5 * time.Minute

	idleCheckInterval = 30 * time.Second
	maxBodySize       = 10 * 1024 * 1024
	maxReplacement    = 1_000_000
	bodyReadTimeout   = 30 * time.Second
)

// Server holds the in-memory tree and answers the interactive page's API
// calls. mu serializes the mutating check-then-act paths (analyze,
// replace); read-only handlers serve the tree without it so they never
// queue behind an in-flight model call.
type Server struct {
	root       *tree.CodeNode
	lookup     map[string]*tree.CodeNode
	orch       *analyze.Orchestrator
	projectDir string
	csrfToken  string
	html       string
	logger     *slog.Logger

	mu      sync.Mutex
	lastReq atomic.Int64

	httpSrv  *http.Server
	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a server for the given tree. projectDir is the absolute root
// that replacement paths must stay inside.
func New(root *tree.CodeNode, lookup map[string]*tree.CodeNode, orch *analyze.Orchestrator, projectDir string, logger *slog.Logger) (*Server, error) {
	token, err := newCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("generate CSRF token: %w", err)
	}
	html, err := render.RenderInteractive(root, token)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}
	return &Server{
		root:       root,
		lookup:     lookup,
		orch:       orch,
		projectDir: abs,
		csrfToken:  token,
		html:       html,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Token returns the per-session CSRF token.
func (s *Server) Token() string { return s.csrfToken }

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/tree", s.handleTree)
	mux.HandleFunc("/api/source/", s.handleSource)
	mux.HandleFunc("/api/analyze/", s.handleAnalyze)
	mux.HandleFunc("/api/replace/", s.handleReplace)
	mux.HandleFunc("/shutdown", s.handleShutdown)

	var h http.Handler = mux
	h = csrfMiddleware(s.csrfToken)(h)
	h = s.touchMiddleware(h)
	h = loggingMiddleware(s.logger)(h)
	h = recoveryMiddleware(s.logger)(h)
	h = requestIDMiddleware(h)
	return h
}

// touchMiddleware records the time of every request for the idle watcher.
func (s *Server) touchMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastReq.Store(time.Now().UnixNano())
		next.ServeHTTP(w, r)
	})
}

// Start binds to 127.0.0.1 and begins serving in the background. Pass port
// 0 to let the OS pick a free one. Returns the URL clients should open.
func (s *Server) Start(port int) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	s.lastReq.Store(time.Now().UnixNano())

	go s.idleWatcher()
	go func() {
		err := s.httpSrv.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
		s.stopOnce.Do(func() { close(s.done) })
	}()

	return fmt.Sprintf("http://%s", ln.Addr().String()), nil
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() { <-s.done }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() {
	if s.httpSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("shutdown", "error", err)
	}
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Server) idleWatcher() {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			elapsed := time.Since(time.Unix(0, s.lastReq.Load()))
			if elapsed >= IdleTimeout {
				s.logger.Info("idle timeout reached, shutting down")
				s.Shutdown()
				return
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.html)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.html)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, render.NodeMap(s.root, false))
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	nodeID := strings.TrimPrefix(r.URL.Path, "/api/source/")
	node, ok := s.lookup[nodeID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Unknown node ID"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": node.Source})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	nodeID := strings.TrimPrefix(r.URL.Path, "/api/analyze/")
	node, ok := s.lookup[nodeID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Unknown node ID"})
		return
	}

	// Cheap unlocked peek; already-analyzed nodes never touch the lock.
	if !node.Analyzed() {
		s.mu.Lock()
		if !node.Analyzed() {
			if err := s.orch.AnalyzeNode(r.Context(), node); err != nil {
				s.logger.Error("analyze failed", "nodeID", nodeID, "error", err)
				node.Summary = fmt.Sprintf("Analysis failed: %v", err)
			}
		}
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, render.NodeMap(node, true))
}

// replaceRequest is the body of POST /api/replace/{id}. Source is raw so a
// non-string value can be rejected explicitly rather than failing decode.
type replaceRequest struct {
	Source json.RawMessage `json:"source"`
}

type replaceResponse struct {
	editor.Result
	TreeStale bool `json:"tree_stale,omitempty"`
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	nodeID := strings.TrimPrefix(r.URL.Path, "/api/replace/")

	clHeader := r.Header.Get("Content-Length")
	if clHeader == "" {
		writeFailure(w, http.StatusBadRequest, "Missing Content-Length")
		return
	}
	contentLength, err := strconv.Atoi(clHeader)
	if err != nil || contentLength < 0 {
		writeFailure(w, http.StatusBadRequest, "Invalid Content-Length")
		return
	}
	if contentLength > maxBodySize {
		writeFailure(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	raw, err := readBodyWithTimeout(r.Body, contentLength)
	if err != nil {
		writeFailure(w, http.StatusRequestTimeout, "Request body read timed out")
		return
	}

	var req replaceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	newSource := ""
	if len(req.Source) > 0 {
		if err := json.Unmarshal(req.Source, &newSource); err != nil {
			writeFailure(w, http.StatusBadRequest, "source must be a string")
			return
		}
	}

	status, resp := s.executeReplace(nodeID, newSource)
	writeJSON(w, status, resp)
}

// readBodyWithTimeout reads exactly n bytes, giving up after the read
// timeout so a stalled client cannot pin the handler.
func readBodyWithTimeout(body io.Reader, n int) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, n)
		_, err := io.ReadFull(body, buf)
		ch <- result{buf, err}
	}()
	select {
	case res := <-ch:
		return res.data, res.err
	case <-time.After(bodyReadTimeout):
		return nil, fmt.Errorf("body read timed out")
	}
}

func (s *Server) executeReplace(nodeID, newSource string) (int, any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.lookup[nodeID]
	if !ok {
		return http.StatusNotFound, map[string]any{"success": false, "error": "Unknown node ID"}
	}
	if node.Type == tree.NodeDirectory {
		return http.StatusBadRequest, failureBody("Cannot replace directory blocks")
	}
	if len(newSource) > maxReplacement {
		return http.StatusBadRequest, failureBody("Replacement too large (max 1MB)")
	}

	absPath := s.resolveFilepath(node)
	if !s.insideProject(absPath) {
		return http.StatusForbidden, failureBody("Path escapes project directory")
	}

	result := editor.Replace(absPath, node.StartLine, node.EndLine, newSource)
	if !result.Success {
		return statusForEditorError(result.Error), replaceResponse{Result: result}
	}

	// Compute the cache key before the source changes; the entry it names
	// describes the pre-edit content.
	oldKey := cache.Key(node)
	node.Source = newSource
	node.LineCount = result.LinesAfter
	node.EndLine = node.StartLine + node.LineCount - 1
	node.ClearAnalysis()
	s.orch.InvalidateNode(oldKey)

	resp := replaceResponse{Result: result}
	if err := s.refreshFileNodes(node); err != nil {
		s.logger.Warn("tree refresh failed after replace", "nodeID", nodeID, "error", err)
		resp.TreeStale = true
	}
	return http.StatusOK, resp
}

func statusForEditorError(msg string) int {
	if strings.Contains(msg, "modified externally") {
		return http.StatusConflict
	}
	for _, k := range []string{
		"Invalid line range", "exceeds file length",
		"not valid UTF-8", "File not found",
	} {
		if strings.Contains(msg, k) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// resolveFilepath builds an absolute path for a node's file.
func (s *Server) resolveFilepath(node *tree.CodeNode) string {
	if filepath.IsAbs(node.Filepath) {
		return node.Filepath
	}
	return filepath.Join(s.projectDir, node.Filepath)
}

// insideProject reports whether path stays within the project directory
// after resolving symlinks.
func (s *Server) insideProject(path string) bool {
	realRoot, err := filepath.EvalSymlinks(s.projectDir)
	if err != nil {
		realRoot = filepath.Clean(s.projectDir)
	}
	realPath := resolveReal(path)
	if realPath == realRoot {
		return true
	}
	return strings.HasPrefix(realPath, realRoot+string(os.PathSeparator))
}

// resolveReal resolves symlinks, falling back to resolving just the parent
// when the file itself does not exist yet.
func resolveReal(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	dir, base := filepath.Split(filepath.Clean(path))
	if real, err := filepath.EvalSymlinks(filepath.Clean(dir)); err == nil {
		return filepath.Join(real, base)
	}
	return filepath.Clean(path)
}

// refreshFileNodes re-parses the file that owns node, updating the file
// node in place so existing tree references stay intact, then reassigns
// IDs. IDs are deterministic, so unchanged nodes keep theirs and the
// browser's references stay valid.
func (s *Server) refreshFileNodes(node *tree.CodeNode) error {
	var fileNode *tree.CodeNode
	for _, n := range s.lookup {
		if n.Type == tree.NodeFile && n.Filepath == node.Filepath {
			fileNode = n
			break
		}
	}
	if fileNode == nil {
		return nil
	}

	absPath := s.resolveFilepath(fileNode)
	fresh, err := parser.ParseFile(absPath, fileNode.Language)
	if err != nil {
		return err
	}

	fileNode.Source = fresh.Source
	fileNode.Children = fresh.Children
	fileNode.Imports = fresh.Imports
	fileNode.LineCount = fresh.LineCount
	fileNode.EndLine = fresh.EndLine
	for _, fn := range tree.Flatten(fileNode) {
		fn.Node.Filepath = fileNode.Filepath
	}

	s.lookup = tree.AssignIDs(s.root)
	return nil
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
	go s.Shutdown()
}

func writeJSON(w http.ResponseWriter, status int, obj any) {
	data, err := json.Marshal(obj)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func failureBody(msg string) replaceResponse {
	return replaceResponse{Result: editor.Result{Success: false, Error: msg}}
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failureBody(msg))
}
