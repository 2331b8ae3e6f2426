package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codedocent/internal/ai"
	"codedocent/internal/analyze"
	"codedocent/internal/cache"
	"codedocent/internal/quality"
	"codedocent/internal/slogutil"
	"codedocent/internal/tree"
)

const testFileContent = `def handler():
    x = 1
    return x
`

// newTestServer builds a server over a real temp project containing one
// python file with one function.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte(testFileContent), 0o644); err != nil {
		t.Fatal(err)
	}

	fn := &tree.CodeNode{
		Name:      "handler",
		Type:      tree.NodeFunction,
		Language:  "python",
		Filepath:  "app.py",
		StartLine: 1,
		EndLine:   3,
		LineCount: 3,
		Source:    testFileContent,
	}
	file := &tree.CodeNode{
		Name:      "app.py",
		Type:      tree.NodeFile,
		Language:  "python",
		Filepath:  "app.py",
		StartLine: 1,
		EndLine:   3,
		LineCount: 3,
		Source:    testFileContent,
		Children:  []*tree.CodeNode{fn},
	}
	root := &tree.CodeNode{
		Name:      "project",
		Type:      tree.NodeDirectory,
		Filepath:  ".",
		LineCount: 3,
		Children:  []*tree.CodeNode{file},
	}
	lookup := tree.AssignIDs(root)

	logger := slogutil.NewDiscardLogger()
	store := cache.Load(filepath.Join(dir, cache.FileName), "test-model", logger)
	orch := analyze.NewOrchestrator(quality.NewScorer(), nil, store, 0, logger)

	srv, err := New(root, lookup, orch, dir, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, dir
}

func findNodeID(s *Server, name string) string {
	for id, n := range s.lookup {
		if n.Name == name {
			return id
		}
	}
	return ""
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body io.Reader) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if len(data) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, data)
		}
	}
	return resp, decoded
}

func TestIndexServesHTML(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), srv.Token()) {
		t.Error("page does not embed the CSRF token")
	}
}

func TestCSRFRejection(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		method, path, token string
	}{
		{http.MethodGet, "/api/tree", ""},
		{http.MethodGet, "/api/tree", "wrong-token"},
		{http.MethodGet, "/api/source/abc", ""},
		{http.MethodPost, "/api/analyze/abc", ""},
		{http.MethodPost, "/api/replace/abc", ""},
		{http.MethodPost, "/shutdown", ""},
	}
	for _, tt := range tests {
		resp, body := doJSON(t, ts, tt.method, tt.path, tt.token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s %s: status = %d, want 403", tt.method, tt.path, resp.StatusCode)
		}
		if body["error"] != "Invalid or missing CSRF token" {
			t.Errorf("%s %s: error = %v", tt.method, tt.path, body["error"])
		}
	}
}

func TestTreeExcludesSource(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := doJSON(t, ts, http.MethodGet, "/api/tree", srv.Token(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["name"] != "project" {
		t.Errorf("root name = %v", body["name"])
	}
	if _, ok := body["source"]; ok {
		t.Error("tree response includes source")
	}
	children := body["children"].([]any)
	if len(children) != 1 {
		t.Fatalf("children = %v", children)
	}
}

func TestSourceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := findNodeID(srv, "handler")
	resp, body := doJSON(t, ts, http.MethodGet, "/api/source/"+id, srv.Token(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["source"] != testFileContent {
		t.Errorf("source = %q", body["source"])
	}

	resp, body = doJSON(t, ts, http.MethodGet, "/api/source/nope", srv.Token(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown node: status = %d", resp.StatusCode)
	}
	if body["error"] != "Unknown node ID" {
		t.Errorf("unknown node: error = %v", body["error"])
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := findNodeID(srv, "handler")
	resp, body := doJSON(t, ts, http.MethodPost, "/api/analyze/"+id, srv.Token(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["node_id"] != id {
		t.Errorf("node_id = %v", body["node_id"])
	}
	if _, ok := body["source"]; !ok {
		t.Error("analyze response missing source")
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/analyze/nope", srv.Token(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown node: status = %d", resp.StatusCode)
	}
}

// blockingBackend parks in Chat until released, signalling entry first.
type blockingBackend struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Chat(ctx context.Context, prompt string) (string, error) {
	close(b.entered)
	<-b.release
	return "SUMMARY: Handles one request.\nPSEUDOCODE:\nreturn x", nil
}

func (b *blockingBackend) ModelID() string { return "test-model" }

func TestTreeNotBlockedByAnalysis(t *testing.T) {
	srv, dir := newTestServer(t)
	backend := &blockingBackend{entered: make(chan struct{}), release: make(chan struct{})}
	logger := slogutil.NewDiscardLogger()
	store := cache.Load(filepath.Join(dir, cache.FileName), backend.ModelID(), logger)
	summarizer := ai.NewSummarizer(backend, time.Minute, logger)
	srv.orch = analyze.NewOrchestrator(quality.NewScorer(), summarizer, store, 1, logger)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := findNodeID(srv, "handler")
	analyzed := make(chan map[string]any, 1)
	errc := make(chan error, 1)
	go func() {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/analyze/"+id, nil)
		if err != nil {
			errc <- err
			return
		}
		req.Header.Set(TokenHeader, srv.Token())
		resp, err := ts.Client().Do(req)
		if err != nil {
			errc <- err
			return
		}
		defer resp.Body.Close()
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			errc <- err
			return
		}
		analyzed <- body
	}()
	<-backend.entered

	// The model call is still in flight; the tree must answer anyway.
	client := &http.Client{Timeout: 5 * time.Second}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/tree", nil)
	req.Header.Set(TokenHeader, srv.Token())
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("tree request stalled behind analysis: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("tree status = %d", resp.StatusCode)
	}

	close(backend.release)
	select {
	case body := <-analyzed:
		if body["summary"] != "Handles one request." {
			t.Errorf("summary = %v", body["summary"])
		}
	case err := <-errc:
		t.Fatalf("analyze request: %v", err)
	}
}

func TestReplaceRoundTrip(t *testing.T) {
	srv, dir := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := findNodeID(srv, "handler")
	payload, _ := json.Marshal(map[string]string{
		"source": "def handler():\n    return 2\n",
	})
	resp, body := doJSON(t, ts, http.MethodPost, "/api/replace/"+id, srv.Token(), bytes.NewReader(payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Fatalf("success = %v (%v)", body["success"], body["error"])
	}
	if body["lines_after"] != float64(2) {
		t.Errorf("lines_after = %v", body["lines_after"])
	}

	data, err := os.ReadFile(filepath.Join(dir, "app.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "return 2") {
		t.Errorf("file not updated: %q", data)
	}
}

func TestReplaceValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	fileID := findNodeID(srv, "app.py")
	dirID := findNodeID(srv, "project")

	tests := []struct {
		name       string
		path       string
		payload    string
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown node",
			path:       "/api/replace/ffffffffffff",
			payload:    `{"source": "x"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "Unknown node ID",
		},
		{
			name:       "directory",
			path:       "/api/replace/" + dirID,
			payload:    `{"source": "x"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Cannot replace directory blocks",
		},
		{
			name:       "invalid JSON",
			path:       "/api/replace/" + fileID,
			payload:    `{not json`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid JSON",
		},
		{
			name:       "non-string source",
			path:       "/api/replace/" + fileID,
			payload:    `{"source": 42}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "source must be a string",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, ts, http.MethodPost, tt.path, srv.Token(), strings.NewReader(tt.payload))
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestReplaceTooLarge(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := findNodeID(srv, "handler")
	payload, _ := json.Marshal(map[string]string{
		"source": strings.Repeat("x", maxReplacement+1),
	})
	resp, body := doJSON(t, ts, http.MethodPost, "/api/replace/"+id, srv.Token(), bytes.NewReader(payload))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body["error"] != "Replacement too large (max 1MB)" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestReplaceBodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t)
	id := findNodeID(srv, "handler")

	req := httptest.NewRequest(http.MethodPost, "/api/replace/"+id, strings.NewReader("{}"))
	req.Header.Set(TokenHeader, srv.Token())
	req.Header.Set("Content-Length", fmt.Sprint(maxBodySize+1))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Request body too large") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestReplaceContentLengthChecks(t *testing.T) {
	srv, _ := newTestServer(t)
	id := findNodeID(srv, "handler")

	tests := []struct {
		name      string
		header    string
		wantError string
	}{
		{"missing", "", "Missing Content-Length"},
		{"garbage", "abc", "Invalid Content-Length"},
		{"negative", "-5", "Invalid Content-Length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/replace/"+id, strings.NewReader("{}"))
			req.Header.Set(TokenHeader, srv.Token())
			req.Header.Del("Content-Length")
			if tt.header != "" {
				req.Header.Set("Content-Length", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantError) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantError)
			}
		})
	}
}

func TestReplacePathEscape(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := findNodeID(srv, "handler")
	srv.lookup[id].Filepath = "../outside.py"

	resp, body := doJSON(t, ts, http.MethodPost, "/api/replace/"+id, srv.Token(), strings.NewReader(`{"source": "x"}`))
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body["error"] != "Path escapes project directory" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestStatusForEditorError(t *testing.T) {
	tests := []struct {
		msg  string
		want int
	}{
		{"File was modified externally; reload and retry", http.StatusConflict},
		{"Invalid line range: 5-2", http.StatusBadRequest},
		{"end_line 99 exceeds file length (3 lines)", http.StatusBadRequest},
		{"File is not valid UTF-8: x.py", http.StatusBadRequest},
		{"File not found: x.py", http.StatusBadRequest},
		{"disk fell off", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForEditorError(tt.msg); got != tt.want {
			t.Errorf("statusForEditorError(%q) = %d, want %d", tt.msg, got, tt.want)
		}
	}
}

func TestShutdownEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	url, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.HasPrefix(url, "http://127.0.0.1:") {
		t.Errorf("url = %q", url)
	}

	req, _ := http.NewRequest(http.MethodPost, url+"/shutdown", nil)
	req.Header.Set(TokenHeader, srv.Token())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("shutdown request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("status = %d, body = %q", resp.StatusCode, body)
	}

	srv.Wait()
}
