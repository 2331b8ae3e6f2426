package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"codedocent/internal/version"
)

// DefaultOllamaURL is where a stock Ollama daemon listens.
const DefaultOllamaURL = "http://localhost:11434"

const maxResponseBytes = 10_000_000 // 10 MB

// LocalBackend talks to an Ollama daemon's chat API.
type LocalBackend struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewLocalBackend creates an Ollama-backed chat client. An empty baseURL
// uses the default local daemon address.
func NewLocalBackend(baseURL, model string) *LocalBackend {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &LocalBackend{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

// ModelID returns the bare local model name.
func (b *LocalBackend) ModelID() string {
	return b.model
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

// Chat sends a non-streaming chat request to the daemon.
func (b *LocalBackend) Chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    b.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		var netErr *net.OpError
		if errors.As(err, &netErr) {
			return "", fmt.Errorf("%w: cannot reach daemon at %s", ErrUnreachable, b.baseURL)
		}
		return "", fmt.Errorf("%w: %s", ErrUnreachable, b.baseURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("invalid response from daemon: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return "", fmt.Errorf("daemon error: %s", parsed.Error)
		}
		return "", fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
	}

	return parsed.Message.Content, nil
}

// Ping reports whether the daemon answers at all.
func (b *LocalBackend) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// ListModels fetches the model names the daemon has pulled. Returns nil on
// any failure; callers treat that the same as no models.
func (b *LocalBackend) ListModels(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := b.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var data struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&data); err != nil {
		return nil
	}

	names := make([]string, 0, len(data.Models))
	for _, m := range data.Models {
		names = append(names, m.Name)
	}
	return names
}
