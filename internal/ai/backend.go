// Package ai builds prompts, talks to a language-model backend, and cleans
// the raw output into a (summary, pseudocode) pair. Two backends exist: a
// local Ollama daemon and an OpenAI-compatible cloud endpoint.
package ai

import (
	"context"
	"errors"
)

// Backend is a chat-capable language model.
type Backend interface {
	// Chat sends a single user prompt and returns the assistant's raw
	// response text.
	Chat(ctx context.Context, prompt string) (string, error)

	// ModelID identifies the active model for cache invalidation. Cloud
	// backends return a composite "cloud:<provider>:<model>" so a local
	// model with the same name is a different cache key space.
	ModelID() string
}

// ErrTimeout reports a call cancelled by the summarization deadline.
// Callers surface it as "timed out", not "failed".
var ErrTimeout = errors.New("model call timed out")

// ErrUnreachable reports that the backend cannot be contacted at all.
// During batch analysis this aborts the run.
var ErrUnreachable = errors.New("model backend unreachable")
