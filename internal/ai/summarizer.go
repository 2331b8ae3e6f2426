package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"codedocent/internal/tree"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 2 * time.Minute

// Summarizer turns code nodes into (summary, pseudocode) pairs through a
// Backend, with a hard per-call timeout.
type Summarizer struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

// NewSummarizer wraps a backend. A zero timeout uses DefaultTimeout.
func NewSummarizer(backend Backend, timeout time.Duration, logger *slog.Logger) *Summarizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Summarizer{backend: backend, timeout: timeout, logger: logger}
}

// ModelID exposes the backend's model identifier for cache keying.
func (s *Summarizer) ModelID() string {
	return s.backend.ModelID()
}

// Summarize generates the summary and pseudocode for one node. A timeout
// returns ErrTimeout so callers can report "timed out" instead of
// "failed"; ErrUnreachable passes through for batch abort decisions.
func (s *Summarizer) Summarize(ctx context.Context, node *tree.CodeNode) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := BuildPrompt(node, s.backend.ModelID())

	start := time.Now()
	raw, err := s.backend.Chat(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("model call timed out", "node", node.Name, "after", time.Since(start))
			return "", "", ErrTimeout
		}
		return "", "", err
	}

	summary, pseudocode := CleanResponse(raw)
	s.logger.Debug("node summarized",
		"node", node.Name,
		"duration", time.Since(start),
		"summary_len", len(summary))
	return summary, pseudocode, nil
}
