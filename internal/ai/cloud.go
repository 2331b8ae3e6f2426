package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	openai "github.com/sashabaranov/go-openai"

	"codedocent/internal/version"
)

// Provider is a known OpenAI-compatible API vendor.
type Provider struct {
	Name    string
	BaseURL string
	EnvVar  string
	Models  []string
}

// Providers lists the supported cloud vendors. "custom" accepts any
// OpenAI-compatible base URL.
var Providers = map[string]Provider{
	"openai": {
		Name:    "OpenAI",
		BaseURL: "https://api.openai.com/v1",
		EnvVar:  "OPENAI_API_KEY",
		Models:  []string{"gpt-4.1-nano", "gpt-4.1-mini", "gpt-4.1", "gpt-4o-mini", "gpt-4o"},
	},
	"openrouter": {
		Name:    "OpenRouter",
		BaseURL: "https://openrouter.ai/api/v1",
		EnvVar:  "OPENROUTER_API_KEY",
		Models:  []string{"openai/gpt-4.1-nano", "google/gemini-2.5-flash", "anthropic/claude-sonnet-4", "meta-llama/llama-4-scout"},
	},
	"groq": {
		Name:    "Groq",
		BaseURL: "https://api.groq.com/openai/v1",
		EnvVar:  "GROQ_API_KEY",
		Models:  []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "gemma2-9b-it"},
	},
	"custom": {
		Name:   "Custom",
		EnvVar: "CUSTOM_AI_API_KEY",
	},
}

// ValidateEndpoint checks a cloud base URL. Plain HTTP is allowed only
// when the hostname resolves to a loopback address; everything else must
// be HTTPS.
func ValidateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		// always fine
	case "http":
		host := parsed.Hostname()
		if host == "" {
			return errors.New("invalid endpoint URL: missing hostname")
		}
		addrs, err := net.LookupIP(host)
		if err != nil {
			return errors.New("cannot resolve endpoint hostname; use HTTPS for remote endpoints")
		}
		for _, addr := range addrs {
			if !addr.IsLoopback() {
				return errors.New("HTTP endpoints are only allowed for loopback addresses; use HTTPS for remote endpoints")
			}
		}
	default:
		return fmt.Errorf("invalid URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return errors.New("invalid endpoint URL: missing hostname")
	}
	return nil
}

// uaTransport stamps outbound requests with the codedocent User-Agent.
type uaTransport struct {
	base http.RoundTripper
}

func (t uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", version.UserAgent())
	return t.base.RoundTrip(clone)
}

// CloudBackend talks to an OpenAI-compatible chat completion API.
type CloudBackend struct {
	client   *openai.Client
	provider string
	model    string
	host     string
}

// NewCloudBackend builds a cloud chat client. The endpoint may be empty
// for known providers, in which case the provider's default base URL is
// used. The API key goes only into the transport, never into errors.
func NewCloudBackend(provider, endpoint, apiKey, model string) (*CloudBackend, error) {
	p, ok := Providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown cloud provider %q", provider)
	}
	if endpoint == "" {
		endpoint = p.BaseURL
	}
	if endpoint == "" {
		return nil, fmt.Errorf("provider %q requires an explicit endpoint", provider)
	}
	if err := ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key; set %s", p.EnvVar)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = endpoint
	cfg.HTTPClient = &http.Client{Transport: uaTransport{base: http.DefaultTransport}}

	parsed, _ := url.Parse(endpoint)
	host := "provider"
	if parsed != nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
	}

	return &CloudBackend{
		client:   openai.NewClientWithConfig(cfg),
		provider: provider,
		model:    model,
		host:     host,
	}, nil
}

// ModelID returns the composite cloud identifier used for cache keys.
func (b *CloudBackend) ModelID() string {
	return fmt.Sprintf("cloud:%s:%s", b.provider, b.model)
}

// Chat sends a single-turn chat completion request.
func (b *CloudBackend) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", b.normalizeError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("unexpected response format")
	}
	return resp.Choices[0].Message.Content, nil
}

// normalizeError maps transport failures to short human-readable reasons.
// API keys and raw provider error bodies never appear in the result.
func (b *CloudBackend) normalizeError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401:
			return errors.New("unauthorized: check your API key")
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("rate limited by %s; wait and try again", b.host)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("server error from %s (HTTP %d)", b.host, apiErr.HTTPStatusCode)
		default:
			return fmt.Errorf("HTTP %d from %s", apiErr.HTTPStatusCode, b.host)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("HTTP %d from %s", reqErr.HTTPStatusCode, b.host)
	}

	return fmt.Errorf("connection to %s failed", b.host)
}
