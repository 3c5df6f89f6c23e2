// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the boundary to large-language-model providers. Agents ask
// for a completion through the Provider interface; the concrete backends are
// Claude (Messages API over HTTP), Gemini (genai SDK) and Ollama.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/pkg/types"
)

// Params tunes one completion. Zero values use provider defaults.
type Params struct {
	MaxTokens   int
	Temperature *float64
}

// Request is a single completion request.
type Request struct {
	System string
	Prompt string

	// Schema, when set, is a JSON-schema document the response must satisfy.
	Schema any

	// MaxRetries is the number of re-asks CompleteJSON makes when the
	// response is not valid JSON for the target type.
	MaxRetries int

	Params Params
}

// Result is a completion and its token usage.
type Result struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Provider abstracts the completion backend so tests can supply a mock.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Result, error)
}

// APIError is a non-success HTTP response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
	Wait       time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// A2AKind maps the status code onto the A2A error taxonomy.
func (e *APIError) A2AKind() a2a.ErrorKind {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return a2a.KindRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return a2a.KindTimeout
	default:
		return a2a.KindLLM
	}
}

// RetryAfter is the server-requested wait, if any.
func (e *APIError) RetryAfter() time.Duration { return e.Wait }

// ErrMalformedOutput is wrapped by errors for responses that are not the
// requested JSON after every re-ask.
var ErrMalformedOutput = errors.New("malformed structured output")

// OutputError reports a response that could not be decoded.
type OutputError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempt(s): %v", e.Provider, ErrMalformedOutput, e.Attempts, e.Err)
}

func (e *OutputError) Unwrap() []error { return []error{ErrMalformedOutput, e.Err} }

// A2AKind classifies malformed output as an LLM failure rather than a
// validation error, so the supervisor may retry it.
func (e *OutputError) A2AKind() a2a.ErrorKind { return a2a.KindLLM }

// CompleteJSON requests a completion and decodes it into v. When the text is
// not valid JSON for v the prompt is re-sent with a correction note, up to
// req.MaxRetries extra times. Token usage is summed over all attempts.
func CompleteJSON(ctx context.Context, p Provider, req Request, v any) (Result, error) {
	var total Result
	prompt := req.Prompt
	var lastErr error
	attempts := req.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		r := req
		r.Prompt = prompt
		res, err := p.Complete(ctx, r)
		total.TokensIn += res.TokensIn
		total.TokensOut += res.TokensOut
		if err != nil {
			return total, err
		}
		total.Text = res.Text
		if lastErr = json.Unmarshal([]byte(ExtractJSON(res.Text)), v); lastErr == nil {
			return total, nil
		}
		prompt = req.Prompt + "\n\nYour previous reply could not be parsed as JSON (" + lastErr.Error() +
			"). Respond with a single JSON value and no surrounding text."
	}
	return total, &OutputError{Provider: p.Name(), Attempts: attempts, Err: lastErr}
}

// ExtractJSON strips Markdown code fences and any prose around the outermost
// JSON object or array in s.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// schemaInstruction renders the schema as a prompt suffix for providers
// without native structured output.
func schemaInstruction(schema any) (string, error) {
	if schema == nil {
		return "", nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}
	return "\n\nRespond with JSON only, matching this JSON schema:\n" + string(data), nil
}

// New builds the provider selected by cfg.
func New(ctx context.Context, cfg types.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case types.ProviderClaude, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude provider: no API key configured")
		}
		return &ClaudeProvider{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: cfg.MaxTokens}, nil
	case types.ProviderGemini:
		return NewGemini(ctx, cfg)
	case types.ProviderOllama:
		return NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
