// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/pdiddy/medpaper/pkg/types"
)

const (
	ollamaDefaultModel = "llama3.1:8b"
	ollamaDefaultHost  = "http://localhost:11434"
)

// OllamaProvider calls a local Ollama server.
type OllamaProvider struct {
	client    *api.Client
	model     string
	maxTokens int
}

// NewOllama creates an Ollama provider for cfg.Host, falling back to
// OLLAMA_HOST and then the default local address.
func NewOllama(cfg types.LLMConfig) (*OllamaProvider, error) {
	var c *api.Client
	if cfg.Host != "" {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("ollama: bad host %q: %w", cfg.Host, err)
		}
		c = api.NewClient(u, http.DefaultClient)
	} else {
		var err error
		if c, err = api.ClientFromEnvironment(); err != nil {
			u, _ := url.Parse(ollamaDefaultHost)
			c = api.NewClient(u, http.DefaultClient)
		}
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" || strings.HasPrefix(model, "claude-") || strings.HasPrefix(model, "gemini-") {
		model = ollamaDefaultModel
	}
	return &OllamaProvider{client: c, model: model, maxTokens: cfg.MaxTokens}, nil
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

// Complete runs a non-streaming generate call. A schema is passed as the
// response format.
func (p *OllamaProvider) Complete(ctx context.Context, r Request) (Result, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   p.model,
		Prompt:  r.Prompt,
		System:  r.System,
		Stream:  &stream,
		Options: map[string]any{},
	}
	if r.Schema != nil {
		b, err := json.Marshal(r.Schema)
		if err != nil {
			return Result{}, fmt.Errorf("ollama marshal schema: %w", err)
		}
		req.Format = b
	}
	maxTokens := r.Params.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		req.Options["num_predict"] = maxTokens
	}
	if r.Params.Temperature != nil {
		req.Options["temperature"] = *r.Params.Temperature
	}

	var (
		out strings.Builder
		res Result
	)
	err := p.client.Generate(ctx, req, func(gr api.GenerateResponse) error {
		out.WriteString(gr.Response)
		if gr.Done {
			res.TokensIn = gr.PromptEvalCount
			res.TokensOut = gr.EvalCount
		}
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return Result{}, &APIError{Provider: "Ollama", StatusCode: se.StatusCode, Body: se.ErrorMessage}
		}
		return Result{}, fmt.Errorf("ollama generate: %w", err)
	}
	res.Text = out.String()
	return res, nil
}
