// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/medpaper/pkg/types"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGemini creates a Gemini provider. The API key comes from cfg.APIKey.
func NewGemini(ctx context.Context, cfg types.LLMConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider: no API key configured")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" || !strings.HasPrefix(strings.ToLower(model), "gemini-") {
		model = geminiDefaultModel
	}
	return &GeminiProvider{client: c, model: model, maxTokens: cfg.MaxTokens}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete generates content, requesting JSON output when a schema is set.
func (p *GeminiProvider) Complete(ctx context.Context, r Request) (Result, error) {
	cfg := &genai.GenerateContentConfig{}
	if r.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(r.System, genai.RoleUser)
	}
	if r.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = r.Schema
	}
	maxTokens := r.Params.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if r.Params.Temperature != nil {
		t := float32(*r.Params.Temperature)
		cfg.Temperature = &t
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(r.Prompt), cfg)
	if err != nil {
		return Result{}, fmt.Errorf("gemini generate: %w", err)
	}

	var res Result
	if resp.UsageMetadata != nil {
		res.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		res.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return res, fmt.Errorf("gemini: empty response")
	}
	res.Text = resp.Candidates[0].Content.Parts[0].Text
	return res, nil
}
