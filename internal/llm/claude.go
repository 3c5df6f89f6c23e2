// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const (
	claudeDefaultModel     = "claude-sonnet-4-5-20250929"
	claudeDefaultMaxTokens = 4096
)

// ClaudeProvider calls the Claude Messages API.
type ClaudeProvider struct {
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Name implements Provider.
func (c *ClaudeProvider) Name() string { return "claude" }

// Complete sends one user message and returns the first text block.
func (c *ClaudeProvider) Complete(ctx context.Context, r Request) (Result, error) {
	suffix, err := schemaInstruction(r.Schema)
	if err != nil {
		return Result{}, err
	}

	model := c.Model
	if model == "" {
		model = claudeDefaultModel
	}
	maxTokens := r.Params.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = claudeDefaultMaxTokens
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      r.System,
		Temperature: r.Params.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: r.Prompt + suffix}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &APIError{
			Provider:   "Claude",
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Wait:       parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return Result{}, &OutputError{Provider: c.Name(), Attempts: 1, Err: fmt.Errorf("decoding Claude response: %w", err)}
	}

	res := Result{TokensIn: cResp.Usage.InputTokens, TokensOut: cResp.Usage.OutputTokens}
	for _, block := range cResp.Content {
		if block.Type == "text" {
			res.Text = block.Text
			return res, nil
		}
	}
	return res, fmt.Errorf("no text content in Claude API response")
}

// parseRetryAfter reads a delay-seconds Retry-After value. HTTP dates are
// ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
