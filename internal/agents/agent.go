// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agents implements the four sub-agents the supervisor dispatches to.
// Each agent accepts one A2A request and always answers with one A2A
// response; tool failures are classified into the response's error.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/internal/llm"
	"github.com/pdiddy/medpaper/internal/search"
	"github.com/pdiddy/medpaper/pkg/types"
)

// Agent names, used as A2A sender and receiver.
const (
	NameSupervisor = "supervisor"
	NameLiterature = "literature"
	NameStats      = "stats"
	NameWriter     = "writer"
	NameCompliance = "compliance"
)

// Request intents, one per agent.
const (
	IntentLiteratureSearch    = "literature_search"
	IntentStatisticalAnalysis = "statistical_analysis"
	IntentWriteManuscript     = "write_manuscript"
	IntentCheckCompliance     = "check_compliance"
)

// Agent handles A2A requests for one concern. Handle never panics and never
// returns a request: the result is always a response derived from req.
type Agent interface {
	Name() string
	Handle(ctx context.Context, req a2a.Message) a2a.Message
}

// Registry maps agent names to agents.
type Registry map[string]Agent

// New builds the four agents sharing one LLM provider.
func New(cfg types.Config, provider llm.Provider, backends []search.Backend, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	opts := LLMOptions{
		Provider:   provider,
		MaxRetries: cfg.LLM.MaxRetries,
		Params:     llm.Params{MaxTokens: cfg.LLM.MaxTokens},
	}
	return Registry{
		NameLiterature: &Literature{LLMOptions: opts, Backends: backends, Config: cfg.Literature, Logger: logger},
		NameStats:      &Stats{LLMOptions: opts},
		NameWriter:     &Writer{LLMOptions: opts, Logger: logger},
		NameCompliance: &Compliance{LLMOptions: opts},
	}
}

// LLMOptions are the completion settings shared by the LLM-backed agents.
type LLMOptions struct {
	Provider llm.Provider

	// MaxRetries is passed to llm.CompleteJSON for malformed output.
	MaxRetries int

	Params llm.Params
}

func (o LLMOptions) request(system, prompt string, schema any) llm.Request {
	return llm.Request{
		System:     system,
		Prompt:     prompt,
		Schema:     schema,
		MaxRetries: o.MaxRetries,
		Params:     o.Params,
	}
}

func (o LLMOptions) complete(ctx context.Context, req llm.Request, v any, m *a2a.Metrics) error {
	if o.Provider == nil {
		return a2a.NewError(a2a.KindTool, "no LLM provider configured")
	}
	res, err := llm.CompleteJSON(ctx, o.Provider, req, v)
	m.TokensIn += res.TokensIn
	m.TokensOut += res.TokensOut
	return err
}

// handle decodes req into In, runs fn and wraps the outcome in a response.
// fn reports token usage through its metrics; latency is measured here.
// Decode failures and intent mismatches are validation errors; any other
// error is classified; a panic becomes a TOOL_ERROR.
func handle[In, Out any](ctx context.Context, req a2a.Message, intent string, fn func(context.Context, In) (Out, a2a.Metrics, error)) (resp a2a.Message) {
	start := time.Now()
	var metrics a2a.Metrics
	fail := func(e a2a.Error) a2a.Message {
		metrics.LatencyMs = time.Since(start).Milliseconds()
		return a2a.Fail(req, e, metrics)
	}
	defer func() {
		if r := recover(); r != nil {
			resp = fail(a2a.NewError(a2a.KindTool, fmt.Sprintf("agent %s panicked: %v", req.Receiver, r)))
		}
	}()

	if req.Intent != intent {
		return fail(a2a.NewError(a2a.KindValidation, fmt.Sprintf("unsupported intent %q, want %q", req.Intent, intent)))
	}
	var in In
	if err := a2a.Decode(req.Input, &in); err != nil {
		return fail(a2a.NewError(a2a.KindValidation, err.Error()))
	}
	if err := ctx.Err(); err != nil {
		return fail(a2a.Classify(err))
	}

	out, m, err := fn(ctx, in)
	metrics.Add(m)
	if err != nil {
		return fail(a2a.Classify(err))
	}
	payload, err := a2a.NewPayload(out)
	if err != nil {
		return fail(a2a.NewError(a2a.KindTool, err.Error()))
	}
	metrics.LatencyMs = time.Since(start).Milliseconds()
	return a2a.OK(req, payload, metrics)
}
