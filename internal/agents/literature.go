// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/internal/search"
	"github.com/pdiddy/medpaper/pkg/types"
)

// Literature searches the configured literature backends. When a provider is
// set, the research question is first condensed into a database query.
type Literature struct {
	LLMOptions
	Backends []search.Backend
	Config   types.LiteratureConfig
	Logger   *slog.Logger
}

func (a *Literature) Name() string { return NameLiterature }

func (a *Literature) Handle(ctx context.Context, req a2a.Message) a2a.Message {
	return handle(ctx, req, IntentLiteratureSearch, a.search)
}

type queryPlan struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords"`
}

func (a *Literature) search(ctx context.Context, in LiteratureInput) (LiteratureOutput, a2a.Metrics, error) {
	var m a2a.Metrics
	if strings.TrimSpace(in.ResearchQuestion) == "" {
		return LiteratureOutput{}, m, a2a.NewError(a2a.KindValidation, "research question is empty")
	}

	query := a.buildQuery(ctx, in, &m)
	out, err := search.Search(ctx, query, a.Backends, a.Config, a.logger())
	if err != nil {
		return LiteratureOutput{}, m, err
	}
	return LiteratureOutput{
		Query:         query.Text(),
		References:    out.References,
		DupsRemoved:   out.DupsRemoved,
		BackendErrors: out.BackendErrors,
	}, m, nil
}

// buildQuery asks the provider for a concise query. Without a provider, or
// when the provider fails, the research question itself is searched; later
// rounds drop the keywords.
func (a *Literature) buildQuery(ctx context.Context, in LiteratureInput, m *a2a.Metrics) search.Query {
	fallback := search.Query{FreeText: in.ResearchQuestion}
	if in.Round == 0 {
		fallback.Keywords = in.Keywords
	}
	if a.Provider == nil {
		return fallback
	}

	prompt, err := render(queryPromptTmpl, in)
	if err != nil {
		a.logger().Warn("query prompt failed, searching research question", "error", err)
		return fallback
	}
	var plan queryPlan
	if err := a.complete(ctx, a.request(systemPrompt, prompt, querySchema), &plan, m); err != nil {
		a.logger().Warn("query generation failed, searching research question", "error", err)
		return fallback
	}
	if strings.TrimSpace(plan.Query) == "" {
		return fallback
	}
	q := search.Query{FreeText: plan.Query}
	if in.Round == 0 {
		q.Keywords = plan.Keywords
	}
	return q
}

func (a *Literature) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
