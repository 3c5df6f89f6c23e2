// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/internal/checklist"
	"github.com/pdiddy/medpaper/pkg/types"
)

// Compliance has the provider judge every item of the paper type's
// reporting checklist and scores the verdicts.
type Compliance struct {
	LLMOptions
}

func (a *Compliance) Name() string { return NameCompliance }

func (a *Compliance) Handle(ctx context.Context, req a2a.Message) a2a.Message {
	return handle(ctx, req, IntentCheckCompliance, a.check)
}

type complianceReply struct {
	Items []types.ChecklistItemResult `json:"items"`
}

func (a *Compliance) check(ctx context.Context, in ComplianceInput) (*types.ComplianceReport, a2a.Metrics, error) {
	var m a2a.Metrics
	if len(in.Sections) == 0 {
		return nil, m, a2a.NewError(a2a.KindValidation, "manuscript has no sections to check")
	}
	c, err := checklist.ForPaperType(in.PaperType)
	if err != nil {
		return nil, m, fmt.Errorf("loading checklist: %w", err)
	}

	prompt, err := render(compliancePromptTmpl, struct {
		Checklist *checklist.Checklist
		Sections  map[string]string
	}{c, in.Sections})
	if err != nil {
		return nil, m, err
	}
	var reply complianceReply
	if err := a.complete(ctx, a.request(systemPrompt, prompt, complianceSchema), &reply, &m); err != nil {
		return nil, m, err
	}
	for i := range reply.Items {
		it := &reply.Items[i]
		it.Number = strings.TrimSpace(it.Number)
		it.Verdict = types.Verdict(strings.ToUpper(strings.TrimSpace(string(it.Verdict))))
	}

	report := checklist.Score(c.Name, checklist.Evaluate(c, checklist.FromVerdicts(reply.Items)))
	return &report, m, nil
}
