// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/internal/stats"
	"github.com/pdiddy/medpaper/pkg/types"
)

// Stats analyses the task's raw data. Without data it asks the provider for
// an analysis plan, or derives one from the study design when no provider
// is configured.
type Stats struct {
	LLMOptions
}

func (a *Stats) Name() string { return NameStats }

func (a *Stats) Handle(ctx context.Context, req a2a.Message) a2a.Message {
	return handle(ctx, req, IntentStatisticalAnalysis, a.analyze)
}

func (a *Stats) analyze(ctx context.Context, in StatsInput) (*types.StatsReport, a2a.Metrics, error) {
	var m a2a.Metrics
	if !in.RawData.Empty() {
		report, err := stats.Analyze(in.RawData)
		if err != nil {
			return nil, m, a2a.NewError(a2a.KindValidation, fmt.Sprintf("raw data: %v", err))
		}
		return report, m, nil
	}

	if a.Provider == nil {
		return designPlan(in), m, nil
	}
	prompt, err := render(planPromptTmpl, in)
	if err != nil {
		return nil, m, err
	}
	var report types.StatsReport
	if err := a.complete(ctx, a.request(systemPrompt, prompt, planSchema), &report, &m); err != nil {
		return nil, m, err
	}
	if strings.TrimSpace(report.Summary) == "" {
		return nil, m, a2a.NewError(a2a.KindLLM, "analysis plan is empty")
	}
	return &report, m, nil
}

// designPlan describes the default analysis for the paper type.
func designPlan(in StatsInput) *types.StatsReport {
	r := &types.StatsReport{}
	if d := in.StudyDesign; d != nil && len(d.Outcomes) > 0 {
		r.Outcome = d.Outcomes[0]
	}
	outcome := r.Outcome
	if outcome == "" {
		outcome = "the primary outcome"
	}
	switch in.PaperType {
	case types.PaperRCT:
		r.Summary = fmt.Sprintf("No raw data supplied. %s will be compared between arms on an intention-to-treat basis using Welch's t-test, reporting the mean difference with its 95%% confidence interval and Cohen's d.", capitalize(outcome))
	case types.PaperMetaAnalysis:
		r.Summary = fmt.Sprintf("No raw data supplied. Study-level effects on %s will be pooled with fixed-effect inverse-variance weighting, with heterogeneity assessed by Cochran's Q and I².", outcome)
	default:
		r.Summary = fmt.Sprintf("No raw data supplied. %s will be described per exposure group (mean, SD, median, range) and compared with Welch's t-test, reporting 95%% confidence intervals.", capitalize(outcome))
	}
	return r
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
