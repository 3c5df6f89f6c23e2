// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medpaper/pkg/types"
)

func TestForPaperType(t *testing.T) {
	tests := []struct {
		pt    types.PaperType
		name  string
		items int
	}{
		{types.PaperRCT, CONSORT, 25},
		{types.PaperCohort, STROBE, 22},
		{types.PaperMetaAnalysis, PRISMA, 27},
		{types.PaperType("case_report"), STROBE, 22},
	}
	for _, tt := range tests {
		t.Run(string(tt.pt), func(t *testing.T) {
			c, err := ForPaperType(tt.pt)
			require.NoError(t, err)
			assert.Equal(t, tt.name, c.Name)
			assert.Len(t, c.Items, tt.items)
			for i, it := range c.Items {
				assert.NotEmpty(t, it.Topic, "item %d", i)
				assert.NotEmpty(t, it.Section, "item %d", i)
				assert.NotEmpty(t, it.Requirement, "item %d", i)
			}
		})
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("ARRIVE")
	assert.Error(t, err)
}

func results(verdicts ...types.Verdict) []types.ChecklistItemResult {
	out := make([]types.ChecklistItemResult, len(verdicts))
	for i, v := range verdicts {
		out[i] = types.ChecklistItemResult{Number: string(rune('1' + i)), Verdict: v}
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name          string
		items         []types.ChecklistItemResult
		score         float64
		needsRevision bool
	}{
		{"mixed", results(types.VerdictPass, types.VerdictPass, types.VerdictWarn, types.VerdictFail), 0.63, true},
		{"all pass", results(types.VerdictPass, types.VerdictPass, types.VerdictPass), 1.0, false},
		{"warnings only", results(types.VerdictPass, types.VerdictWarn), 0.75, false},
		{"all fail", results(types.VerdictFail, types.VerdictFail), 0.0, true},
		{"empty", nil, 0.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(CONSORT, tt.items)
			assert.Equal(t, tt.score, r.OverallScore)
			assert.Equal(t, tt.needsRevision, r.NeedsRevision)
			assert.Equal(t, len(tt.items), r.TotalItems)
			assert.Equal(t, r.TotalItems, r.Passed+r.Warnings+r.Failed)
			assert.Equal(t, CONSORT, r.ChecklistType)
		})
	}
}

func TestScoreSubsets(t *testing.T) {
	r := Score(STROBE, results(types.VerdictPass, types.VerdictPass, types.VerdictWarn, types.VerdictFail))
	require.Len(t, r.FailedItems, 1)
	require.Len(t, r.WarningItems, 1)
	assert.Equal(t, "4", r.FailedItems[0].Number)
	assert.Equal(t, "3", r.WarningItems[0].Number)
	assert.Len(t, r.Items, 4)
}

func TestEvaluateFillsMissing(t *testing.T) {
	c, err := Get(CONSORT)
	require.NoError(t, err)

	got := Evaluate(c, FromVerdicts([]types.ChecklistItemResult{
		{Number: "1", Verdict: types.VerdictPass},
		{Number: "2", Verdict: types.VerdictWarn, Suggestion: "state the hypothesis"},
		{Number: "99", Verdict: types.VerdictPass},
	}))

	require.Len(t, got, 25)
	assert.Equal(t, types.VerdictPass, got[0].Verdict)
	assert.Equal(t, "Title and abstract", got[0].Topic)
	assert.Equal(t, types.VerdictWarn, got[1].Verdict)
	assert.Equal(t, "state the hypothesis", got[1].Suggestion)
	assert.Equal(t, types.VerdictFail, got[2].Verdict)
	assert.Equal(t, "not evaluated", got[2].Finding)

	r := Score(CONSORT, got)
	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 1, r.Warnings)
	assert.Equal(t, 23, r.Failed)
}

func TestTemplates(t *testing.T) {
	tmpls := Templates()
	require.Len(t, tmpls, 3)
	assert.Equal(t, types.PaperRCT, tmpls[0].Type)
	assert.Equal(t, CONSORT, tmpls[0].Checklist)
	assert.Equal(t, STROBE, tmpls[1].Checklist)
	assert.Equal(t, PRISMA, tmpls[2].Checklist)
	for _, tm := range tmpls {
		assert.NotEmpty(t, tm.Name)
		assert.NotEmpty(t, tm.Description)
	}
}
