// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Reference records one cited work returned by the literature agent.
type Reference struct {
	// CitationKey is the inline citation label (e.g. "Smith2020").
	CitationKey string `json:"citation_key" yaml:"citation_key"`

	// Identifier is the canonical ID from the source (PMID, NCT number, DOI).
	Identifier string `json:"identifier" yaml:"identifier"`

	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal or registry.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`
	DOI   string `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source lists the backends that returned this work (e.g. "pubmed,openalex").
	Source string `json:"source" yaml:"source"`

	// RelevanceScore is a value between 0.0 and 1.0.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}

// GroupSummary holds descriptive statistics for one group.
type GroupSummary struct {
	Name   string  `json:"name" yaml:"name"`
	N      int     `json:"n" yaml:"n"`
	Mean   float64 `json:"mean" yaml:"mean"`
	SD     float64 `json:"sd" yaml:"sd"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// Comparison is a two-group contrast.
type Comparison struct {
	Groups         [2]string `json:"groups" yaml:"groups"`
	MeanDifference float64   `json:"mean_difference" yaml:"mean_difference"`
	CILower        float64   `json:"ci_lower" yaml:"ci_lower"`
	CIUpper        float64   `json:"ci_upper" yaml:"ci_upper"`
	TStatistic     float64   `json:"t_statistic" yaml:"t_statistic"`
	DF             float64   `json:"df" yaml:"df"`
	CohensD        float64   `json:"cohens_d" yaml:"cohens_d"`
}

// PooledEstimate is a fixed-effect inverse-variance pooled effect.
type PooledEstimate struct {
	Studies       int     `json:"studies" yaml:"studies"`
	Effect        float64 `json:"effect" yaml:"effect"`
	StandardError float64 `json:"standard_error" yaml:"standard_error"`
	CILower       float64 `json:"ci_lower" yaml:"ci_lower"`
	CIUpper       float64 `json:"ci_upper" yaml:"ci_upper"`
	Q             float64 `json:"q" yaml:"q"`
	ISquared      float64 `json:"i_squared" yaml:"i_squared"`
}

// StatsReport is the stats agent's output.
type StatsReport struct {
	Outcome     string          `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Groups      []GroupSummary  `json:"groups,omitempty" yaml:"groups,omitempty"`
	Comparisons []Comparison    `json:"comparisons,omitempty" yaml:"comparisons,omitempty"`
	Pooled      *PooledEstimate `json:"pooled,omitempty" yaml:"pooled,omitempty"`

	// Summary is a prose description of the analysis (or the analysis plan
	// when no raw data was supplied).
	Summary string `json:"summary" yaml:"summary"`
}

// Verdict is the evaluation outcome of one checklist item.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictWarn Verdict = "WARN"
	VerdictFail Verdict = "FAIL"
)

// Valid reports whether v is PASS, WARN or FAIL.
func (v Verdict) Valid() bool {
	return v == VerdictPass || v == VerdictWarn || v == VerdictFail
}

// ChecklistItemResult is one evaluated checklist item.
type ChecklistItemResult struct {
	Number     string  `json:"number" yaml:"number"`
	Topic      string  `json:"topic" yaml:"topic"`
	Section    string  `json:"section" yaml:"section"`
	Verdict    Verdict `json:"verdict" yaml:"verdict"`
	Finding    string  `json:"finding,omitempty" yaml:"finding,omitempty"`
	Suggestion string  `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// ComplianceReport aggregates checklist item results.
type ComplianceReport struct {
	ChecklistType string                `json:"checklist_type" yaml:"checklist_type"`
	TotalItems    int                   `json:"total_items" yaml:"total_items"`
	Passed        int                   `json:"passed" yaml:"passed"`
	Warnings      int                   `json:"warnings" yaml:"warnings"`
	Failed        int                   `json:"failed" yaml:"failed"`
	Items         []ChecklistItemResult `json:"items" yaml:"items"`
	OverallScore  float64               `json:"overall_score" yaml:"overall_score"`
	NeedsRevision bool                  `json:"needs_revision" yaml:"needs_revision"`
	FailedItems   []ChecklistItemResult `json:"failed_items,omitempty" yaml:"failed_items,omitempty"`
	WarningItems  []ChecklistItemResult `json:"warning_items,omitempty" yaml:"warning_items,omitempty"`
}

// PaperTemplate describes one selectable paper type.
type PaperTemplate struct {
	Type        PaperType `json:"type" yaml:"type"`
	Name        string    `json:"name" yaml:"name"`
	Checklist   string    `json:"checklist" yaml:"checklist"`
	Description string    `json:"description" yaml:"description"`
}
