// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checklist holds the reporting-guideline item sets (CONSORT, STROBE,
// PRISMA), maps paper types to them, and scores evaluated items into a
// compliance report.
package checklist

import (
	"embed"
	"fmt"
	"math"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medpaper/pkg/types"
)

// Checklist type names.
const (
	CONSORT = "CONSORT"
	STROBE  = "STROBE"
	PRISMA  = "PRISMA"
)

//go:embed checklists/*.yaml
var checklistFS embed.FS

var files = map[string]string{
	CONSORT: "checklists/consort.yaml",
	STROBE:  "checklists/strobe.yaml",
	PRISMA:  "checklists/prisma.yaml",
}

// byPaperType maps each paper type to its checklist. Unlisted types use STROBE.
var byPaperType = map[types.PaperType]string{
	types.PaperRCT:          CONSORT,
	types.PaperCohort:       STROBE,
	types.PaperMetaAnalysis: PRISMA,
}

// Item is one checklist entry.
type Item struct {
	Number      string `yaml:"number" json:"number"`
	Topic       string `yaml:"topic" json:"topic"`
	Section     string `yaml:"section" json:"section"`
	Requirement string `yaml:"requirement" json:"requirement"`
}

// Checklist is a parsed item set.
type Checklist struct {
	Name        string          `yaml:"name"`
	Title       string          `yaml:"title"`
	PaperType   types.PaperType `yaml:"paper_type"`
	Description string          `yaml:"description"`
	Items       []Item          `yaml:"items"`
}

var (
	loadOnce   sync.Once
	checklists map[string]*Checklist
	loadErr    error
)

func load() (map[string]*Checklist, error) {
	loadOnce.Do(func() {
		checklists = make(map[string]*Checklist, len(files))
		for name, path := range files {
			data, err := checklistFS.ReadFile(path)
			if err != nil {
				loadErr = fmt.Errorf("reading checklist %s: %w", name, err)
				return
			}
			var c Checklist
			if err := yaml.Unmarshal(data, &c); err != nil {
				loadErr = fmt.Errorf("parsing checklist %s: %w", name, err)
				return
			}
			checklists[name] = &c
		}
	})
	return checklists, loadErr
}

// Get returns the named checklist. The returned value must not be modified.
func Get(name string) (*Checklist, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	c, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("unknown checklist %q", name)
	}
	return c, nil
}

// NameFor returns the checklist name used for a paper type.
func NameFor(pt types.PaperType) string {
	if name, ok := byPaperType[pt]; ok {
		return name
	}
	return STROBE
}

// ForPaperType returns the checklist for a paper type; unknown types get STROBE.
func ForPaperType(pt types.PaperType) (*Checklist, error) {
	return Get(NameFor(pt))
}

// Evaluate runs verdict against every item of c and returns one result per
// item in checklist order. Items the function leaves without a valid verdict
// are recorded as FAIL so the result count always equals the checklist size.
func Evaluate(c *Checklist, verdict func(Item) types.ChecklistItemResult) []types.ChecklistItemResult {
	results := make([]types.ChecklistItemResult, 0, len(c.Items))
	for _, item := range c.Items {
		r := verdict(item)
		r.Number = item.Number
		r.Topic = item.Topic
		r.Section = item.Section
		if !r.Verdict.Valid() {
			r.Verdict = types.VerdictFail
			if r.Finding == "" {
				r.Finding = "not evaluated"
			}
		}
		results = append(results, r)
	}
	return results
}

// FromVerdicts builds a verdict function from results keyed by item number,
// as returned by an LLM reviewer. Missing numbers yield an empty verdict.
func FromVerdicts(results []types.ChecklistItemResult) func(Item) types.ChecklistItemResult {
	byNumber := make(map[string]types.ChecklistItemResult, len(results))
	for _, r := range results {
		byNumber[r.Number] = r
	}
	return func(it Item) types.ChecklistItemResult {
		return byNumber[it.Number]
	}
}

// Score aggregates item results into a compliance report.
//
//	score = round2((passed + 0.5*warnings) / total)
//
// needs_revision is true whenever any item failed. An empty list scores 0.
func Score(checklistType string, items []types.ChecklistItemResult) types.ComplianceReport {
	report := types.ComplianceReport{
		ChecklistType: checklistType,
		TotalItems:    len(items),
		Items:         append([]types.ChecklistItemResult(nil), items...),
	}
	for _, it := range items {
		switch it.Verdict {
		case types.VerdictPass:
			report.Passed++
		case types.VerdictWarn:
			report.Warnings++
			report.WarningItems = append(report.WarningItems, it)
		default:
			report.Failed++
			report.FailedItems = append(report.FailedItems, it)
		}
	}
	if report.TotalItems > 0 {
		raw := (float64(report.Passed) + 0.5*float64(report.Warnings)) / float64(report.TotalItems)
		report.OverallScore = round2(raw)
	}
	report.NeedsRevision = report.Failed > 0
	return report
}

// round2 rounds half away from zero to two decimals.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Templates returns the paper-type registry in display order.
func Templates() []types.PaperTemplate {
	out := make([]types.PaperTemplate, 0, len(types.PaperTypes))
	for _, pt := range types.PaperTypes {
		name := NameFor(pt)
		tmpl := types.PaperTemplate{Type: pt, Name: templateNames[pt], Checklist: name}
		if c, err := Get(name); err == nil {
			tmpl.Description = c.Description
		}
		out = append(out, tmpl)
	}
	return out
}

var templateNames = map[types.PaperType]string{
	types.PaperRCT:          "Randomized Controlled Trial",
	types.PaperCohort:       "Cohort Study",
	types.PaperMetaAnalysis: "Systematic Review and Meta-Analysis",
}
