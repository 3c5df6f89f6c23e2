// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow defines the state threaded through one supervisor run.
// Each sub-agent owns one slice of the state and writes it only through the
// matching merge method.
package workflow

import (
	"strings"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/pkg/types"
)

// Directive is one revision instruction aimed at a manuscript section.
type Directive struct {
	Section     string `json:"section" yaml:"section"`
	Item        string `json:"item,omitempty" yaml:"item,omitempty"`
	Instruction string `json:"instruction" yaml:"instruction"`
}

// State is owned by a single supervisor goroutine and is not safe for
// concurrent use.
type State struct {
	TaskID           string
	UserID           string
	Title            string
	PaperType        types.PaperType
	ResearchQuestion string
	StudyDesign      *types.StudyDesign
	RawData          *types.Dataset

	References         []types.Reference
	StatsReport        *types.StatsReport
	ManuscriptSections map[string]string
	ComplianceReport   *types.ComplianceReport

	CurrentStep   string
	NextAgent     string
	RevisionRound int
	MaxRevisions  int
	Directives    []Directive

	Messages []a2a.Message
	Errors   []a2a.Error
}

// FromTask seeds a State from a persisted task, copying every collection so
// the task is not aliased.
func FromTask(t *types.MedicalPaperTask) *State {
	s := &State{
		TaskID:             t.ID,
		UserID:             t.UserID,
		Title:              t.Title,
		PaperType:          t.PaperType,
		ResearchQuestion:   t.ResearchQuestion,
		StudyDesign:        t.StudyDesign,
		RawData:            t.RawData,
		StatsReport:        t.StatsReport,
		ComplianceReport:   t.ComplianceReport,
		CurrentStep:        t.CurrentStep,
		RevisionRound:      t.RevisionRound,
		MaxRevisions:       t.MaxRevisions,
		ManuscriptSections: make(map[string]string, len(t.Manuscript)),
	}
	s.References = append(s.References, t.References...)
	for k, v := range t.Manuscript {
		s.ManuscriptSections[k] = v
	}
	return s
}

// ApplyTo writes the agent-produced fields and routing position back onto t.
// Status is left to the caller so transitions stay validated.
func (s *State) ApplyTo(t *types.MedicalPaperTask) {
	t.References = append([]types.Reference(nil), s.References...)
	t.StatsReport = s.StatsReport
	t.ComplianceReport = s.ComplianceReport
	t.CurrentStep = s.CurrentStep
	t.RevisionRound = s.RevisionRound
	if len(s.ManuscriptSections) > 0 {
		t.Manuscript = make(map[string]string, len(s.ManuscriptSections))
		for k, v := range s.ManuscriptSections {
			t.Manuscript[k] = v
		}
	}
}

// referenceKey identifies a work across backends: DOI first, then the
// source identifier, then the normalized title.
func referenceKey(r types.Reference) string {
	switch {
	case r.DOI != "":
		return "doi:" + strings.ToLower(r.DOI)
	case r.Identifier != "":
		return "id:" + strings.ToLower(r.Identifier)
	default:
		return "title:" + strings.ToLower(strings.Join(strings.Fields(r.Title), " "))
	}
}

// MergeReferences appends refs not already present and returns how many
// were added. Existing entries keep their position.
func (s *State) MergeReferences(refs []types.Reference) int {
	seen := make(map[string]bool, len(s.References))
	for _, r := range s.References {
		seen[referenceKey(r)] = true
	}
	added := 0
	for _, r := range refs {
		k := referenceKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		s.References = append(s.References, r)
		added++
	}
	return added
}

// SetStatsReport replaces the stats agent's report.
func (s *State) SetStatsReport(r *types.StatsReport) {
	if r != nil {
		s.StatsReport = r
	}
}

// MergeSections overwrites only the sections present in sections. Empty
// texts are ignored so a partial revision never blanks a section.
func (s *State) MergeSections(sections map[string]string) {
	if s.ManuscriptSections == nil {
		s.ManuscriptSections = make(map[string]string, len(sections))
	}
	for name, text := range sections {
		if strings.TrimSpace(text) == "" {
			continue
		}
		s.ManuscriptSections[strings.ToLower(name)] = text
	}
}

// SetComplianceReport replaces the compliance agent's report.
func (s *State) SetComplianceReport(r *types.ComplianceReport) {
	if r != nil {
		s.ComplianceReport = r
	}
}

// HasSections reports whether every named section has non-blank text.
func (s *State) HasSections(names []string) bool {
	for _, n := range names {
		if strings.TrimSpace(s.ManuscriptSections[n]) == "" {
			return false
		}
	}
	return true
}

// Record appends an exchanged message to the history.
func (s *State) Record(msgs ...a2a.Message) {
	s.Messages = append(s.Messages, msgs...)
}

// AddError appends a classified error.
func (s *State) AddError(e a2a.Error) {
	s.Errors = append(s.Errors, e)
}

// DirectivesFromReport turns failed and warning checklist items into
// section-scoped revision directives, failed items first.
func DirectivesFromReport(r *types.ComplianceReport) []Directive {
	if r == nil {
		return nil
	}
	out := make([]Directive, 0, len(r.FailedItems)+len(r.WarningItems))
	for _, group := range [][]types.ChecklistItemResult{r.FailedItems, r.WarningItems} {
		for _, it := range group {
			instr := it.Suggestion
			if instr == "" {
				instr = it.Finding
			}
			if instr == "" {
				instr = "address checklist item: " + it.Topic
			}
			out = append(out, Directive{Section: SectionFor(it.Section), Item: it.Number, Instruction: instr})
		}
	}
	return out
}

// SectionFor maps a checklist section label onto a manuscript section.
// Title items are handled in the abstract; "other" items (registration,
// funding) belong in the methods.
func SectionFor(checklistSection string) string {
	switch strings.ToLower(checklistSection) {
	case "title", "abstract":
		return "abstract"
	case "introduction", "results", "discussion", "conclusion":
		return strings.ToLower(checklistSection)
	default:
		return "methods"
	}
}

// DirectiveSections returns the distinct sections named by ds in first-seen order.
func DirectiveSections(ds []Directive) []string {
	var out []string
	seen := map[string]bool{}
	for _, d := range ds {
		if d.Section == "" || seen[d.Section] {
			continue
		}
		seen[d.Section] = true
		out = append(out, d.Section)
	}
	return out
}
