// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"github.com/pdiddy/medpaper/internal/workflow"
	"github.com/pdiddy/medpaper/pkg/types"
)

// LiteratureInput is the literature_search request payload.
type LiteratureInput struct {
	ResearchQuestion string          `json:"research_question"`
	PaperType        types.PaperType `json:"paper_type"`
	Keywords         []string        `json:"keywords,omitempty"`

	// Round counts earlier searches in this run that fell short of the
	// reference minimum. Later rounds broaden the query.
	Round int `json:"round"`

	// Have is the number of references already collected.
	Have int `json:"have"`
}

// LiteratureOutput is the literature_search response payload.
type LiteratureOutput struct {
	Query         string            `json:"query"`
	References    []types.Reference `json:"references"`
	DupsRemoved   int               `json:"dups_removed"`
	BackendErrors []string          `json:"backend_errors,omitempty"`
}

// StatsInput is the statistical_analysis request payload.
type StatsInput struct {
	ResearchQuestion string             `json:"research_question"`
	PaperType        types.PaperType    `json:"paper_type"`
	StudyDesign      *types.StudyDesign `json:"study_design,omitempty"`
	RawData          *types.Dataset     `json:"raw_data,omitempty"`
}

// WriterInput is the write_manuscript request payload.
type WriterInput struct {
	Title            string               `json:"title"`
	ResearchQuestion string               `json:"research_question"`
	PaperType        types.PaperType      `json:"paper_type"`
	StudyDesign      *types.StudyDesign   `json:"study_design,omitempty"`
	References       []types.Reference    `json:"references"`
	StatsReport      *types.StatsReport   `json:"stats_report,omitempty"`
	Sections         map[string]string    `json:"sections,omitempty"`
	Directives       []workflow.Directive `json:"directives,omitempty"`

	// Targets lists the sections to (re)write. Empty means every required
	// section.
	Targets []string `json:"targets,omitempty"`
}

// WriterOutput is the write_manuscript response payload.
type WriterOutput struct {
	Sections map[string]string `json:"sections"`

	// RemovedCitations lists citation keys the model used that match no
	// reference; they were stripped from the text.
	RemovedCitations []string `json:"removed_citations,omitempty"`
}

// ComplianceInput is the check_compliance request payload.
type ComplianceInput struct {
	PaperType types.PaperType   `json:"paper_type"`
	Sections  map[string]string `json:"sections"`
}
