// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the medpaper pipeline:
// the paper task, its references and reports, audit records, and the
// configuration groups read by the CLI.
package types

import (
	"errors"
	"fmt"
	"time"
)

// PaperType selects the manuscript template and its reporting checklist.
type PaperType string

const (
	PaperRCT          PaperType = "rct"
	PaperCohort       PaperType = "cohort"
	PaperMetaAnalysis PaperType = "meta_analysis"
)

// PaperTypes lists the supported paper types in display order.
var PaperTypes = []PaperType{PaperRCT, PaperCohort, PaperMetaAnalysis}

// Valid reports whether p is one of the supported paper types.
func (p PaperType) Valid() bool {
	switch p {
	case PaperRCT, PaperCohort, PaperMetaAnalysis:
		return true
	}
	return false
}

// TaskStatus is the lifecycle status of a MedicalPaperTask.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusRevision  TaskStatus = "revision"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// statusTransitions holds every allowed from→to pair other than →failed,
// which is always allowed. completed→revision is the operator revision path.
var statusTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:   {StatusRunning},
	StatusRunning:   {StatusRevision, StatusCompleted},
	StatusRevision:  {StatusRunning},
	StatusCompleted: {StatusRevision},
}

// CanTransition reports whether a task may move from s to next.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if next == StatusFailed {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends a run.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StudyDesign is the optional structured description of the study.
type StudyDesign struct {
	Design       string   `json:"design,omitempty" yaml:"design,omitempty"`
	Population   string   `json:"population,omitempty" yaml:"population,omitempty"`
	Intervention string   `json:"intervention,omitempty" yaml:"intervention,omitempty"`
	Comparator   string   `json:"comparator,omitempty" yaml:"comparator,omitempty"`
	Outcomes     []string `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	FollowUp     string   `json:"follow_up,omitempty" yaml:"follow_up,omitempty"`
	SampleSize   int      `json:"sample_size,omitempty" yaml:"sample_size,omitempty"`
}

// Group is one arm or exposure group of raw numeric observations.
type Group struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values" yaml:"values"`
}

// StudyEffect is one study's effect estimate, used for meta-analysis pooling.
type StudyEffect struct {
	Study         string  `json:"study" yaml:"study"`
	Effect        float64 `json:"effect" yaml:"effect"`
	StandardError float64 `json:"standard_error" yaml:"standard_error"`
}

// Dataset is the optional raw data handed to the stats agent.
type Dataset struct {
	Outcome string        `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Groups  []Group       `json:"groups,omitempty" yaml:"groups,omitempty"`
	Studies []StudyEffect `json:"studies,omitempty" yaml:"studies,omitempty"`
}

// Empty reports whether the dataset carries no observations.
func (d *Dataset) Empty() bool {
	return d == nil || (len(d.Groups) == 0 && len(d.Studies) == 0)
}

// TaskError is the last classified error of a failed task.
type TaskError struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// MedicalPaperTask is the unit of work: one manuscript for one research question.
type MedicalPaperTask struct {
	ID               string            `json:"id" yaml:"id"`
	UserID           string            `json:"user_id" yaml:"user_id"`
	Title            string            `json:"title" yaml:"title"`
	PaperType        PaperType         `json:"paper_type" yaml:"paper_type"`
	Status           TaskStatus        `json:"status" yaml:"status"`
	ResearchQuestion string            `json:"research_question" yaml:"research_question"`
	StudyDesign      *StudyDesign      `json:"study_design,omitempty" yaml:"study_design,omitempty"`
	RawData          *Dataset          `json:"raw_data,omitempty" yaml:"raw_data,omitempty"`
	Manuscript       map[string]string `json:"manuscript,omitempty" yaml:"manuscript,omitempty"`
	References       []Reference       `json:"references,omitempty" yaml:"references,omitempty"`
	StatsReport      *StatsReport      `json:"stats_report,omitempty" yaml:"stats_report,omitempty"`
	ComplianceReport *ComplianceReport `json:"compliance_report,omitempty" yaml:"compliance_report,omitempty"`
	CurrentStep      string            `json:"current_step,omitempty" yaml:"current_step,omitempty"`
	RevisionRound    int               `json:"revision_round" yaml:"revision_round"`
	MaxRevisions     int               `json:"max_revisions" yaml:"max_revisions"`
	LastError        *TaskError        `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	CreatedAt        time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" yaml:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Transition moves the task to next, enforcing the status lifecycle.
// Reaching a terminal status stamps CompletedAt.
func (t *MedicalPaperTask) Transition(next TaskStatus) error {
	if t.Status == next {
		return nil
	}
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	now := time.Now().UTC()
	t.Status = next
	t.UpdatedAt = now
	if next.Terminal() {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	return nil
}

// Fail marks the task failed with the given classified error.
func (t *MedicalPaperTask) Fail(kind, message string) {
	// →failed is always allowed.
	_ = t.Transition(StatusFailed)
	t.LastError = &TaskError{Kind: kind, Message: message}
}
