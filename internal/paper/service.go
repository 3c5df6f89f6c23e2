// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package paper is the task-facing service: intake, runs, operator
// revisions and the template registry.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/medpaper/internal/checklist"
	"github.com/pdiddy/medpaper/internal/manuscript"
	"github.com/pdiddy/medpaper/internal/store"
	"github.com/pdiddy/medpaper/internal/supervisor"
	"github.com/pdiddy/medpaper/internal/workflow"
	"github.com/pdiddy/medpaper/pkg/types"
)

// MinQuestionLength is the shortest research question accepted, exclusive.
const MinQuestionLength = 10

// ErrInvalidTask is returned for rejected intake or revision requests.
var ErrInvalidTask = errors.New("invalid task")

// CreateRequest is the input to CreateTask.
type CreateRequest struct {
	UserID           string             `json:"user_id" yaml:"user_id"`
	Title            string             `json:"title" yaml:"title"`
	PaperType        types.PaperType    `json:"paper_type" yaml:"paper_type"`
	ResearchQuestion string             `json:"research_question" yaml:"research_question"`
	StudyDesign      *types.StudyDesign `json:"study_design,omitempty" yaml:"study_design,omitempty"`
	RawData          *types.Dataset     `json:"raw_data,omitempty" yaml:"raw_data,omitempty"`

	// MaxRevisions overrides the configured revision cap when positive.
	MaxRevisions int `json:"max_revisions,omitempty" yaml:"max_revisions,omitempty"`
}

// Validate checks the intake rules.
func (r CreateRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.UserID) == "" {
		problems = append(problems, "user id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		problems = append(problems, "title is required")
	}
	if !r.PaperType.Valid() {
		problems = append(problems, fmt.Sprintf("paper type %q is not one of %v", r.PaperType, types.PaperTypes))
	}
	if len(strings.TrimSpace(r.ResearchQuestion)) <= MinQuestionLength {
		problems = append(problems, fmt.Sprintf("research question must be longer than %d characters", MinQuestionLength))
	}
	if r.MaxRevisions < 0 {
		problems = append(problems, "max revisions must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTask, strings.Join(problems, "; "))
	}
	return nil
}

// Service ties the store to the supervisor.
type Service struct {
	Store      store.Store
	Supervisor *supervisor.Supervisor

	// Concurrency bounds RunAll. Zero or less means unbounded.
	Concurrency int

	Logger *slog.Logger
}

// CreateTask validates req and saves a pending task, returning its id.
func (s *Service) CreateTask(ctx context.Context, req CreateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	maxRev := req.MaxRevisions
	if maxRev == 0 && s.Supervisor != nil {
		maxRev = s.Supervisor.MaxRevisions
	}
	task := &types.MedicalPaperTask{
		ID:               uuid.NewString(),
		UserID:           strings.TrimSpace(req.UserID),
		Title:            strings.TrimSpace(req.Title),
		PaperType:        req.PaperType,
		Status:           types.StatusPending,
		ResearchQuestion: strings.TrimSpace(req.ResearchQuestion),
		StudyDesign:      req.StudyDesign,
		RawData:          req.RawData,
		MaxRevisions:     maxRev,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Store.SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("saving task: %w", err)
	}
	s.logger().Info("task created", "task", task.ID, "paper_type", task.PaperType, "user", task.UserID)
	return task.ID, nil
}

// Task loads one task.
func (s *Service) Task(ctx context.Context, id string) (*types.MedicalPaperTask, error) {
	return s.Store.LoadTask(ctx, id)
}

// Tasks lists tasks, newest first.
func (s *Service) Tasks(ctx context.Context, opts store.ListOptions) ([]types.MedicalPaperTask, error) {
	return s.Store.ListTasks(ctx, opts)
}

// Messages returns a task's audit trail in order.
func (s *Service) Messages(ctx context.Context, id string) ([]types.PaperTaskMessage, error) {
	if _, err := s.Store.LoadTask(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListMessages(ctx, id)
}

// Run drives a pending task to completion or failure and returns the
// final task.
func (s *Service) Run(ctx context.Context, id string) (*types.MedicalPaperTask, error) {
	task, err := s.Store.LoadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Supervisor.Run(ctx, task, supervisor.RunOptions{}); err != nil {
		return task, err
	}
	return task, nil
}

// RunAll runs the given tasks concurrently. One task failing does not stop
// the others; the first infrastructure error is returned after all runs
// finish. Results are in the order of ids.
func (s *Service) RunAll(ctx context.Context, ids []string) ([]*types.MedicalPaperTask, error) {
	out := make([]*types.MedicalPaperTask, len(ids))
	var g errgroup.Group
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			task, err := s.Run(ctx, id)
			out[i] = task
			if err != nil {
				return fmt.Errorf("task %s: %w", id, err)
			}
			return nil
		})
	}
	return out, g.Wait()
}

// RequestRevision rewrites sections of a completed manuscript with operator
// feedback, then re-checks compliance. Empty sections means every section
// of the manuscript. The operator round does not count against the
// automatic revision cap.
func (s *Service) RequestRevision(ctx context.Context, id, feedback string, sections []string) (*types.MedicalPaperTask, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, fmt.Errorf("%w: revision feedback is required", ErrInvalidTask)
	}
	task, err := s.Store.LoadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != types.StatusCompleted {
		return nil, fmt.Errorf("%w: task %s is %s, only completed tasks can be revised", ErrInvalidTask, id, task.Status)
	}

	if len(sections) == 0 {
		sections = manuscript.Ordered(task.Manuscript)
	}
	directives := make([]workflow.Directive, 0, len(sections))
	for _, sec := range sections {
		sec = strings.ToLower(strings.TrimSpace(sec))
		if sec == "" {
			continue
		}
		directives = append(directives, workflow.Directive{Section: sec, Instruction: feedback})
	}
	if len(directives) == 0 {
		return nil, fmt.Errorf("%w: no sections to revise", ErrInvalidTask)
	}

	if err := task.Transition(types.StatusRevision); err != nil {
		return nil, err
	}
	if err := s.Store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("saving task: %w", err)
	}
	s.logger().Info("operator revision requested", "task", id, "sections", workflow.DirectiveSections(directives))

	if _, err := s.Supervisor.Run(ctx, task, supervisor.RunOptions{StartAt: supervisor.StepRevision, Directives: directives}); err != nil {
		return task, err
	}
	return task, nil
}

// Templates lists the supported paper types.
func (s *Service) Templates() []types.PaperTemplate {
	return checklist.Templates()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
