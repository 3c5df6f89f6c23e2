// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package supervisor runs one paper task through the literature, stats,
// writing and compliance agents. Routing is a bounded state machine (Next);
// Run dispatches A2A requests, retries classified failures, merges agent
// output into the workflow state and records every exchange in the store.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/internal/agents"
	"github.com/pdiddy/medpaper/internal/manuscript"
	"github.com/pdiddy/medpaper/internal/search"
	"github.com/pdiddy/medpaper/internal/store"
	"github.com/pdiddy/medpaper/internal/workflow"
	"github.com/pdiddy/medpaper/pkg/types"
)

// backoffUnit scales the policy backoff seconds. Package-level var for test
// substitution.
var backoffUnit = time.Second

const tracerName = "github.com/pdiddy/medpaper/internal/supervisor"

// Supervisor routes tasks between agents. One Supervisor may run many tasks
// concurrently; each Run owns its own workflow state.
type Supervisor struct {
	Agents agents.Registry
	Store  store.Store

	// MaxRevisions is used for tasks that do not carry their own cap.
	MaxRevisions int

	// AgentTimeout bounds each dispatch. Zero disables the per-call timeout.
	AgentTimeout time.Duration

	Logger *slog.Logger
	Tracer trace.Tracer
}

// New builds a Supervisor from configuration.
func New(cfg types.SupervisorConfig, reg agents.Registry, st store.Store, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		Agents:       reg,
		Store:        st,
		MaxRevisions: cfg.MaxRevisions,
		AgentTimeout: cfg.AgentTimeout,
		Logger:       logger,
	}
}

// RunOptions adjust where a run starts.
type RunOptions struct {
	// StartAt is the first step; empty means literature.
	StartAt Step

	// Directives seed the first writing step, as for an operator revision.
	Directives []workflow.Directive
}

// Result summarises a finished run.
type Result struct {
	Status        types.TaskStatus
	Iterations    int
	RevisionRound int
	Reason        string
	Error         *a2a.Error
}

// KindRouting marks a run the state machine gave up on without an agent
// error: iteration cap reached, revisions exhausted or a missing report.
const KindRouting a2a.ErrorKind = "ROUTING_LIMIT"

// ErrNotRunnable is returned when a task's status does not allow a run.
var ErrNotRunnable = errors.New("task cannot be run")

// run is the per-call state of one Run.
type run struct {
	sup        *Supervisor
	task       *types.MedicalPaperTask
	state      *workflow.State
	limits     Limits
	log        *slog.Logger
	litRounds  int
	lastErr    *a2a.Error
	iterations int
}

// Run drives task to completed or failed. The task is saved after every
// step and once more at the end, even when ctx is cancelled. The returned
// error reports infrastructure problems; a failed task is a normal Result.
func (s *Supervisor) Run(ctx context.Context, task *types.MedicalPaperTask, opts RunOptions) (Result, error) {
	if err := task.Transition(types.StatusRunning); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNotRunnable, err)
	}

	ctx, span := s.tracer().Start(ctx, "supervisor.run", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.paper_type", string(task.PaperType)),
	))
	defer span.End()

	r := &run{
		sup:   s,
		task:  task,
		state: workflow.FromTask(task),
		log:   s.logger().With("task", task.ID),
	}
	if task.MaxRevisions <= 0 {
		task.MaxRevisions = s.MaxRevisions
	}
	r.state.MaxRevisions = task.MaxRevisions
	r.limits = DefaultLimits(task.MaxRevisions)
	r.state.Directives = opts.Directives

	if err := s.Store.SaveTask(ctx, task); err != nil {
		return Result{}, fmt.Errorf("saving task: %w", err)
	}

	step := opts.StartAt
	if step == "" {
		step = StepLiterature
	}
	r.log.Info("run started", "step", step, "revision_round", task.RevisionRound)

	reason := ""
	for !step.Terminal() {
		if ctx.Err() != nil {
			e := a2a.NewError(a2a.KindCancelled, "run cancelled")
			r.lastErr = &e
			step, reason = StepFailed, e.Message
			break
		}
		if r.iterations >= r.limits.MaxIterations {
			step, reason = StepFailed, fmt.Sprintf("routing iteration cap of %d reached", r.limits.MaxIterations)
			break
		}
		r.iterations++

		d, err := r.step(ctx, step)
		if err != nil {
			e := a2a.NewError(a2a.KindTool, err.Error())
			r.lastErr = &e
			res, _ := r.finish(ctx, span, StepFailed, e.Message)
			return res, err
		}
		if d.Revise {
			r.state.RevisionRound++
			r.state.Directives = workflow.DirectivesFromReport(r.state.ComplianceReport)
		}
		r.log.Debug("routed", "from", step, "to", d.Next, "reason", d.Reason, "iteration", r.iterations)
		step, reason = d.Next, d.Reason
	}
	return r.finish(ctx, span, step, reason)
}

// step executes one state and returns the routing decision. A dispatch
// that fails for good sets lastErr and routes to failed. The error return
// is reserved for store failures.
func (r *run) step(ctx context.Context, step Step) (Decision, error) {
	ctx, span := r.sup.tracer().Start(ctx, "supervisor.step", trace.WithAttributes(
		attribute.String("step", string(step)),
		attribute.Int("iteration", r.iterations),
	))
	defer span.End()

	if step == StepRevision {
		if err := r.task.Transition(types.StatusRevision); err != nil {
			return Decision{}, err
		}
		r.state.CurrentStep = string(StepRevision)
		r.state.ApplyTo(r.task)
		if err := r.save(ctx); err != nil {
			return Decision{}, err
		}
		r.log.Info("revision round", "round", r.state.RevisionRound, "directives", len(r.state.Directives))
		return Next(r.snapshot(step), r.limits), nil
	}

	receiver, intent, input := r.request(step)
	resp, aerr := r.sup.dispatch(ctx, r.state, receiver, intent, input, r.log)
	if aerr == nil {
		if err := r.apply(step, resp); err != nil {
			e := a2a.NewError(a2a.KindValidation, fmt.Sprintf("%s response: %v", receiver, err))
			aerr = &e
		}
	}
	if aerr != nil {
		r.lastErr = aerr
		r.state.AddError(*aerr)
		span.SetStatus(codes.Error, aerr.Error())
		return Decision{Next: StepFailed, Reason: aerr.Error()}, nil
	}

	r.state.CurrentStep = string(step)
	if r.task.Status == types.StatusRevision {
		if err := r.task.Transition(types.StatusRunning); err != nil {
			return Decision{}, err
		}
	}
	r.state.ApplyTo(r.task)
	if err := r.save(ctx); err != nil {
		return Decision{}, err
	}
	return Next(r.snapshot(step), r.limits), nil
}

// request builds the input slice of state for the agent serving step.
func (r *run) request(step Step) (receiver, intent string, input any) {
	st := r.state
	switch step {
	case StepLiterature:
		in := agents.LiteratureInput{
			ResearchQuestion: st.ResearchQuestion,
			PaperType:        st.PaperType,
			Round:            r.litRounds,
			Have:             len(st.References),
		}
		if d := st.StudyDesign; d != nil {
			in.Keywords = append(in.Keywords, d.Outcomes...)
		}
		r.litRounds++
		return agents.NameLiterature, agents.IntentLiteratureSearch, in

	case StepStats:
		return agents.NameStats, agents.IntentStatisticalAnalysis, agents.StatsInput{
			ResearchQuestion: st.ResearchQuestion,
			PaperType:        st.PaperType,
			StudyDesign:      st.StudyDesign,
			RawData:          st.RawData,
		}

	case StepWriting:
		return agents.NameWriter, agents.IntentWriteManuscript, agents.WriterInput{
			Title:            st.Title,
			ResearchQuestion: st.ResearchQuestion,
			PaperType:        st.PaperType,
			StudyDesign:      st.StudyDesign,
			References:       st.References,
			StatsReport:      st.StatsReport,
			Sections:         st.ManuscriptSections,
			Directives:       st.Directives,
			Targets:          writingTargets(st),
		}

	default:
		return agents.NameCompliance, agents.IntentCheckCompliance, agents.ComplianceInput{
			PaperType: st.PaperType,
			Sections:  st.ManuscriptSections,
		}
	}
}

// writingTargets lists missing required sections plus the sections named
// by revision directives. Empty means write everything.
func writingTargets(st *workflow.State) []string {
	var targets []string
	if len(st.ManuscriptSections) > 0 {
		targets = manuscript.MissingSections(st.ManuscriptSections)
	}
	for _, s := range workflow.DirectiveSections(st.Directives) {
		if !slices.Contains(targets, s) {
			targets = append(targets, s)
		}
	}
	return targets
}

// apply merges a successful response into the state through the owning
// agent's merge method.
func (r *run) apply(step Step, resp a2a.Message) error {
	st := r.state
	switch step {
	case StepLiterature:
		var out agents.LiteratureOutput
		if err := a2a.Decode(resp.Output, &out); err != nil {
			return err
		}
		added := st.MergeReferences(out.References)
		search.AssignCitationKeys(st.References)
		r.log.Info("literature merged", "added", added, "total", len(st.References), "backend_errors", len(out.BackendErrors))

	case StepStats:
		var out types.StatsReport
		if err := a2a.Decode(resp.Output, &out); err != nil {
			return err
		}
		st.SetStatsReport(&out)

	case StepWriting:
		var out agents.WriterOutput
		if err := a2a.Decode(resp.Output, &out); err != nil {
			return err
		}
		st.MergeSections(out.Sections)
		st.Directives = nil

	case StepCompliance:
		var out types.ComplianceReport
		if err := a2a.Decode(resp.Output, &out); err != nil {
			return err
		}
		st.SetComplianceReport(&out)
		r.log.Info("compliance scored", "checklist", out.ChecklistType, "score", out.OverallScore, "failed", out.Failed)
	}
	return nil
}

func (r *run) snapshot(step Step) Snapshot {
	st := r.state
	return Snapshot{
		Step:          step,
		Iteration:     r.iterations,
		References:    len(st.References),
		HasStats:      st.StatsReport != nil,
		HasSections:   st.HasSections(manuscript.RequiredSections),
		Compliance:    st.ComplianceReport,
		RevisionRound: st.RevisionRound,
	}
}

func (r *run) save(ctx context.Context) error {
	if err := r.sup.Store.SaveTask(context.WithoutCancel(ctx), r.task); err != nil {
		return fmt.Errorf("saving task %s: %w", r.task.ID, err)
	}
	return nil
}

// finish moves the task to its terminal status and persists it regardless
// of ctx cancellation.
func (r *run) finish(ctx context.Context, span trace.Span, step Step, reason string) (Result, error) {
	r.state.ApplyTo(r.task)
	res := Result{Iterations: r.iterations, RevisionRound: r.state.RevisionRound, Reason: reason}

	if step == StepCompleted {
		if err := r.task.Transition(types.StatusCompleted); err != nil {
			return res, err
		}
		r.task.LastError = nil
		r.log.Info("run completed", "iterations", r.iterations, "revision_round", r.state.RevisionRound)
	} else {
		e := r.lastErr
		if e == nil {
			e = &a2a.Error{Kind: KindRouting, Message: reason}
		}
		res.Error = e
		r.task.Fail(string(e.Kind), e.Message)
		span.SetStatus(codes.Error, reason)
		r.log.Warn("run failed", "kind", e.Kind, "reason", reason, "iterations", r.iterations)
	}
	res.Status = r.task.Status

	if err := r.save(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// dispatch sends one request to receiver, retrying per the error kind's
// policy. Every attempt is appended to the audit trail. Retries keep the
// correlation ID of the first attempt.
func (s *Supervisor) dispatch(ctx context.Context, st *workflow.State, receiver, intent string, input any, log *slog.Logger) (a2a.Message, *a2a.Error) {
	agent, ok := s.Agents[receiver]
	if !ok {
		e := a2a.NewError(a2a.KindValidation, fmt.Sprintf("no agent registered as %q", receiver))
		return a2a.Message{}, &e
	}
	payload, err := a2a.NewPayload(input)
	if err != nil {
		e := a2a.NewError(a2a.KindTool, err.Error())
		return a2a.Message{}, &e
	}

	correlationID := ""
	for attempt := 0; ; attempt++ {
		req := a2a.NewRequest(agents.NameSupervisor, receiver, intent, payload, correlationID)
		correlationID = req.CorrelationID

		resp := s.call(ctx, agent, req, attempt)
		if ctx.Err() != nil && resp.Status != a2a.StatusOK {
			resp = a2a.Fail(req, a2a.NewError(a2a.KindCancelled, "run cancelled"), resp.Metrics)
		}
		st.Record(req, resp)
		if err := s.Store.AppendMessage(context.WithoutCancel(ctx), st.TaskID, req, resp, attempt); err != nil {
			log.Error("audit append failed", "receiver", receiver, "error", err)
		}

		if resp.Status == a2a.StatusOK {
			return resp, nil
		}
		e := a2a.NewError(a2a.KindTool, "agent returned no error detail")
		if resp.Error != nil {
			e = *resp.Error
		}
		if !a2a.ShouldRetry(e, attempt) {
			return resp, &e
		}
		st.AddError(e)

		delay := a2a.Delay(e, attempt, backoffUnit)
		log.Warn("agent call failed, retrying", "receiver", receiver, "kind", e.Kind, "attempt", attempt+1, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			ce := a2a.NewError(a2a.KindCancelled, "run cancelled")
			return resp, &ce
		case <-timer.C:
		}
	}
}

// call invokes the agent under the per-call timeout inside a span.
func (s *Supervisor) call(ctx context.Context, agent agents.Agent, req a2a.Message, attempt int) a2a.Message {
	ctx, span := s.tracer().Start(ctx, "a2a.dispatch", trace.WithAttributes(
		attribute.String("a2a.receiver", req.Receiver),
		attribute.String("a2a.intent", req.Intent),
		attribute.String("a2a.correlation_id", req.CorrelationID),
		attribute.Int("a2a.attempt", attempt),
	))
	defer span.End()

	if s.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AgentTimeout)
		defer cancel()
	}
	resp := agent.Handle(ctx, req)
	span.SetAttributes(
		attribute.Int64("a2a.latency_ms", resp.Metrics.LatencyMs),
		attribute.Int("a2a.tokens_in", resp.Metrics.TokensIn),
		attribute.Int("a2a.tokens_out", resp.Metrics.TokensOut),
	)
	if resp.Error != nil {
		span.SetStatus(codes.Error, resp.Error.Error())
	}
	return resp
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Supervisor) tracer() trace.Tracer {
	if s.Tracer == nil {
		return otel.Tracer(tracerName)
	}
	return s.Tracer
}
