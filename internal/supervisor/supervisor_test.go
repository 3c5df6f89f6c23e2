// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/internal/agents"
	"github.com/pdiddy/medpaper/internal/checklist"
	"github.com/pdiddy/medpaper/internal/manuscript"
	"github.com/pdiddy/medpaper/internal/store"
	"github.com/pdiddy/medpaper/internal/workflow"
	"github.com/pdiddy/medpaper/pkg/types"
)

func init() {
	backoffUnit = time.Millisecond
}

// scripted answers each request with fn(call, req). A non-nil error becomes
// an error response.
type scripted struct {
	name string
	fn   func(ctx context.Context, call int, req a2a.Message) (any, *a2a.Error)

	mu    sync.Mutex
	calls int
	reqs  []a2a.Message
}

func (a *scripted) Name() string { return a.name }

func (a *scripted) Handle(ctx context.Context, req a2a.Message) a2a.Message {
	a.mu.Lock()
	call := a.calls
	a.calls++
	a.reqs = append(a.reqs, req)
	a.mu.Unlock()

	m := a2a.Metrics{TokensIn: 10, TokensOut: 5}
	out, e := a.fn(ctx, call, req)
	if e != nil {
		return a2a.Fail(req, *e, m)
	}
	return a2a.OK(req, a2a.MustPayload(out), m)
}

func (a *scripted) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func errPtr(kind a2a.ErrorKind, msg string) *a2a.Error {
	e := a2a.NewError(kind, msg)
	return &e
}

func refs(n, offset int) []types.Reference {
	out := make([]types.Reference, n)
	for i := range out {
		k := offset + i
		out[i] = types.Reference{
			Identifier: fmt.Sprintf("PMID:%d", 5000+k),
			Title:      fmt.Sprintf("Aspirin trial %d", k),
			Authors:    []string{fmt.Sprintf("Author%d A", k)},
			Year:       2019,
			DOI:        fmt.Sprintf("10.1000/trial.%d", k),
			Source:     "pubmed",
		}
	}
	return out
}

func allSections() map[string]string {
	out := map[string]string{}
	for _, s := range manuscript.RequiredSections {
		out[s] = "Text of " + s + "."
	}
	return out
}

func passing() *types.ComplianceReport {
	return &types.ComplianceReport{ChecklistType: "CONSORT", TotalItems: 20, Passed: 14, Warnings: 6, OverallScore: 0.85}
}

func failing() *types.ComplianceReport {
	r := checklist.Score("CONSORT", []types.ChecklistItemResult{
		{Number: "3a", Section: "Methods", Topic: "Trial design", Verdict: types.VerdictPass},
		{Number: "8a", Section: "Methods", Topic: "Randomisation", Verdict: types.VerdictFail, Suggestion: "describe sequence generation"},
	})
	return &r
}

// pipeline is a registry where every agent succeeds on its first call.
type pipeline struct {
	lit, stats, writer, comp *scripted
}

func newPipeline(nrefs int, compliance *types.ComplianceReport) *pipeline {
	return &pipeline{
		lit: &scripted{name: agents.NameLiterature, fn: func(_ context.Context, call int, _ a2a.Message) (any, *a2a.Error) {
			return agents.LiteratureOutput{References: refs(nrefs, call*nrefs)}, nil
		}},
		stats: &scripted{name: agents.NameStats, fn: func(context.Context, int, a2a.Message) (any, *a2a.Error) {
			return types.StatsReport{Summary: "Primary outcome compared with a two-sided t-test."}, nil
		}},
		writer: &scripted{name: agents.NameWriter, fn: func(_ context.Context, _ int, req a2a.Message) (any, *a2a.Error) {
			var in agents.WriterInput
			if err := a2a.Decode(req.Input, &in); err != nil {
				return nil, errPtr(a2a.KindValidation, err.Error())
			}
			sections := allSections()
			if len(in.Targets) > 0 {
				sections = map[string]string{}
				for _, s := range in.Targets {
					sections[s] = "Revised " + s + "."
				}
			}
			return agents.WriterOutput{Sections: sections}, nil
		}},
		comp: &scripted{name: agents.NameCompliance, fn: func(context.Context, int, a2a.Message) (any, *a2a.Error) {
			return compliance, nil
		}},
	}
}

func (p *pipeline) registry() agents.Registry {
	return agents.Registry{
		agents.NameLiterature: p.lit,
		agents.NameStats:      p.stats,
		agents.NameWriter:     p.writer,
		agents.NameCompliance: p.comp,
	}
}

func newTask() *types.MedicalPaperTask {
	now := time.Now().UTC()
	return &types.MedicalPaperTask{
		ID:               "task-1",
		UserID:           "u1",
		Title:            "Aspirin for secondary stroke prevention",
		PaperType:        types.PaperRCT,
		Status:           types.StatusPending,
		ResearchQuestion: "Does low-dose aspirin reduce recurrent stroke?",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newSupervisor(reg agents.Registry, st store.Store) *Supervisor {
	return &Supervisor{Agents: reg, Store: st, MaxRevisions: 3}
}

func TestRunCompletesRCT(t *testing.T) {
	p := newPipeline(12, passing())
	st := store.NewMemory()
	task := newTask()

	res, err := newSupervisor(p.registry(), st).Run(context.Background(), task, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.Equal(t, 4, res.Iterations)
	assert.Equal(t, 0, res.RevisionRound)
	assert.Nil(t, res.Error)

	saved, err := st.LoadTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, saved.Status)
	assert.Equal(t, 0, saved.RevisionRound)
	assert.Len(t, saved.References, 12)
	for _, r := range saved.References {
		assert.NotEmpty(t, r.CitationKey)
	}
	assert.NotNil(t, saved.StatsReport)
	assert.Len(t, saved.Manuscript, len(manuscript.RequiredSections))
	assert.InDelta(t, 0.85, saved.ComplianceReport.OverallScore, 1e-9)
	assert.NotNil(t, saved.CompletedAt)
	assert.Nil(t, saved.LastError)

	msgs, err := st.ListMessages(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	wantReceivers := []string{agents.NameLiterature, agents.NameStats, agents.NameWriter, agents.NameCompliance}
	for i, m := range msgs {
		assert.Equal(t, wantReceivers[i], m.Receiver)
		assert.Equal(t, agents.NameSupervisor, m.Sender)
		assert.Equal(t, string(a2a.StatusOK), m.Status)
		assert.Equal(t, 0, m.Attempt)
	}
}

func TestRunLiteratureRoundsAccumulate(t *testing.T) {
	p := newPipeline(4, passing())
	st := store.NewMemory()

	res, err := newSupervisor(p.registry(), st).Run(context.Background(), newTask(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.Equal(t, 3, p.lit.Calls())

	var in agents.LiteratureInput
	require.NoError(t, a2a.Decode(p.lit.reqs[2].Input, &in))
	assert.Equal(t, 2, in.Round)
	assert.Equal(t, 8, in.Have)
}

func TestRunIterationCap(t *testing.T) {
	p := newPipeline(3, passing())
	// Same three references every round, so the count never grows.
	p.lit.fn = func(context.Context, int, a2a.Message) (any, *a2a.Error) {
		return agents.LiteratureOutput{References: refs(3, 0)}, nil
	}
	st := store.NewMemory()
	task := newTask()

	res, err := newSupervisor(p.registry(), st).Run(context.Background(), task, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, MaxRoutingIterations, res.Iterations)
	assert.Equal(t, MaxRoutingIterations, p.lit.Calls())
	assert.Zero(t, p.stats.Calls())
	require.NotNil(t, res.Error)
	assert.Equal(t, KindRouting, res.Error.Kind)

	saved, err := st.LoadTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, saved.Status)
	require.NotNil(t, saved.LastError)
	assert.Contains(t, saved.LastError.Message, "iteration cap")
}

func TestRunRevisionExhaustion(t *testing.T) {
	p := newPipeline(10, failing())
	st := store.NewMemory()
	task := newTask()
	task.MaxRevisions = 2

	res, err := newSupervisor(p.registry(), st).Run(context.Background(), task, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, 2, res.RevisionRound)
	assert.Equal(t, 3, p.comp.Calls())
	assert.Equal(t, 3, p.writer.Calls())
	assert.Equal(t, 10, res.Iterations)
	assert.Contains(t, res.Reason, "did not converge")

	// Revision rounds rewrite only the sections the directives name.
	var in agents.WriterInput
	require.NoError(t, a2a.Decode(p.writer.reqs[1].Input, &in))
	assert.Equal(t, []string{"methods"}, in.Targets)
	require.Len(t, in.Directives, 1)
	assert.Equal(t, workflow.Directive{Section: "methods", Item: "8a", Instruction: "describe sequence generation"}, in.Directives[0])

	saved, err := st.LoadTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.RevisionRound)
	assert.Equal(t, "Revised methods.", saved.Manuscript["methods"])
	assert.Equal(t, "Text of results.", saved.Manuscript["results"])
}

func TestRunRevisionConverges(t *testing.T) {
	p := newPipeline(10, nil)
	p.comp.fn = func(_ context.Context, call int, _ a2a.Message) (any, *a2a.Error) {
		if call == 0 {
			return failing(), nil
		}
		return passing(), nil
	}

	res, err := newSupervisor(p.registry(), store.NewMemory()).Run(context.Background(), newTask(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.Equal(t, 1, res.RevisionRound)
	assert.Equal(t, 7, res.Iterations)
}

func TestRunRetryPersistsEveryAttempt(t *testing.T) {
	p := newPipeline(10, passing())
	ok := p.writer.fn
	p.writer.fn = func(ctx context.Context, call int, req a2a.Message) (any, *a2a.Error) {
		if call == 0 {
			return nil, errPtr(a2a.KindTool, "pandoc exited 1")
		}
		return ok(ctx, call, req)
	}
	st := store.NewMemory()
	task := newTask()

	res, err := newSupervisor(p.registry(), st).Run(context.Background(), task, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status)

	msgs, err := st.ListMessages(context.Background(), task.ID)
	require.NoError(t, err)
	var writer []types.PaperTaskMessage
	for _, m := range msgs {
		if m.Receiver == agents.NameWriter {
			writer = append(writer, m)
		}
	}
	require.Len(t, writer, 2)
	assert.Equal(t, 0, writer[0].Attempt)
	assert.Equal(t, string(a2a.StatusError), writer[0].Status)
	require.NotNil(t, writer[0].Error)
	assert.Equal(t, string(a2a.KindTool), writer[0].Error.Kind)
	assert.Equal(t, 1, writer[1].Attempt)
	assert.Equal(t, string(a2a.StatusOK), writer[1].Status)
	assert.Equal(t, writer[0].CorrelationID, writer[1].CorrelationID)
	assert.NotEqual(t, writer[0].MessageID, writer[1].MessageID)
}

func TestRunRetriesExhausted(t *testing.T) {
	p := newPipeline(10, passing())
	p.stats.fn = func(context.Context, int, a2a.Message) (any, *a2a.Error) {
		return nil, errPtr(a2a.KindTool, "analysis failed")
	}
	st := store.NewMemory()
	task := newTask()

	res, err := newSupervisor(p.registry(), st).Run(context.Background(), task, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, 4, p.stats.Calls(), "first attempt plus three retries")
	require.NotNil(t, res.Error)
	assert.Equal(t, a2a.KindTool, res.Error.Kind)

	saved, err := st.LoadTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.LastError)
	assert.Equal(t, string(a2a.KindTool), saved.LastError.Kind)
	assert.Equal(t, "analysis failed", saved.LastError.Message)
}

func TestRunValidationNotRetried(t *testing.T) {
	p := newPipeline(10, passing())
	p.stats.fn = func(context.Context, int, a2a.Message) (any, *a2a.Error) {
		return nil, errPtr(a2a.KindValidation, "raw data: group control has no values")
	}

	res, err := newSupervisor(p.registry(), store.NewMemory()).Run(context.Background(), newTask(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, 1, p.stats.Calls())
	assert.Zero(t, p.writer.Calls())
	assert.Equal(t, a2a.KindValidation, res.Error.Kind)
}

func TestRunAgentTimeout(t *testing.T) {
	p := newPipeline(10, passing())
	p.lit.fn = func(ctx context.Context, _ int, _ a2a.Message) (any, *a2a.Error) {
		<-ctx.Done()
		e := a2a.Classify(ctx.Err())
		return nil, &e
	}
	sup := newSupervisor(p.registry(), store.NewMemory())
	sup.AgentTimeout = 5 * time.Millisecond

	res, err := sup.Run(context.Background(), newTask(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, a2a.KindTimeout, res.Error.Kind)
	assert.Equal(t, 3, p.lit.Calls())
}

func TestRunCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newPipeline(12, passing())
	ok := p.lit.fn
	p.lit.fn = func(ctx context.Context, call int, req a2a.Message) (any, *a2a.Error) {
		cancel()
		return ok(ctx, call, req)
	}
	st := store.NewMemory()
	task := newTask()

	res, err := newSupervisor(p.registry(), st).Run(ctx, task, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, a2a.KindCancelled, res.Error.Kind)
	assert.Zero(t, p.stats.Calls())

	saved, err := st.LoadTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, saved.Status)
	assert.Equal(t, string(a2a.KindCancelled), saved.LastError.Kind)
}

func TestRunCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p := newPipeline(12, passing())
	p.lit.fn = func(context.Context, int, a2a.Message) (any, *a2a.Error) {
		e := a2a.NewError(a2a.KindRateLimit, "429 too many requests")
		e.RetryAfter = 60000
		return nil, &e
	}
	st := store.NewMemory()
	task := newTask()

	start := time.Now()
	res, err := newSupervisor(p.registry(), st).Run(ctx, task, RunOptions{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 1, p.lit.Calls())
	assert.Equal(t, a2a.KindCancelled, res.Error.Kind)

	msgs, err := st.ListMessages(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRunMissingAgent(t *testing.T) {
	p := newPipeline(12, passing())
	reg := p.registry()
	delete(reg, agents.NameStats)

	res, err := newSupervisor(reg, store.NewMemory()).Run(context.Background(), newTask(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, a2a.KindValidation, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "stats")
}

func TestRunOperatorRevision(t *testing.T) {
	p := newPipeline(12, passing())
	st := store.NewMemory()
	task := newTask()
	sup := newSupervisor(p.registry(), st)

	_, err := sup.Run(context.Background(), task, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, task.Status)

	require.NoError(t, task.Transition(types.StatusRevision))
	res, err := sup.Run(context.Background(), task, RunOptions{
		StartAt:    StepRevision,
		Directives: []workflow.Directive{{Section: "discussion", Instruction: "address the limitations raised by reviewer 2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.Equal(t, 0, res.RevisionRound)
	assert.Equal(t, 1, p.lit.Calls(), "revision must not search again")

	var in agents.WriterInput
	require.NoError(t, a2a.Decode(p.writer.reqs[1].Input, &in))
	assert.Equal(t, []string{"discussion"}, in.Targets)
	assert.Equal(t, "Revised discussion.", task.Manuscript["discussion"])
	assert.Equal(t, "Text of methods.", task.Manuscript["methods"])
}

func TestRunNotRunnable(t *testing.T) {
	task := newTask()
	task.Fail(string(a2a.KindTool), "earlier failure")

	_, err := newSupervisor(newPipeline(12, passing()).registry(), store.NewMemory()).Run(context.Background(), task, RunOptions{})
	assert.True(t, errors.Is(err, ErrNotRunnable))
}

func TestRunConcurrentTasks(t *testing.T) {
	p := newPipeline(12, passing())
	st := store.NewMemory()
	sup := newSupervisor(p.registry(), st)

	var wg sync.WaitGroup
	tasks := make([]*types.MedicalPaperTask, 5)
	for i := range tasks {
		tasks[i] = newTask()
		tasks[i].ID = fmt.Sprintf("task-%d", i)
		wg.Add(1)
		go func(task *types.MedicalPaperTask) {
			defer wg.Done()
			_, err := sup.Run(context.Background(), task, RunOptions{})
			assert.NoError(t, err)
		}(tasks[i])
	}
	wg.Wait()

	for _, task := range tasks {
		assert.Equal(t, types.StatusCompleted, task.Status)
		msgs, err := st.ListMessages(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 4)
	}
}
