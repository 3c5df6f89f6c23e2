// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/medpaper/pkg/types"
)

func report(score float64, failed int) *types.ComplianceReport {
	return &types.ComplianceReport{OverallScore: score, Failed: failed, NeedsRevision: failed > 0}
}

func TestNext(t *testing.T) {
	l := DefaultLimits(3)
	tests := []struct {
		name   string
		snap   Snapshot
		want   Step
		revise bool
	}{
		{"literature short", Snapshot{Step: StepLiterature, Iteration: 1, References: 9}, StepLiterature, false},
		{"literature enough", Snapshot{Step: StepLiterature, Iteration: 1, References: 10}, StepStats, false},
		{"stats ready", Snapshot{Step: StepStats, Iteration: 2, HasStats: true}, StepWriting, false},
		{"stats missing", Snapshot{Step: StepStats, Iteration: 2}, StepFailed, false},
		{"writing incomplete", Snapshot{Step: StepWriting, Iteration: 3}, StepWriting, false},
		{"writing done", Snapshot{Step: StepWriting, Iteration: 3, HasSections: true}, StepCompliance, false},
		{"compliance pass", Snapshot{Step: StepCompliance, Iteration: 4, Compliance: report(0.85, 0)}, StepCompleted, false},
		{"compliance at threshold", Snapshot{Step: StepCompliance, Iteration: 4, Compliance: report(0.8, 0)}, StepCompleted, false},
		{"high score but failed items", Snapshot{Step: StepCompliance, Iteration: 4, Compliance: report(0.9, 1)}, StepRevision, true},
		{"low score", Snapshot{Step: StepCompliance, Iteration: 4, Compliance: report(0.63, 3), RevisionRound: 2}, StepRevision, true},
		{"revisions exhausted", Snapshot{Step: StepCompliance, Iteration: 10, Compliance: report(0.63, 3), RevisionRound: 3}, StepFailed, false},
		{"compliance missing", Snapshot{Step: StepCompliance, Iteration: 4}, StepFailed, false},
		{"revision", Snapshot{Step: StepRevision, Iteration: 5}, StepWriting, false},
		{"completed stays", Snapshot{Step: StepCompleted, Iteration: 5}, StepCompleted, false},
		{"unknown step", Snapshot{Step: "drafting", Iteration: 1}, StepFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Next(tt.snap, l)
			assert.Equal(t, tt.want, d.Next)
			assert.Equal(t, tt.revise, d.Revise)
			if d.Next != tt.snap.Step {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestNextIterationCap(t *testing.T) {
	l := DefaultLimits(3)

	d := Next(Snapshot{Step: StepLiterature, Iteration: MaxRoutingIterations, References: 3}, l)
	assert.Equal(t, StepFailed, d.Next)
	assert.Contains(t, d.Reason, "iteration cap")

	// A terminal decision on the last step still stands.
	d = Next(Snapshot{Step: StepCompliance, Iteration: MaxRoutingIterations, Compliance: report(0.9, 0)}, l)
	assert.Equal(t, StepCompleted, d.Next)

	d = Next(Snapshot{Step: StepLiterature, Iteration: MaxRoutingIterations - 1, References: 3}, l)
	assert.Equal(t, StepLiterature, d.Next)
}

// TestNextAlwaysTerminates walks the machine with inputs that never make
// progress and checks it stops within the cap.
func TestNextAlwaysTerminates(t *testing.T) {
	l := DefaultLimits(1000)
	snaps := map[Step]Snapshot{
		StepLiterature: {References: 0},
		StepWriting:    {},
	}
	for start, base := range snaps {
		step := start
		i := 0
		for !step.Terminal() {
			i++
			base.Step, base.Iteration = step, i
			step = Next(base, l).Next
		}
		assert.LessOrEqual(t, i, MaxRoutingIterations, "start %s", start)
	}

	// Oscillating writing/compliance with an unreachable score.
	step, i, round := StepWriting, 0, 0
	for !step.Terminal() {
		i++
		d := Next(Snapshot{Step: step, Iteration: i, HasSections: true, Compliance: report(0.5, 4), RevisionRound: round}, l)
		if d.Revise {
			round++
		}
		step = d.Next
	}
	assert.Equal(t, MaxRoutingIterations, i)
}

func TestStepTerminal(t *testing.T) {
	for _, s := range []Step{StepLiterature, StepStats, StepWriting, StepCompliance, StepRevision} {
		if s.Terminal() {
			t.Errorf("%s reported terminal", s)
		}
	}
	if !StepCompleted.Terminal() || !StepFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}
