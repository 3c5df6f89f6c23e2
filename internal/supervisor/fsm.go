// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package supervisor

import (
	"fmt"

	"github.com/pdiddy/medpaper/pkg/types"
)

// Routing limits.
const (
	// MaxRoutingIterations bounds the number of steps in one run.
	MaxRoutingIterations = 20

	// MinReferences is the reference count literature must reach before
	// the run moves on to stats.
	MinReferences = 10

	// ComplianceThreshold is the score a manuscript needs to complete.
	ComplianceThreshold = 0.8
)

// Step is a state of the routing machine.
type Step string

const (
	StepLiterature Step = "literature"
	StepStats      Step = "stats"
	StepWriting    Step = "writing"
	StepCompliance Step = "compliance"
	StepRevision   Step = "revision"
	StepCompleted  Step = "completed"
	StepFailed     Step = "failed"
)

// Terminal reports whether the run stops at s.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Limits parameterise Next.
type Limits struct {
	MaxIterations int
	MinReferences int
	Threshold     float64
	MaxRevisions  int
}

// DefaultLimits returns the standard limits with the given revision cap.
func DefaultLimits(maxRevisions int) Limits {
	return Limits{
		MaxIterations: MaxRoutingIterations,
		MinReferences: MinReferences,
		Threshold:     ComplianceThreshold,
		MaxRevisions:  maxRevisions,
	}
}

// Snapshot is what Next needs to know about a run after a step finished.
type Snapshot struct {
	Step Step

	// Iteration is the number of steps taken so far, this one included.
	Iteration int

	References    int
	HasStats      bool
	HasSections   bool
	Compliance    *types.ComplianceReport
	RevisionRound int
}

// Decision is the outcome of Next.
type Decision struct {
	Next   Step
	Reason string

	// Revise is set when the run enters a new revision round.
	Revise bool
}

// Next computes the step that follows s. It is pure: the caller applies
// the decision. Any non-terminal step is refused once the iteration cap is
// reached.
func Next(s Snapshot, l Limits) Decision {
	d := route(s, l)
	if !d.Next.Terminal() && s.Iteration >= l.MaxIterations {
		return Decision{
			Next:   StepFailed,
			Reason: fmt.Sprintf("routing iteration cap of %d reached before %s", l.MaxIterations, d.Next),
		}
	}
	return d
}

func route(s Snapshot, l Limits) Decision {
	switch s.Step {
	case StepLiterature:
		if s.References >= l.MinReferences {
			return Decision{Next: StepStats, Reason: fmt.Sprintf("%d references collected", s.References)}
		}
		return Decision{Next: StepLiterature, Reason: fmt.Sprintf("only %d of %d references", s.References, l.MinReferences)}

	case StepStats:
		if s.HasStats {
			return Decision{Next: StepWriting, Reason: "stats report ready"}
		}
		return Decision{Next: StepFailed, Reason: "stats agent returned no report"}

	case StepWriting:
		if s.HasSections {
			return Decision{Next: StepCompliance, Reason: "all required sections written"}
		}
		return Decision{Next: StepWriting, Reason: "required sections missing"}

	case StepCompliance:
		r := s.Compliance
		if r == nil {
			return Decision{Next: StepFailed, Reason: "compliance agent returned no report"}
		}
		if r.OverallScore >= l.Threshold && !r.NeedsRevision {
			return Decision{Next: StepCompleted, Reason: fmt.Sprintf("compliance score %.2f", r.OverallScore)}
		}
		if s.RevisionRound < l.MaxRevisions {
			return Decision{
				Next:   StepRevision,
				Revise: true,
				Reason: fmt.Sprintf("compliance score %.2f with %d failed items, starting revision %d", r.OverallScore, r.Failed, s.RevisionRound+1),
			}
		}
		return Decision{
			Next:   StepFailed,
			Reason: fmt.Sprintf("manuscript did not converge after %d revisions (score %.2f)", s.RevisionRound, r.OverallScore),
		}

	case StepRevision:
		return Decision{Next: StepWriting, Reason: "applying revision directives"}

	case StepCompleted, StepFailed:
		return Decision{Next: s.Step}
	}
	return Decision{Next: StepFailed, Reason: fmt.Sprintf("unknown step %q", s.Step)}
}
