package core

import "fmt"

// Phase represents a stage in the workflow execution.
type Phase string

const (
	// PhaseAnalysis inspects the task and the repository it targets.
	PhaseAnalysis Phase = "analysis"

	// PhasePlanning produces a change plan for the task.
	PhasePlanning Phase = "planning"

	// PhaseCoding applies the planned change to the workspace.
	PhaseCoding Phase = "coding"

	// PhaseTesting runs the workspace test suite against the change.
	PhaseTesting Phase = "testing"

	// PhaseReview critiques the change. Complex routes review twice.
	PhaseReview Phase = "review"

	// PhaseGitOps publishes the change (commit, push, pull request).
	PhaseGitOps Phase = "gitops"

	// PhaseExplanation documents what was changed and why.
	PhaseExplanation Phase = "explanation"
)

// AllPhases returns all phases in canonical order.
func AllPhases() []Phase {
	return []Phase{
		PhaseAnalysis,
		PhasePlanning,
		PhaseCoding,
		PhaseTesting,
		PhaseReview,
		PhaseGitOps,
		PhaseExplanation,
	}
}

// PhaseOrder returns the canonical position of a phase (0-indexed).
func PhaseOrder(p Phase) int {
	switch p {
	case PhaseAnalysis:
		return 0
	case PhasePlanning:
		return 1
	case PhaseCoding:
		return 2
	case PhaseTesting:
		return 3
	case PhaseReview:
		return 4
	case PhaseGitOps:
		return 5
	case PhaseExplanation:
		return 6
	default:
		return -1
	}
}

// ValidPhase checks if a phase string is valid.
func ValidPhase(p Phase) bool {
	return PhaseOrder(p) >= 0
}

// ParsePhase converts a string to a Phase with validation.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !ValidPhase(p) {
		return "", fmt.Errorf("invalid phase: %s", s)
	}
	return p, nil
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Description returns a human-readable description of the phase.
func (p Phase) Description() string {
	switch p {
	case PhaseAnalysis:
		return "Analyze the task and the target repository"
	case PhasePlanning:
		return "Plan the change"
	case PhaseCoding:
		return "Apply the change to the workspace"
	case PhaseTesting:
		return "Run the test suite against the change"
	case PhaseReview:
		return "Review the change"
	case PhaseGitOps:
		return "Publish the change"
	case PhaseExplanation:
		return "Explain the change"
	default:
		return "Unknown phase"
	}
}
