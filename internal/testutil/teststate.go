package testutil

import (
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// NewTestState creates a WorkflowState with sensible defaults for tests.
// Use functional options to override specific fields.
func NewTestState(opts ...func(*core.WorkflowState)) *core.WorkflowState {
	s := core.NewWorkflowState("s-test", "Add a hello world function", "/tmp/workspace")
	s.StartTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithPhase sets the current phase.
func WithPhase(p core.Phase) func(*core.WorkflowState) {
	return func(s *core.WorkflowState) { s.CurrentPhase = p }
}

// WithComplexity sets the complexity tier.
func WithComplexity(c core.Complexity) func(*core.WorkflowState) {
	return func(s *core.WorkflowState) { s.Complexity = c }
}

// WithResults marks phases as completed with a trivial result.
func WithResults(phases ...core.Phase) func(*core.WorkflowState) {
	return func(s *core.WorkflowState) {
		for _, p := range phases {
			s.SetResult(p, core.PhaseResult{string(p): "completed"})
		}
	}
}

// WithSessionID overrides the session id.
func WithSessionID(id core.SessionID) func(*core.WorkflowState) {
	return func(s *core.WorkflowState) { s.SessionID = id }
}
