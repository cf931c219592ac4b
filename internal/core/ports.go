package core

import "context"

// =============================================================================
// CheckpointStore Port
// =============================================================================

// CheckpointStore persists one record per session, keyed by session id.
// Implementations must serialize writes per key; writes to distinct sessions
// are independent.
type CheckpointStore interface {
	// Save writes or overwrites the record for state.SessionID.
	Save(ctx context.Context, state *WorkflowState) error

	// Load returns the record for id.
	// Returns nil state and no error if the session does not exist.
	Load(ctx context.Context, id SessionID) (*WorkflowState, error)

	// List returns summaries of all stored sessions, newest first.
	List(ctx context.Context) ([]SessionSummary, error)
}

// =============================================================================
// PhaseExecutor Port
// =============================================================================

// PhaseInput is the slice of run state handed to a phase collaborator.
type PhaseInput struct {
	SessionID  SessionID             `json:"session_id"`
	Phase      Phase                 `json:"phase"`
	Prompt     string                `json:"prompt"`
	Workspace  string                `json:"workspace"`
	Complexity Complexity            `json:"complexity"`
	Results    map[Phase]PhaseResult `json:"results"`
}

// PhaseExecutor performs the work of one phase. Implementations own their
// timeouts. A returned error is classified with ClassifyFailure.
type PhaseExecutor interface {
	Execute(ctx context.Context, in PhaseInput) (PhaseResult, error)
}

// PhaseExecutorFunc adapts a function to PhaseExecutor.
type PhaseExecutorFunc func(ctx context.Context, in PhaseInput) (PhaseResult, error)

// Execute calls f(ctx, in).
func (f PhaseExecutorFunc) Execute(ctx context.Context, in PhaseInput) (PhaseResult, error) {
	return f(ctx, in)
}
