package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
)

// CheckpointManager persists point-in-time copies of workflow state.
type CheckpointManager struct {
	store   core.CheckpointStore
	logger  *logging.Logger
	metrics *Metrics
}

// NewCheckpointManager creates a new checkpoint manager. metrics may be nil.
func NewCheckpointManager(store core.CheckpointStore, logger *logging.Logger, metrics *Metrics) *CheckpointManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CheckpointManager{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Checkpoint writes a copy of state, overwriting the previous record for the
// session. The caller keeps ownership of state.
func (m *CheckpointManager) Checkpoint(ctx context.Context, state *core.WorkflowState) error {
	// A canceled run still records its final state.
	err := m.store.Save(context.WithoutCancel(ctx), state.Clone())
	m.metrics.RecordCheckpoint(err)
	if err != nil {
		m.logger.Warn("checkpoint write failed",
			"session_id", state.SessionID,
			"phase", state.CurrentPhase,
			"error", err,
		)
		return fmt.Errorf("saving checkpoint: %w", err)
	}

	m.logger.Debug("checkpoint saved",
		"session_id", state.SessionID,
		"phase", state.CurrentPhase,
		"retry_count", state.RetryCount,
	)
	return nil
}

// Load returns the checkpoint for id, or nil when none exists.
func (m *CheckpointManager) Load(ctx context.Context, id core.SessionID) (*core.WorkflowState, error) {
	state, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", id, err)
	}
	return state, nil
}

// List returns summaries of all stored sessions, newest first.
func (m *CheckpointManager) List(ctx context.Context) ([]core.SessionSummary, error) {
	return m.store.List(ctx)
}

// ResumeIndex returns the position in route at which an interrupted run
// continues: the latest occurrence of the state's current phase whose
// predecessors in route all have results. Returns 0 when no such position
// exists.
func ResumeIndex(route []core.Phase, state *core.WorkflowState) int {
	for i := len(route) - 1; i >= 0; i-- {
		if route[i] != state.CurrentPhase {
			continue
		}
		if predecessorsDone(route[:i], state) {
			return i
		}
	}
	return 0
}

func predecessorsDone(prefix []core.Phase, state *core.WorkflowState) bool {
	for _, p := range prefix {
		if _, ok := state.Result(p); !ok {
			return false
		}
	}
	return true
}

// ResumePhases returns the phases an interrupted run still has to execute.
// When the first phase of route without a result has a recorded error and
// is no longer the current phase, the run had moved on into the rerouted
// tail alt(failed), and the search continues there, recursively for a tail
// that was itself rerouted. Within the chosen list the run resumes at the
// latest occurrence of the current phase whose predecessors all have
// results. When nothing matches the whole route runs again.
func ResumePhases(route []core.Phase, state *core.WorkflowState, alt func(core.Phase) []core.Phase) []core.Phase {
	if tail, ok := resumeTail(route, state, alt); ok {
		return tail
	}
	return route
}

func resumeTail(phases []core.Phase, state *core.WorkflowState, alt func(core.Phase) []core.Phase) ([]core.Phase, bool) {
	for _, p := range phases {
		if _, ok := state.Result(p); ok {
			continue
		}
		if p != state.CurrentPhase && failedBefore(p, state) {
			return resumeTail(alt(p), state, alt)
		}
		break
	}
	if i := ResumeIndex(phases, state); i > 0 || (len(phases) > 0 && phases[0] == state.CurrentPhase) {
		return phases[i:], true
	}
	return nil, false
}

// failedBefore reports whether state holds an error entry for p.
func failedBefore(p core.Phase, state *core.WorkflowState) bool {
	prefix := string(p) + ": "
	for _, e := range state.Errors {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}
