package command

import (
	"context"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// StaticExecutor completes its phase without doing any work. It backs dry
// runs and phases that only mark progress.
type StaticExecutor struct {
	phase core.Phase
}

// NewStaticExecutor creates a static executor for phase.
func NewStaticExecutor(phase core.Phase) *StaticExecutor {
	return &StaticExecutor{phase: phase}
}

// Execute returns a completion marker for the phase.
func (s *StaticExecutor) Execute(ctx context.Context, _ core.PhaseInput) (core.PhaseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return core.PhaseResult{
		string(s.phase): "completed",
		"dry_run":       true,
	}, nil
}

var _ core.PhaseExecutor = (*StaticExecutor)(nil)
