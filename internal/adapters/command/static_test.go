package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

func TestStaticExecutor(t *testing.T) {
	e := NewStaticExecutor(core.PhaseReview)

	result, err := e.Execute(context.Background(), core.PhaseInput{Phase: core.PhaseReview})
	require.NoError(t, err)
	assert.Equal(t, core.PhaseResult{"review": "completed", "dry_run": true}, result)
}

func TestStaticExecutor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticExecutor(core.PhaseReview).Execute(ctx, core.PhaseInput{})
	assert.ErrorIs(t, err, context.Canceled)
}
