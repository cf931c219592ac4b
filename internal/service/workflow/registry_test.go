package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/testutil"
)

func TestPhaseRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewPhaseRegistry()
	require.NoError(t, r.Register(core.PhaseCoding, testutil.NewMockExecutor(core.PhaseCoding)))

	exec, err := r.Get(core.PhaseCoding)
	require.NoError(t, err)
	assert.NotNil(t, exec)

	err = r.Register(core.Phase("deploy"), testutil.NewMockExecutor("deploy"))
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))

	err = r.Register(core.PhaseTesting, nil)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
}

func TestPhaseRegistry_GetMissing(t *testing.T) {
	t.Parallel()

	_, err := NewPhaseRegistry().Get(core.PhaseReview)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
	assert.Contains(t, err.Error(), "review")
}

func TestPhaseRegistry_Validate(t *testing.T) {
	t.Parallel()

	r := NewPhaseRegistry()
	for _, p := range []core.Phase{core.PhasePlanning, core.PhaseCoding, core.PhaseTesting} {
		require.NoError(t, r.Register(p, testutil.NewMockExecutor(p)))
	}

	assert.NoError(t, r.Validate([]core.Phase{core.PhasePlanning, core.PhaseTesting}))

	err := r.Validate(simpleRoute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gitops")
}

func TestPhaseRegistry_RegisterAllOrdersPhases(t *testing.T) {
	t.Parallel()

	r := NewPhaseRegistry()
	require.NoError(t, r.RegisterAll(func(p core.Phase) core.PhaseExecutor {
		return testutil.NewMockExecutor(p)
	}))

	assert.Equal(t, core.AllPhases(), r.Phases())
}
