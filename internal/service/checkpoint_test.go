package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	helixtest "github.com/hugo-lorenzo-mato/helix/internal/testutil"
)

func TestCheckpointManager_SavesCopy(t *testing.T) {
	store := helixtest.NewMemoryStore()
	mgr := NewCheckpointManager(store, nil, nil)
	ctx := context.Background()

	state := helixtest.NewTestState()
	require.NoError(t, mgr.Checkpoint(ctx, state))

	state.RecordError(core.PhaseCoding, errors.New("after checkpoint"))

	loaded, err := mgr.Load(ctx, state.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded.Errors)
}

func TestCheckpointManager_CanceledContextStillSaves(t *testing.T) {
	store := helixtest.NewMemoryStore()
	mgr := NewCheckpointManager(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, mgr.Checkpoint(ctx, helixtest.NewTestState()))
	assert.Equal(t, 1, store.SaveCount())
}

func TestCheckpointManager_Metrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	store := helixtest.NewMemoryStore()
	mgr := NewCheckpointManager(store, nil, metrics)
	ctx := context.Background()

	require.NoError(t, mgr.Checkpoint(ctx, helixtest.NewTestState()))
	store.WithSaveError(errors.New("disk full"))
	err := mgr.Checkpoint(ctx, helixtest.NewTestState())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CheckpointWrites.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CheckpointWrites.WithLabelValues(ResultFailure)))
}

func TestCheckpointManager_LoadMissing(t *testing.T) {
	mgr := NewCheckpointManager(helixtest.NewMemoryStore(), nil, nil)

	state, err := mgr.Load(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestCheckpointManager_LoadError(t *testing.T) {
	store := helixtest.NewMemoryStore().WithLoadError(core.ErrState(core.CodeStateCorrupted, "bad checksum"))
	mgr := NewCheckpointManager(store, nil, nil)

	_, err := mgr.Load(context.Background(), "s-1")

	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatState))
}

func TestResumeIndex(t *testing.T) {
	complexRoute, err := RouteFor(core.ComplexityComplex)
	require.NoError(t, err)
	simpleRoute, err := RouteFor(core.ComplexitySimple)
	require.NoError(t, err)

	tests := []struct {
		name  string
		route []core.Phase
		state *core.WorkflowState
		want  int
	}{
		{
			name:  "fresh state starts at the top",
			route: simpleRoute,
			state: helixtest.NewTestState(),
			want:  0,
		},
		{
			name:  "interrupted in testing",
			route: simpleRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseTesting),
				helixtest.WithResults(core.PhasePlanning, core.PhaseCoding),
			),
			want: 2,
		},
		{
			name:  "missing predecessor result restarts",
			route: simpleRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseTesting),
				helixtest.WithResults(core.PhasePlanning),
			),
			want: 0,
		},
		{
			name:  "second review when testing is done",
			route: complexRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseReview),
				helixtest.WithResults(core.PhaseAnalysis, core.PhasePlanning, core.PhaseCoding,
					core.PhaseReview, core.PhaseTesting),
			),
			want: 5,
		},
		{
			name:  "first review when testing has not run",
			route: complexRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseReview),
				helixtest.WithResults(core.PhaseAnalysis, core.PhasePlanning, core.PhaseCoding),
			),
			want: 3,
		},
		{
			name:  "phase not on route",
			route: simpleRoute,
			state: helixtest.NewTestState(helixtest.WithPhase(core.PhaseExplanation)),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResumeIndex(tt.route, tt.state))
		})
	}
}

func TestResumePhases(t *testing.T) {
	simpleRoute, err := RouteFor(core.ComplexitySimple)
	require.NoError(t, err)
	complexRoute, err := RouteFor(core.ComplexityComplex)
	require.NoError(t, err)
	alt := func(p core.Phase) []core.Phase {
		return NewErrorRecovery().AlternativePath(p, core.ComplexitySimple)
	}
	withErrors := func(errs ...string) func(*core.WorkflowState) {
		return func(s *core.WorkflowState) { s.Errors = errs }
	}

	tests := []struct {
		name  string
		route []core.Phase
		state *core.WorkflowState
		want  []core.Phase
	}{
		{
			name:  "fresh state runs the whole route",
			route: simpleRoute,
			state: helixtest.NewTestState(),
			want:  simpleRoute,
		},
		{
			name:  "interrupted before the retry",
			route: simpleRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseTesting),
				helixtest.WithResults(core.PhasePlanning, core.PhaseCoding),
				withErrors("testing: flaky"),
			),
			want: []core.Phase{core.PhaseTesting, core.PhaseGitOps},
		},
		{
			name:  "interrupted in the rerouted tail",
			route: simpleRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseGitOps),
				helixtest.WithResults(core.PhasePlanning, core.PhaseCoding, core.PhaseReview),
				withErrors("testing: failed", "testing: failed again"),
			),
			want: []core.Phase{core.PhaseGitOps},
		},
		{
			name:  "interrupted at the head of the rerouted tail",
			route: simpleRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseReview),
				helixtest.WithResults(core.PhasePlanning, core.PhaseCoding),
				withErrors("testing: failed", "testing: failed again"),
			),
			want: []core.Phase{core.PhaseReview, core.PhaseGitOps},
		},
		{
			name:  "tail rerouted twice",
			route: simpleRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseGitOps),
				helixtest.WithResults(core.PhasePlanning, core.PhaseCoding),
				withErrors("testing: failed", "testing: failed", "review: failed", "review: failed"),
			),
			want: []core.Phase{core.PhaseGitOps},
		},
		{
			name:  "complex route rerouted after the first review",
			route: complexRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseReview),
				helixtest.WithResults(core.PhaseAnalysis, core.PhasePlanning, core.PhaseCoding, core.PhaseReview),
				withErrors("testing: failed", "testing: failed"),
			),
			want: []core.Phase{core.PhaseReview, core.PhaseGitOps},
		},
		{
			name:  "missing predecessor without failures restarts",
			route: simpleRoute,
			state: helixtest.NewTestState(
				helixtest.WithPhase(core.PhaseTesting),
				helixtest.WithResults(core.PhasePlanning),
			),
			want: simpleRoute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResumePhases(tt.route, tt.state, alt))
		})
	}
}
