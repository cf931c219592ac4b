package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

var simpleRoute = []core.Phase{
	core.PhasePlanning,
	core.PhaseCoding,
	core.PhaseTesting,
	core.PhaseGitOps,
}

func TestStart(t *testing.T) {
	t.Parallel()

	step := Start(simpleRoute)
	assert.Equal(t, StepRunning, step.Kind)
	assert.Equal(t, core.PhasePlanning, step.Phase)
	assert.Equal(t, simpleRoute[1:], step.Remaining)
	assert.Zero(t, step.Attempt)

	empty := Start(nil)
	assert.Equal(t, StepSucceeded, empty.Kind)
	assert.True(t, empty.Terminal())
}

func TestTransition(t *testing.T) {
	t.Parallel()

	lim := Limits{PhaseRetries: 1}
	atTesting := Step{Kind: StepRunning, Phase: core.PhaseTesting, Remaining: []core.Phase{core.PhaseGitOps}}
	alt := []core.Phase{core.PhaseReview, core.PhaseGitOps}

	tests := []struct {
		name    string
		from    Step
		event   Event
		want    Step
		wantErr bool
	}{
		{
			name:  "success advances",
			from:  atTesting,
			event: Event{Kind: EventSucceeded},
			want:  Step{Kind: StepRunning, Phase: core.PhaseGitOps, Remaining: []core.Phase{}},
		},
		{
			name:  "success on last phase finishes",
			from:  Step{Kind: StepRunning, Phase: core.PhaseGitOps, Remaining: []core.Phase{}},
			event: Event{Kind: EventSucceeded},
			want:  Step{Kind: StepSucceeded},
		},
		{
			name:  "retryable failure retries",
			from:  atTesting,
			event: Event{Kind: EventFailed, Retryable: true, Alternative: alt},
			want:  Step{Kind: StepRetrying, Phase: core.PhaseTesting, Remaining: []core.Phase{core.PhaseGitOps}, Attempt: 1},
		},
		{
			name:  "exhausted phase retries reroute",
			from:  Step{Kind: StepRetrying, Phase: core.PhaseTesting, Remaining: []core.Phase{core.PhaseGitOps}, Attempt: 1},
			event: Event{Kind: EventFailed, Retryable: true, Alternative: alt},
			want:  Step{Kind: StepRerouted, Phase: core.PhaseTesting, Remaining: alt},
		},
		{
			name:  "non retryable failure reroutes",
			from:  atTesting,
			event: Event{Kind: EventFailed, Alternative: alt},
			want:  Step{Kind: StepRerouted, Phase: core.PhaseTesting, Remaining: alt},
		},
		{
			name:  "failure without alternative aborts",
			from:  Step{Kind: StepRunning, Phase: core.PhasePlanning},
			event: Event{Kind: EventFailed},
			want:  Step{Kind: StepAborted, Phase: core.PhasePlanning},
		},
		{
			name:  "retrying success advances",
			from:  Step{Kind: StepRetrying, Phase: core.PhaseTesting, Remaining: []core.Phase{core.PhaseGitOps}, Attempt: 1},
			event: Event{Kind: EventSucceeded},
			want:  Step{Kind: StepRunning, Phase: core.PhaseGitOps, Remaining: []core.Phase{}},
		},
		{
			name:  "rerouted continue runs new tail",
			from:  Step{Kind: StepRerouted, Phase: core.PhaseTesting, Remaining: alt},
			event: Event{Kind: EventContinue},
			want:  Step{Kind: StepRunning, Phase: core.PhaseReview, Remaining: []core.Phase{core.PhaseGitOps}},
		},
		{
			name:    "continue while running is invalid",
			from:    atTesting,
			event:   Event{Kind: EventContinue},
			want:    atTesting,
			wantErr: true,
		},
		{
			name:    "success while rerouted is invalid",
			from:    Step{Kind: StepRerouted, Remaining: alt},
			event:   Event{Kind: EventSucceeded},
			want:    Step{Kind: StepRerouted, Remaining: alt},
			wantErr: true,
		},
		{
			name:    "succeeded is terminal",
			from:    Step{Kind: StepSucceeded},
			event:   Event{Kind: EventSucceeded},
			want:    Step{Kind: StepSucceeded},
			wantErr: true,
		},
		{
			name:    "aborted is terminal",
			from:    Step{Kind: StepAborted, Phase: core.PhasePlanning},
			event:   Event{Kind: EventFailed},
			want:    Step{Kind: StepAborted, Phase: core.PhasePlanning},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Transition(tt.from, tt.event, lim)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsCategory(err, core.ErrCatState))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.Phase, got.Phase)
			assert.Equal(t, tt.want.Attempt, got.Attempt)
			assert.ElementsMatch(t, tt.want.Remaining, got.Remaining)
		})
	}
}

func TestTransition_ZeroPhaseRetries(t *testing.T) {
	t.Parallel()

	got, err := Transition(
		Step{Kind: StepRunning, Phase: core.PhaseReview},
		Event{Kind: EventFailed, Retryable: true, Alternative: []core.Phase{core.PhaseGitOps}},
		Limits{},
	)
	require.NoError(t, err)
	assert.Equal(t, StepRerouted, got.Kind)
}

func TestTransition_RerouteCopiesAlternative(t *testing.T) {
	t.Parallel()

	alt := []core.Phase{core.PhaseReview, core.PhaseGitOps}
	got, err := Transition(Step{Kind: StepRunning, Phase: core.PhaseTesting}, Event{Kind: EventFailed, Alternative: alt}, Limits{})
	require.NoError(t, err)

	alt[0] = core.PhaseCoding
	assert.Equal(t, core.PhaseReview, got.Remaining[0])
}

func TestStep_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running(testing)", Step{Kind: StepRunning, Phase: core.PhaseTesting}.String())
	assert.Equal(t, "aborted(planning)", Step{Kind: StepAborted, Phase: core.PhasePlanning}.String())
	assert.Equal(t, "succeeded", Step{Kind: StepSucceeded}.String())
	assert.Equal(t, "step(42)", StepKind(42).String())
}
