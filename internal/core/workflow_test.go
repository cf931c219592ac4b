package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflowState_Defaults(t *testing.T) {
	s := NewWorkflowState("s-1", "Fix a typo", "/tmp/ws")

	assert.Equal(t, SessionID("s-1"), s.SessionID)
	assert.Equal(t, ComplexityModerate, s.Complexity)
	assert.Equal(t, PhaseAnalysis, s.CurrentPhase)
	assert.False(t, s.Terminated())
	assert.False(t, s.Success)
	assert.Empty(t, s.Errors)
	assert.False(t, s.StartTime.IsZero())
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a.String(), "s-"))
}

func TestWorkflowState_RecordError(t *testing.T) {
	s := NewWorkflowState("s-1", "p", "/ws")
	s.RecordError(PhaseTesting, ErrTimeout("tests hung"))
	s.RecordError(PhaseTesting, errors.New("exit status 1"))

	assert.Equal(t, []string{"testing: tests hung", "testing: exit status 1"}, s.Errors)
}

func TestWorkflowState_FinishOnce(t *testing.T) {
	s := NewWorkflowState("s-1", "p", "/ws")
	first := time.Now()
	s.Finish(false, first)
	s.Finish(true, first.Add(time.Minute))

	require.True(t, s.Terminated())
	assert.False(t, s.Success)
	assert.True(t, s.EndTime.Equal(first))
}

func TestWorkflowState_CloneIsIndependent(t *testing.T) {
	s := NewWorkflowState("s-1", "p", "/ws")
	s.SetResult(PhasePlanning, PhaseResult{
		"steps": []interface{}{"a", "b"},
		"meta":  map[string]interface{}{"files": 2},
	})
	s.RecordError(PhaseCoding, errors.New("boom"))

	c := s.Clone()
	c.Results[PhasePlanning]["steps"].([]interface{})[0] = "changed"
	c.Results[PhasePlanning]["meta"].(map[string]interface{})["files"] = 9
	c.Errors[0] = "changed"

	assert.Equal(t, "a", s.Results[PhasePlanning]["steps"].([]interface{})[0])
	assert.Equal(t, 2, s.Results[PhasePlanning]["meta"].(map[string]interface{})["files"])
	assert.Equal(t, "coding: boom", s.Errors[0])
}

func TestCheckpointRecord_RoundTrip(t *testing.T) {
	s := NewWorkflowState("s-42", "Add a hello world function", "/repo")
	s.Complexity = ComplexitySimple
	s.CurrentPhase = PhaseGitOps
	s.RetryCount = 1
	s.SetResult(PhaseAnalysis, PhaseResult{"has_tests": true, "complexity_score": float64(30)})
	s.SetResult(PhaseCoding, PhaseResult{"files": []interface{}{"hello.go"}})
	s.RecordError(PhaseTesting, errors.New("flaky"))
	s.Finish(true, s.StartTime.Add(90*time.Second))

	data, err := json.Marshal(s.Serialize())
	require.NoError(t, err)

	var rec CheckpointRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	got, err := StateFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, s.SessionID, got.SessionID)
	assert.Equal(t, s.Prompt, got.Prompt)
	assert.Equal(t, s.Workspace, got.Workspace)
	assert.Equal(t, s.Complexity, got.Complexity)
	assert.Equal(t, s.CurrentPhase, got.CurrentPhase)
	assert.Equal(t, s.Results, got.Results)
	assert.True(t, s.StartTime.Equal(got.StartTime))
	require.NotNil(t, got.EndTime)
	assert.True(t, s.EndTime.Equal(*got.EndTime))
	assert.Equal(t, s.RetryCount, got.RetryCount)
	assert.Equal(t, s.Errors, got.Errors)
	assert.Equal(t, s.Success, got.Success)
}

func TestStateFromRecord_Corrupt(t *testing.T) {
	valid := NewWorkflowState("s-1", "p", "/ws").Serialize()

	tests := []struct {
		name   string
		mutate func(*CheckpointRecord)
	}{
		{"missing id", func(r *CheckpointRecord) { r.SessionID = "" }},
		{"bad complexity", func(r *CheckpointRecord) { r.Complexity = "huge" }},
		{"bad phase", func(r *CheckpointRecord) { r.CurrentPhase = "deploy" }},
		{"bad start", func(r *CheckpointRecord) { r.StartTime = "yesterday" }},
		{"bad result slot", func(r *CheckpointRecord) { r.Results = map[string]PhaseResult{"deploy": {}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			_, err := StateFromRecord(rec)
			require.Error(t, err)
			assert.True(t, IsCategory(err, ErrCatState))
		})
	}
}
