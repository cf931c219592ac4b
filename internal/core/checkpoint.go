package core

import (
	"fmt"
	"time"
)

// TimestampLayout is the text layout used for persisted timestamps.
const TimestampLayout = time.RFC3339Nano

// CheckpointRecord is the persisted document for one session. It holds
// exactly the fields of WorkflowState, with timestamps as text.
type CheckpointRecord struct {
	SessionID    string                 `json:"session_id" yaml:"session_id"`
	Prompt       string                 `json:"prompt" yaml:"prompt"`
	Workspace    string                 `json:"workspace" yaml:"workspace"`
	Complexity   string                 `json:"complexity" yaml:"complexity"`
	CurrentPhase string                 `json:"current_phase" yaml:"current_phase"`
	Results      map[string]PhaseResult `json:"results" yaml:"results"`
	StartTime    string                 `json:"start_time" yaml:"start_time"`
	EndTime      *string                `json:"end_time" yaml:"end_time"`
	RetryCount   int                    `json:"retry_count" yaml:"retry_count"`
	Errors       []string               `json:"errors" yaml:"errors"`
	Success      bool                   `json:"success" yaml:"success"`
}

// Serialize converts the state into its persisted record.
func (s *WorkflowState) Serialize() CheckpointRecord {
	c := s.Clone()
	rec := CheckpointRecord{
		SessionID:    string(c.SessionID),
		Prompt:       c.Prompt,
		Workspace:    c.Workspace,
		Complexity:   string(c.Complexity),
		CurrentPhase: string(c.CurrentPhase),
		Results:      make(map[string]PhaseResult, len(c.Results)),
		StartTime:    c.StartTime.Format(TimestampLayout),
		RetryCount:   c.RetryCount,
		Errors:       c.Errors,
		Success:      c.Success,
	}
	for p, r := range c.Results {
		rec.Results[string(p)] = r
	}
	if c.EndTime != nil {
		end := c.EndTime.Format(TimestampLayout)
		rec.EndTime = &end
	}
	return rec
}

// StateFromRecord rebuilds a WorkflowState from a persisted record.
func StateFromRecord(rec CheckpointRecord) (*WorkflowState, error) {
	if rec.SessionID == "" {
		return nil, ErrState(CodeStateCorrupted, "checkpoint has no session id")
	}
	complexity, err := ParseComplexity(rec.Complexity)
	if err != nil {
		return nil, ErrState(CodeStateCorrupted, "checkpoint complexity").WithCause(err)
	}
	phase, err := ParsePhase(rec.CurrentPhase)
	if err != nil {
		return nil, ErrState(CodeStateCorrupted, "checkpoint current phase").WithCause(err)
	}
	start, err := time.Parse(TimestampLayout, rec.StartTime)
	if err != nil {
		return nil, ErrState(CodeStateCorrupted, "checkpoint start time").WithCause(err)
	}

	s := &WorkflowState{
		SessionID:    SessionID(rec.SessionID),
		Prompt:       rec.Prompt,
		Workspace:    rec.Workspace,
		Complexity:   complexity,
		CurrentPhase: phase,
		Results:      make(map[Phase]PhaseResult, len(rec.Results)),
		StartTime:    start,
		RetryCount:   rec.RetryCount,
		Errors:       append(make([]string, 0, len(rec.Errors)), rec.Errors...),
		Success:      rec.Success,
	}
	if rec.EndTime != nil {
		end, err := time.Parse(TimestampLayout, *rec.EndTime)
		if err != nil {
			return nil, ErrState(CodeStateCorrupted, "checkpoint end time").WithCause(err)
		}
		s.EndTime = &end
	}
	for name, r := range rec.Results {
		p, err := ParsePhase(name)
		if err != nil {
			return nil, ErrState(CodeStateCorrupted, fmt.Sprintf("checkpoint result slot %q", name)).WithCause(err)
		}
		s.Results[p] = r
	}
	return s, nil
}
