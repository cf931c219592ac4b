package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionID uniquely identifies a workflow run.
type SessionID string

// NewSessionID returns a sortable, collision-resistant session identifier.
func NewSessionID() SessionID {
	return SessionID(fmt.Sprintf("s-%s-%s",
		time.Now().UTC().Format("20060102-150405"),
		uuid.NewString()[:8]))
}

func (id SessionID) String() string {
	return string(id)
}

// PhaseResult is the structured output of one phase collaborator.
type PhaseResult map[string]interface{}

// WorkflowState is the record of one workflow run.
//
// A state instance is owned by exactly one orchestrator for the duration of a
// run. Persisted checkpoints are point-in-time copies; resuming loads a fresh
// instance.
type WorkflowState struct {
	SessionID    SessionID             `json:"session_id"`
	Prompt       string                `json:"prompt"`
	Workspace    string                `json:"workspace"`
	Complexity   Complexity            `json:"complexity"`
	CurrentPhase Phase                 `json:"current_phase"`
	Results      map[Phase]PhaseResult `json:"results"`
	StartTime    time.Time             `json:"start_time"`
	EndTime      *time.Time            `json:"end_time,omitempty"`
	RetryCount   int                   `json:"retry_count"`
	Errors       []string              `json:"errors"`
	Success      bool                  `json:"success"`
}

// NewWorkflowState creates a fresh run with the default complexity and phase.
func NewWorkflowState(id SessionID, prompt, workspace string) *WorkflowState {
	return &WorkflowState{
		SessionID:    id,
		Prompt:       prompt,
		Workspace:    workspace,
		Complexity:   ComplexityModerate,
		CurrentPhase: PhaseAnalysis,
		Results:      make(map[Phase]PhaseResult),
		StartTime:    time.Now(),
		Errors:       make([]string, 0),
	}
}

// Result returns the stored result for a phase.
func (s *WorkflowState) Result(p Phase) (PhaseResult, bool) {
	r, ok := s.Results[p]
	return r, ok
}

// SetResult stores the result for a phase, replacing any previous one.
func (s *WorkflowState) SetResult(p Phase, r PhaseResult) {
	if s.Results == nil {
		s.Results = make(map[Phase]PhaseResult)
	}
	s.Results[p] = r
}

// RecordError appends a "<phase>: <message>" entry.
func (s *WorkflowState) RecordError(p Phase, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", p, ErrorMessage(err)))
}

// Terminated reports whether the run has ended.
func (s *WorkflowState) Terminated() bool {
	return s.EndTime != nil
}

// Finish stamps the end of the run. Only the first call has any effect.
func (s *WorkflowState) Finish(success bool, at time.Time) {
	if s.EndTime != nil {
		return
	}
	s.Success = success
	s.EndTime = &at
}

// Duration returns the elapsed run time, up to now for a live run.
func (s *WorkflowState) Duration() time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// Clone returns a deep copy suitable for checkpointing.
func (s *WorkflowState) Clone() *WorkflowState {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.Errors = append(make([]string, 0, len(s.Errors)), s.Errors...)
	c.Results = make(map[Phase]PhaseResult, len(s.Results))
	for p, r := range s.Results {
		c.Results[p] = cloneResult(r)
	}
	return &c
}

// Summary returns the listing view of the state.
func (s *WorkflowState) Summary() SessionSummary {
	return SessionSummary{
		SessionID:    s.SessionID,
		Prompt:       s.Prompt,
		Complexity:   s.Complexity,
		CurrentPhase: s.CurrentPhase,
		Success:      s.Success,
		RetryCount:   s.RetryCount,
		ErrorCount:   len(s.Errors),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
	}
}

// SessionSummary is a compact view used for listings.
type SessionSummary struct {
	SessionID    SessionID  `json:"session_id"`
	Prompt       string     `json:"prompt"`
	Complexity   Complexity `json:"complexity"`
	CurrentPhase Phase      `json:"current_phase"`
	Success      bool       `json:"success"`
	RetryCount   int        `json:"retry_count"`
	ErrorCount   int        `json:"error_count"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// ErrorMessage extracts the human-facing message of an error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var domErr *DomainError
	if errors.As(err, &domErr) && domErr.Message != "" {
		return domErr.Message
	}
	return err.Error()
}

func cloneResult(r PhaseResult) PhaseResult {
	if r == nil {
		return nil
	}
	out := make(PhaseResult, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case PhaseResult:
		return cloneResult(t)
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
