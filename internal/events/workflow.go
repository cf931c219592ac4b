package events

import "time"

// Event type constants for workflow events.
const (
	TypeWorkflowStarted   = "workflow_started"
	TypePhaseStarted      = "phase_started"
	TypePhaseCompleted    = "phase_completed"
	TypePhaseFailed       = "phase_failed"
	TypePhaseRetrying     = "phase_retrying"
	TypeWorkflowRerouted  = "workflow_rerouted"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowAborted   = "workflow_aborted"
)

// TerminalTypes are the event types that end a run.
var TerminalTypes = []string{TypeWorkflowCompleted, TypeWorkflowAborted}

// WorkflowStartedEvent is emitted when a run begins or resumes.
type WorkflowStartedEvent struct {
	BaseEvent
	Prompt     string   `json:"prompt"`
	Complexity string   `json:"complexity"`
	Phases     []string `json:"phases"`
	Resumed    bool     `json:"resumed"`
}

// NewWorkflowStartedEvent creates a new workflow started event.
func NewWorkflowStartedEvent(sessionID, prompt, complexity string, phases []string, resumed bool) WorkflowStartedEvent {
	return WorkflowStartedEvent{
		BaseEvent:  NewBaseEvent(TypeWorkflowStarted, sessionID),
		Prompt:     prompt,
		Complexity: complexity,
		Phases:     phases,
		Resumed:    resumed,
	}
}

// PhaseStartedEvent is emitted before each phase attempt.
type PhaseStartedEvent struct {
	BaseEvent
	Phase   string `json:"phase"`
	Attempt int    `json:"attempt"`
}

// NewPhaseStartedEvent creates a new phase started event.
func NewPhaseStartedEvent(sessionID, phase string, attempt int) PhaseStartedEvent {
	return PhaseStartedEvent{
		BaseEvent: NewBaseEvent(TypePhaseStarted, sessionID),
		Phase:     phase,
		Attempt:   attempt,
	}
}

// PhaseCompletedEvent is emitted when a phase collaborator succeeds.
type PhaseCompletedEvent struct {
	BaseEvent
	Phase    string        `json:"phase"`
	Duration time.Duration `json:"duration"`
}

// NewPhaseCompletedEvent creates a new phase completed event.
func NewPhaseCompletedEvent(sessionID, phase string, duration time.Duration) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		BaseEvent: NewBaseEvent(TypePhaseCompleted, sessionID),
		Phase:     phase,
		Duration:  duration,
	}
}

// PhaseFailedEvent is emitted when a phase attempt fails.
type PhaseFailedEvent struct {
	BaseEvent
	Phase     string `json:"phase"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// NewPhaseFailedEvent creates a new phase failed event.
func NewPhaseFailedEvent(sessionID, phase string, err error, retryable bool) PhaseFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return PhaseFailedEvent{
		BaseEvent: NewBaseEvent(TypePhaseFailed, sessionID),
		Phase:     phase,
		Error:     errStr,
		Retryable: retryable,
	}
}

// PhaseRetryingEvent is emitted when a failed phase is about to be retried.
type PhaseRetryingEvent struct {
	BaseEvent
	Phase      string        `json:"phase"`
	RetryCount int           `json:"retry_count"`
	Delay      time.Duration `json:"delay"`
}

// NewPhaseRetryingEvent creates a new phase retrying event.
func NewPhaseRetryingEvent(sessionID, phase string, retryCount int, delay time.Duration) PhaseRetryingEvent {
	return PhaseRetryingEvent{
		BaseEvent:  NewBaseEvent(TypePhaseRetrying, sessionID),
		Phase:      phase,
		RetryCount: retryCount,
		Delay:      delay,
	}
}

// WorkflowReroutedEvent is emitted when the remaining phases are replaced
// by an alternative path.
type WorkflowReroutedEvent struct {
	BaseEvent
	FailedPhase string   `json:"failed_phase"`
	NewTail     []string `json:"new_tail"`
}

// NewWorkflowReroutedEvent creates a new workflow rerouted event.
func NewWorkflowReroutedEvent(sessionID, failedPhase string, tail []string) WorkflowReroutedEvent {
	return WorkflowReroutedEvent{
		BaseEvent:   NewBaseEvent(TypeWorkflowRerouted, sessionID),
		FailedPhase: failedPhase,
		NewTail:     tail,
	}
}

// WorkflowCompletedEvent is emitted once when a run finishes successfully.
type WorkflowCompletedEvent struct {
	BaseEvent
	Duration   time.Duration `json:"duration"`
	RetryCount int           `json:"retry_count"`
	ErrorCount int           `json:"error_count"`
}

// NewWorkflowCompletedEvent creates a new workflow completed event.
func NewWorkflowCompletedEvent(sessionID string, duration time.Duration, retries, errors int) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeWorkflowCompleted, sessionID),
		Duration:   duration,
		RetryCount: retries,
		ErrorCount: errors,
	}
}

// WorkflowAbortedEvent is emitted once when a run terminates unsuccessfully.
type WorkflowAbortedEvent struct {
	BaseEvent
	Phase  string `json:"phase"`
	Reason string `json:"reason"`
}

// NewWorkflowAbortedEvent creates a new workflow aborted event.
func NewWorkflowAbortedEvent(sessionID, phase, reason string) WorkflowAbortedEvent {
	return WorkflowAbortedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowAborted, sessionID),
		Phase:     phase,
		Reason:    reason,
	}
}
