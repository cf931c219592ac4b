package workflow

import (
	"fmt"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// StepKind enumerates the states of a run's phase sequence.
type StepKind int

const (
	// StepRunning is about to attempt Phase for the first time.
	StepRunning StepKind = iota
	// StepRetrying is about to attempt Phase again after a failure.
	StepRetrying
	// StepRerouted has replaced the unexecuted phases with Remaining.
	StepRerouted
	// StepSucceeded has run every phase.
	StepSucceeded
	// StepAborted stopped after Phase failed with no way forward.
	StepAborted
)

var stepKindNames = map[StepKind]string{
	StepRunning:   "running",
	StepRetrying:  "retrying",
	StepRerouted:  "rerouted",
	StepSucceeded: "succeeded",
	StepAborted:   "aborted",
}

func (k StepKind) String() string {
	if name, ok := stepKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(k))
}

// Step is a state of the phase state machine.
type Step struct {
	Kind StepKind
	// Phase is the phase to attempt (running, retrying) or the phase that
	// failed (aborted).
	Phase core.Phase
	// Remaining holds the phases after Phase, or the new tail when rerouted.
	Remaining []core.Phase
	// Attempt counts same-phase retries already granted to Phase.
	Attempt int
}

// Terminal reports whether the step ends the run.
func (s Step) Terminal() bool {
	return s.Kind == StepSucceeded || s.Kind == StepAborted
}

func (s Step) String() string {
	switch s.Kind {
	case StepRunning, StepRetrying:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Phase)
	case StepRerouted:
		return fmt.Sprintf("%s(%v)", s.Kind, s.Remaining)
	case StepAborted:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Phase)
	default:
		return s.Kind.String()
	}
}

// EventKind enumerates the inputs of the state machine.
type EventKind int

const (
	// EventSucceeded: the attempted phase's collaborator returned a result.
	EventSucceeded EventKind = iota
	// EventFailed: the attempted phase's collaborator failed.
	EventFailed
	// EventContinue: leave the rerouted state and run the new tail.
	EventContinue
)

func (k EventKind) String() string {
	switch k {
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventContinue:
		return "continue"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one input to Transition. For EventFailed the driver supplies the
// recovery verdicts, which keeps Transition free of side effects.
type Event struct {
	Kind EventKind
	// Retryable is the run-wide retry verdict for the failure.
	Retryable bool
	// Alternative is the tail to switch to when no retry is granted; nil
	// means the run must abort.
	Alternative []core.Phase
}

// Limits bounds the machine.
type Limits struct {
	// PhaseRetries is the number of same-phase retries granted before the
	// alternative path is consulted.
	PhaseRetries int
}

// Start returns the initial step for a phase list.
func Start(phases []core.Phase) Step {
	return advance(phases)
}

// Transition computes the next step. It is a pure function; invalid
// (step, event) pairs return the unchanged step and a state error.
func Transition(s Step, ev Event, lim Limits) (Step, error) {
	switch s.Kind {
	case StepRunning, StepRetrying:
		switch ev.Kind {
		case EventSucceeded:
			return advance(s.Remaining), nil
		case EventFailed:
			if ev.Retryable && s.Attempt < lim.PhaseRetries {
				return Step{
					Kind:      StepRetrying,
					Phase:     s.Phase,
					Remaining: s.Remaining,
					Attempt:   s.Attempt + 1,
				}, nil
			}
			if len(ev.Alternative) > 0 {
				return Step{
					Kind:      StepRerouted,
					Phase:     s.Phase,
					Remaining: append([]core.Phase(nil), ev.Alternative...),
				}, nil
			}
			return Step{Kind: StepAborted, Phase: s.Phase}, nil
		}
	case StepRerouted:
		if ev.Kind == EventContinue {
			return advance(s.Remaining), nil
		}
	}
	return s, core.ErrState("INVALID_TRANSITION",
		fmt.Sprintf("no transition from %s on %s", s, ev.Kind))
}

func advance(phases []core.Phase) Step {
	if len(phases) == 0 {
		return Step{Kind: StepSucceeded}
	}
	return Step{
		Kind:      StepRunning,
		Phase:     phases[0],
		Remaining: phases[1:],
	}
}
