// Package workflow drives a task through its routed phases: it resolves or
// creates run state, executes each phase's collaborator, applies retry and
// reroute recovery, and checkpoints after every attempt.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/events"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
	"github.com/hugo-lorenzo-mato/helix/internal/service"
)

// DefaultPhaseRetries is the number of same-phase retries before the
// alternative path is consulted.
const DefaultPhaseRetries = 1

// Request describes one run for ExecuteBatch.
type Request struct {
	Prompt    string
	Workspace string
	SessionID core.SessionID
}

// Orchestrator is the top-level workflow driver. One Orchestrator may serve
// many concurrent sessions; each run owns its own WorkflowState.
type Orchestrator struct {
	router       *service.Router
	recovery     *service.ErrorRecovery
	checkpoints  *service.CheckpointManager
	registry     *PhaseRegistry
	parallel     *service.ParallelExecutor
	bus          *events.EventBus
	metrics      *service.Metrics
	logger       *logging.Logger
	phaseRetries int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEventBus publishes lifecycle events to bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *service.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRecovery replaces the default recovery policy.
func WithRecovery(r *service.ErrorRecovery) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recovery = r
		}
	}
}

// WithPhaseRetries sets the same-phase retry budget.
func WithPhaseRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.phaseRetries = n
		}
	}
}

// WithMaxConcurrent bounds the sessions ExecuteBatch runs at once.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) { o.parallel = service.NewParallelExecutor(n) }
}

// New creates an orchestrator over a checkpoint store and phase bindings.
func New(store core.CheckpointStore, registry *PhaseRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recovery:     service.NewErrorRecovery(),
		registry:     registry,
		parallel:     service.NewParallelExecutor(service.DefaultMaxConcurrent),
		logger:       logging.NewNop(),
		phaseRetries: DefaultPhaseRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.router = service.NewRouter(o.logger)
	o.checkpoints = service.NewCheckpointManager(store, o.logger, o.metrics)
	return o
}

// Execute runs a task to completion. When sessionID names an existing
// checkpoint the run resumes from it; otherwise a new session is created.
//
// Phase failures never surface as errors: they are recorded in the returned
// state's Errors and Success fields. Execute returns an error only for
// configuration problems (unroutable tier, missing phase binding), invalid
// input, an unreadable checkpoint, or cancellation of ctx. On cancellation
// the terminated state is returned alongside ctx.Err(). A collaborator that
// reports a configuration error stops the run at once: the state is
// checkpointed unterminated, without an error entry, and returned with that
// error.
func (o *Orchestrator) Execute(ctx context.Context, prompt, workspace string, sessionID core.SessionID) (*core.WorkflowState, error) {
	state, resumed, err := o.resolveState(ctx, prompt, workspace, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Terminated() {
		o.logger.Info("session already finished", "session_id", state.SessionID, "success", state.Success)
		return state, nil
	}

	log := o.logger.WithSession(string(state.SessionID))

	analysis := o.router.AnalyzeRepository(state.Workspace)
	state.SetResult(core.PhaseAnalysis, analysis.Result())
	if !resumed {
		state.Complexity = o.router.DetermineComplexity(state.Prompt, analysis)
	}

	route, err := service.RouteFor(state.Complexity)
	if err != nil {
		return nil, err
	}
	if err := o.registry.Validate(route); err != nil {
		return nil, err
	}

	phases := route
	if resumed {
		phases = service.ResumePhases(route, state, func(p core.Phase) []core.Phase {
			return o.recovery.AlternativePath(p, state.Complexity)
		})
		if err := o.registry.Validate(phases); err != nil {
			return nil, err
		}
	}

	log.Info("workflow started",
		"resumed", resumed,
		"complexity", state.Complexity,
		"complexity_score", analysis.ComplexityScore,
		"phases", phaseNames(phases),
	)
	o.publish(events.NewWorkflowStartedEvent(string(state.SessionID), state.Prompt,
		string(state.Complexity), phaseNames(phases), resumed))

	return o.drive(ctx, state, phases, log)
}

// Resume continues a checkpointed session. A missing session is a not-found
// error.
func (o *Orchestrator) Resume(ctx context.Context, id core.SessionID) (*core.WorkflowState, error) {
	existing, err := o.checkpoints.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, core.ErrNotFound("session", string(id))
	}
	return o.Execute(ctx, existing.Prompt, existing.Workspace, id)
}

// ExecuteBatch runs independent sessions concurrently, bounded by the
// configured concurrency. States are returned in request order; a failed
// request leaves its error in the returned *service.ParallelError.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, reqs []Request) ([]*core.WorkflowState, error) {
	tasks := make([]service.ParallelTask[*core.WorkflowState], len(reqs))
	for i, req := range reqs {
		tasks[i] = func(ctx context.Context) (*core.WorkflowState, error) {
			return o.Execute(ctx, req.Prompt, req.Workspace, req.SessionID)
		}
	}
	o.logger.Info("batch started", "sessions", len(reqs), "max_concurrent", o.parallel.MaxConcurrent())
	return service.ExecuteParallel(ctx, tasks, o.parallel.MaxConcurrent())
}

// List returns stored session summaries, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]core.SessionSummary, error) {
	return o.checkpoints.List(ctx)
}

// Load returns a stored session, or nil when it does not exist.
func (o *Orchestrator) Load(ctx context.Context, id core.SessionID) (*core.WorkflowState, error) {
	return o.checkpoints.Load(ctx, id)
}

func (o *Orchestrator) resolveState(ctx context.Context, prompt, workspace string, id core.SessionID) (*core.WorkflowState, bool, error) {
	if id != "" {
		existing, err := o.checkpoints.Load(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
		o.logger.Info("no checkpoint for session, starting fresh", "requested_session_id", id)
	}

	if err := validatePrompt(prompt); err != nil {
		return nil, false, err
	}
	return core.NewWorkflowState(core.NewSessionID(), prompt, workspace), false, nil
}

func validatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return core.ErrValidation(core.CodeEmptyPrompt, "prompt cannot be empty")
	}
	if len(prompt) > core.MaxPromptLength {
		return core.ErrValidation(core.CodePromptTooLong,
			fmt.Sprintf("prompt exceeds maximum length of %d characters", core.MaxPromptLength))
	}
	return nil
}

// drive runs the state machine until a terminal step.
func (o *Orchestrator) drive(ctx context.Context, state *core.WorkflowState, phases []core.Phase, log *logging.Logger) (*core.WorkflowState, error) {
	limits := Limits{PhaseRetries: o.phaseRetries}
	rerouted := false
	step := Start(phases)

	for !step.Terminal() {
		if step.Kind == StepRerouted {
			if err := o.registry.Validate(step.Remaining); err != nil {
				return state, err
			}
			next, err := Transition(step, Event{Kind: EventContinue}, limits)
			if err != nil {
				return state, err
			}
			step = next
			continue
		}

		if err := ctx.Err(); err != nil {
			return o.cancel(ctx, state, step.Phase, err, log)
		}

		if step.Kind == StepRetrying {
			state.RetryCount++
			delay := o.recovery.RetryDelay(state.RetryCount)
			o.metrics.RecordRetry(step.Phase)
			log.Info("retrying phase",
				"phase", step.Phase,
				"retry_count", state.RetryCount,
				"delay", delay,
			)
			o.publish(events.NewPhaseRetryingEvent(string(state.SessionID), string(step.Phase), state.RetryCount, delay))
			if err := service.Sleep(ctx, delay); err != nil {
				return o.cancel(ctx, state, step.Phase, err, log)
			}
		}

		attemptErr := o.attempt(ctx, state, step, log)
		if attemptErr != nil && ctx.Err() != nil {
			return o.cancel(ctx, state, step.Phase, ctx.Err(), log)
		}
		if core.IsConfiguration(attemptErr) {
			o.metrics.RecordRun(service.OutcomeMisconfigured)
			return state, attemptErr
		}

		ev := Event{Kind: EventSucceeded}
		if attemptErr != nil {
			ev = Event{
				Kind:        EventFailed,
				Retryable:   o.recovery.ShouldRetry(attemptErr, state.RetryCount, step.Phase),
				Alternative: o.recovery.AlternativePath(step.Phase, state.Complexity),
			}
		}

		next, err := Transition(step, ev, limits)
		if err != nil {
			return state, err
		}

		switch next.Kind {
		case StepRerouted:
			rerouted = true
			o.metrics.RecordReroute(step.Phase)
			log.Warn("rerouting workflow",
				"failed_phase", step.Phase,
				"new_tail", phaseNames(next.Remaining),
			)
			o.publish(events.NewWorkflowReroutedEvent(string(state.SessionID), string(step.Phase), phaseNames(next.Remaining)))
		case StepAborted:
			return o.abort(ctx, state, next.Phase, log), nil
		}
		step = next
	}

	return o.complete(ctx, state, rerouted, log), nil
}

// attempt runs one collaborator call for step.Phase and checkpoints the
// outcome.
func (o *Orchestrator) attempt(ctx context.Context, state *core.WorkflowState, step Step, log *logging.Logger) error {
	phase := step.Phase
	state.CurrentPhase = phase

	exec, err := o.registry.Get(phase)
	if err != nil {
		return err
	}

	log.Info("phase started", "phase", phase, "attempt", step.Attempt+1)
	o.publish(events.NewPhaseStartedEvent(string(state.SessionID), string(phase), step.Attempt+1))

	in := core.PhaseInput{
		SessionID:  state.SessionID,
		Phase:      phase,
		Prompt:     state.Prompt,
		Workspace:  state.Workspace,
		Complexity: state.Complexity,
		Results:    state.Clone().Results,
	}

	started := time.Now()
	result, execErr := exec.Execute(ctx, in)
	elapsed := time.Since(started)
	o.metrics.RecordAttempt(phase, elapsed, execErr)

	if execErr == nil {
		if result == nil {
			result = core.PhaseResult{}
		}
		state.SetResult(phase, result)
		log.Info("phase completed", "phase", phase, "duration", elapsed)
		o.publish(events.NewPhaseCompletedEvent(string(state.SessionID), string(phase), elapsed))
	} else if core.IsConfiguration(execErr) {
		// The run stays resumable once the configuration is fixed.
		log.Error("phase misconfigured", "phase", phase, "error", execErr)
	} else if ctx.Err() == nil {
		state.RecordError(phase, execErr)
		log.Warn("phase failed",
			"phase", phase,
			"class", core.ClassifyFailure(execErr),
			"error", execErr,
		)
		o.publish(events.NewPhaseFailedEvent(string(state.SessionID), string(phase), execErr,
			core.ClassifyFailure(execErr) == core.FailureTransient))
	}

	// Failures to checkpoint are logged and counted; the run continues.
	_ = o.checkpoints.Checkpoint(ctx, state)
	return execErr
}

func (o *Orchestrator) complete(ctx context.Context, state *core.WorkflowState, rerouted bool, log *logging.Logger) *core.WorkflowState {
	state.Finish(true, time.Now())
	_ = o.checkpoints.Checkpoint(ctx, state)

	outcome := service.OutcomeSucceeded
	if rerouted {
		outcome = service.OutcomeRerouted
	}
	o.metrics.RecordRun(outcome)

	log.Info("workflow completed",
		"rerouted", rerouted,
		"retry_count", state.RetryCount,
		"errors", len(state.Errors),
		"duration", state.Duration(),
	)
	o.publish(events.NewWorkflowCompletedEvent(string(state.SessionID), state.Duration(),
		state.RetryCount, len(state.Errors)))
	return state
}

func (o *Orchestrator) abort(ctx context.Context, state *core.WorkflowState, failed core.Phase, log *logging.Logger) *core.WorkflowState {
	state.Finish(false, time.Now())
	_ = o.checkpoints.Checkpoint(ctx, state)
	o.metrics.RecordRun(service.OutcomeAborted)

	reason := core.ErrUnrecoverable(failed)
	log.Error("workflow aborted", "phase", failed, "error", reason)
	o.publish(events.NewWorkflowAbortedEvent(string(state.SessionID), string(failed), reason.Message))
	return state
}

func (o *Orchestrator) cancel(ctx context.Context, state *core.WorkflowState, phase core.Phase, cause error, log *logging.Logger) (*core.WorkflowState, error) {
	state.RecordError(phase, cause)
	state.Finish(false, time.Now())
	_ = o.checkpoints.Checkpoint(ctx, state)
	o.metrics.RecordRun(service.OutcomeCanceled)

	log.Warn("workflow canceled", "phase", phase, "error", cause)
	o.publish(events.NewWorkflowAbortedEvent(string(state.SessionID), string(phase), cause.Error()))

	if errors.Is(cause, context.DeadlineExceeded) {
		return state, context.DeadlineExceeded
	}
	return state, context.Canceled
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func phaseNames(phases []core.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}
