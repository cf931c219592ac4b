package service

import (
	"context"
	"errors"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// DefaultMaxRetries is the run-wide retry cap.
const DefaultMaxRetries = 3

// ErrorRecovery decides how a run reacts to a phase failure: retry the
// phase, switch to an alternative tail, or abort.
type ErrorRecovery struct {
	maxRetries int
	backoff    Backoff
}

// RecoveryOption configures ErrorRecovery.
type RecoveryOption func(*ErrorRecovery)

// WithRetryCap sets the run-wide retry cap.
func WithRetryCap(n int) RecoveryOption {
	return func(r *ErrorRecovery) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay unit and the delay ceiling.
func WithBackoff(base, max time.Duration) RecoveryOption {
	return func(r *ErrorRecovery) {
		r.backoff.Base = base
		r.backoff.Max = max
	}
}

// NewErrorRecovery creates a recovery policy.
func NewErrorRecovery(opts ...RecoveryOption) *ErrorRecovery {
	r := &ErrorRecovery{
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxRetries returns the run-wide retry cap.
func (r *ErrorRecovery) MaxRetries() int {
	return r.maxRetries
}

// ShouldRetry reports whether a failed phase may be attempted again given
// the run-wide retry count.
func (r *ErrorRecovery) ShouldRetry(err error, retryCount int, _ core.Phase) bool {
	if retryCount >= r.maxRetries {
		return false
	}
	return core.ClassifyFailure(err) != core.FailureNonRetryable
}

// AlternativePath returns the tail that replaces the remaining phases after
// failed could not be recovered, or nil when the run must abort.
func (r *ErrorRecovery) AlternativePath(failed core.Phase, _ core.Complexity) []core.Phase {
	switch failed {
	case core.PhaseTesting:
		// Degraded mode: skip tests, still review before publishing.
		return []core.Phase{core.PhaseReview, core.PhaseGitOps}
	case core.PhaseReview:
		return []core.Phase{core.PhaseGitOps}
	default:
		return nil
	}
}

// RetryDelay returns the wait before the retry numbered retryCount (1-based).
func (r *ErrorRecovery) RetryDelay(retryCount int) time.Duration {
	return r.backoff.Delay(retryCount)
}

// RetryWithBackoff invokes op up to maxRetries times in total, waiting
// 1, 2, 4, ... delay units between attempts. Every failure is retried and
// the last one is returned unwrapped when all attempts fail.
func (r *ErrorRecovery) RetryWithBackoff(ctx context.Context, op RetryableFunc, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	err := Retrier{
		Attempts: maxRetries,
		Backoff:  r.backoff,
		RetryIf:  func(error) bool { return true },
	}.Do(ctx, op)

	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.LastErr
	}
	return err
}
