package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// Backoff computes exponential waits: Base · Factor^(n-1), capped at Max
// when Max is positive. Jitter spreads each wait by ±Jitter of its value.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff doubles from one second up to thirty, without jitter.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 30 * time.Second, Factor: 2}
}

// Delay returns the wait before retry n (1-based), ignoring Jitter.
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	factor := b.Factor
	if factor <= 0 {
		factor = 2
	}
	d := float64(b.Base)
	for i := 1; i < n; i++ {
		d *= factor
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

// Jittered returns Delay(n) spread by Jitter.
func (b Backoff) Jittered(n int) time.Duration {
	d := b.Delay(n)
	if b.Jitter <= 0 {
		return d
	}
	spread := float64(d) * b.Jitter
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc func(ctx context.Context) error

// RetryNotifyFunc is told about each failure that will be retried, before
// the wait.
type RetryNotifyFunc func(attempt int, err error, delay time.Duration)

// Retrier runs an operation until it succeeds, a failure is not worth
// retrying, or the attempts run out.
type Retrier struct {
	Attempts int
	Backoff  Backoff
	// RetryIf decides whether a failure is retried. Nil retries transient
	// failures only.
	RetryIf func(error) bool
	Notify  RetryNotifyFunc
}

// Do calls op. It returns nil on the first success, the failure itself
// when RetryIf rejects it, ctx.Err() when ctx ends first, and a
// RetryExhaustedError wrapping the last failure otherwise.
func (r Retrier) Do(ctx context.Context, op RetryableFunc) error {
	attempts := max(r.Attempts, 1)
	retryIf := r.RetryIf
	if retryIf == nil {
		retryIf = func(err error) bool { return core.ClassifyFailure(err) == core.FailureTransient }
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last = op(ctx); last == nil {
			return nil
		}
		if !retryIf(last) {
			return last
		}
		if attempt == attempts {
			break
		}

		delay := r.Backoff.Jittered(attempt)
		if r.Notify != nil {
			r.Notify(attempt, last, delay)
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return &RetryExhaustedError{Attempts: attempts, LastErr: last}
}

// Sleep waits for d or until ctx is done, whichever is first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryExhaustedError is returned when every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsRetryExhausted reports whether err is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var exhausted *RetryExhaustedError
	return errors.As(err, &exhausted)
}
