package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// DefaultMaxConcurrent is the default number of tasks in flight.
const DefaultMaxConcurrent = 3

// phaseDependencies lists, per phase, the phases it must follow.
var phaseDependencies = map[core.Phase][]core.Phase{
	core.PhasePlanning:    {core.PhaseAnalysis},
	core.PhaseCoding:      {core.PhasePlanning},
	core.PhaseTesting:     {core.PhaseCoding},
	core.PhaseReview:      {core.PhaseCoding},
	core.PhaseGitOps:      {core.PhaseTesting, core.PhaseReview},
	core.PhaseExplanation: {},
}

// ParallelTask is one independent unit of work.
type ParallelTask[T any] func(ctx context.Context) (T, error)

// ParallelExecutor runs independent work with bounded concurrency.
type ParallelExecutor struct {
	maxConcurrent int
}

// NewParallelExecutor creates an executor. Non-positive limits use the default.
func NewParallelExecutor(maxConcurrent int) *ParallelExecutor {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &ParallelExecutor{maxConcurrent: maxConcurrent}
}

// MaxConcurrent returns the concurrency limit.
func (p *ParallelExecutor) MaxConcurrent() int {
	return p.maxConcurrent
}

// CanParallelize reports whether b may run alongside a, i.e. b does not
// depend on a. Advisory only; the default driver is sequential.
func (p *ParallelExecutor) CanParallelize(a, b core.Phase) bool {
	return CanParallelize(a, b)
}

// CanParallelize reports whether phase b is free of a declared dependency on a.
func CanParallelize(a, b core.Phase) bool {
	for _, dep := range phaseDependencies[b] {
		if dep == a {
			return false
		}
	}
	return true
}

// ExecuteParallel runs every task with at most maxConcurrent in flight and
// returns results in input order. A failing task does not cancel the others;
// the aggregate error is reported once all tasks have resolved.
func ExecuteParallel[T any](ctx context.Context, tasks []ParallelTask[T], maxConcurrent int) ([]T, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	results := make([]T, len(tasks))
	errs := make([]error, len(tasks))
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				return nil
			}
			defer sem.Release(1)
			results[i], errs[i] = runTask(ctx, i, task)
			return nil
		})
	}
	_ = g.Wait()

	failed := &ParallelError{Errors: errs}
	if failed.Count() > 0 {
		return results, failed
	}
	return results, nil
}

func runTask[T any](ctx context.Context, index int, task ParallelTask[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.ErrExecution("TASK_PANIC", fmt.Sprintf("task %d panicked: %v", index, r))
		}
	}()
	return task(ctx)
}

// ParallelError aggregates task failures. Errors is indexed like the input
// tasks; successful tasks have a nil entry.
type ParallelError struct {
	Errors []error
}

// Count returns the number of failed tasks.
func (e *ParallelError) Count() int {
	n := 0
	for _, err := range e.Errors {
		if err != nil {
			n++
		}
	}
	return n
}

func (e *ParallelError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for i, err := range e.Errors {
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("task %d: %v", i, err))
		}
	}
	return fmt.Sprintf("%d of %d tasks failed: %s", len(msgs), len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *ParallelError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
