package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// PhaseRegistry binds one executor to each phase name.
type PhaseRegistry struct {
	mu        sync.RWMutex
	executors map[core.Phase]core.PhaseExecutor
}

// NewPhaseRegistry creates an empty registry.
func NewPhaseRegistry() *PhaseRegistry {
	return &PhaseRegistry{executors: make(map[core.Phase]core.PhaseExecutor)}
}

// Register binds exec to phase, replacing any previous binding.
func (r *PhaseRegistry) Register(phase core.Phase, exec core.PhaseExecutor) error {
	if !core.ValidPhase(phase) {
		return core.ErrConfiguration(core.CodeUnknownPhase, fmt.Sprintf("unknown phase %q", phase))
	}
	if exec == nil {
		return core.ErrConfiguration(core.CodeMissingExecutor, fmt.Sprintf("nil executor for %s", phase))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[phase] = exec
	return nil
}

// RegisterAll binds factory(p) to every phase p.
func (r *PhaseRegistry) RegisterAll(factory func(core.Phase) core.PhaseExecutor) error {
	for _, p := range core.AllPhases() {
		if err := r.Register(p, factory(p)); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the executor bound to phase.
func (r *PhaseRegistry) Get(phase core.Phase) (core.PhaseExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[phase]
	if !ok {
		return nil, core.ErrConfiguration(core.CodeMissingExecutor,
			fmt.Sprintf("no executor bound to phase %s", phase))
	}
	return exec, nil
}

// Validate checks that every phase in phases has a binding.
func (r *PhaseRegistry) Validate(phases []core.Phase) error {
	for _, p := range phases {
		if _, err := r.Get(p); err != nil {
			return err
		}
	}
	return nil
}

// Phases returns the bound phases in canonical order.
func (r *PhaseRegistry) Phases() []core.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Phase, 0, len(r.executors))
	for p := range r.executors {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return core.PhaseOrder(out[i]) < core.PhaseOrder(out[j])
	})
	return out
}
