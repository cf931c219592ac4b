package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// Outcome is one scripted response of a MockExecutor.
type Outcome struct {
	Result core.PhaseResult
	Err    error
}

// MockExecutor implements core.PhaseExecutor with scripted outcomes.
// Outcomes are consumed in order; once exhausted every call succeeds with
// {"<phase>": "ok"}.
type MockExecutor struct {
	mu       sync.Mutex
	phase    core.Phase
	outcomes []Outcome
	fn       core.PhaseExecutorFunc
	inputs   []core.PhaseInput
}

// NewMockExecutor creates a mock executor for phase.
func NewMockExecutor(phase core.Phase) *MockExecutor {
	return &MockExecutor{phase: phase}
}

// Execute records in and returns the next scripted outcome.
func (m *MockExecutor) Execute(ctx context.Context, in core.PhaseInput) (core.PhaseResult, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	fn := m.fn
	next := Outcome{Result: core.PhaseResult{string(m.phase): "ok"}}
	if len(m.outcomes) > 0 {
		next, m.outcomes = m.outcomes[0], m.outcomes[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, in)
	}
	return next.Result, next.Err
}

// FailTimes queues n failures with err.
func (m *MockExecutor) FailTimes(n int, err error) *MockExecutor {
	for i := 0; i < n; i++ {
		m.queue(Outcome{Err: err})
	}
	return m
}

// ThenReturn queues a successful result.
func (m *MockExecutor) ThenReturn(r core.PhaseResult) *MockExecutor {
	return m.queue(Outcome{Result: r})
}

func (m *MockExecutor) queue(o Outcome) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return m
}

// WithExecuteFunc makes every call delegate to fn.
func (m *MockExecutor) WithExecuteFunc(fn core.PhaseExecutorFunc) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Inputs returns every recorded input, oldest first.
func (m *MockExecutor) Inputs() []core.PhaseInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.PhaseInput(nil), m.inputs...)
}

// CallCount returns the number of Execute calls.
func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// LastInput returns the input of the most recent call.
func (m *MockExecutor) LastInput() (core.PhaseInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return core.PhaseInput{}, false
	}
	return m.inputs[len(m.inputs)-1], true
}

// MemoryStore implements core.CheckpointStore in memory. Every save is kept
// so tests can inspect the checkpoint history.
type MemoryStore struct {
	mu      sync.Mutex
	records map[core.SessionID]*core.WorkflowState
	history []*core.WorkflowState
	saveErr error
	loadErr error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[core.SessionID]*core.WorkflowState)}
}

// Save stores a copy of state.
func (s *MemoryStore) Save(_ context.Context, state *core.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	c := state.Clone()
	s.records[state.SessionID] = c
	s.history = append(s.history, c.Clone())
	return nil
}

// Load returns a copy of the stored state, or nil when absent.
func (s *MemoryStore) Load(_ context.Context, id core.SessionID) (*core.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	st, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

// List returns summaries, newest first.
func (s *MemoryStore) List(_ context.Context) ([]core.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SessionSummary, 0, len(s.records))
	for _, st := range s.records {
		out = append(out, st.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

// Put seeds the store without recording history.
func (s *MemoryStore) Put(state *core.WorkflowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[state.SessionID] = state.Clone()
}

// History returns every saved copy, oldest first.
func (s *MemoryStore) History() []*core.WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*core.WorkflowState(nil), s.history...)
}

// SaveCount returns the number of successful saves.
func (s *MemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// WithSaveError makes every Save fail with err.
func (s *MemoryStore) WithSaveError(err error) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
	return s
}

// WithLoadError makes every Load fail with err.
func (s *MemoryStore) WithLoadError(err error) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
	return s
}
