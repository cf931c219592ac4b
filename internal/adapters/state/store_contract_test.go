package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

func newTestState(id string) *core.WorkflowState {
	s := core.NewWorkflowState(core.SessionID(id), "Add a hello world function", "/tmp/ws")
	s.StartTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.Complexity = core.ComplexitySimple
	s.CurrentPhase = core.PhaseCoding
	s.SetResult(core.PhaseAnalysis, core.PhaseResult{"has_tests": false, "file_count": 3})
	s.SetResult(core.PhasePlanning, core.PhaseResult{"plan": "write hello.go", "steps": []interface{}{"a", "b"}})
	s.RetryCount = 1
	s.Errors = []string{"coding: flaky"}
	return s
}

// runStoreContract exercises the behavior every CheckpointStore shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) core.CheckpointStore) {
	t.Run("load missing returns nil", func(t *testing.T) {
		store := newStore(t)
		got, err := store.Load(context.Background(), "s-missing")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Fatalf("Load() = %+v, want nil", got)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		want := newTestState("s-roundtrip")

		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := store.Load(ctx, want.SessionID)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got == nil {
			t.Fatal("Load() returned nil")
		}

		if got.SessionID != want.SessionID || got.Prompt != want.Prompt || got.Workspace != want.Workspace {
			t.Errorf("identity mismatch: got %+v", got)
		}
		if got.Complexity != core.ComplexitySimple || got.CurrentPhase != core.PhaseCoding {
			t.Errorf("complexity/phase = %s/%s", got.Complexity, got.CurrentPhase)
		}
		if !got.StartTime.Equal(want.StartTime) {
			t.Errorf("StartTime = %v, want %v", got.StartTime, want.StartTime)
		}
		if got.EndTime != nil {
			t.Errorf("EndTime = %v, want nil", got.EndTime)
		}
		if got.RetryCount != 1 || len(got.Errors) != 1 || got.Errors[0] != "coding: flaky" {
			t.Errorf("retry/errors = %d/%v", got.RetryCount, got.Errors)
		}
		plan, ok := got.Result(core.PhasePlanning)
		if !ok || plan["plan"] != "write hello.go" {
			t.Errorf("planning result = %v", plan)
		}
		analysis, _ := got.Result(core.PhaseAnalysis)
		// JSON numbers decode as float64.
		if analysis["file_count"] != float64(3) {
			t.Errorf("file_count = %#v", analysis["file_count"])
		}
	})

	t.Run("round trip with lossy encodings", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		s := newTestState("s-lossy")
		s.Prompt = "fix caf\xe9 typo"
		s.SetResult(core.PhaseGitOps, core.PhaseResult{"pr_id": int64(9007199254740993)})

		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := store.Load(ctx, s.SessionID)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got == nil {
			t.Fatal("Load() returned nil")
		}
		if got.Prompt != "fix caf\uFFFD typo" {
			t.Errorf("Prompt = %q", got.Prompt)
		}
		gitops, _ := got.Result(core.PhaseGitOps)
		if gitops["pr_id"] != float64(9007199254740993) {
			t.Errorf("pr_id = %#v", gitops["pr_id"])
		}

		// Saving the loaded state again must stay loadable.
		if err := store.Save(ctx, got); err != nil {
			t.Fatalf("second Save() error = %v", err)
		}
		if _, err := store.Load(ctx, s.SessionID); err != nil {
			t.Fatalf("second Load() error = %v", err)
		}

		list, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 1 || list[0].SessionID != s.SessionID {
			t.Errorf("List() = %+v, want the lossy session", list)
		}
	})

	t.Run("overwrite keeps one record", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		s := newTestState("s-overwrite")

		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		s.CurrentPhase = core.PhaseGitOps
		s.Finish(true, s.StartTime.Add(90*time.Second))
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load(ctx, s.SessionID)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !got.Success || got.CurrentPhase != core.PhaseGitOps {
			t.Errorf("got success=%v phase=%s", got.Success, got.CurrentPhase)
		}
		if got.EndTime == nil || got.Duration() != 90*time.Second {
			t.Errorf("Duration() = %v", got.Duration())
		}

		list, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 1 {
			t.Errorf("List() len = %d, want 1", len(list))
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"s-old", "s-new", "s-mid"} {
			s := newTestState(id)
			s.StartTime = base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
			if err := store.Save(ctx, s); err != nil {
				t.Fatalf("Save(%s) error = %v", id, err)
			}
		}

		list, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		var got []core.SessionID
		for _, s := range list {
			got = append(got, s.SessionID)
		}
		want := []core.SessionID{"s-new", "s-mid", "s-old"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("List() order = %v, want %v", got, want)
		}
		if list[0].ErrorCount != 1 || list[0].RetryCount != 1 {
			t.Errorf("summary = %+v", list[0])
		}
	})

	t.Run("list empty", func(t *testing.T) {
		list, err := newStore(t).List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 0 {
			t.Errorf("List() = %v, want empty", list)
		}
	})

	t.Run("concurrent sessions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 4; i++ {
			id := fmt.Sprintf("s-concurrent-%d", i)
			wg.Add(1)
			go func() {
				defer wg.Done()
				s := newTestState(id)
				for n := 0; n < 10; n++ {
					s.RetryCount = n
					if err := store.Save(ctx, s); err != nil {
						errs <- err
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("Save() error = %v", err)
		}

		for i := 0; i < 4; i++ {
			got, err := store.Load(ctx, core.SessionID(fmt.Sprintf("s-concurrent-%d", i)))
			if err != nil || got == nil {
				t.Fatalf("Load() = %v, %v", got, err)
			}
			if got.RetryCount != 9 {
				t.Errorf("RetryCount = %d, want 9", got.RetryCount)
			}
		}
	})
}

func TestJSONStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) core.CheckpointStore {
		return NewJSONStore(t.TempDir())
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) core.CheckpointStore {
		store, err := NewSQLiteStore(t.TempDir() + "/checkpoints.db")
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestStores_HonorCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewJSONStore(t.TempDir()).Save(ctx, newTestState("s-canceled"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}
