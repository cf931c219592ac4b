package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/fsutil"
)

const (
	checkpointExt = ".json"
	backupExt     = ".bak"
)

// JSONStore implements core.CheckpointStore with one JSON document per
// session under a directory. Writes to the same session are serialized;
// writes to different sessions proceed independently.
type JSONStore struct {
	dir   string
	mu    sync.Mutex
	locks map[core.SessionID]*sync.Mutex
}

// NewJSONStore creates a store rooted at dir. The directory is created on
// first write.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{
		dir:   dir,
		locks: make(map[core.SessionID]*sync.Mutex),
	}
}

// Dir returns the checkpoint directory.
func (s *JSONStore) Dir() string {
	return s.dir
}

func (s *JSONStore) lockFor(id core.SessionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *JSONStore) path(id core.SessionID) string {
	return filepath.Join(s.dir, string(id)+checkpointExt)
}

// Save writes the session document atomically, keeping the previous
// version as a backup.
func (s *JSONStore) Save(ctx context.Context, state *core.WorkflowState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateSessionID(state.SessionID); err != nil {
		return err
	}

	l := s.lockFor(state.SessionID)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	env, err := newEnvelope(state)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	path := s.path(state.SessionID)
	if prev, err := fsutil.ReadFileScoped(path); err == nil {
		if err := fsutil.WriteFileAtomic(path+backupExt, prev, 0o644); err != nil {
			return fmt.Errorf("writing checkpoint backup: %w", err)
		}
	}

	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// Load returns the session, falling back to the backup when the primary
// document is unreadable. A missing session yields nil, nil.
func (s *JSONStore) Load(ctx context.Context, id core.SessionID) (*core.WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateSessionID(id); err != nil {
		return nil, err
	}

	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	path := s.path(id)
	state, err := loadDocument(path)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	backup, backupErr := loadDocument(path + backupExt)
	if backupErr != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w (backup also failed: %v)", id, err, backupErr)
	}
	return backup, nil
}

// List returns summaries of every readable session, newest first.
func (s *JSONStore) List(ctx context.Context) ([]core.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []core.SessionSummary{}, nil
		}
		return nil, fmt.Errorf("reading checkpoint directory: %w", err)
	}

	out := make([]core.SessionSummary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), checkpointExt) {
			continue
		}
		id := core.SessionID(strings.TrimSuffix(e.Name(), checkpointExt))
		state, err := s.Load(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Unreadable sessions are skipped so one bad file cannot hide the rest.
			continue
		}
		if state != nil {
			out = append(out, state.Summary())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func loadDocument(path string) (*core.WorkflowState, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, err
	}
	var env checkpointEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted, "malformed checkpoint document").WithCause(err)
	}
	return env.verify()
}

var _ core.CheckpointStore = (*JSONStore)(nil)
