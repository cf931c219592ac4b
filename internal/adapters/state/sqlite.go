package state

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const sessionColumns = `session_id, prompt, workspace, complexity, current_phase, results,
	start_time, end_time, retry_count, errors, success, checksum`

// SQLiteStore implements core.CheckpointStore with one row per session.
type SQLiteStore struct {
	path string
	db   *sql.DB
	mu   sync.Mutex // serializes writers
}

// NewSQLiteStore opens the database at path, creating it and its
// directory when missing, and applies pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		return nil, errors.Join(fmt.Errorf("migrating %s: %w", path, err), db.Close())
	}
	return &SQLiteStore{path: path, db: db}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies every migrations/NNN_*.sql file newer than the recorded
// schema version, in name order. Each file records its own version.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		current = 0 // first run: the table does not exist yet
	}

	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(path.Base(name), "%d_", &version); err != nil {
			return fmt.Errorf("migration %s: bad name", name)
		}
		if version <= current {
			continue
		}
		script, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(script)); err != nil {
			return fmt.Errorf("applying %s: %w", path.Base(name), err)
		}
	}
	return nil
}

// Save upserts the session row.
func (s *SQLiteStore) Save(ctx context.Context, state *core.WorkflowState) error {
	env, err := newEnvelope(state)
	if err != nil {
		return err
	}
	rec := env.Record

	resultsJSON, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	errorsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("marshaling errors: %w", err)
	}

	var endTime sql.NullString
	if rec.EndTime != nil {
		endTime = sql.NullString{String: *rec.EndTime, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, prompt, workspace, complexity, current_phase, results,
			start_time, end_time, retry_count, errors, success, checksum, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			prompt = excluded.prompt,
			workspace = excluded.workspace,
			complexity = excluded.complexity,
			current_phase = excluded.current_phase,
			results = excluded.results,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			retry_count = excluded.retry_count,
			errors = excluded.errors,
			success = excluded.success,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
	`,
		rec.SessionID, rec.Prompt, rec.Workspace, rec.Complexity, rec.CurrentPhase,
		string(resultsJSON), rec.StartTime, endTime, rec.RetryCount,
		string(errorsJSON), boolToInt(rec.Success), env.Checksum,
		env.UpdatedAt.Format(core.TimestampLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Load returns the session, or nil when it does not exist.
func (s *SQLiteStore) Load(ctx context.Context, id core.SessionID) (*core.WorkflowState, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, string(id))

	env, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return env.verify()
}

// List returns summaries of all sessions, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]core.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	out := make([]core.SessionSummary, 0)
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		state, err := env.verify()
		if err != nil {
			// Corrupted rows are skipped so one bad session cannot hide the rest.
			continue
		}
		out = append(out, state.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	// Stored timestamps carry offsets, so order on parsed values.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row rowScanner) (checkpointEnvelope, error) {
	var (
		rec         core.CheckpointRecord
		resultsJSON string
		errorsJSON  string
		endTime     sql.NullString
		success     int
		sum         string
	)
	err := row.Scan(
		&rec.SessionID, &rec.Prompt, &rec.Workspace, &rec.Complexity, &rec.CurrentPhase,
		&resultsJSON, &rec.StartTime, &endTime, &rec.RetryCount, &errorsJSON, &success, &sum,
	)
	if err != nil {
		return checkpointEnvelope{}, err
	}

	if err := json.Unmarshal([]byte(resultsJSON), &rec.Results); err != nil {
		return checkpointEnvelope{}, core.ErrState(core.CodeStateCorrupted, "malformed results column").WithCause(err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &rec.Errors); err != nil {
		return checkpointEnvelope{}, core.ErrState(core.CodeStateCorrupted, "malformed errors column").WithCause(err)
	}
	if endTime.Valid {
		end := endTime.String
		rec.EndTime = &end
	}
	rec.Success = success != 0

	return checkpointEnvelope{
		Version:  envelopeVersion,
		Checksum: sum,
		Record:   rec,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ core.CheckpointStore = (*SQLiteStore)(nil)
