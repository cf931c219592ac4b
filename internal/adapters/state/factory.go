package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// Supported backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// sqliteFile is the database name used when the configured path is a
// directory.
const sqliteFile = "checkpoints.db"

// NewStore creates the checkpoint store for backend at path. For the JSON
// backend path is the checkpoint directory; for SQLite it is the database
// file, or a directory that will hold checkpoints.db.
func NewStore(backend, path string) (core.CheckpointStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSON:
		return NewJSONStore(path), nil
	case BackendSQLite:
		if filepath.Ext(path) != ".db" {
			path = filepath.Join(path, sqliteFile)
		}
		return NewSQLiteStore(path)
	default:
		return nil, core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("unknown state backend %q (expected json or sqlite)", backend))
	}
}

// Closeable is implemented by stores that hold resources.
type Closeable interface {
	Close() error
}

// CloseStore closes store if it holds resources.
func CloseStore(store core.CheckpointStore) error {
	if c, ok := store.(Closeable); ok {
		return c.Close()
	}
	return nil
}
