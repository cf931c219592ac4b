package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Workspace is a throwaway source tree for repository analysis tests.
type Workspace struct {
	Root string
	t    testing.TB
}

// NewWorkspace creates an empty workspace under t.TempDir().
func NewWorkspace(t testing.TB) *Workspace {
	t.Helper()
	return &Workspace{Root: t.TempDir(), t: t}
}

// Path joins a slash-separated name onto Root.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Root, filepath.FromSlash(name))
}

// WriteFile creates name with content, making parent directories as needed.
func (w *Workspace) WriteFile(name, content string) *Workspace {
	w.t.Helper()
	path := w.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		w.t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		w.t.Fatalf("write %s: %v", path, err)
	}
	return w
}

// Mkdir creates a directory.
func (w *Workspace) Mkdir(name string) *Workspace {
	w.t.Helper()
	if err := os.MkdirAll(w.Path(name), 0o755); err != nil {
		w.t.Fatalf("mkdir %s: %v", name, err)
	}
	return w
}

// SourceFiles writes n Go files under src/.
func (w *Workspace) SourceFiles(n int) *Workspace {
	w.t.Helper()
	for i := 0; i < n; i++ {
		w.WriteFile(fmt.Sprintf("src/file%d.go", i), "package src\n")
	}
	return w
}
