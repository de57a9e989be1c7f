package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is a temporary directory owned by one run.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh directory under parent, or under the system
// temporary directory when parent is empty.
func NewWorkspace(parent string) (*Workspace, error) {
	dir, err := os.MkdirTemp(parent, "kokoro-say-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the audio file path for a 1-based segment index.
func (w *Workspace) Path(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("segment-%04d.wav", index))
}

// Discard deletes one file. Missing files are not an error.
func (w *Workspace) Discard(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Remove deletes the directory and everything in it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}
