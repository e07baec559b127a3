package workbench

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a private directory for the intermediate files of one run.
// Every path it hands out is unique, so concurrent runs never share
// intermediate files.
type Workspace struct {
	dir string
}

// NewWorkspace creates a run directory under base. An empty base uses the
// system temporary directory.
func NewWorkspace(base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "ciftiroi-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns a new unique file path ending in suffix, e.g.
// ".label.gii". The file is not created.
func (w *Workspace) Path(suffix string) string {
	return filepath.Join(w.dir, uuid.NewString()+suffix)
}

// Remove deletes a file created inside the workspace. Missing files are
// not an error.
func (w *Workspace) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close removes the workspace and everything left in it
func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}
