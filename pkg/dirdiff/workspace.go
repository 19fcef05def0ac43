package dirdiff

import (
	"os"
	"path/filepath"
)

// Side names one of the two materialized trees.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Workspace is a private temporary directory holding the two trees and
// their side-scoped index files:
//
//	<root>/left/
//	<root>/right/
//	<root>/left.index
//	<root>/right.index
type Workspace struct {
	Root       string
	Left       string
	Right      string
	LeftIndex  string
	RightIndex string
}

// NewWorkspace creates a uniquely named workspace under tmpDir, or under
// the system temporary directory when tmpDir is empty.
func NewWorkspace(tmpDir string) (*Workspace, error) {
	root, err := os.MkdirTemp(tmpDir, "got-difftool.")
	if err != nil {
		return nil, &WorkspaceError{Op: "create", Path: tmpDir, Err: err}
	}
	// MkdirTemp may hand back a relative path; tools get absolute ones.
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	ws := &Workspace{
		Root:       root,
		Left:       filepath.Join(root, string(SideLeft)),
		Right:      filepath.Join(root, string(SideRight)),
		LeftIndex:  filepath.Join(root, string(SideLeft)+".index"),
		RightIndex: filepath.Join(root, string(SideRight)+".index"),
	}
	for _, dir := range []string{ws.Left, ws.Right} {
		if err := os.Mkdir(dir, 0o700); err != nil {
			os.RemoveAll(root)
			return nil, &WorkspaceError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	return ws, nil
}

// Dir returns the tree directory for side.
func (w *Workspace) Dir(side Side) string {
	if side == SideLeft {
		return w.Left
	}
	return w.Right
}

// IndexFile returns the side-scoped index path for side.
func (w *Workspace) IndexFile(side Side) string {
	if side == SideLeft {
		return w.LeftIndex
	}
	return w.RightIndex
}

// Remove deletes the workspace recursively. Files the comparison tool made
// read-only are made writable first.
func (w *Workspace) Remove() error {
	if w == nil || w.Root == "" {
		return nil
	}
	if err := os.RemoveAll(w.Root); err == nil {
		return nil
	}
	filepath.WalkDir(w.Root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			os.Chmod(path, 0o700)
		}
		return nil
	})
	if err := os.RemoveAll(w.Root); err != nil {
		return &WorkspaceError{Op: "remove", Path: w.Root, Err: err}
	}
	return nil
}
