package dirdiff

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ApplyWorkTree copies each path's current bytes and permission bits from
// workTree into rightDir. A path that vanished or cannot be read is a
// *WorkingTreeRaceError; failures writing the copy are *WorkspaceError.
func ApplyWorkTree(workTree, rightDir string, paths []string) error {
	for _, p := range paths {
		if err := copyWorkTreeFile(workTree, rightDir, p); err != nil {
			return err
		}
	}
	return nil
}

func copyWorkTreeFile(workTree, rightDir, p string) error {
	src := filepath.Join(workTree, filepath.FromSlash(p))
	dst := filepath.Join(rightDir, filepath.FromSlash(p))

	info, err := os.Lstat(src)
	if err != nil {
		return &WorkingTreeRaceError{Path: p, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &WorkspaceError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return &WorkingTreeRaceError{Path: p, Err: err}
		}
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &WorkspaceError{Op: "replace", Path: dst, Err: err}
		}
		if err := os.Symlink(target, dst); err != nil {
			return &WorkspaceError{Op: "symlink", Path: dst, Err: err}
		}
		return nil
	case !info.Mode().IsRegular():
		return &WorkingTreeRaceError{Path: p, Err: fmt.Errorf("not a regular file (%s)", info.Mode().Type())}
	}

	in, err := os.Open(src)
	if err != nil {
		return &WorkingTreeRaceError{Path: p, Err: err}
	}
	defer in.Close()

	perm := info.Mode().Perm()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return &WorkspaceError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &WorkspaceError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &WorkspaceError{Op: "close", Path: dst, Err: err}
	}
	// OpenFile is subject to the umask.
	if err := os.Chmod(dst, perm); err != nil {
		return &WorkspaceError{Op: "chmod", Path: dst, Err: err}
	}
	return nil
}
