package dirdiff

import (
	"errors"
	"fmt"
)

// ErrNothingToDiff is returned when the change list is empty. No workspace
// is created.
var ErrNothingToDiff = errors.New("nothing to diff")

// ParseError reports a malformed change list. It is raised before any
// filesystem mutation.
type ParseError struct {
	Offset int
	Record string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("parse change list at byte %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("parse change list at byte %d: %s (record %q)", e.Offset, e.Msg, e.Record)
}

// WorkspaceError reports a failure to create or populate the temporary
// workspace.
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// CheckoutError reports that populating or checking out a side index
// failed.
type CheckoutError struct {
	Side Side
	Err  error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout %s side: %v", e.Side, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// WorkingTreeRaceError reports a working-tree file that vanished or became
// unreadable between computing the change list and copying it.
type WorkingTreeRaceError struct {
	Path string
	Err  error
}

func (e *WorkingTreeRaceError) Error() string {
	return fmt.Sprintf("working tree changed during diff: %s: %v", e.Path, e.Err)
}

func (e *WorkingTreeRaceError) Unwrap() error { return e.Err }

// LauncherError reports a comparison tool that failed to start or exited
// non-zero. ExitCode is -1 when the tool never ran.
type LauncherError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *LauncherError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}

func (e *LauncherError) Unwrap() error { return e.Err }
