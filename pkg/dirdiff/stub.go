package dirdiff

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// StubContent is the text written in place of a nested repository.
func StubContent(commit object.Hash) []byte {
	return []byte(fmt.Sprintf("Subproject commit %s\n", commit))
}

// WriteSubmoduleStubs writes a one-line stub for every defined side of
// every ref. Undefined sides get nothing.
func WriteSubmoduleStubs(ws *Workspace, refs []SubmoduleRef) error {
	for _, ref := range refs {
		for _, s := range []struct {
			side  Side
			state SideState
		}{{SideLeft, ref.Left}, {SideRight, ref.Right}} {
			if !s.state.Defined() {
				continue
			}
			dst := filepath.Join(ws.Dir(s.side), filepath.FromSlash(ref.Path))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return &WorkspaceError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
			}
			if err := os.WriteFile(dst, StubContent(s.state.Hash), 0o644); err != nil {
				return &WorkspaceError{Op: "write stub", Path: dst, Err: err}
			}
		}
	}
	return nil
}
