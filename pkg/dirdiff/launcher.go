package dirdiff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/odvcencio/gotdiff/pkg/linediff"
)

var knownTools = map[string]string{
	"meld":     `meld "$LOCAL" "$REMOTE"`,
	"kdiff3":   `kdiff3 "$LOCAL" "$REMOTE"`,
	"bc":       `bcompare "$LOCAL" "$REMOTE"`,
	"opendiff": `opendiff "$LOCAL" "$REMOTE" -merge "$REMOTE"`,
}

// KnownToolCommand returns the shell command for a built-in tool name.
func KnownToolCommand(name string) (string, bool) {
	cmd, ok := knownTools[name]
	return cmd, ok
}

// KnownTools lists the built-in tool names, sorted.
func KnownTools() []string {
	names := make([]string, 0, len(knownTools))
	for name := range knownTools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CommandLauncher runs a shell command on the two directories. Both are
// exported as $LOCAL and $REMOTE; with Positional set they are also
// appended as the command's last two arguments.
type CommandLauncher struct {
	Command    string
	Positional bool
	Dir        string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	Env        []string
}

// Launch runs the command and waits for it. A non-zero exit is returned
// as a *LauncherError carrying the exit status.
func (l CommandLauncher) Launch(ctx context.Context, left, right string) error {
	script := l.Command
	args := []string{"-c", script}
	if l.Positional {
		args = []string{"-c", script + ` "$@"`, "got-difftool", left, right}
	}
	cmd := exec.CommandContext(ctx, "sh", args...)
	cmd.Dir = l.Dir
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	env := l.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(append([]string(nil), env...), "LOCAL="+left, "REMOTE="+right)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &LauncherError{Command: l.Command, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &LauncherError{Command: l.Command, ExitCode: -1, Err: err}
	}
	return nil
}

// TreeDiffLauncher compares the two trees itself and prints unified diffs
// of every file that differs.
type TreeDiffLauncher struct {
	Out io.Writer
}

// Launch walks both trees and writes a diff per differing path, sorted.
func (l TreeDiffLauncher) Launch(ctx context.Context, left, right string) error {
	leftFiles, err := listTree(left)
	if err != nil {
		return &LauncherError{Command: "builtin", ExitCode: -1, Err: err}
	}
	rightFiles, err := listTree(right)
	if err != nil {
		return &LauncherError{Command: "builtin", ExitCode: -1, Err: err}
	}

	seen := make(map[string]struct{}, len(leftFiles)+len(rightFiles))
	var paths []string
	for _, set := range []map[string]struct{}{leftFiles, rightFiles} {
		for p := range set {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		oldName, newName := "a/"+p, "b/"+p
		before, err := readTreeFile(left, p, leftFiles)
		if err != nil {
			return &LauncherError{Command: "builtin", ExitCode: -1, Err: err}
		}
		after, err := readTreeFile(right, p, rightFiles)
		if err != nil {
			return &LauncherError{Command: "builtin", ExitCode: -1, Err: err}
		}
		if _, ok := leftFiles[p]; !ok {
			oldName = "/dev/null"
		}
		if _, ok := rightFiles[p]; !ok {
			newName = "/dev/null"
		}
		if err := linediff.WriteUnified(l.Out, oldName, newName, before, after); err != nil {
			return &LauncherError{Command: "builtin", ExitCode: -1, Err: err}
		}
	}
	return nil
}

// listTree returns the slash-separated relative paths of every
// non-directory entry under root.
func listTree(root string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	return out, nil
}

// readTreeFile returns a file's bytes, or a symlink's target. Paths not in
// set read as empty.
func readTreeFile(root, p string, set map[string]struct{}) ([]byte, error) {
	if _, ok := set[p]; !ok {
		return nil, nil
	}
	full := filepath.Join(root, filepath.FromSlash(p))
	info, err := os.Lstat(full)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		return []byte(target), err
	}
	return os.ReadFile(full)
}
