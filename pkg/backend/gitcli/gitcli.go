// Package gitcli serves dir-diff change lists and side checkouts from a
// git checkout by driving the git binary.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/odvcencio/gotdiff/pkg/dirdiff"
)

// Backend adapts a git working tree to dirdiff.ChangeSource and
// dirdiff.IndexStore. Side indexes are selected per child process with
// GIT_INDEX_FILE; the parent environment is never modified.
type Backend struct {
	Runner Runner
	// Dir is where diff arguments are interpreted, usually the caller's
	// working directory.
	Dir string
	// TopLevel is the root of the working tree.
	TopLevel string
	Log      zerolog.Logger
}

var (
	_ dirdiff.ChangeSource = (*Backend)(nil)
	_ dirdiff.IndexStore   = (*Backend)(nil)
)

// Open locates the working tree containing dir.
func Open(ctx context.Context, runner Runner, dir string, logger zerolog.Logger) (*Backend, error) {
	out, err := runner.Run(ctx, Invocation{Dir: dir, Args: []string{"rev-parse", "--show-toplevel"}})
	if err != nil {
		return nil, fmt.Errorf("open git work tree: %w", err)
	}
	top := strings.TrimSpace(string(out))
	if top == "" {
		return nil, fmt.Errorf("open git work tree: %s is not inside a work tree", dir)
	}
	return &Backend{
		Runner:   runner,
		Dir:      dir,
		TopLevel: top,
		Log:      logger.With().Str("backend", "git").Logger(),
	}, nil
}

// WorkTree returns the top-level directory.
func (b *Backend) WorkTree() string {
	return b.TopLevel
}

// RawDiff runs git diff in raw, NUL-delimited form with full object ids.
// Rename detection is off so every record carries one path.
func (b *Backend) RawDiff(ctx context.Context, args []string) ([]byte, error) {
	gitArgs := append([]string{
		"diff", "--raw", "-z", "--no-abbrev", "--no-renames", "--no-color", "--no-ext-diff", "--no-textconv",
	}, args...)
	b.Log.Debug().Strs("args", args).Msg("Computing change list")
	out, err := b.Runner.Run(ctx, Invocation{Dir: b.Dir, Args: gitArgs})
	if err != nil {
		return nil, fmt.Errorf("raw diff: %w", err)
	}
	return out, nil
}

// PopulateIndex feeds entries to git update-index with GIT_INDEX_FILE
// pointing at indexFile.
func (b *Backend) PopulateIndex(ctx context.Context, indexFile string, entries []dirdiff.IndexEntry) (dirdiff.IndexHandle, error) {
	var stdin bytes.Buffer
	if err := dirdiff.WriteIndexInfo(&stdin, entries); err != nil {
		return dirdiff.IndexHandle{}, err
	}
	_, err := b.Runner.Run(ctx, Invocation{
		Dir:   b.TopLevel,
		Args:  []string{"update-index", "-z", "--index-info"},
		Env:   []string{"GIT_INDEX_FILE=" + indexFile},
		Stdin: &stdin,
	})
	if err != nil {
		return dirdiff.IndexHandle{}, fmt.Errorf("populate index: %w", err)
	}
	return dirdiff.IndexHandle{File: indexFile, Entries: len(entries)}, nil
}

// Checkout runs git checkout-index for every entry of h into targetDir.
func (b *Backend) Checkout(ctx context.Context, h dirdiff.IndexHandle, targetDir string) error {
	prefix := strings.TrimSuffix(targetDir, "/") + "/"
	_, err := b.Runner.Run(ctx, Invocation{
		Dir:  b.TopLevel,
		Args: []string{"checkout-index", "--all", "--prefix=" + prefix},
		Env:  []string{"GIT_INDEX_FILE=" + h.File},
	})
	if err != nil {
		return fmt.Errorf("checkout index: %w", err)
	}
	return nil
}
