// Package native serves dir-diff change lists and side checkouts from a
// got repository.
package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/odvcencio/gotdiff/pkg/dirdiff"
	"github.com/odvcencio/gotdiff/pkg/repo"
)

// Backend adapts a repository to dirdiff.ChangeSource and
// dirdiff.IndexStore.
type Backend struct {
	Repo *repo.Repo
	Log  zerolog.Logger
}

var (
	_ dirdiff.ChangeSource = (*Backend)(nil)
	_ dirdiff.IndexStore   = (*Backend)(nil)
)

// New returns a backend for r.
func New(r *repo.Repo, logger zerolog.Logger) *Backend {
	return &Backend{Repo: r, Log: logger.With().Str("backend", "native").Logger()}
}

// WorkTree returns the repository root.
func (b *Backend) WorkTree() string {
	return b.Repo.RootDir
}

// RawDiff computes the change list selected by git-diff style args and
// returns it in the NUL-delimited raw format.
func (b *Backend) RawDiff(ctx context.Context, args []string) ([]byte, error) {
	opts, err := b.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	b.Log.Debug().
		Bool("cached", opts.Cached).
		Strs("revisions", opts.Revisions).
		Strs("paths", opts.Paths).
		Msg("Computing change list")

	changes, err := b.Repo.RawDiff(opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := repo.WriteRaw(&buf, changes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseArgs turns diff arguments into repo.DiffOptions:
//
//	[--cached|--staged] [<rev> [<rev>]] [--] [<path>...]
//
// Before "--", an argument that is not a revision but names an existing
// path starts the path list.
func (b *Backend) ParseArgs(args []string) (repo.DiffOptions, error) {
	var opts repo.DiffOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			opts.Paths = append(opts.Paths, args[i+1:]...)
			return b.relativize(opts)
		case arg == "--cached" || arg == "--staged":
			opts.Cached = true
		case strings.HasPrefix(arg, "-"):
			return opts, fmt.Errorf("unsupported diff option %q", arg)
		case len(opts.Paths) == 0 && b.isRevision(arg):
			opts.Revisions = append(opts.Revisions, arg)
		case b.pathExists(arg):
			opts.Paths = append(opts.Paths, arg)
		default:
			return opts, fmt.Errorf("ambiguous argument %q: unknown revision or path not in the working tree", arg)
		}
	}
	return b.relativize(opts)
}

func (b *Backend) isRevision(arg string) bool {
	if strings.Contains(arg, "..") {
		return true
	}
	_, err := b.Repo.ResolveRevision(arg)
	return err == nil
}

func (b *Backend) pathExists(arg string) bool {
	if _, err := os.Lstat(arg); err == nil {
		return true
	}
	_, err := os.Lstat(filepath.Join(b.Repo.RootDir, arg))
	return err == nil
}

// relativize rewrites paths given relative to the current directory as
// repository-relative paths.
func (b *Backend) relativize(opts repo.DiffOptions) (repo.DiffOptions, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return opts, nil
	}
	for i, p := range opts.Paths {
		abs := p
		if !filepath.IsAbs(p) {
			abs = filepath.Join(cwd, p)
		}
		rel, err := filepath.Rel(b.Repo.RootDir, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			if filepath.IsAbs(p) {
				return opts, fmt.Errorf("path %q is outside repository %q", p, b.Repo.RootDir)
			}
			continue
		}
		opts.Paths[i] = filepath.ToSlash(rel)
	}
	return opts, nil
}

// PopulateIndex writes entries to a fresh index file at indexFile. The
// repository's own index is never touched.
func (b *Backend) PopulateIndex(ctx context.Context, indexFile string, entries []dirdiff.IndexEntry) (dirdiff.IndexHandle, error) {
	if err := os.Remove(indexFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return dirdiff.IndexHandle{}, fmt.Errorf("populate index: %w", err)
	}
	var buf bytes.Buffer
	if err := dirdiff.WriteIndexInfo(&buf, entries); err != nil {
		return dirdiff.IndexHandle{}, err
	}
	if err := b.Repo.UpdateIndexInfo(indexFile, &buf); err != nil {
		return dirdiff.IndexHandle{}, err
	}
	return dirdiff.IndexHandle{File: indexFile, Entries: len(entries)}, nil
}

// Checkout writes every entry of h under targetDir.
func (b *Backend) Checkout(ctx context.Context, h dirdiff.IndexHandle, targetDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.Repo.CheckoutIndex(h.File, targetDir)
}
