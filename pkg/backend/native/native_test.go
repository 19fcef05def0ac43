package native

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gotdiff/pkg/dirdiff"
	"github.com/odvcencio/gotdiff/pkg/object"
	"github.com/odvcencio/gotdiff/pkg/repo"
)

func write(t *testing.T, root, rel, data string, perm os.FileMode) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), perm))
	require.NoError(t, os.Chmod(p, perm))
}

func commit(t *testing.T, r *repo.Repo, msg string, paths ...string) object.Hash {
	t.Helper()
	require.NoError(t, r.Add(paths))
	h, err := r.Commit(msg, "tester")
	require.NoError(t, err)
	return h
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newFixture(t *testing.T) (*repo.Repo, *Backend) {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	require.NoError(t, err)
	return r, New(r, zerolog.Nop())
}

func TestBackend_WorkingTreeDirDiff(t *testing.T) {
	r, b := newFixture(t)
	write(t, r.RootDir, "keep.txt", "same\n", 0o644)
	write(t, r.RootDir, "src/app.go", "package app\n", 0o644)
	write(t, r.RootDir, "old.txt", "old\n", 0o644)
	write(t, r.RootDir, "bin/run", "#!/bin/sh\n", 0o755)
	commit(t, r, "initial", "keep.txt", "src", "old.txt", "bin")

	write(t, r.RootDir, "src/app.go", "package app\n\nfunc Run() {}\n", 0o644)
	require.NoError(t, os.Remove(filepath.Join(r.RootDir, "old.txt")))

	s := dirdiff.NewSession(b, b, zerolog.Nop())
	s.TmpDir = t.TempDir()
	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	assert.Equal(t, "package app\n", read(t, filepath.Join(ws.Left, "src", "app.go")))
	assert.Equal(t, "old\n", read(t, filepath.Join(ws.Left, "old.txt")))
	assert.Equal(t, "package app\n\nfunc Run() {}\n", read(t, filepath.Join(ws.Right, "src", "app.go")))
	assert.NoFileExists(t, filepath.Join(ws.Right, "old.txt"))
	assert.NoFileExists(t, filepath.Join(ws.Left, "keep.txt"), "unchanged files are not materialized")

	// The primary index is untouched by side checkouts.
	stg, err := r.ReadStaging()
	require.NoError(t, err)
	assert.Len(t, stg.Entries, 4)
}

func TestBackend_CachedAndRevisions(t *testing.T) {
	r, b := newFixture(t)
	write(t, r.RootDir, "a.txt", "v1\n", 0o644)
	commit(t, r, "one", "a.txt")
	write(t, r.RootDir, "a.txt", "v2\n", 0o755)
	commit(t, r, "two", "a.txt")
	write(t, r.RootDir, "a.txt", "v3\n", 0o755)
	require.NoError(t, r.Add([]string{"a.txt"}))
	write(t, r.RootDir, "a.txt", "v4\n", 0o755)

	tests := []struct {
		name      string
		args      []string
		wantLeft  string
		wantRight string
	}{
		{"index vs worktree", nil, "v3\n", "v4\n"},
		{"head vs index", []string{"--cached"}, "v2\n", "v3\n"},
		{"staged alias", []string{"--staged"}, "v2\n", "v3\n"},
		{"revision vs worktree", []string{"HEAD~1"}, "v1\n", "v4\n"},
		{"revision vs index", []string{"--cached", "HEAD~1"}, "v1\n", "v3\n"},
		{"two revisions", []string{"HEAD^", "HEAD"}, "v1\n", "v2\n"},
		{"range", []string{"HEAD~1..HEAD", "--", "a.txt"}, "v1\n", "v2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := dirdiff.NewSession(b, b, zerolog.Nop())
			s.TmpDir = t.TempDir()
			ws, err := s.Prepare(context.Background(), tt.args)
			require.NoError(t, err)
			defer ws.Remove()

			assert.Equal(t, tt.wantLeft, read(t, filepath.Join(ws.Left, "a.txt")))
			assert.Equal(t, tt.wantRight, read(t, filepath.Join(ws.Right, "a.txt")))
		})
	}
}

func TestBackend_ExecutableBitSurvivesCheckout(t *testing.T) {
	r, b := newFixture(t)
	write(t, r.RootDir, "tool", "v1\n", 0o755)
	commit(t, r, "one", "tool")
	write(t, r.RootDir, "tool", "v2\n", 0o755)
	commit(t, r, "two", "tool")

	s := dirdiff.NewSession(b, b, zerolog.Nop())
	s.TmpDir = t.TempDir()
	ws, err := s.Prepare(context.Background(), []string{"HEAD~1", "HEAD"})
	require.NoError(t, err)
	defer ws.Remove()

	for _, dir := range []string{ws.Left, ws.Right} {
		info, err := os.Stat(filepath.Join(dir, "tool"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestBackend_SubmoduleStubs(t *testing.T) {
	r, b := newFixture(t)
	nested, err := repo.Init(filepath.Join(r.RootDir, "deps", "lib"))
	require.NoError(t, err)
	write(t, nested.RootDir, "x", "1\n", 0o644)
	before := commit(t, nested, "one", "x")
	commit(t, r, "add lib", "deps")

	write(t, nested.RootDir, "x", "2\n", 0o644)
	after := commit(t, nested, "two", "x")

	s := dirdiff.NewSession(b, b, zerolog.Nop())
	s.TmpDir = t.TempDir()
	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	assert.Equal(t, "Subproject commit "+string(before)+"\n", read(t, filepath.Join(ws.Left, "deps", "lib")))
	assert.Equal(t, "Subproject commit "+string(after)+"\n", read(t, filepath.Join(ws.Right, "deps", "lib")))
}

func TestBackend_NothingToDiff(t *testing.T) {
	r, b := newFixture(t)
	write(t, r.RootDir, "a.txt", "v1\n", 0o644)
	commit(t, r, "one", "a.txt")

	s := dirdiff.NewSession(b, b, zerolog.Nop())
	s.TmpDir = t.TempDir()
	_, err := s.Prepare(context.Background(), nil)
	assert.ErrorIs(t, err, dirdiff.ErrNothingToDiff)
}

func TestBackend_ParseArgs(t *testing.T) {
	r, b := newFixture(t)
	write(t, r.RootDir, "docs/guide.md", "g\n", 0o644)
	commit(t, r, "one", "docs")

	opts, err := b.ParseArgs([]string{"--cached", "HEAD", "docs"})
	require.NoError(t, err)
	assert.True(t, opts.Cached)
	assert.Equal(t, []string{"HEAD"}, opts.Revisions)
	assert.Equal(t, []string{"docs"}, opts.Paths)

	opts, err = b.ParseArgs([]string{"main~0..main", "--", "nonexistent-yet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main~0..main"}, opts.Revisions)
	assert.Equal(t, []string{"nonexistent-yet"}, opts.Paths)

	_, err = b.ParseArgs([]string{"no-such-thing"})
	assert.Error(t, err)

	_, err = b.ParseArgs([]string{"--word-diff"})
	assert.Error(t, err)
}

func TestBackend_PopulateRejectsMissingObjects(t *testing.T) {
	_, b := newFixture(t)
	idx := filepath.Join(t.TempDir(), "side.index")

	_, err := b.PopulateIndex(context.Background(), idx, []dirdiff.IndexEntry{
		{Mode: object.TreeModeFile, Hash: object.Hash(string(object.ZeroHash[:63]) + "1"), Path: "f"},
	})
	assert.Error(t, err)
}
