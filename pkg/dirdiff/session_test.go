package dirdiff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gotdiff/pkg/object"
)

func newTestSession(t *testing.T, src ChangeSource, store IndexStore) (*Session, string) {
	t.Helper()
	s := NewSession(src, store, zerolog.Nop())
	s.TmpDir = t.TempDir()
	return s, s.TmpDir
}

func TestSession_EmptyChangeListCreatesNothing(t *testing.T) {
	store := &mockStore{}
	launcher := &mockLauncher{}
	s, tmp := newTestSession(t, &fakeSource{}, store)

	err := s.Run(context.Background(), nil, launcher)

	assert.ErrorIs(t, err, ErrNothingToDiff)
	assert.Equal(t, StateEarlyExit, s.State())
	assert.Equal(t, []State{StateInit, StateDiffComputed, StateEarlyExit}, s.Trace())
	requireEmptyDir(t, tmp)
	store.AssertNotCalled(t, "PopulateIndex", mock.Anything, mock.Anything, mock.Anything)
	launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_LeftOnlyRecord(t *testing.T) {
	store := newMemStore()
	h := store.put('a', "#!/bin/sh\necho gone\n")
	src := &fakeSource{raw: raw("100755", "000000", h, object.ZeroHash, "D", "scripts/gone.sh")}
	s, _ := newTestSession(t, src, store)

	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	left := snapshot(t, ws.Left)
	assert.Equal(t, map[string]string{"scripts/gone.sh": "-rwxr-xr-x #!/bin/sh\necho gone\n"}, left)
	assert.Empty(t, snapshot(t, ws.Right))
	assert.Equal(t, StateReady, s.State())
}

func TestSession_WorkTreeOverlayUsesLiveContent(t *testing.T) {
	live := t.TempDir()
	writeLive(t, live, "tools/run", "live bytes\n", 0o755)

	store := newMemStore()
	h := store.put('a', "committed bytes\n")
	src := &fakeSource{
		raw:      raw("100644", "100755", h, object.ZeroHash, "M", "tools/run"),
		workTree: live,
	}
	s, _ := newTestSession(t, src, store)

	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	assert.Equal(t, map[string]string{"tools/run": "-rw-r--r-- committed bytes\n"}, snapshot(t, ws.Left))
	assert.Equal(t, map[string]string{"tools/run": "-rwxr-xr-x live bytes\n"}, snapshot(t, ws.Right))
	_, populated := store.indexes[ws.RightIndex]
	assert.False(t, populated, "working-tree paths get no right index entry")
}

func TestSession_SubmoduleStubs(t *testing.T) {
	src := &fakeSource{raw: raw("160000", "160000", hashOf('1'), hashOf('2'), "M", "deps/lib") +
		raw("000000", "160000", object.ZeroHash, hashOf('3'), "A", "deps/new")}
	store := &mockStore{}
	s, _ := newTestSession(t, src, store)

	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	left := snapshot(t, ws.Left)
	right := snapshot(t, ws.Right)
	assert.Equal(t, "-rw-r--r-- Subproject commit "+string(hashOf('1'))+"\n", left["deps/lib"])
	assert.Equal(t, "-rw-r--r-- Subproject commit "+string(hashOf('2'))+"\n", right["deps/lib"])
	assert.NotEqual(t, left["deps/lib"], right["deps/lib"])

	_, ok := left["deps/new"]
	assert.False(t, ok, "added submodule has no left stub")
	assert.Equal(t, "-rw-r--r-- Subproject commit "+string(hashOf('3'))+"\n", right["deps/new"])
	store.AssertNotCalled(t, "PopulateIndex", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_Idempotent(t *testing.T) {
	live := t.TempDir()
	writeLive(t, live, "wt.txt", "working\n", 0o644)

	store := newMemStore()
	a := store.put('a', "old\n")
	b := store.put('b', "new\n")
	c := store.put('c', "target")
	stream := raw("100644", "100644", a, b, "M", "dir/m.txt") +
		raw("000000", "120000", object.ZeroHash, c, "A", "link") +
		raw("100644", "100644", a, object.ZeroHash, "M", "wt.txt") +
		raw("160000", "160000", hashOf('1'), hashOf('2'), "M", "sub")

	var trees [][2]map[string]string
	for i := 0; i < 2; i++ {
		s, _ := newTestSession(t, &fakeSource{raw: stream, workTree: live}, store)
		ws, err := s.Prepare(context.Background(), nil)
		require.NoError(t, err)
		trees = append(trees, [2]map[string]string{snapshot(t, ws.Left), snapshot(t, ws.Right)})
		require.NoError(t, ws.Remove())
	}

	assert.Equal(t, trees[0], trees[1])
	assert.Equal(t, "-> target", strings.SplitN(trees[0][1]["link"], " ", 2)[1])
}

func TestSession_CheckoutFailureAbortsAndCleansUp(t *testing.T) {
	src := &fakeSource{raw: raw("100644", "100644", hashOf('a'), hashOf('b'), "M", "f")}
	store := &mockStore{}
	store.On("PopulateIndex", mock.Anything, mock.Anything, mock.Anything).
		Return(IndexHandle{File: "idx", Entries: 1}, nil)
	store.On("Checkout", mock.Anything, mock.Anything, mock.MatchedBy(func(dir string) bool {
		return filepath.Base(dir) == "left"
	})).Return(nil)
	store.On("Checkout", mock.Anything, mock.Anything, mock.MatchedBy(func(dir string) bool {
		return filepath.Base(dir) == "right"
	})).Return(errors.New("disk full"))
	launcher := &mockLauncher{}
	s, tmp := newTestSession(t, src, store)

	err := s.Run(context.Background(), nil, launcher)

	var ce *CheckoutError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, SideRight, ce.Side)
	assert.Equal(t, StateFailed, s.State())
	assert.Contains(t, s.Trace(), StateLeftBuilt)
	assert.NotContains(t, s.Trace(), StateRightBuilt)
	launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything, mock.Anything)
	requireEmptyDir(t, tmp)
}

func TestSession_PopulateFailureIsCheckoutError(t *testing.T) {
	src := &fakeSource{raw: raw("100644", "000000", hashOf('a'), object.ZeroHash, "D", "f")}
	s, tmp := newTestSession(t, src, newMemStore())

	_, err := s.Prepare(context.Background(), nil)

	var ce *CheckoutError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, SideLeft, ce.Side)
	requireEmptyDir(t, tmp)
}

func TestSession_VanishedWorkTreeFile(t *testing.T) {
	src := &fakeSource{
		raw:      raw("100644", "100644", hashOf('a'), object.ZeroHash, "M", "gone.txt"),
		workTree: t.TempDir(),
	}
	store := newMemStore()
	store.put('a', "x")
	s, tmp := newTestSession(t, src, store)

	_, err := s.Prepare(context.Background(), nil)

	var race *WorkingTreeRaceError
	require.ErrorAs(t, err, &race)
	assert.Equal(t, "gone.txt", race.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	requireEmptyDir(t, tmp)
}

func TestSession_ParseErrorTouchesNothing(t *testing.T) {
	store := &mockStore{}
	s, tmp := newTestSession(t, &fakeSource{raw: ":garbage\x00f\x00"}, store)

	_, err := s.Prepare(context.Background(), nil)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	requireEmptyDir(t, tmp)
	store.AssertNotCalled(t, "PopulateIndex", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_SourceError(t *testing.T) {
	s, tmp := newTestSession(t, &fakeSource{err: errors.New("bad revision")}, &mockStore{})

	_, err := s.Prepare(context.Background(), []string{"nope"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad revision")
	requireEmptyDir(t, tmp)
}

func TestSession_RunRemovesWorkspaceAfterLauncher(t *testing.T) {
	store := newMemStore()
	h := store.put('a', "content\n")
	src := &fakeSource{raw: raw("000000", "100644", object.ZeroHash, h, "A", "new.txt")}

	tests := []struct {
		name    string
		result  error
		wantErr bool
	}{
		{"success", nil, false},
		{"tool exits non-zero", &LauncherError{Command: "tool", ExitCode: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tmp := newTestSession(t, src, store)
			launcher := &mockLauncher{}
			var seenRight string
			launcher.On("Launch", mock.Anything, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					seenRight = args.String(2)
					data, err := os.ReadFile(filepath.Join(seenRight, "new.txt"))
					require.NoError(t, err)
					assert.Equal(t, "content\n", string(data))
					assert.True(t, filepath.IsAbs(args.String(1)))
				}).
				Return(tt.result)

			err := s.Run(context.Background(), nil, launcher)

			if tt.wantErr {
				var le *LauncherError
				require.ErrorAs(t, err, &le)
				assert.Equal(t, 2, le.ExitCode)
			} else {
				require.NoError(t, err)
			}
			launcher.AssertNumberOfCalls(t, "Launch", 1)
			requireEmptyDir(t, tmp)
		})
	}
}

func TestSession_StateSequence(t *testing.T) {
	store := newMemStore()
	h := store.put('a', "x")
	s, _ := newTestSession(t, &fakeSource{raw: raw("100644", "000000", h, object.ZeroHash, "D", "f")}, store)

	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	assert.Equal(t, []State{
		StateInit, StateDiffComputed, StateWorkspaceAllocated, StateLeftBuilt,
		StateRightBuilt, StateOverlayApplied, StateStubsWritten, StateReady,
	}, s.Trace())
	assert.NotEmpty(t, s.ID())

	_, err = s.Prepare(context.Background(), nil)
	assert.Error(t, err, "a session is single use")
}

func TestSession_SideIndexesStayInsideWorkspace(t *testing.T) {
	store := newMemStore()
	a := store.put('a', "1")
	b := store.put('b', "2")
	s, _ := newTestSession(t, &fakeSource{raw: raw("100644", "100644", a, b, "M", "f")}, store)

	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	require.Len(t, store.indexes, 2)
	for idx := range store.indexes {
		assert.True(t, strings.HasPrefix(idx, ws.Root+string(filepath.Separator)), idx)
	}
	assert.Contains(t, store.indexes, ws.LeftIndex)
	assert.Contains(t, store.indexes, ws.RightIndex)
}

func TestSession_DirtySubmoduleOnlyLogsEmptyComparison(t *testing.T) {
	var buf strings.Builder
	src := &fakeSource{raw: raw("160000", "160000", object.ZeroHash, object.ZeroHash, "M", "vendor/lib")}
	s := NewSession(src, newMemStore(), zerolog.New(&buf).Level(zerolog.DebugLevel))
	s.TmpDir = t.TempDir()

	ws, err := s.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer ws.Remove()

	assert.Empty(t, snapshot(t, ws.Left))
	assert.Empty(t, snapshot(t, ws.Right))
	assert.Equal(t, StateReady, s.State())
	assert.Contains(t, buf.String(), "both trees will be empty")
	assert.Contains(t, buf.String(), "vendor/lib")
}
