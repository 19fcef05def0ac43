package dirdiff

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// hashOf returns a 64-character id made of c.
func hashOf(c byte) object.Hash {
	return object.Hash(strings.Repeat(string(c), 64))
}

// raw builds one NUL-delimited change record.
func raw(oldMode, newMode string, oldHash, newHash object.Hash, status string, paths ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":%s %s %s %s %s\x00", oldMode, newMode, oldHash, newHash, status)
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte(0)
	}
	return b.String()
}

// fakeSource serves a fixed change list.
type fakeSource struct {
	raw      string
	workTree string
	err      error
	calls    int
}

func (f *fakeSource) RawDiff(ctx context.Context, args []string) ([]byte, error) {
	f.calls++
	return []byte(f.raw), f.err
}

func (f *fakeSource) WorkTree() string { return f.workTree }

// memStore is an in-memory object store with a real checkout.
type memStore struct {
	mu      sync.Mutex
	blobs   map[object.Hash][]byte
	indexes map[string][]IndexEntry
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[object.Hash][]byte), indexes: make(map[string][]IndexEntry)}
}

func (s *memStore) put(c byte, data string) object.Hash {
	h := hashOf(c)
	s.blobs[h] = []byte(data)
	return h
}

func (s *memStore) PopulateIndex(ctx context.Context, indexFile string, entries []IndexEntry) (IndexHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.blobs[e.Hash]; !ok {
			return IndexHandle{}, fmt.Errorf("object %s missing", e.Hash)
		}
	}
	if err := os.WriteFile(indexFile, []byte("index"), 0o600); err != nil {
		return IndexHandle{}, err
	}
	s.indexes[indexFile] = append([]IndexEntry(nil), entries...)
	return IndexHandle{File: indexFile, Entries: len(entries)}, nil
}

func (s *memStore) Checkout(ctx context.Context, h IndexHandle, targetDir string) error {
	s.mu.Lock()
	entries := s.indexes[h.File]
	s.mu.Unlock()
	for _, e := range entries {
		dst := filepath.Join(targetDir, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		data := s.blobs[e.Hash]
		if e.Mode == object.TreeModeSymlink {
			if err := os.Symlink(string(data), dst); err != nil {
				return err
			}
			continue
		}
		perm := os.FileMode(0o644)
		if e.Mode == object.TreeModeExecutable {
			perm = 0o755
		}
		if err := os.WriteFile(dst, data, perm); err != nil {
			return err
		}
		if err := os.Chmod(dst, perm); err != nil {
			return err
		}
	}
	return nil
}

// mockStore lets tests inject store failures.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) PopulateIndex(ctx context.Context, indexFile string, entries []IndexEntry) (IndexHandle, error) {
	args := m.Called(ctx, indexFile, entries)
	return args.Get(0).(IndexHandle), args.Error(1)
}

func (m *mockStore) Checkout(ctx context.Context, h IndexHandle, targetDir string) error {
	args := m.Called(ctx, h, targetDir)
	return args.Error(0)
}

// mockLauncher records launches.
type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Launch(ctx context.Context, left, right string) error {
	args := m.Called(ctx, left, right)
	return args.Error(0)
}

// snapshot returns every non-directory entry under root keyed by its
// relative path, with its permission bits and content.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		var content string
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			content = "-> " + target
		} else {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			content = string(data)
		}
		out[filepath.ToSlash(rel)] = fmt.Sprintf("%v %s", info.Mode().Perm(), content)
		return nil
	})
	require.NoError(t, err)
	return out
}

func writeLive(t *testing.T, root, rel, data string, perm os.FileMode) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), perm))
	require.NoError(t, os.Chmod(p, perm))
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "expected %s to be empty", dir)
}
