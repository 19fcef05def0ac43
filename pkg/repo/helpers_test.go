package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/gotdiff/pkg/object"
)

func initRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeFile(t *testing.T, r *Repo, rel string, data string, perm os.FileMode) {
	t.Helper()
	p := r.WorkPath(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(data), perm); err != nil {
		t.Fatalf("WriteFile %s: %v", rel, err)
	}
	if err := os.Chmod(p, perm); err != nil {
		t.Fatalf("Chmod %s: %v", rel, err)
	}
}

func addAndCommit(t *testing.T, r *Repo, msg string, paths ...string) object.Hash {
	t.Helper()
	if err := r.Add(paths); err != nil {
		t.Fatalf("Add(%v): %v", paths, err)
	}
	h, err := r.Commit(msg, "test-author")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return h
}

func blobHash(data string) object.Hash {
	return object.HashObject(object.TypeBlob, []byte(data))
}
