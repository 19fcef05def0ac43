package repo

import (
	"path/filepath"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// Repo is an opened got repository: a working tree with a .got/ directory
// holding the object store, refs, index and config.
type Repo struct {
	RootDir string
	GotDir  string
	Store   *object.Store
}

// WorkPath maps a slash-separated repository path to its location in the
// working tree.
func (r *Repo) WorkPath(rel string) string {
	return filepath.Join(r.RootDir, filepath.FromSlash(rel))
}
