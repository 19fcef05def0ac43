package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// StagingEntry records the staged state of a single path. For gitlinks
// BlobHash is the nested repository's commit.
type StagingEntry struct {
	Path     string      `json:"path"`
	Mode     string      `json:"mode"`
	BlobHash object.Hash `json:"blob_hash"`
	ModTime  int64       `json:"mod_time,omitempty"`
	Size     int64       `json:"size,omitempty"`
}

// Staging holds a full index. The repository's primary index lives at
// .got/index; side-scoped indexes use the same format at other paths.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

func newStaging() *Staging {
	return &Staging{Entries: make(map[string]*StagingEntry)}
}

// sortedPaths returns the entry paths of s in lexical order.
func sortedPaths(s *Staging) []string {
	paths := make([]string, 0, len(s.Entries))
	for p := range s.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.GotDir, "index")
}

// ReadStaging loads the staging area from .got/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	stg, err := ReadIndexFile(r.indexPath())
	if err != nil {
		return nil, fmt.Errorf("read staging: %w", err)
	}
	return stg, nil
}

// WriteStaging atomically writes the staging area to .got/index.
func (r *Repo) WriteStaging(s *Staging) error {
	if err := WriteIndexFile(r.indexPath(), s); err != nil {
		return fmt.Errorf("write staging: %w", err)
	}
	return nil
}

// ReadIndexFile loads an index from path. A missing file yields an empty
// index.
func ReadIndexFile(path string) (*Staging, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newStaging(), nil
		}
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read index %s: unmarshal: %w", path, err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteIndexFile atomically writes s to path via a temp file in the same
// directory.
func WriteIndexFile(path string, s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: close: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: rename: %w", err)
	}
	return nil
}

// Add stages the given paths. Each path is resolved relative to the repo
// root. For each path:
//  1. Regular files are written as blobs with mode 100644 or 100755.
//  2. Symlinks are written as blobs of their target with mode 120000.
//  3. A directory containing its own .got/ is staged as a gitlink to the
//     nested repository's HEAD commit.
//  4. Other directories are walked recursively, honouring ignore rules.
func (r *Repo) Add(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	ic := NewIgnoreChecker(r.RootDir)

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}
		if err := r.stagePath(stg, ic, relPath); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

func (r *Repo) stagePath(stg *Staging, ic *IgnoreChecker, relPath string) error {
	absPath := r.WorkPath(relPath)
	info, err := os.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", relPath, err)
	}

	if info.IsDir() {
		if relPath != "." && isNestedRepo(absPath) {
			return r.stageGitlink(stg, relPath, absPath)
		}
		return filepath.WalkDir(absPath, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path == absPath {
				return nil
			}
			rel, err := filepath.Rel(r.RootDir, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if ic.Match(rel, d.IsDir()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if isNestedRepo(path) {
					if err := r.stageGitlink(stg, rel, path); err != nil {
						return err
					}
					return fs.SkipDir
				}
				return nil
			}
			return r.stagePath(stg, ic, rel)
		})
	}

	var content []byte
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(absPath)
		if err != nil {
			return fmt.Errorf("readlink %q: %w", relPath, err)
		}
		content = []byte(target)
	} else {
		content, err = os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("read %q: %w", relPath, err)
		}
	}

	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", relPath, err)
	}

	stg.Entries[relPath] = &StagingEntry{
		Path:     relPath,
		Mode:     modeFromFileInfo(info),
		BlobHash: blobHash,
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
	}
	return nil
}

func (r *Repo) stageGitlink(stg *Staging, relPath, absPath string) error {
	commit, err := nestedHead(absPath)
	if err != nil {
		return fmt.Errorf("gitlink %q: %w", relPath, err)
	}
	// A gitlink replaces anything staged underneath it.
	for p := range stg.Entries {
		if strings.HasPrefix(p, relPath+"/") {
			delete(stg.Entries, p)
		}
	}
	stg.Entries[relPath] = &StagingEntry{
		Path:     relPath,
		Mode:     object.TreeModeGitlink,
		BlobHash: commit,
	}
	return nil
}

// isNestedRepo reports whether dir is the root of another got repository.
func isNestedRepo(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".got"))
	return err == nil && info.IsDir()
}

// nestedHead resolves HEAD of the repository rooted exactly at dir.
func nestedHead(dir string) (object.Hash, error) {
	gotDir := filepath.Join(dir, ".got")
	nested := &Repo{RootDir: dir, GotDir: gotDir, Store: object.NewStore(gotDir)}
	h, err := nested.ResolveRef("HEAD")
	if err != nil {
		return "", fmt.Errorf("nested repository has no commits: %w", err)
	}
	return h, nil
}

// Remove unstages the given paths. A directory path removes every entry
// beneath it. Unless cached is set, the matching working-tree files are
// deleted as well.
func (r *Repo) Remove(paths []string, cached bool) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	var removed []string
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("remove: resolve path %q: %w", p, err)
		}
		matched := false
		for staged := range stg.Entries {
			if matchesPathspec(staged, []string{relPath}) {
				delete(stg.Entries, staged)
				removed = append(removed, staged)
				matched = true
			}
		}
		if !matched {
			return fmt.Errorf("remove: pathspec %q did not match any staged path", relPath)
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	if cached {
		return nil
	}
	for _, rel := range removed {
		absPath := r.WorkPath(rel)
		// Gitlinks are whole nested repositories; leave them on disk.
		if info, err := os.Lstat(absPath); err == nil && info.IsDir() {
			continue
		}
		if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove: delete %q: %w", rel, err)
		}
	}
	return nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. If the path is relative and falls
// outside the repo when resolved against CWD, it is assumed to already be
// repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		if strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%q is outside repository %q", p, r.RootDir)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	rel, err := filepath.Rel(r.RootDir, filepath.Join(cwd, p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	return filepath.ToSlash(rel), nil
}
