package repo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// IndexInfoEntry is one record of the index-info protocol:
//
//	mode hash\tpath\0
type IndexInfoEntry struct {
	Mode string
	Hash object.Hash
	Path string
}

// ParseIndexInfo reads NUL-terminated index-info records from r.
func ParseIndexInfo(r io.Reader) ([]IndexInfoEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	scanner.Split(splitNUL)

	var entries []IndexInfoEntry
	for n := 1; scanner.Scan(); n++ {
		rec := scanner.Text()
		if rec == "" {
			continue
		}
		meta, p, ok := strings.Cut(rec, "\t")
		if !ok {
			return nil, fmt.Errorf("index info record %d: missing tab in %q", n, rec)
		}
		mode, hash, ok := strings.Cut(meta, " ")
		if !ok {
			return nil, fmt.Errorf("index info record %d: expected \"mode hash\", got %q", n, meta)
		}
		if !object.IsNullMode(mode) {
			if !object.IsHexHash(hash) {
				return nil, fmt.Errorf("index info record %d: invalid object id %q", n, hash)
			}
		}
		if err := validateEntryPath(p); err != nil {
			return nil, fmt.Errorf("index info record %d: %w", n, err)
		}
		entries = append(entries, IndexInfoEntry{Mode: mode, Hash: object.Hash(hash), Path: p})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("index info: %w", err)
	}
	return entries, nil
}

func splitNUL(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// validateEntryPath rejects paths that would escape a checkout prefix.
func validateEntryPath(p string) error {
	if p == "" {
		return errors.New("empty path")
	}
	if strings.HasPrefix(p, "/") || path.Clean(p) != p {
		return fmt.Errorf("path %q is not clean and relative", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == ".got" {
			return fmt.Errorf("path %q contains forbidden segment %q", p, seg)
		}
	}
	return nil
}

// UpdateIndexInfo applies index-info records read from in to the index file
// at indexFile, creating it when missing. Records with a null mode remove
// the path. Blob records must name objects present in the store; gitlink
// records are taken as given.
func (r *Repo) UpdateIndexInfo(indexFile string, in io.Reader) error {
	entries, err := ParseIndexInfo(in)
	if err != nil {
		return fmt.Errorf("update index info: %w", err)
	}
	stg, err := ReadIndexFile(indexFile)
	if err != nil {
		return fmt.Errorf("update index info: %w", err)
	}

	for _, e := range entries {
		if object.IsNullMode(e.Mode) {
			delete(stg.Entries, e.Path)
			continue
		}
		switch e.Mode {
		case object.TreeModeFile, object.TreeModeExecutable, object.TreeModeSymlink:
			if !r.Store.Has(e.Hash) {
				return fmt.Errorf("update index info: %s: object %s not in store", e.Path, e.Hash)
			}
		case object.TreeModeGitlink:
		default:
			return fmt.Errorf("update index info: %s: unsupported mode %q", e.Path, e.Mode)
		}
		stg.Entries[e.Path] = &StagingEntry{Path: e.Path, Mode: e.Mode, BlobHash: e.Hash}
	}

	if err := WriteIndexFile(indexFile, stg); err != nil {
		return fmt.Errorf("update index info: %w", err)
	}
	return nil
}

// CheckoutIndex writes every entry of the index file at indexFile beneath
// prefix. Regular files get 0644 or 0755 according to their mode, symlinks
// are re-created, and gitlinks are skipped. Existing files are
// overwritten.
func (r *Repo) CheckoutIndex(indexFile, prefix string) error {
	stg, err := ReadIndexFile(indexFile)
	if err != nil {
		return fmt.Errorf("checkout index: %w", err)
	}

	for _, p := range sortedPaths(stg) {
		e := stg.Entries[p]
		if e.Mode == object.TreeModeGitlink {
			continue
		}
		if err := validateEntryPath(p); err != nil {
			return fmt.Errorf("checkout index: %w", err)
		}
		dest := filepath.Join(prefix, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("checkout index: mkdir for %q: %w", p, err)
		}

		blob, err := r.Store.ReadBlob(e.BlobHash)
		if err != nil {
			return fmt.Errorf("checkout index: read blob for %q: %w", p, err)
		}

		if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checkout index: replace %q: %w", p, err)
		}
		if e.Mode == object.TreeModeSymlink {
			if err := os.Symlink(string(blob.Data), dest); err != nil {
				return fmt.Errorf("checkout index: symlink %q: %w", p, err)
			}
			continue
		}

		perm := filePermFromMode(e.Mode)
		if err := os.WriteFile(dest, blob.Data, perm); err != nil {
			return fmt.Errorf("checkout index: write %q: %w", p, err)
		}
		// WriteFile is subject to the umask; the executable bit must survive.
		if err := os.Chmod(dest, perm); err != nil {
			return fmt.Errorf("checkout index: chmod %q: %w", p, err)
		}
	}
	return nil
}
