package repo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// RawChange is one record of a raw change list: the mode and object id on
// each side plus a one-letter status. A side that does not exist carries
// object.ModeNone; working-tree content that is not in the store carries
// object.ZeroHash.
type RawChange struct {
	OldMode string
	NewMode string
	OldHash object.Hash
	NewHash object.Hash
	Status  byte
	Path    string
}

// DiffOptions selects the two states RawDiff compares.
//
//	no revisions            index       -> working tree
//	no revisions, Cached    HEAD        -> index
//	one revision            revision    -> working tree
//	one revision, Cached    revision    -> index
//	two revisions / A..B    revision A  -> revision B
type DiffOptions struct {
	Cached    bool
	Revisions []string
	Paths     []string
}

// ErrSymmetricRange is returned for "A...B" revision ranges, which need a
// merge base.
var ErrSymmetricRange = errors.New("symmetric difference ranges (A...B) are not supported")

type sideEntry struct {
	Mode string
	Hash object.Hash
}

// RawDiff computes the change list between two repository states. The
// result is sorted by path and contains only paths that differ.
func (r *Repo) RawDiff(opts DiffOptions) ([]RawChange, error) {
	revs, err := expandRanges(opts.Revisions)
	if err != nil {
		return nil, fmt.Errorf("raw diff: %w", err)
	}

	var oldSide, newSide map[string]sideEntry
	switch len(revs) {
	case 0:
		index, err := r.indexEntries()
		if err != nil {
			return nil, fmt.Errorf("raw diff: %w", err)
		}
		if opts.Cached {
			oldSide, err = r.headEntries()
			if err != nil {
				return nil, fmt.Errorf("raw diff: %w", err)
			}
			newSide = index
		} else {
			oldSide = index
			newSide, err = r.worktreeEntries()
			if err != nil {
				return nil, fmt.Errorf("raw diff: %w", err)
			}
		}
	case 1:
		oldSide, err = r.revisionEntries(revs[0])
		if err != nil {
			return nil, fmt.Errorf("raw diff: %w", err)
		}
		if opts.Cached {
			newSide, err = r.indexEntries()
		} else {
			newSide, err = r.worktreeEntries()
		}
		if err != nil {
			return nil, fmt.Errorf("raw diff: %w", err)
		}
	case 2:
		oldSide, err = r.revisionEntries(revs[0])
		if err != nil {
			return nil, fmt.Errorf("raw diff: %w", err)
		}
		newSide, err = r.revisionEntries(revs[1])
		if err != nil {
			return nil, fmt.Errorf("raw diff: %w", err)
		}
	default:
		return nil, fmt.Errorf("raw diff: too many revisions (%d)", len(revs))
	}

	return compareSides(oldSide, newSide, opts.Paths), nil
}

// expandRanges splits "A..B" into two revisions; an empty endpoint means
// HEAD.
func expandRanges(revs []string) ([]string, error) {
	var out []string
	for _, rev := range revs {
		if strings.Contains(rev, "...") {
			return nil, ErrSymmetricRange
		}
		from, to, ok := strings.Cut(rev, "..")
		if !ok {
			out = append(out, rev)
			continue
		}
		if from == "" {
			from = "HEAD"
		}
		if to == "" {
			to = "HEAD"
		}
		out = append(out, from, to)
	}
	return out, nil
}

func compareSides(oldSide, newSide map[string]sideEntry, pathspecs []string) []RawChange {
	paths := make(map[string]struct{}, len(oldSide)+len(newSide))
	for p := range oldSide {
		paths[p] = struct{}{}
	}
	for p := range newSide {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		if matchesPathspec(p, pathspecs) {
			sorted = append(sorted, p)
		}
	}
	sort.Strings(sorted)

	var changes []RawChange
	for _, p := range sorted {
		o, inOld := oldSide[p]
		n, inNew := newSide[p]
		switch {
		case inOld && inNew:
			if o.Mode == n.Mode && o.Hash == n.Hash {
				continue
			}
			status := byte('M')
			if modeKind(o.Mode) != modeKind(n.Mode) {
				status = 'T'
			}
			changes = append(changes, RawChange{OldMode: o.Mode, NewMode: n.Mode, OldHash: o.Hash, NewHash: n.Hash, Status: status, Path: p})
		case inOld:
			changes = append(changes, RawChange{OldMode: o.Mode, NewMode: object.ModeNone, OldHash: o.Hash, NewHash: object.ZeroHash, Status: 'D', Path: p})
		default:
			changes = append(changes, RawChange{OldMode: object.ModeNone, NewMode: n.Mode, OldHash: object.ZeroHash, NewHash: n.Hash, Status: 'A', Path: p})
		}
	}
	return changes
}

// modeKind collapses the executable bit so that 100644 -> 100755 is a
// modification rather than a type change.
func modeKind(mode string) string {
	if mode == object.TreeModeExecutable {
		return object.TreeModeFile
	}
	return mode
}

// matchesPathspec reports whether p equals one of specs or lies beneath
// one of them. An empty spec list, "" or "." match everything.
func matchesPathspec(p string, specs []string) bool {
	if len(specs) == 0 {
		return true
	}
	for _, spec := range specs {
		spec = strings.TrimSuffix(filepath.ToSlash(spec), "/")
		if spec == "" || spec == "." || p == spec || strings.HasPrefix(p, spec+"/") {
			return true
		}
	}
	return false
}

func (r *Repo) indexEntries() (map[string]sideEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, err
	}
	out := make(map[string]sideEntry, len(stg.Entries))
	for p, e := range stg.Entries {
		out[p] = sideEntry{Mode: normalizeFileMode(e.Mode), Hash: e.BlobHash}
	}
	return out, nil
}

// headEntries returns the HEAD tree, or an empty map before the first
// commit.
func (r *Repo) headEntries() (map[string]sideEntry, error) {
	h, err := r.HeadCommit()
	if errors.Is(err, ErrUnbornHead) {
		return map[string]sideEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return r.revisionEntries(string(h))
}

func (r *Repo) revisionEntries(rev string) (map[string]sideEntry, error) {
	h, err := r.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}
	files, err := r.commitTreeEntries(h)
	if err != nil {
		return nil, fmt.Errorf("read tree of %s: %w", rev, err)
	}
	out := make(map[string]sideEntry, len(files))
	for p, f := range files {
		out[p] = sideEntry{Mode: f.Mode, Hash: f.BlobHash}
	}
	return out, nil
}

// worktreeEntries describes the working tree for every indexed path.
// Content identical to the index keeps the index object id; anything else
// gets object.ZeroHash. Paths missing from disk are omitted. Untracked
// files are not reported.
func (r *Repo) worktreeEntries() (map[string]sideEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, err
	}
	out := make(map[string]sideEntry, len(stg.Entries))
	for p, se := range stg.Entries {
		e, ok, err := r.worktreeEntry(se)
		if err != nil {
			return nil, fmt.Errorf("worktree %q: %w", p, err)
		}
		if ok {
			out[p] = e
		}
	}
	return out, nil
}

func (r *Repo) worktreeEntry(se *StagingEntry) (sideEntry, bool, error) {
	absPath := r.WorkPath(se.Path)
	info, err := os.Lstat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sideEntry{}, false, nil
		}
		return sideEntry{}, false, err
	}

	if se.Mode == object.TreeModeGitlink {
		if !info.IsDir() {
			return sideEntry{}, false, nil
		}
		head, err := nestedHead(absPath)
		if err != nil {
			// An unpopulated nested checkout is treated as unchanged.
			return sideEntry{Mode: se.Mode, Hash: se.BlobHash}, true, nil
		}
		return sideEntry{Mode: se.Mode, Hash: head}, true, nil
	}
	if info.IsDir() {
		return sideEntry{}, false, nil
	}

	mode := modeFromFileInfo(info)
	if statMatchesIndex(se, info, mode) {
		return sideEntry{Mode: mode, Hash: se.BlobHash}, true, nil
	}
	var content []byte
	if mode == object.TreeModeSymlink {
		target, err := os.Readlink(absPath)
		if err != nil {
			return sideEntry{}, false, err
		}
		content = []byte(target)
	} else {
		content, err = os.ReadFile(absPath)
		if err != nil {
			return sideEntry{}, false, err
		}
	}
	if object.HashObject(object.TypeBlob, content) == se.BlobHash {
		return sideEntry{Mode: mode, Hash: se.BlobHash}, true, nil
	}
	return sideEntry{Mode: mode, Hash: object.ZeroHash}, true, nil
}

// WriteRaw writes changes in the NUL-delimited raw format:
//
//	:oldmode newmode oldhash newhash status\0path\0
func WriteRaw(w io.Writer, changes []RawChange) error {
	for _, c := range changes {
		if _, err := fmt.Fprintf(w, ":%s %s %s %s %c\x00%s\x00", c.OldMode, c.NewMode, c.OldHash, c.NewHash, c.Status, c.Path); err != nil {
			return fmt.Errorf("write raw diff: %w", err)
		}
	}
	return nil
}
