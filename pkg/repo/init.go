package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// ErrNotRepository is returned by Open when no .got/ directory is found.
var ErrNotRepository = errors.New("not a got repository (or any parent up to /)")

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// Init creates a new Got repository at path. It creates the .got/ directory
// structure: HEAD, objects/, and refs/heads/. Returns an error if a .got/
// directory already exists.
func Init(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	gotDir := filepath.Join(abs, ".got")

	if _, err := os.Stat(gotDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", gotDir)
	}

	for _, d := range []string{
		filepath.Join(gotDir, "objects"),
		filepath.Join(gotDir, "refs", "heads"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(gotDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	return &Repo{
		RootDir: abs,
		GotDir:  gotDir,
		Store:   object.NewStore(gotDir),
	}, nil
}

// Open searches upward from path for a .got/ directory and opens the
// repository. Returns ErrNotRepository if no .got/ directory is found.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		gotDir := filepath.Join(cur, ".got")
		info, err := os.Stat(gotDir)
		if err == nil && info.IsDir() {
			return &Repo{
				RootDir: cur,
				GotDir:  gotDir,
				Store:   object.NewStore(gotDir),
			}, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: %w", ErrNotRepository)
		}
		cur = parent
	}
}

// Head reads .got/HEAD. If the content starts with "ref: ", it returns the
// ref path (e.g., "refs/heads/main"). Otherwise it returns the raw content
// as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GotDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}

// ErrUnbornHead is returned by HeadCommit when HEAD names a branch that
// has no commits yet.
var ErrUnbornHead = errors.New("HEAD has no commits yet")

// HeadCommit resolves HEAD to a commit id. A symbolic HEAD whose branch
// ref does not exist yet yields ErrUnbornHead; an unreadable or malformed
// ref is an error.
func (r *Repo) HeadCommit() (object.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	h, err := r.ResolveRef("HEAD")
	if err != nil {
		if strings.HasPrefix(head, "refs/") && errors.Is(err, os.ErrNotExist) {
			return "", ErrUnbornHead
		}
		return "", err
	}
	if !object.IsHexHash(string(h)) {
		return "", fmt.Errorf("head: %s holds malformed object id %q", head, h)
	}
	return h, nil
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD. If HEAD is symbolic, resolve the target ref.
//  2. If name starts with "refs/", read .got/<name>.
//  3. Otherwise, try "refs/heads/<name>".
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		return object.Hash(head), nil
	}

	var refPath string
	if strings.HasPrefix(name, "refs/") {
		refPath = filepath.Join(r.GotDir, filepath.FromSlash(name))
	} else {
		refPath = filepath.Join(r.GotDir, "refs", "heads", filepath.FromSlash(name))
	}

	data, err := os.ReadFile(refPath)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// ResolveRevision resolves a revision expression to a commit hash. It
// accepts anything ResolveRef does, a full object id, and any number of
// trailing "^" or "~N" first-parent steps (e.g. "HEAD~2", "main^^").
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	base, steps, err := splitAncestry(rev)
	if err != nil {
		return "", fmt.Errorf("resolve revision %q: %w", rev, err)
	}

	var h object.Hash
	if object.IsHexHash(base) && r.Store.Has(object.Hash(base)) {
		h = object.Hash(base)
	} else {
		h, err = r.ResolveRef(base)
		if err != nil {
			return "", fmt.Errorf("resolve revision %q: %w", rev, err)
		}
	}

	for i := 0; i < steps; i++ {
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return "", fmt.Errorf("resolve revision %q: %w", rev, err)
		}
		if len(c.Parents) == 0 {
			return "", fmt.Errorf("resolve revision %q: commit %s has no parent", rev, h)
		}
		h = c.Parents[0]
	}
	if _, err := r.Store.ReadCommit(h); err != nil {
		return "", fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	return h, nil
}

// splitAncestry separates "main~2^" into ("main", 3).
func splitAncestry(rev string) (string, int, error) {
	steps := 0
	for {
		if strings.HasSuffix(rev, "^") {
			rev = rev[:len(rev)-1]
			steps++
			continue
		}
		idx := strings.LastIndexByte(rev, '~')
		if idx < 0 {
			break
		}
		suffix := rev[idx+1:]
		n := 1
		if suffix != "" {
			v, err := strconv.Atoi(suffix)
			if err != nil || v < 0 {
				break
			}
			n = v
		}
		steps += n
		rev = rev[:idx]
	}
	if rev == "" {
		return "", 0, errors.New("empty revision")
	}
	return rev, steps, nil
}

// UpdateRef writes a hash to the named ref file under .got/ using lockfile
// + rename semantics. Parent directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	refPath := filepath.Join(r.GotDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		lockFile.Close()
		os.Remove(lockPath)
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		os.Remove(lockPath)
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	if err := os.Rename(lockPath, refPath); err != nil {
		os.Remove(lockPath)
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}
