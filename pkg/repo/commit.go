package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gotdiff/pkg/object"
)

var (
	// ErrNothingStaged is returned by Commit when the index is empty.
	ErrNothingStaged = errors.New("nothing staged")
	// ErrNoAuthor is returned by Commit when no author is given and
	// user.name is unset.
	ErrNoAuthor = errors.New("no author: pass one or set user.name")
)

// Commit records the primary index as a new commit on top of HEAD and
// advances the current branch, or HEAD itself when detached. An empty
// author falls back to the user.name setting.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	if author == "" {
		cfg, err := r.ReadConfig()
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
		author = strings.TrimSpace(cfg.User.Name)
	}
	if author == "" {
		return "", fmt.Errorf("commit: %w", ErrNoAuthor)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: %w", ErrNothingStaged)
	}
	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	parents, err := r.headParents()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	h, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}
	if err := r.advanceHead(h); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return h, nil
}

// headParents is empty on an unborn branch.
func (r *Repo) headParents() ([]object.Hash, error) {
	h, err := r.HeadCommit()
	if errors.Is(err, ErrUnbornHead) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []object.Hash{h}, nil
}

func (r *Repo) advanceHead(h object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}
	if strings.HasPrefix(head, "refs/") {
		return r.UpdateRef(head, h)
	}
	return r.UpdateRef("HEAD", h)
}
