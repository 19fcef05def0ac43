package dirdiff

import (
	"github.com/odvcencio/gotdiff/pkg/object"
)

// Presence says what a change record knows about one side of a path.
type Presence int

const (
	// Absent means the path does not exist on this side.
	Absent Presence = iota
	// Stored means the side's content is addressable in the object store.
	Stored
	// WorkTree means the content only exists in the live working tree.
	WorkTree
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Stored:
		return "stored"
	case WorkTree:
		return "worktree"
	default:
		return "unknown"
	}
}

// SideState is one side of a change record. Hash is only meaningful when
// Presence is Stored.
type SideState struct {
	Presence Presence
	Mode     string
	Hash     object.Hash
}

// Defined reports whether the side has a usable object id.
func (s SideState) Defined() bool {
	return s.Presence == Stored
}

func (s SideState) isGitlink() bool {
	return s.Mode == object.TreeModeGitlink
}

// sideState maps a raw (mode, hash) pair to its tagged form. The all-zero
// sentinels never leave this function.
func sideState(mode, hash string) SideState {
	switch {
	case object.IsNullMode(mode):
		return SideState{Presence: Absent}
	case object.IsZeroHash(hash):
		return SideState{Presence: WorkTree, Mode: mode}
	default:
		return SideState{Presence: Stored, Mode: mode, Hash: object.Hash(hash)}
	}
}

// ChangeRecord is one parsed entry of a raw change list. OldPath is only
// set for rename and copy records, where it names the left-side path.
type ChangeRecord struct {
	Left    SideState
	Right   SideState
	Status  string
	Path    string
	OldPath string
}

// LeftPath returns the path the left side lives at.
func (r ChangeRecord) LeftPath() string {
	if r.OldPath != "" {
		return r.OldPath
	}
	return r.Path
}

// IsSubmodule reports whether either side refers to a nested repository.
func (r ChangeRecord) IsSubmodule() bool {
	return r.Left.isGitlink() || r.Right.isGitlink()
}

// IndexEntry is one (mode, hash, path) triple of a side index.
type IndexEntry struct {
	Mode string
	Hash object.Hash
	Path string
}

// SideIndex is the ordered set of entries materialized for one side.
type SideIndex []IndexEntry

// Paths returns the entry paths in order.
func (s SideIndex) Paths() []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Path
	}
	return out
}

// SubmoduleRef records the commits a nested repository points at on each
// side. Only Stored sides carry a commit.
type SubmoduleRef struct {
	Path  string
	Left  SideState
	Right SideState
}
