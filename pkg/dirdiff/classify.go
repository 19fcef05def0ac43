package dirdiff

// Plan is the classified form of a change list: what each side's index
// holds, which right-side paths are copied from the working tree, and
// which paths are nested repositories.
type Plan struct {
	Left       SideIndex
	Right      SideIndex
	WorkTree   []string
	Submodules []SubmoduleRef
}

// Empty reports whether the plan materializes nothing.
func (p Plan) Empty() bool {
	return len(p.Left) == 0 && len(p.Right) == 0 && len(p.WorkTree) == 0 && len(p.Submodules) == 0
}

// writesNothing reports whether building the plan leaves both trees
// empty, as when only dirty submodules changed.
func (p Plan) writesNothing() bool {
	if len(p.Left) > 0 || len(p.Right) > 0 || len(p.WorkTree) > 0 {
		return false
	}
	for _, ref := range p.Submodules {
		if ref.Left.Defined() || ref.Right.Defined() {
			return false
		}
	}
	return true
}

// Classify buckets records without touching the filesystem.
//
// A record with a gitlink mode on either side becomes a SubmoduleRef.
// Otherwise the left side, when present, goes to the left index and the
// right side goes to the right index or, when it has no object id, to the
// working-tree set. A path listed twice keeps its first position and its
// last value.
func Classify(records []ChangeRecord) Plan {
	left := newOrderedIndex()
	right := newOrderedIndex()
	subs := make(map[string]int)
	var plan Plan

	for _, rec := range records {
		if rec.IsSubmodule() {
			ref := SubmoduleRef{Path: rec.Path}
			if rec.Left.Defined() {
				ref.Left = rec.Left
			}
			if rec.Right.Defined() {
				ref.Right = rec.Right
			}
			if i, ok := subs[rec.Path]; ok {
				plan.Submodules[i] = ref
			} else {
				subs[rec.Path] = len(plan.Submodules)
				plan.Submodules = append(plan.Submodules, ref)
			}
			continue
		}

		if rec.Left.Presence == Stored {
			left.put(rec.LeftPath(), IndexEntry{Mode: rec.Left.Mode, Hash: rec.Left.Hash, Path: rec.LeftPath()}, false)
		}
		switch rec.Right.Presence {
		case WorkTree:
			right.put(rec.Path, IndexEntry{}, true)
		case Stored:
			right.put(rec.Path, IndexEntry{Mode: rec.Right.Mode, Hash: rec.Right.Hash, Path: rec.Path}, false)
		}
	}

	plan.Left, _ = left.entries()
	plan.Right, plan.WorkTree = right.entries()
	return plan
}

type orderedSlot struct {
	entry    IndexEntry
	workTree bool
}

// orderedIndex keeps one slot per path in first-seen order.
type orderedIndex struct {
	order []string
	slots map[string]orderedSlot
}

func newOrderedIndex() *orderedIndex {
	return &orderedIndex{slots: make(map[string]orderedSlot)}
}

func (o *orderedIndex) put(path string, e IndexEntry, workTree bool) {
	if _, ok := o.slots[path]; !ok {
		o.order = append(o.order, path)
	}
	o.slots[path] = orderedSlot{entry: e, workTree: workTree}
}

// entries splits the slots into index entries and working-tree paths, so
// a path never ends up in both.
func (o *orderedIndex) entries() (SideIndex, []string) {
	var idx SideIndex
	var wt []string
	for _, p := range o.order {
		s := o.slots[p]
		if s.workTree {
			wt = append(wt, p)
			continue
		}
		idx = append(idx, s.entry)
	}
	return idx, wt
}
