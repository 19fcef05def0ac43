package dirdiff

import (
	"context"

	"github.com/rs/zerolog"
)

// IndexHandle identifies a populated side-scoped index. It is only valid
// for the IndexStore that returned it.
type IndexHandle struct {
	File    string
	Entries int
}

// IndexStore is the object store's checkout capability: populate a
// private index from triples, then write its entries under a directory.
// Implementations must never touch the repository's primary index.
type IndexStore interface {
	PopulateIndex(ctx context.Context, indexFile string, entries []IndexEntry) (IndexHandle, error)
	Checkout(ctx context.Context, h IndexHandle, targetDir string) error
}

// SideBuilder materializes one side of a workspace from its index.
type SideBuilder struct {
	Store IndexStore
	Log   zerolog.Logger
}

// Build populates the side's private index and checks it out into the
// side's directory. An empty index leaves the directory empty.
func (b SideBuilder) Build(ctx context.Context, ws *Workspace, side Side, entries SideIndex) error {
	if len(entries) == 0 {
		b.Log.Debug().Str("side", string(side)).Msg("Side has no stored entries")
		return nil
	}
	h, err := b.Store.PopulateIndex(ctx, ws.IndexFile(side), entries)
	if err != nil {
		return &CheckoutError{Side: side, Err: err}
	}
	if err := b.Store.Checkout(ctx, h, ws.Dir(side)); err != nil {
		return &CheckoutError{Side: side, Err: err}
	}
	b.Log.Debug().
		Str("side", string(side)).
		Int("entries", h.Entries).
		Msg("Side checked out")
	return nil
}
