package dirdiff

import (
	"bufio"
	"fmt"
	"io"
)

// WriteIndexInfo encodes entries in the index-info protocol:
//
//	mode hash\tpath\0
func WriteIndexInfo(w io.Writer, entries []IndexEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s %s\t%s\x00", e.Mode, e.Hash, e.Path); err != nil {
			return fmt.Errorf("write index info: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write index info: %w", err)
	}
	return nil
}
