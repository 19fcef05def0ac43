package linediff

import (
	"bytes"
	"fmt"
	"io"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// Hunk is a half-open range [Start, End) of an edit script.
type Hunk struct {
	Start int
	End   int
}

// Hunks groups changed lines with context lines of surrounding context.
// Hunks whose context would touch are merged.
func Hunks(lines []Line, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	var hunks []Hunk
	for i, l := range lines {
		if l.Kind == Equal {
			continue
		}
		start := max(i-context, 0)
		end := min(i+context+1, len(lines))
		if len(hunks) == 0 || start > hunks[len(hunks)-1].End {
			hunks = append(hunks, Hunk{Start: start, End: end})
			continue
		}
		if end > hunks[len(hunks)-1].End {
			hunks[len(hunks)-1].End = end
		}
	}
	return hunks
}

// Range returns the 1-based old and new line spans covered by h, as used
// in "@@ -oldStart,oldCount +newStart,newCount @@" headers.
func (h Hunk) Range(lines []Line) (oldStart, oldCount, newStart, newCount int) {
	oldLine, newLine := 1, 1
	for _, l := range lines[:h.Start] {
		switch l.Kind {
		case Equal:
			oldLine++
			newLine++
		case Delete:
			oldLine++
		case Insert:
			newLine++
		}
	}
	oldStart, newStart = oldLine, newLine
	for _, l := range lines[h.Start:h.End] {
		switch l.Kind {
		case Equal:
			oldCount++
			newCount++
		case Delete:
			oldCount++
		case Insert:
			newCount++
		}
	}
	// An empty span points at the line before it.
	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}
	return oldStart, oldCount, newStart, newCount
}

// IsBinary reports whether data looks like binary content.
func IsBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// WriteUnified writes the unified diff of before and after under the
// given file names. Identical inputs write nothing. Binary inputs write a
// single "Binary files ... differ" line.
func WriteUnified(w io.Writer, oldName, newName string, before, after []byte) error {
	if bytes.Equal(before, after) {
		return nil
	}
	if IsBinary(before) || IsBinary(after) {
		_, err := fmt.Fprintf(w, "Binary files %s and %s differ\n", oldName, newName)
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", oldName, newName)
	lines := Lines(before, after)
	for _, h := range Hunks(lines, DefaultContext) {
		oldStart, oldCount, newStart, newCount := h.Range(lines)
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
		for _, l := range lines[h.Start:h.End] {
			switch l.Kind {
			case Equal:
				buf.WriteByte(' ')
			case Insert:
				buf.WriteByte('+')
			case Delete:
				buf.WriteByte('-')
			}
			buf.WriteString(l.Content)
			buf.WriteByte('\n')
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}
