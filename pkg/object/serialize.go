package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	return append([]byte(nil), b.Data...)
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	return &Blob{Data: append([]byte(nil), data...)}, nil
}

// MarshalTree serializes a TreeObj, one line per entry sorted by name:
//
//	mode id name
//
// The id is the subtree for directories, the referenced commit for
// gitlinks and the blob otherwise. The name is last so it may contain
// spaces.
func MarshalTree(tr *TreeObj) []byte {
	sorted := append([]TreeEntry(nil), tr.Entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	for _, e := range sorted {
		mode := entryMode(e)
		fmt.Fprintf(&buf, "%s %s %s\n", mode, entryID(e, mode), e.Name)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		mode, rest, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		id, name, ok := strings.Cut(rest, " ")
		if !ok || name == "" {
			return nil, fmt.Errorf("unmarshal tree: entry %q has no name", line)
		}
		if !IsHexHash(id) {
			return nil, fmt.Errorf("unmarshal tree: entry %q: bad object id %q", name, id)
		}
		e := TreeEntry{Name: name, Mode: mode}
		switch mode {
		case TreeModeDir:
			e.IsDir = true
			e.SubtreeHash = Hash(id)
		case TreeModeFile, TreeModeExecutable, TreeModeSymlink, TreeModeGitlink:
			e.BlobHash = Hash(id)
		default:
			return nil, fmt.Errorf("unmarshal tree: entry %q: unknown mode %q", name, mode)
		}
		tr.Entries = append(tr.Entries, e)
	}
	return tr, nil
}

func entryMode(e TreeEntry) string {
	switch {
	case e.IsDir:
		return TreeModeDir
	case strings.TrimSpace(e.Mode) == "":
		return TreeModeFile
	}
	return e.Mode
}

func entryID(e TreeEntry, mode string) Hash {
	if mode == TreeModeDir {
		return e.SubtreeHash
	}
	return e.BlobHash
}

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	timestamp T
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}
