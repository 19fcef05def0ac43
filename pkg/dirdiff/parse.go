package dirdiff

import (
	"bytes"
	"strings"

	"github.com/odvcencio/gotdiff/pkg/object"
)

// Parse decodes a NUL-delimited raw change list:
//
//	:oldmode newmode oldhash newhash status\0path\0
//
// Rename and copy records (status R or C) are followed by two paths, the
// source and the destination. An empty stream yields no records and no
// error.
func Parse(raw []byte) ([]ChangeRecord, error) {
	tokens := bytes.Split(raw, []byte{0})
	// A well-formed stream ends in NUL, leaving one empty trailing token.
	if n := len(tokens); n > 0 && len(tokens[n-1]) == 0 {
		tokens = tokens[:n-1]
	}

	var records []ChangeRecord
	offset := 0
	for i := 0; i < len(tokens); {
		header := string(tokens[i])
		headerOffset := offset
		offset += len(tokens[i]) + 1
		i++

		if header == "" {
			return nil, &ParseError{Offset: headerOffset, Msg: "empty record header"}
		}
		if header[0] != ':' {
			return nil, &ParseError{Offset: headerOffset, Record: header, Msg: "header does not start with ':'"}
		}
		fields := strings.Fields(header[1:])
		if len(fields) != 5 {
			return nil, &ParseError{Offset: headerOffset, Record: header, Msg: "expected 5 header fields"}
		}
		oldMode, newMode, oldHash, newHash, status := fields[0], fields[1], fields[2], fields[3], fields[4]
		for _, m := range []string{oldMode, newMode} {
			if !isOctalMode(m) {
				return nil, &ParseError{Offset: headerOffset, Record: header, Msg: "invalid mode " + m}
			}
		}
		for _, h := range []string{oldHash, newHash} {
			if !object.IsZeroHash(h) && !object.IsHexHash(h) {
				return nil, &ParseError{Offset: headerOffset, Record: header, Msg: "invalid object id " + h}
			}
		}

		npaths := 1
		if status[0] == 'R' || status[0] == 'C' {
			npaths = 2
		}
		if i+npaths > len(tokens) {
			return nil, &ParseError{Offset: headerOffset, Record: header, Msg: "missing path"}
		}
		paths := make([]string, npaths)
		for j := range paths {
			paths[j] = string(tokens[i])
			offset += len(tokens[i]) + 1
			i++
			if paths[j] == "" {
				return nil, &ParseError{Offset: headerOffset, Record: header, Msg: "empty path"}
			}
		}

		rec := ChangeRecord{
			Left:   sideState(oldMode, oldHash),
			Right:  sideState(newMode, newHash),
			Status: status,
			Path:   paths[npaths-1],
		}
		if npaths == 2 {
			rec.OldPath = paths[0]
		}
		if rec.Left.Presence == WorkTree && !rec.Left.isGitlink() {
			return nil, &ParseError{Offset: headerOffset, Record: header, Msg: "left side has no object id"}
		}
		records = append(records, rec)
	}
	return records, nil
}

func isOctalMode(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '7' {
			return false
		}
	}
	return true
}
