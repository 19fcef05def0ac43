// Package linediff computes line-level differences and renders them as
// unified diffs.
package linediff

import "strings"

// Kind classifies a line of an edit script.
type Kind int

const (
	Equal  Kind = iota // present on both sides
	Insert             // only in the new text
	Delete             // only in the old text
)

// Line is one line of an edit script.
type Line struct {
	Kind    Kind
	Content string
}

// Lines returns the shortest edit script turning a into b, one entry per
// line. A trailing newline does not produce an empty last line.
func Lines(a, b []byte) []Line {
	return myers(splitLines(string(a)), splitLines(string(b)))
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// myers is the O((N+M)D) greedy algorithm. v[k+max] holds the furthest x
// reached on diagonal k; a copy is kept per edit distance for the
// backtrack.
func myers(a, b []string) []Line {
	n, m := len(a), len(b)
	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return uniform(Insert, b)
	case m == 0:
		return uniform(Delete, a)
	}

	max := n + m
	v := make([]int, 2*max+1)
	var trace [][]int

	for d := 0; d <= max; d++ {
		for k := -d; k <= d; k += 2 {
			i := k + max
			var x int
			if k == -d || (k != d && v[i-1] < v[i+1]) {
				x = v[i+1]
			} else {
				x = v[i-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[i] = x
			if x >= n && y >= m {
				trace = append(trace, append([]int(nil), v...))
				return backtrack(trace, a, b, d)
			}
		}
		trace = append(trace, append([]int(nil), v...))
	}
	return nil
}

func backtrack(trace [][]int, a, b []string, final int) []Line {
	max := len(a) + len(b)
	x, y := len(a), len(b)
	var out []Line

	for d := final; d > 0; d-- {
		k := x - y
		prev := trace[d-1]
		var pk int
		if k == -d || (k != d && prev[k-1+max] < prev[k+1+max]) {
			pk = k + 1
		} else {
			pk = k - 1
		}
		px := prev[pk+max]
		py := px - pk

		for x > px && y > py {
			x--
			y--
			out = append(out, Line{Equal, a[x]})
		}
		if k == pk+1 {
			x--
			out = append(out, Line{Delete, a[x]})
		} else {
			y--
			out = append(out, Line{Insert, b[y]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		out = append(out, Line{Equal, a[x]})
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func uniform(kind Kind, lines []string) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{kind, l}
	}
	return out
}
