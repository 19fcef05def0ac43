package repo

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreChecker determines if a path should be ignored when walking the
// working tree. .got/ and .git/ are always ignored; further rules come from
// a .gotignore file at the repository root.
type IgnoreChecker struct {
	rules []ignoreRule
}

type ignoreRule struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool // pattern contains a slash, so match against the full path
}

// NewIgnoreChecker creates an IgnoreChecker for the given repository root.
func NewIgnoreChecker(repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{rules: []ignoreRule{
		{pattern: ".got"},
		{pattern: ".git"},
	}}

	f, err := os.Open(filepath.Join(repoRoot, ".gotignore"))
	if err != nil {
		return ic
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rule, ok := parseIgnoreLine(scanner.Text()); ok {
			ic.rules = append(ic.rules, rule)
		}
	}
	return ic
}

func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	var rule ignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		rule.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return ignoreRule{}, false
	}
	rule.pattern = line
	return rule, true
}

// Match reports whether the repo-relative, slash-separated path is ignored.
// isDir tells whether rel itself names a directory. The last matching rule
// wins, so negations can re-include paths.
func (ic *IgnoreChecker) Match(rel string, isDir bool) bool {
	ignored := false
	for _, rule := range ic.rules {
		if rule.matches(rel, isDir) {
			ignored = !rule.negated
		}
	}
	return ignored
}

func (rule ignoreRule) matches(rel string, isDir bool) bool {
	segs := strings.Split(rel, "/")
	for i := range segs {
		last := i == len(segs)-1
		if rule.dirOnly && last && !isDir {
			return false
		}
		var candidate string
		if rule.anchored {
			candidate = strings.Join(segs[:i+1], "/")
		} else {
			candidate = segs[i]
		}
		if ok, _ := path.Match(rule.pattern, candidate); ok {
			return true
		}
	}
	return false
}
