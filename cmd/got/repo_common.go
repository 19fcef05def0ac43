package main

import (
	"github.com/odvcencio/gotdiff/pkg/object"
	"github.com/odvcencio/gotdiff/pkg/repo"
)

// openRepo opens the got repository containing the working directory.
func openRepo() (*repo.Repo, error) {
	return repo.Open(".")
}

func shortHash(h object.Hash) string {
	s := string(h)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
