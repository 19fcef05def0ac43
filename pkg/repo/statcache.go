package repo

import (
	"os"
	"time"
)

// racyCleanWindow is how recent a modification must be for stat data to
// be distrusted.
const racyCleanWindow = 2 * time.Second

// statNanoThreshold separates nanosecond index timestamps from older
// second-resolution ones.
const statNanoThreshold int64 = 1 << 40

// statMatchesIndex reports whether the file behind info is known to hold
// the content recorded in se without reading it.
func statMatchesIndex(se *StagingEntry, info os.FileInfo, workMode string) bool {
	if se == nil {
		return false
	}
	if normalizeFileMode(se.Mode) != normalizeFileMode(workMode) {
		return false
	}
	if se.Size != info.Size() || se.ModTime < statNanoThreshold {
		return false
	}
	if isRacyClean(info.ModTime(), time.Now()) {
		return false
	}
	// Coarse filesystem clocks hide same-size edits within a second.
	if info.ModTime().Nanosecond() == 0 {
		return false
	}
	return se.ModTime == info.ModTime().UnixNano()
}

func isRacyClean(modTime, now time.Time) bool {
	if modTime.After(now) {
		return true
	}
	return now.Sub(modTime) < racyCleanWindow
}
