package backup

import (
	"sort"
	"time"
)

// Stamp is the part of a backup entry the retention policy looks at.
type Stamp struct {
	ID      string
	ModTime time.Time
}

// Evict returns the ids to delete so that at most max entries remain. The
// oldest entries by modification time go first; equal times fall back to id
// order, which matches creation order for generated names.
//
// Evict does not touch the filesystem.
func Evict(stamps []Stamp, max int) []string {
	if max < 0 {
		max = 0
	}
	if len(stamps) <= max {
		return nil
	}

	sorted := make([]Stamp, len(stamps))
	copy(sorted, stamps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ModTime.Equal(sorted[j].ModTime) {
			return sorted[i].ModTime.Before(sorted[j].ModTime)
		}
		return sorted[i].ID < sorted[j].ID
	})

	n := len(sorted) - max
	ids := make([]string, 0, n)
	for _, s := range sorted[:n] {
		ids = append(ids, s.ID)
	}
	return ids
}
