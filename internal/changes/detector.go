// Package changes diffs the current note set against a previous run's
// fingerprinted note set, classifying new, modified, and deleted notes and
// estimating the overall change magnitude.
package changes

import (
	"sort"

	"github.com/thebtf/notemap/pkg/models"
)

// Summary classifies the delta between two note sets.
type Summary struct {
	New      []string `json:"new"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
	// ChangePercentage is (new+modified+deleted) / max(current, previous).
	ChangePercentage float64 `json:"change_percentage"`
	// ShouldUseIncremental is true when the change percentage is below the
	// incremental threshold. Never true without a previous state.
	ShouldUseIncremental bool `json:"should_use_incremental"`
}

// Changed returns the union of new and modified note paths.
func (s Summary) Changed() []string {
	out := make([]string, 0, len(s.New)+len(s.Modified))
	out = append(out, s.New...)
	out = append(out, s.Modified...)
	return out
}

// Detect compares current note hashes against the previous state. With no
// previous state every note is new, the change percentage is 1, and
// incremental mode is never recommended.
func Detect(current map[string]string, previous *models.ClusteringState, incrementalThreshold float64) Summary {
	if previous == nil || previous.NoteHashes == nil {
		s := Summary{
			New:              sortedKeys(current),
			Modified:         []string{},
			Deleted:          []string{},
			ChangePercentage: 1,
		}
		return s
	}

	s := Summary{New: []string{}, Modified: []string{}, Deleted: []string{}}
	for path, hash := range current {
		prevHash, ok := previous.NoteHashes[path]
		switch {
		case !ok:
			s.New = append(s.New, path)
		case prevHash != hash:
			s.Modified = append(s.Modified, path)
		}
	}
	for path := range previous.NoteHashes {
		if _, ok := current[path]; !ok {
			s.Deleted = append(s.Deleted, path)
		}
	}
	sort.Strings(s.New)
	sort.Strings(s.Modified)
	sort.Strings(s.Deleted)

	denom := len(current)
	if len(previous.NoteHashes) > denom {
		denom = len(previous.NoteHashes)
	}
	if denom > 0 {
		s.ChangePercentage = float64(len(s.New)+len(s.Modified)+len(s.Deleted)) / float64(denom)
	}
	s.ShouldUseIncremental = s.ChangePercentage < incrementalThreshold
	return s
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
