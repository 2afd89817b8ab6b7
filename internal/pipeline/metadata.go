package pipeline

import (
	"path"
	"sort"
	"strings"

	"github.com/thebtf/notemap/pkg/models"
)

const maxCandidateNames = 10

// dominantTags returns tags carried by at least threshold*len(members) of
// the cluster's members, most frequent first.
func dominantTags(members []string, tags map[string][]string, threshold float64) []string {
	if len(members) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, notePath := range members {
		seen := make(map[string]bool)
		for _, tag := range tags[notePath] {
			if !seen[tag] {
				seen[tag] = true
				counts[tag]++
			}
		}
	}

	minCount := threshold * float64(len(members))
	out := make([]string, 0)
	for tag, count := range counts {
		if float64(count) >= minCount {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// majorityFolder returns the most common folder among the members. Ties
// resolve to the lexicographically smallest folder.
func majorityFolder(members []string, files map[string]models.NoteFile) string {
	counts := make(map[string]int)
	for _, notePath := range members {
		folder := path.Dir(notePath)
		if f, ok := files[notePath]; ok && f.Folder != "" {
			folder = f.Folder
		}
		counts[folder]++
	}

	best := ""
	bestCount := 0
	for folder, count := range counts {
		if count > bestCount || (count == bestCount && folder < best) {
			best = folder
			bestCount = count
		}
	}
	return best
}

// internalLinkDensity is the fraction of directed member pairs connected by
// a resolved link, capped at 1. Singleton clusters have density 0.
func internalLinkDensity(members []string, links map[string]map[string]int) float64 {
	n := len(members)
	if n < 2 {
		return 0
	}

	inCluster := make(map[string]bool, n)
	for _, m := range members {
		inCluster[m] = true
	}

	linkCount := 0
	for _, source := range members {
		for target, count := range links[source] {
			if count > 0 && inCluster[target] && target != source {
				linkCount++
			}
		}
	}

	density := float64(linkCount) / float64(n*(n-1))
	if density > 1 {
		density = 1
	}
	return density
}

// candidateNames derives naming hints from the representative notes'
// basenames: split on dashes and underscores, keep tokens longer than two
// characters, dedupe in order, cap at ten.
func candidateNames(representatives []string, files map[string]models.NoteFile) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, maxCandidateNames)

	for _, notePath := range representatives {
		basename := strings.TrimSuffix(path.Base(notePath), path.Ext(notePath))
		if f, ok := files[notePath]; ok && f.Basename != "" {
			basename = f.Basename
		}

		tokens := strings.FieldsFunc(basename, func(r rune) bool {
			return r == '-' || r == '_'
		})
		for _, token := range tokens {
			if len(token) <= 2 {
				continue
			}
			key := strings.ToLower(token)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, token)
			if len(out) >= maxCandidateNames {
				return out
			}
		}
	}
	return out
}
