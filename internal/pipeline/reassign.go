package pipeline

import (
	"fmt"

	"github.com/thebtf/notemap/internal/centroid"
	"github.com/thebtf/notemap/pkg/models"
)

// ReassignResult reports the outcome of a noise reassignment pass.
type ReassignResult struct {
	Clusters        []*models.EmbeddingCluster
	RemainingNoise  []string
	ReassignedCount int
}

// ReassignNoise re-attaches noise notes to clusters whose centroid is
// similar enough. Centroids are snapshotted before the loop begins, so
// reassignments within one call never see centroids updated mid-loop.
// Notes without a known embedding remain noise unconditionally. Affected
// clusters get their centroid recomputed once at the end over final
// membership; representative notes are left for the caller to refresh.
func ReassignNoise(clusters []*models.EmbeddingCluster, noise []string, embeddings map[string][]float64, threshold float64) (ReassignResult, error) {
	out := make([]*models.EmbeddingCluster, len(clusters))
	snapshot := make(map[string][]float64, len(clusters))
	for i, c := range clusters {
		out[i] = c.Clone()
		snapshot[c.ID] = c.Centroid
	}

	byID := make(map[string]*models.EmbeddingCluster, len(out))
	for _, c := range out {
		byID[c.ID] = c
	}

	remaining := make([]string, 0, len(noise))
	affected := make(map[string]bool)
	reassigned := 0

	for _, notePath := range noise {
		emb, ok := embeddings[notePath]
		if !ok {
			remaining = append(remaining, notePath)
			continue
		}

		match, err := centroid.FindNearestCentroid(emb, snapshot)
		if err != nil {
			return ReassignResult{}, fmt.Errorf("reassign %q: %w", notePath, err)
		}
		if match == nil || match.Similarity < threshold {
			remaining = append(remaining, notePath)
			continue
		}

		c := byID[match.ClusterID]
		c.NoteIDs = append(c.NoteIDs, notePath)
		c.Reasons = append(c.Reasons, fmt.Sprintf("noise reassignment: %s attached (similarity %.2f)", notePath, match.Similarity))
		affected[c.ID] = true
		reassigned++
	}

	// Refresh centroids of clusters that gained members, over final
	// membership. Members with no known embedding are excluded from the
	// mean rather than failing the pass.
	for id := range affected {
		c := byID[id]
		member := make([][]float64, 0, len(c.NoteIDs))
		for _, notePath := range c.NoteIDs {
			if emb, ok := embeddings[notePath]; ok {
				member = append(member, emb)
			}
		}
		if len(member) == 0 {
			continue
		}
		center, err := centroid.Compute(member)
		if err != nil {
			return ReassignResult{}, fmt.Errorf("recompute centroid for %s: %w", id, err)
		}
		c.Centroid = center
	}

	return ReassignResult{Clusters: out, RemainingNoise: remaining, ReassignedCount: reassigned}, nil
}
