// Package incremental cheaply re-assigns only changed notes to an existing
// set of clusters via nearest-centroid matching, bypassing a full
// reduction/clustering pass.
package incremental

import (
	"fmt"

	"github.com/thebtf/notemap/internal/centroid"
	"github.com/thebtf/notemap/internal/changes"
	"github.com/thebtf/notemap/pkg/models"
)

// Assignment records one note attached to a cluster by similarity.
type Assignment struct {
	NotePath   string  `json:"note_path"`
	ClusterID  string  `json:"cluster_id"`
	Similarity float64 `json:"similarity"`
}

// UpdateResult is the outcome of applying an incremental update.
type UpdateResult struct {
	Clusters    []*models.EmbeddingCluster
	Assignments []Assignment
	Unassigned  []string
}

// AssignNotesToClusters matches each embedding to its nearest cluster
// centroid by cosine similarity. Notes below minSimilarity stay unassigned,
// as does everything when the cluster list is empty.
func AssignNotesToClusters(notes []models.EmbeddedNote, clusters []*models.EmbeddingCluster, minSimilarity float64) ([]Assignment, []string, error) {
	if len(clusters) == 0 {
		unassigned := make([]string, 0, len(notes))
		for _, n := range notes {
			unassigned = append(unassigned, n.NotePath)
		}
		return nil, unassigned, nil
	}

	centroids := make(map[string][]float64, len(clusters))
	for _, c := range clusters {
		centroids[c.ID] = c.Centroid
	}

	var assigned []Assignment
	var unassigned []string
	for _, n := range notes {
		match, err := centroid.FindNearestCentroid(n.Embedding, centroids)
		if err != nil {
			return nil, nil, fmt.Errorf("assign %q: %w", n.NotePath, err)
		}
		if match == nil || match.Similarity < minSimilarity {
			unassigned = append(unassigned, n.NotePath)
			continue
		}
		assigned = append(assigned, Assignment{
			NotePath:   n.NotePath,
			ClusterID:  match.ClusterID,
			Similarity: match.Similarity,
		})
	}
	return assigned, unassigned, nil
}

// ApplyUpdate prunes deleted and modified notes from the given clusters,
// re-assigns the changed notes against the pruned clusters, and drops any
// cluster left empty. The input clusters are never mutated; modified notes
// are removed before being re-added, never updated in place. Centroids are
// deliberately not recomputed on this path; only a full run refreshes them.
func ApplyUpdate(clusters []*models.EmbeddingCluster, delta changes.Summary, newEmbeddings []models.EmbeddedNote, minSimilarity float64) (UpdateResult, error) {
	pruned := make([]*models.EmbeddingCluster, 0, len(clusters))
	remove := make(map[string]bool, len(delta.Deleted)+len(delta.Modified))
	for _, p := range delta.Deleted {
		remove[p] = true
	}
	for _, p := range delta.Modified {
		remove[p] = true
	}

	for _, c := range clusters {
		clone := c.Clone()
		if len(remove) > 0 {
			kept := clone.NoteIDs[:0]
			for _, id := range clone.NoteIDs {
				if !remove[id] {
					kept = append(kept, id)
				}
			}
			clone.NoteIDs = kept
		}
		pruned = append(pruned, clone)
	}

	assigned, unassigned, err := AssignNotesToClusters(newEmbeddings, pruned, minSimilarity)
	if err != nil {
		return UpdateResult{}, err
	}

	byID := make(map[string]*models.EmbeddingCluster, len(pruned))
	for _, c := range pruned {
		byID[c.ID] = c
	}
	for _, a := range assigned {
		c := byID[a.ClusterID]
		if c.ContainsNote(a.NotePath) {
			continue
		}
		c.NoteIDs = append(c.NoteIDs, a.NotePath)
		c.Reasons = append(c.Reasons, fmt.Sprintf("incremental: %s joined by nearest centroid (similarity %.2f)", a.NotePath, a.Similarity))
	}

	// Clusters emptied by deletions disappear.
	final := make([]*models.EmbeddingCluster, 0, len(pruned))
	for _, c := range pruned {
		if len(c.NoteIDs) > 0 {
			final = append(final, c)
		}
	}

	if unassigned == nil {
		unassigned = []string{}
	}
	return UpdateResult{Clusters: final, Assignments: assigned, Unassigned: unassigned}, nil
}
