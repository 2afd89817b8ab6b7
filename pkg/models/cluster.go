package models

import (
	"maps"
	"slices"
	"time"
)

// EmbeddingCluster is a semantically coherent group of notes discovered by
// the clustering pipeline. Centroid is always in the original embedding
// space, never the reduced space, so similarity comparisons against it stay
// semantically meaningful.
type EmbeddingCluster struct {
	ID                  string    `json:"id"`
	NoteIDs             []string  `json:"note_ids"`
	Centroid            []float64 `json:"centroid"`
	RepresentativeNotes []string  `json:"representative_notes"`
	CandidateNames      []string  `json:"candidate_names"`
	DominantTags        []string  `json:"dominant_tags"`
	FolderPath          string    `json:"folder_path"`
	InternalLinkDensity float64   `json:"internal_link_density"`
	CreatedAt           time.Time `json:"created_at"`
	Reasons             []string  `json:"reasons"`
}

// Clone returns a deep copy of the cluster.
func (c *EmbeddingCluster) Clone() *EmbeddingCluster {
	if c == nil {
		return nil
	}
	out := *c
	out.NoteIDs = slices.Clone(c.NoteIDs)
	out.Centroid = slices.Clone(c.Centroid)
	out.RepresentativeNotes = slices.Clone(c.RepresentativeNotes)
	out.CandidateNames = slices.Clone(c.CandidateNames)
	out.DominantTags = slices.Clone(c.DominantTags)
	out.Reasons = slices.Clone(c.Reasons)
	return &out
}

// ContainsNote reports whether the cluster currently holds the given note.
func (c *EmbeddingCluster) ContainsNote(notePath string) bool {
	return slices.Contains(c.NoteIDs, notePath)
}

// ClusteringState is the only artifact that crosses invocation boundaries.
// The caller persists it opaquely and supplies it back as previousState on
// the next run. The pipeline never mutates a supplied state in place; it
// always hands back a freshly constructed value.
type ClusteringState struct {
	Clusters             []*EmbeddingCluster  `json:"clusters"`
	Centroids            map[string][]float64 `json:"centroids"`
	LastFullClusteringAt time.Time            `json:"last_full_clustering_at"`
	NoteHashes           map[string]string    `json:"note_hashes"`
	// IncrementalRuns counts consecutive incremental runs since the last
	// full clustering. Used to force a periodic full refresh so centroid
	// drift cannot accumulate unboundedly.
	IncrementalRuns int `json:"incremental_runs"`
}

// Clone returns a deep copy of the state.
func (s *ClusteringState) Clone() *ClusteringState {
	if s == nil {
		return nil
	}
	out := &ClusteringState{
		Clusters:             make([]*EmbeddingCluster, len(s.Clusters)),
		Centroids:            make(map[string][]float64, len(s.Centroids)),
		LastFullClusteringAt: s.LastFullClusteringAt,
		NoteHashes:           maps.Clone(s.NoteHashes),
		IncrementalRuns:      s.IncrementalRuns,
	}
	for i, c := range s.Clusters {
		out.Clusters[i] = c.Clone()
	}
	for id, centroid := range s.Centroids {
		out.Centroids[id] = slices.Clone(centroid)
	}
	return out
}

// ReassignmentStats summarizes the noise reassignment step of a full run.
type ReassignmentStats struct {
	OriginalNoiseCount int `json:"original_noise_count"`
	ReassignedCount    int `json:"reassigned_count"`
}

// RunStats is reported for every pipeline run.
type RunStats struct {
	TotalNotes     int                `json:"total_notes"`
	ClusterCount   int                `json:"cluster_count"`
	NoiseCount     int                `json:"noise_count"`
	WasIncremental bool               `json:"was_incremental"`
	Reassignment   *ReassignmentStats `json:"reassignment,omitempty"`
}

// ClusteringResult is the caller-facing outcome of a single pipeline run.
type ClusteringResult struct {
	Clusters   []*EmbeddingCluster `json:"clusters"`
	NoiseNotes []string            `json:"noise_notes"`
	Stats      RunStats            `json:"stats"`
}
