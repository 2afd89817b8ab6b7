package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingClusterClone(t *testing.T) {
	original := &EmbeddingCluster{
		ID:                  "cluster-1",
		NoteIDs:             []string{"a.md", "b.md"},
		Centroid:            []float64{0.5, 0.5},
		RepresentativeNotes: []string{"a.md"},
		CandidateNames:      []string{"alpha"},
		DominantTags:        []string{"project"},
		FolderPath:          "projects",
		InternalLinkDensity: 0.5,
		CreatedAt:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Reasons:             []string{"embedding similarity: 2 notes grouped by density"},
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone.NoteIDs[0] = "changed.md"
	clone.Centroid[0] = 99
	clone.Reasons = append(clone.Reasons, "extra")
	assert.Equal(t, "a.md", original.NoteIDs[0])
	assert.Equal(t, 0.5, original.Centroid[0])
	assert.Len(t, original.Reasons, 1)
}

func TestEmbeddingClusterCloneNil(t *testing.T) {
	var c *EmbeddingCluster
	assert.Nil(t, c.Clone())
}

func TestContainsNote(t *testing.T) {
	c := &EmbeddingCluster{NoteIDs: []string{"a.md", "b.md"}}
	assert.True(t, c.ContainsNote("a.md"))
	assert.False(t, c.ContainsNote("z.md"))
}

func TestClusteringStateClone(t *testing.T) {
	state := &ClusteringState{
		Clusters: []*EmbeddingCluster{
			{ID: "cluster-1", NoteIDs: []string{"a.md"}, Centroid: []float64{1, 0}},
		},
		Centroids:            map[string][]float64{"cluster-1": {1, 0}},
		LastFullClusteringAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		NoteHashes:           map[string]string{"a.md": "h1"},
		IncrementalRuns:      3,
	}

	clone := state.Clone()
	require.Equal(t, state, clone)

	clone.Clusters[0].NoteIDs[0] = "changed.md"
	clone.Centroids["cluster-1"][0] = 99
	clone.NoteHashes["a.md"] = "h2"
	clone.IncrementalRuns = 7
	assert.Equal(t, "a.md", state.Clusters[0].NoteIDs[0])
	assert.Equal(t, 1.0, state.Centroids["cluster-1"][0])
	assert.Equal(t, "h1", state.NoteHashes["a.md"])
	assert.Equal(t, 3, state.IncrementalRuns)
}

func TestClusteringStateCloneNil(t *testing.T) {
	var s *ClusteringState
	assert.Nil(t, s.Clone())
}
