package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/notemap/pkg/models"
)

type StoreSuite struct {
	suite.Suite

	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	store, err := NewStore(StoreConfig{
		Path:     filepath.Join(s.T().TempDir(), "notemap.db"),
		MaxConns: 2,
	})
	require.NoError(s.T(), err)
	s.store = store
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	require.NoError(s.T(), s.store.Close())
}

func (s *StoreSuite) sampleState() *models.ClusteringState {
	return &models.ClusteringState{
		Clusters: []*models.EmbeddingCluster{
			{
				ID:        "cluster-1",
				NoteIDs:   []string{"a.md", "b.md"},
				Centroid:  []float64{0.5, 0.5},
				CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
				Reasons:   []string{"embedding similarity: 2 notes grouped by density"},
			},
		},
		Centroids:            map[string][]float64{"cluster-1": {0.5, 0.5}},
		LastFullClusteringAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		NoteHashes:           map[string]string{"a.md": "h1", "b.md": "h2"},
		IncrementalRuns:      2,
	}
}

func (s *StoreSuite) TestLoadStateWhenAbsent() {
	st, err := s.store.LoadState(s.ctx, "vault")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), st)
}

func (s *StoreSuite) TestSaveAndLoadState() {
	saved := s.sampleState()
	require.NoError(s.T(), s.store.SaveState(s.ctx, "vault", saved))

	loaded, err := s.store.LoadState(s.ctx, "vault")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), loaded)
	assert.Equal(s.T(), saved.NoteHashes, loaded.NoteHashes)
	assert.Equal(s.T(), saved.IncrementalRuns, loaded.IncrementalRuns)
	require.Len(s.T(), loaded.Clusters, 1)
	assert.Equal(s.T(), saved.Clusters[0].ID, loaded.Clusters[0].ID)
	assert.Equal(s.T(), saved.Clusters[0].NoteIDs, loaded.Clusters[0].NoteIDs)
	assert.Equal(s.T(), saved.Clusters[0].Centroid, loaded.Clusters[0].Centroid)
	assert.True(s.T(), saved.LastFullClusteringAt.Equal(loaded.LastFullClusteringAt))
}

func (s *StoreSuite) TestSaveStateReplacesPreviousRow() {
	require.NoError(s.T(), s.store.SaveState(s.ctx, "vault", s.sampleState()))

	updated := s.sampleState()
	updated.IncrementalRuns = 5
	updated.NoteHashes = map[string]string{"c.md": "h3"}
	require.NoError(s.T(), s.store.SaveState(s.ctx, "vault", updated))

	loaded, err := s.store.LoadState(s.ctx, "vault")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), loaded)
	assert.Equal(s.T(), 5, loaded.IncrementalRuns)
	assert.Equal(s.T(), map[string]string{"c.md": "h3"}, loaded.NoteHashes)
}

func (s *StoreSuite) TestStatesAreScopedByVault() {
	require.NoError(s.T(), s.store.SaveState(s.ctx, "vault-a", s.sampleState()))

	other, err := s.store.LoadState(s.ctx, "vault-b")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), other)
}

func (s *StoreSuite) TestDeleteState() {
	require.NoError(s.T(), s.store.SaveState(s.ctx, "vault", s.sampleState()))
	require.NoError(s.T(), s.store.DeleteState(s.ctx, "vault"))

	loaded, err := s.store.LoadState(s.ctx, "vault")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), loaded)

	// Deleting a missing row is not an error.
	assert.NoError(s.T(), s.store.DeleteState(s.ctx, "vault"))
}

func (s *StoreSuite) TestEmbeddingCacheRoundTrip() {
	missing, err := s.store.GetCachedEmbedding(s.ctx, "vault", "hash-1", "model-a")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), missing)

	entry := CachedEmbedding{
		Vault:       "vault",
		ContentHash: "hash-1",
		NotePath:    "a.md",
		Model:       "model-a",
		Embedding:   []float64{0.1, 0.2, 0.3},
		TokenCount:  42,
	}
	require.NoError(s.T(), s.store.PutCachedEmbedding(s.ctx, entry))

	got, err := s.store.GetCachedEmbedding(s.ctx, "vault", "hash-1", "model-a")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got)
	assert.Equal(s.T(), entry, *got)

	// A different model never sees the row, and neither does another vault.
	otherModel, err := s.store.GetCachedEmbedding(s.ctx, "vault", "hash-1", "model-b")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), otherModel)

	otherVault, err := s.store.GetCachedEmbedding(s.ctx, "vault-other", "hash-1", "model-a")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), otherVault)
}

func (s *StoreSuite) TestPutCachedEmbeddingUpserts() {
	entry := CachedEmbedding{
		Vault:       "vault",
		ContentHash: "hash-1",
		NotePath:    "a.md",
		Model:       "model-a",
		Embedding:   []float64{0.1},
		TokenCount:  1,
	}
	require.NoError(s.T(), s.store.PutCachedEmbedding(s.ctx, entry))

	entry.NotePath = "renamed.md"
	entry.TokenCount = 2
	require.NoError(s.T(), s.store.PutCachedEmbedding(s.ctx, entry))

	got, err := s.store.GetCachedEmbedding(s.ctx, "vault", "hash-1", "model-a")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got)
	assert.Equal(s.T(), "renamed.md", got.NotePath)
	assert.Equal(s.T(), 2, got.TokenCount)
}

func (s *StoreSuite) cacheRow(vault, hash string) CachedEmbedding {
	return CachedEmbedding{
		Vault:       vault,
		ContentHash: hash,
		NotePath:    hash + ".md",
		Model:       "model-a",
		Embedding:   []float64{1},
		TokenCount:  1,
	}
}

func (s *StoreSuite) TestPruneEmbeddingCache() {
	for _, hash := range []string{"live-1", "live-2", "stale-1", "stale-2"} {
		require.NoError(s.T(), s.store.PutCachedEmbedding(s.ctx, s.cacheRow("vault", hash)))
	}

	deleted, err := s.store.PruneEmbeddingCache(s.ctx, "vault", map[string]bool{
		"live-1": true,
		"live-2": true,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), deleted)

	kept, err := s.store.GetCachedEmbedding(s.ctx, "vault", "live-1", "model-a")
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), kept)

	gone, err := s.store.GetCachedEmbedding(s.ctx, "vault", "stale-1", "model-a")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), gone)
}

func (s *StoreSuite) TestPruneEmbeddingCacheLeavesOtherVaultsAlone() {
	require.NoError(s.T(), s.store.PutCachedEmbedding(s.ctx, s.cacheRow("vault-a", "hash-vault-a")))
	require.NoError(s.T(), s.store.PutCachedEmbedding(s.ctx, s.cacheRow("vault-b", "hash-vault-b")))

	// A run over vault A knows nothing about vault B's hashes; pruning
	// must still leave vault B's rows intact.
	deleted, err := s.store.PruneEmbeddingCache(s.ctx, "vault-a", map[string]bool{
		"hash-vault-a": true,
	})
	require.NoError(s.T(), err)
	assert.Zero(s.T(), deleted)

	survivor, err := s.store.GetCachedEmbedding(s.ctx, "vault-b", "hash-vault-b", "model-a")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), survivor)
	assert.Equal(s.T(), "hash-vault-b", survivor.ContentHash)
}
