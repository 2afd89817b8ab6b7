package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultClusteringConfig(t *testing.T) {
	cfg := DefaultClusteringConfig()
	assert.Equal(t, 15, cfg.NNeighbors)
	assert.Equal(t, 5, cfg.NComponents)
	assert.Equal(t, MetricCosine, cfg.Metric)
	assert.Equal(t, 5, cfg.MinClusterSize)
	assert.Equal(t, 10, cfg.MinNotesForClustering)
	assert.Equal(t, 0.05, cfg.IncrementalThreshold)
	assert.Equal(t, 10, cfg.MaxIncrementalRuns)
}

func TestMergeOverlaysNonZeroFields(t *testing.T) {
	base := DefaultClusteringConfig()
	merged := base.Merge(ClusteringConfig{
		NNeighbors:     5,
		MinClusterSize: 3,
		Metric:         MetricEuclidean,
		NoiseThreshold: 0.7,
	})

	assert.Equal(t, 5, merged.NNeighbors)
	assert.Equal(t, 3, merged.MinClusterSize)
	assert.Equal(t, MetricEuclidean, merged.Metric)
	assert.Equal(t, 0.7, merged.NoiseThreshold)

	// Untouched fields keep their base values.
	assert.Equal(t, base.MinDist, merged.MinDist)
	assert.Equal(t, base.NComponents, merged.NComponents)
	assert.Equal(t, base.RepresentativeCount, merged.RepresentativeCount)
	assert.Equal(t, base.MaxIncrementalRuns, merged.MaxIncrementalRuns)
}

func TestMergeZeroOverrideIsIdentity(t *testing.T) {
	base := DefaultClusteringConfig()
	assert.Equal(t, base, base.Merge(ClusteringConfig{}))
}
