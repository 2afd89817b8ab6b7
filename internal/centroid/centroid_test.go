package centroid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// CentroidSuite tests the similarity and centroid primitives.
type CentroidSuite struct {
	suite.Suite
}

func TestCentroidSuite(t *testing.T) {
	suite.Run(t, new(CentroidSuite))
}

func (s *CentroidSuite) TestComputePreservesDimensionality() {
	tests := []struct {
		name       string
		embeddings [][]float64
		expected   []float64
	}{
		{name: "single vector", embeddings: [][]float64{{1, 2, 3}}, expected: []float64{1, 2, 3}},
		{name: "two vectors", embeddings: [][]float64{{0, 0}, {2, 4}}, expected: []float64{1, 2}},
		{name: "three vectors", embeddings: [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, expected: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			out, err := Compute(tt.embeddings)
			require.NoError(s.T(), err)
			require.Len(s.T(), out, len(tt.embeddings[0]))
			for i, v := range tt.expected {
				assert.InDelta(s.T(), v, out[i], 1e-12)
			}
		})
	}
}

func (s *CentroidSuite) TestComputeErrors() {
	_, err := Compute(nil)
	assert.ErrorIs(s.T(), err, ErrEmptyInput)

	_, err = Compute([][]float64{{1, 2}, {1, 2, 3}})
	assert.ErrorIs(s.T(), err, ErrDimensionMismatch)
}

func (s *CentroidSuite) TestCosineSimilarity() {
	v := []float64{0.3, -0.7, 2.1}

	self, err := CosineSimilarity(v, v)
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), 1.0, self, 1e-9)

	a := []float64{1, 0}
	b := []float64{0.9, 0.1}
	ab, err := CosineSimilarity(a, b)
	require.NoError(s.T(), err)
	ba, err := CosineSimilarity(b, a)
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), ab, ba, 1e-12)
	assert.Greater(s.T(), ab, 0.99)

	zero, err := CosineSimilarity([]float64{0, 0}, []float64{1, 1})
	require.NoError(s.T(), err)
	assert.Zero(s.T(), zero)

	orth, err := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), 0.0, orth, 1e-12)

	_, err = CosineSimilarity([]float64{1}, []float64{1, 2})
	assert.ErrorIs(s.T(), err, ErrDimensionMismatch)
}

func (s *CentroidSuite) TestEuclideanDistance() {
	d, err := EuclideanDistance([]float64{0, 0}, []float64{3, 4})
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), 5.0, d, 1e-12)

	rev, err := EuclideanDistance([]float64{3, 4}, []float64{0, 0})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), d, rev)

	_, err = EuclideanDistance([]float64{1}, []float64{1, 2})
	assert.ErrorIs(s.T(), err, ErrDimensionMismatch)
}

func (s *CentroidSuite) TestSelectRepresentatives() {
	centroid := []float64{1, 0}
	embeddings := []Indexed{
		{Index: 0, Embedding: []float64{0, 1}},    // orthogonal
		{Index: 1, Embedding: []float64{1, 0.01}}, // near-aligned
		{Index: 2, Embedding: []float64{1, 0.5}},  // somewhat aligned
	}

	reps, err := SelectRepresentatives(embeddings, centroid, 2)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []int{1, 2}, reps)

	all, err := SelectRepresentatives(embeddings, centroid, 10)
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 3)

	empty, err := SelectRepresentatives(nil, centroid, 3)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), empty)
}

func (s *CentroidSuite) TestComputeClusterCentroids() {
	embeddings := [][]float64{
		{1, 0}, {1, 0.1}, // label 1
		{0, 1}, {0.1, 1}, // label 0
		{5, 5}, // noise
	}
	labels := []int{1, 1, 0, 0, -1}

	centers, err := ComputeClusterCentroids(embeddings, labels, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), centers, 2)

	// Sorted by label ascending.
	assert.Equal(s.T(), 0, centers[0].Label)
	assert.Equal(s.T(), 1, centers[1].Label)
	assert.Equal(s.T(), []int{2, 3}, centers[0].MemberIndices)
	assert.InDelta(s.T(), 0.05, centers[0].Centroid[0], 1e-12)
	assert.Len(s.T(), centers[0].Representatives, 1)

	_, err = ComputeClusterCentroids(embeddings, []int{0, 1}, 1)
	assert.Error(s.T(), err)
}

func (s *CentroidSuite) TestFindNearestCentroid() {
	match, err := FindNearestCentroid([]float64{1, 0}, nil)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), match)

	centroids := map[string][]float64{
		"a": {0, 1},
		"b": {1, 0},
	}
	match, err = FindNearestCentroid([]float64{0.9, 0.1}, centroids)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), match)
	assert.Equal(s.T(), "b", match.ClusterID)
	assert.Greater(s.T(), match.Similarity, 0.9)
}

func (s *CentroidSuite) TestFindNearestCentroidTieBreaksLexicographically() {
	centroids := map[string][]float64{
		"zzz": {1, 0},
		"aaa": {1, 0},
		"mmm": {1, 0},
	}
	for i := 0; i < 10; i++ {
		match, err := FindNearestCentroid([]float64{1, 0}, centroids)
		require.NoError(s.T(), err)
		require.NotNil(s.T(), match)
		assert.Equal(s.T(), "aaa", match.ClusterID)
	}
}
