package models

// DistanceMetric selects the distance function used by the reducer.
type DistanceMetric string

const (
	MetricCosine    DistanceMetric = "cosine"
	MetricEuclidean DistanceMetric = "euclidean"
)

// ClusteringConfig holds the tunable parameters of the clustering pipeline.
type ClusteringConfig struct {
	// Reducer parameters.
	NNeighbors  int            `json:"n_neighbors"`
	MinDist     float64        `json:"min_dist"`
	NComponents int            `json:"n_components"`
	Metric      DistanceMetric `json:"metric"`

	// Density clusterer parameters.
	MinClusterSize int `json:"min_cluster_size"`
	MinSamples     int `json:"min_samples"`

	// NoiseThreshold is the minimum cosine similarity for a noise note to
	// be reattached to an existing cluster.
	NoiseThreshold float64 `json:"noise_threshold"`

	// IncrementalThreshold is the change percentage below which a run
	// reuses the previous clusters instead of reclustering from scratch.
	IncrementalThreshold float64 `json:"incremental_threshold"`

	// MaxIncrementalRuns caps consecutive incremental runs; once reached, a
	// full run is forced to refresh centroids and representatives.
	MaxIncrementalRuns int `json:"max_incremental_runs"`

	MinNotesForClustering int `json:"min_notes_for_clustering"`

	RepresentativeCount int `json:"representative_count"`

	// DominantTagThreshold is the fraction of cluster members that must
	// carry a tag for it to count as dominant.
	DominantTagThreshold float64 `json:"dominant_tag_threshold"`

	// MinAssignmentSimilarity is the floor for nearest-centroid assignment
	// on the incremental path.
	MinAssignmentSimilarity float64 `json:"min_assignment_similarity"`
}

// DefaultClusteringConfig returns the default pipeline parameters.
func DefaultClusteringConfig() ClusteringConfig {
	return ClusteringConfig{
		NNeighbors:              15,
		MinDist:                 0.1,
		NComponents:             5,
		Metric:                  MetricCosine,
		MinClusterSize:          5,
		MinSamples:              3,
		NoiseThreshold:          0.5,
		IncrementalThreshold:    0.05,
		MaxIncrementalRuns:      10,
		MinNotesForClustering:   10,
		RepresentativeCount:     3,
		DominantTagThreshold:    0.5,
		MinAssignmentSimilarity: 0.6,
	}
}

// Merge overlays non-zero fields of override onto c and returns the result.
func (c ClusteringConfig) Merge(override ClusteringConfig) ClusteringConfig {
	out := c
	if override.NNeighbors > 0 {
		out.NNeighbors = override.NNeighbors
	}
	if override.MinDist > 0 {
		out.MinDist = override.MinDist
	}
	if override.NComponents > 0 {
		out.NComponents = override.NComponents
	}
	if override.Metric != "" {
		out.Metric = override.Metric
	}
	if override.MinClusterSize > 0 {
		out.MinClusterSize = override.MinClusterSize
	}
	if override.MinSamples > 0 {
		out.MinSamples = override.MinSamples
	}
	if override.NoiseThreshold > 0 {
		out.NoiseThreshold = override.NoiseThreshold
	}
	if override.IncrementalThreshold > 0 {
		out.IncrementalThreshold = override.IncrementalThreshold
	}
	if override.MaxIncrementalRuns > 0 {
		out.MaxIncrementalRuns = override.MaxIncrementalRuns
	}
	if override.MinNotesForClustering > 0 {
		out.MinNotesForClustering = override.MinNotesForClustering
	}
	if override.RepresentativeCount > 0 {
		out.RepresentativeCount = override.RepresentativeCount
	}
	if override.DominantTagThreshold > 0 {
		out.DominantTagThreshold = override.DominantTagThreshold
	}
	if override.MinAssignmentSimilarity > 0 {
		out.MinAssignmentSimilarity = override.MinAssignmentSimilarity
	}
	return out
}
