// Package centroid provides mean-vector and similarity primitives for the
// clustering pipeline: centroid computation, cosine/Euclidean distance,
// representative selection, and nearest-centroid lookup.
package centroid

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when vectors of different lengths are
// combined. Dimensionality inconsistency anywhere in the pipeline is fatal.
var ErrDimensionMismatch = errors.New("centroid: embedding dimension mismatch")

// ErrEmptyInput is returned when a centroid is requested over no vectors.
var ErrEmptyInput = errors.New("centroid: empty input")

// Compute returns the arithmetic mean of the given embeddings, per dimension.
func Compute(embeddings [][]float64) ([]float64, error) {
	if len(embeddings) == 0 {
		return nil, ErrEmptyInput
	}
	dim := len(embeddings[0])
	out := make([]float64, dim)
	for i, emb := range embeddings {
		if len(emb) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(emb), dim)
		}
		for j, v := range emb {
			out[j] += v
		}
	}
	n := float64(len(embeddings))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. A zero vector on either side yields 0 rather than an error.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Indexed pairs an embedding with its caller-side index.
type Indexed struct {
	Index     int
	Embedding []float64
}

// SelectRepresentatives returns the topK indices with the highest cosine
// similarity to the centroid, in descending similarity order. If topK is at
// least the input size, all indices are returned.
func SelectRepresentatives(embeddings []Indexed, centroid []float64, topK int) ([]int, error) {
	if len(embeddings) == 0 {
		return nil, nil
	}
	type scored struct {
		index int
		sim   float64
	}
	scores := make([]scored, 0, len(embeddings))
	for _, e := range embeddings {
		sim, err := CosineSimilarity(e.Embedding, centroid)
		if err != nil {
			return nil, err
		}
		scores = append(scores, scored{index: e.Index, sim: sim})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].sim > scores[j].sim })

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]int, topK)
	for i := 0; i < topK; i++ {
		out[i] = scores[i].index
	}
	return out, nil
}

// ClusterCentroid is the computed center of one labeled group.
type ClusterCentroid struct {
	Label           int
	Centroid        []float64
	MemberIndices   []int
	Representatives []int
}

// ComputeClusterCentroids groups embeddings by label (excluding the noise
// label -1), computes the centroid and representatives of each group, and
// returns the results sorted by label ascending.
func ComputeClusterCentroids(embeddings [][]float64, labels []int, representativeCount int) ([]ClusterCentroid, error) {
	if len(embeddings) != len(labels) {
		return nil, fmt.Errorf("centroid: %d embeddings but %d labels", len(embeddings), len(labels))
	}

	groups := make(map[int][]int)
	for i, label := range labels {
		if label < 0 {
			continue
		}
		groups[label] = append(groups[label], i)
	}

	labelsSorted := make([]int, 0, len(groups))
	for label := range groups {
		labelsSorted = append(labelsSorted, label)
	}
	sort.Ints(labelsSorted)

	out := make([]ClusterCentroid, 0, len(labelsSorted))
	for _, label := range labelsSorted {
		members := groups[label]
		group := make([][]float64, len(members))
		indexed := make([]Indexed, len(members))
		for i, idx := range members {
			group[i] = embeddings[idx]
			indexed[i] = Indexed{Index: idx, Embedding: embeddings[idx]}
		}

		center, err := Compute(group)
		if err != nil {
			return nil, err
		}
		reps, err := SelectRepresentatives(indexed, center, representativeCount)
		if err != nil {
			return nil, err
		}

		out = append(out, ClusterCentroid{
			Label:           label,
			Centroid:        center,
			MemberIndices:   members,
			Representatives: reps,
		})
	}
	return out, nil
}

// Match is the result of a nearest-centroid lookup.
type Match struct {
	ClusterID  string
	Similarity float64
}

// FindNearestCentroid scans the centroid map for the maximum cosine
// similarity to the embedding. Returns nil for an empty map. Ties resolve
// to the lexicographically smallest cluster ID so repeated lookups are
// deterministic.
func FindNearestCentroid(embedding []float64, centroids map[string][]float64) (*Match, error) {
	if len(centroids) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(centroids))
	for id := range centroids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var best *Match
	for _, id := range ids {
		sim, err := CosineSimilarity(embedding, centroids[id])
		if err != nil {
			return nil, err
		}
		if best == nil || sim > best.Similarity {
			best = &Match{ClusterID: id, Similarity: sim}
		}
	}
	return best, nil
}
