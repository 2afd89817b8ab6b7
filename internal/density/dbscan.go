// Package density finds density-based clusters and noise points in the
// reduced coordinate space, without requiring a predetermined cluster
// count. The implementation is DBSCAN with an epsilon derived from the
// k-distance heuristic; clusters smaller than MinClusterSize are dissolved
// back into noise, approximating HDBSCAN's minimum cluster size behavior.
package density

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// NoiseLabel marks points the clusterer could not assign to any cluster.
const NoiseLabel = -1

// ErrDimensionMismatch is returned when points disagree on dimensionality.
var ErrDimensionMismatch = errors.New("density: point dimension mismatch")

// Config holds the clusterer parameters.
type Config struct {
	// MinClusterSize is the smallest group that counts as a cluster;
	// below this floor every point is noise.
	MinClusterSize int
	// MinSamples is the core-point density requirement. It is clamped to
	// n-1 for small inputs.
	MinSamples int
}

// Result describes one clustering pass. Labels holds one integer per input
// point: NoiseLabel for noise, otherwise a compact cluster index in
// [0, ClusterCount).
type Result struct {
	Labels       []int
	ClusterCount int
	NoiseIndices []int
}

// Cluster runs density clustering over the given points.
func Cluster(cfg Config, points [][]float64) (Result, error) {
	n := len(points)
	if n == 0 {
		return Result{Labels: []int{}, NoiseIndices: []int{}}, nil
	}

	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return Result{}, fmt.Errorf("%w: point %d has %d dims, want %d", ErrDimensionMismatch, i, len(p), dim)
		}
	}

	if cfg.MinClusterSize < 1 {
		cfg.MinClusterSize = 1
	}

	// Below the cluster-size floor no clustering is attempted at all.
	if n < cfg.MinClusterSize {
		labels := make([]int, n)
		noise := make([]int, n)
		for i := range labels {
			labels[i] = NoiseLabel
			noise[i] = i
		}
		return Result{Labels: labels, NoiseIndices: noise}, nil
	}

	minSamples := cfg.MinSamples
	if minSamples > n-1 {
		minSamples = n - 1
	}
	if minSamples < 1 {
		minSamples = 1
	}

	eps := kDistanceEps(points, minSamples)
	labels := dbscan(points, eps, minSamples+1)
	dissolveSmallClusters(labels, cfg.MinClusterSize)
	clusterCount := compactLabels(labels)

	noise := make([]int, 0)
	for i, label := range labels {
		if label == NoiseLabel {
			noise = append(noise, i)
		}
	}
	return Result{Labels: labels, ClusterCount: clusterCount, NoiseIndices: noise}, nil
}

// GroupByCluster returns a label-to-indices grouping, including the noise
// group under NoiseLabel.
func GroupByCluster(labels []int) map[int][]int {
	groups := make(map[int][]int)
	for i, label := range labels {
		groups[label] = append(groups[label], i)
	}
	return groups
}

// kDistanceEps estimates the DBSCAN radius as the median distance to each
// point's k-th nearest neighbor, a standard heuristic for picking eps
// without manual tuning.
func kDistanceEps(points [][]float64, k int) float64 {
	n := len(points)
	kDists := make([]float64, n)
	dists := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dists[j] = euclidean(points[i], points[j])
		}
		sort.Float64s(dists)
		// dists[0] is the point itself.
		idx := k
		if idx > n-1 {
			idx = n - 1
		}
		kDists[i] = dists[idx]
	}
	sort.Float64s(kDists)
	eps := kDists[n/2]
	if eps == 0 {
		eps = 1e-9
	}
	return eps
}

// dbscan is the classic label-propagation DBSCAN over Euclidean distance in
// the reduced space.
func dbscan(points [][]float64, eps float64, minPts int) []int {
	n := len(points)

	const undefined = 0
	labels := make([]int, n) // 0 = undefined
	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != undefined {
			continue
		}

		neighbors := rangeQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = NoiseLabel
			continue
		}

		clusterID++
		labels[i] = clusterID

		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			if labels[q] == NoiseLabel {
				labels[q] = clusterID
			}
			if labels[q] != undefined {
				continue
			}
			labels[q] = clusterID

			qNeighbors := rangeQuery(points, q, eps)
			if len(qNeighbors) >= minPts {
				seed = append(seed, qNeighbors...)
			}
		}
	}

	return labels
}

// rangeQuery returns indices of all points within eps of points[idx].
func rangeQuery(points [][]float64, idx int, eps float64) []int {
	var result []int
	q := points[idx]
	for i, p := range points {
		if euclidean(q, p) <= eps {
			result = append(result, i)
		}
	}
	return result
}

// dissolveSmallClusters relabels members of undersized clusters as noise.
func dissolveSmallClusters(labels []int, minClusterSize int) {
	sizes := make(map[int]int)
	for _, label := range labels {
		if label > 0 {
			sizes[label]++
		}
	}
	for i, label := range labels {
		if label > 0 && sizes[label] < minClusterSize {
			labels[i] = NoiseLabel
		}
	}
}

// compactLabels renumbers surviving clusters to 0..k-1 in ascending
// original-label order and returns k.
func compactLabels(labels []int) int {
	seen := make(map[int]bool)
	for _, label := range labels {
		if label > 0 {
			seen[label] = true
		}
	}
	originals := make([]int, 0, len(seen))
	for label := range seen {
		originals = append(originals, label)
	}
	sort.Ints(originals)

	remap := make(map[int]int, len(originals))
	for i, label := range originals {
		remap[label] = i
	}
	for i, label := range labels {
		if label > 0 {
			labels[i] = remap[label]
		}
	}
	return len(originals)
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
