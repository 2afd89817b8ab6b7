// Package reduce projects high-dimensional embeddings into a small
// coordinate space while preserving local neighborhood structure, so the
// density clusterer can operate cheaply. The projection is a simplified
// neighborhood embedding: PCA initialization followed by stochastic
// attraction/repulsion refinement over the k-nearest-neighbor graph. It is
// deliberately not a bit-exact UMAP; only neighborhood preservation matters
// downstream.
package reduce

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/thebtf/notemap/pkg/models"
)

// ErrNotFitted is returned by Transform when Fit has not been called.
var ErrNotFitted = errors.New("reduce: transform called before fit")

// ErrDimensionMismatch is returned when input embeddings disagree on
// dimensionality.
var ErrDimensionMismatch = errors.New("reduce: embedding dimension mismatch")

const (
	defaultEpochs     = 200
	defaultNegSamples = 5
	coordScale        = 10.0
	minDistEpsilon    = 1e-9
)

// Config holds the reducer parameters.
type Config struct {
	NNeighbors  int
	MinDist     float64
	NComponents int
	Metric      models.DistanceMetric
	// Epochs is the number of refinement passes (default 200).
	Epochs int
	// Seed makes the stochastic refinement reproducible. The zero value
	// selects a fixed default so identical inputs yield identical layouts.
	Seed int64
}

// DefaultConfig returns reducer defaults matching the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		NNeighbors:  15,
		MinDist:     0.1,
		NComponents: 5,
		Metric:      models.MetricCosine,
		Epochs:      defaultEpochs,
		Seed:        1,
	}
}

// Input is one note embedding to project.
type Input struct {
	NotePath  string
	Embedding []float64
}

// Result is the projected output of a Fit call, parallel slices of
// coordinates and note paths.
type Result struct {
	Reduced   [][]float64
	NotePaths []string
}

// Reducer is a short-lived projection model, constructed per pipeline run.
// It holds fitted state only for the lifetime of that run; it is not safe
// for concurrent use.
type Reducer struct {
	config   Config
	fitted   bool
	fallback bool
	dim      int
	data     [][]float64
	coords   [][]float64
}

// New creates a Reducer with the given configuration, filling in defaults
// for unset fields.
func New(cfg Config) *Reducer {
	def := DefaultConfig()
	if cfg.NNeighbors <= 0 {
		cfg.NNeighbors = def.NNeighbors
	}
	if cfg.MinDist <= 0 {
		cfg.MinDist = def.MinDist
	}
	if cfg.NComponents <= 0 {
		cfg.NComponents = def.NComponents
	}
	if cfg.Metric == "" {
		cfg.Metric = def.Metric
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Reducer{config: cfg}
}

// Fit learns a projection over the given embeddings and returns their
// reduced coordinates. All embeddings must share one dimensionality. When
// the sample count is below NNeighbors+1, numerical reduction is skipped
// and each vector is truncated or zero-padded to NComponents instead.
// Empty input returns an empty result without error.
func (r *Reducer) Fit(notes []Input) (Result, error) {
	r.Reset()

	if len(notes) == 0 {
		r.fitted = true
		r.fallback = true
		return Result{}, nil
	}

	dim := len(notes[0].Embedding)
	data := make([][]float64, len(notes))
	paths := make([]string, len(notes))
	for i, n := range notes {
		if len(n.Embedding) != dim {
			return Result{}, fmt.Errorf("%w: %q has %d dims, want %d", ErrDimensionMismatch, n.NotePath, len(n.Embedding), dim)
		}
		data[i] = n.Embedding
		paths[i] = n.NotePath
	}

	r.dim = dim
	r.data = data

	// Tiny vaults: not enough samples for a neighborhood graph.
	if len(notes) < r.config.NNeighbors+1 {
		r.fallback = true
		r.fitted = true
		coords := make([][]float64, len(data))
		for i, emb := range data {
			coords[i] = truncPad(emb, r.config.NComponents)
		}
		r.coords = coords
		return Result{Reduced: cloneMatrix(coords), NotePaths: paths}, nil
	}

	k := r.config.NNeighbors
	if k > len(notes)-1 {
		k = len(notes) - 1
	}

	neighbors := r.nearestNeighbors(data, k)
	coords := r.pcaInit(data)
	if coords == nil {
		// Degenerate input (e.g. all-identical vectors): fall back to
		// truncation like the tiny-vault path.
		r.fallback = true
		r.fitted = true
		coords = make([][]float64, len(data))
		for i, emb := range data {
			coords[i] = truncPad(emb, r.config.NComponents)
		}
		r.coords = coords
		return Result{Reduced: cloneMatrix(coords), NotePaths: paths}, nil
	}

	r.refine(coords, neighbors)

	r.coords = coords
	r.fitted = true
	return Result{Reduced: cloneMatrix(coords), NotePaths: paths}, nil
}

// Transform projects additional embeddings using the fitted model. Each new
// point lands at the distance-weighted average of its nearest fitted
// neighbors' coordinates. Calling Transform before Fit is an error.
func (r *Reducer) Transform(embeddings [][]float64) ([][]float64, error) {
	if !r.fitted {
		return nil, ErrNotFitted
	}
	if len(embeddings) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(embeddings))
	for i, emb := range embeddings {
		// Dimensionality is checked before any fallback handling; a fit
		// over empty input leaves dim at 0, in which case there is nothing
		// to check against.
		if r.dim > 0 && len(emb) != r.dim {
			return nil, fmt.Errorf("%w: point %d has %d dims, want %d", ErrDimensionMismatch, i, len(emb), r.dim)
		}
		if r.fallback || len(r.data) == 0 {
			out[i] = truncPad(emb, r.config.NComponents)
			continue
		}

		k := r.config.NNeighbors
		if k > len(r.data) {
			k = len(r.data)
		}
		nearest := r.kNearestTo(emb, k)

		coord := make([]float64, r.config.NComponents)
		var totalWeight float64
		for _, nb := range nearest {
			w := 1.0 / (nb.dist + minDistEpsilon)
			floats.AddScaled(coord, w, r.coords[nb.index])
			totalWeight += w
		}
		if totalWeight > 0 {
			floats.Scale(1.0/totalWeight, coord)
		}
		out[i] = coord
	}
	return out, nil
}

// Reset clears all fitted state.
func (r *Reducer) Reset() {
	r.fitted = false
	r.fallback = false
	r.dim = 0
	r.data = nil
	r.coords = nil
}

type neighbor struct {
	index int
	dist  float64
}

// distance applies the configured metric. Cosine distance is 1 - cosine
// similarity, so it stays in [0, 2].
func (r *Reducer) distance(a, b []float64) float64 {
	if r.config.Metric == models.MetricEuclidean {
		return floats.Distance(a, b, 2)
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(normA*normB)
}

// nearestNeighbors builds the kNN lists over the training data.
func (r *Reducer) nearestNeighbors(data [][]float64, k int) [][]neighbor {
	n := len(data)
	out := make([][]neighbor, n)
	for i := 0; i < n; i++ {
		cands := make([]neighbor, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cands = append(cands, neighbor{index: j, dist: r.distance(data[i], data[j])})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
		out[i] = cands[:k]
	}
	return out
}

// kNearestTo finds the k fitted points closest to the given embedding.
func (r *Reducer) kNearestTo(emb []float64, k int) []neighbor {
	cands := make([]neighbor, len(r.data))
	for j, d := range r.data {
		cands[j] = neighbor{index: j, dist: r.distance(emb, d)}
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
	return cands[:k]
}

// pcaInit seeds the layout with the top principal component scores, scaled
// to a fixed coordinate range. Returns nil when the decomposition fails.
func (r *Reducer) pcaInit(data [][]float64) [][]float64 {
	n := len(data)
	dim := len(data[0])

	flat := make([]float64, 0, n*dim)
	for _, row := range data {
		flat = append(flat, row...)
	}
	x := mat.NewDense(n, dim, flat)

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil
	}

	comps := r.config.NComponents
	avail := dim
	if n < avail {
		avail = n
	}
	project := comps
	if project > avail {
		project = avail
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	// Center the data before projecting onto the principal directions.
	means := make([]float64, dim)
	for j := 0; j < dim; j++ {
		col := mat.Col(nil, j, x)
		means[j] = stat.Mean(col, nil)
	}
	centered := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			centered.Set(i, j, x.At(i, j)-means[j])
		}
	}

	var scores mat.Dense
	scores.Mul(centered, vecs.Slice(0, dim, 0, project))

	coords := make([][]float64, n)
	var maxAbs float64
	for i := 0; i < n; i++ {
		row := make([]float64, comps)
		for j := 0; j < project; j++ {
			row[j] = scores.At(i, j)
			if a := row[j]; a > maxAbs {
				maxAbs = a
			} else if -a > maxAbs {
				maxAbs = -a
			}
		}
		coords[i] = row
	}
	if maxAbs > 0 {
		scale := coordScale / maxAbs
		for i := range coords {
			floats.Scale(scale, coords[i])
		}
	}
	return coords
}

// refine runs the stochastic attraction/repulsion passes over the kNN
// graph. Neighbors pull each other together but never closer than MinDist;
// random non-neighbors push apart.
func (r *Reducer) refine(coords [][]float64, neighbors [][]neighbor) {
	n := len(coords)
	comps := r.config.NComponents
	rng := rand.New(rand.NewSource(r.config.Seed))
	delta := make([]float64, comps)

	for epoch := 0; epoch < r.config.Epochs; epoch++ {
		alpha := 0.1 * (1.0 - float64(epoch)/float64(r.config.Epochs))

		for i := 0; i < n; i++ {
			// Attraction toward graph neighbors.
			for _, nb := range neighbors[i] {
				floats.SubTo(delta, coords[nb.index], coords[i])
				d := floats.Norm(delta, 2)
				if d <= r.config.MinDist {
					continue
				}
				coef := alpha * (d - r.config.MinDist) / (d + minDistEpsilon)
				floats.AddScaled(coords[i], 0.5*coef, delta)
				floats.AddScaled(coords[nb.index], -0.5*coef, delta)
			}

			// Repulsion from a handful of random points.
			for s := 0; s < defaultNegSamples; s++ {
				m := rng.Intn(n)
				if m == i {
					continue
				}
				floats.SubTo(delta, coords[m], coords[i])
				d2 := floats.Dot(delta, delta)
				coef := alpha / (1.0 + d2)
				floats.AddScaled(coords[i], -coef, delta)
			}
		}
	}
}

// truncPad cuts or zero-pads a vector to the given length.
func truncPad(v []float64, length int) []float64 {
	out := make([]float64, length)
	copy(out, v)
	return out
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		c := make([]float64, len(row))
		copy(c, row)
		out[i] = c
	}
	return out
}
