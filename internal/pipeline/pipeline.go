// Package pipeline composes the clustering engine: dimensionality
// reduction, density clustering, centroid computation, noise reassignment,
// and change-aware incremental re-clustering. A run either reclusters the
// whole vault ("full") or cheaply reassigns only changed notes against the
// previous run's clusters ("incremental"), depending on how much the note
// set changed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/notemap/internal/centroid"
	"github.com/thebtf/notemap/internal/changes"
	"github.com/thebtf/notemap/internal/density"
	"github.com/thebtf/notemap/internal/incremental"
	"github.com/thebtf/notemap/internal/reduce"
	"github.com/thebtf/notemap/pkg/models"
)

// ErrMissingPreviousState is raised when the incremental branch is reached
// without a previous state. The change detector's contract makes this
// unreachable; if it happens anyway the run must fail loudly rather than
// silently fall back.
var ErrMissingPreviousState = errors.New("pipeline: incremental run requested without previous state")

// Input carries everything one run consumes. All fields are read-only to
// the pipeline; PreviousState in particular is never mutated in place.
type Input struct {
	Notes []models.EmbeddedNote
	// Tags maps note path to its tags; used only for dominant-tag
	// computation.
	Tags map[string][]string
	// Links maps source note to target note to link count; used only for
	// internal link density.
	Links map[string]map[string]int
	// Files maps note path to filesystem metadata for candidate-name
	// extraction and folder grouping.
	Files map[string]models.NoteFile

	PreviousState *models.ClusteringState
}

// Output pairs the caller-facing result with the state to persist for the
// next invocation.
type Output struct {
	Result models.ClusteringResult
	State  *models.ClusteringState
}

// Pipeline orchestrates clustering runs. Construct one per logical vault;
// runs against the same vault must be serialized by the caller.
type Pipeline struct {
	config  models.ClusteringConfig
	ids     IDSource
	logger  zerolog.Logger
	metrics *pipelineMetrics
	now     func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithIDSource overrides the cluster ID generator.
func WithIDSource(ids IDSource) Option {
	return func(p *Pipeline) { p.ids = ids }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline with the given configuration.
func New(config models.ClusteringConfig, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:  models.DefaultClusteringConfig().Merge(config),
		ids:     UUIDSource{},
		logger:  logger.With().Str("component", "clustering-pipeline").Logger(),
		metrics: newPipelineMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one clustering run. It selects the execution mode per the
// change detector, builds final cluster records, and produces a fresh
// ClusteringState for the caller to persist.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Output, error) {
	currentHashes := make(map[string]string, len(in.Notes))
	for _, n := range in.Notes {
		currentHashes[n.NotePath] = n.ContentHash
	}

	// Too few notes: everything is noise and the state resets.
	if len(in.Notes) < p.config.MinNotesForClustering {
		noise := make([]string, 0, len(in.Notes))
		for _, n := range in.Notes {
			noise = append(noise, n.NotePath)
		}
		p.logger.Info().
			Int("notes", len(in.Notes)).
			Int("min_notes", p.config.MinNotesForClustering).
			Msg("Too few notes for clustering, all marked noise")

		return &Output{
			Result: models.ClusteringResult{
				Clusters:   []*models.EmbeddingCluster{},
				NoiseNotes: noise,
				Stats: models.RunStats{
					TotalNotes: len(in.Notes),
					NoiseCount: len(noise),
				},
			},
			State: &models.ClusteringState{
				Clusters:   []*models.EmbeddingCluster{},
				Centroids:  map[string][]float64{},
				NoteHashes: map[string]string{},
			},
		}, nil
	}

	delta := changes.Detect(currentHashes, in.PreviousState, p.config.IncrementalThreshold)

	useIncremental := delta.ShouldUseIncremental && in.PreviousState != nil
	if useIncremental && in.PreviousState.IncrementalRuns >= p.config.MaxIncrementalRuns {
		p.logger.Info().
			Int("incremental_runs", in.PreviousState.IncrementalRuns).
			Msg("Forcing full run to refresh centroids")
		useIncremental = false
	}

	if useIncremental {
		return p.runIncremental(ctx, in, delta, currentHashes)
	}
	return p.runFull(ctx, in, currentHashes)
}

// runFull reclusters the whole vault from scratch.
func (p *Pipeline) runFull(ctx context.Context, in Input, currentHashes map[string]string) (*Output, error) {
	now := p.now()

	reducerInput := make([]reduce.Input, len(in.Notes))
	embeddings := make([][]float64, len(in.Notes))
	paths := make([]string, len(in.Notes))
	lookup := make(map[string][]float64, len(in.Notes))
	for i, n := range in.Notes {
		reducerInput[i] = reduce.Input{NotePath: n.NotePath, Embedding: n.Embedding}
		embeddings[i] = n.Embedding
		paths[i] = n.NotePath
		lookup[n.NotePath] = n.Embedding
	}

	reducer := reduce.New(reduce.Config{
		NNeighbors:  p.config.NNeighbors,
		MinDist:     p.config.MinDist,
		NComponents: p.config.NComponents,
		Metric:      p.config.Metric,
	})
	reduced, err := reducer.Fit(reducerInput)
	if err != nil {
		return nil, fmt.Errorf("dimensionality reduction: %w", err)
	}

	clustered, err := density.Cluster(density.Config{
		MinClusterSize: p.config.MinClusterSize,
		MinSamples:     p.config.MinSamples,
	}, reduced.Reduced)
	if err != nil {
		return nil, fmt.Errorf("density clustering: %w", err)
	}

	// Centroids live in the original embedding space, not the reduced one.
	centers, err := centroid.ComputeClusterCentroids(embeddings, clustered.Labels, p.config.RepresentativeCount)
	if err != nil {
		return nil, fmt.Errorf("cluster centroids: %w", err)
	}

	clusters := make([]*models.EmbeddingCluster, 0, len(centers))
	for _, center := range centers {
		members := make([]string, len(center.MemberIndices))
		for i, idx := range center.MemberIndices {
			members[i] = paths[idx]
		}
		reps := make([]string, len(center.Representatives))
		for i, idx := range center.Representatives {
			reps[i] = paths[idx]
		}

		clusters = append(clusters, &models.EmbeddingCluster{
			ID:                  p.ids.NewID(),
			NoteIDs:             members,
			Centroid:            center.Centroid,
			RepresentativeNotes: reps,
			DominantTags:        dominantTags(members, in.Tags, p.config.DominantTagThreshold),
			FolderPath:          majorityFolder(members, in.Files),
			InternalLinkDensity: internalLinkDensity(members, in.Links),
			CreatedAt:           now,
			Reasons:             []string{fmt.Sprintf("embedding similarity: %d notes grouped by density", len(members))},
		})
	}

	noise := make([]string, 0, len(clustered.NoiseIndices))
	for _, idx := range clustered.NoiseIndices {
		noise = append(noise, paths[idx])
	}

	reassign, err := ReassignNoise(clusters, noise, lookup, p.config.NoiseThreshold)
	if err != nil {
		return nil, fmt.Errorf("noise reassignment: %w", err)
	}

	final, err := p.finalizeClusters(reassign.Clusters, lookup, in.Files)
	if err != nil {
		return nil, err
	}

	stats := models.RunStats{
		TotalNotes:   len(in.Notes),
		ClusterCount: len(final),
		NoiseCount:   len(reassign.RemainingNoise),
		Reassignment: &models.ReassignmentStats{
			OriginalNoiseCount: len(noise),
			ReassignedCount:    reassign.ReassignedCount,
		},
	}

	state := p.buildState(final, currentHashes, now, 0)

	p.logger.Info().
		Int("notes", stats.TotalNotes).
		Int("clusters", stats.ClusterCount).
		Int("noise", stats.NoiseCount).
		Int("reassigned", reassign.ReassignedCount).
		Msg("Full clustering run complete")
	p.metrics.recordRun(ctx, "full", runStatsView{
		totalNotes:   stats.TotalNotes,
		clusterCount: stats.ClusterCount,
		reassigned:   reassign.ReassignedCount,
	})

	return &Output{
		Result: models.ClusteringResult{
			Clusters:   final,
			NoiseNotes: reassign.RemainingNoise,
			Stats:      stats,
		},
		State: state,
	}, nil
}

// runIncremental reuses the previous run's clusters, reassigning only the
// changed notes by nearest centroid. Centroids and representatives are not
// refreshed here; MaxIncrementalRuns bounds how long that drift can last.
func (p *Pipeline) runIncremental(ctx context.Context, in Input, delta changes.Summary, currentHashes map[string]string) (*Output, error) {
	if in.PreviousState == nil {
		return nil, ErrMissingPreviousState
	}

	changedSet := make(map[string]bool, len(delta.New)+len(delta.Modified))
	for _, notePath := range delta.Changed() {
		changedSet[notePath] = true
	}
	changedNotes := make([]models.EmbeddedNote, 0, len(changedSet))
	for _, n := range in.Notes {
		if changedSet[n.NotePath] {
			changedNotes = append(changedNotes, n)
		}
	}

	update, err := incremental.ApplyUpdate(in.PreviousState.Clusters, delta, changedNotes, p.config.MinAssignmentSimilarity)
	if err != nil {
		return nil, fmt.Errorf("incremental update: %w", err)
	}

	// Noise covers every current note not held by any cluster, so the
	// coverage invariant holds on incremental runs too.
	clustered := make(map[string]bool)
	for _, c := range update.Clusters {
		for _, id := range c.NoteIDs {
			clustered[id] = true
		}
	}
	noise := make([]string, 0)
	for _, n := range in.Notes {
		if !clustered[n.NotePath] {
			noise = append(noise, n.NotePath)
		}
	}

	stats := models.RunStats{
		TotalNotes:     len(in.Notes),
		ClusterCount:   len(update.Clusters),
		NoiseCount:     len(noise),
		WasIncremental: true,
	}

	state := p.buildState(update.Clusters, currentHashes, in.PreviousState.LastFullClusteringAt, in.PreviousState.IncrementalRuns+1)

	p.logger.Info().
		Int("notes", stats.TotalNotes).
		Int("changed", len(changedNotes)).
		Int("assigned", len(update.Assignments)).
		Int("clusters", stats.ClusterCount).
		Msg("Incremental clustering run complete")
	p.metrics.recordRun(ctx, "incremental", runStatsView{
		totalNotes:   stats.TotalNotes,
		clusterCount: stats.ClusterCount,
	})

	return &Output{
		Result: models.ClusteringResult{
			Clusters:   update.Clusters,
			NoiseNotes: noise,
			Stats:      stats,
		},
		State: state,
	}, nil
}

// finalizeClusters recomputes each cluster's centroid and representatives
// over post-reassignment membership and derives candidate names. Members
// without a resolvable embedding are excluded from the centroid input
// rather than failing the run.
func (p *Pipeline) finalizeClusters(clusters []*models.EmbeddingCluster, lookup map[string][]float64, files map[string]models.NoteFile) ([]*models.EmbeddingCluster, error) {
	for _, c := range clusters {
		member := make([][]float64, 0, len(c.NoteIDs))
		memberPaths := make([]string, 0, len(c.NoteIDs))
		for _, notePath := range c.NoteIDs {
			if emb, ok := lookup[notePath]; ok {
				member = append(member, emb)
				memberPaths = append(memberPaths, notePath)
			}
		}
		if len(member) == 0 {
			continue
		}

		center, err := centroid.Compute(member)
		if err != nil {
			return nil, fmt.Errorf("finalize centroid for %s: %w", c.ID, err)
		}
		c.Centroid = center

		indexed := make([]centroid.Indexed, len(member))
		for i, emb := range member {
			indexed[i] = centroid.Indexed{Index: i, Embedding: emb}
		}
		reps, err := centroid.SelectRepresentatives(indexed, center, p.config.RepresentativeCount)
		if err != nil {
			return nil, fmt.Errorf("finalize representatives for %s: %w", c.ID, err)
		}
		repPaths := make([]string, len(reps))
		for i, idx := range reps {
			repPaths[i] = memberPaths[idx]
		}
		c.RepresentativeNotes = repPaths
		c.CandidateNames = candidateNames(repPaths, files)
	}
	return clusters, nil
}

// buildState snapshots clusters and note hashes into a fresh state value.
func (p *Pipeline) buildState(clusters []*models.EmbeddingCluster, hashes map[string]string, lastFull time.Time, incrementalRuns int) *models.ClusteringState {
	snapshot := make([]*models.EmbeddingCluster, len(clusters))
	centroids := make(map[string][]float64, len(clusters))
	for i, c := range clusters {
		snapshot[i] = c.Clone()
		centroids[c.ID] = snapshot[i].Centroid
	}

	noteHashes := make(map[string]string, len(hashes))
	for k, v := range hashes {
		noteHashes[k] = v
	}

	return &models.ClusteringState{
		Clusters:             snapshot,
		Centroids:            centroids,
		LastFullClusteringAt: lastFull,
		NoteHashes:           noteHashes,
		IncrementalRuns:      incrementalRuns,
	}
}
