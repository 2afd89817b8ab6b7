package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/notemap/internal/embedding"
	"github.com/thebtf/notemap/internal/pipeline"
	"github.com/thebtf/notemap/internal/state"
	"github.com/thebtf/notemap/pkg/models"
)

type stubProvider struct{}

func (stubProvider) Embed(_ context.Context, text string) ([]float64, error) {
	return []float64{float64(len(text)), 0, 0}, nil
}

func (p stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		emb, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (stubProvider) Dimensions() int { return 3 }
func (stubProvider) Name() string    { return "stub-model" }

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := state.NewStore(state.StoreConfig{
		Path:     filepath.Join(t.TempDir(), "notemap.db"),
		MaxConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedSvc, err := embedding.NewService(stubProvider{}, store, zerolog.Nop())
	require.NoError(t, err)

	return &Service{
		version:   "test",
		store:     store,
		embedSvc:  embedSvc,
		pipeline:  pipeline.New(models.ClusteringConfig{}, zerolog.Nop()),
		startTime: time.Now(),
	}
}

func writeNote(t *testing.T, vaultPath, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(vaultPath, name), []byte(content), 0o644))
}

func TestRunClusteringSurvivesCanceledCaller(t *testing.T) {
	svc := newTestService(t)

	vaultPath := t.TempDir()
	writeNote(t, vaultPath, "a.md", "alpha note")
	writeNote(t, vaultPath, "b.md", "beta note")

	// A caller whose request context was already canceled still gets the
	// shared run's result; the run itself is detached from request
	// lifetimes so one client's disconnect cannot fail it for everyone
	// coalesced onto it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.RunClustering(ctx, vaultPath)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Stats.TotalNotes)
	assert.Len(t, result.NoiseNotes, 2)

	// The run persisted its state despite the canceled caller.
	saved, err := svc.store.LoadState(context.Background(), vaultPath)
	require.NoError(t, err)
	require.NotNil(t, saved)
}

func TestRunClusteringWithLiveContext(t *testing.T) {
	svc := newTestService(t)

	vaultPath := t.TempDir()
	writeNote(t, vaultPath, "a.md", "alpha note")

	result, err := svc.RunClustering(context.Background(), vaultPath)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.TotalNotes)
}
