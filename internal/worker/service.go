// Package worker provides the HTTP worker service for notemap. It owns the
// long-lived pieces (store, embedding service, pipeline, vault watcher) and
// serializes clustering runs per vault.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/notemap/internal/config"
	"github.com/thebtf/notemap/internal/embedding"
	"github.com/thebtf/notemap/internal/pipeline"
	"github.com/thebtf/notemap/internal/state"
	"github.com/thebtf/notemap/internal/vault"
	"github.com/thebtf/notemap/internal/watcher"
	"github.com/thebtf/notemap/pkg/models"
)

// Service configuration constants.
const (
	// DefaultHTTPTimeout bounds request handling.
	DefaultHTTPTimeout = 120 * time.Second

	// MaxRequestBody caps incoming request bodies.
	MaxRequestBody = 1 << 20
)

// Service is the main worker service orchestrator.
type Service struct {
	version string
	config  *config.Config

	store    *state.Store
	embedSvc *embedding.Service
	pipeline *pipeline.Pipeline

	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	vaultWatcher *watcher.Watcher

	// runGroup collapses concurrent run requests for the same vault into
	// one execution; previous-state handling is only correct when runs
	// per vault are serialized.
	runGroup singleflight.Group
}

// NewService creates a worker service from configuration.
func NewService(version string, cfg *config.Config) (*Service, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	store, err := state.NewStore(state.StoreConfig{Path: cfg.DBPath, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	provider, err := embedding.NewOpenAIProvider(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	embedSvc, err := embedding.NewService(provider, store, log.Logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	svc := &Service{
		version:   version,
		config:    cfg,
		store:     store,
		embedSvc:  embedSvc,
		pipeline:  pipeline.New(cfg.Clustering, log.Logger),
		startTime: time.Now(),
	}
	svc.setupRoutes()
	return svc, nil
}

// Start begins serving HTTP and, when a vault path is configured, watching
// the vault for changes.
func (s *Service) Start() error {
	if vaultPath := config.GetVaultPath(); vaultPath != "" {
		w, err := watcher.New(vaultPath, func() {
			if _, err := s.RunClustering(context.Background(), vaultPath); err != nil {
				log.Error().Err(err).Str("vault", vaultPath).Msg("Watch-triggered clustering failed")
			}
		})
		if err != nil {
			return fmt.Errorf("create vault watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("start vault watcher: %w", err)
		}
		s.vaultWatcher = w
		log.Info().Str("vault", vaultPath).Msg("Watching vault for changes")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.config.WorkerPort)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  DefaultHTTPTimeout,
		WriteTimeout: DefaultHTTPTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Worker listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return nil
}

// Shutdown stops the watcher, the HTTP server, and the store.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.vaultWatcher != nil {
		_ = s.vaultWatcher.Stop()
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.store.Close()
}

// setupRoutes wires the chi router.
func (s *Service) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(MaxBodySize(MaxRequestBody))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/cluster", s.handleClusterRun)
	r.Get("/api/clusters", s.handleGetClusters)
	r.Delete("/api/state", s.handleDeleteState)

	s.router = r
}

// RunClustering scans the vault, embeds its notes, and executes one
// pipeline run against the persisted previous state. Concurrent calls for
// the same vault share a single execution, which is detached from the
// initiating caller's cancellation so one client's disconnect cannot fail
// the run for everyone coalesced onto it.
func (s *Service) RunClustering(ctx context.Context, vaultPath string) (*models.ClusteringResult, error) {
	runCtx := context.WithoutCancel(ctx)
	v, err, _ := s.runGroup.Do(vaultPath, func() (interface{}, error) {
		return s.runClusteringLocked(runCtx, vaultPath)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ClusteringResult), nil
}

func (s *Service) runClusteringLocked(ctx context.Context, vaultPath string) (*models.ClusteringResult, error) {
	snap, err := vault.Scan(vaultPath)
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}

	contents := make([]embedding.NoteContent, len(snap.Notes))
	for i, n := range snap.Notes {
		contents[i] = embedding.NoteContent{Path: n.Path, Text: n.Text}
	}
	embedded, err := s.embedSvc.EmbedNotes(ctx, vaultPath, contents)
	if err != nil {
		return nil, err
	}

	previous, err := s.store.LoadState(ctx, vaultPath)
	if err != nil {
		return nil, err
	}

	out, err := s.pipeline.Run(ctx, pipeline.Input{
		Notes:         embedded,
		Tags:          snap.Tags,
		Links:         snap.Links,
		Files:         snap.Files,
		PreviousState: previous,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveState(ctx, vaultPath, out.State); err != nil {
		return nil, err
	}

	live := make(map[string]bool, len(embedded))
	for _, n := range embedded {
		live[n.ContentHash] = true
	}
	if pruned, err := s.store.PruneEmbeddingCache(ctx, vaultPath, live); err != nil {
		log.Warn().Err(err).Msg("Embedding cache prune failed")
	} else if pruned > 0 {
		log.Debug().Int64("pruned", pruned).Msg("Pruned stale embedding cache rows")
	}

	return &out.Result, nil
}
