package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/notemap/pkg/models"
)

// SaveState persists the clustering state for a vault, replacing any
// previous row entirely.
func (s *Store) SaveState(ctx context.Context, vault string, st *models.ClusteringState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal clustering state: %w", err)
	}

	now := time.Now()
	_, err = s.execContext(ctx, `
		INSERT INTO clustering_state (vault, state, updated_at, updated_at_epoch)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(vault) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at,
			updated_at_epoch = excluded.updated_at_epoch
	`, vault, string(data), now.Format(time.RFC3339), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("save clustering state: %w", err)
	}
	return nil
}

// LoadState loads the clustering state for a vault. Returns nil without
// error when no state has been saved yet.
func (s *Store) LoadState(ctx context.Context, vault string) (*models.ClusteringState, error) {
	var data string
	err := s.queryRowContext(ctx,
		`SELECT state FROM clustering_state WHERE vault = ?`, vault,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load clustering state: %w", err)
	}

	var st models.ClusteringState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal clustering state: %w", err)
	}
	return &st, nil
}

// DeleteState removes the persisted state for a vault.
func (s *Store) DeleteState(ctx context.Context, vault string) error {
	_, err := s.execContext(ctx, `DELETE FROM clustering_state WHERE vault = ?`, vault)
	if err != nil {
		return fmt.Errorf("delete clustering state: %w", err)
	}
	return nil
}

// CachedEmbedding is one embedding cache row. Rows are scoped per vault so
// cache maintenance for one vault never disturbs another's.
type CachedEmbedding struct {
	Vault       string
	ContentHash string
	NotePath    string
	Model       string
	Embedding   []float64
	TokenCount  int
}

// GetCachedEmbedding returns the cached embedding for a vault, content
// hash, and model, or nil when absent.
func (s *Store) GetCachedEmbedding(ctx context.Context, vault, contentHash, model string) (*CachedEmbedding, error) {
	var (
		notePath   string
		data       string
		tokenCount int
	)
	err := s.queryRowContext(ctx, `
		SELECT note_path, embedding, token_count
		FROM embedding_cache
		WHERE vault = ? AND content_hash = ? AND model = ?
	`, vault, contentHash, model).Scan(&notePath, &data, &tokenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached embedding: %w", err)
	}

	var embedding []float64
	if err := json.Unmarshal([]byte(data), &embedding); err != nil {
		return nil, fmt.Errorf("unmarshal cached embedding: %w", err)
	}
	return &CachedEmbedding{
		Vault:       vault,
		ContentHash: contentHash,
		NotePath:    notePath,
		Model:       model,
		Embedding:   embedding,
		TokenCount:  tokenCount,
	}, nil
}

// PutCachedEmbedding stores an embedding keyed by vault and content hash.
func (s *Store) PutCachedEmbedding(ctx context.Context, entry CachedEmbedding) error {
	data, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = s.execContext(ctx, `
		INSERT INTO embedding_cache (vault, content_hash, note_path, model, dimensions, embedding, token_count, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vault, content_hash) DO UPDATE SET
			note_path = excluded.note_path,
			model = excluded.model,
			dimensions = excluded.dimensions,
			embedding = excluded.embedding,
			token_count = excluded.token_count
	`, entry.Vault, entry.ContentHash, entry.NotePath, entry.Model, len(entry.Embedding), string(data), entry.TokenCount, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put cached embedding: %w", err)
	}
	return nil
}

// PruneEmbeddingCache deletes the vault's cache rows whose content hash is
// not in the given live set. Other vaults' rows are never touched.
func (s *Store) PruneEmbeddingCache(ctx context.Context, vault string, liveHashes map[string]bool) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content_hash FROM embedding_cache WHERE vault = ?`, vault)
	if err != nil {
		return 0, fmt.Errorf("list cache hashes: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return 0, fmt.Errorf("scan cache hash: %w", err)
		}
		if !liveHashes[hash] {
			stale = append(stale, hash)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var deleted int64
	for _, hash := range stale {
		res, err := s.execContext(ctx, `DELETE FROM embedding_cache WHERE vault = ? AND content_hash = ?`, vault, hash)
		if err != nil {
			return deleted, fmt.Errorf("prune cache: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += n
		}
	}
	return deleted, nil
}
