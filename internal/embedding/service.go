// Package embedding provides text embedding generation for notes, with a
// swappable provider and a content-hash keyed cache so unchanged notes are
// never re-embedded.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/notemap/internal/state"
	"github.com/thebtf/notemap/pkg/models"
)

// Provider generates embeddings for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimensions() int
	Name() string
}

// NoteContent is the raw input to the embedding stage.
type NoteContent struct {
	Path string
	Text string
}

// Service embeds note contents, consulting the cache first and counting
// tokens for cost accounting.
type Service struct {
	provider Provider
	store    *state.Store
	codec    tokenizer.Codec
	logger   zerolog.Logger
}

// NewService creates an embedding service. The store may be nil, in which
// case caching is disabled.
func NewService(provider Provider, store *state.Store, logger zerolog.Logger) (*Service, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Service{
		provider: provider,
		store:    store,
		codec:    codec,
		logger:   logger.With().Str("component", "embedding").Logger(),
	}, nil
}

// HashContent fingerprints note text for change detection and cache keys.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// EmbedNotes produces an EmbeddedNote per input, reusing the vault's
// cached embeddings for unchanged content and batching the rest through
// the provider.
func (s *Service) EmbedNotes(ctx context.Context, vault string, notes []NoteContent) ([]models.EmbeddedNote, error) {
	out := make([]models.EmbeddedNote, len(notes))
	var missIdx []int
	var missTexts []string

	for i, note := range notes {
		hash := HashContent(note.Text)
		out[i] = models.EmbeddedNote{
			NotePath:    note.Path,
			ContentHash: hash,
			TokenCount:  s.countTokens(note.Text),
		}

		if s.store != nil {
			cached, err := s.store.GetCachedEmbedding(ctx, vault, hash, s.provider.Name())
			if err != nil {
				s.logger.Warn().Err(err).Str("note", note.Path).Msg("Cache lookup failed")
			} else if cached != nil {
				out[i].Embedding = cached.Embedding
				out[i].FromCache = true
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, note.Text)
	}

	if len(missTexts) > 0 {
		embeddings, err := s.provider.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, fmt.Errorf("embed %d notes: %w", len(missTexts), err)
		}
		for j, idx := range missIdx {
			out[idx].Embedding = embeddings[j]
			if s.store != nil {
				err := s.store.PutCachedEmbedding(ctx, state.CachedEmbedding{
					Vault:       vault,
					ContentHash: out[idx].ContentHash,
					NotePath:    out[idx].NotePath,
					Model:       s.provider.Name(),
					Embedding:   embeddings[j],
					TokenCount:  out[idx].TokenCount,
				})
				if err != nil {
					s.logger.Warn().Err(err).Str("note", out[idx].NotePath).Msg("Cache write failed")
				}
			}
		}
	}

	s.logger.Debug().
		Int("notes", len(notes)).
		Int("cache_hits", len(notes)-len(missIdx)).
		Int("embedded", len(missIdx)).
		Msg("Embedded notes")
	return out, nil
}

// countTokens returns the tokenizer count for the text, or 0 when encoding
// fails.
func (s *Service) countTokens(text string) int {
	ids, _, err := s.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}
