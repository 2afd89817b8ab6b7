// Package models contains domain models for notemap.
package models

// EmbeddedNote is a note together with its semantic embedding.
// Produced by the embedding subsystem; immutable input to the clustering engine.
type EmbeddedNote struct {
	NotePath    string    `json:"note_path"`
	Embedding   []float64 `json:"embedding"`
	ContentHash string    `json:"content_hash"`
	TokenCount  int       `json:"token_count"`
	FromCache   bool      `json:"from_cache"`
}

// NoteFile carries the filesystem metadata the pipeline needs for
// candidate-name extraction and folder grouping.
type NoteFile struct {
	Basename string `json:"basename"`
	Folder   string `json:"folder"`
}
