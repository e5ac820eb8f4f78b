package types

import (
	"context"

	"github.com/xhad/promptlab/internal/models"
)

// Core interfaces
type VectorStore interface {
	Upsert(ctx context.Context, docs []models.IndexedDocument) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredDocument, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Embedder matches embeddings.Embedder from langchaingo.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer sends one prompt to a text-generation model and returns its answer.
type Completer interface {
	Send(ctx context.Context, prompt string) (string, error)
}
