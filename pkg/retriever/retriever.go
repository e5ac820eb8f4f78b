// Package retriever finds stored titles similar to a free-text query.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/internal/types"
)

// Retriever embeds a query with the indexing embedder and searches the store.
// Nothing is cached: every call embeds and searches again.
type Retriever struct {
	embedder types.Embedder
	store    types.VectorStore
	k        int
}

func New(embedder types.Embedder, store types.VectorStore, k int) (*Retriever, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if k <= 0 {
		k = 10
	}
	return &Retriever{embedder: embedder, store: store, k: k}, nil
}

// Retrieve returns at most k documents, closest first. k <= 0 uses the
// retriever's default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if k <= 0 {
		k = r.k
	}

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	docs, err := r.store.Query(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search store: %w", err)
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}
