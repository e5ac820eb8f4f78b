package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/internal/types"
	"github.com/xhad/promptlab/pkg/errs"
)

type VectorStoreConfig struct {
	Backend        string // "sqlite" or "pgvector"
	Path           string // sqlite database file
	ConnString     string // postgres connection string
	Collection     string
	VectorDim      int
	EmbeddingModel string
	SearchLimit    int
}

func (c *VectorStoreConfig) applyDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Collection == "" {
		c.Collection = "short_titles"
	}
	if c.SearchLimit == 0 {
		c.SearchLimit = 5
	}
}

// New opens the configured backend.
func New(ctx context.Context, config VectorStoreConfig) (types.VectorStore, error) {
	config.applyDefaults()

	switch config.Backend {
	case "sqlite":
		s, err := NewSQLite(ctx, config)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "pgvector":
		vs, err := NewWithConfig(ctx, config)
		if err != nil {
			return nil, err
		}
		return vs, nil
	default:
		return nil, &errs.ConfigurationError{Field: "store.backend", Message: fmt.Sprintf("unknown backend %q", config.Backend)}
	}
}

// checkCollection compares the registered shape of a collection with the
// configured one. Querying with vectors from another model gives meaningless
// neighbours, so a model change requires a new collection.
func checkCollection(config VectorStoreConfig, storedDim int, storedModel string) error {
	if storedDim != config.VectorDim {
		return &errs.ConfigurationError{
			Field:   "store.vector_dim",
			Message: fmt.Sprintf("collection %q holds %d-dimensional vectors, configured %d", config.Collection, storedDim, config.VectorDim),
		}
	}
	if storedModel != "" && config.EmbeddingModel != "" && storedModel != config.EmbeddingModel {
		return &errs.ConfigurationError{
			Field:   "embedding.model",
			Message: fmt.Sprintf("collection %q was indexed with %s, configured %s", config.Collection, storedModel, config.EmbeddingModel),
		}
	}
	return nil
}

func checkDim(want int, vector []float32) error {
	if len(vector) != want {
		return fmt.Errorf("embedding has %d dimensions, collection expects %d", len(vector), want)
	}
	return nil
}

// cosineSimilarity calculates the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank sorts by similarity, highest first, ties by id, and keeps the top k.
func rank(results []models.ScoredDocument, k int) []models.ScoredDocument {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}
