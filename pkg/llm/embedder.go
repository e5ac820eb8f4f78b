package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/promptlab/pkg/errs"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string // "ollama" or "openai"
	Model     string
	BaseURL   string
	APIKey    string
	BatchSize int
}

// Embedder turns titles and queries into vectors. Indexing and retrieval must
// share one Embedder so both sides use the same model.
type Embedder struct {
	config   EmbedderConfig
	embedder embeddings.Embedder
}

// NewEmbedderWithConfig creates an Embedder backed by the configured provider.
func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		client, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	case "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, &errs.ConfigurationError{Field: "embedding.provider", Message: fmt.Sprintf("unknown provider %q", config.Provider)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	return NewEmbedderFromClient(client, config)
}

// NewEmbedderFromClient wraps any langchaingo embedding client.
func NewEmbedderFromClient(client embeddings.EmbedderClient, config EmbedderConfig) (*Embedder, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 512
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config:   config,
		embedder: emb,
	}, nil
}

// Model returns the embedding model identifier.
func (e *Embedder) Model() string {
	return e.config.Provider + "/" + e.config.Model
}

// EmbedDocuments embeds texts in order, one vector per text.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &errs.EmbeddingError{Op: "EmbedDocuments", Retryable: errs.Classify(err), Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &errs.EmbeddingError{
			Op:  "EmbedDocuments",
			Err: fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)),
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &errs.EmbeddingError{Op: "EmbedQuery", Err: fmt.Errorf("query is empty")}
	}
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &errs.EmbeddingError{Op: "EmbedQuery", Retryable: errs.Classify(err), Err: err}
	}
	return vector, nil
}
