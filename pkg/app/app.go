// Package app builds the pipelines from a Config. Components are created on
// first use so a command only touches the services it needs.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/internal/types"
	"github.com/xhad/promptlab/pkg/config"
	"github.com/xhad/promptlab/pkg/dataset"
	"github.com/xhad/promptlab/pkg/indexer"
	"github.com/xhad/promptlab/pkg/llm"
	"github.com/xhad/promptlab/pkg/menuchat"
	"github.com/xhad/promptlab/pkg/retriever"
	"github.com/xhad/promptlab/pkg/scraper"
	"github.com/xhad/promptlab/pkg/store"
	"github.com/xhad/promptlab/pkg/suggest"
)

type App struct {
	config *config.Config

	mu        sync.Mutex
	store     types.VectorStore
	embedder  types.Embedder
	completer types.Completer
}

type Option func(*App)

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e types.Embedder) Option {
	return func(a *App) { a.embedder = e }
}

// WithCompleter replaces the configured completion provider.
func WithCompleter(c types.Completer) Option {
	return func(a *App) { a.completer = c }
}

// WithStore replaces the configured vector store.
func WithStore(s types.VectorStore) Option {
	return func(a *App) { a.store = s }
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", verrs[0])
	}

	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *App) Config() *config.Config { return a.config }

func (a *App) Embedder() (types.Embedder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.embedderLocked()
}

func (a *App) embedderLocked() (types.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}

	cfg := a.config.Embedding
	apiKey := ""
	if cfg.Provider == "openai" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if a.config.LLM.Provider == "openai" && a.config.LLM.APIKey != "" {
			apiKey = a.config.LLM.APIKey
		}
	}

	e, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKey:    apiKey,
		BatchSize: cfg.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.embedder = e
	return e, nil
}

// Store opens the vector store registered for the configured embedding model.
func (a *App) Store(ctx context.Context) (types.VectorStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}

	e, err := a.embedderLocked()
	if err != nil {
		return nil, err
	}
	model := a.config.Embedding.Provider + "/" + a.config.Embedding.Model
	if m, ok := e.(interface{ Model() string }); ok {
		model = m.Model()
	}

	cfg := a.config.Store
	s, err := store.New(ctx, store.VectorStoreConfig{
		Backend:        cfg.Backend,
		Path:           cfg.Path,
		ConnString:     cfg.URL,
		Collection:     cfg.Collection,
		VectorDim:      cfg.VectorDim,
		EmbeddingModel: model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	a.store = s
	return s, nil
}

// Completer returns the completion client. Hosted providers need credentials.
func (a *App) Completer() (types.Completer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completer != nil {
		return a.completer, nil
	}
	if err := a.config.RequireCredentials(); err != nil {
		return nil, err
	}

	cfg := a.config.LLM
	c, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:          cfg.Provider,
		Model:             cfg.Model,
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat client: %w", err)
	}
	a.completer = c
	return c, nil
}

// LoadDataset reads the configured short-titles file.
func (a *App) LoadDataset() ([]models.Paper, dataset.Stats, error) {
	return dataset.Load(a.config.Dataset.Path)
}

func (a *App) Scraper(onProgress func(url string)) (*scraper.Scraper, error) {
	return scraper.NewWithConfig(scraper.ScraperConfig{
		RateLimit:  a.config.Dataset.RateLimit,
		OnProgress: onProgress,
	})
}

func (a *App) Indexer(ctx context.Context, onBatch func(done, total int)) (*indexer.Indexer, error) {
	e, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	s, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	return indexer.NewWithConfig(indexer.IndexerConfig{
		BatchSize: a.config.Dataset.BatchSize,
		OnBatch:   onBatch,
	}, e, s)
}

func (a *App) Retriever(ctx context.Context) (*retriever.Retriever, error) {
	e, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	s, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	return retriever.New(e, s, a.config.Suggest.Similar)
}

func (a *App) Suggester(ctx context.Context) (*suggest.Suggester, error) {
	r, err := a.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	c, err := a.Completer()
	if err != nil {
		return nil, err
	}
	return suggest.NewWithConfig(suggest.SuggesterConfig{Similar: a.config.Suggest.Similar}, r, c)
}

// Chain loads the menu and builds the menu chat chain.
func (a *App) Chain() (*menuchat.Chain, error) {
	menu, err := menuchat.LoadMenu(a.config.Menu.Path)
	if err != nil {
		return nil, err
	}
	c, err := a.Completer()
	if err != nil {
		return nil, err
	}
	return menuchat.NewChain(c, menu)
}

func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
