// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/internal/types"
	"github.com/xhad/promptlab/pkg/store"
)

// Dim is the size of the vectors produced by KeywordEmbedder.
const Dim = 3

// KeywordEmbedder maps text onto three axes: retrieval, mathematics, other.
type KeywordEmbedder struct {
	Err   error
	Calls int
}

func (e *KeywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (e *KeywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	return Vector(text), nil
}

// Vector is the embedding KeywordEmbedder returns for text.
func Vector(text string) []float32 {
	t := strings.ToLower(text)
	v := make([]float32, Dim)
	if strings.Contains(t, "rag") || strings.Contains(t, "retriev") {
		v[0] = 1
	}
	if strings.Contains(t, "math") || strings.Contains(t, "llemma") {
		v[1] = 1
	}
	if v[0] == 0 && v[1] == 0 {
		v[2] = 1
	}
	return v
}

// NewStore opens a sqlite store in a temporary directory sized for KeywordEmbedder.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(context.Background(), store.VectorStoreConfig{
		Path:           filepath.Join(t.TempDir(), "test.db"),
		Collection:     "test_titles",
		VectorDim:      Dim,
		EmbeddingModel: "keyword",
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// RecordingStore records every upserted batch before delegating.
type RecordingStore struct {
	types.VectorStore
	Batches [][]models.IndexedDocument
	// FailOn makes the n-th Upsert call (1-based) fail.
	FailOn int
}

func (s *RecordingStore) Upsert(ctx context.Context, docs []models.IndexedDocument) error {
	s.Batches = append(s.Batches, docs)
	if s.FailOn == len(s.Batches) {
		return errors.New("store unavailable")
	}
	return s.VectorStore.Upsert(ctx, docs)
}

// Completer answers prompts with Reply and records them.
type Completer struct {
	mu      sync.Mutex
	Reply   func(prompt string) (string, error)
	Prompts []string
}

func (c *Completer) Send(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.Prompts = append(c.Prompts, prompt)
	c.mu.Unlock()
	if c.Reply == nil {
		return "", nil
	}
	return c.Reply(prompt)
}

// Sent returns a copy of the prompts received so far.
func (c *Completer) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Prompts...)
}
