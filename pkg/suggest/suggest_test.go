package suggest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/internal/testutil"
	"github.com/xhad/promptlab/pkg/suggest"
)

type fakeRetriever struct {
	docs  []models.ScoredDocument
	err   error
	query string
	k     int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredDocument, error) {
	f.query, f.k = query, k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > k {
		return f.docs[:k], nil
	}
	return f.docs, nil
}

func scored(titles ...string) []models.ScoredDocument {
	out := make([]models.ScoredDocument, len(titles))
	for i, t := range titles {
		out[i] = models.ScoredDocument{
			IndexedDocument: models.IndexedDocument{ID: t, Text: t},
			Similarity:      1 - float64(i)/10,
		}
	}
	return out
}

func TestSuggest(t *testing.T) {
	ret := &fakeRetriever{docs: scored("Self-RAG", "RAG-Fusion", "CRAG")}
	comp := &testutil.Completer{Reply: func(string) (string, error) {
		return "Here are some ideas:\n1. ReflectRAG\n2. Self-RAG\n3) \"Critic-RAG\"\n4. reflectrag\n5. **RAGTime**", nil
	}}

	s, err := suggest.NewWithConfig(suggest.SuggesterConfig{Similar: 2}, ret, comp)
	require.NoError(t, err)

	got, err := s.Suggest(context.Background(), "  Self-Reflective Retrieval-Augmented Generation ")
	require.NoError(t, err)

	assert.Equal(t, "Self-Reflective Retrieval-Augmented Generation", ret.query)
	assert.Equal(t, 3, ret.k)
	assert.Equal(t, []string{"Self-RAG", "RAG-Fusion"}, models.Titles(got.Similar))
	assert.Equal(t, []string{"ReflectRAG", "Critic-RAG", "RAGTime"}, got.Titles)
	assert.Contains(t, got.Prompt, "Self-RAG\nRAG-Fusion")
	assert.NotContains(t, got.Prompt, "CRAG")
	assert.Equal(t, []string{got.Prompt}, comp.Sent())
}

func TestSuggestExcludesInputTitle(t *testing.T) {
	ret := &fakeRetriever{docs: scored("Llemma", "Minerva", "MathGLM")}
	comp := &testutil.Completer{Reply: func(string) (string, error) { return "1. MathLM", nil }}

	s, err := suggest.NewWithConfig(suggest.SuggesterConfig{Similar: 2}, ret, comp)
	require.NoError(t, err)

	got, err := s.Suggest(context.Background(), "llemma")
	require.NoError(t, err)
	assert.Equal(t, []string{"Minerva", "MathGLM"}, models.Titles(got.Similar))
}

func TestSuggestEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	require.NoError(t, st.Upsert(ctx, []models.IndexedDocument{
		{ID: "1", Text: "Self-RAG", Embedding: testutil.Vector("Self-RAG")},
		{ID: "2", Text: "Llemma", Embedding: testutil.Vector("Llemma")},
	}))

	ret := retrieverFunc(func(ctx context.Context, q string, k int) ([]models.ScoredDocument, error) {
		return st.Query(ctx, testutil.Vector(q), k)
	})
	comp := &testutil.Completer{Reply: func(string) (string, error) { return "1. RAG-Reflect", nil }}

	s, err := suggest.NewWithConfig(suggest.SuggesterConfig{Similar: 1}, ret, comp)
	require.NoError(t, err)

	got, err := s.Suggest(ctx, "retrieval augmented generation with critique")
	require.NoError(t, err)
	assert.Equal(t, []string{"Self-RAG"}, models.Titles(got.Similar))
	assert.Equal(t, []string{"RAG-Reflect"}, got.Titles)
}

type retrieverFunc func(ctx context.Context, q string, k int) ([]models.ScoredDocument, error)

func (f retrieverFunc) Retrieve(ctx context.Context, q string, k int) ([]models.ScoredDocument, error) {
	return f(ctx, q, k)
}

func TestSuggestErrors(t *testing.T) {
	boom := errors.New("boom")

	s, err := suggest.NewWithConfig(suggest.SuggesterConfig{}, &fakeRetriever{err: boom}, &testutil.Completer{})
	require.NoError(t, err)
	_, err = s.Suggest(context.Background(), "Llemma")
	assert.ErrorIs(t, err, boom)

	s, err = suggest.NewWithConfig(suggest.SuggesterConfig{}, &fakeRetriever{}, &testutil.Completer{
		Reply: func(string) (string, error) { return "", boom },
	})
	require.NoError(t, err)
	_, err = s.Suggest(context.Background(), "Llemma")
	assert.ErrorIs(t, err, boom)

	_, err = s.Suggest(context.Background(), " ")
	assert.Error(t, err)

	_, err = suggest.NewWithConfig(suggest.SuggesterConfig{}, nil, &testutil.Completer{})
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"numbered", "1. A\n2. B", []string{"A", "B"}},
		{"parenthesized", "(1) A\n2) B\n3: C", []string{"A", "B", "C"}},
		{"preamble ignored", "Sure!\n1. A\n\n2. B\nHope this helps.", []string{"A", "B"}},
		{"bullets", "- A\n* B\n• C", []string{"A", "B", "C"}},
		{"plain lines", "A\n\n B \n", []string{"A", "B"}},
		{"quotes and emphasis", "1. \"A\"\n2. **B**", []string{"A", "B"}},
		{"leading number in title", "1.58-bit LLMs\nBitNet", []string{"1.58-bit LLMs", "BitNet"}},
		{"numbered titles with numbers", "1. 1.58-bit LLMs\n2. 3:1 Sparse Attention", []string{"1.58-bit LLMs", "3:1 Sparse Attention"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggest.ParseList(tt.raw))
		})
	}
}

func TestFilter(t *testing.T) {
	got := suggest.Filter([]string{"Self-RAG", "New One", "new  one", "Other"}, []string{"self-rag"})
	assert.Equal(t, []string{"New One", "Other"}, got)
}
