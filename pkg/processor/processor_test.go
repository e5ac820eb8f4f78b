package processor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/pkg/processor"
)

func TestProcessor_DocumentID(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	a := models.Paper{Title: "Self-RAG", PaperURL: "https://arxiv.org/abs/2310.11511"}
	b := models.Paper{Title: "  self-rag ", PaperURL: "https://arxiv.org/abs/2310.11511"}
	c := models.Paper{Title: "Self-RAG", PaperURL: "https://example.com/other"}

	assert.Equal(t, p.DocumentID(a), p.DocumentID(a), "ids are deterministic")
	assert.Equal(t, p.DocumentID(a), p.DocumentID(b), "ids ignore case and spacing")
	assert.NotEqual(t, p.DocumentID(a), p.DocumentID(c), "same title at another URL is another paper")
	assert.Len(t, p.DocumentID(a), 32)
}

func TestProcessor_Process(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	papers := []models.Paper{
		{Title: "Self-RAG", Description: "d", PaperURL: "u1"},
		{Title: "Llemma", Description: "d", PaperURL: "u2", Abstract: "math"},
		{Title: "self-rag", Description: "d2", PaperURL: "u1", TweetURL: "t1"},
	}

	docs := p.Process(papers)
	require.Len(t, docs, 2)

	assert.Equal(t, "self-rag", docs[0].Text, "later duplicate wins")
	assert.Equal(t, "t1", docs[0].Metadata.TweetURL)
	assert.Equal(t, "Llemma", docs[1].Text)
	assert.Equal(t, "math", docs[1].Metadata.Abstract)
	assert.Equal(t, "u2", docs[1].Metadata.URL)
	assert.Nil(t, docs[0].Embedding)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Self-RAG", "self-rag"},
		{"  Mistral \t 7B\n", "mistral 7b"},
		{"bad\xffbyte", "badbyte"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, processor.Normalize(tt.in))
		})
	}
}

func TestBatches(t *testing.T) {
	docs := make([]models.IndexedDocument, 7)
	for i := range docs {
		docs[i].ID = string(rune('a' + i))
	}

	tests := []struct {
		name  string
		size  int
		sizes []int
	}{
		{"even split", 7, []int{7}},
		{"remainder", 3, []int{3, 3, 1}},
		{"one per batch", 1, []int{1, 1, 1, 1, 1, 1, 1}},
		{"non-positive size means one batch", 0, []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := processor.Batches(docs, tt.size)
			require.Len(t, batches, len(tt.sizes))

			seen := map[string]int{}
			for i, batch := range batches {
				assert.Len(t, batch, tt.sizes[i])
				for _, d := range batch {
					seen[d.ID]++
				}
			}
			assert.Len(t, seen, len(docs))
			for id, n := range seen {
				assert.Equal(t, 1, n, "document %s appears once", id)
			}
		})
	}

	assert.Empty(t, processor.Batches(nil, 50))
}
