// Package indexer embeds paper titles and upserts them into a vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/internal/types"
	"github.com/xhad/promptlab/pkg/errs"
	"github.com/xhad/promptlab/pkg/processor"
	"k8s.io/klog/v2"
)

type IndexerConfig struct {
	BatchSize int
	// OnBatch is called after each batch is stored with the number of
	// documents stored so far and the total.
	OnBatch func(done, total int)
}

type Indexer struct {
	config    IndexerConfig
	processor processor.Processor
	embedder  types.Embedder
	store     types.VectorStore
}

// Summary describes one indexing run.
type Summary struct {
	Records  int // papers passed in
	Upserted int // distinct documents written
	Batches  int
}

func NewWithConfig(config IndexerConfig, embedder types.Embedder, store types.VectorStore) (*Indexer, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}

	return &Indexer{
		config:    config,
		processor: processor.NewWithConfig(processor.ProcessorConfig{}),
		embedder:  embedder,
		store:     store,
	}, nil
}

// Index stores every paper, one batch at a time. A failed batch stops the run;
// batches already stored stay stored and a rerun overwrites them by id.
func (ix *Indexer) Index(ctx context.Context, papers []models.Paper) (Summary, error) {
	logger := klog.FromContext(ctx)
	summary := Summary{Records: len(papers)}

	docs := ix.processor.Process(papers)
	batches := processor.Batches(docs, ix.config.BatchSize)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		texts := make([]string, len(batch))
		for j, doc := range batch {
			texts[j] = doc.Text
		}

		vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return summary, fmt.Errorf("failed to embed batch %d: %w", i+1, err)
		}
		if len(vectors) != len(batch) {
			return summary, &errs.EmbeddingError{
				Op:  "EmbedDocuments",
				Err: fmt.Errorf("batch %d: got %d vectors for %d titles", i+1, len(vectors), len(batch)),
			}
		}

		embedded := make([]models.IndexedDocument, len(batch))
		for j, doc := range batch {
			doc.Embedding = vectors[j]
			embedded[j] = doc
		}

		if err := ix.store.Upsert(ctx, embedded); err != nil {
			return summary, fmt.Errorf("failed to store batch %d: %w", i+1, err)
		}

		summary.Batches++
		summary.Upserted += len(embedded)
		logger.V(1).Info("Stored batch", "batch", i+1, "of", len(batches), "documents", len(embedded))

		if ix.config.OnBatch != nil {
			ix.config.OnBatch(summary.Upserted, len(docs))
		}
	}

	logger.Info("Indexing complete", "records", summary.Records, "upserted", summary.Upserted, "batches", summary.Batches)
	return summary, nil
}
