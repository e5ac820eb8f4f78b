package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/promptlab/internal/models"
	"k8s.io/klog/v2"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// VectorStore keeps one collection per Postgres table, searched with the
// pgvector cosine distance operator.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	config.applyDefaults()
	if !identifier.MatchString(config.Collection) {
		return nil, fmt.Errorf("invalid collection name %q", config.Collection)
	}
	if config.VectorDim < 1 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = vs.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS promptlab_collections (
			name TEXT PRIMARY KEY,
			vector_dim INTEGER NOT NULL,
			embedding_model TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("failed to create collections table: %w", err)
	}

	var (
		dim   int
		model string
	)
	err = vs.pool.QueryRow(ctx,
		`SELECT vector_dim, embedding_model FROM promptlab_collections WHERE name = $1`,
		vs.config.Collection).Scan(&dim, &model)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = vs.pool.Exec(ctx,
			`INSERT INTO promptlab_collections (name, vector_dim, embedding_model) VALUES ($1, $2, $3)`,
			vs.config.Collection, vs.config.VectorDim, vs.config.EmbeddingModel)
		if err != nil {
			return fmt.Errorf("failed to register collection: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read collection: %w", err)
	default:
		if err := checkCollection(vs.config, dim, model); err != nil {
			return err
		}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d)
		)`, vs.config.Collection, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		vs.config.Collection, vs.config.Collection)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *VectorStore) Upsert(ctx context.Context, docs []models.IndexedDocument) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, text, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`,
		vs.config.Collection)

	for _, doc := range docs {
		if err := checkDim(vs.config.VectorDim, doc.Embedding); err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		_, err = tx.Exec(ctx, stmt,
			doc.ID,
			doc.Text,
			metadata,
			pgvector.NewVector(doc.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	klog.FromContext(ctx).V(2).Info("Upserted documents", "collection", vs.config.Collection, "count", len(docs))
	return nil
}

func (vs *VectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.ScoredDocument, error) {
	if limit <= 0 {
		limit = vs.config.SearchLimit
	}
	if err := checkDim(vs.config.VectorDim, queryEmbedding); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, text, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1, id
		LIMIT $2`,
		vs.config.Collection)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.ScoredDocument
	for rows.Next() {
		var (
			doc      models.ScoredDocument
			metadata []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &doc.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return docs, nil
}

func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.Collection)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (vs *VectorStore) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}
