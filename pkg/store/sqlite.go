package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xhad/promptlab/internal/models"
	"k8s.io/klog/v2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    vector_dim INTEGER NOT NULL,
    embedding_model TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    text TEXT NOT NULL,
    metadata TEXT NOT NULL,
    vector BLOB NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, id),
    FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
);
`

// SQLiteStore is a persistent local collection. Similarity is computed in
// memory, which is fine for datasets of a few thousand titles.
type SQLiteStore struct {
	config VectorStoreConfig
	conn   *sql.DB
}

// NewSQLite opens (or creates) the database file and registers the collection.
func NewSQLite(ctx context.Context, config VectorStoreConfig) (*SQLiteStore, error) {
	config.applyDefaults()
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if config.VectorDim < 1 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	if dir := filepath.Dir(config.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; keeps the pipelines sequential
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteStore{config: config, conn: conn}
	if err := s.registerCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) registerCollection(ctx context.Context) error {
	var (
		dim   int
		model string
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT vector_dim, embedding_model FROM collections WHERE name = ?`,
		s.config.Collection).Scan(&dim, &model)
	if err == sql.ErrNoRows {
		_, err = s.conn.ExecContext(ctx,
			`INSERT INTO collections (name, vector_dim, embedding_model) VALUES (?, ?, ?)`,
			s.config.Collection, s.config.VectorDim, s.config.EmbeddingModel)
		if err != nil {
			return fmt.Errorf("failed to register collection: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}
	return checkCollection(s.config, dim, model)
}

// Upsert inserts or replaces documents by id in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []models.IndexedDocument) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if err := checkDim(s.config.VectorDim, doc.Embedding); err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, text, metadata, vector)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				text = excluded.text,
				metadata = excluded.metadata,
				vector = excluded.vector,
				updated_at = CURRENT_TIMESTAMP`,
			s.config.Collection, doc.ID, doc.Text, string(metadata), serializeVector(doc.Embedding))
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	klog.FromContext(ctx).V(2).Info("Upserted documents", "collection", s.config.Collection, "count", len(docs))
	return nil
}

// Query returns the k documents closest to embedding.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredDocument, error) {
	if k <= 0 {
		k = s.config.SearchLimit
	}
	if err := checkDim(s.config.VectorDim, embedding); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, text, metadata, vector FROM documents WHERE collection = ?`,
		s.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, models.ScoredDocument{
			IndexedDocument: doc,
			Similarity:      cosineSimilarity(embedding, doc.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return rank(results, k), nil
}

// Get returns one document, or nil when the id is unknown.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.IndexedDocument, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, text, metadata, vector FROM documents WHERE collection = ? AND id = ?`,
		s.config.Collection, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, s.config.Collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (models.IndexedDocument, error) {
	var (
		doc      models.IndexedDocument
		metadata string
		vector   []byte
	)
	if err := row.Scan(&doc.ID, &doc.Text, &metadata, &vector); err != nil {
		if err == sql.ErrNoRows {
			return doc, err
		}
		return doc, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
		return doc, fmt.Errorf("failed to decode metadata for %s: %w", doc.ID, err)
	}
	doc.Embedding = deserializeVector(vector)
	return doc, nil
}

// serializeVector converts a float32 slice to bytes for storage
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts bytes back to a float32 slice
func deserializeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
