// Package vectordb provides vector store adapters implementing ports.VectorStore.
package vectordb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
)

const (
	DefaultDataPath   = "rag/psycho_db"
	DefaultCollection = "rag-chroma"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(collection, document_id);
`

// SQLiteStore is a persistent vector store scoped to one named collection
// inside a vectors.db file. Search is brute-force cosine similarity.
type SQLiteStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection string
}

// NewSQLiteStore opens (or creates) the store under dataPath.
func NewSQLiteStore(dataPath, collection string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = DefaultDataPath
	}
	if collection == "" {
		collection = DefaultCollection
	}

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataPath, "vectors.db")+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteStore{db: db, collection: collection}, nil
}

// Collection returns the collection this store reads and writes.
func (s *SQLiteStore) Collection() string { return s.collection }

// Dimension returns the recorded vector dimension, or 0 for an empty
// collection.
func (s *SQLiteStore) Dimension(ctx context.Context) (int, error) {
	return dimension(ctx, s.db, s.collection)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func dimension(ctx context.Context, q queryer, collection string) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}

// Store upserts chunks. All vectors in a collection share one dimension,
// fixed by the first stored chunk.
func (s *SQLiteStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	dim, err := dimension(ctx, tx, s.collection)
	if err != nil {
		return fmt.Errorf("reading collection: %w", err)
	}
	if dim == 0 {
		dim = len(chunks[0].Embedding)
		if _, err := tx.ExecContext(ctx, "INSERT INTO collections (name, dimension) VALUES (?, ?)", s.collection, dim); err != nil {
			return fmt.Errorf("registering collection: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (collection, id, document_id, source, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %s has %d dimensions, collection %q has %d: %w",
				c.ID, len(c.Embedding), s.collection, dim, ErrDimensionMismatch)
		}
		if _, err := stmt.ExecContext(ctx,
			s.collection, c.ID, c.DocumentID, c.Source, c.Index, c.Content, encodeVector(c.Embedding),
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns the topK chunks most similar to embedding.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, source, chunk_index, content, embedding
		FROM chunks WHERE collection = ?`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []entities.QueryResult
	for rows.Next() {
		var (
			c    entities.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Source, &c.Index, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if c.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		if len(c.Embedding) != len(embedding) {
			return nil, fmt.Errorf("query has %d dimensions, collection %q has %d: %w",
				len(embedding), s.collection, len(c.Embedding), ErrDimensionMismatch)
		}
		results = append(results, entities.QueryResult{
			Chunk:     c,
			Score:     cosineSimilarity(embedding, c.Embedding),
			SourceDoc: c.Source,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return rank(results, topK), nil
}

// Delete removes all chunks of a document.
func (s *SQLiteStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ? AND document_id = ?", s.collection, documentID)
	return err
}

// Clear empties the collection and forgets its dimension.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", s.collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", s.collection); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ChunkCount returns the number of chunks in the collection.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", s.collection).Scan(&count)
	return count, err
}
