package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/locallore/lore/internal/models"
)

type SQLiteConfig struct {
	Path      string // database file; parent directory is created if missing
	VectorDim int
}

// SQLiteStore is the embedded vector store backend. Documents, chunks, and
// vectors live in three relations; nearest-neighbor search is a full scan
// with the distance computed in process, which is exact but not built for
// large corpora.
//
// Concurrent readers are safe (WAL mode); concurrent writers must be
// serialized by the caller. A single SaveDocument call is atomic.
type SQLiteStore struct {
	config      SQLiteConfig
	db          *sql.DB
	initialized bool
}

func NewSQLite(config SQLiteConfig) (*SQLiteStore, error) {
	if config.Path == "" {
		config.Path = "lore.db"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// foreign_keys goes in the DSN so every pooled connection enforces it
	db, err := sql.Open("sqlite", config.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{
		config: config,
		db:     db,
	}, nil
}

// Initialize creates the schema. Safe to call more than once.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS vectors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			embedding BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			size INTEGER NOT NULL,
			vector_id INTEGER NOT NULL,
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
			FOREIGN KEY (vector_id) REFERENCES vectors(id)
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	s.initialized = true
	return nil
}

// SaveDocument atomically persists one document with its chunks and vectors.
// An existing document under the same label is replaced, chunk set included,
// in the same transaction. Chunk input order becomes chunk_index order.
func (s *SQLiteStore) SaveDocument(ctx context.Context, label string, chunks []models.Chunk, vectors [][]float32) (int64, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("saving %q: %d chunks vs %d vectors: %w",
			label, len(chunks), len(vectors), ErrCountMismatch)
	}
	for i, vec := range vectors {
		if len(vec) != s.config.VectorDim {
			return 0, fmt.Errorf("saving %q: vector %d has dimension %d, expected %d",
				label, i, len(vec), s.config.VectorDim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteByLabel(ctx, tx, label); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO documents (label) VALUES (?)", label)
	if err != nil {
		return 0, fmt.Errorf("inserting document: %w", err)
	}
	documentID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading document id: %w", err)
	}

	insertVector, err := tx.PrepareContext(ctx, "INSERT INTO vectors (embedding) VALUES (?)")
	if err != nil {
		return 0, fmt.Errorf("preparing vector insert: %w", err)
	}
	defer insertVector.Close()

	insertChunk, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, chunk_index, text, size, vector_id)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer insertChunk.Close()

	for i, chunk := range chunks {
		vecRes, err := insertVector.ExecContext(ctx, float32SliceToBytes(vectors[i]))
		if err != nil {
			return 0, fmt.Errorf("inserting vector %d: %w", i, err)
		}
		vectorID, err := vecRes.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading vector id: %w", err)
		}

		if _, err := insertChunk.ExecContext(ctx,
			documentID, chunk.Index, chunk.Text, chunk.Size, vectorID); err != nil {
			return 0, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return documentID, nil
}

// deleteByLabel removes a document and everything hanging off it. Vector ids
// are collected up front because chunks.vector_id references vectors: the
// chunks must be gone, via the document cascade, before their vectors can be.
func deleteByLabel(ctx context.Context, tx *sql.Tx, label string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT c.vector_id
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.label = ?
	`, label)
	if err != nil {
		return fmt.Errorf("collecting old vector ids: %w", err)
	}

	var vectorIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning vector id: %w", err)
		}
		vectorIDs = append(vectorIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("collecting old vector ids: %w", err)
	}

	// chunks go with the document via ON DELETE CASCADE
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE label = ?", label); err != nil {
		return fmt.Errorf("deleting old document: %w", err)
	}

	for _, id := range vectorIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting old vector %d: %w", id, err)
		}
	}

	return nil
}

// Search returns up to k nearest chunks by Euclidean distance, ascending.
// Ties keep insertion order.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	if len(query) != s.config.VectorDim {
		return nil, fmt.Errorf("query vector has dimension %d, expected %d",
			len(query), s.config.VectorDim)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.text, c.chunk_index, d.label, v.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		JOIN vectors v ON v.id = c.vector_id
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var blob []byte
		if err := rows.Scan(&r.Text, &r.ChunkIndex, &r.DocumentLabel, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		embedding := bytesToFloat32Slice(blob)
		if len(embedding) != len(query) {
			return nil, fmt.Errorf("stored vector has dimension %d, expected %d",
				len(embedding), len(query))
		}

		r.Distance = euclideanDistance(query, embedding)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k < len(results) {
		results = results[:k]
	}

	return results, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	if !s.initialized {
		return stats, ErrNotInitialized
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM vectors", &stats.Vectors},
	}

	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return models.Stats{}, fmt.Errorf("counting rows: %w", err)
		}
	}

	return stats, nil
}

func (s *SQLiteStore) Close() error {
	s.initialized = false
	return s.db.Close()
}
