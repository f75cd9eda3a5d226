package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/locallore/lore/internal/models"
)

type PGConfig struct {
	ConnString string
	VectorDim  int
	IndexLists int // ivfflat list count
}

// PGStore is a PostgreSQL/pgvector backend with the same three-relation
// layout as the embedded store. Search uses the L2 operator so distances are
// comparable with the SQLite backend and the relevance threshold keeps its
// meaning.
type PGStore struct {
	config      PGConfig
	pool        *pgxpool.Pool
	initialized bool
}

func NewPG(ctx context.Context, config PGConfig) (*PGStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}
	if config.IndexLists == 0 {
		config.IndexLists = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PGStore{
		config: config,
		pool:   pool,
	}, nil
}

func (s *PGStore) Initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vectors (
			id UUID PRIMARY KEY,
			embedding vector(%d) NOT NULL
		)`, s.config.VectorDim),
		`CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			size INTEGER NOT NULL,
			vector_id UUID NOT NULL REFERENCES vectors(id)
		)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS vectors_embedding_idx
			ON vectors
			USING ivfflat (embedding vector_l2_ops)
			WITH (lists = %d)`, s.config.IndexLists),
	}

	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s.initialized = true
	return nil
}

func (s *PGStore) SaveDocument(ctx context.Context, label string, chunks []models.Chunk, vectors [][]float32) (int64, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("saving %q: %d chunks vs %d vectors: %w",
			label, len(chunks), len(vectors), ErrCountMismatch)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.deleteByLabel(ctx, tx, label); err != nil {
		return 0, err
	}

	var documentID int64
	err = tx.QueryRow(ctx,
		"INSERT INTO documents (label) VALUES ($1) RETURNING id", label,
	).Scan(&documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}

	for i, chunk := range chunks {
		vectorID := uuid.New()

		if _, err := tx.Exec(ctx,
			"INSERT INTO vectors (id, embedding) VALUES ($1, $2)",
			vectorID, pgvector.NewVector(vectors[i])); err != nil {
			return 0, fmt.Errorf("failed to insert vector %d: %w", i, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (document_id, chunk_index, text, size, vector_id)
			VALUES ($1, $2, $3, $4, $5)`,
			documentID, chunk.Index, chunk.Text, chunk.Size, vectorID); err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return documentID, nil
}

// deleteByLabel removes a document and everything hanging off it. The
// referencing chunks must be gone, via the document cascade, before their
// vectors can be deleted, so the vector ids are collected up front.
func (s *PGStore) deleteByLabel(ctx context.Context, tx pgx.Tx, label string) error {
	rows, err := tx.Query(ctx, `
		SELECT c.vector_id
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.label = $1
	`, label)
	if err != nil {
		return fmt.Errorf("failed to collect old vector ids: %w", err)
	}

	var vectorIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan vector id: %w", err)
		}
		vectorIDs = append(vectorIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to collect old vector ids: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM documents WHERE label = $1", label); err != nil {
		return fmt.Errorf("failed to delete old document: %w", err)
	}

	if len(vectorIDs) > 0 {
		if _, err := tx.Exec(ctx, "DELETE FROM vectors WHERE id = ANY($1)", vectorIDs); err != nil {
			return fmt.Errorf("failed to delete old vectors: %w", err)
		}
	}

	return nil
}

func (s *PGStore) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT c.text, c.chunk_index, d.label, v.embedding <-> $1 AS distance
		FROM vectors v
		JOIN chunks c ON c.vector_id = v.id
		JOIN documents d ON d.id = c.document_id
		ORDER BY v.embedding <-> $1, c.id
		LIMIT $2
	`, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.Text, &r.ChunkIndex, &r.DocumentLabel, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return results, nil
}

func (s *PGStore) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	if !s.initialized {
		return stats, ErrNotInitialized
	}

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM vectors)
	`).Scan(&stats.Documents, &stats.Chunks, &stats.Vectors)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to count rows: %w", err)
	}

	return stats, nil
}

func (s *PGStore) Close() error {
	s.initialized = false
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
