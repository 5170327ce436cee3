package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akarpova/embra/internal/storage"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) (*PostgresStore, error) {
	if embeddingDim <= 0 {
		embeddingDim = 768
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		);`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_doc ON document_chunks (document_id, chunk_index);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init knowledge schema failed on %q: %w", stmt, err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin document tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (id, title, source, created_at) VALUES ($1, $2, $3, $4)`,
		doc.ID, doc.Title, doc.Source, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5::vector)`,
			c.ID, doc.ID, i, c.Content, storage.NullableVector(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, source, created_at FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Source, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, chunk_index, content, embedding::text
		 FROM document_chunks ORDER BY document_id, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var vec *string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &vec); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if vec != nil {
			c.Embedding, err = storage.DecodeVector(*vec)
			if err != nil {
				return nil, fmt.Errorf("decode chunk embedding: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error { return nil }
