package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akarpova/embra/internal/storage"
)

// PostgresStore persists memory entries in PostgreSQL with a pgvector
// embedding column.
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) (*PostgresStore, error) {
	if embeddingDim <= 0 {
		embeddingDim = 768
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			fact TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			source_message_id TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_memory_entries_created ON memory_entries (created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init memory schema failed on %q: %w", stmt, err)
		}
	}
	return &PostgresStore{pool: pool, dim: embeddingDim}, nil
}

func (s *PostgresStore) Create(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_entries (id, fact, conversation_id, source_message_id, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5::vector, $6)`,
		entry.ID, entry.Fact, entry.ConversationID, entry.SourceMessageID,
		storage.NullableVector(entry.Embedding), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create memory entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, fact, conversation_id, source_message_id, embedding::text, created_at
		 FROM memory_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list memory entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var vec *string
		if err := rows.Scan(&e.ID, &e.Fact, &e.ConversationID, &e.SourceMessageID, &vec, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		if vec != nil {
			e.Embedding, err = storage.DecodeVector(*vec)
			if err != nil {
				return nil, fmt.Errorf("decode memory embedding: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, entry Entry) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memory_entries SET fact=$2, embedding=$3::vector WHERE id=$1`,
		entry.ID, entry.Fact, storage.NullableVector(entry.Embedding))
	if err != nil {
		return fmt.Errorf("update memory entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM memory_entries WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete memory entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error { return nil }
