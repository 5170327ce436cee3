package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akarpova/embra/internal/storage"
)

// SQLiteStore persists memory entries in a local SQLite database.
// Embeddings are stored as the bracketed text encoding so the same
// column round-trips through DecodeVector on read.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS memory_entries (
		id TEXT PRIMARY KEY,
		fact TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		source_message_id TEXT NOT NULL,
		embedding TEXT,
		created_at TIMESTAMP NOT NULL
	);`)
	if err != nil {
		return nil, fmt.Errorf("init memory schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_memory_entries_created ON memory_entries (created_at);`); err != nil {
		return nil, fmt.Errorf("init memory index: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_entries (id, fact, conversation_id, source_message_id, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Fact, entry.ConversationID, entry.SourceMessageID,
		storage.EncodeVector(entry.Embedding), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create memory entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fact, conversation_id, source_message_id, embedding, created_at
		 FROM memory_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list memory entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var vec sql.NullString
		if err := rows.Scan(&e.ID, &e.Fact, &e.ConversationID, &e.SourceMessageID, &vec, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		if vec.Valid {
			e.Embedding, err = storage.DecodeVector(vec.String)
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

func (s *SQLiteStore) Update(ctx context.Context, entry Entry) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory_entries SET fact=?, embedding=? WHERE id=?`,
		entry.Fact, storage.EncodeVector(entry.Embedding), entry.ID)
	if err != nil {
		return fmt.Errorf("update memory entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update memory entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete memory entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete memory entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error { return nil }
