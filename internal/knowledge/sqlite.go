package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akarpova/embra/internal/storage"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_doc ON document_chunks (document_id, chunk_index);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init knowledge schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, source, created_at) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Source, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
			 VALUES (?, ?, ?, ?, ?)`,
			c.ID, doc.ID, i, c.Content, storage.EncodeVector(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
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

func (s *SQLiteStore) ListChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, content, embedding
		 FROM document_chunks ORDER BY document_id, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var vec sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &vec); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if vec.Valid {
			c.Embedding, err = storage.DecodeVector(vec.String)
			if err != nil {
				return nil, fmt.Errorf("decode chunk embedding: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	// SQLite only enforces the cascade with foreign keys on, so clear
	// chunks explicitly.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id=?`, id); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return nil }
