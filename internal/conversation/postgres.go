package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists messages in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if err := initMessageSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initMessageSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			model_name TEXT NOT NULL DEFAULT '',
			temperature DOUBLE PRECISION NOT NULL DEFAULT 0,
			top_p DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_tokens INTEGER NOT NULL DEFAULT 0,
			request_snapshot TEXT NOT NULL DEFAULT '',
			is_liked BOOLEAN NOT NULL DEFAULT FALSE,
			is_error BOOLEAN NOT NULL DEFAULT FALSE,
			error_detail TEXT NOT NULL DEFAULT '',
			quoted_message_id TEXT NOT NULL DEFAULT '',
			quoted_text TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages (conversation_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init message schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at, model_name,
			temperature, top_p, max_tokens, request_snapshot, is_liked, is_error, error_detail,
			quoted_message_id, quoted_text)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt, msg.ModelName,
		msg.Temperature, msg.TopP, msg.MaxTokens, msg.RequestSnapshot, msg.IsLiked, msg.IsError,
		msg.ErrorDetail, msg.QuotedMessageID, msg.QuotedText,
	)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, msg Message) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET content=$2, model_name=$3, temperature=$4, top_p=$5, max_tokens=$6,
			request_snapshot=$7, is_liked=$8, is_error=$9, error_detail=$10
		 WHERE id=$1`,
		msg.ID, msg.Content, msg.ModelName, msg.Temperature, msg.TopP, msg.MaxTokens,
		msg.RequestSnapshot, msg.IsLiked, msg.IsError, msg.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, conversation_id, role, content, created_at, model_name, temperature, top_p,
			max_tokens, request_snapshot, is_liked, is_error, error_detail, quoted_message_id, quoted_text
		 FROM messages WHERE id=$1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at, model_name, temperature, top_p,
			max_tokens, request_snapshot, is_liked, is_error, error_detail, quoted_message_id, quoted_text
		 FROM messages WHERE conversation_id=$1 ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteEmptyAssistantMessages(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE role=$1 AND content=''`, string(RoleAssistant))
	if err != nil {
		return 0, fmt.Errorf("delete empty assistant messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, conversationID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id=$1`, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var msg Message
	var role string
	err := row.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt,
		&msg.ModelName, &msg.Temperature, &msg.TopP, &msg.MaxTokens, &msg.RequestSnapshot,
		&msg.IsLiked, &msg.IsError, &msg.ErrorDetail, &msg.QuotedMessageID, &msg.QuotedText)
	if err != nil {
		return Message{}, err
	}
	msg.Role = Role(role)
	return msg, nil
}
