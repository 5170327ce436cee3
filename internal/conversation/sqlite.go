package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore persists messages in a local sqlite database. It shares the
// database handle with the other store backends; the schema mirrors the
// postgres one.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		model_name TEXT NOT NULL DEFAULT '',
		temperature REAL NOT NULL DEFAULT 0,
		top_p REAL NOT NULL DEFAULT 0,
		max_tokens INTEGER NOT NULL DEFAULT 0,
		request_snapshot TEXT NOT NULL DEFAULT '',
		is_liked INTEGER NOT NULL DEFAULT 0,
		is_error INTEGER NOT NULL DEFAULT 0,
		error_detail TEXT NOT NULL DEFAULT '',
		quoted_message_id TEXT NOT NULL DEFAULT '',
		quoted_text TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages (conversation_id, created_at);`)
	if err != nil {
		return nil, fmt.Errorf("init message schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at, model_name,
			temperature, top_p, max_tokens, request_snapshot, is_liked, is_error, error_detail,
			quoted_message_id, quoted_text)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt, msg.ModelName,
		msg.Temperature, msg.TopP, msg.MaxTokens, msg.RequestSnapshot, msg.IsLiked, msg.IsError,
		msg.ErrorDetail, msg.QuotedMessageID, msg.QuotedText)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateMessage(ctx context.Context, msg Message) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content=?, model_name=?, temperature=?, top_p=?, max_tokens=?,
			request_snapshot=?, is_liked=?, is_error=?, error_detail=?
		 WHERE id=?`,
		msg.Content, msg.ModelName, msg.Temperature, msg.TopP, msg.MaxTokens,
		msg.RequestSnapshot, msg.IsLiked, msg.IsError, msg.ErrorDetail, msg.ID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, role, content, created_at, model_name, temperature, top_p,
			max_tokens, request_snapshot, is_liked, is_error, error_detail, quoted_message_id, quoted_text
		 FROM messages WHERE id=?`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at, model_name, temperature, top_p,
			max_tokens, request_snapshot, is_liked, is_error, error_detail, quoted_message_id, quoted_text
		 FROM messages WHERE conversation_id=? ORDER BY created_at, id`, conversationID)
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

func (s *SQLiteStore) DeleteEmptyAssistantMessages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE role=? AND content=''`, string(RoleAssistant))
	if err != nil {
		return 0, fmt.Errorf("delete empty assistant messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete empty assistant messages rows: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id=?`, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return nil }
