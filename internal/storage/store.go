// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/nexus/internal/logging"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDatabaseError        = errors.New("database error")
)

// =============================================================================
// TYPES
// =============================================================================

// Message is a single turn within a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Model          string    `json:"model,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Conversation is a chat session. Messages is only populated by
// GetConversation; listing and search return summaries.
type Conversation struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Model        string    `json:"model,omitempty"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages,omitempty"`
}

// =============================================================================
// STORE
// =============================================================================

// Store provides transactional access to conversation history.
// SQLite allows one writer at a time, so the connection pool is pinned
// to a single connection and all methods are safe for concurrent use.
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNop()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite
	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed metadata: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation creates a new conversation and returns its ID.
func (s *Store) CreateConversation(ctx context.Context, title, model string) (int64, error) {
	now := time.Now().UnixNano()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (title, model, created_at, updated_at) VALUES (?, ?, ?, ?)",
		title, model, now, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	s.log.Debug("conversation created", zap.Int64("id", id), zap.String("title", title))
	return id, nil
}

// AppendMessage adds a message to a conversation. The message row, its FTS
// mirror, and the conversation's counter and updated_at all change in one
// transaction. Returns ErrConversationNotFound for unknown conversations.
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role, content, model string) (int64, error) {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM conversations WHERE id = ?", conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConversationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	now := time.Now().UnixNano()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, role, content, model, timestamp) VALUES (?, ?, ?, ?, ?)",
		conversationID, role, content, model, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	msgID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages_fts (content, conversation_id) VALUES (?, ?)",
		content, conversationID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ?, message_count = message_count + 1 WHERE id = ?",
		now, conversationID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		s.log.Warn("slow message append",
			zap.Int64("conversation_id", conversationID),
			zap.Duration("elapsed", elapsed))
	}

	return msgID, nil
}

// GetConversation loads a conversation with all its messages in insertion
// order. Returns ErrConversationNotFound for unknown IDs.
func (s *Store) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	conv := &Conversation{}
	var createdAt, updatedAt int64
	var model sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at, model, message_count FROM conversations WHERE id = ?",
		id).Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt, &model, &conv.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	conv.CreatedAt = time.Unix(0, createdAt)
	conv.UpdatedAt = time.Unix(0, updatedAt)
	conv.Model = model.String

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, model, timestamp FROM messages WHERE conversation_id = ? ORDER BY id ASC",
		id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		msg := Message{ConversationID: id}
		var msgModel sql.NullString
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msgModel, &ts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		msg.Model = msgModel.String
		msg.Timestamp = time.Unix(0, ts)
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return conv, nil
}

// ListConversations returns conversation summaries most recently updated
// first. Ties break on ID descending so ordering stays stable.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at, model, message_count
		 FROM conversations
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

// SearchConversations runs a full-text search over message content and
// returns the distinct matching conversations, most recently updated first.
// The query is matched as a phrase so user input with FTS operator
// characters (dashes, quotes) is searched literally.
func (s *Store) SearchConversations(ctx context.Context, query string, limit int) ([]Conversation, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT c.id, c.title, c.created_at, c.updated_at, c.model, c.message_count
		 FROM conversations c
		 JOIN messages_fts fts ON c.id = fts.conversation_id
		 WHERE messages_fts MATCH ?
		 ORDER BY c.updated_at DESC, c.id DESC
		 LIMIT ?`, quoteFTS(query), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

// DeleteConversation removes a conversation, its messages, and their FTS
// rows. Deleting an unknown ID is a no-op.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// messages go via the FK cascade; the FTS table has no FK
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages_fts WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	s.log.Debug("conversation deleted", zap.Int64("id", id))
	return nil
}

// ClearAll deletes every conversation and message.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM messages",
		"DELETE FROM messages_fts",
		"DELETE FROM conversations",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	return tx.Commit()
}

// Stats returns conversation and message totals.
func (s *Store) Stats(ctx context.Context) (conversations, messages int, err error) {
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&conversations); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&messages); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return conversations, messages, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func scanConversations(rows *sql.Rows) ([]Conversation, error) {
	var out []Conversation
	for rows.Next() {
		var conv Conversation
		var createdAt, updatedAt int64
		var model sql.NullString
		if err := rows.Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt, &model, &conv.MessageCount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		conv.CreatedAt = time.Unix(0, createdAt)
		conv.UpdatedAt = time.Unix(0, updatedAt)
		conv.Model = model.String
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return out, nil
}

// quoteFTS wraps the query in double quotes so FTS5 treats it as a phrase
// instead of a query expression. Embedded quotes are doubled.
func quoteFTS(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}
