package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"AskKit/internal/models"

	"github.com/google/uuid"
)

// CreateChatMessage describes a new message. A blank ID gets a fresh uuid.
type CreateChatMessage struct {
	ID      string
	ChatID  string
	Role    string
	Content string
	Status  models.ChatMessageStatus
}

// UpdateChatMessage changes the non-nil fields of a message
type UpdateChatMessage struct {
	Content *string
	Status  *models.ChatMessageStatus
}

// ChatRepo reads and writes chats and their messages
type ChatRepo struct {
	db DBTX
}

// NewChatRepo creates a chat repository over db
func NewChatRepo(db DBTX) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat inserts a chat. A blank id gets a fresh uuid.
func (r *ChatRepo) CreateChat(ctx context.Context, id, title string) (models.Chat, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := nowMillis()
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO chats (id, title, created_at) VALUES (?, ?, ?)", id, title, now); err != nil {
		return models.Chat{}, sqlError("create chat", err)
	}
	return models.Chat{ID: id, Title: title, CreatedAt: now}, nil
}

// GetChat returns the chat with id or nil
func (r *ChatRepo) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	var c models.Chat
	err := r.db.QueryRowContext(ctx, "SELECT id, title, created_at FROM chats WHERE id = ?", id).
		Scan(&c.ID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlError("get chat", err)
	}
	return &c, nil
}

// GetChats returns all chats, newest first
func (r *ChatRepo) GetChats(ctx context.Context) ([]models.Chat, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, title, created_at FROM chats ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, sqlError("query chats", err)
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, sqlError("scan chat", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError("iterate chats", err)
	}
	return chats, nil
}

// GetChatMessages returns the messages of chatID in creation order
func (r *ChatRepo) GetChatMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, status, created_at FROM chat_messages
		WHERE chat_id = ? ORDER BY created_at ASC, rowid ASC`, chatID)
	if err != nil {
		return nil, sqlError("query chat messages", err)
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		var status string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &status, &m.CreatedAt); err != nil {
			return nil, sqlError("scan chat message", err)
		}
		m.Status = models.ChatMessageStatus(status)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError("iterate chat messages", err)
	}
	return messages, nil
}

// CreateChatMessage inserts a message
func (r *ChatRepo) CreateChatMessage(ctx context.Context, in CreateChatMessage) (models.ChatMessage, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	now := nowMillis()
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_messages (id, chat_id, role, content, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		in.ID, in.ChatID, in.Role, in.Content, string(in.Status), now); err != nil {
		return models.ChatMessage{}, sqlError("create chat message", err)
	}
	return models.ChatMessage{
		ID:        in.ID,
		ChatID:    in.ChatID,
		Role:      in.Role,
		Content:   in.Content,
		Status:    in.Status,
		CreatedAt: now,
	}, nil
}

// UpdateChatMessage applies the set fields of in to message id. Nothing is
// written when no field is set.
func (r *ChatRepo) UpdateChatMessage(ctx context.Context, id string, in UpdateChatMessage) error {
	var sets []string
	var args []any
	if in.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *in.Content)
	}
	if in.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*in.Status))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx,
		"UPDATE chat_messages SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return sqlError("update chat message", err)
	}
	return nil
}
