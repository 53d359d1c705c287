package native

import (
	"context"
	"errors"
	"io"
	"strings"

	"AskKit/internal/backend"
	"AskKit/internal/models"
	"AskKit/internal/repo"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// CreateChatArgs carries the first message of a chat
type CreateChatArgs struct {
	Content string `json:"content"`
}

// GetChatArgs names a chat
type GetChatArgs struct {
	ID string `json:"id"`
}

// GetChatMessagesArgs names a chat
type GetChatMessagesArgs struct {
	ChatID string `json:"chatId"`
}

// SendChatMessageArgs is a user message for a chat
type SendChatMessageArgs struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

const untitledChat = "chat"

// CreateChat creates a chat titled with the slug of args.Content and
// returns its id
func (b *Backend) CreateChat(ctx context.Context, args CreateChatArgs) (string, error) {
	if strings.TrimSpace(args.Content) == "" {
		return "", invalidArgs("content is required")
	}
	title := slug.Make(args.Content)
	if title == "" {
		title = untitledChat
	}
	chat, err := b.chats.CreateChat(ctx, uuid.NewString(), title)
	if err != nil {
		return "", err
	}
	return chat.ID, nil
}

// GetChat returns the chat or nil
func (b *Backend) GetChat(ctx context.Context, args GetChatArgs) (*models.Chat, error) {
	return b.chats.GetChat(ctx, args.ID)
}

// GetChats lists chats, newest first
func (b *Backend) GetChats(ctx context.Context) ([]models.Chat, error) {
	return b.chats.GetChats(ctx)
}

// GetChatMessages lists the messages of a chat in creation order
func (b *Backend) GetChatMessages(ctx context.Context, args GetChatMessagesArgs) ([]models.ChatMessage, error) {
	if args.ChatID == "" {
		return nil, invalidArgs("chatId is required")
	}
	return b.chats.GetChatMessages(ctx, args.ChatID)
}

// SendChatMessage stores the user message and a pending model reply in one
// transaction, then streams the reply in the background. Progress is
// reported through chat_message_* events.
func (b *Backend) SendChatMessage(ctx context.Context, args SendChatMessageArgs) (any, error) {
	if args.ChatID == "" {
		return nil, invalidArgs("chatId is required")
	}
	if strings.TrimSpace(args.Content) == "" {
		return nil, invalidArgs("content is required")
	}

	uow, err := repo.Begin(ctx, b.db)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	agent, err := uow.Agents.GetCurrentAgent(ctx)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, models.ErrAgentRequired
	}

	// messages announced before commit; withdrawn if the transaction fails
	var announced []models.ChatMessage
	fail := func(err error) (any, error) {
		uow.Rollback()
		for _, m := range announced {
			b.emit(models.EventChatMessageRollback, models.ChatMessageRollbackPayload{ChatID: m.ChatID, MessageID: m.ID})
		}
		return nil, err
	}

	userMsg, err := uow.Chats.CreateChatMessage(ctx, repo.CreateChatMessage{
		ID:      uuid.NewString(),
		ChatID:  args.ChatID,
		Role:    models.RoleUser,
		Content: args.Content,
		Status:  models.StatusCompleted,
	})
	if err != nil {
		return nil, err
	}
	b.emit(models.EventChatMessageCreated, userMsg)
	announced = append(announced, userMsg)

	params, err := b.textGenParams(ctx, uow.Agents, *agent, args.ChatID, args.Content)
	if err != nil {
		return fail(err)
	}

	stream, err := b.streamer.StreamText(b.ctx, agent.Provider, params)
	if err != nil {
		return fail(err)
	}

	modelMsg, err := uow.Chats.CreateChatMessage(ctx, repo.CreateChatMessage{
		ID:     uuid.NewString(),
		ChatID: args.ChatID,
		Role:   models.RoleModel,
		Status: models.StatusPending,
	})
	if err != nil {
		stream.Close()
		return fail(err)
	}
	b.emit(models.EventChatMessageCreated, modelMsg)
	announced = append(announced, modelMsg)

	if err := uow.Commit(); err != nil {
		stream.Close()
		return fail(err)
	}

	b.wg.Add(1)
	go b.streamReply(stream, modelMsg)
	return nil, nil
}

// textGenParams builds the provider request for agent: its decrypted api
// key plus the committed chat history followed by content. Messages without
// content (replies that never produced text) are left out.
func (b *Backend) textGenParams(ctx context.Context, agents *repo.AgentRepo, agent models.Agent, chatID, content string) (backend.TextGenParams, error) {
	params := backend.TextGenParams{Model: agent.Model}

	cfg, err := agents.GetAgentConfig(ctx, agent.ID)
	if err != nil {
		return params, err
	}
	hasKey := cfg != nil && cfg.APIKey != nil && *cfg.APIKey != ""
	if hasKey {
		key, err := b.cipher.Decrypt(*cfg.APIKey)
		if err != nil {
			return params, err
		}
		params.APIKey = key
	} else if agent.Provider != models.ProviderOllama {
		return params, models.ErrAgentTextGenParamsRequired
	}

	history, err := b.chats.GetChatMessages(ctx, chatID)
	if err != nil {
		return params, err
	}
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		role := models.RoleUser
		if m.Role == models.RoleModel {
			role = models.RoleModel
		}
		params.Messages = append(params.Messages, backend.Message{Role: role, Text: m.Content})
	}
	params.Messages = append(params.Messages, backend.Message{Role: models.RoleUser, Text: content})
	return params, nil
}

func (b *Backend) streamReply(stream *backend.Stream, msg models.ChatMessage) {
	defer b.wg.Done()
	defer stream.Close()

	// writes must land even after Close cancels the stream
	ctx := context.Background()
	var content strings.Builder
	chunks := 0

	for {
		text, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			b.logger.Error("chat reply stream failed", "chat_id", msg.ChatID, "message_id", msg.ID, "chunks", chunks, "error", err)
			b.finishReply(ctx, msg, content.String(), models.StatusFailed)
			return
		}

		content.WriteString(text)
		chunks++
		b.emit(models.EventChatMessageResponseChunk, models.ChatMessageResponseChunkPayload{
			ChatID: msg.ChatID,
			ID:     msg.ID,
			Text:   text,
		})

		if chunks%b.persistEvery == 0 {
			partial := content.String()
			if err := b.chats.UpdateChatMessage(ctx, msg.ID, repo.UpdateChatMessage{Content: &partial}); err != nil {
				b.logger.Error("failed to persist partial reply", "message_id", msg.ID, "error", err)
			}
		}
	}

	b.logger.Debug("chat reply completed", "chat_id", msg.ChatID, "message_id", msg.ID, "chunks", chunks)
	b.finishReply(ctx, msg, content.String(), models.StatusCompleted)
}

func (b *Backend) finishReply(ctx context.Context, msg models.ChatMessage, content string, status models.ChatMessageStatus) {
	if err := b.chats.UpdateChatMessage(ctx, msg.ID, repo.UpdateChatMessage{Content: &content, Status: &status}); err != nil {
		b.logger.Error("failed to record reply status", "message_id", msg.ID, "status", status, "error", err)
	}
	b.emit(models.EventChatMessageStatusChanged, models.ChatMessageStatusChangedPayload{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		Status:    status,
	})
}
