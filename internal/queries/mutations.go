package queries

import (
	"context"
	"fmt"
	"strings"

	"AskKit/internal/app"
	"AskKit/internal/ipc"
	"AskKit/internal/models"
	"AskKit/internal/query"
)

// invalidate refreshes keys after a mutation. Refetch failures are logged:
// the mutation itself already succeeded and the failures are recorded in
// the query entries.
func invalidate(ctx context.Context, rt *app.Runtime, keys ...query.Key) {
	for _, k := range keys {
		if err := rt.Query.Invalidate(ctx, k); err != nil && rt.Logger != nil {
			rt.Logger.Warn("failed to refresh query", "key", k.String(), "error", err)
		}
	}
}

// UpdateCurrentAgent makes agentID the current agent
func UpdateCurrentAgent(ctx context.Context, rt *app.Runtime, agentID string) error {
	if _, err := rt.Invoker.Invoke(ctx, CmdUpdateCurrentAgent, map[string]string{"agentId": agentID}); err != nil {
		return fmt.Errorf("failed to update current agent: %w", err)
	}
	invalidate(ctx, rt, CurrentAgentKey(), query.NewKey(TagAgentConfig))
	return nil
}

type upsertAgentConfigArgs struct {
	ID     string                   `json:"id"`
	Upsert upsertAgentConfigPayload `json:"upsert"`
}

type upsertAgentConfigPayload struct {
	APIKey *string `json:"api_key"`
}

// UpsertAgentConfig stores apiKey for agentID. The backend encrypts it; a
// blank key clears it. It returns the number of rows written.
func UpsertAgentConfig(ctx context.Context, rt *app.Runtime, agentID, apiKey string) (int64, error) {
	args := upsertAgentConfigArgs{ID: agentID, Upsert: upsertAgentConfigPayload{APIKey: &apiKey}}
	n, err := ipc.Invoke[int64](ctx, rt.Invoker, CmdUpsertAgentConfig, args)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert agent config: %w", err)
	}
	invalidate(ctx, rt, AgentConfigKey(agentID))
	return n, nil
}

// DecryptAgentCiphertext asks the backend to decrypt a stored api key
func DecryptAgentCiphertext(ctx context.Context, inv ipc.Invoker, ciphertext string) (string, error) {
	plain, err := ipc.Invoke[string](ctx, inv, CmdDecryptAgentCiphertext, map[string]string{"ciphertext": ciphertext})
	if err != nil {
		return "", fmt.Errorf("failed to decrypt agent ciphertext: %w", err)
	}
	return plain, nil
}

// CreateChat creates a chat titled after content and returns its id
func CreateChat(ctx context.Context, rt *app.Runtime, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", &models.AppError{Kind: models.KindInvalidArgs, Message: "content is empty"}
	}
	id, err := ipc.Invoke[string](ctx, rt.Invoker, CmdCreateChat, map[string]string{"content": content})
	if err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}
	invalidate(ctx, rt, ChatsKey())
	return id, nil
}

// GetChat fetches one chat; nil when it does not exist
func GetChat(ctx context.Context, inv ipc.Invoker, id string) (*models.Chat, error) {
	chat, err := ipc.Invoke[*models.Chat](ctx, inv, CmdGetChat, map[string]string{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// SendChatMessage sends content to chatID. The reply arrives through
// events; the chat's message list is refreshed once the backend committed
// the new messages.
func SendChatMessage(ctx context.Context, rt *app.Runtime, chatID, content string) error {
	if strings.TrimSpace(content) == "" {
		return &models.AppError{Kind: models.KindInvalidArgs, Message: "content is empty"}
	}
	args := map[string]string{"chatId": chatID, "content": content}
	if _, err := rt.Invoker.Invoke(ctx, CmdSendChatMessage, args); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	invalidate(ctx, rt, ChatMessagesKey(chatID))
	return nil
}
