package queries

import (
	"context"

	"AskKit/internal/ipc"
	"AskKit/internal/models"
)

// FetchCurrentAgent returns the fetcher behind ['current-agent']
func FetchCurrentAgent(inv ipc.Invoker) func(context.Context) (*models.Agent, error) {
	return func(ctx context.Context) (*models.Agent, error) {
		return ipc.Invoke[*models.Agent](ctx, inv, CmdGetCurrentAgent, nil)
	}
}

// FetchAgents returns the fetcher behind ['agents']
func FetchAgents(inv ipc.Invoker) func(context.Context) ([]models.Agent, error) {
	return func(ctx context.Context) ([]models.Agent, error) {
		return ipc.Invoke[[]models.Agent](ctx, inv, CmdGetAgents, nil)
	}
}

// FetchAgentConfig returns the fetcher behind ['agent-config', {id}]
func FetchAgentConfig(inv ipc.Invoker, agentID string) func(context.Context) (*models.AgentConfig, error) {
	return func(ctx context.Context) (*models.AgentConfig, error) {
		return ipc.Invoke[*models.AgentConfig](ctx, inv, CmdGetAgentConfig, map[string]string{"id": agentID})
	}
}

// FetchChats returns the fetcher behind ['chats']
func FetchChats(inv ipc.Invoker) func(context.Context) ([]models.Chat, error) {
	return func(ctx context.Context) ([]models.Chat, error) {
		return ipc.Invoke[[]models.Chat](ctx, inv, CmdGetChats, nil)
	}
}

// FetchChatMessages returns the fetcher behind ['chat-messages', {chatId}]
func FetchChatMessages(inv ipc.Invoker, chatID string) func(context.Context) ([]models.ChatMessage, error) {
	return func(ctx context.Context) ([]models.ChatMessage, error) {
		return ipc.Invoke[[]models.ChatMessage](ctx, inv, CmdGetChatMessages, map[string]string{"chatId": chatID})
	}
}

// Erase adapts a typed fetcher for query.Client.Fetch and Prefetch
func Erase[T any](fn func(context.Context) (T, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}
