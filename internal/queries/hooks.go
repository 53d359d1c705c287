package queries

import (
	"context"
	"fmt"

	"AskKit/internal/app"
	"AskKit/internal/component"
	"AskKit/internal/models"
	"AskKit/internal/query"
)

func runtimeOf(n *component.Node) (*app.Runtime, error) {
	rt, ok := app.UseRuntime(n)
	if !ok {
		path := "<nil>"
		if n != nil {
			path = n.Path()
		}
		return nil, &component.MissingContextError{Key: "runtime", Path: path}
	}
	return rt, nil
}

// observe creates an observer that follows n's lifecycle: it starts when n
// mounts and stops when n is destroyed.
func observe[T any](n *component.Node, rt *app.Runtime, opts query.Options[T]) *query.Observer[T] {
	o := query.NewObserver(context.Background(), rt.Query, opts)
	n.OnMount(func() func() {
		o.Start()
		return o.Stop
	})
	return o
}

// UseCurrentAgent observes ['current-agent']
func UseCurrentAgent(n *component.Node) (*query.Observer[*models.Agent], error) {
	rt, err := runtimeOf(n)
	if err != nil {
		return nil, fmt.Errorf("failed to use current agent: %w", err)
	}
	return observe(n, rt, query.Options[*models.Agent]{
		Key:     CurrentAgentKey(),
		Fn:      FetchCurrentAgent(rt.Invoker),
		Enabled: true,
	}), nil
}

// UseAgents observes ['agents']
func UseAgents(n *component.Node) (*query.Observer[[]models.Agent], error) {
	rt, err := runtimeOf(n)
	if err != nil {
		return nil, fmt.Errorf("failed to use agents: %w", err)
	}
	return observe(n, rt, query.Options[[]models.Agent]{
		Key:     AgentsKey(),
		Fn:      FetchAgents(rt.Invoker),
		Enabled: true,
	}), nil
}

// agentConfigOptions is disabled until an agent is known
func agentConfigOptions(rt *app.Runtime, agent *models.Agent) query.Options[*models.AgentConfig] {
	id := ""
	if agent != nil {
		id = agent.ID
	}
	return query.Options[*models.AgentConfig]{
		Key:     AgentConfigKey(id),
		Fn:      FetchAgentConfig(rt.Invoker, id),
		Enabled: agent != nil,
	}
}

// UseCurrentAgentConfig observes ['agent-config', {id}] for the current agent.
// It fetches nothing until the current agent query has resolved to an agent,
// and follows the current agent when it changes.
func UseCurrentAgentConfig(n *component.Node) (*query.Observer[*models.AgentConfig], error) {
	rt, err := runtimeOf(n)
	if err != nil {
		return nil, fmt.Errorf("failed to use current agent config: %w", err)
	}
	agent, err := UseCurrentAgent(n)
	if err != nil {
		return nil, err
	}

	config := query.NewObserver(context.Background(), rt.Query, agentConfigOptions(rt, nil))
	n.OnMount(func() func() {
		follow := func(r query.Result[*models.Agent]) {
			var current *models.Agent
			if r.Success() {
				current = r.Data
			}
			next := agentConfigOptions(rt, current)
			if next.Key.Hash() != config.Options().Key.Hash() || next.Enabled != config.Options().Enabled {
				config.SetOptions(next)
			}
		}
		unsub := agent.Subscribe(follow)
		config.Start()
		follow(agent.Result())
		return func() {
			unsub()
			config.Stop()
		}
	})
	return config, nil
}

// UseChats observes ['chats']
func UseChats(n *component.Node) (*query.Observer[[]models.Chat], error) {
	rt, err := runtimeOf(n)
	if err != nil {
		return nil, fmt.Errorf("failed to use chats: %w", err)
	}
	return observe(n, rt, query.Options[[]models.Chat]{
		Key:     ChatsKey(),
		Fn:      FetchChats(rt.Invoker),
		Enabled: true,
	}), nil
}

// UseChatMessages observes ['chat-messages', {chatId}]. An empty chatID
// disables the query.
func UseChatMessages(n *component.Node, chatID string) (*query.Observer[[]models.ChatMessage], error) {
	rt, err := runtimeOf(n)
	if err != nil {
		return nil, fmt.Errorf("failed to use chat messages: %w", err)
	}
	return observe(n, rt, ChatMessagesOptions(rt, chatID)), nil
}

// ChatMessagesOptions builds the options UseChatMessages starts with; pass
// them to SetOptions to move an observer to another chat.
func ChatMessagesOptions(rt *app.Runtime, chatID string) query.Options[[]models.ChatMessage] {
	return query.Options[[]models.ChatMessage]{
		Key:     ChatMessagesKey(chatID),
		Fn:      FetchChatMessages(rt.Invoker, chatID),
		Enabled: chatID != "",
	}
}
