// Package queries binds backend commands to cached queries that components
// observe, and to mutations that keep those queries current.
package queries

import (
	"AskKit/internal/models"
	"AskKit/internal/query"
)

// Query tags
const (
	TagCurrentAgent = "current-agent"
	TagAgents       = "agents"
	TagAgentConfig  = "agent-config"
	TagChats        = "chats"
	TagChatMessages = "chat-messages"
)

// Backend commands
const (
	CmdGetCurrentAgent        = models.CmdGetCurrentAgent
	CmdGetAgents              = models.CmdGetAgents
	CmdUpdateCurrentAgent     = models.CmdUpdateCurrentAgent
	CmdGetAgentConfig         = models.CmdGetAgentConfig
	CmdUpsertAgentConfig      = models.CmdUpsertAgentConfig
	CmdDecryptAgentCiphertext = models.CmdDecryptAgentCiphertext
	CmdCreateChat             = models.CmdCreateChat
	CmdGetChat                = models.CmdGetChat
	CmdGetChats               = models.CmdGetChats
	CmdGetChatMessages        = models.CmdGetChatMessages
	CmdSendChatMessage        = models.CmdSendChatMessage
)

// CurrentAgentKey is ['current-agent']
func CurrentAgentKey() query.Key { return query.NewKey(TagCurrentAgent) }

// AgentsKey is ['agents']
func AgentsKey() query.Key { return query.NewKey(TagAgents) }

// AgentConfigKey is ['agent-config', {id}]
func AgentConfigKey(agentID string) query.Key {
	return query.NewKey(TagAgentConfig, map[string]any{"id": agentID})
}

// ChatsKey is ['chats']
func ChatsKey() query.Key { return query.NewKey(TagChats) }

// ChatMessagesKey is ['chat-messages', {chatId}]
func ChatMessagesKey(chatID string) query.Key {
	return query.NewKey(TagChatMessages, map[string]any{"chatId": chatID})
}
