package models

// Commands served by the native backend
const (
	CmdGetCurrentAgent        = "get_current_agent"
	CmdGetAgents              = "get_agents"
	CmdUpdateCurrentAgent     = "update_current_agent"
	CmdGetAgentConfig         = "get_agent_config"
	CmdUpsertAgentConfig      = "upsert_agent_config"
	CmdDecryptAgentCiphertext = "decrypt_agent_ciphertext"
	CmdCreateChat             = "create_chat"
	CmdGetChat                = "get_chat"
	CmdGetChats               = "get_chats"
	CmdGetChatMessages        = "get_chat_messages"
	CmdSendChatMessage        = "send_chat_message"
)
