package models

// Event names emitted by the backend
const (
	EventChatMessageCreated       = "chat_message_created"
	EventChatMessageResponseChunk = "chat_message_response_chunk"
	EventChatMessageStatusChanged = "chat_message_status_changed"
	EventChatMessageRollback      = "chat_message_rollback"
)

// ChatMessageResponseChunkPayload carries one streamed piece of a model reply
type ChatMessageResponseChunkPayload struct {
	ChatID string `json:"chatId"`
	ID     string `json:"id"`
	Text   string `json:"text"`
}

// ChatMessageRollbackPayload names a message that was never committed
type ChatMessageRollbackPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// ChatMessageStatusChangedPayload reports a terminal status of a model reply
type ChatMessageStatusChangedPayload struct {
	ChatID    string            `json:"chatId"`
	MessageID string            `json:"messageId"`
	Status    ChatMessageStatus `json:"status"`
}
