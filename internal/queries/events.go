package queries

import (
	"slices"

	"AskKit/internal/app"
	"AskKit/internal/component"
	"AskKit/internal/models"
	"AskKit/internal/session"
)

// BindChatEvents keeps the ['chat-messages', {chatId}] cache entries and the
// session store in step with backend chat events while n is mounted.
func BindChatEvents(n *component.Node, rt *app.Runtime) {
	updateCache := func(chatID string, fn func([]models.ChatMessage) []models.ChatMessage) {
		key := ChatMessagesKey(chatID)
		if _, ok := rt.Query.GetQueryData(key); !ok {
			return
		}
		rt.Query.SetQueryData(key, func(old any) any {
			msgs, _ := old.([]models.ChatMessage)
			return fn(slices.Clone(msgs))
		})
	}

	app.OnEvent(n, rt.Events, models.EventChatMessageCreated, func(msg models.ChatMessage) {
		updateCache(msg.ChatID, func(msgs []models.ChatMessage) []models.ChatMessage {
			if slices.ContainsFunc(msgs, func(m models.ChatMessage) bool { return m.ID == msg.ID }) {
				return msgs
			}
			return append(msgs, msg)
		})
		rt.Session.AppendMessage(session.NewChatMessageView(msg))
	})

	app.OnEvent(n, rt.Events, models.EventChatMessageResponseChunk, func(p models.ChatMessageResponseChunkPayload) {
		updateCache(p.ChatID, func(msgs []models.ChatMessage) []models.ChatMessage {
			for i := range msgs {
				if msgs[i].ID == p.ID {
					msgs[i].Content += p.Text
				}
			}
			return msgs
		})
		rt.Session.UpdateMessage(p.ChatID, p.ID, func(v session.ChatMessageView) session.ChatMessageView {
			v.Content += p.Text
			return session.NewChatMessageView(v.ChatMessage)
		})
	})

	app.OnEvent(n, rt.Events, models.EventChatMessageStatusChanged, func(p models.ChatMessageStatusChangedPayload) {
		updateCache(p.ChatID, func(msgs []models.ChatMessage) []models.ChatMessage {
			for i := range msgs {
				if msgs[i].ID == p.MessageID {
					msgs[i].Status = p.Status
				}
			}
			return msgs
		})
		rt.Session.UpdateMessage(p.ChatID, p.MessageID, func(v session.ChatMessageView) session.ChatMessageView {
			v.Status = p.Status
			return v
		})
	})

	app.OnEvent(n, rt.Events, models.EventChatMessageRollback, func(p models.ChatMessageRollbackPayload) {
		updateCache(p.ChatID, func(msgs []models.ChatMessage) []models.ChatMessage {
			return slices.DeleteFunc(msgs, func(m models.ChatMessage) bool { return m.ID == p.MessageID })
		})
		rt.Session.RemoveMessage(p.ChatID, p.MessageID)
	})
}
