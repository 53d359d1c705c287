package queries

import (
	"testing"
	"time"

	"AskKit/internal/app"
	"AskKit/internal/component"
	"AskKit/internal/models"
	"AskKit/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

func TestBindChatEvents(t *testing.T) {
	rt, bus := newRuntime(newFakeInvoker())
	root := component.NewRoot("layout")
	app.SetRuntime(root, rt)
	chat := root.Child("chat")
	BindChatEvents(chat, rt)
	root.Mount()

	rt.Session.SwitchChat("c1")
	rt.Session.SetMessages([]session.ChatMessageView{})
	rt.Query.SetQueryData(ChatMessagesKey("c1"), func(any) any { return []models.ChatMessage{} })

	user := models.ChatMessage{ID: "u1", ChatID: "c1", Role: models.RoleUser, Content: "hi", Status: models.StatusCompleted}
	reply := models.ChatMessage{ID: "r1", ChatID: "c1", Role: models.RoleModel, Status: models.StatusPending}
	other := models.ChatMessage{ID: "x1", ChatID: "c2", Role: models.RoleUser, Content: "elsewhere"}

	require.NoError(t, bus.Emit(models.EventChatMessageCreated, user))
	require.NoError(t, bus.Emit(models.EventChatMessageCreated, reply))
	require.NoError(t, bus.Emit(models.EventChatMessageCreated, other))
	require.NoError(t, bus.Emit(models.EventChatMessageResponseChunk, models.ChatMessageResponseChunkPayload{ChatID: "c1", ID: "r1", Text: "Hel"}))
	require.NoError(t, bus.Emit(models.EventChatMessageResponseChunk, models.ChatMessageResponseChunkPayload{ChatID: "c1", ID: "r1", Text: "lo"}))
	require.NoError(t, bus.Emit(models.EventChatMessageStatusChanged, models.ChatMessageStatusChangedPayload{ChatID: "c1", MessageID: "r1", Status: models.StatusCompleted}))

	msgs, ok := rt.Session.Messages()
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, "<p>Hello</p>\n", msgs[1].HTML)
	assert.Equal(t, models.StatusCompleted, msgs[1].Status)

	cached, ok := rt.Query.GetQueryData(ChatMessagesKey("c1"))
	require.True(t, ok)
	require.Len(t, cached, 2)
	assert.Equal(t, "Hello", cached.([]models.ChatMessage)[1].Content)

	_, ok = rt.Query.GetQueryData(ChatMessagesKey("c2"))
	assert.False(t, ok)

	require.NoError(t, bus.Emit(models.EventChatMessageRollback, models.ChatMessageRollbackPayload{ChatID: "c1", MessageID: "u1"}))
	msgs, _ = rt.Session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "r1", msgs[0].ID)

	chat.Destroy()
	require.NoError(t, bus.Emit(models.EventChatMessageRollback, models.ChatMessageRollbackPayload{ChatID: "c1", MessageID: "r1"}))
	msgs, _ = rt.Session.Messages()
	assert.Len(t, msgs, 1)
}
