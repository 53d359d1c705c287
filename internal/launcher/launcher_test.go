package launcher

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"AskKit/internal/app"
	"AskKit/internal/models"
	"AskKit/internal/queries"
	"AskKit/internal/query"
	"AskKit/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invocation struct {
	cmd  string
	args string
}

type recordingInvoker struct {
	mu    sync.Mutex
	calls []invocation
	err   error
}

func (r *recordingInvoker) Invoke(_ context.Context, cmd string, args any) (json.RawMessage, error) {
	b, _ := json.Marshal(args)
	r.mu.Lock()
	r.calls = append(r.calls, invocation{cmd: cmd, args: string(b)})
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(`[{"id":"m1","chatId":"abc","role":"user","content":"hi","status":"completed","createdAt":1}]`), nil
}

func TestLoadChatsPage_NoActiveChat(t *testing.T) {
	tests := []struct {
		name  string
		store func() LocalStorage
	}{
		{name: "unset", store: func() LocalStorage { return NewMemoryStorage() }},
		{name: "blank", store: func() LocalStorage {
			s := NewMemoryStorage()
			_ = s.SetItem(ActiveChatIDKey, "  ")
			return s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &recordingInvoker{}
			layout := LoadLayout(LayoutOptions{})

			chatID := LoadChatsPage(context.Background(), layout.Query, inv, tt.store())

			assert.Equal(t, "", chatID)
			assert.Empty(t, inv.calls)
		})
	}
}

func TestLoadChatsPage_PrefetchesActiveChat(t *testing.T) {
	inv := &recordingInvoker{}
	store := NewMemoryStorage()
	require.NoError(t, store.SetItem(ActiveChatIDKey, "abc"))
	layout := LoadLayout(LayoutOptions{})

	chatID := LoadChatsPage(context.Background(), layout.Query, inv, store)

	assert.Equal(t, "abc", chatID)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, queries.CmdGetChatMessages, inv.calls[0].cmd)
	assert.JSONEq(t, `{"chatId":"abc"}`, inv.calls[0].args)

	data, ok := layout.Query.GetQueryData(query.NewKey("chat-messages", map[string]any{"chatId": "abc"}))
	require.True(t, ok)
	msgs := data.([]models.ChatMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)

	// a second load within the stale time reuses the cache
	LoadChatsPage(context.Background(), layout.Query, inv, store)
	assert.Len(t, inv.calls, 1)
}

func TestLoadChatsPage_FailureLandsInCache(t *testing.T) {
	inv := &recordingInvoker{err: &models.AppError{Kind: models.KindSQL, Message: "no such table"}}
	store := NewMemoryStorage()
	require.NoError(t, store.SetItem(ActiveChatIDKey, "abc"))
	layout := LoadLayout(LayoutOptions{})

	assert.Equal(t, "abc", LoadChatsPage(context.Background(), layout.Query, inv, store))

	st, ok := layout.Query.GetState(queries.ChatMessagesKey("abc"))
	require.True(t, ok)
	assert.Equal(t, query.StatusError, st.Status)
}

func TestDiskStorage_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s := NewDiskStorage(dir)
	_, ok := s.GetItem(ActiveChatIDKey)
	assert.False(t, ok)
	require.NoError(t, s.SetItem(ActiveChatIDKey, "abc"))

	reopened := NewDiskStorage(dir)
	v, ok := reopened.GetItem(ActiveChatIDKey)
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, reopened.RemoveItem(ActiveChatIDKey))
	require.NoError(t, reopened.RemoveItem(ActiveChatIDKey))
	_, ok = NewDiskStorage(dir).GetItem(ActiveChatIDKey)
	assert.False(t, ok)
}

func TestSelectChat(t *testing.T) {
	rt := &app.Runtime{Query: query.NewClient(), Session: session.New()}
	l := app.NewLauncher("")
	store := NewMemoryStorage()

	rt.Session.SwitchChat("old")
	rt.Session.SetMessages([]session.ChatMessageView{{ChatMessage: models.ChatMessage{ID: "m", ChatID: "old"}}})

	require.NoError(t, SelectChat(rt, l, store, "abc"))
	id, ok := ActiveChatID(store)
	require.True(t, ok)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", l.ChatID())
	_, loaded := rt.Session.Messages()
	assert.False(t, loaded)

	require.NoError(t, SelectChat(rt, l, store, ""))
	_, ok = ActiveChatID(store)
	assert.False(t, ok)
	_, ok = rt.Session.ChatID()
	assert.False(t, ok)
	assert.Equal(t, "", l.ChatID())
}

func TestSelectChat_ClearIsOneWrite(t *testing.T) {
	rt := &app.Runtime{Query: query.NewClient(), Session: session.New()}
	store := NewMemoryStorage()
	rt.Session.SwitchChat("abc")
	rt.Session.SetMessages([]session.ChatMessageView{{ChatMessage: models.ChatMessage{ID: "m", ChatID: "abc"}}})

	var seen []session.Snapshot
	unsub := rt.Session.Subscribe(func(s session.Snapshot) { seen = append(seen, s) })
	defer unsub()

	require.NoError(t, SelectChat(rt, nil, store, ""))

	require.Len(t, seen, 1)
	assert.Empty(t, seen[0].ChatID)
	assert.Nil(t, seen[0].Messages)
}

func TestLoadLayout_Defaults(t *testing.T) {
	layout := LoadLayout(LayoutOptions{})
	assert.NotNil(t, layout.Query)
	assert.Equal(t, "dark", layout.Theme)
}
