package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"AskKit/internal/app"
	"AskKit/internal/ipc"
	"AskKit/internal/launcher"
	"AskKit/internal/models"
	"AskKit/internal/query"
	"AskKit/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// fakeBackend answers launcher commands from memory through a router
type fakeBackend struct {
	mu       sync.Mutex
	router   *ipc.Router
	agents   []models.Agent
	current  string
	keys     map[string]string
	chats    []models.Chat
	messages map[string][]models.ChatMessage
	calls    map[string]int
	seq      int
}

func newFakeBackend() *fakeBackend {
	f := &fakeBackend{
		router: ipc.NewRouter(ipc.NewBus()),
		agents: []models.Agent{
			{ID: "a1", Provider: models.ProviderGemini, Model: "gemini-2.5-pro"},
			{ID: "a2", Provider: models.ProviderOllama, Model: "llama3"},
		},
		current:  "a1",
		keys:     make(map[string]string),
		messages: make(map[string][]models.ChatMessage),
		calls:    make(map[string]int),
	}
	f.handle(models.CmdGetAgents, func(json.RawMessage) (any, error) {
		return f.agents, nil
	})
	f.handle(models.CmdGetCurrentAgent, func(json.RawMessage) (any, error) {
		for _, a := range f.agents {
			if a.ID == f.current {
				return &a, nil
			}
		}
		return nil, nil
	})
	f.handle(models.CmdUpdateCurrentAgent, func(raw json.RawMessage) (any, error) {
		var args struct {
			AgentID string `json:"agentId"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		f.current = args.AgentID
		return nil, nil
	})
	f.handle(models.CmdGetAgentConfig, func(raw json.RawMessage) (any, error) {
		var args struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		key, ok := f.keys[args.ID]
		if !ok {
			return nil, nil
		}
		return &models.AgentConfig{AgentID: args.ID, APIKey: &key}, nil
	})
	f.handle(models.CmdUpsertAgentConfig, func(raw json.RawMessage) (any, error) {
		var args struct {
			ID     string `json:"id"`
			Upsert struct {
				APIKey *string `json:"api_key"`
			} `json:"upsert"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		if args.Upsert.APIKey != nil {
			f.keys[args.ID] = "enc:" + *args.Upsert.APIKey
		}
		return int64(1), nil
	})
	f.handle(models.CmdDecryptAgentCiphertext, func(raw json.RawMessage) (any, error) {
		var args struct {
			Ciphertext string `json:"ciphertext"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		return strings.TrimPrefix(args.Ciphertext, "enc:"), nil
	})
	f.handle(models.CmdGetChats, func(json.RawMessage) (any, error) {
		return f.chats, nil
	})
	f.handle(models.CmdGetChatMessages, func(raw json.RawMessage) (any, error) {
		var args struct {
			ChatID string `json:"chatId"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		msgs := f.messages[args.ChatID]
		if msgs == nil {
			msgs = []models.ChatMessage{}
		}
		return msgs, nil
	})
	f.handle(models.CmdCreateChat, func(raw json.RawMessage) (any, error) {
		var args struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		f.seq++
		id := fmt.Sprintf("chat-%d", f.seq)
		f.chats = append([]models.Chat{{ID: id, Title: args.Content}}, f.chats...)
		return id, nil
	})
	f.handle(models.CmdSendChatMessage, func(raw json.RawMessage) (any, error) {
		var args struct {
			ChatID  string `json:"chatId"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		user := f.addMessage(args.ChatID, models.RoleUser, args.Content)
		reply := f.addMessage(args.ChatID, models.RoleModel, "pong")
		_ = f.router.Bus().Emit(models.EventChatMessageCreated, user)
		_ = f.router.Bus().Emit(models.EventChatMessageCreated, reply)
		return nil, nil
	})
	return f
}

func (f *fakeBackend) handle(cmd string, fn func(json.RawMessage) (any, error)) {
	f.router.Handle(cmd, func(_ context.Context, args json.RawMessage) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls[cmd]++
		return fn(args)
	})
}

// addMessage must be called with mu held
func (f *fakeBackend) addMessage(chatID, role, content string) models.ChatMessage {
	f.seq++
	msg := models.ChatMessage{
		ID:        fmt.Sprintf("msg-%d", f.seq),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Status:    models.StatusCompleted,
		CreatedAt: int64(f.seq),
	}
	f.messages[chatID] = append(f.messages[chatID], msg)
	return msg
}

func (f *fakeBackend) seedChat(id, title string, contents ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, models.Chat{ID: id, Title: title})
	for i, c := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleModel
		}
		f.addMessage(id, role, c)
	}
}

func (f *fakeBackend) callCount(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[cmd]
}

func newTestModel(t *testing.T, f *fakeBackend, storage launcher.LocalStorage) *Model {
	t.Helper()
	rt := &app.Runtime{
		Query:   query.NewClient(),
		Session: session.New(),
		Invoker: f.router,
		Events:  f.router,
	}
	m, err := New(context.Background(), Options{Runtime: rt, Storage: storage, Theme: "dark"})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	require.Eventually(t, func() bool {
		return m.chats.Result().Success() && m.agents.Result().Success() && m.agent.Result().Success()
	}, waitFor, tick)
	m.sync()
	return m
}

// run executes cmd and feeds its message back into the model
func run(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	_, next := m.Update(cmd())
	return next
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func TestNew_OpensStoredChat(t *testing.T) {
	f := newFakeBackend()
	f.seedChat("c1", "greetings", "hello there", "general kenobi")
	storage := launcher.NewMemoryStorage()
	require.NoError(t, storage.SetItem(launcher.ActiveChatIDKey, "c1"))

	m := newTestModel(t, f, storage)
	m.chatView.messages.Wait()

	assert.Equal(t, 1, f.callCount(models.CmdGetChatMessages))
	id, ok := m.rt.Session.ChatID()
	require.True(t, ok)
	assert.Equal(t, "c1", id)

	msgs, loaded := m.rt.Session.Messages()
	require.True(t, loaded)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello there", msgs[0].Content)

	view := m.View()
	assert.Contains(t, view, "greetings")
	assert.Contains(t, view, "general kenobi")
}

func TestNew_NoStoredChat(t *testing.T) {
	f := newFakeBackend()
	m := newTestModel(t, f, launcher.NewMemoryStorage())

	assert.Nil(t, m.chatView)
	assert.Equal(t, 0, f.callCount(models.CmdGetChatMessages))
	assert.Contains(t, m.View(), "Type a message to start a new chat.")
}

func TestSubmit_CreatesChatThenSends(t *testing.T) {
	f := newFakeBackend()
	storage := launcher.NewMemoryStorage()
	m := newTestModel(t, f, storage)

	m.input.SetValue("ping")
	send := run(t, m, m.handleKey(key(tea.KeyEnter)))
	assert.True(t, m.sending)
	assert.Empty(t, m.input.Value())

	run(t, m, send)
	assert.False(t, m.sending)
	require.NoError(t, m.err)

	assert.Equal(t, 1, f.callCount(models.CmdCreateChat))
	assert.Equal(t, 1, f.callCount(models.CmdSendChatMessage))

	id, ok := m.rt.Session.ChatID()
	require.True(t, ok)
	assert.Equal(t, "chat-1", id)
	stored, _ := storage.GetItem(launcher.ActiveChatIDKey)
	assert.Equal(t, "chat-1", stored)

	require.Eventually(t, func() bool {
		msgs, _ := m.rt.Session.Messages()
		return len(msgs) == 2
	}, waitFor, tick)
	m.sync()
	assert.Contains(t, m.View(), "pong")
}

func TestSubmit_IgnoresBlankInput(t *testing.T) {
	f := newFakeBackend()
	m := newTestModel(t, f, launcher.NewMemoryStorage())

	m.input.SetValue("   ")
	assert.Nil(t, m.handleKey(key(tea.KeyEnter)))
	assert.False(t, m.sending)
	assert.Equal(t, 0, f.callCount(models.CmdCreateChat))
}

func TestMoveChat_SwapsChatView(t *testing.T) {
	f := newFakeBackend()
	f.seedChat("c1", "first", "one")
	f.seedChat("c2", "second", "two")
	storage := launcher.NewMemoryStorage()
	require.NoError(t, storage.SetItem(launcher.ActiveChatIDKey, "c1"))

	m := newTestModel(t, f, storage)
	old := m.chatView
	require.NotNil(t, old)
	assert.Equal(t, 0, m.chatCursor)

	assert.Nil(t, m.handleKey(key(tea.KeyCtrlN)))

	assert.False(t, old.node.Mounted())
	require.NotNil(t, m.chatView)
	assert.Equal(t, "c2", m.chatView.chatID)
	assert.Equal(t, 1, m.chatCursor)
	assert.Contains(t, m.offsets, "c1")

	id, _ := m.rt.Session.ChatID()
	assert.Equal(t, "c2", id)
	assert.Equal(t, "c2", m.launcher.ChatID())
	stored, _ := storage.GetItem(launcher.ActiveChatIDKey)
	assert.Equal(t, "c2", stored)

	anchor, ok := m.rt.Session.ScrollAnchor()
	require.True(t, ok)
	assert.Same(t, m.chatView.anchor, anchor.(*viewportAnchor))

	require.Eventually(t, func() bool {
		msgs, _ := m.rt.Session.Messages()
		return len(msgs) == 1 && msgs[0].Content == "two"
	}, waitFor, tick)

	assert.Nil(t, m.handleKey(key(tea.KeyCtrlO)))
	_, ok = m.rt.Session.ChatID()
	assert.False(t, ok)
	assert.Nil(t, m.chatView)
	assert.Empty(t, m.launcher.ChatID())
	_, ok = storage.GetItem(launcher.ActiveChatIDKey)
	assert.False(t, ok)
}

func TestRefresh_ReloadsChatsAndOpenChat(t *testing.T) {
	f := newFakeBackend()
	f.seedChat("c1", "first", "one")
	storage := launcher.NewMemoryStorage()
	require.NoError(t, storage.SetItem(launcher.ActiveChatIDKey, "c1"))

	m := newTestModel(t, f, storage)
	m.chatView.messages.Wait()
	chatsBefore := f.callCount(models.CmdGetChats)
	messagesBefore := f.callCount(models.CmdGetChatMessages)

	// written by another client of the same backend
	f.seedChat("c2", "second")
	f.mu.Lock()
	f.addMessage("c1", models.RoleModel, "two")
	f.mu.Unlock()

	run(t, m, m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlR}))

	assert.NoError(t, m.err)
	assert.Equal(t, "refreshed", m.status)
	assert.Equal(t, chatsBefore+1, f.callCount(models.CmdGetChats))
	assert.Equal(t, messagesBefore+1, f.callCount(models.CmdGetChatMessages))
	assert.Len(t, m.chats.Result().Data, 2)
	msgs, _ := m.rt.Session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[1].Content)
}

func TestAgentPicker_UpdatesCurrentAgent(t *testing.T) {
	f := newFakeBackend()
	m := newTestModel(t, f, launcher.NewMemoryStorage())

	assert.Nil(t, m.handleKey(key(tea.KeyCtrlA)))
	require.Equal(t, overlayAgents, m.overlay)
	assert.Equal(t, 0, m.agentSelect.HighlightedIndex())
	assert.Contains(t, m.View(), "Select agent")

	m.handleKey(key(tea.KeyDown))
	assert.Equal(t, 1, m.agentSelect.HighlightedIndex())

	run(t, m, m.handleKey(key(tea.KeyEnter)))
	require.NoError(t, m.err)
	assert.Equal(t, overlayNone, m.overlay)
	assert.Equal(t, "agent updated", m.status)

	require.Eventually(t, func() bool {
		a := m.agent.Result().Data
		return a != nil && a.ID == "a2"
	}, waitFor, tick)
	m.sync()
	assert.Equal(t, []string{"a2"}, m.agentSelect.Value())
}

func TestAgentPicker_EscKeepsAgent(t *testing.T) {
	f := newFakeBackend()
	m := newTestModel(t, f, launcher.NewMemoryStorage())

	m.handleKey(key(tea.KeyCtrlA))
	m.handleKey(key(tea.KeyDown))
	assert.Nil(t, m.handleKey(key(tea.KeyEsc)))

	assert.Equal(t, overlayNone, m.overlay)
	assert.False(t, m.agentSelect.IsOpen())
	assert.Equal(t, 0, f.callCount(models.CmdUpdateCurrentAgent))
}

func TestAPIKeyForm_SavesAndReloads(t *testing.T) {
	f := newFakeBackend()
	m := newTestModel(t, f, launcher.NewMemoryStorage())

	assert.Nil(t, m.handleKey(key(tea.KeyCtrlK)))
	require.Equal(t, overlayAPIKey, m.overlay)
	assert.Equal(t, textinput.EchoPassword, m.keyInput.EchoMode)

	m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("sk-1")})
	assert.Equal(t, "sk-1", m.keyInput.Value())

	m.handleKey(key(tea.KeyCtrlR))
	assert.True(t, m.password.Visible())
	assert.Equal(t, textinput.EchoNormal, m.keyInput.EchoMode)

	run(t, m, m.handleKey(key(tea.KeyEnter)))
	require.NoError(t, m.err)
	assert.Equal(t, overlayNone, m.overlay)
	assert.Equal(t, "api key saved", m.status)
	assert.False(t, m.password.Visible())
	assert.Equal(t, textinput.EchoPassword, m.keyInput.EchoMode)

	f.mu.Lock()
	assert.Equal(t, "enc:sk-1", f.keys["a1"])
	f.mu.Unlock()

	require.Eventually(t, func() bool {
		cfg := m.config.Result().Data
		return cfg != nil && cfg.APIKey != nil
	}, waitFor, tick)
	m.sync()
	assert.Contains(t, m.View(), "api key set")

	load := m.handleKey(key(tea.KeyCtrlK))
	run(t, m, load)
	assert.Equal(t, "sk-1", m.keyInput.Value())
	assert.Equal(t, 1, f.callCount(models.CmdDecryptAgentCiphertext))
}

func TestAPIKeyForm_RequiresAgent(t *testing.T) {
	f := newFakeBackend()
	f.current = ""
	m := newTestModel(t, f, launcher.NewMemoryStorage())

	assert.Nil(t, m.handleKey(key(tea.KeyCtrlK)))
	assert.Equal(t, overlayNone, m.overlay)
	assert.ErrorIs(t, m.err, models.ErrAgentRequired)
	assert.Contains(t, m.View(), "no agent selected")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "日本…", truncate("日本語テキスト", 5))
}
