// Package tui is the terminal launcher: a bubbletea program whose panes are
// nodes of a component tree reading the launcher runtime.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"AskKit/internal/app"
	"AskKit/internal/component"
	"AskKit/internal/launcher"
	"AskKit/internal/models"
	"AskKit/internal/queries"
	"AskKit/internal/query"
	"AskKit/internal/session"
	"AskKit/internal/widget"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const sidebarWidth = 28

type overlay int

const (
	overlayNone overlay = iota
	overlayAgents
	overlayAPIKey
)

// Options configure the launcher
type Options struct {
	Runtime *app.Runtime
	Storage launcher.LocalStorage
	Theme   string
}

// messages delivered to Update
type (
	refreshMsg     struct{}
	chatCreatedMsg struct {
		chatID  string
		content string
		err     error
	}
	sentMsg         struct{ err error }
	agentUpdatedMsg struct{ err error }
	keyLoadedMsg    struct {
		key string
		err error
	}
	keySavedMsg  struct{ err error }
	refreshedMsg struct{ err error }
)

// Model is the launcher program state
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	rt      *app.Runtime
	storage launcher.LocalStorage
	logger  *slog.Logger
	styles  styles

	root     *component.Node
	launcher *app.Launcher
	chats    *query.Observer[[]models.Chat]
	agents   *query.Observer[[]models.Agent]
	agent    *query.Observer[*models.Agent]
	config   *query.Observer[*models.AgentConfig]
	chatView *chatView

	// coalesced wake-ups from goroutines
	updates chan struct{}

	width    int
	height   int
	input    textinput.Model
	viewport viewport.Model
	// scroll offsets of chats left during this session
	offsets       map[string]int
	restoreScroll bool

	overlay     overlay
	agentSelect widget.Select[string]
	password    widget.PasswordInput
	keyInput    textinput.Model

	chatCursor int
	sending    bool
	status     string
	err        error
}

// New mounts the launcher tree and runs the chats page load: the stored
// active chat, if any, is prefetched and opened.
func New(ctx context.Context, opts Options) (*Model, error) {
	if opts.Runtime == nil {
		return nil, fmt.Errorf("runtime cannot be nil")
	}
	if opts.Storage == nil {
		opts.Storage = launcher.NewMemoryStorage()
	}
	logger := opts.Runtime.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Model{
		ctx:      ctx,
		cancel:   cancel,
		rt:       opts.Runtime,
		storage:  opts.Storage,
		logger:   logger,
		styles:   newStyles(opts.Theme),
		updates:  make(chan struct{}, 1),
		offsets:  make(map[string]int),
		viewport: viewport.New(0, 0),
	}

	m.input = textinput.New()
	m.input.Placeholder = "Ask anything"
	m.input.Prompt = "> "
	m.input.Focus()

	m.keyInput = textinput.New()
	m.keyInput.Placeholder = "API key"
	m.keyInput.Prompt = ""
	m.keyInput.EchoMode = textinput.EchoPassword
	m.keyInput.EchoCharacter = '•'
	m.keyInput.Cursor.SetMode(cursor.CursorStatic)
	m.password = widget.NewPasswordInput(widget.PasswordInputProps{
		ID:   "api-key",
		Name: "api_key",
		OnVisibilityChange: func(visible bool) {
			if visible {
				m.keyInput.EchoMode = textinput.EchoNormal
			} else {
				m.keyInput.EchoMode = textinput.EchoPassword
			}
		},
	})
	m.agentSelect = widget.NewSelect(widget.SelectProps[string]{ID: "agent", Loop: true})

	if err := m.mount(); err != nil {
		cancel()
		return nil, err
	}

	if chatID := launcher.LoadChatsPage(ctx, m.rt.Query, m.rt.Invoker, m.storage); chatID != "" {
		if err := m.selectChat(chatID); err != nil {
			m.Close()
			return nil, err
		}
	}
	m.sync()
	return m, nil
}

func (m *Model) mount() error {
	m.root = component.NewRoot("launcher")
	app.SetRuntime(m.root, m.rt)
	app.SetLauncherContext(m.root, app.NewLauncher(""))
	queries.BindChatEvents(m.root, m.rt)

	var err error
	sidebar := m.root.Child("sidebar")
	l, ok := app.UseLauncherContext(sidebar)
	if !ok {
		return fmt.Errorf("launcher context not provided")
	}
	m.launcher = l
	if m.chats, err = queries.UseChats(sidebar); err != nil {
		return err
	}

	header := m.root.Child("agent")
	if m.agents, err = queries.UseAgents(header); err != nil {
		return err
	}
	if m.agent, err = queries.UseCurrentAgent(header); err != nil {
		return err
	}
	if m.config, err = queries.UseCurrentAgentConfig(header); err != nil {
		return err
	}

	m.root.OnMount(func() func() {
		unsubs := []func(){
			m.chats.Subscribe(func(query.Result[[]models.Chat]) { m.notify() }),
			m.agents.Subscribe(func(query.Result[[]models.Agent]) { m.notify() }),
			m.agent.Subscribe(func(query.Result[*models.Agent]) { m.notify() }),
			m.config.Subscribe(func(query.Result[*models.AgentConfig]) { m.notify() }),
			m.rt.Session.Subscribe(func(session.Snapshot) { m.notify() }),
			m.launcher.Subscribe(func(string) { m.notify() }),
		}
		return func() {
			for _, u := range unsubs {
				u()
			}
		}
	})
	m.root.Mount()
	return nil
}

// Close destroys the component tree
func (m *Model) Close() {
	m.root.Destroy()
	m.cancel()
}

func (m *Model) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return refreshMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForUpdate())
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.sync()
		return m, m.waitForUpdate()

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		m.sync()
		return m, nil

	case chatCreatedMsg:
		if msg.err != nil {
			m.sending = false
			m.err = msg.err
			return m, nil
		}
		if err := m.selectChat(msg.chatID); err != nil {
			m.sending = false
			m.err = err
			return m, nil
		}
		return m, m.sendCmd(msg.chatID, msg.content)

	case sentMsg:
		m.sending = false
		m.err = msg.err
		return m, nil

	case agentUpdatedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "agent updated"
		}
		return m, nil

	case keyLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if m.overlay == overlayAPIKey && m.keyInput.Value() == "" {
			m.keyInput.SetValue(msg.key)
			m.keyInput.CursorEnd()
		}
		return m, nil

	case keySavedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "api key saved"
			m.closeOverlay()
		} else {
			m.password.SetInvalid(true)
		}
		return m, nil

	case refreshedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "refreshed"
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	switch m.overlay {
	case overlayAgents:
		return m.handleAgentKey(msg)
	case overlayAPIKey:
		return m.handleAPIKeyKey(msg)
	}

	switch msg.String() {
	case "esc":
		return tea.Quit
	case "enter":
		return m.submit()
	case "ctrl+n":
		return m.moveChat(1)
	case "ctrl+p":
		return m.moveChat(-1)
	case "ctrl+o":
		m.err = m.selectChat("")
		return nil
	case "ctrl+a":
		m.openAgents()
		return nil
	case "ctrl+k":
		return m.openAPIKey()
	case "ctrl+r":
		return m.refresh()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit sends the composed message, creating a chat first when none is open
func (m *Model) submit() tea.Cmd {
	content := m.input.Value()
	if m.sending || strings.TrimSpace(content) == "" {
		return nil
	}
	m.input.Reset()
	m.sending = true
	m.err = nil

	chatID, ok := m.rt.Session.ChatID()
	if ok {
		return m.sendCmd(chatID, content)
	}

	ctx, rt := m.ctx, m.rt
	return func() tea.Msg {
		id, err := queries.CreateChat(ctx, rt, content)
		return chatCreatedMsg{chatID: id, content: content, err: err}
	}
}

func (m *Model) sendCmd(chatID, content string) tea.Cmd {
	ctx, rt := m.ctx, m.rt
	return func() tea.Msg {
		return sentMsg{err: queries.SendChatMessage(ctx, rt, chatID, content)}
	}
}

// refresh reloads the chat list and the open chat, fresh or not
func (m *Model) refresh() tea.Cmd {
	ctx, chats := m.ctx, m.chats
	var messages *query.Observer[[]models.ChatMessage]
	if m.chatView != nil {
		messages = m.chatView.messages
	}
	m.err = nil
	return func() tea.Msg {
		if _, err := chats.Refetch(ctx); err != nil {
			return refreshedMsg{err: err}
		}
		if messages != nil {
			if _, err := messages.Refetch(ctx); err != nil {
				return refreshedMsg{err: err}
			}
		}
		return refreshedMsg{}
	}
}

func (m *Model) moveChat(delta int) tea.Cmd {
	chats := m.chats.Result().Data
	if len(chats) == 0 {
		return nil
	}
	m.chatCursor = (m.chatCursor + delta + len(chats)) % len(chats)
	m.err = m.selectChat(chats[m.chatCursor].ID)
	return nil
}

// selectChat persists chatID as the active chat and swaps the chat view
func (m *Model) selectChat(chatID string) error {
	if err := launcher.SelectChat(m.rt, m.launcher, m.storage, chatID); err != nil {
		return err
	}
	return m.openChatView(chatID)
}

func (m *Model) setSize(width, height int) {
	m.width, m.height = width, height
	mainWidth := max(width-sidebarWidth-6, 20)
	// header, input and status lines plus pane borders
	m.viewport.Width = mainWidth
	m.viewport.Height = max(height-6, 3)
	m.input.Width = max(mainWidth-4, 10)
	m.keyInput.Width = max(mainWidth-8, 10)
}

// sync pulls observer and session state into the widgets
func (m *Model) sync() {
	chats := m.chats.Result().Data
	if id, ok := m.rt.Session.ChatID(); ok {
		for i, c := range chats {
			if c.ID == id {
				m.chatCursor = i
			}
		}
	}
	if m.chatCursor >= len(chats) {
		m.chatCursor = max(len(chats)-1, 0)
	}

	m.syncAgents()
	m.syncViewport()
}
