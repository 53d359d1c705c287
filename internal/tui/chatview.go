package tui

import (
	"strings"

	"AskKit/internal/app"
	"AskKit/internal/component"
	"AskKit/internal/models"
	"AskKit/internal/queries"
	"AskKit/internal/query"
	"AskKit/internal/session"

	"github.com/charmbracelet/bubbles/viewport"
)

// chatView is the mounted view of one chat
type chatView struct {
	node     *component.Node
	chatID   string
	messages *query.Observer[[]models.ChatMessage]
	anchor   *viewportAnchor
}

// viewportAnchor exposes the chat viewport as the session scroll anchor
type viewportAnchor struct {
	vp *viewport.Model
}

func (a *viewportAnchor) Offset() int {
	return a.vp.YOffset
}

func (a *viewportAnchor) ScrollTo(offset int) {
	a.vp.SetYOffset(offset)
}

// openChatView destroys the current chat view, remembering its scroll
// offset, and mounts one for chatID. An empty chatID leaves no view.
func (m *Model) openChatView(chatID string) error {
	if m.chatView != nil {
		if m.chatView.chatID == chatID {
			return nil
		}
		m.offsets[m.chatView.chatID] = m.chatView.anchor.Offset()
		m.chatView.node.Destroy()
		m.chatView = nil
	}
	if chatID == "" {
		m.viewport.SetContent("")
		return nil
	}

	node := m.root.Child("chat:" + chatID)
	obs, err := queries.UseChatMessages(node, chatID)
	if err != nil {
		node.Destroy()
		return err
	}
	anchor := &viewportAnchor{vp: &m.viewport}

	rt := app.MustUseRuntime(node)
	apply := func(r query.Result[[]models.ChatMessage]) {
		if r.Success() {
			rt.Session.SetMessagesFor(chatID, session.NewChatMessageViews(r.Data))
		}
		m.notify()
	}
	node.OnMount(func() func() {
		rt.Session.BindScrollAnchor(node, anchor)
		unsub := obs.Subscribe(apply)
		apply(obs.Result())
		return unsub
	})
	node.Mount()

	m.chatView = &chatView{node: node, chatID: chatID, messages: obs, anchor: anchor}
	m.restoreScroll = true
	return nil
}

func (m *Model) syncViewport() {
	msgs, loaded := m.rt.Session.Messages()
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages(msgs, loaded))

	if m.restoreScroll && loaded {
		m.restoreScroll = false
		chatID, _ := m.rt.Session.ChatID()
		if anchor, ok := m.rt.Session.ScrollAnchor(); ok {
			if offset, seen := m.offsets[chatID]; seen {
				anchor.ScrollTo(offset)
				return
			}
		}
		m.viewport.GotoBottom()
		return
	}
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessages(msgs []session.ChatMessageView, loaded bool) string {
	if _, ok := m.rt.Session.ChatID(); !ok {
		return m.styles.help.Render("Type a message to start a new chat.")
	}
	if !loaded {
		if m.chatView != nil {
			if r := m.chatView.messages.Result(); r.Status == query.StatusError {
				return m.styles.errText.Render("Failed to load messages: " + r.Err.Error())
			}
		}
		return m.styles.pending.Render("Loading…")
	}
	if len(msgs) == 0 {
		return m.styles.help.Render("No messages yet.")
	}

	width := max(m.viewport.Width, 20)
	agentLabel := "Assistant"
	if a := m.agent.Result().Data; a != nil {
		agentLabel = a.Model
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if msg.Role == models.RoleUser {
			b.WriteString(m.styles.userLabel.Render("You"))
		} else {
			b.WriteString(m.styles.modelLabel.Render(agentLabel))
		}
		b.WriteString("\n")

		switch {
		case msg.Status == models.StatusPending && msg.Content == "":
			b.WriteString(m.styles.pending.Render("…"))
		case msg.Status == models.StatusFailed:
			b.WriteString(m.styles.content.Width(width).Render(msg.Content))
			b.WriteString("\n")
			b.WriteString(m.styles.failed.Render("reply failed"))
		default:
			b.WriteString(m.styles.content.Width(width).Render(msg.Content))
		}
	}
	return b.String()
}
