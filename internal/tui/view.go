package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// View implements tea.Model
func (m *Model) View() string {
	if m.width == 0 {
		return "loading…"
	}
	sidebar := m.styles.sidebar.
		Width(sidebarWidth).
		Height(m.height - 2).
		Render(m.sidebarView())

	var main string
	switch m.overlay {
	case overlayAgents:
		main = m.agentsView()
	case overlayAPIKey:
		main = m.apiKeyView()
	default:
		main = lipgloss.JoinVertical(lipgloss.Left,
			m.headerView(),
			m.viewport.View(),
			m.input.View(),
			m.statusView(),
		)
	}
	main = m.styles.main.
		Width(max(m.width-sidebarWidth-4, 20)).
		Height(m.height - 2).
		Render(main)

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m *Model) sidebarView() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Chats"))
	b.WriteString("\n")

	r := m.chats.Result()
	switch {
	case r.Loading():
		b.WriteString(m.styles.pending.Render("Loading…"))
		return b.String()
	case r.Err != nil && len(r.Data) == 0:
		b.WriteString(m.styles.errText.Render("Failed to load chats"))
		return b.String()
	case len(r.Data) == 0:
		b.WriteString(m.styles.help.Render("No chats yet"))
		return b.String()
	}

	active := m.launcher.ChatID()
	for i, c := range r.Data {
		title := truncate(c.Title, sidebarWidth-2)
		switch {
		case c.ID == active:
			b.WriteString(m.styles.chatActive.Render("▌" + title))
		case i == m.chatCursor:
			b.WriteString(m.styles.chatCursor.Render(" " + title))
		default:
			b.WriteString(m.styles.chatItem.Render(" " + title))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) headerView() string {
	agent := m.agent.Result()
	if agent.Loading() {
		return m.styles.header.Render("agent: loading…")
	}
	if agent.Data == nil {
		return m.styles.errText.Render("no agent selected (ctrl+a)")
	}
	key := "no api key (ctrl+k)"
	if cfg := m.config.Result().Data; cfg != nil && cfg.APIKey != nil && *cfg.APIKey != "" {
		key = "api key set"
	}
	return m.styles.header.Render(agentLabel(*agent.Data) + "  ·  " + key)
}

func (m *Model) statusView() string {
	if m.err != nil {
		return m.styles.errText.Render(m.err.Error())
	}
	if m.sending {
		return m.styles.status.Render("sending…")
	}
	if m.status != "" {
		return m.styles.status.Render(m.status)
	}
	return m.styles.help.Render("enter send · ctrl+n/p chats · ctrl+o new · ctrl+a agent · ctrl+k key · ctrl+r reload · esc quit")
}

func (m *Model) agentsView() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Select agent"))
	b.WriteString("\n\n")

	selected := m.agentSelect.Value()
	highlighted := m.agentSelect.HighlightedIndex()
	for i, item := range m.agentSelect.Items() {
		props := m.agentSelect.ItemProps(item)
		marker := "  "
		if len(selected) == 1 && selected[0] == item.Value {
			marker = "✓ "
		}
		line := marker + item.Label
		switch {
		case i == highlighted:
			line = m.styles.highlighted.Render(line)
		case props.Bool("aria-selected"):
			line = m.styles.selected.Render(line)
		default:
			line = m.styles.option.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("↑/↓ move · enter select · esc cancel"))
	return m.styles.overlay.Render(b.String())
}

func (m *Model) apiKeyView() string {
	var b strings.Builder
	agent := m.agent.Result().Data
	title := "API key"
	if agent != nil {
		title += " for " + agentLabel(*agent)
	}
	b.WriteString(m.styles.title.Render(title))
	b.WriteString("\n\n")

	b.WriteString(m.keyInput.View())
	b.WriteString("\n")
	if m.password.Invalid() {
		b.WriteString(m.styles.errText.Render("could not save key"))
		b.WriteString("\n")
	}

	toggle := m.password.VisibilityTriggerProps().String("aria-label")
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("enter save · ctrl+r " + strings.ToLower(toggle) + " · esc cancel"))
	return m.styles.overlay.Render(b.String())
}

// truncate cuts s to n terminal cells
func truncate(s string, n int) string {
	return ansi.Truncate(s, n, "…")
}
