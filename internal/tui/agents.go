package tui

import (
	"fmt"

	"AskKit/internal/models"
	"AskKit/internal/queries"
	"AskKit/internal/widget"

	tea "github.com/charmbracelet/bubbletea"
)

func agentLabel(a models.Agent) string {
	return fmt.Sprintf("%s · %s", a.Provider, a.Model)
}

// syncAgents mirrors the agents query into the picker and selects the
// current agent
func (m *Model) syncAgents() {
	agents := m.agents.Result().Data
	items := make([]widget.Item[string], len(agents))
	for i, a := range agents {
		items[i] = widget.Item[string]{Value: a.ID, Label: agentLabel(a)}
	}
	m.agentSelect.SetItems(items)

	if current := m.agent.Result().Data; current != nil {
		if v := m.agentSelect.Value(); len(v) != 1 || v[0] != current.ID {
			m.agentSelect.SelectValue(current.ID)
		}
	}
}

func (m *Model) openAgents() {
	m.syncAgents()
	if len(m.agentSelect.Items()) == 0 {
		m.status = "no agents available"
		return
	}
	m.overlay = overlayAgents
	m.agentSelect.Open()
	m.input.Blur()
}

func (m *Model) handleAgentKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
	case "up", "k":
		m.agentSelect.HighlightPrev()
	case "down", "j":
		m.agentSelect.HighlightNext()
	case "home":
		m.agentSelect.HighlightFirst()
	case "end":
		m.agentSelect.HighlightLast()
	case "enter":
		item, ok := m.agentSelect.HighlightedItem()
		m.closeOverlay()
		if !ok {
			return nil
		}
		if current := m.agent.Result().Data; current != nil && current.ID == item.Value {
			return nil
		}
		m.agentSelect.SelectValue(item.Value)
		ctx, rt, id := m.ctx, m.rt, item.Value
		return func() tea.Msg {
			return agentUpdatedMsg{err: queries.UpdateCurrentAgent(ctx, rt, id)}
		}
	}
	return nil
}

// openAPIKey shows the key form for the current agent. A stored key is
// decrypted into the field.
func (m *Model) openAPIKey() tea.Cmd {
	agent := m.agent.Result().Data
	if agent == nil {
		m.err = models.ErrAgentRequired
		return nil
	}
	m.overlay = overlayAPIKey
	m.err = nil
	m.keyInput.Reset()
	m.password.SetVisible(false)
	m.password.SetInvalid(false)
	m.password.Focus()
	m.input.Blur()
	m.keyInput.Focus()

	cfg := m.config.Result().Data
	if cfg == nil || cfg.AgentID != agent.ID || cfg.APIKey == nil || *cfg.APIKey == "" {
		return nil
	}
	ctx, inv, ciphertext := m.ctx, m.rt.Invoker, *cfg.APIKey
	return func() tea.Msg {
		key, err := queries.DecryptAgentCiphertext(ctx, inv, ciphertext)
		return keyLoadedMsg{key: key, err: err}
	}
}

func (m *Model) handleAPIKeyKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return nil
	case "ctrl+r":
		m.password.ToggleVisible()
		return nil
	case "enter":
		agent := m.agent.Result().Data
		if agent == nil {
			m.password.SetInvalid(true)
			return nil
		}
		ctx, rt, id, key := m.ctx, m.rt, agent.ID, m.keyInput.Value()
		return func() tea.Msg {
			_, err := queries.UpsertAgentConfig(ctx, rt, id, key)
			return keySavedMsg{err: err}
		}
	}
	m.password.SetInvalid(false)
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return cmd
}

func (m *Model) closeOverlay() {
	switch m.overlay {
	case overlayAgents:
		m.agentSelect.Close()
	case overlayAPIKey:
		m.password.Blur()
		m.password.SetVisible(false)
		m.keyInput.Blur()
		m.keyInput.Reset()
	}
	m.overlay = overlayNone
	m.input.Focus()
}
