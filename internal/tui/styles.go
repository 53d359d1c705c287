package tui

import "github.com/charmbracelet/lipgloss"

type palette struct {
	accent lipgloss.Color
	muted  lipgloss.Color
	text   lipgloss.Color
	user   lipgloss.Color
	model  lipgloss.Color
	err    lipgloss.Color
	border lipgloss.Color
}

var palettes = map[string]palette{
	"dark": {
		accent: lipgloss.Color("212"),
		muted:  lipgloss.Color("241"),
		text:   lipgloss.Color("252"),
		user:   lipgloss.Color("39"),
		model:  lipgloss.Color("114"),
		err:    lipgloss.Color("203"),
		border: lipgloss.Color("238"),
	},
	"light": {
		accent: lipgloss.Color("162"),
		muted:  lipgloss.Color("245"),
		text:   lipgloss.Color("235"),
		user:   lipgloss.Color("25"),
		model:  lipgloss.Color("28"),
		err:    lipgloss.Color("160"),
		border: lipgloss.Color("250"),
	},
}

type styles struct {
	sidebar     lipgloss.Style
	main        lipgloss.Style
	title       lipgloss.Style
	chatItem    lipgloss.Style
	chatActive  lipgloss.Style
	chatCursor  lipgloss.Style
	header      lipgloss.Style
	userLabel   lipgloss.Style
	modelLabel  lipgloss.Style
	content     lipgloss.Style
	pending     lipgloss.Style
	failed      lipgloss.Style
	status      lipgloss.Style
	errText     lipgloss.Style
	overlay     lipgloss.Style
	option      lipgloss.Style
	highlighted lipgloss.Style
	selected    lipgloss.Style
	help        lipgloss.Style
}

func newStyles(theme string) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes["dark"]
	}
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.border)

	return styles{
		sidebar:     pane.Padding(0, 1),
		main:        pane.Padding(0, 1),
		title:       lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		chatItem:    lipgloss.NewStyle().Foreground(p.text),
		chatActive:  lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		chatCursor:  lipgloss.NewStyle().Foreground(p.accent),
		header:      lipgloss.NewStyle().Foreground(p.muted),
		userLabel:   lipgloss.NewStyle().Bold(true).Foreground(p.user),
		modelLabel:  lipgloss.NewStyle().Bold(true).Foreground(p.model),
		content:     lipgloss.NewStyle().Foreground(p.text),
		pending:     lipgloss.NewStyle().Faint(true).Foreground(p.muted),
		failed:      lipgloss.NewStyle().Foreground(p.err),
		status:      lipgloss.NewStyle().Foreground(p.muted),
		errText:     lipgloss.NewStyle().Foreground(p.err),
		overlay:     pane.BorderForeground(p.accent).Padding(1, 2),
		option:      lipgloss.NewStyle().Foreground(p.text),
		highlighted: lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		selected:    lipgloss.NewStyle().Foreground(p.model),
		help:        lipgloss.NewStyle().Faint(true).Foreground(p.muted),
	}
}
