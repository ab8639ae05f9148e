package tui

import (
	"github.com/charmbracelet/lipgloss"

	"mmfeed/theme"
)

type styles struct {
	header   lipgloss.Style
	meta     lipgloss.Style
	body     lipgloss.Style
	selected lipgloss.Style
	system   lipgloss.Style
	link     lipgloss.Style
	status   lipgloss.Style
	help     lipgloss.Style
}

type palette struct {
	fg, muted, accent, border, system, link lipgloss.Color
}

var palettes = map[theme.Theme]palette{
	theme.Light: {
		fg:     lipgloss.Color("235"),
		muted:  lipgloss.Color("244"),
		accent: lipgloss.Color("25"),
		border: lipgloss.Color("250"),
		system: lipgloss.Color("61"),
		link:   lipgloss.Color("27"),
	},
	theme.Dark: {
		fg:     lipgloss.Color("255"),
		muted:  lipgloss.Color("242"),
		accent: lipgloss.Color("111"),
		border: lipgloss.Color("238"),
		system: lipgloss.Color("147"),
		link:   lipgloss.Color("75"),
	},
}

func newStyles(t theme.Theme) styles {
	p, ok := palettes[t]
	if !ok {
		p = palettes[theme.Light]
	}

	bubble := lipgloss.NewStyle().
		Foreground(p.fg).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.border).
		Padding(0, 1)

	return styles{
		header:   lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		meta:     lipgloss.NewStyle().Foreground(p.muted),
		body:     bubble,
		selected: bubble.BorderForeground(p.accent),
		system:   bubble.Foreground(p.system).BorderStyle(lipgloss.NormalBorder()),
		link:     lipgloss.NewStyle().Foreground(p.link).Underline(true),
		status:   lipgloss.NewStyle().Foreground(p.accent),
		help:     lipgloss.NewStyle().Foreground(p.muted),
	}
}
