// Package tui is the terminal version of the feed widget
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"mmfeed/feed"
	"mmfeed/theme"
)

type Options struct {
	Sync  *feed.Synchronizer
	List  *feed.List
	Theme theme.Theme

	// Prefs saves theme changes, nil keeps them for the session only
	Prefs *theme.Store
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, opts Options) error {
	model := New(ctx, opts)
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type Model struct {
	ctx    context.Context
	sync   *feed.Synchronizer
	list   *feed.List
	prefs  *theme.Store
	theme  theme.Theme
	styles styles
	input  textinput.Model

	selected int
	status   string
	width    int
	height   int
}

// changedMsg is sent when the feed list was modified
type changedMsg struct{}

// actionMsg reports the outcome of a post, delete or refresh
type actionMsg struct {
	action string
	err    error
}

func New(ctx context.Context, opts Options) *Model {
	input := textinput.New()
	input.Placeholder = "Write a message"
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Focus()

	t := opts.Theme
	if t == "" {
		t = theme.Light
	}

	return &Model{
		ctx:    ctx,
		sync:   opts.Sync,
		list:   opts.List,
		prefs:  opts.Prefs,
		theme:  t,
		styles: newStyles(t),
		input:  input,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

func (m *Model) waitForChange() tea.Cmd {
	changes := m.list.Changes()
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.clampSelection()
		return m, nil

	case changedMsg:
		m.clampSelection()
		return m, m.waitForChange()

	case actionMsg:
		switch {
		case errors.Is(msg.err, feed.ErrEmptyMessage):
			m.status = "Nothing to send"
		case msg.err != nil:
			m.status = fmt.Sprintf("%s failed", msg.action)
		default:
			m.status = fmt.Sprintf("%s done", msg.action)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		text := m.input.Value()
		m.input.Reset()
		return m, m.run("Send", func(ctx context.Context) error {
			return m.sync.Post(ctx, text)
		})

	case "ctrl+r":
		m.selected = 0
		return m, m.run("Refresh", func(ctx context.Context) error {
			return m.sync.LoadAll(ctx, true)
		})

	case "ctrl+p":
		if m.sync.Paused() {
			m.sync.Resume()
			m.status = "Polling resumed"
		} else {
			m.sync.Pause()
			m.status = "Polling paused"
		}
		return m, nil

	case "ctrl+t":
		m.setTheme(m.theme.Toggle())
		return m, nil

	case "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down":
		if m.selected < m.visibleItems()-1 {
			m.selected++
		}
		return m, nil

	case "ctrl+d":
		keys := m.list.Keys()
		if m.selected >= len(keys) || m.selected >= m.visibleItems() {
			return m, nil
		}
		id := keys[m.selected]
		return m, m.run("Delete", func(ctx context.Context) error {
			return m.sync.Delete(ctx, id)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(ctx)}
	}
}

func (m *Model) setTheme(t theme.Theme) {
	m.theme = t
	m.styles = newStyles(t)
	m.status = fmt.Sprintf("Theme: %s", t)

	if m.prefs == nil {
		return
	}
	if err := m.prefs.Set(t); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Error saving theme")
		m.status = "Could not save theme"
	}
}

func (m *Model) clampSelection() {
	n := m.visibleItems()
	if m.selected >= n {
		m.selected = max(n-1, 0)
	}
}

// visible returns how many entries from the top fit on screen
func (m *Model) visible(entries []feed.Entry) int {
	if m.height <= 0 {
		return len(entries)
	}
	budget := m.height - 5
	for i, e := range entries {
		lines := lipgloss.Height(m.renderEntry(e, false))
		if lines > budget {
			return i
		}
		budget -= lines
	}
	return len(entries)
}

// visibleItems counts the items shown on screen, notices excluded
func (m *Model) visibleItems() int {
	entries := m.list.Entries()
	n := 0
	for _, e := range entries[:m.visible(entries)] {
		if e.Kind == feed.KindItem {
			n++
		}
	}
	return n
}

func (m *Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("mmfeed · %d messages · %s", len(m.list.Keys()), m.theme)
	if m.sync.Paused() {
		header += " · paused"
	}
	b.WriteString(m.styles.header.Render(header))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.styles.status.Render(m.status))
	}
	b.WriteString("\n")

	entries := m.list.Entries()
	item := 0
	for _, e := range entries[:m.visible(entries)] {
		b.WriteString(m.renderEntry(e, e.Kind == feed.KindItem && item == m.selected))
		b.WriteString("\n")
		if e.Kind == feed.KindItem {
			item++
		}
	}

	b.WriteString(m.styles.help.Render("enter send · ↑/↓ select · ctrl+d delete · ctrl+r refresh · ctrl+p pause · ctrl+t theme · esc quit"))
	return b.String()
}

func (m *Model) renderEntry(e feed.Entry, selected bool) string {
	meta := m.styles.meta.Render(fmt.Sprintf("%s · %s", feed.StripControl(e.Sender), e.Clock()))

	style := m.styles.body
	switch {
	case e.Kind == feed.KindSystem:
		style = m.styles.system
	case selected:
		style = m.styles.selected
	}
	if m.width > 4 {
		style = style.Width(m.width - 2)
	}

	body := feed.StripControl(e.Text)
	if e.ContactURL != "" {
		body += "\n" + m.styles.link.Render(e.ContactURL)
	}
	return meta + "\n" + style.Render(body)
}
