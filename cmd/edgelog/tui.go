package main

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	tea "charm.land/bubbletea/v2"

	"go.jacobcolvin.com/edgelog/log"
)

const maxTailEntries = 1000

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	footerStyle = lipgloss.NewStyle().Faint(true)

	levelStyles = map[log.Level]lipgloss.Style{
		log.LevelDebug:    lipgloss.NewStyle().Faint(true),
		log.LevelInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		log.LevelWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		log.LevelError:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		log.LevelCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)

// entryMsg delivers one entry from the subscription.
type entryMsg log.Entry

// subscriptionClosedMsg signals that the publisher has shut down.
type subscriptionClosedMsg struct{}

// tailModel is the bubbletea model for the tail view. It keeps the most
// recent entries and shows as many as fit the window.
type tailModel struct {
	sub     *log.Subscription
	addr    string
	entries []log.Entry
	width   int
	height  int
	total   int
	closed  bool
}

func newTailModel(sub *log.Subscription, addr string) *tailModel {
	return &tailModel{
		sub:    sub,
		addr:   addr,
		width:  80,
		height: 24,
	}
}

// Init starts waiting for the first entry.
func (m *tailModel) Init() tea.Cmd {
	return m.next()
}

// next returns a tea.Cmd that blocks until the subscription delivers an
// entry or is closed.
func (m *tailModel) next() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.sub.C()
		if !ok {
			return subscriptionClosedMsg{}
		}

		return entryMsg(e)
	}
}

// Update handles entries, resizes, and quit keys.
func (m *tailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.sub.Close()

			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case entryMsg:
		m.total++
		m.entries = append(m.entries, log.Entry(msg))

		if len(m.entries) > maxTailEntries {
			m.entries = m.entries[len(m.entries)-maxTailEntries:]
		}

		return m, m.next()

	case subscriptionClosedMsg:
		m.closed = true
	}

	return m, nil
}

// View renders the header, the newest entries, and the footer.
func (m *tailModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true

	return v
}

func (m *tailModel) render() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("edgelog tail  %s", m.addr)))
	b.WriteByte('\n')

	rows := max(m.height-2, 1)
	start := max(len(m.entries)-rows, 0)

	line := lipgloss.NewStyle().MaxWidth(max(m.width, 1))

	for _, e := range m.entries[start:] {
		b.WriteString(line.Render(levelStyle(e.Level).Render(fmt.Sprintf("%-8s", e.Level)) + " " + e.Payload))
		b.WriteByte('\n')
	}

	status := fmt.Sprintf("%d received  q to quit", m.total)
	if m.closed {
		status = fmt.Sprintf("%d received  stopped  q to quit", m.total)
	}

	b.WriteString(footerStyle.Render(status))

	return b.String()
}

func levelStyle(l log.Level) lipgloss.Style {
	s, ok := levelStyles[l]
	if !ok {
		return lipgloss.NewStyle()
	}

	return s
}
