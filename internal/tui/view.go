package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cwt/ananta/internal/ansi"
	"github.com/cwt/ananta/internal/config"
)

// theme holds the session chrome styles. Host output keeps its own colors;
// the theme only covers echoes and status lines.
type theme struct {
	echo       lipgloss.Style
	ok         lipgloss.Style
	errorStyle lipgloss.Style
	status     lipgloss.Style
}

// newTheme picks bright variants on dark backgrounds and the darker ANSI
// colors on light ones.
func newTheme(light bool) theme {
	echo, ok, errC, status := "14", "10", "9", "11"
	if light {
		echo, ok, errC, status = "6", "2", "1", "3"
	}
	return theme{
		echo:       lipgloss.NewStyle().Foreground(lipgloss.Color(echo)).Bold(true),
		ok:         lipgloss.NewStyle().Foreground(lipgloss.Color(ok)),
		errorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(errC)),
		status:     lipgloss.NewStyle().Foreground(lipgloss.Color(status)),
	}
}

// View renders the scrollback above the input line.
func (m Model) View() string {
	if !m.ready {
		return "Starting session..."
	}
	return m.viewport.View() + "\n" + m.input.View()
}

// renderPrompt colors the bracketed, right-aligned host name.
func (m Model) renderPrompt(host string) string {
	padded := fmt.Sprintf("[%*s]", m.maxNameLength, host)
	color := m.palette.Color(host)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(string(color))).Render(padded) + " "
}

// renderHostLine converts one line of remote output into styled text,
// carrying the host's SGR state so multi-line colored output stays colored.
func (m Model) renderHostLine(host, raw string) string {
	line := ansi.StripControl(strings.TrimRight(raw, "\r\n"))
	state := m.states[host]
	if state == nil {
		state = ansi.NewState()
		m.states[host] = state
	}

	var b strings.Builder
	for _, seg := range ansi.Render(state, line) {
		b.WriteString(styleFor(seg.Style).Render(seg.Text))
	}
	return b.String()
}

// styleFor maps a resolved output style onto lipgloss.
func styleFor(s ansi.Style) lipgloss.Style {
	style := lipgloss.NewStyle()
	if s.FG != ansi.DefaultColor {
		style = style.Foreground(lipgloss.Color(string(s.FG)))
	}
	if s.BG != ansi.DefaultColor {
		style = style.Background(lipgloss.Color(string(s.BG)))
	}
	if s.Bold {
		style = style.Bold(true)
	}
	if s.Italic {
		style = style.Italic(true)
	}
	if s.Underline {
		style = style.Underline(true)
	}
	if s.Strike {
		style = style.Strikethrough(true)
	}
	return style
}

// Run starts the interactive session and blocks until the user exits.
func Run(hosts []config.Host, maxNameLength int, opts Options) error {
	model := NewModel(hosts, maxNameLength, opts)
	defer model.cancel()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
