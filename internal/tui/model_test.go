package tui

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwt/ananta/internal/config"
	"github.com/cwt/ananta/internal/output"
	"github.com/cwt/ananta/pkg/sshutil/sshtest"
)

func sessionHosts(names ...string) []config.Host {
	hosts := make([]config.Host, 0, len(names))
	for _, name := range names {
		hosts = append(hosts, config.Host{
			Name: name, Address: "10.0.0.1", Port: 22,
			Username: "deploy", KeyPath: "#",
		})
	}
	return hosts
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	require.True(t, ok)
	return next, cmd
}

func lastLine(m Model) string {
	if len(m.lines) == 0 {
		return ""
	}
	return m.lines[len(m.lines)-1]
}

func TestConnectResultsAppearInScrollback(t *testing.T) {
	m := NewModel(sessionHosts("web-1", "db-1"), 5, Options{})

	m, _ = update(t, m, connectedMsg{host: "web-1", runner: &sshtest.Runner{}})
	assert.Contains(t, lastLine(m), "[web-1] Connected.")
	assert.Equal(t, StatusConnected, m.status["web-1"])

	m, _ = update(t, m, connectedMsg{host: "db-1", err: stderrors.New("boom")})
	assert.Contains(t, lastLine(m), "[ db-1] Connection failed: boom")
	assert.Equal(t, StatusDisconnected, m.status["db-1"])
}

func TestProcessCommandSkipsDisconnectedHosts(t *testing.T) {
	m := NewModel(sessionHosts("web-1", "db-1"), 5, Options{})
	m, _ = update(t, m, connectedMsg{host: "web-1", runner: &sshtest.Runner{Lines: []string{"ok\n"}}})

	updated, cmd := m.processCommand("uptime")
	m = updated.(Model)

	require.NotNil(t, cmd)
	assert.Contains(t, m.lines[len(m.lines)-2], ">>> uptime")
	assert.Contains(t, lastLine(m), "[ db-1] Not connected, skipping command.")
	assert.Equal(t, StatusRunning, m.status["web-1"])
}

func TestInitialCommandFiresAfterLastDial(t *testing.T) {
	m := NewModel(sessionHosts("web-1"), 5, Options{InitialCommand: "uptime"})

	m, cmd := update(t, m, connectedMsg{host: "web-1", runner: &sshtest.Runner{}})
	require.NotNil(t, cmd)

	var echoed bool
	for _, line := range m.lines {
		if line == m.theme.echo.Render(">>> uptime") {
			echoed = true
		}
	}
	assert.True(t, echoed, "initial command should be echoed once all dials settle")
}

func TestHandleOutputRearmsListener(t *testing.T) {
	m := NewModel(sessionHosts("web-1"), 5, Options{})
	m.status["web-1"] = StatusRunning
	q := output.NewQueue()

	m, cmd := update(t, m, outputMsg{host: "web-1", event: output.Event{Kind: output.KindLine, Text: "hello\n"}, queue: q})
	require.NotNil(t, cmd, "line events keep the listener armed")
	assert.Contains(t, lastLine(m), "[web-1] hello")

	m, cmd = update(t, m, outputMsg{host: "web-1", event: output.Event{Kind: output.KindEnd}, queue: q})
	assert.Nil(t, cmd)
	assert.Equal(t, StatusConnected, m.status["web-1"])
}

func TestHandleOutputErrorEvent(t *testing.T) {
	m := NewModel(sessionHosts("web-1"), 5, Options{})
	q := output.NewQueue()

	m, _ = update(t, m, outputMsg{host: "web-1", event: output.Event{Kind: output.KindError, Text: "Error executing command: broken"}, queue: q})
	assert.Contains(t, lastLine(m), "Error executing command: broken")
}

func TestScrollbackTrimsAtCap(t *testing.T) {
	m := NewModel(sessionHosts("web-1"), 5, Options{})

	for i := 0; i < scrollbackMax+1; i++ {
		m.appendLine(fmt.Sprintf("line %d", i))
	}

	assert.Len(t, m.lines, scrollbackKeep)
	assert.Equal(t, fmt.Sprintf("line %d", scrollbackMax), lastLine(m))
}

func TestExitCommandBeginsShutdown(t *testing.T) {
	m := NewModel(sessionHosts("web-1"), 5, Options{})
	runner := &sshtest.Runner{}
	m, _ = update(t, m, connectedMsg{host: "web-1", runner: runner})

	updated, cmd := m.processCommand("exit")
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Equal(t, StatusClosing, m.status["web-1"])
	assert.Contains(t, lastLine(m), "Exiting... Closing connections...")

	// The shutdown command closes connections and reports completion.
	msg := cmd()
	assert.IsType(t, closedMsg{}, msg)
	assert.True(t, runner.Closed())
}

func TestShutdownNoticesCancelledCommands(t *testing.T) {
	m := NewModel(sessionHosts("web-1", "db-1"), 5, Options{})
	m, _ = update(t, m, connectedMsg{host: "web-1", runner: &sshtest.Runner{Lines: []string{"ok\n"}}})
	m, _ = update(t, m, connectedMsg{host: "db-1", runner: &sshtest.Runner{}})

	updated, _ := m.processCommand("sleep 600")
	m = updated.(Model)
	m.status["db-1"] = StatusConnected

	updated, cmd := m.beginShutdown()
	m = updated.(Model)
	require.NotNil(t, cmd)

	var cancelled int
	for _, line := range m.lines {
		if strings.Contains(line, "Command cancelled.") {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled, "only hosts with a command in flight get the notice")
	assert.Contains(t, strings.Join(m.lines, "\n"), "[web-1] "+m.theme.status.Render("Command cancelled."))
}

func TestCtrlCBeginsShutdown(t *testing.T) {
	m := NewModel(sessionHosts("web-1"), 5, Options{})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
}

func TestRenderHostLineStripsCursorControls(t *testing.T) {
	m := NewModel(sessionHosts("web-1"), 5, Options{})

	assert.Equal(t, "ab", m.renderHostLine("web-1", "a\x1b[2Jb\r\n"))
	assert.Equal(t, "line2", m.renderHostLine("web-1", "line1\rline2"))
}

func TestEmptyInventoryNotice(t *testing.T) {
	m := NewModel(nil, 0, Options{HostFile: "hosts.csv"})

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, lastLine(m), "No hosts found in 'hosts.csv'.")
}
