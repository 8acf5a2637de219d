// Package tui is the interactive session: connect to every host up front,
// keep the connections warm, and run each entered command across the fleet
// while output streams into a shared scrollback.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwt/ananta/internal/ansi"
	"github.com/cwt/ananta/internal/config"
	"github.com/cwt/ananta/internal/logger"
	"github.com/cwt/ananta/internal/output"
	"github.com/cwt/ananta/pkg/sshutil"
)

// HostStatus is the lifecycle of one host's connection.
type HostStatus int

const (
	StatusDisconnected HostStatus = iota
	StatusConnecting
	StatusConnected
	StatusRunning
	StatusClosing
)

const (
	// connectTimeout bounds each dial attempt in the interactive session.
	connectTimeout = 10 * time.Second
	// keepaliveInterval keeps idle connections from being dropped by
	// NAT boxes and aggressive sshd timeouts.
	keepaliveInterval = 30 * time.Second
	// closeWait bounds the graceful teardown of each connection.
	closeWait = 2 * time.Second

	// scrollbackMax triggers a trim; scrollbackKeep is what survives it.
	scrollbackMax  = 3000
	scrollbackKeep = 2000

	// minRemoteWidth keeps remote rendering sane on tiny terminals.
	minRemoteWidth = 10
)

// dialHost is a seam for tests.
var dialHost = func(ctx context.Context, host config.Host, defaultKey string, log logger.Logger) (sshutil.Runner, error) {
	keys, err := sshutil.SelectKeys(host.Name, host.KeyPath, defaultKey)
	if err != nil {
		return nil, err
	}
	return sshutil.Dial(ctx, sshutil.Target{
		Name:     host.Name,
		Address:  fmt.Sprintf("%s:%d", host.Address, host.Port),
		Username: host.Username,
		KeyPaths: keys,
	}, sshutil.DialOptions{
		Timeout:    connectTimeout,
		MaxRetries: sshutil.DefaultMaxRetries,
		Logger:     log,
	})
}

// Options configure the interactive session.
type Options struct {
	HostFile       string
	InitialCommand string
	DefaultKey     string
	// Light switches the chrome colors for light terminal backgrounds.
	Light  bool
	Logger logger.Logger
}

// connectedMsg reports one host's dial result.
type connectedMsg struct {
	host   string
	runner sshutil.Runner
	err    error
}

// outputMsg carries one queue event from a running command.
type outputMsg struct {
	host  string
	event output.Event
	queue *output.Queue
}

// closedMsg reports that graceful shutdown finished.
type closedMsg struct{}

// Model is the Bubble Tea model for the interactive session.
type Model struct {
	hosts         []config.Host
	maxNameLength int
	opts          Options
	log           logger.Logger

	runners map[string]sshutil.Runner
	status  map[string]HostStatus
	// states carries per-host SGR state across the lines of one command.
	states  map[string]*ansi.State
	palette *output.Palette
	theme   theme

	lines    []string
	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int
	height   int

	// pending counts dials still in flight; the initial command fires when
	// it reaches zero.
	pending  int
	quitting bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewModel builds the session model. Hosts come pre-filtered from the
// inventory loader.
func NewModel(hosts []config.Host, maxNameLength int, opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Focus()

	ctx, cancel := context.WithCancel(context.Background())

	status := make(map[string]HostStatus, len(hosts))
	for _, h := range hosts {
		status[h.Name] = StatusDisconnected
	}

	return Model{
		hosts:         hosts,
		pending:       len(hosts),
		maxNameLength: maxNameLength,
		opts:          opts,
		log:           log,
		runners:       make(map[string]sshutil.Runner, len(hosts)),
		status:        status,
		states:        make(map[string]*ansi.State, len(hosts)),
		palette:       output.NewPalette(),
		theme:         newTheme(opts.Light),
		input:         input,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Init dials every host concurrently.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if len(m.hosts) == 0 {
		return tea.Batch(cmds...)
	}
	for _, host := range m.hosts {
		cmds = append(cmds, m.connectCmd(host))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m.beginShutdown()
		case tea.KeyEnter:
			return m.processCommand(m.input.Value())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inputHeight := 1
		viewportHeight := m.height - inputHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.ready = true
			if len(m.hosts) == 0 {
				m.appendLine(m.theme.status.Render(fmt.Sprintf(
					"No hosts found in '%s'. Please check the file path and format.", m.opts.HostFile)))
			}
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		m.refreshViewport()

	case connectedMsg:
		m.pending--
		prompt := m.renderPrompt(msg.host)
		if msg.err != nil {
			m.status[msg.host] = StatusDisconnected
			m.appendLine(prompt + m.theme.errorStyle.Render(fmt.Sprintf("Connection failed: %v", msg.err)))
		} else {
			m.runners[msg.host] = msg.runner
			m.status[msg.host] = StatusConnected
			m.appendLine(prompt + m.theme.ok.Render("Connected."))
			m.startKeepalive(msg.runner)
		}
		if m.pending == 0 && m.opts.InitialCommand != "" && !m.quitting {
			return m.processCommand(m.opts.InitialCommand)
		}

	case outputMsg:
		return m.handleOutput(msg)

	case closedMsg:
		m.appendLine(m.theme.status.Render("Connections closed."))
		return m, tea.Quit
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// connectCmd dials one host in the background.
func (m Model) connectCmd(host config.Host) tea.Cmd {
	m.status[host.Name] = StatusConnecting
	ctx, log, defaultKey := m.ctx, m.log, m.opts.DefaultKey
	name := host.Name
	return func() tea.Msg {
		runner, err := dialHost(ctx, host, defaultKey, log)
		return connectedMsg{host: name, runner: runner, err: err}
	}
}

// processCommand fans a typed command out to every connected host.
func (m Model) processCommand(command string) (tea.Model, tea.Cmd) {
	command = strings.TrimSpace(command)
	if m.quitting || command == "" {
		return m, nil
	}
	if strings.EqualFold(command, "exit") {
		return m.beginShutdown()
	}

	m.appendLine(m.theme.echo.Render(">>> " + command))
	m.input.SetValue("")

	var cmds []tea.Cmd
	for _, host := range m.hosts {
		name := host.Name
		runner := m.runners[name]
		if runner == nil || m.status[name] == StatusDisconnected || m.status[name] == StatusConnecting {
			m.appendLine(m.renderPrompt(name) + m.theme.errorStyle.Render("Not connected, skipping command."))
			continue
		}
		m.status[name] = StatusRunning
		m.states[name] = ansi.NewState()
		cmds = append(cmds, m.startCommand(name, runner, command))
	}
	return m, tea.Batch(cmds...)
}

// startCommand launches the stream for one host and begins listening to its
// queue.
func (m Model) startCommand(host string, runner sshutil.Runner, command string) tea.Cmd {
	q := output.NewQueue()
	ctx := m.ctx
	width := m.remoteWidth()
	go func() {
		runner.Stream(ctx, command, width, true, q)
		q.PushEnd(ctx)
	}()
	return listenCmd(host, q)
}

// listenCmd waits for the next event on a host's queue.
func listenCmd(host string, q *output.Queue) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-q.Events()
		if !ok {
			return outputMsg{host: host, event: output.Event{Kind: output.KindEnd}, queue: q}
		}
		return outputMsg{host: host, event: ev, queue: q}
	}
}

// handleOutput appends one event's rendering and re-arms the listener.
func (m Model) handleOutput(msg outputMsg) (tea.Model, tea.Cmd) {
	switch msg.event.Kind {
	case output.KindEnd:
		if m.status[msg.host] == StatusRunning {
			m.status[msg.host] = StatusConnected
		}
		return m, nil
	case output.KindError:
		m.appendLine(m.renderPrompt(msg.host) + m.theme.errorStyle.Render(msg.event.Text))
	case output.KindLine:
		m.appendLine(m.renderPrompt(msg.host) + m.renderHostLine(msg.host, msg.event.Text))
	}
	return m, listenCmd(msg.host, msg.queue)
}

// beginShutdown closes every connection in the background, bounded per
// connection, then quits.
func (m Model) beginShutdown() (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	m.quitting = true
	m.appendLine(m.theme.status.Render("Exiting... Closing connections..."))

	runners := make([]sshutil.Runner, 0, len(m.runners))
	for name, runner := range m.runners {
		if m.status[name] == StatusRunning {
			m.appendLine(m.renderPrompt(name) + m.theme.status.Render("Command cancelled."))
		}
		m.status[name] = StatusClosing
		if runner != nil {
			runners = append(runners, runner)
		}
	}
	cancel := m.cancel

	return m, func() tea.Msg {
		cancel()
		done := make(chan struct{})
		go func() {
			for _, r := range runners {
				r.Close()
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(closeWait):
		}
		return closedMsg{}
	}
}

// startKeepalive pings the connection periodically until the session ends.
// Scripted runners in tests are not real connections and are skipped.
func (m Model) startKeepalive(runner sshutil.Runner) {
	client, ok := runner.(*sshutil.Client)
	if !ok {
		return
	}
	ctx := m.ctx
	go func() {
		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
					return
				}
			}
		}
	}()
}

// remoteWidth is what remains of the terminal after the prompt column.
func (m Model) remoteWidth() int {
	width := m.width
	if width == 0 {
		width = 80
	}
	if w := width - m.maxNameLength - 3; w > minRemoteWidth {
		return w
	}
	return minRemoteWidth
}

// appendLine adds one rendered line to the scrollback, trimming when it
// grows past the cap.
func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > scrollbackMax {
		m.lines = append([]string(nil), m.lines[len(m.lines)-scrollbackKeep:]...)
	}
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}
