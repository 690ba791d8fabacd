// Package console is an interactive terminal for a running server: it
// follows logs/latest.log and sends typed commands through the screen
// session.
package console

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/KevinTCoughlin/spud/internal/management"
)

// Options wires the console to a server directory.
type Options struct {
	Controller   *management.Controller
	Orchestrator *management.Orchestrator
	Now          func() time.Time
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("130")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)
)

// maxLines bounds the scrollback kept in memory.
const maxLines = 5000

type cmdDoneMsg struct {
	input  string
	output string
	quit   bool
}

type model struct {
	viewport viewport.Model
	input    textinput.Model
	lines    []string
	history  []string
	histIdx  int
	opts     *Options
	width    int
	height   int
	ready    bool
	busy     bool
	ctx      context.Context
	cancel   context.CancelFunc
	logPath  string
}

func newModel(ctx context.Context, opts *Options) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("> ")
	ti.Focus()
	ti.CharLimit = 256

	ctx, cancel := context.WithCancel(ctx)
	return model{
		input:   ti,
		opts:    opts,
		histIdx: -1,
		ctx:     ctx,
		cancel:  cancel,
		logPath: filepath.Join(opts.Controller.Config().ServerDir, "logs", "latest.log"),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tailLog(m.ctx, m.logPath))
}

func (m *model) appendLines(lines ...string) {
	m.lines = append(m.lines, lines...)
	if over := len(m.lines) - maxLines; over > 0 {
		m.lines = m.lines[over:]
	}
	if m.ready {
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Title, input and status bar take one line each.
		viewHeight := max(1, m.height-3)
		if !m.ready {
			m.viewport = viewport.New(m.width, viewHeight)
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewHeight
		}
		m.input.Width = m.width - 4

	case logLineMsg:
		m.appendLines(msg.line)
		cmds = append(cmds, nextLogLine(m.ctx, m.logPath, msg.offset))

	case cmdDoneMsg:
		m.busy = false
		if msg.quit {
			m.cancel()
			return m, tea.Quit
		}
		if msg.output == clearSentinel {
			m.lines = nil
			if m.ready {
				m.viewport.SetContent("")
			}
			break
		}
		m.appendLines(promptStyle.Render("> ") + msg.input)
		if msg.output != "" {
			m.appendLines(strings.Split(msg.output, "\n")...)
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			return m, tea.Quit

		case tea.KeyEnter:
			if m.busy {
				break
			}
			input := m.input.Value()
			m.input.SetValue("")
			if strings.TrimSpace(input) == "" {
				break
			}
			m.history = append(m.history, input)
			m.histIdx = len(m.history)
			m.busy = true
			cmds = append(cmds, m.run(input))

		case tea.KeyUp:
			if len(m.history) > 0 && m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}

		case tea.KeyDown:
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else if m.histIdx == len(m.history)-1 {
				m.histIdx = len(m.history)
				m.input.SetValue("")
			}

		case tea.KeyPgUp, tea.KeyPgDown:
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			cmds = append(cmds, vpCmd)
		}
	}

	var tiCmd tea.Cmd
	m.input, tiCmd = m.input.Update(msg)
	cmds = append(cmds, tiCmd)
	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	cfg := m.opts.Controller.Config()
	title := titleStyle.Render(" spud: " + cfg.WorldName + " ")
	status := statusBarStyle.Render(fmt.Sprintf(" %s | Ctrl+C to exit | PgUp/PgDn to scroll", cfg.ServerDir))
	if m.busy {
		status = statusBarStyle.Render(" working...")
	}
	titleBar := title + strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)))

	return fmt.Sprintf("%s\n%s\n%s\n%s", titleBar, m.viewport.View(), m.input.View(), status)
}

func (m model) run(input string) tea.Cmd {
	ctx, opts := m.ctx, m.opts
	return func() tea.Msg {
		output, quit := dispatch(ctx, input, opts)
		return cmdDoneMsg{input: input, output: output, quit: quit}
	}
}

// Run shows the console until the user leaves it or ctx ends.
func Run(ctx context.Context, opts *Options) error {
	p := tea.NewProgram(
		newModel(ctx, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
