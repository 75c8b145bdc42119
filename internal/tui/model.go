package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"teca-cli/internal/config"
	"teca-cli/internal/conversation"
	"teca-cli/internal/reveal"
	"teca-cli/internal/stream"
	"teca-cli/internal/turn"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeStreaming
	modeRevealing
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/clear", "Clear the screen"},
	{"/config", "Show current configuration"},
	{"/export", "Export this conversation's events to an .ics file"},
	{"/help", "Show all commands"},
	{"/more", "Show more events for the last question"},
	{"/new", "Start a new conversation"},
	{"/quit", "Exit Teca"},
}

const defaultPlaceholder = "Pregunta algo o escribe /help..."

// ─── Model ──────────────────────────────────────────────────────────────────

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model

	// App state
	mode    appMode
	cfg     *config.Config
	conv    *conversation.Conversation
	opts    Options
	logger  *slog.Logger
	md      *glamour.TermRenderer
	version string

	// Active turn. gen identifies it; messages and ticks from any other
	// generation are stale.
	gen      uint64
	cancel   context.CancelFunc
	turnCh   <-chan tea.Msg
	received int
	state    stream.State
	attempt  int

	// Progressive disclosure of the finished reply
	reply          *turn.Message
	typer          *reveal.Typewriter
	sched          *reveal.Scheduler
	visible        int
	typingInterval time.Duration

	// UI state
	ready        bool
	cmdMenuIdx   int
	cmdMenuOpen  bool
	lastInputVal string

	// Command history
	history      []string
	historyIdx   int
	historySaved string
}

func newModel(opts Options) model {
	ti := textinput.New()
	ti.Placeholder = defaultPlaceholder
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorTeal)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorTeal)

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	step, cardInterval, typingInterval := reveal.DefaultStep, reveal.DefaultInterval, 15*time.Millisecond
	if cfg.Reveal.TypingStep > 0 {
		step = cfg.Reveal.TypingStep
	}
	if cfg.Reveal.CardInterval > 0 {
		cardInterval = cfg.Reveal.CardInterval
	}
	if cfg.Reveal.TypingInterval > 0 {
		typingInterval = cfg.Reveal.TypingInterval
	}

	return model{
		input:          ti,
		spinner:        sp,
		version:        opts.Version,
		cfg:            cfg,
		conv:           opts.Conversation,
		opts:           opts,
		logger:         logger,
		mode:           modeIdle,
		typer:          reveal.NewTypewriter(step),
		sched:          reveal.NewScheduler(cardInterval),
		typingInterval: typingInterval,
		history:        make([]string, 0),
		historyIdx:     -1,
	}
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		loadGrammar(m.opts.LoadGrammar),
	)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6
		m.md = newMarkdownRenderer(m.width)

		if !m.ready {
			m.ready = true
			welcome := renderWelcome(m.version, m.cfg.Server, m.cfg.City)
			cmds = append(cmds, tea.Println(welcome))
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.stopTurn()
			return m, tea.Quit

		case tea.KeyEsc:
			switch m.mode {
			case modeStreaming:
				m.stopTurn()
				return m, tea.Println(warnMsgStyle.Render("  ! Respuesta cancelada."))
			case modeRevealing:
				m.sched.Skip(time.Now())
				m.typer.Finish()
				return m, m.finishReveal()
			}
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyUp:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx--
						if m.cmdMenuIdx < 0 {
							m.cmdMenuIdx = len(matches) - 1
						}
						return m, nil
					}
				} else if len(m.history) > 0 {
					if m.historyIdx == -1 {
						m.historySaved = m.input.Value()
						m.historyIdx = len(m.history) - 1
					} else {
						m.historyIdx--
						if m.historyIdx < 0 {
							m.historyIdx = 0
						}
					}
					m.input.SetValue(m.history[m.historyIdx])
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyDown:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx++
						if m.cmdMenuIdx >= len(matches) {
							m.cmdMenuIdx = 0
						}
						return m, nil
					}
				} else if m.historyIdx != -1 {
					m.historyIdx++
					if m.historyIdx >= len(m.history) {
						m.historyIdx = -1
						m.input.SetValue(m.historySaved)
						m.historySaved = ""
					} else {
						m.input.SetValue(m.history[m.historyIdx])
					}
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyTab:
			if m.mode == modeIdle && m.cmdMenuOpen {
				matches := matchCommands(m.input.Value())
				if len(matches) > 0 {
					idx := m.cmdMenuIdx
					if idx < 0 || idx >= len(matches) {
						idx = 0
					}
					m.input.SetValue(matches[idx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
				}
				return m, nil
			}

		case tea.KeyEnter:
			if m.mode != modeIdle {
				return m, nil
			}
			if m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				// A complete command name runs directly.
				if m.cmdMenuIdx < len(matches) && matches[m.cmdMenuIdx].name != strings.TrimSpace(m.input.Value()) {
					m.input.SetValue(matches[m.cmdMenuIdx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
					return m, nil
				}
			}

			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}

			if len(m.history) == 0 || m.history[len(m.history)-1] != value {
				m.history = append(m.history, value)
				if len(m.history) > 1000 {
					m.history = m.history[len(m.history)-1000:]
				}
			}
			m.historyIdx = -1
			m.historySaved = ""

			m.input.SetValue("")
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0

			return m.dispatchInput(value)
		}

	// ── Turn messages ─────────────────────────────────────────────────
	case turnChunkMsg:
		if msg.gen != m.gen || m.mode != modeStreaming {
			return m, nil
		}
		if msg.first {
			m.received = 0
		}
		m.received += len(msg.text)
		return m, waitForTurn(m.turnCh)

	case turnStateMsg:
		if msg.gen != m.gen || m.mode != modeStreaming {
			return m, nil
		}
		m.state = msg.state
		m.attempt = msg.attempt
		return m, waitForTurn(m.turnCh)

	case turnDoneMsg:
		if msg.gen != m.gen || m.mode != modeStreaming {
			return m, nil
		}
		m.endStream()
		return m, m.startReveal(msg.msg)

	case turnErrMsg:
		if msg.gen != m.gen || m.mode != modeStreaming {
			return m, nil
		}
		m.endStream()
		if errors.Is(msg.err, stream.ErrAbandoned) || errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		return m, tea.Println(errorMsgStyle.Render("  ✗ " + describeTurnError(msg.err)))

	// ── Progressive disclosure ────────────────────────────────────────
	case typeTickMsg:
		if msg.gen != m.gen || m.mode != modeRevealing {
			return m, nil
		}
		if m.typer.Advance() {
			return m, typeTick(m.gen, m.typingInterval)
		}
		now := time.Now()
		m.sched.SetTypingComplete(now)
		m.visible = m.sched.Visible(now)
		return m, m.nextReveal(now)

	case revealTickMsg:
		if msg.gen != m.gen || m.mode != modeRevealing {
			return m, nil
		}
		now := time.Now()
		m.visible = m.sched.Visible(now)
		return m, m.nextReveal(now)

	case grammarLoadedMsg:
		if m.conv != nil {
			m.conv.UseGrammar(msg.grammar)
		}
		m.logger.Debug("marker grammar loaded", "max_initial_events", msg.grammar.MaxInitialEvents)
		return m, nil

	case exportResultMsg:
		return m.handleExportResult(msg)
	}

	// Update sub-components
	var cmd tea.Cmd

	if m.mode == modeIdle {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		if m.historyIdx != -1 {
			if m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
				m.historyIdx = -1
				m.historySaved = ""
			}
		}
		if strings.HasPrefix(newVal, "/") {
			m.cmdMenuOpen = true
			m.cmdMenuIdx = 0
		} else {
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0
		}
	}

	return m, tea.Batch(cmds...)
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: View() shows the reply being revealed, or the input prompt,
// plus hints. Finished output is printed above via tea.Println.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	switch m.mode {
	case modeStreaming:
		s.WriteString(m.spinner.View() + " " + statusStyle.Render(m.statusText()))
	case modeRevealing:
		s.WriteString(renderTyping(m.typer.Visible(), m.reply, m.visible, m.width))
	default:
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	sepWidth := min(m.width, maxContentWidth)
	if sepWidth < 20 {
		sepWidth = 20
	}
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	s.WriteString(m.renderHints())

	return s.String()
}

func (m model) statusText() string {
	var status string
	switch m.state {
	case stream.Streaming:
		status = "Recibiendo respuesta..."
		if m.received > 0 {
			status = fmt.Sprintf("Recibiendo respuesta... (%d bytes)", m.received)
		}
	case stream.Retrying:
		status = fmt.Sprintf("Reintentando (%d)...", m.attempt)
	default:
		status = "Pensando..."
	}
	return status
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	switch m.mode {
	case modeStreaming:
		return hintBarStyle.Render("  Esc cancelar")
	case modeRevealing:
		return hintBarStyle.Render("  Esc mostrar todo")
	}

	if m.cmdMenuOpen {
		matches := matchCommands(m.input.Value())
		if len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	return hintBarStyle.Render("  ? para ayuda")
}

// renderCommandMenu renders a vertical list of matching commands.
func (m model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		if len(c.name) > maxLen {
			maxLen = len(c.name)
		}
	}

	var lines []string
	for i, c := range matches {
		padded := c.name + strings.Repeat(" ", maxLen-len(c.name))

		var line string
		if i == m.cmdMenuIdx {
			line = "  " + cmdSelectedNameStyle.Render(padded) + "  " + cmdSelectedDescStyle.Render(c.desc)
		} else {
			line = "  " + cmdNameStyle.Render(padded) + "  " + cmdDescStyle.Render(c.desc)
		}
		lines = append(lines, line)
	}

	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// ─── Turn lifecycle ─────────────────────────────────────────────────────────

func (m *model) startTurn(kind turnKind, query string) tea.Cmd {
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mode = modeStreaming
	m.state = stream.Sending
	m.attempt = 0
	m.received = 0

	cmd, ch := beginTurn(ctx, m.conv, kind, query, m.gen)
	m.turnCh = ch
	return cmd
}

// endStream releases the stream without invalidating the generation.
func (m *model) endStream() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.turnCh = nil
	m.mode = modeIdle
	m.state = stream.Idle
}

// stopTurn abandons whatever turn is in flight or being revealed.
func (m *model) stopTurn() {
	m.endStream()
	m.gen++
	m.reply = nil
	m.visible = 0
}

func (m *model) startReveal(msg *turn.Message) tea.Cmd {
	now := time.Now()
	m.reply = msg
	m.mode = modeRevealing
	m.visible = 0
	m.typer = reveal.NewTypewriter(m.typer.Step)
	m.typer.Sync(msg.Text)
	m.sched.Sync(reveal.Key{MessageID: msg.ID, Text: msg.Text, Cards: len(msg.Cards())}, now)
	if m.typer.Done() {
		m.sched.SetTypingComplete(now)
		m.visible = m.sched.Visible(now)
		return m.nextReveal(now)
	}
	return typeTick(m.gen, m.typingInterval)
}

// nextReveal schedules the next card or, once everything is visible, prints
// the reply for good.
func (m *model) nextReveal(now time.Time) tea.Cmd {
	if wait, ok := m.sched.NextReveal(now); ok {
		return revealTick(m.gen, wait)
	}
	return m.finishReveal()
}

func (m *model) finishReveal() tea.Cmd {
	msg := m.reply
	m.gen++
	m.mode = modeIdle
	m.reply = nil
	m.visible = 0
	if msg == nil {
		return nil
	}
	return tea.Sequence(
		tea.Println(renderMessage(msg, m.md, m.width)),
		tea.Println(""),
	)
}

func describeTurnError(err error) string {
	var ex *stream.ExhaustedError
	if errors.As(err, &ex) {
		return fmt.Sprintf("No se pudo obtener respuesta tras %d intentos: %v", ex.Attempts, ex.Err)
	}
	return fmt.Sprintf("Error: %v", err)
}
