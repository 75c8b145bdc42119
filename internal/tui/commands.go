package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"teca-cli/internal/calendar"
	"teca-cli/internal/events"
	"teca-cli/internal/turn"
)

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}
	if strings.HasPrefix(input, "/") {
		return m.dispatchCommand(input)
	}
	return m.cmdAsk(input)
}

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/new":
		return m.cmdNew()
	case "/more":
		return m.cmdMore()
	case "/export":
		return m.cmdExport(args)
	case "/config":
		return m.cmdConfig()
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		m.stopTurn()
		return m, tea.Quit
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown command: %s. Type /help", cmd)))
	}
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	lines := []tea.Cmd{
		tea.Println(""),
		tea.Println(dimStyle.Render("  Shortcuts:")),
		tea.Println(""),
		tea.Println("  " + pad(hintKeyStyle.Render("/new"), 30) + dimStyle.Render("Start a new conversation")),
		tea.Println("  " + pad(hintKeyStyle.Render("/more"), 30) + dimStyle.Render("Show more events for the last question")),
		tea.Println("  " + pad(hintKeyStyle.Render("/export <file.ics>"), 30) + dimStyle.Render("Export this conversation's events")),
		tea.Println("  " + pad(hintKeyStyle.Render("/config"), 30) + dimStyle.Render("Show current configuration")),
		tea.Println("  " + pad(hintKeyStyle.Render("/clear"), 30) + dimStyle.Render("Clear the screen")),
		tea.Println("  " + pad(hintKeyStyle.Render("/quit"), 30) + dimStyle.Render("Exit Teca")),
		tea.Println(""),
		tea.Println("  " + pad(hintKeyStyle.Render("Esc"), 30) + dimStyle.Render("Cancel a reply, or show it all at once")),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Or just type a question about your town.")),
		tea.Println(""),
	}
	return m, tea.Sequence(lines...)
}

// ─── Questions ──────────────────────────────────────────────────────────────

func (m model) cmdAsk(query string) (tea.Model, tea.Cmd) {
	if m.conv == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not configured. Run: teca config set server <url>"))
	}
	cmd := m.startTurn(turnAsk, query)
	return m, tea.Sequence(
		tea.Println(userPromptStyle.Render("❯ ")+query),
		cmd,
	)
}

// ─── /more ──────────────────────────────────────────────────────────────────

func (m model) cmdMore() (tea.Model, tea.Cmd) {
	if m.conv == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not configured. Run: teca config set server <url>"))
	}
	if !m.conv.CanSeeMore() {
		return m, tea.Println(warnMsgStyle.Render("  ! No hay más eventos pendientes."))
	}
	query := m.conv.LastQuery()
	cmd := m.startTurn(turnMore, query)
	return m, tea.Sequence(
		tea.Println(userPromptStyle.Render("❯ ")+dimStyle.Render("Ver más: "+query)),
		cmd,
	)
}

// ─── /new ───────────────────────────────────────────────────────────────────

func (m model) cmdNew() (tea.Model, tea.Cmd) {
	m.stopTurn()
	if m.conv != nil {
		m.conv.Reset()
	}
	return m, tea.Println(successMsgStyle.Render("  ✓ Nueva conversación"))
}

// ─── /export ────────────────────────────────────────────────────────────────

type exportResultMsg struct {
	path  string
	count int
	err   error
}

// conversationEvents collects every event shown so far, oldest first.
func conversationEvents(history []turn.Message) []events.Record {
	var out []events.Record
	for _, msg := range history {
		out = append(out, msg.Events...)
	}
	return out
}

func (m model) cmdExport(args []string) (tea.Model, tea.Cmd) {
	if m.conv == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ No conversation to export"))
	}
	recs := conversationEvents(m.conv.History())
	if len(recs) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Esta conversación no tiene eventos."))
	}
	path := "teca-eventos.ics"
	if len(args) > 0 {
		path = args[0]
	}
	name := "Teca"
	if m.cfg.City != "" {
		name = "Teca · " + m.cfg.City
	}
	return m, func() tea.Msg {
		ics, err := calendar.Export(name, recs)
		if err != nil {
			return exportResultMsg{path: path, err: err}
		}
		if err := os.WriteFile(path, []byte(ics), 0644); err != nil {
			return exportResultMsg{path: path, err: fmt.Errorf("writing %s: %w", path, err)}
		}
		return exportResultMsg{path: path, count: len(recs)}
	}
}

func (m model) handleExportResult(msg exportResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Export failed: %v", msg.err)))
	}
	abs, err := filepath.Abs(msg.path)
	if err != nil {
		abs = msg.path
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ %d eventos exportados a %s", msg.count, abs)))
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	lines := []tea.Cmd{tea.Println("")}
	for _, line := range configLines(m.cfg.Display(), "") {
		lines = append(lines, tea.Println("  "+line))
	}
	if m.conv != nil {
		lines = append(lines, tea.Println("  "+dimStyle.Render(fmt.Sprintf("%-22s", "conversation"))+" "+m.conv.ID()))
	}
	lines = append(lines, tea.Println(""))
	return m, tea.Sequence(lines...)
}

// configLines flattens the nested display map into sorted "key value" rows.
func configLines(values map[string]any, prefix string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		switch v := values[k].(type) {
		case map[string]any:
			lines = append(lines, configLines(v, prefix+k+".")...)
		case []string:
			lines = append(lines, dimStyle.Render(fmt.Sprintf("%-22s", prefix+k))+" "+strings.Join(v, ", "))
		default:
			lines = append(lines, dimStyle.Render(fmt.Sprintf("%-22s", prefix+k))+" "+fmt.Sprint(v))
		}
	}
	return lines
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	return m, tea.ClearScreen
}
