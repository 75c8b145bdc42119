package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"teca-cli/internal/config"
	"teca-cli/internal/conversation"
	"teca-cli/internal/grammar"
)

// Options wire the TUI to an open conversation.
type Options struct {
	Version      string
	Config       *config.Config
	Conversation *conversation.Conversation
	// LoadGrammar resolves the session's marker grammar. It runs in the
	// background; turns parse with the default grammar until it returns.
	LoadGrammar func(ctx context.Context) grammar.Grammar
	Logger      *slog.Logger
}

// Run launches the interactive TUI mode (inline).
func Run(opts Options) error {
	m := newModel(opts)

	p := tea.NewProgram(m)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
