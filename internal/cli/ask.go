package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"teca-cli/internal/conversation"
	"teca-cli/internal/display"
	"teca-cli/internal/stream"
	"teca-cli/internal/turn"
)

// ─── ask ────────────────────────────────────────────────────────────────────

func newAskCmd(profile *string) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer",
		Example: `  teca ask "¿Qué hay este fin de semana?"
  teca ask "¿Y el domingo?" --conversation 01J9Z`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("empty question")
			}

			s, err := open(*profile, false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			g := s.resolveGrammar(ctx)

			var conv *conversation.Conversation
			if conversationID != "" {
				conv, err = s.restore(ctx, conversationID, g)
				if err != nil {
					return err
				}
			} else {
				conv = s.newConversation(g)
			}

			return runTurn(ctx, conv, query, func(ctx context.Context, h conversation.Hooks) (*turn.Message, error) {
				return conv.Ask(ctx, query, h)
			})
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue a stored conversation (id or prefix)")
	return cmd
}

// ─── more ───────────────────────────────────────────────────────────────────

func newMoreCmd(profile *string) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "more",
		Short: "Show more events for the last question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(*profile, false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			g := s.resolveGrammar(ctx)

			var conv *conversation.Conversation
			if conversationID != "" {
				conv, err = s.restore(ctx, conversationID, g)
			} else {
				conv, err = s.latest(ctx, g)
			}
			if err != nil {
				return err
			}

			if !conv.CanSeeMore() {
				display.Warn("No hay más eventos pendientes.")
				return nil
			}
			query := conv.LastQuery()
			return runTurn(ctx, conv, "Ver más: "+query, func(ctx context.Context, h conversation.Hooks) (*turn.Message, error) {
				return conv.SeeMore(ctx, query, h)
			})
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation to continue (default: the latest)")
	return cmd
}

// ─── Turn output ────────────────────────────────────────────────────────────

type turnFunc func(ctx context.Context, h conversation.Hooks) (*turn.Message, error)

// runTurn runs one turn with a status line and prints the reply.
func runTurn(ctx context.Context, conv *conversation.Conversation, label string, run turnFunc) error {
	fmt.Printf("\n %s── 🏛  Teca ─────────────────────────────────────────────────────────────%s\n", display.Dim, display.Reset)
	fmt.Println()
	fmt.Printf("    %sPregunta:%s     %s\n", display.Dim, display.Reset, label)
	fmt.Printf("    %sConversación:%s %s\n", display.Dim, display.Reset, conv.ID())
	fmt.Println()

	hooks := conversation.Hooks{
		OnState: func(st stream.State, attempt int) {
			display.ClearLine()
			if st == stream.Retrying {
				display.Spinner(fmt.Sprintf("%s (%d)", display.StateLabel(st), attempt))
				return
			}
			display.Spinner(display.StateLabel(st))
		},
	}

	msg, err := run(ctx, hooks)
	display.ClearLine()
	if err != nil {
		var ex *stream.ExhaustedError
		if errors.As(err, &ex) {
			return fmt.Errorf("no answer after %d attempts: %w", ex.Attempts, ex.Err)
		}
		return err
	}

	printReply(msg)

	fmt.Printf(" %s──────────────────────────────────────────────────────────────────────────%s\n", display.Dim, display.Reset)
	fmt.Printf("\n  %sTip:%s Run %steca ask -c %s \"...\"%s to follow up.\n\n",
		display.Dim, display.Reset, display.Cyan, conv.ID(), display.Reset)
	return nil
}

// printReply renders the answer text as markdown, then the cards.
func printReply(msg *turn.Message) {
	if text := strings.TrimSpace(msg.Text); text != "" {
		fmt.Println(renderMarkdown(text))
	}
	cards := *msg
	cards.Text = ""
	display.Message(&cards)
	fmt.Println()
}

func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
