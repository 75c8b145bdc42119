package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"teca-cli/internal/calendar"
	"teca-cli/internal/display"
	"teca-cli/internal/events"
	"teca-cli/internal/store"
)

// ─── history ────────────────────────────────────────────────────────────────

func newHistoryCmd(profile *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(*profile, false)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.openStore()
			if err != nil {
				return err
			}
			convs, err := st.Conversations(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing conversations: %w", err)
			}

			display.Header(fmt.Sprintf("Conversations (%d)", len(convs)))
			if len(convs) == 0 {
				display.Warn("No conversations yet.")
				return nil
			}

			for _, c := range convs {
				title := c.Title
				if title == "" {
					title = display.Dim + "(untitled)" + display.Reset
				}
				fmt.Printf("\n  💬 %s%s%s\n", display.Bold, display.Truncate(title, 70), display.Reset)
				fmt.Printf("    %sID:%s       %s\n", display.Dim, display.Reset, c.ID)
				fmt.Printf("    %sUpdated:%s  %s\n", display.Dim, display.Reset, display.FormatTimestamp(c.UpdatedAt))
				fmt.Printf("    %sMessages:%s %d\n", display.Dim, display.Reset, c.Messages)
			}

			fmt.Println()
			fmt.Println(strings.Repeat("─", 80))
			fmt.Printf("  %sTip:%s Run %steca show <id>%s to read a conversation.\n\n",
				display.Dim, display.Reset, display.Cyan, display.Reset)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of conversations to list")
	return cmd
}

// ─── show ───────────────────────────────────────────────────────────────────

func newShowCmd(profile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation>",
		Short: "Print a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(*profile, false)
			if err != nil {
				return err
			}
			defer s.Close()

			conv, entries, err := loadConversation(cmd, s, args[0])
			if err != nil {
				return err
			}

			display.Header(display.Truncate(conv.Title, 70))
			display.Info("ID", conv.ID)
			if conv.City != "" {
				display.Info("City", conv.City)
			}
			display.Info("Created", display.FormatTimestamp(conv.CreatedAt))

			for _, e := range entries {
				fmt.Println()
				switch {
				case e.Role == store.RoleUser:
					fmt.Printf("%s❯%s %s\n\n", display.Cyan, display.Reset, e.Content)
				case e.Reply != nil:
					printReply(e.Reply)
				default:
					fmt.Println(e.Content)
				}
			}
			return nil
		},
	}
}

func loadConversation(cmd *cobra.Command, s *session, id string) (*store.Conversation, []store.Entry, error) {
	st, err := s.openStore()
	if err != nil {
		return nil, nil, err
	}
	conv, err := st.Conversation(cmd.Context(), id)
	if err != nil {
		return nil, nil, fmt.Errorf("finding conversation %s: %w", id, err)
	}
	entries, err := st.Messages(cmd.Context(), conv.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading conversation: %w", err)
	}
	return conv, entries, nil
}

// ─── export-ics ─────────────────────────────────────────────────────────────

// storedEvents collects the events of every reply, oldest first.
func storedEvents(entries []store.Entry) []events.Record {
	var out []events.Record
	for _, e := range entries {
		if e.Reply != nil {
			out = append(out, e.Reply.Events...)
		}
	}
	return out
}

func newExportCmd(profile *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-ics <conversation>",
		Short: "Export a conversation's events as an iCalendar file",
		Example: `  teca export-ics 01J9Z -o agenda.ics
  teca export-ics 01J9Z > agenda.ics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(*profile, false)
			if err != nil {
				return err
			}
			defer s.Close()

			conv, entries, err := loadConversation(cmd, s, args[0])
			if err != nil {
				return err
			}
			recs := storedEvents(entries)
			if len(recs) == 0 {
				return fmt.Errorf("conversation %s has no events", conv.ID)
			}

			name := "Teca"
			if conv.City != "" {
				name = "Teca · " + conv.City
			}
			ics, err := calendar.Export(name, recs)
			if err != nil {
				return fmt.Errorf("building calendar: %w", err)
			}

			if output == "" || output == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), ics)
				return err
			}
			if err := os.WriteFile(output, []byte(ics), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			abs, err := filepath.Abs(output)
			if err != nil {
				abs = output
			}
			display.Success(fmt.Sprintf("%d events exported to %s", len(recs), abs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
