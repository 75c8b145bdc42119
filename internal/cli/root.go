// Package cli holds the teca command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"teca-cli/internal/config"
	"teca-cli/internal/display"
	"teca-cli/internal/tui"
)

// Execute runs the command line and exits non-zero on failure.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		display.Error(err.Error())
		stop()
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Without a subcommand it opens the
// interactive chat.
func NewRootCmd(version string) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:           "teca",
		Short:         "Chat with your town's assistant from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(profile, version)
		},
	}

	cmd.PersistentFlags().StringVar(&profile, "profile", "", "Config profile to use")

	cmd.AddCommand(newAskCmd(&profile))
	cmd.AddCommand(newMoreCmd(&profile))
	cmd.AddCommand(newHistoryCmd(&profile))
	cmd.AddCommand(newShowCmd(&profile))
	cmd.AddCommand(newExportCmd(&profile))
	cmd.AddCommand(newConfigCmd(&profile))
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}

func runInteractive(profile, version string) error {
	s, err := open(profile, true)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := tui.Options{
		Version: version,
		Config:  s.cfg,
		Logger:  s.logger,
	}
	// An unconfigured session still opens; the welcome screen says what
	// to set.
	if s.cfg.Validate() == nil {
		opts.Conversation = s.newConversation(s.baseGrammar())
		opts.LoadGrammar = s.resolveGrammar
	}

	s.logger.Info("interactive session started", "profile", config.ProfileName(profile))
	return tui.Run(opts)
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "teca %s\n", version)
		},
	}
}
