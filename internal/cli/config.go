package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"teca-cli/internal/config"
	"teca-cli/internal/display"
)

func newConfigCmd(profile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*profile)
			if err != nil {
				return err
			}
			display.Header(fmt.Sprintf("Configuration (%s)", config.ProfileName(*profile)))
			for _, kv := range flattenConfig(cfg.Display(), "") {
				display.Info(kv[0], kv[1])
			}
			fmt.Println()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration key",
		Long:  "Set a configuration key. Keys:\n  " + strings.Join(config.Keys(), "\n  "),
		Example: `  teca config set server https://teca.example.org
  teca config set stream.timeout 45s
  teca config set localities "villajoyosa, la vila joiosa"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*profile)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			value := args[1]
			if strings.EqualFold(args[0], "token") {
				value = cfg.Display()["token"].(string)
			}
			display.Success(fmt.Sprintf("%s set to %s", args[0], value))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "profiles",
		Short: "List configuration profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			display.Header("Profiles")
			if len(profiles) == 0 {
				display.Warn("No profiles saved yet.")
				return nil
			}
			active := config.ProfileName(*profile)
			for _, p := range profiles {
				marker := "  "
				if p == active {
					marker = display.Green + "● " + display.Reset
				}
				fmt.Printf("  %s%s\n", marker, p)
			}
			fmt.Println()
			return nil
		},
	})

	return cmd
}

// flattenConfig turns the nested display map into sorted dotted key/value
// pairs.
func flattenConfig(values map[string]any, prefix string) [][2]string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out [][2]string
	for _, k := range keys {
		switch v := values[k].(type) {
		case map[string]any:
			out = append(out, flattenConfig(v, prefix+k+".")...)
		case []string:
			out = append(out, [2]string{prefix + k, strings.Join(v, ", ")})
		default:
			out = append(out, [2]string{prefix + k, fmt.Sprint(v)})
		}
	}
	return out
}
