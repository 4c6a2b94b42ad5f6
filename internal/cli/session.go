package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/verichain/pkg/client"
)

func createWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the server's connected wallet and role",
		Long: `Show which account the server's wallet is connected with, the
contract owner, and the dashboards that account can use.

EXAMPLES:
  verichain whoami
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := newClient().Session(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read session: %w", err)
			}
			return printSession(status)
		},
	}

	return cmd
}

func createConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Ask the server to connect its wallet",
		Long: `Ask the server to request account access from its wallet.

The wallet may decline, in which case the session stays disconnected.

EXAMPLES:
  verichain connect
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := newClient().Connect(cmd.Context())
			if err != nil {
				return fmt.Errorf("connect failed: %w", err)
			}
			return printSession(status)
		},
	}

	return cmd
}

func createThemeCmd() *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:       "theme [dark|light|toggle]",
		Short:     "Show or change the display theme",
		ValidArgs: []string{"dark", "light", "toggle"},
		Long: `Show or change the display theme.

The theme is stored on the server session and mirrored to
~/.verichain/config.yaml, where it also styles this CLI's tables.

EXAMPLES:
  verichain theme
  verichain theme light
  verichain theme toggle
  verichain theme dark --local
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Println(localTheme())
				return nil
			}

			arg := strings.ToLower(args[0])
			var theme string
			switch {
			case localOnly && arg == "toggle":
				theme = toggleTheme(localTheme())
			case localOnly:
				theme = arg
			default:
				c := newClient()
				var err error
				if arg == "toggle" {
					theme, err = c.ToggleTheme(cmd.Context())
				} else {
					theme, err = c.SetTheme(cmd.Context(), arg)
				}
				if err != nil {
					return fmt.Errorf("failed to change theme: %w", err)
				}
			}

			if err := saveTheme(theme); err != nil {
				return fmt.Errorf("failed to save theme: %w", err)
			}
			fmt.Printf("Theme: %s\n", theme)
			return nil
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local", false, "only change the CLI's own theme")

	return cmd
}

func printSession(status *client.SessionStatus) error {
	if jsonOutput {
		return printJSON(status)
	}

	if !status.Connected {
		fmt.Println("Wallet not connected")
		fmt.Println("\nRun 'verichain connect' to request account access")
		return nil
	}

	role := "student"
	if status.Admin {
		role = "admin"
	}
	printField("Account", status.Account)
	printField("Owner", status.Owner)
	printField("Role", role)
	printField("Views", strings.Join(status.Views, ", "))
	printField("Theme", status.Theme)

	return nil
}

func toggleTheme(theme string) string {
	if theme == "light" {
		return "dark"
	}
	return "light"
}

// saveTheme records the theme in the global config, keeping its other keys.
func saveTheme(theme string) error {
	if theme != "dark" && theme != "light" {
		return fmt.Errorf("unknown theme %q (want dark or light)", theme)
	}
	cfg, err := loadGlobalConfig()
	if err != nil {
		cfg = &GlobalConfig{}
	}
	cfg.Theme = theme
	return saveGlobalConfig(cfg)
}
