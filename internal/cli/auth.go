package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/verichain/pkg/client"
)

func createAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API keys for VeriChain servers",
	}

	cmd.AddCommand(createAuthLoginCmd())
	cmd.AddCommand(createAuthLogoutCmd())
	cmd.AddCommand(createAuthStatusCmd())

	return cmd
}

func createAuthLoginCmd() *cobra.Command {
	var serverFlag, apiKeyFlag, nameFlag string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API key for a server",
		Long: `Check an API key against a VeriChain server and save it.

The key is stored in ~/.verichain/credentials (mode 0600). Admin and
student commands send it with every request to that server.

EXAMPLES:
  # Prompt for the key
  verichain auth login

  # A specific server, with a label
  verichain auth login --server https://verichain.example.edu --name registrar

  # Non-interactive
  verichain auth login --api-key $VERICHAIN_API_KEY
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(serverFlag, apiKeyFlag, nameFlag)
		},
	}

	cmd.Flags().StringVar(&serverFlag, "server", "", "server URL (default from config)")
	cmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "API key (prompts if not provided)")
	cmd.Flags().StringVar(&nameFlag, "name", "", "label for the saved key")

	return cmd
}

func createAuthLogoutCmd() *cobra.Command {
	var serverFlag string
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget a saved API key",
		Long: `Remove the saved API key for a server, or every saved key.

EXAMPLES:
  verichain auth logout
  verichain auth logout --server https://verichain.example.edu
  verichain auth logout --all
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(serverFlag, allFlag)
		},
	}

	cmd.Flags().StringVar(&serverFlag, "server", "", "server URL (default from config)")
	cmd.Flags().BoolVar(&allFlag, "all", false, "clear all credentials")

	return cmd
}

func createAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List servers with a saved API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus()
		},
	}
}

func runAuthLogin(serverURL, key, name string) error {
	if serverURL == "" {
		serverURL = getServer()
	}
	serverURL = serverKey(serverURL)

	if key == "" {
		var err error
		if key, err = readAPIKey(serverURL); err != nil {
			return err
		}
	}
	if key == "" {
		return errors.New("API key cannot be empty")
	}

	fmt.Printf("Checking key with %s...\n", serverURL)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	check, err := checkAPIKey(ctx, serverURL, key)
	if err != nil {
		return fmt.Errorf("failed to validate credentials: %w", err)
	}
	if !check.valid {
		return errors.New("invalid API key")
	}

	if err := storeCredential(serverURL, ServerCredential{APIKey: key, Name: name}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("✅ Authenticated to %s (key: %s)\n", serverURL, maskAPIKey(key))
	if s := check.session; s != nil && s.Connected {
		role := "student"
		if s.Admin {
			role = "admin"
		}
		fmt.Printf("   Wallet %s (%s)\n", s.Account, role)
	}
	fmt.Printf("   Credentials saved to %s\n", credentialsFilePath())
	return nil
}

// readAPIKey prompts without echo on a terminal and reads one line
// otherwise.
func readAPIKey(serverURL string) (string, error) {
	fmt.Printf("Enter API key for %s: ", serverURL)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runAuthLogout(serverURL string, all bool) error {
	if all {
		if err := os.Remove(credentialsFilePath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		fmt.Println("✅ All credentials cleared")
		return nil
	}

	if serverURL == "" {
		serverURL = getServer()
	}
	removed, err := removeCredential(serverURL)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	if !removed {
		fmt.Printf("No credentials found for %s\n", serverURL)
		return nil
	}

	fmt.Printf("✅ Logged out from %s\n", serverURL)
	return nil
}

func runAuthStatus() error {
	creds, err := loadCredentialsOrEmpty()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if len(creds.Servers) == 0 {
		fmt.Println("Not authenticated to any servers")
		fmt.Println("\nRun 'verichain auth login' to authenticate")
		return nil
	}

	if jsonOutput {
		masked := make(map[string]ServerCredential, len(creds.Servers))
		for s, c := range creds.Servers {
			c.APIKey = maskAPIKey(c.APIKey)
			masked[s] = c
		}
		return printJSON(masked)
	}

	rows := make([]table.Row, 0, len(creds.Servers))
	for _, s := range creds.sortedServers() {
		c := creds.Servers[s]
		rows = append(rows, table.Row{s, c.Name, maskAPIKey(c.APIKey), formatSavedAt(c.SavedAt)})
	}
	renderTable(os.Stdout, table.Row{"SERVER", "NAME", "KEY", "SAVED"}, rows)
	return nil
}

func formatSavedAt(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

type keyCheck struct {
	valid   bool
	session *client.SessionStatus
}

// checkAPIKey asks /api/v1/me, which sits behind the API key middleware.
// Only an UNAUTHORIZED answer rejects the key. WALLET_NOT_CONNECTED shares
// the 401 status but means the key got through.
func checkAPIKey(ctx context.Context, serverURL, key string) (keyCheck, error) {
	status, err := client.New(serverURL, key).Me(ctx)
	if err == nil {
		return keyCheck{valid: true, session: status}, nil
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return keyCheck{}, err
	}
	return keyCheck{valid: apiErr.Code != "UNAUTHORIZED"}, nil
}
