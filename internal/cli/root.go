package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pendergraft/verichain/pkg/client"
)

var (
	cfgFile    string
	server     string
	apiKey     string
	jsonOutput bool
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "verichain",
		Short:   "Blockchain credential issuance and verification CLI",
		Long:    `VeriChain is a CLI for issuing, listing and verifying academic credentials anchored on chain.`,
		Version: version,
		// main prints the error once.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: verichain.toml or vc.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	// Add subcommands
	rootCmd.AddCommand(createHashCmd())
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createIssueCmd())
	rootCmd.AddCommand(createRevokeCmd())
	rootCmd.AddCommand(createCredentialsCmd())
	rootCmd.AddCommand(createTransactionsCmd())
	rootCmd.AddCommand(createWhoamiCmd())
	rootCmd.AddCommand(createConnectCmd())
	rootCmd.AddCommand(createThemeCmd())
	rootCmd.AddCommand(createAuthCmd())
	rootCmd.AddCommand(createConfigCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func newClient() *client.Client {
	return client.New(getServer(), getAPIKey())
}

// getServer returns the server URL from flag, env, config file, or global config
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("VERICHAIN_SERVER"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Global config (~/.verichain/config.yaml)
	if global, err := loadGlobalConfig(); err == nil && global.Server != "" {
		return global.Server
	}

	// 5. Default
	return "http://localhost:8080"
}

// getAPIKey returns the API key from flag, env, or credentials file
func getAPIKey() string {
	// 1. Command line flag
	if apiKey != "" {
		return apiKey
	}

	// 2. Environment variable
	if env := os.Getenv("VERICHAIN_API_KEY"); env != "" {
		return env
	}

	// 3. Credentials file (keyed by server URL)
	serverURL := getServer()
	if cred := getCredential(serverURL); cred != "" {
		return cred
	}

	return ""
}
