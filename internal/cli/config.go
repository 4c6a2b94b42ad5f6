package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"verichain.toml", "vc.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server string          `toml:"server"`
	Issue  IssueConfigTOML `toml:"issue,omitempty"`
}

// IssueConfigTOML holds defaults for the issue command
type IssueConfigTOML struct {
	CredentialType string `toml:"credential_type,omitempty"`
}

// GlobalConfig is the per-user configuration (stored in ~/.verichain/config.yaml)
type GlobalConfig struct {
	Server string `yaml:"server,omitempty"`
	Theme  string `yaml:"theme,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var credentialType string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a verichain.toml configuration file in the current directory.

This file stores project-specific settings like the server URL and the
default credential type used by 'verichain issue'.

EXAMPLES:
  # Create config with default server
  verichain config init

  # Create config for a specific server
  verichain config init --server https://verichain.example.edu

  # Overwrite existing config
  verichain config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(serverURL, credentialType, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "server URL")
	cmd.Flags().StringVar(&credentialType, "type", "DIPLOMA", "default credential type for issue")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows the local project config (verichain.toml) and the global config from ~/.verichain/config.yaml.

EXAMPLES:
  verichain config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigInit(serverURL, credentialType string, force bool) error {
	configPath := "verichain.toml"

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", name)
		}
	}

	content := fmt.Sprintf(`# VeriChain project configuration

server = "%s"

[issue]
# One of STUDENT_ID, DIPLOMA, TRANSCRIPT, CERTIFICATE
credential_type = "%s"
`, serverURL, credentialType)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Server:          %s\n", serverURL)
	fmt.Printf("  Credential type: %s\n", credentialType)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run 'verichain auth login' to authenticate")
	fmt.Println("  2. Run 'verichain whoami' to check the connected wallet")
	fmt.Println("  3. Run 'verichain issue --student 0x... diploma.pdf' to issue")

	return nil
}

func runConfigShow() error {
	fmt.Println("Configuration sources (in order of precedence):")
	fmt.Println()

	fmt.Println("1. Command line flags")
	fmt.Println("   --server, --api-key, --config")
	fmt.Println()

	fmt.Println("2. Environment variables")
	serverEnv := os.Getenv("VERICHAIN_SERVER")
	keyEnv := os.Getenv("VERICHAIN_API_KEY")
	if serverEnv != "" {
		fmt.Printf("   VERICHAIN_SERVER=%s\n", serverEnv)
	} else {
		fmt.Println("   VERICHAIN_SERVER=(not set)")
	}
	if keyEnv != "" {
		fmt.Printf("   VERICHAIN_API_KEY=%s\n", maskAPIKey(keyEnv))
	} else {
		fmt.Println("   VERICHAIN_API_KEY=(not set)")
	}
	fmt.Println()

	fmt.Println("3. Local project config (verichain.toml or vc.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		fmt.Printf("   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Printf("   server: %s\n", projectConfig.Server)
		}
		if projectConfig.Issue.CredentialType != "" {
			fmt.Printf("   issue.credential_type: %s\n", projectConfig.Issue.CredentialType)
		}
	}
	fmt.Println()

	fmt.Println("4. Global config (~/.verichain/config.yaml)")
	globalConfig, err := loadGlobalConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		if globalConfig.Server != "" {
			fmt.Printf("   server: %s\n", globalConfig.Server)
		}
		if globalConfig.Theme != "" {
			fmt.Printf("   theme: %s\n", globalConfig.Theme)
		}
	}
	fmt.Println()

	fmt.Println("5. Credentials (~/.verichain/credentials)")
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else if len(creds.Servers) == 0 {
		fmt.Println("   (no credentials stored)")
	} else {
		for server, cred := range creds.Servers {
			fmt.Printf("   %s: %s\n", server, maskAPIKey(cred.APIKey))
		}
	}
	fmt.Println()

	fmt.Println("Effective configuration:")
	fmt.Printf("   Server:  %s\n", getServer())
	if key := getAPIKey(); key != "" {
		fmt.Printf("   API Key: %s\n", maskAPIKey(key))
	} else {
		fmt.Println("   API Key: (not set)")
	}
	fmt.Printf("   Theme:   %s\n", localTheme())

	return nil
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, nil
}

// loadProjectConfigSilent loads the project config without returning errors for missing files.
// Returns nil if the file doesn't exist, but reports parse failures on stderr.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}

func globalConfigPath() string {
	return filepath.Join(credentialsDir(), "config.yaml")
}

func loadGlobalConfig() (*GlobalConfig, error) {
	data, err := os.ReadFile(globalConfigPath())
	if err != nil {
		return nil, err
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", globalConfigPath(), err)
	}
	return &config, nil
}

func saveGlobalConfig(config *GlobalConfig) error {
	if err := os.MkdirAll(credentialsDir(), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(globalConfigPath(), data, 0600)
}
