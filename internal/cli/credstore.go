package cli

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credentials stores API keys per server
type Credentials struct {
	Servers map[string]ServerCredential `yaml:"servers"`
}

// ServerCredential is the key saved for one server.
type ServerCredential struct {
	APIKey string `yaml:"api_key"`
	// Name labels the key, e.g. "registrar office".
	Name    string    `yaml:"name,omitempty"`
	SavedAt time.Time `yaml:"saved_at,omitempty"`
}

// serverKey is the form server URLs are stored under, so that
// "http://host:8080/" and "http://host:8080" share a credential.
func serverKey(serverURL string) string {
	return strings.TrimRight(strings.TrimSpace(serverURL), "/")
}

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".verichain"
	}
	return filepath.Join(home, ".verichain")
}

func credentialsFilePath() string {
	return filepath.Join(credentialsDir(), "credentials")
}

// loadCredentials reads the credentials file. A missing file is reported
// with an os.IsNotExist error.
func loadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(credentialsFilePath())
	if err != nil {
		return nil, err
	}

	creds := &Credentials{}
	if err := yaml.Unmarshal(data, creds); err != nil {
		return nil, err
	}
	if creds.Servers == nil {
		creds.Servers = make(map[string]ServerCredential)
	}
	return creds, nil
}

// loadCredentialsOrEmpty treats a missing file as no credentials.
func loadCredentialsOrEmpty() (*Credentials, error) {
	creds, err := loadCredentials()
	if os.IsNotExist(err) {
		return &Credentials{Servers: make(map[string]ServerCredential)}, nil
	}
	return creds, err
}

func writeCredentials(creds *Credentials) error {
	if err := os.MkdirAll(credentialsDir(), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(credentialsFilePath(), data, 0600)
}

func saveCredential(serverURL, apiKey string) error {
	return storeCredential(serverURL, ServerCredential{APIKey: apiKey})
}

func storeCredential(serverURL string, cred ServerCredential) error {
	creds, err := loadCredentialsOrEmpty()
	if err != nil {
		return err
	}
	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now().UTC()
	}
	creds.Servers[serverKey(serverURL)] = cred
	return writeCredentials(creds)
}

// removeCredential reports whether a credential existed for serverURL.
func removeCredential(serverURL string) (bool, error) {
	creds, err := loadCredentialsOrEmpty()
	if err != nil {
		return false, err
	}
	key := serverKey(serverURL)
	if _, ok := creds.Servers[key]; !ok {
		return false, nil
	}
	delete(creds.Servers, key)
	return true, writeCredentials(creds)
}

func getCredential(serverURL string) string {
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	return creds.Servers[serverKey(serverURL)].APIKey
}

// sortedServers returns the stored server URLs in a stable order.
func (c *Credentials) sortedServers() []string {
	servers := make([]string, 0, len(c.Servers))
	for s := range c.Servers {
		servers = append(servers, s)
	}
	sort.Strings(servers)
	return servers
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
