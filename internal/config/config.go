package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Default contract deployment the dashboard talks to when none is configured.
const DefaultContractAddress = "0x05ea136E2402FF0db77d24d0D07f60a6C0AECc94"

// Config holds all configuration for the server
type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Auth         AuthConfig
	Chain        ChainConfig
	Wallet       WalletConfig
	Pinning      PinningConfig
	Verification VerificationConfig
	Issuance     IssuanceConfig
	Metrics      MetricsConfig
	UI           UIConfig
	Logging      LoggingConfig
	RateLimit    RateLimitConfig
	Security     SecurityConfig
	Proxy        ProxyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Type string // "none" or "api-key"
}

// ChainConfig points at the credential registry contract.
// An empty RPCURL runs against the in-memory registry.
type ChainConfig struct {
	RPCURL          string
	ContractAddress string
	ConfirmTimeout  time.Duration
}

// WalletConfig selects the signing account.
type WalletConfig struct {
	Type           string // "keystore", "key", "address" or "none"
	KeystoreDir    string
	Account        string
	PassphraseFile string
	PrivateKey     string
	Address        string
	LockPath       string
	Connect        bool // request accounts at startup
}

// PinningConfig holds IPFS pinning service settings
type PinningConfig struct {
	APIURL     string
	GatewayURL string
	JWT        string
	Timeout    time.Duration
}

// VerificationConfig holds verifier session settings
type VerificationConfig struct {
	LookupTimeout time.Duration
	SessionTTL    time.Duration
	MaxSessions   int
}

// IssuanceConfig holds issuance settings
type IssuanceConfig struct {
	CredentialTypes []string
	// DevOwner is the contract owner of the in-memory registry.
	DevOwner string
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// UIConfig holds presentation defaults
type UIConfig struct {
	Theme string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	WritesPerMin   int
	CleanupMinutes int
}

// SecurityConfig holds request filtering settings
type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("SERVER_REQUEST_TIMEOUT", 30),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/verichain.db"),
			},
		},
		Auth: AuthConfig{
			Type: getEnv("AUTH_TYPE", "none"),
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("CHAIN_RPC_URL", ""),
			ContractAddress: getEnv("CONTRACT_ADDRESS", DefaultContractAddress),
			ConfirmTimeout:  getEnvDuration("CHAIN_CONFIRM_TIMEOUT", 2*time.Minute),
		},
		Wallet: WalletConfig{
			Type:           getEnv("WALLET_TYPE", ""),
			KeystoreDir:    getEnv("WALLET_KEYSTORE_DIR", ""),
			Account:        getEnv("WALLET_ACCOUNT", ""),
			PassphraseFile: getEnv("WALLET_PASSPHRASE_FILE", ""),
			PrivateKey:     getEnv("WALLET_PRIVATE_KEY", ""),
			Address:        getEnv("WALLET_ADDRESS", ""),
			LockPath:       getEnv("WALLET_LOCK_PATH", "./data/wallet.lock"),
			Connect:        getEnvBool("WALLET_CONNECT", true),
		},
		Pinning: PinningConfig{
			APIURL:     getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
			GatewayURL: getEnv("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs/"),
			JWT:        getEnv("PINATA_JWT", ""),
			Timeout:    getEnvDuration("PINATA_TIMEOUT", 30*time.Second),
		},
		Verification: VerificationConfig{
			LookupTimeout: getEnvDuration("VERIFY_LOOKUP_TIMEOUT", 30*time.Second),
			SessionTTL:    getEnvDuration("VERIFY_SESSION_TTL", 30*time.Minute),
			MaxSessions:   getEnvInt("VERIFY_MAX_SESSIONS", 10000),
		},
		Issuance: IssuanceConfig{
			CredentialTypes: getEnvStringSlice("CREDENTIAL_TYPES", []string{"STUDENT_ID", "DIPLOMA", "TRANSCRIPT"}),
			DevOwner:        getEnv("DEV_REGISTRY_OWNER", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		UI: UIConfig{
			Theme: getEnv("UI_THEME", "dark"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			WritesPerMin:   getEnvInt("RATE_LIMIT_WRITES_PER_MIN", 0),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: getEnvInt("SECURITY_MAX_BODY_SIZE_MB", 25),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	// Pick a wallet from whatever credentials were supplied
	if cfg.Wallet.Type == "" {
		switch {
		case cfg.Wallet.KeystoreDir != "":
			cfg.Wallet.Type = "keystore"
		case cfg.Wallet.PrivateKey != "":
			cfg.Wallet.Type = "key"
		case cfg.Wallet.Address != "":
			cfg.Wallet.Type = "address"
		default:
			cfg.Wallet.Type = "none"
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or bare seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
