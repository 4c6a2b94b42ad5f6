package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, DefaultContractAddress, cfg.Chain.ContractAddress)
	assert.Equal(t, "none", cfg.Wallet.Type)
	assert.Equal(t, 30*time.Second, cfg.Verification.LookupTimeout)
	assert.Equal(t, []string{"STUDENT_ID", "DIPLOMA", "TRANSCRIPT"}, cfg.Issuance.CredentialTypes)
	assert.Equal(t, "dark", cfg.UI.Theme)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/verichain")
	t.Setenv("WALLET_PRIVATE_KEY", "0x01")
	t.Setenv("VERIFY_LOOKUP_TIMEOUT", "5s")
	t.Setenv("PINATA_TIMEOUT", "12")
	t.Setenv("CREDENTIAL_TYPES", "DIPLOMA, ,TRANSCRIPT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "key", cfg.Wallet.Type)
	assert.Equal(t, 5*time.Second, cfg.Verification.LookupTimeout)
	assert.Equal(t, 12*time.Second, cfg.Pinning.Timeout)
	assert.Equal(t, []string{"DIPLOMA", "TRANSCRIPT"}, cfg.Issuance.CredentialTypes)
}

func TestGetEnvDuration_Invalid(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TIMEOUT", time.Minute))
}
