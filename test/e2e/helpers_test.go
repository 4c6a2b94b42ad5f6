//go:build e2e

package e2e

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/verichain/internal/config"
	"github.com/pendergraft/verichain/internal/server"
	"github.com/pendergraft/verichain/internal/storage"
	"github.com/pendergraft/verichain/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// profileCID is the CID the fake pinning service hands out.
const profileCID = "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	Store             storage.Store
	Pinning           *fakePinning
	// Admin is the lowercase account of the server wallet, which owns the
	// registry.
	Admin string

	shutdown func()
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("verichain"),
		postgres.WithUsername("verichain"),
		postgres.WithPassword("verichain"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// fakePinning stands in for the pinning API and its gateway.
type fakePinning struct {
	*httptest.Server

	mu     sync.Mutex
	pinned map[string][]byte
}

func newFakePinning() *fakePinning {
	f := &fakePinning{pinned: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /pinning/pinJSONToIPFS", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PinataContent json.RawMessage `json:"pinataContent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.pinned[profileCID] = req.PinataContent
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"IpfsHash":  profileCID,
			"PinSize":   len(req.PinataContent),
			"Timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("GET /ipfs/{cid}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.pinned[r.PathValue("cid")]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
	f.Server = httptest.NewServer(mux)
	return f
}

// startServerE starts the verichain server in-process against Postgres
// and the in-memory registry.
func startServerE(connString, pinningURL string) (*TestContext, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "verichain-e2e-")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Storage = config.StorageConfig{Type: "postgres", Postgres: config.PostgresConfig{URL: connString}}
	cfg.Auth.Type = "api-key"
	cfg.Chain.RPCURL = ""
	cfg.Wallet.Type = "key"
	cfg.Wallet.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key))
	cfg.Wallet.LockPath = filepath.Join(dir, "wallet.lock")
	cfg.Pinning.APIURL = pinningURL
	cfg.Pinning.GatewayURL = pinningURL + "/ipfs/"
	cfg.Pinning.JWT = "e2e-jwt"
	cfg.RateLimit.Enabled = false
	cfg.Logging = config.LoggingConfig{Level: "debug", Format: "text"}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	sess, closeSess, err := server.OpenSession(context.Background(), cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open wallet session: %w", err)
	}

	srv := server.New(cfg, store, sess, logger)
	testServer := httptest.NewServer(srv.Handler())

	return &TestContext{
		TestServer: testServer,
		Store:      store,
		Admin:      strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
		shutdown: func() {
			testServer.Close()
			srv.Close()
			closeSess()
			_ = store.Close()
			_ = os.RemoveAll(dir)
		},
	}, nil
}

// newClient creates a new API client for the test server
func newClient(apiKey string) *client.Client {
	return client.New(testCtx.TestServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, name string) string {
	t.Helper()
	key, err := testCtx.Store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// adminClient returns a client carrying a fresh API key.
func adminClient(t *testing.T) *client.Client {
	t.Helper()
	return newClient(createTestAPIKey(t, t.Name()))
}

// uniqueDocument returns document bytes and their fingerprint, distinct per call.
func uniqueDocument(t *testing.T, label string) ([]byte, string) {
	t.Helper()
	doc := []byte(fmt.Sprintf("%s issued to %s at %d", label, t.Name(), time.Now().UnixNano()))
	sum := sha256.Sum256(doc)
	return doc, "0x" + hex.EncodeToString(sum[:])
}

// uniqueStudent returns a lowercase address not used by other tests.
func uniqueStudent(t *testing.T) string {
	t.Helper()
	sum := sha256.Sum256([]byte(t.Name() + time.Now().String()))
	return "0x" + hex.EncodeToString(sum[:20])
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}

func getJSON(t *testing.T, path string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, testCtx.TestServer.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}
