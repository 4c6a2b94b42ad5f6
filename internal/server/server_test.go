package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/verichain/internal/config"
	"github.com/pendergraft/verichain/internal/fingerprint"
	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/ledger/evm"
	"github.com/pendergraft/verichain/internal/session"
	"github.com/pendergraft/verichain/internal/storage"
	"github.com/pendergraft/verichain/internal/wallet"
)

const student = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb0002"

type testServer struct {
	*httptest.Server
	store storage.Store
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Chain.RPCURL = ""
	cfg.Wallet.Type = "key"
	cfg.Wallet.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key))
	cfg.Wallet.LockPath = filepath.Join(dir, "wallet.lock")
	cfg.RateLimit.Enabled = false
	cfg.Auth.Type = "none"
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "verichain.db"), logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	sess, closeSess, err := OpenSession(context.Background(), cfg, logger)
	require.NoError(t, err)

	srv := New(cfg, store, sess, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		closeSess()
		_ = store.Close()
	})
	return &testServer{Server: ts, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		resp, _ := ts.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestSessionStatus_KeyWalletOwnsDevRegistry(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/session", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, true, body["admin"])
	assert.Equal(t, "dark", body["theme"])
	assert.Len(t, body["views"], 3)
}

func TestIssueThenVerify(t *testing.T) {
	ts := newTestServer(t, nil)
	doc := []byte("transcript for term 1")
	hash := fingerprint.Compute(doc).String()

	resp, body := ts.do(t, http.MethodPost, "/api/v1/admin/credentials", mustJSON(t, map[string]string{
		"studentAddress": student,
		"credentialType": "TRANSCRIPT",
		"documentHash":   hash,
	}), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "confirmed", body["status"])
	assert.NotEmpty(t, body["txHash"])

	resp, body = ts.do(t, http.MethodPost, "/api/v1/verify/document", doc, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])
	assert.Equal(t, "confirmed", body["outcome"])

	resp, body = ts.do(t, http.MethodPost, "/api/v1/verify", mustJSON(t, map[string]string{
		"documentHash": fingerprint.Compute([]byte("tampered")).String(),
	}), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rejected", body["outcome"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/admin/transactions", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	assert.Equal(t, "confirmed", data[0].(map[string]any)["status"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/admin/students/"+student+"/credentials", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	creds, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, creds, 1)
	assert.Equal(t, "Transcript", creds[0].(map[string]any)["title"])
}

func TestMyCredentials_EmptyForAdmin(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/me/credentials", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "You have no active credentials.", body["message"])
}

func TestTheme(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPut, "/api/v1/session/theme", mustJSON(t, ThemeRequest{Theme: "Light"}), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "light", body["theme"])

	resp, body = ts.do(t, http.MethodPost, "/api/v1/session/theme/toggle", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dark", body["theme"])

	resp, _ = ts.do(t, http.MethodPut, "/api/v1/session/theme", mustJSON(t, ThemeRequest{Theme: "sepia"}), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWatchOnlyWalletIsNotAdmin(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Wallet.Type = "address"
		cfg.Wallet.Address = student
		cfg.Issuance.DevOwner = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa0001"
	})

	_, body := ts.do(t, http.MethodGet, "/api/v1/session", nil, nil)
	assert.Equal(t, false, body["admin"])

	resp, body := ts.do(t, http.MethodPost, "/api/v1/admin/credentials", mustJSON(t, map[string]string{
		"studentAddress": student,
		"credentialType": "DIPLOMA",
		"documentHash":   fingerprint.Compute([]byte("x")).String(),
	}), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["error"].(map[string]any)["code"])
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Type = "api-key"
	})

	// The verifier stays public.
	resp, _ := ts.do(t, http.MethodPost, "/api/v1/verify/document", []byte("anything"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/admin/transactions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	key, err := ts.store.CreateAPIKey(context.Background(), "ops")
	require.NoError(t, err)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/admin/transactions", nil, map[string]string{"X-API-Key": key})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReady_RefreshesOwner(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	provider, err := wallet.NewKey(hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	reg := ledger.NewRegistry(crypto.PubkeyToAddress(key.PublicKey).Hex())

	sess, err := session.Open(ctx, session.Options{
		Provider: provider,
		Bind: func(ctx context.Context, account string, transactor evm.TransactorFunc) (ledger.Ledger, error) {
			return reg.As(account), nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.RateLimit.Enabled = false
	cfg.Auth.Type = "none"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "verichain.db"), logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	srv := New(cfg, store, sess, logger)
	ts := &testServer{Server: httptest.NewServer(srv.Handler()), store: store}
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		_ = store.Close()
	})

	_, body := ts.do(t, http.MethodGet, "/api/v1/session", nil, nil)
	assert.Equal(t, true, body["admin"])

	reg.TransferOwnership(student)
	_, body = ts.do(t, http.MethodGet, "/api/v1/session", nil, nil)
	assert.Equal(t, true, body["admin"], "role is cached until the owner is re-read")

	resp, _ := ts.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = ts.do(t, http.MethodGet, "/api/v1/session", nil, nil)
	assert.Equal(t, false, body["admin"])
	assert.Equal(t, student, body["owner"])
}
