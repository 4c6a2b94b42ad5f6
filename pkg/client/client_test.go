package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verify" {
			t.Errorf("Expected path /api/v1/verify, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}

		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["documentHash"] != "0xabc" {
			t.Errorf("Expected documentHash 0xabc, got %s", body["documentHash"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"digest":   "0xabc",
			"outcome":  "confirmed",
			"verified": true,
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	res, err := client.Verify(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !res.Verified || res.Outcome != OutcomeConfirmed {
		t.Errorf("Verify() = %+v, want confirmed", res)
	}
}

func TestClient_VerifyDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("Expected octet-stream, got %s", ct)
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != "file bytes" {
			t.Errorf("Expected raw body, got %q", b)
		}
		json.NewEncoder(w).Encode(map[string]any{"outcome": "rejected"})
	}))
	defer server.Close()

	client := New(server.URL, "")
	res, err := client.VerifyDocument(context.Background(), []byte("file bytes"))
	if err != nil {
		t.Fatalf("VerifyDocument() error = %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Errorf("VerifyDocument().Outcome = %s, want rejected", res.Outcome)
	}
}

func TestClient_Issue_SendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/admin/credentials" {
			t.Errorf("Expected path /api/v1/admin/credentials, got %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("Expected X-API-Key test-key, got %s", r.Header.Get("X-API-Key"))
		}

		var req IssueRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.CredentialType != "DIPLOMA" {
			t.Errorf("Expected DIPLOMA, got %s", req.CredentialType)
		}

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "pending",
			"txHash": "0xfeed",
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	res, err := client.Issue(context.Background(), IssueRequest{
		StudentAddress: "0xbbbb",
		CredentialType: "DIPLOMA",
		DocumentHash:   "0x01",
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if res.Status != StatusPending || res.TxHash != "0xfeed" {
		t.Errorf("Issue() = %+v, want pending 0xfeed", res)
	}
}

func TestClient_ListTransactions_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("kind") != "revoke" || q.Get("limit") != "5" || q.Get("cursor") != "abc" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		if q.Has("status") {
			t.Errorf("Expected no status filter, got %s", q.Get("status"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "tx-1", "kind": "revoke", "status": "confirmed"},
			},
			"pagination": map[string]any{"hasMore": true, "nextCursor": "def"},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	resp, err := client.ListTransactions(context.Background(), TransactionQuery{Kind: "revoke", Limit: 5, Cursor: "abc"})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "tx-1" {
		t.Errorf("ListTransactions() data = %+v", resp.Data)
	}
	if !resp.Pagination.HasMore || resp.Pagination.NextCursor != "def" {
		t.Errorf("ListTransactions() pagination = %+v", resp.Pagination)
	}
}

func TestClient_StudentCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/admin/students/0xbbbb/credentials" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"title": "Diploma", "credentialType": "DIPLOMA", "active": false},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	creds, err := client.StudentCredentials(context.Background(), "0xbbbb")
	if err != nil {
		t.Fatalf("StudentCredentials() error = %v", err)
	}
	if len(creds) != 1 || creds[0].Active == nil || *creds[0].Active {
		t.Errorf("StudentCredentials() = %+v, want one revoked credential", creds)
	}
}

func TestClient_AwaitOutcome(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := OutcomePending
		if polls.Add(1) >= 3 {
			outcome = OutcomeConfirmed
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "s1",
			"state": map[string]any{"outcome": outcome},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	s, err := client.AwaitOutcome(context.Background(), "s1", time.Millisecond)
	if err != nil {
		t.Fatalf("AwaitOutcome() error = %v", err)
	}
	if s.State.Outcome != OutcomeConfirmed {
		t.Errorf("AwaitOutcome().State.Outcome = %s, want confirmed", s.State.Outcome)
	}
	if polls.Load() != 3 {
		t.Errorf("AwaitOutcome() polled %d times, want 3", polls.Load())
	}
}

func TestClient_DeleteVerifierSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/verifier/sessions/s1" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := New(server.URL, "").DeleteVerifierSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteVerifierSession() error = %v", err)
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "FORBIDDEN",
				"message": "Connected account is not the contract owner",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.Issue(context.Background(), IssueRequest{})
	if err == nil {
		t.Fatal("Expected error for 403 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.Code != "FORBIDDEN" || apiErr.Status != http.StatusForbidden {
		t.Errorf("Expected FORBIDDEN/403, got %s/%d", apiErr.Code, apiErr.Status)
	}
}

func TestClient_ErrorHandling_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "").Session(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.Code != "HTTP_502" {
		t.Errorf("Expected HTTP_502, got %s", apiErr.Code)
	}
}
