// Package pinning talks to the Pinata pinning API and its IPFS gateway.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/pendergraft/verichain/internal/observability/metrics"
)

// Defaults for the hosted Pinata service.
const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud/ipfs/"
)

// Errors returned by the client.
var (
	ErrNotConfigured   = errors.New("pinning service credentials not configured")
	ErrUnauthorized    = errors.New("pinning service rejected credentials")
	ErrUnavailable     = errors.New("pinning service unavailable")
	ErrInvalidResponse = errors.New("invalid response from pinning service")
	ErrInvalidCID      = errors.New("invalid content identifier")
)

// Config configures the client.
type Config struct {
	APIURL     string
	GatewayURL string
	JWT        string
	Timeout    time.Duration
}

// Client pins JSON documents and reads them back through the gateway.
type Client struct {
	apiURL     string
	gatewayURL string
	jwt        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client. Missing URLs fall back to the hosted service.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultGatewayURL
	}
	if !strings.HasSuffix(cfg.GatewayURL, "/") {
		cfg.GatewayURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiURL:     strings.TrimSuffix(cfg.APIURL, "/"),
		gatewayURL: cfg.GatewayURL,
		jwt:        cfg.JWT,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Configured reports whether pinning credentials are present.
func (c *Client) Configured() bool {
	return c.jwt != ""
}

type pinRequest struct {
	Content  any         `json:"pinataContent"`
	Options  pinOptions  `json:"pinataOptions"`
	Metadata pinMetadata `json:"pinataMetadata"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// PinJSON pins content as a CIDv1 JSON document under the given name hint
// and returns its CID.
func (c *Client) PinJSON(ctx context.Context, content any, name string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(pinRequest{
		Content:  content,
		Options:  pinOptions{CIDVersion: 1},
		Metadata: pinMetadata{Name: name},
	})
	if err != nil {
		return "", fmt.Errorf("encoding pin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	respBody, err := c.do(req, "pin")
	if err != nil {
		return "", err
	}

	var pr pinResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		metrics.PinningRequest("pin", "invalid")
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, err := cid.Decode(pr.IpfsHash); err != nil {
		metrics.PinningRequest("pin", "invalid")
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidResponse, pr.IpfsHash, err)
	}

	metrics.PinningRequest("pin", "ok")
	c.logger.Info("pinned document", "name", name, "cid", pr.IpfsHash, "size", pr.PinSize)
	return pr.IpfsHash, nil
}

// Fetch reads the raw content named by ref through the gateway.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if _, err := cid.Decode(ref); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+ref, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "fetch")
	if err != nil {
		return nil, err
	}
	metrics.PinningRequest("fetch", "ok")
	return body, nil
}

// FetchStudentProfile reads and validates a pinned student profile.
func (c *Client) FetchStudentProfile(ctx context.Context, ref string) (*StudentProfile, error) {
	body, err := c.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return ParseStudentProfile(body)
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.PinningRequest(op, "error")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.PinningRequest(op, "error")
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.PinningRequest(op, "unauthorized")
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		metrics.PinningRequest(op, "error")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		metrics.PinningRequest(op, "rejected")
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
