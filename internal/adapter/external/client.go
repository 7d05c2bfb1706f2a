// Package external holds HTTP clients for the collaborators the ledger
// calls out to: the item registry and the payout sink.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nft-marketplace/config"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
)

// Signed request headers.
const (
	HeaderMarketplaceAddress = "X-Marketplace-Address"
	HeaderTimestamp          = "X-Timestamp"
	HeaderSignature          = "X-Signature"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response from a collaborator.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// signedClient sends JSON requests signed as the marketplace operator.
type signedClient struct {
	baseURL    string
	basePath   string
	secret     string
	address    domain.Address
	sigSvc     ports.SignatureService
	httpClient HTTPClient
}

func newSignedClient(cfg config.EndpointConfig, address domain.Address, sigSvc ports.SignatureService, httpClient HTTPClient) (*signedClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &signedClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		basePath:   strings.TrimRight(u.EscapedPath(), "/"),
		secret:     cfg.Secret,
		address:    address,
		sigSvc:     sigSvc,
		httpClient: httpClient,
	}, nil
}

// do sends in (if non-nil) as the JSON body and decodes the response into
// out (if non-nil). The signature covers the full request path.
func (c *signedClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	ts := time.Now().Unix()
	canonical := c.sigSvc.BuildCanonicalString(method, c.basePath+path, ts, string(body))
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderMarketplaceAddress, c.address.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, c.sigSvc.Sign(c.secret, canonical))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s %s: %w", method, path, &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
