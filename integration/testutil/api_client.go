//go:build integration

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// APIClient drives a running zapstats server over HTTP
type APIClient struct {
	t       *testing.T
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for the given API address
func NewAPIClient(t *testing.T, addr string) *APIClient {
	// Use a transport that doesn't keep connections alive to avoid goroutine leaks
	transport := &http.Transport{
		DisableKeepAlives: true,
	}
	t.Cleanup(func() {
		transport.CloseIdleConnections()
	})

	return &APIClient{
		t:       t,
		baseURL: "http://" + addr,
		client:  &http.Client{Transport: transport, Timeout: ShortTimeout},
	}
}

// TrackRequest is the body of POST /api/track
type TrackRequest struct {
	URL       string `json:"url"`
	Referrer  string `json:"referrer,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UTMSource string `json:"utm_source,omitempty"`
}

// TrackResponse is the body returned by POST /api/track
type TrackResponse struct {
	IsUnique  bool   `json:"is_unique"`
	PageCount *int64 `json:"page_count"`
}

// ActiveResponse is the body returned by GET /api/active
type ActiveResponse struct {
	Count *int64 `json:"count"`
}

// Track posts a pageview as if sent by a browser at ip with user agent ua.
func (c *APIClient) Track(ip, ua string, req TrackRequest) (int, *TrackResponse) {
	c.t.Helper()

	body, err := json.Marshal(req)
	require.NoError(c.t, err)

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/track", bytes.NewReader(body))
	require.NoError(c.t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Forwarded-For", ip)
	httpReq.Header.Set("User-Agent", ua)

	resp, err := c.client.Do(httpReq)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return resp.StatusCode, nil
	}
	var out TrackResponse
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, &out
}

// Active fetches the live visitor count.
func (c *APIClient) Active() *ActiveResponse {
	c.t.Helper()

	resp, err := c.client.Get(c.baseURL + "/api/active")
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	var out ActiveResponse
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return &out
}

// Ready reports whether the debug server's readiness probe passes.
func Ready(t *testing.T, debugAddr string) bool {
	t.Helper()
	client := &http.Client{Timeout: ShortTimeout, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + debugAddr + "/ready")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
