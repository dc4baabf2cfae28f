// Package sitestatus reads the hosting plan and remaining lifetime of the
// site from the InstaWP status API and caches it between requests.
package sitestatus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds one status API request.
const DefaultTimeout = 30 * time.Second

const responseLimit = 1 << 20

// Minutes is a minute count the API sends as either a number or a string.
type Minutes int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid minute count %s: %w", data, err)
	}
	*m = Minutes(f)
	return nil
}

// Status is the site's plan and time left.
type Status struct {
	Type          string  `json:"type" yaml:"type"`
	RemainingMins Minutes `json:"remaining_mins" yaml:"remaining_mins"`
	CurrentStatus string  `json:"current_status" yaml:"current_status"`
	// RemainingSecs is derived from RemainingMins when fetched and counts
	// down between fetches.
	RemainingSecs int64 `json:"remaining_secs" yaml:"remaining_secs"`
}

// TimeLeft breaks the remaining seconds down for display
func (s Status) TimeLeft() TimeLeft {
	return Breakdown(s.RemainingSecs)
}

// Fetcher reads the current status of a site
type Fetcher interface {
	Fetch(ctx context.Context, siteURL string) (Status, error)
}

// Client talks to the status API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. https://app.instawp.io/api/v2/).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

// WithHTTPClient replaces the HTTP client
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.client = client
	return c
}

// Domain strips the scheme from a site URL the way the API expects it.
func Domain(siteURL string) string {
	return strings.NewReplacer("https://", "", "http://", "").Replace(strings.TrimSpace(siteURL))
}

// Fetch requests the basic details of siteURL. A response without data
// yields a zero Status and no error.
func (c *Client) Fetch(ctx context.Context, siteURL string) (Status, error) {
	endpoint := c.baseURL + "sites/get-basic-details?domain=" + url.QueryEscape(Domain(siteURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("failed to fetch site status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("status API returned %d", resp.StatusCode)
	}

	var body struct {
		Data *Status `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseLimit)).Decode(&body); err != nil {
		return Status{}, fmt.Errorf("failed to decode site status: %w", err)
	}
	if body.Data == nil {
		return Status{}, nil
	}

	status := *body.Data
	status.RemainingSecs = int64(status.RemainingMins) * 60
	return status, nil
}
