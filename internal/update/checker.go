package update

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"
)

// markerLimit caps how much of the marker file is read.
const markerLimit = 1 << 20

var versionHeader = regexp.MustCompile(`(?i)Version:\s*(\S+)`)

// MarkerChecker reads the Version header from the plugin's main file in
// the remote repository.
type MarkerChecker struct {
	source Source
	client *http.Client
}

// NewMarkerChecker creates a checker with TLS verification on and the
// given request timeout.
func NewMarkerChecker(source Source, timeout time.Duration) *MarkerChecker {
	return &MarkerChecker{
		source: source,
		client: newHTTPClient(timeout),
	}
}

// WithClient replaces the HTTP client
func (c *MarkerChecker) WithClient(client *http.Client) *MarkerChecker {
	c.client = client
	return c
}

// CheckForUpdate compares the remote version with currentVersion. It never
// reports an update on failure: the returned info is always usable and
// falls back to currentVersion, and the error wraps ErrNetwork.
func (c *MarkerChecker) CheckForUpdate(ctx context.Context, currentVersion string) (*UpdateInfo, error) {
	info := &UpdateInfo{
		CurrentVersion: NormalizeVersion(currentVersion),
		RemoteVersion:  NormalizeVersion(currentVersion),
		MarkerURL:      c.source.MarkerURL(),
	}

	remote, err := c.RemoteVersion(ctx)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	available, err := IsNewer(remote, currentVersion)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	info.RemoteVersion = NormalizeVersion(remote)
	info.Available = available

	log.WithFields(log.Fields{
		"version":        info.CurrentVersion,
		"remote_version": info.RemoteVersion,
		"available":      available,
	}).Debug("checked remote version")

	return info, nil
}

// RemoteVersion fetches the marker file and extracts its Version header
func (c *MarkerChecker) RemoteVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.source.MarkerURL(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch version marker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version marker returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, markerLimit))
	if err != nil {
		return "", fmt.Errorf("failed to read version marker: %w", err)
	}

	v, ok := ExtractVersion(body)
	if !ok {
		return "", fmt.Errorf("no Version header in %s", c.source.MarkerURL())
	}

	return v, nil
}

// ExtractVersion returns the first Version header token in content
func ExtractVersion(content []byte) (string, bool) {
	matches := versionHeader.FindSubmatch(content)
	if matches == nil {
		return "", false
	}
	return string(matches[1]), true
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
