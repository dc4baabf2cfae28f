package update

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const mainFileHeader = `<?php
/**
 * Plugin Name: InstaWP MU
 * Description: Helper plugin
 * Version: %s
 * Author: InstaWP
 */
`

func sprintfHeader(version string) string {
	return fmt.Sprintf(mainFileHeader, version)
}

func newMarkerServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/InstaWP/iwp-mu/raw/main/iwp-main.php" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testSource(serverURL string) Source {
	return Source{
		RepoURL:  serverURL + "/InstaWP/iwp-mu",
		Branch:   "main",
		MainFile: "iwp-main.php",
	}
}

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantOK  bool
	}{
		{name: "plugin header", content: " * Version: 1.0.2\n", want: "1.0.2", wantOK: true},
		{name: "case insensitive", content: "version:2.1.0", want: "2.1.0", wantOK: true},
		{name: "first match wins", content: "Version: 1.0.0\nVersion: 9.9.9", want: "1.0.0", wantOK: true},
		{name: "stops at whitespace", content: "Version: 1.0.3 beta", want: "1.0.3", wantOK: true},
		{name: "missing", content: "<?php echo 'hi';", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVersion([]byte(tt.content))
			if ok != tt.wantOK {
				t.Errorf("ExtractVersion() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkerChecker_CheckForUpdate(t *testing.T) {
	tests := []struct {
		name          string
		current       string
		remote        string
		wantAvailable bool
	}{
		{name: "newer remote", current: "1.0.1", remote: "1.0.2", wantAvailable: true},
		{name: "same version", current: "1.0.2", remote: "1.0.2", wantAvailable: false},
		{name: "older remote", current: "1.1.0", remote: "1.0.9", wantAvailable: false},
		{name: "numeric ordering", current: "1.9.0", remote: "1.10.0", wantAvailable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newMarkerServer(t, http.StatusOK, sprintfHeader(tt.remote))
			checker := NewMarkerChecker(testSource(server.URL), 5*time.Second)

			info, err := checker.CheckForUpdate(context.Background(), tt.current)
			if err != nil {
				t.Fatalf("CheckForUpdate() error = %v", err)
			}
			if info.Available != tt.wantAvailable {
				t.Errorf("Available = %v, want %v", info.Available, tt.wantAvailable)
			}
			if info.RemoteVersion != tt.remote {
				t.Errorf("RemoteVersion = %s, want %s", info.RemoteVersion, tt.remote)
			}
		})
	}
}

func TestMarkerChecker_FailSoft(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops"},
		{name: "not found", status: http.StatusNotFound, body: ""},
		{name: "no marker", status: http.StatusOK, body: "<?php // nothing here"},
		{name: "unparsable version", status: http.StatusOK, body: "Version: banana"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newMarkerServer(t, tt.status, tt.body)
			checker := NewMarkerChecker(testSource(server.URL), 5*time.Second)

			info, err := checker.CheckForUpdate(context.Background(), "1.0.1")
			if err == nil {
				t.Fatal("CheckForUpdate() expected error")
			}
			if !errors.Is(err, ErrNetwork) {
				t.Errorf("CheckForUpdate() error = %v, want ErrNetwork", err)
			}
			if info == nil {
				t.Fatal("CheckForUpdate() info = nil, want fallback info")
			}
			if info.Available {
				t.Error("Available = true on failure, want false")
			}
			if info.RemoteVersion != "1.0.1" {
				t.Errorf("RemoteVersion = %s, want fallback to current", info.RemoteVersion)
			}
		})
	}
}

func TestMarkerChecker_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	checker := NewMarkerChecker(testSource(url), time.Second)
	info, err := checker.CheckForUpdate(context.Background(), "1.0.1")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("CheckForUpdate() error = %v, want ErrNetwork", err)
	}
	if info.Available {
		t.Error("Available = true when unreachable, want false")
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := newHTTPClient(15 * time.Second)
	if client.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", client.Timeout)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
	}
	if transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = true, want TLS verification on")
	}
	if transport.TLSClientConfig.MinVersion < 0x0303 {
		t.Errorf("MinVersion = %x, want at least TLS 1.2", transport.TLSClientConfig.MinVersion)
	}
}
