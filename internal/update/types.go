package update

import (
	"context"
	"time"

	"github.com/InstaWP/iwp-mu/internal/types"
)

// UpdateInfo describes the outcome of a remote version check
type UpdateInfo struct {
	Available      bool   `json:"available" yaml:"available"`
	CurrentVersion string `json:"current_version" yaml:"current_version"`
	// RemoteVersion falls back to CurrentVersion when the check failed.
	RemoteVersion string `json:"remote_version" yaml:"remote_version"`
	MarkerURL     string `json:"marker_url" yaml:"marker_url"`
}

// Result describes one pass through the update pipeline
type Result struct {
	Stage         types.Stage `json:"stage" yaml:"stage"`
	FromVersion   string      `json:"from_version" yaml:"from_version"`
	ToVersion     string      `json:"to_version,omitempty" yaml:"to_version,omitempty"`
	Checked       bool        `json:"checked" yaml:"checked"`
	StartedAt     time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time   `json:"finished_at" yaml:"finished_at"`
	Error         string      `json:"error,omitempty" yaml:"error,omitempty"`
	CleanupErrors []string    `json:"cleanup_errors,omitempty" yaml:"cleanup_errors,omitempty"`
}

// Updated reports whether the install directory now holds the new version.
func (r *Result) Updated() bool {
	return r.Stage == types.StageSuccess
}

// Checker checks for available updates
type Checker interface {
	CheckForUpdate(ctx context.Context, currentVersion string) (*UpdateInfo, error)
}

// Fetcher downloads release archives into a scratch directory
type Fetcher interface {
	Fetch(ctx context.Context, url, scratchDir string) (string, error)
}

// Unpacker extracts an archive and returns the payload root inside it
type Unpacker interface {
	Extract(artifactPath, scratchDir string) (string, error)
}
