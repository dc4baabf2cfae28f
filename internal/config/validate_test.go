package config

import (
	"strings"
	"testing"
	"time"

	"github.com/InstaWP/iwp-mu/internal/types"
)

func validConfig() *Config {
	cfg := &Config{
		CurrentVersion: "1.0.1",
		RepoURL:        "https://github.com/InstaWP/iwp-mu",
		PluginDir:      "/srv/mu-plugins/iwp-mu",
	}
	cfg.ApplyDefaults("/etc/iwp-mu")
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "current version is optional",
			mutate:  func(c *Config) { c.CurrentVersion = "" },
			wantErr: false,
		},
		{
			name:        "unparsable current version",
			mutate:      func(c *Config) { c.CurrentVersion = "latest" },
			wantErr:     true,
			errContains: "invalid version 'latest'",
		},
		{
			name:        "missing repo url",
			mutate:      func(c *Config) { c.RepoURL = "" },
			wantErr:     true,
			errContains: "repo_url is required",
		},
		{
			name:        "unsupported repo scheme",
			mutate:      func(c *Config) { c.RepoURL = "ftp://example.com/repo" },
			wantErr:     true,
			errContains: "unsupported scheme 'ftp'",
		},
		{
			name:        "relative plugin dir",
			mutate:      func(c *Config) { c.PluginDir = "mu-plugins/iwp-mu" },
			wantErr:     true,
			errContains: "must be an absolute path",
		},
		{
			name:        "root plugin dir",
			mutate:      func(c *Config) { c.PluginDir = "/" },
			wantErr:     true,
			errContains: "filesystem root",
		},
		{
			name:        "scratch dir equals plugin dir",
			mutate:      func(c *Config) { c.ScratchDir = "/srv/mu-plugins/iwp-mu" },
			wantErr:     true,
			errContains: "scratch_dir",
		},
		{
			name:        "scratch dir inside plugin dir",
			mutate:      func(c *Config) { c.ScratchDir = "/srv/mu-plugins/iwp-mu/tmp" },
			wantErr:     true,
			errContains: "must not be inside plugin_dir",
		},
		{
			name:    "scratch dir next to plugin dir",
			mutate:  func(c *Config) { c.ScratchDir = "/srv/mu-plugins/iwp-mu-scratch" },
			wantErr: false,
		},
		{
			name:    "plugin dir inside scratch dir",
			mutate:  func(c *Config) { c.ScratchDir = "/srv" },
			wantErr: false,
		},
		{
			name:        "main file with path",
			mutate:      func(c *Config) { c.MainFile = "../iwp-main.php" },
			wantErr:     true,
			errContains: "invalid main file",
		},
		{
			name:        "branch with spaces",
			mutate:      func(c *Config) { c.Branch = "my branch" },
			wantErr:     true,
			errContains: "invalid branch",
		},
		{
			name:        "negative lock ttl",
			mutate:      func(c *Config) { c.LockTTL = types.NewDuration(-time.Minute) },
			wantErr:     true,
			errContains: "lock_ttl: must be a positive duration",
		},
		{
			name:        "negative artifact size",
			mutate:      func(c *Config) { c.MinArtifactSize = -1 },
			wantErr:     true,
			errContains: "min_artifact_size",
		},
		{
			name:        "suffix with slash",
			mutate:      func(c *Config) { c.ArchiveSuffixes = []string{"-main", "a/b"} },
			wantErr:     true,
			errContains: "archive_suffixes[1]",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Log.Level = "loud" },
			wantErr:     true,
			errContains: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults("")

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() expected errors for empty config")
	}

	msg := err.Error()
	if !strings.HasPrefix(msg, "validation errors:") {
		t.Errorf("Validate() error = %q, want validation errors prefix", msg)
	}
	for _, field := range []string{"repo_url", "plugin_dir"} {
		if !strings.Contains(msg, field) {
			t.Errorf("Validate() error missing %s: %s", field, msg)
		}
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "branch", Message: "invalid branch ''"}
	if got := err.Error(); got != "branch: invalid branch ''" {
		t.Errorf("Error() = %q", got)
	}
}
