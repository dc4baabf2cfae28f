// Package config handles iwp-mu config parsing and location resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/InstaWP/iwp-mu/internal/types"
)

// Defaults applied to keys left unset in the config file.
const (
	DefaultBranch          = "main"
	DefaultMainFile        = "iwp-main.php"
	DefaultCheckInterval   = 24 * time.Hour
	DefaultLockTTL         = 5 * time.Minute
	DefaultCheckTimeout    = 15 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
	DefaultMinArtifactSize = 1000
	DefaultCompanionPlugin = "instawp-connect/instawp-connect.php"
	DefaultStatusAPIURL    = "https://app.instawp.io/api/v2/"
	DefaultStatusCacheTTL  = 30 * time.Minute
	DefaultLogLevel        = "info"
	DefaultLogFile         = "console"
	DefaultDatabaseName    = "iwp-mu.db"
)

// EnvConfig names the environment variable that points at a config file.
const EnvConfig = "IWP_MU_CONFIG"

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level,omitempty" toml:"level,omitempty" json:"level,omitempty"`
	File  string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"` // "console" writes to stderr
}

// Config is the parsed iwp-mu configuration.
type Config struct {
	// CurrentVersion is used when PluginDir's main file has no readable
	// Version header.
	CurrentVersion string `yaml:"current_version" toml:"current_version" json:"current_version"`
	// RepoURL is the repository hosting the plugin, e.g. https://github.com/InstaWP/iwp-mu
	RepoURL   string `yaml:"repo_url" toml:"repo_url" json:"repo_url"`
	Branch    string `yaml:"branch,omitempty" toml:"branch,omitempty" json:"branch,omitempty"`
	PluginDir string `yaml:"plugin_dir" toml:"plugin_dir" json:"plugin_dir"`
	MainFile  string `yaml:"main_file,omitempty" toml:"main_file,omitempty" json:"main_file,omitempty"`

	ScratchDir string `yaml:"scratch_dir,omitempty" toml:"scratch_dir,omitempty" json:"scratch_dir,omitempty"`
	Database   string `yaml:"database,omitempty" toml:"database,omitempty" json:"database,omitempty"`

	CheckInterval   types.Duration `yaml:"check_interval,omitempty" toml:"check_interval,omitempty" json:"check_interval,omitempty"`
	LockTTL         types.Duration `yaml:"lock_ttl,omitempty" toml:"lock_ttl,omitempty" json:"lock_ttl,omitempty"`
	CheckTimeout    types.Duration `yaml:"check_timeout,omitempty" toml:"check_timeout,omitempty" json:"check_timeout,omitempty"`
	DownloadTimeout types.Duration `yaml:"download_timeout,omitempty" toml:"download_timeout,omitempty" json:"download_timeout,omitempty"`
	MinArtifactSize int64          `yaml:"min_artifact_size,omitempty" toml:"min_artifact_size,omitempty" json:"min_artifact_size,omitempty"`
	ArchiveSuffixes []string       `yaml:"archive_suffixes,omitempty" toml:"archive_suffixes,omitempty" json:"archive_suffixes,omitempty"`

	CompanionPlugin string         `yaml:"companion_plugin,omitempty" toml:"companion_plugin,omitempty" json:"companion_plugin,omitempty"`
	StatusAPIURL    string         `yaml:"status_api_url,omitempty" toml:"status_api_url,omitempty" json:"status_api_url,omitempty"`
	SiteURL         string         `yaml:"site_url,omitempty" toml:"site_url,omitempty" json:"site_url,omitempty"`
	StatusCacheTTL  types.Duration `yaml:"status_cache_ttl,omitempty" toml:"status_cache_ttl,omitempty" json:"status_cache_ttl,omitempty"`

	Log LogConfig `yaml:"log,omitempty" toml:"log,omitempty" json:"log,omitempty"`
}

// ApplyDefaults fills unset keys. Database and ScratchDir default to
// locations derived from the config file's directory and the OS temp dir.
func (c *Config) ApplyDefaults(configDir string) {
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.MainFile == "" {
		c.MainFile = DefaultMainFile
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	if c.Database == "" {
		if configDir == "" {
			configDir = "."
		}
		c.Database = filepath.Join(configDir, DefaultDatabaseName)
	}
	if c.CheckInterval.IsZero() {
		c.CheckInterval = types.NewDuration(DefaultCheckInterval)
	}
	if c.LockTTL.IsZero() {
		c.LockTTL = types.NewDuration(DefaultLockTTL)
	}
	if c.CheckTimeout.IsZero() {
		c.CheckTimeout = types.NewDuration(DefaultCheckTimeout)
	}
	if c.DownloadTimeout.IsZero() {
		c.DownloadTimeout = types.NewDuration(DefaultDownloadTimeout)
	}
	if c.MinArtifactSize == 0 {
		c.MinArtifactSize = DefaultMinArtifactSize
	}
	if c.CompanionPlugin == "" {
		c.CompanionPlugin = DefaultCompanionPlugin
	}
	if c.StatusAPIURL == "" {
		c.StatusAPIURL = DefaultStatusAPIURL
	}
	if c.StatusCacheTTL.IsZero() {
		c.StatusCacheTTL = types.NewDuration(DefaultStatusCacheTTL)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.File == "" {
		c.Log.File = DefaultLogFile
	}
}

// Slug is the plugin directory name, used to locate the payload root
// inside release archives.
func (c *Config) Slug() string {
	return filepath.Base(filepath.Clean(c.PluginDir))
}

// FindConfig searches for a config file in the standard locations.
// Returns the path to the first config found, or an error if none exists.
func FindConfig(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, dir := range searchDirs() {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no iwp-mu config found in standard locations")
}

var fileNames = []string{
	"iwp-mu.yaml",
	"iwp-mu.yml",
	"iwp-mu.toml",
	"iwp-mu.json",
	"config.yaml",
	"config.yml",
	"config.toml",
	"config.json",
}

// searchDirs returns the config directories in order of precedence.
func searchDirs() []string {
	var dirs []string

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			xdgConfig = filepath.Join(home, ".config")
		}
	}
	if xdgConfig != "" {
		dirs = append(dirs, filepath.Join(xdgConfig, "iwp-mu"))
	}

	return append(dirs, "/etc/iwp-mu")
}

// DefaultPath is where `iwp-mu init` writes a new config.
func DefaultPath() (string, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine home directory: %w", err)
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "iwp-mu", "iwp-mu.yaml"), nil
}

// Load reads, parses, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	if abs, err := filepath.Abs(configDir); err == nil {
		configDir = abs
	}
	cfg.ApplyDefaults(configDir)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
