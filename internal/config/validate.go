package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/InstaWP/iwp-mu/internal/types"
)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
// It expects ApplyDefaults to have run.
func Validate(c *Config) error {
	var errors []string

	check := func(err error) {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	check(validateVersion(c.CurrentVersion))
	check(validateURL("repo_url", c.RepoURL, true))
	check(validateURL("status_api_url", c.StatusAPIURL, false))
	check(validatePluginDir(c.PluginDir))
	check(validateScratchDir(c.ScratchDir, c.PluginDir))
	check(validateMainFile(c.MainFile))
	check(validateBranch(c.Branch))

	for field, d := range map[string]types.Duration{
		"check_interval":   c.CheckInterval,
		"lock_ttl":         c.LockTTL,
		"check_timeout":    c.CheckTimeout,
		"download_timeout": c.DownloadTimeout,
		"status_cache_ttl": c.StatusCacheTTL,
	} {
		if d.Duration <= 0 {
			check(ValidationError{Field: field, Message: "must be a positive duration"})
		}
	}

	if c.MinArtifactSize <= 0 {
		check(ValidationError{Field: "min_artifact_size", Message: "must be greater than zero"})
	}

	for i, suffix := range c.ArchiveSuffixes {
		if strings.TrimSpace(suffix) == "" || strings.ContainsAny(suffix, `/\`) {
			check(ValidationError{
				Field:   fmt.Sprintf("archive_suffixes[%d]", i),
				Message: fmt.Sprintf("invalid suffix '%s'", suffix),
			})
		}
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		check(ValidationError{Field: "log.level", Message: err.Error()})
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateVersion(v string) error {
	// Optional: the installed main file's Version header takes precedence.
	if v == "" {
		return nil
	}
	if _, err := version.NewVersion(v); err != nil {
		return ValidationError{
			Field:   "current_version",
			Message: fmt.Sprintf("invalid version '%s'", v),
		}
	}
	return nil
}

func validateURL(field, raw string, required bool) error {
	if raw == "" {
		if required {
			return ValidationError{Field: field, Message: field + " is required"}
		}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ValidationError{Field: field, Message: fmt.Sprintf("invalid URL '%s'", raw)}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unsupported scheme '%s' (must be https or http)", u.Scheme),
		}
	}
	return nil
}

func validatePluginDir(dir string) error {
	if dir == "" {
		return ValidationError{Field: "plugin_dir", Message: "plugin_dir is required"}
	}
	if !filepath.IsAbs(dir) {
		return ValidationError{Field: "plugin_dir", Message: "plugin_dir must be an absolute path"}
	}
	if filepath.Clean(dir) == string(filepath.Separator) {
		return ValidationError{Field: "plugin_dir", Message: "plugin_dir cannot be the filesystem root"}
	}
	return nil
}

// validateScratchDir rejects a scratch directory at or below the plugin
// directory: backups of the plugin dir would otherwise contain themselves.
func validateScratchDir(scratch, plugin string) error {
	if scratch == "" || plugin == "" {
		return nil
	}
	scratchAbs, err := filepath.Abs(scratch)
	if err != nil {
		return ValidationError{Field: "scratch_dir", Message: fmt.Sprintf("invalid path '%s'", scratch)}
	}
	pluginAbs, err := filepath.Abs(plugin)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(pluginAbs, scratchAbs)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return ValidationError{
			Field:   "scratch_dir",
			Message: fmt.Sprintf("scratch_dir '%s' must not be inside plugin_dir '%s'", scratch, plugin),
		}
	}
	return nil
}

func validateMainFile(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ValidationError{
			Field:   "main_file",
			Message: fmt.Sprintf("invalid main file '%s' (must be a bare file name)", name),
		}
	}
	return nil
}

func validateBranch(branch string) error {
	if branch == "" || strings.ContainsAny(branch, " \t\n?#") || strings.Contains(branch, "..") {
		return ValidationError{
			Field:   "branch",
			Message: fmt.Sprintf("invalid branch '%s'", branch),
		}
	}
	return nil
}
