// Package types provides type-safe constants shared by the iwp-mu packages.
//
// This package centralizes the enumerated values used by the update
// pipeline, the hook surface, and the configuration layer, replacing magic
// strings with typed constants that carry validation methods.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a state of the self-update pipeline.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageChecking        Stage = "checking"
	StageUpToDate        Stage = "up_to_date"
	StageUpdateAvailable Stage = "update_available"
	StageLocking         Stage = "locking"
	StageLockFailed      Stage = "lock_failed"
	StageLocked          Stage = "locked"
	StageFetching        Stage = "fetching"
	StageExtracting      Stage = "extracting"
	StageValidating      Stage = "validating"
	StageBackingUp       Stage = "backing_up"
	StageSyncing         Stage = "syncing"
	StageVerifying       Stage = "verifying"
	StageSuccess         Stage = "success"
	StageFailed          Stage = "failed"
	StageRollingBack     Stage = "rolling_back"
	StageRolledBack      Stage = "rolled_back"
	StageRollbackFailed  Stage = "rollback_failed"
)

// String returns the string representation of the Stage.
func (s Stage) String() string {
	return string(s)
}

// IsTerminal returns true if the pipeline stops in this stage.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageUpToDate, StageLockFailed, StageSuccess, StageFailed,
		StageRolledBack, StageRollbackFailed:
		return true
	}
	return false
}

// Mutates returns true if the install directory may have been touched
// by the time the pipeline reaches this stage.
func (s Stage) Mutates() bool {
	switch s {
	case StageSyncing, StageVerifying:
		return true
	}
	return false
}

// TriggerType is the kind of package an upgrader event refers to.
type TriggerType string

const (
	// TriggerPlugin is an event about one or more plugins.
	TriggerPlugin TriggerType = "plugin"
	// TriggerTheme is an event about themes; it never forces a check.
	TriggerTheme TriggerType = "theme"
	// TriggerCore is a WordPress core upgrade; it never forces a check.
	TriggerCore TriggerType = "core"
)

// Validate checks if the TriggerType is a valid value.
func (t TriggerType) Validate() error {
	switch t {
	case TriggerPlugin, TriggerTheme, TriggerCore:
		return nil
	case "":
		return fmt.Errorf("trigger type is required")
	default:
		return fmt.Errorf("invalid trigger type '%s' (must be plugin, theme, or core)", t)
	}
}

// String returns the string representation of the TriggerType.
func (t TriggerType) String() string {
	return string(t)
}

// ParseTriggerType parses a string into a TriggerType.
func ParseTriggerType(s string) (TriggerType, error) {
	tt := TriggerType(strings.ToLower(strings.TrimSpace(s)))
	if err := tt.Validate(); err != nil {
		return "", err
	}
	return tt, nil
}

// Duration is a time.Duration that reads and writes as "24h", "5m", "15s"
// in YAML, TOML, and JSON config files.
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsZero reports whether no duration was set.
func (d Duration) IsZero() bool {
	return d.Duration == 0
}
