package backup

import (
	"fmt"
	"time"
)

// SweepResult contains information about what was swept.
type SweepResult struct {
	Deleted []Info `json:"deleted" yaml:"deleted"`
	Kept    int    `json:"kept" yaml:"kept"`
}

// Sweep removes scratch entries older than olderThan. They are leftovers
// from runs that died before their own cleanup.
func (m *Manager) Sweep(olderThan time.Duration) (*SweepResult, error) {
	if olderThan < 0 {
		return nil, fmt.Errorf("sweep age must be non-negative")
	}

	entries, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	cutoff := m.now().Add(-olderThan)

	for _, entry := range entries {
		if entry.CreatedAt.After(cutoff) {
			result.Kept++
			continue
		}
		if err := m.Remove(entry.Path); err != nil {
			return nil, fmt.Errorf("failed to sweep %s: %w", entry.Path, err)
		}
		result.Deleted = append(result.Deleted, entry)
	}

	return result, nil
}
