package update

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// ParseVersion parses a version string.
// Supports formats like "1.0.2", "v1.0.2", "1.2", "2.0.0-rc.1"
func ParseVersion(s string) (*version.Version, error) {
	v, err := version.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid version format: %s", s)
	}
	return v, nil
}

// CompareVersions compares two version strings
// Returns:
//   - 1 if v1 > v2
//   - 0 if v1 == v2
//   - -1 if v1 < v2
//   - error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	ver1, err := ParseVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version v1: %w", err)
	}

	ver2, err := ParseVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version v2: %w", err)
	}

	return ver1.Compare(ver2), nil
}

// IsNewer reports whether remote is strictly greater than current.
func IsNewer(remote, current string) (bool, error) {
	cmp, err := CompareVersions(remote, current)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

// NormalizeVersion removes the 'v' prefix if present
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "v")
}
