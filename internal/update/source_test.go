package update

import (
	"reflect"
	"testing"
)

func TestSourceURLs(t *testing.T) {
	src := Source{
		RepoURL:  "https://github.com/InstaWP/iwp-mu/",
		Branch:   "main",
		MainFile: "iwp-main.php",
	}

	if got, want := src.MarkerURL(), "https://github.com/InstaWP/iwp-mu/raw/main/iwp-main.php"; got != want {
		t.Errorf("MarkerURL() = %s, want %s", got, want)
	}
	if got, want := src.ArchiveURL(), "https://github.com/InstaWP/iwp-mu/archive/refs/heads/main.zip"; got != want {
		t.Errorf("ArchiveURL() = %s, want %s", got, want)
	}
}

func TestSourcePayloadSuffixes(t *testing.T) {
	tests := []struct {
		name     string
		source   Source
		expected []string
	}{
		{
			name:     "main branch deduplicated",
			source:   Source{Branch: "main"},
			expected: []string{"-main", "-master"},
		},
		{
			name:     "feature branch first",
			source:   Source{Branch: "develop"},
			expected: []string{"-develop", "-main", "-master"},
		},
		{
			name:     "configured suffixes",
			source:   Source{Branch: "main", Suffixes: []string{"-release", "", "-release"}},
			expected: []string{"-release"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.source.PayloadSuffixes()
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("PayloadSuffixes() = %v, want %v", got, tt.expected)
			}
		})
	}
}
