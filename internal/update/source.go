package update

import (
	"strings"
)

// Source locates the remote repository the plugin is released from.
type Source struct {
	RepoURL  string // e.g. https://github.com/InstaWP/iwp-mu
	Branch   string
	MainFile string
	// Suffixes overrides the payload root suffixes tried after extraction.
	Suffixes []string
}

// MarkerURL returns the raw URL of the file carrying the Version header.
func (s Source) MarkerURL() string {
	return s.repo() + "/raw/" + s.Branch + "/" + s.MainFile
}

// ArchiveURL returns the branch archive download URL.
func (s Source) ArchiveURL() string {
	return s.repo() + "/archive/refs/heads/" + s.Branch + ".zip"
}

// PayloadSuffixes returns the directory suffixes a branch archive may use
// for its top-level folder, most specific first and without duplicates.
func (s Source) PayloadSuffixes() []string {
	candidates := s.Suffixes
	if len(candidates) == 0 {
		candidates = []string{"-" + s.Branch, "-main", "-master"}
	}

	seen := make(map[string]bool, len(candidates))
	suffixes := make([]string, 0, len(candidates))
	for _, suffix := range candidates {
		if suffix == "" || seen[suffix] {
			continue
		}
		seen[suffix] = true
		suffixes = append(suffixes, suffix)
	}
	return suffixes
}

func (s Source) repo() string {
	return strings.TrimRight(s.RepoURL, "/")
}
