// Package sync replaces the contents of a plugin directory with a new
// payload while leaving excluded entries (dotfiles, dependency-manager
// artifacts, assistant metadata) in place.
package sync

import (
	"github.com/spf13/afero"
)

// Excluder reports whether an entry name must be skipped by clear and copy.
type Excluder func(name string) bool

// dependencyArtifacts are package-manager files and folders that live next
// to the plugin sources in a development checkout.
var dependencyArtifacts = map[string]bool{
	"node_modules":      true,
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
}

// assistantMetadata are AI-assistant instruction files.
var assistantMetadata = map[string]bool{
	"CLAUDE.md":       true,
	"CLAUDE.local.md": true,
}

// DefaultExclude is the exclusion policy for plugin directories.
func DefaultExclude(name string) bool {
	if len(name) > 0 && name[0] == '.' {
		return true
	}
	return dependencyArtifacts[name] || assistantMetadata[name]
}

// Synchronizer clears and repopulates an installation directory.
type Synchronizer struct {
	fs      afero.Fs
	exclude Excluder
}

// NewSynchronizer creates a synchronizer using DefaultExclude.
func NewSynchronizer(fs afero.Fs) *Synchronizer {
	return NewSynchronizerWithExcluder(fs, DefaultExclude)
}

// NewSynchronizerWithExcluder creates a synchronizer with a custom policy.
func NewSynchronizerWithExcluder(fs afero.Fs, exclude Excluder) *Synchronizer {
	return &Synchronizer{fs: fs, exclude: exclude}
}

// Clear removes every top-level entry of dir that is not excluded.
func (s *Synchronizer) Clear(dir string) error {
	return ClearTree(s.fs, dir, s.exclude)
}

// Copy copies from into to, skipping excluded names at every level.
func (s *Synchronizer) Copy(from, to string) error {
	return CopyTree(s.fs, from, to, s.exclude)
}

// Excluded reports whether name is protected by the synchronizer's policy.
func (s *Synchronizer) Excluded(name string) bool {
	return skip(s.exclude, name)
}
