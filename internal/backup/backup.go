// Package backup snapshots a live plugin directory before it is replaced
// and manages the scratch directories an update run creates.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/InstaWP/iwp-mu/internal/sync"
)

// Scratch entry prefixes. Everything an update run writes to the scratch
// directory starts with one of these.
const (
	BackupPrefix   = "iwp-mu-backup-"
	ExtractPrefix  = "iwp-mu-update-"
	DownloadPrefix = "iwp-mu-download-"
)

// Info describes one scratch entry.
type Info struct {
	Path      string    `json:"path" yaml:"path"`
	Kind      string    `json:"kind" yaml:"kind"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size"`
}

// Manager handles snapshot operations inside a scratch directory.
type Manager struct {
	fs         afero.Fs
	scratchDir string
	now        func() time.Time
}

// NewManager creates a backup manager rooted at scratchDir. An empty
// scratchDir means the OS temp directory.
func NewManager(fs afero.Fs, scratchDir string) *Manager {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Manager{
		fs:         fs,
		scratchDir: scratchDir,
		now:        time.Now,
	}
}

// WithClock overrides the clock used for age calculations (for testing).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// ScratchDir returns the scratch directory path.
func (m *Manager) ScratchDir() string {
	return m.scratchDir
}

// Snapshot copies installDir, including excluded entries, into a fresh
// backup directory and returns its path. A partial copy is removed.
func (m *Manager) Snapshot(installDir string) (string, error) {
	info, err := m.fs.Stat(installDir)
	if err != nil {
		return "", fmt.Errorf("failed to stat install directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("install directory is not a directory: %s", installDir)
	}
	if within(installDir, m.scratchDir) {
		return "", fmt.Errorf("scratch directory %s is inside install directory %s", m.scratchDir, installDir)
	}

	if err := m.fs.MkdirAll(m.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	backupDir, err := afero.TempDir(m.fs, m.scratchDir, BackupPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	if err := sync.CopyTree(m.fs, installDir, backupDir, nil); err != nil {
		_ = m.fs.RemoveAll(backupDir)
		return "", fmt.Errorf("failed to copy install directory: %w", err)
	}

	return backupDir, nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Remove deletes a snapshot or other scratch entry. Missing paths are ignored.
func (m *Manager) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := m.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// List returns the scratch entries left in the scratch directory, oldest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := afero.ReadDir(m.fs, m.scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		kind := kindOf(entry.Name())
		if kind == "" {
			continue
		}
		infos = append(infos, Info{
			Path:      filepath.Join(m.scratchDir, entry.Name()),
			Kind:      kind,
			CreatedAt: entry.ModTime(),
			Size:      entry.Size(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})

	return infos, nil
}

func kindOf(name string) string {
	switch {
	case strings.HasPrefix(name, BackupPrefix):
		return "backup"
	case strings.HasPrefix(name, ExtractPrefix):
		return "payload"
	case strings.HasPrefix(name, DownloadPrefix):
		return "download"
	}
	return ""
}
