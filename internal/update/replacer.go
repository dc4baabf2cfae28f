package update

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/InstaWP/iwp-mu/internal/sync"
)

// DirectoryReplacer swaps the contents of an install directory with a
// payload and can restore it from a backup snapshot.
type DirectoryReplacer struct {
	fs         afero.Fs
	sync       *sync.Synchronizer
	installDir string
	backupDir  string
}

// NewDirectoryReplacer creates a replacer for installDir that restores
// from backupDir.
func NewDirectoryReplacer(fs afero.Fs, synchronizer *sync.Synchronizer, installDir, backupDir string) *DirectoryReplacer {
	return &DirectoryReplacer{
		fs:         fs,
		sync:       synchronizer,
		installDir: installDir,
		backupDir:  backupDir,
	}
}

// Replace clears the install directory and copies the payload in.
// Excluded entries on either side are left alone.
func (r *DirectoryReplacer) Replace(payloadRoot string) error {
	if err := r.sync.Clear(r.installDir); err != nil {
		return fmt.Errorf("failed to clear install directory: %w", err)
	}
	if err := r.sync.Copy(payloadRoot, r.installDir); err != nil {
		return fmt.Errorf("failed to copy payload: %w", err)
	}
	return nil
}

// Verify checks that the entry point exists in the install directory
func (r *DirectoryReplacer) Verify(mainFile string) error {
	info, err := r.fs.Stat(filepath.Join(r.installDir, mainFile))
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", mainFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", mainFile)
	}
	return nil
}

// Rollback clears the install directory and copies the whole backup back
func (r *DirectoryReplacer) Rollback() error {
	if r.backupDir == "" {
		return fmt.Errorf("no backup to restore")
	}
	if _, err := r.fs.Stat(r.backupDir); err != nil {
		return fmt.Errorf("backup not found: %w", err)
	}

	if err := r.sync.Clear(r.installDir); err != nil {
		return fmt.Errorf("failed to clear install directory: %w", err)
	}
	if err := sync.CopyTree(r.fs, r.backupDir, r.installDir, nil); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}
	return nil
}
