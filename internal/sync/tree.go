package sync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyError reports the entry at which a tree copy stopped.
type CopyError struct {
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("could not copy %s: %v", e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

func skip(exclude Excluder, name string) bool {
	return exclude != nil && exclude(name)
}

// ClearTree removes the top-level entries of dir, leaving excluded names.
// A missing dir is not an error.
func ClearTree(fs afero.Fs, dir string, exclude Excluder) error {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, entry := range entries {
		if skip(exclude, entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := fs.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	return nil
}

// CopyTree recursively copies from into to. Directories are created as
// needed and existing files are overwritten. The first failing entry
// aborts the walk with a *CopyError. A nil exclude copies everything.
func CopyTree(fs afero.Fs, from, to string, exclude Excluder) error {
	info, err := fs.Stat(from)
	if err != nil {
		return &CopyError{Path: from, Err: err}
	}
	if !info.IsDir() {
		return &CopyError{Path: from, Err: fmt.Errorf("not a directory")}
	}

	if err := fs.MkdirAll(to, dirPerm(info.Mode())); err != nil {
		return &CopyError{Path: to, Err: err}
	}

	return copyDir(fs, from, to, exclude)
}

func copyDir(fs afero.Fs, from, to string, exclude Excluder) error {
	entries, err := afero.ReadDir(fs, from)
	if err != nil {
		return &CopyError{Path: from, Err: err}
	}

	for _, entry := range entries {
		if skip(exclude, entry.Name()) {
			continue
		}

		src := filepath.Join(from, entry.Name())
		dst := filepath.Join(to, entry.Name())

		if entry.IsDir() {
			if err := fs.MkdirAll(dst, dirPerm(entry.Mode())); err != nil {
				return &CopyError{Path: dst, Err: err}
			}
			if err := copyDir(fs, src, dst, exclude); err != nil {
				return err
			}
			continue
		}

		if err := copyFile(fs, src, dst, entry.Mode()); err != nil {
			return &CopyError{Path: src, Err: err}
		}
	}

	return nil
}

func copyFile(fs afero.Fs, src, dst string, mode os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// dirPerm keeps the source directory's permissions but guarantees the
// owner can keep writing into it.
func dirPerm(mode os.FileMode) os.FileMode {
	return mode.Perm() | 0o700
}
