package update

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/InstaWP/iwp-mu/internal/backup"
)

// MaxExtractedSize bounds the total uncompressed size of an archive.
const MaxExtractedSize int64 = 512 << 20

// Extractor unpacks release archives and locates the plugin inside them
type Extractor struct {
	fs       afero.Fs
	slug     string
	mainFile string
	suffixes []string
	maxSize  int64
}

// NewExtractor creates an extractor for the plugin named slug. The payload
// root is the first <slug><suffix> directory found in the archive.
func NewExtractor(fs afero.Fs, slug, mainFile string, suffixes []string) *Extractor {
	return &Extractor{
		fs:       fs,
		slug:     slug,
		mainFile: mainFile,
		suffixes: suffixes,
		maxSize:  MaxExtractedSize,
	}
}

// WithMaxSize overrides the uncompressed size bound
func (e *Extractor) WithMaxSize(n int64) *Extractor {
	e.maxSize = n
	return e
}

// Extract unzips artifactPath into a fresh directory under scratchDir and
// returns the payload root. On any error the extraction directory is
// removed. Corrupt archives wrap ErrExtract; a missing root wraps
// ErrPayloadNotFound; a root without the main file wraps ErrInvalidPayload.
func (e *Extractor) Extract(artifactPath, scratchDir string) (string, error) {
	if err := e.fs.MkdirAll(scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create scratch directory: %w", ErrExtract, err)
	}

	dir, err := afero.TempDir(e.fs, scratchDir, backup.ExtractPrefix)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create extraction directory: %w", ErrExtract, err)
	}

	root, err := e.extract(artifactPath, dir)
	if err != nil {
		_ = e.fs.RemoveAll(dir)
		return "", err
	}
	return root, nil
}

func (e *Extractor) extract(artifactPath, dir string) (string, error) {
	if err := e.unzip(artifactPath, dir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtract, err)
	}

	root, err := e.findRoot(dir)
	if err != nil {
		return "", err
	}

	entry := filepath.Join(root, e.mainFile)
	info, err := e.fs.Stat(entry)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s not found in %s", ErrInvalidPayload, e.mainFile, filepath.Base(root))
	}

	return root, nil
}

func (e *Extractor) findRoot(dir string) (string, error) {
	for _, suffix := range e.suffixes {
		candidate := filepath.Join(dir, e.slug+suffix)
		if info, err := e.fs.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s with suffixes %v", ErrPayloadNotFound, e.slug, e.suffixes)
}

func (e *Extractor) unzip(artifactPath, dir string) error {
	file, err := e.fs.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	reader, err := zip.NewReader(file, info.Size())
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	budget := e.maxSize
	for _, entry := range reader.File {
		target, err := entryPath(dir, entry.Name)
		if err != nil {
			return err
		}

		mode := entry.Mode()
		switch {
		case mode.IsDir():
			if err := e.fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", entry.Name, err)
			}
		case mode&os.ModeSymlink != 0:
			// Links are never followed or recreated.
			continue
		default:
			written, err := e.writeEntry(entry, target, budget)
			if err != nil {
				return err
			}
			budget -= written
		}
	}

	return nil
}

func (e *Extractor) writeEntry(entry *zip.File, target string, budget int64) (int64, error) {
	if int64(entry.UncompressedSize64) > budget || entry.UncompressedSize64 > uint64(e.maxSize) {
		return 0, fmt.Errorf("archive expands beyond %d bytes", e.maxSize)
	}

	if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Dir(entry.Name), err)
	}

	src, err := entry.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", entry.Name, err)
	}
	defer src.Close()

	perm := entry.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	dst, err := e.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", entry.Name, err)
	}

	// Declared sizes can lie, so the copy itself is bounded too.
	written, err := io.Copy(dst, io.LimitReader(src, budget+1))
	closeErr := dst.Close()
	if err != nil {
		return written, fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	if closeErr != nil {
		return written, fmt.Errorf("failed to extract %s: %w", entry.Name, closeErr)
	}
	if written > budget {
		return written, fmt.Errorf("archive expands beyond %d bytes", e.maxSize)
	}

	return written, nil
}

// entryPath resolves an archive entry name inside dir, rejecting names
// that would land outside it.
func entryPath(dir, name string) (string, error) {
	if name == "" || strings.Contains(name, `\`) || path.IsAbs(name) {
		return "", fmt.Errorf("illegal entry name %q", name)
	}

	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal entry name %q", name)
	}

	return target, nil
}
