package update

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"
)

// buildArchive returns a zip holding files, keyed by slash-separated name.
// Names ending in "/" become directory entries.
func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("zip Create(%s) error = %v", name, err)
		}
		if _, err := f.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip Write(%s) error = %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip Close() error = %v", err)
	}
	return buf.Bytes()
}

// releaseArchive builds a branch archive the way GitHub lays it out,
// padded past the minimum artifact size.
func releaseArchive(t *testing.T, root, version string, extra map[string]string) []byte {
	t.Helper()
	files := map[string]string{
		root + "/":                         "",
		root + "/iwp-main.php":             sprintfHeader(version),
		root + "/includes/functions.php":   "<?php // helpers " + version,
		root + "/assets/padding.txt":       string(bytes.Repeat([]byte("p"), 2048)),
		root + "/.github/workflows/ci.yml": "on: push",
		root + "/package.json":             "{}",
		root + "/CLAUDE.md":                "upstream notes",
	}
	for name, content := range extra {
		files[root+"/"+name] = content
	}
	return buildArchive(t, files)
}

func writeFiles(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
}

// snapshotTree returns every regular file under root keyed by relative path.
func snapshotTree(t *testing.T, fs afero.Fs, root string) map[string]string {
	t.Helper()
	tree := map[string]string{}
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		content, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk(%s) error = %v", root, err)
	}
	return tree
}
