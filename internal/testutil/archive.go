// Package testutil builds release fixtures (archives and directory trees) for tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is a single archive member. Names ending in "/" are directories;
// a non-empty Link makes the entry a symlink pointing at Link.
type Entry struct {
	Name string
	Body string
	Mode os.FileMode
	Link string
}

// WriteZip creates a zip archive at path containing entries in order.
func WriteZip(t *testing.T, path string, entries ...Entry) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	file, err := os.Create(path)
	require.NoError(t, err)

	writer := zip.NewWriter(file)

	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:   entry.Name,
			Method: zip.Deflate,
		}

		body := entry.Body

		switch {
		case strings.HasSuffix(entry.Name, "/"):
			header.SetMode(fs.ModeDir | modeOr(entry.Mode, 0o755))
		case entry.Link != "":
			header.SetMode(fs.ModeSymlink | 0o777)
			body = entry.Link
		default:
			header.SetMode(modeOr(entry.Mode, 0o644))
		}

		w, err := writer.CreateHeader(header)
		require.NoError(t, err)

		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())

	return path
}

// WriteTarGz creates a gzip-compressed tarball at path containing entries in order.
func WriteTarGz(t *testing.T, path string, entries ...Entry) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	file, err := os.Create(path)
	require.NoError(t, err)

	gzipWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, entry := range entries {
		header := &tar.Header{
			Name: entry.Name,
			Mode: int64(modeOr(entry.Mode, 0o644)),
		}

		switch {
		case strings.HasSuffix(entry.Name, "/"):
			header.Typeflag = tar.TypeDir
			header.Mode = int64(modeOr(entry.Mode, 0o755))
		case entry.Link != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = entry.Link
		default:
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(entry.Body))
		}

		require.NoError(t, tarWriter.WriteHeader(header))

		if header.Typeflag == tar.TypeReg {
			_, err = tarWriter.Write([]byte(entry.Body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzipWriter.Close())
	require.NoError(t, file.Close())

	return path
}

// ReadTree returns every regular file below root keyed by slash-separated relative path.
func ReadTree(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = string(content)

		return nil
	})
	require.NoError(t, err)

	return files
}

// WriteTree creates the files (slash-separated relative path -> content) below root.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func modeOr(mode, fallback os.FileMode) os.FileMode {
	if mode == 0 {
		return fallback
	}

	return mode
}
