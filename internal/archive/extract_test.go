package archive

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ghidra-grabber/internal/testutil"
)

// TestDetect covers zip, tar.gz and unknown inputs.
func TestDetect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	zipPath := testutil.WriteZip(t, filepath.Join(dir, "a.zip"), testutil.Entry{Name: "a.txt", Body: "a"})
	tarPath := testutil.WriteTarGz(t, filepath.Join(dir, "a.tar.gz"), testutil.Entry{Name: "a.txt", Body: "a"})
	textPath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("x"), 0o644))

	format, err := Detect(zipPath)
	require.NoError(t, err)
	require.Equal(t, FormatZip, format)

	format, err = Detect(tarPath)
	require.NoError(t, err)
	require.Equal(t, FormatTarGz, format)

	format, err = Detect(textPath)
	require.NoError(t, err)
	require.Equal(t, FormatUnknown, format)
	require.Equal(t, "unknown", format.String())

	_, err = Detect(filepath.Join(dir, "missing.zip"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestExtract_Zip verifies nested layout, permission bits and symlinks survive extraction.
func TestExtract_Zip(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits and symlinks are not portable to windows")
	}

	dir := t.TempDir()
	archivePath := testutil.WriteZip(t, filepath.Join(dir, "ghidra_11.0_PUBLIC_20231222.zip"),
		testutil.Entry{Name: "ghidra_11.0_PUBLIC/"},
		testutil.Entry{Name: "ghidra_11.0_PUBLIC/ghidraRun", Body: "#!/bin/bash\n", Mode: 0o755},
		testutil.Entry{Name: "ghidra_11.0_PUBLIC/Ghidra/application.properties", Body: "application.version=11.0\n"},
		testutil.Entry{Name: "ghidra_11.0_PUBLIC/run", Link: "ghidraRun"},
	)

	dest := filepath.Join(dir, "staging")
	require.NoError(t, Extract(context.Background(), archivePath, dest))

	files := testutil.ReadTree(t, dest)
	require.Equal(t, "application.version=11.0\n", files["ghidra_11.0_PUBLIC/Ghidra/application.properties"])

	info, err := os.Stat(filepath.Join(dest, "ghidra_11.0_PUBLIC", "ghidraRun"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dest, "ghidra_11.0_PUBLIC", "run"))
	require.NoError(t, err)
	require.Equal(t, "ghidraRun", link)
}

// TestExtract_TarGz verifies tarballs are unpacked like zip archives.
func TestExtract_TarGz(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := testutil.WriteTarGz(t, filepath.Join(dir, "ext.tar.gz"),
		testutil.Entry{Name: "./"},
		testutil.Entry{Name: "MyExtension/"},
		testutil.Entry{Name: "MyExtension/extension.properties", Body: "name=MyExtension\n"},
	)

	dest := filepath.Join(dir, "Extensions")
	require.NoError(t, Extract(context.Background(), archivePath, dest))

	require.Equal(t, map[string]string{
		"MyExtension/extension.properties": "name=MyExtension\n",
	}, testutil.ReadTree(t, dest))
}

// TestExtract_IllegalPath ensures entries escaping the destination are rejected.
func TestExtract_IllegalPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "/etc/evil.txt"} {
		archivePath := testutil.WriteZip(t, filepath.Join(dir, "evil.zip"), testutil.Entry{Name: name, Body: "x"})

		err := Extract(context.Background(), archivePath, filepath.Join(dir, "dest"))
		require.ErrorIs(t, err, ErrIllegalPath, name)
	}

	_, err := os.Stat(filepath.Join(dir, "evil.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestExtract_SymlinkEscape rejects entries that would be written through a
// symlink pointing outside the destination, for both archive formats.
func TestExtract_SymlinkEscape(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks are not portable to windows")
	}

	writers := map[string]func(*testing.T, string, ...testutil.Entry) string{
		"evil.zip":    testutil.WriteZip,
		"evil.tar.gz": testutil.WriteTarGz,
	}

	for name, write := range writers {
		name, write := name, write

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			outside := filepath.Join(dir, "outside")
			require.NoError(t, os.MkdirAll(outside, 0o755))

			archivePath := write(t, filepath.Join(dir, name),
				testutil.Entry{Name: "link", Link: outside},
				testutil.Entry{Name: "link/pwned", Body: "x"},
			)

			err := Extract(context.Background(), archivePath, filepath.Join(dir, "dest"))
			require.ErrorIs(t, err, ErrIllegalPath)

			entries, err := os.ReadDir(outside)
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

// TestExtract_FileReplacesSymlink writes a file entry in place of an earlier
// symlink with the same name instead of following the link.
func TestExtract_FileReplacesSymlink(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks are not portable to windows")
	}

	dir := t.TempDir()
	victim := filepath.Join(dir, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("original"), 0o644))

	archivePath := testutil.WriteZip(t, filepath.Join(dir, "overwrite.zip"),
		testutil.Entry{Name: "settings", Link: victim},
		testutil.Entry{Name: "settings", Body: "replaced"},
	)

	dest := filepath.Join(dir, "dest")
	require.NoError(t, Extract(context.Background(), archivePath, dest))

	content, err := os.ReadFile(victim)
	require.NoError(t, err)
	require.Equal(t, "original", string(content))

	info, err := os.Lstat(filepath.Join(dest, "settings"))
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())
	require.Equal(t, map[string]string{"settings": "replaced"}, testutil.ReadTree(t, dest))
}

// TestExtract_Unsupported asserts that non-archives are rejected explicitly.
func TestExtract_Unsupported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0o644))

	err := Extract(context.Background(), path, filepath.Join(dir, "dest"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

// TestExtract_Cancelled verifies extraction stops on a cancelled context.
func TestExtract_Cancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := testutil.WriteZip(t, filepath.Join(dir, "a.zip"), testutil.Entry{Name: "a.txt", Body: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Extract(ctx, archivePath, filepath.Join(dir, "dest"))
	require.ErrorIs(t, err, context.Canceled)
}
