package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ghidra-grabber/internal/testutil"
)

// TestCopyTree verifies the copy matches the source byte-for-byte and keeps modes and symlinks.
func TestCopyTree(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits and symlinks are not portable to windows")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "ghidra_11.0_PUBLIC")
	files := map[string]string{
		"ghidraRun":                         "#!/bin/bash\n",
		"Ghidra/application.properties":     "application.version=11.0\n",
		"Ghidra/Features/Base/lib/Base.jar": "\x50\x4b\x03\x04binary\x00\xff",
	}
	testutil.WriteTree(t, src, files)
	require.NoError(t, os.Chmod(filepath.Join(src, "ghidraRun"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "Ghidra", "Extensions"), 0o755))
	require.NoError(t, os.Symlink("ghidraRun", filepath.Join(src, "run")))

	dst := filepath.Join(dir, "nested", "out")
	require.NoError(t, CopyTree(context.Background(), src, dst))

	require.Equal(t, files, testutil.ReadTree(t, dst))

	info, err := os.Stat(filepath.Join(dst, "ghidraRun"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dst, "Ghidra", "Extensions"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	link, err := os.Readlink(filepath.Join(dst, "run"))
	require.NoError(t, err)
	require.Equal(t, "ghidraRun", link)
}

// TestCopyTree_DestinationExists ensures an existing target is never written into.
func TestCopyTree_DestinationExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	testutil.WriteTree(t, src, map[string]string{"a.txt": "a"})

	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.Mkdir(dst, 0o755))

	err := CopyTree(context.Background(), src, dst)
	require.ErrorIs(t, err, ErrDestinationExists)
	require.Empty(t, testutil.ReadTree(t, dst))
}

// TestCopyTree_SourceNotDirectory asserts that only directories can be copied.
func TestCopyTree_SourceNotDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	err := CopyTree(context.Background(), src, filepath.Join(dir, "dst"))
	require.ErrorIs(t, err, errNotDirectory)
}

// TestExists covers present, missing and dangling-symlink paths.
func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	exists, err := Exists(dir)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.False(t, exists)

	if runtime.GOOS != "windows" {
		dangling := filepath.Join(dir, "dangling")
		require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), dangling))

		exists, err = Exists(dangling)
		require.NoError(t, err)
		require.True(t, exists)
	}
}
