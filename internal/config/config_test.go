package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ghidra-grabber/internal/version"
)

// TestValidate checks required fields, defaults and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing repository.
	settings := &Config{Owner: "NationalSecurityAgency"}

	err := Validate(settings)
	require.ErrorIs(t, err, errRepositoryRequired)

	// Bad API URL.
	settings = &Config{
		Owner:      "NationalSecurityAgency",
		Repository: "ghidra",
		APIURL:     "not a url",
	}

	err = Validate(settings)
	require.Error(t, err)

	// Extensions directory escaping the installation.
	settings = &Config{
		Owner:         "NationalSecurityAgency",
		Repository:    "ghidra",
		ExtensionsDir: "../Extensions",
	}

	err = Validate(settings)
	require.ErrorIs(t, err, errInvalidExtensionsDir)

	// Okay, defaults are filled.
	settings = &Config{
		Owner:      " NationalSecurityAgency ",
		Repository: "ghidra",
		APIURL:     "https://github.example.com/api/v3/",
	}

	err = Validate(settings)
	require.NoError(t, err)
	require.Equal(t, "NationalSecurityAgency", settings.Owner)
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultInstallPrefix, settings.InstallPrefix)
	require.Equal(t, DefaultExtensionsDir, settings.ExtensionsDir)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := Default()
	settings.APIURL = "http://127.0.0.1:8080/"
	settings.Timeout = 30 * time.Second

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_PartialFileKeepsDefaults verifies that omitted keys fall back to defaults.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repository: ghidra-fork\n"), DefaultFilePermissions))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultOwner, loaded.Owner)
	require.Equal(t, "ghidra-fork", loaded.Repository)
	require.Equal(t, version.UserAgent(), loaded.UserAgent)
}

// TestLoad_MissingExplicitFile ensures an explicitly requested file must exist.
func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSave_NilConfig asserts that a nil configuration is rejected.
func TestSave_NilConfig(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil), errConfigIsNotSet)
}
