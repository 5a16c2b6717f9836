package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/ghidra-grabber/internal/version"
)

// Config holds the release index and installation settings.
type Config struct {
	// Owner is the GitHub account publishing the releases.
	Owner string `yaml:"owner"`
	// Repository is the GitHub repository publishing the releases.
	Repository string `yaml:"repository"`
	// APIURL overrides the GitHub API base URL (GitHub Enterprise, mirrors).
	APIURL string `yaml:"api_url,omitempty"`
	// Token is an optional GitHub token used to lift anonymous rate limits.
	Token string `yaml:"token,omitempty"`
	// Timeout bounds release index requests and the wait for download response headers.
	Timeout time.Duration `yaml:"timeout"`
	// UserAgent is sent with every HTTP request.
	UserAgent string `yaml:"user_agent"`
	// LogLevel is the minimum level of printed diagnostics.
	LogLevel string `yaml:"log_level"`
	// InstallPrefix is the marker preceding the version in archive and directory names.
	InstallPrefix string `yaml:"install_prefix"`
	// ExtensionsDir is the extensions directory relative to the installation root.
	ExtensionsDir string `yaml:"extensions_dir"`
}

const (
	// DefaultConfigFilename is the default filename for grabber settings.
	DefaultConfigFilename = "ghidra-grabber.yaml"

	// DefaultOwner is the account publishing Ghidra releases.
	DefaultOwner = "NationalSecurityAgency"

	// DefaultRepository is the repository publishing Ghidra releases.
	DefaultRepository = "ghidra"

	// DefaultTimeout bounds index requests and the wait for download headers.
	DefaultTimeout = time.Minute

	// DefaultLogLevel is the default minimum level of printed diagnostics.
	DefaultLogLevel = "info"

	// DefaultInstallPrefix precedes the version in Ghidra archive names.
	DefaultInstallPrefix = "ghidra_"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// DefaultExtensionsDir is where Ghidra looks for installed extensions.
//
//nolint:gochecknoglobals // Built from path segments to stay platform-neutral.
var DefaultExtensionsDir = filepath.Join("Ghidra", "Extensions")

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRepositoryRequired is returned when the owner or repository name is missing.
	errRepositoryRequired = errors.New("owner and repository must be provided")
	// errInvalidExtensionsDir is returned when extensions_dir escapes the installation root.
	errInvalidExtensionsDir = errors.New("extensions directory must be relative to the installation")
)

// Default returns settings pointing at the public Ghidra releases.
func Default() *Config {
	return &Config{
		Owner:         DefaultOwner,
		Repository:    DefaultRepository,
		Timeout:       DefaultTimeout,
		UserAgent:     version.UserAgent(),
		LogLevel:      DefaultLogLevel,
		InstallPrefix: DefaultInstallPrefix,
		ExtensionsDir: DefaultExtensionsDir,
	}
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default location yields the defaults; a missing file
// requested explicitly is an error.
func Load(path string) (*Config, error) {
	explicit := path != "" && path != DefaultConfigFilename
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold a token.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for optional ones.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	settings.Owner = strings.TrimSpace(settings.Owner)
	settings.Repository = strings.TrimSpace(settings.Repository)

	if settings.Owner == "" || settings.Repository == "" {
		return errRepositoryRequired
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.UserAgent == "" {
		settings.UserAgent = version.UserAgent()
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if settings.InstallPrefix == "" {
		settings.InstallPrefix = DefaultInstallPrefix
	}

	if settings.ExtensionsDir == "" {
		settings.ExtensionsDir = DefaultExtensionsDir
	}

	if !filepath.IsLocal(settings.ExtensionsDir) {
		return fmt.Errorf("%s: %w", settings.ExtensionsDir, errInvalidExtensionsDir)
	}

	if settings.APIURL == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(settings.APIURL); err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	return nil
}
