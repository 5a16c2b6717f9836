package grabber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/ghidra-grabber/internal/archive"
	"github.com/oshokin/ghidra-grabber/internal/config"
	domain "github.com/oshokin/ghidra-grabber/internal/domain/release"
	"github.com/oshokin/ghidra-grabber/internal/filesystem"
	"github.com/oshokin/ghidra-grabber/internal/logger"
	repository "github.com/oshokin/ghidra-grabber/internal/repository/release"
)

// LatestVersion is the version selector meaning "no particular version".
const LatestVersion = "latest"

var (
	// ErrOutputExists is returned when the output path is already present.
	ErrOutputExists = errors.New("output already exists")
	// ErrInstallDirNotFound is returned when staging holds no installation directory.
	ErrInstallDirNotFound = errors.New("installation directory not found")

	errOutputRequired     = errors.New("output path must be provided")
	errConflictingSources = errors.New("url and path are mutually exclusive")
	errNoSource           = errors.New("neither path nor url were specified")
	errPathNotFound       = errors.New("source path not found")
	errUnsupportedSource  = errors.New("source path is neither a file nor a directory")
	errInvalidLogLevel    = errors.New("invalid log level")
)

// Options are inputs accepted by the grabber entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// URL is a direct archive URL.
	URL string
	// Path is a local archive file or an unpacked installation directory.
	Path string
	// Version selects a release by name; "latest" or empty means unset.
	Version string
	// Extensions lists extension archives to install.
	Extensions []string
	// Output is the destination directory; it must not exist.
	Output string
	// ListVersions prints the versions available in the index and stops.
	ListVersions bool
	// LogLevel overrides the log level from the settings file.
	LogLevel string
	// ShowProgress renders a progress bar while downloading.
	ShowProgress bool
	// Stdout receives the version listing and the progress bar (os.Stdout when nil).
	Stdout io.Writer
}

// runner holds the state of a single run.
// It is unexported; callers go through Run.
type runner struct {
	cfg        *config.Config   // Settings loaded from YAML.
	opts       *Options         // Normalised run options.
	stdout     io.Writer        // Destination of listings and progress.
	httpClient *http.Client     // Release index requests, bounded by the configured timeout.
	downloader *http.Client     // Archive downloads, only the response headers are bounded.
	index      repository.Index // Release index, created on first use.
	version    string           // Version used to locate the installation directory.
	sourceURL  string           // Archive URL to download, if any.
	staging    string           // Directory the release is staged in.
	scratch    string           // Directory holding downloaded archives.
	installDir string           // Installation root inside staging.
}

// Run executes a grab and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "ghidra-grabber")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	if r.opts.ListVersions {
		return r.listVersions(ctx)
	}

	defer r.cleanup(ctx)

	return r.Run(ctx)
}

// newRunner loads settings and normalises options.
func newRunner(opts *Options) (*runner, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	levelName := opts.LogLevel
	if levelName == "" {
		levelName = cfg.LogLevel
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return nil, fmt.Errorf("%q: %w", levelName, errInvalidLogLevel)
	}

	logger.SetLevel(level)

	normalised := *opts
	normalised.URL = strings.TrimSpace(normalised.URL)
	normalised.Path = strings.TrimSpace(normalised.Path)
	normalised.Version = strings.TrimSpace(normalised.Version)

	if strings.EqualFold(normalised.Version, LatestVersion) {
		normalised.Version = ""
	}

	if !normalised.ListVersions {
		if normalised.Output == "" {
			return nil, errOutputRequired
		}

		if normalised.URL != "" && normalised.Path != "" {
			return nil, errConflictingSources
		}
	}

	stdout := normalised.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	return &runner{
		cfg:        cfg,
		opts:       &normalised,
		stdout:     stdout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		downloader: &http.Client{Transport: downloadTransport(cfg.Timeout)},
		version:    normalised.Version,
		sourceURL:  normalised.URL,
	}, nil
}

// Run executes the workflow for this runner instance:
// 1) Make sure the output does not exist.
// 2) Resolve the source, looking up the release index if needed.
// 3) Stage the release (download and extract, extract, or copy).
// 4) Locate the installation directory.
// 5) Install extensions.
// 6) Copy the installation to the output.
func (r *runner) Run(ctx context.Context) error {
	if err := r.ensureOutputAbsent(ctx); err != nil {
		return err
	}

	if err := r.resolveSource(ctx); err != nil {
		return err
	}

	staging, err := os.MkdirTemp("", "ghidra-grabber-staging-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	r.staging = staging

	archiveName, err := r.stage(ctx)
	if err != nil {
		return err
	}

	if err = r.locateInstallDir(ctx, archiveName); err != nil {
		return err
	}

	if err = r.installExtensions(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Copying the installation to the output")

	if err = filesystem.CopyTree(ctx, r.installDir, r.opts.Output); err != nil {
		return fmt.Errorf("save installation: %w", err)
	}

	logger.Infof(ctx, "Saved to %s", r.opts.Output)

	return nil
}

// ensureOutputAbsent fails when anything already occupies the output path.
func (r *runner) ensureOutputAbsent(ctx context.Context) error {
	exists, err := filesystem.Exists(r.opts.Output)
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf("%s: %w", r.opts.Output, ErrOutputExists)
	}

	logger.DebugKV(ctx, "Output path is free", "path", r.opts.Output)

	return nil
}

// resolveSource turns the options into a download URL when neither URL nor path was given.
func (r *runner) resolveSource(ctx context.Context) error {
	if r.opts.URL != "" || r.opts.Path != "" {
		return nil
	}

	releases, err := r.listReleases(ctx)
	if err != nil {
		return err
	}

	var selected domain.Release

	if r.version == "" {
		logger.Warn(ctx, "No URL or path provided, getting latest from GitHub")

		if selected, err = domain.Latest(releases); err != nil {
			return err
		}

		r.version = selected.Version()
	} else {
		selected, err = domain.Find(releases, r.version)
		if err != nil {
			logger.Warnf(ctx, "Failed to find version %s on GitHub. Found:", r.version)
			r.printVersions(releases)

			return err
		}
	}

	if r.sourceURL, err = selected.DownloadURL(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Found release", "name", selected.Name, "url", r.sourceURL)

	return nil
}

// listVersions prints every version published in the index.
func (r *runner) listVersions(ctx context.Context) error {
	releases, err := r.listReleases(ctx)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Available Ghidra versions from GitHub:")
	r.printVersions(releases)

	return nil
}

// printVersions writes one tab-indented version per line.
func (r *runner) printVersions(releases []domain.Release) {
	for _, v := range domain.Versions(releases) {
		_, _ = fmt.Fprintf(r.stdout, "\t%s\n", v)
	}
}

// listReleases queries the release index, creating the client on first use.
func (r *runner) listReleases(ctx context.Context) ([]domain.Release, error) {
	if r.index == nil {
		index, err := repository.NewGitHubIndex(
			r.httpClient,
			r.cfg.Owner,
			r.cfg.Repository,
			r.cfg.Token,
			repository.WithBaseURL(r.cfg.APIURL),
			repository.WithUserAgent(r.cfg.UserAgent),
		)
		if err != nil {
			return nil, err
		}

		r.index = index
	}

	return r.index.List(ctx)
}

// stage places the release into the staging directory and returns the
// archive (or directory) base name the version can be derived from.
func (r *runner) stage(ctx context.Context) (string, error) {
	switch {
	case r.opts.Path != "":
		return r.stageLocal(ctx)
	case r.sourceURL != "":
		return r.stageRemote(ctx)
	default:
		return "", errNoSource
	}
}

// stageLocal extracts a local archive or copies a local installation directory.
func (r *runner) stageLocal(ctx context.Context) (string, error) {
	source := filepath.Clean(r.opts.Path)
	name := filepath.Base(source)

	logger.Infof(ctx, "Will use Ghidra from %s", source)

	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", source, errPathNotFound)
		}

		return "", fmt.Errorf("stat source path: %w", err)
	}

	switch {
	case info.Mode().IsRegular():
		return name, r.extract(ctx, source)
	case info.IsDir():
		target := filepath.Join(r.staging, name)

		logger.Info(ctx, "Copying...")

		if err = filesystem.CopyTree(ctx, source, target); err != nil {
			return "", fmt.Errorf("copy installation: %w", err)
		}

		logger.Infof(ctx, "Copied to %s", target)

		return name, nil
	default:
		return "", fmt.Errorf("%s: %w", source, errUnsupportedSource)
	}
}

// stageRemote downloads the archive into a scratch directory and extracts it.
func (r *runner) stageRemote(ctx context.Context) (string, error) {
	scratch, err := os.MkdirTemp("", "ghidra-grabber-download-")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}

	r.scratch = scratch
	archivePath := filepath.Join(scratch, scratchArchiveName)

	logger.Infof(ctx, "Downloading %s", r.sourceURL)

	if err = r.download(ctx, r.sourceURL, archivePath); err != nil {
		logger.Warn(ctx, "Failed to download!")
		return "", fmt.Errorf("download archive: %w", err)
	}

	return archiveNameFromURL(r.sourceURL), r.extract(ctx, archivePath)
}

// extract unpacks an archive into the staging directory.
func (r *runner) extract(ctx context.Context, archivePath string) error {
	logger.Info(ctx, "Extracting...")

	if err := archive.Extract(ctx, archivePath, r.staging); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(archivePath), err)
	}

	logger.Infof(ctx, "Extracted to %s", r.staging)

	return nil
}

// locateInstallDir finds the installation root within staging. The explicit
// (or index-provided) version is tried first, then the version embedded in
// the archive name.
func (r *runner) locateInstallDir(ctx context.Context, archiveName string) error {
	candidates := []string{r.version}

	derived := VersionFromName(archiveName, r.cfg.InstallPrefix)
	switch {
	case r.version == "":
		candidates = []string{derived}
	case derived != "" && derived != r.version:
		candidates = append(candidates, derived)
	}

	entries, err := os.ReadDir(r.staging)
	if err != nil {
		return fmt.Errorf("read staging directory: %w", err)
	}

	for _, version := range candidates {
		prefix := r.cfg.InstallPrefix + version

		for _, entry := range entries {
			if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
				r.installDir = filepath.Join(r.staging, entry.Name())
				logger.DebugKV(ctx, "Located installation", "path", r.installDir, "version", version)

				return nil
			}
		}
	}

	// Without a matching directory the launch scripts will not work.
	return fmt.Errorf(
		"nothing matching %s%s* in %s, is the Ghidra archive correctly structured: %w",
		r.cfg.InstallPrefix, candidates[0], r.staging, ErrInstallDirNotFound,
	)
}

// installExtensions extracts every extension archive into the staged extensions directory.
func (r *runner) installExtensions(ctx context.Context) error {
	if len(r.opts.Extensions) == 0 {
		return nil
	}

	extensionsDir := filepath.Join(r.installDir, r.cfg.ExtensionsDir)

	for _, extension := range r.opts.Extensions {
		extCtx := logger.WithKV(ctx, "extension", filepath.Base(extension))

		logger.Infof(extCtx, "Installing extension: %s", extension)

		if err := archive.Extract(extCtx, extension, extensionsDir); err != nil {
			return fmt.Errorf("install extension %s: %w", extension, err)
		}

		logger.DebugKV(extCtx, "Installed extension", "dir", extensionsDir)
	}

	return nil
}

// cleanup removes the staging and scratch directories.
func (r *runner) cleanup(ctx context.Context) {
	for _, dir := range []string{r.scratch, r.staging} {
		if dir == "" {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			logger.Warnf(ctx, "Unable to remove %s: %v", dir, err)
		}
	}
}

// VersionFromName extracts the version from an archive or directory name:
// the text between prefix and the next underscore
// ("ghidra_11.0_PUBLIC_20231222.zip" gives "11.0"). Names without the prefix
// yield an empty version.
func VersionFromName(name, prefix string) string {
	_, rest, found := strings.Cut(name, prefix)
	if !found {
		return ""
	}

	version, _, _ := strings.Cut(rest, "_")

	return version
}

// archiveNameFromURL returns the last path segment of the URL.
func archiveNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}

	return path.Base(parsed.Path)
}
