package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/ghidra-grabber/internal/config"
	"github.com/oshokin/ghidra-grabber/internal/logger"
	"github.com/oshokin/ghidra-grabber/internal/service/grabber"
	"github.com/oshokin/ghidra-grabber/internal/version"
)

// extensionFlag names the flag whose value may be followed by further extension paths.
const extensionFlag = "extension"

// flags holds the values bound to the root command flags.
type flags struct {
	configPath   string
	url          string
	path         string
	version      string
	extensions   []string
	listVersions bool
	logLevel     string
	noProgress   bool
}

// newRootCmd builds the command that fetches and installs a Ghidra release.
func newRootCmd() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "ghidra-grabber [flags] [--extension PATH [PATH ...]] OUTPUT",
		Short: "Download Ghidra and install it with extensions into OUTPUT",
		Long: "Fetch a Ghidra release (latest or a named version from GitHub, a direct URL, " +
			"or a local archive or directory), install extension archives into it " +
			"and copy the result to OUTPUT, which must not exist yet.",
		Example: "  ghidra-grabber ~/tools/ghidra\n" +
			"  ghidra-grabber -v \"9.1 BETA\" --extension ./MyExt.zip ./OtherExt.zip ~/tools/ghidra-9.1\n" +
			"  ghidra-grabber -p ./ghidra_11.0_PUBLIC_20231222.zip ~/tools/ghidra-11\n" +
			"  ghidra-grabber --list-versions",
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case f.listVersions:
				return cobra.MaximumNArgs(1)(cmd, args)
			case cmd.Flags().Changed(extensionFlag):
				// "--extension a.zip b.zip OUTPUT": extra paths trail the flag.
				return cobra.MinimumNArgs(1)(cmd, args)
			default:
				return cobra.ExactArgs(1)(cmd, args)
			}
		},
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Argument errors print usage, run failures do not.
			cmd.SilenceUsage = true

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &grabber.Options{
				ConfigPath:   f.configPath,
				URL:          f.url,
				Path:         f.path,
				Version:      f.version,
				Extensions:   f.extensions,
				ListVersions: f.listVersions,
				LogLevel:     f.logLevel,
				ShowProgress: !f.noProgress,
				Stdout:       cmd.OutOrStdout(),
			}

			if len(args) > 0 {
				last := len(args) - 1
				options.Output = args[last]
				options.Extensions = append(options.Extensions, args[:last]...)
			}

			return grabber.Run(ctx, options)
		},
	}

	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&f.url, "url", "u", "", "Ghidra zip URL (defaults to the latest release from GitHub)")
	rootCmd.Flags().StringVarP(&f.path, "path", "p", "", "path to a Ghidra zip or an unpacked installation")
	rootCmd.Flags().StringVarP(&f.version, "version", "v", "",
		`Ghidra version to fetch or to look for in the archive, e.g. "9.1 BETA" ("latest" means unset)`)
	rootCmd.Flags().StringArrayVar(&f.extensions, extensionFlag, nil,
		"path to a Ghidra extension archive to install; more paths may follow it before OUTPUT")
	rootCmd.Flags().BoolVar(&f.listVersions, "list-versions", false, "print available Ghidra versions and exit")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides settings)")
	rootCmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "do not render a download progress bar")
	rootCmd.MarkFlagsMutuallyExclusive("url", "path")

	version.AttachCobraVersionCommand(rootCmd)
	config.AttachCobraInitCommand(rootCmd)

	return rootCmd
}

// Execute runs the ghidra-grabber CLI and exits with non-zero status on error.
func Execute() {
	ctx := context.Background()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error(logger.WithName(ctx, version.Name), err)
		os.Exit(1)
	}
}
