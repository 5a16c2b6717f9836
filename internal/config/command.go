package config

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/ghidra-grabber/internal/filesystem"
)

// errSettingsExist is returned when init-config would overwrite a settings file.
var errSettingsExist = errors.New("settings file already exists")

// AttachCobraInitCommand attaches an `init-config [path]` subcommand writing the default settings.
func AttachCobraInitCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default settings file",
		Long: "Write a settings file holding the defaults (public NationalSecurityAgency/ghidra releases) " +
			"so the release index, token and timeouts can be adjusted. Existing files are never overwritten.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			exists, err := filesystem.Exists(path)
			if err != nil {
				return err
			}

			if exists {
				return fmt.Errorf("%s: %w", path, errSettingsExist)
			}

			if err = Save(path, Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)

			return nil
		},
	})
}
