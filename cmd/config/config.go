// Package config implements the 'faultline config' subcommand for inspecting
// and persisting the active configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faultline/faultline/internal/conf"
)

// Command creates the config command
func Command(_ *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the active configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := conf.FindConfigFile()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write the active settings back to the configuration file",
		Long: `Save persists the current settings, including command line overrides, to the
configuration file in use. The file is rewritten; comments are not preserved.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return conf.SaveSettings()
		},
	})

	return cmd
}
