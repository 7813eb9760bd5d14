package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/faultline/faultline/cmd/config"
	"github.com/faultline/faultline/cmd/indices"
	"github.com/faultline/faultline/cmd/migrate"
	"github.com/faultline/faultline/internal/buildinfo"
	"github.com/faultline/faultline/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "faultline",
		Short:   "faultline error-ingestion platform CLI",
		Version: fmt.Sprintf("%s (built %s)", build.GetVersion(), build.GetBuildDate()),
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		migrate.Command(settings),
		indices.Command(settings),
		configcmd.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Search.Host, "host", viper.GetString("search.host"), "Search backend base URL")
	rootCmd.PersistentFlags().StringVar(&settings.Search.Scope, "scope", viper.GetString("search.scope"), "Index name prefix")
	rootCmd.PersistentFlags().StringVar(&settings.Migration.Source.Host, "source-host", viper.GetString("migration.source.host"), "Previous-generation backend base URL (required for migrate)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(fmt.Errorf("error binding flags: %w", err))
	}
}
