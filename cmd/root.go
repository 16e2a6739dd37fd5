package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/sleepmon/cmd/config"
	"github.com/tphakala/sleepmon/cmd/index"
	"github.com/tphakala/sleepmon/cmd/monitor"
	"github.com/tphakala/sleepmon/cmd/report"
	"github.com/tphakala/sleepmon/cmd/sessions"
	"github.com/tphakala/sleepmon/internal/buildinfo"
	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sleepmon",
		Short:        "Sleep quality monitor",
		Version:      build.GetVersion(),
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	subcommands := []*cobra.Command{
		monitor.Command(settings, build),
		sessions.Command(settings),
		report.Command(),
		index.Command(settings),
		config.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// flags are parsed at this point, so --debug is reflected in the logger
		return initialize(settings)
	}

	return rootCmd
}

// initialize installs the central logger configured by the settings.
func initialize(settings *conf.Settings) error {
	central, err := logger.NewCentralLogger(settings.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	previous := logger.Global()
	logger.SetGlobal(central)
	if err := previous.Close(); err != nil {
		central.Module("main").Warn("failed to close previous logger", logger.Error(err))
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.Name, "name", viper.GetString("main.name"), "Node name used in reports and MQTT topics")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
