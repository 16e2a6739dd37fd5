// Package config implements the config command.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/sleepmon/internal/conf"
)

// Command creates the config command with its show and path subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as YAML with credentials redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return conf.WriteYAML(cmd.OutOrStdout(), settings)
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the path of the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := conf.FindConfigFile()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
			return err
		},
	}

	cmd.AddCommand(show, path)
	return cmd
}
