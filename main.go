package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tphakala/sleepmon/cmd"
	"github.com/tphakala/sleepmon/internal/buildinfo"
	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load the configuration
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	build := buildinfo.Current(systemID())

	rootCmd := cmd.RootCommand(settings, build)
	err = rootCmd.Execute()

	if cerr := logger.Global().Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Command execution error: %v\n", err)
		return 1
	}
	return 0
}

// systemID returns the identifier kept next to the config file.
func systemID() string {
	configPath, err := conf.FindConfigFile()
	if err != nil {
		return ""
	}
	id, err := buildinfo.LoadSystemID(afero.NewOsFs(), filepath.Dir(configPath))
	if err != nil {
		conf.GetLogger().Warn("failed to load system id", logger.Error(err))
		return ""
	}
	return id
}
