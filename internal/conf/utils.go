// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

const (
	osLinux   = "linux"
	osWindows = "windows"
)

// GetDefaultConfigPaths returns the config directories for the current OS.
// If one of them already holds config.yaml, only that one is returned.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "sleepmon"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "sleepmon"),
			"/etc/sleepmon",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile locates the configuration file.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.Newf("config file not found").
		Component("conf").
		Category(errors.CategoryNotFound).
		Context("operation", "find-config-file").
		Build()
}

// GetBasePath expands environment variables in path, cleans it and creates
// the directory when missing.
func GetBasePath(path string) string {
	basePath := filepath.Clean(os.ExpandEnv(path))

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o750); err != nil {
			GetLogger().Warn("failed to create directory",
				logger.String("path", basePath),
				logger.Error(err))
		}
	}

	return basePath
}

// CheckDeviceGroups warns when the current Linux user lacks the groups
// needed for sysfs GPIO and audio capture.
func CheckDeviceGroups() {
	if runtime.GOOS != osLinux {
		return
	}

	currentUser, err := user.Current()
	if err != nil || currentUser.Username == "root" {
		return
	}

	groupIDs, err := currentUser.GroupIds()
	if err != nil {
		GetLogger().Warn("failed to get group memberships", logger.Error(err))
		return
	}

	var names []string
	for _, gid := range groupIDs {
		group, err := user.LookupGroupId(gid)
		if err != nil {
			continue
		}
		names = append(names, group.Name)
	}

	for _, required := range []string{"gpio", "audio"} {
		if !slices.Contains(names, required) {
			GetLogger().Warn("user is not in a device group, sensor access may fail",
				logger.String("user", currentUser.Username),
				logger.String("group", required))
		}
	}
}
