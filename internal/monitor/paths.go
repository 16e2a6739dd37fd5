package monitor

import (
	"os"
	"path/filepath"

	"github.com/tphakala/sleepmon/internal/conf"
)

// CriticalPaths returns the directories sleepmon writes to: the session log
// directory, the SQLite index directory and the config directory.
func CriticalPaths(settings *conf.Settings) []string {
	paths := []string{settings.Storage.LogDir}

	idx := settings.Storage.Index
	if idx.Enabled && idx.Type == conf.IndexSQLite && idx.SQLite.Path != "" {
		paths = append(paths, filepath.Dir(resolvePath(idx.SQLite.Path)))
	}

	if configPath, err := conf.FindConfigFile(); err == nil {
		paths = append(paths, filepath.Dir(configPath))
	}

	return deduplicatePaths(paths)
}

// resolvePath expands environment variables and makes path absolute.
func resolvePath(path string) string {
	path = filepath.Clean(os.ExpandEnv(path))
	if !filepath.IsAbs(path) {
		if absPath, err := filepath.Abs(path); err == nil {
			path = absPath
		}
	}
	return path
}

// deduplicatePaths removes empty and duplicate paths, keeping order.
func deduplicatePaths(paths []string) []string {
	seen := make(map[string]bool)
	unique := make([]string, 0, len(paths))

	for _, path := range paths {
		if path == "" || filepath.Clean(path) == "." {
			continue
		}
		cleaned := resolvePath(path)
		if !seen[cleaned] {
			seen[cleaned] = true
			unique = append(unique, cleaned)
		}
	}
	return unique
}
