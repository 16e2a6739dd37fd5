// Package buildinfo holds build metadata and the persistent system identifier.
package buildinfo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// SystemIDFile is the name of the file holding the system identifier.
const SystemIDFile = ".system_id"

// Set at link time:
//
//	-ldflags "-X github.com/tphakala/sleepmon/internal/buildinfo.version=v1.2.0"
var (
	version   string
	buildDate string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	Version   string
	BuildDate string
	SystemID  string // random, stable across restarts, tags telemetry events
}

// NewContext returns a Context with the given values.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{Version: version, BuildDate: buildDate, SystemID: systemID}
}

// Current returns the linked build metadata with systemID.
func Current(systemID string) *Context {
	return NewContext(version, buildDate, systemID)
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// GetSystemID returns the system identifier or UnknownValue.
func (c *Context) GetSystemID() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.SystemID)
}

// Fields returns the metadata as log fields.
func (c *Context) Fields() []logger.Field {
	return []logger.Field{
		logger.String("version", c.GetVersion()),
		logger.String("build_date", c.GetBuildDate()),
		logger.String("system_id", c.GetSystemID()),
	}
}

// LoadSystemID reads the identifier stored in dir, creating it on first use.
func LoadSystemID(afs afero.Fs, dir string) (string, error) {
	path := filepath.Join(dir, SystemIDFile)

	data, err := afero.ReadFile(afs, path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); uuid.Validate(id) == nil {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", errors.FileError(err, path)
	}

	id := uuid.NewString()
	if err := afs.MkdirAll(dir, 0o755); err != nil {
		return "", errors.FileError(err, dir)
	}
	if err := afero.WriteFile(afs, path, []byte(id+"\n"), 0o644); err != nil {
		return "", errors.FileError(err, path)
	}
	return id, nil
}
