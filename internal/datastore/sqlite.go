package datastore

import (
	"path/filepath"

	"gorm.io/driver/sqlite"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/errors"
)

// OpenSQLiteIndex opens an index in a SQLite file, creating its directory
// when missing.
func OpenSQLiteIndex(path string) (*Index, error) {
	if path == "" {
		return nil, errors.ValidationError("sqlite index path is empty")
	}

	dir, fileName := filepath.Split(path)
	absolute := filepath.Join(conf.GetBasePath(dir), fileName)

	return newIndex(sqlite.Open(absolute+"?_busy_timeout=5000&_journal_mode=WAL"), conf.IndexSQLite, absolute)
}
