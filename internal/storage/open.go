package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"go-page-designer/pkg/fsutils"
)

// Drivers understood by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"

	sqliteFileName = "designer.db"
)

// Open creates the store for driver rooted at path. The returned func
// releases the store.
func Open(driver, path string, logger *slog.Logger) (DataStore, func() error, error) {
	switch driver {
	case DriverSQLite:
		if err := fsutils.CreateDir(path); err != nil {
			return nil, nil, err
		}
		dbPath := filepath.Join(path, sqliteFileName)
		if !fsutils.FileExists(dbPath) && logger != nil {
			logger.Info("Creating new template database", "path", dbPath)
		}
		store, err := NewSQLiteStore(dbPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case DriverJSON, "":
		store, err := NewJSONStore(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
