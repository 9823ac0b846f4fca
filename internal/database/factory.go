package database

import (
	"fmt"
	"path/filepath"

	"mediadex/internal/config"
)

// NewStoreFromConfig creates a SQLiteStore based on the database config.
// A nil result with a nil error means no store is configured (transient
// mode).
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "mediadex.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
