package storage

import (
	"fmt"
	"path/filepath"

	"github.com/zakazai/tracklog/internal/types"
)

type StorageType string

const (
	InMemoryStorageType StorageType = "memory"
	CSVStorageType      StorageType = "csv"
	XLSXStorageType     StorageType = "xlsx"
	ParquetStorageType  StorageType = "parquet"
	SQLiteStorageType   StorageType = "sqlite"
)

// SQLiteFileName is the database file used by the sqlite format inside Dir
const SQLiteFileName = "tracklog.db"

type StorageConfig struct {
	Type   StorageType
	Dir    string // Used by every type except memory
	Logger *types.Logger
}

// NewStorage creates a new storage instance based on the provided configuration
func NewStorage(config StorageConfig) (Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = types.GlobalLogger
	}

	if config.Type != InMemoryStorageType && config.Dir == "" {
		return nil, fmt.Errorf("data directory is required for %s storage", config.Type)
	}

	switch config.Type {
	case InMemoryStorageType:
		return NewInMemoryStorage(), nil
	case CSVStorageType:
		return NewCSVStorage(config.Dir, logger), nil
	case XLSXStorageType:
		return NewXLSXStorage(config.Dir, logger), nil
	case ParquetStorageType:
		return NewParquetStorage(config.Dir, logger), nil
	case SQLiteStorageType:
		return OpenSQLiteStorage(filepath.Join(config.Dir, SQLiteFileName), logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
