package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// Storage represents the main storage implementation.
type Storage struct {
	db     Database
	logger *log.Logger
	UserStore
	PortfolioStore
	NodeStore
	AssetStore
}

// NewStorage creates a new Storage instance and initializes the database.
func NewStorage(config *model.Config, logger *log.Logger) (*Storage, error) {
	dbDriver, err := validateDBDriver(config.DatabaseType)
	if err != nil {
		return nil, fmt.Errorf("invalid database driver '%s': %w", config.DatabaseType, err)
	}

	db, err := NewDatabase(dbDriver, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database instance: %w", err)
	}

	// Construct the full path for the database file
	dataSourceName := filepath.Join(config.DatabaseDir, config.DatabaseFile)

	// Open the database connection
	if err := db.Open(dataSourceName); err != nil {
		return nil, fmt.Errorf("failed to open database connection '%s': %w", dataSourceName, err)
	}

	storage, err := NewStorageWithDatabase(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// NewStorageWithDatabase builds the stores on top of an opened database and creates the schema.
func NewStorageWithDatabase(db Database, logger *log.Logger) (*Storage, error) {
	storage := &Storage{
		db:     db,
		logger: logger,
	}

	if err := db.InitSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Create storages
	storage.UserStore = NewUserStorage(storage)
	storage.PortfolioStore = NewPortfolioStorage(storage)
	storage.NodeStore = NewNodeStorage(storage)
	storage.AssetStore = NewAssetStorage(storage)

	return storage, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// GetDatabase returns the database instance
func (s *Storage) GetDatabase() Database {
	return s.db
}
