// Package storage provides functionality for persisting and retrieving Portfolio Tree data.
// This file handles the general SQL database interfaces and schemas.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"portfoliotree/app/src/pkg/log"
)

// DBDriver represents the type of database driver
type DBDriver string

const (
	SQLite       DBDriver = "sqlite"        // github.com/mattn/go-sqlite3, needs cgo
	SQLiteNative DBDriver = "sqlite-native" // modernc.org/sqlite, pure Go
)

// Querier is the subset of *sql.DB and *sql.Tx used by the stores
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Database interface defines common database operations
type Database interface {
	Querier
	Open(dataSourceName string) error
	Close() error
	InitSchema(ctx context.Context) error
	// Tx runs fn inside a transaction, committing when fn returns nil and rolling back otherwise.
	Tx(ctx context.Context, fn func(q Querier) error) error
}

// NewDatabase creates a new Database instance based on the specified driver
func NewDatabase(driver DBDriver, logger *log.Logger) (Database, error) {
	switch driver {
	case SQLite, SQLiteNative:
		return &SQLiteDatabase{BaseDatabase: BaseDatabase{logger: logger}, driver: driver}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// NewDatabaseFromDB wraps an already opened connection pool
func NewDatabaseFromDB(db *sql.DB, logger *log.Logger) Database {
	return &SQLiteDatabase{BaseDatabase: BaseDatabase{db: db, logger: logger}}
}

// BaseDatabase provides a base implementation of some Database methods
type BaseDatabase struct {
	db     *sql.DB
	logger *log.Logger
}

// Tx runs fn in a transaction
func (b *BaseDatabase) Tx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		b.logger.Error(ctx, "Failed to begin transaction", log.Fields{"error": err})
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&loggedTx{tx: tx, logger: b.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			b.logger.Error(ctx, "Failed to rollback transaction", log.Fields{"error": rbErr})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		b.logger.Error(ctx, "Failed to commit transaction", log.Fields{"error": err})
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecContext executes a query without returning any rows
func (b *BaseDatabase) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	b.logger.Debug(ctx, "Executing query", log.Fields{"query": query, "args": args})
	return b.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows
func (b *BaseDatabase) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	b.logger.Debug(ctx, "Querying", log.Fields{"query": query, "args": args})
	return b.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that is expected to return at most one row
func (b *BaseDatabase) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	b.logger.Debug(ctx, "Querying row", log.Fields{"query": query, "args": args})
	return b.db.QueryRowContext(ctx, query, args...)
}

// loggedTx adds debug logging to the statements run inside Tx
type loggedTx struct {
	tx     *sql.Tx
	logger *log.Logger
}

func (t *loggedTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	t.logger.Debug(ctx, "Executing query in transaction", log.Fields{"query": query, "args": args})
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *loggedTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	t.logger.Debug(ctx, "Querying in transaction", log.Fields{"query": query, "args": args})
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *loggedTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash BLOB NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created DATETIME NOT NULL,
		updated DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS portfolios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_name TEXT NOT NULL,
		owner TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_public BOOLEAN NOT NULL DEFAULT 0,
		created DATETIME NOT NULL,
		updated DATETIME NOT NULL,
		FOREIGN KEY (owner) REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE,
		UNIQUE (portfolio_name, owner)
	)`,
	// parent_id has no foreign key: a dangling parent is a valid state and renders as a root.
	`CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		portfolio_id INTEGER NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		node_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		sort_order INTEGER NOT NULL DEFAULT 0,
		is_visible BOOLEAN NOT NULL DEFAULT 1,
		created DATETIME NOT NULL,
		updated DATETIME NOT NULL,
		FOREIGN KEY (portfolio_id) REFERENCES portfolios(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_portfolio_parent ON nodes (portfolio_id, parent_id)`,
	`CREATE TABLE IF NOT EXISTS node_content (
		node_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (node_id, key),
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		portfolio_id INTEGER NOT NULL,
		node_id TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		storage_key TEXT NOT NULL,
		created DATETIME NOT NULL,
		FOREIGN KEY (portfolio_id) REFERENCES portfolios(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_portfolio ON assets (portfolio_id)`,
}

// InitSchema initializes the database schema
func (b *BaseDatabase) InitSchema(ctx context.Context) error {
	b.logger.Info(ctx, "Initializing database schema", nil)

	err := b.Tx(ctx, func(q Querier) error {
		for _, stmt := range schema {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.logger.Error(ctx, "Failed to create tables", log.Fields{"error": err})
		return fmt.Errorf("failed to create tables: %w", err)
	}
	b.logger.Info(ctx, "Database schema initialized successfully", nil)
	return nil
}

// validateDBDriver checks if the provided driver is supported
func validateDBDriver(driver string) (DBDriver, error) {
	switch DBDriver(driver) {
	case SQLite:
		return SQLite, nil
	case SQLiteNative:
		return SQLiteNative, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}
