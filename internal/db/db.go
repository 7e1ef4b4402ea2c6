// Package db provides the launcher's operational event-history store.
package db

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/Sakenfor/pixsim7-sub008/internal/constants"
	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config represents database configuration
type Config struct {
	// Path is the SQLite database file location
	Path string
	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int
	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int
}

// DefaultConfig returns a default SQLite configuration
func DefaultConfig(path string) *Config {
	return &Config{
		Path:         path,
		MaxOpenConns: constants.DefaultMaxOpenConnections,
		MaxIdleConns: constants.DefaultMaxIdleConnections,
	}
}

// DB wraps sqlx.DB with launcher-specific helpers
type DB struct {
	*sqlx.DB
	config *Config
}

// New creates a database connection and runs pending migrations.
func New(cfg *Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), constants.DirPermissions); err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseConnection, "Failed to create database directory", err)
	}

	database, err := sqlx.Connect("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseConnection, "Failed to open database", err)
	}

	database.SetMaxOpenConns(cfg.MaxOpenConns)
	database.SetMaxIdleConns(cfg.MaxIdleConns)
	database.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{DB: database, config: cfg}
	if err := db.migrate(); err != nil {
		database.Close()
		return nil, err
	}
	return db, nil
}

// migrate applies embedded migrations.
func (db *DB) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseMigration, "Failed to load migrations", err)
	}

	driver, err := sqlite3.WithInstance(db.DB.DB, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseMigration, "Failed to create migration driver", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseMigration, "Failed to create migrator", err)
	}

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(errors.ErrDatabaseMigration, "Failed to run migrations", err)
	}
	return nil
}

// Ping verifies the database connection.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
