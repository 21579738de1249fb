package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/pable/go-curling-metrics/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB for the feature store.
type DB struct {
	conn *sql.DB
	log  logger.Logger
}

// Open opens (or creates) the SQLite database at the given path and migrates
// it to the latest schema.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, log: logger.Named("storage")}
	if err := db.MigrateUp(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// MigrateUp applies every pending migration.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close db.conn too.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version and dirty flag.
func (db *DB) SchemaVersion() (uint, bool, error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db.conn, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{log: db.log}
	return m, nil
}

// migrateLogger routes golang-migrate output to the storage logger.
type migrateLogger struct {
	log logger.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool { return false }
