package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed catalog_migrations/*.sql
var embedCatalogMigrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	memoryPath = ":memory:"
)

// DB wraps the database connection and provides access to the repositories
type DB struct {
	conn        *sql.DB
	driver      string
	Catalog     *CatalogRepository
	Categories  *CategoryRepository
	Connections *ConnectionRepository
}

// Config holds database configuration
type Config struct {
	Driver       string // "sqlite" (default) or "postgres"
	DatabasePath string // sqlite file path, ":memory:" for an ephemeral database
	DSN          string // postgres connection string
}

// NewDB creates a new database connection and runs migrations
func NewDB(config Config) (*DB, error) {
	var (
		conn    *sql.DB
		dialect string
		err     error
	)

	switch strings.ToLower(config.Driver) {
	case "", DriverSQLite:
		conn, err = openSQLite(config.DatabasePath)
		dialect = "sqlite3"
	case DriverPostgres:
		conn, err = openPostgres(config.DSN)
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := runMigrations(conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return newDB(conn, dialect), nil
}

func newDB(conn *sql.DB, driver string) *DB {
	return &DB{
		conn:        conn,
		driver:      driver,
		Catalog:     NewCatalogRepository(conn),
		Categories:  NewCategoryRepository(conn),
		Connections: NewConnectionRepository(conn),
	}
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required for sqlite")
	}

	memory := path == memoryPath
	connString := path
	if !memory {
		// Catalog writes are bursty (bulk node inserts) and reads dominate otherwise
		connString = fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000&_foreign_keys=on", path)
	}

	conn, err := sql.Open("sqlite3", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		// Every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxIdleTime(0)
	} else {
		conn.SetMaxOpenConns(8)
		conn.SetMaxIdleConns(3)
		conn.SetConnMaxIdleTime(15 * time.Minute)
	}
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	if !memory {
		pragmas = append(pragmas,
			"PRAGMA cache_size = -32000", // 32MB cache
			"PRAGMA busy_timeout = 30000",
			"PRAGMA wal_autocheckpoint = 1000",
		)
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma '%s': %w", pragma, err)
		}
	}

	return conn, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required for postgres")
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(16)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxIdleTime(15 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}

// runMigrations runs database migrations using Goose
func runMigrations(db *sql.DB, dialect string) error {
	goose.SetBaseFS(embedCatalogMigrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "catalog_migrations"); err != nil {
		return fmt.Errorf("failed to run catalog migrations: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Connection returns the underlying database connection
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Driver returns the goose dialect the database was migrated with
func (db *DB) Driver() string {
	return db.driver
}
