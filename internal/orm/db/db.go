// Package db opens the admin database and picks the SQL dialect from the URL
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/conduit-admin/internal/orm/query"
)

// Driver names registered with database/sql
const (
	DriverPgx     = "pgx"
	DriverPQ      = "postgres"
	DriverSQLite3 = "sqlite3"
)

// Config holds the connection and pool settings
type Config struct {
	URL string
	// Driver overrides the driver chosen from the URL scheme ("pgx" or "postgres" for postgres URLs)
	Driver string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns pool settings suitable for an admin backend
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// DB is an open connection pool together with its dialect
type DB struct {
	*sql.DB
	Driver  string
	Dialect query.Dialect
}

// Resolve maps a database URL to the driver name, DSN and dialect
func Resolve(url, driver string) (string, string, query.Dialect, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		if driver == "" {
			driver = DriverPgx
		}
		if driver != DriverPgx && driver != DriverPQ {
			return "", "", 0, fmt.Errorf("driver %s cannot open postgres urls", driver)
		}
		return driver, url, query.Postgres, nil

	case strings.HasPrefix(url, "sqlite3://"):
		return DriverSQLite3, sqliteDSN(strings.TrimPrefix(url, "sqlite3://")), query.SQLite, nil

	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite3, sqliteDSN(strings.TrimPrefix(url, "sqlite://")), query.SQLite, nil

	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return DriverSQLite3, sqliteDSN(url), query.SQLite, nil

	default:
		return "", "", 0, fmt.Errorf("unsupported database url: %q", url)
	}
}

// sqliteDSN turns foreign keys on, which sqlite leaves off by default
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// Open opens and pings the database
func Open(ctx context.Context, cfg Config) (*DB, error) {
	driver, dsn, dialect, err := Resolve(cfg.URL, cfg.Driver)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: conn, Driver: driver, Dialect: dialect}, nil
}
