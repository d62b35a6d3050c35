// Package migrate applies the embedded admin schema migrations with golang-migrate
package migrate

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/orm/db"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
)

//go:embed migrations
var migrations embed.FS

// Runner wraps a migrate.Migrate bound to the embedded sources of one dialect
type Runner struct {
	m *migrate.Migrate
}

// zapLogger adapts zap to migrate.Logger
type zapLogger struct {
	log *zap.SugaredLogger
}

func (l zapLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

func (l zapLogger) Verbose() bool {
	return false
}

// New builds a runner for conn
func New(conn *db.DB, logger *zap.Logger) (*Runner, error) {
	dir := "migrations/postgres"
	if conn.Dialect == query.SQLite {
		dir = "migrations/sqlite3"
	}

	src, err := iofs.New(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	var m *migrate.Migrate
	switch conn.Dialect {
	case query.SQLite:
		driver, err := sqlite3.WithInstance(conn.DB, &sqlite3.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init sqlite3 migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", driver)
		if err != nil {
			return nil, err
		}
	default:
		driver, err := migratepgx.WithInstance(conn.DB, &migratepgx.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "pgx5", driver)
		if err != nil {
			return nil, err
		}
	}

	if logger != nil {
		m.Log = zapLogger{log: logger.Sugar()}
	}
	return &Runner{m: m}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back every migration
func (r *Runner) Down() error {
	if err := r.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the applied version; 0 when nothing has run yet
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Up is a convenience for New followed by Runner.Up. The runner is not closed
// since that would close conn as well.
func Up(conn *db.DB, logger *zap.Logger) error {
	r, err := New(conn, logger)
	if err != nil {
		return err
	}
	return r.Up()
}
