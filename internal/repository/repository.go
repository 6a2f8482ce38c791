// Package repository reads the LMS tables that back the cache loaders. It
// implements every entity source on PostgreSQL (lib/pq) or SQLite
// (modernc.org/sqlite). Queries use ? placeholders and are rebound for the
// driver in use.
package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Default page size when a listing asks for none.
const defaultPerPage = 15

// Repository implements the entity sources on a SQL database.
type Repository struct {
	db *sqlx.DB
}

var (
	_ entity.CourseSource    = (*Repository)(nil)
	_ entity.UserSource      = (*Repository)(nil)
	_ entity.CategorySource  = (*Repository)(nil)
	_ entity.DashboardSource = (*Repository)(nil)
)

// Open connects to the database. driver is "postgres" or "sqlite".
func Open(driver, dsn string) (*Repository, error) {
	switch driver {
	case "postgres":
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		return &Repository{db: db}, nil

	case "sqlite":
		db, err := sqlx.Connect("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
		}
		// One connection, so an in-memory database is shared by all queries.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		return &Repository{db: db}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedDriver, driver)
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func stripComments(stmt string) string {
	var b strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (r *Repository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := r.db.GetContext(ctx, dest, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrNotFound
	}
	return err
}

func (r *Repository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...)
}

// exists reports whether a row with id exists in table. table is never user input.
func (r *Repository) exists(ctx context.Context, table string, id int64) error {
	var n int
	if err := r.get(ctx, &n, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id); err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func pageBounds(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return page, perPage, (page - 1) * perPage
}
