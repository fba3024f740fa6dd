// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the content repository for fieldref.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a section, content item or user is absent.
	ErrNotFound = errors.New("not found")

	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedDriver is returned by Open for unknown drivers.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// ValidationError reports the field that was rejected and the constraint it violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// DeletePolicy decides what happens to the child sections of a deleted section.
type DeletePolicy string

const (
	// DeleteReparent moves direct children to the deleted section's parent.
	DeleteReparent DeletePolicy = "reparent"

	// DeleteCascade deletes the whole subtree, content first.
	DeleteCascade DeletePolicy = "cascade"
)

// Valid reports whether p is a known policy.
func (p DeletePolicy) Valid() bool {
	return p == DeleteReparent || p == DeleteCascade
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds repository configuration.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string

	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string

	// MaxTitleLength bounds section titles, in characters.
	MaxTitleLength int

	// MaxButtonLength bounds content button labels, in characters.
	MaxButtonLength int

	// DeletePolicy controls child sections on delete.
	DeletePolicy DeletePolicy
}

// DefaultConfig returns the default configuration for a sqlite file at path.
func DefaultConfig(path string) *Config {
	return &Config{
		Driver:          DriverSQLite,
		DSN:             path,
		MaxTitleLength:  100,
		MaxButtonLength: 64,
		DeletePolicy:    DeleteReparent,
	}
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository is the content repository. It is safe for concurrent use.
type Repository struct {
	db      *sql.DB
	dialect dialect
	cfg     Config
	log     zerolog.Logger

	// now is the clock; tests replace it
	now func() time.Time
}

// Open opens (and if needed creates) the repository described by cfg.
func Open(cfg *Config, logger zerolog.Logger) (*Repository, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	c := *cfg
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.MaxTitleLength <= 0 {
		c.MaxTitleLength = 100
	}
	if c.MaxButtonLength <= 0 {
		c.MaxButtonLength = 64
	}
	if c.DeletePolicy == "" {
		c.DeletePolicy = DeleteReparent
	}
	if !c.DeletePolicy.Valid() {
		return nil, fmt.Errorf("invalid delete policy %q", c.DeletePolicy)
	}

	d, err := dialectFor(c.Driver)
	if err != nil {
		return nil, err
	}

	if d.name == DriverSQLite && c.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(d.name, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d.name == DriverSQLite {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma: %w", err)
			}
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	r := &Repository{
		db:      db,
		dialect: d,
		cfg:     c,
		log:     logger.With().Str("component", "storage").Logger(),
		now:     time.Now,
	}

	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	r.log.Debug().Str("driver", d.name).Msg("repository opened")
	return r, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Config returns the effective repository configuration.
func (r *Repository) Config() Config {
	return r.cfg
}

func (r *Repository) initSchema() error {
	_, err := r.db.Exec(r.dialect.schema)
	return err
}

// =============================================================================
// SQL PLUMBING
// =============================================================================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// conn binds a querier to the dialect so queries can be written with '?'.
type conn struct {
	q querier
	d dialect
}

func (c conn) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// read returns a conn on the pooled handle for single-statement reads.
func (r *Repository) read() conn {
	return conn{q: r.db, d: r.dialect}
}

// withTx runs fn in a transaction, committing on success.
// fn must only use the conn it is given; with a single sqlite connection
// any use of r.db inside fn would deadlock.
func (r *Repository) withTx(ctx context.Context, fn func(c conn) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(conn{q: tx, d: r.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// DIALECTS
// =============================================================================

type dialect struct {
	name   string
	schema string
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3":
		return dialect{name: DriverSQLite, schema: sqliteSchema}, nil
	case DriverPostgres, "postgresql", "pq":
		return dialect{name: DriverPostgres, schema: postgresSchema}, nil
	}
	return dialect{}, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
}

// rebind rewrites '?' placeholders as $1..$n for postgres.
func (d dialect) rebind(query string) string {
	if d.name != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// =============================================================================
// VALUE HELPERS
// =============================================================================

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (r *Repository) nowNanos() int64 {
	return r.now().UTC().UnixNano()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
