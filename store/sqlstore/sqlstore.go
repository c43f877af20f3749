/*
Package sqlstore provides a database/sql implementation of fleet.TxStore.

PURPOSE:
  One implementation for every SQL backend the engine runs on. Queries
  are written once with "?" placeholders and rebound for PostgreSQL.

DRIVERS:
  sqlite       github.com/mattn/go-sqlite3 (cgo), database/sql name "sqlite3"
  sqlite-pure  modernc.org/sqlite (pure Go),     database/sql name "sqlite"
  postgres     github.com/jackc/pgx/v5/stdlib,   database/sql name "pgx"

KEY TABLES:
  cars:      id, model, color, license_plate (unique), price, available
  customers: id, names, address, phone, drivers_license (unique), active
  rents:     id, car_id -> cars, customer_id -> customers, rent_date, due_date

  Dates are stored as "YYYY-MM-DD" text, prices as decimal text. Both sort
  and compare correctly as strings on every backend.

CONCURRENCY:
  SQLite runs on a single connection and WithTx holds a mutex, so units
  of work are serialized. PostgreSQL relies on the database: LockCar and
  LockCustomer take row locks (SELECT ... FOR UPDATE) and the unique
  indexes catch a duplicate plate or license at commit.

USAGE:
  store, err := sqlstore.Open(sqlstore.DriverSQLite, "./data/fleet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on Open() with CREATE ... IF NOT EXISTS.

SEE ALSO:
  - fleet/store.go: Interface definitions
  - fleet/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/fleet-rental/fleet"
	_ "modernc.org/sqlite"
)

var _ fleet.TxStore = (*Store)(nil)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite     Driver = "sqlite"
	DriverSQLitePure Driver = "sqlite-pure"
	DriverPostgres   Driver = "postgres"
)

// Store implements fleet.TxStore on a *sql.DB.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex
}

// New opens a SQLite database at dbPath with the cgo driver.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects to dsn with driver and migrates the schema.
func Open(driver Driver, dsn string) (*Store, error) {
	var (
		sqlName string
		source  = dsn
	)
	switch driver {
	case DriverSQLite, "":
		driver, sqlName = DriverSQLite, "sqlite3"
		if !strings.Contains(dsn, "?") {
			source = dsn + "?_foreign_keys=on&_journal_mode=WAL"
		}
	case DriverSQLitePure:
		sqlName = "sqlite"
		if !strings.Contains(dsn, "?") {
			source = dsn + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
		sqlName = "pgx"
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}

	db, err := sql.Open(sqlName, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver != DriverPostgres {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}

	store := &Store{conn: conn{q: db, d: dialect{driver: driver}}, db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver { return s.d.driver }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cars (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		color TEXT NOT NULL,
		license_plate TEXT NOT NULL,
		price TEXT NOT NULL,
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cars_license_plate ON cars(license_plate)`,
	`CREATE INDEX IF NOT EXISTS idx_cars_available ON cars(available)`,

	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		address TEXT NOT NULL,
		phone TEXT NOT NULL,
		drivers_license TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_drivers_license ON customers(drivers_license)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_active ON customers(active)`,

	`CREATE TABLE IF NOT EXISTS rents (
		id TEXT PRIMARY KEY,
		car_id TEXT NOT NULL REFERENCES cars(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		rent_date TEXT NOT NULL,
		due_date TEXT NOT NULL
	)`,
	// Overlap checks scan the rents of one car.
	`CREATE INDEX IF NOT EXISTS idx_rents_car_dates ON rents(car_id, rent_date)`,
	`CREATE INDEX IF NOT EXISTS idx_rents_customer ON rents(customer_id)`,
}

// migrate creates the database schema. Statements run one by one because
// the pgx driver rejects several statements in one prepared query.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (fleet.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(fleet.Store) error) error {
	if s.d.driver != DriverPostgres {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx, d: s.d}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(st fleet.Store) error {
		c := st.(*conn)
		for _, table := range []string{"rents", "customers", "cars"} {
			if _, err := c.exec(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// CONNECTION - Shared query code for *sql.DB and *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q querier
	d dialect
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// mustAffect turns a write that matched no row into a NotFoundError.
func mustAffect(res sql.Result, kind fleet.Kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &fleet.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// =============================================================================
// DIALECT
// =============================================================================

type dialect struct {
	driver Driver
}

// rebind rewrites "?" placeholders as "$1, $2, ..." for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// uniqueViolation reports whether err is a unique-index violation and which
// column caused it.
func uniqueViolation(err error) (column string, ok bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgerrcode.UniqueViolation {
			return "", false
		}
		return columnOf(pgErr.ConstraintName + " " + pgErr.Detail), true
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return "", false
	}
	return columnOf(msg), true
}

func columnOf(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "license_plate"):
		return "license_plate"
	case strings.Contains(s, "drivers_license"):
		return "drivers_license"
	default:
		return "id"
	}
}
