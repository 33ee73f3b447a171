package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// Fixed width keeps the stored text sortable.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type sqliteQueries struct {
	db  sqliteDB
	now func() time.Time
}

// SQLiteStore is the embedded backend. Writers are serialized through a single
// connection, so a transaction owns every row it reads until it ends.
type SQLiteStore struct {
	sqliteQueries
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := NewSQLiteStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		sqliteQueries: sqliteQueries{db: db, now: time.Now},
		db:            db,
	}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translateSQLiteError(err))
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{sqliteQueries{db: tx, now: s.now}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translateSQLiteError(err))
	}
	return nil
}

// Seed inserts airports that are not present yet, matched by code.
func (s *SQLiteStore) Seed(ctx context.Context, airports []domain.Airport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateSQLiteError(err)
	}
	defer tx.Rollback()

	for _, a := range airports {
		if _, err := tx.ExecContext(ctx, `INSERT INTO airports (code, name, city, country) VALUES (?, ?, ?, ?)
			ON CONFLICT (code) DO NOTHING`, a.Code, a.Name, a.City, a.Country); err != nil {
			return fmt.Errorf("seed airport %s: %w", a.Code, translateSQLiteError(err))
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	sqliteQueries
}

func (q *sqliteQueries) timestamp() string {
	return formatSQLiteTime(q.now())
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// sqliteTime scans the TEXT timestamps written by formatSQLiteTime.
type sqliteTime struct {
	dst *time.Time
}

func (t sqliteTime) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*t.dst = time.Time{}
		return nil
	case time.Time:
		*t.dst = v
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t.dst = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid time value %q", raw)
}

func translateSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		msg := sqliteErr.Error()
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			switch {
			case strings.Contains(msg, "UNIQUE constraint failed"):
				return fmt.Errorf("%w: %s", ErrDuplicate, msg)
			case strings.Contains(msg, "FOREIGN KEY constraint failed"):
				return fmt.Errorf("%w: %s", ErrReferenced, msg)
			}
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %s", domain.ErrTransactionConflict, msg)
		}
	}
	return err
}

func sqliteNotFound(entity string, id int64, err error) error {
	err = translateSQLiteError(err)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}
	return err
}

func sqliteExpectRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Tx    = (*sqliteTx)(nil)
)
