package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_pg.sql
var pgSchema string

// pgDB is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgBeginner is satisfied by *pgxpool.Pool.
type pgBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type pgQueries struct {
	db pgDB
}

type PGStore struct {
	pgQueries
	pool        *pgxpool.Pool
	begin       pgBeginner
	lockTimeout time.Duration
}

type PGStoreOption func(*PGStore)

// WithLockTimeout bounds how long a transaction waits for a row lock.
func WithLockTimeout(d time.Duration) PGStoreOption {
	return func(s *PGStore) {
		s.lockTimeout = d
	}
}

func NewPGStore(pool *pgxpool.Pool, opts ...PGStoreOption) *PGStore {
	s := &PGStore{
		pgQueries: pgQueries{db: pool},
		pool:      pool,
		begin:     pool,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.begin.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", translatePGError(err))
	}
	defer tx.Rollback(ctx)

	if s.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, lockTimeoutStatement(s.lockTimeout)); err != nil {
			return fmt.Errorf("set lock timeout: %w", translatePGError(err))
		}
	}

	if err := fn(&pgTx{pgQueries{db: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", translatePGError(err))
	}
	return nil
}

func lockTimeoutStatement(d time.Duration) string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", max(d.Milliseconds(), 1))
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Seed inserts airports that are not present yet, matched by code.
func (s *PGStore) Seed(ctx context.Context, airports []domain.Airport) error {
	tx, err := s.begin.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return translatePGError(err)
	}
	defer tx.Rollback(ctx)

	for _, a := range airports {
		if _, err := tx.Exec(ctx, `INSERT INTO airports (code, name, city, country) VALUES ($1, $2, $3, $4)
			ON CONFLICT (code) DO NOTHING`, a.Code, a.Name, a.City, a.Country); err != nil {
			return fmt.Errorf("seed airport %s: %w", a.Code, translatePGError(err))
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	pgQueries
}

// translatePGError maps driver errors onto the domain and repository sentinels.
func translatePGError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrReferenced, pgErr.ConstraintName)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", domain.ErrTransactionConflict, pgErr.Message)
		}
	}
	return err
}

func notFound(entity string, id int64, err error) error {
	err = translatePGError(err)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}
	return err
}

var (
	_ Store = (*PGStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
