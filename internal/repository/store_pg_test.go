package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow scans values into destinations, converting to the destination type.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) || r.values[i] == nil {
			continue
		}
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(r.values[i]).Convert(target.Type()))
	}
	return nil
}

type statement struct {
	sql  string
	args []any
}

// recordingDB records every statement and answers QueryRow with row.
type recordingDB struct {
	execs   []statement
	queries []statement
	row     fakeRow
	execErr error
}

func (db *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, statement{sql, args})
	return pgconn.NewCommandTag("UPDATE 1"), db.execErr
}

func (db *recordingDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.queries = append(db.queries, statement{sql, args})
	return nil, errors.New("query not supported")
}

func (db *recordingDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.queries = append(db.queries, statement{sql, args})
	return db.row
}

type fakeTx struct {
	pgx.Tx
	db         *recordingDB
	commitErr  error
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return tx.db.Exec(ctx, sql, args...)
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return tx.db.Query(ctx, sql, args...)
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return tx.db.QueryRow(ctx, sql, args...)
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	err  error
	opts []pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = append(b.opts, opts)
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func newFakePGStore(lockTimeout time.Duration, row fakeRow) (*PGStore, *fakeBeginner) {
	beginner := &fakeBeginner{tx: &fakeTx{db: &recordingDB{row: row}}}
	store := &PGStore{
		pgQueries:   pgQueries{db: &recordingDB{row: row}},
		begin:       beginner,
		lockTimeout: lockTimeout,
	}
	return store, beginner
}

var departure = time.Date(2026, 10, 20, 7, 45, 0, 0, time.UTC)

func flightRow() fakeRow {
	return fakeRow{values: []any{
		int64(7), "JU 500", int64(1), int64(2), "BEG", "CDG",
		departure, departure.Add(2 * time.Hour), 180, 12, int64(15999), departure, departure,
	}}
}

func TestNewPGStore(t *testing.T) {
	store := NewPGStore(&pgxpool.Pool{}, WithLockTimeout(2*time.Second))
	assert.NotNil(t, store)
	assert.Equal(t, 2*time.Second, store.lockTimeout)
}

func TestTranslatePGError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "bookings_booking_code_key"}, ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrReferenced},
		{"serialization", &pgconn.PgError{Code: "40001"}, domain.ErrTransactionConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrTransactionConflict},
		{"lock timeout", fmt.Errorf("lock flight: %w", &pgconn.PgError{Code: "55P03"}), domain.ErrTransactionConflict},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translatePGError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestNotFoundWrapsEntity(t *testing.T) {
	err := notFound("booking", 12, pgx.ErrNoRows)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "booking 12")
}

func TestLockTimeoutStatement(t *testing.T) {
	assert.Equal(t, "SET LOCAL lock_timeout = '1500ms'", lockTimeoutStatement(1500*time.Millisecond))
	assert.Equal(t, "SET LOCAL lock_timeout = '1ms'", lockTimeoutStatement(time.Microsecond))
}

func TestPGStore_InTx_LocksFlightUnderTimeout(t *testing.T) {
	store, beginner := newFakePGStore(1500*time.Millisecond, flightRow())
	ctx := context.Background()

	var locked *domain.Flight
	err := store.InTx(ctx, func(tx Tx) error {
		var err error
		locked, err = tx.LockFlight(ctx, 7)
		return err
	})

	require.NoError(t, err)
	require.Len(t, beginner.opts, 1)
	assert.Equal(t, pgx.ReadCommitted, beginner.opts[0].IsoLevel)

	db := beginner.tx.db
	require.Len(t, db.execs, 1)
	assert.Equal(t, "SET LOCAL lock_timeout = '1500ms'", db.execs[0].sql)
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0].sql, "WHERE f.id=$1 FOR UPDATE OF f")
	assert.Equal(t, []any{int64(7)}, db.queries[0].args)
	assert.True(t, beginner.tx.committed)

	require.NotNil(t, locked)
	assert.Equal(t, "JU 500", locked.Code)
	assert.Equal(t, 12, locked.AvailableSeats)
	assert.Equal(t, domain.NewMoney(159, 99), locked.BasePrice)
}

func TestPGStore_InTx_NoLockTimeout(t *testing.T) {
	store, beginner := newFakePGStore(0, flightRow())

	err := store.InTx(context.Background(), func(Tx) error { return nil })

	require.NoError(t, err)
	assert.Empty(t, beginner.tx.db.execs)
	assert.True(t, beginner.tx.committed)
}

func TestPGStore_InTx_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("begin", func(t *testing.T) {
		store, beginner := newFakePGStore(time.Second, fakeRow{})
		beginner.err = &pgconn.PgError{Code: "40001"}

		err := store.InTx(ctx, func(Tx) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
	})

	t.Run("lock timeout statement", func(t *testing.T) {
		store, beginner := newFakePGStore(time.Second, fakeRow{})
		beginner.tx.db.execErr = errors.New("syntax error")

		called := false
		err := store.InTx(ctx, func(Tx) error {
			called = true
			return nil
		})
		assert.ErrorContains(t, err, "set lock timeout")
		assert.False(t, called)
		assert.True(t, beginner.tx.rolledBack)
	})

	t.Run("fn error rolls back", func(t *testing.T) {
		store, beginner := newFakePGStore(time.Second, fakeRow{})
		boom := errors.New("boom")

		err := store.InTx(ctx, func(Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, beginner.tx.committed)
		assert.True(t, beginner.tx.rolledBack)
	})

	t.Run("lock wait expires", func(t *testing.T) {
		store, beginner := newFakePGStore(time.Second, fakeRow{err: &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}})

		err := store.InTx(ctx, func(tx Tx) error {
			_, err := tx.LockBooking(ctx, 3)
			return err
		})
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
		assert.True(t, domain.IsRetryable(err))
		assert.True(t, beginner.tx.rolledBack)
	})

	t.Run("commit conflict", func(t *testing.T) {
		store, beginner := newFakePGStore(time.Second, fakeRow{})
		beginner.tx.commitErr = &pgconn.PgError{Code: "40001"}

		err := store.InTx(ctx, func(Tx) error { return nil })
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
		assert.ErrorContains(t, err, "commit")
	})
}

func TestPGQueries_LockStatements(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		row    fakeRow
		lock   func(q *pgQueries) error
		clause string
	}{
		{
			name: "booking",
			row: fakeRow{values: []any{
				int64(3), int64(7), int64(42), "PNR4H7K2Q", "confirmed", int64(31998), departure, departure, departure,
			}},
			lock: func(q *pgQueries) error {
				b, err := q.LockBooking(ctx, 3)
				if err == nil && (b.BookingCode != "PNR4H7K2Q" || b.TotalPrice != domain.NewMoney(319, 98)) {
					return fmt.Errorf("unexpected booking %+v", b)
				}
				return err
			},
			clause: "FROM bookings WHERE id=$1 FOR UPDATE",
		},
		{
			name: "passenger",
			row: fakeRow{values: []any{
				int64(5), int64(3), "Ana", "Anic", nil, "", "12C", int64(15999), departure, departure,
			}},
			lock: func(q *pgQueries) error {
				p, err := q.LockPassenger(ctx, 5)
				if err == nil && (p.LastName != "Anic" || p.Price != domain.NewMoney(159, 99)) {
					return fmt.Errorf("unexpected passenger %+v", p)
				}
				return err
			},
			clause: "WHERE id=$1 FOR UPDATE",
		},
		{
			name:   "flight",
			row:    flightRow(),
			lock:   func(q *pgQueries) error { _, err := q.LockFlight(ctx, 7); return err },
			clause: "WHERE f.id=$1 FOR UPDATE OF f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &recordingDB{row: tt.row}
			require.NoError(t, tt.lock(&pgQueries{db: db}))
			require.Len(t, db.queries, 1)
			assert.Contains(t, db.queries[0].sql, tt.clause)

			missing := &recordingDB{row: fakeRow{err: pgx.ErrNoRows}}
			err := tt.lock(&pgQueries{db: missing})
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.ErrorContains(t, err, tt.name)
		})
	}
}
