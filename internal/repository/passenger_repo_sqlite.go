package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
)

const sqlitePassengerSelect = `SELECT id, booking_id, first_name, last_name, date_of_birth, passport_number, seat_number, price_cents, created_at, updated_at FROM passengers`

const dateLayout = "2006-01-02"

func scanSQLitePassenger(row rowScanner) (*domain.Passenger, error) {
	var (
		p   domain.Passenger
		dob sql.NullString
	)
	if err := row.Scan(&p.ID, &p.BookingID, &p.FirstName, &p.LastName, &dob, &p.PassportNumber, &p.SeatNumber,
		&p.Price, sqliteTime{&p.CreatedAt}, sqliteTime{&p.UpdatedAt}); err != nil {
		return nil, err
	}
	if dob.Valid && dob.String != "" {
		t, err := time.Parse(dateLayout, dob.String)
		if err != nil {
			return nil, err
		}
		p.DateOfBirth = &t
	}
	return &p, nil
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func (q *sqliteQueries) GetPassenger(ctx context.Context, id int64) (*domain.Passenger, error) {
	p, err := scanSQLitePassenger(q.db.QueryRowContext(ctx, sqlitePassengerSelect+` WHERE id=?`, id))
	if err != nil {
		return nil, sqliteNotFound("passenger", id, err)
	}
	return p, nil
}

func (q *sqliteQueries) LockPassenger(ctx context.Context, id int64) (*domain.Passenger, error) {
	return q.GetPassenger(ctx, id)
}

func (q *sqliteQueries) ListPassengers(ctx context.Context, bookingID int64) ([]domain.Passenger, error) {
	rows, err := q.db.QueryContext(ctx, sqlitePassengerSelect+` WHERE booking_id=? ORDER BY last_name, id`, bookingID)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	defer rows.Close()

	passengers := make([]domain.Passenger, 0)
	for rows.Next() {
		p, err := scanSQLitePassenger(rows)
		if err != nil {
			return nil, err
		}
		passengers = append(passengers, *p)
	}
	return passengers, rows.Err()
}

func (q *sqliteQueries) CountPassengers(ctx context.Context, bookingID int64) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passengers WHERE booking_id=?`, bookingID).Scan(&n); err != nil {
		return 0, translateSQLiteError(err)
	}
	return n, nil
}

func (q *sqliteQueries) InsertPassenger(ctx context.Context, p *domain.Passenger) error {
	now := q.now()
	res, err := q.db.ExecContext(ctx, `INSERT INTO passengers (booking_id, first_name, last_name, date_of_birth, passport_number,
		seat_number, price_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.BookingID, p.FirstName, p.LastName, nullableDate(p.DateOfBirth), p.PassportNumber, p.SeatNumber, p.Price.Cents(),
		formatSQLiteTime(now), formatSQLiteTime(now))
	if err != nil {
		return translateSQLiteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (q *sqliteQueries) UpdatePassenger(ctx context.Context, p *domain.Passenger) error {
	now := q.now()
	res, err := q.db.ExecContext(ctx, `UPDATE passengers SET first_name=?, last_name=?, date_of_birth=?, passport_number=?,
		seat_number=?, price_cents=?, updated_at=? WHERE id=?`,
		p.FirstName, p.LastName, nullableDate(p.DateOfBirth), p.PassportNumber, p.SeatNumber, p.Price.Cents(),
		formatSQLiteTime(now), p.ID)
	if err != nil {
		return translateSQLiteError(err)
	}
	if err := sqliteExpectRow(res, "passenger", p.ID); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

func (q *sqliteQueries) DeletePassenger(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM passengers WHERE id=?`, id)
	if err != nil {
		return translateSQLiteError(err)
	}
	return sqliteExpectRow(res, "passenger", id)
}
