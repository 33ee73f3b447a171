package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/jackc/pgx/v5"
)

const pgPassengerSelect = `SELECT id, booking_id, first_name, last_name, date_of_birth, passport_number, seat_number, price_cents, created_at, updated_at FROM passengers`

func scanPGPassenger(row pgx.Row) (*domain.Passenger, error) {
	var p domain.Passenger
	if err := row.Scan(&p.ID, &p.BookingID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.PassportNumber, &p.SeatNumber,
		&p.Price, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *pgQueries) GetPassenger(ctx context.Context, id int64) (*domain.Passenger, error) {
	p, err := scanPGPassenger(q.db.QueryRow(ctx, pgPassengerSelect+` WHERE id=$1`, id))
	if err != nil {
		return nil, notFound("passenger", id, err)
	}
	return p, nil
}

func (q *pgQueries) LockPassenger(ctx context.Context, id int64) (*domain.Passenger, error) {
	p, err := scanPGPassenger(q.db.QueryRow(ctx, pgPassengerSelect+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound("passenger", id, err)
	}
	return p, nil
}

func (q *pgQueries) ListPassengers(ctx context.Context, bookingID int64) ([]domain.Passenger, error) {
	rows, err := q.db.Query(ctx, pgPassengerSelect+` WHERE booking_id=$1 ORDER BY last_name, id`, bookingID)
	if err != nil {
		return nil, translatePGError(err)
	}
	defer rows.Close()

	passengers := make([]domain.Passenger, 0)
	for rows.Next() {
		p, err := scanPGPassenger(rows)
		if err != nil {
			return nil, err
		}
		passengers = append(passengers, *p)
	}
	return passengers, rows.Err()
}

func (q *pgQueries) CountPassengers(ctx context.Context, bookingID int64) (int, error) {
	var n int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM passengers WHERE booking_id=$1`, bookingID).Scan(&n); err != nil {
		return 0, translatePGError(err)
	}
	return n, nil
}

func (q *pgQueries) InsertPassenger(ctx context.Context, p *domain.Passenger) error {
	err := q.db.QueryRow(ctx, `INSERT INTO passengers (booking_id, first_name, last_name, date_of_birth, passport_number, seat_number, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.BookingID, p.FirstName, p.LastName, p.DateOfBirth, p.PassportNumber, p.SeatNumber, p.Price.Cents()).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return translatePGError(err)
}

func (q *pgQueries) UpdatePassenger(ctx context.Context, p *domain.Passenger) error {
	err := q.db.QueryRow(ctx, `UPDATE passengers SET first_name=$1, last_name=$2, date_of_birth=$3, passport_number=$4,
		seat_number=$5, price_cents=$6, updated_at=now()
		WHERE id=$7
		RETURNING updated_at`,
		p.FirstName, p.LastName, p.DateOfBirth, p.PassportNumber, p.SeatNumber, p.Price.Cents(), p.ID).
		Scan(&p.UpdatedAt)
	if err != nil {
		return notFound("passenger", p.ID, err)
	}
	return nil
}

func (q *pgQueries) DeletePassenger(ctx context.Context, id int64) error {
	cmd, err := q.db.Exec(ctx, `DELETE FROM passengers WHERE id=$1`, id)
	if err != nil {
		return translatePGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("passenger %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
