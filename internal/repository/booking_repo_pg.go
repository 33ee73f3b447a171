package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/jackc/pgx/v5"
)

const pgBookingSelect = `SELECT id, flight_id, user_id, booking_code, status, total_price_cents, booked_at, created_at, updated_at FROM bookings`

func scanPGBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.FlightID, &b.UserID, &b.BookingCode, &b.Status, &b.TotalPrice, &b.BookedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (q *pgQueries) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanPGBooking(q.db.QueryRow(ctx, pgBookingSelect+` WHERE id=$1`, id))
	if err != nil {
		return nil, notFound("booking", id, err)
	}
	return b, nil
}

func (q *pgQueries) LockBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanPGBooking(q.db.QueryRow(ctx, pgBookingSelect+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound("booking", id, err)
	}
	return b, nil
}

func (q *pgQueries) ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.UserID != 0 {
		rows, err = q.db.Query(ctx, pgBookingSelect+` WHERE user_id=$1 ORDER BY booked_at DESC, id DESC LIMIT $2 OFFSET $3`,
			filter.UserID, filter.Limit, filter.Offset)
	} else {
		rows, err = q.db.Query(ctx, pgBookingSelect+` ORDER BY booked_at DESC, id DESC LIMIT $1 OFFSET $2`,
			filter.Limit, filter.Offset)
	}
	if err != nil {
		return nil, translatePGError(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanPGBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (q *pgQueries) BookingCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_code=$1)`, code).Scan(&exists); err != nil {
		return false, translatePGError(err)
	}
	return exists, nil
}

func (q *pgQueries) InsertBooking(ctx context.Context, booking *domain.Booking) error {
	err := q.db.QueryRow(ctx, `INSERT INTO bookings (flight_id, user_id, booking_code, status, total_price_cents, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		booking.FlightID, booking.UserID, booking.BookingCode, string(booking.Status), booking.TotalPrice.Cents(), booking.BookedAt).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	return translatePGError(err)
}

func (q *pgQueries) UpdateBookingStatus(ctx context.Context, bookingID int64, status domain.BookingStatus) error {
	cmd, err := q.db.Exec(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2`, string(status), bookingID)
	if err != nil {
		return translatePGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("booking %d: %w", bookingID, domain.ErrNotFound)
	}
	return nil
}

func (q *pgQueries) UpdateBookingTotal(ctx context.Context, bookingID int64, total domain.Money) error {
	cmd, err := q.db.Exec(ctx, `UPDATE bookings SET total_price_cents=$1, updated_at=now() WHERE id=$2`, total.Cents(), bookingID)
	if err != nil {
		return translatePGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("booking %d: %w", bookingID, domain.ErrNotFound)
	}
	return nil
}

func (q *pgQueries) InventorySnapshot(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := q.db.Query(ctx, `SELECT f.id, f.code, f.seats_total, f.seats_available,
		COALESCE(SUM(CASE WHEN b.status <> 'canceled' AND p.id IS NOT NULL THEN 1 ELSE 0 END), 0)::int
		FROM flights f
		LEFT JOIN bookings b ON b.flight_id = f.id
		LEFT JOIN passengers p ON p.booking_id = b.id
		GROUP BY f.id, f.code, f.seats_total, f.seats_available
		ORDER BY f.id`)
	if err != nil {
		return nil, translatePGError(err)
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0)
	for rows.Next() {
		var r domain.InventoryRecord
		if err := rows.Scan(&r.FlightID, &r.FlightCode, &r.TotalSeats, &r.AvailableSeats, &r.HeldSeats); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (q *pgQueries) BookingTotalsSnapshot(ctx context.Context) ([]domain.BookingTotalRecord, error) {
	rows, err := q.db.Query(ctx, `SELECT b.id, b.booking_code, b.total_price_cents, COALESCE(SUM(p.price_cents), 0)::bigint
		FROM bookings b
		LEFT JOIN passengers p ON p.booking_id = b.id
		WHERE b.status <> 'canceled'
		GROUP BY b.id, b.booking_code, b.total_price_cents
		ORDER BY b.id`)
	if err != nil {
		return nil, translatePGError(err)
	}
	defer rows.Close()

	records := make([]domain.BookingTotalRecord, 0)
	for rows.Next() {
		var r domain.BookingTotalRecord
		if err := rows.Scan(&r.BookingID, &r.BookingCode, &r.TotalPrice, &r.PassengerTotal); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
