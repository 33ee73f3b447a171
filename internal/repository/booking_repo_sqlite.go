package repository

import (
	"context"
	"database/sql"

	"github.com/Domenick1991/airreservations/internal/domain"
)

const sqliteBookingSelect = `SELECT id, flight_id, user_id, booking_code, status, total_price_cents, booked_at, created_at, updated_at FROM bookings`

func scanSQLiteBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.FlightID, &b.UserID, &b.BookingCode, &b.Status, &b.TotalPrice,
		sqliteTime{&b.BookedAt}, sqliteTime{&b.CreatedAt}, sqliteTime{&b.UpdatedAt}); err != nil {
		return nil, err
	}
	return &b, nil
}

func (q *sqliteQueries) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanSQLiteBooking(q.db.QueryRowContext(ctx, sqliteBookingSelect+` WHERE id=?`, id))
	if err != nil {
		return nil, sqliteNotFound("booking", id, err)
	}
	return b, nil
}

func (q *sqliteQueries) LockBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return q.GetBooking(ctx, id)
}

func (q *sqliteQueries) ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter.UserID != 0 {
		rows, err = q.db.QueryContext(ctx, sqliteBookingSelect+` WHERE user_id=? ORDER BY booked_at DESC, id DESC LIMIT ? OFFSET ?`,
			filter.UserID, filter.Limit, filter.Offset)
	} else {
		rows, err = q.db.QueryContext(ctx, sqliteBookingSelect+` ORDER BY booked_at DESC, id DESC LIMIT ? OFFSET ?`,
			filter.Limit, filter.Offset)
	}
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanSQLiteBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (q *sqliteQueries) BookingCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := q.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_code=?)`, code).Scan(&exists); err != nil {
		return false, translateSQLiteError(err)
	}
	return exists, nil
}

func (q *sqliteQueries) InsertBooking(ctx context.Context, booking *domain.Booking) error {
	now := q.now()
	res, err := q.db.ExecContext(ctx, `INSERT INTO bookings (flight_id, user_id, booking_code, status, total_price_cents, booked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.FlightID, booking.UserID, booking.BookingCode, string(booking.Status), booking.TotalPrice.Cents(),
		formatSQLiteTime(booking.BookedAt), formatSQLiteTime(now), formatSQLiteTime(now))
	if err != nil {
		return translateSQLiteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (q *sqliteQueries) UpdateBookingStatus(ctx context.Context, bookingID int64, status domain.BookingStatus) error {
	res, err := q.db.ExecContext(ctx, `UPDATE bookings SET status=?, updated_at=? WHERE id=?`, string(status), q.timestamp(), bookingID)
	if err != nil {
		return translateSQLiteError(err)
	}
	return sqliteExpectRow(res, "booking", bookingID)
}

func (q *sqliteQueries) UpdateBookingTotal(ctx context.Context, bookingID int64, total domain.Money) error {
	res, err := q.db.ExecContext(ctx, `UPDATE bookings SET total_price_cents=?, updated_at=? WHERE id=?`, total.Cents(), q.timestamp(), bookingID)
	if err != nil {
		return translateSQLiteError(err)
	}
	return sqliteExpectRow(res, "booking", bookingID)
}

func (q *sqliteQueries) InventorySnapshot(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT f.id, f.code, f.seats_total, f.seats_available,
		COALESCE(SUM(CASE WHEN b.status <> 'canceled' AND p.id IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM flights f
		LEFT JOIN bookings b ON b.flight_id = f.id
		LEFT JOIN passengers p ON p.booking_id = b.id
		GROUP BY f.id, f.code, f.seats_total, f.seats_available
		ORDER BY f.id`)
	if err != nil {
		return nil, translateSQLiteError(err)
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

func (q *sqliteQueries) BookingTotalsSnapshot(ctx context.Context) ([]domain.BookingTotalRecord, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT b.id, b.booking_code, b.total_price_cents, COALESCE(SUM(p.price_cents), 0)
		FROM bookings b
		LEFT JOIN passengers p ON p.booking_id = b.id
		WHERE b.status <> 'canceled'
		GROUP BY b.id, b.booking_code, b.total_price_cents
		ORDER BY b.id`)
	if err != nil {
		return nil, translateSQLiteError(err)
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
