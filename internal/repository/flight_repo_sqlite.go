package repository

import (
	"context"
	"strings"

	"github.com/Domenick1991/airreservations/internal/domain"
)

const sqliteFlightSelect = `SELECT f.id, f.code, f.origin_airport_id, f.destination_airport_id, o.code, d.code,
	f.departure_at, f.arrival_at, f.seats_total, f.seats_available, f.base_price_cents, f.created_at, f.updated_at
	FROM flights f
	JOIN airports o ON o.id = f.origin_airport_id
	JOIN airports d ON d.id = f.destination_airport_id`

func scanSQLiteFlight(row rowScanner) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.Code, &f.OriginAirportID, &f.DestinationAirportID, &f.FromAirport, &f.ToAirport,
		sqliteTime{&f.DepartureTime}, sqliteTime{&f.ArrivalTime}, &f.TotalSeats, &f.AvailableSeats, &f.BasePrice,
		sqliteTime{&f.CreatedAt}, sqliteTime{&f.UpdatedAt}); err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *sqliteQueries) GetFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanSQLiteFlight(q.db.QueryRowContext(ctx, sqliteFlightSelect+` WHERE f.id=?`, id))
	if err != nil {
		return nil, sqliteNotFound("flight", id, err)
	}
	return f, nil
}

// LockFlight relies on the store's single writer connection for exclusivity.
func (q *sqliteQueries) LockFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	return q.GetFlight(ctx, id)
}

func (q *sqliteQueries) SearchFlights(ctx context.Context, filter domain.FlightFilter) ([]domain.Flight, error) {
	var (
		where []string
		args  []any
	)
	if filter.Origin != "" {
		where = append(where, "o.code=?")
		args = append(args, filter.Origin)
	}
	if filter.Destination != "" {
		where = append(where, "d.code=?")
		args = append(args, filter.Destination)
	}
	if filter.Date != nil {
		where = append(where, "f.departure_at >= ? AND f.departure_at < ?")
		args = append(args, formatSQLiteTime(*filter.Date), formatSQLiteTime(filter.Date.AddDate(0, 0, 1)))
	}

	query := sqliteFlightSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.departure_at, f.id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanSQLiteFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (q *sqliteQueries) UpdateFlightSeats(ctx context.Context, flightID int64, availableSeats int) error {
	res, err := q.db.ExecContext(ctx, `UPDATE flights SET seats_available=?, updated_at=? WHERE id=?`, availableSeats, q.timestamp(), flightID)
	if err != nil {
		return translateSQLiteError(err)
	}
	return sqliteExpectRow(res, "flight", flightID)
}

func (q *sqliteQueries) CreateFlight(ctx context.Context, flight *domain.Flight) error {
	now := q.now()
	res, err := q.db.ExecContext(ctx, `INSERT INTO flights (code, origin_airport_id, destination_airport_id, departure_at, arrival_at,
		seats_total, seats_available, base_price_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flight.Code, flight.OriginAirportID, flight.DestinationAirportID, formatSQLiteTime(flight.DepartureTime),
		formatSQLiteTime(flight.ArrivalTime), flight.TotalSeats, flight.AvailableSeats, flight.BasePrice.Cents(),
		formatSQLiteTime(now), formatSQLiteTime(now))
	if err != nil {
		return translateSQLiteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	flight.ID = id
	flight.CreatedAt = now
	flight.UpdatedAt = now
	return nil
}

func (q *sqliteQueries) UpdateFlight(ctx context.Context, flight *domain.Flight) error {
	res, err := q.db.ExecContext(ctx, `UPDATE flights SET code=?, origin_airport_id=?, destination_airport_id=?,
		departure_at=?, arrival_at=?, base_price_cents=?, updated_at=? WHERE id=?`,
		flight.Code, flight.OriginAirportID, flight.DestinationAirportID, formatSQLiteTime(flight.DepartureTime),
		formatSQLiteTime(flight.ArrivalTime), flight.BasePrice.Cents(), q.timestamp(), flight.ID)
	if err != nil {
		return translateSQLiteError(err)
	}
	return sqliteExpectRow(res, "flight", flight.ID)
}

func (q *sqliteQueries) DeleteFlight(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM flights WHERE id=?`, id)
	if err != nil {
		return translateSQLiteError(err)
	}
	return sqliteExpectRow(res, "flight", id)
}

func (q *sqliteQueries) CountFlightBookings(ctx context.Context, flightID int64) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE flight_id=?`, flightID).Scan(&n); err != nil {
		return 0, translateSQLiteError(err)
	}
	return n, nil
}

func (q *sqliteQueries) GetAirport(ctx context.Context, id int64) (*domain.Airport, error) {
	var a domain.Airport
	err := q.db.QueryRowContext(ctx, `SELECT id, code, name, city, country FROM airports WHERE id=?`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.City, &a.Country)
	if err != nil {
		return nil, sqliteNotFound("airport", id, err)
	}
	return &a, nil
}
