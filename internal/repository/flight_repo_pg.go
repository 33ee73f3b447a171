package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/jackc/pgx/v5"
)

const pgFlightSelect = `SELECT f.id, f.code, f.origin_airport_id, f.destination_airport_id, o.code, d.code,
	f.departure_at, f.arrival_at, f.seats_total, f.seats_available, f.base_price_cents, f.created_at, f.updated_at
	FROM flights f
	JOIN airports o ON o.id = f.origin_airport_id
	JOIN airports d ON d.id = f.destination_airport_id`

func scanPGFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.Code, &f.OriginAirportID, &f.DestinationAirportID, &f.FromAirport, &f.ToAirport,
		&f.DepartureTime, &f.ArrivalTime, &f.TotalSeats, &f.AvailableSeats, &f.BasePrice, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *pgQueries) GetFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanPGFlight(q.db.QueryRow(ctx, pgFlightSelect+` WHERE f.id=$1`, id))
	if err != nil {
		return nil, notFound("flight", id, err)
	}
	return f, nil
}

func (q *pgQueries) LockFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanPGFlight(q.db.QueryRow(ctx, pgFlightSelect+` WHERE f.id=$1 FOR UPDATE OF f`, id))
	if err != nil {
		return nil, notFound("flight", id, err)
	}
	return f, nil
}

func (q *pgQueries) SearchFlights(ctx context.Context, filter domain.FlightFilter) ([]domain.Flight, error) {
	var (
		where []string
		args  []any
	)
	if filter.Origin != "" {
		args = append(args, filter.Origin)
		where = append(where, fmt.Sprintf("o.code=$%d", len(args)))
	}
	if filter.Destination != "" {
		args = append(args, filter.Destination)
		where = append(where, fmt.Sprintf("d.code=$%d", len(args)))
	}
	if filter.Date != nil {
		day := *filter.Date
		args = append(args, day, day.AddDate(0, 0, 1))
		where = append(where, fmt.Sprintf("f.departure_at >= $%d AND f.departure_at < $%d", len(args)-1, len(args)))
	}

	query := pgFlightSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.departure_at, f.id"

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translatePGError(err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanPGFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (q *pgQueries) UpdateFlightSeats(ctx context.Context, flightID int64, availableSeats int) error {
	cmd, err := q.db.Exec(ctx, `UPDATE flights SET seats_available=$1, updated_at=now() WHERE id=$2`, availableSeats, flightID)
	if err != nil {
		return translatePGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("flight %d: %w", flightID, domain.ErrNotFound)
	}
	return nil
}

func (q *pgQueries) CreateFlight(ctx context.Context, flight *domain.Flight) error {
	err := q.db.QueryRow(ctx, `INSERT INTO flights (code, origin_airport_id, destination_airport_id, departure_at, arrival_at,
		seats_total, seats_available, base_price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		flight.Code, flight.OriginAirportID, flight.DestinationAirportID, flight.DepartureTime, flight.ArrivalTime,
		flight.TotalSeats, flight.AvailableSeats, flight.BasePrice.Cents()).
		Scan(&flight.ID, &flight.CreatedAt, &flight.UpdatedAt)
	return translatePGError(err)
}

func (q *pgQueries) UpdateFlight(ctx context.Context, flight *domain.Flight) error {
	cmd, err := q.db.Exec(ctx, `UPDATE flights SET code=$1, origin_airport_id=$2, destination_airport_id=$3,
		departure_at=$4, arrival_at=$5, base_price_cents=$6, updated_at=now() WHERE id=$7`,
		flight.Code, flight.OriginAirportID, flight.DestinationAirportID, flight.DepartureTime, flight.ArrivalTime,
		flight.BasePrice.Cents(), flight.ID)
	if err != nil {
		return translatePGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("flight %d: %w", flight.ID, domain.ErrNotFound)
	}
	return nil
}

func (q *pgQueries) DeleteFlight(ctx context.Context, id int64) error {
	cmd, err := q.db.Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
	if err != nil {
		return translatePGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (q *pgQueries) CountFlightBookings(ctx context.Context, flightID int64) (int, error) {
	var n int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE flight_id=$1`, flightID).Scan(&n); err != nil {
		return 0, translatePGError(err)
	}
	return n, nil
}

func (q *pgQueries) GetAirport(ctx context.Context, id int64) (*domain.Airport, error) {
	var a domain.Airport
	err := q.db.QueryRow(ctx, `SELECT id, code, name, city, country FROM airports WHERE id=$1`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.City, &a.Country)
	if err != nil {
		return nil, notFound("airport", id, err)
	}
	return &a, nil
}
