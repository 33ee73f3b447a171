// Package repotest builds throwaway SQLite stores for service tests.
package repotest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/repository"
	"github.com/stretchr/testify/require"
)

var Airports = []domain.Airport{
	{Code: "BEG", Name: "Nikola Tesla", City: "Belgrade", Country: "RS"},
	{Code: "CDG", Name: "Charles de Gaulle", City: "Paris", Country: "FR"},
	{Code: "SVO", Name: "Sheremetyevo", City: "Moscow", Country: "RU"},
}

var codeSeq atomic.Int64

// Departure is the departure time of every flight created by CreateFlight.
var Departure = time.Date(2026, 10, 20, 7, 45, 0, 0, time.UTC)

func NewStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Seed(ctx, Airports))
	return store
}

// CreateFlight inserts a BEG to CDG flight with every seat available.
func CreateFlight(t *testing.T, store repository.Store, code string, seats int) *domain.Flight {
	t.Helper()
	flight := &domain.Flight{
		Code:                 code,
		OriginAirportID:      1,
		DestinationAirportID: 2,
		DepartureTime:        Departure,
		ArrivalTime:          Departure.Add(2*time.Hour + 30*time.Minute),
		TotalSeats:           seats,
		AvailableSeats:       seats,
		BasePrice:            domain.NewMoney(159, 99),
	}
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateFlight(ctx, flight)
	}))
	return flight
}

// CreateBooking writes a confirmed booking with one passenger per price and
// takes the matching seats, bypassing the services.
func CreateBooking(t *testing.T, store repository.Store, flightID, userID int64, prices ...domain.Money) *domain.Booking {
	t.Helper()
	ctx := context.Background()
	var booking *domain.Booking
	require.NoError(t, store.InTx(ctx, func(tx repository.Tx) error {
		flight, err := tx.LockFlight(ctx, flightID)
		if err != nil {
			return err
		}
		if err := tx.UpdateFlightSeats(ctx, flightID, flight.AvailableSeats-len(prices)); err != nil {
			return err
		}

		var total domain.Money
		for _, p := range prices {
			total += p
		}
		booking = &domain.Booking{
			FlightID:    flightID,
			UserID:      userID,
			BookingCode: fmt.Sprintf("PNRT%05d", codeSeq.Add(1)),
			Status:      domain.BookingStatusConfirmed,
			TotalPrice:  total,
			BookedAt:    time.Now().UTC(),
		}
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}
		for i, price := range prices {
			p := domain.Passenger{
				BookingID: booking.ID,
				FirstName: fmt.Sprintf("Guest%d", i+1),
				LastName:  fmt.Sprintf("Traveler%d", i+1),
				Price:     price,
			}
			if err := tx.InsertPassenger(ctx, &p); err != nil {
				return err
			}
			booking.Passengers = append(booking.Passengers, p)
		}
		return nil
	}))
	return booking
}

// AssertConsistent checks the seat and total equations for every flight and
// active booking in the store.
func AssertConsistent(t *testing.T, store repository.Store) {
	t.Helper()
	ctx := context.Background()

	inventory, err := store.InventorySnapshot(ctx)
	require.NoError(t, err)
	for _, r := range inventory {
		require.Truef(t, r.Consistent(), "flight %s: available %d, expected %d", r.FlightCode, r.AvailableSeats, r.ExpectedAvailable())
		require.GreaterOrEqual(t, r.AvailableSeats, 0)
		require.LessOrEqual(t, r.AvailableSeats, r.TotalSeats)
	}

	totals, err := store.BookingTotalsSnapshot(ctx)
	require.NoError(t, err)
	for _, r := range totals {
		require.Truef(t, r.Consistent(), "booking %s: total %s, passengers %s", r.BookingCode, r.TotalPrice, r.PassengerTotal)
	}
}
