package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/airreservations/internal/domain"
)

var (
	// ErrDuplicate is returned when an insert or update hits a unique index.
	ErrDuplicate = errors.New("duplicate key")
	// ErrReferenced is returned when a delete is blocked by a foreign key.
	ErrReferenced = errors.New("row is still referenced")
)

// Reader holds the lookups that never take row locks.
type Reader interface {
	GetFlight(ctx context.Context, id int64) (*domain.Flight, error)
	SearchFlights(ctx context.Context, filter domain.FlightFilter) ([]domain.Flight, error)
	GetAirport(ctx context.Context, id int64) (*domain.Airport, error)

	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	BookingCodeExists(ctx context.Context, code string) (bool, error)

	GetPassenger(ctx context.Context, id int64) (*domain.Passenger, error)
	ListPassengers(ctx context.Context, bookingID int64) ([]domain.Passenger, error)
	CountPassengers(ctx context.Context, bookingID int64) (int, error)

	InventorySnapshot(ctx context.Context) ([]domain.InventoryRecord, error)
	BookingTotalsSnapshot(ctx context.Context) ([]domain.BookingTotalRecord, error)
}

// Tx is a unit of work. Lock* methods take an exclusive row lock held until
// the transaction ends; callers acquire them in flight, booking, passenger order.
type Tx interface {
	Reader

	LockFlight(ctx context.Context, id int64) (*domain.Flight, error)
	UpdateFlightSeats(ctx context.Context, flightID int64, availableSeats int) error
	CreateFlight(ctx context.Context, flight *domain.Flight) error
	UpdateFlight(ctx context.Context, flight *domain.Flight) error
	DeleteFlight(ctx context.Context, id int64) error
	CountFlightBookings(ctx context.Context, flightID int64) (int, error)

	LockBooking(ctx context.Context, id int64) (*domain.Booking, error)
	InsertBooking(ctx context.Context, booking *domain.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status domain.BookingStatus) error
	UpdateBookingTotal(ctx context.Context, bookingID int64, total domain.Money) error

	LockPassenger(ctx context.Context, id int64) (*domain.Passenger, error)
	InsertPassenger(ctx context.Context, passenger *domain.Passenger) error
	UpdatePassenger(ctx context.Context, passenger *domain.Passenger) error
	DeletePassenger(ctx context.Context, id int64) error
}

// Store is the entry point used by services. InTx commits when fn returns nil
// and rolls back otherwise.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
