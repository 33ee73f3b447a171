package inventory

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/sirupsen/logrus"
)

// SeatWriter persists a flight's seat counter. repository.Tx satisfies it.
type SeatWriter interface {
	UpdateFlightSeats(ctx context.Context, flightID int64, availableSeats int) error
}

type LedgerUseCase interface {
	Reserve(ctx context.Context, tx SeatWriter, flight *domain.Flight, count int) error
	Release(ctx context.Context, tx SeatWriter, flight *domain.Flight, count int) error
}

// Ledger adjusts the per-flight seat counter. It never takes locks: the flight
// passed in must already be locked by the enclosing transaction.
type Ledger struct {
	log *logrus.Logger
}

type LedgerOption func(*Ledger)

func WithLogger(log *logrus.Logger) LedgerOption {
	return func(l *Ledger) {
		l.log = log
	}
}

func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{log: logger.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReserveSeats returns the counter after taking count seats, or false when
// fewer than count are available.
func ReserveSeats(available, count int) (int, bool) {
	if count > available {
		return available, false
	}
	return available - count, true
}

// ReleaseSeats returns count seats, never exceeding capacity.
func ReleaseSeats(total, available, count int) int {
	return min(total, available+count)
}

func (l *Ledger) Reserve(ctx context.Context, tx SeatWriter, flight *domain.Flight, count int) error {
	if count < 1 {
		return domain.NewValidationError("count", "must be at least 1")
	}

	remaining, ok := ReserveSeats(flight.AvailableSeats, count)
	if !ok {
		return &domain.InsufficientInventoryError{
			FlightID:  flight.ID,
			Requested: count,
			Available: flight.AvailableSeats,
		}
	}

	if err := tx.UpdateFlightSeats(ctx, flight.ID, remaining); err != nil {
		return fmt.Errorf("reserve seats on flight %d: %w", flight.ID, err)
	}

	l.log.WithFields(logrus.Fields{
		"flight_id": flight.ID,
		"count":     count,
		"available": remaining,
	}).Debug("seats reserved")

	flight.AvailableSeats = remaining
	return nil
}

func (l *Ledger) Release(ctx context.Context, tx SeatWriter, flight *domain.Flight, count int) error {
	if count < 0 {
		return domain.NewValidationError("count", "must not be negative")
	}
	if count == 0 {
		return nil
	}

	available := ReleaseSeats(flight.TotalSeats, flight.AvailableSeats, count)
	if available-flight.AvailableSeats < count {
		l.log.WithFields(logrus.Fields{
			"flight_id": flight.ID,
			"count":     count,
			"available": flight.AvailableSeats,
			"total":     flight.TotalSeats,
		}).Warn("seat release clamped at capacity")
	}

	if err := tx.UpdateFlightSeats(ctx, flight.ID, available); err != nil {
		return fmt.Errorf("release seats on flight %d: %w", flight.ID, err)
	}

	l.log.WithFields(logrus.Fields{
		"flight_id": flight.ID,
		"count":     count,
		"available": available,
	}).Debug("seats released")

	flight.AvailableSeats = available
	return nil
}

var _ LedgerUseCase = (*Ledger)(nil)
