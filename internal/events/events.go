package events

import (
	"context"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/google/uuid"
)

// Publisher delivers booking events to a broker.
type Publisher interface {
	PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error
	Close() error
}

// Handler processes one decoded event. Returning an error stops the consumer.
type Handler func(ctx context.Context, event domain.BookingEvent) error

type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// New builds an event describing booking after a committed change.
func New(eventType string, booking *domain.Booking, seatsAvailable int, passengerID int64, at time.Time) domain.BookingEvent {
	return domain.BookingEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		BookingID:      booking.ID,
		BookingCode:    booking.BookingCode,
		FlightID:       booking.FlightID,
		UserID:         booking.UserID,
		Status:         string(booking.Status),
		TotalPrice:     booking.TotalPrice,
		PassengerID:    passengerID,
		SeatsAvailable: seatsAvailable,
		OccurredAt:     at.UTC(),
	}
}

// Noop discards events. Used when events.driver is "none".
type Noop struct{}

func (Noop) PublishBookingEvent(context.Context, domain.BookingEvent) error { return nil }

func (Noop) Close() error { return nil }

var _ Publisher = Noop{}
