package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/sirupsen/logrus"
)

// Sender renders booking notifications. Delivery is a log line; there is no SMTP transport.
type Sender struct {
	log *logrus.Logger
}

func NewSender(log *logrus.Logger) *Sender {
	if log == nil {
		log = logger.Discard()
	}
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event domain.BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"event_id":     event.ID,
		"user_id":      event.UserID,
		"booking_code": event.BookingCode,
		"type":         event.Type,
	}).Info(Subject(event))
	return nil
}

// Subject is the notification headline for an event.
func Subject(event domain.BookingEvent) string {
	switch event.Type {
	case domain.EventBookingCreated:
		return fmt.Sprintf("Booking %s confirmed, total %s", event.BookingCode, event.TotalPrice)
	case domain.EventBookingCanceled:
		return fmt.Sprintf("Booking %s canceled", event.BookingCode)
	case domain.EventPassengerAdded:
		return fmt.Sprintf("Passenger added to booking %s, new total %s", event.BookingCode, event.TotalPrice)
	case domain.EventPassengerUpdated:
		return fmt.Sprintf("Passenger details changed on booking %s, total %s", event.BookingCode, event.TotalPrice)
	case domain.EventPassengerRemoved:
		return fmt.Sprintf("Passenger removed from booking %s, new total %s", event.BookingCode, event.TotalPrice)
	default:
		return fmt.Sprintf("Update on booking %s", event.BookingCode)
	}
}
