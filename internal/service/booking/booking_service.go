package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservations/internal/auth"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/events"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/Domenick1991/airreservations/internal/repository"
	"github.com/Domenick1991/airreservations/internal/service/inventory"
	"github.com/Domenick1991/airreservations/internal/service/passengers"
	"github.com/Domenick1991/airreservations/internal/service/pnr"
	"github.com/Domenick1991/airreservations/internal/validation"
	"github.com/sirupsen/logrus"
)

const DefaultPageSize = 20

const maxPageSize = 1000

// MaxPage bounds the page number so the offset cannot overflow.
const MaxPage = 100_000

type BookingUseCase interface {
	CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.Booking, error)
	GetBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.Booking, error)
	ListBookings(ctx context.Context, actor domain.Actor, page int) ([]domain.Booking, error)
}

type FlightCache interface {
	InvalidateFlight(ctx context.Context, flightID int64) error
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error
}

type CreateBookingInput struct {
	FlightID   int64              `json:"flight_id" validate:"required,gt=0"`
	Passengers []passengers.Input `json:"passengers" validate:"required,min=1,dive"`
}

type BookingService struct {
	store     repository.Store
	ledger    inventory.LedgerUseCase
	codes     pnr.GeneratorUseCase
	cache     FlightCache
	publisher EventPublisher
	log       *logrus.Logger
	now       func() time.Time
	pageSize  int
}

type BookingServiceOption func(*BookingService)

func WithCache(cache FlightCache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithPublisher(publisher EventPublisher) BookingServiceOption {
	return func(s *BookingService) {
		s.publisher = publisher
	}
}

func WithLogger(log *logrus.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithPageSize(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 && n <= maxPageSize {
			s.pageSize = n
		}
	}
}

func NewBookingService(
	store repository.Store,
	ledger inventory.LedgerUseCase,
	codes pnr.GeneratorUseCase,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		store:    store,
		ledger:   ledger,
		codes:    codes,
		log:      logger.Discard(),
		now:      time.Now,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	rows := make([]domain.Passenger, 0, len(input.Passengers))
	var total domain.Money
	for i, in := range input.Passengers {
		p, err := in.Passenger()
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("passengers[%d].%s", i, ve.Field)
			}
			return nil, err
		}
		if total, err = total.Add(p.Price); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.NewValidationError("passengers", "total price is out of range"), err)
		}
		rows = append(rows, p)
	}

	var (
		booking        *domain.Booking
		seatsAvailable int
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		flight, err := tx.LockFlight(ctx, input.FlightID)
		if err != nil {
			return err
		}

		if err := s.ledger.Reserve(ctx, tx, flight, len(rows)); err != nil {
			return err
		}

		code, err := s.codes.Generate(ctx, tx)
		if err != nil {
			return err
		}

		b := &domain.Booking{
			FlightID:    flight.ID,
			UserID:      actor.UserID,
			BookingCode: code,
			Status:      domain.BookingStatusConfirmed,
			TotalPrice:  total,
			BookedAt:    s.now().UTC(),
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: booking code %s taken concurrently", domain.ErrTransactionConflict, code)
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		for i := range rows {
			rows[i].BookingID = b.ID
			if err := tx.InsertPassenger(ctx, &rows[i]); err != nil {
				return fmt.Errorf("insert passenger: %w", err)
			}
		}
		b.Passengers = rows

		booking = b
		seatsAvailable = flight.AvailableSeats
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"flight_id":  input.FlightID,
			"user_id":    actor.UserID,
			"passengers": len(rows),
		}).WithError(err).Warn("create booking failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":      booking.ID,
		"booking_code":    booking.BookingCode,
		"flight_id":       booking.FlightID,
		"passengers":      len(rows),
		"total_price":     booking.TotalPrice.String(),
		"seats_available": seatsAvailable,
	}).Info("booking created")

	s.invalidate(ctx, booking.FlightID)
	s.publish(ctx, domain.EventBookingCreated, booking, seatsAvailable)
	return booking, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.Booking, error) {
	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, current); err != nil {
		return nil, err
	}
	if !current.Active() {
		return nil, fmt.Errorf("booking %d: %w", bookingID, domain.ErrAlreadyCanceled)
	}

	var (
		booking        *domain.Booking
		seatsAvailable int
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		flight, err := tx.LockFlight(ctx, current.FlightID)
		if err != nil {
			return err
		}
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Active() {
			return fmt.Errorf("booking %d: %w", bookingID, domain.ErrAlreadyCanceled)
		}

		held, err := tx.CountPassengers(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, bookingID, domain.BookingStatusCanceled); err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		if err := s.ledger.Release(ctx, tx, flight, held); err != nil {
			return err
		}

		b.Status = domain.BookingStatusCanceled
		b.Passengers, err = tx.ListPassengers(ctx, bookingID)
		if err != nil {
			return err
		}

		booking = b
		seatsAvailable = flight.AvailableSeats
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"user_id":    actor.UserID,
		}).WithError(err).Warn("cancel booking failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":      booking.ID,
		"booking_code":    booking.BookingCode,
		"released":        len(booking.Passengers),
		"seats_available": seatsAvailable,
	}).Info("booking canceled")

	s.invalidate(ctx, booking.FlightID)
	s.publish(ctx, domain.EventBookingCanceled, booking, seatsAvailable)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, booking); err != nil {
		return nil, err
	}
	booking.Passengers, err = s.store.ListPassengers(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ListBookings returns one page, newest first. Admins see every booking,
// everyone else only their own.
func (s *BookingService) ListBookings(ctx context.Context, actor domain.Actor, page int) ([]domain.Booking, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return nil, domain.NewValidationError("page", fmt.Sprintf("must be at most %d", MaxPage))
	}
	filter := domain.BookingFilter{
		Limit:  s.pageSize,
		Offset: (page - 1) * s.pageSize,
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	return s.store.ListBookings(ctx, filter)
}

func (s *BookingService) invalidate(ctx context.Context, flightID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlight(ctx, flightID); err != nil {
		s.log.WithField("flight_id", flightID).WithError(err).Warn("failed to invalidate cached flight")
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking, seatsAvailable int) {
	if s.publisher == nil {
		return
	}
	event := events.New(eventType, booking, seatsAvailable, 0, s.now())
	if err := s.publisher.PublishBookingEvent(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":        eventType,
			"booking_code": booking.BookingCode,
		}).WithError(err).Warn("failed to publish booking event")
	}
}

var _ BookingUseCase = (*BookingService)(nil)
