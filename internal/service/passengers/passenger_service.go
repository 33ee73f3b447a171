package passengers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/airreservations/internal/auth"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/events"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/Domenick1991/airreservations/internal/repository"
	"github.com/Domenick1991/airreservations/internal/service/inventory"
	"github.com/Domenick1991/airreservations/internal/validation"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type PassengerUseCase interface {
	AddPassenger(ctx context.Context, actor domain.Actor, bookingID int64, input Input) (*Result, error)
	UpdatePassenger(ctx context.Context, actor domain.Actor, passengerID int64, input UpdateInput) (*Result, error)
	RemovePassenger(ctx context.Context, actor domain.Actor, passengerID int64) (*Result, error)
	ListPassengers(ctx context.Context, actor domain.Actor, bookingID int64) ([]domain.Passenger, error)
	GetPassenger(ctx context.Context, actor domain.Actor, passengerID int64) (*domain.Passenger, error)
}

type FlightCache interface {
	InvalidateFlight(ctx context.Context, flightID int64) error
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error
}

// Input describes a new passenger.
type Input struct {
	FirstName      string        `json:"first_name" validate:"required,max=100"`
	LastName       string        `json:"last_name" validate:"required,max=100"`
	DateOfBirth    string        `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	PassportNumber string        `json:"passport_number" validate:"omitempty,max=32"`
	SeatNumber     string        `json:"seat" validate:"omitempty,max=10"`
	Price          *domain.Money `json:"price" validate:"required,gte=0,lte=10000000000"`
}

// Passenger converts a validated input into an unsaved passenger row.
func (in Input) Passenger() (domain.Passenger, error) {
	if in.Price == nil {
		return domain.Passenger{}, domain.NewValidationError("price", "is required")
	}
	p := domain.Passenger{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		PassportNumber: strings.TrimSpace(in.PassportNumber),
		SeatNumber:     strings.TrimSpace(in.SeatNumber),
		Price:          *in.Price,
	}
	if p.FirstName == "" {
		return domain.Passenger{}, domain.NewValidationError("first_name", "is required")
	}
	if p.LastName == "" {
		return domain.Passenger{}, domain.NewValidationError("last_name", "is required")
	}
	dob, err := parseDate(in.DateOfBirth)
	if err != nil {
		return domain.Passenger{}, err
	}
	p.DateOfBirth = dob
	return p, nil
}

// UpdateInput carries a partial update. Nil fields are left unchanged; an empty
// date_of_birth clears it.
type UpdateInput struct {
	FirstName      *string       `json:"first_name" validate:"omitnil,min=1,max=100"`
	LastName       *string       `json:"last_name" validate:"omitnil,min=1,max=100"`
	DateOfBirth    *string       `json:"date_of_birth"`
	PassportNumber *string       `json:"passport_number" validate:"omitnil,max=32"`
	SeatNumber     *string       `json:"seat" validate:"omitnil,max=10"`
	Price          *domain.Money `json:"price" validate:"omitnil,gte=0,lte=10000000000"`
}

func (in UpdateInput) apply(p *domain.Passenger) error {
	if in.FirstName != nil {
		p.FirstName = strings.TrimSpace(*in.FirstName)
		if p.FirstName == "" {
			return domain.NewValidationError("first_name", "must not be blank")
		}
	}
	if in.LastName != nil {
		p.LastName = strings.TrimSpace(*in.LastName)
		if p.LastName == "" {
			return domain.NewValidationError("last_name", "must not be blank")
		}
	}
	if in.DateOfBirth != nil {
		dob, err := parseDate(*in.DateOfBirth)
		if err != nil {
			return err
		}
		p.DateOfBirth = dob
	}
	if in.PassportNumber != nil {
		p.PassportNumber = strings.TrimSpace(*in.PassportNumber)
	}
	if in.SeatNumber != nil {
		p.SeatNumber = strings.TrimSpace(*in.SeatNumber)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	return nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, domain.NewValidationError("date_of_birth", "must be a date in 2006-01-02 format")
	}
	return &t, nil
}

// Result is the state after a passenger mutation. Passenger is nil after removal.
type Result struct {
	Passenger      *domain.Passenger
	Booking        *domain.Booking
	SeatsAvailable int
}

type PassengerService struct {
	store     repository.Store
	ledger    inventory.LedgerUseCase
	cache     FlightCache
	publisher EventPublisher
	log       *logrus.Logger
	now       func() time.Time
}

type PassengerServiceOption func(*PassengerService)

func WithCache(cache FlightCache) PassengerServiceOption {
	return func(s *PassengerService) {
		s.cache = cache
	}
}

func WithPublisher(publisher EventPublisher) PassengerServiceOption {
	return func(s *PassengerService) {
		s.publisher = publisher
	}
}

func WithLogger(log *logrus.Logger) PassengerServiceOption {
	return func(s *PassengerService) {
		s.log = log
	}
}

func WithClock(now func() time.Time) PassengerServiceOption {
	return func(s *PassengerService) {
		s.now = now
	}
}

func NewPassengerService(store repository.Store, ledger inventory.LedgerUseCase, opts ...PassengerServiceOption) *PassengerService {
	s := &PassengerService{
		store:  store,
		ledger: ledger,
		log:    logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorizedBooking loads the booking outside any transaction and checks access.
func (s *PassengerService) authorizedBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func closed(booking *domain.Booking) error {
	return fmt.Errorf("booking %d: %w", booking.ID, domain.ErrBookingClosed)
}

func totalOverflow(err error) error {
	return fmt.Errorf("%w: %w", domain.NewValidationError("price", "booking total is out of range"), err)
}

func (s *PassengerService) AddPassenger(ctx context.Context, actor domain.Actor, bookingID int64, input Input) (*Result, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	passenger, err := input.Passenger()
	if err != nil {
		return nil, err
	}

	current, err := s.authorizedBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !current.Active() {
		return nil, closed(current)
	}

	var result Result
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		flight, err := tx.LockFlight(ctx, current.FlightID)
		if err != nil {
			return err
		}
		booking, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !booking.Active() {
			return closed(booking)
		}

		if err := s.ledger.Reserve(ctx, tx, flight, 1); err != nil {
			return err
		}

		passenger.BookingID = booking.ID
		if err := tx.InsertPassenger(ctx, &passenger); err != nil {
			return fmt.Errorf("insert passenger: %w", err)
		}

		total, err := booking.TotalPrice.Add(passenger.Price)
		if err != nil {
			return totalOverflow(err)
		}
		booking.TotalPrice = total
		if err := tx.UpdateBookingTotal(ctx, booking.ID, booking.TotalPrice); err != nil {
			return fmt.Errorf("update booking total: %w", err)
		}

		result = Result{Passenger: &passenger, Booking: booking, SeatsAvailable: flight.AvailableSeats}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"user_id":    actor.UserID,
		}).WithError(err).Warn("add passenger failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":      bookingID,
		"passenger_id":    passenger.ID,
		"total_price":     result.Booking.TotalPrice.String(),
		"seats_available": result.SeatsAvailable,
	}).Info("passenger added")

	s.invalidate(ctx, current.FlightID)
	s.publish(ctx, domain.EventPassengerAdded, &result, passenger.ID)
	return &result, nil
}

func (s *PassengerService) UpdatePassenger(ctx context.Context, actor domain.Actor, passengerID int64, input UpdateInput) (*Result, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	existing, err := s.store.GetPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	current, err := s.authorizedBooking(ctx, actor, existing.BookingID)
	if err != nil {
		return nil, err
	}
	if !current.Active() {
		return nil, closed(current)
	}

	var result Result
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		booking, err := tx.LockBooking(ctx, current.ID)
		if err != nil {
			return err
		}
		if !booking.Active() {
			return closed(booking)
		}
		passenger, err := tx.LockPassenger(ctx, passengerID)
		if err != nil {
			return err
		}

		oldPrice := passenger.Price
		if err := input.apply(passenger); err != nil {
			return err
		}
		if err := tx.UpdatePassenger(ctx, passenger); err != nil {
			return fmt.Errorf("update passenger: %w", err)
		}

		if delta := passenger.Price - oldPrice; delta != 0 {
			total, err := booking.TotalPrice.Add(delta)
			if err != nil {
				return totalOverflow(err)
			}
			booking.TotalPrice = total
			if err := tx.UpdateBookingTotal(ctx, booking.ID, booking.TotalPrice); err != nil {
				return fmt.Errorf("update booking total: %w", err)
			}
		}

		flight, err := tx.GetFlight(ctx, booking.FlightID)
		if err != nil {
			return err
		}

		result = Result{Passenger: passenger, Booking: booking, SeatsAvailable: flight.AvailableSeats}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"passenger_id": passengerID,
			"user_id":      actor.UserID,
		}).WithError(err).Warn("update passenger failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":   result.Booking.ID,
		"passenger_id": passengerID,
		"total_price":  result.Booking.TotalPrice.String(),
	}).Info("passenger updated")

	s.publish(ctx, domain.EventPassengerUpdated, &result, passengerID)
	return &result, nil
}

func (s *PassengerService) RemovePassenger(ctx context.Context, actor domain.Actor, passengerID int64) (*Result, error) {
	existing, err := s.store.GetPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	current, err := s.authorizedBooking(ctx, actor, existing.BookingID)
	if err != nil {
		return nil, err
	}

	var result Result
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		flight, err := tx.LockFlight(ctx, current.FlightID)
		if err != nil {
			return err
		}
		booking, err := tx.LockBooking(ctx, current.ID)
		if err != nil {
			return err
		}
		passenger, err := tx.LockPassenger(ctx, passengerID)
		if err != nil {
			return err
		}

		if booking.Active() {
			if err := s.ledger.Release(ctx, tx, flight, 1); err != nil {
				return err
			}
			booking.TotalPrice = max(0, booking.TotalPrice-passenger.Price)
			if err := tx.UpdateBookingTotal(ctx, booking.ID, booking.TotalPrice); err != nil {
				return fmt.Errorf("update booking total: %w", err)
			}
		}

		if err := tx.DeletePassenger(ctx, passengerID); err != nil {
			return fmt.Errorf("delete passenger: %w", err)
		}

		result = Result{Booking: booking, SeatsAvailable: flight.AvailableSeats}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"passenger_id": passengerID,
			"user_id":      actor.UserID,
		}).WithError(err).Warn("remove passenger failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":      result.Booking.ID,
		"passenger_id":    passengerID,
		"total_price":     result.Booking.TotalPrice.String(),
		"seats_available": result.SeatsAvailable,
	}).Info("passenger removed")

	if result.Booking.Active() {
		s.invalidate(ctx, current.FlightID)
	}
	s.publish(ctx, domain.EventPassengerRemoved, &result, passengerID)
	return &result, nil
}

func (s *PassengerService) ListPassengers(ctx context.Context, actor domain.Actor, bookingID int64) ([]domain.Passenger, error) {
	if _, err := s.authorizedBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.store.ListPassengers(ctx, bookingID)
}

func (s *PassengerService) GetPassenger(ctx context.Context, actor domain.Actor, passengerID int64) (*domain.Passenger, error) {
	passenger, err := s.store.GetPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizedBooking(ctx, actor, passenger.BookingID); err != nil {
		return nil, err
	}
	return passenger, nil
}

func (s *PassengerService) invalidate(ctx context.Context, flightID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlight(ctx, flightID); err != nil {
		s.log.WithField("flight_id", flightID).WithError(err).Warn("failed to invalidate cached flight")
	}
}

func (s *PassengerService) publish(ctx context.Context, eventType string, result *Result, passengerID int64) {
	if s.publisher == nil {
		return
	}
	event := events.New(eventType, result.Booking, result.SeatsAvailable, passengerID, s.now())
	if err := s.publisher.PublishBookingEvent(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":      eventType,
			"booking_id": result.Booking.ID,
		}).WithError(err).Warn("failed to publish booking event")
	}
}

var _ PassengerUseCase = (*PassengerService)(nil)
