package flights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/Domenick1991/airreservations/internal/repository"
	"github.com/Domenick1991/airreservations/internal/validation"
	"github.com/sirupsen/logrus"
)

type FlightUseCase interface {
	Search(ctx context.Context, filter domain.FlightFilter) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
	Update(ctx context.Context, id int64, input UpdateFlightInput) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
}

// FlightCache is a best-effort read cache; a nil result with a nil error is a miss.
// Fills carry the generation read before the database query and are dropped
// when an invalidation has happened since.
type FlightCache interface {
	Generation(ctx context.Context) (int64, error)
	GetFlight(ctx context.Context, id int64) (*domain.Flight, error)
	SetFlight(ctx context.Context, flight *domain.Flight, gen int64) error
	GetSearch(ctx context.Context, gen int64, filter domain.FlightFilter) ([]domain.Flight, error)
	SetSearch(ctx context.Context, gen int64, filter domain.FlightFilter, flights []domain.Flight) error
	InvalidateFlight(ctx context.Context, flightID int64) error
}

type CreateFlightInput struct {
	Code                 string        `json:"code" validate:"required,max=50"`
	OriginAirportID      int64         `json:"origin_airport_id" validate:"required,gt=0"`
	DestinationAirportID int64         `json:"destination_airport_id" validate:"required,gt=0,nefield=OriginAirportID"`
	DepartureAt          time.Time     `json:"departure_at" validate:"required"`
	ArrivalAt            time.Time     `json:"arrival_at" validate:"required,gtfield=DepartureAt"`
	SeatsTotal           int           `json:"seats_total" validate:"required,min=1"`
	SeatsAvailable       *int          `json:"seats_available" validate:"omitnil,min=0,ltefield=SeatsTotal"`
	BasePrice            *domain.Money `json:"base_price" validate:"required,gte=0,lte=10000000000"`
}

// UpdateFlightInput changes the schedule or price. Seat counts are owned by
// the booking flow and cannot be edited here.
type UpdateFlightInput struct {
	Code                 *string       `json:"code" validate:"omitnil,min=1,max=50"`
	OriginAirportID      *int64        `json:"origin_airport_id" validate:"omitnil,gt=0"`
	DestinationAirportID *int64        `json:"destination_airport_id" validate:"omitnil,gt=0"`
	DepartureAt          *time.Time    `json:"departure_at"`
	ArrivalAt            *time.Time    `json:"arrival_at"`
	BasePrice            *domain.Money `json:"base_price" validate:"omitnil,gte=0,lte=10000000000"`
}

type FlightService struct {
	store repository.Store
	cache FlightCache
	log   *logrus.Logger
}

type FlightServiceOption func(*FlightService)

func WithLogger(log *logrus.Logger) FlightServiceOption {
	return func(s *FlightService) {
		s.log = log
	}
}

func NewFlightService(store repository.Store, cache FlightCache, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{store: store, cache: cache, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FlightService) Search(ctx context.Context, filter domain.FlightFilter) ([]domain.Flight, error) {
	filter.Origin = strings.ToUpper(strings.TrimSpace(filter.Origin))
	filter.Destination = strings.ToUpper(strings.TrimSpace(filter.Destination))
	if filter.Date != nil {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, time.UTC)
		filter.Date = &day
	}

	gen, cached := s.generation(ctx)
	if cached {
		hit, err := s.cache.GetSearch(ctx, gen, filter)
		if err != nil {
			s.log.WithError(err).Debug("flight search cache read failed")
		} else if hit != nil {
			return hit, nil
		}
	}

	flights, err := s.store.SearchFlights(ctx, filter)
	if err != nil {
		return nil, err
	}
	if cached {
		if err := s.cache.SetSearch(ctx, gen, filter, flights); err != nil {
			s.log.WithError(err).Debug("flight search cache write failed")
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	gen, cached := s.generation(ctx)
	if cached {
		hit, err := s.cache.GetFlight(ctx, id)
		if err != nil {
			s.log.WithField("flight_id", id).WithError(err).Debug("flight cache read failed")
		} else if hit != nil {
			return hit, nil
		}
	}

	flight, err := s.store.GetFlight(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached {
		if err := s.cache.SetFlight(ctx, flight, gen); err != nil {
			s.log.WithField("flight_id", id).WithError(err).Debug("flight cache write failed")
		}
	}
	return flight, nil
}

func (s *FlightService) Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	flight := &domain.Flight{
		Code:                 strings.TrimSpace(input.Code),
		OriginAirportID:      input.OriginAirportID,
		DestinationAirportID: input.DestinationAirportID,
		DepartureTime:        input.DepartureAt.UTC(),
		ArrivalTime:          input.ArrivalAt.UTC(),
		TotalSeats:           input.SeatsTotal,
		AvailableSeats:       input.SeatsTotal,
		BasePrice:            *input.BasePrice,
	}
	if input.SeatsAvailable != nil {
		flight.AvailableSeats = *input.SeatsAvailable
	}

	var created *domain.Flight
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := checkAirports(ctx, tx, flight); err != nil {
			return err
		}
		if err := tx.CreateFlight(ctx, flight); err != nil {
			return translateWriteError(err)
		}
		var err error
		created, err = tx.GetFlight(ctx, flight.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"flight_id": created.ID,
		"code":      created.Code,
		"seats":     created.TotalSeats,
	}).Info("flight created")
	return created, nil
}

func (s *FlightService) Update(ctx context.Context, id int64, input UpdateFlightInput) (*domain.Flight, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var updated *domain.Flight
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		flight, err := tx.LockFlight(ctx, id)
		if err != nil {
			return err
		}

		if input.Code != nil {
			flight.Code = strings.TrimSpace(*input.Code)
		}
		if input.OriginAirportID != nil {
			flight.OriginAirportID = *input.OriginAirportID
		}
		if input.DestinationAirportID != nil {
			flight.DestinationAirportID = *input.DestinationAirportID
		}
		if input.DepartureAt != nil {
			flight.DepartureTime = input.DepartureAt.UTC()
		}
		if input.ArrivalAt != nil {
			flight.ArrivalTime = input.ArrivalAt.UTC()
		}
		if input.BasePrice != nil {
			flight.BasePrice = *input.BasePrice
		}

		if flight.Code == "" {
			return domain.NewValidationError("code", "is required")
		}
		if !flight.ArrivalTime.After(flight.DepartureTime) {
			return domain.NewValidationError("arrival_at", "must be after departure_at")
		}
		if err := checkAirports(ctx, tx, flight); err != nil {
			return err
		}

		if err := tx.UpdateFlight(ctx, flight); err != nil {
			return translateWriteError(err)
		}
		updated, err = tx.GetFlight(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.log.WithFields(logrus.Fields{
		"flight_id": id,
		"code":      updated.Code,
	}).Info("flight updated")
	return updated, nil
}

func (s *FlightService) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockFlight(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountFlightBookings(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("flight %d has %d booking(s): %w", id, n, domain.ErrFlightHasBookings)
		}
		if err := tx.DeleteFlight(ctx, id); err != nil {
			if errors.Is(err, repository.ErrReferenced) {
				return fmt.Errorf("flight %d: %w", id, domain.ErrFlightHasBookings)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.log.WithField("flight_id", id).Info("flight deleted")
	return nil
}

// generation reports whether the cache is usable for this read and the
// generation to fill with.
func (s *FlightService) generation(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.log.WithError(err).Debug("flight cache unavailable")
		return 0, false
	}
	return gen, true
}

func (s *FlightService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlight(ctx, id); err != nil {
		s.log.WithField("flight_id", id).WithError(err).Warn("failed to invalidate cached flight")
	}
}

func checkAirports(ctx context.Context, tx repository.Tx, flight *domain.Flight) error {
	if flight.OriginAirportID == flight.DestinationAirportID {
		return domain.NewValidationError("destination_airport_id", "must differ from origin_airport_id")
	}
	airports := []struct {
		field string
		id    int64
	}{
		{"origin_airport_id", flight.OriginAirportID},
		{"destination_airport_id", flight.DestinationAirportID},
	}
	for _, a := range airports {
		if _, err := tx.GetAirport(ctx, a.id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError(a.field, "airport does not exist")
			}
			return err
		}
	}
	return nil
}

func translateWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return domain.NewValidationError("code", "has already been taken")
	}
	return err
}

var _ FlightUseCase = (*FlightService)(nil)
