package passengers

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/repository"
	"github.com/Domenick1991/airreservations/internal/repository/repotest"
	"github.com/Domenick1991/airreservations/internal/service/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateFlight(ctx context.Context, flightID int64) error {
	args := m.Called(ctx, flightID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var (
	owner    = domain.Actor{UserID: 7, Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: 8, Role: domain.RoleCustomer}
	admin    = domain.Actor{UserID: 1, Role: domain.RoleAdmin}
	fare     = domain.NewMoney(159, 99)
)

func money(m domain.Money) *domain.Money { return &m }

func str(s string) *string { return &s }

func newService(store repository.Store, opts ...PassengerServiceOption) *PassengerService {
	return NewPassengerService(store, inventory.NewLedger(), opts...)
}

func flightSeats(t *testing.T, store repository.Store, flightID int64) int {
	t.Helper()
	f, err := store.GetFlight(context.Background(), flightID)
	require.NoError(t, err)
	return f.AvailableSeats
}

func bookingTotal(t *testing.T, store repository.Store, bookingID int64) domain.Money {
	t.Helper()
	b, err := store.GetBooking(context.Background(), bookingID)
	require.NoError(t, err)
	return b.TotalPrice
}

func cancel(t *testing.T, store repository.Store, booking *domain.Booking, flightID int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(tx repository.Tx) error {
		flight, err := tx.LockFlight(ctx, flightID)
		if err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, booking.ID, domain.BookingStatusCanceled); err != nil {
			return err
		}
		return inventory.NewLedger().Release(ctx, tx, flight, len(booking.Passengers))
	}))
}

func TestPassengerService_AddPassenger_Success(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF100", 180)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare)
	cache := &MockCache{}
	publisher := &MockPublisher{}
	service := newService(store, WithCache(cache), WithPublisher(publisher))
	ctx := context.Background()

	cache.On("InvalidateFlight", ctx, flight.ID).Return(nil).Once()
	publisher.On("PublishBookingEvent", ctx, mock.MatchedBy(func(e domain.BookingEvent) bool {
		return e.Type == domain.EventPassengerAdded && e.PassengerID > 0 && e.SeatsAvailable == 177
	})).Return(nil).Once()

	result, err := service.AddPassenger(ctx, owner, booking.ID, Input{
		FirstName: "Jovan", LastName: "Jovanovic", DateOfBirth: "2001-09-30", Price: money(domain.NewMoney(99, 0)),
	})

	require.NoError(t, err)
	assert.NotZero(t, result.Passenger.ID)
	assert.Equal(t, booking.ID, result.Passenger.BookingID)
	assert.Equal(t, domain.NewMoney(418, 98), result.Booking.TotalPrice)
	assert.Equal(t, 177, result.SeatsAvailable)
	assert.Equal(t, 177, flightSeats(t, store, flight.ID))
	assert.Equal(t, domain.NewMoney(418, 98), bookingTotal(t, store, booking.ID))

	repotest.AssertConsistent(t, store)
	cache.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPassengerService_AddPassenger_FullFlight(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF101", 2)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare)
	service := newService(store)

	_, err := service.AddPassenger(context.Background(), owner, booking.ID, Input{
		FirstName: "A", LastName: "B", Price: money(fare),
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Equal(t, 0, flightSeats(t, store, flight.ID))
	assert.Equal(t, domain.NewMoney(319, 98), bookingTotal(t, store, booking.ID))

	list, err := store.ListPassengers(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPassengerService_AddPassenger_Rejections(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF102", 10)
	active := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare)
	canceled := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare)
	cancel(t, store, canceled, flight.ID)
	service := newService(store)
	ctx := context.Background()
	valid := Input{FirstName: "A", LastName: "B", Price: money(fare)}

	_, err := service.AddPassenger(ctx, stranger, active.ID, valid)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = service.AddPassenger(ctx, owner, canceled.ID, valid)
	assert.ErrorIs(t, err, domain.ErrBookingClosed)

	_, err = service.AddPassenger(ctx, owner, 999, valid)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.AddPassenger(ctx, owner, active.ID, Input{FirstName: "A", LastName: "B", Price: money(-5)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, 9, flightSeats(t, store, flight.ID))
	repotest.AssertConsistent(t, store)
}

func TestPassengerService_UpdatePassenger_Price(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF103", 180)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare)
	publisher := &MockPublisher{}
	service := newService(store, WithPublisher(publisher))
	ctx := context.Background()

	publisher.On("PublishBookingEvent", ctx, mock.MatchedBy(func(e domain.BookingEvent) bool {
		return e.Type == domain.EventPassengerUpdated
	})).Return(nil).Once()

	result, err := service.UpdatePassenger(ctx, owner, booking.Passengers[0].ID, UpdateInput{
		Price: money(domain.NewMoney(199, 99)),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.NewMoney(199, 99), result.Passenger.Price)
	assert.Equal(t, "Guest1", result.Passenger.FirstName)
	assert.Equal(t, domain.NewMoney(359, 98), result.Booking.TotalPrice)
	assert.Equal(t, domain.NewMoney(359, 98), bookingTotal(t, store, booking.ID))
	assert.Equal(t, 178, result.SeatsAvailable)

	repotest.AssertConsistent(t, store)
	publisher.AssertExpectations(t)
}

func TestPassengerService_UpdatePassenger_Fields(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF104", 10)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare)
	service := newService(store)
	ctx := context.Background()
	id := booking.Passengers[0].ID

	result, err := service.UpdatePassenger(ctx, admin, id, UpdateInput{
		LastName:    str("Petrovic"),
		DateOfBirth: str("1985-01-31"),
		SeatNumber:  str("3A"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Petrovic", result.Passenger.LastName)
	assert.Equal(t, "3A", result.Passenger.SeatNumber)
	assert.Equal(t, fare, result.Booking.TotalPrice)

	stored, err := store.GetPassenger(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored.DateOfBirth)
	assert.Equal(t, "1985-01-31", stored.DateOfBirth.Format("2006-01-02"))

	result, err = service.UpdatePassenger(ctx, owner, id, UpdateInput{DateOfBirth: str("")})
	require.NoError(t, err)
	assert.Nil(t, result.Passenger.DateOfBirth)

	_, err = service.UpdatePassenger(ctx, owner, id, UpdateInput{FirstName: str("  ")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = service.UpdatePassenger(ctx, owner, id, UpdateInput{FirstName: str("")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = service.UpdatePassenger(ctx, owner, id, UpdateInput{DateOfBirth: str("31/01/1985")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err = store.GetPassenger(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Guest1", stored.FirstName)
}

func TestPassengerService_UpdatePassenger_Rejections(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF105", 10)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare)
	service := newService(store)
	ctx := context.Background()
	id := booking.Passengers[0].ID

	_, err := service.UpdatePassenger(ctx, stranger, id, UpdateInput{Price: money(0)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = service.UpdatePassenger(ctx, owner, 999, UpdateInput{Price: money(0)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cancel(t, store, booking, flight.ID)
	_, err = service.UpdatePassenger(ctx, owner, id, UpdateInput{Price: money(0)})
	assert.ErrorIs(t, err, domain.ErrBookingClosed)
	assert.Equal(t, fare, bookingTotal(t, store, booking.ID))
}

func TestPassengerService_RemovePassenger(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF106", 180)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare)
	cache := &MockCache{}
	service := newService(store, WithCache(cache))
	ctx := context.Background()

	cache.On("InvalidateFlight", ctx, flight.ID).Return(nil).Twice()

	_, err := service.AddPassenger(ctx, owner, booking.ID, Input{FirstName: "X", LastName: "Y", Price: money(domain.NewMoney(199, 99))})
	require.NoError(t, err)
	_, err = service.UpdatePassenger(ctx, owner, booking.Passengers[1].ID, UpdateInput{Price: money(domain.NewMoney(199, 99))})
	require.NoError(t, err)
	require.Equal(t, domain.NewMoney(559, 97), bookingTotal(t, store, booking.ID))
	require.Equal(t, 177, flightSeats(t, store, flight.ID))

	result, err := service.RemovePassenger(ctx, owner, booking.Passengers[1].ID)

	require.NoError(t, err)
	assert.Nil(t, result.Passenger)
	assert.Equal(t, domain.NewMoney(359, 98), result.Booking.TotalPrice)
	assert.Equal(t, 178, result.SeatsAvailable)
	assert.Equal(t, 178, flightSeats(t, store, flight.ID))

	_, err = store.GetPassenger(ctx, booking.Passengers[1].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	repotest.AssertConsistent(t, store)
	cache.AssertExpectations(t)
}

func TestPassengerService_RemovePassenger_Scenario(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF107", 180)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, domain.NewMoney(199, 99))
	service := newService(store)

	result, err := service.RemovePassenger(context.Background(), owner, booking.Passengers[1].ID)

	require.NoError(t, err)
	assert.Equal(t, fare, result.Booking.TotalPrice)
	assert.Equal(t, 179, result.SeatsAvailable)
	repotest.AssertConsistent(t, store)
}

func TestPassengerService_RemovePassenger_CanceledBooking(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF108", 10)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare)
	cancel(t, store, booking, flight.ID)
	service := newService(store)
	ctx := context.Background()
	require.Equal(t, 10, flightSeats(t, store, flight.ID))

	result, err := service.RemovePassenger(ctx, owner, booking.Passengers[0].ID)

	require.NoError(t, err)
	assert.Equal(t, domain.NewMoney(319, 98), result.Booking.TotalPrice)
	assert.Equal(t, 10, result.SeatsAvailable)
	assert.Equal(t, 10, flightSeats(t, store, flight.ID))

	list, err := store.ListPassengers(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPassengerService_RemovePassenger_Forbidden(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF109", 10)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare)
	service := newService(store)

	_, err := service.RemovePassenger(context.Background(), stranger, booking.Passengers[0].ID)

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 9, flightSeats(t, store, flight.ID))
}

func TestPassengerService_ListAndGet(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF110", 10)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare)
	service := newService(store)
	ctx := context.Background()

	_, err := service.UpdatePassenger(ctx, owner, booking.Passengers[0].ID, UpdateInput{LastName: str("Zivkovic")})
	require.NoError(t, err)

	list, err := service.ListPassengers(ctx, owner, booking.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Traveler2", list[0].LastName)
	assert.Equal(t, "Zivkovic", list[1].LastName)

	_, err = service.ListPassengers(ctx, stranger, booking.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	p, err := service.GetPassenger(ctx, admin, booking.Passengers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Zivkovic", p.LastName)

	_, err = service.GetPassenger(ctx, stranger, booking.Passengers[0].ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPassengerService_PublishFailureIgnored(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF111", 10)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare)
	publisher := &MockPublisher{}
	service := newService(store, WithPublisher(publisher), WithClock(func() time.Time { return time.Unix(0, 0) }))
	ctx := context.Background()

	publisher.On("PublishBookingEvent", ctx, mock.Anything).Return(errors.New("broker down")).Once()

	_, err := service.RemovePassenger(ctx, owner, booking.Passengers[0].ID)
	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func setTotal(t *testing.T, store repository.Store, bookingID int64, total domain.Money) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(tx repository.Tx) error {
		return tx.UpdateBookingTotal(ctx, bookingID, total)
	}))
}

func TestPassengerService_TotalOverflow(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF110", 10)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare)
	near := domain.Money(math.MaxInt64 - 100)
	setTotal(t, store, booking.ID, near)
	service := newService(store)
	ctx := context.Background()

	_, err := service.AddPassenger(ctx, owner, booking.ID, Input{FirstName: "A", LastName: "B", Price: money(fare)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrAmountOverflow)
	assert.Equal(t, 8, flightSeats(t, store, flight.ID))
	assert.Equal(t, near, bookingTotal(t, store, booking.ID))

	_, err = service.UpdatePassenger(ctx, owner, booking.Passengers[0].ID, UpdateInput{Price: money(domain.MaxPrice)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, near, bookingTotal(t, store, booking.ID))

	stored, err := store.GetPassenger(ctx, booking.Passengers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, fare, stored.Price)

	_, err = service.UpdatePassenger(ctx, owner, booking.Passengers[0].ID, UpdateInput{Price: money(domain.MaxPrice + 1)})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "price", ve.Field)
}

func TestPassengerService_ConcurrentMutations(t *testing.T) {
	store := repotest.NewStore(t)
	flight := repotest.CreateFlight(t, store, "AF111", 20)
	booking := repotest.CreateBooking(t, store, flight.ID, owner.UserID, fare, fare, fare)
	service := newService(store)
	ctx := context.Background()

	const rounds = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		added    int
		full     int
		removed  int
		failures []error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil && !errors.Is(err, domain.ErrInsufficientInventory) {
			failures = append(failures, err)
		}
	}

	for i := 0; i < rounds; i++ {
		for _, p := range booking.Passengers[:2] {
			wg.Add(1)
			go func(id int64, cents int64) {
				defer wg.Done()
				_, err := service.UpdatePassenger(ctx, owner, id, UpdateInput{Price: money(domain.Money(cents))})
				record(err)
			}(p.ID, int64(10000+i))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddPassenger(ctx, owner, booking.ID, Input{FirstName: "A", LastName: "B", Price: money(fare)})
			record(err)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case errors.Is(err, domain.ErrInsufficientInventory):
				full++
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := service.RemovePassenger(ctx, owner, booking.Passengers[2].ID)
		record(err)
		if err == nil {
			mu.Lock()
			removed++
			mu.Unlock()
		}
	}()
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, 1, removed)
	assert.Equal(t, rounds, added+full)

	list, err := store.ListPassengers(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3+added-removed)
	assert.Equal(t, 20-len(list), flightSeats(t, store, flight.ID))

	var sum domain.Money
	for _, p := range list {
		sum += p.Price
	}
	assert.Equal(t, sum, bookingTotal(t, store, booking.ID))
	repotest.AssertConsistent(t, store)
}

func TestInput_Passenger(t *testing.T) {
	p, err := Input{FirstName: " Ana ", LastName: "Anic", DateOfBirth: "1990-01-02", Price: money(fare)}.Passenger()
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FirstName)
	require.NotNil(t, p.DateOfBirth)

	_, err = Input{FirstName: "Ana", LastName: "Anic"}.Passenger()
	assert.ErrorIs(t, err, domain.ErrValidation)
}
