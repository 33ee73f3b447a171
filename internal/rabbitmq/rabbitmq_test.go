package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Domenick1991/airreservations/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ret := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return ret.Get(0).(amqp.Queue), ret.Error(1)
}

func (m *MockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	ret := m.Called(name, key, exchange, noWait, args)
	return ret.Error(0)
}

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ret := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	return ret.Get(0).(<-chan amqp.Delivery), ret.Error(1)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

// recorder counts acknowledgements by delivery tag.
type recorder struct {
	acked    []uint64
	nacked   []uint64
	rejected []uint64
}

func (r *recorder) Ack(tag uint64, _ bool) error {
	r.acked = append(r.acked, tag)
	return nil
}

func (r *recorder) Nack(tag uint64, _ bool, _ bool) error {
	r.nacked = append(r.nacked, tag)
	return nil
}

func (r *recorder) Reject(tag uint64, _ bool) error {
	r.rejected = append(r.rejected, tag)
	return nil
}

func event() domain.BookingEvent {
	return domain.BookingEvent{
		ID:          "evt-1",
		Type:        domain.EventPassengerAdded,
		BookingID:   4,
		BookingCode: "PNRQ7X2M9",
		PassengerID: 9,
		TotalPrice:  domain.NewMoney(418, 98),
	}
}

func expectQueue(ch *MockChannel, deliveries chan amqp.Delivery) {
	ch.On("QueueDeclare", "booking-notifications", true, false, false, false, amqp.Table(nil)).
		Return(amqp.Queue{Name: "booking-notifications"}, nil).Once()
	ch.On("QueueBind", "booking-notifications", "booking.#", "bookings", false, amqp.Table(nil)).Return(nil).Once()
	ch.On("Consume", "booking-notifications", "", false, false, false, false, amqp.Table(nil)).
		Return((<-chan amqp.Delivery)(deliveries), nil).Once()
}

func TestClient_PublishBookingEvent(t *testing.T) {
	ch := &MockChannel{}
	client := newClient(ch, "bookings", nil)
	ctx := context.Background()

	ch.On("PublishWithContext", ctx, "bookings", "booking.passenger_added", false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var decoded domain.BookingEvent
			return json.Unmarshal(msg.Body, &decoded) == nil &&
				msg.ContentType == "application/json" &&
				msg.DeliveryMode == amqp.Persistent &&
				msg.MessageId == "evt-1" &&
				decoded.TotalPrice == domain.NewMoney(418, 98)
		})).Return(nil).Once()

	require.NoError(t, client.PublishBookingEvent(ctx, event()))
	ch.AssertExpectations(t)
}

func TestClient_PublishError(t *testing.T) {
	ch := &MockChannel{}
	client := newClient(ch, "bookings", nil)
	ctx := context.Background()

	ch.On("PublishWithContext", ctx, "bookings", mock.Anything, false, false, mock.Anything).
		Return(amqp.ErrClosed).Once()

	err := client.PublishBookingEvent(ctx, event())

	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.ErrorContains(t, err, "booking.passenger_added")
}

func TestConsumer_Consume(t *testing.T) {
	ch := &MockChannel{}
	deliveries := make(chan amqp.Delivery, 3)
	expectQueue(ch, deliveries)

	acks := &recorder{}
	body, err := json.Marshal(event())
	require.NoError(t, err)
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: body}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte("oops")}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: body}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled int
	consumer := newClient(ch, "bookings", nil).Consumer("booking-notifications")
	err = consumer.Consume(ctx, func(_ context.Context, e domain.BookingEvent) error {
		handled++
		assert.Equal(t, "PNRQ7X2M9", e.BookingCode)
		if handled == 2 {
			cancel()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Equal(t, []uint64{1, 3}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.rejected)
	ch.AssertExpectations(t)
}

func TestConsumer_HandlerErrorRequeues(t *testing.T) {
	ch := &MockChannel{}
	deliveries := make(chan amqp.Delivery, 1)
	expectQueue(ch, deliveries)

	acks := &recorder{}
	body, err := json.Marshal(event())
	require.NoError(t, err)
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 7, Body: body}

	consumer := newClient(ch, "bookings", nil).Consumer("booking-notifications")
	err = consumer.Consume(context.Background(), func(context.Context, domain.BookingEvent) error {
		return errors.New("mailer down")
	})

	assert.EqualError(t, err, "mailer down")
	assert.Equal(t, []uint64{7}, acks.nacked)
	assert.Empty(t, acks.acked)
}

func TestConsumer_ClosedChannel(t *testing.T) {
	ch := &MockChannel{}
	deliveries := make(chan amqp.Delivery)
	close(deliveries)
	expectQueue(ch, deliveries)

	consumer := newClient(ch, "bookings", nil).Consumer("booking-notifications")
	err := consumer.Consume(context.Background(), func(context.Context, domain.BookingEvent) error { return nil })

	assert.ErrorContains(t, err, "closed")
}

func TestConsumer_Close(t *testing.T) {
	ch := &MockChannel{}
	ch.On("Close").Return(nil).Once()

	require.NoError(t, newClient(ch, "bookings", nil).Consumer("q").Close())
	ch.AssertExpectations(t)
}
