package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/events"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	brokers []string
	writer  messageWriter
	log     *logrus.Logger
}

type ProducerOption func(*Producer)

func WithLogger(log *logrus.Logger) ProducerOption {
	return func(p *Producer) {
		p.log = log
	}
}

func NewProducer(brokers []string, opts ...ProducerOption) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(brokers, writer, opts...)
}

func newProducer(brokers []string, writer messageWriter, opts ...ProducerOption) *Producer {
	p := &Producer{brokers: brokers, writer: writer, log: logger.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes payload as JSON. Messages with the same key land on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.log.WithFields(logrus.Fields{"topic": topic, "key": key}).Debug("published to kafka")
	return nil
}

func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := p.Publish(ctx, topic, key, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		p.log.WithFields(logrus.Fields{"topic": topic, "attempt": i + 1}).WithError(err).Warn("kafka publish attempt failed")

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and lists its partitions.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}
	p.log.WithField("partitions", len(partitions)).Info("connected to kafka")
	return nil
}

// BookingPublisher sends every booking event to the booking topic and, when
// set, to the notifications topic read by the worker.
type BookingPublisher struct {
	producer           *Producer
	bookingTopic       string
	notificationsTopic string
}

func NewBookingPublisher(producer *Producer, bookingTopic, notificationsTopic string) *BookingPublisher {
	return &BookingPublisher{
		producer:           producer,
		bookingTopic:       bookingTopic,
		notificationsTopic: notificationsTopic,
	}
}

func (b *BookingPublisher) PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error {
	key := event.BookingCode
	if err := b.producer.Publish(ctx, b.bookingTopic, key, event); err != nil {
		return err
	}
	if b.notificationsTopic == "" || b.notificationsTopic == b.bookingTopic {
		return nil
	}
	return b.producer.Publish(ctx, b.notificationsTopic, key, event)
}

func (b *BookingPublisher) Close() error {
	return b.producer.Close()
}

var _ events.Publisher = (*BookingPublisher)(nil)
