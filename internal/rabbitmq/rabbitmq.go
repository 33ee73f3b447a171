// Package rabbitmq publishes and consumes booking events over a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/events"
	"github.com/Domenick1991/airreservations/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RoutingPrefix is prepended to the event type to form the routing key.
const RoutingPrefix = "booking."

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type Client struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	log      *logrus.Logger
}

// Dial connects and declares a durable topic exchange.
func Dial(url, exchange string, log *logrus.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	c := newClient(ch, exchange, log)
	c.conn = conn
	return c, nil
}

func newClient(ch channel, exchange string, log *logrus.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{ch: ch, exchange: exchange, log: log}
}

func (c *Client) PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := RoutingPrefix + event.Type
	err = c.ch.PublishWithContext(ctx, c.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	c.log.WithFields(logrus.Fields{"exchange": c.exchange, "routing_key": key}).Debug("published to rabbitmq")
	return nil
}

func (c *Client) Close() error {
	var errs []error
	if c.ch != nil {
		errs = append(errs, c.ch.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

// Consumer reads booking events from a durable queue bound to every booking routing key.
type Consumer struct {
	client *Client
	queue  string
}

func (c *Client) Consumer(queue string) *Consumer {
	return &Consumer{client: c, queue: queue}
}

// Consume acks each handled delivery. Undecodable deliveries are rejected
// without requeue; a handler error requeues the delivery and stops consuming.
func (c *Consumer) Consume(ctx context.Context, handler events.Handler) error {
	ch := c.client.ch
	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(q.Name, RoutingPrefix+"#", c.client.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	log := c.client.log.WithField("queue", q.Name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel for %s closed", q.Name)
			}

			var event domain.BookingEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				log.WithField("routing_key", d.RoutingKey).WithError(err).Warn("rejecting malformed booking event")
				_ = d.Reject(false)
				continue
			}
			if err := handler(ctx, event); err != nil {
				_ = d.Nack(false, true)
				return err
			}
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("ack delivery: %w", err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.client.Close()
}

var (
	_ events.Publisher = (*Client)(nil)
	_ events.Consumer  = (*Consumer)(nil)
)
