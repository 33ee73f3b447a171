package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airreservations/config"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/events"
	"github.com/Domenick1991/airreservations/internal/kafka"
	"github.com/Domenick1991/airreservations/internal/rabbitmq"
	"github.com/Domenick1991/airreservations/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Store is a repository.Store that can also be seeded and pinged.
type Store interface {
	repository.Store
	Seed(ctx context.Context, airports []domain.Airport) error
	Ping(ctx context.Context) error
}

// Airports seeded on start when database.auto_migrate is set.
var Airports = []domain.Airport{
	{Code: "BEG", Name: "Belgrade Nikola Tesla", City: "Belgrade", Country: "RS"},
	{Code: "CDG", Name: "Paris Charles de Gaulle", City: "Paris", Country: "FR"},
	{Code: "SVO", Name: "Moscow Sheremetyevo", City: "Moscow", Country: "RU"},
	{Code: "LED", Name: "Saint Petersburg Pulkovo", City: "Saint Petersburg", Country: "RU"},
	{Code: "FRA", Name: "Frankfurt am Main", City: "Frankfurt", Country: "DE"},
	{Code: "IST", Name: "Istanbul", City: "Istanbul", Country: "TR"},
}

// OpenStore connects to the configured database and, with auto_migrate,
// applies the schema and seeds the airport catalog.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (Store, error) {
	var (
		store   Store
		migrate func(context.Context) error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, migrate = s, s.Migrate
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := repository.NewPGStore(pool, repository.WithLockTimeout(cfg.LockTimeout()))
		store, migrate = s, s.Migrate
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if cfg.AutoMigrate {
		if err := migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := store.Seed(ctx, Airports); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed airports: %w", err)
		}
		log.WithField("driver", cfg.Driver).Info("database schema applied")
	}
	return store, nil
}

// NewPublisher returns the booking event sink selected by events.driver.
func NewPublisher(cfg *config.Config, log *logrus.Logger) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case config.EventsKafka:
		producer := kafka.NewProducer(cfg.Kafka.Brokers, kafka.WithLogger(log))
		return kafka.NewBookingPublisher(producer, cfg.Kafka.BookingTopic, cfg.Kafka.NotificationsTopic), nil
	case config.EventsRabbitMQ:
		client, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.EventsNone:
		return events.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}

// NewConsumer returns the notification reader used by the worker, or nil
// when events are disabled.
func NewConsumer(cfg *config.Config, log *logrus.Logger) (events.Consumer, error) {
	switch cfg.Events.Driver {
	case config.EventsKafka:
		topic := cfg.Kafka.NotificationsTopic
		if topic == "" {
			topic = cfg.Kafka.BookingTopic
		}
		return kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topic, log), nil
	case config.EventsRabbitMQ:
		client, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, err
		}
		return client.Consumer(cfg.RabbitMQ.NotificationsQueue), nil
	case config.EventsNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}
