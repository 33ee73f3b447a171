package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Events   EventsConfig   `yaml:"events"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Booking  BookingConfig  `yaml:"booking"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	SwaggerFile string   `yaml:"swagger_file"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	// Address of the health-check listener. Empty disables it.
	Address string `yaml:"address"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver        string `yaml:"driver"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name"`
	SSLMode       string `yaml:"ssl_mode"`
	URL           string `yaml:"dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	AutoMigrate   bool   `yaml:"auto_migrate"`
	LockTimeoutMS int    `yaml:"lock_timeout_ms"`
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (d DatabaseConfig) LockTimeout() time.Duration {
	return time.Duration(d.LockTimeoutMS) * time.Millisecond
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

const (
	EventsKafka    = "kafka"
	EventsRabbitMQ = "rabbitmq"
	EventsNone     = "none"
)

type EventsConfig struct {
	Driver string `yaml:"driver"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type RabbitMQConfig struct {
	URL                string `yaml:"url"`
	Exchange           string `yaml:"exchange"`
	NotificationsQueue string `yaml:"notifications_queue"`
}

type BookingConfig struct {
	CodeMaxAttempts int `yaml:"code_max_attempts"`
	FlightsCacheTTL int `yaml:"flights_cache_ttl_seconds"`
	PageSize        int `yaml:"page_size"`
}

func (b BookingConfig) CacheTTL() time.Duration {
	return time.Duration(b.FlightsCacheTTL) * time.Second
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	Issuer          string `yaml:"issuer"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WorkerConfig struct {
	AuditIntervalSeconds int `yaml:"audit_interval_seconds"`
}

func (w WorkerConfig) AuditInterval() time.Duration {
	return time.Duration(w.AuditIntervalSeconds) * time.Second
}

// LoadConfig reads the YAML file, applies .env and environment overrides,
// fills defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"JWT_SECRET":     &c.Auth.JWTSecret,
		"DB_PASSWORD":    &c.Database.Password,
		"DB_DSN":         &c.Database.URL,
		"REDIS_ADDR":     &c.Redis.Addr,
		"REDIS_PASSWORD": &c.Redis.Password,
		"RABBITMQ_URL":   &c.RabbitMQ.URL,
		"LOG_LEVEL":      &c.Log.Level,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "airreservations.db"
	}
	if c.Database.LockTimeoutMS == 0 {
		c.Database.LockTimeoutMS = 5000
	}
	if c.Events.Driver == "" {
		c.Events.Driver = EventsNone
	}
	if c.Kafka.BookingTopic == "" {
		c.Kafka.BookingTopic = "bookings"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "airreservations-worker"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "bookings"
	}
	if c.RabbitMQ.NotificationsQueue == "" {
		c.RabbitMQ.NotificationsQueue = "booking-notifications"
	}
	if c.Booking.CodeMaxAttempts == 0 {
		c.Booking.CodeMaxAttempts = 5
	}
	if c.Booking.FlightsCacheTTL == 0 {
		c.Booking.FlightsCacheTTL = 60
	}
	if c.Booking.PageSize == 0 {
		c.Booking.PageSize = 20
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "airreservations"
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Worker.AuditIntervalSeconds == 0 {
		c.Worker.AuditIntervalSeconds = 300
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
			errs = append(errs, errors.New("database: host and name (or dsn) are required for postgres"))
		}
	case DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database: unknown driver %q", c.Database.Driver))
	}

	switch c.Events.Driver {
	case EventsKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka: at least one broker is required"))
		}
	case EventsRabbitMQ:
		if c.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("rabbitmq: url is required"))
		}
	case EventsNone:
	default:
		errs = append(errs, fmt.Errorf("events: unknown driver %q", c.Events.Driver))
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth: jwt_secret is required"))
	}
	if c.Booking.CodeMaxAttempts < 1 {
		errs = append(errs, errors.New("booking: code_max_attempts must be positive"))
	}
	if c.Booking.PageSize < 1 || c.Booking.PageSize > 1000 {
		errs = append(errs, errors.New("booking: page_size must be between 1 and 1000"))
	}
	if c.Booking.FlightsCacheTTL < 1 {
		errs = append(errs, errors.New("booking: flights_cache_ttl_seconds must be positive"))
	}
	if c.Database.LockTimeoutMS < 1 {
		errs = append(errs, errors.New("database: lock_timeout_ms must be positive"))
	}
	if c.Auth.TokenTTLMinutes < 1 {
		errs = append(errs, errors.New("auth: token_ttl_minutes must be positive"))
	}
	if c.Worker.AuditIntervalSeconds < 1 {
		errs = append(errs, errors.New("worker: audit_interval_seconds must be positive"))
	}

	return errors.Join(errs...)
}
