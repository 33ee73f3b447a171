package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/airreservations/config"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps read-only flight lookups. Seat counters change with every
// booking, so writers call InvalidateFlight after commit.
//
// Every invalidation bumps a generation counter. Readers take the generation
// before they query the database and pass it back on fill; a fill whose
// generation has moved on is dropped, so a slow reader cannot put a seat count
// older than the last invalidation back into the cache.
type RedisCache struct {
	client     redis.UniversalClient
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL,
	)
}

func NewRedisCacheWithClient(client redis.UniversalClient, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, flightsTTL: flightsTTL}
}

// GetFlight returns nil without error on a miss.
func (c *RedisCache) GetFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	data, err := c.client.Get(ctx, flightKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flight domain.Flight
	if err := json.Unmarshal(data, &flight); err != nil {
		return nil, err
	}
	return &flight, nil
}

// Generation returns the current invalidation generation, zero before the first one.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return gen, nil
}

// SetFlight stores flight unless an invalidation happened after gen was read.
func (c *RedisCache) SetFlight(ctx context.Context, flight *domain.Flight, gen int64) error {
	payload, err := json.Marshal(flight)
	if err != nil {
		return err
	}
	return c.fill(ctx, gen, flightKey(flight.ID), payload)
}

// GetSearch returns nil without error on a miss.
func (c *RedisCache) GetSearch(ctx context.Context, gen int64, filter domain.FlightFilter) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, searchKey(gen, filter)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetSearch(ctx context.Context, gen int64, filter domain.FlightFilter, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.fill(ctx, gen, searchKey(gen, filter), payload)
}

// fillScript sets KEYS[2] only while the generation in KEYS[1] equals ARGV[1].
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *RedisCache) fill(ctx context.Context, gen int64, key string, payload []byte) error {
	ttl := max(c.flightsTTL.Milliseconds(), 1)
	return fillScript.Run(ctx, c.client, []string{generationKey, key}, strconv.FormatInt(gen, 10), payload, ttl).Err()
}

// InvalidateFlight drops the flight entry and retires every cached search and
// in-flight fill by bumping the generation.
func (c *RedisCache) InvalidateFlight(ctx context.Context, flightID int64) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, flightKey(flightID))
	pipe.Incr(ctx, generationKey)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

const generationKey = "cache:flights:search:gen"

func flightKey(id int64) string {
	return fmt.Sprintf("cache:flight:%d", id)
}

func searchKey(gen int64, filter domain.FlightFilter) string {
	date := "*"
	if filter.Date != nil {
		date = filter.Date.Format("2006-01-02")
	}
	origin, destination := "*", "*"
	if filter.Origin != "" {
		origin = strings.ToUpper(filter.Origin)
	}
	if filter.Destination != "" {
		destination = strings.ToUpper(filter.Destination)
	}
	return fmt.Sprintf("cache:flights:search:%d:%s:%s:%s", gen, origin, destination, date)
}
