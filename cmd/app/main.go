package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/airreservations/config"
	"github.com/Domenick1991/airreservations/internal/auth"
	"github.com/Domenick1991/airreservations/internal/bootstrap"
	"github.com/Domenick1991/airreservations/internal/cache"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/Domenick1991/airreservations/internal/service/booking"
	"github.com/Domenick1991/airreservations/internal/service/flights"
	"github.com/Domenick1991/airreservations/internal/service/inventory"
	"github.com/Domenick1991/airreservations/internal/service/passengers"
	"github.com/Domenick1991/airreservations/internal/service/pnr"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer store.Close()

	publisher, err := bootstrap.NewPublisher(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("create event publisher")
	}
	defer publisher.Close()

	checks := map[string]func(context.Context) error{"database": store.Ping}

	ledger := inventory.NewLedger(inventory.WithLogger(log))
	codes := pnr.NewGenerator(pnr.WithMaxAttempts(cfg.Booking.CodeMaxAttempts), pnr.WithLogger(log))

	bookingOpts := []booking.BookingServiceOption{
		booking.WithPublisher(publisher),
		booking.WithLogger(log),
		booking.WithPageSize(cfg.Booking.PageSize),
	}
	passengerOpts := []passengers.PassengerServiceOption{
		passengers.WithPublisher(publisher),
		passengers.WithLogger(log),
	}

	var flightCache flights.FlightCache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.CacheTTL())
		defer redisCache.Close()

		flightCache = redisCache
		checks["redis"] = redisCache.Ping
		bookingOpts = append(bookingOpts, booking.WithCache(redisCache))
		passengerOpts = append(passengerOpts, passengers.WithCache(redisCache))
	}

	svc := bootstrap.Services{
		Flights:    flights.NewFlightService(store, flightCache, flights.WithLogger(log)),
		Bookings:   booking.NewBookingService(store, ledger, codes, bookingOpts...),
		Passengers: passengers.NewPassengerService(store, ledger, passengerOpts...),
		Tokens:     auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL()),
		Checks:     checks,
	}

	if err := bootstrap.Run(ctx, cfg, svc, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
	log.Info("server stopped")
}
