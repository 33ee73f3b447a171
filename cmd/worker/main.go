package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Domenick1991/airreservations/config"
	"github.com/Domenick1991/airreservations/internal/bootstrap"
	"github.com/Domenick1991/airreservations/internal/email"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/Domenick1991/airreservations/internal/service/audit"
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

	consumer, err := bootstrap.NewConsumer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("create event consumer")
	}

	var wg sync.WaitGroup

	if consumer != nil {
		defer consumer.Close()
		sender := email.NewSender(log)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, sender.Send); err != nil {
				log.WithError(err).Error("notification consumer stopped")
				stop()
			}
		}()
	} else {
		log.Info("events disabled, notification consumer not started")
	}

	auditor := audit.NewInventoryAuditor(store, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		auditor.Run(ctx, cfg.Worker.AuditInterval())
	}()

	log.WithField("audit_interval", cfg.Worker.AuditInterval().String()).Info("worker started")
	<-ctx.Done()
	log.Info("shutting down worker")
	wg.Wait()
}
