package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/metrics"
	"github.com/angelmondragon/crushlink-backend/pkg/migrate"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox/registry"
	"github.com/angelmondragon/crushlink-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "outbox publisher shutting down gracefully")
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})
	logg.Info(ctx, "starting outbox publisher")
	return service.Run(ctx)
}
