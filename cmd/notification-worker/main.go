package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/internal/notifications"
	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/instance"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/metrics"
	"github.com/angelmondragon/crushlink-backend/pkg/migrate"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/crushlink-backend/pkg/pubsub"
	"github.com/angelmondragon/crushlink-backend/pkg/redis"
)

const serviceKind = "notification-worker"

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
		logg.Error(context.Background(), "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "notification worker shutting down gracefully")
}

func run(cfg *config.Config, logg *logger.Logger) error {
	if cfg.Notifier.InlineDelivery() {
		// the API already sends e-mails; consuming events too would double them
		return fmt.Errorf("%s must be %q to run the notification worker", config.EnvNotifierDelivery, config.NotifierDeliveryOutbox)
	}

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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}

	sender, err := notifications.NewSender(cfg.Notifier, logg, &http.Client{Timeout: cfg.Notifier.Timeout})
	if err != nil {
		return err
	}
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Sender:  sender,
		Logger:  logg,
		Metrics: metrics.NewCrushMetrics(prometheus.DefaultRegisterer),
		Subject: cfg.Notifier.Subject,
		Message: cfg.Notifier.Message,
		Timeout: cfg.Notifier.Timeout,
	})
	if err != nil {
		return err
	}

	consumer, err := notifications.NewConsumer(
		crushes.NewRepository(dbClient.DB()),
		pubsubClient.NotificationSubscription(),
		guard,
		dispatcher,
		logg,
	)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"instance":     instance.GetID(),
		"serviceKind":  serviceKind,
		"subscription": cfg.PubSub.NotificationSubscription,
	})
	logg.Info(ctx, "starting notification worker")
	return consumer.Run(ctx)
}
