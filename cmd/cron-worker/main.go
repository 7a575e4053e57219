package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/crushlink-backend/internal/cron"
	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/internal/notifications"
	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/metrics"
	"github.com/angelmondragon/crushlink-backend/pkg/migrate"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
	"github.com/angelmondragon/crushlink-backend/pkg/redis"
)

const serviceKind = "cron-worker"

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
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "cron worker shutting down gracefully")
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	lock, err := cron.NewRedisLock(redisClient, serviceKind, 0)
	if err != nil {
		return err
	}

	registry := cron.NewRegistry()
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return err
	}
	registry.Register(retention)

	if cfg.FeatureFlags.PendingSweep {
		sweepJob, err := pendingSweepJob(cfg, logg, dbClient)
		if err != nil {
			return err
		}
		registry.Register(sweepJob)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

// pendingSweepJob wires the sweep through the same resolver and updater the
// API uses. In outbox delivery mode the notification worker sends the
// e-mails, so no dispatcher is attached.
func pendingSweepJob(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (cron.Job, error) {
	crushMetrics := metrics.NewCrushMetrics(prometheus.DefaultRegisterer)
	repo := crushes.NewRepository(dbClient.DB())
	resolver, err := crushes.NewResolver(repo, logg, crushMetrics)
	if err != nil {
		return nil, err
	}
	updater, err := crushes.NewStatusUpdater(repo, dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg))
	if err != nil {
		return nil, err
	}

	var notifier crushes.MatchNotifier
	if cfg.Notifier.InlineDelivery() {
		sender, err := notifications.NewSender(cfg.Notifier, logg, http.DefaultClient)
		if err != nil {
			return nil, err
		}
		dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
			Sender:  sender,
			Logger:  logg,
			Metrics: crushMetrics,
			Subject: cfg.Notifier.Subject,
			Message: cfg.Notifier.Message,
			Timeout: cfg.Notifier.Timeout,
		})
		if err != nil {
			return nil, err
		}
		notifier = dispatcher
	}

	sweeper, err := crushes.NewSweeper(crushes.SweeperParams{
		Store:     repo,
		Resolver:  resolver,
		Updater:   updater,
		Notifier:  notifier,
		Logger:    logg,
		Grace:     cfg.Submission.SweepGrace,
		BatchSize: cfg.Submission.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}
	job, err := cron.NewPendingSweepJob(cron.PendingSweepJobParams{Logger: logg, Sweeper: sweeper})
	if err != nil {
		return nil, err
	}
	return job, nil
}
