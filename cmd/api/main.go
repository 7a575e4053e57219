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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/crushlink-backend/api/routes"
	"github.com/angelmondragon/crushlink-backend/api/validators"
	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/internal/notifications"
	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/identity"
	"github.com/angelmondragon/crushlink-backend/pkg/instance"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/metrics"
	"github.com/angelmondragon/crushlink-backend/pkg/migrate"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
	"github.com/angelmondragon/crushlink-backend/pkg/redis"
)

const serviceKind = "api"

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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "api server shut down gracefully")
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

	ids, err := identity.NewValidator(cfg.Identity.Prefix)
	if err != nil {
		return err
	}
	validators.UseIdentityChecker(ids)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	crushMetrics := metrics.NewCrushMetrics(reg)

	repo := crushes.NewRepository(dbClient.DB())
	resolver, err := crushes.NewResolver(repo, logg, crushMetrics)
	if err != nil {
		return err
	}
	updater, err := crushes.NewStatusUpdater(repo, dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg))
	if err != nil {
		return err
	}

	// In outbox mode the notification worker delivers e-mails from the
	// crush_matched events; the API only commits the match.
	var (
		dispatcher *notifications.Dispatcher
		notifier   crushes.MatchNotifier
	)
	if cfg.Notifier.InlineDelivery() {
		sender, err := notifications.NewSender(cfg.Notifier, logg, &http.Client{Timeout: cfg.Notifier.Timeout})
		if err != nil {
			return err
		}
		dispatcher, err = notifications.NewDispatcher(notifications.DispatcherParams{
			Sender:  sender,
			Logger:  logg,
			Metrics: crushMetrics,
			Subject: cfg.Notifier.Subject,
			Message: cfg.Notifier.Message,
			Timeout: cfg.Notifier.Timeout,
			Async:   true,
		})
		if err != nil {
			return err
		}
		notifier = dispatcher
	}

	crushService, err := crushes.NewService(crushes.ServiceParams{
		Store:          repo,
		Resolver:       resolver,
		Updater:        updater,
		Identity:       ids,
		Logger:         logg,
		Notifier:       notifier,
		Metrics:        crushMetrics,
		Timeout:        cfg.Submission.Timeout,
		MaxDisplayName: cfg.Submission.MaxDisplayName,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, crushService, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"addr":     addr,
		"delivery": cfg.Notifier.Delivery,
		"notifier": cfg.Notifier.Provider,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
	return nil
}
