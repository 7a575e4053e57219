package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when running in dev mode with
// auto-migrate enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.MigrationDialect()})
	logg.Info(ctx, "running goose migrations (dev auto-run)")

	if err := Up(ctx, sqlDB, client.MigrationDialect()); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
