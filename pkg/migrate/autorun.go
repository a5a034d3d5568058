package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/marketcore/pkg/config"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/logger"
)

// MaybeRunDev applies pending migrations when running in dev with
// MARKETCORE_AUTO_MIGRATE enabled. Other environments migrate via cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !cfg.App.IsDev() || !cfg.App.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	logg.Info(ctx, "applying order schema migrations")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "order schema up to date")
	return nil
}
