package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date when the app runs in dev mode with
// auto-migrate enabled, or whenever the driver is sqlite (local kiosks keep a
// single file database without a migrate step).
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlite := cfg.DB.NormalizedDriver() == config.DBDriverSQLite
	if !sqlite && (!cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate) {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"dir":       DefaultDir,
		"db_driver": client.Dialect(),
	})
	logg.Info(ctx, "running schema migrations (auto-run)")

	if err := Schema(ctx, client.DB(), DefaultDir); err != nil {
		return fmt.Errorf("running schema migrations: %w", err)
	}

	logg.Info(ctx, "schema migrations completed")
	return nil
}
