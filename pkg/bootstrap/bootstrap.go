// Package bootstrap brings up what every kartupintar binary shares: config
// from the environment, the logger, the database and optionally redis.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/migrate"
	"github.com/angelmondragon/kartupintar-backend/pkg/redis"
)

const drainTimeout = 5 * time.Second

type Options struct {
	// Kind names the binary in logs and overrides KARTUPINTAR_SERVICE_KIND.
	Kind      string
	WithRedis bool
}

// Runtime holds the opened infrastructure. Close releases it in reverse
// order of acquisition.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env if present, then config, and opens the database (running
// dev automigrations when enabled) and redis when requested. On failure
// everything already opened is closed again.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: opts.Kind}).Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Kind != "" {
		cfg.Service.Kind = opts.Kind
	}

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: cfg.Service.Kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	if err := rt.open(ctx, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, opts Options) error {
	dbClient, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	rt.DB = dbClient
	rt.OnClose("database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	if !opts.WithRedis {
		return nil
	}
	redisClient, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	rt.Redis = redisClient
	rt.OnClose("redis", redisClient.Close)
	return nil
}

// OnClose registers fn to run during Close.
func (rt *Runtime) OnClose(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(); err != nil {
			rt.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	rt.closers = nil
}

// Scope tags ctx with the fields every log line of the binary carries.
func (rt *Runtime) Scope(ctx context.Context, extra map[string]any) context.Context {
	fields := map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return rt.Logger.WithFields(ctx, fields)
}

// Serve runs srv in the background. The returned func drains it.
func Serve(ctx context.Context, logg *logger.Logger, srv *http.Server) (shutdown func()) {
	if srv.ReadHeaderTimeout == 0 {
		srv.ReadHeaderTimeout = 5 * time.Second
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "http server failed", err)
		}
	}()
	return func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logg.Error(drainCtx, "http server shutdown failed", err)
		}
	}
}
