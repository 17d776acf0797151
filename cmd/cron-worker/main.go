// Command cron-worker runs the periodic ledger maintenance jobs under a
// redis lock so only one replica works per tick.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/kartupintar-backend/internal/cron"
	"github.com/angelmondragon/kartupintar-backend/internal/ledger"
	"github.com/angelmondragon/kartupintar-backend/pkg/bootstrap"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/metrics"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
)

const kind = "cron-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(ctx, "cron worker stopped", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := bootstrap.Start(ctx, bootstrap.Options{Kind: kind, WithRedis: true})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	lock, err := cron.NewRedisLock(rt.Redis, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	jobs, err := registerJobs(cfg, logg, rt.DB, metrics.NewLedgerMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return err
	}
	svc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Cron.Schedule,
	})
	if err != nil {
		return err
	}

	ctx = rt.Scope(ctx, map[string]any{"schedule": cfg.Cron.Schedule})
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	drain := bootstrap.Serve(ctx, logg, &http.Server{Addr: ":" + cfg.App.Port, Handler: mux})
	defer drain()

	logg.Info(ctx, "starting cron worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func registerJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, ledgerMetrics *metrics.LedgerMetrics) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())

	reconcile, err := cron.NewLedgerReconcileJob(cron.LedgerReconcileJobParams{
		Logger:     logg,
		Repository: ledger.NewReconcileRepository(dbClient.DB()),
		Metrics:    ledgerMetrics,
		BatchSize:  cfg.Cron.ReconcileSize,
		DB:         dbClient,
		Outbox:     outbox.NewService(outboxRepo, logg),
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		Repository:       outboxRepo,
		RetentionDays:    cfg.Outbox.RetentionDays,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	jobs := cron.NewRegistry()
	for _, job := range []cron.Job{reconcile, retention} {
		if err := jobs.Register(job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// lockName scopes the lock per environment so staging and production
// workers sharing a redis do not block each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return kind + ":" + env
}
