// Command outbox-publisher relays committed outbox rows to Pub/Sub.
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

	"github.com/angelmondragon/kartupintar-backend/pkg/bootstrap"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/metrics"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/registry"
	"github.com/angelmondragon/kartupintar-backend/pkg/pubsub"
)

const kind = "outbox-publisher"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(ctx, "outbox publisher stopped", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := bootstrap.Start(ctx, bootstrap.Options{Kind: kind})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	broker, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	rt.OnClose("pubsub", broker.Close)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	relay, err := NewRelay(RelayParams{
		Outbox:   cfg.Outbox,
		Logger:   logg,
		DB:       rt.DB,
		Broker:   broker,
		Store:    outbox.NewRepository(rt.DB.DB()),
		Resolver: events,
		Metrics:  metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	ctx = rt.Scope(ctx, map[string]any{"topic": cfg.PubSub.LedgerTopic})
	drain := bootstrap.Serve(ctx, logg, &http.Server{Addr: ":" + cfg.App.Port, Handler: promhttp.Handler()})
	defer drain()

	logg.Info(ctx, "starting outbox publisher")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return nil
}
