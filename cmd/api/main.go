// Command api serves the kartupintar HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/kartupintar-backend/api/routes"
	"github.com/angelmondragon/kartupintar-backend/internal/auth"
	"github.com/angelmondragon/kartupintar-backend/internal/cardlookup"
	"github.com/angelmondragon/kartupintar-backend/internal/dashboard"
	"github.com/angelmondragon/kartupintar-backend/internal/identifiers"
	"github.com/angelmondragon/kartupintar-backend/internal/ledger"
	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/internal/menu"
	"github.com/angelmondragon/kartupintar-backend/internal/transactions"
	"github.com/angelmondragon/kartupintar-backend/internal/users"
	"github.com/angelmondragon/kartupintar-backend/pkg/auth/session"
	"github.com/angelmondragon/kartupintar-backend/pkg/bootstrap"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/metrics"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox"
)

const kind = "api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(ctx, "api server stopped", err)
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

	deps, err := wire(rt)
	if err != nil {
		return err
	}

	// PORT is injected by the hosting platform and wins over config.
	addr := ":" + rt.Config.App.Port
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	ctx = rt.Scope(ctx, map[string]any{"addr": addr})

	server := &http.Server{Addr: addr, Handler: routes.NewRouter(deps), ReadHeaderTimeout: 5 * time.Second}
	stopped := make(chan error, 1)
	go func() { stopped <- server.ListenAndServe() }()
	rt.Logger.Info(ctx, "starting api server")

	select {
	case err := <-stopped:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			return err
		}
	}
	rt.Logger.Info(ctx, "api server shut down gracefully")
	return nil
}

// wire builds every domain service over the runtime's connections.
func wire(rt *bootstrap.Runtime) (routes.Deps, error) {
	cfg, logg, conn := rt.Config, rt.Logger, rt.DB.DB()

	sessions, err := session.NewManager(rt.Redis, cfg.JWT)
	if err != nil {
		return routes.Deps{}, err
	}
	d := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       rt.DB,
		Redis:    rt.Redis,
		Sessions: sessions,
		Gatherer: prometheus.DefaultGatherer,
	}

	events := outbox.NewService(outbox.NewRepository(conn), logg)
	ids := identifiers.NewGenerator(cfg.Ledger)
	memberRepo := members.NewRepository(conn)
	userRepo := users.NewRepository(conn)

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		logg.Warn(context.Background(), "unknown timezone, dashboard falls back to UTC")
		loc = time.UTC
	}

	steps := []func() error{
		func() (err error) {
			d.Members, err = members.NewService(members.ServiceParams{
				DB: rt.DB, Repository: memberRepo, IDs: ids, Outbox: events, Logger: logg,
			})
			return err
		},
		func() (err error) {
			d.CardLookup, err = cardlookup.NewService(cardlookup.ServiceParams{
				DB: rt.DB, Members: memberRepo, Locations: cardlookup.NewRepository(conn), Outbox: events, Logger: logg,
			})
			return err
		},
		func() (err error) {
			d.Menu, err = menu.NewService(menu.NewRepository(conn), logg)
			return err
		},
		func() (err error) {
			d.Ledger, err = ledger.NewEngine(ledger.EngineParams{
				DB:         rt.DB,
				Repository: ledger.NewRepository(conn),
				IDs:        ids,
				Outbox:     events,
				Menu:       d.Menu,
				Metrics:    metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
				Config:     cfg.Ledger,
				Logger:     logg,
			})
			return err
		},
		func() (err error) {
			d.Transactions, err = transactions.NewService(transactions.NewRepository(conn))
			return err
		},
		func() (err error) {
			d.Dashboard, err = dashboard.NewService(dashboard.NewRepository(conn), d.Transactions, loc)
			return err
		},
		func() (err error) {
			d.Users, err = users.NewService(userRepo, cfg.Password, logg)
			return err
		},
		func() (err error) {
			d.Auth, err = auth.NewService(auth.ServiceParams{
				UserRepo: userRepo, SessionManager: sessions, JWTConfig: cfg.JWT, Logger: logg,
			})
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return routes.Deps{}, err
		}
	}
	return d, nil
}
