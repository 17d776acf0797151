package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/kartupintar-backend/api/controllers"
	"github.com/angelmondragon/kartupintar-backend/api/middleware"
	"github.com/angelmondragon/kartupintar-backend/internal/auth"
	"github.com/angelmondragon/kartupintar-backend/internal/cardlookup"
	"github.com/angelmondragon/kartupintar-backend/internal/dashboard"
	"github.com/angelmondragon/kartupintar-backend/internal/ledger"
	"github.com/angelmondragon/kartupintar-backend/internal/members"
	"github.com/angelmondragon/kartupintar-backend/internal/menu"
	"github.com/angelmondragon/kartupintar-backend/internal/transactions"
	"github.com/angelmondragon/kartupintar-backend/internal/users"
	"github.com/angelmondragon/kartupintar-backend/pkg/auth/session"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/kartupintar-backend/pkg/redis"
)

// redisStore is the slice of the Redis client the HTTP layer needs.
type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    redisStore
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer

	Auth         auth.Service
	Users        users.Service
	Members      members.Service
	CardLookup   cardlookup.Service
	Ledger       ledger.Engine
	Transactions transactions.Service
	Menu         menu.Service
	Dashboard    dashboard.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": d.DB,
			"redis":    d.Redis,
		}))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(d.Auth, logg))
	})

	staff := middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleCanteenOperator)
	adminOnly := middleware.RequireRole(logg, enums.UserRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.RateLimit(d.Redis, cfg.RateLimit.PerOperator, cfg.RateLimit.Window, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Get("/menu", controllers.MenuList(d.Menu, logg))
		r.Get("/scan/{token}", controllers.ScanByToken(d.CardLookup, cfg.Ledger, logg))
		r.Post("/scan", controllers.ScanCard(d.CardLookup, cfg.Ledger, logg))

		// user accounts are narrowed to their own member inside the handlers
		r.Get("/transactions", controllers.TransactionList(d.Transactions, logg))
		r.Get("/transactions/{trxID}", controllers.TransactionGet(d.Transactions, logg))
		r.Get("/members/{id}", controllers.MemberGet(d.Members, logg))
		r.Get("/members/{id}/locations", controllers.MemberLocations(d.CardLookup, logg))

		r.Group(func(r chi.Router) {
			r.Use(staff)
			r.Post("/ledger/purchase", controllers.LedgerPurchase(d.Ledger, d.CardLookup, logg))
			r.Get("/members", controllers.MemberList(d.Members, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/ledger/topup", controllers.LedgerTopUp(d.Ledger, d.CardLookup, logg))
			r.Get("/locations/latest", controllers.LatestLocations(d.CardLookup, logg))
			r.Get("/dashboard", controllers.DashboardStats(d.Dashboard, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Post("/members", controllers.AdminMemberCreate(d.Members, logg))
				r.Patch("/members/{id}", controllers.AdminMemberUpdate(d.Members, logg))
				r.Delete("/members/{id}", controllers.AdminMemberDelete(d.Members, logg))

				r.Post("/menu", controllers.AdminMenuCreate(d.Menu, logg))
				r.Patch("/menu/{id}", controllers.AdminMenuUpdate(d.Menu, logg))
				r.Delete("/menu/{id}", controllers.AdminMenuDelete(d.Menu, logg))

				r.Post("/users", controllers.AdminUserCreate(d.Users, logg))
				r.Get("/users/{id}", controllers.AdminUserGet(d.Users, logg))
			})
		})
	})

	return r
}
