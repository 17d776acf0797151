// Package db owns the relational connection. The ledger tables live here and
// this is the only store whose writes count as authoritative.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

// queries slower than this are logged at warn level
const slowQuery = 250 * time.Millisecond

// Client is the shared gorm handle plus transaction helper.
type Client struct {
	conn *gorm.DB
}

// Pinger is what health checks need from a datastore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New dials the configured driver, applies pool limits and pings once.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := open(dialector, gormLoggerFor(logg))
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", cfg.NormalizedDriver(), err)
	}
	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	limitPool(pool, cfg)
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.NormalizedDriver(), err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"db_driver":   cfg.NormalizedDriver(),
		"db_max_open": cfg.MaxOpenConns,
		"db_max_idle": cfg.MaxIdleConns,
	}), "database ready")
	return &Client{conn: conn}, nil
}

func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

// Open builds a gorm handle with statement logging off. Tests and the
// migration tooling use it directly.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return open(dialector, gormlogger.Discard)
}

func open(dialector gorm.Dialector, l gormlogger.Interface) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:                 l,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
}

// gormLoggerFor routes slow queries and driver errors into the service log.
func gormLoggerFor(logg *logger.Logger) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return gormlogger.New(gormWriter{logg: logg}, gormlogger.Config{
		SlowThreshold:             slowQuery,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

type gormWriter struct{ logg *logger.Logger }

func (w gormWriter) Printf(format string, args ...any) {
	w.logg.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch driver := cfg.NormalizedDriver(); driver {
	case config.DBDriverPostgres:
		// simple protocol keeps pgbouncer in transaction mode happy
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	case config.DBDriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case config.DBDriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func limitPool(pool *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		pool.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		pool.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		pool.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		pool.SetConnMaxIdleTime(d)
	}
}

func (c *Client) DB() *gorm.DB { return c.conn }

// Dialect is the gorm dialector name: postgres, mysql or sqlite.
func (c *Client) Dialect() string { return c.conn.Dialector.Name() }

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in one transaction. It commits when fn returns nil and rolls
// back on error or panic. A panic is re-raised after the rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
