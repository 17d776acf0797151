// Package migrate owns the database schema. Postgres is migrated with the
// goose SQL files under DefaultDir; mysql and sqlite are built from the gorm
// models.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
)

const DefaultDir = "pkg/migrate/migrations"

var gooseDialects = map[string]goose.Dialect{
	"postgres": goose.DialectPostgres,
	"mysql":    goose.DialectMySQL,
	"sqlite":   goose.DialectSQLite3,
	"sqlite3":  goose.DialectSQLite3,
}

func gooseDialect(gormDialect string) (goose.Dialect, error) {
	d, ok := gooseDialects[gormDialect]
	if !ok {
		return "", fmt.Errorf("unsupported migration dialect %q", gormDialect)
	}
	return d, nil
}

// Run executes any goose command (up, down, status, redo, ...) against db.
func Run(ctx context.Context, db *sql.DB, dialect, dir, command string, args ...string) error {
	switch {
	case db == nil:
		return errors.New("db is required")
	case dir == "":
		return errors.New("dir is required")
	}
	d, err := gooseDialect(dialect)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(string(d)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at target, a
// YYYYMMDDHHMMSS version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect, dir, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	d, err := gooseDialect(dialect)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(d, db, os.DirFS(dir))
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	defer provider.Close()

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < version:
		_, err = provider.UpTo(ctx, version)
	case current > version:
		_, err = provider.DownTo(ctx, version)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, version, err)
	}
	return nil
}

// Schema brings the schema up to date for whatever driver conn uses.
func Schema(ctx context.Context, conn *gorm.DB, dir string) error {
	if conn == nil {
		return errors.New("db is required")
	}
	name := conn.Dialector.Name()
	if name != "postgres" {
		if err := conn.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", name, err)
		}
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	return Run(ctx, sqlDB, name, dir, "up")
}
